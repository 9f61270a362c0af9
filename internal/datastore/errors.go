// errors.go - sentinel errors for the datastore package
package datastore

import "github.com/jrnl/voicejournal/internal/errors"

var (
	ErrEntryNotFound = errors.Newf("entry not found").Component("datastore").Category(errors.CategoryNotFound).Build()
	ErrLinkNotFound  = errors.Newf("entry link not found").Component("datastore").Category(errors.CategoryNotFound).Build()
	ErrNotLeased     = errors.Newf("entry is not leased by this worker").Component("datastore").Category(errors.CategoryConflict).Build()
	ErrDBNotConnected = errors.Newf("database not connected").Component("datastore").Category(errors.CategorySystem).Build()
	ErrTranscriptLocked = errors.Newf("raw transcript is locked and cannot be modified").Component("datastore").Category(errors.CategoryState).Build()
)
