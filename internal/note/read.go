package note

import (
	"os"
	"time"

	"github.com/jrnl/voicejournal/internal/errors"
)

// ReadNote reads path to a string, or returns ("", nil) if the file does
// not exist (spec.md §4.E operation 4) — a missing note is an expected
// state (not yet written, or deleted out from under the entry), not a
// failure the caller needs to handle specially.
func ReadNote(path string) (string, error) {
	raw, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return "", nil
	}
	if err != nil {
		return "", errors.New(err).
			Component("note").
			Category(errors.CategoryFileIO).
			Context("operation", "read_note").
			Context("path", path).
			Build()
	}
	return string(raw), nil
}

// HasExternalEdits reports whether path's current mtime is strictly newer
// than noteMtime, the mtime the writer recorded the last time it produced
// the file (spec.md §4.E operation 5). A nil noteMtime means the note has
// never been written by this system, so there is nothing to compare
// against.
func HasExternalEdits(path string, noteMtime *time.Time) (bool, error) {
	if noteMtime == nil {
		return false, nil
	}
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return false, nil
	}
	if err != nil {
		return false, errors.New(err).
			Component("note").
			Category(errors.CategoryFileIO).
			Context("operation", "stat_note").
			Context("path", path).
			Build()
	}
	return info.ModTime().After(*noteMtime), nil
}
