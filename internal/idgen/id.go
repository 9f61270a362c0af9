// Package idgen generates short opaque identifiers for journal entries.
package idgen

import (
	"encoding/base32"
	"strings"

	"github.com/google/uuid"
)

var encoding = base32.NewEncoding("0123456789abcdefghjkmnpqrstvwxyz").WithPadding(base32.NoPadding)

// New returns a 12-character, URL-safe, lowercase opaque token derived from
// a random UUID. Collisions are astronomically unlikely; the store still
// enforces a unique constraint and callers should retry generation on the
// rare conflict (see datastore.Store.CreateEntry).
func New() string {
	u := uuid.New()
	encoded := encoding.EncodeToString(u[:])
	return strings.ToLower(encoded[:12])
}
