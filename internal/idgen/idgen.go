// Package idgen mints opaque document ids, ported from the teacher's
// internal/modules/order/service.go newID helper (crypto/rand + hex) which
// every module (order, matching, pricing) rolled its own copy of; this
// shared copy replaces all of them.
package idgen

import (
	"crypto/rand"
	"encoding/hex"

	"ark/internal/types"
)

// New mints a random 16-byte id encoded as 32 hex characters.
func New() types.ID {
	var b [16]byte
	_, _ = rand.Read(b[:])
	return types.ID(hex.EncodeToString(b[:]))
}
