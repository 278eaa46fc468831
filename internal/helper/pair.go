package helper

import (
	"bytes"

	"github.com/google/uuid"
)

// CanonicalPair orders two user ids so that {a,b} and {b,a} map to the same tuple.
func CanonicalPair(a, b uuid.UUID) (uuid.UUID, uuid.UUID) {
	if bytes.Compare(a[:], b[:]) > 0 {
		return b, a
	}
	return a, b
}

// PairKey is the unordered-pair identity used by unique constraints and pair locks.
func PairKey(a, b uuid.UUID) string {
	lo, hi := CanonicalPair(a, b)
	return lo.String() + ":" + hi.String()
}
