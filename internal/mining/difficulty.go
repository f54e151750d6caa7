// Package mining provides shared mining primitives: difficulty predicates
// and digest helpers used by the hashing engines.
package mining

import "encoding/binary"

// DigestSize is the output size of every hash context in bytes.
const DigestSize = 32

// MeetsLeadingZeroBytes reports whether digest has at least n leading zero
// bytes. n must be in [1, DigestSize]; anything else never matches. This is
// the predicate used by the dataset-backed context and is not interchangeable
// with MeetsTarget64.
func MeetsLeadingZeroBytes(digest []byte, n int) bool {
	if n < 1 || n > DigestSize || len(digest) < n {
		return false
	}
	for i := 0; i < n; i++ {
		if digest[i] != 0 {
			return false
		}
	}
	return true
}

// MeetsTarget64 reports whether the big-endian value of the first 8 bytes of
// digest is strictly below target. A digest exactly equal to the target does
// not qualify. This is the predicate used by the KDF-based context.
func MeetsTarget64(digest []byte, target uint64) bool {
	if len(digest) < 8 {
		return false
	}
	return binary.BigEndian.Uint64(digest[:8]) < target
}
