package mining

import "encoding/hex"

// IsZeroDigest reports whether digest is the all-zero sentinel returned by a
// hash call made against an uninitialized or misaddressed context. Callers
// that cannot rule out a genuine all-zero hash should check engine readiness
// explicitly instead.
func IsZeroDigest(digest []byte) bool {
	if len(digest) != DigestSize {
		return false
	}
	for _, b := range digest {
		if b != 0 {
			return false
		}
	}
	return true
}

// DigestHex returns the lowercase hex encoding of digest.
func DigestHex(digest []byte) string {
	return hex.EncodeToString(digest)
}

// ParseDigestHex decodes a hex-encoded digest.
func ParseDigestHex(s string) ([]byte, error) {
	return hex.DecodeString(s)
}
