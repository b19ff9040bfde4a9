package token

import (
	"encoding/base64"
	"strings"
)

// EncodeSegment encodes data as unpadded base64url, the alphabet used by every
// JWT segment.
func EncodeSegment(data []byte) string {
	return base64.RawURLEncoding.EncodeToString(data)
}

// DecodeSegment reverses EncodeSegment. Padded input is accepted.
func DecodeSegment(segment string) ([]byte, error) {
	return base64.RawURLEncoding.DecodeString(strings.TrimRight(segment, "="))
}
