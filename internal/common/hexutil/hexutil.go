package hexutil

import (
	"encoding/hex"
	"strings"
	"unicode"
)

// PasswordLen is the access password size in bytes.
const PasswordLen = 4

// Normalize removes all whitespace from a hex string.
func Normalize(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, s)
}

// Decode parses a case-insensitive, whitespace-tolerant hex string.
// Odd-length input is right-padded with a zero nibble. Empty input decodes to
// an empty slice. ok is false when the input contains non-hex characters.
func Decode(s string) (b []byte, ok bool) {
	h := Normalize(s)
	if h == "" {
		return []byte{}, true
	}
	if len(h)%2 != 0 {
		h += "0"
	}
	out, err := hex.DecodeString(h)
	if err != nil {
		return nil, false
	}
	return out, true
}

// Password decodes an access password and fits it to PasswordLen bytes.
func Password(s string) ([]byte, bool) {
	raw, ok := Decode(s)
	if !ok {
		return nil, false
	}
	return Fit(raw, PasswordLen), true
}

// Fit returns a copy of b zero-padded or truncated to n bytes.
func Fit(b []byte, n int) []byte {
	if n < 0 {
		n = 0
	}
	out := make([]byte, n)
	copy(out, b)
	return out
}

// Encode renders b as upper-case hex with no separators.
func Encode(b []byte) string {
	return strings.ToUpper(hex.EncodeToString(b))
}

// EncodeSpaced renders b as upper-case hex bytes separated by single spaces.
func EncodeSpaced(b []byte) string {
	if len(b) == 0 {
		return ""
	}
	var sb strings.Builder
	sb.Grow(len(b) * 3)
	for i, v := range b {
		if i > 0 {
			sb.WriteByte(' ')
		}
		sb.WriteString(strings.ToUpper(hex.EncodeToString([]byte{v})))
	}
	return sb.String()
}
