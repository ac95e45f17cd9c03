// Package idgen generates prefixed, URL-safe identifiers for API resources.
package idgen

import (
	"crypto/rand"
	"fmt"
	"strings"
)

const idAlphabet = "0123456789abcdefghijklmnopqrstuvwxyz"

// GenerateSecureID returns an identifier of the form "<prefix>_<random>",
// where the random part is drawn from [0-9a-z] using crypto/rand.
func GenerateSecureID(prefix string, length int) (string, error) {
	if prefix == "" {
		return "", fmt.Errorf("prefix cannot be empty")
	}
	if length <= 0 {
		return "", fmt.Errorf("length must be positive, got %d", length)
	}

	buf := make([]byte, length)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("read random bytes: %w", err)
	}

	suffix := make([]byte, length)
	for i, b := range buf {
		suffix[i] = idAlphabet[int(b)%len(idAlphabet)]
	}

	return prefix + "_" + string(suffix), nil
}

// ValidateIDFormat reports whether id has the expected prefix followed by an
// underscore and a non-empty [0-9a-z] suffix.
func ValidateIDFormat(id, expectedPrefix string) bool {
	want := expectedPrefix + "_"
	if !strings.HasPrefix(id, want) {
		return false
	}
	suffix := id[len(want):]
	if suffix == "" {
		return false
	}
	for _, c := range suffix {
		if !((c >= 'a' && c <= 'z') || (c >= '0' && c <= '9')) {
			return false
		}
	}
	return true
}
