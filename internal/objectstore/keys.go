package objectstore

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

const maxKeyLength = 1024

// ValidateKey rejects keys no backend can store.
func ValidateKey(key string) error {
	if key == "" {
		return fmt.Errorf("object key is required")
	}
	if len(key) > maxKeyLength {
		return fmt.Errorf("object key exceeds %d bytes", maxKeyLength)
	}
	if !utf8.ValidString(key) {
		return fmt.Errorf("object key must be valid UTF-8")
	}
	if strings.ContainsRune(key, 0) {
		return fmt.Errorf("object key contains NUL")
	}
	return nil
}
