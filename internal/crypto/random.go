package crypto

import (
	"crypto/rand"
	"fmt"
)

// RandomBytes returns n bytes from the secure source
func RandomBytes(n int) ([]byte, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return nil, fmt.Errorf("failed to generate random bytes: %w", err)
	}
	return b, nil
}
