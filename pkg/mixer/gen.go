package mixer

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
)

// GenPassphrase will generate a random passphrase from length bytes of OS entropy.
// The result is URL-safe base64 so it can be passed on a command line.
func GenPassphrase(length int) (string, error) {
	if length <= 0 {
		return "", errors.New("asked to generate a 0-length passphrase")
	}
	buf := make([]byte, length)
	n, err := rand.Read(buf)
	if n < length {
		return "", fmt.Errorf("failed to read requested bytes: %v", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
