package node

import (
	"crypto/rand"
	"encoding/hex"

	"github.com/go-errors/errors"
)

// newToken mints an opaque session token from a cryptographically secure
// random source. Tokens are never derived from caller-supplied input.
func newToken() (string, error) {
	var raw [32]byte

	_, err := rand.Read(raw[:])
	if err != nil {
		return "", errors.Errorf("Could not generate session token: %v", err)
	}

	return hex.EncodeToString(raw[:]), nil
}
