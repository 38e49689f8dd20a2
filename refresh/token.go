package refresh

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
)

// TokenBytes is the amount of randomness in a refresh token.
const TokenBytes = 32

// ErrMalformed reports a token that cannot have been produced by Generate.
var ErrMalformed = errors.New("refresh: malformed token")

// Fingerprint is the registry key derived from a refresh token.
type Fingerprint [sha256.Size]byte

// Generate returns a new hex-encoded refresh token.
func Generate() (string, error) {
	var raw [TokenBytes]byte
	if _, err := rand.Read(raw[:]); err != nil {
		return "", err
	}
	return hex.EncodeToString(raw[:]), nil
}

// Valid reports whether token has the shape Generate produces.
func Valid(token string) bool {
	if len(token) != TokenBytes*2 {
		return false
	}
	_, err := hex.DecodeString(token)
	return err == nil
}

// FingerprintOf hashes token after checking its shape.
func FingerprintOf(token string) (Fingerprint, error) {
	if !Valid(token) {
		return Fingerprint{}, ErrMalformed
	}
	return sha256.Sum256([]byte(token)), nil
}

// String renders the fingerprint as hex, for logs and debugging.
func (f Fingerprint) String() string {
	return hex.EncodeToString(f[:])
}
