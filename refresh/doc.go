// Package refresh generates and fingerprints opaque refresh tokens.
//
// A refresh token is 32 random bytes, hex encoded, with no embedded claims.
// The session registry indexes tokens by their SHA-256 fingerprint so the
// plaintext value is only ever held by the client.
//
// This package performs no I/O and knows nothing about sessions.
package refresh
