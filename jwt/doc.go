// Package jwt issues and verifies the signed access tokens of a session.
//
// An access token carries the user id, role and session id. Verification
// covers signature, algorithm, issuer and expiry only; session liveness is
// the caller's concern.
package jwt
