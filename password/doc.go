// Package password hashes and verifies credentials.
//
// bcrypt (cost 12 by default) is the primary algorithm. Argon2id PHC strings
// are also understood, so a directory can hold hashes of both kinds during a
// migration; [Multi] picks the verifier from the hash prefix and reports
// hashes that should be upgraded on the next successful login.
//
// [Pool] bounds how many hash or verify calls run at once.
//
// Password policy (length, character classes) is enforced by the caller.
// Nothing in this package logs or stores plaintext.
package password
