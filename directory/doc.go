// Package directory provides authcore.Directory implementations: an
// in-memory map for tests and single-process deployments, a Redis-backed
// store and a PostgreSQL-backed store.
//
// All implementations normalize nothing; the Engine hands them lower-cased
// emails. Lookups that match nothing return authcore.ErrUserNotFound and a
// taken email on Save returns authcore.ErrDuplicateUser. Other failures are
// wrapped with an oops code such as DIRECTORY_UNAVAILABLE.
package directory
