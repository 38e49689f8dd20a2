// Package limiters holds the in-memory login attempt guard.
//
// [AttemptGuard] counts consecutive failed logins per identifier and locks an
// identifier out for a fixed window once the threshold is reached. Counting is
// serialized by one mutex, so concurrent failures are never lost.
//
// The package only counts; what a lockout means (errors, events) is decided
// by the caller.
package limiters
