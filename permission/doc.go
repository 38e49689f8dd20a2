// Package permission resolves role names to permission sets.
//
// Permission names are assigned bits in a 64-bit mask by a [Registry]; each
// role is one [Mask64]. The highest bit is reserved for the "*" wildcard, which
// satisfies every check. A [Resolver] is built once from a role table and is
// read-only afterwards.
//
// The package performs no I/O.
package permission
