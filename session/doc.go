// Package session holds live sessions and their refresh-token index in
// memory.
//
// The [Registry] is sharded: every operation on one session is serialized by
// that session's shard lock, which is what makes logout, refresh, validation
// and expiry sweeping linearizable per session. Nothing here performs I/O,
// signs tokens or decides policy; callers pass predicates and callbacks.
//
// All state is lost on restart.
package session
