// Package audit delivers security events asynchronously.
//
//   - [Event] is the record: ULID id, name, UTC timestamp, subject fields and
//     free-form data.
//   - [Sink] consumes events (channel, JSON lines, no-op, or an adapter over
//     an external bus).
//   - [Dispatcher] buffers events and forwards them on a single goroutine.
//     Sink failures are logged and counted, never returned to the emitter.
//
// Which events exist is decided by the caller.
package audit
