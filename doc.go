// Package authcore is the authentication and session-lifecycle core of the
// case-management suite.
//
// An [Engine] registers users, logs them in with brute-force containment,
// issues short stateless access tokens backed by a stateful session registry
// plus opaque refresh tokens, answers role-permission checks, sweeps expired
// sessions in the background and emits security events.
//
// The Engine owns no user storage and no transport. Users live behind a
// [Directory]; events leave through an [EventBus]. Both are injected through
// the [Builder]. Sessions, refresh bindings and login-attempt records are held
// in memory only, so a restart logs every user out.
//
// Engine methods are safe for concurrent use once [Builder.Build] returns.
package authcore
