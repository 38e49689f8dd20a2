// Package internal holds helpers private to authcore: session id
// generation here, the security event dispatcher in audit, and the login
// attempt guard in limiters.
package internal
