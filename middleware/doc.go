// Package middleware adapts authcore.Engine to net/http.
//
//   - [ClientInfo] records the caller's IP and User-Agent for Login.
//   - [RequireSession] validates a bearer access token.
//   - [RequirePermission] checks a permission for the authenticated user.
//
// Authentication decisions are delegated to the Engine.
package middleware
