package middleware

import (
	"net/http"

	"github.com/fusione/authcore"
)

// RequirePermission must be mounted behind RequireSession. It answers 401
// when no session result is present and 403 when the user lacks perm.
func RequirePermission(engine *authcore.Engine, perm string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			res, ok := ResultFromContext(r.Context())
			if !ok || engine == nil {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}
			if !engine.CheckPermission(r.Context(), res.User.ID, perm) {
				http.Error(w, "forbidden", http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
