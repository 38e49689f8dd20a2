package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/fusione/authcore"
)

type resultContextKey struct{}

// ResultFromContext returns the ValidateResult stored by RequireSession.
func ResultFromContext(ctx context.Context) (*authcore.ValidateResult, bool) {
	res, ok := ctx.Value(resultContextKey{}).(*authcore.ValidateResult)
	return res, ok && res != nil
}

// RequireSession rejects requests without a valid "Bearer" access token
// with 401, or with 503 once the engine is closed. Accepted requests carry the ValidateResult in their context.
func RequireSession(engine *authcore.Engine) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if engine == nil {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			token, ok := bearerToken(r.Header.Get("Authorization"))
			if !ok {
				w.Header().Set("WWW-Authenticate", `Bearer realm="authcore"`)
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			res, err := engine.ValidateAccess(r.Context(), token)
			if errors.Is(err, authcore.ErrEngineNotReady) {
				http.Error(w, "service unavailable", http.StatusServiceUnavailable)
				return
			}
			if err != nil {
				w.Header().Set("WWW-Authenticate", `Bearer realm="authcore", error="invalid_token"`)
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			ctx := context.WithValue(r.Context(), resultContextKey{}, res)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func bearerToken(value string) (string, bool) {
	const bearer = "bearer "
	if len(value) < len(bearer) || !strings.EqualFold(value[:len(bearer)], bearer) {
		return "", false
	}

	token := strings.TrimSpace(value[len(bearer):])
	if token == "" {
		return "", false
	}

	return token, true
}
