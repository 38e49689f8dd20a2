package main

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/fusione/authcore"
	"github.com/fusione/authcore/metrics/export/prometheus"
	"github.com/fusione/authcore/middleware"
	"github.com/go-chi/chi/v5"
)

const maxBodyBytes = 1 << 20

type api struct {
	engine *authcore.Engine
	logger *slog.Logger
}

type apiError struct {
	Error      string `json:"error"`
	Message    string `json:"message"`
	Field      string `json:"field,omitempty"`
	RetryAfter int    `json:"retry_after_seconds,omitempty"`
}

type registerRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name"`
}

type loginRequest struct {
	Email      string `json:"email"`
	Password   string `json:"password"`
	RememberMe bool   `json:"remember_me"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// newRouter wires the HTTP surface. Registration never takes a role from
// the request; new users get the configured default.
func newRouter(engine *authcore.Engine, logger *slog.Logger, trustForwarded bool) http.Handler {
	a := &api{engine: engine, logger: logger}
	requireSession := middleware.RequireSession(engine)

	r := chi.NewRouter()
	r.Use(middleware.ClientInfo(trustForwarded))

	r.Get("/healthz", a.health)
	r.Handle("/metrics", prometheus.Handler(prometheus.NewCollector(engine)))

	r.Post("/register", a.register)
	r.Post("/login", a.login)
	r.Post("/refresh", a.refresh)

	r.Group(func(r chi.Router) {
		r.Use(requireSession)
		r.Post("/logout", a.logout)
		r.Get("/me", a.me)
		r.With(middleware.RequirePermission(engine, "moderate")).Get("/moderation", a.moderation)
		r.With(middleware.RequirePermission(engine, "manage_sessions")).
			Post("/admin/users/{id}/sessions/invalidate", a.invalidateSessions)
	})

	return r
}

func (a *api) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, a.engine.Stats())
}

func (a *api) register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	user, err := a.engine.Register(r.Context(), authcore.RegisterRequest{
		Email:    req.Email,
		Password: req.Password,
		Name:     req.Name,
	})
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, user)
}

func (a *api) login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	res, err := a.engine.Login(r.Context(), authcore.LoginRequest{
		Email:      req.Email,
		Password:   req.Password,
		RememberMe: req.RememberMe,
	})
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (a *api) refresh(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	res, err := a.engine.Refresh(r.Context(), req.RefreshToken)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (a *api) logout(w http.ResponseWriter, r *http.Request) {
	res, _ := middleware.ResultFromContext(r.Context())
	if err := a.engine.Logout(r.Context(), res.Session.ID); err != nil {
		a.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *api) me(w http.ResponseWriter, r *http.Request) {
	res, _ := middleware.ResultFromContext(r.Context())
	writeJSON(w, http.StatusOK, map[string]any{
		"user":        res.User,
		"session":     res.Session,
		"permissions": a.engine.Permissions(res.User.Role),
	})
}

func (a *api) moderation(w http.ResponseWriter, r *http.Request) {
	res, _ := middleware.ResultFromContext(r.Context())
	writeJSON(w, http.StatusOK, map[string]any{
		"moderator": res.User.Email,
		"queue":     []string{},
	})
}

func (a *api) invalidateSessions(w http.ResponseWriter, r *http.Request) {
	actor, _ := middleware.ResultFromContext(r.Context())
	userID := chi.URLParam(r, "id")
	n, err := a.engine.ReportSuspiciousActivity(r.Context(), userID, map[string]any{
		"source": "admin",
		"actor":  actor.User.ID,
	})
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"invalidated": n})
}

func (a *api) writeError(w http.ResponseWriter, r *http.Request, err error) {
	body := apiError{Error: authcore.KindOf(err).String(), Message: err.Error()}
	status := http.StatusInternalServerError

	var domainErr *authcore.Error
	if errors.As(err, &domainErr) {
		body.Field = domainErr.Field
	}

	switch authcore.KindOf(err) {
	case authcore.KindValidation:
		status = http.StatusBadRequest
	case authcore.KindDuplicateUser:
		status = http.StatusConflict
	case authcore.KindInvalidCredentials, authcore.KindSessionNotFound,
		authcore.KindInvalidRefreshToken, authcore.KindInvalidAccessToken:
		status = http.StatusUnauthorized
	case authcore.KindAccountLocked:
		status = http.StatusTooManyRequests
		if domainErr.RetryAfter > 0 {
			secs := int((domainErr.RetryAfter + time.Second - 1) / time.Second)
			body.RetryAfter = secs
			w.Header().Set("Retry-After", strconv.Itoa(secs))
		}
	case authcore.KindInactiveAccount:
		status = http.StatusForbidden
	default:
		if errors.Is(err, authcore.ErrEngineNotReady) {
			status = http.StatusServiceUnavailable
			body = apiError{Error: "unavailable", Message: "service unavailable"}
			break
		}
		a.logger.ErrorContext(r.Context(), "request failed", "path", r.URL.Path, "error", err)
		body = apiError{Error: "internal", Message: "internal error"}
	}

	writeJSON(w, status, body)
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		writeJSON(w, http.StatusBadRequest, apiError{Error: "bad_request", Message: "malformed JSON body"})
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
