package authcore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/fusione/authcore/internal"
	"github.com/fusione/authcore/internal/audit"
	"github.com/fusione/authcore/jwt"
	"github.com/fusione/authcore/refresh"
	"github.com/fusione/authcore/session"
)

var (
	errRefreshMismatch = errors.New("refresh token no longer bound to session")
	errSessionMismatch = errors.New("session belongs to another user")
)

// Logout destroys the session. Its refresh token stops working at once.
func (e *Engine) Logout(ctx context.Context, sessionID string) error {
	if !e.ready() {
		return ErrEngineNotReady
	}
	if _, err := internal.ParseSessionID(sessionID); err != nil {
		return ErrSessionNotFound
	}
	removed, ok := e.sessions.Remove(sessionID)
	if !ok {
		return ErrSessionNotFound
	}

	e.metricInc(MetricLogout)
	e.logger.Info("logout", "user_id", removed.UserID, "session_id", removed.ID)
	e.emitLogout(ctx, removed.UserID, removed.ID, ReasonLogout)
	return nil
}

// Refresh exchanges a refresh token for a new access token bound to the
// same session. The refresh token is not rotated.
func (e *Engine) Refresh(ctx context.Context, refreshToken string) (*RefreshResult, error) {
	if !e.ready() {
		return nil, ErrEngineNotReady
	}

	result, err := e.refresh(ctx, refreshToken)
	if err != nil {
		e.metricInc(MetricRefreshFailure)
		return nil, err
	}
	e.metricInc(MetricRefreshSuccess)
	return result, nil
}

func (e *Engine) refresh(ctx context.Context, refreshToken string) (*RefreshResult, error) {
	fingerprint, err := refresh.FingerprintOf(refreshToken)
	if err != nil {
		return nil, ErrInvalidRefreshToken
	}
	binding, err := e.sessions.LookupRefresh(fingerprint, e.now())
	if err != nil {
		return nil, ErrInvalidRefreshToken
	}

	record, err := e.directory.FindByID(ctx, binding.UserID)
	switch {
	case errors.Is(err, ErrUserNotFound):
		if removed, ok := e.sessions.Remove(binding.SessionID); ok {
			e.emitLogout(ctx, removed.UserID, removed.ID, ReasonUserDeleted)
		}
		return nil, ErrInvalidRefreshToken
	case err != nil:
		return nil, fmt.Errorf("authcore: find user: %w", err)
	case !record.Active:
		return nil, ErrInactiveAccount
	}

	var access string
	_, err = e.sessions.Update(binding.SessionID, func(s *session.Session) error {
		if s.RefreshHash != fingerprint {
			return errRefreshMismatch
		}
		now := e.now()
		if s.Expiry(now, e.config.Session.Timeout) != session.NotExpired {
			return session.ErrEvict
		}
		tok, err := e.tokens.IssueAccess(jwt.AccessSubject{
			UserID:    record.ID,
			Email:     record.Email,
			Role:      record.Role,
			SessionID: s.ID,
		})
		if err != nil {
			return err
		}
		s.AccessToken = tok
		s.Role = record.Role
		s.LastActivity = now
		access = tok
		return nil
	})
	switch {
	case err == nil:
	case errors.Is(err, session.ErrEvict):
		e.metricInc(MetricSessionExpired)
		e.emitLogout(ctx, binding.UserID, binding.SessionID, ReasonExpired)
		return nil, ErrInvalidRefreshToken
	case errors.Is(err, session.ErrNotFound):
		e.sessions.DropRefresh(fingerprint)
		return nil, ErrInvalidRefreshToken
	case errors.Is(err, errRefreshMismatch):
		return nil, ErrInvalidRefreshToken
	default:
		return nil, fmt.Errorf("authcore: issue access token: %w", err)
	}

	return &RefreshResult{
		AccessToken: access,
		User:        record.Sanitize(),
	}, nil
}

// ValidateAccess checks an access token and the session it names, and
// records activity on that session. Every failure is ErrInvalidAccessToken.
func (e *Engine) ValidateAccess(ctx context.Context, accessToken string) (*ValidateResult, error) {
	if !e.ready() {
		return nil, ErrEngineNotReady
	}
	start := time.Now()
	defer e.observeSince(MetricValidateLatency, start)

	result, err := e.validateAccess(ctx, accessToken)
	if err != nil {
		e.metricInc(MetricValidateFailure)
		e.logger.Debug("access token rejected", "error", err)
		return nil, ErrInvalidAccessToken
	}
	e.metricInc(MetricValidateSuccess)
	return result, nil
}

// validateAccess only touches the session once the user is known to be
// active, so rejected requests never keep an idle session alive.
func (e *Engine) validateAccess(ctx context.Context, accessToken string) (*ValidateResult, error) {
	claims, err := e.tokens.VerifyAccess(accessToken)
	if err != nil {
		return nil, err
	}
	if _, ok := e.sessions.Get(claims.SID); !ok {
		return nil, session.ErrNotFound
	}

	record, err := e.directory.FindByID(ctx, claims.UID)
	if err != nil {
		if !errors.Is(err, ErrUserNotFound) {
			e.logger.Warn("directory lookup failed during validation", "user_id", claims.UID, "error", err)
		}
		return nil, err
	}
	if !record.Active {
		return nil, ErrInactiveAccount
	}

	s, err := e.sessions.Update(claims.SID, func(s *session.Session) error {
		if s.UserID != claims.UID {
			return errSessionMismatch
		}
		now := e.now()
		if s.Expiry(now, e.config.Session.Timeout) != session.NotExpired {
			return session.ErrEvict
		}
		s.LastActivity = now
		return nil
	})
	if errors.Is(err, session.ErrEvict) {
		e.metricInc(MetricSessionExpired)
		e.emitLogout(ctx, s.UserID, s.ID, ReasonExpired)
	}
	if err != nil {
		return nil, err
	}

	return &ValidateResult{
		User:    record.Sanitize(),
		Session: sessionInfo(&s),
	}, nil
}

// InvalidateUserSessions destroys every live session of userID and returns
// how many were removed. Calling it again removes nothing. A session opened
// while the sweep runs may survive it.
func (e *Engine) InvalidateUserSessions(ctx context.Context, userID, reason string) (int, error) {
	if !e.ready() {
		return 0, ErrEngineNotReady
	}
	if reason == "" {
		reason = ReasonLogout
	}

	removed := 0
	for _, s := range e.sessions.UserSessions(userID) {
		gone, ok := e.sessions.Remove(s.ID)
		if !ok {
			continue
		}
		removed++
		e.emitLogout(ctx, gone.UserID, gone.ID, reason)
	}
	if removed == 0 {
		return 0, nil
	}

	e.metrics.Add(MetricSessionInvalidated, uint64(removed))
	e.logger.Info("user sessions invalidated", "user_id", userID, "count", removed, "reason", reason)
	e.emit(ctx, EventSessionsInvalidated, func(ev *audit.Event) {
		ev.UserID = userID
		ev.Reason = reason
		ev.Data = map[string]any{"count": removed}
	})
	return removed, nil
}
