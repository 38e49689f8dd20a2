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

// Login authenticates req and opens a session.
//
// A locked email fails with ErrAccountLocked before the password is looked
// at. Unknown email and wrong password both fail with ErrInvalidCredentials
// and count towards the lockout. A correct password on a deactivated
// account fails with ErrInactiveAccount and also counts.
func (e *Engine) Login(ctx context.Context, req LoginRequest) (*LoginResult, error) {
	if !e.ready() {
		return nil, ErrEngineNotReady
	}
	start := time.Now()
	defer e.observeSince(MetricLoginLatency, start)

	email := normalizeEmail(req.Email)
	if email == "" {
		return nil, validationError("email", "is required")
	}
	if req.Password == "" {
		return nil, validationError("password", "is required")
	}

	if retryAfter, err := e.guard.CheckAllowed(email); err != nil {
		e.metricInc(MetricLoginLocked)
		e.logger.Warn("login rejected: account locked", "email", email, "retry_after", retryAfter)
		return nil, lockedError(retryAfter)
	}

	record, err := e.directory.FindByEmail(ctx, email)
	if err != nil && !errors.Is(err, ErrUserNotFound) {
		return nil, fmt.Errorf("authcore: find user: %w", err)
	}
	if record == nil {
		// Same hashing cost as a real account.
		if _, err := e.hasher.Verify(ctx, req.Password, e.dummyHash); err != nil && ctx.Err() != nil {
			return nil, ctx.Err()
		}
		e.recordLoginFailure(ctx, email, "", "unknown_user")
		return nil, ErrInvalidCredentials
	}

	ok, err := e.hasher.Verify(ctx, req.Password, record.PasswordHash)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		e.logger.Error("stored password hash unusable", "user_id", record.ID, "error", err)
	}
	if !ok {
		e.recordLoginFailure(ctx, email, record.ID, "bad_password")
		return nil, ErrInvalidCredentials
	}
	if !record.Active {
		e.metricInc(MetricLoginInactive)
		e.recordLoginFailure(ctx, email, record.ID, "inactive_account")
		return nil, ErrInactiveAccount
	}

	e.guard.Clear(email)
	e.upgradePasswordHash(ctx, record, req.Password)

	result, err := e.openSession(ctx, record, req.RememberMe)
	if err != nil {
		return nil, err
	}

	e.metricInc(MetricLoginSuccess)
	e.logger.Info("login succeeded",
		"user_id", record.ID,
		"session_id", result.Session.ID,
		"remember", req.RememberMe)
	e.emit(ctx, EventUserLogin, func(ev *audit.Event) {
		ev.UserID = record.ID
		ev.SessionID = result.Session.ID
		ev.Data = map[string]any{
			"email":       record.Email,
			"remember_me": req.RememberMe,
		}
	})

	return result, nil
}

// openSession issues both tokens and inserts the session. Nothing is
// inserted if any step fails.
func (e *Engine) openSession(ctx context.Context, record *UserRecord, remember bool) (*LoginResult, error) {
	sid, err := internal.NewSessionID()
	if err != nil {
		return nil, fmt.Errorf("authcore: session id: %w", err)
	}
	refreshToken, err := refresh.Generate()
	if err != nil {
		return nil, fmt.Errorf("authcore: refresh token: %w", err)
	}
	fingerprint, err := refresh.FingerprintOf(refreshToken)
	if err != nil {
		return nil, fmt.Errorf("authcore: refresh token: %w", err)
	}
	access, err := e.tokens.IssueAccess(jwt.AccessSubject{
		UserID:    record.ID,
		Email:     record.Email,
		Role:      record.Role,
		SessionID: sid.String(),
	})
	if err != nil {
		return nil, fmt.Errorf("authcore: issue access token: %w", err)
	}

	now := e.now()
	caller := clientFrom(ctx)
	lifetime := e.config.Session.Timeout
	if remember {
		lifetime = e.config.Session.RememberTTL
	}
	s := session.Session{
		ID:           sid.String(),
		UserID:       record.ID,
		Email:        record.Email,
		Role:         record.Role,
		IssuedAt:     now,
		LastActivity: now,
		ExpiresAt:    now.Add(lifetime),
		Remember:     remember,
		AccessToken:  access,
		RefreshHash:  fingerprint,
		ClientIP:     caller.IP,
		UserAgent:    caller.UserAgent,
	}
	if err := e.sessions.Insert(s); err != nil {
		return nil, fmt.Errorf("authcore: insert session: %w", err)
	}
	e.metricInc(MetricSessionCreated)

	return &LoginResult{
		User:    record.Sanitize(),
		Session: sessionInfo(&s),
		Tokens: TokenPair{
			AccessToken:  access,
			RefreshToken: refreshToken,
			ExpiresAt:    now.Add(e.tokens.TTL()),
		},
	}, nil
}

func (e *Engine) recordLoginFailure(ctx context.Context, email, userID, cause string) {
	count, locked := e.guard.RecordFailure(email)
	e.metricInc(MetricLoginFailure)
	e.logger.Warn("login failed", "email", email, "cause", cause, "attempts", count)
	e.emit(ctx, EventUserLoginFailed, func(ev *audit.Event) {
		ev.UserID = userID
		ev.Reason = cause
		ev.Data = map[string]any{
			"email":    email,
			"attempts": count,
		}
	})
	if !locked || count != e.config.Lockout.MaxAttempts {
		return
	}

	e.metricInc(MetricLockoutTriggered)
	e.logger.Warn("account locked", "email", email, "duration", e.config.Lockout.Duration)
	e.emit(ctx, EventUserLocked, func(ev *audit.Event) {
		ev.UserID = userID
		ev.Data = map[string]any{
			"email":            email,
			"attempts":         count,
			"duration_seconds": int64(e.config.Lockout.Duration / time.Second),
		}
	})
}

// upgradePasswordHash re-hashes plain when the stored hash uses a weaker
// algorithm or cost. Failures are logged and do not affect the login.
func (e *Engine) upgradePasswordHash(ctx context.Context, record *UserRecord, plain string) {
	if !e.config.Password.UpgradeOnLogin {
		return
	}
	stale, err := e.hasher.NeedsUpgrade(record.PasswordHash)
	if err != nil || !stale {
		return
	}
	hash, err := e.hasher.Hash(ctx, plain)
	if err != nil {
		e.logger.Warn("password rehash failed", "user_id", record.ID, "error", err)
		return
	}
	if err := e.directory.UpdatePasswordHash(ctx, record.ID, hash); err != nil {
		e.logger.Warn("password rehash not stored", "user_id", record.ID, "error", err)
		return
	}
	e.metricInc(MetricPasswordRehashed)
}
