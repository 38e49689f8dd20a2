package authcore

import (
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fusione/authcore/internal/audit"
	"github.com/fusione/authcore/internal/limiters"
	"github.com/fusione/authcore/jwt"
	"github.com/fusione/authcore/password"
	"github.com/fusione/authcore/permission"
	"github.com/fusione/authcore/session"
)

// Engine is the session manager. It owns the live session table, the
// refresh index and the login attempt guard, and delegates user storage to
// a Directory.
//
// All methods are safe for concurrent use. Build an Engine with New.
type Engine struct {
	config    Config
	directory Directory
	resolver  *permission.Resolver
	hasher    *password.Pool
	dummyHash string
	tokens    *jwt.Manager
	guard     *limiters.AttemptGuard
	sessions  *session.Registry
	events    *audit.Dispatcher
	metrics   *Metrics
	logger    *slog.Logger
	now       func() time.Time
	reaper    *Reaper

	closeOnce sync.Once
	closed    atomic.Bool
}

func (e *Engine) ready() bool {
	return e != nil && !e.closed.Load()
}

// Close stops the reaper, flushes pending events and drops all sessions and
// attempt records. Further calls return ErrEngineNotReady.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	e.closeOnce.Do(func() {
		e.closed.Store(true)
		e.reaper.retire()
		e.events.Close()
		e.sessions.Clear()
		e.guard.Reset()
	})
}

// Config returns a copy of the active configuration.
func (e *Engine) Config() Config {
	return cloneConfig(e.config)
}

// Stats reports table sizes and limits.
func (e *Engine) Stats() Stats {
	if e == nil {
		return Stats{}
	}
	return Stats{
		ActiveSessions:   e.sessions.Len(),
		RefreshTokens:    e.sessions.RefreshLen(),
		LoginAttempts:    e.guard.Len(),
		MaxLoginAttempts: e.config.Lockout.MaxAttempts,
		SessionTimeout:   e.config.Session.Timeout,
		EventsDropped:    e.events.Dropped(),
	}
}

// Sessions lists the live sessions of userID.
func (e *Engine) Sessions(userID string) []SessionInfo {
	if !e.ready() {
		return nil
	}
	list := e.sessions.UserSessions(userID)
	out := make([]SessionInfo, 0, len(list))
	for i := range list {
		out = append(out, sessionInfo(&list[i]))
	}
	return out
}

// EventsDropped is the number of security events discarded because the
// dispatch buffer was full.
func (e *Engine) EventsDropped() uint64 {
	if e == nil {
		return 0
	}
	return e.events.Dropped()
}

func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil || e.metrics == nil {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}
	return e.metrics.Snapshot()
}

func (e *Engine) metricInc(id MetricID) {
	e.metrics.Inc(id)
}

func (e *Engine) observeSince(id MetricID, start time.Time) {
	if e.metrics.LatencyEnabled() {
		e.metrics.Observe(id, time.Since(start))
	}
}

func sessionInfo(s *session.Session) SessionInfo {
	return SessionInfo{
		ID:           s.ID,
		UserID:       s.UserID,
		Role:         s.Role,
		IssuedAt:     s.IssuedAt,
		LastActivity: s.LastActivity,
		ExpiresAt:    s.ExpiresAt,
		Remember:     s.Remember,
		ClientIP:     s.ClientIP,
		UserAgent:    s.UserAgent,
	}
}
