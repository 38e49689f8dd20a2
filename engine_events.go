package authcore

import (
	"context"

	"github.com/fusione/authcore/internal/audit"
)

// Security event names published on the EventBus.
const (
	EventUserRegistered      = "user.registered"
	EventUserLogin           = "user.login"
	EventUserLoginFailed     = "user.login_failed"
	EventUserLocked          = "user.locked"
	EventUserLogout          = "user.logout"
	EventSessionsInvalidated = "user.sessions_invalidated"
	EventSuspiciousActivity  = "security.suspicious_activity"
)

// Logout reasons carried in user.logout and user.sessions_invalidated.
const (
	ReasonLogout          = "logout"
	ReasonExpired         = "expired"
	ReasonPasswordChanged = "password_changed"
	ReasonDeactivated     = "account_deactivated"
	ReasonUserDeleted     = "deleted"
	ReasonSuspicious      = "suspicious_activity"
)

// busSink forwards dispatcher events to the configured EventBus.
type busSink struct {
	bus EventBus
}

func (s busSink) Emit(ctx context.Context, event audit.Event) error {
	return s.bus.Publish(ctx, event.Name, event.Payload())
}

// emit stamps a new event with the engine clock and request metadata and
// queues it. It never blocks on the bus.
func (e *Engine) emit(ctx context.Context, name string, fill func(*audit.Event)) {
	event := audit.NewEvent(name, e.now())
	c := clientFrom(ctx)
	event.IP = c.IP
	event.UserAgent = c.UserAgent
	if fill != nil {
		fill(&event)
	}
	e.events.Emit(ctx, event)
}

func (e *Engine) emitLogout(ctx context.Context, userID, sessionID, reason string) {
	e.emit(ctx, EventUserLogout, func(ev *audit.Event) {
		ev.UserID = userID
		ev.SessionID = sessionID
		ev.Reason = reason
	})
}
