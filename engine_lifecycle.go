package authcore

import (
	"context"

	"github.com/fusione/authcore/internal/audit"
)

// Fields named in HandleUserUpdated.
const (
	ChangePassword = "password"
	ChangeActive   = "active"
	ChangeRole     = "role"
	ChangeName     = "name"
)

// HandleUserUpdated reacts to a change made to a user outside the Engine.
// A password or active-flag change ends every session of the user; other
// changes are ignored.
func (e *Engine) HandleUserUpdated(ctx context.Context, userID string, changes ...string) (int, error) {
	if !e.ready() {
		return 0, ErrEngineNotReady
	}
	reason := ""
	for _, c := range changes {
		switch c {
		case ChangePassword:
			reason = ReasonPasswordChanged
		case ChangeActive:
			if reason == "" {
				reason = ReasonDeactivated
			}
		}
	}
	if reason == "" {
		return 0, nil
	}
	return e.InvalidateUserSessions(ctx, userID, reason)
}

// HandleUserDeleted ends every session of a removed user.
func (e *Engine) HandleUserDeleted(ctx context.Context, userID string) (int, error) {
	return e.InvalidateUserSessions(ctx, userID, ReasonUserDeleted)
}

// ReportSuspiciousActivity publishes security.suspicious_activity with
// details and ends every session of userID.
func (e *Engine) ReportSuspiciousActivity(ctx context.Context, userID string, details map[string]any) (int, error) {
	if !e.ready() {
		return 0, ErrEngineNotReady
	}

	data := make(map[string]any, len(details))
	for k, v := range details {
		data[k] = v
	}
	e.logger.Warn("suspicious activity reported", "user_id", userID)
	e.emit(ctx, EventSuspiciousActivity, func(ev *audit.Event) {
		ev.UserID = userID
		ev.Data = data
	})

	return e.InvalidateUserSessions(ctx, userID, ReasonSuspicious)
}
