package authcore

import (
	"context"
	"errors"
	"fmt"

	"github.com/fusione/authcore/internal/audit"
	"github.com/google/uuid"
)

// Register validates req, hashes the password and saves a new active user.
// The returned User carries no credential fields.
func (e *Engine) Register(ctx context.Context, req RegisterRequest) (*User, error) {
	if !e.ready() {
		return nil, ErrEngineNotReady
	}

	req, err := e.validateRegistration(req)
	if err != nil {
		e.metricInc(MetricRegisterInvalid)
		return nil, err
	}

	existing, err := e.directory.FindByEmail(ctx, req.Email)
	switch {
	case err == nil && existing != nil:
		e.metricInc(MetricRegisterDuplicate)
		return nil, ErrDuplicateUser
	case err != nil && !errors.Is(err, ErrUserNotFound):
		return nil, fmt.Errorf("authcore: find user: %w", err)
	}

	hash, err := e.hasher.Hash(ctx, req.Password)
	if err != nil {
		return nil, fmt.Errorf("authcore: hash password: %w", err)
	}

	now := e.now().UTC()
	record := UserRecord{
		ID:           uuid.NewString(),
		Email:        req.Email,
		Name:         req.Name,
		Role:         req.Role,
		PasswordHash: hash,
		Active:       true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := e.directory.Save(ctx, record); err != nil {
		if errors.Is(err, ErrDuplicateUser) {
			e.metricInc(MetricRegisterDuplicate)
			return nil, ErrDuplicateUser
		}
		return nil, fmt.Errorf("authcore: save user: %w", err)
	}

	e.metricInc(MetricRegisterSuccess)
	e.logger.Info("user registered", "user_id", record.ID, "role", record.Role)
	e.emit(ctx, EventUserRegistered, func(ev *audit.Event) {
		ev.UserID = record.ID
		ev.Data = map[string]any{
			"email": record.Email,
			"role":  record.Role,
		}
	})

	user := record.Sanitize()
	return &user, nil
}
