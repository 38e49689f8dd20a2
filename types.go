package authcore

import (
	"context"
	"time"
)

// UserRecord is a user as stored in a Directory, credential hash included.
// It never leaves the Engine; callers receive [User].
type UserRecord struct {
	ID            string
	Email         string
	Name          string
	Role          string
	PasswordHash  string
	Active        bool
	EmailVerified bool
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// User is the sanitized view of a UserRecord. It has no credential fields.
type User struct {
	ID            string    `json:"id"`
	Email         string    `json:"email"`
	Name          string    `json:"name"`
	Role          string    `json:"role"`
	Active        bool      `json:"active"`
	EmailVerified bool      `json:"email_verified"`
	CreatedAt     time.Time `json:"created_at"`
}

// Sanitize drops the credential hash.
func (r *UserRecord) Sanitize() User {
	return User{
		ID:            r.ID,
		Email:         r.Email,
		Name:          r.Name,
		Role:          r.Role,
		Active:        r.Active,
		EmailVerified: r.EmailVerified,
		CreatedAt:     r.CreatedAt,
	}
}

// Directory is the user store the Engine reads and writes through. It must
// be safe for concurrent use.
//
// FindByEmail and FindByID return ErrUserNotFound when nothing matches. Save
// returns ErrDuplicateUser when the email is taken. Any other error is
// treated as an infrastructure failure and propagated to the caller.
type Directory interface {
	FindByEmail(ctx context.Context, email string) (*UserRecord, error)
	FindByID(ctx context.Context, id string) (*UserRecord, error)
	Save(ctx context.Context, user UserRecord) error
	UpdatePasswordHash(ctx context.Context, id, hash string) error
}

// EventBus publishes security events to the rest of the suite. Publish may
// block or fail; the Engine calls it from a background goroutine and only
// logs failures.
type EventBus interface {
	Publish(ctx context.Context, name string, payload map[string]any) error
}

// EventBusFunc adapts a function to EventBus.
type EventBusFunc func(ctx context.Context, name string, payload map[string]any) error

func (f EventBusFunc) Publish(ctx context.Context, name string, payload map[string]any) error {
	return f(ctx, name, payload)
}

// RegisterRequest is the input of Engine.Register. An empty Role means the
// configured default role.
type RegisterRequest struct {
	Email    string
	Password string
	Name     string
	Role     string
}

// LoginRequest is the input of Engine.Login. RememberMe extends the session
// lifetime from the session timeout to the remember TTL.
type LoginRequest struct {
	Email      string
	Password   string
	RememberMe bool
}

// TokenPair is handed to the client on login.
type TokenPair struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	ExpiresAt    time.Time `json:"expires_at"`
}

// SessionInfo is the public view of a session. It carries no token values.
type SessionInfo struct {
	ID           string    `json:"id"`
	UserID       string    `json:"user_id"`
	Role         string    `json:"role"`
	IssuedAt     time.Time `json:"issued_at"`
	LastActivity time.Time `json:"last_activity"`
	ExpiresAt    time.Time `json:"expires_at"`
	Remember     bool      `json:"remember"`
	ClientIP     string    `json:"client_ip,omitempty"`
	UserAgent    string    `json:"user_agent,omitempty"`
}

// LoginResult is returned by Engine.Login.
type LoginResult struct {
	User    User        `json:"user"`
	Session SessionInfo `json:"session"`
	Tokens  TokenPair   `json:"tokens"`
}

// RefreshResult is returned by Engine.Refresh. The refresh token itself is
// not rotated.
type RefreshResult struct {
	AccessToken string `json:"access_token"`
	User        User   `json:"user"`
}

// ValidateResult is returned by Engine.ValidateAccess.
type ValidateResult struct {
	User    User        `json:"user"`
	Session SessionInfo `json:"session"`
}

// Stats is a point-in-time view of the Engine's in-memory tables.
type Stats struct {
	ActiveSessions   int           `json:"active_sessions"`
	RefreshTokens    int           `json:"refresh_tokens"`
	LoginAttempts    int           `json:"login_attempts"`
	MaxLoginAttempts int           `json:"max_login_attempts"`
	SessionTimeout   time.Duration `json:"session_timeout"`
	EventsDropped    uint64        `json:"events_dropped"`
}
