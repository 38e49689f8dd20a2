package authcore

import (
	"errors"
	"fmt"
	"time"

	"github.com/fusione/authcore/password"
	"github.com/fusione/authcore/permission"
)

// Config is the complete Engine configuration. Start from DefaultConfig and
// set at least JWT.PrivateKey.
type Config struct {
	JWT          JWTConfig
	Session      SessionConfig
	Password     PasswordConfig
	Lockout      LockoutConfig
	Registration RegistrationConfig
	Events       EventsConfig
	Metrics      MetricsConfig

	// Roles maps role names to permission names. "*" grants everything.
	Roles map[string][]string
}

// JWTConfig configures access tokens. For hs256 PrivateKey is the shared
// secret (at least 32 bytes); for ed25519 it is the signing key and
// PublicKey the verification key.
type JWTConfig struct {
	AccessTTL     time.Duration
	SigningMethod string // "hs256" (default) or "ed25519"
	PrivateKey    []byte
	PublicKey     []byte
	Issuer        string
	Leeway        time.Duration
}

// SessionConfig configures session lifetimes and the reaper.
type SessionConfig struct {
	// Timeout is both the lifetime of a normal session and the idle limit
	// after which any session is evicted.
	Timeout time.Duration
	// RememberTTL is the lifetime of a remember-me session.
	RememberTTL  time.Duration
	ReapInterval time.Duration
	Shards       int
}

// PasswordConfig configures hashing and the registration password policy.
type PasswordConfig struct {
	Algorithm           string // "bcrypt" (default) or "argon2id"
	BcryptCost          int
	Argon2              password.Argon2Config
	MinLength           int
	RequireSpecialChars bool
	UpgradeOnLogin      bool
	// HashConcurrency bounds parallel hash/verify work. Zero means
	// GOMAXPROCS.
	HashConcurrency int
}

// LockoutConfig configures the login attempt guard.
type LockoutConfig struct {
	MaxAttempts int
	Duration    time.Duration
}

// RegistrationConfig configures Register.
type RegistrationConfig struct {
	DefaultRole   string
	NameMinLength int
	NameMaxLength int
}

// EventsConfig configures the security event dispatcher.
type EventsConfig struct {
	BufferSize     int
	PublishTimeout time.Duration
}

// MetricsConfig toggles in-process counters and latency histograms.
type MetricsConfig struct {
	Enabled                 bool
	EnableLatencyHistograms bool
}

// DefaultConfig returns the production defaults. The signing key is left
// empty and must be supplied.
func DefaultConfig() Config {
	return Config{
		JWT: JWTConfig{
			AccessTTL:     24 * time.Hour,
			SigningMethod: "hs256",
			Issuer:        "authcore",
		},
		Session: SessionConfig{
			Timeout:      30 * time.Minute,
			RememberTTL:  7 * 24 * time.Hour,
			ReapInterval: 5 * time.Minute,
			Shards:       32,
		},
		Password: PasswordConfig{
			Algorithm:           password.AlgorithmBcrypt,
			BcryptCost:          password.DefaultBcryptCost,
			Argon2:              password.DefaultArgon2Config(),
			MinLength:           8,
			RequireSpecialChars: true,
			UpgradeOnLogin:      true,
		},
		Lockout: LockoutConfig{
			MaxAttempts: 5,
			Duration:    15 * time.Minute,
		},
		Registration: RegistrationConfig{
			DefaultRole:   "user",
			NameMinLength: 2,
			NameMaxLength: 128,
		},
		Events: EventsConfig{
			BufferSize:     1024,
			PublishTimeout: 5 * time.Second,
		},
		Metrics: MetricsConfig{
			Enabled:                 true,
			EnableLatencyHistograms: true,
		},
		Roles: permission.DefaultRoles(),
	}
}

func cloneConfig(cfg Config) Config {
	out := cfg
	out.JWT.PrivateKey = cloneBytes(cfg.JWT.PrivateKey)
	out.JWT.PublicKey = cloneBytes(cfg.JWT.PublicKey)
	if cfg.Roles != nil {
		out.Roles = make(map[string][]string, len(cfg.Roles))
		for role, perms := range cfg.Roles {
			out.Roles[role] = append([]string(nil), perms...)
		}
	}
	return out
}

func cloneBytes(b []byte) []byte {
	if len(b) == 0 {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	// JWT
	if c.JWT.AccessTTL <= 0 {
		return errors.New("JWT AccessTTL must be > 0")
	}
	switch c.JWT.SigningMethod {
	case "hs256":
		if len(c.JWT.PrivateKey) < 32 {
			return errors.New("hs256 requires a PrivateKey of at least 32 bytes")
		}
	case "ed25519":
		if len(c.JWT.PrivateKey) == 0 {
			return errors.New("ed25519 requires PrivateKey")
		}
		if len(c.JWT.PublicKey) == 0 {
			return errors.New("ed25519 requires PublicKey")
		}
	default:
		return errors.New("unsupported JWT signing method")
	}

	// Session
	if c.Session.Timeout <= 0 {
		return errors.New("Session Timeout must be > 0")
	}
	if c.Session.RememberTTL < c.Session.Timeout {
		return errors.New("Session RememberTTL must be >= Timeout")
	}
	if c.Session.ReapInterval <= 0 {
		return errors.New("Session ReapInterval must be > 0")
	}
	if c.Session.Shards < 0 {
		return errors.New("Session Shards must be >= 0")
	}

	// Password
	switch c.Password.Algorithm {
	case password.AlgorithmBcrypt, password.AlgorithmArgon2id:
	default:
		return fmt.Errorf("unsupported password algorithm %q", c.Password.Algorithm)
	}
	if c.Password.MinLength < 1 {
		return errors.New("Password MinLength must be >= 1")
	}
	if c.Password.Algorithm == password.AlgorithmBcrypt && c.Password.MinLength > password.MaxBcryptBytes {
		return errors.New("Password MinLength exceeds the bcrypt input limit")
	}
	if c.Password.HashConcurrency < 0 {
		return errors.New("Password HashConcurrency must be >= 0")
	}

	// Lockout
	if c.Lockout.MaxAttempts < 1 {
		return errors.New("Lockout MaxAttempts must be >= 1")
	}
	if c.Lockout.Duration <= 0 {
		return errors.New("Lockout Duration must be > 0")
	}

	// Registration
	if c.Registration.NameMinLength < 1 {
		return errors.New("Registration NameMinLength must be >= 1")
	}
	if c.Registration.NameMaxLength < c.Registration.NameMinLength {
		return errors.New("Registration NameMaxLength must be >= NameMinLength")
	}
	if len(c.Roles) == 0 {
		return errors.New("at least one role is required")
	}
	if _, ok := c.Roles[c.Registration.DefaultRole]; !ok {
		return errors.New("Registration DefaultRole is not a configured role")
	}

	// Events
	if c.Events.BufferSize < 1 {
		return errors.New("Events BufferSize must be >= 1")
	}
	if c.Events.PublishTimeout < 0 {
		return errors.New("Events PublishTimeout must be >= 0")
	}

	return nil
}
