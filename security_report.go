package authcore

import "time"

// SecurityReport summarizes the security-relevant settings of an Engine.
// It carries no key material.
type SecurityReport struct {
	SigningAlgorithm       string
	AccessTTL              time.Duration
	SessionTimeout         time.Duration
	RememberTTL            time.Duration
	PasswordAlgorithm      string
	BcryptCost             int
	Argon2                 PasswordConfigReport
	MinPasswordLength      int
	SpecialCharsRequired   bool
	HashUpgradeOnLogin     bool
	MaxLoginAttempts       int
	LockoutDuration        time.Duration
	// Refresh tokens stay valid until their session ends and the number of
	// sessions per user is unbounded, so both are always false.
	RefreshRotationEnabled bool
	SessionCapsActive      bool
	Roles                  []string
}

type PasswordConfigReport struct {
	Memory      uint32
	Time        uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
}

func (e *Engine) SecurityReport() SecurityReport {
	if e == nil {
		return SecurityReport{}
	}

	return SecurityReport{
		SigningAlgorithm:     e.config.JWT.SigningMethod,
		AccessTTL:            e.config.JWT.AccessTTL,
		SessionTimeout:       e.config.Session.Timeout,
		RememberTTL:          e.config.Session.RememberTTL,
		PasswordAlgorithm:    e.config.Password.Algorithm,
		BcryptCost:           e.config.Password.BcryptCost,
		MinPasswordLength:    e.config.Password.MinLength,
		SpecialCharsRequired: e.config.Password.RequireSpecialChars,
		HashUpgradeOnLogin:   e.config.Password.UpgradeOnLogin,
		Argon2: PasswordConfigReport{
			Memory:      e.config.Password.Argon2.Memory,
			Time:        e.config.Password.Argon2.Time,
			Parallelism: e.config.Password.Argon2.Parallelism,
			SaltLength:  e.config.Password.Argon2.SaltLength,
			KeyLength:   e.config.Password.Argon2.KeyLength,
		},
		MaxLoginAttempts:       e.config.Lockout.MaxAttempts,
		LockoutDuration:        e.config.Lockout.Duration,
		RefreshRotationEnabled: false,
		SessionCapsActive:      false,
		Roles:                  e.resolver.Roles(),
	}
}
