package authcore

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/fusione/authcore/password"
)

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

const (
	passwordSpecialChars = `!@#$%^&*(),.?":{}|<>`
	maxEmailLength       = 254
	maxPasswordBytes     = 1024
)

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// validateRegistration checks req against the configured policy and returns
// it with email, name and role normalized.
func (e *Engine) validateRegistration(req RegisterRequest) (RegisterRequest, error) {
	req.Email = normalizeEmail(req.Email)
	req.Name = strings.TrimSpace(req.Name)
	req.Role = strings.TrimSpace(req.Role)

	if err := validateEmail(req.Email); err != nil {
		return req, err
	}
	if err := e.validatePassword(req.Password); err != nil {
		return req, err
	}

	n := utf8.RuneCountInString(req.Name)
	switch {
	case n == 0:
		return req, validationError("name", "is required")
	case n < e.config.Registration.NameMinLength:
		return req, validationError("name", "is too short")
	case n > e.config.Registration.NameMaxLength:
		return req, validationError("name", "is too long")
	}

	if req.Role == "" {
		req.Role = e.config.Registration.DefaultRole
	}
	if !e.resolver.HasRole(req.Role) {
		return req, validationError("role", "is not a known role")
	}

	return req, nil
}

func validateEmail(email string) error {
	if email == "" {
		return validationError("email", "is required")
	}
	if len(email) > maxEmailLength || !emailPattern.MatchString(email) {
		return validationError("email", "is not a valid address")
	}
	return nil
}

func (e *Engine) validatePassword(plain string) error {
	policy := e.config.Password
	if plain == "" {
		return validationError("password", "is required")
	}
	if utf8.RuneCountInString(plain) < policy.MinLength {
		return validationError("password", "is too short")
	}
	limit := maxPasswordBytes
	if policy.Algorithm == password.AlgorithmBcrypt {
		limit = password.MaxBcryptBytes
	}
	if len(plain) > limit {
		return validationError("password", "is too long")
	}
	if policy.RequireSpecialChars && !strings.ContainsAny(plain, passwordSpecialChars) {
		return validationError("password", "must contain a special character")
	}
	return nil
}
