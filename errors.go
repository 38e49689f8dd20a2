package authcore

import (
	"errors"
	"fmt"
	"math"
	"time"
)

// ErrorKind enumerates every failure the Engine reports to callers.
type ErrorKind uint8

const (
	KindUnknown ErrorKind = iota
	KindValidation
	KindDuplicateUser
	KindInvalidCredentials
	KindAccountLocked
	KindInactiveAccount
	KindSessionNotFound
	KindInvalidRefreshToken
	KindInvalidAccessToken
)

func (k ErrorKind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindDuplicateUser:
		return "duplicate_user"
	case KindInvalidCredentials:
		return "invalid_credentials"
	case KindAccountLocked:
		return "account_locked"
	case KindInactiveAccount:
		return "inactive_account"
	case KindSessionNotFound:
		return "session_not_found"
	case KindInvalidRefreshToken:
		return "invalid_refresh_token"
	case KindInvalidAccessToken:
		return "invalid_access_token"
	default:
		return "unknown"
	}
}

// Error is the single error type returned for domain failures. Field and
// Reason are set for KindValidation; RetryAfter for KindAccountLocked.
//
// errors.Is matches an *Error against the sentinels below by Kind alone, so
// errors.Is(err, ErrValidation) holds for every validation failure.
type Error struct {
	Kind       ErrorKind
	Field      string
	Reason     string
	RetryAfter time.Duration
}

func (e *Error) Error() string {
	switch e.Kind {
	case KindValidation:
		if e.Field != "" {
			return fmt.Sprintf("validation failed: %s: %s", e.Field, e.Reason)
		}
		return "validation failed: " + e.Reason
	case KindDuplicateUser:
		return "user already exists"
	case KindInvalidCredentials:
		return "invalid credentials"
	case KindAccountLocked:
		if e.RetryAfter > 0 {
			minutes := int(math.Ceil(e.RetryAfter.Minutes()))
			return fmt.Sprintf("account locked, try again in %d minute(s)", minutes)
		}
		return "account locked"
	case KindInactiveAccount:
		return "account inactive"
	case KindSessionNotFound:
		return "session not found"
	case KindInvalidRefreshToken:
		return "invalid or expired refresh token"
	case KindInvalidAccessToken:
		return "invalid or expired access token"
	default:
		return "authcore error"
	}
}

// Is reports whether target is an *Error of the same kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}

var (
	// ErrValidation matches any input validation failure.
	ErrValidation = &Error{Kind: KindValidation}
	// ErrDuplicateUser is returned when the email is already registered.
	ErrDuplicateUser = &Error{Kind: KindDuplicateUser}
	// ErrInvalidCredentials is the generic login failure. It does not reveal
	// whether the email exists.
	ErrInvalidCredentials = &Error{Kind: KindInvalidCredentials}
	// ErrAccountLocked matches lockouts; use errors.As for RetryAfter.
	ErrAccountLocked = &Error{Kind: KindAccountLocked}
	// ErrInactiveAccount is returned for deactivated accounts.
	ErrInactiveAccount = &Error{Kind: KindInactiveAccount}
	// ErrSessionNotFound is returned by Logout for unknown sessions.
	ErrSessionNotFound = &Error{Kind: KindSessionNotFound}
	// ErrInvalidRefreshToken covers unknown, expired and orphaned refresh
	// tokens.
	ErrInvalidRefreshToken = &Error{Kind: KindInvalidRefreshToken}
	// ErrInvalidAccessToken is the single outcome of every failed
	// ValidateAccess.
	ErrInvalidAccessToken = &Error{Kind: KindInvalidAccessToken}
)

// Errors that are not part of the closed domain set.
var (
	// ErrUserNotFound is returned by a Directory when no user matches.
	ErrUserNotFound = errors.New("user not found")
	// ErrEngineNotReady is returned when a nil or closed Engine is used.
	ErrEngineNotReady = errors.New("engine not initialized")
)

func validationError(field, reason string) *Error {
	return &Error{Kind: KindValidation, Field: field, Reason: reason}
}

func lockedError(retryAfter time.Duration) *Error {
	return &Error{Kind: KindAccountLocked, RetryAfter: retryAfter}
}

// KindOf returns the Kind of the first *Error in err's chain, or
// KindUnknown.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// IsUnauthenticated collapses the token and session failures callers
// usually answer with the same 401.
func IsUnauthenticated(err error) bool {
	switch KindOf(err) {
	case KindInvalidAccessToken, KindInvalidRefreshToken, KindSessionNotFound:
		return true
	default:
		return false
	}
}
