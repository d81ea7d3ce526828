package domain

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Sentinel errors shared across services. Handlers map these to HTTP statuses
// in a single place (internal/api/error_handler.go).
var (
	// ErrInvalidCredentials is returned for any login failure caused by the
	// supplied email or password. Deliberately generic: the caller must not
	// learn which of the two was wrong.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrInvalidToken covers malformed, expired, or wrongly-signed tokens,
	// including an access token presented where a refresh token is expected.
	ErrInvalidToken = errors.New("invalid or expired token")

	// ErrInvalidResetToken is returned when a password-reset token matches no
	// outstanding reset record, or the record has expired or was already used.
	ErrInvalidResetToken = errors.New("invalid or expired reset token")

	// ErrPasswordUnchanged rejects a password reset whose new password equals
	// the account's current one.
	ErrPasswordUnchanged = errors.New("new password must differ from current password")

	// ErrSessionNotFound is returned when a refresh token does not match the
	// server-side session record (logged out, rotated, or revoked).
	ErrSessionNotFound = errors.New("session not found")

	ErrAccountNotFound = errors.New("account not found")
	ErrEmailTaken      = errors.New("email already registered")
	ErrRoleNotFound    = errors.New("role not found")
)

// ForbiddenError is raised when an authenticated principal lacks a required
// permission. Missing holds the permission strings that would have satisfied
// the requirement, verbatim, so denials are auditable.
type ForbiddenError struct {
	Missing []string
}

func (e *ForbiddenError) Error() string {
	if len(e.Missing) == 0 {
		return "forbidden"
	}
	return fmt.Sprintf("forbidden: missing permission %s", strings.Join(e.Missing, ", "))
}

// AccountLockedError is returned while a credential identifier is locked out
// after repeated failed logins. RetryAfter is the remaining lockout duration.
type AccountLockedError struct {
	RetryAfter time.Duration
}

func (e *AccountLockedError) Error() string {
	minutes := int(e.RetryAfter.Minutes())
	if minutes < 1 {
		minutes = 1
	}
	return fmt.Sprintf("account locked, try again in %d minute(s)", minutes)
}
