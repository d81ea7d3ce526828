package domain

import "time"

// Account models a credential record in the store of truth. PasswordHash and
// ResetTokenHash are Argon2id PHC strings; the plaintext of neither is ever
// persisted.
type Account struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	Type         string    `json:"type"`
	RoleID       string    `json:"role_id,omitempty"`
	Active       bool      `json:"active"`
	LastLoginAt  time.Time `json:"last_login_at,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`

	// Password-reset state. A non-empty hash with a future expiry is an
	// outstanding single-use reset token.
	ResetTokenHash      string    `json:"-"`
	ResetTokenExpiresAt time.Time `json:"-"`
}

// ResetTokenValid reports whether the account holds an unexpired reset token.
func (a *Account) ResetTokenValid(now time.Time) bool {
	return a.ResetTokenHash != "" && now.Before(a.ResetTokenExpiresAt)
}

// Role owns a set of permission strings. Order is irrelevant and duplicates
// are tolerated; evaluation is a membership test. A role may inherit from a
// parent role; effective permissions are the union up the parent chain.
type Role struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	ParentID    string   `json:"parent_id,omitempty"`
	Permissions []string `json:"permissions"`
}
