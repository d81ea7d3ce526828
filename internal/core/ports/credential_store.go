package ports

import (
	"context"
	"time"

	"github.com/velora/commerce-api/internal/core/domain"
)

// FindOpts tunes credential lookups.
type FindOpts struct {
	// IncludeInactive also returns disabled/soft-deleted accounts. Login paths
	// leave this false so inactive accounts fail as "invalid credentials".
	IncludeInactive bool
}

// AccountPatch is a partial update applied to an account record. Nil fields
// are left untouched.
type AccountPatch struct {
	PasswordHash        *string
	LastLoginAt         *time.Time
	ResetTokenHash      *string
	ResetTokenExpiresAt *time.Time
}

// CredentialStore is the source of truth for account records.
type CredentialStore interface {
	FindByEmail(ctx context.Context, email string, opts FindOpts) (*domain.Account, error)
	FindByID(ctx context.Context, id string) (*domain.Account, error)
	Create(ctx context.Context, account *domain.Account) (*domain.Account, error)
	Update(ctx context.Context, id string, patch AccountPatch) error
	// FindWithActiveResetTokens returns every account holding an unexpired
	// reset token. Reset tokens are stored hashed and salted, so redemption
	// scans this set and verifies each candidate.
	FindWithActiveResetTokens(ctx context.Context, now time.Time) ([]*domain.Account, error)
}

// RoleStore is the source of truth for roles and their permission sets.
type RoleStore interface {
	FindByID(ctx context.Context, id string) (*domain.Role, error)
	AddPermission(ctx context.Context, roleID, permission string) error
	RemovePermission(ctx context.Context, roleID, permission string) error
	SetPermissions(ctx context.Context, roleID string, permissions []string) error
}
