package ports

import (
	"context"

	"github.com/velora/commerce-api/internal/core/domain"
)

// PasswordHasher provides one-way hashing for passwords and reset tokens.
type PasswordHasher interface {
	Hash(plain string) (string, error)
	Verify(plain, encoded string) bool
	// NeedsRehash reports whether encoded was produced with weaker parameters
	// than the hasher's current ones.
	NeedsRehash(encoded string) bool
}

// TokenPair is the credential bundle returned to the HTTP layer.
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
	// ExpiresIn is the access token lifetime in seconds.
	ExpiresIn int64 `json:"expires_in"`
}

// TokenIssuer signs and verifies the access/refresh token pair. The two token
// kinds use distinct secrets; verification of one kind must reject tokens of
// the other even when structurally well-formed.
type TokenIssuer interface {
	GeneratePair(principal domain.Principal) (*TokenPair, error)
	VerifyAccess(token string) (*domain.Principal, error)
	VerifyRefresh(token string) (*domain.Principal, error)
}

// LoginResult bundles the issued tokens with the authenticated account.
type LoginResult struct {
	Account *domain.Account
	Tokens  *TokenPair
}

// AuthService orchestrates registration, login with lockout, token refresh,
// and the password-reset flow.
type AuthService interface {
	Register(ctx context.Context, email, password, accountType string) (*domain.Account, error)
	Login(ctx context.Context, email, password string) (*LoginResult, error)
	Refresh(ctx context.Context, refreshToken string) (*TokenPair, error)
	Logout(ctx context.Context, accountID string) error
	// GenerateResetToken returns the plaintext token for out-of-band
	// delivery; only its hash is persisted.
	GenerateResetToken(ctx context.Context, email string) (string, error)
	ResetPasswordWithToken(ctx context.Context, token, newPassword string) error
}

// PermissionService resolves role permissions through the cache and applies
// role mutations with tag invalidation and bus notification.
type PermissionService interface {
	EffectivePermissions(ctx context.Context, roleID string) ([]string, error)
	DirectPermissions(ctx context.Context, roleID string) ([]string, error)
	// EffectivePermissionsForRoles batch-resolves several roles at once using
	// the cache's mget/mset path.
	EffectivePermissionsForRoles(ctx context.Context, roleIDs []string) (map[string][]string, error)
	AddPermissionToRole(ctx context.Context, roleID, permission string) error
	RemovePermissionFromRole(ctx context.Context, roleID, permission string) error
	SetRolePermissions(ctx context.Context, roleID string, permissions []string) error
	InvalidateRole(ctx context.Context, roleID string) error
	InvalidateAllPermissions(ctx context.Context) error
}

// Authorizer decides whether a principal may perform the action described by
// a requirement. A nil requirement always passes: authorization is opt-in per
// route.
type Authorizer interface {
	Authorize(ctx context.Context, principal domain.Principal, req domain.Requirement) error
}
