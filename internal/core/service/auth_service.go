package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/velora/commerce-api/internal/api/metrics"
	"github.com/velora/commerce-api/internal/core/domain"
	"github.com/velora/commerce-api/internal/core/ports"
)

const (
	defaultLockoutThreshold = 10
	defaultLockoutWindow    = 15 * time.Minute
	defaultLockoutDuration  = 25 * time.Minute

	resetTokenTTL   = time.Hour
	resetTokenBytes = 32

	attemptsPrefix = "attempts:"
	lockoutPrefix  = "lockout:"
	resetPrefix    = "reset:"
)

// LockoutConfig tunes the failed-login state machine. Zero values fall back
// to the defaults (10 attempts in a 15 minute window, 25 minute lock).
type LockoutConfig struct {
	Threshold int
	Window    time.Duration
	Duration  time.Duration
}

// AuthServiceImpl composes the credential store, password hasher, token
// issuer, and permission cache into the login/lockout/reset flows.
//
// Lockout state lives in the cache under the security domain, keyed by email:
// an attempts counter with a window TTL, and a lockout flag with the lock
// duration as TTL. The two are mutually exclusive: engaging the lock clears
// the counter. Counter increments take no distributed lock; two simultaneous
// failures may both observe the same pre-increment value, which at worst
// tolerates one extra attempt before the lock engages.
type AuthServiceImpl struct {
	store      ports.CredentialStore
	perms      ports.PermissionService
	hasher     ports.PasswordHasher
	issuer     ports.TokenIssuer
	cache      ports.Cache
	lockout    LockoutConfig
	refreshTTL time.Duration
	log        zerolog.Logger
	now        func() time.Time
}

func NewAuthService(
	store ports.CredentialStore,
	perms ports.PermissionService,
	hasher ports.PasswordHasher,
	issuer ports.TokenIssuer,
	cache ports.Cache,
	lockout LockoutConfig,
	refreshTTL time.Duration,
	log zerolog.Logger,
) *AuthServiceImpl {
	if lockout.Threshold <= 0 {
		lockout.Threshold = defaultLockoutThreshold
	}
	if lockout.Window <= 0 {
		lockout.Window = defaultLockoutWindow
	}
	if lockout.Duration <= 0 {
		lockout.Duration = defaultLockoutDuration
	}
	if refreshTTL <= 0 {
		refreshTTL = 7 * 24 * time.Hour
	}
	return &AuthServiceImpl{
		store:      store,
		perms:      perms,
		hasher:     hasher,
		issuer:     issuer,
		cache:      cache,
		lockout:    lockout,
		refreshTTL: refreshTTL,
		log:        log,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// Register creates a customer or vendor account. Admin accounts are
// provisioned out of band with a role reference.
func (s *AuthServiceImpl) Register(ctx context.Context, email, password, accountType string) (*domain.Account, error) {
	email = normalizeEmail(email)
	if email == "" || password == "" {
		return nil, domain.ErrInvalidCredentials
	}
	if accountType == "" {
		accountType = domain.TypeCustomer
	}
	if !domain.ValidPrincipalType(accountType) || accountType == domain.TypeAdmin {
		return nil, fmt.Errorf("unsupported account type %q", accountType)
	}

	hash, err := s.hasher.Hash(password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	now := s.now()
	account := &domain.Account{
		Email:        email,
		PasswordHash: hash,
		Type:         accountType,
		Active:       true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	created, err := s.store.Create(ctx, account)
	if err != nil {
		return nil, err
	}
	s.log.Info().Str("account_id", created.ID).Str("type", accountType).Msg("account registered")
	return created, nil
}

// Login runs the credential check in a fixed order: lockout gate, account
// lookup (active only), password verify. Failures of the last two increment
// the attempts counter and surface the same generic error either way. Success
// clears the counter, stamps the last login, issues a token pair, and
// persists the refresh token server-side so it can be revoked later.
func (s *AuthServiceImpl) Login(ctx context.Context, email, password string) (*ports.LoginResult, error) {
	email = normalizeEmail(email)
	if email == "" || password == "" {
		return nil, domain.ErrInvalidCredentials
	}

	if err := s.checkAccountLockout(ctx, email); err != nil {
		return nil, err
	}

	account, err := s.store.FindByEmail(ctx, email, ports.FindOpts{})
	if err != nil {
		if err == domain.ErrAccountNotFound {
			s.handleFailedLogin(ctx, email)
			return nil, domain.ErrInvalidCredentials
		}
		return nil, err
	}

	if !s.hasher.Verify(password, account.PasswordHash) {
		s.handleFailedLogin(ctx, email)
		return nil, domain.ErrInvalidCredentials
	}

	s.resetFailedLoginAttempts(ctx, email)

	if s.hasher.NeedsRehash(account.PasswordHash) {
		if hash, err := s.hasher.Hash(password); err == nil {
			if err := s.store.Update(ctx, account.ID, ports.AccountPatch{PasswordHash: &hash}); err != nil {
				s.log.Warn().Err(err).Str("account_id", account.ID).Msg("password rehash persist failed")
			}
		}
	}

	lastLogin := s.now()
	if err := s.store.Update(ctx, account.ID, ports.AccountPatch{LastLoginAt: &lastLogin}); err != nil {
		s.log.Warn().Err(err).Str("account_id", account.ID).Msg("last login update failed")
	}
	account.LastLoginAt = lastLogin

	tokens, err := s.issueTokens(ctx, account)
	if err != nil {
		return nil, err
	}
	s.log.Info().Str("account_id", account.ID).Str("type", account.Type).Msg("login succeeded")
	return &ports.LoginResult{Account: account, Tokens: tokens}, nil
}

// Refresh redeems a refresh token for a new pair. The presented token must
// match the server-side session record exactly; the permission snapshot is
// recomputed, and the stored token is rotated.
func (s *AuthServiceImpl) Refresh(ctx context.Context, refreshToken string) (*ports.TokenPair, error) {
	principal, err := s.issuer.VerifyRefresh(refreshToken)
	if err != nil {
		return nil, err
	}

	stored, err := s.cache.Get(ctx, ports.CacheDomainSessions, principal.ID)
	if err != nil || stored != refreshToken {
		return nil, domain.ErrSessionNotFound
	}

	account, err := s.store.FindByID(ctx, principal.ID)
	if err != nil {
		return nil, domain.ErrInvalidToken
	}
	if !account.Active {
		return nil, domain.ErrInvalidToken
	}

	return s.issueTokens(ctx, account)
}

// Logout revokes the account's stored refresh token. The access token stays
// valid until its exp; revocation is only possible on the refresh path.
func (s *AuthServiceImpl) Logout(ctx context.Context, accountID string) error {
	return s.cache.Delete(ctx, ports.CacheDomainSessions, accountID)
}

// GenerateResetToken creates a single-use reset token for the account. Only
// its salted one-way hash is persisted (store of truth plus a cache mirror
// for fast validity checks); the plaintext is returned once for out-of-band
// delivery and is never recoverable afterwards.
func (s *AuthServiceImpl) GenerateResetToken(ctx context.Context, email string) (string, error) {
	email = normalizeEmail(email)
	account, err := s.store.FindByEmail(ctx, email, ports.FindOpts{})
	if err != nil {
		return "", err
	}

	raw := make([]byte, resetTokenBytes)
	if _, err := rand.Read(raw); err != nil {
		return "", fmt.Errorf("reset token: %w", err)
	}
	plaintext := hex.EncodeToString(raw)

	hash, err := s.hasher.Hash(plaintext)
	if err != nil {
		return "", fmt.Errorf("reset token hash: %w", err)
	}

	expiry := s.now().Add(resetTokenTTL)
	patch := ports.AccountPatch{ResetTokenHash: &hash, ResetTokenExpiresAt: &expiry}
	if err := s.store.Update(ctx, account.ID, patch); err != nil {
		return "", fmt.Errorf("persist reset token: %w", err)
	}

	opts := ports.CacheOptions{TTL: resetTokenTTL}
	if err := s.cache.Set(ctx, ports.CacheDomainSecurity, resetPrefix+account.ID, hash, opts); err != nil {
		s.log.Warn().Err(err).Str("account_id", account.ID).Msg("reset token cache mirror failed")
	}

	s.log.Info().Str("account_id", account.ID).Msg("reset token generated")
	return plaintext, nil
}

// ResetPasswordWithToken redeems a reset token. Hashes are salted per token,
// so there is no index to look the token up by: every unexpired reset record
// is scanned and checked via the hasher until one verifies. On success the
// token is cleared (single use), failed-login state is reset, and the stored
// refresh token is revoked to force a fresh login.
func (s *AuthServiceImpl) ResetPasswordWithToken(ctx context.Context, token, newPassword string) error {
	if token == "" || newPassword == "" {
		return domain.ErrInvalidResetToken
	}

	candidates, err := s.store.FindWithActiveResetTokens(ctx, s.now())
	if err != nil {
		return fmt.Errorf("load reset candidates: %w", err)
	}

	var account *domain.Account
	for _, c := range candidates {
		if s.hasher.Verify(token, c.ResetTokenHash) {
			account = c
			break
		}
	}
	if account == nil {
		return domain.ErrInvalidResetToken
	}

	// Compared through the hasher: plaintext equality is unknowable and the
	// stored hash is salted.
	if s.hasher.Verify(newPassword, account.PasswordHash) {
		return domain.ErrPasswordUnchanged
	}

	hash, err := s.hasher.Hash(newPassword)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	cleared := ""
	var zero time.Time
	patch := ports.AccountPatch{
		PasswordHash:        &hash,
		ResetTokenHash:      &cleared,
		ResetTokenExpiresAt: &zero,
	}
	if err := s.store.Update(ctx, account.ID, patch); err != nil {
		return fmt.Errorf("persist new password: %w", err)
	}

	// Best-effort cleanup of ephemeral state. The refresh token revocation is
	// the security boundary: a reset performed by whoever intercepted the
	// token delivery must not leave an attacker session alive.
	if err := s.cache.Delete(ctx, ports.CacheDomainSecurity,
		resetPrefix+account.ID, attemptsPrefix+account.Email, lockoutPrefix+account.Email); err != nil {
		s.log.Warn().Err(err).Str("account_id", account.ID).Msg("reset state cleanup failed")
	}
	if err := s.cache.Delete(ctx, ports.CacheDomainSessions, account.ID); err != nil {
		s.log.Warn().Err(err).Str("account_id", account.ID).Msg("refresh token revocation failed")
	}

	s.log.Info().Str("account_id", account.ID).Msg("password reset completed")
	return nil
}

// checkAccountLockout gates the login before any credential work. It reads
// only the TTL of the lockout flag and does not consume an attempt.
func (s *AuthServiceImpl) checkAccountLockout(ctx context.Context, email string) error {
	ttl, err := s.cache.TTL(ctx, ports.CacheDomainSecurity, lockoutPrefix+email)
	if err != nil {
		// A cache outage must not lock everyone out.
		s.log.Warn().Err(err).Msg("lockout check failed, allowing attempt")
		return nil
	}
	if ttl > 0 {
		return &domain.AccountLockedError{RetryAfter: ttl}
	}
	return nil
}

// handleFailedLogin increments the windowed attempts counter and, at the
// threshold, swaps it for the lockout flag. Writes are best-effort: the login
// has already failed on credentials, so a cache failure here is logged and
// the lockout simply may not engage.
func (s *AuthServiceImpl) handleFailedLogin(ctx context.Context, email string) {
	attempts, err := s.cache.Increment(ctx, ports.CacheDomainSecurity, attemptsPrefix+email, s.lockout.Window)
	if err != nil {
		s.log.Warn().Err(err).Msg("failed-attempt counter increment failed")
		return
	}
	if attempts < int64(s.lockout.Threshold) {
		return
	}

	opts := ports.CacheOptions{TTL: s.lockout.Duration}
	if err := s.cache.Set(ctx, ports.CacheDomainSecurity, lockoutPrefix+email, "1", opts); err != nil {
		s.log.Warn().Err(err).Msg("lockout flag write failed, lockout not engaged")
		return
	}
	if err := s.cache.Delete(ctx, ports.CacheDomainSecurity, attemptsPrefix+email); err != nil {
		s.log.Warn().Err(err).Msg("attempts counter clear failed")
	}
	metrics.LockoutsEngagedTotal.Inc()
	s.log.Info().Str("email", email).Int64("attempts", attempts).Msg("account lockout engaged")
}

// resetFailedLoginAttempts clears the counter. Called only after the password
// verified correct.
func (s *AuthServiceImpl) resetFailedLoginAttempts(ctx context.Context, email string) {
	if err := s.cache.Delete(ctx, ports.CacheDomainSecurity, attemptsPrefix+email); err != nil {
		s.log.Warn().Err(err).Msg("attempts counter reset failed")
	}
}

// issueTokens recomputes the permission snapshot, signs a pair, and persists
// the refresh token in the session store for later revocation.
func (s *AuthServiceImpl) issueTokens(ctx context.Context, account *domain.Account) (*ports.TokenPair, error) {
	principal := domain.Principal{
		ID:     account.ID,
		Email:  account.Email,
		Type:   account.Type,
		RoleID: account.RoleID,
	}
	if account.Type == domain.TypeAdmin && account.RoleID != "" && s.perms != nil {
		perms, err := s.perms.EffectivePermissions(ctx, account.RoleID)
		if err != nil {
			s.log.Warn().Err(err).Str("role_id", account.RoleID).Msg("permission snapshot unavailable at issuance")
		} else {
			principal.Permissions = perms
		}
	}

	tokens, err := s.issuer.GeneratePair(principal)
	if err != nil {
		return nil, fmt.Errorf("issue tokens: %w", err)
	}

	opts := ports.CacheOptions{TTL: s.refreshTTL}
	if err := s.cache.Set(ctx, ports.CacheDomainSessions, account.ID, tokens.RefreshToken, opts); err != nil {
		// Without the session record the refresh token cannot be redeemed;
		// fail loudly rather than hand out an unusable pair.
		return nil, fmt.Errorf("persist session: %w", err)
	}
	return tokens, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
