// Package token issues and verifies the signed access/refresh token pair.
//
// The two token kinds are signed with independent secrets, and each carries a
// token_type claim as a second line of defense: even with misconfigured
// (identical) secrets, an access token presented on the refresh path is
// rejected by the discriminator.
package token

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/velora/commerce-api/internal/core/domain"
	"github.com/velora/commerce-api/internal/core/ports"
)

const (
	typeAccess  = "access"
	typeRefresh = "refresh"

	defaultAccessTTL  = 15 * time.Minute
	defaultRefreshTTL = 7 * 24 * time.Hour
)

// Claims is the JWT payload for both token kinds. The refresh token carries
// no permission snapshot; permissions are recomputed when it is redeemed.
type Claims struct {
	Email       string   `json:"email,omitempty"`
	AccountType string   `json:"type,omitempty"`
	RoleID      string   `json:"role_id,omitempty"`
	Permissions []string `json:"permissions,omitempty"`
	TokenType   string   `json:"token_type"`
	jwt.RegisteredClaims
}

// Config holds the issuer secrets and lifetimes. Zero TTLs fall back to the
// defaults (15m access, 7d refresh).
type Config struct {
	AccessSecret  string
	RefreshSecret string
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
}

// Issuer implements ports.TokenIssuer with HS256 signatures. It is immutable
// after construction and safe for concurrent use.
type Issuer struct {
	accessSecret  []byte
	refreshSecret []byte
	accessTTL     time.Duration
	refreshTTL    time.Duration
}

func NewIssuer(cfg Config) (*Issuer, error) {
	if cfg.AccessSecret == "" || cfg.RefreshSecret == "" {
		return nil, errors.New("token: access and refresh secrets are required")
	}
	if cfg.AccessSecret == cfg.RefreshSecret {
		return nil, errors.New("token: access and refresh secrets must differ")
	}
	iss := &Issuer{
		accessSecret:  []byte(cfg.AccessSecret),
		refreshSecret: []byte(cfg.RefreshSecret),
		accessTTL:     cfg.AccessTTL,
		refreshTTL:    cfg.RefreshTTL,
	}
	if iss.accessTTL <= 0 {
		iss.accessTTL = defaultAccessTTL
	}
	if iss.refreshTTL <= 0 {
		iss.refreshTTL = defaultRefreshTTL
	}
	return iss, nil
}

// GeneratePair signs a fresh access/refresh pair for the principal. The
// access token embeds the principal's permission snapshot for stateless
// authorization; the refresh token omits it.
func (i *Issuer) GeneratePair(p domain.Principal) (*ports.TokenPair, error) {
	now := time.Now().UTC()

	access, err := i.sign(p, typeAccess, i.accessSecret, now, i.accessTTL, true)
	if err != nil {
		return nil, fmt.Errorf("token: sign access: %w", err)
	}
	refresh, err := i.sign(p, typeRefresh, i.refreshSecret, now, i.refreshTTL, false)
	if err != nil {
		return nil, fmt.Errorf("token: sign refresh: %w", err)
	}

	return &ports.TokenPair{
		AccessToken:  access,
		RefreshToken: refresh,
		TokenType:    "Bearer",
		ExpiresIn:    int64(i.accessTTL.Seconds()),
	}, nil
}

// VerifyAccess validates an access token and rebuilds its principal.
func (i *Issuer) VerifyAccess(token string) (*domain.Principal, error) {
	return i.verify(token, i.accessSecret, typeAccess)
}

// VerifyRefresh validates a refresh token against the refresh secret. Access
// tokens fail here on signature before the discriminator is even consulted.
func (i *Issuer) VerifyRefresh(token string) (*domain.Principal, error) {
	return i.verify(token, i.refreshSecret, typeRefresh)
}

func (i *Issuer) sign(p domain.Principal, tokenType string, secret []byte, now time.Time, ttl time.Duration, snapshot bool) (string, error) {
	claims := Claims{
		Email:       p.Email,
		AccountType: p.Type,
		RoleID:      p.RoleID,
		TokenType:   tokenType,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   p.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	if snapshot {
		claims.Permissions = p.Permissions
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
}

func (i *Issuer) verify(token string, secret []byte, wantType string) (*domain.Principal, error) {
	var claims Claims
	parsed, err := jwt.ParseWithClaims(token, &claims, func(t *jwt.Token) (interface{}, error) {
		if t.Method.Alg() != jwt.SigningMethodHS256.Alg() {
			return nil, jwt.ErrTokenSignatureInvalid
		}
		return secret, nil
	})
	if err != nil || !parsed.Valid {
		return nil, domain.ErrInvalidToken
	}
	if claims.TokenType != wantType {
		return nil, domain.ErrInvalidToken
	}

	return &domain.Principal{
		ID:          claims.Subject,
		Email:       claims.Email,
		Type:        claims.AccountType,
		RoleID:      claims.RoleID,
		Permissions: claims.Permissions,
	}, nil
}
