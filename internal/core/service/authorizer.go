package service

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/velora/commerce-api/internal/core/domain"
)

// PermissionResolver is the slice of PermissionService the authorizer needs.
type PermissionResolver interface {
	EffectivePermissions(ctx context.Context, roleID string) ([]string, error)
}

// AuthorizerService evaluates authorization requirements against a
// principal's permission set. Requirements are opt-in: a route with no
// requirement attached is not gated here.
type AuthorizerService struct {
	resolver PermissionResolver
	log      zerolog.Logger
}

// NewAuthorizerService builds the engine. resolver may be nil, in which case
// only the permission snapshot embedded in the access token is consulted.
func NewAuthorizerService(resolver PermissionResolver, log zerolog.Logger) *AuthorizerService {
	return &AuthorizerService{resolver: resolver, log: log}
}

// Authorize returns nil when the principal satisfies req, and a
// *domain.ForbiddenError naming the missing permission(s) otherwise.
//
// Only admin principals carry permissions: any other type is rejected outright
// whenever a requirement is present. The granted set is the token's snapshot
// merged with the role's current cached permissions, so role mutations take
// effect without re-login.
func (s *AuthorizerService) Authorize(ctx context.Context, p domain.Principal, req domain.Requirement) error {
	if req == nil {
		return nil
	}
	if !p.IsAdmin() {
		s.log.Debug().
			Str("principal_id", p.ID).
			Str("principal_type", p.Type).
			Str("requirement", req.String()).
			Msg("non-admin principal denied")
		return &domain.ForbiddenError{Missing: missing(nil, req)}
	}

	granted := s.grantedPermissions(ctx, p)
	if satisfies(granted, req) {
		return nil
	}

	err := &domain.ForbiddenError{Missing: missing(granted, req)}
	s.log.Info().
		Str("principal_id", p.ID).
		Str("role_id", p.RoleID).
		Strs("missing", err.Missing).
		Msg("authorization denied")
	return err
}

// grantedPermissions merges the token snapshot with the role's live
// permissions. A resolver failure degrades to the snapshot alone; the request
// is never failed by a cache or store outage here.
func (s *AuthorizerService) grantedPermissions(ctx context.Context, p domain.Principal) []string {
	granted := p.Permissions
	if s.resolver == nil || p.RoleID == "" {
		return granted
	}
	rolePerms, err := s.resolver.EffectivePermissions(ctx, p.RoleID)
	if err != nil {
		s.log.Warn().Err(err).Str("role_id", p.RoleID).Msg("permission lookup failed, using token snapshot")
		return granted
	}
	if len(granted) == 0 {
		return rolePerms
	}
	merged := make([]string, 0, len(granted)+len(rolePerms))
	merged = append(merged, granted...)
	merged = append(merged, rolePerms...)
	return merged
}

func satisfies(granted []string, req domain.Requirement) bool {
	switch r := req.(type) {
	case domain.ResourceAction:
		return domain.MatchPermission(granted, r.String())
	case domain.AnyOf:
		for _, perm := range r {
			if domain.MatchPermission(granted, perm) {
				return true
			}
		}
		return false
	case domain.AllOf:
		for _, perm := range r {
			if !domain.MatchPermission(granted, perm) {
				return false
			}
		}
		return len(r) > 0
	case domain.MinimumLevel:
		return domain.MatchLevel(granted, r.Resource, r.Level)
	default:
		return false
	}
}

// missing lists the permissions that would have satisfied req, for the
// Forbidden error message. For AllOf only the absent entries are listed.
func missing(granted []string, req domain.Requirement) []string {
	switch r := req.(type) {
	case domain.ResourceAction:
		return []string{r.String()}
	case domain.AnyOf:
		return append([]string(nil), r...)
	case domain.AllOf:
		var out []string
		for _, perm := range r {
			if !domain.MatchPermission(granted, perm) {
				out = append(out, perm)
			}
		}
		if out == nil {
			out = append([]string(nil), r...)
		}
		return out
	case domain.MinimumLevel:
		return []string{domain.FormatPermission(r.Level, r.Resource)}
	default:
		return nil
	}
}
