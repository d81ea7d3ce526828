package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/velora/commerce-api/internal/api/metrics"
	"github.com/velora/commerce-api/internal/core/domain"
	"github.com/velora/commerce-api/internal/core/ports"
)

const (
	permissionTTL = time.Hour

	effectivePrefix = "effective:"
	directPrefix    = "direct:"

	// maxRoleDepth bounds the parent chain walk so a cyclic role graph in the
	// store cannot loop the resolver.
	maxRoleDepth = 8
)

// PermissionServiceImpl is the cache-aside layer over the role store. Reads
// try the cache first and repopulate on miss; every mutation writes the store
// of truth, purges the role's tagged entries, and broadcasts an invalidation
// event so other processes drop theirs. The cache is strictly a latency
// optimization: any cache failure degrades to a store read.
type PermissionServiceImpl struct {
	roles ports.RoleStore
	cache ports.Cache
	bus   ports.Publisher
	log   zerolog.Logger
}

func NewPermissionService(roles ports.RoleStore, cache ports.Cache, bus ports.Publisher, log zerolog.Logger) *PermissionServiceImpl {
	if bus == nil {
		bus = ports.NopPublisher{}
	}
	return &PermissionServiceImpl{roles: roles, cache: cache, bus: bus, log: log}
}

// EffectivePermissions returns the role's permissions including everything
// inherited up the parent chain.
func (s *PermissionServiceImpl) EffectivePermissions(ctx context.Context, roleID string) ([]string, error) {
	return s.cachedPermissions(ctx, effectivePrefix+roleID, roleID, func(ctx context.Context) ([]string, error) {
		return s.resolveEffective(ctx, roleID)
	})
}

// DirectPermissions returns only the permissions attached to the role itself.
func (s *PermissionServiceImpl) DirectPermissions(ctx context.Context, roleID string) ([]string, error) {
	return s.cachedPermissions(ctx, directPrefix+roleID, roleID, func(ctx context.Context) ([]string, error) {
		role, err := s.roles.FindByID(ctx, roleID)
		if err != nil {
			return nil, err
		}
		return role.Permissions, nil
	})
}

// EffectivePermissionsForRoles resolves several roles in one round trip via
// mget, falling back to per-role store reads for the misses and writing those
// back with mset.
func (s *PermissionServiceImpl) EffectivePermissionsForRoles(ctx context.Context, roleIDs []string) (map[string][]string, error) {
	keys := make([]string, 0, len(roleIDs))
	for _, id := range roleIDs {
		keys = append(keys, effectivePrefix+id)
	}

	cached, err := s.cache.MGet(ctx, ports.CacheDomainPermissions, keys)
	if err != nil {
		s.log.Warn().Err(err).Msg("permission cache mget failed, reading store of truth")
		cached = map[string]string{}
	}

	out := make(map[string][]string, len(roleIDs))
	fill := make(map[string]string)
	tags := make([]string, 0)
	for _, id := range roleIDs {
		if raw, ok := cached[effectivePrefix+id]; ok {
			var perms []string
			if json.Unmarshal([]byte(raw), &perms) == nil {
				out[id] = perms
				continue
			}
		}
		perms, err := s.resolveEffective(ctx, id)
		if err != nil {
			return nil, err
		}
		out[id] = perms
		if raw, err := json.Marshal(perms); err == nil {
			fill[effectivePrefix+id] = string(raw)
			tags = append(tags, ports.RoleTag(id))
		}
	}

	if len(fill) > 0 {
		opts := ports.CacheOptions{TTL: permissionTTL, Tags: tags}
		if err := s.cache.MSet(ctx, ports.CacheDomainPermissions, fill, opts); err != nil {
			s.log.Warn().Err(err).Msg("permission cache mset failed")
		}
	}
	return out, nil
}

// AddPermissionToRole attaches a permission to the role, then invalidates.
func (s *PermissionServiceImpl) AddPermissionToRole(ctx context.Context, roleID, permission string) error {
	if !domain.ValidPermission(permission) {
		return fmt.Errorf("malformed permission %q", permission)
	}
	if err := s.roles.AddPermission(ctx, roleID, permission); err != nil {
		return err
	}
	return s.afterMutation(ctx, roleID)
}

// RemovePermissionFromRole detaches a permission from the role, then
// invalidates.
func (s *PermissionServiceImpl) RemovePermissionFromRole(ctx context.Context, roleID, permission string) error {
	if err := s.roles.RemovePermission(ctx, roleID, permission); err != nil {
		return err
	}
	return s.afterMutation(ctx, roleID)
}

// SetRolePermissions replaces the role's permission set wholesale.
func (s *PermissionServiceImpl) SetRolePermissions(ctx context.Context, roleID string, permissions []string) error {
	for _, perm := range permissions {
		if !domain.ValidPermission(perm) {
			return fmt.Errorf("malformed permission %q", perm)
		}
	}
	if err := s.roles.SetPermissions(ctx, roleID, permissions); err != nil {
		return err
	}
	return s.afterMutation(ctx, roleID)
}

// InvalidateRole drops the role's cached entries (effective and direct, via
// the shared role tag) and notifies other processes. Idempotent: invalidating
// an already-cold role is a no-op and the next read repopulates from the
// store of truth either way.
func (s *PermissionServiceImpl) InvalidateRole(ctx context.Context, roleID string) error {
	if err := s.cache.InvalidateTag(ctx, ports.RoleTag(roleID)); err != nil {
		return fmt.Errorf("invalidate role %s: %w", roleID, err)
	}
	s.publish(ctx, ports.EventPermissionsInvalidated, ports.EventPayload{RoleID: roleID})
	return nil
}

// InvalidateAllPermissions wipes the whole permissions domain regardless of
// per-role tags. Used when the role-permission schema itself changes.
func (s *PermissionServiceImpl) InvalidateAllPermissions(ctx context.Context) error {
	if err := s.cache.DeleteByPattern(ctx, ports.CacheDomainPermissions, "*"); err != nil {
		return fmt.Errorf("invalidate all permissions: %w", err)
	}
	s.publish(ctx, ports.EventPermissionsBulkInvalidated, ports.EventPayload{})
	return nil
}

func (s *PermissionServiceImpl) afterMutation(ctx context.Context, roleID string) error {
	if err := s.cache.InvalidateTag(ctx, ports.RoleTag(roleID)); err != nil {
		// The store write already succeeded; a stale cache self-heals when the
		// TTL lapses, so log rather than fail the mutation.
		s.log.Warn().Err(err).Str("role_id", roleID).Msg("cache invalidation failed after role mutation")
	}
	s.publish(ctx, ports.EventPermissionsUpdated, ports.EventPayload{RoleID: roleID})
	return nil
}

func (s *PermissionServiceImpl) publish(ctx context.Context, event string, payload ports.EventPayload) {
	if err := s.bus.Publish(ctx, event, payload); err != nil {
		s.log.Warn().Err(err).Str("event", event).Msg("invalidation event publish failed")
	}
}

func (s *PermissionServiceImpl) cachedPermissions(ctx context.Context, key, roleID string, load func(context.Context) ([]string, error)) ([]string, error) {
	raw, err := s.cache.Get(ctx, ports.CacheDomainPermissions, key)
	if err == nil {
		var perms []string
		if json.Unmarshal([]byte(raw), &perms) == nil {
			metrics.PermissionCacheTotal.WithLabelValues("hit").Inc()
			return perms, nil
		}
		// Undecodable entry: treat as a miss and overwrite below.
	} else if err != ports.ErrCacheMiss {
		s.log.Warn().Err(err).Str("key", key).Msg("permission cache read failed, reading store of truth")
	}
	metrics.PermissionCacheTotal.WithLabelValues("miss").Inc()

	perms, err := load(ctx)
	if err != nil {
		return nil, err
	}

	if raw, err := json.Marshal(perms); err == nil {
		opts := ports.CacheOptions{TTL: permissionTTL, Tags: []string{ports.RoleTag(roleID)}}
		if err := s.cache.Set(ctx, ports.CacheDomainPermissions, key, string(raw), opts); err != nil {
			s.log.Warn().Err(err).Str("key", key).Msg("permission cache write failed")
		}
	}
	return perms, nil
}

// resolveEffective walks the parent chain and unions permissions, preserving
// first-seen order and dropping duplicates.
func (s *PermissionServiceImpl) resolveEffective(ctx context.Context, roleID string) ([]string, error) {
	seen := make(map[string]struct{})
	var perms []string

	id := roleID
	for depth := 0; id != "" && depth < maxRoleDepth; depth++ {
		role, err := s.roles.FindByID(ctx, id)
		if err != nil {
			if depth > 0 && err == domain.ErrRoleNotFound {
				// A dangling parent reference truncates inheritance rather
				// than failing the whole resolution.
				s.log.Warn().Str("role_id", roleID).Str("parent_id", id).Msg("parent role missing")
				break
			}
			return nil, err
		}
		for _, perm := range role.Permissions {
			if _, dup := seen[perm]; dup {
				continue
			}
			seen[perm] = struct{}{}
			perms = append(perms, perm)
		}
		id = role.ParentID
	}
	if perms == nil {
		perms = []string{}
	}
	return perms, nil
}
