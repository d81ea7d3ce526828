package ports

import (
	"context"
	"errors"
	"time"
)

// Cache key domains. Keys are namespaced as "<domain>:<key>" by
// implementations so a whole domain can be purged without touching others.
const (
	// CacheDomainPermissions holds "effective:<roleId>" and "direct:<roleId>"
	// permission lists.
	CacheDomainPermissions = "permissions"
	// CacheDomainSessions holds the server-side refresh token per account.
	CacheDomainSessions = "sessions"
	// CacheDomainSecurity holds ephemeral counters: "attempts:<email>",
	// "lockout:<email>", "reset:<accountId>".
	CacheDomainSecurity = "security"
)

// ErrCacheMiss is returned by Get when the key is absent or expired.
var ErrCacheMiss = errors.New("cache: miss")

// CacheOptions controls entry lifetime and tagging.
type CacheOptions struct {
	// TTL of 0 means no expiry.
	TTL time.Duration
	// Tags are group labels; InvalidateTag purges every entry carrying the
	// tag without enumerating keys.
	Tags []string
}

// Cache is the cache-aside store for permissions, sessions, and security
// counters. It is never the source of truth: callers must tolerate misses and
// repopulate from the credential/role stores.
type Cache interface {
	Get(ctx context.Context, domain, key string) (string, error)
	Set(ctx context.Context, domain, key, value string, opts CacheOptions) error
	Delete(ctx context.Context, domain string, keys ...string) error
	// DeleteByPattern removes every key in the domain matching a glob
	// pattern, e.g. "effective:*".
	DeleteByPattern(ctx context.Context, domain, pattern string) error
	// MGet returns only the keys that were found.
	MGet(ctx context.Context, domain string, keys []string) (map[string]string, error)
	MSet(ctx context.Context, domain string, values map[string]string, opts CacheOptions) error
	// Increment atomically adds one to an integer counter, applying ttl when
	// the counter is created. Returns the post-increment value.
	Increment(ctx context.Context, domain, key string, ttl time.Duration) (int64, error)
	// TTL returns the remaining lifetime of a key, or 0 when absent.
	TTL(ctx context.Context, domain, key string) (time.Duration, error)
	InvalidateTag(ctx context.Context, tag string) error
}

// RoleTag is the cache tag shared by all permission entries of a role.
func RoleTag(roleID string) string {
	return "role:" + roleID
}
