package cache

import (
	"context"
	"testing"
	"time"

	"github.com/velora/commerce-api/internal/core/ports"
)

func TestMemory_TTLExpiry(t *testing.T) {
	m := NewMemory()
	now := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)
	m.SetClock(func() time.Time { return now })
	ctx := context.Background()

	if err := m.Set(ctx, ports.CacheDomainSecurity, "lockout:x", "1", ports.CacheOptions{TTL: 5 * time.Minute}); err != nil {
		t.Fatalf("Set: %v", err)
	}

	ttl, err := m.TTL(ctx, ports.CacheDomainSecurity, "lockout:x")
	if err != nil || ttl != 5*time.Minute {
		t.Fatalf("TTL = %v, %v", ttl, err)
	}

	now = now.Add(6 * time.Minute)
	if _, err := m.Get(ctx, ports.CacheDomainSecurity, "lockout:x"); err != ports.ErrCacheMiss {
		t.Fatalf("expected miss after expiry, got %v", err)
	}
	if ttl, _ := m.TTL(ctx, ports.CacheDomainSecurity, "lockout:x"); ttl != 0 {
		t.Fatalf("expired key reports TTL %v", ttl)
	}
}

func TestMemory_TagInvalidation(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	tag := ports.RoleTag("role_1")
	opts := ports.CacheOptions{Tags: []string{tag}}
	_ = m.Set(ctx, ports.CacheDomainPermissions, "effective:role_1", "a", opts)
	_ = m.Set(ctx, ports.CacheDomainPermissions, "direct:role_1", "b", opts)
	_ = m.Set(ctx, ports.CacheDomainPermissions, "effective:role_2", "c", ports.CacheOptions{})

	if err := m.InvalidateTag(ctx, tag); err != nil {
		t.Fatalf("InvalidateTag: %v", err)
	}
	if _, err := m.Get(ctx, ports.CacheDomainPermissions, "effective:role_1"); err != ports.ErrCacheMiss {
		t.Fatalf("tagged entry survived")
	}
	if _, err := m.Get(ctx, ports.CacheDomainPermissions, "effective:role_2"); err != nil {
		t.Fatalf("untagged entry purged: %v", err)
	}
}

func TestMemory_DeleteByPattern(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	_ = m.Set(ctx, ports.CacheDomainPermissions, "effective:role_1", "a", ports.CacheOptions{})
	_ = m.Set(ctx, ports.CacheDomainSessions, "acc_1", "token", ports.CacheOptions{})

	if err := m.DeleteByPattern(ctx, ports.CacheDomainPermissions, "*"); err != nil {
		t.Fatalf("DeleteByPattern: %v", err)
	}
	if _, err := m.Get(ctx, ports.CacheDomainPermissions, "effective:role_1"); err != ports.ErrCacheMiss {
		t.Fatalf("pattern wipe missed an entry")
	}
	if _, err := m.Get(ctx, ports.CacheDomainSessions, "acc_1"); err != nil {
		t.Fatalf("wipe crossed domains: %v", err)
	}
}

func TestMemory_IncrementWindow(t *testing.T) {
	m := NewMemory()
	now := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)
	m.SetClock(func() time.Time { return now })
	ctx := context.Background()

	for want := int64(1); want <= 3; want++ {
		n, err := m.Increment(ctx, ports.CacheDomainSecurity, "attempts:x", time.Minute)
		if err != nil || n != want {
			t.Fatalf("Increment = %d, %v; want %d", n, err, want)
		}
	}

	// Window fixed at first increment: after it lapses the counter restarts.
	now = now.Add(2 * time.Minute)
	n, err := m.Increment(ctx, ports.CacheDomainSecurity, "attempts:x", time.Minute)
	if err != nil || n != 1 {
		t.Fatalf("counter did not restart: %d, %v", n, err)
	}
}

func TestMemory_MGetMSet(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	values := map[string]string{"a": "1", "b": "2"}
	if err := m.MSet(ctx, ports.CacheDomainPermissions, values, ports.CacheOptions{}); err != nil {
		t.Fatalf("MSet: %v", err)
	}
	got, err := m.MGet(ctx, ports.CacheDomainPermissions, []string{"a", "b", "missing"})
	if err != nil {
		t.Fatalf("MGet: %v", err)
	}
	if len(got) != 2 || got["a"] != "1" || got["b"] != "2" {
		t.Fatalf("unexpected MGet result: %v", got)
	}
}
