package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/velora/commerce-api/internal/core/ports"
)

func setupCache(t *testing.T) (*Cache, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis: %v", err)
	}
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	return NewCache(client), mr
}

func TestCache_SetGet(t *testing.T) {
	c, mr := setupCache(t)
	ctx := context.Background()

	if err := c.Set(ctx, ports.CacheDomainPermissions, "effective:role_1", `["read:order"]`, ports.CacheOptions{TTL: time.Hour}); err != nil {
		t.Fatalf("Set: %v", err)
	}

	got, err := c.Get(ctx, ports.CacheDomainPermissions, "effective:role_1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got != `["read:order"]` {
		t.Fatalf("unexpected value %q", got)
	}

	// Keys are domain-qualified on the wire.
	if !mr.Exists("permissions:effective:role_1") {
		t.Fatalf("expected qualified key in redis")
	}
}

func TestCache_MissAndExpiry(t *testing.T) {
	c, mr := setupCache(t)
	ctx := context.Background()

	if _, err := c.Get(ctx, ports.CacheDomainPermissions, "absent"); err != ports.ErrCacheMiss {
		t.Fatalf("expected ErrCacheMiss, got %v", err)
	}

	if err := c.Set(ctx, ports.CacheDomainPermissions, "short", "v", ports.CacheOptions{TTL: time.Second}); err != nil {
		t.Fatalf("Set: %v", err)
	}
	mr.FastForward(2 * time.Second)
	if _, err := c.Get(ctx, ports.CacheDomainPermissions, "short"); err != ports.ErrCacheMiss {
		t.Fatalf("expected miss after expiry, got %v", err)
	}
}

func TestCache_Delete(t *testing.T) {
	c, _ := setupCache(t)
	ctx := context.Background()

	_ = c.Set(ctx, ports.CacheDomainSessions, "acc_1", "token", ports.CacheOptions{})
	_ = c.Set(ctx, ports.CacheDomainSessions, "acc_2", "token", ports.CacheOptions{})

	if err := c.Delete(ctx, ports.CacheDomainSessions, "acc_1", "acc_2"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := c.Get(ctx, ports.CacheDomainSessions, "acc_1"); err != ports.ErrCacheMiss {
		t.Fatalf("acc_1 still present")
	}
	if err := c.Delete(ctx, ports.CacheDomainSessions); err != nil {
		t.Fatalf("empty delete should be a no-op, got %v", err)
	}
}

func TestCache_InvalidateTag(t *testing.T) {
	c, mr := setupCache(t)
	ctx := context.Background()

	tag := ports.RoleTag("role_1")
	opts := ports.CacheOptions{TTL: time.Hour, Tags: []string{tag}}
	_ = c.Set(ctx, ports.CacheDomainPermissions, "effective:role_1", "a", opts)
	_ = c.Set(ctx, ports.CacheDomainPermissions, "direct:role_1", "b", opts)
	_ = c.Set(ctx, ports.CacheDomainPermissions, "effective:role_2", "c", ports.CacheOptions{TTL: time.Hour, Tags: []string{ports.RoleTag("role_2")}})

	if err := c.InvalidateTag(ctx, tag); err != nil {
		t.Fatalf("InvalidateTag: %v", err)
	}

	// Both entries under the tag are gone; the sibling role survives.
	for _, key := range []string{"effective:role_1", "direct:role_1"} {
		if _, err := c.Get(ctx, ports.CacheDomainPermissions, key); err != ports.ErrCacheMiss {
			t.Fatalf("%s survived tag invalidation", key)
		}
	}
	if _, err := c.Get(ctx, ports.CacheDomainPermissions, "effective:role_2"); err != nil {
		t.Fatalf("unrelated role was purged: %v", err)
	}
	if mr.Exists("tag:" + tag) {
		t.Fatalf("tag set not cleaned up")
	}
}

func TestCache_DeleteByPattern(t *testing.T) {
	c, _ := setupCache(t)
	ctx := context.Background()

	_ = c.Set(ctx, ports.CacheDomainPermissions, "effective:role_1", "a", ports.CacheOptions{})
	_ = c.Set(ctx, ports.CacheDomainPermissions, "direct:role_1", "b", ports.CacheOptions{})
	_ = c.Set(ctx, ports.CacheDomainSessions, "acc_1", "token", ports.CacheOptions{})

	if err := c.DeleteByPattern(ctx, ports.CacheDomainPermissions, "*"); err != nil {
		t.Fatalf("DeleteByPattern: %v", err)
	}

	if _, err := c.Get(ctx, ports.CacheDomainPermissions, "effective:role_1"); err != ports.ErrCacheMiss {
		t.Fatalf("permissions entry survived wipe")
	}
	// The wipe is scoped to its domain.
	if _, err := c.Get(ctx, ports.CacheDomainSessions, "acc_1"); err != nil {
		t.Fatalf("session entry was purged: %v", err)
	}
}

func TestCache_MGetMSet(t *testing.T) {
	c, _ := setupCache(t)
	ctx := context.Background()

	values := map[string]string{
		"effective:role_1": "a",
		"effective:role_2": "b",
	}
	opts := ports.CacheOptions{TTL: time.Hour, Tags: []string{ports.RoleTag("role_1"), ports.RoleTag("role_2")}}
	if err := c.MSet(ctx, ports.CacheDomainPermissions, values, opts); err != nil {
		t.Fatalf("MSet: %v", err)
	}

	got, err := c.MGet(ctx, ports.CacheDomainPermissions, []string{"effective:role_1", "effective:role_2", "effective:role_3"})
	if err != nil {
		t.Fatalf("MGet: %v", err)
	}
	if len(got) != 2 || got["effective:role_1"] != "a" || got["effective:role_2"] != "b" {
		t.Fatalf("unexpected MGet result: %v", got)
	}
	if _, ok := got["effective:role_3"]; ok {
		t.Fatalf("absent key reported as present")
	}
}

func TestCache_Increment(t *testing.T) {
	c, mr := setupCache(t)
	ctx := context.Background()

	for want := int64(1); want <= 3; want++ {
		n, err := c.Increment(ctx, ports.CacheDomainSecurity, "attempts:x@example.com", time.Minute)
		if err != nil {
			t.Fatalf("Increment: %v", err)
		}
		if n != want {
			t.Fatalf("expected %d, got %d", want, n)
		}
	}

	// The window is attached once, at creation, and does not slide.
	ttl := mr.TTL("security:attempts:x@example.com")
	if ttl <= 0 || ttl > time.Minute {
		t.Fatalf("unexpected counter TTL %v", ttl)
	}

	mr.FastForward(2 * time.Minute)
	n, err := c.Increment(ctx, ports.CacheDomainSecurity, "attempts:x@example.com", time.Minute)
	if err != nil {
		t.Fatalf("Increment after expiry: %v", err)
	}
	if n != 1 {
		t.Fatalf("counter did not restart after window lapse, got %d", n)
	}
}

func TestCache_TTL(t *testing.T) {
	c, _ := setupCache(t)
	ctx := context.Background()

	_ = c.Set(ctx, ports.CacheDomainSecurity, "lockout:x@example.com", "1", ports.CacheOptions{TTL: 5 * time.Minute})

	ttl, err := c.TTL(ctx, ports.CacheDomainSecurity, "lockout:x@example.com")
	if err != nil {
		t.Fatalf("TTL: %v", err)
	}
	if ttl <= 0 || ttl > 5*time.Minute {
		t.Fatalf("unexpected TTL %v", ttl)
	}

	// Absent keys report zero, not an error.
	ttl, err = c.TTL(ctx, ports.CacheDomainSecurity, "lockout:nobody")
	if err != nil {
		t.Fatalf("TTL absent: %v", err)
	}
	if ttl != 0 {
		t.Fatalf("expected 0 for absent key, got %v", ttl)
	}
}
