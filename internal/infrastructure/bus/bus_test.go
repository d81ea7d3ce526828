package bus

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/velora/commerce-api/internal/core/ports"
	memcache "github.com/velora/commerce-api/internal/infrastructure/cache"
)

func setupBus(t *testing.T) *redis.Client {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis: %v", err)
	}
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return client
}

// waitFor polls until cond holds or the deadline passes.
func waitFor(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", msg)
}

func TestPublisher_EnvelopeShape(t *testing.T) {
	client := setupBus(t)
	ctx := context.Background()

	sub := client.Subscribe(ctx, Channel)
	if _, err := sub.Receive(ctx); err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	defer sub.Close()

	pub := NewPublisher(client, "proc-a")
	if err := pub.Publish(ctx, ports.EventPermissionsInvalidated, ports.EventPayload{RoleID: "role_1"}); err != nil {
		t.Fatalf("publish: %v", err)
	}

	select {
	case msg := <-sub.Channel():
		var env Envelope
		if err := json.Unmarshal([]byte(msg.Payload), &env); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		if env.Origin != "proc-a" || env.Event != ports.EventPermissionsInvalidated || env.RoleID != "role_1" {
			t.Fatalf("unexpected envelope: %+v", env)
		}
		if env.ID == "" || env.At == 0 {
			t.Fatalf("envelope missing id or timestamp: %+v", env)
		}
	case <-time.After(3 * time.Second):
		t.Fatalf("no message received")
	}
}

func TestSubscriber_AppliesRemoteInvalidation(t *testing.T) {
	client := setupBus(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cache := memcache.NewMemory()
	opts := ports.CacheOptions{TTL: time.Hour, Tags: []string{ports.RoleTag("role_1")}}
	_ = cache.Set(ctx, ports.CacheDomainPermissions, "effective:role_1", "stale", opts)

	sub := NewSubscriber(client, cache, "proc-local", 2, zerolog.Nop())
	if err := sub.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}

	// A remote process announces it changed role_1.
	remote := NewPublisher(client, "proc-remote")
	if err := remote.Publish(ctx, ports.EventPermissionsUpdated, ports.EventPayload{RoleID: "role_1"}); err != nil {
		t.Fatalf("publish: %v", err)
	}

	waitFor(t, func() bool {
		_, err := cache.Get(ctx, ports.CacheDomainPermissions, "effective:role_1")
		return err == ports.ErrCacheMiss
	}, "local entry to be invalidated")
}

func TestSubscriber_SkipsOwnEvents(t *testing.T) {
	client := setupBus(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cache := memcache.NewMemory()
	opts := ports.CacheOptions{TTL: time.Hour, Tags: []string{ports.RoleTag("role_1")}}
	_ = cache.Set(ctx, ports.CacheDomainPermissions, "effective:role_1", "fresh", opts)

	pub := NewPublisher(client, "")
	sub := NewSubscriber(client, cache, pub.Origin(), 1, zerolog.Nop())
	if err := sub.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}

	// The publisher already invalidated its own entries synchronously; the
	// echoed event must not touch the cache again.
	if err := pub.Publish(ctx, ports.EventPermissionsUpdated, ports.EventPayload{RoleID: "role_1"}); err != nil {
		t.Fatalf("publish: %v", err)
	}

	time.Sleep(100 * time.Millisecond)
	if _, err := cache.Get(ctx, ports.CacheDomainPermissions, "effective:role_1"); err != nil {
		t.Fatalf("own event was applied locally: %v", err)
	}
}

func TestSubscriber_BulkInvalidation(t *testing.T) {
	client := setupBus(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cache := memcache.NewMemory()
	_ = cache.Set(ctx, ports.CacheDomainPermissions, "effective:role_1", "a", ports.CacheOptions{})
	_ = cache.Set(ctx, ports.CacheDomainPermissions, "direct:role_2", "b", ports.CacheOptions{})
	_ = cache.Set(ctx, ports.CacheDomainSessions, "acc_1", "token", ports.CacheOptions{})

	sub := NewSubscriber(client, cache, "proc-local", 0, zerolog.Nop())
	if err := sub.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}

	remote := NewPublisher(client, "proc-remote")
	if err := remote.Publish(ctx, ports.EventPermissionsBulkInvalidated, ports.EventPayload{}); err != nil {
		t.Fatalf("publish: %v", err)
	}

	waitFor(t, func() bool {
		_, err1 := cache.Get(ctx, ports.CacheDomainPermissions, "effective:role_1")
		_, err2 := cache.Get(ctx, ports.CacheDomainPermissions, "direct:role_2")
		return err1 == ports.ErrCacheMiss && err2 == ports.ErrCacheMiss
	}, "permissions domain to be wiped")

	// Sessions are untouched by a permission wipe.
	if _, err := cache.Get(ctx, ports.CacheDomainSessions, "acc_1"); err != nil {
		t.Fatalf("session entry was purged: %v", err)
	}
}

func TestSubscriber_MalformedEventIgnored(t *testing.T) {
	client := setupBus(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cache := memcache.NewMemory()
	opts := ports.CacheOptions{TTL: time.Hour, Tags: []string{ports.RoleTag("role_1")}}
	_ = cache.Set(ctx, ports.CacheDomainPermissions, "effective:role_1", "v", opts)

	sub := NewSubscriber(client, cache, "proc-local", 1, zerolog.Nop())
	if err := sub.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}

	if err := client.Publish(ctx, Channel, "not json at all").Err(); err != nil {
		t.Fatalf("publish: %v", err)
	}
	// A valid event after the garbage proves the loop survived it.
	remote := NewPublisher(client, "proc-remote")
	if err := remote.Publish(ctx, ports.EventPermissionsInvalidated, ports.EventPayload{RoleID: "role_1"}); err != nil {
		t.Fatalf("publish: %v", err)
	}

	waitFor(t, func() bool {
		_, err := cache.Get(ctx, ports.CacheDomainPermissions, "effective:role_1")
		return err == ports.ErrCacheMiss
	}, "subscriber to survive malformed event")
}
