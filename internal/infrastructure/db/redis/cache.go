package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/velora/commerce-api/internal/core/ports"
)

// tagTTL keeps tag membership sets alive slightly longer than the entries
// they index so a tag purge still sees keys that are about to expire.
const tagTTL = 2 * time.Hour

// Cache implements ports.Cache on Redis. Keys are namespaced as
// "<domain>:<key>"; tags are kept as Redis sets under "tag:<name>" whose
// members are the fully-qualified keys, so InvalidateTag purges a group with
// one SMEMBERS + DEL instead of a scan.
type Cache struct {
	client *redis.Client
}

func NewCache(client *redis.Client) *Cache {
	return &Cache{client: client}
}

func (c *Cache) Get(ctx context.Context, domain, key string) (string, error) {
	val, err := c.client.Get(ctx, qualify(domain, key)).Result()
	if err == redis.Nil {
		return "", ports.ErrCacheMiss
	}
	if err != nil {
		return "", fmt.Errorf("cache get: %w", err)
	}
	return val, nil
}

func (c *Cache) Set(ctx context.Context, domain, key, value string, opts ports.CacheOptions) error {
	full := qualify(domain, key)
	pipe := c.client.TxPipeline()
	pipe.Set(ctx, full, value, opts.TTL)
	for _, tag := range opts.Tags {
		pipe.SAdd(ctx, tagKey(tag), full)
		pipe.Expire(ctx, tagKey(tag), tagTTL)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("cache set: %w", err)
	}
	return nil
}

func (c *Cache) Delete(ctx context.Context, domain string, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	full := make([]string, len(keys))
	for i, k := range keys {
		full[i] = qualify(domain, k)
	}
	if err := c.client.Del(ctx, full...).Err(); err != nil {
		return fmt.Errorf("cache delete: %w", err)
	}
	return nil
}

// DeleteByPattern removes every key in the domain matching the glob pattern
// using SCAN, never KEYS, so a bulk purge does not stall the server.
func (c *Cache) DeleteByPattern(ctx context.Context, domain, pattern string) error {
	match := qualify(domain, pattern)
	var cursor uint64
	for {
		keys, next, err := c.client.Scan(ctx, cursor, match, 200).Result()
		if err != nil {
			return fmt.Errorf("cache scan: %w", err)
		}
		if len(keys) > 0 {
			if err := c.client.Del(ctx, keys...).Err(); err != nil {
				return fmt.Errorf("cache delete by pattern: %w", err)
			}
		}
		cursor = next
		if cursor == 0 {
			return nil
		}
	}
}

func (c *Cache) MGet(ctx context.Context, domain string, keys []string) (map[string]string, error) {
	if len(keys) == 0 {
		return map[string]string{}, nil
	}
	full := make([]string, len(keys))
	for i, k := range keys {
		full[i] = qualify(domain, k)
	}
	vals, err := c.client.MGet(ctx, full...).Result()
	if err != nil {
		return nil, fmt.Errorf("cache mget: %w", err)
	}
	out := make(map[string]string, len(keys))
	for i, v := range vals {
		if s, ok := v.(string); ok {
			out[keys[i]] = s
		}
	}
	return out, nil
}

func (c *Cache) MSet(ctx context.Context, domain string, values map[string]string, opts ports.CacheOptions) error {
	if len(values) == 0 {
		return nil
	}
	pipe := c.client.TxPipeline()
	for k, v := range values {
		pipe.Set(ctx, qualify(domain, k), v, opts.TTL)
	}
	for _, tag := range opts.Tags {
		for k := range values {
			pipe.SAdd(ctx, tagKey(tag), qualify(domain, k))
		}
		pipe.Expire(ctx, tagKey(tag), tagTTL)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("cache mset: %w", err)
	}
	return nil
}

// Increment bumps an integer counter, attaching ttl only when this increment
// created the key so the window does not slide on every failure.
func (c *Cache) Increment(ctx context.Context, domain, key string, ttl time.Duration) (int64, error) {
	full := qualify(domain, key)
	n, err := c.client.Incr(ctx, full).Result()
	if err != nil {
		return 0, fmt.Errorf("cache incr: %w", err)
	}
	if n == 1 && ttl > 0 {
		if err := c.client.Expire(ctx, full, ttl).Err(); err != nil {
			return n, fmt.Errorf("cache incr expire: %w", err)
		}
	}
	return n, nil
}

// TTL returns the remaining lifetime of a key; absent or persistent keys
// report 0.
func (c *Cache) TTL(ctx context.Context, domain, key string) (time.Duration, error) {
	d, err := c.client.TTL(ctx, qualify(domain, key)).Result()
	if err != nil {
		return 0, fmt.Errorf("cache ttl: %w", err)
	}
	if d < 0 {
		return 0, nil
	}
	return d, nil
}

func (c *Cache) InvalidateTag(ctx context.Context, tag string) error {
	members, err := c.client.SMembers(ctx, tagKey(tag)).Result()
	if err != nil {
		return fmt.Errorf("cache tag members: %w", err)
	}
	keys := append(members, tagKey(tag))
	if err := c.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("cache tag delete: %w", err)
	}
	return nil
}

func qualify(domain, key string) string {
	return domain + ":" + key
}

func tagKey(tag string) string {
	return "tag:" + tag
}
