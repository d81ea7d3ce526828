// Package cache provides an in-process implementation of ports.Cache used in
// development mode and in tests. Semantics mirror the Redis implementation:
// domain-qualified keys, TTL expiry, and tag sets.
package cache

import (
	"context"
	"path"
	"strconv"
	"sync"
	"time"

	"github.com/velora/commerce-api/internal/core/ports"
)

type entry struct {
	value     string
	expiresAt time.Time // zero = no expiry
}

// Memory is a mutex-guarded map cache. Safe for concurrent use. The clock is
// injectable so tests can simulate TTL expiry without sleeping.
type Memory struct {
	mu      sync.Mutex
	entries map[string]entry
	tags    map[string]map[string]struct{}
	now     func() time.Time
}

func NewMemory() *Memory {
	return &Memory{
		entries: make(map[string]entry),
		tags:    make(map[string]map[string]struct{}),
		now:     time.Now,
	}
}

// SetClock replaces the cache's time source. Test hook.
func (m *Memory) SetClock(now func() time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = now
}

func (m *Memory) Get(_ context.Context, domain, key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.live(domain + ":" + key)
	if !ok {
		return "", ports.ErrCacheMiss
	}
	return e.value, nil
}

func (m *Memory) Set(_ context.Context, domain, key, value string, opts ports.CacheOptions) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.set(domain+":"+key, value, opts)
	return nil
}

func (m *Memory) Delete(_ context.Context, domain string, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, k := range keys {
		delete(m.entries, domain+":"+k)
	}
	return nil
}

func (m *Memory) DeleteByPattern(_ context.Context, domain, pattern string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	full := domain + ":" + pattern
	for k := range m.entries {
		if ok, _ := path.Match(full, k); ok {
			delete(m.entries, k)
		}
	}
	return nil
}

func (m *Memory) MGet(_ context.Context, domain string, keys []string) (map[string]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]string)
	for _, k := range keys {
		if e, ok := m.live(domain + ":" + k); ok {
			out[k] = e.value
		}
	}
	return out, nil
}

func (m *Memory) MSet(_ context.Context, domain string, values map[string]string, opts ports.CacheOptions) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for k, v := range values {
		m.set(domain+":"+k, v, opts)
	}
	return nil
}

func (m *Memory) Increment(_ context.Context, domain, key string, ttl time.Duration) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	full := domain + ":" + key
	var n int64
	if e, ok := m.live(full); ok {
		n, _ = strconv.ParseInt(e.value, 10, 64)
		n++
		e.value = strconv.FormatInt(n, 10)
		m.entries[full] = e
		return n, nil
	}
	n = 1
	m.set(full, "1", ports.CacheOptions{TTL: ttl})
	return n, nil
}

func (m *Memory) TTL(_ context.Context, domain, key string) (time.Duration, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.live(domain + ":" + key)
	if !ok || e.expiresAt.IsZero() {
		return 0, nil
	}
	return e.expiresAt.Sub(m.now()), nil
}

func (m *Memory) InvalidateTag(_ context.Context, tag string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for k := range m.tags[tag] {
		delete(m.entries, k)
	}
	delete(m.tags, tag)
	return nil
}

// live returns the entry if present and unexpired, lazily evicting otherwise.
// Callers hold the mutex.
func (m *Memory) live(full string) (entry, bool) {
	e, ok := m.entries[full]
	if !ok {
		return entry{}, false
	}
	if !e.expiresAt.IsZero() && !m.now().Before(e.expiresAt) {
		delete(m.entries, full)
		return entry{}, false
	}
	return e, true
}

func (m *Memory) set(full, value string, opts ports.CacheOptions) {
	e := entry{value: value}
	if opts.TTL > 0 {
		e.expiresAt = m.now().Add(opts.TTL)
	}
	m.entries[full] = e
	for _, tag := range opts.Tags {
		if m.tags[tag] == nil {
			m.tags[tag] = make(map[string]struct{})
		}
		m.tags[tag][full] = struct{}{}
	}
}
