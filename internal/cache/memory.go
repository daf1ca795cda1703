package cache

import (
	"context"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

type memoryEntry struct {
	value     []byte
	expiresAt time.Time
}

// MemoryProvider is an in-process Provider over an expiring LRU.
// MaxTTL bounds every entry; shorter per-call TTLs are checked on read.
type MemoryProvider struct {
	mu  sync.Mutex
	lru *expirable.LRU[string, memoryEntry]
	now func() time.Time
}

// NewMemoryProvider returns a provider holding at most size entries, none older than maxTTL.
func NewMemoryProvider(size int, maxTTL time.Duration) *MemoryProvider {
	if size <= 0 {
		size = 1024
	}
	return &MemoryProvider{
		lru: expirable.NewLRU[string, memoryEntry](size, nil, maxTTL),
		now: time.Now,
	}
}

// Get returns the stored bytes or ErrCacheMiss.
func (m *MemoryProvider) Get(_ context.Context, key string) ([]byte, error) {
	entry, ok := m.lru.Get(key)
	if !ok {
		return nil, ErrCacheMiss
	}
	if !entry.expiresAt.IsZero() && m.now().After(entry.expiresAt) {
		m.lru.Remove(key)
		return nil, ErrCacheMiss
	}
	return append([]byte(nil), entry.value...), nil
}

// Set stores a copy of value.
func (m *MemoryProvider) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	m.lru.Add(key, m.entry(value, ttl))
	return nil
}

// SetNX stores value only when no live entry exists.
func (m *MemoryProvider) SetNX(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, err := m.Get(ctx, key); err == nil {
		return false, nil
	}
	m.lru.Add(key, m.entry(value, ttl))
	return true, nil
}

// Del removes key.
func (m *MemoryProvider) Del(_ context.Context, key string) error {
	m.lru.Remove(key)
	return nil
}

// Close purges all entries.
func (m *MemoryProvider) Close() error {
	m.lru.Purge()
	return nil
}

// Len returns the number of stored entries, including ones past their per-call TTL.
func (m *MemoryProvider) Len() int {
	return m.lru.Len()
}

func (m *MemoryProvider) entry(value []byte, ttl time.Duration) memoryEntry {
	e := memoryEntry{value: append([]byte(nil), value...)}
	if ttl > 0 {
		e.expiresAt = m.now().Add(ttl)
	}
	return e
}
