package cache

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrNotFound is returned by Get when no entry exists for the key.
var ErrNotFound = errors.New("cache entry not found")

// Cache stores finished reply payloads keyed by video id.
// Implementations must be safe for concurrent use.
type Cache interface {
	// Get returns the payload stored under key, or ErrNotFound.
	Get(ctx context.Context, key string) ([]byte, error)

	// Set stores payload under key, replacing any previous entry.
	Set(ctx context.Context, key string, payload []byte) error
}

// memoryEntry is one value in the in-memory cache.
type memoryEntry struct {
	payload  []byte
	cachedAt time.Time
}

// isValid reports whether the entry is still fresh under ttl. A zero
// ttl means entries never expire.
func (e *memoryEntry) isValid(ttl time.Duration) bool {
	if ttl == 0 {
		return true
	}

	return time.Since(e.cachedAt) < ttl
}

// Memory is a mutex-guarded in-memory cache with per-entry TTL.
type Memory struct {
	mu      sync.Mutex
	entries map[string]*memoryEntry

	ttl time.Duration
}

// A compile-time check that Memory satisfies Cache.
var _ Cache = (*Memory)(nil)

// NewMemory creates an in-memory cache whose entries expire after ttl.
// A zero ttl disables expiry.
func NewMemory(ttl time.Duration) *Memory {
	return &Memory{
		entries: make(map[string]*memoryEntry),
		ttl:     ttl,
	}
}

// Get implements Cache.
func (m *Memory) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, ok := m.entries[key]
	if !ok {
		return nil, ErrNotFound
	}
	if !entry.isValid(m.ttl) {
		delete(m.entries, key)
		return nil, ErrNotFound
	}

	return entry.payload, nil
}

// Set implements Cache.
func (m *Memory) Set(_ context.Context, key string, payload []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.entries[key] = &memoryEntry{
		payload:  payload,
		cachedAt: time.Now(),
	}

	return nil
}

// Layered chains a fast front cache over a durable back cache. Reads
// fill the front on a back hit, writes go to both.
type Layered struct {
	front Cache
	back  Cache
}

// A compile-time check that Layered satisfies Cache.
var _ Cache = (*Layered)(nil)

// NewLayered creates a layered cache.
func NewLayered(front, back Cache) *Layered {
	return &Layered{
		front: front,
		back:  back,
	}
}

// Get implements Cache.
func (l *Layered) Get(ctx context.Context, key string) ([]byte, error) {
	payload, err := l.front.Get(ctx, key)
	if err == nil {
		return payload, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	payload, err = l.back.Get(ctx, key)
	if err != nil {
		return nil, err
	}

	// Refill the front so repeat lookups stay off the durable store.
	if err := l.front.Set(ctx, key, payload); err != nil {
		return nil, err
	}

	return payload, nil
}

// Set implements Cache.
func (l *Layered) Set(ctx context.Context, key string, payload []byte) error {
	if err := l.back.Set(ctx, key, payload); err != nil {
		return err
	}

	return l.front.Set(ctx, key, payload)
}
