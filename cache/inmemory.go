package cache

import (
	"context"
	"sync"
	"time"
)

const defaultSweepInterval = 5 * time.Minute

type memoryEntry struct {
	value     []byte
	expiresAt time.Time
}

func (e memoryEntry) expired(now time.Time) bool {
	return !e.expiresAt.IsZero() && now.After(e.expiresAt)
}

// InMemoryCache keeps entries in process memory, sweeping expired ones periodically.
type InMemoryCache struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry

	closeOnce sync.Once
	done      chan struct{}
}

// NewInMemoryCache creates an in-memory cache with its sweeper running.
func NewInMemoryCache() *InMemoryCache {
	return newInMemoryCache(defaultSweepInterval)
}

func newInMemoryCache(sweep time.Duration) *InMemoryCache {
	c := &InMemoryCache{
		entries: make(map[string]memoryEntry),
		done:    make(chan struct{}),
	}
	go c.sweepLoop(sweep)
	return c
}

func (c *InMemoryCache) sweepLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case now := <-ticker.C:
			c.sweep(now)
		case <-c.done:
			return
		}
	}
}

func (c *InMemoryCache) sweep(now time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for key, entry := range c.entries {
		if entry.expired(now) {
			delete(c.entries, key)
		}
	}
}

func (c *InMemoryCache) Get(_ context.Context, key string) ([]byte, bool, error) {
	c.mu.RLock()
	entry, ok := c.entries[key]
	c.mu.RUnlock()

	if !ok || entry.expired(time.Now()) {
		return nil, false, nil
	}
	return entry.value, true, nil
}

func (c *InMemoryCache) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	entry := memoryEntry{value: value}
	if ttl > 0 {
		entry.expiresAt = time.Now().Add(ttl)
	}

	c.mu.Lock()
	c.entries[key] = entry
	c.mu.Unlock()
	return nil
}

func (c *InMemoryCache) Delete(_ context.Context, key string) error {
	c.mu.Lock()
	delete(c.entries, key)
	c.mu.Unlock()
	return nil
}

func (c *InMemoryCache) Flush(_ context.Context) error {
	c.mu.Lock()
	c.entries = make(map[string]memoryEntry)
	c.mu.Unlock()
	return nil
}

// Close stops the sweeper. Entries stay readable.
func (c *InMemoryCache) Close() error {
	c.closeOnce.Do(func() { close(c.done) })
	return nil
}
