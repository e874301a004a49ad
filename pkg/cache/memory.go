package cache

import (
	"context"
	"path"
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// MemoryBackend is a process-local Backend on go-cache. Patterns use
// path.Match syntax, which agrees with Redis globs for the keys this module
// produces.
type MemoryBackend struct {
	items *gocache.Cache
	mu    sync.Mutex // serializes pattern deletes against each other
	once  sync.Once
}

// NewMemoryBackend starts a backend whose janitor sweeps expired entries
// every interval. A non-positive interval disables the janitor; expired
// entries are still never served.
func NewMemoryBackend(interval time.Duration) *MemoryBackend {
	if interval < 0 {
		interval = 0
	}
	return &MemoryBackend{items: gocache.New(gocache.NoExpiration, interval)}
}

func (b *MemoryBackend) Get(_ context.Context, key string) ([]byte, error) {
	v, ok := b.items.Get(key)
	if !ok {
		return nil, ErrMiss
	}
	return v.([]byte), nil
}

func (b *MemoryBackend) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	b.items.Set(key, value, lifetime(ttl))
	return nil
}

func (b *MemoryBackend) Del(_ context.Context, keys ...string) (int64, error) {
	var n int64
	for _, key := range keys {
		if _, ok := b.items.Get(key); ok {
			n++
		}
		b.items.Delete(key)
	}
	return n, nil
}

func (b *MemoryBackend) DelPattern(_ context.Context, pattern string) (int64, error) {
	if _, err := path.Match(pattern, ""); err != nil {
		return 0, err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	var n int64
	for key := range b.items.Items() {
		if ok, _ := path.Match(pattern, key); ok {
			b.items.Delete(key)
			n++
		}
	}
	return n, nil
}

func (b *MemoryBackend) Exists(_ context.Context, key string) (bool, error) {
	_, ok := b.items.Get(key)
	return ok, nil
}

func (b *MemoryBackend) MGet(_ context.Context, keys []string) ([][]byte, error) {
	out := make([][]byte, len(keys))
	for i, key := range keys {
		if v, ok := b.items.Get(key); ok {
			out[i] = v.([]byte)
		}
	}
	return out, nil
}

func (b *MemoryBackend) MSet(_ context.Context, entries []RawEntry) error {
	for _, e := range entries {
		b.items.Set(e.Key, e.Value, lifetime(e.TTL))
	}
	return nil
}

func (b *MemoryBackend) Ping(context.Context) error { return nil }

// Close drops every entry. The janitor stops once the backend is unreachable.
func (b *MemoryBackend) Close() error {
	b.once.Do(b.items.Flush)
	return nil
}

// Len returns the number of stored entries, expired ones not yet swept included.
func (b *MemoryBackend) Len() int {
	return b.items.ItemCount()
}

func (b *MemoryBackend) sweep() {
	b.items.DeleteExpired()
}

// lifetime maps a TTL to go-cache's duration. go-cache reads 0 as the
// default expiration, so a non-positive TTL becomes the shortest lifetime.
func lifetime(ttl time.Duration) time.Duration {
	if ttl <= 0 {
		return time.Nanosecond
	}
	return ttl
}
