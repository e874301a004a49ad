package interfaces

import (
	"context"
	"encoding/json"
	"time"
)

// CacheStore is the key/value cache used by cached repositories.
//
// Implementations are fail-open: transport and serialization errors are
// logged and reported as a miss or a negative result, never returned.
type CacheStore interface {
	// Get decodes the value stored under key into dest. It reports whether a value was found.
	Get(ctx context.Context, key string, dest any) bool

	// Set stores value under key for ttl.
	Set(ctx context.Context, key string, value any, ttl time.Duration) bool

	// Del removes the given keys.
	Del(ctx context.Context, keys ...string) bool

	// DelPattern removes every key matching a glob pattern and returns how many were removed.
	DelPattern(ctx context.Context, pattern string) int64

	// Exists reports whether key is present.
	Exists(ctx context.Context, key string) bool

	// MGet returns the raw values for keys, aligned by index. Absent keys are nil.
	MGet(ctx context.Context, keys []string) []json.RawMessage

	// MSet stores all entries in a single batch.
	MSet(ctx context.Context, entries []CacheEntry) bool
}

// CacheEntry is a single item of a multi-set.
type CacheEntry struct {
	Key   string
	Value any
	TTL   time.Duration
}

// CollectionInvalidator drops every collection-shaped cache entry of one entity type.
type CollectionInvalidator interface {
	InvalidateCollections(ctx context.Context)
}
