package cache

import (
	"context"
	"errors"
	"time"
)

// ErrMiss is returned by a Backend when a key is absent or expired.
var ErrMiss = errors.New("cache miss")

// RawEntry is an encoded value ready to be written by a Backend.
type RawEntry struct {
	Key   string
	Value []byte
	TTL   time.Duration
}

// Backend is the transport under Service. Backends report every failure;
// Service turns them into misses.
type Backend interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Del(ctx context.Context, keys ...string) (int64, error)
	DelPattern(ctx context.Context, pattern string) (int64, error)
	Exists(ctx context.Context, key string) (bool, error)
	// MGet returns values aligned with keys; absent keys are nil.
	MGet(ctx context.Context, keys []string) ([][]byte, error)
	// MSet writes all entries as one batch.
	MSet(ctx context.Context, entries []RawEntry) error
	Ping(ctx context.Context) error
	Close() error
}
