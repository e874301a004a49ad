package testutil

import (
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/agora-social/agora/pkg/cache"
	"github.com/agora-social/agora/pkg/interfaces"
)

// NewMiniredis starts an in-process redis server that stops with the test.
func NewMiniredis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return mr, client
}

// NewRedisCache returns a cache service over a fresh miniredis server.
func NewRedisCache(t *testing.T, logger interfaces.Logger) (*cache.Service, *miniredis.Miniredis) {
	t.Helper()

	mr, client := NewMiniredis(t)
	return cache.NewService(cache.NewRedisBackend(client), logger), mr
}
