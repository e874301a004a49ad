package cache

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"go.uber.org/zap/zaptest"

	"github.com/agora-social/agora/pkg/interfaces"
	"github.com/agora-social/agora/pkg/logger"
)

type RedisBackendTestSuite struct {
	suite.Suite
	mr      *miniredis.Miniredis
	client  *redis.Client
	backend *RedisBackend
	svc     *Service
	ctx     context.Context
}

func (s *RedisBackendTestSuite) SetupTest() {
	s.mr = miniredis.RunT(s.T())
	s.client = redis.NewClient(&redis.Options{Addr: s.mr.Addr()})
	s.backend = NewRedisBackend(s.client)
	s.svc = NewService(s.backend, logger.NewFromZap(zaptest.NewLogger(s.T())))
	s.ctx = context.Background()
}

func (s *RedisBackendTestSuite) TearDownTest() {
	s.client.Close()
}

func (s *RedisBackendTestSuite) TestSetStoresJSONWithSecondTTL() {
	s.True(s.svc.Set(s.ctx, "agora:topic:id:t1", item{ID: "t1", Name: "go"}, 2*time.Minute))

	raw, err := s.mr.Get("agora:topic:id:t1")
	s.Require().NoError(err)
	s.JSONEq(`{"id":"t1","name":"go"}`, raw)
	s.Equal(2*time.Minute, s.mr.TTL("agora:topic:id:t1"))

	s.mr.FastForward(3 * time.Minute)
	var got item
	s.False(s.svc.Get(s.ctx, "agora:topic:id:t1", &got))
}

func (s *RedisBackendTestSuite) TestDelPatternRemovesOnlyMatches() {
	for i := 0; i < 450; i++ {
		s.Require().NoError(s.mr.Set(fmt.Sprintf("agora:topic:list:%04d", i), "[]"))
	}
	s.Require().NoError(s.mr.Set("agora:topic:id:t1", "{}"))
	s.Require().NoError(s.mr.Set("agora:post:list:abc", "[]"))

	n := s.svc.DelPattern(s.ctx, "agora:topic:list:*")

	s.Equal(int64(450), n)
	s.True(s.mr.Exists("agora:topic:id:t1"))
	s.True(s.mr.Exists("agora:post:list:abc"))
}

func (s *RedisBackendTestSuite) TestMGetAlignsWithKeys() {
	s.Require().NoError(s.mr.Set("a", `{"id":"a"}`))
	s.Require().NoError(s.mr.Set("c", `{"id":"c"}`))

	vals := s.svc.MGet(s.ctx, []string{"a", "b", "c"})
	s.Require().Len(vals, 3)
	s.JSONEq(`{"id":"a"}`, string(vals[0]))
	s.Nil(vals[1])
	s.JSONEq(`{"id":"c"}`, string(vals[2]))
}

func (s *RedisBackendTestSuite) TestMSetWritesEveryEntry() {
	ok := s.svc.MSet(s.ctx, []interfaces.CacheEntry{
		{Key: "agora:topic:id:1", Value: item{ID: "1"}, TTL: time.Minute},
		{Key: "agora:topic:id:2", Value: item{ID: "2"}, TTL: 2 * time.Minute},
	})
	s.True(ok)
	s.Equal(time.Minute, s.mr.TTL("agora:topic:id:1"))
	s.Equal(2*time.Minute, s.mr.TTL("agora:topic:id:2"))
}

func (s *RedisBackendTestSuite) TestExists() {
	s.False(s.svc.Exists(s.ctx, "k"))
	s.Require().NoError(s.mr.Set("k", "1"))
	s.True(s.svc.Exists(s.ctx, "k"))
}

func TestRedisBackendTestSuite(t *testing.T) {
	suite.Run(t, new(RedisBackendTestSuite))
}

func TestRedisUnavailableFailsOpen(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{
		Addr:        mr.Addr(),
		MaxRetries:  -1,
		DialTimeout: 100 * time.Millisecond,
	})
	t.Cleanup(func() { client.Close() })
	svc := NewService(NewRedisBackend(client), logger.NewFromZap(zaptest.NewLogger(t)))
	mr.Close()

	ctx := context.Background()
	var dest item
	assert.False(t, svc.Get(ctx, "k", &dest))
	assert.False(t, svc.Set(ctx, "k", item{}, time.Minute))
	assert.Equal(t, int64(0), svc.DelPattern(ctx, "*"))
	assert.Len(t, svc.MGet(ctx, []string{"k"}), 1)
	require.Error(t, svc.Ping(ctx))
}
