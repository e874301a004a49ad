package repository_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agora-social/agora/internal/post/domain"
	"github.com/agora-social/agora/internal/post/repository"
	"github.com/agora-social/agora/pkg/cache"
	"github.com/agora-social/agora/pkg/cachekey"
	"github.com/agora-social/agora/pkg/logger"
	"github.com/agora-social/agora/pkg/pagination"
	"github.com/agora-social/agora/test/testutil"
)

func TestCachedRepositoryInvalidateCollections(t *testing.T) {
	ctx := context.Background()
	store, mr := testutil.NewRedisCache(t, logger.NewNoop())
	keys := cachekey.New("agora:")
	repo := repository.NewCachedRepository(
		repository.NewMemoryRepository(domain.Post{ID: "p1", AuthorID: "u1", TopicID: "t1", Content: "hi", Type: domain.TypeText}),
		store, keys, logger.NewNoop(), cache.DefaultTTLs(),
	)

	_, err := repo.FindByID(ctx, "p1")
	require.NoError(t, err)
	_, err = repo.List(ctx, domain.Condition{TopicID: "t1"}, pagination.Paging{}.Normalize(domain.SortColumns...))
	require.NoError(t, err)
	require.Len(t, mr.Keys(), 2)

	repo.InvalidateCollections(ctx)

	assert.Equal(t, []string{keys.ID(domain.Entity, "p1")}, mr.Keys())
}

func TestCachedRepositoryCounters(t *testing.T) {
	ctx := context.Background()
	store, mr := testutil.NewRedisCache(t, logger.NewNoop())
	repo := repository.NewCachedRepository(
		repository.NewMemoryRepository(domain.Post{ID: "p1", AuthorID: "u1", TopicID: "t1", Content: "hi", Type: domain.TypeText}),
		store, cachekey.New("agora:"), logger.NewNoop(), cache.DefaultTTLs(),
	)

	_, err := repo.FindByID(ctx, "p1")
	require.NoError(t, err)
	require.NoError(t, repo.IncreaseCount(ctx, "p1", domain.CounterLikedCount, 1))
	assert.Empty(t, mr.Keys())

	post, err := repo.FindByID(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, 1, post.LikedCount)
}
