package repository_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agora-social/agora/internal/user/domain"
	"github.com/agora-social/agora/internal/user/repository"
	"github.com/agora-social/agora/pkg/errors"
	"github.com/agora-social/agora/pkg/pagination"
)

func TestMemoryRepository(t *testing.T) {
	ctx := context.Background()
	repo := repository.NewMemoryRepository(
		domain.User{ID: "u1", Username: "alice", Role: domain.RoleAdmin, Status: domain.StatusActive},
		domain.User{ID: "u2", Username: "bob", Role: domain.RoleUser, Status: domain.StatusActive},
	)

	admin, err := repo.FindByCond(ctx, domain.Condition{Role: domain.RoleAdmin})
	require.NoError(t, err)
	assert.Equal(t, "u1", admin.ID)

	assert.True(t, errors.IsConflict(repo.Insert(ctx, &domain.User{ID: "u3", Username: "bob"})))

	require.NoError(t, repo.DecreaseCount(ctx, "u2", domain.CounterPostCount, 1))
	require.NoError(t, repo.IncreaseCount(ctx, "u2", domain.CounterFollowerCount, 4))
	bob, err := repo.FindByID(ctx, "u2")
	require.NoError(t, err)
	assert.Zero(t, bob.PostCount)
	assert.Equal(t, 4, bob.FollowerCount)

	page, err := repo.List(ctx, domain.Condition{}, pagination.Paging{Sort: "follower_count"})
	require.NoError(t, err)
	assert.Equal(t, "u2", page.Data[0].ID)

	assert.True(t, errors.IsBadRequest(repo.IncreaseCount(ctx, "u1", domain.CounterField(9), 1)))
}
