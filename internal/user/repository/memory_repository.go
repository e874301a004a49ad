package repository

import (
	"context"
	"sync"
	"time"

	"github.com/agora-social/agora/internal/user/domain"
	"github.com/agora-social/agora/pkg/errors"
	"github.com/agora-social/agora/pkg/pagination"
	"github.com/agora-social/agora/pkg/repository"
)

// MemoryRepository is a map-backed Repository for tests and local runs.
type MemoryRepository struct {
	mu    sync.RWMutex
	users map[string]domain.User
}

// NewMemoryRepository returns a store holding copies of seed.
func NewMemoryRepository(seed ...domain.User) *MemoryRepository {
	r := &MemoryRepository{users: make(map[string]domain.User, len(seed))}
	for _, u := range seed {
		r.users[u.ID] = u
	}
	return r
}

func (r *MemoryRepository) FindByID(_ context.Context, id string) (*domain.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	u, ok := r.users[id]
	if !ok {
		return nil, errors.NotFound("user not found")
	}
	return &u, nil
}

func (r *MemoryRepository) FindByCond(_ context.Context, cond domain.Condition) (*domain.User, error) {
	if cond.Empty() {
		return nil, errors.NotFound("user not found")
	}
	matched := r.filter(cond)
	if len(matched) == 0 {
		return nil, errors.NotFound("user not found")
	}
	newest := matched[0]
	for _, u := range matched[1:] {
		if u.CreatedAt.After(newest.CreatedAt) {
			newest = u
		}
	}
	return &newest, nil
}

func (r *MemoryRepository) List(_ context.Context, cond domain.Condition, paging pagination.Paging) (*pagination.Page[domain.User], error) {
	paging = paging.Normalize(domain.SortColumns...)
	return repository.PageOf(r.filter(cond), paging, userID, lessUser), nil
}

func (r *MemoryRepository) ListByIDs(_ context.Context, ids []string) ([]domain.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []domain.User
	for _, id := range ids {
		if u, ok := r.users[id]; ok {
			out = append(out, u)
		}
	}
	return out, nil
}

func (r *MemoryRepository) Insert(_ context.Context, user *domain.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.users[user.ID]; ok {
		return errors.Conflict("user already exists")
	}
	for _, u := range r.users {
		if u.Username == user.Username {
			return errors.Conflict("user already exists")
		}
	}
	r.users[user.ID] = *user
	return nil
}

func (r *MemoryRepository) Update(_ context.Context, id string, patch domain.Update) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.users[id]
	if !ok {
		return errors.NotFound("user not found")
	}
	patch.Apply(&u)
	r.users[id] = u
	return nil
}

func (r *MemoryRepository) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.users[id]; !ok {
		return errors.NotFound("user not found")
	}
	delete(r.users, id)
	return nil
}

func (r *MemoryRepository) IncreaseCount(_ context.Context, id string, field domain.CounterField, step int) error {
	return r.adjust(id, field, step)
}

func (r *MemoryRepository) DecreaseCount(_ context.Context, id string, field domain.CounterField, step int) error {
	return r.adjust(id, field, -step)
}

func (r *MemoryRepository) adjust(id string, field domain.CounterField, delta int) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.users[id]
	if !ok {
		return errors.NotFound("user not found")
	}
	switch field {
	case domain.CounterPostCount:
		u.PostCount = max(u.PostCount+delta, 0)
	case domain.CounterFollowerCount:
		u.FollowerCount = max(u.FollowerCount+delta, 0)
	default:
		return errors.BadRequest("unknown user counter")
	}
	u.UpdatedAt = time.Now().UTC()
	r.users[id] = u
	return nil
}

func (r *MemoryRepository) filter(cond domain.Condition) []domain.User {
	r.mu.RLock()
	defer r.mu.RUnlock()

	matched := make([]domain.User, 0, len(r.users))
	for _, u := range r.users {
		if cond.Matches(&u) {
			matched = append(matched, u)
		}
	}
	return matched
}

func userID(u *domain.User) string { return u.ID }

func lessUser(a, b *domain.User, column string) bool {
	switch column {
	case "username":
		return a.Username < b.Username
	case "post_count":
		return a.PostCount < b.PostCount
	case "follower_count":
		return a.FollowerCount < b.FollowerCount
	default:
		return a.CreatedAt.Before(b.CreatedAt)
	}
}
