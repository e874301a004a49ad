package repository

import (
	"context"
	"sync"
	"time"

	"github.com/agora-social/agora/internal/post/domain"
	"github.com/agora-social/agora/pkg/errors"
	"github.com/agora-social/agora/pkg/pagination"
	"github.com/agora-social/agora/pkg/repository"
)

// MemoryRepository is a map-backed Repository for tests and local runs.
type MemoryRepository struct {
	mu    sync.RWMutex
	posts map[string]domain.Post
}

// NewMemoryRepository returns a store holding copies of seed.
func NewMemoryRepository(seed ...domain.Post) *MemoryRepository {
	r := &MemoryRepository{posts: make(map[string]domain.Post, len(seed))}
	for _, p := range seed {
		r.posts[p.ID] = p
	}
	return r
}

func (r *MemoryRepository) FindByID(_ context.Context, id string) (*domain.Post, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.posts[id]
	if !ok {
		return nil, errors.NotFound("post not found")
	}
	return &p, nil
}

func (r *MemoryRepository) FindByCond(_ context.Context, cond domain.Condition) (*domain.Post, error) {
	if cond.Empty() {
		return nil, errors.NotFound("post not found")
	}

	matched := r.filter(cond)
	if len(matched) == 0 {
		return nil, errors.NotFound("post not found")
	}
	newest := matched[0]
	for _, p := range matched[1:] {
		if p.CreatedAt.After(newest.CreatedAt) {
			newest = p
		}
	}
	return &newest, nil
}

func (r *MemoryRepository) List(_ context.Context, cond domain.Condition, paging pagination.Paging) (*pagination.Page[domain.Post], error) {
	paging = paging.Normalize(domain.SortColumns...)
	matched := r.filter(cond)

	return repository.PageOf(matched, paging, postID, lessPost), nil
}

func (r *MemoryRepository) ListByIDs(_ context.Context, ids []string) ([]domain.Post, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []domain.Post
	for _, id := range ids {
		if p, ok := r.posts[id]; ok {
			out = append(out, p)
		}
	}
	return out, nil
}

func (r *MemoryRepository) Insert(_ context.Context, post *domain.Post) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.posts[post.ID]; ok {
		return errors.Conflict("post already exists")
	}
	r.posts[post.ID] = *post
	return nil
}

func (r *MemoryRepository) Update(_ context.Context, id string, patch domain.Update) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.posts[id]
	if !ok {
		return errors.NotFound("post not found")
	}
	patch.Apply(&p)
	r.posts[id] = p
	return nil
}

func (r *MemoryRepository) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.posts[id]; !ok {
		return errors.NotFound("post not found")
	}
	delete(r.posts, id)
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

	p, ok := r.posts[id]
	if !ok {
		return errors.NotFound("post not found")
	}
	switch field {
	case domain.CounterCommentCount:
		p.CommentCount = max(p.CommentCount+delta, 0)
	case domain.CounterLikedCount:
		p.LikedCount = max(p.LikedCount+delta, 0)
	default:
		return errors.BadRequest("unknown post counter")
	}
	p.UpdatedAt = time.Now().UTC()
	r.posts[id] = p
	return nil
}

func (r *MemoryRepository) filter(cond domain.Condition) []domain.Post {
	r.mu.RLock()
	defer r.mu.RUnlock()

	matched := make([]domain.Post, 0, len(r.posts))
	for _, p := range r.posts {
		if cond.Matches(&p) {
			matched = append(matched, p)
		}
	}
	return matched
}

func postID(p *domain.Post) string { return p.ID }

func lessPost(a, b *domain.Post, column string) bool {
	switch column {
	case "liked_count":
		return a.LikedCount < b.LikedCount
	case "comment_count":
		return a.CommentCount < b.CommentCount
	default:
		return a.CreatedAt.Before(b.CreatedAt)
	}
}
