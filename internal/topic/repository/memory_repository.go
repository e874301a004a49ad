package repository

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/agora-social/agora/internal/topic/domain"
	"github.com/agora-social/agora/pkg/errors"
	"github.com/agora-social/agora/pkg/pagination"
	"github.com/agora-social/agora/pkg/repository"
)

// MemoryRepository is a map-backed Repository for tests and local runs.
type MemoryRepository struct {
	mu     sync.RWMutex
	topics map[string]domain.Topic
}

// NewMemoryRepository returns a store holding copies of seed.
func NewMemoryRepository(seed ...domain.Topic) *MemoryRepository {
	r := &MemoryRepository{topics: make(map[string]domain.Topic, len(seed))}
	for _, t := range seed {
		r.topics[t.ID] = t
	}
	return r
}

func (r *MemoryRepository) FindByID(_ context.Context, id string) (*domain.Topic, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	t, ok := r.topics[id]
	if !ok {
		return nil, errors.NotFound("topic not found")
	}
	return &t, nil
}

func (r *MemoryRepository) FindByCond(_ context.Context, cond domain.Condition) (*domain.Topic, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if cond.Name != "" {
		for _, t := range r.topics {
			if t.Name == cond.Name {
				return &t, nil
			}
		}
	}
	return nil, errors.NotFound("topic not found")
}

func (r *MemoryRepository) List(_ context.Context, cond domain.Condition, paging pagination.Paging) (*pagination.Page[domain.Topic], error) {
	paging = paging.Normalize(domain.SortColumns...)

	r.mu.RLock()
	matched := make([]domain.Topic, 0, len(r.topics))
	for _, t := range r.topics {
		if cond.Name == "" || strings.Contains(t.Name, cond.Name) {
			matched = append(matched, t)
		}
	}
	r.mu.RUnlock()

	return repository.PageOf(matched, paging, topicID, lessTopic), nil
}

func (r *MemoryRepository) ListByIDs(_ context.Context, ids []string) ([]domain.Topic, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []domain.Topic
	for _, id := range ids {
		if t, ok := r.topics[id]; ok {
			out = append(out, t)
		}
	}
	return out, nil
}

func (r *MemoryRepository) Insert(_ context.Context, topic *domain.Topic) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.topics[topic.ID]; ok {
		return errors.Conflict("topic already exists")
	}
	for _, t := range r.topics {
		if t.Name == topic.Name {
			return errors.Conflict("topic already exists")
		}
	}
	r.topics[topic.ID] = *topic
	return nil
}

func (r *MemoryRepository) Update(_ context.Context, id string, patch domain.Update) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	t, ok := r.topics[id]
	if !ok {
		return errors.NotFound("topic not found")
	}
	if patch.Name != nil {
		for otherID, other := range r.topics {
			if otherID != id && other.Name == *patch.Name {
				return errors.Conflict("topic already exists")
			}
		}
	}
	patch.Apply(&t)
	r.topics[id] = t
	return nil
}

func (r *MemoryRepository) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.topics[id]; !ok {
		return errors.NotFound("topic not found")
	}
	delete(r.topics, id)
	return nil
}

func (r *MemoryRepository) IncreaseCount(_ context.Context, id string, field domain.CounterField, step int) error {
	return r.adjust(id, field, step)
}

func (r *MemoryRepository) DecreaseCount(_ context.Context, id string, field domain.CounterField, step int) error {
	return r.adjust(id, field, -step)
}

// adjust applies delta under the write lock, clamping at zero.
func (r *MemoryRepository) adjust(id string, field domain.CounterField, delta int) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	t, ok := r.topics[id]
	if !ok {
		return errors.NotFound("topic not found")
	}
	switch field {
	case domain.CounterPostCount:
		t.PostCount = max(t.PostCount+delta, 0)
	default:
		return errors.BadRequest("unknown topic counter")
	}
	t.UpdatedAt = time.Now().UTC()
	r.topics[id] = t
	return nil
}

func topicID(t *domain.Topic) string { return t.ID }

func lessTopic(a, b *domain.Topic, column string) bool {
	switch column {
	case "name":
		return a.Name < b.Name
	case "post_count":
		return a.PostCount < b.PostCount
	default:
		return a.CreatedAt.Before(b.CreatedAt)
	}
}
