package repository

import (
	"context"

	"github.com/agora-social/agora/internal/topic/domain"
	"github.com/agora-social/agora/pkg/cache"
	"github.com/agora-social/agora/pkg/cachekey"
	"github.com/agora-social/agora/pkg/errors"
	"github.com/agora-social/agora/pkg/interfaces"
	"github.com/agora-social/agora/pkg/repository/cacherepo"
)

// CachedRepository decorates a topic store with cache-aside reads and
// write invalidation. Name lookups go through a name key that holds only
// the topic id, so counter changes never leave a stale copy behind it.
type CachedRepository struct {
	*cacherepo.Repository[domain.Topic, domain.Condition, domain.Update]
	*cacherepo.Counters[domain.CounterField]
	base Repository
}

var _ Repository = (*CachedRepository)(nil)

// NewCachedRepository wraps base. The cache store is borrowed, never closed.
func NewCachedRepository(base Repository, store interfaces.CacheStore, keys *cachekey.Builder, logger interfaces.Logger, ttls cache.TTLs) *CachedRepository {
	repo := cacherepo.New[domain.Topic, domain.Condition, domain.Update](base, base, store, keys, logger, cacherepo.Options[domain.Topic]{
		Entity: domain.Entity,
		IDOf:   func(t *domain.Topic) string { return t.ID },
		TTLs:   ttls,
	})
	return &CachedRepository{
		Repository: repo,
		Counters:   cacherepo.NewCounters[domain.CounterField](base, repo),
		base:       base,
	}
}

// FindByCond resolves a name through the name key and then the id key.
// A name key pointing at a missing or renamed topic is dropped and the
// base store is consulted.
func (r *CachedRepository) FindByCond(ctx context.Context, cond domain.Condition) (*domain.Topic, error) {
	if cond.Name == "" {
		return r.Repository.FindByCond(ctx, cond)
	}

	nameKey := r.Keys().Name(domain.Entity, cond.Name)
	id, err := cacherepo.ReadThrough(ctx, r.Repository, nameKey, cache.TTLEntity,
		func(ctx context.Context) (string, error) {
			topic, err := r.base.FindByCond(ctx, cond)
			if err != nil {
				return "", err
			}
			r.Cache().Set(ctx, r.Keys().ID(domain.Entity, topic.ID), topic, r.TTL(cache.TTLEntity))
			return topic.ID, nil
		},
		func(id string) bool { return id != "" })
	if err != nil {
		return nil, err
	}

	topic, err := r.FindByID(ctx, id)
	switch {
	case err == nil && topic.Name == cond.Name:
		return topic, nil
	case err == nil || errors.IsNotFound(err):
		r.Logger().Debug("stale topic name key", interfaces.String("name", cond.Name), interfaces.String("id", id))
		r.Cache().Del(ctx, nameKey)
		return r.base.FindByCond(ctx, cond)
	default:
		return nil, err
	}
}

func (r *CachedRepository) Insert(ctx context.Context, topic *domain.Topic) error {
	if err := r.base.Insert(ctx, topic); err != nil {
		return err
	}
	r.InvalidateEntity(ctx, topic.ID, r.Keys().Name(domain.Entity, topic.Name))
	return nil
}

// Update invalidates the name keys of both the previous and the new name.
func (r *CachedRepository) Update(ctx context.Context, id string, patch domain.Update) error {
	names := r.currentName(ctx, id)
	if err := r.base.Update(ctx, id, patch); err != nil {
		return err
	}
	if patch.Name != nil {
		names = append(names, r.Keys().Name(domain.Entity, *patch.Name))
	}
	r.InvalidateEntity(ctx, id, names...)
	return nil
}

func (r *CachedRepository) Delete(ctx context.Context, id string) error {
	names := r.currentName(ctx, id)
	if err := r.base.Delete(ctx, id); err != nil {
		return err
	}
	r.InvalidateEntity(ctx, id, names...)
	return nil
}

// currentName returns the name key of the persisted topic, if any.
func (r *CachedRepository) currentName(ctx context.Context, id string) []string {
	topic, err := r.base.FindByID(ctx, id)
	if err != nil {
		return nil
	}
	return []string{r.Keys().Name(domain.Entity, topic.Name)}
}
