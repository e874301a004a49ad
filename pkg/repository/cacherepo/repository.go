// Package cacherepo decorates entity stores with read-through caching and
// write invalidation.
//
// Point lookups are cached under id keys and invalidated narrowly. Every
// collection-shaped result (cond, list, ids) is invalidated as a whole on any
// write to the entity type, since the cache cannot tell which collections a
// write affects.
package cacherepo

import (
	"context"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/agora-social/agora/pkg/cache"
	"github.com/agora-social/agora/pkg/cachekey"
	"github.com/agora-social/agora/pkg/interfaces"
	"github.com/agora-social/agora/pkg/pagination"
)

// QueryStore is the read half of an entity store.
type QueryStore[T, C any] interface {
	FindByID(ctx context.Context, id string) (*T, error)
	FindByCond(ctx context.Context, cond C) (*T, error)
	List(ctx context.Context, cond C, paging pagination.Paging) (*pagination.Page[T], error)
	ListByIDs(ctx context.Context, ids []string) ([]T, error)
}

// CommandStore is the write half of an entity store.
type CommandStore[T, U any] interface {
	Insert(ctx context.Context, entity *T) error
	Update(ctx context.Context, id string, patch U) error
	Delete(ctx context.Context, id string) error
}

// Options describe the entity being cached.
type Options[T any] struct {
	// Entity is the key segment, e.g. "topic".
	Entity string
	// IDOf extracts the primary key.
	IDOf func(*T) string
	TTLs cache.TTLs
	// LoadTimeout bounds a shared store load. Defaults to DefaultLoadTimeout.
	LoadTimeout time.Duration
}

// DefaultLoadTimeout bounds a store load shared by concurrent misses.
const DefaultLoadTimeout = 10 * time.Second

// Repository is the generic cache-aside decorator for entity T with
// condition C and update patch U.
type Repository[T, C, U any] struct {
	entity  string
	idOf    func(*T) string
	query   QueryStore[T, C]
	command CommandStore[T, U]
	cache   interfaces.CacheStore
	keys    *cachekey.Builder
	ttls    cache.TTLs
	logger  interfaces.Logger
	flight  singleflight.Group
	timeout time.Duration
}

// New builds a Repository. The cache store is borrowed; the repository never closes it.
func New[T, C, U any](
	query QueryStore[T, C],
	command CommandStore[T, U],
	store interfaces.CacheStore,
	keys *cachekey.Builder,
	logger interfaces.Logger,
	opts Options[T],
) *Repository[T, C, U] {
	timeout := opts.LoadTimeout
	if timeout <= 0 {
		timeout = DefaultLoadTimeout
	}
	return &Repository[T, C, U]{
		entity:  opts.Entity,
		idOf:    opts.IDOf,
		query:   query,
		command: command,
		cache:   store,
		keys:    keys,
		ttls:    opts.TTLs,
		logger:  logger.WithFields(interfaces.String("entity", opts.Entity)),
		timeout: timeout,
	}
}

// Entity returns the entity key segment.
func (r *Repository[T, C, U]) Entity() string { return r.entity }

// Keys exposes the key builder to entity-specific wrappers of this repository.
func (r *Repository[T, C, U]) Keys() *cachekey.Builder { return r.keys }

// Cache exposes the cache store to entity-specific wrappers of this repository.
func (r *Repository[T, C, U]) Cache() interfaces.CacheStore { return r.cache }

// TTL returns the lifetime of class c.
func (r *Repository[T, C, U]) TTL(c cache.TTLClass) time.Duration { return r.ttls.For(c) }

// Logger returns the entity-scoped logger.
func (r *Repository[T, C, U]) Logger() interfaces.Logger { return r.logger }

func (r *Repository[T, C, U]) FindByID(ctx context.Context, id string) (*T, error) {
	return ReadThrough(ctx, r, r.keys.ID(r.entity, id), cache.TTLEntity,
		func(ctx context.Context) (*T, error) { return r.query.FindByID(ctx, id) },
		notNil[T])
}

func (r *Repository[T, C, U]) FindByCond(ctx context.Context, cond C) (*T, error) {
	key, err := r.keys.Cond(r.entity, cond)
	if err != nil {
		r.logger.Warn("cache key derivation failed, reading store", interfaces.Error(err))
		return r.query.FindByCond(ctx, cond)
	}
	return ReadThrough(ctx, r, key, cache.TTLSearch,
		func(ctx context.Context) (*T, error) { return r.query.FindByCond(ctx, cond) },
		notNil[T])
}

func (r *Repository[T, C, U]) List(ctx context.Context, cond C, paging pagination.Paging) (*pagination.Page[T], error) {
	key, err := r.keys.List(r.entity, cond, paging)
	if err != nil {
		r.logger.Warn("cache key derivation failed, reading store", interfaces.Error(err))
		return r.query.List(ctx, cond, paging)
	}
	return ReadThrough(ctx, r, key, cache.TTLList,
		func(ctx context.Context) (*pagination.Page[T], error) { return r.query.List(ctx, cond, paging) },
		func(p *pagination.Page[T]) bool { return p != nil && len(p.Data) > 0 })
}

// ListByIDs returns the entities with the given ids. An empty id set
// returns immediately. On a miss every item is also cached under its id key.
func (r *Repository[T, C, U]) ListByIDs(ctx context.Context, ids []string) ([]T, error) {
	if len(ids) == 0 {
		return []T{}, nil
	}

	key := r.keys.IDs(r.entity, ids)
	var cached []T
	if r.cache.Get(ctx, key, &cached) {
		return cached, nil
	}

	v, err := r.share(ctx, key, func(ctx context.Context) (interface{}, error) {
		items, err := r.query.ListByIDs(ctx, ids)
		if err != nil || len(items) == 0 {
			return items, err
		}

		entries := make([]interfaces.CacheEntry, 0, len(items)+1)
		entries = append(entries, interfaces.CacheEntry{Key: key, Value: items, TTL: r.TTL(cache.TTLBulk)})
		for i := range items {
			entries = append(entries, interfaces.CacheEntry{
				Key:   r.keys.ID(r.entity, r.idOf(&items[i])),
				Value: &items[i],
				TTL:   r.TTL(cache.TTLEntity),
			})
		}
		r.cache.MSet(ctx, entries)
		return items, nil
	})
	if err != nil {
		return nil, err
	}
	items, _ := v.([]T)
	if items == nil {
		items = []T{}
	}
	return items, nil
}

func (r *Repository[T, C, U]) Insert(ctx context.Context, entity *T) error {
	if err := r.command.Insert(ctx, entity); err != nil {
		return err
	}
	r.InvalidateEntity(ctx, r.idOf(entity))
	return nil
}

func (r *Repository[T, C, U]) Update(ctx context.Context, id string, patch U) error {
	if err := r.command.Update(ctx, id, patch); err != nil {
		return err
	}
	r.InvalidateEntity(ctx, id)
	return nil
}

func (r *Repository[T, C, U]) Delete(ctx context.Context, id string) error {
	if err := r.command.Delete(ctx, id); err != nil {
		return err
	}
	r.InvalidateEntity(ctx, id)
	return nil
}

// InvalidateEntity drops the id key of id, any extra point keys and every
// collection of the entity type. Failures are logged by the cache store.
func (r *Repository[T, C, U]) InvalidateEntity(ctx context.Context, id string, extraKeys ...string) {
	keys := append([]string{r.keys.ID(r.entity, id)}, extraKeys...)
	if !r.cache.Del(ctx, keys...) {
		r.logger.Warn("point invalidation failed", interfaces.String("id", id))
	}
	r.InvalidateCollections(ctx)
}

// InvalidateCollections drops every list, ids and cond entry of the entity type.
func (r *Repository[T, C, U]) InvalidateCollections(ctx context.Context) {
	for _, pattern := range r.keys.CollectionPatterns(r.entity) {
		n := r.cache.DelPattern(ctx, pattern)
		r.logger.Debug("collection invalidated", interfaces.String("pattern", pattern), interfaces.Int64("removed", n))
	}
}

// ReadThrough serves key from the cache, or loads it, caches non-empty
// results for the TTL of class and returns them. Concurrent misses on the
// same key share a single load. Cache failures never fail the read.
func ReadThrough[R, T, C, U any](
	ctx context.Context,
	r *Repository[T, C, U],
	key string,
	class cache.TTLClass,
	load func(context.Context) (R, error),
	keep func(R) bool,
) (R, error) {
	var out R
	if r.cache.Get(ctx, key, &out) {
		return out, nil
	}

	v, err := r.share(ctx, key, func(ctx context.Context) (interface{}, error) {
		res, err := load(ctx)
		if err != nil {
			return res, err
		}
		if keep(res) {
			r.cache.Set(ctx, key, res, r.TTL(class))
		}
		return res, nil
	})
	if err != nil {
		var zero R
		return zero, err
	}
	return v.(R), nil
}

// share runs load once for all concurrent callers of key. The load does not
// inherit the cancellation of whichever caller started it and is bounded by
// the load timeout instead; every caller stops waiting when its own ctx ends.
func (r *Repository[T, C, U]) share(ctx context.Context, key string, load func(context.Context) (interface{}, error)) (interface{}, error) {
	ch := r.flight.DoChan(key, func() (interface{}, error) {
		loadCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.timeout)
		defer cancel()
		return load(loadCtx)
	})

	select {
	case res := <-ch:
		return res.Val, res.Err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func notNil[T any](v *T) bool { return v != nil }
