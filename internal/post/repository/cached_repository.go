package repository

import (
	"github.com/agora-social/agora/internal/post/domain"
	"github.com/agora-social/agora/pkg/cache"
	"github.com/agora-social/agora/pkg/cachekey"
	"github.com/agora-social/agora/pkg/interfaces"
	"github.com/agora-social/agora/pkg/repository/cacherepo"
)

// CachedRepository decorates a post store with cache-aside reads and
// write invalidation.
type CachedRepository struct {
	*cacherepo.Repository[domain.Post, domain.Condition, domain.Update]
	*cacherepo.Counters[domain.CounterField]
}

var (
	_ Repository                       = (*CachedRepository)(nil)
	_ interfaces.CollectionInvalidator = (*CachedRepository)(nil)
)

// NewCachedRepository wraps base. The cache store is borrowed, never closed.
func NewCachedRepository(base Repository, store interfaces.CacheStore, keys *cachekey.Builder, logger interfaces.Logger, ttls cache.TTLs) *CachedRepository {
	repo := cacherepo.New[domain.Post, domain.Condition, domain.Update](base, base, store, keys, logger, cacherepo.Options[domain.Post]{
		Entity: domain.Entity,
		IDOf:   func(p *domain.Post) string { return p.ID },
		TTLs:   ttls,
	})
	return &CachedRepository{
		Repository: repo,
		Counters:   cacherepo.NewCounters[domain.CounterField](base, repo),
	}
}
