package container

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/agora-social/agora/internal/consumer"
	appevents "github.com/agora-social/agora/internal/events"
	infraevents "github.com/agora-social/agora/internal/infrastructure/events"
	"github.com/agora-social/agora/internal/migrations"
	postrepo "github.com/agora-social/agora/internal/post/repository"
	postservice "github.com/agora-social/agora/internal/post/service"
	topicdomain "github.com/agora-social/agora/internal/topic/domain"
	topicrepo "github.com/agora-social/agora/internal/topic/repository"
	topicservice "github.com/agora-social/agora/internal/topic/service"
	userdomain "github.com/agora-social/agora/internal/user/domain"
	userrepo "github.com/agora-social/agora/internal/user/repository"
	"github.com/agora-social/agora/pkg/cache"
	"github.com/agora-social/agora/pkg/cachekey"
	"github.com/agora-social/agora/pkg/config"
	"github.com/agora-social/agora/pkg/database"
	pkgevents "github.com/agora-social/agora/pkg/events"
	"github.com/agora-social/agora/pkg/interfaces"
	"github.com/agora-social/agora/pkg/logger"
)

// memorySweepInterval is how often the in-memory cache drops expired keys.
const memorySweepInterval = time.Minute

// TopicCounterSync keeps topic post counts in step with post events.
type TopicCounterSync = consumer.CounterSync[appevents.PostPayload, topicdomain.CounterField]

// UserCounterSync keeps user post counts in step with post events.
type UserCounterSync = consumer.CounterSync[appevents.PostPayload, userdomain.CounterField]

// ProvideZapLogger builds the process logger from the logger section.
func ProvideZapLogger(cfg *config.BaseConfig) (*logger.ZapLogger, func(), error) {
	l, err := logger.ForService(cfg.Service.Name, cfg.Logger.Level, cfg.Logger.Format, cfg.Logger.Development).Build()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to build logger: %w", err)
	}
	return l, func() { _ = l.Sync() }, nil
}

// ProvideLogger exposes the process logger through the logging interface.
func ProvideLogger(l *logger.ZapLogger) interfaces.Logger {
	return l
}

// ProvideZap exposes the underlying zap logger for infrastructure code.
func ProvideZap(l *logger.ZapLogger) *zap.Logger {
	return l.Zap()
}

// ProvideDatabase opens the database and applies pending migrations when
// auto_migrate is set.
func ProvideDatabase(cfg *config.BaseConfig, log *zap.Logger) (*gorm.DB, func(), error) {
	db, cleanup, err := database.NewGormDB(cfg.Database.ToDatabaseConfig(), log)
	if err != nil {
		return nil, nil, err
	}

	if cfg.Database.AutoMigrate {
		if err := migrations.Run(db, log); err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("failed to run migrations: %w", err)
		}
	}

	return db, cleanup, nil
}

// ProvideCache opens the cache backend named by the cache section. An
// unreachable redis is logged, not fatal: the store fails open.
func ProvideCache(ctx context.Context, cfg *config.BaseConfig, log interfaces.Logger) (*cache.Service, func(), error) {
	var backend cache.Backend
	switch cfg.Cache.Driver {
	case config.CacheDriverRedis, "":
		backend = cache.NewRedisBackend(redis.NewClient(cfg.Redis.ClientOptions()))
	case config.CacheDriverMemory:
		backend = cache.NewMemoryBackend(memorySweepInterval)
	default:
		return nil, nil, fmt.Errorf("unsupported cache driver: %s", cfg.Cache.Driver)
	}

	svc := cache.NewService(backend, log,
		cache.WithEnabled(cfg.Cache.Enabled),
		cache.WithTTLs(ProvideTTLs(cfg)))

	if cfg.Cache.Enabled {
		if err := svc.Ping(ctx); err != nil {
			log.Warn("cache backend unreachable, serving from the database",
				interfaces.String("driver", cfg.Cache.Driver),
				interfaces.Error(err))
		}
	}

	cleanup := func() {
		if err := svc.Close(); err != nil {
			log.Error("failed to close cache", interfaces.Error(err))
		}
	}
	return svc, cleanup, nil
}

// ProvideTTLs maps the ttl section onto the cache TTL classes.
func ProvideTTLs(cfg *config.BaseConfig) cache.TTLs {
	return cache.TTLs{
		Entity: cfg.Cache.TTL.Entity,
		List:   cfg.Cache.TTL.List,
		Bulk:   cfg.Cache.TTL.Bulk,
		Search: cfg.Cache.TTL.Search,
	}
}

// ProvideKeyBuilder builds the cache key builder shared by every repository.
func ProvideKeyBuilder(cfg *config.BaseConfig) *cachekey.Builder {
	return cachekey.New(cfg.Cache.KeyPrefix, cachekey.WithHashLength(cfg.Cache.HashLength))
}

// ProvideEventBus connects the configured bus backend. The cleanup
// disconnects it within the shutdown timeout.
func ProvideEventBus(ctx context.Context, cfg *config.BaseConfig, log *zap.Logger) (pkgevents.Bus, func(), error) {
	bus, err := infraevents.NewEventBus(ctx, cfg.Events, cfg.Redis, cfg.Service.Name, log)
	if err != nil {
		return nil, nil, err
	}

	cleanup := func() {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout(cfg))
		defer cancel()
		if err := bus.Disconnect(ctx); err != nil {
			log.Error("failed to disconnect event bus", zap.Error(err))
		}
	}
	return bus, cleanup, nil
}

// ProvideConsumerFactory builds the consumer factory for the active backend.
func ProvideConsumerFactory(cfg *config.BaseConfig, log interfaces.Logger) *consumer.Factory {
	return consumer.NewFactory(cfg.Events, log)
}

// ProvideTopicRepository caches the gorm topic store.
func ProvideTopicRepository(db *gorm.DB, store interfaces.CacheStore, keys *cachekey.Builder, log interfaces.Logger, ttls cache.TTLs) *topicrepo.CachedRepository {
	return topicrepo.NewCachedRepository(topicrepo.NewGormRepository(db), store, keys, log, ttls)
}

// ProvidePostRepository caches the gorm post store.
func ProvidePostRepository(db *gorm.DB, store interfaces.CacheStore, keys *cachekey.Builder, log interfaces.Logger, ttls cache.TTLs) *postrepo.CachedRepository {
	return postrepo.NewCachedRepository(postrepo.NewGormRepository(db), store, keys, log, ttls)
}

// ProvideUserRepository caches the gorm user store.
func ProvideUserRepository(db *gorm.DB, store interfaces.CacheStore, keys *cachekey.Builder, log interfaces.Logger, ttls cache.TTLs) *userrepo.CachedRepository {
	return userrepo.NewCachedRepository(userrepo.NewGormRepository(db), store, keys, log, ttls)
}

// ProvideTopicService builds the topic service over the cached repository.
func ProvideTopicService(repo *topicrepo.CachedRepository, log interfaces.Logger) *topicservice.TopicService {
	return topicservice.NewTopicService(repo, log)
}

// ProvidePostService builds the post service. It checks topics in process
// and announces post lifecycle events on bus.
func ProvidePostService(cfg *config.BaseConfig, repo *postrepo.CachedRepository, topics *topicservice.TopicService, bus pkgevents.Bus, log interfaces.Logger) *postservice.PostService {
	return postservice.NewPostService(repo, topics, bus, log, cfg.Events.PublishTimeout)
}

// ProvideTopicCounterSync moves topic post counts. Post lists embed the
// topic, so they are dropped after every delta.
func ProvideTopicCounterSync(bus pkgevents.Bus, topics *topicrepo.CachedRepository, posts *postrepo.CachedRepository, factory *consumer.Factory, log interfaces.Logger) *TopicCounterSync {
	return consumer.New(bus, topics, log,
		consumer.PostCountBindings(topicdomain.CounterPostCount, appevents.TopicTarget),
		factory.Options(consumer.WithInvalidators(posts))...)
}

// ProvideUserCounterSync moves the post count of the author.
func ProvideUserCounterSync(bus pkgevents.Bus, users *userrepo.CachedRepository, factory *consumer.Factory, log interfaces.Logger) *UserCounterSync {
	return consumer.New(bus, users, log,
		consumer.PostCountBindings(userdomain.CounterPostCount, appevents.AuthorTarget),
		factory.Options()...)
}

func shutdownTimeout(cfg *config.BaseConfig) time.Duration {
	if cfg.Service.ShutdownTTL > 0 {
		return cfg.Service.ShutdownTTL
	}
	return config.DefaultShutdownTimeout
}
