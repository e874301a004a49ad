package container

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	postservice "github.com/agora-social/agora/internal/post/service"
	topicservice "github.com/agora-social/agora/internal/topic/service"
	userrepo "github.com/agora-social/agora/internal/user/repository"
	"github.com/agora-social/agora/pkg/cache"
	"github.com/agora-social/agora/pkg/config"
	pkgevents "github.com/agora-social/agora/pkg/events"
	"github.com/agora-social/agora/pkg/interfaces"
)

// TopicServiceContainer holds all dependencies of the topic process, which
// owns topics and posts.
type TopicServiceContainer struct {
	Config       *config.BaseConfig
	Logger       interfaces.Logger
	DB           *gorm.DB
	Cache        *cache.Service
	Bus          pkgevents.Bus
	TopicService *topicservice.TopicService
	PostService  *postservice.PostService
	CounterSync  *TopicCounterSync
}

// StartConsumers subscribes the topic counter consumer.
func (c *TopicServiceContainer) StartConsumers(ctx context.Context) (func(context.Context), error) {
	return StartConsumers(ctx, c.Logger, c.CounterSync)
}

// Ready reports whether the database and the cache answer.
func (c *TopicServiceContainer) Ready(ctx context.Context) error {
	return ready(ctx, c.DB, c.Cache)
}

// UserServiceContainer holds all dependencies of the user process.
type UserServiceContainer struct {
	Config      *config.BaseConfig
	Logger      interfaces.Logger
	DB          *gorm.DB
	Cache       *cache.Service
	Bus         pkgevents.Bus
	Users       *userrepo.CachedRepository
	CounterSync *UserCounterSync
}

// StartConsumers subscribes the user counter consumer.
func (c *UserServiceContainer) StartConsumers(ctx context.Context) (func(context.Context), error) {
	return StartConsumers(ctx, c.Logger, c.CounterSync)
}

// Ready reports whether the database and the cache answer.
func (c *UserServiceContainer) Ready(ctx context.Context) error {
	return ready(ctx, c.DB, c.Cache)
}

func ready(ctx context.Context, db *gorm.DB, store *cache.Service) error {
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("database: %w", err)
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		return fmt.Errorf("database: %w", err)
	}
	if store.Enabled() {
		if err := store.Ping(ctx); err != nil {
			return fmt.Errorf("cache: %w", err)
		}
	}
	return nil
}
