//go:build wireinject
// +build wireinject

package container

import (
	"context"

	"github.com/google/wire"

	"github.com/agora-social/agora/pkg/cache"
	"github.com/agora-social/agora/pkg/config"
	"github.com/agora-social/agora/pkg/interfaces"
)

var infrastructureSet = wire.NewSet(
	// Logging
	ProvideZapLogger,
	ProvideLogger,
	ProvideZap,

	// Database
	ProvideDatabase,

	// Cache
	ProvideCache,
	wire.Bind(new(interfaces.CacheStore), new(*cache.Service)),
	ProvideTTLs,
	ProvideKeyBuilder,

	// Event bus
	ProvideEventBus,
	ProvideConsumerFactory,
)

// InitializeTopicService creates the topic process with all dependencies
func InitializeTopicService(ctx context.Context, cfg *config.BaseConfig) (*TopicServiceContainer, func(), error) {
	wire.Build(
		infrastructureSet,

		// Repositories
		ProvideTopicRepository,
		ProvidePostRepository,

		// Services
		ProvideTopicService,
		ProvidePostService,

		// Consumers
		ProvideTopicCounterSync,

		// Container
		wire.Struct(new(TopicServiceContainer), "*"),
	)

	return nil, nil, nil
}

// InitializeUserService creates the user process with all dependencies
func InitializeUserService(ctx context.Context, cfg *config.BaseConfig) (*UserServiceContainer, func(), error) {
	wire.Build(
		infrastructureSet,

		// Repositories
		ProvideUserRepository,

		// Consumers
		ProvideUserCounterSync,

		// Container
		wire.Struct(new(UserServiceContainer), "*"),
	)

	return nil, nil, nil
}
