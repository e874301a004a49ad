// Package events selects and connects the configured event bus transport.
package events

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/agora-social/agora/internal/infrastructure/events/kafka"
	natsbus "github.com/agora-social/agora/internal/infrastructure/events/nats"
	"github.com/agora-social/agora/internal/infrastructure/events/rabbitmq"
	redisbus "github.com/agora-social/agora/internal/infrastructure/events/redis"
	"github.com/agora-social/agora/pkg/config"
	pkgevents "github.com/agora-social/agora/pkg/events"
	"github.com/agora-social/agora/pkg/logger"
)

// Redelivers reports whether backend retries failed deliveries on its own.
// Handlers of the other backends need an in-process retry.
func Redelivers(backend string) bool {
	switch backend {
	case config.BackendDurable, config.BackendRabbitMQ, config.BackendNATS, config.BackendKafka:
		return true
	default:
		return false
	}
}

// NewEventBus connects the backend named by cfg.Backend. A transport that
// cannot be reached is an error; there is no fallback to another backend.
func NewEventBus(ctx context.Context, cfg config.EventsConfig, redisCfg config.RedisConfig, serviceName string, log *zap.Logger) (pkgevents.Bus, error) {
	switch cfg.Backend {
	case config.BackendMemory:
		return pkgevents.NewMemoryBus(logger.NewFromZap(log)), nil

	case config.BackendLightweight, config.BackendRedis:
		var (
			bus *redisbus.Bus
			err error
		)
		if cfg.Redis.URL != "" {
			bus, err = redisbus.Connect(ctx, cfg.Redis.URL, log)
		} else {
			bus, err = redisbus.Open(ctx, redisCfg.ClientOptions(), log)
		}
		if err != nil {
			return nil, err
		}
		return bus, nil

	case config.BackendDurable, config.BackendRabbitMQ:
		conn, err := rabbitmq.Dial(cfg.RabbitMQ.URL)
		if err != nil {
			return nil, err
		}
		bus, err := rabbitmq.New(conn, rabbitmq.Options{
			Exchange:     cfg.RabbitMQ.Exchange,
			ExchangeType: valueOr(cfg.RabbitMQ.ExchangeType, config.DefaultExchangeType),
			Prefetch:     cfg.RabbitMQ.Prefetch,
			DeadLetter:   cfg.RabbitMQ.DeadLetter,
			MaxRetries:   cfg.MaxRetries,
			RetryBackoff: cfg.RetryBackoff,
		}, log)
		if err != nil {
			_ = conn.Close()
			return nil, err
		}
		return bus, nil

	case config.BackendNATS:
		natsCfg := cfg.NATS
		natsCfg.ClientID = valueOr(natsCfg.ClientID, serviceName)
		client, cleanup, err := natsbus.NewClient(ctx, natsCfg, log)
		if err != nil {
			return nil, err
		}
		return natsbus.New(client, cleanup, natsbus.Options{
			MaxRetries:   cfg.MaxRetries,
			RetryBackoff: cfg.RetryBackoff,
		}, log), nil

	case config.BackendKafka:
		bus, err := kafka.Dial(cfg.Kafka, kafka.Options{
			Topic:        cfg.Kafka.Topic,
			GroupID:      valueOr(cfg.Kafka.GroupID, serviceName),
			MaxRetries:   cfg.MaxRetries,
			RetryBackoff: cfg.RetryBackoff,
		}, log)
		if err != nil {
			return nil, err
		}
		return bus, nil

	default:
		return nil, fmt.Errorf("unsupported event bus backend: %q", cfg.Backend)
	}
}

func valueOr(v, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}
