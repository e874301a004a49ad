// Package kafka implements the event bus on a single Kafka topic. Records
// are keyed by event name and every subscription reads through its own
// consumer group. Failing records are retried in process, then copied to
// the dead-letter topic.
package kafka

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/IBM/sarama"
	"go.uber.org/zap"

	"github.com/agora-social/agora/pkg/config"
	"github.com/agora-social/agora/pkg/events"
)

// GroupFactory opens a consumer group by id.
type GroupFactory func(groupID string) (sarama.ConsumerGroup, error)

// Options configures the topic, the group prefix and the retry policy.
type Options struct {
	Topic        string
	GroupID      string
	MaxRetries   int
	RetryBackoff time.Duration
}

// Bus is the Kafka events.Bus.
type Bus struct {
	publisher *Publisher
	newGroup  GroupFactory
	opts      Options
	logger    *zap.Logger

	mu        sync.Mutex
	consumers []*Consumer
	closed    bool
}

var _ events.Bus = (*Bus)(nil)

// Dial connects a producer to the brokers. Consumer groups are opened per
// subscription.
func Dial(cfg config.KafkaConfig, opts Options, logger *zap.Logger) (*Bus, error) {
	producer, err := sarama.NewSyncProducer(cfg.Brokers, NewProducerConfig())
	if err != nil {
		return nil, fmt.Errorf("creating producer: %w", err)
	}

	newGroup := func(groupID string) (sarama.ConsumerGroup, error) {
		groupConfig := sarama.NewConfig()
		groupConfig.Consumer.Return.Errors = true
		groupConfig.Consumer.Offsets.Initial = sarama.OffsetNewest
		return sarama.NewConsumerGroup(cfg.Brokers, groupID, groupConfig)
	}

	logger.Info("kafka event bus connected",
		zap.Strings("brokers", cfg.Brokers),
		zap.String("topic", opts.Topic))
	return New(producer, newGroup, opts, logger), nil
}

// New builds a bus from a producer and a group factory.
func New(producer sarama.SyncProducer, newGroup GroupFactory, opts Options, logger *zap.Logger) *Bus {
	logger = logger.Named("kafka")
	return &Bus{
		publisher: NewPublisher(producer, opts.Topic, logger),
		newGroup:  newGroup,
		opts:      opts,
		logger:    logger,
	}
}

func (b *Bus) Publish(ctx context.Context, event *events.Event) error {
	if b.isClosed() {
		return events.ErrClosed
	}
	return b.publisher.Publish(ctx, event)
}

// GroupID returns the consumer group a subscription to eventName joins.
func (b *Bus) GroupID(eventName string) string {
	return b.opts.GroupID + "." + eventName
}

func (b *Bus) Subscribe(_ context.Context, eventName string, h events.Handler) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return events.ErrClosed
	}

	group, err := b.newGroup(b.GroupID(eventName))
	if err != nil {
		return fmt.Errorf("creating consumer group for %s: %w", eventName, err)
	}

	handler := events.Retrying(h, b.opts.MaxRetries, b.opts.RetryBackoff)
	c := newConsumer(group, b.opts.Topic, eventName, handler, b.publisher, b.logger)
	c.start()
	b.consumers = append(b.consumers, c)

	b.logger.Info("subscribed",
		zap.String("event", eventName),
		zap.String("group", b.GroupID(eventName)))
	return nil
}

func (b *Bus) Disconnect(context.Context) error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	consumers := b.consumers
	b.consumers = nil
	b.mu.Unlock()

	for _, c := range consumers {
		if err := c.stop(); err != nil {
			b.logger.Warn("failed to close consumer group", zap.String("event", c.eventName), zap.Error(err))
		}
	}
	return b.publisher.Close()
}

func (b *Bus) isClosed() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.closed
}
