package kafka

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/IBM/sarama"
	"go.uber.org/zap"

	"github.com/agora-social/agora/pkg/events"
)

// Consumer feeds one event name from the topic to its handler through its
// own consumer group.
type Consumer struct {
	group       sarama.ConsumerGroup
	topic       string
	eventName   string
	handler     events.Handler
	deadLetters *Publisher
	logger      *zap.Logger

	cancel context.CancelFunc
	done   chan struct{}
}

var _ sarama.ConsumerGroupHandler = (*Consumer)(nil)

func newConsumer(group sarama.ConsumerGroup, topic, eventName string, h events.Handler, deadLetters *Publisher, logger *zap.Logger) *Consumer {
	return &Consumer{
		group:       group,
		topic:       topic,
		eventName:   eventName,
		handler:     h,
		deadLetters: deadLetters,
		logger:      logger.With(zap.String("event", eventName)),
		done:        make(chan struct{}),
	}
}

func (c *Consumer) start() {
	ctx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel

	go func() {
		for err := range c.group.Errors() {
			c.logger.Error("consumer group error", zap.Error(err))
		}
	}()
	go c.run(ctx)
}

func (c *Consumer) run(ctx context.Context) {
	defer close(c.done)

	topics := []string{c.topic}
	for {
		if err := c.group.Consume(ctx, topics, c); err != nil {
			if errors.Is(err, sarama.ErrClosedConsumerGroup) {
				return
			}
			c.logger.Error("consuming messages", zap.Error(err))
			select {
			case <-ctx.Done():
				return
			case <-time.After(time.Second):
			}
		}

		if ctx.Err() != nil {
			return
		}
	}
}

func (c *Consumer) stop() error {
	if c.cancel != nil {
		c.cancel()
		<-c.done
	}
	return c.group.Close()
}

// ConsumeClaim implements sarama.ConsumerGroupHandler
func (c *Consumer) ConsumeClaim(session sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	for {
		select {
		case message, ok := <-claim.Messages():
			if !ok {
				return nil
			}
			if err := c.process(session, message); err != nil {
				return err
			}
		case <-session.Context().Done():
			return nil
		}
	}
}

// process marks the record once it was handled or dead-lettered. A record
// that could not be dead-lettered stays unmarked so the group redelivers it.
func (c *Consumer) process(session sarama.ConsumerGroupSession, message *sarama.ConsumerMessage) error {
	if string(message.Key) != c.eventName {
		session.MarkMessage(message, "")
		return nil
	}

	if err := c.handler(session.Context(), message.Value); err != nil {
		c.logger.Error("dead-lettering record",
			zap.Int32("partition", message.Partition),
			zap.Int64("offset", message.Offset),
			zap.Error(err))
		if dlqErr := c.deadLetters.deadLetter(message, err); dlqErr != nil {
			return fmt.Errorf("handling %s at offset %d: %w", c.eventName, message.Offset, dlqErr)
		}
	}

	session.MarkMessage(message, "")
	return nil
}

// Setup implements sarama.ConsumerGroupHandler
func (c *Consumer) Setup(sarama.ConsumerGroupSession) error {
	return nil
}

// Cleanup implements sarama.ConsumerGroupHandler
func (c *Consumer) Cleanup(sarama.ConsumerGroupSession) error {
	return nil
}
