// Package nats implements the event bus on a NATS JetStream stream. Each
// subscription reads through its own ephemeral consumer with explicit
// acknowledgement; failures are redelivered with a delay and finally
// copied to a dead-letter subject.
package nats

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"go.uber.org/zap"

	"github.com/agora-social/agora/pkg/events"
)

// Headers set on dead-lettered copies.
const (
	HeaderError    = "Agora-Error"
	HeaderDelivery = "Agora-Delivery"
)

// publisher is the part of jetstream.JetStream the bus publishes with.
type publisher interface {
	PublishMsg(ctx context.Context, msg *nats.Msg, opts ...jetstream.PublishOpt) (*jetstream.PubAck, error)
}

// message is the part of jetstream.Msg a delivery is settled with.
type message interface {
	Data() []byte
	Metadata() (*jetstream.MsgMetadata, error)
	Ack() error
	NakWithDelay(delay time.Duration) error
	Term() error
}

// Options is the redelivery policy.
type Options struct {
	MaxRetries   int
	RetryBackoff time.Duration
	AckWait      time.Duration
}

// Bus is the JetStream events.Bus.
type Bus struct {
	client  *Client
	js      publisher
	cleanup func()
	opts    Options
	logger  *zap.Logger

	ctx    context.Context
	cancel context.CancelFunc

	mu        sync.Mutex
	consumers []jetstream.ConsumeContext
	closed    bool
}

var _ events.Bus = (*Bus)(nil)

// New builds a bus on client. cleanup is called by Disconnect.
func New(client *Client, cleanup func(), opts Options, logger *zap.Logger) *Bus {
	if opts.AckWait <= 0 {
		opts.AckWait = 30 * time.Second
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Bus{
		client:  client,
		js:      client.JetStream(),
		cleanup: cleanup,
		opts:    opts,
		logger:  logger.Named("nats-bus"),
		ctx:     ctx,
		cancel:  cancel,
	}
}

func (b *Bus) Publish(ctx context.Context, event *events.Event) error {
	if b.isClosed() {
		return events.ErrClosed
	}

	data, err := event.Marshal()
	if err != nil {
		return err
	}

	msg := &nats.Msg{Subject: Subject(event.EventName), Data: data}
	if _, err := b.js.PublishMsg(ctx, msg, jetstream.WithMsgID(event.ID)); err != nil {
		return fmt.Errorf("failed to publish %s: %w", event.EventName, err)
	}

	b.logger.Debug("published event",
		zap.String("subject", msg.Subject),
		zap.String("event_id", event.ID))
	return nil
}

// Subscribe creates an ephemeral consumer that only sees events published
// from now on.
func (b *Bus) Subscribe(ctx context.Context, eventName string, h events.Handler) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return events.ErrClosed
	}

	consumer, err := b.client.JetStream().CreateOrUpdateConsumer(ctx, b.client.config.Stream, jetstream.ConsumerConfig{
		FilterSubject:     Subject(eventName),
		AckPolicy:         jetstream.AckExplicitPolicy,
		DeliverPolicy:     jetstream.DeliverNewPolicy,
		AckWait:           b.opts.AckWait,
		InactiveThreshold: time.Minute,
	})
	if err != nil {
		return fmt.Errorf("failed to create consumer for %s: %w", eventName, err)
	}

	cc, err := consumer.Consume(func(msg jetstream.Msg) {
		b.handle(eventName, msg, h)
	})
	if err != nil {
		return fmt.Errorf("failed to consume %s: %w", eventName, err)
	}
	b.consumers = append(b.consumers, cc)

	b.logger.Info("subscribed", zap.String("subject", Subject(eventName)))
	return nil
}

func (b *Bus) handle(eventName string, msg message, h events.Handler) {
	log := b.logger.With(zap.String("event", eventName))

	err := h(b.ctx, msg.Data())
	if err == nil {
		if err := msg.Ack(); err != nil {
			log.Warn("failed to ack message", zap.Error(err))
		}
		return
	}

	attempt := 0
	if md, mdErr := msg.Metadata(); mdErr == nil && md.NumDelivered > 0 {
		attempt = int(md.NumDelivered) - 1
	}

	if events.IsPermanent(err) || attempt >= b.opts.MaxRetries {
		log.Error("dead-lettering message",
			zap.Int("attempt", attempt),
			zap.Bool("permanent", events.IsPermanent(err)),
			zap.Error(err))
		if dlqErr := b.deadLetter(eventName, msg, attempt, err); dlqErr != nil {
			log.Error("failed to dead-letter message", zap.Error(dlqErr))
			_ = msg.NakWithDelay(b.backoff(attempt))
			return
		}
		if err := msg.Term(); err != nil {
			log.Warn("failed to terminate message", zap.Error(err))
		}
		return
	}

	log.Warn("event handler failed, redelivering", zap.Int("attempt", attempt+1), zap.Error(err))
	if err := msg.NakWithDelay(b.backoff(attempt)); err != nil {
		log.Warn("failed to nak message", zap.Error(err))
	}
}

func (b *Bus) deadLetter(eventName string, msg message, attempt int, cause error) error {
	dead := nats.NewMsg(DeadLetterSubject(eventName))
	dead.Data = msg.Data()
	dead.Header.Set(HeaderError, cause.Error())
	dead.Header.Set(HeaderDelivery, fmt.Sprint(attempt+1))

	ctx, cancel := context.WithTimeout(b.ctx, 5*time.Second)
	defer cancel()
	_, err := b.js.PublishMsg(ctx, dead)
	return err
}

func (b *Bus) backoff(attempt int) time.Duration {
	return b.opts.RetryBackoff * time.Duration(attempt+1)
}

// Disconnect stops every consumer and drains the connection.
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

	for _, cc := range consumers {
		cc.Stop()
	}
	b.cancel()
	if b.cleanup != nil {
		b.cleanup()
	}
	return nil
}

func (b *Bus) isClosed() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.closed
}
