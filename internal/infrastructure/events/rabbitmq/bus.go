// Package rabbitmq implements the durable event bus on a RabbitMQ topic
// exchange. Every subscription owns an exclusive queue whose failed
// deliveries are retried through the queue itself and finally
// dead-lettered.
package rabbitmq

import (
	"context"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"github.com/agora-social/agora/pkg/events"
)

// RetryHeader counts how many times a delivery has been republished.
const RetryHeader = "x-retry-count"

// Options configures exchange topology and the retry policy.
type Options struct {
	Exchange     string
	ExchangeType string
	Prefetch     int
	DeadLetter   bool
	MaxRetries   int
	RetryBackoff time.Duration
}

// DeadLetterExchange is the exchange failed deliveries are routed to.
func (o Options) DeadLetterExchange() string { return o.Exchange + ".dlx" }

// DeadLetterQueue is the durable queue collecting dead-lettered deliveries.
func (o Options) DeadLetterQueue() string { return o.Exchange + ".dead-letter" }

type subscription struct {
	event string
	queue string
	ch    Channel
}

// Bus is the durable events.Bus.
type Bus struct {
	conn   Connection
	opts   Options
	logger *zap.Logger

	pubMu sync.Mutex
	pubCh Channel

	ctx    context.Context
	cancel context.CancelFunc

	mu     sync.Mutex
	subs   []*subscription
	wg     sync.WaitGroup
	closed bool
}

var _ events.Bus = (*Bus)(nil)

// New declares the exchange topology on conn. A declaration failure is
// returned so the process can refuse to start.
func New(conn Connection, opts Options, logger *zap.Logger) (*Bus, error) {
	pubCh, err := conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("failed to open publish channel: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	b := &Bus{
		conn:   conn,
		opts:   opts,
		logger: logger.Named("rabbitmq"),
		pubCh:  pubCh,
		ctx:    ctx,
		cancel: cancel,
	}

	if err := b.declareTopology(); err != nil {
		cancel()
		_ = pubCh.Close()
		return nil, err
	}

	closed := conn.NotifyClose(make(chan *amqp.Error, 1))
	go func() {
		if err, ok := <-closed; ok && err != nil {
			b.logger.Error("rabbitmq connection lost",
				zap.Int("code", err.Code),
				zap.String("reason", err.Reason))
		}
	}()

	b.logger.Info("rabbitmq event bus ready",
		zap.String("exchange", opts.Exchange),
		zap.Bool("dead_letter", opts.DeadLetter))
	return b, nil
}

func (b *Bus) declareTopology() error {
	if err := b.pubCh.ExchangeDeclare(b.opts.Exchange, b.opts.ExchangeType, true, false, false, false, nil); err != nil {
		return fmt.Errorf("failed to declare exchange %s: %w", b.opts.Exchange, err)
	}
	if !b.opts.DeadLetter {
		return nil
	}

	dlx := b.opts.DeadLetterExchange()
	if err := b.pubCh.ExchangeDeclare(dlx, amqp.ExchangeTopic, true, false, false, false, nil); err != nil {
		return fmt.Errorf("failed to declare exchange %s: %w", dlx, err)
	}
	if _, err := b.pubCh.QueueDeclare(b.opts.DeadLetterQueue(), true, false, false, false, nil); err != nil {
		return fmt.Errorf("failed to declare dead-letter queue: %w", err)
	}
	if err := b.pubCh.QueueBind(b.opts.DeadLetterQueue(), "#", dlx, false, nil); err != nil {
		return fmt.Errorf("failed to bind dead-letter queue: %w", err)
	}
	return nil
}

func (b *Bus) Publish(ctx context.Context, event *events.Event) error {
	data, err := event.Marshal()
	if err != nil {
		return err
	}

	msg := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    event.ID,
		Timestamp:    event.OccurredAt,
		Type:         event.EventName,
		Body:         data,
	}

	b.pubMu.Lock()
	defer b.pubMu.Unlock()

	if b.isClosed() {
		return events.ErrClosed
	}
	if err := b.pubCh.PublishWithContext(ctx, b.opts.Exchange, event.EventName, false, false, msg); err != nil {
		return fmt.Errorf("failed to publish %s: %w", event.EventName, err)
	}

	b.logger.Debug("published event",
		zap.String("event", event.EventName),
		zap.String("event_id", event.ID))
	return nil
}

func (b *Bus) Subscribe(_ context.Context, eventName string, h events.Handler) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return events.ErrClosed
	}

	ch, err := b.conn.Channel()
	if err != nil {
		return fmt.Errorf("failed to open channel: %w", err)
	}

	sub, deliveries, err := b.bind(ch, eventName)
	if err != nil {
		_ = ch.Close()
		return err
	}
	b.subs = append(b.subs, sub)

	b.wg.Add(1)
	go b.consume(sub, deliveries, h)

	b.logger.Info("subscribed",
		zap.String("event", eventName),
		zap.String("queue", sub.queue))
	return nil
}

func (b *Bus) bind(ch Channel, eventName string) (*subscription, <-chan amqp.Delivery, error) {
	if err := ch.Qos(b.opts.Prefetch, 0, false); err != nil {
		return nil, nil, fmt.Errorf("failed to set prefetch: %w", err)
	}

	var args amqp.Table
	if b.opts.DeadLetter {
		args = amqp.Table{"x-dead-letter-exchange": b.opts.DeadLetterExchange()}
	}
	q, err := ch.QueueDeclare("", false, true, true, false, args)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to declare queue for %s: %w", eventName, err)
	}
	if err := ch.QueueBind(q.Name, eventName, b.opts.Exchange, false, nil); err != nil {
		return nil, nil, fmt.Errorf("failed to bind queue for %s: %w", eventName, err)
	}

	deliveries, err := ch.Consume(q.Name, "", false, true, false, false, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to consume %s: %w", q.Name, err)
	}
	return &subscription{event: eventName, queue: q.Name, ch: ch}, deliveries, nil
}

func (b *Bus) consume(sub *subscription, deliveries <-chan amqp.Delivery, h events.Handler) {
	defer b.wg.Done()

	for d := range deliveries {
		b.handle(sub, d, h)
	}
}

func (b *Bus) handle(sub *subscription, d amqp.Delivery, h events.Handler) {
	log := b.logger.With(
		zap.String("event", sub.event),
		zap.String("message_id", d.MessageId))

	err := h(b.ctx, d.Body)
	if err == nil {
		if err := d.Ack(false); err != nil {
			log.Warn("failed to ack delivery", zap.Error(err))
		}
		return
	}

	attempt := retryCount(d.Headers)
	if events.IsPermanent(err) || attempt >= b.opts.MaxRetries {
		log.Error("dropping delivery",
			zap.Int("attempt", attempt),
			zap.Bool("permanent", events.IsPermanent(err)),
			zap.Error(err))
		if err := d.Nack(false, false); err != nil {
			log.Warn("failed to nack delivery", zap.Error(err))
		}
		return
	}

	log.Warn("event handler failed, retrying", zap.Int("attempt", attempt+1), zap.Error(err))

	select {
	case <-b.ctx.Done():
		_ = d.Nack(false, true)
		return
	case <-time.After(b.opts.RetryBackoff * time.Duration(attempt+1)):
	}

	if err := sub.ch.PublishWithContext(b.ctx, "", sub.queue, false, false, retryCopy(d, attempt+1)); err != nil {
		log.Error("failed to republish delivery", zap.Error(err))
		if err := d.Nack(false, true); err != nil {
			log.Warn("failed to nack delivery", zap.Error(err))
		}
		return
	}
	if err := d.Ack(false); err != nil {
		log.Warn("failed to ack delivery", zap.Error(err))
	}
}

func retryCopy(d amqp.Delivery, attempt int) amqp.Publishing {
	headers := make(amqp.Table, len(d.Headers)+1)
	for k, v := range d.Headers {
		headers[k] = v
	}
	headers[RetryHeader] = int32(attempt)

	return amqp.Publishing{
		Headers:      headers,
		ContentType:  d.ContentType,
		DeliveryMode: amqp.Persistent,
		MessageId:    d.MessageId,
		Timestamp:    d.Timestamp,
		Type:         d.Type,
		Body:         d.Body,
	}
}

func retryCount(headers amqp.Table) int {
	switch v := headers[RetryHeader].(type) {
	case int32:
		return int(v)
	case int64:
		return int(v)
	case int:
		return v
	default:
		return 0
	}
}

// Disconnect closes every subscription channel, waits for in-flight
// deliveries and closes the connection.
func (b *Bus) Disconnect(context.Context) error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	subs := b.subs
	b.subs = nil
	b.mu.Unlock()

	b.cancel()
	for _, sub := range subs {
		if err := sub.ch.Close(); err != nil {
			b.logger.Warn("failed to close channel", zap.String("queue", sub.queue), zap.Error(err))
		}
	}
	b.wg.Wait()

	b.pubMu.Lock()
	defer b.pubMu.Unlock()
	if err := b.pubCh.Close(); err != nil {
		b.logger.Warn("failed to close publish channel", zap.Error(err))
	}
	return b.conn.Close()
}

func (b *Bus) isClosed() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.closed
}
