// Package redis implements the lightweight event bus on Redis pub/sub.
// Channels are named after events; delivery is at most once and only
// reaches subscribers that are connected when the event is published.
package redis

import (
	"context"
	"fmt"
	"sync"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/agora-social/agora/pkg/events"
)

// Bus publishes on the shared client and gives every subscription its
// own pub/sub connection.
type Bus struct {
	client     redis.UniversalClient
	ownsClient bool
	logger     *zap.Logger

	ctx    context.Context
	cancel context.CancelFunc

	mu     sync.Mutex
	subs   []*redis.PubSub
	wg     sync.WaitGroup
	closed bool
}

var _ events.Bus = (*Bus)(nil)

// New builds a bus on an existing client. The client stays open after
// Disconnect.
func New(client redis.UniversalClient, logger *zap.Logger) *Bus {
	ctx, cancel := context.WithCancel(context.Background())
	return &Bus{
		client: client,
		logger: logger.Named("redis-bus"),
		ctx:    ctx,
		cancel: cancel,
	}
}

// Connect dials url and fails if the server does not answer a PING.
func Connect(ctx context.Context, url string, logger *zap.Logger) (*Bus, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}
	return Open(ctx, opts, logger)
}

// Open dials with opts. The bus closes the client on Disconnect.
func Open(ctx context.Context, opts *redis.Options, logger *zap.Logger) (*Bus, error) {
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", opts.Addr, err)
	}

	bus := New(client, logger)
	bus.ownsClient = true
	logger.Info("redis event bus connected", zap.String("addr", opts.Addr))
	return bus, nil
}

func (b *Bus) Publish(ctx context.Context, event *events.Event) error {
	if b.isClosed() {
		return events.ErrClosed
	}

	data, err := event.Marshal()
	if err != nil {
		return err
	}
	if err := b.client.Publish(ctx, event.EventName, data).Err(); err != nil {
		return fmt.Errorf("failed to publish %s: %w", event.EventName, err)
	}

	b.logger.Debug("published event",
		zap.String("event", event.EventName),
		zap.String("event_id", event.ID))
	return nil
}

// Subscribe returns once Redis has confirmed the subscription.
func (b *Bus) Subscribe(ctx context.Context, eventName string, h events.Handler) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return events.ErrClosed
	}

	ps := b.client.Subscribe(ctx, eventName)
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return fmt.Errorf("failed to subscribe to %s: %w", eventName, err)
	}
	b.subs = append(b.subs, ps)

	b.wg.Add(1)
	go b.listen(eventName, ps.Channel(), h)

	b.logger.Info("subscribed", zap.String("event", eventName))
	return nil
}

func (b *Bus) listen(eventName string, ch <-chan *redis.Message, h events.Handler) {
	defer b.wg.Done()

	for msg := range ch {
		if err := h(b.ctx, []byte(msg.Payload)); err != nil {
			b.logger.Error("event handler failed",
				zap.String("event", eventName),
				zap.Error(err))
		}
	}
}

// Disconnect closes every subscription and waits for in-flight handlers.
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
	for _, ps := range subs {
		if err := ps.Close(); err != nil {
			b.logger.Warn("failed to close subscription", zap.Error(err))
		}
	}
	b.wg.Wait()

	if b.ownsClient {
		return b.client.Close()
	}
	return nil
}

func (b *Bus) isClosed() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.closed
}
