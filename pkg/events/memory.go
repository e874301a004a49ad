package events

import (
	"context"
	"sync"

	"github.com/agora-social/agora/pkg/interfaces"
)

// MemoryBus delivers events synchronously inside the process. Handler
// errors are logged and do not reach the publisher.
type MemoryBus struct {
	mu       sync.RWMutex
	handlers map[string][]Handler
	closed   bool
	logger   interfaces.Logger
}

var _ Bus = (*MemoryBus)(nil)

// NewMemoryBus creates an in-process bus.
func NewMemoryBus(logger interfaces.Logger) *MemoryBus {
	return &MemoryBus{
		handlers: make(map[string][]Handler),
		logger:   logger.WithFields(interfaces.String("component", "memory-bus")),
	}
}

func (b *MemoryBus) Publish(ctx context.Context, event *Event) error {
	raw, err := event.Marshal()
	if err != nil {
		return err
	}

	b.mu.RLock()
	if b.closed {
		b.mu.RUnlock()
		return ErrClosed
	}
	handlers := append([]Handler(nil), b.handlers[event.EventName]...)
	b.mu.RUnlock()

	for _, h := range handlers {
		if err := h(ctx, raw); err != nil {
			b.logger.Error("event handler failed",
				interfaces.String("event", event.EventName),
				interfaces.String("event_id", event.ID),
				interfaces.Error(err))
		}
	}
	return nil
}

func (b *MemoryBus) Subscribe(_ context.Context, eventName string, h Handler) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return ErrClosed
	}
	b.handlers[eventName] = append(b.handlers[eventName], h)
	b.logger.Debug("subscribed", interfaces.String("event", eventName))
	return nil
}

func (b *MemoryBus) Disconnect(context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.closed = true
	b.handlers = make(map[string][]Handler)
	return nil
}
