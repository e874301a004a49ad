// Package consumer keeps denormalized counters in step with lifecycle
// events published by other services.
package consumer

import (
	"context"
	"fmt"
	"sync"

	"github.com/agora-social/agora/pkg/errors"
	"github.com/agora-social/agora/pkg/events"
	"github.com/agora-social/agora/pkg/interfaces"
	"github.com/agora-social/agora/pkg/repository/cacherepo"
)

// State of a CounterSync subscription set.
type State int

const (
	Unsubscribed State = iota
	Subscribed
)

// ErrStopped is returned for deliveries that reach a stopped consumer. It is
// not permanent, so redelivering transports keep the message for later.
var ErrStopped = errors.New(errors.ErrorTypeUnavailable, "counter sync is stopped")

func (s State) String() string {
	if s == Subscribed {
		return "subscribed"
	}
	return "unsubscribed"
}

// Binding maps one event name to a counter delta. Target extracts the id
// of the entity whose counter moves.
type Binding[P, F any] struct {
	EventName string
	Target    func(P) string
	Field     F
	Direction cacherepo.Direction
	Step      int
}

// Option customizes a CounterSync.
type Option func(*settings)

type settings struct {
	invalidators []interfaces.CollectionInvalidator
	wrap         func(events.Handler) events.Handler
}

// WithInvalidators drops the collections of other entity types after a
// delta was applied, e.g. post lists that embed the counter.
func WithInvalidators(invs ...interfaces.CollectionInvalidator) Option {
	return func(s *settings) {
		s.invalidators = append(s.invalidators, invs...)
	}
}

// WithHandlerWrapper decorates every subscribed handler.
func WithHandlerWrapper(wrap func(events.Handler) events.Handler) Option {
	return func(s *settings) {
		s.wrap = wrap
	}
}

// CounterSync applies the counter delta of every bound event through a
// counter store that invalidates the target's cache entries.
type CounterSync[P, F any] struct {
	bus      events.Bus
	counters cacherepo.CounterStore[F]
	bindings []Binding[P, F]
	settings settings
	logger   interfaces.Logger

	mu         sync.RWMutex
	state      State
	subscribed bool
}

// New creates a consumer for bindings. Nothing is subscribed until Start.
func New[P, F any](bus events.Bus, counters cacherepo.CounterStore[F], logger interfaces.Logger, bindings []Binding[P, F], opts ...Option) *CounterSync[P, F] {
	s := settings{}
	for _, opt := range opts {
		opt(&s)
	}
	return &CounterSync[P, F]{
		bus:      bus,
		counters: counters,
		bindings: bindings,
		settings: s,
		logger:   logger.WithFields(interfaces.String("component", "counter-sync")),
	}
}

// Start subscribes every binding on first use. Subscriptions outlive Stop,
// so a later Start only resumes delivery. Calling it while subscribed is a
// no-op.
func (c *CounterSync[P, F]) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state == Subscribed {
		return nil
	}
	if c.subscribed {
		c.state = Subscribed
		c.logger.Info("counter sync resumed")
		return nil
	}

	for _, b := range c.bindings {
		h := c.Handler(b)
		if c.settings.wrap != nil {
			h = c.settings.wrap(h)
		}
		if err := c.bus.Subscribe(ctx, b.EventName, h); err != nil {
			return fmt.Errorf("failed to subscribe to %s: %w", b.EventName, err)
		}
		c.logger.Info("counter sync subscribed",
			interfaces.String("event", b.EventName),
			interfaces.String("direction", b.Direction.String()))
	}

	c.subscribed = true
	c.state = Subscribed
	return nil
}

// Stop pauses delivery. Messages arriving while stopped fail with
// ErrStopped. The bus keeps its connection; closing it belongs to the
// process.
func (c *CounterSync[P, F]) Stop(context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state = Unsubscribed
}

// State returns the current subscription state.
func (c *CounterSync[P, F]) State() State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

// Handler returns the delivery handler of b. Undecodable messages fail
// with a permanent error; failures of the counter store and deliveries to a
// stopped consumer are returned as is so the transport can retry them.
func (c *CounterSync[P, F]) Handler(b Binding[P, F]) events.Handler {
	step := b.Step
	if step < 1 {
		step = 1
	}

	return func(ctx context.Context, raw []byte) error {
		if c.State() != Subscribed {
			return ErrStopped
		}

		event, err := events.Parse(raw)
		if err != nil {
			return events.Permanent(err)
		}
		if event.EventName != b.EventName {
			c.logger.Debug("ignoring event",
				interfaces.String("expected", b.EventName),
				interfaces.String("event", event.EventName))
			return nil
		}

		var payload P
		if err := event.DecodePayload(&payload); err != nil {
			return events.Permanent(fmt.Errorf("failed to decode %s payload: %w", event.EventName, err))
		}
		id := b.Target(payload)
		if id == "" {
			return events.Permanent(fmt.Errorf("%s payload has no target id", event.EventName))
		}

		switch b.Direction {
		case cacherepo.Increase:
			err = c.counters.IncreaseCount(ctx, id, b.Field, step)
		case cacherepo.Decrease:
			err = c.counters.DecreaseCount(ctx, id, b.Field, step)
		default:
			return events.Permanent(fmt.Errorf("unknown counter direction %d", b.Direction))
		}
		if err != nil {
			if errors.IsNotFound(err) || errors.IsBadRequest(err) {
				return events.Permanent(err)
			}
			return err
		}

		for _, inv := range c.settings.invalidators {
			inv.InvalidateCollections(ctx)
		}

		c.logger.Debug("counter synced",
			interfaces.String("event", event.EventName),
			interfaces.String("event_id", event.ID),
			interfaces.String("target", id),
			interfaces.String("field", fmt.Sprint(b.Field)),
			interfaces.String("direction", b.Direction.String()),
			interfaces.Int("step", step))
		return nil
	}
}
