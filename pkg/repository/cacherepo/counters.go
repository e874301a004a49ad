package cacherepo

import (
	"context"

	"github.com/agora-social/agora/pkg/errors"
)

// Direction of a counter delta.
type Direction int

const (
	Increase Direction = iota + 1
	Decrease
)

func (d Direction) String() string {
	switch d {
	case Increase:
		return "increase"
	case Decrease:
		return "decrease"
	default:
		return "unknown"
	}
}

// CounterStore applies atomic counter deltas at the persistence layer.
// Decreases are clamped at zero by the store.
type CounterStore[F any] interface {
	IncreaseCount(ctx context.Context, id string, field F, step int) error
	DecreaseCount(ctx context.Context, id string, field F, step int) error
}

// Invalidator is the part of Repository that counter updates need.
type Invalidator interface {
	InvalidateEntity(ctx context.Context, id string, extraKeys ...string)
}

// Counters decorates a CounterStore with the same invalidation as the write path.
type Counters[F any] struct {
	store CounterStore[F]
	inv   Invalidator
}

// NewCounters binds store to the invalidation of a Repository.
func NewCounters[F any](store CounterStore[F], inv Invalidator) *Counters[F] {
	return &Counters[F]{store: store, inv: inv}
}

func (c *Counters[F]) IncreaseCount(ctx context.Context, id string, field F, step int) error {
	return c.Apply(ctx, id, field, step, Increase)
}

func (c *Counters[F]) DecreaseCount(ctx context.Context, id string, field F, step int) error {
	return c.Apply(ctx, id, field, step, Decrease)
}

// Apply performs one delta and invalidates the entity afterwards.
func (c *Counters[F]) Apply(ctx context.Context, id string, field F, step int, dir Direction) error {
	if step < 1 {
		return errors.BadRequest("counter step must be positive")
	}

	var err error
	switch dir {
	case Increase:
		err = c.store.IncreaseCount(ctx, id, field, step)
	case Decrease:
		err = c.store.DecreaseCount(ctx, id, field, step)
	default:
		return errors.BadRequest("unknown counter direction")
	}
	if err != nil {
		return err
	}

	c.inv.InvalidateEntity(ctx, id)
	return nil
}
