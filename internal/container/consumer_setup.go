package container

import (
	"context"

	"github.com/agora-social/agora/pkg/interfaces"
)

// Consumer is an event consumer with an explicit subscription lifecycle.
type Consumer interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context)
}

// StartConsumers starts every consumer and returns a function that stops
// them in reverse order. If one fails to start, the ones already started
// are stopped before the error is returned.
func StartConsumers(ctx context.Context, log interfaces.Logger, consumers ...Consumer) (func(context.Context), error) {
	started := make([]Consumer, 0, len(consumers))
	stop := func(ctx context.Context) {
		for i := len(started) - 1; i >= 0; i-- {
			started[i].Stop(ctx)
		}
		log.Info("event consumers stopped")
	}

	for _, c := range consumers {
		if err := c.Start(ctx); err != nil {
			stop(ctx)
			return nil, err
		}
		started = append(started, c)
	}

	log.Info("event consumers started", interfaces.Int("count", len(started)))
	return stop, nil
}
