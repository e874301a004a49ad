package consumer

import (
	"context"
	"errors"
	"time"

	appevents "github.com/agora-social/agora/internal/events"
	infraevents "github.com/agora-social/agora/internal/infrastructure/events"
	"github.com/agora-social/agora/pkg/config"
	"github.com/agora-social/agora/pkg/events"
	"github.com/agora-social/agora/pkg/interfaces"
	"github.com/agora-social/agora/pkg/repository/cacherepo"
)

// Factory picks the handler wiring that matches the active bus backend.
// Backends that redeliver get the bare handler so failures reach the
// broker; the others retry in process and then drop the message.
type Factory struct {
	backend    string
	maxRetries int
	backoff    time.Duration
	logger     interfaces.Logger
}

// NewFactory reads the backend and retry policy from cfg.
func NewFactory(cfg config.EventsConfig, logger interfaces.Logger) *Factory {
	return &Factory{
		backend:    cfg.Backend,
		maxRetries: cfg.MaxRetries,
		backoff:    cfg.RetryBackoff,
		logger:     logger,
	}
}

// Options returns the consumer options for the backend followed by extra.
func (f *Factory) Options(extra ...Option) []Option {
	opts := make([]Option, 0, len(extra)+1)
	if !infraevents.Redelivers(f.backend) {
		opts = append(opts, WithHandlerWrapper(f.retryThenDrop))
	}
	return append(opts, extra...)
}

func (f *Factory) retryThenDrop(h events.Handler) events.Handler {
	retrying := events.Retrying(func(ctx context.Context, raw []byte) error {
		err := h(ctx, raw)
		if errors.Is(err, ErrStopped) {
			return events.Permanent(err)
		}
		return err
	}, f.maxRetries, f.backoff)
	return func(ctx context.Context, raw []byte) error {
		err := retrying(ctx, raw)
		if errors.Is(err, ErrStopped) {
			f.logger.Debug("dropping event for stopped consumer",
				interfaces.String("backend", f.backend))
			return nil
		}
		if err != nil {
			f.logger.Error("dropping event after failed delivery",
				interfaces.String("backend", f.backend),
				interfaces.Bool("permanent", events.IsPermanent(err)),
				interfaces.Error(err))
		}
		return nil
	}
}

// PostCountBindings moves field on the entity selected by target: up on
// post.created, down on post.deleted.
func PostCountBindings[F any](field F, target func(appevents.PostPayload) string) []Binding[appevents.PostPayload, F] {
	return []Binding[appevents.PostPayload, F]{
		{
			EventName: appevents.PostCreated,
			Target:    target,
			Field:     field,
			Direction: cacherepo.Increase,
			Step:      1,
		},
		{
			EventName: appevents.PostDeleted,
			Target:    target,
			Field:     field,
			Direction: cacherepo.Decrease,
			Step:      1,
		},
	}
}
