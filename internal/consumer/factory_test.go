package consumer

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appevents "github.com/agora-social/agora/internal/events"
	"github.com/agora-social/agora/pkg/config"
	"github.com/agora-social/agora/pkg/events"
	"github.com/agora-social/agora/pkg/logger"
	"github.com/agora-social/agora/pkg/repository/cacherepo"
)

func factoryFor(backend string) *Factory {
	cfg := config.GetDefaults().Events
	cfg.Backend = backend
	cfg.MaxRetries = 2
	cfg.RetryBackoff = time.Millisecond
	return NewFactory(cfg, logger.NewNoop())
}

func wrapperOf(opts []Option) func(events.Handler) events.Handler {
	s := settings{}
	for _, opt := range opts {
		opt(&s)
	}
	return s.wrap
}

func TestFactoryLeavesRedeliveringBackendsBare(t *testing.T) {
	for _, backend := range []string{config.BackendDurable, config.BackendNATS, config.BackendKafka} {
		assert.Nil(t, wrapperOf(factoryFor(backend).Options()), backend)
	}
}

func TestFactoryRetriesBroadcastBackends(t *testing.T) {
	wrap := wrapperOf(factoryFor(config.BackendLightweight).Options())
	require.NotNil(t, wrap)

	calls := 0
	h := wrap(func(context.Context, []byte) error {
		calls++
		if calls < 3 {
			return errors.New("db down")
		}
		return nil
	})

	require.NoError(t, h(context.Background(), nil))
	assert.Equal(t, 3, calls)
}

func TestFactoryDropsAfterRetriesAreExhausted(t *testing.T) {
	wrap := wrapperOf(factoryFor(config.BackendMemory).Options())

	calls := 0
	h := wrap(func(context.Context, []byte) error {
		calls++
		return errors.New("db down")
	})

	assert.NoError(t, h(context.Background(), nil))
	assert.Equal(t, 3, calls)
}

func TestFactoryDoesNotRetryPermanentErrors(t *testing.T) {
	wrap := wrapperOf(factoryFor(config.BackendMemory).Options())

	calls := 0
	h := wrap(func(context.Context, []byte) error {
		calls++
		return events.Permanent(errors.New("malformed"))
	})

	assert.NoError(t, h(context.Background(), nil))
	assert.Equal(t, 1, calls)
}

func TestFactoryDoesNotRetryStoppedConsumer(t *testing.T) {
	wrap := wrapperOf(factoryFor(config.BackendRedis).Options())

	calls := 0
	h := wrap(func(context.Context, []byte) error {
		calls++
		return ErrStopped
	})

	assert.NoError(t, h(context.Background(), nil))
	assert.Equal(t, 1, calls)
}

func TestFactoryKeepsExtraOptions(t *testing.T) {
	opts := factoryFor(config.BackendKafka).Options(WithInvalidators(nil))

	s := settings{}
	for _, opt := range opts {
		opt(&s)
	}
	assert.Len(t, s.invalidators, 1)
}

func TestPostCountBindings(t *testing.T) {
	bindings := PostCountBindings("postCount", appevents.AuthorTarget)

	require.Len(t, bindings, 2)
	assert.Equal(t, appevents.PostCreated, bindings[0].EventName)
	assert.Equal(t, cacherepo.Increase, bindings[0].Direction)
	assert.Equal(t, appevents.PostDeleted, bindings[1].EventName)
	assert.Equal(t, cacherepo.Decrease, bindings[1].Direction)
	assert.Equal(t, "u1", bindings[0].Target(appevents.PostPayload{AuthorID: "u1", TopicID: "t1"}))
}
