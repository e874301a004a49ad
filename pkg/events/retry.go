package events

import (
	"context"
	"time"
)

// Retrying wraps h so that a failing delivery is retried up to maxRetries
// times with a linear backoff. Permanent errors are returned immediately.
// It serves transports that cannot redeliver on their own.
func Retrying(h Handler, maxRetries int, backoff time.Duration) Handler {
	return func(ctx context.Context, raw []byte) error {
		var err error
		for attempt := 0; ; attempt++ {
			if err = h(ctx, raw); err == nil || IsPermanent(err) || attempt >= maxRetries {
				return err
			}
			select {
			case <-ctx.Done():
				return err
			case <-time.After(backoff * time.Duration(attempt+1)):
			}
		}
	}
}
