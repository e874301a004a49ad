package events

import (
	"context"
	"errors"
)

// Handler receives the raw envelope bytes of one delivered message.
type Handler func(ctx context.Context, raw []byte) error

// Bus is the publish/subscribe contract implemented by every transport.
type Bus interface {
	// Publish sends the event under its name.
	Publish(ctx context.Context, event *Event) error

	// Subscribe registers h for eventName. Delivery starts once it returns.
	Subscribe(ctx context.Context, eventName string, h Handler) error

	// Disconnect stops every subscription and releases the transport.
	Disconnect(ctx context.Context) error
}

// ErrClosed is returned by a bus used after Disconnect.
var ErrClosed = errors.New("event bus is disconnected")

type permanentError struct {
	err error
}

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent marks err as not worth retrying. Durable transports
// dead-letter such messages right away.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// IsPermanent reports whether err was marked with Permanent.
func IsPermanent(err error) bool {
	var p *permanentError
	return errors.As(err, &p)
}
