package logger

import (
	"context"

	"github.com/agora-social/agora/pkg/interfaces"
)

type contextKey struct{}

var loggerKey = contextKey{}

// FromContext retrieves a logger from the context, or fallback when none is attached.
func FromContext(ctx context.Context, fallback interfaces.Logger) interfaces.Logger {
	if l, ok := ctx.Value(loggerKey).(interfaces.Logger); ok {
		return l
	}
	return fallback
}

// WithContext adds a logger to the context.
func WithContext(ctx context.Context, l interfaces.Logger) context.Context {
	return context.WithValue(ctx, loggerKey, l)
}
