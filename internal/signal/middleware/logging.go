package middleware

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/dshills/signals/internal/signal"
)

type logging[T any] struct {
	signal.NopMiddleware[T]
	logger zerolog.Logger
}

// Logging returns middleware that logs each send at debug level and each
// receiver failure at warn level.
func Logging[T any](logger zerolog.Logger, name string) signal.Middleware[T] {
	return &logging[T]{logger: logger.With().Str("signal", name).Logger()}
}

func (l *logging[T]) BeforeSend(ctx context.Context, payload T) bool {
	l.logger.Debug().Msg("send started")
	return true
}

func (l *logging[T]) AfterSend(ctx context.Context, payload T, outcomes []signal.Outcome) {
	failed := 0
	for _, o := range outcomes {
		if o.Err != nil {
			failed++
		}
	}
	l.logger.Debug().
		Int("receivers", len(outcomes)).
		Int("failed", failed).
		Msg("send finished")
}

func (l *logging[T]) AfterReceiver(ctx context.Context, payload T, r signal.ReceiverRef, o signal.Outcome) {
	if o.Err == nil {
		return
	}
	l.logger.Warn().
		Err(o.Err).
		Str("receiver", r.String()).
		Int("priority", r.Priority).
		Dur("elapsed", o.Duration).
		Bool("panicked", o.Panicked()).
		Msg("receiver failed")
}
