package signal

import (
	"github.com/rs/zerolog"

	"github.com/dshills/signals/internal/signal/dispatch"
)

// Option configures a Signal.
type Option func(*signalConfig)

type signalConfig struct {
	logger           zerolog.Logger
	pool             *dispatch.Pool
	requireReceivers bool
}

func defaultSignalConfig() signalConfig {
	return signalConfig{
		logger: zerolog.Nop(),
	}
}

// WithLogger sets the logger used for receiver panics and dispatch events.
func WithLogger(l zerolog.Logger) Option {
	return func(c *signalConfig) {
		c.logger = l
	}
}

// WithPool runs SendAsync jobs on p instead of a new goroutine per send.
// The pool must be started by the caller.
func WithPool(p *dispatch.Pool) Option {
	return func(c *signalConfig) {
		c.pool = p
	}
}

// WithRequireReceivers makes a send in which no receiver ran fail with
// ErrNoReceivers.
func WithRequireReceivers() Option {
	return func(c *signalConfig) {
		c.requireReceivers = true
	}
}

// ConnectOption is a clause for Receive.
type ConnectOption func(*connectConfig)

type connectConfig struct {
	sender    SenderType
	key       string
	priority  int
	predicate any
}

// WithSender limits the receiver to sends from S.
func WithSender[S any]() ConnectOption {
	return func(c *connectConfig) {
		c.sender = SenderOf[S]()
	}
}

// WithSenderType limits the receiver to sends from the given sender tag.
func WithSenderType(s SenderType) ConnectOption {
	return func(c *connectConfig) {
		c.sender = s
	}
}

// WithDispatchKey sets the deduplication key.
func WithDispatchKey(key string) ConnectOption {
	return func(c *connectConfig) {
		c.key = key
	}
}

// WithPriority sets the execution priority.
func WithPriority(priority int) ConnectOption {
	return func(c *connectConfig) {
		c.priority = priority
	}
}

// When gates the receiver with a predicate. The predicate's type must
// match the signal's payload type.
func When[T any](p Predicate[T]) ConnectOption {
	return func(c *connectConfig) {
		c.predicate = p
	}
}
