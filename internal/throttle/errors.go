package throttle

import (
	"errors"
	"fmt"
	"time"
)

// Sentinel errors for the throttle package.
var (
	// ErrThrottled matches sends refused by a throttle.
	ErrThrottled = errors.New("send throttled")

	// ErrInvalidConfig is returned by New for an unusable Config.
	ErrInvalidConfig = errors.New("invalid throttle config")
)

// ThrottleError reports a send refused by a Reject throttle.
type ThrottleError struct {
	// Signal is the name of the throttled signal.
	Signal string

	// Strategy is the limiter that refused the send.
	Strategy Strategy

	// RetryAfter is how long until a send would be admitted.
	RetryAfter time.Duration
}

// Error implements the error interface.
func (e *ThrottleError) Error() string {
	return fmt.Sprintf("signal %q: throttled by %s, retry after %v", e.Signal, e.Strategy, e.RetryAfter)
}

// Is allows errors.Is to match ErrThrottled.
func (e *ThrottleError) Is(target error) bool {
	return target == ErrThrottled
}
