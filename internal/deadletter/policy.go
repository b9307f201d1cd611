package deadletter

import (
	"math"
	"time"
)

// Policy computes the delay before a redelivery.
type Policy interface {
	// Delay returns how long to wait before retry n (1-indexed).
	Delay(attempt int) time.Duration
}

// Immediate retries on the next processing pass.
type Immediate struct{}

// Delay always returns zero.
func (Immediate) Delay(int) time.Duration { return 0 }

// FixedDelay waits the same interval before every retry.
type FixedDelay struct {
	Interval time.Duration
}

// Delay returns the fixed interval.
func (f FixedDelay) Delay(int) time.Duration { return f.Interval }

// ExponentialBackoff doubles the delay each retry.
// Delay = min(Base * 2^(attempt-1), Max). A zero Max means no cap.
type ExponentialBackoff struct {
	Base time.Duration
	Max  time.Duration
}

// Delay returns Base * 2^(attempt-1), capped at Max.
func (e ExponentialBackoff) Delay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	d := float64(e.Base) * math.Pow(2, float64(attempt-1))
	if d > math.MaxInt64 {
		d = math.MaxInt64
	}
	if e.Max > 0 && d > float64(e.Max) {
		return e.Max
	}
	return time.Duration(d)
}

// LinearBackoff grows the delay by Step each retry.
// Delay = min(Step * attempt, Max). A zero Max means no cap.
type LinearBackoff struct {
	Step time.Duration
	Max  time.Duration
}

// Delay returns Step * attempt, capped at Max.
func (l LinearBackoff) Delay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	d := l.Step * time.Duration(attempt)
	if l.Max > 0 && d > l.Max {
		return l.Max
	}
	return d
}
