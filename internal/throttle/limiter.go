package throttle

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// limiter admits or refuses one send at a time.
// reserve returns 0 when the send is admitted and counted, otherwise the
// wait until it could be admitted. A refused send consumes nothing.
type limiter interface {
	reserve(now time.Time) time.Duration
}

type fixedWindow struct {
	mu     sync.Mutex
	limit  int
	window time.Duration
	start  time.Time
	count  int
}

func (l *fixedWindow) reserve(now time.Time) time.Duration {
	l.mu.Lock()
	defer l.mu.Unlock()

	start := now.Truncate(l.window)
	if !start.Equal(l.start) {
		l.start = start
		l.count = 0
	}
	if l.count < l.limit {
		l.count++
		return 0
	}
	return l.start.Add(l.window).Sub(now)
}

type slidingWindow struct {
	mu     sync.Mutex
	limit  int
	window time.Duration
	// admission times, oldest first
	log []time.Time
}

func (l *slidingWindow) reserve(now time.Time) time.Duration {
	l.mu.Lock()
	defer l.mu.Unlock()

	cutoff := now.Add(-l.window)
	i := 0
	for i < len(l.log) && !l.log[i].After(cutoff) {
		i++
	}
	l.log = l.log[i:]

	if len(l.log) < l.limit {
		l.log = append(l.log, now)
		return 0
	}
	return l.log[0].Add(l.window).Sub(now)
}

type tokenBucket struct {
	lim *rate.Limiter
}

func newTokenBucket(limit int, window time.Duration, burst int) *tokenBucket {
	every := rate.Every(window / time.Duration(limit))
	return &tokenBucket{lim: rate.NewLimiter(every, burst)}
}

func (l *tokenBucket) reserve(now time.Time) time.Duration {
	r := l.lim.ReserveN(now, 1)
	if !r.OK() {
		return time.Duration(1<<63 - 1)
	}
	d := r.DelayFrom(now)
	if d > 0 {
		r.CancelAt(now)
	}
	return d
}

// leakyBucket is a leaky bucket used as a meter (GCRA). Each admitted send
// pushes the theoretical arrival time forward by one interval; a send is
// admitted while that time is no more than burst intervals ahead of now.
type leakyBucket struct {
	mu        sync.Mutex
	interval  time.Duration
	tolerance time.Duration
	tat       time.Time
}

func newLeakyBucket(limit int, window time.Duration, burst int) *leakyBucket {
	interval := window / time.Duration(limit)
	return &leakyBucket{
		interval:  interval,
		tolerance: interval * time.Duration(burst-1),
	}
}

func (l *leakyBucket) reserve(now time.Time) time.Duration {
	l.mu.Lock()
	defer l.mu.Unlock()

	tat := l.tat
	if tat.Before(now) {
		tat = now
	}
	if wait := tat.Sub(now) - l.tolerance; wait > 0 {
		return wait
	}
	l.tat = tat.Add(l.interval)
	return 0
}
