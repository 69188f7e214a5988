package queue

import (
	"sync"

	"golang.org/x/time/rate"

	"github.com/xraph/gate"
)

// Limiter enforces a per-key token-bucket rate limit. It is safe for
// concurrent use. Buckets are created lazily on first use of a key and
// reconfigured in place when a later dispatch supplies different limits.
type Limiter struct {
	mu      sync.Mutex
	buckets map[gate.Key]*rate.Limiter
}

// NewLimiter creates an empty rate limiter.
func NewLimiter() *Limiter {
	return &Limiter{buckets: make(map[gate.Key]*rate.Limiter)}
}

// Allow reports whether a dispatch for key may proceed under a sustained
// rate of r per second with the given burst. A non-positive rate disables
// limiting for the call.
func (l *Limiter) Allow(key gate.Key, r float64, burst int) bool {
	if r <= 0 {
		return true
	}
	if burst < 1 {
		burst = 1
	}

	l.mu.Lock()
	b := l.buckets[key]
	if b == nil {
		b = rate.NewLimiter(rate.Limit(r), burst)
		l.buckets[key] = b
	} else {
		if b.Limit() != rate.Limit(r) {
			b.SetLimit(rate.Limit(r))
		}
		if b.Burst() != burst {
			b.SetBurst(burst)
		}
	}
	l.mu.Unlock()

	return b.Allow()
}

// Reset discards every bucket.
func (l *Limiter) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.buckets = make(map[gate.Key]*rate.Limiter)
}
