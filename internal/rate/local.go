package rate

import (
	"context"
	"sync"
	"time"

	xrate "golang.org/x/time/rate"
)

const defaultMaxKeys = 100_000

// Local keeps a token bucket per key in process memory. A bucket holds limit
// tokens and refills one token every window/limit; each recorded attempt
// consumes one.
type Local struct {
	mu      sync.Mutex
	buckets map[string]*xrate.Limiter
	maxKeys int
	now     func() time.Time
}

// NewLocal returns an empty limiter. now may be nil.
func NewLocal(now func() time.Time) *Local {
	if now == nil {
		now = time.Now
	}
	return &Local{
		buckets: make(map[string]*xrate.Limiter),
		maxKeys: defaultMaxKeys,
		now:     now,
	}
}

// Check returns [ErrRateLimited] when the bucket of key is empty.
func (l *Local) Check(_ context.Context, key string, _ int) error {
	l.mu.Lock()
	b, ok := l.buckets[key]
	l.mu.Unlock()
	if !ok {
		return nil
	}
	if b.TokensAt(l.now()) < 1 {
		return ErrRateLimited
	}
	return nil
}

// Record consumes one token of key, creating the bucket on first use.
func (l *Local) Record(_ context.Context, key string, limit int, window time.Duration) error {
	if limit <= 0 {
		return ErrRateLimited
	}
	now := l.now()

	l.mu.Lock()
	b, ok := l.buckets[key]
	if !ok {
		if len(l.buckets) >= l.maxKeys {
			l.pruneLocked(now)
		}
		b = xrate.NewLimiter(xrate.Every(window/time.Duration(limit)), limit)
		l.buckets[key] = b
	}
	l.mu.Unlock()

	if !b.AllowN(now, 1) {
		return ErrRateLimited
	}
	return nil
}

// Reset forgets key.
func (l *Local) Reset(_ context.Context, key string) error {
	l.mu.Lock()
	delete(l.buckets, key)
	l.mu.Unlock()
	return nil
}

// pruneLocked drops buckets that have refilled completely.
func (l *Local) pruneLocked(now time.Time) {
	for key, b := range l.buckets {
		if b.TokensAt(now) >= float64(b.Burst()) {
			delete(l.buckets, key)
		}
	}
}
