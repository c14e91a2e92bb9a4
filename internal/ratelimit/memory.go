package ratelimit

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const cleanupInterval = 5 * time.Minute

// MemoryLimiter keeps one token bucket per key in process memory.
type MemoryLimiter struct {
	cfg      Config
	limiters sync.Map // map[string]*rate.Limiter
	rate     rate.Limit

	mu          sync.Mutex
	lastCleanup time.Time
	now         func() time.Time
}

func NewMemoryLimiter(cfg Config) *MemoryLimiter {
	cfg = cfg.normalized()
	return &MemoryLimiter{
		cfg:         cfg,
		rate:        rate.Limit(float64(cfg.Requests) / cfg.Window.Seconds()),
		lastCleanup: time.Now(),
		now:         time.Now,
	}
}

func (l *MemoryLimiter) Config() Config { return l.cfg }

func (l *MemoryLimiter) Allow(ctx context.Context, key string) (Decision, error) {
	limiter := l.getLimiter(key)
	now := l.now()

	if limiter.AllowN(now, 1) {
		return Decision{Allowed: true}, nil
	}

	// peek at when the next token lands without consuming it
	reservation := limiter.ReserveN(now, 1)
	delay := reservation.DelayFrom(now)
	reservation.CancelAt(now)

	return Decision{Allowed: false, RetryAfter: delay}, nil
}

func (l *MemoryLimiter) getLimiter(key string) *rate.Limiter {
	if limiter, ok := l.limiters.Load(key); ok {
		return limiter.(*rate.Limiter)
	}

	limiter := rate.NewLimiter(l.rate, l.cfg.Burst)
	actual, _ := l.limiters.LoadOrStore(key, limiter)
	l.maybeCleanup()
	return actual.(*rate.Limiter)
}

// maybeCleanup drops idle limiters (full buckets) so ephemeral keys do not accumulate.
func (l *MemoryLimiter) maybeCleanup() {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if now.Sub(l.lastCleanup) < cleanupInterval {
		return
	}
	l.lastCleanup = now

	l.limiters.Range(func(key, value any) bool {
		if value.(*rate.Limiter).TokensAt(now) >= float64(l.cfg.Burst) {
			l.limiters.Delete(key)
		}
		return true
	})
}

var _ Limiter = (*MemoryLimiter)(nil)
