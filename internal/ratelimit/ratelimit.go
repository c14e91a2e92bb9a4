package ratelimit

import (
	"context"
	"time"
)

// Config describes a fixed request budget per key.
type Config struct {
	Requests int
	Window   time.Duration
	Burst    int
}

// DefaultConfig allows five attempts per minute, all available as a burst.
var DefaultConfig = Config{
	Requests: 5,
	Window:   time.Minute,
	Burst:    5,
}

func (c Config) normalized() Config {
	if c.Requests <= 0 {
		c.Requests = DefaultConfig.Requests
	}
	if c.Window <= 0 {
		c.Window = DefaultConfig.Window
	}
	if c.Burst <= 0 {
		c.Burst = c.Requests
	}
	return c
}

// Decision is the outcome of a single Allow call.
type Decision struct {
	Allowed    bool
	RetryAfter time.Duration
}

// Limiter decides whether a request identified by key may proceed.
type Limiter interface {
	Allow(ctx context.Context, key string) (Decision, error)
	Config() Config
}
