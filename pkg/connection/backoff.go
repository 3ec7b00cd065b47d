package connection

import (
	"math"
	"math/rand/v2"
	"sync"
	"time"
)

const (
	InitialBackoff    = 500 * time.Millisecond
	MaxBackoff        = 30 * time.Second
	BackoffMultiplier = 2.0

	// JitterFactor is the largest random extra delay, as a fraction of the
	// base delay.
	JitterFactor = 0.2
)

// BackoffConfig tunes a Backoff. Zero fields take the package defaults; a
// negative Jitter disables jitter.
type BackoffConfig struct {
	Initial    time.Duration
	Max        time.Duration
	Multiplier float64
	Jitter     float64
}

func (c BackoffConfig) withDefaults() BackoffConfig {
	if c.Initial <= 0 {
		c.Initial = InitialBackoff
	}
	if c.Max <= 0 {
		c.Max = MaxBackoff
	}
	c.Max = max(c.Max, c.Initial)
	if c.Multiplier <= 1 {
		c.Multiplier = BackoffMultiplier
	}
	if c.Jitter == 0 {
		c.Jitter = JitterFactor
	}
	c.Jitter = max(c.Jitter, 0)
	return c
}

// base returns the un-jittered delay before reconnect attempt n (0-based).
func (c BackoffConfig) base(n int) time.Duration {
	d := float64(c.Initial) * math.Pow(c.Multiplier, float64(n))
	if d >= float64(c.Max) {
		return c.Max
	}
	return time.Duration(d)
}

// Backoff hands out growing reconnect delays. It is safe for concurrent use.
type Backoff struct {
	mu       sync.Mutex
	cfg      BackoffConfig
	attempts int
}

func NewBackoff() *Backoff {
	return NewBackoffWithConfig(BackoffConfig{})
}

func NewBackoffWithConfig(cfg BackoffConfig) *Backoff {
	return &Backoff{cfg: cfg.withDefaults()}
}

// Next returns the delay before the next attempt and counts the attempt.
func (b *Backoff) Next() time.Duration {
	b.mu.Lock()
	defer b.mu.Unlock()
	d := b.cfg.base(b.attempts)
	b.attempts++
	if b.cfg.Jitter > 0 {
		d += time.Duration(float64(d) * b.cfg.Jitter * rand.Float64())
	}
	return d
}

// Reset starts over from the initial delay.
func (b *Backoff) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.attempts = 0
}

// Attempts returns how many delays were handed out since the last Reset.
func (b *Backoff) Attempts() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.attempts
}

// Current returns the base delay Next would start from.
func (b *Backoff) Current() time.Duration {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.cfg.base(b.attempts)
}
