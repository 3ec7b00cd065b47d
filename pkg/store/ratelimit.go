package store

import (
	"context"
	"fmt"

	"golang.org/x/time/rate"
)

// rateLimited throttles a handle so polling loops cannot exceed the
// operation budget of a shared network.
type rateLimited struct {
	next    Handle
	limiter *rate.Limiter
}

// RateLimited wraps h so that every operation first waits on limiter.
// A nil limiter returns h unchanged.
func RateLimited(h Handle, limiter *rate.Limiter) Handle {
	if limiter == nil {
		return h
	}
	return &rateLimited{next: h, limiter: limiter}
}

// NewLimiter creates a limiter allowing opsPerSecond with the given burst.
// A non-positive rate disables limiting and returns nil.
func NewLimiter(opsPerSecond float64, burst int) *rate.Limiter {
	if opsPerSecond <= 0 {
		return nil
	}
	if burst <= 0 {
		burst = 1
	}
	return rate.NewLimiter(rate.Limit(opsPerSecond), burst)
}

func (r *rateLimited) wait(ctx context.Context) error {
	if err := r.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("%w: rate limit: %w", ErrNetwork, err)
	}
	return nil
}

func (r *rateLimited) PutRecord(ctx context.Context, address string, typeTag uint64) error {
	if err := r.wait(ctx); err != nil {
		return err
	}
	return r.next.PutRecord(ctx, address, typeTag)
}

func (r *rateLimited) GetField(ctx context.Context, address, key string) (string, error) {
	if err := r.wait(ctx); err != nil {
		return "", err
	}
	return r.next.GetField(ctx, address, key)
}

func (r *rateLimited) SetField(ctx context.Context, address, key, value string) error {
	if err := r.wait(ctx); err != nil {
		return err
	}
	return r.next.SetField(ctx, address, key, value)
}

func (r *rateLimited) ListFields(ctx context.Context, address string) ([]Field, error) {
	if err := r.wait(ctx); err != nil {
		return nil, err
	}
	return r.next.ListFields(ctx, address)
}

// Disconnect forwards to the wrapped handle when it supports it.
func (r *rateLimited) Disconnect() {
	if d, ok := r.next.(Disconnector); ok {
		d.Disconnect()
	}
}

func (r *rateLimited) Close() error {
	return r.next.Close()
}
