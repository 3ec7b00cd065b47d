package metrics

import (
	"context"
	"errors"
	"time"

	"github.com/safething/safething-go/pkg/store"
)

type instrumented struct {
	next    store.Handle
	m       *Metrics
	backend string
}

// Instrument wraps h so every operation is counted and timed.
// A nil m returns h unchanged.
func Instrument(h store.Handle, m *Metrics, backend string) store.Handle {
	if m == nil {
		return h
	}
	return &instrumented{next: h, m: m, backend: backend}
}

func result(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, store.ErrNotFound):
		return "not_found"
	default:
		return "error"
	}
}

func (i *instrumented) observe(op string, start time.Time, err error) {
	i.m.StoreOps.WithLabelValues(i.backend, op, result(err)).Inc()
	i.m.StoreLatency.WithLabelValues(i.backend, op).Observe(time.Since(start).Seconds())
}

func (i *instrumented) PutRecord(ctx context.Context, address string, typeTag uint64) error {
	start := time.Now()
	err := i.next.PutRecord(ctx, address, typeTag)
	i.observe("put_record", start, err)
	return err
}

func (i *instrumented) GetField(ctx context.Context, address, key string) (string, error) {
	start := time.Now()
	v, err := i.next.GetField(ctx, address, key)
	i.observe("get", start, err)
	return v, err
}

func (i *instrumented) SetField(ctx context.Context, address, key, value string) error {
	start := time.Now()
	err := i.next.SetField(ctx, address, key, value)
	i.observe("set", start, err)
	return err
}

func (i *instrumented) ListFields(ctx context.Context, address string) ([]store.Field, error) {
	start := time.Now()
	f, err := i.next.ListFields(ctx, address)
	i.observe("list", start, err)
	return f, err
}

// Disconnect forwards to the wrapped handle when it supports it.
func (i *instrumented) Disconnect() {
	if d, ok := i.next.(store.Disconnector); ok {
		d.Disconnect()
	}
}

func (i *instrumented) Close() error {
	return i.next.Close()
}
