package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

type memoryValue struct {
	value   string
	version uint64
}

type memoryRecord struct {
	typeTag uint64
	fields  map[string]*memoryValue
}

// MemoryNetwork is an in-process Network. All handles connected to the same
// MemoryNetwork observe the same records, which makes it useful for running
// several Things in one process and for tests.
//
// Field updates follow the MutableData version-increment protocol: an
// insert starts at version 0, each update bumps the version.
type MemoryNetwork struct {
	mu       sync.Mutex
	records  map[string]*memoryRecord
	failNext int
	connErr  error
	ops      uint64
}

// NewMemoryNetwork creates an empty in-memory network.
func NewMemoryNetwork() *MemoryNetwork {
	return &MemoryNetwork{
		records: make(map[string]*memoryRecord),
	}
}

// FailNext makes the next n operations on any handle fail with ErrNetwork.
func (n *MemoryNetwork) FailNext(count int) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.failNext = count
}

// SetConnectError makes subsequent Connect calls fail with err.
// Pass nil to restore normal behavior.
func (n *MemoryNetwork) SetConnectError(err error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.connErr = err
}

// Ops returns the number of operations served so far.
func (n *MemoryNetwork) Ops() uint64 {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.ops
}

// Version returns the version of a field, or false if it does not exist.
func (n *MemoryNetwork) Version(address, key string) (uint64, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	rec, ok := n.records[address]
	if !ok {
		return 0, false
	}
	v, ok := rec.fields[key]
	if !ok {
		return 0, false
	}
	return v.version, true
}

// Connect returns a new handle on the network.
func (n *MemoryNetwork) Connect(ctx context.Context, creds Credentials) (Handle, error) {
	n.mu.Lock()
	connErr := n.connErr
	n.mu.Unlock()

	if connErr != nil {
		return nil, fmt.Errorf("%w: %w", ErrConnection, connErr)
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConnection, err)
	}
	return &memoryHandle{net: n, identity: creds.Identity}, nil
}

// begin accounts for an operation and applies fault injection.
// Must be called with n.mu held.
func (n *MemoryNetwork) begin() error {
	n.ops++
	if n.failNext > 0 {
		n.failNext--
		return fmt.Errorf("%w: injected failure", ErrNetwork)
	}
	return nil
}

type memoryHandle struct {
	net      *MemoryNetwork
	identity string

	mu           sync.Mutex
	closed       bool
	disconnected bool
}

var (
	_ Handle       = (*memoryHandle)(nil)
	_ Disconnector = (*memoryHandle)(nil)
)

func (h *memoryHandle) check(ctx context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return ErrClosed
	}
	if h.disconnected {
		return fmt.Errorf("%w: disconnected", ErrNetwork)
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %w", ErrNetwork, err)
	}
	return nil
}

func (h *memoryHandle) PutRecord(ctx context.Context, address string, typeTag uint64) error {
	if err := h.check(ctx); err != nil {
		return err
	}
	h.net.mu.Lock()
	defer h.net.mu.Unlock()
	if err := h.net.begin(); err != nil {
		return err
	}
	if _, ok := h.net.records[address]; ok {
		return nil
	}
	h.net.records[address] = &memoryRecord{
		typeTag: typeTag,
		fields:  make(map[string]*memoryValue),
	}
	return nil
}

func (h *memoryHandle) GetField(ctx context.Context, address, key string) (string, error) {
	if err := h.check(ctx); err != nil {
		return "", err
	}
	h.net.mu.Lock()
	defer h.net.mu.Unlock()
	if err := h.net.begin(); err != nil {
		return "", err
	}
	rec, ok := h.net.records[address]
	if !ok {
		return "", fmt.Errorf("record %s: %w", address, ErrNotFound)
	}
	v, ok := rec.fields[key]
	if !ok {
		return "", fmt.Errorf("field %s: %w", key, ErrNotFound)
	}
	return v.value, nil
}

func (h *memoryHandle) SetField(ctx context.Context, address, key, value string) error {
	if err := h.check(ctx); err != nil {
		return err
	}
	h.net.mu.Lock()
	defer h.net.mu.Unlock()
	if err := h.net.begin(); err != nil {
		return err
	}
	rec, ok := h.net.records[address]
	if !ok {
		return fmt.Errorf("record %s: %w", address, ErrNotFound)
	}
	if v, ok := rec.fields[key]; ok {
		v.value = value
		v.version++
		return nil
	}
	rec.fields[key] = &memoryValue{value: value}
	return nil
}

func (h *memoryHandle) ListFields(ctx context.Context, address string) ([]Field, error) {
	if err := h.check(ctx); err != nil {
		return nil, err
	}
	h.net.mu.Lock()
	defer h.net.mu.Unlock()
	if err := h.net.begin(); err != nil {
		return nil, err
	}
	rec, ok := h.net.records[address]
	if !ok {
		return nil, fmt.Errorf("record %s: %w", address, ErrNotFound)
	}
	fields := make([]Field, 0, len(rec.fields))
	for k, v := range rec.fields {
		fields = append(fields, Field{Key: k, Value: v.value})
	}
	sort.Slice(fields, func(i, j int) bool { return fields[i].Key < fields[j].Key })
	return fields, nil
}

// Disconnect simulates a lost network session on this handle.
func (h *memoryHandle) Disconnect() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.disconnected = true
}

func (h *memoryHandle) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	return nil
}
