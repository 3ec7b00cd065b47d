// Package store defines the key-value network the Thing runtime publishes to.
//
// A Network hands out Handles. Each Handle is a connected session that reads
// and writes fields of addressed records. Handles are not shared between
// polling loops; every loop connects its own.
//
// Three backends implement Network:
//   - MemoryNetwork: in-process, versioned, with fault injection for tests
//   - natskv.Network: a NATS JetStream key-value bucket
//   - sqlite.Network: a local SQLite database
package store

import (
	"context"
	"errors"
)

// Store errors.
var (
	// ErrNotFound indicates the record or field does not exist.
	// Callers treat it as recoverable and substitute a default.
	ErrNotFound = errors.New("not found")

	// ErrNetwork indicates a single operation failed or timed out.
	// It is transient.
	ErrNetwork = errors.New("network error")

	// ErrConnection indicates the connection handshake failed.
	ErrConnection = errors.New("connection error")

	// ErrClosed indicates the handle was closed.
	ErrClosed = errors.New("handle closed")
)

// Credentials identify the caller to the network.
type Credentials struct {
	// Identity is the Thing identifier the session acts for.
	Identity string

	// Secret is backend specific (token, password, auth URI).
	Secret string
}

// Field is a key and value within a record.
type Field struct {
	Key   string
	Value string
}

// Network connects sessions to the store.
type Network interface {
	// Connect establishes a new session.
	// Returns an error wrapping ErrConnection if the handshake fails.
	Connect(ctx context.Context, creds Credentials) (Handle, error)
}

// Handle is a connected session.
// Implementations need not be safe for concurrent use by multiple loops.
type Handle interface {
	// PutRecord creates the record at address. A pre-existing record at the
	// same address is not an error.
	PutRecord(ctx context.Context, address string, typeTag uint64) error

	// GetField returns the value stored under key.
	// Returns ErrNotFound if the record or key does not exist.
	GetField(ctx context.Context, address, key string) (string, error)

	// SetField inserts or updates the value stored under key.
	SetField(ctx context.Context, address, key, value string) error

	// ListFields returns all fields of the record.
	ListFields(ctx context.Context, address string) ([]Field, error)

	// Close releases the session.
	Close() error
}

// Disconnector is implemented by handles that can simulate a network
// disconnection. Operations fail with ErrNetwork afterwards.
type Disconnector interface {
	Disconnect()
}

// IsTransient reports whether err is a per-operation failure that a polling
// loop should log and retry on its next tick.
func IsTransient(err error) bool {
	return errors.Is(err, ErrNetwork) || errors.Is(err, ErrClosed)
}
