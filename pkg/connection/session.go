package connection

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/safething/safething-go/pkg/store"
)

// ErrNotConnected is returned while a reconnection is pending.
var ErrNotConnected = errors.New("not connected")

// DefaultFailureThreshold is the number of consecutive transient failures
// after which a session drops its handle.
const DefaultFailureThreshold = 3

// State is the session state.
type State uint8

const (
	// StateDisconnected indicates no handle has been established yet.
	StateDisconnected State = iota

	// StateConnected indicates a live handle.
	StateConnected

	// StateReconnecting indicates the handle was dropped and a new one
	// will be connected once the backoff delay has passed.
	StateReconnecting

	// StateClosed indicates the session was closed.
	StateClosed
)

// String returns a human-readable state name.
func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "DISCONNECTED"
	case StateConnected:
		return "CONNECTED"
	case StateReconnecting:
		return "RECONNECTING"
	case StateClosed:
		return "CLOSED"
	default:
		return "UNKNOWN"
	}
}

// Config configures a Session.
type Config struct {
	Credentials store.Credentials

	// FailureThreshold is the number of consecutive transient failures
	// that trigger a reconnect. Zero uses DefaultFailureThreshold.
	FailureThreshold int

	Backoff BackoffConfig

	// Wrap decorates every freshly connected handle (rate limiting,
	// instrumentation). Nil leaves handles unchanged.
	Wrap func(store.Handle) store.Handle

	// Logger is the operational logger. Nil uses slog.Default().
	Logger *slog.Logger

	// OnStateChange is called outside the session lock.
	OnStateChange func(oldState, newState State)
}

// Session is a self-healing store.Handle owned by one loop.
type Session struct {
	net     store.Network
	config  Config
	backoff *Backoff
	logger  *slog.Logger

	mu        sync.Mutex
	state     State
	handle    store.Handle
	failures  int
	notBefore time.Time
}

var (
	_ store.Handle       = (*Session)(nil)
	_ store.Disconnector = (*Session)(nil)
)

// NewSession creates an unconnected session on net.
func NewSession(net store.Network, config Config) *Session {
	if config.FailureThreshold <= 0 {
		config.FailureThreshold = DefaultFailureThreshold
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Session{
		net:     net,
		config:  config,
		backoff: NewBackoffWithConfig(config.Backoff),
		logger:  logger,
	}
}

// Dial creates a session and connects it. The error wraps
// store.ErrConnection when the first handshake fails.
func Dial(ctx context.Context, net store.Network, config Config) (*Session, error) {
	s := NewSession(net, config)
	if err := s.Connect(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

// Connect establishes the first handle. Calling it on a connected
// session is a no-op.
func (s *Session) Connect(ctx context.Context) error {
	s.mu.Lock()
	change, err := s.connectLocked(ctx)
	s.mu.Unlock()
	s.notify(change)
	return err
}

// State returns the current state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Attempts returns reconnection attempts since the last success.
func (s *Session) Attempts() int {
	return s.backoff.Attempts()
}

type transition struct {
	from, to State
}

func (s *Session) setState(to State) transition {
	t := transition{from: s.state, to: to}
	s.state = to
	return t
}

func (s *Session) notify(t transition) {
	if t.from == t.to || s.config.OnStateChange == nil {
		return
	}
	s.config.OnStateChange(t.from, t.to)
}

// connectLocked must be called with s.mu held.
func (s *Session) connectLocked(ctx context.Context) (transition, error) {
	switch s.state {
	case StateClosed:
		return transition{}, store.ErrClosed
	case StateConnected:
		return transition{}, nil
	}

	h, err := s.net.Connect(ctx, s.config.Credentials)
	if err != nil {
		s.notBefore = time.Now().Add(s.backoff.Next())
		return transition{}, err
	}
	if s.config.Wrap != nil {
		h = s.config.Wrap(h)
	}
	s.handle = h
	s.failures = 0
	if s.state == StateReconnecting {
		s.logger.Info("store session reconnected",
			"identity", s.config.Credentials.Identity, "attempts", s.backoff.Attempts())
	}
	s.backoff.Reset()
	return s.setState(StateConnected), nil
}

// acquire returns the live handle, reconnecting when due.
func (s *Session) acquire(ctx context.Context) (store.Handle, transition, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == StateClosed {
		return nil, transition{}, store.ErrClosed
	}
	if s.handle != nil {
		return s.handle, transition{}, nil
	}
	if wait := time.Until(s.notBefore); wait > 0 {
		return nil, transition{}, fmt.Errorf("%w: %w (retry in %s)", store.ErrNetwork, ErrNotConnected, wait.Round(time.Millisecond))
	}
	change, err := s.connectLocked(ctx)
	if err != nil {
		return nil, change, fmt.Errorf("%w: %w", store.ErrNetwork, err)
	}
	return s.handle, change, nil
}

// release accounts for the outcome of an operation on h.
func (s *Session) release(h store.Handle, err error) {
	var change transition

	s.mu.Lock()
	switch {
	case s.handle != h:
		// Already replaced or closed.
	case err == nil || !store.IsTransient(err):
		s.failures = 0
	default:
		s.failures++
		if s.failures >= s.config.FailureThreshold {
			_ = s.handle.Close()
			s.handle = nil
			s.failures = 0
			s.notBefore = time.Now().Add(s.backoff.Next())
			change = s.setState(StateReconnecting)
			s.logger.Warn("store session dropped",
				"identity", s.config.Credentials.Identity, "error", err)
		}
	}
	s.mu.Unlock()

	s.notify(change)
}

func (s *Session) do(ctx context.Context, op func(store.Handle) error) error {
	h, change, err := s.acquire(ctx)
	s.notify(change)
	if err != nil {
		return err
	}
	err = op(h)
	s.release(h, err)
	return err
}

func (s *Session) PutRecord(ctx context.Context, address string, typeTag uint64) error {
	return s.do(ctx, func(h store.Handle) error {
		return h.PutRecord(ctx, address, typeTag)
	})
}

func (s *Session) GetField(ctx context.Context, address, key string) (string, error) {
	var v string
	err := s.do(ctx, func(h store.Handle) error {
		var err error
		v, err = h.GetField(ctx, address, key)
		return err
	})
	return v, err
}

func (s *Session) SetField(ctx context.Context, address, key, value string) error {
	return s.do(ctx, func(h store.Handle) error {
		return h.SetField(ctx, address, key, value)
	})
}

func (s *Session) ListFields(ctx context.Context, address string) ([]store.Field, error) {
	var fields []store.Field
	err := s.do(ctx, func(h store.Handle) error {
		var err error
		fields, err = h.ListFields(ctx, address)
		return err
	})
	return fields, err
}

// Disconnect simulates a network loss on the current handle, if the
// backend supports it.
func (s *Session) Disconnect() {
	s.mu.Lock()
	h := s.handle
	s.mu.Unlock()
	if d, ok := h.(store.Disconnector); ok {
		d.Disconnect()
	}
}

// Close releases the current handle. Further operations fail with
// store.ErrClosed.
func (s *Session) Close() error {
	s.mu.Lock()
	if s.state == StateClosed {
		s.mu.Unlock()
		return nil
	}
	h := s.handle
	s.handle = nil
	change := s.setState(StateClosed)
	s.mu.Unlock()

	s.notify(change)
	if h != nil {
		return h.Close()
	}
	return nil
}
