package action

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/safething/safething-go/pkg/entity"
	"github.com/safething/safething-go/pkg/log"
	"github.com/safething/safething-go/pkg/metrics"
	"github.com/safething/safething-go/pkg/model"
	"github.com/safething/safething-go/pkg/persistence"
	"github.com/safething/safething-go/pkg/store"
)

// Sender defaults.
const (
	DefaultMonitorInterval = 2 * time.Second
	DefaultTimeout         = 60 * time.Second
)

// ErrClosed is returned by Request after Close.
var ErrClosed = errors.New("sender closed")

// StateHandler observes the state of a sent request. Returning false stops
// monitoring.
type StateHandler interface {
	OnStateChange(id model.RequestID, state string) bool
}

// StateHandlerFunc adapts a function to StateHandler.
type StateHandlerFunc func(id model.RequestID, state string) bool

// OnStateChange calls f.
func (f StateHandlerFunc) OnStateChange(id model.RequestID, state string) bool { return f(id, state) }

// Writer writes new requests into a target's record.
type Writer interface {
	SendActionRequest(ctx context.Context, thingID, requestJSON string) (model.RequestID, error)
}

// Dialer connects a fresh store handle for one monitor.
type Dialer func(ctx context.Context) (store.Handle, error)

// SenderConfig configures a Sender.
type SenderConfig struct {
	// MonitorInterval is the poll period of each monitor.
	MonitorInterval time.Duration

	// Timeout bounds how long a request is monitored.
	Timeout time.Duration

	// NotifyTimeout makes a timed-out monitor report model.StateTimedOut
	// to its handler once. Off by default: monitors time out silently.
	NotifyTimeout bool

	// Ledger, when set, records sent requests and observed states.
	Ledger *persistence.Ledger

	Logger         *slog.Logger
	ProtocolLogger log.Logger
	Metrics        *metrics.Metrics
}

// Sender sends action requests and monitors them.
type Sender struct {
	thingID string
	writer  Writer
	dial    Dialer
	config  SenderConfig
	logger  *slog.Logger
	events  log.Emitter

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewSender creates a sender for the local Thing thingID. Requests are
// written through w; each monitor reads through its own handle from dial.
func NewSender(thingID string, w Writer, dial Dialer, config SenderConfig) *Sender {
	if config.MonitorInterval <= 0 {
		config.MonitorInterval = DefaultMonitorInterval
	}
	if config.Timeout <= 0 {
		config.Timeout = DefaultTimeout
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Sender{
		thingID: thingID,
		writer:  w,
		dial:    dial,
		config:  config,
		logger:  logger,
		events:  log.NewEmitter(config.ProtocolLogger, thingID, log.LayerAction),
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Request writes an action request into target's record and starts
// monitoring it. ctx bounds the write only; the monitor runs until it
// finishes or the Sender is closed. A nil handler still monitors, so the
// ledger keeps track of the request.
func (s *Sender) Request(ctx context.Context, target, action string, args []string, h StateHandler) (model.RequestID, error) {
	if s.ctx.Err() != nil {
		return 0, ErrClosed
	}
	if args == nil {
		args = []string{}
	}
	raw, err := model.Encode(model.ActionReq{
		ThingID: s.thingID,
		Action:  action,
		Args:    args,
		State:   model.StateRequested,
	})
	if err != nil {
		return 0, err
	}

	id, err := s.writer.SendActionRequest(ctx, target, raw)
	if err != nil {
		return 0, err
	}
	s.config.Metrics.Request("sent", model.StateRequested)
	s.events.State(target, log.StateEntityRequest, id.String(), "", model.StateRequested, action)

	entry := persistence.Entry{
		RequestID: id,
		Target:    target,
		Action:    action,
		Args:      args,
		State:     model.StateRequested,
		SentAt:    time.Now(),
	}
	if s.config.Ledger != nil {
		if err := s.config.Ledger.Record(entry); err != nil {
			s.logger.Warn("ledger record failed", "thing_id", s.thingID, "request_id", id, "error", err)
		}
	}

	s.start(entry, h)
	return id, nil
}

// Resume restarts monitoring of a request sent before a restart. The
// timeout still counts from the original send time.
func (s *Sender) Resume(entry persistence.Entry, h StateHandler) error {
	if s.ctx.Err() != nil {
		return ErrClosed
	}
	s.start(entry, h)
	return nil
}

func (s *Sender) start(entry persistence.Entry, h StateHandler) {
	if h == nil {
		h = StateHandlerFunc(func(model.RequestID, string) bool { return true })
	}
	s.wg.Add(1)
	s.config.Metrics.MonitorStarted()
	go func() {
		defer s.wg.Done()
		defer s.config.Metrics.MonitorStopped()
		s.monitor(entry, h)
	}()
}

// Wait blocks until all monitors have exited.
func (s *Sender) Wait() {
	s.wg.Wait()
}

// Close stops all monitors and waits for them.
func (s *Sender) Close() {
	s.cancel()
	s.wg.Wait()
}

func (s *Sender) monitor(entry persistence.Entry, h StateHandler) {
	id, target := entry.RequestID, entry.Target
	logger := s.logger.With("thing_id", s.thingID, "target", target, "request_id", id)

	// The handle is dialed on the first tick and again on every tick until
	// a dial succeeds.
	var a *entity.Adapter
	defer func() {
		if a != nil {
			_ = a.Close()
		}
	}()

	last := entry.State
	if last == "" {
		last = model.StateRequested
	}
	deadline := entry.SentAt.Add(s.config.Timeout)

	ticker := time.NewTicker(s.config.MonitorInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.ctx.Done():
			logger.Debug("monitor cancelled")
			return
		case <-ticker.C:
		}

		if a == nil {
			handle, err := s.dial(s.ctx)
			switch {
			case err != nil && s.ctx.Err() != nil:
				return
			case err != nil:
				s.config.Metrics.TickError("monitor")
				logger.Warn("monitor connect failed", "error", err)
			default:
				a = entity.New(handle, s.thingID, entity.Config{Logger: s.logger, ProtocolLogger: s.config.ProtocolLogger})
			}
		}

		if a != nil {
			state, err := a.GetActionRequestState(s.ctx, target, id)
			switch {
			case err != nil && s.ctx.Err() != nil:
				return
			case err != nil:
				s.config.Metrics.TickError("monitor")
				logger.Warn("monitor poll failed", "error", err)
			case state != last:
				s.events.State(target, log.StateEntityRequest, id.String(), last, state, "")
				last = state
				s.record(id, state)
				if !s.report(logger, h, id, state) {
					logger.Debug("monitor stopped by handler", "state", state)
					return
				}
				if state == model.StateDone {
					return
				}
			}
			s.config.Metrics.Tick("monitor")
		}

		if time.Now().After(deadline) {
			logger.Warn("action request timed out", "state", last, "timeout", s.config.Timeout, "connected", a != nil)
			s.events.State(target, log.StateEntityRequest, id.String(), last, model.StateTimedOut, "timeout")
			s.record(id, model.StateTimedOut)
			if s.config.NotifyTimeout {
				s.report(logger, h, id, model.StateTimedOut)
			}
			return
		}
	}
}

func (s *Sender) record(id model.RequestID, state string) {
	s.config.Metrics.Request("sent", state)
	if s.config.Ledger == nil {
		return
	}
	if err := s.config.Ledger.Update(id, state); err != nil {
		s.logger.Warn("ledger update failed", "thing_id", s.thingID, "request_id", id, "error", err)
	}
}

// report calls the handler. A panicking handler stops its monitor.
func (s *Sender) report(logger *slog.Logger, h StateHandler, id model.RequestID, state string) (cont bool) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("state handler panicked", "state", state, "panic", fmt.Sprint(r))
			cont = false
		}
	}()
	return h.OnStateChange(id, state)
}
