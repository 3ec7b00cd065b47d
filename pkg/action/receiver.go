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
)

// DefaultReceiveInterval is the receiver poll period.
const DefaultReceiveInterval = 4 * time.Second

const receiverLoop = "receiver"

// ErrRequestFinished is returned by UpdateState and Complete for a request
// the receiver is done with.
var ErrRequestFinished = errors.New("action request already finished")

// Request is an incoming action request.
type Request struct {
	ID model.RequestID

	// From is the requesting Thing.
	From string

	Action string
	Args   []string
}

// Handler performs incoming requests. It runs on the receiver goroutine.
type Handler interface {
	HandleAction(ctx context.Context, req Request)
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, req Request)

// HandleAction calls f.
func (f HandlerFunc) HandleAction(ctx context.Context, req Request) { f(ctx, req) }

// StateStore reads and writes request states in the local record.
type StateStore interface {
	SetActionRequestState(ctx context.Context, id model.RequestID, state string) error
	GetActionRequest(ctx context.Context, thingID string, id model.RequestID) (model.ActionReq, error)
}

// Inbox is what the receiver loop reads the local record through.
// *entity.Adapter satisfies it.
type Inbox interface {
	StateStore
	ListPendingActionRequests(ctx context.Context) ([]entity.PendingRequest, error)
}

// ReceiverConfig configures a Receiver.
type ReceiverConfig struct {
	// PollInterval is the loop period.
	PollInterval time.Duration

	// ForceDone marks every handled request Done, even when the handler
	// completed it with its own state.
	ForceDone bool

	Logger         *slog.Logger
	ProtocolLogger log.Logger
	Metrics        *metrics.Metrics
}

// Receiver serves action requests addressed to the local Thing.
type Receiver struct {
	thingID string
	handler Handler
	writer  StateStore
	config  ReceiverConfig
	logger  *slog.Logger
	events  log.Emitter

	mu sync.Mutex
	// progress has an entry for every request whose handler is running.
	progress map[model.RequestID]progress

	// malformed and unfinished are owned by the loop goroutine.
	malformed map[model.RequestID]bool
	// unfinished holds handled requests whose final state could not be
	// written yet.
	unfinished map[model.RequestID]handled
}

type progress struct {
	// state is the last state reported through UpdateState or Complete,
	// empty if none was.
	state     string
	completed bool
}

type handled struct {
	req  Request
	prog progress
}

// NewReceiver creates a receiver. UpdateState and Complete go through w,
// so they may be called from any goroutine. A nil handler acknowledges
// every request without doing anything.
func NewReceiver(thingID string, h Handler, w StateStore, config ReceiverConfig) *Receiver {
	if config.PollInterval <= 0 {
		config.PollInterval = DefaultReceiveInterval
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if h == nil {
		h = HandlerFunc(func(context.Context, Request) {})
	}
	return &Receiver{
		thingID:   thingID,
		handler:   h,
		writer:    w,
		config:    config,
		logger:    logger,
		events:    log.NewEmitter(config.ProtocolLogger, thingID, log.LayerAction),
		progress:   make(map[model.RequestID]progress),
		malformed:  make(map[model.RequestID]bool),
		unfinished: make(map[model.RequestID]handled),
	}
}

// UpdateState reports an intermediate state for a request that is being
// handled or still waits in state Requested. The receiver still marks it
// Done when the handler returns.
func (r *Receiver) UpdateState(ctx context.Context, id model.RequestID, state string) error {
	if err := r.setState(ctx, id, state, false); err != nil {
		return fmt.Errorf("update request %s: %w", id, err)
	}
	return nil
}

// Complete finishes a request with a state of the handler's choosing.
// The receiver does not overwrite it with Done. Like UpdateState it only
// applies to requests being handled or still in state Requested.
func (r *Receiver) Complete(ctx context.Context, id model.RequestID, state string) error {
	if err := r.setState(ctx, id, state, true); err != nil {
		return fmt.Errorf("complete request %s: %w", id, err)
	}
	return nil
}

// setState holds mu across the write so serve observes either the old or
// the new progress, never a state written behind its back.
func (r *Receiver) setState(ctx context.Context, id model.RequestID, state string, complete bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	prog, serving := r.progress[id]
	switch {
	case serving && prog.completed:
		return ErrRequestFinished
	case !serving:
		current, err := r.writer.GetActionRequest(ctx, r.thingID, id)
		if err != nil {
			return err
		}
		if current.State != model.StateRequested {
			return fmt.Errorf("%w: state %s", ErrRequestFinished, current.State)
		}
	}

	if err := r.writer.SetActionRequestState(ctx, id, state); err != nil {
		return err
	}
	if serving {
		r.progress[id] = progress{state: state, completed: complete}
	}
	r.config.Metrics.Request("received", state)
	return nil
}

// Run polls every PollInterval until ctx is cancelled. in must not be
// used by any other goroutine while Run is active.
func (r *Receiver) Run(ctx context.Context, in Inbox) {
	r.events.State(r.thingID, log.StateEntityLoop, receiverLoop, "", "running", "")
	r.logger.Info("receiver loop started", "thing_id", r.thingID, "interval", r.config.PollInterval)

	ticker := time.NewTicker(r.config.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.events.State(r.thingID, log.StateEntityLoop, receiverLoop, "running", "stopped", ctx.Err().Error())
			r.logger.Info("receiver loop stopped", "thing_id", r.thingID)
			return
		case <-ticker.C:
			if err := r.Poll(ctx, in); err != nil && ctx.Err() == nil {
				r.config.Metrics.TickError(receiverLoop)
				r.logger.Warn("receiver poll failed", "thing_id", r.thingID, "error", err)
			}
		}
	}
}

// Poll runs one tick: every pending request is handled in id order.
// Individual failures are logged; the error is returned only when the
// pending list could not be read.
func (r *Receiver) Poll(ctx context.Context, in Inbox) error {
	pending, err := in.ListPendingActionRequests(ctx)
	if err != nil {
		return err
	}

	// Requests whose handler already ran are only finished, never handled
	// again. The pending list was read before the retry, so it may still
	// show them as Requested.
	retried := make(map[model.RequestID]bool, len(r.unfinished))
	for id, h := range r.unfinished {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		retried[id] = true
		if r.finish(ctx, in, h) {
			delete(r.unfinished, id)
		}
	}

	for _, p := range pending {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if retried[p.ID] {
			continue
		}
		if p.Err != nil {
			if !r.malformed[p.ID] {
				r.malformed[p.ID] = true
				r.events.Error(r.thingID, p.Err, "parse request "+p.ID.String())
				r.logger.Warn("skipping malformed action request",
					"thing_id", r.thingID, "request_id", p.ID, "raw", p.Raw, "error", p.Err)
			}
			continue
		}
		r.serve(ctx, in, p)
	}
	r.config.Metrics.Tick(receiverLoop)
	return nil
}

func (r *Receiver) serve(ctx context.Context, in Inbox, p entity.PendingRequest) {
	req := Request{
		ID:     p.ID,
		From:   p.Request.ThingID,
		Action: p.Request.Action,
		Args:   p.Request.Args,
	}
	r.logger.Debug("handling action request",
		"thing_id", r.thingID, "request_id", req.ID, "from", req.From, "action", req.Action, "args", req.Args)
	r.config.Metrics.Request("received", model.StateRequested)
	r.events.State(req.From, log.StateEntityRequest, req.ID.String(), "", model.StateRequested, req.Action)

	r.mu.Lock()
	r.progress[req.ID] = progress{}
	r.mu.Unlock()

	r.invoke(ctx, req)

	r.mu.Lock()
	prog := r.progress[req.ID]
	delete(r.progress, req.ID)
	r.mu.Unlock()

	h := handled{req: req, prog: prog}
	if !r.finish(ctx, in, h) {
		r.unfinished[req.ID] = h
	}
}

// finish writes the final state of a handled request. It returns false
// when the store could not be read or written and the write should be
// retried on the next tick.
func (r *Receiver) finish(ctx context.Context, in Inbox, h handled) bool {
	logger := r.logger.With("thing_id", r.thingID, "request_id", h.req.ID, "from", h.req.From, "action", h.req.Action)
	reported := h.prog.state != ""

	if !r.config.ForceDone {
		if h.prog.completed {
			logger.Debug("request completed by handler", "state", h.prog.state)
			return true
		}
		current, err := in.GetActionRequest(ctx, r.thingID, h.req.ID)
		if err != nil {
			logger.Warn("re-read action request failed", "error", err)
			return false
		}
		if current.State != model.StateRequested && !(reported && current.State == h.prog.state) {
			logger.Debug("request state changed by handler, not marking done", "state", current.State)
			return true
		}
	}

	old := model.StateRequested
	if reported {
		old = h.prog.state
	}
	if err := in.SetActionRequestState(ctx, h.req.ID, model.StateDone); err != nil {
		logger.Warn("mark action request done failed", "error", err)
		return false
	}
	r.config.Metrics.Request("received", model.StateDone)
	r.events.State(h.req.From, log.StateEntityRequest, h.req.ID.String(), old, model.StateDone, "")
	return true
}

// invoke calls the handler, recovering from panics.
func (r *Receiver) invoke(ctx context.Context, req Request) {
	defer func() {
		if v := recover(); v != nil {
			r.logger.Error("action handler panicked",
				"thing_id", r.thingID, "request_id", req.ID, "action", req.Action, "panic", fmt.Sprint(v))
		}
	}()
	r.handler.HandleAction(ctx, req)
}
