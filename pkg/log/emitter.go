package log

import (
	"time"

	"github.com/google/uuid"
)

// Emitter stamps events with the identity of the component that produced
// them. The zero value discards everything.
type Emitter struct {
	logger    Logger
	sessionID string
	thingID   string
	layer     Layer
}

// NewEmitter creates an Emitter for one component. A new session id is
// generated so events of different handles can be told apart.
func NewEmitter(logger Logger, thingID string, layer Layer) Emitter {
	if logger == nil {
		logger = NoopLogger{}
	}
	return Emitter{
		logger:    logger,
		sessionID: uuid.NewString(),
		thingID:   thingID,
		layer:     layer,
	}
}

// SessionID returns the emitter's session id.
func (e Emitter) SessionID() string {
	return e.sessionID
}

// WithLayer returns a copy emitting at another layer with the same session.
func (e Emitter) WithLayer(layer Layer) Emitter {
	e.layer = layer
	return e
}

func (e Emitter) base(dir Direction, cat Category, remote string) Event {
	if remote == e.thingID {
		remote = ""
	}
	return Event{
		Timestamp:     time.Now(),
		SessionID:     e.sessionID,
		Direction:     dir,
		Layer:         e.layer,
		Category:      cat,
		ThingID:       e.thingID,
		RemoteThingID: remote,
	}
}

// Operation records a store operation against remote's record.
func (e Emitter) Operation(remote string, op OperationEvent) {
	if e.logger == nil {
		return
	}
	dir := DirectionIn
	if op.Op == OpSet || op.Op == OpPutRecord {
		dir = DirectionOut
	}
	ev := e.base(dir, CategoryOperation, remote)
	ev.Operation = &op
	e.logger.Log(ev)
}

// Notification records a delivered notification from remote.
func (e Emitter) Notification(remote string, n NotificationEvent) {
	if e.logger == nil {
		return
	}
	ev := e.base(DirectionIn, CategoryNotification, remote)
	ev.Notification = &n
	e.logger.Log(ev)
}

// State records a state transition.
func (e Emitter) State(remote string, entity StateEntity, id, oldState, newState, reason string) {
	if e.logger == nil {
		return
	}
	ev := e.base(DirectionOut, CategoryState, remote)
	ev.StateChange = &StateChangeEvent{
		Entity:   entity,
		ID:       id,
		OldState: oldState,
		NewState: newState,
		Reason:   reason,
	}
	e.logger.Log(ev)
}

// Error records an error raised while performing context.
func (e Emitter) Error(remote string, err error, context string) {
	if e.logger == nil || err == nil {
		return
	}
	ev := e.base(DirectionIn, CategoryError, remote)
	ev.Error = &ErrorEventData{
		Layer:   e.layer,
		Message: err.Error(),
		Context: context,
	}
	e.logger.Log(ev)
}
