// Package entity maps a Thing's logical record onto fields of one addressed
// record in the store.
//
// Getters take the id of the Thing whose record is read, so the same
// adapter serves both the local Thing and remote lookups. Setters always
// write the local record, except SendActionRequest which writes into the
// target's record.
//
// A missing field is not an error: getters substitute an empty list or map.
// Network failures propagate wrapped in store.ErrNetwork.
package entity

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/safething/safething-go/pkg/log"
	"github.com/safething/safething-go/pkg/model"
	"github.com/safething/safething-go/pkg/store"
)

// Config configures an Adapter.
type Config struct {
	// Logger is the operational logger. Nil uses slog.Default().
	Logger *slog.Logger

	// ProtocolLogger receives one event per store operation. Nil disables capture.
	ProtocolLogger log.Logger
}

// PendingRequest is an action request found in the local record.
type PendingRequest struct {
	ID      model.RequestID
	Request model.ActionReq

	// Raw is the stored JSON.
	Raw string

	// Err is set when the entry could not be parsed.
	Err error
}

// Adapter reads and writes Thing records through one store handle.
// An Adapter is not safe for concurrent use; each polling loop owns its own.
type Adapter struct {
	handle  store.Handle
	thingID string
	address string
	logger  *slog.Logger
	events  log.Emitter
}

// New creates an adapter for thingID on handle h.
func New(h store.Handle, thingID string, cfg Config) *Adapter {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Adapter{
		handle:  h,
		thingID: thingID,
		address: Address(thingID),
		logger:  logger,
		events:  log.NewEmitter(cfg.ProtocolLogger, thingID, log.LayerStore),
	}
}

// ThingID returns the local Thing id.
func (a *Adapter) ThingID() string { return a.thingID }

// Events returns the protocol event emitter bound to this adapter's session.
func (a *Adapter) Events() log.Emitter { return a.events }

// Close releases the underlying handle.
func (a *Adapter) Close() error {
	return a.handle.Close()
}

// Disconnect simulates a network disconnection when the backend supports it.
// It reports whether the handle was disconnected.
func (a *Adapter) Disconnect() bool {
	d, ok := a.handle.(store.Disconnector)
	if ok {
		d.Disconnect()
	}
	return ok
}

func (a *Adapter) debugLog(msg string, args ...any) {
	a.logger.Debug(msg, append([]any{"thing_id", a.thingID}, args...)...)
}

// get reads key from thingID's record, substituting def when missing.
func (a *Adapter) get(ctx context.Context, thingID, key, def string) (string, error) {
	start := time.Now()
	v, err := a.handle.GetField(ctx, Address(thingID), key)
	op := log.OperationEvent{Op: log.OpGet, Key: key, Duration: time.Since(start)}
	if errors.Is(err, store.ErrNotFound) {
		op.NotFound = true
		op.Size = len(def)
		a.events.Operation(thingID, op)
		return def, nil
	}
	if err != nil {
		a.events.Error(thingID, err, "get "+key)
		return "", err
	}
	op.Size = len(v)
	a.events.Operation(thingID, op)
	return v, nil
}

func (a *Adapter) setAt(ctx context.Context, thingID, key, value string) error {
	start := time.Now()
	err := a.handle.SetField(ctx, Address(thingID), key, value)
	if err != nil {
		a.events.Error(thingID, err, "set "+key)
		return err
	}
	a.events.Operation(thingID, log.OperationEvent{
		Op:       log.OpSet,
		Key:      key,
		Size:     len(value),
		Duration: time.Since(start),
	})
	return nil
}

func (a *Adapter) set(ctx context.Context, key, value string) error {
	return a.setAt(ctx, a.thingID, key, value)
}

// StoreEntity creates the local Thing record. Calling it again is harmless.
func (a *Adapter) StoreEntity(ctx context.Context) (string, uint64, error) {
	if err := a.handle.PutRecord(ctx, a.address, TypeTag); err != nil {
		a.events.Error(a.thingID, err, "put record")
		return "", 0, fmt.Errorf("store entity: %w", err)
	}
	a.events.Operation(a.thingID, log.OperationEvent{Op: log.OpPutRecord})
	a.debugLog("entity stored", "address", a.address)
	return a.address, TypeTag, nil
}

// GetStatus returns the raw status string of thingID ("" if unset).
func (a *Adapter) GetStatus(ctx context.Context, thingID string) (string, error) {
	return a.get(ctx, thingID, KeyStatus, "")
}

// SetStatus writes the local status.
func (a *Adapter) SetStatus(ctx context.Context, status model.Status) error {
	return a.set(ctx, KeyStatus, status.String())
}

// GetAttrs returns the JSON attribute list of thingID.
func (a *Adapter) GetAttrs(ctx context.Context, thingID string) (string, error) {
	return a.get(ctx, thingID, KeyAttributes, emptyList)
}

// SetAttrs writes the local attribute list.
func (a *Adapter) SetAttrs(ctx context.Context, value string) error {
	return a.set(ctx, KeyAttributes, value)
}

// GetTopics returns the JSON topic list of thingID.
func (a *Adapter) GetTopics(ctx context.Context, thingID string) (string, error) {
	return a.get(ctx, thingID, KeyTopics, emptyList)
}

// SetTopics writes the local topic list.
func (a *Adapter) SetTopics(ctx context.Context, value string) error {
	return a.set(ctx, KeyTopics, value)
}

// GetActions returns the JSON action list of thingID.
func (a *Adapter) GetActions(ctx context.Context, thingID string) (string, error) {
	return a.get(ctx, thingID, KeyActions, emptyList)
}

// SetActions writes the local action list.
func (a *Adapter) SetActions(ctx context.Context, value string) error {
	return a.set(ctx, KeyActions, value)
}

// GetSubscriptions returns the JSON subscription map of thingID.
func (a *Adapter) GetSubscriptions(ctx context.Context, thingID string) (string, error) {
	return a.get(ctx, thingID, KeySubscriptions, emptyMap)
}

// SetSubscriptions writes the local subscription map.
func (a *Adapter) SetSubscriptions(ctx context.Context, value string) error {
	return a.set(ctx, KeySubscriptions, value)
}

// GetTopicEvents returns the JSON event log of a topic on thingID.
func (a *Adapter) GetTopicEvents(ctx context.Context, thingID, topic string) (string, error) {
	return a.get(ctx, thingID, EventsKey(topic), emptyList)
}

// SetTopicEvents writes the local event log of a topic.
func (a *Adapter) SetTopicEvents(ctx context.Context, topic, value string) error {
	return a.set(ctx, EventsKey(topic), value)
}

// SendActionRequest writes requestJSON into thingID's record under a new
// request id and returns the id.
func (a *Adapter) SendActionRequest(ctx context.Context, thingID, requestJSON string) (model.RequestID, error) {
	id := model.RequestID(model.Now())
	if err := a.setAt(ctx, thingID, ActionReqKey(id), requestJSON); err != nil {
		return 0, fmt.Errorf("send action request to %s: %w", thingID, err)
	}
	a.debugLog("action request sent", "target", thingID, "request_id", id)
	return id, nil
}

// GetActionRequest reads an action request from thingID's record.
// Unlike the list getters a missing entry is reported as store.ErrNotFound.
func (a *Adapter) GetActionRequest(ctx context.Context, thingID string, id model.RequestID) (model.ActionReq, error) {
	raw, err := a.get(ctx, thingID, ActionReqKey(id), "")
	if err != nil {
		return model.ActionReq{}, err
	}
	if raw == "" {
		return model.ActionReq{}, fmt.Errorf("action request %s: %w", id, store.ErrNotFound)
	}
	req, err := model.Decode[model.ActionReq](raw)
	if err != nil {
		return model.ActionReq{}, fmt.Errorf("action request %s: %w", id, err)
	}
	return req, nil
}

// GetActionRequestState returns the state of a request stored in thingID's record.
func (a *Adapter) GetActionRequestState(ctx context.Context, thingID string, id model.RequestID) (string, error) {
	req, err := a.GetActionRequest(ctx, thingID, id)
	if err != nil {
		return "", err
	}
	return req.State, nil
}

// SetActionRequestState rewrites the state of a request in the local record.
func (a *Adapter) SetActionRequestState(ctx context.Context, id model.RequestID, state string) error {
	req, err := a.GetActionRequest(ctx, a.thingID, id)
	if err != nil {
		return err
	}
	req.State = state
	raw, err := model.Encode(req)
	if err != nil {
		return err
	}
	return a.set(ctx, ActionReqKey(id), raw)
}

// ListPendingActionRequests returns the requests in the local record that
// are still in state Requested. Empty entries are skipped. Entries that fail
// to parse are returned with Err set.
func (a *Adapter) ListPendingActionRequests(ctx context.Context) ([]PendingRequest, error) {
	start := time.Now()
	fields, err := a.handle.ListFields(ctx, a.address)
	if err != nil {
		a.events.Error(a.thingID, err, "list fields")
		return nil, fmt.Errorf("list action requests: %w", err)
	}
	a.events.Operation(a.thingID, log.OperationEvent{
		Op:       log.OpList,
		Size:     len(fields),
		Duration: time.Since(start),
	})

	var pending []PendingRequest
	for _, f := range fields {
		id, ok := ParseActionReqKey(f.Key)
		if !ok || f.Value == "" {
			continue
		}
		p := PendingRequest{ID: id, Raw: f.Value}
		req, err := model.Decode[model.ActionReq](f.Value)
		if err != nil {
			p.Err = err
			pending = append(pending, p)
			continue
		}
		if req.State != model.StateRequested {
			continue
		}
		p.Request = req
		pending = append(pending, p)
	}
	return pending, nil
}
