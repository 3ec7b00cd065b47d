// Package thing is the public facade of the runtime: one Thing registered
// on a store network.
//
// A Thing owns three kinds of store sessions. The facade's own session
// serves the synchronous methods under a mutex. Register starts the
// subscription loop and the receiver loop, each on a freshly connected
// session. Every sent action request is monitored on a session of its own.
// No session is shared between goroutines without synchronization.
package thing

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/safething/safething-go/pkg/action"
	"github.com/safething/safething-go/pkg/connection"
	"github.com/safething/safething-go/pkg/entity"
	"github.com/safething/safething-go/pkg/filter"
	"github.com/safething/safething-go/pkg/log"
	"github.com/safething/safething-go/pkg/metrics"
	"github.com/safething/safething-go/pkg/model"
	"github.com/safething/safething-go/pkg/store"
	"github.com/safething/safething-go/pkg/subscription"
)

// Thing is a registered participant of the network.
type Thing struct {
	id      string
	net     store.Network
	config  Config
	logger  *slog.Logger
	events  log.Emitter
	limiter *rate.Limiter

	subs     *subscription.Manager
	sender   *action.Sender
	receiver *action.Receiver

	// mu guards the facade session and the lifecycle flags.
	mu           sync.Mutex
	adapter      *entity.Adapter
	registered   bool
	loopsStarted bool
	closed       bool

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a Thing and connects its facade session. It fails with
// ErrInvalidArgument if thingID is shorter than model.MinThingIDLen and
// with an error wrapping store.ErrConnection if the network is unreachable.
// Nothing is written until Register.
func New(ctx context.Context, thingID string, net store.Network, config Config) (*Thing, error) {
	if err := ValidateID(thingID); err != nil {
		return nil, err
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if config.Credentials.Identity == "" {
		config.Credentials.Identity = thingID
	}
	if config.Backend == "" {
		config.Backend = "store"
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}

	t := &Thing{
		id:      thingID,
		net:     net,
		config:  config,
		logger:  logger,
		events:  log.NewEmitter(config.ProtocolLogger, thingID, log.LayerThing),
		limiter: store.NewLimiter(config.OpsPerSecond, config.Burst),
	}

	h, err := t.dial(ctx)
	if err != nil {
		return nil, fmt.Errorf("connect %s: %w", thingID, err)
	}
	t.adapter = entity.New(h, thingID, t.entityConfig())

	t.ctx, t.cancel = context.WithCancel(context.Background())

	guard := guarded{t: t}
	t.subs = subscription.NewManager(thingID, guard, config.Notifier, subscription.Config{
		PollInterval:   config.SubscriptionInterval,
		Logger:         logger,
		ProtocolLogger: config.ProtocolLogger,
		Metrics:        config.Metrics,
	})
	t.sender = action.NewSender(thingID, guard, t.dial, action.SenderConfig{
		MonitorInterval: config.MonitorInterval,
		Timeout:         config.RequestTimeout,
		NotifyTimeout:   config.NotifyTimeout,
		Ledger:          config.Ledger,
		Logger:          logger,
		ProtocolLogger:  config.ProtocolLogger,
		Metrics:         config.Metrics,
	})
	t.receiver = action.NewReceiver(thingID, config.ActionHandler, guard, action.ReceiverConfig{
		PollInterval:   config.ReceiveInterval,
		ForceDone:      config.ForceDone,
		Logger:         logger,
		ProtocolLogger: config.ProtocolLogger,
		Metrics:        config.Metrics,
	})

	t.debugLog("thing created", "address", entity.Address(thingID))
	return t, nil
}

func (t *Thing) entityConfig() entity.Config {
	return entity.Config{Logger: t.logger, ProtocolLogger: t.config.ProtocolLogger}
}

// dial connects a new self-healing session.
func (t *Thing) dial(ctx context.Context) (store.Handle, error) {
	return connection.Dial(ctx, t.net, connection.Config{
		Credentials:      t.config.Credentials,
		FailureThreshold: t.config.FailureThreshold,
		Backoff:          t.config.Backoff,
		Logger:           t.logger,
		Wrap: func(h store.Handle) store.Handle {
			return metrics.Instrument(store.RateLimited(h, t.limiter), t.config.Metrics, t.config.Backend)
		},
		OnStateChange: func(oldState, newState connection.State) {
			t.events.State(t.id, log.StateEntityLoop, "session", oldState.String(), newState.String(), "")
		},
	})
}

func (t *Thing) debugLog(msg string, args ...any) {
	t.logger.Debug(msg, append([]any{"thing_id", t.id}, args...)...)
}

// ID returns the Thing id.
func (t *Thing) ID() string {
	return t.id
}

// lock acquires mu and fails if the Thing is closed.
func (t *Thing) lock() error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return ErrClosed
	}
	return nil
}

// Register stores the Thing's record and its attribute, topic and action
// snapshots, sets the status to Connected, restores persisted
// subscriptions and starts the background loops. Calling Register again
// overwrites the snapshots; the loops are started only once.
func (t *Thing) Register(ctx context.Context, attrs []model.ThingAttr, topics []model.Topic, actions []model.ActionDef) error {
	if err := t.lock(); err != nil {
		return err
	}
	err := t.writeRegistration(ctx, attrs, topics, actions)
	if err == nil {
		t.registered = true
	}
	t.mu.Unlock()
	if err != nil {
		return err
	}

	t.events.State(t.id, log.StateEntityThing, t.id, "", model.StatusConnected.String(), "register")
	t.logger.Info("thing registered",
		"thing_id", t.id, "attributes", len(attrs), "topics", len(topics), "actions", len(actions))

	if err := t.subs.Restore(ctx); err != nil {
		t.logger.Warn("subscription restore failed", "thing_id", t.id, "error", err)
	}
	return t.startLoops(ctx)
}

// writeRegistration must be called with mu held.
func (t *Thing) writeRegistration(ctx context.Context, attrs []model.ThingAttr, topics []model.Topic, actions []model.ActionDef) error {
	if _, _, err := t.adapter.StoreEntity(ctx); err != nil {
		return err
	}

	if attrs == nil {
		attrs = []model.ThingAttr{}
	}
	if topics == nil {
		topics = []model.Topic{}
	}
	if actions == nil {
		actions = []model.ActionDef{}
	}

	writes := []struct {
		v   any
		set func(context.Context, string) error
	}{
		{attrs, t.adapter.SetAttrs},
		{topics, t.adapter.SetTopics},
		{actions, t.adapter.SetActions},
	}
	for _, w := range writes {
		raw, err := model.Encode(w.v)
		if err != nil {
			return err
		}
		if err := w.set(ctx, raw); err != nil {
			return fmt.Errorf("register: %w", err)
		}
	}
	return t.adapter.SetStatus(ctx, model.StatusConnected)
}

func (t *Thing) startLoops(ctx context.Context) error {
	t.mu.Lock()
	if t.loopsStarted || t.closed {
		t.mu.Unlock()
		return nil
	}
	t.loopsStarted = true
	t.mu.Unlock()

	subHandle, err := t.dial(ctx)
	if err != nil {
		t.resetLoops()
		return fmt.Errorf("start subscription loop: %w", err)
	}
	recvHandle, err := t.dial(ctx)
	if err != nil {
		_ = subHandle.Close()
		t.resetLoops()
		return fmt.Errorf("start receiver loop: %w", err)
	}

	subAdapter := entity.New(subHandle, t.id, t.entityConfig())
	recvAdapter := entity.New(recvHandle, t.id, t.entityConfig())

	t.wg.Add(2)
	go func() {
		defer t.wg.Done()
		defer subAdapter.Close()
		t.subs.Run(t.ctx, subAdapter)
	}()
	go func() {
		defer t.wg.Done()
		defer recvAdapter.Close()
		t.receiver.Run(t.ctx, recvAdapter)
	}()
	return nil
}

func (t *Thing) resetLoops() {
	t.mu.Lock()
	t.loopsStarted = false
	t.mu.Unlock()
}

func (t *Thing) setStatus(ctx context.Context, status model.Status) error {
	if err := t.lock(); err != nil {
		return err
	}
	defer t.mu.Unlock()
	if err := t.adapter.SetStatus(ctx, status); err != nil {
		return err
	}
	t.events.State(t.id, log.StateEntityThing, t.id, "", status.String(), "")
	t.debugLog("status set", "status", status)
	return nil
}

// Publish sets the status to Published.
func (t *Thing) Publish(ctx context.Context) error {
	return t.setStatus(ctx, model.StatusPublished)
}

// Disable sets the status to Disabled. The loops keep running.
func (t *Thing) Disable(ctx context.Context) error {
	return t.setStatus(ctx, model.StatusDisabled)
}

// Status returns the Thing's own status as stored.
func (t *Thing) Status(ctx context.Context) (model.Status, error) {
	return t.GetRemoteStatus(ctx, t.id)
}

// GetRemoteStatus returns the status of thingID.
func (t *Thing) GetRemoteStatus(ctx context.Context, thingID string) (model.Status, error) {
	if err := t.lock(); err != nil {
		return model.StatusUnknown, err
	}
	defer t.mu.Unlock()
	raw, err := t.adapter.GetStatus(ctx, thingID)
	if err != nil {
		return model.StatusUnknown, err
	}
	return model.ParseStatus(raw), nil
}

func getRemote[T any](ctx context.Context, t *Thing, get func(context.Context, string) (string, error), thingID string) ([]T, error) {
	if err := t.lock(); err != nil {
		return nil, err
	}
	raw, err := get(ctx, thingID)
	t.mu.Unlock()
	if err != nil {
		return nil, err
	}
	v, err := model.Decode[[]T](raw)
	if err != nil {
		return nil, fmt.Errorf("decode record of %s: %w", thingID, err)
	}
	return v, nil
}

// GetRemoteAttrs returns the attributes of thingID.
func (t *Thing) GetRemoteAttrs(ctx context.Context, thingID string) ([]model.ThingAttr, error) {
	return getRemote[model.ThingAttr](ctx, t, t.adapter.GetAttrs, thingID)
}

// GetRemoteTopics returns the topics of thingID.
func (t *Thing) GetRemoteTopics(ctx context.Context, thingID string) ([]model.Topic, error) {
	return getRemote[model.Topic](ctx, t, t.adapter.GetTopics, thingID)
}

// GetRemoteActions returns the actions of thingID.
func (t *Thing) GetRemoteActions(ctx context.Context, thingID string) ([]model.ActionDef, error) {
	return getRemote[model.ActionDef](ctx, t, t.adapter.GetActions, thingID)
}

// GetRemoteEvents returns the event log of a topic on thingID.
func (t *Thing) GetRemoteEvents(ctx context.Context, thingID, topic string) ([]model.Event, error) {
	return getRemote[model.Event](ctx, t, func(ctx context.Context, id string) (string, error) {
		return t.adapter.GetTopicEvents(ctx, id, topic)
	}, thingID)
}

// SetAttrValue sets the value of the named attribute, inserting a dynamic
// attribute if none exists. The whole list is rewritten.
func (t *Thing) SetAttrValue(ctx context.Context, name, value string) error {
	if err := t.lock(); err != nil {
		return err
	}
	defer t.mu.Unlock()

	raw, err := t.adapter.GetAttrs(ctx, t.id)
	if err != nil {
		return err
	}
	attrs, err := model.Decode[[]model.ThingAttr](raw)
	if err != nil {
		return fmt.Errorf("decode attributes: %w", err)
	}
	raw, err = model.Encode(model.SetAttr(attrs, name, value))
	if err != nil {
		return err
	}
	if err := t.adapter.SetAttrs(ctx, raw); err != nil {
		return err
	}
	t.debugLog("attribute set", "name", name, "value", value)
	return nil
}

// Notify appends an event with the current timestamp to topic's log.
// The read-modify-write is not atomic against other writers of the same
// record; only the owning Thing writes its event logs.
func (t *Thing) Notify(ctx context.Context, topic, payload string) error {
	if err := t.lock(); err != nil {
		return err
	}
	defer t.mu.Unlock()

	raw, err := t.adapter.GetTopicEvents(ctx, t.id, topic)
	if err != nil {
		return err
	}
	events, err := model.Decode[[]model.Event](raw)
	if err != nil {
		return fmt.Errorf("decode events of %s: %w", topic, err)
	}
	ev := model.Event{Timestamp: model.Now(), Payload: payload}
	raw, err = model.Encode(append(events, ev))
	if err != nil {
		return err
	}
	if err := t.adapter.SetTopicEvents(ctx, topic, raw); err != nil {
		return err
	}
	t.debugLog("event published", "topic", topic, "timestamp", ev.Timestamp)
	return nil
}

// SubscribeToTopic subscribes to topic on thingID. Only events published
// after the call are delivered, at the latest one tick after it returns.
func (t *Thing) SubscribeToTopic(ctx context.Context, thingID, topic string, op filter.Operator, value string) error {
	if err := t.checkOpen(); err != nil {
		return err
	}
	return t.subs.SubscribeToTopic(ctx, thingID, topic, op, value)
}

// SubscribeToAttr subscribes to the dynamic attribute attr on thingID.
func (t *Thing) SubscribeToAttr(ctx context.Context, thingID, attr string, op filter.Operator, value string) error {
	if err := t.checkOpen(); err != nil {
		return err
	}
	return t.subs.SubscribeToAttr(ctx, thingID, attr, op, value)
}

// Subscriptions returns a snapshot of the Thing's subscriptions.
func (t *Thing) Subscriptions() subscription.Registered {
	return t.subs.Subscriptions()
}

// ActionRequest asks thingID to perform action and monitors the request.
// h is called on the monitor goroutine for every state change.
func (t *Thing) ActionRequest(ctx context.Context, thingID, actionName string, args []string, h action.StateHandler) (model.RequestID, error) {
	if err := t.checkOpen(); err != nil {
		return 0, err
	}
	return t.sender.Request(ctx, thingID, actionName, args, h)
}

// UpdateActionRequestState reports an intermediate state for a request
// this Thing is handling. The request is still marked Done once the
// handler returns. Requests the receiver is done with are refused with
// action.ErrRequestFinished.
func (t *Thing) UpdateActionRequestState(ctx context.Context, id model.RequestID, state string) error {
	if err := t.checkOpen(); err != nil {
		return err
	}
	return t.receiver.UpdateState(ctx, id, state)
}

// CompleteActionRequest finishes a request this Thing is handling with a
// custom final state that is not replaced by Done.
func (t *Thing) CompleteActionRequest(ctx context.Context, id model.RequestID, state string) error {
	if err := t.checkOpen(); err != nil {
		return err
	}
	return t.receiver.Complete(ctx, id, state)
}

// ResumeRequests restarts monitors for ledger entries that are neither
// Done nor past the request timeout, and returns how many were resumed.
func (t *Thing) ResumeRequests(h action.StateHandler) (int, error) {
	if err := t.checkOpen(); err != nil {
		return 0, err
	}
	if t.config.Ledger == nil {
		return 0, nil
	}
	timeout := t.config.RequestTimeout
	if timeout <= 0 {
		timeout = action.DefaultTimeout
	}
	n := 0
	for _, e := range t.config.Ledger.Pending(time.Now(), timeout) {
		if err := t.sender.Resume(e, h); err != nil {
			return n, err
		}
		n++
	}
	if n > 0 {
		t.logger.Info("resumed action request monitors", "thing_id", t.id, "count", n)
	}
	return n, nil
}

func (t *Thing) checkOpen() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return ErrClosed
	}
	return nil
}

// Disconnect simulates a network loss on the facade session. The session
// reconnects on its own after repeated failures.
func (t *Thing) Disconnect() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.adapter.Disconnect()
}

// Close stops the loops and all monitors, waits for them and releases the
// facade session. The stored record is left as is.
func (t *Thing) Close() error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil
	}
	t.closed = true
	t.mu.Unlock()

	t.cancel()
	t.sender.Close()
	t.wg.Wait()

	t.logger.Info("thing closed", "thing_id", t.id)
	return t.adapter.Close()
}

// guarded exposes the facade session to the subscription manager and the
// action engine under the Thing's mutex.
type guarded struct {
	t *Thing
}

func (g guarded) GetSubscriptions(ctx context.Context, thingID string) (string, error) {
	if err := g.t.lock(); err != nil {
		return "", err
	}
	defer g.t.mu.Unlock()
	return g.t.adapter.GetSubscriptions(ctx, thingID)
}

func (g guarded) SendActionRequest(ctx context.Context, thingID, requestJSON string) (model.RequestID, error) {
	if err := g.t.lock(); err != nil {
		return 0, err
	}
	defer g.t.mu.Unlock()
	return g.t.adapter.SendActionRequest(ctx, thingID, requestJSON)
}

func (g guarded) SetActionRequestState(ctx context.Context, id model.RequestID, state string) error {
	if err := g.t.lock(); err != nil {
		return err
	}
	defer g.t.mu.Unlock()
	return g.t.adapter.SetActionRequestState(ctx, id, state)
}

func (g guarded) GetActionRequest(ctx context.Context, thingID string, id model.RequestID) (model.ActionReq, error) {
	if err := g.t.lock(); err != nil {
		return model.ActionReq{}, err
	}
	defer g.t.mu.Unlock()
	return g.t.adapter.GetActionRequest(ctx, thingID, id)
}
