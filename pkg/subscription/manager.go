package subscription

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/safething/safething-go/pkg/filter"
	"github.com/safething/safething-go/pkg/log"
	"github.com/safething/safething-go/pkg/metrics"
	"github.com/safething/safething-go/pkg/model"
)

// DefaultPollInterval is the polling loop period.
const DefaultPollInterval = 5 * time.Second

const loopName = "subscription"

// Notification is delivered for every eligible event or attribute change.
type Notification struct {
	// ThingID is the remote Thing the change came from.
	ThingID string

	// Name is the topic or attribute name.
	Name string

	// Payload is the event payload or the new attribute value.
	Payload string

	// Timestamp is the event timestamp, 0 for attributes.
	Timestamp uint64

	Kind Kind
}

// Notifier receives notifications on the polling goroutine.
type Notifier interface {
	Notify(n Notification)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(Notification)

// Notify calls f(n).
func (f NotifierFunc) Notify(n Notification) { f(n) }

// Loader reads the persisted subscription map.
type Loader interface {
	GetSubscriptions(ctx context.Context, thingID string) (string, error)
}

// Store reads and writes the persisted subscription map.
type Store interface {
	Loader
	SetSubscriptions(ctx context.Context, value string) error
}

// Source is what the polling loop reads remote Things through and
// persists the subscription map with. *entity.Adapter satisfies it.
type Source interface {
	Store
	GetAttrs(ctx context.Context, thingID string) (string, error)
	GetTopicEvents(ctx context.Context, thingID, topic string) (string, error)
}

// Config configures a Manager.
type Config struct {
	// PollInterval is the loop period. Zero uses DefaultPollInterval.
	PollInterval time.Duration

	// Logger is the operational logger. Nil uses slog.Default().
	Logger *slog.Logger

	// ProtocolLogger receives notification and loop events.
	ProtocolLogger log.Logger

	Metrics *metrics.Metrics
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	return Config{PollInterval: DefaultPollInterval}
}

type entry struct {
	thingID string
	sub     *Subscription
}

// Manager owns the subscriptions of one local Thing.
//
// There is at most one subscription per remote Thing, kind and name.
// Subscribing again replaces the filter and keeps the watermark.
//
// Subscription fields are read and written under mu only. The loop is the
// only writer of the persisted map: changes made by callers mark the map
// dirty and the loop saves it on its next wake-up or tick.
type Manager struct {
	thingID  string
	notifier Notifier
	loader   Loader
	config   Config
	logger   *slog.Logger
	events   log.Emitter

	mu       sync.Mutex
	subs     Registered
	queue    []entry
	restored bool
	dirty    bool

	// wake nudges a running loop to drain the queue early.
	wake chan struct{}

	// live is owned by the polling goroutine.
	live []entry
}

// NewManager creates a manager for thingID. loader is read by Restore; it
// may be nil. A nil notifier discards.
func NewManager(thingID string, loader Loader, notifier Notifier, config Config) *Manager {
	if config.PollInterval <= 0 {
		config.PollInterval = DefaultPollInterval
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if notifier == nil {
		notifier = NotifierFunc(func(Notification) {})
	}
	return &Manager{
		thingID:  thingID,
		notifier: notifier,
		loader:   loader,
		config:   config,
		logger:   logger,
		events:   log.NewEmitter(config.ProtocolLogger, thingID, log.LayerSubscription),
		subs:     make(Registered),
		wake:     make(chan struct{}, 1),
	}
}

func (m *Manager) debugLog(msg string, args ...any) {
	m.logger.Debug(msg, append([]any{"thing_id", m.thingID}, args...)...)
}

// SubscribeToTopic watches topic on thingID. Events published before the
// call are not delivered.
func (m *Manager) SubscribeToTopic(ctx context.Context, thingID, topic string, op filter.Operator, value string) error {
	return m.add(ctx, thingID, NewTopic(topic, filter.Filter{Op: op, Value: value}))
}

// SubscribeToAttr watches the dynamic attribute attr on thingID.
func (m *Manager) SubscribeToAttr(ctx context.Context, thingID, attr string, op filter.Operator, value string) error {
	return m.add(ctx, thingID, NewAttr(attr, filter.Filter{Op: op, Value: value}))
}

func (m *Manager) add(_ context.Context, thingID string, sub *Subscription) error {
	m.mu.Lock()
	replaced := false
	if existing := m.subs.Find(thingID, sub.Kind, sub.Name); existing != nil {
		existing.Filter = sub.Filter
		replaced = true
	} else {
		m.subs[thingID] = append(m.subs[thingID], sub)
		m.queue = append(m.queue, entry{thingID: thingID, sub: sub})
	}
	m.dirty = true
	m.mu.Unlock()

	m.signal()
	m.debugLog("subscription added",
		"remote", thingID, "kind", sub.Kind, "name", sub.Name, "filter", sub.Filter, "replaced", replaced)
	return nil
}

func (m *Manager) signal() {
	select {
	case m.wake <- struct{}{}:
	default:
	}
}

// Restore merges the persisted subscription map into the manager. Only the
// first successful call reads the store.
//
// A persisted subscription that matches one already made in this process
// contributes its watermark; the filter of the current subscription wins.
func (m *Manager) Restore(ctx context.Context) error {
	if m.loader == nil {
		return nil
	}
	m.mu.Lock()
	if m.restored {
		m.mu.Unlock()
		return nil
	}
	m.restored = true
	m.mu.Unlock()

	raw, err := m.loader.GetSubscriptions(ctx, m.thingID)
	if err != nil {
		m.mu.Lock()
		m.restored = false
		m.mu.Unlock()
		return fmt.Errorf("restore subscriptions: %w", err)
	}
	saved, err := ParseRegistered(raw)
	if err != nil {
		return err
	}

	ids := make([]string, 0, len(saved))
	for id := range saved {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	m.mu.Lock()
	n := 0
	for _, id := range ids {
		for _, sub := range saved[id] {
			if sub == nil {
				continue
			}
			if existing := m.subs.Find(id, sub.Kind, sub.Name); existing != nil {
				existing.LastReportTimestamp = sub.LastReportTimestamp
				existing.LastValueReported = sub.LastValueReported
				m.dirty = true
				continue
			}
			m.subs[id] = append(m.subs[id], sub)
			m.queue = append(m.queue, entry{thingID: id, sub: sub})
			n++
		}
	}
	m.mu.Unlock()

	if n > 0 {
		m.signal()
		m.logger.Info("subscriptions restored", "thing_id", m.thingID, "count", n)
	}
	return nil
}

// Subscriptions returns a snapshot of the subscription map.
func (m *Manager) Subscriptions() Registered {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.subs.Clone()
}

// flush saves the subscription map through s if it changed since the last
// successful save. Called from the loop only.
func (m *Manager) flush(ctx context.Context, s Store) {
	m.mu.Lock()
	if !m.dirty {
		m.mu.Unlock()
		return
	}
	m.dirty = false
	raw, err := model.Encode(m.subs)
	m.mu.Unlock()

	if err == nil {
		err = s.SetSubscriptions(ctx, raw)
	}
	if err != nil {
		m.mu.Lock()
		m.dirty = true
		m.mu.Unlock()
		m.logger.Warn("persist subscriptions failed", "thing_id", m.thingID, "error", err)
	}
}

// Run polls src every PollInterval until ctx is cancelled. src must not be
// used by any other goroutine while Run is active.
func (m *Manager) Run(ctx context.Context, src Source) {
	m.events.State(m.thingID, log.StateEntityLoop, loopName, "", "running", "")
	m.logger.Info("subscription loop started", "thing_id", m.thingID, "interval", m.config.PollInterval)

	ticker := time.NewTicker(m.config.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			m.drain()
			saveCtx, cancel := context.WithTimeout(context.Background(), m.config.PollInterval)
			m.flush(saveCtx, src)
			cancel()
			m.events.State(m.thingID, log.StateEntityLoop, loopName, "running", "stopped", ctx.Err().Error())
			m.logger.Info("subscription loop stopped", "thing_id", m.thingID)
			return
		case <-m.wake:
			m.drain()
			m.flush(ctx, src)
		case <-ticker.C:
			if err := m.Poll(ctx, src); err != nil && ctx.Err() == nil {
				m.logger.Warn("subscription poll failed", "thing_id", m.thingID, "error", err)
			}
		}
	}
}

// drain moves queued subscriptions into the loop's live list.
func (m *Manager) drain() int {
	m.mu.Lock()
	q := m.queue
	m.queue = nil
	m.mu.Unlock()

	if len(q) == 0 {
		return 0
	}
	m.live = append(m.live, q...)
	sort.SliceStable(m.live, func(i, j int) bool {
		return m.live[i].thingID < m.live[j].thingID
	})
	m.config.Metrics.SetSubscriptions(len(m.live))
	return len(q)
}

// Poll runs one tick: drain the queue, then check every live subscription
// against src. Errors on individual subscriptions are logged and do not
// stop the tick; the first one is returned. Poll must not be called
// concurrently with Run or with itself.
func (m *Manager) Poll(ctx context.Context, src Source) error {
	m.drain()

	var firstErr error
	for _, e := range m.live {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := m.check(ctx, src, e); err != nil {
			m.config.Metrics.TickError(loopName)
			m.events.Error(e.thingID, err, fmt.Sprintf("check %s %s", e.sub.Kind, e.sub.Name))
			m.logger.Warn("subscription check failed",
				"thing_id", m.thingID, "remote", e.thingID, "name", e.sub.Name, "error", err)
			if firstErr == nil {
				firstErr = err
			}
		}
	}

	m.flush(ctx, src)
	m.config.Metrics.Tick(loopName)
	return firstErr
}

// snapshot copies e's subscription under mu.
func (m *Manager) snapshot(e entry) Subscription {
	m.mu.Lock()
	defer m.mu.Unlock()
	return *e.sub
}

func (m *Manager) check(ctx context.Context, src Source, e entry) error {
	sub := m.snapshot(e)
	switch sub.Kind {
	case KindTopic:
		return m.checkTopic(ctx, src, e, sub)
	case KindAttr:
		return m.checkAttr(ctx, src, e, sub)
	default:
		return fmt.Errorf("unknown subscription kind %d", sub.Kind)
	}
}

func (m *Manager) checkTopic(ctx context.Context, src Source, e entry, sub Subscription) error {
	raw, err := src.GetTopicEvents(ctx, e.thingID, sub.Name)
	if err != nil {
		return err
	}
	events, err := model.Decode[[]model.Event](raw)
	if err != nil {
		return fmt.Errorf("decode events of %s: %w", sub.Name, err)
	}

	var evalErr error
	for _, ev := range sub.PendingEvents(events) {
		ok, err := sub.Filter.Match(ev.Payload)
		if err != nil {
			// Events are immutable, so a payload the filter rejects as
			// malformed is skipped for good.
			evalErr = errors.Join(evalErr, fmt.Errorf("event %d: %w", ev.Timestamp, err))
			m.advanceTimestamp(e.sub, ev.Timestamp)
			continue
		}
		if !ok {
			continue
		}
		m.deliver(Notification{
			ThingID:   e.thingID,
			Name:      sub.Name,
			Payload:   ev.Payload,
			Timestamp: ev.Timestamp,
			Kind:      KindTopic,
		})
		m.advanceTimestamp(e.sub, ev.Timestamp)
	}
	return evalErr
}

func (m *Manager) checkAttr(ctx context.Context, src Source, e entry, sub Subscription) error {
	raw, err := src.GetAttrs(ctx, e.thingID)
	if err != nil {
		return err
	}
	attrs, err := model.Decode[[]model.ThingAttr](raw)
	if err != nil {
		return fmt.Errorf("decode attributes of %s: %w", e.thingID, err)
	}
	attr, found := model.FindAttr(attrs, sub.Name)
	if !found {
		return nil
	}
	ok, err := sub.AttrEligible(attr)
	if err != nil {
		return fmt.Errorf("attribute %s: %w", attr.Name, err)
	}
	if !ok {
		return nil
	}
	m.deliver(Notification{
		ThingID: e.thingID,
		Name:    attr.Name,
		Payload: attr.Value,
		Kind:    KindAttr,
	})
	m.mu.Lock()
	e.sub.LastValueReported = attr.Value
	m.dirty = true
	m.mu.Unlock()
	return nil
}

func (m *Manager) advanceTimestamp(sub *Subscription, ts uint64) {
	m.mu.Lock()
	if ts > sub.LastReportTimestamp {
		sub.LastReportTimestamp = ts
		m.dirty = true
	}
	m.mu.Unlock()
}

// deliver invokes the notifier, recovering from panics.
func (m *Manager) deliver(n Notification) {
	kind := log.NotificationTopic
	if n.Kind == KindAttr {
		kind = log.NotificationAttr
	}
	m.events.Notification(n.ThingID, log.NotificationEvent{
		Kind:           kind,
		Name:           n.Name,
		Payload:        n.Payload,
		EventTimestamp: n.Timestamp,
	})
	m.config.Metrics.Notified(n.Kind.String())

	defer func() {
		if r := recover(); r != nil {
			m.logger.Error("notifier panicked",
				"thing_id", m.thingID, "remote", n.ThingID, "name", n.Name, "panic", r)
		}
	}()
	m.notifier.Notify(n)
}
