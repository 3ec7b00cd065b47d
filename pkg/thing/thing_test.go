package thing

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/safething/safething-go/pkg/action"
	"github.com/safething/safething-go/pkg/filter"
	"github.com/safething/safething-go/pkg/metrics"
	"github.com/safething/safething-go/pkg/model"
	"github.com/safething/safething-go/pkg/persistence"
	"github.com/safething/safething-go/pkg/store"
	"github.com/safething/safething-go/pkg/subscription"
)

type inbox struct {
	mu    sync.Mutex
	notes []subscription.Notification
}

func (i *inbox) Notify(n subscription.Notification) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.notes = append(i.notes, n)
}

func (i *inbox) all() []subscription.Notification {
	i.mu.Lock()
	defer i.mu.Unlock()
	return append([]subscription.Notification(nil), i.notes...)
}

type stateLog struct {
	mu   sync.Mutex
	seen []string
}

func (s *stateLog) OnStateChange(_ model.RequestID, state string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seen = append(s.seen, state)
	return true
}

func (s *stateLog) all() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.seen...)
}

func fastConfig() Config {
	cfg := DefaultConfig()
	cfg.SubscriptionInterval = 10 * time.Millisecond
	cfg.ReceiveInterval = 10 * time.Millisecond
	cfg.MonitorInterval = 5 * time.Millisecond
	return cfg
}

func newThing(t *testing.T, net store.Network, id string, cfg Config) *Thing {
	t.Helper()
	th, err := New(context.Background(), id, net, cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = th.Close() })
	return th
}

func register(t *testing.T, th *Thing, attrs []model.ThingAttr, topics []model.Topic, actions []model.ActionDef) {
	t.Helper()
	require.NoError(t, th.Register(context.Background(), attrs, topics, actions))
}

func TestNewValidatesID(t *testing.T) {
	net := store.NewMemoryNetwork()

	_, err := New(context.Background(), "abcd", net, DefaultConfig())
	assert.ErrorIs(t, err, ErrInvalidArgument)

	th, err := New(context.Background(), "abcde", net, DefaultConfig())
	require.NoError(t, err)
	assert.Equal(t, "abcde", th.ID())
	require.NoError(t, th.Close())
}

func TestNewConnectionError(t *testing.T) {
	net := store.NewMemoryNetwork()
	net.SetConnectError(assert.AnError)

	_, err := New(context.Background(), "thing-one", net, DefaultConfig())
	assert.ErrorIs(t, err, store.ErrConnection)
}

func TestNewInvalidConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MonitorInterval = time.Minute
	cfg.RequestTimeout = time.Second
	_, err := New(context.Background(), "thing-one", store.NewMemoryNetwork(), cfg)
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestLifecycleStatus(t *testing.T) {
	ctx := context.Background()
	net := store.NewMemoryNetwork()
	th := newThing(t, net, "lamp-0001", fastConfig())

	status, err := th.Status(ctx)
	require.NoError(t, err)
	assert.Equal(t, model.StatusUnknown, status)

	register(t, th, nil, nil, nil)
	status, _ = th.Status(ctx)
	assert.Equal(t, model.StatusConnected, status)

	require.NoError(t, th.Publish(ctx))
	status, _ = th.Status(ctx)
	assert.Equal(t, model.StatusPublished, status)

	require.NoError(t, th.Disable(ctx))
	status, _ = th.Status(ctx)
	assert.Equal(t, model.StatusDisabled, status)
}

func TestRemoteRecord(t *testing.T) {
	ctx := context.Background()
	net := store.NewMemoryNetwork()
	lamp := newThing(t, net, "lamp-0001", fastConfig())
	viewer := newThing(t, net, "viewer-01", fastConfig())

	attrs := []model.ThingAttr{{Name: "color", Value: "red", IsDynamic: true}, {Name: "model", Value: "L1"}}
	topics := []model.Topic{{Name: "switched", Access: model.AccessAll}}
	actions := []model.ActionDef{{Name: "toggle", Access: model.AccessGroup, Params: []string{}}}
	register(t, lamp, attrs, topics, actions)

	gotAttrs, err := viewer.GetRemoteAttrs(ctx, "lamp-0001")
	require.NoError(t, err)
	assert.Equal(t, attrs, gotAttrs)

	gotTopics, err := viewer.GetRemoteTopics(ctx, "lamp-0001")
	require.NoError(t, err)
	assert.Equal(t, topics, gotTopics)

	gotActions, err := viewer.GetRemoteActions(ctx, "lamp-0001")
	require.NoError(t, err)
	assert.Equal(t, actions, gotActions)

	status, err := viewer.GetRemoteStatus(ctx, "lamp-0001")
	require.NoError(t, err)
	assert.Equal(t, model.StatusConnected, status)

	unknown, err := viewer.GetRemoteAttrs(ctx, "nobody-here")
	require.NoError(t, err)
	assert.Empty(t, unknown)
}

func TestSetAttrValue(t *testing.T) {
	ctx := context.Background()
	th := newThing(t, store.NewMemoryNetwork(), "lamp-0001", fastConfig())
	register(t, th, []model.ThingAttr{{Name: "color", Value: "red", IsDynamic: true}}, nil, nil)

	require.NoError(t, th.SetAttrValue(ctx, "color", "blue"))
	require.NoError(t, th.SetAttrValue(ctx, "brightness", "80"))

	attrs, err := th.GetRemoteAttrs(ctx, "lamp-0001")
	require.NoError(t, err)
	assert.Equal(t, []model.ThingAttr{
		{Name: "color", Value: "blue", IsDynamic: true},
		{Name: "brightness", Value: "80", IsDynamic: true},
	}, attrs)
}

func TestNotifyAppendsEvents(t *testing.T) {
	ctx := context.Background()
	th := newThing(t, store.NewMemoryNetwork(), "lamp-0001", fastConfig())
	register(t, th, nil, []model.Topic{{Name: "switched"}}, nil)

	require.NoError(t, th.Notify(ctx, "switched", "on"))
	require.NoError(t, th.Notify(ctx, "switched", "off"))

	events, err := th.GetRemoteEvents(ctx, "lamp-0001", "switched")
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, "on", events[0].Payload)
	assert.Equal(t, "off", events[1].Payload)
	assert.Less(t, events[0].Timestamp, events[1].Timestamp)
}

func TestTopicSubscription(t *testing.T) {
	ctx := context.Background()
	net := store.NewMemoryNetwork()
	lamp := newThing(t, net, "lamp-0001", fastConfig())
	register(t, lamp, nil, []model.Topic{{Name: "switched"}}, nil)
	require.NoError(t, lamp.Notify(ctx, "switched", "before"))

	in := &inbox{}
	cfg := fastConfig()
	cfg.Notifier = in
	watcher := newThing(t, net, "watcher-1", cfg)
	register(t, watcher, nil, nil, nil)
	require.NoError(t, watcher.SubscribeToTopic(ctx, "lamp-0001", "switched", filter.Equal, "on"))

	require.NoError(t, lamp.Notify(ctx, "switched", "off"))
	require.NoError(t, lamp.Notify(ctx, "switched", "on"))

	assert.Eventually(t, func() bool { return len(in.all()) == 1 }, 2*time.Second, 5*time.Millisecond)
	time.Sleep(50 * time.Millisecond)

	notes := in.all()
	require.Len(t, notes, 1, "delivered exactly once")
	assert.Equal(t, "lamp-0001", notes[0].ThingID)
	assert.Equal(t, "switched", notes[0].Name)
	assert.Equal(t, "on", notes[0].Payload)
	assert.NotZero(t, notes[0].Timestamp)
}

func TestAttrSubscription(t *testing.T) {
	ctx := context.Background()
	net := store.NewMemoryNetwork()
	sensor := newThing(t, net, "sensor-01", fastConfig())
	register(t, sensor, []model.ThingAttr{{Name: "temp", Value: "10", IsDynamic: true}}, nil, nil)

	in := &inbox{}
	cfg := fastConfig()
	cfg.Notifier = in
	watcher := newThing(t, net, "watcher-1", cfg)
	register(t, watcher, nil, nil, nil)
	require.NoError(t, watcher.SubscribeToAttr(ctx, "sensor-01", "temp", filter.GreaterThan, "20"))

	time.Sleep(30 * time.Millisecond)
	assert.Empty(t, in.all(), "below threshold")

	require.NoError(t, sensor.SetAttrValue(ctx, "temp", "25"))
	assert.Eventually(t, func() bool { return len(in.all()) == 1 }, 2*time.Second, 5*time.Millisecond)
	time.Sleep(50 * time.Millisecond)
	assert.Len(t, in.all(), 1, "unchanged value is not redelivered")
	assert.Equal(t, "25", in.all()[0].Payload)
}

func TestRegisterTwice(t *testing.T) {
	ctx := context.Background()
	net := store.NewMemoryNetwork()
	lamp := newThing(t, net, "lamp-0001", fastConfig())
	register(t, lamp, nil, []model.Topic{{Name: "switched"}}, nil)

	in := &inbox{}
	cfg := fastConfig()
	cfg.Notifier = in
	watcher := newThing(t, net, "watcher-1", cfg)
	register(t, watcher, []model.ThingAttr{{Name: "a", Value: "1"}}, nil, nil)
	require.NoError(t, watcher.SubscribeToTopic(ctx, "lamp-0001", "switched", filter.Any, ""))
	register(t, watcher, []model.ThingAttr{{Name: "b", Value: "2"}}, nil, nil)

	assert.Equal(t, 1, watcher.Subscriptions().Len(), "re-registering does not duplicate subscriptions")

	attrs, err := watcher.GetRemoteAttrs(ctx, "watcher-1")
	require.NoError(t, err)
	assert.Equal(t, []model.ThingAttr{{Name: "b", Value: "2"}}, attrs, "snapshot overwritten")

	require.NoError(t, lamp.Notify(ctx, "switched", "on"))
	assert.Eventually(t, func() bool { return len(in.all()) >= 1 }, 2*time.Second, 5*time.Millisecond)
	time.Sleep(50 * time.Millisecond)
	assert.Len(t, in.all(), 1, "a single loop delivers")
}

func TestSubscriptionsSurviveRestart(t *testing.T) {
	ctx := context.Background()
	net := store.NewMemoryNetwork()
	lamp := newThing(t, net, "lamp-0001", fastConfig())
	register(t, lamp, nil, []model.Topic{{Name: "switched"}}, nil)

	first := newThing(t, net, "watcher-1", fastConfig())
	register(t, first, nil, nil, nil)
	require.NoError(t, first.SubscribeToTopic(ctx, "lamp-0001", "switched", filter.Any, ""))
	require.NoError(t, first.Close())

	in := &inbox{}
	cfg := fastConfig()
	cfg.Notifier = in
	second := newThing(t, net, "watcher-1", cfg)
	register(t, second, nil, nil, nil)
	assert.Equal(t, 1, second.Subscriptions().Len())

	require.NoError(t, lamp.Notify(ctx, "switched", "on"))
	assert.Eventually(t, func() bool { return len(in.all()) == 1 }, 2*time.Second, 5*time.Millisecond)
}

func TestResubscribeAfterRestart(t *testing.T) {
	ctx := context.Background()
	net := store.NewMemoryNetwork()
	lamp := newThing(t, net, "lamp-0001", fastConfig())
	register(t, lamp, nil, []model.Topic{{Name: "switched"}}, nil)

	first := newThing(t, net, "watcher-1", fastConfig())
	register(t, first, nil, nil, nil)
	require.NoError(t, first.SubscribeToTopic(ctx, "lamp-0001", "switched", filter.Any, ""))
	require.NoError(t, first.Close())

	in := &inbox{}
	cfg := fastConfig()
	cfg.Notifier = in
	second := newThing(t, net, "watcher-1", cfg)
	register(t, second, nil, nil, nil)
	require.NoError(t, second.SubscribeToTopic(ctx, "lamp-0001", "switched", filter.Any, ""))
	assert.Equal(t, 1, second.Subscriptions().Len())

	require.NoError(t, lamp.Notify(ctx, "switched", "on"))
	assert.Eventually(t, func() bool { return len(in.all()) >= 1 }, 2*time.Second, 5*time.Millisecond)
	time.Sleep(50 * time.Millisecond)
	assert.Len(t, in.all(), 1, "one notification per event")

	raw, err := guarded{second}.GetSubscriptions(ctx, "watcher-1")
	require.NoError(t, err)
	saved, err := subscription.ParseRegistered(raw)
	require.NoError(t, err)
	assert.Equal(t, 1, saved.Len(), "one stored subscription")
}

func TestActionRequest(t *testing.T) {
	ctx := context.Background()
	net := store.NewMemoryNetwork()
	m := metrics.NewMetrics()

	var printer *Thing
	var handled []action.Request
	var mu sync.Mutex
	pcfg := fastConfig()
	pcfg.ActionHandler = action.HandlerFunc(func(ctx context.Context, req action.Request) {
		mu.Lock()
		handled = append(handled, req)
		mu.Unlock()
		_ = printer.UpdateActionRequestState(ctx, req.ID, "Printing")
		time.Sleep(30 * time.Millisecond)
	})
	printer = newThing(t, net, "printer-01", pcfg)
	register(t, printer, nil, nil, []model.ActionDef{{Name: "print", Params: []string{"file"}}})

	ccfg := fastConfig()
	ccfg.Metrics = m
	controller := newThing(t, net, "controller", ccfg)
	register(t, controller, nil, nil, nil)

	states := &stateLog{}
	id, err := controller.ActionRequest(ctx, "printer-01", "print", []string{"doc.pdf"}, states)
	require.NoError(t, err)

	assert.Eventually(t, func() bool {
		s := states.all()
		return len(s) > 0 && s[len(s)-1] == model.StateDone
	}, 3*time.Second, 5*time.Millisecond)
	assert.Equal(t, []string{"Printing", model.StateDone}, states.all())

	mu.Lock()
	require.Len(t, handled, 1)
	assert.Equal(t, action.Request{ID: id, From: "controller", Action: "print", Args: []string{"doc.pdf"}}, handled[0])
	mu.Unlock()

	assert.Equal(t, 1.0, testutil.ToFloat64(m.ActionRequests.WithLabelValues("sent", model.StateDone)))
	assert.Positive(t, testutil.ToFloat64(m.StoreOps.WithLabelValues("store", "set", "ok")))
}

func TestCompleteActionRequest(t *testing.T) {
	ctx := context.Background()
	net := store.NewMemoryNetwork()

	var printer *Thing
	pcfg := fastConfig()
	pcfg.ActionHandler = action.HandlerFunc(func(ctx context.Context, req action.Request) {
		_ = printer.CompleteActionRequest(ctx, req.ID, "OutOfPaper")
	})
	printer = newThing(t, net, "printer-01", pcfg)
	register(t, printer, nil, nil, nil)

	controller := newThing(t, net, "controller", fastConfig())
	register(t, controller, nil, nil, nil)

	states := &stateLog{}
	_, err := controller.ActionRequest(ctx, "printer-01", "print", nil, states)
	require.NoError(t, err)

	assert.Eventually(t, func() bool { return len(states.all()) == 1 }, 3*time.Second, 5*time.Millisecond)
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, []string{"OutOfPaper"}, states.all())
}

func TestActionRequestTimeout(t *testing.T) {
	ctx := context.Background()
	net := store.NewMemoryNetwork()

	cfg := fastConfig()
	cfg.RequestTimeout = 40 * time.Millisecond
	controller := newThing(t, net, "controller", cfg)
	register(t, controller, nil, nil, nil)

	// A registered target that never serves requests.
	target := newThing(t, net, "target-01", fastConfig())
	register(t, target, nil, nil, nil)
	require.NoError(t, target.Close())

	states := &stateLog{}
	_, err := controller.ActionRequest(ctx, "target-01", "noop", nil, states)
	require.NoError(t, err)

	time.Sleep(150 * time.Millisecond)
	assert.Empty(t, states.all(), "a timed-out request is not reported by default")
}

func TestResumeRequests(t *testing.T) {
	ctx := context.Background()
	net := store.NewMemoryNetwork()
	ledger, err := persistence.OpenLedger(filepath.Join(t.TempDir(), "ledger.json"), "controller")
	require.NoError(t, err)

	target := newThing(t, net, "target-01", fastConfig())
	register(t, target, nil, nil, nil)
	require.NoError(t, target.Close())

	cfg := fastConfig()
	cfg.Ledger = ledger
	first := newThing(t, net, "controller", cfg)
	register(t, first, nil, nil, nil)
	id, err := first.ActionRequest(ctx, "target-01", "noop", nil, nil)
	require.NoError(t, err)
	require.NoError(t, first.Close())

	second := newThing(t, net, "controller", cfg)
	register(t, second, nil, nil, nil)
	states := &stateLog{}
	n, err := second.ResumeRequests(states)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	// The target comes back and serves the request.
	served := newThing(t, net, "target-01", fastConfig())
	register(t, served, nil, nil, nil)

	assert.Eventually(t, func() bool {
		s := states.all()
		return len(s) == 1 && s[0] == model.StateDone
	}, 3*time.Second, 5*time.Millisecond)
	e, ok := ledger.Get(id)
	require.True(t, ok)
	assert.Equal(t, model.StateDone, e.State)
}

func TestClose(t *testing.T) {
	ctx := context.Background()
	th := newThing(t, store.NewMemoryNetwork(), "lamp-0001", fastConfig())
	register(t, th, nil, nil, nil)

	require.NoError(t, th.Close())
	require.NoError(t, th.Close())

	assert.ErrorIs(t, th.Notify(ctx, "x", "y"), ErrClosed)
	assert.ErrorIs(t, th.Register(ctx, nil, nil, nil), ErrClosed)
	assert.ErrorIs(t, th.SubscribeToTopic(ctx, "lamp-0002", "x", filter.Any, ""), ErrClosed)
	_, err := th.ActionRequest(ctx, "lamp-0002", "x", nil, nil)
	assert.ErrorIs(t, err, ErrClosed)
	_, err = th.Status(ctx)
	assert.ErrorIs(t, err, ErrClosed)
}

func TestFacadeSessionRecovers(t *testing.T) {
	ctx := context.Background()
	cfg := fastConfig()
	cfg.FailureThreshold = 1
	cfg.Backoff.Initial = time.Millisecond
	cfg.Backoff.Max = time.Millisecond
	cfg.Backoff.Jitter = -1
	th := newThing(t, store.NewMemoryNetwork(), "lamp-0001", cfg)
	register(t, th, nil, nil, nil)

	require.True(t, th.Disconnect())
	_, err := th.Status(ctx)
	assert.ErrorIs(t, err, store.ErrNetwork)

	time.Sleep(5 * time.Millisecond)
	status, err := th.Status(ctx)
	require.NoError(t, err)
	assert.Equal(t, model.StatusConnected, status)
}
