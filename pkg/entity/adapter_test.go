package entity

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/safething/safething-go/pkg/model"
	"github.com/safething/safething-go/pkg/store"
	"github.com/safething/safething-go/pkg/store/mocks"
)

func newAdapter(t *testing.T, net *store.MemoryNetwork, thingID string) *Adapter {
	t.Helper()
	h, err := net.Connect(context.Background(), store.Credentials{Identity: thingID})
	require.NoError(t, err)
	a := New(h, thingID, Config{})
	t.Cleanup(func() { _ = a.Close() })
	_, _, err = a.StoreEntity(context.Background())
	require.NoError(t, err)
	return a
}

func TestAddress(t *testing.T) {
	a := Address("garden-sensor")
	assert.Len(t, a, 64)
	assert.Equal(t, a, Address("garden-sensor"))
	assert.NotEqual(t, a, Address("garden-sensor2"))
}

func TestStoreEntity(t *testing.T) {
	net := store.NewMemoryNetwork()
	h, err := net.Connect(context.Background(), store.Credentials{})
	require.NoError(t, err)
	a := New(h, "thing-one", Config{})

	addr, tag, err := a.StoreEntity(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Address("thing-one"), addr)
	assert.Equal(t, TypeTag, tag)

	_, _, err = a.StoreEntity(context.Background())
	assert.NoError(t, err, "storing twice is not an error")
}

func TestDefaultsOnNotFound(t *testing.T) {
	ctx := context.Background()
	a := newAdapter(t, store.NewMemoryNetwork(), "thing-one")

	tests := []struct {
		name string
		get  func() (string, error)
		want string
	}{
		{"attrs", func() (string, error) { return a.GetAttrs(ctx, "thing-one") }, "[]"},
		{"topics", func() (string, error) { return a.GetTopics(ctx, "thing-one") }, "[]"},
		{"actions", func() (string, error) { return a.GetActions(ctx, "thing-one") }, "[]"},
		{"subscriptions", func() (string, error) { return a.GetSubscriptions(ctx, "thing-one") }, "{}"},
		{"events", func() (string, error) { return a.GetTopicEvents(ctx, "thing-one", "rain") }, "[]"},
		{"status", func() (string, error) { return a.GetStatus(ctx, "thing-one") }, ""},
		{"unknown thing", func() (string, error) { return a.GetAttrs(ctx, "nobody-here") }, "[]"},
	}
	for _, tt := range tests {
		got, err := tt.get()
		require.NoError(t, err, tt.name)
		assert.Equal(t, tt.want, got, tt.name)
	}
}

func TestSetAndGetFields(t *testing.T) {
	ctx := context.Background()
	net := store.NewMemoryNetwork()
	local := newAdapter(t, net, "thing-one")
	remote := newAdapter(t, net, "thing-two")

	require.NoError(t, local.SetAttrs(ctx, `[{"name":"a","value":"1","is_dynamic":true}]`))
	require.NoError(t, local.SetTopics(ctx, `[{"name":"rain","access":"All"}]`))
	require.NoError(t, local.SetActions(ctx, `[]`))
	require.NoError(t, local.SetStatus(ctx, model.StatusPublished))
	require.NoError(t, local.SetTopicEvents(ctx, "rain", `[[1,"drizzle"]]`))
	require.NoError(t, local.SetSubscriptions(ctx, `{"thing-two":[]}`))

	attrs, err := remote.GetAttrs(ctx, "thing-one")
	require.NoError(t, err)
	assert.Equal(t, `[{"name":"a","value":"1","is_dynamic":true}]`, attrs)

	status, err := remote.GetStatus(ctx, "thing-one")
	require.NoError(t, err)
	assert.Equal(t, "Published", status)

	events, err := remote.GetTopicEvents(ctx, "thing-one", "rain")
	require.NoError(t, err)
	assert.Equal(t, `[[1,"drizzle"]]`, events)

	subs, err := local.GetSubscriptions(ctx, "thing-one")
	require.NoError(t, err)
	assert.Equal(t, `{"thing-two":[]}`, subs)
}

func TestActionRequestLifecycle(t *testing.T) {
	ctx := context.Background()
	net := store.NewMemoryNetwork()
	sender := newAdapter(t, net, "controller")
	receiver := newAdapter(t, net, "printer-01")

	req := model.ActionReq{ThingID: "controller", Action: "print", Args: []string{"doc.pdf"}, State: model.StateRequested}
	raw, err := model.Encode(req)
	require.NoError(t, err)

	id, err := sender.SendActionRequest(ctx, "printer-01", raw)
	require.NoError(t, err)
	assert.NotZero(t, id)

	state, err := sender.GetActionRequestState(ctx, "printer-01", id)
	require.NoError(t, err)
	assert.Equal(t, model.StateRequested, state)

	pending, err := receiver.ListPendingActionRequests(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, id, pending[0].ID)
	assert.Equal(t, req, pending[0].Request)
	assert.NoError(t, pending[0].Err)

	require.NoError(t, receiver.SetActionRequestState(ctx, id, "InProgress"))
	pending, err = receiver.ListPendingActionRequests(ctx)
	require.NoError(t, err)
	assert.Empty(t, pending, "only Requested entries are pending")

	require.NoError(t, receiver.SetActionRequestState(ctx, id, model.StateDone))
	state, err = sender.GetActionRequestState(ctx, "printer-01", id)
	require.NoError(t, err)
	assert.Equal(t, model.StateDone, state)
}

func TestSendActionRequestIDsUnique(t *testing.T) {
	ctx := context.Background()
	net := store.NewMemoryNetwork()
	sender := newAdapter(t, net, "controller")
	newAdapter(t, net, "printer-01")

	seen := make(map[model.RequestID]bool)
	for i := 0; i < 50; i++ {
		id, err := sender.SendActionRequest(ctx, "printer-01", `{"state":"Requested"}`)
		require.NoError(t, err)
		require.False(t, seen[id], "duplicate id %d", id)
		seen[id] = true
	}
}

func TestSendActionRequestToUnknownThing(t *testing.T) {
	a := newAdapter(t, store.NewMemoryNetwork(), "controller")
	_, err := a.SendActionRequest(context.Background(), "nobody-here", `{}`)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestActionRequestStateNotFound(t *testing.T) {
	ctx := context.Background()
	a := newAdapter(t, store.NewMemoryNetwork(), "printer-01")

	_, err := a.GetActionRequestState(ctx, "printer-01", 12345)
	assert.ErrorIs(t, err, store.ErrNotFound)

	err = a.SetActionRequestState(ctx, 12345, model.StateDone)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestListPendingSkipsEmptyAndReportsMalformed(t *testing.T) {
	ctx := context.Background()
	net := store.NewMemoryNetwork()
	a := newAdapter(t, net, "printer-01")

	h, err := net.Connect(ctx, store.Credentials{})
	require.NoError(t, err)
	addr := Address("printer-01")
	require.NoError(t, h.SetField(ctx, addr, ActionReqKey(1), ""))
	require.NoError(t, h.SetField(ctx, addr, ActionReqKey(2), "{not json"))
	require.NoError(t, h.SetField(ctx, addr, ActionReqKey(3), `{"thing_id":"c","action":"x","args":[],"state":"Requested"}`))
	require.NoError(t, h.SetField(ctx, addr, ActionReqKey(4), `{"thing_id":"c","action":"x","args":[],"state":"Done"}`))
	require.NoError(t, h.SetField(ctx, addr, KeyStatus, "Connected"))

	pending, err := a.ListPendingActionRequests(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 2)

	assert.Equal(t, model.RequestID(2), pending[0].ID)
	assert.Error(t, pending[0].Err)
	assert.Equal(t, model.RequestID(3), pending[1].ID)
	assert.NoError(t, pending[1].Err)
}

func TestNetworkErrorsPropagate(t *testing.T) {
	ctx := context.Background()
	h := mocks.NewMockHandle(t)
	netErr := fmt.Errorf("%w: timeout", store.ErrNetwork)

	h.EXPECT().GetField(mock.Anything, Address("thing-one"), KeyAttributes).Return("", netErr).Once()
	h.EXPECT().SetField(mock.Anything, Address("thing-one"), KeyStatus, "Connected").Return(netErr).Once()
	h.EXPECT().ListFields(mock.Anything, Address("thing-one")).Return(nil, netErr).Once()
	h.EXPECT().PutRecord(mock.Anything, Address("thing-one"), TypeTag).Return(netErr).Once()

	a := New(h, "thing-one", Config{})

	_, err := a.GetAttrs(ctx, "thing-one")
	assert.ErrorIs(t, err, store.ErrNetwork)
	assert.False(t, errors.Is(err, store.ErrNotFound))

	assert.ErrorIs(t, a.SetStatus(ctx, model.StatusConnected), store.ErrNetwork)

	_, err = a.ListPendingActionRequests(ctx)
	assert.ErrorIs(t, err, store.ErrNetwork)

	_, _, err = a.StoreEntity(ctx)
	assert.ErrorIs(t, err, store.ErrNetwork)
}

func TestDisconnect(t *testing.T) {
	ctx := context.Background()
	a := newAdapter(t, store.NewMemoryNetwork(), "thing-one")

	assert.True(t, a.Disconnect())
	_, err := a.GetAttrs(ctx, "thing-one")
	assert.ErrorIs(t, err, store.ErrNetwork)

	h := mocks.NewMockHandle(t)
	assert.False(t, New(h, "thing-two", Config{}).Disconnect())
}

func TestParseActionReqKey(t *testing.T) {
	id, ok := ParseActionReqKey("_safe_thing_action_req_42")
	assert.True(t, ok)
	assert.Equal(t, model.RequestID(42), id)

	_, ok = ParseActionReqKey("_safe_thing_status")
	assert.False(t, ok)
	_, ok = ParseActionReqKey("_safe_thing_action_req_x")
	assert.False(t, ok)
}
