package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/safething/safething-go/pkg/store"
)

func openHandle(t *testing.T, path string) store.Handle {
	t.Helper()
	h, err := New(path).Connect(context.Background(), store.Credentials{Identity: "sqlite-test"})
	require.NoError(t, err)
	t.Cleanup(func() { _ = h.Close() })
	return h
}

func TestRecordAndFields(t *testing.T) {
	ctx := context.Background()
	h := openHandle(t, filepath.Join(t.TempDir(), "things.db"))

	require.NoError(t, h.PutRecord(ctx, "addr", 27417))
	require.NoError(t, h.PutRecord(ctx, "addr", 27417))

	require.NoError(t, h.SetField(ctx, "addr", "b", "1"))
	require.NoError(t, h.SetField(ctx, "addr", "a", "2"))
	require.NoError(t, h.SetField(ctx, "addr", "b", "3"))

	got, err := h.GetField(ctx, "addr", "b")
	require.NoError(t, err)
	assert.Equal(t, "3", got)

	v, err := h.(*handle).Version(ctx, "addr", "b")
	require.NoError(t, err)
	assert.Equal(t, uint64(1), v)

	fields, err := h.ListFields(ctx, "addr")
	require.NoError(t, err)
	assert.Equal(t, []store.Field{{Key: "a", Value: "2"}, {Key: "b", Value: "3"}}, fields)
}

func TestNotFound(t *testing.T) {
	ctx := context.Background()
	h := openHandle(t, filepath.Join(t.TempDir(), "things.db"))

	_, err := h.GetField(ctx, "addr", "missing")
	assert.ErrorIs(t, err, store.ErrNotFound)

	err = h.SetField(ctx, "addr", "k", "v")
	assert.ErrorIs(t, err, store.ErrNotFound)

	_, err = h.ListFields(ctx, "addr")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestHandlesShareDatabase(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "things.db")
	a := openHandle(t, path)
	b := openHandle(t, path)

	require.NoError(t, a.PutRecord(ctx, "addr", 1))
	require.NoError(t, a.SetField(ctx, "addr", "k", "from-a"))

	got, err := b.GetField(ctx, "addr", "k")
	require.NoError(t, err)
	assert.Equal(t, "from-a", got)
}

func TestConnectBadPath(t *testing.T) {
	_, err := New(filepath.Join(t.TempDir(), "missing", "dir", "things.db")).
		Connect(context.Background(), store.Credentials{})
	assert.ErrorIs(t, err, store.ErrConnection)
}
