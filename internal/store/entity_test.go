package store_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/recoread/recoread-client/internal/store"
)

type testEntry struct {
	Title string `json:"title"`
	Page  int    `json:"page"`
}

func setupTestStore(t *testing.T) *store.Store {
	t.Helper()

	s, err := store.Open(filepath.Join(t.TempDir(), "test.db"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestEntity_PutGet(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()
	entity := store.NewEntity[testEntry](s, "test:")

	require.NoError(t, entity.Put(ctx, "b1", &testEntry{Title: "Dune", Page: 12}))

	got, err := entity.Get(ctx, "b1")
	require.NoError(t, err)
	assert.Equal(t, &testEntry{Title: "Dune", Page: 12}, got)

	require.NoError(t, entity.Put(ctx, "b1", &testEntry{Title: "Dune", Page: 40}))
	got, err = entity.Get(ctx, "b1")
	require.NoError(t, err)
	assert.Equal(t, 40, got.Page)
}

func TestEntity_GetMissing(t *testing.T) {
	s := setupTestStore(t)
	entity := store.NewEntity[testEntry](s, "test:")

	_, err := entity.Get(context.Background(), "nope")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestEntity_DeleteIdempotent(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()
	entity := store.NewEntity[testEntry](s, "test:")

	require.NoError(t, entity.Put(ctx, "b1", &testEntry{Title: "Dune"}))
	require.NoError(t, entity.Delete(ctx, "b1"))
	require.NoError(t, entity.Delete(ctx, "b1"))

	_, err := entity.Get(ctx, "b1")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestEntity_ListSkipsForeignAndCorrupt(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()
	entity := store.NewEntity[testEntry](s, "test:")

	require.NoError(t, entity.Put(ctx, "a", &testEntry{Title: "A"}))
	require.NoError(t, entity.Put(ctx, "b", &testEntry{Title: "B"}))
	require.NoError(t, s.SetRaw("test:broken", []byte("{not json")))
	require.NoError(t, s.SetRaw("other:c", []byte(`{"title":"C"}`)))

	got := map[string]string{}
	for id, e := range entity.List(ctx) {
		got[id] = e.Title
	}
	assert.Equal(t, map[string]string{"a": "A", "b": "B"}, got)
}

func TestEntity_ListStopsEarly(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()
	entity := store.NewEntity[testEntry](s, "test:")

	for _, id := range []string{"a", "b", "c"} {
		require.NoError(t, entity.Put(ctx, id, &testEntry{Title: id}))
	}

	n := 0
	for range entity.List(ctx) {
		n++
		break
	}
	assert.Equal(t, 1, n)
}

func TestEntity_CancelledContext(t *testing.T) {
	s := setupTestStore(t)
	entity := store.NewEntity[testEntry](s, "test:")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.ErrorIs(t, entity.Put(ctx, "a", &testEntry{}), context.Canceled)
	_, err := entity.Get(ctx, "a")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestEntity_KeyAndID(t *testing.T) {
	entity := store.NewEntity[testEntry](nil, "recoread:reading-state:")

	assert.Equal(t, "recoread:reading-state:b1", entity.Key("b1"))

	id, ok := entity.ID("recoread:reading-state:b1")
	assert.True(t, ok)
	assert.Equal(t, "b1", id)

	_, ok = entity.ID("recoread:reading:b1")
	assert.False(t, ok)
	_, ok = entity.ID("recoread:reading-state:")
	assert.False(t, ok)
}
