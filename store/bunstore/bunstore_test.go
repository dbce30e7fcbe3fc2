package bunstore_test

import (
	"context"
	"testing"

	featmy "github.com/AFJoao/FEATMY-V2"
	"github.com/AFJoao/FEATMY-V2/store/bunstore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *bunstore.Store {
	t.Helper()

	store, err := bunstore.Open(":memory:")
	require.NoError(t, err)
	require.NoError(t, store.Init(context.Background()))

	t.Cleanup(func() {
		_ = store.DB().Close()
	})

	return store
}

func TestGetReturnsNotFound(t *testing.T) {
	store := newTestStore(t)

	_, err := store.Get(context.Background(), "users", "missing")
	assert.True(t, featmy.IsNotFound(err))
}

func TestSetGetRoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "users", "u1", featmy.Document{
		"name":     "Coach",
		"students": []string{"s1"},
	}))

	doc, err := store.Get(ctx, "users", "u1")
	require.NoError(t, err)
	assert.Equal(t, "Coach", doc["name"])
	assert.Equal(t, []any{"s1"}, doc["students"])
}

func TestSetReplacesExistingDocument(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "users", "u1", featmy.Document{"name": "Coach", "extra": true}))
	require.NoError(t, store.Set(ctx, "users", "u1", featmy.Document{"name": "Coach 2"}))

	doc, err := store.Get(ctx, "users", "u1")
	require.NoError(t, err)
	assert.Equal(t, "Coach 2", doc["name"])
	assert.NotContains(t, doc, "extra", "Set replaces the whole document")
}

func TestKeysAreScopedByCollection(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "users", "k1", featmy.Document{"kind": "user"}))
	require.NoError(t, store.Set(ctx, "exercises", "k1", featmy.Document{"kind": "exercise"}))

	doc, err := store.Get(ctx, "users", "k1")
	require.NoError(t, err)
	assert.Equal(t, "user", doc["kind"])

	doc, err = store.Get(ctx, "exercises", "k1")
	require.NoError(t, err)
	assert.Equal(t, "exercise", doc["kind"])
}

func TestUpdateMergesFields(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "users", "u1", featmy.Document{"name": "Coach", "status": "pending"}))
	require.NoError(t, store.Update(ctx, "users", "u1", featmy.Document{"status": "active"}))

	doc, err := store.Get(ctx, "users", "u1")
	require.NoError(t, err)
	assert.Equal(t, "Coach", doc["name"])
	assert.Equal(t, "active", doc["status"])

	err = store.Update(ctx, "users", "missing", featmy.Document{"status": "active"})
	assert.True(t, featmy.IsNotFound(err))
}

func TestQueryFiltersByEquality(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "users", "u1", featmy.Document{"role": "student", "personal_id": "p1"}))
	require.NoError(t, store.Set(ctx, "users", "u2", featmy.Document{"role": "student", "personal_id": "p2"}))
	require.NoError(t, store.Set(ctx, "exercises", "e1", featmy.Document{"role": "student"}))

	docs, err := store.Query(ctx, "users", featmy.Document{"role": "student"})
	require.NoError(t, err)
	assert.Len(t, docs, 2, "queries never cross collections")

	docs, err = store.Query(ctx, "users", featmy.Document{"personal_id": "p1"})
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "p1", docs[0]["personal_id"])
}

func TestArrayOperations(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "users", "p1", featmy.Document{"students": []string{"s1"}}))

	require.NoError(t, store.AppendToArray(ctx, "users", "p1", "students", "s2"))
	require.NoError(t, store.AppendToArray(ctx, "users", "p1", "students", "s2"))

	doc, err := store.Get(ctx, "users", "p1")
	require.NoError(t, err)
	assert.Equal(t, []any{"s1", "s2"}, doc["students"])

	require.NoError(t, store.RemoveFromArray(ctx, "users", "p1", "students", "s1"))

	doc, err = store.Get(ctx, "users", "p1")
	require.NoError(t, err)
	assert.Equal(t, []any{"s2"}, doc["students"])
}

func TestDelete(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "users", "u1", featmy.Document{"name": "Coach"}))
	require.NoError(t, store.Delete(ctx, "users", "u1"))
	require.NoError(t, store.Delete(ctx, "users", "u1"))

	_, err := store.Get(ctx, "users", "u1")
	assert.True(t, featmy.IsNotFound(err))
}
