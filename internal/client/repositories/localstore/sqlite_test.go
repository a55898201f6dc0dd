package localstore

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	_ "modernc.org/sqlite"
)

func setupDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })

	_, err = db.Exec(`
CREATE TABLE local_storage (
  key        TEXT PRIMARY KEY,
  value      BLOB NOT NULL,
  updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);`)
	require.NoError(t, err)
	return db
}

func TestSetAndGet_InsertThenGet(t *testing.T) {
	r := NewSQLiteRepository(setupDB(t))
	ctx := context.Background()

	require.NoError(t, r.Set(ctx, "userHuntId", []byte("17")))

	v, err := r.Get(ctx, "userHuntId")
	require.NoError(t, err)
	require.Equal(t, []byte("17"), v)
}

func TestGet_NotExists_ReturnsNilNil(t *testing.T) {
	r := NewSQLiteRepository(setupDB(t))

	v, err := r.Get(context.Background(), "absent")
	require.NoError(t, err)
	require.Nil(t, v)
}

func TestSet_UpsertOverwritesValue(t *testing.T) {
	r := NewSQLiteRepository(setupDB(t))
	ctx := context.Background()

	require.NoError(t, r.Set(ctx, "lastHuntId", []byte("1")))
	require.NoError(t, r.Set(ctx, "lastHuntId", []byte("2")))

	v, err := r.Get(ctx, "lastHuntId")
	require.NoError(t, err)
	require.Equal(t, []byte("2"), v)
}

func TestSet_NilValueStoredAsEmpty(t *testing.T) {
	r := NewSQLiteRepository(setupDB(t))
	ctx := context.Background()

	require.NoError(t, r.Set(ctx, "flag", nil))
	v, err := r.Get(ctx, "flag")
	require.NoError(t, err)
	require.NotNil(t, v)
	require.Empty(t, v)
}

func TestList_FiltersByPrefix(t *testing.T) {
	r := NewSQLiteRepository(setupDB(t))
	ctx := context.Background()

	require.NoError(t, r.Set(ctx, "joined:hunt:42", []byte("a")))
	require.NoError(t, r.Set(ctx, "joined:hunt:tutorial", []byte("b")))
	require.NoError(t, r.Set(ctx, "lastHuntId", []byte("42")))

	m, err := r.List(ctx, "joined:hunt:")
	require.NoError(t, err)
	assert.Len(t, m, 2)
	assert.Equal(t, []byte("b"), m["joined:hunt:tutorial"])

	all, err := r.List(ctx, "")
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestDelete_RemovesKey_AndIsIdempotent(t *testing.T) {
	r := NewSQLiteRepository(setupDB(t))
	ctx := context.Background()

	require.NoError(t, r.Set(ctx, "x", []byte{0x01}))
	require.NoError(t, r.Delete(ctx, "x"))

	v, err := r.Get(ctx, "x")
	require.NoError(t, err)
	require.Nil(t, v)

	require.NoError(t, r.Delete(ctx, "x"))
}

func TestClear_RemovesAllKeys(t *testing.T) {
	r := NewSQLiteRepository(setupDB(t))
	ctx := context.Background()

	require.NoError(t, r.Set(ctx, "a", []byte{1}))
	require.NoError(t, r.Set(ctx, "b", []byte{2}))
	require.NoError(t, r.Clear(ctx))

	m, err := r.List(ctx, "")
	require.NoError(t, err)
	assert.Empty(t, m)
}

func TestErrorsAreWrapped(t *testing.T) {
	db := setupDB(t)
	r := NewSQLiteRepository(db)
	ctx := context.Background()

	require.NoError(t, db.Close())

	_, err := r.Get(ctx, "k")
	require.ErrorContains(t, err, "failed to get local_storage[k]")

	require.ErrorContains(t, r.Set(ctx, "k", []byte("v")), "failed to set local_storage[k]")
	require.ErrorContains(t, r.Delete(ctx, "k"), "failed to delete local_storage[k]")
	require.ErrorContains(t, r.Clear(ctx), "failed to clear local_storage")

	_, err = r.List(ctx, "")
	require.ErrorContains(t, err, "failed to list local_storage")
}
