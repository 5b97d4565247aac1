package storage_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/truckfixgo/offline-agent/internal/storage"
)

func TestSQLiteCacheStore(t *testing.T) {
	db, fresh, err := storage.NewSQLiteDB(":memory:")
	require.NoError(t, err)
	require.True(t, fresh)
	defer db.Close()

	store := storage.NewSQLiteCacheStore(db)
	ctx := context.Background()

	key := storage.RequestKey{Method: "GET", URL: "https://app.truckfixgo.com/api/jobs/J1"}
	resp := storage.StoredResponse{
		Status:   200,
		Headers:  map[string][]string{"Content-Type": {"application/json"}},
		Body:     []byte(`{"id":"J1","status":"en_route"}`),
		StoredAt: time.Now().UTC().Truncate(time.Second),
	}

	t.Run("put and get round-trip", func(t *testing.T) {
		require.NoError(t, store.Put(ctx, "dynamic-v1.0.0", key, resp))

		got, err := store.Get(ctx, "dynamic-v1.0.0", key)
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, resp.Status, got.Status)
		assert.Equal(t, resp.Headers, got.Headers)
		assert.Equal(t, resp.Body, got.Body)
	})

	t.Run("miss returns nil", func(t *testing.T) {
		got, err := store.Get(ctx, "dynamic-v1.0.0", storage.RequestKey{Method: "GET", URL: "https://app.truckfixgo.com/nope"})
		require.NoError(t, err)
		assert.Nil(t, got)
	})

	t.Run("same key overwrites", func(t *testing.T) {
		fresh := resp
		fresh.Body = []byte(`{"id":"J1","status":"arrived"}`)
		require.NoError(t, store.Put(ctx, "dynamic-v1.0.0", key, fresh))

		got, err := store.Get(ctx, "dynamic-v1.0.0", key)
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, fresh.Body, got.Body)

		n, err := store.CountArea(ctx, "dynamic-v1.0.0")
		require.NoError(t, err)
		assert.Equal(t, 1, n)
	})

	t.Run("method is part of the key", func(t *testing.T) {
		headKey := storage.RequestKey{Method: "HEAD", URL: key.URL}
		require.NoError(t, store.Put(ctx, "dynamic-v1.0.0", headKey, resp))

		n, err := store.CountArea(ctx, "dynamic-v1.0.0")
		require.NoError(t, err)
		assert.Equal(t, 2, n)
	})

	t.Run("areas are isolated", func(t *testing.T) {
		require.NoError(t, store.Put(ctx, "static-v1.0.0", key, resp))

		got, err := store.Get(ctx, "static-v1.0.0", key)
		require.NoError(t, err)
		require.NotNil(t, got)

		areas, err := store.ListAreas(ctx)
		require.NoError(t, err)
		assert.ElementsMatch(t, []string{"static-v1.0.0", "dynamic-v1.0.0"}, areas)
	})

	t.Run("delete removes a single entry", func(t *testing.T) {
		headKey := storage.RequestKey{Method: "HEAD", URL: key.URL}
		require.NoError(t, store.Delete(ctx, "dynamic-v1.0.0", headKey))

		got, err := store.Get(ctx, "dynamic-v1.0.0", headKey)
		require.NoError(t, err)
		assert.Nil(t, got)

		// The GET entry under the same URL is untouched.
		got, err = store.Get(ctx, "dynamic-v1.0.0", key)
		require.NoError(t, err)
		assert.NotNil(t, got)

		// Deleting it again is a no-op.
		require.NoError(t, store.Delete(ctx, "dynamic-v1.0.0", headKey))
	})

	t.Run("delete area drops only that area", func(t *testing.T) {
		require.NoError(t, store.DeleteArea(ctx, "static-v1.0.0"))

		got, err := store.Get(ctx, "static-v1.0.0", key)
		require.NoError(t, err)
		assert.Nil(t, got)

		got, err = store.Get(ctx, "dynamic-v1.0.0", key)
		require.NoError(t, err)
		assert.NotNil(t, got)
	})
}
