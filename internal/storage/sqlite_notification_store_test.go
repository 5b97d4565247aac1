package storage_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/truckfixgo/offline-agent/internal/storage"
)

func TestSQLiteNotificationStore(t *testing.T) {
	db, _, err := storage.NewSQLiteDB(":memory:")
	require.NoError(t, err)
	defer db.Close()

	store := storage.NewSQLiteNotificationStore(db)
	ctx := context.Background()

	rec := storage.NotificationRecord{
		CorrelationID: "corr-1",
		Title:         "Job Update",
		Body:          "Contractor en route",
		Icon:          "/icons/icon-192.png",
		Category:      "job_update",
		Payload:       json.RawMessage(`{"jobId":"J1","type":"job_updates"}`),
		ReceivedAt:    time.Now().UTC().Truncate(time.Second),
	}

	t.Run("save and get", func(t *testing.T) {
		require.NoError(t, store.Save(ctx, rec))

		got, err := store.Get(ctx, "corr-1")
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, rec.Title, got.Title)
		assert.Equal(t, rec.Body, got.Body)
		assert.Equal(t, rec.Category, got.Category)
		assert.JSONEq(t, string(rec.Payload), string(got.Payload))
	})

	t.Run("get of absent id returns nil", func(t *testing.T) {
		got, err := store.Get(ctx, "missing")
		require.NoError(t, err)
		assert.Nil(t, got)
	})

	t.Run("save same correlation id overwrites", func(t *testing.T) {
		updated := rec
		updated.Body = "Contractor arrived"
		require.NoError(t, store.Save(ctx, updated))

		got, err := store.Get(ctx, "corr-1")
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, "Contractor arrived", got.Body)

		list, err := store.List(ctx, 10)
		require.NoError(t, err)
		assert.Len(t, list, 1)
	})

	t.Run("list is newest first", func(t *testing.T) {
		later := storage.NotificationRecord{
			CorrelationID: "corr-2",
			Title:         "TruckFixGo Update",
			ReceivedAt:    rec.ReceivedAt.Add(time.Minute),
		}
		require.NoError(t, store.Save(ctx, later))

		list, err := store.List(ctx, 10)
		require.NoError(t, err)
		require.Len(t, list, 2)
		assert.Equal(t, "corr-2", list[0].CorrelationID)
	})
}
