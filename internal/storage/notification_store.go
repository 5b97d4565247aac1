package storage

import (
	"context"
	"encoding/json"
	"time"
)

// NotificationRecord is the persisted copy of a received push notification,
// kept for offline viewing and for resolving click routing later.
type NotificationRecord struct {
	CorrelationID string          `json:"correlation_id"`
	Title         string          `json:"title"`
	Body          string          `json:"body"`
	Icon          string          `json:"icon"`
	Badge         string          `json:"badge"`
	Category      string          `json:"category"`
	Payload       json.RawMessage `json:"payload"`
	ReceivedAt    time.Time       `json:"received_at"`
}

// NotificationStore persists received push notifications keyed by
// correlation id.
type NotificationStore interface {
	// Save writes (or overwrites) the record for its correlation id.
	Save(ctx context.Context, rec NotificationRecord) error
	// Get returns the record with the given correlation id, or nil if absent.
	Get(ctx context.Context, correlationID string) (*NotificationRecord, error)
	// List returns the most recently received records, up to limit.
	List(ctx context.Context, limit int) ([]NotificationRecord, error)
}
