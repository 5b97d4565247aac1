package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
)

// SQLiteNotificationStore implements NotificationStore backed by SQLite.
type SQLiteNotificationStore struct {
	db *sql.DB
}

// NewSQLiteNotificationStore returns a new SQLiteNotificationStore.
func NewSQLiteNotificationStore(db *sql.DB) *SQLiteNotificationStore {
	return &SQLiteNotificationStore{db: db}
}

// Save upserts a notification record keyed by its correlation id.
func (s *SQLiteNotificationStore) Save(ctx context.Context, rec NotificationRecord) error {
	payload := rec.Payload
	if payload == nil {
		payload = json.RawMessage(`{}`)
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO notifications (correlation_id, title, body, icon, badge, category, payload, received_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(correlation_id) DO UPDATE SET
			title = excluded.title,
			body = excluded.body,
			icon = excluded.icon,
			badge = excluded.badge,
			category = excluded.category,
			payload = excluded.payload,
			received_at = excluded.received_at`,
		rec.CorrelationID, rec.Title, rec.Body, rec.Icon, rec.Badge,
		rec.Category, string(payload), rec.ReceivedAt,
	)
	if err != nil {
		return fmt.Errorf("inserting notification %q: %w", rec.CorrelationID, err)
	}
	return nil
}

// Get returns the record with the given correlation id, or nil when absent.
func (s *SQLiteNotificationStore) Get(ctx context.Context, correlationID string) (*NotificationRecord, error) {
	var rec NotificationRecord
	var payload string
	err := s.db.QueryRowContext(ctx, `
		SELECT correlation_id, title, body, icon, badge, category, payload, received_at
		FROM notifications
		WHERE correlation_id = ?`, correlationID,
	).Scan(&rec.CorrelationID, &rec.Title, &rec.Body, &rec.Icon, &rec.Badge,
		&rec.Category, &payload, &rec.ReceivedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("querying notification %q: %w", correlationID, err)
	}
	rec.Payload = json.RawMessage(payload)
	return &rec, nil
}

// List returns the most recent records ordered by received_at descending.
func (s *SQLiteNotificationStore) List(ctx context.Context, limit int) (records []NotificationRecord, err error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT correlation_id, title, body, icon, badge, category, payload, received_at
		FROM notifications
		ORDER BY received_at DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("querying notifications: %w", err)
	}
	defer func() {
		if cerr := rows.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("closing notification rows: %w", cerr)
		}
	}()

	for rows.Next() {
		var rec NotificationRecord
		var payload string
		if err := rows.Scan(&rec.CorrelationID, &rec.Title, &rec.Body, &rec.Icon,
			&rec.Badge, &rec.Category, &payload, &rec.ReceivedAt); err != nil {
			return nil, fmt.Errorf("scanning notification row: %w", err)
		}
		rec.Payload = json.RawMessage(payload)
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating notification rows: %w", err)
	}
	return records, nil
}
