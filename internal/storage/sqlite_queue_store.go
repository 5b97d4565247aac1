package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
)

// SQLiteQueueStore implements QueueStore backed by SQLite.
type SQLiteQueueStore struct {
	db *sql.DB
}

// NewSQLiteQueueStore returns a new SQLiteQueueStore.
func NewSQLiteQueueStore(db *sql.DB) *SQLiteQueueStore {
	return &SQLiteQueueStore{db: db}
}

// Enqueue inserts a queued request and returns its assigned id.
func (s *SQLiteQueueStore) Enqueue(ctx context.Context, req QueuedRequest) (int64, error) {
	headers, err := json.Marshal(req.Headers)
	if err != nil {
		return 0, fmt.Errorf("encoding queued headers: %w", err)
	}
	body := req.Body
	if body == nil {
		body = []byte{}
	}
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO queued_requests (queue, url, method, headers, body, enqueued_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		req.Queue, req.URL, req.Method, string(headers), body, req.EnqueuedAt,
	)
	if err != nil {
		return 0, fmt.Errorf("inserting queued request: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("reading queued request id: %w", err)
	}
	return id, nil
}

// List returns every entry in the named queue in insertion order.
func (s *SQLiteQueueStore) List(ctx context.Context, queue string) (entries []QueuedRequest, err error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, queue, url, method, headers, body, enqueued_at
		FROM queued_requests
		WHERE queue = ?
		ORDER BY id`, queue)
	if err != nil {
		return nil, fmt.Errorf("querying queue %q: %w", queue, err)
	}
	defer func() {
		if cerr := rows.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("closing queue rows: %w", cerr)
		}
	}()

	for rows.Next() {
		var q QueuedRequest
		var headers string
		if err := rows.Scan(&q.ID, &q.Queue, &q.URL, &q.Method, &headers, &q.Body, &q.EnqueuedAt); err != nil {
			return nil, fmt.Errorf("scanning queued request row: %w", err)
		}
		if err := json.Unmarshal([]byte(headers), &q.Headers); err != nil {
			return nil, fmt.Errorf("decoding queued headers: %w", err)
		}
		entries = append(entries, q)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating queue rows: %w", err)
	}
	return entries, nil
}

// Remove deletes the entry with the given id. Deleting an id that no longer
// exists succeeds silently so that a replay racing a concurrent removal stays
// a no-op.
func (s *SQLiteQueueStore) Remove(ctx context.Context, id int64) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM queued_requests WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("removing queued request %d: %w", id, err)
	}
	return nil
}

// Count returns the number of entries waiting in the named queue.
func (s *SQLiteQueueStore) Count(ctx context.Context, queue string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM queued_requests WHERE queue = ?`, queue).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("counting queue %q: %w", queue, err)
	}
	return n, nil
}
