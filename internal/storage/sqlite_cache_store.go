package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
)

// SQLiteCacheStore implements CacheStore backed by SQLite.
type SQLiteCacheStore struct {
	db *sql.DB
}

// NewSQLiteCacheStore returns a new SQLiteCacheStore.
func NewSQLiteCacheStore(db *sql.DB) *SQLiteCacheStore {
	return &SQLiteCacheStore{db: db}
}

// Put upserts the entry for key in the given area. Writing the same key
// twice overwrites: one entry per key per area.
func (s *SQLiteCacheStore) Put(ctx context.Context, area string, key RequestKey, resp StoredResponse) error {
	headers, err := json.Marshal(resp.Headers)
	if err != nil {
		return fmt.Errorf("encoding cached headers: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO cache_entries (area, method, url, status, headers, body, stored_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(area, method, url) DO UPDATE SET
			status = excluded.status,
			headers = excluded.headers,
			body = excluded.body,
			stored_at = excluded.stored_at`,
		area, key.Method, key.URL, resp.Status, string(headers), resp.Body, resp.StoredAt,
	)
	if err != nil {
		return fmt.Errorf("inserting cache entry: %w", err)
	}
	return nil
}

// Get returns the entry for key in area, or nil when no entry exists.
func (s *SQLiteCacheStore) Get(ctx context.Context, area string, key RequestKey) (*StoredResponse, error) {
	var resp StoredResponse
	var headers string
	err := s.db.QueryRowContext(ctx, `
		SELECT status, headers, body, stored_at
		FROM cache_entries
		WHERE area = ? AND method = ? AND url = ?`,
		area, key.Method, key.URL,
	).Scan(&resp.Status, &headers, &resp.Body, &resp.StoredAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("querying cache entry: %w", err)
	}
	if err := json.Unmarshal([]byte(headers), &resp.Headers); err != nil {
		return nil, fmt.Errorf("decoding cached headers: %w", err)
	}
	return &resp, nil
}

// Delete removes the entry for key in area, if any.
func (s *SQLiteCacheStore) Delete(ctx context.Context, area string, key RequestKey) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM cache_entries WHERE area = ? AND method = ? AND url = ?`,
		area, key.Method, key.URL)
	if err != nil {
		return fmt.Errorf("deleting cache entry: %w", err)
	}
	return nil
}

// DeleteArea removes every entry belonging to area.
func (s *SQLiteCacheStore) DeleteArea(ctx context.Context, area string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM cache_entries WHERE area = ?`, area)
	if err != nil {
		return fmt.Errorf("deleting cache area %q: %w", area, err)
	}
	return nil
}

// ListAreas returns the distinct area names that hold at least one entry.
func (s *SQLiteCacheStore) ListAreas(ctx context.Context) (areas []string, err error) {
	rows, err := s.db.QueryContext(ctx, `SELECT DISTINCT area FROM cache_entries ORDER BY area`)
	if err != nil {
		return nil, fmt.Errorf("querying cache areas: %w", err)
	}
	defer func() {
		if cerr := rows.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("closing cache area rows: %w", cerr)
		}
	}()

	for rows.Next() {
		var a string
		if err := rows.Scan(&a); err != nil {
			return nil, fmt.Errorf("scanning cache area row: %w", err)
		}
		areas = append(areas, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating cache area rows: %w", err)
	}
	return areas, nil
}

// CountArea returns the number of entries stored in area.
func (s *SQLiteCacheStore) CountArea(ctx context.Context, area string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM cache_entries WHERE area = ?`, area).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("counting cache area %q: %w", area, err)
	}
	return n, nil
}
