// Package storage provides the durable state of the agent: versioned cache
// areas holding response snapshots, retry queues of unconfirmed writes, and
// received push notifications. All implementations are backed by SQLite.
package storage

import (
	"context"
	"time"
)

// RequestKey is the normalized identity of a cached request. Two requests
// with the same method and URL always map to the same cache entry.
type RequestKey struct {
	Method string
	URL    string
}

// StoredResponse is a snapshot of an upstream response: enough to replay it
// to the page byte-for-byte later.
type StoredResponse struct {
	Status   int                 `json:"status"`
	Headers  map[string][]string `json:"headers"`
	Body     []byte              `json:"body"`
	StoredAt time.Time           `json:"stored_at"`
}

// CacheStore persists response snapshots grouped into named cache areas.
// An area name carries its version token (e.g. "static-v2.0.0"); deleting an
// area drops every entry it holds.
type CacheStore interface {
	// Put writes (or overwrites) the entry for key in the given area.
	Put(ctx context.Context, area string, key RequestKey, resp StoredResponse) error
	// Get returns the stored entry for key in area, or nil if absent.
	Get(ctx context.Context, area string, key RequestKey) (*StoredResponse, error)
	// Delete removes the entry for key in area. Deleting an absent entry
	// is a no-op.
	Delete(ctx context.Context, area string, key RequestKey) error
	// DeleteArea removes an entire area and all of its entries.
	DeleteArea(ctx context.Context, area string) error
	// ListAreas returns the distinct area names that currently hold entries.
	ListAreas(ctx context.Context) ([]string, error)
	// CountArea returns the number of entries in an area.
	CountArea(ctx context.Context, area string) (int, error)
}
