package storage

import (
	"context"
	"time"
)

// QueuedRequest is a durable record of a previously failed mutating call.
// Its presence in a queue means "not yet confirmed delivered"; it is removed
// only after a successful replay.
type QueuedRequest struct {
	ID         int64             `json:"id"`
	Queue      string            `json:"queue"`
	URL        string            `json:"url"`
	Method     string            `json:"method"`
	Headers    map[string]string `json:"headers"`
	Body       []byte            `json:"body"`
	EnqueuedAt time.Time         `json:"enqueued_at"`
}

// QueueStore persists retry queues of unconfirmed mutating requests, one
// queue per concern (job updates, chat messages, notification telemetry).
type QueueStore interface {
	// Enqueue appends a request to its queue and returns the assigned id.
	Enqueue(ctx context.Context, req QueuedRequest) (int64, error)
	// List returns every entry currently in the named queue.
	List(ctx context.Context, queue string) ([]QueuedRequest, error)
	// Remove deletes the entry with the given id. Removing an id that is
	// already gone is a no-op, not an error.
	Remove(ctx context.Context, id int64) error
	// Count returns the number of entries in the named queue.
	Count(ctx context.Context, queue string) (int, error)
}
