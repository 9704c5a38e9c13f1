// Package queue implements the durable, priority-ordered tour dispatch queue.
package queue

import (
	"context"
	"errors"
	"time"
)

// ErrEmptyQueue is returned by PeekTop and PopTop when no waiting entry
// exists. It signals "nothing to do", not a failure.
var ErrEmptyQueue = errors.New("queue: empty")

// ErrUnavailable wraps storage-level failures so callers can degrade
// (read endpoints return empty results) instead of treating them as
// business errors.
var ErrUnavailable = errors.New("queue: unavailable")

// Entry is one queued tour. Priority is the tour's departure bucket in epoch
// milliseconds; lower values dispatch first, ties break by insertion order.
type Entry struct {
	TourID    string
	Priority  int64
	Status    string
	CreatedAt time.Time
}

// Queue is a durable priority queue of tour ids.
//
// Enqueue is idempotent on TourID: a tour never holds two live entries.
// PopTop atomically claims the earliest waiting entry; at most one concurrent
// caller observes a given entry.
type Queue interface {
	Enqueue(ctx context.Context, tourID string, priority int64) error
	PeekTop(ctx context.Context) (*Entry, error)
	PopTop(ctx context.Context) (*Entry, error)
	ListAll(ctx context.Context, statuses ...string) ([]Entry, error)
	Remove(ctx context.Context, tourID string) error
}

func unavailable(err error) error {
	return errors.Join(ErrUnavailable, err)
}
