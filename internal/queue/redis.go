package queue

import (
	"context"
	"fmt"

	"github.com/example/tourdesk/internal/models"
	"github.com/redis/go-redis/v9"
)

// queueKey is the sorted set holding waiting tour ids scored by priority.
const queueKey = "tourdesk:queue"

// RedisQueue stores the queue in a Redis sorted set, for deployments that
// already run Redis for job traffic. ZADD NX gives idempotent enqueue and
// ZPOPMIN gives the atomic single-claimant pop.
//
// A popped entry leaves the set entirely, so this backend only ever reports
// waiting entries; ties at equal priority order by member id rather than
// insertion time.
type RedisQueue struct {
	client *redis.Client
}

// NewRedisQueue returns a queue backed by the given Redis client.
func NewRedisQueue(client *redis.Client) *RedisQueue {
	return &RedisQueue{client: client}
}

// Enqueue adds the tour with its priority score. Re-enqueueing an existing
// tour is a no-op (NX keeps the original score and position).
func (q *RedisQueue) Enqueue(ctx context.Context, tourID string, priority int64) error {
	if tourID == "" {
		return fmt.Errorf("queue: tourID is required")
	}
	err := q.client.ZAddNX(ctx, queueKey, redis.Z{
		Score:  float64(priority),
		Member: tourID,
	}).Err()
	if err != nil {
		return fmt.Errorf("queue: enqueue %s: %w", tourID, unavailable(err))
	}
	return nil
}

// PeekTop returns the lowest-scored member without removing it.
func (q *RedisQueue) PeekTop(ctx context.Context) (*Entry, error) {
	zs, err := q.client.ZRangeWithScores(ctx, queueKey, 0, 0).Result()
	if err != nil {
		return nil, fmt.Errorf("queue: peek: %w", unavailable(err))
	}
	if len(zs) == 0 {
		return nil, ErrEmptyQueue
	}
	return entryFromZ(zs[0]), nil
}

// PopTop atomically removes and returns the lowest-scored member.
func (q *RedisQueue) PopTop(ctx context.Context) (*Entry, error) {
	zs, err := q.client.ZPopMin(ctx, queueKey, 1).Result()
	if err != nil {
		return nil, fmt.Errorf("queue: pop: %w", unavailable(err))
	}
	if len(zs) == 0 {
		return nil, ErrEmptyQueue
	}
	entry := entryFromZ(zs[0])
	entry.Status = models.QueueStatusClaimed
	return entry, nil
}

// ListAll returns every waiting member in score order. Status filters other
// than "waiting" yield nothing because popped entries do not persist here.
func (q *RedisQueue) ListAll(ctx context.Context, statuses ...string) ([]Entry, error) {
	if len(statuses) > 0 && !containsStatus(statuses, models.QueueStatusWaiting) {
		return nil, nil
	}
	zs, err := q.client.ZRangeWithScores(ctx, queueKey, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("queue: list: %w", unavailable(err))
	}
	entries := make([]Entry, 0, len(zs))
	for _, z := range zs {
		entries = append(entries, *entryFromZ(z))
	}
	return entries, nil
}

// Remove drops the tour from the set; absent members are a no-op.
func (q *RedisQueue) Remove(ctx context.Context, tourID string) error {
	if err := q.client.ZRem(ctx, queueKey, tourID).Err(); err != nil {
		return fmt.Errorf("queue: remove %s: %w", tourID, unavailable(err))
	}
	return nil
}

func entryFromZ(z redis.Z) *Entry {
	tourID, _ := z.Member.(string)
	return &Entry{
		TourID:   tourID,
		Priority: int64(z.Score),
		Status:   models.QueueStatusWaiting,
	}
}

func containsStatus(statuses []string, want string) bool {
	for _, s := range statuses {
		if s == want {
			return true
		}
	}
	return false
}
