package queue

import (
	"context"
	"fmt"
	"time"

	"github.com/example/tourdesk/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormQueue stores queue entries in the primary database. Claim-on-pop runs
// inside a transaction with SELECT ... FOR UPDATE SKIP LOCKED so concurrent
// dispatchers never pop the same tour.
//
// Note: SQLite (used in tests) ignores row-level SKIP LOCKED. Correctness is
// preserved via transaction serialization; just lower concurrency.
type GormQueue struct {
	db *gorm.DB
}

// NewGormQueue returns a queue backed by the given GORM connection.
func NewGormQueue(db *gorm.DB) *GormQueue {
	return &GormQueue{db: db}
}

// Enqueue inserts a waiting entry for the tour. Duplicate tour ids are a
// no-op: the tour_id unique index plus ON CONFLICT DO NOTHING make re-enqueue
// idempotent.
func (q *GormQueue) Enqueue(ctx context.Context, tourID string, priority int64) error {
	if tourID == "" {
		return fmt.Errorf("queue: tourID is required")
	}
	entry := models.TourQueueEntry{
		TourID:   tourID,
		Priority: priority,
		Status:   models.QueueStatusWaiting,
	}
	err := q.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "tour_id"}},
			DoNothing: true,
		}).
		Create(&entry).Error
	if err != nil {
		return fmt.Errorf("queue: enqueue %s: %w", tourID, unavailable(err))
	}
	return nil
}

// PeekTop returns the earliest waiting entry without claiming it.
func (q *GormQueue) PeekTop(ctx context.Context) (*Entry, error) {
	var row models.TourQueueEntry
	result := q.db.WithContext(ctx).
		Where("status = ?", models.QueueStatusWaiting).
		Order("priority ASC, id ASC").
		Limit(1).
		Find(&row)
	if result.Error != nil {
		return nil, fmt.Errorf("queue: peek: %w", unavailable(result.Error))
	}
	if result.RowsAffected == 0 {
		return nil, ErrEmptyQueue
	}
	return entryFromRow(row), nil
}

// PopTop atomically claims and returns the earliest waiting entry.
func (q *GormQueue) PopTop(ctx context.Context) (*Entry, error) {
	var row models.TourQueueEntry

	err := q.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.
			Where("status = ?", models.QueueStatusWaiting).
			Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"}).
			Order("priority ASC, id ASC").
			Limit(1).
			Find(&row)
		if result.Error != nil {
			return fmt.Errorf("queue: find top: %w", unavailable(result.Error))
		}
		if result.RowsAffected == 0 {
			return ErrEmptyQueue
		}

		now := time.Now()
		if err := tx.Model(&models.TourQueueEntry{}).Where("id = ?", row.ID).Updates(map[string]interface{}{
			"status":     models.QueueStatusClaimed,
			"claimed_at": now,
		}).Error; err != nil {
			return fmt.Errorf("queue: claim %s: %w", row.TourID, unavailable(err))
		}
		row.Status = models.QueueStatusClaimed
		row.ClaimedAt = &now
		return nil
	})
	if err != nil {
		return nil, err
	}
	return entryFromRow(row), nil
}

// ListAll returns entries in priority order without mutating queue position.
// With no statuses given it returns every live entry.
func (q *GormQueue) ListAll(ctx context.Context, statuses ...string) ([]Entry, error) {
	query := q.db.WithContext(ctx).Model(&models.TourQueueEntry{})
	if len(statuses) > 0 {
		query = query.Where("status IN ?", statuses)
	}

	var rows []models.TourQueueEntry
	if err := query.Order("priority ASC, id ASC").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("queue: list: %w", unavailable(err))
	}

	entries := make([]Entry, 0, len(rows))
	for _, row := range rows {
		entries = append(entries, *entryFromRow(row))
	}
	return entries, nil
}

// Remove deletes the entry for the tour if present; absent entries are a
// benign no-op so maintenance sweeps can race allocation and dispatch.
func (q *GormQueue) Remove(ctx context.Context, tourID string) error {
	err := q.db.WithContext(ctx).
		Where("tour_id = ?", tourID).
		Delete(&models.TourQueueEntry{}).Error
	if err != nil {
		return fmt.Errorf("queue: remove %s: %w", tourID, unavailable(err))
	}
	return nil
}

func entryFromRow(row models.TourQueueEntry) *Entry {
	return &Entry{
		TourID:    row.TourID,
		Priority:  row.Priority,
		Status:    row.Status,
		CreatedAt: row.CreatedAt,
	}
}
