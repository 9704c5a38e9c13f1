// Package maintenance keeps the tour queue healthy: it drops tours that lost
// all their sessions and expires tours whose departure time passed while
// still queued.
package maintenance

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/example/tourdesk/internal/booking"
	"github.com/example/tourdesk/internal/models"
	"github.com/example/tourdesk/internal/notify"
	"github.com/example/tourdesk/internal/queue"
)

// expiredMessage is set on every session cancelled by the expiry sweep.
const expiredMessage = "missed the timeline"

// Opts holds dependencies for the sweeper.
type Opts struct {
	Booking  *booking.Service
	Queue    queue.Queue
	Notifier notify.Notifier
}

// Sweeper runs the two queue maintenance passes. Both are idempotent and
// safe to run concurrently with allocation and dispatch; a tour vanishing
// mid-sweep is a benign race.
type Sweeper struct {
	booking  *booking.Service
	queue    queue.Queue
	notifier notify.Notifier
	now      func() time.Time
}

// New validates dependencies and returns a sweeper.
func New(opts Opts) (*Sweeper, error) {
	if opts.Booking == nil {
		return nil, fmt.Errorf("maintenance: Booking is required")
	}
	if opts.Queue == nil {
		return nil, fmt.Errorf("maintenance: Queue is required")
	}
	if opts.Notifier == nil {
		opts.Notifier = notify.Discard{}
	}
	return &Sweeper{
		booking:  opts.Booking,
		queue:    opts.Queue,
		notifier: opts.Notifier,
		now:      time.Now,
	}, nil
}

// RemoveEmptyTours prunes queue entries whose tour no longer exists or has no
// attached sessions. One tour's failure never aborts the rest of the sweep.
func (s *Sweeper) RemoveEmptyTours(ctx context.Context) error {
	entries, err := s.queue.ListAll(ctx)
	if err != nil {
		return err
	}

	var errs []error
	for _, entry := range entries {
		if err := s.booking.PruneTourIfEmpty(ctx, entry.TourID); err != nil {
			log.Printf("maintenance: prune tour %s: %v", entry.TourID, err)
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// ProcessExpiredTours cancels every queued tour whose departure time is
// strictly in the past: its sessions move to CANCEL with the standard expiry
// message and the tour leaves the queue. Participants learn about the missed
// tour through their session state, never by silent disappearance.
func (s *Sweeper) ProcessExpiredTours(ctx context.Context) error {
	entries, err := s.queue.ListAll(ctx, models.QueueStatusWaiting)
	if err != nil {
		return err
	}

	cutoff := s.now().UnixMilli()
	expired := 0
	var errs []error
	for _, entry := range entries {
		if entry.Priority >= cutoff {
			// Entries are priority ordered; the first future departure ends
			// the scan.
			break
		}
		if err := s.expireTour(ctx, entry.TourID); err != nil {
			log.Printf("maintenance: expire tour %s: %v", entry.TourID, err)
			errs = append(errs, err)
			continue
		}
		expired++
	}

	if expired > 0 {
		s.notifier.ToursExpired(expired)
	}
	return errors.Join(errs...)
}

func (s *Sweeper) expireTour(ctx context.Context, tourID string) error {
	_, err := s.booking.SetTourSessionsState(ctx, tourID, models.StateCancel, expiredMessage)
	if errors.Is(err, booking.ErrNotFound) {
		// Tour already gone; just drop the entry.
		return s.queue.Remove(ctx, tourID)
	}
	if err != nil {
		return err
	}
	// Bulk cancel detaches and prunes, but an entry can outlive a tour that
	// kept terminal-state sessions attached; removing again is a no-op.
	return s.queue.Remove(ctx, tourID)
}
