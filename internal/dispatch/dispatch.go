// Package dispatch pops tours off the queue and drives their sessions
// through the state machine, firing participant notifications on activation.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/example/tourdesk/internal/booking"
	"github.com/example/tourdesk/internal/identity"
	"github.com/example/tourdesk/internal/models"
	"github.com/example/tourdesk/internal/notify"
	"github.com/example/tourdesk/internal/queue"
)

// ErrInvalidTargetState rejects dispatch targets other than ACTIVE or CANCEL.
var ErrInvalidTargetState = errors.New("dispatch: target state must be ACTIVE or CANCEL")

// defaultCancelMessage is applied when a tour is cancelled through dispatch
// without an explicit reason.
const defaultCancelMessage = "cancelled by dispatch maintenance"

// Result reports one dispatch: the popped tour, its pre-transition snapshot
// and how many sessions changed state.
type Result struct {
	TourID  string       `json:"tourId"`
	Tour    *models.Tour `json:"tour"`
	Updated int          `json:"updatedCount"`
}

// TourSummary is the read-only queue view of one tour.
type TourSummary struct {
	TourID       string    `json:"tourId"`
	Timestamp    time.Time `json:"timestamp"`
	Priority     int64     `json:"priority"`
	Status       string    `json:"status"`
	TotalSize    int       `json:"totalSize"`
	From         string    `json:"from"`
	To           string    `json:"to"`
	SessionCount int       `json:"sessionCount"`
}

// Opts holds dependencies for the dispatcher.
type Opts struct {
	Booking  *booking.Service
	Queue    queue.Queue
	Resolver identity.Resolver
	Notifier notify.Notifier
}

// Dispatcher owns pop-and-transition and the queue read views.
type Dispatcher struct {
	booking  *booking.Service
	queue    queue.Queue
	resolver identity.Resolver
	notifier notify.Notifier
}

// New validates dependencies and returns a dispatcher.
func New(opts Opts) (*Dispatcher, error) {
	if opts.Booking == nil {
		return nil, fmt.Errorf("dispatch: Booking is required")
	}
	if opts.Queue == nil {
		return nil, fmt.Errorf("dispatch: Queue is required")
	}
	if opts.Notifier == nil {
		opts.Notifier = notify.Discard{}
	}
	return &Dispatcher{
		booking:  opts.Booking,
		queue:    opts.Queue,
		resolver: opts.Resolver,
		notifier: opts.Notifier,
	}, nil
}

// PopNext claims the earliest queued tour and transitions every attached
// session to the target state. A popped tour is terminal in the queue; it is
// never reinserted. Notification failures never fail the dispatch.
func (d *Dispatcher) PopNext(ctx context.Context, target, message string) (*Result, error) {
	if target != models.StateActive && target != models.StateCancel {
		return nil, fmt.Errorf("%w: got %q", ErrInvalidTargetState, target)
	}
	if target == models.StateCancel && message == "" {
		message = defaultCancelMessage
	}

	entry, err := d.queue.PopTop(ctx)
	if err != nil {
		return nil, err
	}

	// Snapshot before the transition so cancellation still reports the
	// sessions it affected.
	tour, err := d.booking.GetTour(ctx, entry.TourID)
	if err != nil {
		if errors.Is(err, booking.ErrNotFound) {
			// The tour vanished between enqueue and pop (cleanup race);
			// drop the stale claim.
			if remErr := d.queue.Remove(ctx, entry.TourID); remErr != nil {
				log.Printf("dispatch: drop stale entry %s: %v", entry.TourID, remErr)
			}
		}
		return nil, err
	}

	updated, err := d.booking.SetTourSessionsState(ctx, entry.TourID, target, message)
	if err != nil {
		return nil, err
	}

	// The claimed entry has served its purpose either way.
	if err := d.queue.Remove(ctx, entry.TourID); err != nil {
		log.Printf("dispatch: remove claimed entry %s: %v", entry.TourID, err)
	}

	if target == models.StateActive {
		d.notifyActivated(ctx, tour)
	}

	return &Result{TourID: entry.TourID, Tour: tour, Updated: updated}, nil
}

// Peek returns the earliest queued tour without claiming it.
func (d *Dispatcher) Peek(ctx context.Context) (*TourSummary, error) {
	entry, err := d.queue.PeekTop(ctx)
	if err != nil {
		return nil, err
	}
	return d.summarize(ctx, *entry), nil
}

// ListQueued returns the queue in priority order, optionally filtered by
// entry status. Tours deleted since enqueue are skipped, not errors.
func (d *Dispatcher) ListQueued(ctx context.Context, statuses ...string) ([]TourSummary, error) {
	entries, err := d.queue.ListAll(ctx, statuses...)
	if err != nil {
		return nil, err
	}
	summaries := make([]TourSummary, 0, len(entries))
	for _, entry := range entries {
		if s := d.summarize(ctx, entry); s != nil {
			summaries = append(summaries, *s)
		}
	}
	return summaries, nil
}

func (d *Dispatcher) summarize(ctx context.Context, entry queue.Entry) *TourSummary {
	summary := TourSummary{
		TourID:    entry.TourID,
		Timestamp: time.UnixMilli(entry.Priority).UTC(),
		Priority:  entry.Priority,
		Status:    entry.Status,
	}
	tour, err := d.booking.GetTour(ctx, entry.TourID)
	if err != nil {
		if errors.Is(err, booking.ErrNotFound) {
			return nil
		}
		log.Printf("dispatch: summarize tour %s: %v", entry.TourID, err)
		return nil
	}
	summary.TotalSize = tour.TotalSize
	summary.From = tour.From
	summary.To = tour.To
	summary.SessionCount = len(tour.Sessions)
	return &summary
}

// notifyActivated resolves each participant and sends the departure notice.
// Identity misses fall back to whatever the session itself carries.
func (d *Dispatcher) notifyActivated(ctx context.Context, tour *models.Tour) {
	for _, sess := range tour.Sessions {
		trip := notify.Trip{
			From:          sess.From,
			To:            sess.To,
			DepartureTime: sess.DepartureTime,
			TourType:      sess.TourType,
		}
		if d.resolver != nil {
			ident, err := d.resolver.Resolve(ctx, sess.UserID)
			if err != nil {
				log.Printf("dispatch: resolve participant %s: %v", sess.UserID, err)
			} else {
				trip.Name = ident.DisplayName
				trip.Email = ident.Email
			}
		}
		if trip.Name == "" {
			trip.Name = sess.UserID
		}
		d.notifier.TripActivated(trip)
	}
}
