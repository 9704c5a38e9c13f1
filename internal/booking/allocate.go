package booking

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/example/tourdesk/internal/identity"
	"github.com/example/tourdesk/internal/models"
	"github.com/example/tourdesk/internal/notify"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// TeamOpts describes the optional team attached to a new session.
type TeamOpts struct {
	Name      string
	Size      int
	Notes     string
	ContactID string
}

// CreateSessionOpts holds parameters for creating a session.
type CreateSessionOpts struct {
	BookingUserID string
	UserID        string
	From          string
	To            string
	DepartureTime time.Time
	Team          *TeamOpts
}

// CreateSession validates the booking, persists the session (plus team) and
// allocates it into its hour-bucket tour. Allocation failure rolls the
// session back so a capacity rejection leaves no trace.
func (s *Service) CreateSession(ctx context.Context, opts CreateSessionOpts) (*models.Session, error) {
	if opts.BookingUserID == "" {
		return nil, fmt.Errorf("booking: booking user is required")
	}
	if opts.UserID == "" {
		opts.UserID = opts.BookingUserID
	}
	if opts.From == "" || opts.To == "" {
		return nil, fmt.Errorf("booking: from and to locations are required")
	}
	if opts.DepartureTime.IsZero() {
		return nil, fmt.Errorf("booking: departure time is required")
	}
	if opts.Team != nil && opts.Team.Size < 2 {
		return nil, fmt.Errorf("booking: team size must be at least 2")
	}

	var booker *identity.Identity
	if s.resolver != nil {
		ident, err := s.resolver.Resolve(ctx, opts.BookingUserID)
		if err != nil {
			if errors.Is(err, identity.ErrNotFound) {
				return nil, fmt.Errorf("%w: %s", ErrInvalidBookingIdentity, opts.BookingUserID)
			}
			return nil, fmt.Errorf("booking: resolve booking user %s: %w", opts.BookingUserID, err)
		}
		booker = ident
	}

	id, err := GenerateID()
	if err != nil {
		return nil, err
	}

	session := models.Session{
		ID:            id,
		BookingUserID: opts.BookingUserID,
		UserID:        opts.UserID,
		From:          opts.From,
		To:            opts.To,
		DepartureTime: opts.DepartureTime,
		TourType:      models.TourTypeIndividual,
		State:         models.StateQueued,
	}
	if opts.Team != nil {
		teamID, err := GenerateID()
		if err != nil {
			return nil, err
		}
		session.TourType = models.TourTypeTeam
		session.Team = &models.Team{
			ID:        teamID,
			SessionID: id,
			Name:      opts.Team.Name,
			Size:      opts.Team.Size,
			Notes:     opts.Team.Notes,
			ContactID: opts.Team.ContactID,
		}
	}

	if err := s.db.WithContext(ctx).Create(&session).Error; err != nil {
		return nil, fmt.Errorf("booking: create session: %w", err)
	}

	if _, err := s.Allocate(ctx, &session); err != nil {
		// Roll the orphaned session back; a capacity rejection must leave
		// no QUEUED session behind.
		if delErr := s.db.WithContext(ctx).Select("Team").Delete(&session).Error; delErr != nil {
			log.Printf("booking: rollback session %s: %v", session.ID, delErr)
		}
		return nil, err
	}

	trip := notify.Trip{
		From:          session.From,
		To:            session.To,
		DepartureTime: session.DepartureTime,
		TourType:      session.TourType,
	}
	if booker != nil {
		trip.Name = booker.DisplayName
		trip.Email = booker.Email
	}
	if trip.Name == "" {
		trip.Name = opts.BookingUserID
	}
	s.notifier.TripConfirmation(trip)

	return &session, nil
}

// Allocate finds or creates the tour for the session's hour bucket and
// attaches the session, enforcing the seat ceiling. The ceiling re-check and
// the size increment happen under the same row lock, so concurrent
// allocations into one bucket cannot oversell it.
//
// A single team larger than the ceiling is admitted only into an empty
// bucket, as a dedicated tour; nothing can join it afterwards.
func (s *Service) Allocate(ctx context.Context, session *models.Session) (string, error) {
	bucket := BucketStart(session.DepartureTime)
	weight := session.Weight()

	var (
		tourID  string
		created bool
	)

	// Two attempts: a concurrent creator can win the unique timestamp index
	// between our lookup and insert, in which case the bucket now exists and
	// the join path applies.
	for attempt := 0; attempt < 2; attempt++ {
		created = false
		err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			var tour models.Tour
			result := tx.
				Clauses(clause.Locking{Strength: "UPDATE"}).
				Where("timestamp = ?", bucket).
				Limit(1).
				Find(&tour)
			if result.Error != nil {
				return fmt.Errorf("booking: lookup tour for %s: %w", bucket.Format(time.RFC3339), result.Error)
			}

			if result.RowsAffected == 0 {
				// An empty bucket admits any party, including a team larger
				// than the ceiling: it becomes a dedicated tour.
				id, err := GenerateID()
				if err != nil {
					return err
				}
				tour = models.Tour{
					ID:        id,
					Timestamp: bucket,
					TotalSize: weight,
					From:      session.From,
					To:        session.To,
				}
				if err := tx.Create(&tour).Error; err != nil {
					return fmt.Errorf("booking: create tour: %w", err)
				}
				created = true
			} else {
				if tour.TotalSize+weight > s.maxCapacity {
					return fmt.Errorf("%w: %d of %d seats taken, party of %d does not fit",
						ErrCapacityExceeded, tour.TotalSize, s.maxCapacity, weight)
				}
				if err := tx.Model(&models.Tour{}).Where("id = ?", tour.ID).
					Update("total_size", gorm.Expr("total_size + ?", weight)).Error; err != nil {
					return fmt.Errorf("booking: grow tour %s: %w", tour.ID, err)
				}
			}

			if err := tx.Model(&models.Session{}).Where("id = ?", session.ID).
				Update("tour_id", tour.ID).Error; err != nil {
				return fmt.Errorf("booking: attach session %s to tour %s: %w", session.ID, tour.ID, err)
			}

			tourID = tour.ID
			return nil
		})

		if err == nil {
			break
		}
		if errors.Is(err, gorm.ErrDuplicatedKey) && attempt == 0 {
			continue
		}
		return "", err
	}

	session.TourID = &tourID

	if created {
		if err := s.enqueueWithRetry(ctx, tourID, bucket.UnixMilli()); err != nil {
			// The tour committed but will never reach the queue: a later
			// booking joining this bucket would attach to a tour no
			// dispatcher can pop. Detach the session and prune the tour so
			// the failed booking leaves nothing behind.
			if detachErr := s.db.WithContext(ctx).Model(&models.Session{}).
				Where("id = ?", session.ID).Update("tour_id", nil).Error; detachErr != nil {
				log.Printf("booking: detach session %s from unqueued tour %s: %v", session.ID, tourID, detachErr)
			}
			session.TourID = nil
			if pruneErr := s.PruneTourIfEmpty(ctx, tourID); pruneErr != nil {
				log.Printf("booking: prune unqueued tour %s: %v", tourID, pruneErr)
			}
			return "", err
		}
	}
	return tourID, nil
}

// enqueueWithRetry retries transient queue failures a few times before
// surfacing them. The entry is idempotent so a retry after an ambiguous
// failure is safe.
func (s *Service) enqueueWithRetry(ctx context.Context, tourID string, priority int64) error {
	var err error
	for attempt := 0; attempt < 3; attempt++ {
		if attempt > 0 {
			time.Sleep(time.Duration(attempt) * 100 * time.Millisecond)
		}
		if err = s.queue.Enqueue(ctx, tourID, priority); err == nil {
			return nil
		}
		log.Printf("booking: enqueue tour %s attempt %d: %v", tourID, attempt+1, err)
	}
	return err
}
