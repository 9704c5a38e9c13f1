package booking

import (
	"context"
	"errors"
	"fmt"

	"github.com/example/tourdesk/internal/models"
	"gorm.io/gorm"
)

// SetSessionState applies a direct state change to one session. Cancelling a
// session that sits in a tour releases its seats: the tour shrinks by the
// session's weight, the session detaches, and a now-empty tour is pruned from
// queue and store in the same logical step.
func (s *Service) SetSessionState(ctx context.Context, sessionID, state, message string) (*models.Session, error) {
	if !models.ValidState(state) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidState, state)
	}

	var session models.Session
	err := s.db.WithContext(ctx).Preload("Team").Where("id = ?", sessionID).First(&session).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: session %s", ErrNotFound, sessionID)
	}
	if err != nil {
		return nil, fmt.Errorf("booking: load session %s: %w", sessionID, err)
	}

	if !models.CanTransition(session.State, state) {
		return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidState, session.State, state)
	}

	releaseTour := ""
	if session.TourID != nil && state == models.StateCancel {
		releaseTour = *session.TourID
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		updates := map[string]interface{}{"state": state}
		if message != "" {
			updates["message"] = message
		}
		if releaseTour != "" {
			updates["tour_id"] = nil
		}
		if err := tx.Model(&models.Session{}).Where("id = ?", session.ID).Updates(updates).Error; err != nil {
			return fmt.Errorf("booking: update session %s: %w", session.ID, err)
		}

		if releaseTour != "" {
			if err := tx.Model(&models.Tour{}).Where("id = ?", releaseTour).
				Update("total_size", gorm.Expr("total_size - ?", session.Weight())).Error; err != nil {
				return fmt.Errorf("booking: shrink tour %s: %w", releaseTour, err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if releaseTour != "" {
		if err := s.PruneTourIfEmpty(ctx, releaseTour); err != nil {
			return nil, err
		}
		session.TourID = nil
	}

	session.State = state
	if message != "" {
		session.Message = message
	}
	return &session, nil
}

// SetTourSessionsState applies one target state to every session attached to
// a tour, skipping sessions whose current state forbids the transition.
// Returns the number of sessions updated. A CANCEL target detaches the
// sessions and prunes the emptied tour.
func (s *Service) SetTourSessionsState(ctx context.Context, tourID, state, message string) (int, error) {
	if !models.ValidState(state) {
		return 0, fmt.Errorf("%w: %q", ErrInvalidState, state)
	}

	var tour models.Tour
	err := s.db.WithContext(ctx).Where("id = ?", tourID).First(&tour).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, fmt.Errorf("%w: tour %s", ErrNotFound, tourID)
	}
	if err != nil {
		return 0, fmt.Errorf("booking: load tour %s: %w", tourID, err)
	}

	updated := 0
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var sessions []models.Session
		if err := tx.Preload("Team").Where("tour_id = ?", tourID).Find(&sessions).Error; err != nil {
			return fmt.Errorf("booking: load sessions of tour %s: %w", tourID, err)
		}

		released := 0
		for _, sess := range sessions {
			if !models.CanTransition(sess.State, state) {
				continue
			}
			updates := map[string]interface{}{"state": state}
			if message != "" {
				updates["message"] = message
			}
			if state == models.StateCancel {
				updates["tour_id"] = nil
				released += sess.Weight()
			}
			if err := tx.Model(&models.Session{}).Where("id = ?", sess.ID).Updates(updates).Error; err != nil {
				return fmt.Errorf("booking: update session %s: %w", sess.ID, err)
			}
			updated++
		}

		if released > 0 {
			if err := tx.Model(&models.Tour{}).Where("id = ?", tourID).
				Update("total_size", gorm.Expr("total_size - ?", released)).Error; err != nil {
				return fmt.Errorf("booking: shrink tour %s: %w", tourID, err)
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	if state == models.StateCancel {
		if err := s.PruneTourIfEmpty(ctx, tourID); err != nil {
			return updated, err
		}
	}
	return updated, nil
}

// PruneTourIfEmpty removes the tour from the queue and deletes its record
// once no sessions remain attached. Safe to call repeatedly and to race with
// the maintenance sweep: a missing tour or queue entry is a no-op.
func (s *Service) PruneTourIfEmpty(ctx context.Context, tourID string) error {
	var count int64
	if err := s.db.WithContext(ctx).Model(&models.Session{}).
		Where("tour_id = ?", tourID).Count(&count).Error; err != nil {
		return fmt.Errorf("booking: count sessions of tour %s: %w", tourID, err)
	}
	if count > 0 {
		return nil
	}

	if err := s.queue.Remove(ctx, tourID); err != nil {
		return err
	}
	if err := s.db.WithContext(ctx).Where("id = ?", tourID).Delete(&models.Tour{}).Error; err != nil {
		return fmt.Errorf("booking: delete tour %s: %w", tourID, err)
	}
	return nil
}
