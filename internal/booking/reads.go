package booking

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/example/tourdesk/internal/models"
	"gorm.io/gorm"
)

// HourCapacity reports the booked seats of one hour bucket.
type HourCapacity struct {
	Hour      int `json:"hour"`
	TotalSize int `json:"totalSize"`
}

// StateCount is one row of the by-state session breakdown.
type StateCount struct {
	State string `json:"state"`
	Count int64  `json:"count"`
}

// DestinationCount is one row of the popular-destinations breakdown.
type DestinationCount struct {
	To    string `json:"to"`
	Count int64  `json:"count"`
}

// Stats summarizes session traffic for the ops view.
type Stats struct {
	SessionsByState     []StateCount       `json:"sessionsByState"`
	Last24Hours         int64              `json:"last24Hours"`
	PopularDestinations []DestinationCount `json:"popularDestinations"`
}

// GetSession returns one session with its team.
func (s *Service) GetSession(ctx context.Context, sessionID string) (*models.Session, error) {
	var session models.Session
	err := s.db.WithContext(ctx).Preload("Team").Where("id = ?", sessionID).First(&session).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: session %s", ErrNotFound, sessionID)
	}
	if err != nil {
		return nil, fmt.Errorf("booking: load session %s: %w", sessionID, err)
	}
	return &session, nil
}

// GetTour returns one tour with its sessions and their teams.
func (s *Service) GetTour(ctx context.Context, tourID string) (*models.Tour, error) {
	var tour models.Tour
	err := s.db.WithContext(ctx).Preload("Sessions.Team").Where("id = ?", tourID).First(&tour).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: tour %s", ErrNotFound, tourID)
	}
	if err != nil {
		return nil, fmt.Errorf("booking: load tour %s: %w", tourID, err)
	}
	return &tour, nil
}

// dayStart floors a time to midnight in its own location. Truncate would
// floor on the UTC epoch and shift the window for non-UTC callers.
func dayStart(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// GetBookedCapacity returns booked seats per hour bucket for one calendar
// day, the availability view the booking form renders.
func (s *Service) GetBookedCapacity(ctx context.Context, date time.Time) ([]HourCapacity, error) {
	start := dayStart(date)
	end := start.Add(24 * time.Hour)

	var tours []models.Tour
	err := s.db.WithContext(ctx).
		Where("timestamp >= ? AND timestamp < ?", start, end).
		Order("timestamp ASC").
		Find(&tours).Error
	if err != nil {
		return nil, fmt.Errorf("booking: booked capacity for %s: %w", start.Format("2006-01-02"), err)
	}

	hours := make([]HourCapacity, 0, len(tours))
	for _, tour := range tours {
		hours = append(hours, HourCapacity{Hour: tour.Timestamp.Hour(), TotalSize: tour.TotalSize})
	}
	return hours, nil
}

// ListDayTours returns all tours of one calendar day with their sessions,
// ordered by departure.
func (s *Service) ListDayTours(ctx context.Context, date time.Time) ([]models.Tour, error) {
	start := dayStart(date)
	end := start.Add(24 * time.Hour)

	var tours []models.Tour
	err := s.db.WithContext(ctx).
		Preload("Sessions.Team").
		Where("timestamp >= ? AND timestamp < ?", start, end).
		Order("timestamp ASC").
		Find(&tours).Error
	if err != nil {
		return nil, fmt.Errorf("booking: tours for %s: %w", start.Format("2006-01-02"), err)
	}
	return tours, nil
}

// UserSessionFilters narrows ListUserSessions.
type UserSessionFilters struct {
	StartDate time.Time
	EndDate   time.Time
	State     string
}

// ListUserSessions returns a user's sessions, newest departure last,
// optionally filtered by date range and state.
func (s *Service) ListUserSessions(ctx context.Context, userID string, filters UserSessionFilters) ([]models.Session, error) {
	query := s.db.WithContext(ctx).Preload("Team").Where("user_id = ?", userID)
	if !filters.StartDate.IsZero() && !filters.EndDate.IsZero() {
		query = query.Where("departure_time >= ? AND departure_time <= ?", filters.StartDate, filters.EndDate)
	}
	if filters.State != "" {
		if !models.ValidState(filters.State) {
			return nil, fmt.Errorf("%w: %q", ErrInvalidState, filters.State)
		}
		query = query.Where("state = ?", filters.State)
	}

	var sessions []models.Session
	if err := query.Order("departure_time ASC").Find(&sessions).Error; err != nil {
		return nil, fmt.Errorf("booking: sessions for user %s: %w", userID, err)
	}
	return sessions, nil
}

// SessionStats returns the by-state counts, last-24h volume and top five
// destinations.
func (s *Service) SessionStats(ctx context.Context) (*Stats, error) {
	stats := &Stats{}

	err := s.db.WithContext(ctx).Model(&models.Session{}).
		Select("state, COUNT(*) AS count").
		Group("state").
		Order("state ASC").
		Scan(&stats.SessionsByState).Error
	if err != nil {
		return nil, fmt.Errorf("booking: stats by state: %w", err)
	}

	err = s.db.WithContext(ctx).Model(&models.Session{}).
		Where("created_at >= ?", time.Now().Add(-24*time.Hour)).
		Count(&stats.Last24Hours).Error
	if err != nil {
		return nil, fmt.Errorf("booking: stats last 24h: %w", err)
	}

	err = s.db.WithContext(ctx).Model(&models.Session{}).
		Select("`to`, COUNT(*) AS count").
		Group("`to`").
		Order("count DESC").
		Limit(5).
		Scan(&stats.PopularDestinations).Error
	if err != nil {
		return nil, fmt.Errorf("booking: stats destinations: %w", err)
	}

	return stats, nil
}
