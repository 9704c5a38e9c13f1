package models

import "time"

// Session states. QUEUED is the initial state; DONE, CANCEL and ERROR are
// terminal.
const (
	StateQueued = "QUEUED"
	StateActive = "ACTIVE"
	StateDone   = "DONE"
	StateCancel = "CANCEL"
	StateError  = "ERROR"
)

// Tour types.
const (
	TourTypeIndividual = "individual"
	TourTypeTeam       = "team"
)

// ValidTransitions maps each session state to its valid next states.
// The special case "any -> ERROR" is handled in CanTransition.
var ValidTransitions = map[string][]string{
	StateQueued: {StateActive, StateCancel},
	StateActive: {StateDone},
	StateDone:   {},
	StateCancel: {},
	StateError:  {},
}

// ValidState reports whether s is one of the five session states.
func ValidState(s string) bool {
	switch s {
	case StateQueued, StateActive, StateDone, StateCancel, StateError:
		return true
	}
	return false
}

// CanTransition reports whether a session may move from one state to another.
// ERROR is reachable from any non-terminal state (operator-triggered).
func CanTransition(from, to string) bool {
	if !ValidState(from) || !ValidState(to) {
		return false
	}
	if to == StateError {
		return from != StateDone && from != StateCancel && from != StateError
	}
	for _, next := range ValidTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Session is one booking request: a single rider or a whole team travelling
// from one campus location to another at a departure time.
type Session struct {
	ID            string    `gorm:"primaryKey;size:32" json:"id"`
	BookingUserID string    `gorm:"size:64;not null;index" json:"bookingUserId"`
	UserID        string    `gorm:"size:64;not null;index" json:"userId"`
	From          string    `gorm:"size:128;not null" json:"from"`
	To            string    `gorm:"size:128;not null" json:"to"`
	DepartureTime time.Time `gorm:"not null;index" json:"departureTime"`
	TourType      string    `gorm:"size:16;default:individual" json:"tourType"`
	State         string    `gorm:"size:16;default:QUEUED;index" json:"state"`
	Message       string    `gorm:"type:text" json:"message"`
	TourID        *string   `gorm:"size:32;index" json:"tourId"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`

	Team *Team `gorm:"foreignKey:SessionID" json:"team,omitempty"`
	Tour *Tour `gorm:"foreignKey:TourID" json:"-"`
}

// Weight returns the capacity units the session consumes in a tour:
// the team size, or 1 for an individual.
func (s *Session) Weight() int {
	if s.Team != nil && s.Team.Size > 1 {
		return s.Team.Size
	}
	return 1
}

// Team is optional group metadata attached to a session. Its size is the
// capacity weight the session contributes to its tour.
type Team struct {
	ID        string    `gorm:"primaryKey;size:32" json:"id"`
	SessionID string    `gorm:"size:32;uniqueIndex;not null" json:"sessionId"`
	Name      string    `gorm:"size:128;not null" json:"name"`
	Size      int       `gorm:"not null" json:"size"`
	Notes     string    `gorm:"type:text" json:"notes"`
	ContactID string    `gorm:"size:64" json:"contactId"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}
