// Package notify delivers booking and dispatch notifications. Delivery is
// best-effort everywhere: failures are logged per recipient and never
// propagate into scheduling.
package notify

import (
	"log"
	"time"
)

// Trip carries the details rendered into a notification.
type Trip struct {
	Name          string
	Email         string
	From          string
	To            string
	DepartureTime time.Time
	TourType      string
}

// Notifier delivers trip notifications.
type Notifier interface {
	// TripConfirmation tells a participant their booking is confirmed.
	TripConfirmation(trip Trip)
	// TripActivated tells a participant their tour is departing.
	TripActivated(trip Trip)
	// ToursExpired tells the ops channel a sweep cancelled stale tours.
	ToursExpired(count int)
}

// Multi fans a notification out to several notifiers.
type Multi []Notifier

func (m Multi) TripConfirmation(trip Trip) {
	for _, n := range m {
		n.TripConfirmation(trip)
	}
}

func (m Multi) TripActivated(trip Trip) {
	for _, n := range m {
		n.TripActivated(trip)
	}
}

func (m Multi) ToursExpired(count int) {
	for _, n := range m {
		n.ToursExpired(count)
	}
}

// Discard drops every notification, used when no channel is configured.
type Discard struct{}

func (Discard) TripConfirmation(trip Trip) {
	log.Printf("notify: no channel configured, dropping confirmation for %s", trip.Email)
}

func (Discard) TripActivated(trip Trip) {
	log.Printf("notify: no channel configured, dropping activation for %s", trip.Email)
}

func (Discard) ToursExpired(count int) {}
