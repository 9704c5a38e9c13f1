// Package booking implements session creation, tour capacity allocation and
// the session state machine.
package booking

import (
	"crypto/rand"
	"errors"
	"fmt"
	"time"

	"github.com/example/tourdesk/internal/identity"
	"github.com/example/tourdesk/internal/notify"
	"github.com/example/tourdesk/internal/queue"
	"gorm.io/gorm"
)

// Business errors surfaced to the API layer.
var (
	// ErrCapacityExceeded rejects an allocation whose bucket cannot absorb
	// the session's weight. Not retried.
	ErrCapacityExceeded = errors.New("booking: this hour is fully booked")
	// ErrInvalidState rejects state values outside the session state machine
	// or transitions it forbids.
	ErrInvalidState = errors.New("booking: invalid session state")
	// ErrNotFound is returned for missing sessions or tours.
	ErrNotFound = errors.New("booking: not found")
	// ErrInvalidBookingIdentity rejects a booking whose booking user cannot
	// be resolved by any identity source.
	ErrInvalidBookingIdentity = errors.New("booking: unknown booking user")
)

const idCharset = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"

// GenerateID creates a 28-character record id, matching the id shape the
// identity provider issues so locally created records are indistinguishable.
func GenerateID() (string, error) {
	b := make([]byte, 28)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("booking: generate ID: %w", err)
	}
	for i := range b {
		b[i] = idCharset[int(b[i])%len(idCharset)]
	}
	return string(b), nil
}

// BucketStart floors a departure time to its hour bucket, the grouping key
// for tours.
func BucketStart(t time.Time) time.Time {
	return t.Truncate(time.Hour)
}

// Opts holds dependencies for the booking service.
type Opts struct {
	DB       *gorm.DB
	Queue    queue.Queue
	Resolver identity.Resolver
	// Notifier receives booking confirmations; nil discards them.
	Notifier notify.Notifier
	// MaxCapacity is the seat ceiling per hour bucket; 0 means the default
	// of 8.
	MaxCapacity int
}

// Service owns session and tour lifecycle operations. All methods are safe
// for concurrent use; capacity mutations run as row-locked transactions.
type Service struct {
	db          *gorm.DB
	queue       queue.Queue
	resolver    identity.Resolver
	notifier    notify.Notifier
	maxCapacity int
}

// NewService validates dependencies and returns a booking service.
func NewService(opts Opts) (*Service, error) {
	if opts.DB == nil {
		return nil, fmt.Errorf("booking: DB is required")
	}
	if opts.Queue == nil {
		return nil, fmt.Errorf("booking: Queue is required")
	}
	if opts.MaxCapacity == 0 {
		opts.MaxCapacity = 8
	}
	if opts.MaxCapacity < 1 {
		return nil, fmt.Errorf("booking: MaxCapacity must be positive")
	}
	if opts.Notifier == nil {
		opts.Notifier = notify.Discard{}
	}
	return &Service{
		db:          opts.DB,
		queue:       opts.Queue,
		resolver:    opts.Resolver,
		notifier:    opts.Notifier,
		maxCapacity: opts.MaxCapacity,
	}, nil
}

// MaxCapacity returns the configured per-bucket seat ceiling.
func (s *Service) MaxCapacity() int {
	return s.maxCapacity
}
