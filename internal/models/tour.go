package models

import "time"

// Tour is a capacity bucket: one guide dispatch for a specific departure
// hour, shared by every session allocated into that hour.
type Tour struct {
	ID        string    `gorm:"primaryKey;size:32" json:"id"`
	Timestamp time.Time `gorm:"not null;uniqueIndex" json:"timestamp"`
	TotalSize int       `gorm:"not null;default:0" json:"totalSize"`
	From      string    `gorm:"size:128" json:"from"`
	To        string    `gorm:"size:128" json:"to"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`

	Sessions []Session `gorm:"foreignKey:TourID" json:"sessions,omitempty"`
}

// Queue entry statuses.
const (
	QueueStatusWaiting = "waiting"
	QueueStatusClaimed = "claimed"
)

// TourQueueEntry is one row of the durable dispatch queue. TourID carries a
// unique index so a tour can never hold two live entries; Priority is the
// tour timestamp in epoch milliseconds, earliest first.
type TourQueueEntry struct {
	ID        uint       `gorm:"primaryKey;autoIncrement" json:"id"`
	TourID    string     `gorm:"size:32;uniqueIndex;not null" json:"tourId"`
	Priority  int64      `gorm:"not null;index" json:"priority"`
	Status    string     `gorm:"size:16;default:waiting;index" json:"status"`
	ClaimedAt *time.Time `json:"claimedAt"`
	CreatedAt time.Time  `json:"createdAt"`
}
