package models

import (
	"time"

	"gorm.io/gorm"
)

// AttendeeUser is a local snapshot of user data needed for ticketing.
// Owned and managed solely by the Ticketing service.
// Populated via sync worker from the Profile Service's user table.
//
// This row is also the serialization point for a user's point ledger:
// debits lock it FOR UPDATE before summing entries, so two concurrent
// debits for the same user cannot both pass the balance check.
type AttendeeUser struct {
	ID                string     `gorm:"type:uuid;primaryKey" json:"id"`
	ExternalUserID    string     `gorm:"uniqueIndex;not null" json:"external_user_id"` // The profile service's UUID
	Username          string     `gorm:"index;not null" json:"username"`
	Email             string     `json:"email,omitempty"`
	FirstName         *string    `json:"first_name,omitempty"`
	LastName          *string    `json:"last_name,omitempty"`
	ProfilePictureURL *string    `json:"profile_picture_url,omitempty"`
	LastSeen          *time.Time `json:"last_seen,omitempty"`
	IsBanned          bool       `json:"is_banned" gorm:"default:false"` // local ticketing ban

	// Soft delete only — an attendee row must outlive any unexpired
	// point entry that references it.
	Timestamps
}

// Timestamps adds GORM auto-times
type Timestamps struct {
	CreatedAt time.Time      `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt time.Time      `json:"updated_at" gorm:"autoUpdateTime"`
	DeletedAt gorm.DeletedAt `json:"deleted_at,omitempty" gorm:"index"`
}
