// models/event.go
package models

import (
	"time"
)

const (
	EventStatusDraft     = "draft"
	EventStatusScheduled = "scheduled"
	EventStatusPublished = "published"
	EventStatusArchived  = "archived"
)

type Event struct {
	ID          string `json:"id" gorm:"type:uuid;primaryKey"`
	OrganizerID string `json:"organizer_id" gorm:"index;not null"` // ExternalUserID of the organizer
	Title       string `json:"title" gorm:"not null"`
	Slug        string `json:"slug" gorm:"uniqueIndex;not null"`
	Description string `json:"description" gorm:"type:text"`
	Venue       string `json:"venue"`
	City        string `json:"city"`

	// 🖼️ Media
	BannerURL string `json:"banner_url"` // e.g., CDN URL after R2 upload

	Capacity int       `json:"capacity" gorm:"default:0"` // 0 = unlimited
	StartsAt time.Time `json:"starts_at"`
	EndsAt   time.Time `json:"ends_at"`

	// 🎛️ Publishing state
	Status    string     `json:"status" gorm:"default:'draft'"` // draft | scheduled | published | archived
	PublishAt *time.Time `json:"publish_at"`                    // only used if scheduled

	// 🔗 Relations
	TicketTypes []TicketType `json:"ticket_types,omitempty" gorm:"foreignKey:EventID"`
	Vouchers    []Voucher    `json:"-" gorm:"foreignKey:EventID"`

	Timestamps
}
