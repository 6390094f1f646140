package models

type TicketType struct {
	ID      string  `json:"id" gorm:"type:uuid;primaryKey"`
	EventID string  `json:"event_id" gorm:"index;not null"`
	Name    string  `json:"name" gorm:"not null"` // e.g., "Early Bird", "VIP"
	Price   float64 `json:"price"`
	Quota   int     `json:"quota" gorm:"not null"`
	Sold    int     `json:"sold" gorm:"default:0"` // guarded by row lock during registration

	Timestamps
}
