package models

import "time"

// PointEntry is one movement in a user's append-only point ledger.
// Rows are never updated after creation; an expired entry simply stops
// counting toward the effective balance but is kept for audit.
//
// Invariant: Balance == PointsEarned - PointsUsed for every row. A
// user's effective balance is SUM(balance) over non-expired rows.
type PointEntry struct {
	ID             string `gorm:"type:uuid;primaryKey" json:"id"`
	ExternalUserID string `gorm:"index:idx_point_entries_user_expiry;not null" json:"external_user_id"`

	PointsEarned int64 `json:"points_earned" gorm:"default:0"`
	PointsUsed   int64 `json:"points_used" gorm:"default:0"`
	Balance      int64 `json:"balance"`

	Description string    `json:"description"`
	ExpiresAt   time.Time `gorm:"index:idx_point_entries_user_expiry;not null" json:"expires_at"`

	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime"`
}
