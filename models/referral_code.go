package models

// ReferralCode is a user's personal invite code. One code per user,
// immutable once assigned. The unique index on Code is the final
// arbiter when two generators race on the same random draw.
type ReferralCode struct {
	ID             string `gorm:"type:uuid;primaryKey" json:"id"`
	Code           string `gorm:"type:varchar(8);uniqueIndex;not null" json:"code"`
	ExternalUserID string `gorm:"uniqueIndex;not null" json:"external_user_id"`

	Timestamps
}
