package models

import "time"

// RedemptionStatus is shared by vouchers and coupons. USED is the only
// transition stored authoritatively; EXPIRED is computed on read and
// only cached back to the column when observed.
type RedemptionStatus string

const (
	RedemptionStatusActive  RedemptionStatus = "ACTIVE"
	RedemptionStatusUsed    RedemptionStatus = "USED"
	RedemptionStatusExpired RedemptionStatus = "EXPIRED"
)

// Voucher is an event-scoped discount code with a usage budget.
// UsedCount <= UsageLimit always; the increment happens under a row
// lock so concurrent redemptions cannot overshoot the limit.
type Voucher struct {
	ID          string `gorm:"type:uuid;primaryKey" json:"id"`
	EventID     string `gorm:"uniqueIndex:idx_vouchers_event_code;not null" json:"event_id"`
	VoucherCode string `gorm:"uniqueIndex:idx_vouchers_event_code;type:varchar(64);not null" json:"voucher_code"`

	// At least one of the two must be set.
	DiscountAmount     *float64 `json:"discount_amount,omitempty"`
	DiscountPercentage *float64 `json:"discount_percentage,omitempty"` // (0,100]

	UsageLimit int `json:"usage_limit" gorm:"not null"`
	UsedCount  int `json:"used_count" gorm:"default:0"`

	ValidFrom  time.Time `json:"valid_from" gorm:"not null"`
	ValidUntil time.Time `json:"valid_until" gorm:"not null"`

	Status RedemptionStatus `json:"status" gorm:"default:'ACTIVE'"`

	Timestamps
}
