package models

import "time"

// Coupon is a user-scoped single-use discount code. Same validity
// window semantics as Voucher, but redemption flips Status to USED
// instead of counting uses.
type Coupon struct {
	ID             string `gorm:"type:uuid;primaryKey" json:"id"`
	ExternalUserID string `gorm:"uniqueIndex:idx_coupons_user_code;not null" json:"external_user_id"`
	CouponCode     string `gorm:"uniqueIndex:idx_coupons_user_code;type:varchar(64);not null" json:"coupon_code"`

	DiscountAmount     *float64 `json:"discount_amount,omitempty"`
	DiscountPercentage *float64 `json:"discount_percentage,omitempty"` // (0,100]

	ValidFrom  time.Time `json:"valid_from" gorm:"not null"`
	ValidUntil time.Time `json:"valid_until" gorm:"not null"`

	Status RedemptionStatus `json:"status" gorm:"default:'ACTIVE'"`

	Timestamps
}
