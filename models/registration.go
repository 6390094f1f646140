package models

// Registration records one attendee's ticket purchase for an event,
// including any voucher/coupon/points applied at checkout.
type Registration struct {
	ID             string `json:"id" gorm:"type:uuid;primaryKey"`
	EventID        string `json:"event_id" gorm:"index;not null"`
	TicketTypeID   string `json:"ticket_type_id" gorm:"index;not null"`
	ExternalUserID string `json:"external_user_id" gorm:"index;not null"`
	Quantity       int    `json:"quantity" gorm:"not null"`

	GrossAmount float64 `json:"gross_amount"` // price * quantity before discounts
	PaidAmount  float64 `json:"paid_amount"`  // after voucher/coupon/points

	VoucherCodeUsed string `json:"voucher_code_used,omitempty"`
	CouponCodeUsed  string `json:"coupon_code_used,omitempty"`
	PointsRedeemed  int64  `json:"points_redeemed,omitempty"`

	Status string `json:"status" gorm:"default:'confirmed'"` // confirmed | cancelled

	Timestamps
}
