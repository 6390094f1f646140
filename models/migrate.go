package models

import "gorm.io/gorm"

// AutoMigrate creates or updates every table this service owns.
// Called once at boot and by test setups.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&AttendeeUser{},
		&Event{},
		&TicketType{},
		&Registration{},
		&ReferralCode{},
		&PointEntry{},
		&Voucher{},
		&Coupon{},
	)
}
