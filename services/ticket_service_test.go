package services

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"event-ticketing-system/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

func createTicketType(t *testing.T, db *gorm.DB, eventID string, price float64, quota int) *models.TicketType {
	t.Helper()
	tt := &models.TicketType{
		ID:      uuid.NewString(),
		EventID: eventID,
		Name:    "General Admission",
		Price:   price,
		Quota:   quota,
	}
	if err := db.Create(tt).Error; err != nil {
		t.Fatalf("create ticket type: %v", err)
	}
	return tt
}

func TestRegisterClaimsQuota(t *testing.T) {
	db := setupTestDB(t)
	svc := NewTicketService(db, NewReferralService(db))
	ctx := context.Background()
	createAttendee(t, db, "user-1")
	event := createEvent(t, db, "organizer-1")
	tt := createTicketType(t, db, event.ID, 50, 3)

	reg, err := svc.Register(ctx, RegistrationInput{
		EventID:      event.ID,
		TicketTypeID: tt.ID,
		UserID:       "user-1",
		Quantity:     2,
	})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if reg.GrossAmount != 100 || reg.PaidAmount != 100 {
		t.Fatalf("expected gross=paid=100, got gross=%v paid=%v", reg.GrossAmount, reg.PaidAmount)
	}

	var reloaded models.TicketType
	if err := db.First(&reloaded, "id = ?", tt.ID).Error; err != nil {
		t.Fatalf("reload ticket type: %v", err)
	}
	if reloaded.Sold != 2 {
		t.Fatalf("expected sold=2, got %d", reloaded.Sold)
	}

	// Only one seat left now.
	var ve *ValidationError
	if _, err := svc.Register(ctx, RegistrationInput{
		EventID:      event.ID,
		TicketTypeID: tt.ID,
		UserID:       "user-1",
		Quantity:     2,
	}); !errors.As(err, &ve) {
		t.Fatalf("expected ValidationError on quota overrun, got %v", err)
	}
}

func TestRegisterUnknownTicketType(t *testing.T) {
	db := setupTestDB(t)
	svc := NewTicketService(db, NewReferralService(db))
	createAttendee(t, db, "user-1")
	event := createEvent(t, db, "organizer-1")

	_, err := svc.Register(context.Background(), RegistrationInput{
		EventID:      event.ID,
		TicketTypeID: uuid.NewString(),
		UserID:       "user-1",
		Quantity:     1,
	})
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestRegisterAppliesVoucherAndCoupon(t *testing.T) {
	db := setupTestDB(t)
	svc := NewTicketService(db, NewReferralService(db))
	vouchers := NewVoucherService(db)
	coupons := NewCouponService(db)
	ctx := context.Background()
	createAttendee(t, db, "user-1")
	event := createEvent(t, db, "organizer-1")
	tt := createTicketType(t, db, event.ID, 100, 10)

	now := time.Now()
	if _, err := vouchers.Issue(ctx, event.ID, "TENOFF", floatPtr(10), nil, 5, now.Add(-time.Minute), now.Add(time.Hour)); err != nil {
		t.Fatalf("issue voucher: %v", err)
	}
	if _, err := coupons.Issue(ctx, "user-1", "HALF", nil, floatPtr(50), now.Add(-time.Minute), now.Add(time.Hour)); err != nil {
		t.Fatalf("issue coupon: %v", err)
	}

	reg, err := svc.Register(ctx, RegistrationInput{
		EventID:      event.ID,
		TicketTypeID: tt.ID,
		UserID:       "user-1",
		Quantity:     1,
		VoucherCode:  "TENOFF",
		CouponCode:   "HALF",
	})
	if err != nil {
		t.Fatalf("register: %v", err)
	}

	// 100 - 10 voucher = 90, then 50% coupon = 45.
	if math.Abs(reg.PaidAmount-45) > 1e-9 {
		t.Fatalf("expected paid 45, got %v", reg.PaidAmount)
	}
	if reg.VoucherCodeUsed != "TENOFF" || reg.CouponCodeUsed != "HALF" {
		t.Fatalf("expected both codes recorded, got voucher=%q coupon=%q", reg.VoucherCodeUsed, reg.CouponCodeUsed)
	}

	var v models.Voucher
	if err := db.First(&v, "event_id = ? AND voucher_code = ?", event.ID, "TENOFF").Error; err != nil {
		t.Fatalf("reload voucher: %v", err)
	}
	if v.UsedCount != 1 {
		t.Fatalf("expected voucher use consumed, got %d", v.UsedCount)
	}

	var coupon models.Coupon
	if err := db.First(&coupon, "external_user_id = ? AND coupon_code = ?", "user-1", "HALF").Error; err != nil {
		t.Fatalf("reload coupon: %v", err)
	}
	if coupon.Status != models.RedemptionStatusUsed {
		t.Fatalf("expected coupon USED, got %s", coupon.Status)
	}
}

func TestRegisterRedeemsPoints(t *testing.T) {
	db := setupTestDB(t)
	svc := NewTicketService(db, NewReferralService(db))
	ledger := NewPointLedgerService(db)
	ctx := context.Background()
	createAttendee(t, db, "user-1")
	event := createEvent(t, db, "organizer-1")
	tt := createTicketType(t, db, event.ID, 20, 10)

	if _, err := ledger.Credit(ctx, "user-1", 1000, "bonus", time.Now().Add(24*time.Hour)); err != nil {
		t.Fatalf("credit: %v", err)
	}

	reg, err := svc.Register(ctx, RegistrationInput{
		EventID:      event.ID,
		TicketTypeID: tt.ID,
		UserID:       "user-1",
		Quantity:     1,
		RedeemPoints: 500,
	})
	if err != nil {
		t.Fatalf("register: %v", err)
	}

	// 500 points at 0.01 each knock 5 off the 20 due.
	if math.Abs(reg.PaidAmount-15) > 1e-9 {
		t.Fatalf("expected paid 15, got %v", reg.PaidAmount)
	}
	if reg.PointsRedeemed != 500 {
		t.Fatalf("expected 500 points recorded, got %d", reg.PointsRedeemed)
	}

	balance, err := ledger.EffectiveBalance(ctx, "user-1", time.Now())
	if err != nil {
		t.Fatalf("effective balance: %v", err)
	}
	if balance != 500 {
		t.Fatalf("expected remaining balance 500, got %d", balance)
	}
}

func TestRegisterPointsFloorAtZero(t *testing.T) {
	db := setupTestDB(t)
	svc := NewTicketService(db, NewReferralService(db))
	ledger := NewPointLedgerService(db)
	ctx := context.Background()
	createAttendee(t, db, "user-1")
	event := createEvent(t, db, "organizer-1")
	tt := createTicketType(t, db, event.ID, 2, 10)

	if _, err := ledger.Credit(ctx, "user-1", 1000, "bonus", time.Now().Add(24*time.Hour)); err != nil {
		t.Fatalf("credit: %v", err)
	}

	// 1000 points are worth 10, the ticket costs 2: paid clamps at 0
	// and the full redemption is still debited.
	reg, err := svc.Register(ctx, RegistrationInput{
		EventID:      event.ID,
		TicketTypeID: tt.ID,
		UserID:       "user-1",
		Quantity:     1,
		RedeemPoints: 1000,
	})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if reg.PaidAmount != 0 {
		t.Fatalf("expected paid 0, got %v", reg.PaidAmount)
	}

	balance, err := ledger.EffectiveBalance(ctx, "user-1", time.Now())
	if err != nil {
		t.Fatalf("effective balance: %v", err)
	}
	if balance != 0 {
		t.Fatalf("expected balance 0, got %d", balance)
	}
}

func TestRegisterRollsBackAsOneUnit(t *testing.T) {
	db := setupTestDB(t)
	svc := NewTicketService(db, NewReferralService(db))
	vouchers := NewVoucherService(db)
	ctx := context.Background()
	createAttendee(t, db, "user-1")
	event := createEvent(t, db, "organizer-1")
	tt := createTicketType(t, db, event.ID, 100, 10)

	now := time.Now()
	if _, err := vouchers.Issue(ctx, event.ID, "TENOFF", floatPtr(10), nil, 5, now.Add(-time.Minute), now.Add(time.Hour)); err != nil {
		t.Fatalf("issue voucher: %v", err)
	}

	// No points credited, so the debit fails after the voucher was
	// consumed inside the transaction.
	_, err := svc.Register(ctx, RegistrationInput{
		EventID:      event.ID,
		TicketTypeID: tt.ID,
		UserID:       "user-1",
		Quantity:     1,
		VoucherCode:  "TENOFF",
		RedeemPoints: 100,
	})
	if !errors.Is(err, ErrInsufficientBalance) {
		t.Fatalf("expected ErrInsufficientBalance, got %v", err)
	}

	var v models.Voucher
	if err := db.First(&v, "event_id = ? AND voucher_code = ?", event.ID, "TENOFF").Error; err != nil {
		t.Fatalf("reload voucher: %v", err)
	}
	if v.UsedCount != 0 {
		t.Fatalf("failed registration must release the voucher use, got %d", v.UsedCount)
	}

	var reloaded models.TicketType
	if err := db.First(&reloaded, "id = ?", tt.ID).Error; err != nil {
		t.Fatalf("reload ticket type: %v", err)
	}
	if reloaded.Sold != 0 {
		t.Fatalf("failed registration must not claim quota, got sold=%d", reloaded.Sold)
	}

	var regs int64
	if err := db.Model(&models.Registration{}).Count(&regs).Error; err != nil {
		t.Fatalf("count registrations: %v", err)
	}
	if regs != 0 {
		t.Fatalf("expected no registration rows, got %d", regs)
	}
}

func TestRegisterWithExpiredVoucherFails(t *testing.T) {
	db := setupTestDB(t)
	svc := NewTicketService(db, NewReferralService(db))
	ctx := context.Background()
	createAttendee(t, db, "user-1")
	event := createEvent(t, db, "organizer-1")
	tt := createTicketType(t, db, event.ID, 100, 10)

	now := time.Now()
	stale := &models.Voucher{
		ID:             uuid.NewString(),
		EventID:        event.ID,
		VoucherCode:    "STALE",
		DiscountAmount: floatPtr(10),
		UsageLimit:     5,
		ValidFrom:      now.Add(-2 * time.Hour),
		ValidUntil:     now.Add(-time.Hour),
		Status:         models.RedemptionStatusActive,
	}
	if err := db.Create(stale).Error; err != nil {
		t.Fatalf("seed voucher: %v", err)
	}

	_, err := svc.Register(ctx, RegistrationInput{
		EventID:      event.ID,
		TicketTypeID: tt.ID,
		UserID:       "user-1",
		Quantity:     1,
		VoucherCode:  "STALE",
	})
	if !errors.Is(err, ErrExpired) {
		t.Fatalf("expected ErrExpired, got %v", err)
	}
}
