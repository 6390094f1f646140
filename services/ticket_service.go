// services/ticket_service.go
package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"event-ticketing-system/models"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// PointRedemptionValue is how much one redeemed point knocks off the
// order total, in order currency.
const PointRedemptionValue = 0.01

// TicketService manages ticket types and attendee registration.
// Registration is the one flow that composes the rewards core: voucher
// and coupon redemption and point debits all happen inside the same
// transaction that claims the ticket quota.
type TicketService struct {
	DB        *gorm.DB
	Referrals *ReferralService
}

func NewTicketService(db *gorm.DB, referrals *ReferralService) *TicketService {
	return &TicketService{DB: db, Referrals: referrals}
}

// RegistrationInput collects everything an attendee can apply at checkout.
type RegistrationInput struct {
	EventID      string
	TicketTypeID string
	UserID       string
	Quantity     int
	VoucherCode  string
	CouponCode   string
	RedeemPoints int64
}

// Register claims quota and creates the registration row. Quota check,
// voucher/coupon redemption and point debit share one transaction, so
// either the attendee gets the ticket with every discount applied, or
// nothing happened at all.
func (s *TicketService) Register(ctx context.Context, in RegistrationInput) (*models.Registration, error) {
	if in.Quantity <= 0 {
		return nil, validationErrorf("quantity must be positive, got %d", in.Quantity)
	}
	if in.RedeemPoints < 0 {
		return nil, validationErrorf("redeem_points cannot be negative")
	}

	var reg *models.Registration
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var tt models.TicketType
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("id = ? AND event_id = ?", in.TicketTypeID, in.EventID).
			First(&tt).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return err
		}
		if tt.Sold+in.Quantity > tt.Quota {
			return validationErrorf("only %d tickets left for %s", tt.Quota-tt.Sold, tt.Name)
		}

		gross := tt.Price * float64(in.Quantity)
		due := gross

		var voucherUsed, couponUsed string
		if in.VoucherCode != "" {
			v, err := redeemVoucherTx(tx, in.VoucherCode, in.EventID)
			if err != nil {
				return fmt.Errorf("voucher: %w", err)
			}
			due = applyDiscount(due, v.DiscountAmount, v.DiscountPercentage)
			voucherUsed = v.VoucherCode
		}
		if in.CouponCode != "" {
			coupon, err := redeemCouponTx(tx, in.CouponCode, in.UserID)
			if err != nil {
				return fmt.Errorf("coupon: %w", err)
			}
			due = applyDiscount(due, coupon.DiscountAmount, coupon.DiscountPercentage)
			couponUsed = coupon.CouponCode
		}

		if in.RedeemPoints > 0 {
			if _, err := debitTx(tx, in.UserID, in.RedeemPoints, "ticket purchase"); err != nil {
				return err
			}
			due -= float64(in.RedeemPoints) * PointRedemptionValue
			if due < 0 {
				due = 0
			}
		}

		if err := tx.Model(&tt).Update("sold", tt.Sold+in.Quantity).Error; err != nil {
			return err
		}

		reg = &models.Registration{
			ID:              uuid.NewString(),
			EventID:         in.EventID,
			TicketTypeID:    in.TicketTypeID,
			ExternalUserID:  in.UserID,
			Quantity:        in.Quantity,
			GrossAmount:     gross,
			PaidAmount:      due,
			VoucherCodeUsed: voucherUsed,
			CouponCodeUsed:  couponUsed,
			PointsRedeemed:  in.RedeemPoints,
			Status:          "confirmed",
		}
		return tx.Create(reg).Error
	})
	if err != nil {
		return nil, err
	}
	return reg, nil
}

func applyDiscount(amount float64, discountAmount, discountPercentage *float64) float64 {
	switch {
	case discountAmount != nil:
		amount -= *discountAmount
	case discountPercentage != nil:
		amount -= amount * *discountPercentage / 100
	}
	if amount < 0 {
		amount = 0
	}
	return amount
}

// --- Handlers ---

// CreateTicketType adds a ticket tier to an event (organizer only).
func (s *TicketService) CreateTicketType(c *fiber.Ctx) error {
	userID := c.Locals("user_id").(string)
	eventID := c.Params("id")
	if _, err := uuid.Parse(eventID); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid event ID"})
	}

	var event models.Event
	if err := s.DB.First(&event, "id = ?", eventID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Event not found"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "DB error"})
	}
	if event.OrganizerID != userID {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "only the organizer can add ticket types"})
	}

	var req struct {
		Name  string  `json:"name"`
		Price float64 `json:"price"`
		Quota int     `json:"quota"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}
	if req.Name == "" || req.Quota <= 0 || req.Price < 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "name, positive quota and non-negative price are required"})
	}

	tt := &models.TicketType{
		ID:      uuid.NewString(),
		EventID: eventID,
		Name:    req.Name,
		Price:   req.Price,
		Quota:   req.Quota,
	}
	if err := s.DB.Create(tt).Error; err != nil {
		log.Printf("DB Error creating ticket type: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to create ticket type"})
	}
	return c.Status(fiber.StatusCreated).JSON(tt)
}

// ListTicketTypes lists the tiers for an event.
func (s *TicketService) ListTicketTypes(c *fiber.Ctx) error {
	eventID := c.Params("id")
	if _, err := uuid.Parse(eventID); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid event ID"})
	}

	var types []models.TicketType
	if err := s.DB.Where("event_id = ?", eventID).Order("price ASC").Find(&types).Error; err != nil {
		log.Printf("DB Error listing ticket types: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to fetch ticket types"})
	}
	return c.JSON(types)
}

// RegisterForEvent registers the authenticated attendee. A referral
// code may be supplied on a brand-new attendee's first registration; it
// credits the referrer before the purchase transaction runs.
func (s *TicketService) RegisterForEvent(c *fiber.Ctx) error {
	userID := c.Locals("user_id").(string)
	eventID := c.Params("id")
	if _, err := uuid.Parse(eventID); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid event ID"})
	}

	var req struct {
		TicketTypeID string `json:"ticket_type_id"`
		Quantity     int    `json:"quantity"`
		VoucherCode  string `json:"voucher_code"`
		CouponCode   string `json:"coupon_code"`
		RedeemPoints int64  `json:"redeem_points"`
		ReferralCode string `json:"referral_code"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}
	if req.Quantity == 0 {
		req.Quantity = 1
	}

	// The attendee mirror row is normally populated by the sync worker;
	// create a minimal one if this user beat the sync. It doubles as
	// the ledger lock anchor, so it must exist before any debit.
	isNewAttendee, err := s.ensureAttendee(c.UserContext(), userID)
	if err != nil {
		log.Printf("DB Error ensuring attendee %s: %v", userID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to register"})
	}

	// Referral bonus only applies to users new to the platform —
	// anything else would let an attendee farm bonuses per purchase.
	if req.ReferralCode != "" {
		if !isNewAttendee {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "referral codes can only be used on your first registration"})
		}
		if err := s.Referrals.ApplyReferral(c.UserContext(), req.ReferralCode, userID); err != nil {
			if !isDomainError(err) {
				log.Printf("DB Error applying referral during registration: %v", err)
			}
			return domainErrorResponse(c, err)
		}
	}

	reg, err := s.Register(c.UserContext(), RegistrationInput{
		EventID:      eventID,
		TicketTypeID: req.TicketTypeID,
		UserID:       userID,
		Quantity:     req.Quantity,
		VoucherCode:  req.VoucherCode,
		CouponCode:   req.CouponCode,
		RedeemPoints: req.RedeemPoints,
	})
	if err != nil {
		if !isDomainError(err) {
			log.Printf("DB Error registering %s for event %s: %v", userID, eventID, err)
		}
		return domainErrorResponse(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(reg)
}

// ensureAttendee returns whether the row had to be created.
func (s *TicketService) ensureAttendee(ctx context.Context, userID string) (bool, error) {
	var attendee models.AttendeeUser
	err := s.DB.WithContext(ctx).Where("external_user_id = ?", userID).First(&attendee).Error
	if err == nil {
		return false, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return false, err
	}

	attendee = models.AttendeeUser{
		ID:             uuid.NewString(),
		ExternalUserID: userID,
		Username:       userID, // placeholder until the sync worker fills it in
	}
	now := time.Now()
	attendee.LastSeen = &now
	if err := s.DB.WithContext(ctx).Create(&attendee).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return false, nil // lost a benign race with the sync worker
		}
		return false, err
	}
	return true, nil
}
