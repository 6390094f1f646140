// services/voucher_service.go
package services

import (
	"context"
	"errors"
	"log"
	"strings"
	"time"

	"event-ticketing-system/models"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// VoucherService issues and redeems event-scoped discount vouchers.
type VoucherService struct {
	DB *gorm.DB
}

func NewVoucherService(db *gorm.DB) *VoucherService {
	return &VoucherService{DB: db}
}

// validateDiscountWindow enforces the shared issue rules for vouchers
// and coupons.
func validateDiscountWindow(amount, percentage *float64, validFrom, validUntil time.Time) error {
	if !validFrom.Before(validUntil) {
		return validationErrorf("valid_from must precede valid_until")
	}
	if amount == nil && percentage == nil {
		return validationErrorf("either discount_amount or discount_percentage is required")
	}
	if amount != nil && *amount <= 0 {
		return validationErrorf("discount_amount must be positive")
	}
	if percentage != nil && (*percentage <= 0 || *percentage > 100) {
		return validationErrorf("discount_percentage must be in (0,100], got %v", *percentage)
	}
	return nil
}

// Issue creates a voucher for an event.
func (s *VoucherService) Issue(ctx context.Context, eventID, code string, amount, percentage *float64, usageLimit int, validFrom, validUntil time.Time) (*models.Voucher, error) {
	if err := validateDiscountWindow(amount, percentage, validFrom, validUntil); err != nil {
		return nil, err
	}
	if usageLimit <= 0 {
		return nil, validationErrorf("usage_limit must be positive, got %d", usageLimit)
	}
	code = strings.ToUpper(strings.TrimSpace(code))
	if code == "" {
		return nil, validationErrorf("voucher_code is required")
	}

	v := &models.Voucher{
		ID:                 uuid.NewString(),
		EventID:            eventID,
		VoucherCode:        code,
		DiscountAmount:     amount,
		DiscountPercentage: percentage,
		UsageLimit:         usageLimit,
		ValidFrom:          validFrom,
		ValidUntil:         validUntil,
		Status:             models.RedemptionStatusActive,
	}
	if err := s.DB.WithContext(ctx).Create(v).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, validationErrorf("voucher code %s already exists for this event", code)
		}
		return nil, err
	}
	return v, nil
}

// Redeem consumes one use of a voucher for the given event.
func (s *VoucherService) Redeem(ctx context.Context, code, eventID string) (*models.Voucher, error) {
	var v *models.Voucher
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var txErr error
		v, txErr = redeemVoucherTx(tx, code, eventID)
		return txErr
	})
	if err != nil {
		if errors.Is(err, ErrExpired) {
			// Cache the observation outside the rolled-back unit. Reads
			// recompute the window; this column is display-only.
			s.cacheExpiredStatus(ctx, code, eventID)
		}
		return nil, err
	}
	return v, nil
}

// redeemVoucherTx performs the check-then-increment under the caller's
// transaction with a row lock, so concurrent redemptions of the same
// code serialize and usage never overshoots the limit.
func redeemVoucherTx(tx *gorm.DB, code, eventID string) (*models.Voucher, error) {
	code = strings.ToUpper(strings.TrimSpace(code))

	var v models.Voucher
	if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("event_id = ? AND voucher_code = ?", eventID, code).
		First(&v).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	now := time.Now()
	if now.Before(v.ValidFrom) || !now.Before(v.ValidUntil) {
		return nil, ErrExpired
	}
	if v.UsedCount >= v.UsageLimit {
		return nil, ErrExhausted
	}

	updates := map[string]interface{}{"used_count": v.UsedCount + 1}
	if v.UsedCount+1 >= v.UsageLimit {
		updates["status"] = models.RedemptionStatusUsed
	}
	if err := tx.Model(&v).Updates(updates).Error; err != nil {
		return nil, err
	}

	v.UsedCount++
	if v.UsedCount >= v.UsageLimit {
		v.Status = models.RedemptionStatusUsed
	}
	return &v, nil
}

// cacheExpiredStatus only fires once the window has closed. An attempt
// before valid_from also reports ErrExpired, but that voucher becomes
// redeemable later and must keep its ACTIVE status.
func (s *VoucherService) cacheExpiredStatus(ctx context.Context, code, eventID string) {
	err := s.DB.WithContext(ctx).Model(&models.Voucher{}).
		Where("event_id = ? AND voucher_code = ? AND status = ? AND valid_until <= ?",
			eventID, strings.ToUpper(strings.TrimSpace(code)), models.RedemptionStatusActive, time.Now()).
		Update("status", models.RedemptionStatusExpired).Error
	if err != nil {
		log.Printf("Failed to cache EXPIRED status for voucher %s: %v", code, err)
	}
}

// ListActive returns the vouchers redeemable for an event as of the
// given instant. The window and usage filters are recomputed in the
// query — the cached status column is never trusted for this.
func (s *VoucherService) ListActive(ctx context.Context, eventID string, asOf time.Time) ([]models.Voucher, error) {
	var vouchers []models.Voucher
	err := s.DB.WithContext(ctx).
		Where("event_id = ? AND valid_from <= ? AND valid_until > ? AND used_count < usage_limit AND status = ?",
			eventID, asOf, asOf, models.RedemptionStatusActive).
		Order("valid_until ASC").
		Find(&vouchers).Error
	if err != nil {
		return nil, err
	}
	return vouchers, nil
}

// --- Handlers ---

// CreateVoucher issues a voucher for an event (organizer only).
func (s *VoucherService) CreateVoucher(c *fiber.Ctx) error {
	eventID := c.Params("id")
	if _, err := uuid.Parse(eventID); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid event ID"})
	}

	var req struct {
		VoucherCode        string    `json:"voucher_code"`
		DiscountAmount     *float64  `json:"discount_amount"`
		DiscountPercentage *float64  `json:"discount_percentage"`
		UsageLimit         int       `json:"usage_limit"`
		ValidFrom          time.Time `json:"valid_from"`
		ValidUntil         time.Time `json:"valid_until"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}

	userID := c.Locals("user_id").(string)
	var event models.Event
	if err := s.DB.First(&event, "id = ?", eventID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Event not found"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "DB error"})
	}
	if event.OrganizerID != userID {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "only the organizer can issue vouchers"})
	}

	v, err := s.Issue(c.UserContext(), eventID, req.VoucherCode, req.DiscountAmount, req.DiscountPercentage, req.UsageLimit, req.ValidFrom, req.ValidUntil)
	if err != nil {
		return domainErrorResponse(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(v)
}

// ListEventVouchers lists the currently redeemable vouchers for an event.
func (s *VoucherService) ListEventVouchers(c *fiber.Ctx) error {
	eventID := c.Params("id")
	if _, err := uuid.Parse(eventID); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid event ID"})
	}

	vouchers, err := s.ListActive(c.UserContext(), eventID, time.Now())
	if err != nil {
		log.Printf("DB Error listing vouchers for event %s: %v", eventID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to fetch vouchers"})
	}
	return c.JSON(vouchers)
}

// RedeemVoucher consumes one voucher use outside the checkout flow
// (e.g. door discounts).
func (s *VoucherService) RedeemVoucher(c *fiber.Ctx) error {
	eventID := c.Params("id")
	code := c.Params("code")
	if _, err := uuid.Parse(eventID); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid event ID"})
	}

	v, err := s.Redeem(c.UserContext(), code, eventID)
	if err != nil {
		if !isDomainError(err) {
			log.Printf("DB Error redeeming voucher %s for event %s: %v", code, eventID, err)
		}
		return domainErrorResponse(c, err)
	}
	return c.JSON(fiber.Map{"message": "voucher redeemed", "voucher": v})
}

// isDomainError reports whether err belongs to the rewards taxonomy
// (as opposed to a storage failure worth logging).
func isDomainError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve) ||
		errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrExpired) ||
		errors.Is(err, ErrExhausted) ||
		errors.Is(err, ErrInsufficientBalance) ||
		errors.Is(err, ErrInvalidReferralCode)
}
