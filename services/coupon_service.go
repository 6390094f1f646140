// services/coupon_service.go
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

// CouponService tracks user-scoped single-use coupons.
type CouponService struct {
	DB *gorm.DB
}

func NewCouponService(db *gorm.DB) *CouponService {
	return &CouponService{DB: db}
}

// Issue creates a coupon for a user.
func (s *CouponService) Issue(ctx context.Context, userID, code string, amount, percentage *float64, validFrom, validUntil time.Time) (*models.Coupon, error) {
	if err := validateDiscountWindow(amount, percentage, validFrom, validUntil); err != nil {
		return nil, err
	}
	code = strings.ToUpper(strings.TrimSpace(code))
	if code == "" {
		return nil, validationErrorf("coupon_code is required")
	}

	coupon := &models.Coupon{
		ID:                 uuid.NewString(),
		ExternalUserID:     userID,
		CouponCode:         code,
		DiscountAmount:     amount,
		DiscountPercentage: percentage,
		ValidFrom:          validFrom,
		ValidUntil:         validUntil,
		Status:             models.RedemptionStatusActive,
	}
	if err := s.DB.WithContext(ctx).Create(coupon).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, validationErrorf("coupon code %s already exists for this user", code)
		}
		return nil, err
	}
	return coupon, nil
}

// Redeem flips a coupon to USED. A coupon that was already consumed is
// indistinguishable from a missing one — both are ErrNotFound.
func (s *CouponService) Redeem(ctx context.Context, code, userID string) (*models.Coupon, error) {
	var coupon *models.Coupon
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var txErr error
		coupon, txErr = redeemCouponTx(tx, code, userID)
		return txErr
	})
	if err != nil {
		if errors.Is(err, ErrExpired) {
			s.cacheExpiredStatus(ctx, code, userID)
		}
		return nil, err
	}
	return coupon, nil
}

func redeemCouponTx(tx *gorm.DB, code, userID string) (*models.Coupon, error) {
	code = strings.ToUpper(strings.TrimSpace(code))

	var coupon models.Coupon
	if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("external_user_id = ? AND coupon_code = ?", userID, code).
		First(&coupon).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	if coupon.Status == models.RedemptionStatusUsed {
		return nil, ErrNotFound
	}
	now := time.Now()
	if now.Before(coupon.ValidFrom) || !now.Before(coupon.ValidUntil) {
		return nil, ErrExpired
	}

	if err := tx.Model(&coupon).Update("status", models.RedemptionStatusUsed).Error; err != nil {
		return nil, err
	}
	coupon.Status = models.RedemptionStatusUsed
	return &coupon, nil
}

// cacheExpiredStatus only fires once the window has closed. An attempt
// before valid_from also reports ErrExpired, but that coupon becomes
// redeemable later and must keep its ACTIVE status.
func (s *CouponService) cacheExpiredStatus(ctx context.Context, code, userID string) {
	err := s.DB.WithContext(ctx).Model(&models.Coupon{}).
		Where("external_user_id = ? AND coupon_code = ? AND status = ? AND valid_until <= ?",
			userID, strings.ToUpper(strings.TrimSpace(code)), models.RedemptionStatusActive, time.Now()).
		Update("status", models.RedemptionStatusExpired).Error
	if err != nil {
		log.Printf("Failed to cache EXPIRED status for coupon %s: %v", code, err)
	}
}

// ListActive returns the coupons a user can still redeem as of the
// given instant.
func (s *CouponService) ListActive(ctx context.Context, userID string, asOf time.Time) ([]models.Coupon, error) {
	var coupons []models.Coupon
	err := s.DB.WithContext(ctx).
		Where("external_user_id = ? AND valid_from <= ? AND valid_until > ? AND status = ?",
			userID, asOf, asOf, models.RedemptionStatusActive).
		Order("valid_until ASC").
		Find(&coupons).Error
	if err != nil {
		return nil, err
	}
	return coupons, nil
}

// --- User Handlers ---

// GetMyCoupons lists the authenticated user's active coupons.
func (s *CouponService) GetMyCoupons(c *fiber.Ctx) error {
	userID := c.Locals("user_id").(string)

	coupons, err := s.ListActive(c.UserContext(), userID, time.Now())
	if err != nil {
		log.Printf("DB Error listing coupons for %s: %v", userID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to fetch coupons"})
	}
	return c.JSON(coupons)
}

// RedeemMyCoupon consumes one of the caller's coupons.
func (s *CouponService) RedeemMyCoupon(c *fiber.Ctx) error {
	userID := c.Locals("user_id").(string)
	code := c.Params("code")

	coupon, err := s.Redeem(c.UserContext(), code, userID)
	if err != nil {
		if !isDomainError(err) {
			log.Printf("DB Error redeeming coupon %s for %s: %v", code, userID, err)
		}
		return domainErrorResponse(c, err)
	}
	return c.JSON(fiber.Map{"message": "coupon redeemed", "coupon": coupon})
}

// --- Admin Handlers ---

// CreateCoupon issues a coupon to a user (Admin only).
func (s *CouponService) CreateCoupon(c *fiber.Ctx) error {
	var req struct {
		UserID             string    `json:"user_id"`
		CouponCode         string    `json:"coupon_code"`
		DiscountAmount     *float64  `json:"discount_amount"`
		DiscountPercentage *float64  `json:"discount_percentage"`
		ValidFrom          time.Time `json:"valid_from"`
		ValidUntil         time.Time `json:"valid_until"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}
	if req.UserID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "user_id is required"})
	}

	coupon, err := s.Issue(c.UserContext(), req.UserID, req.CouponCode, req.DiscountAmount, req.DiscountPercentage, req.ValidFrom, req.ValidUntil)
	if err != nil {
		return domainErrorResponse(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(coupon)
}
