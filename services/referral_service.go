// services/referral_service.go
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
)

const (
	// ReferralBonusPoints is credited to the referrer for every new
	// user who signs up with their code.
	ReferralBonusPoints int64 = 500

	referralBonusValidity = 90 * 24 * time.Hour
)

// ReferralService issues personal referral codes and credits referrers
// when a new user registers with one.
type ReferralService struct {
	DB *gorm.DB
}

func NewReferralService(db *gorm.DB) *ReferralService {
	return &ReferralService{DB: db}
}

// EnsureReferralCode returns the user's referral code, issuing one on
// first call. Safe under concurrent callers: losing either uniqueness
// race (per-user or per-code) falls back to re-fetch or a fresh draw.
func (s *ReferralService) EnsureReferralCode(ctx context.Context, userID string) (*models.ReferralCode, error) {
	var rc models.ReferralCode
	err := s.DB.WithContext(ctx).Where("external_user_id = ?", userID).First(&rc).Error
	if err == nil {
		return &rc, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	for {
		code, err := generateReferralCode(ctx, s.DB)
		if err != nil {
			return nil, err
		}
		rc = models.ReferralCode{
			ID:             uuid.NewString(),
			Code:           code,
			ExternalUserID: userID,
		}
		if createErr := s.DB.WithContext(ctx).Create(&rc).Error; createErr != nil {
			if errors.Is(createErr, gorm.ErrDuplicatedKey) {
				// Either another worker issued this user's code first,
				// or our draw lost the code-uniqueness race.
				var existing models.ReferralCode
				if err := s.DB.WithContext(ctx).Where("external_user_id = ?", userID).First(&existing).Error; err == nil {
					return &existing, nil
				}
				continue
			}
			return nil, createErr
		}
		return &rc, nil
	}
}

// ApplyReferral credits the owner of code for referring newUserID.
// Lookup, self-referral check and credit run inside one transaction, so
// no partial state is observable if any step fails. Repeat referrals by
// distinct new users each credit again; only self-referral is blocked.
func (s *ReferralService) ApplyReferral(ctx context.Context, code, newUserID string) error {
	code = strings.ToUpper(strings.TrimSpace(code))
	if len(code) != referralCodeLength {
		return ErrInvalidReferralCode
	}

	return s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var rc models.ReferralCode
		if err := tx.Where("code = ?", code).First(&rc).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrInvalidReferralCode
			}
			return err
		}

		// Code lookup alone does not catch a user submitting their own
		// code, so reject it explicitly before crediting.
		if rc.ExternalUserID == newUserID {
			return ErrInvalidReferralCode
		}

		_, err := creditTx(tx, rc.ExternalUserID, ReferralBonusPoints, "referral bonus", time.Now().Add(referralBonusValidity))
		return err
	})
}

// --- User Handlers ---

// GetMyReferralCode returns (issuing on demand) the caller's code.
func (s *ReferralService) GetMyReferralCode(c *fiber.Ctx) error {
	userID := c.Locals("user_id").(string)

	rc, err := s.EnsureReferralCode(c.UserContext(), userID)
	if err != nil {
		log.Printf("DB Error ensuring referral code for %s: %v", userID, err)
		return domainErrorResponse(c, err)
	}

	return c.JSON(fiber.Map{"code": rc.Code, "created_at": rc.CreatedAt})
}

// ApplyReferralCode credits the referrer behind the submitted code.
// Meant to be called once from the signup flow of a brand-new user.
func (s *ReferralService) ApplyReferralCode(c *fiber.Ctx) error {
	userID := c.Locals("user_id").(string)

	var req struct {
		Code string `json:"code"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}

	if err := s.ApplyReferral(c.UserContext(), req.Code, userID); err != nil {
		if !errors.Is(err, ErrInvalidReferralCode) {
			log.Printf("DB Error applying referral %q for %s: %v", req.Code, userID, err)
		}
		return domainErrorResponse(c, err)
	}

	return c.JSON(fiber.Map{"message": "referral applied", "bonus": ReferralBonusPoints})
}
