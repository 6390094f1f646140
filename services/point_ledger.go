// services/point_ledger.go
package services

import (
	"context"
	"errors"
	"log"
	"strconv"
	"time"

	"event-ticketing-system/models"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// PointLedgerService tracks per-user point balances as an append-only
// transaction log. Balances are derived reads (sum over non-expired
// entries), never a mutable column, so concurrent credits and debits
// compose without lost updates.
type PointLedgerService struct {
	DB *gorm.DB
}

func NewPointLedgerService(db *gorm.DB) *PointLedgerService {
	return &PointLedgerService{DB: db}
}

// Credit appends an earning entry for the user.
func (s *PointLedgerService) Credit(ctx context.Context, userID string, points int64, description string, expiresAt time.Time) (*models.PointEntry, error) {
	var entry *models.PointEntry
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var txErr error
		entry, txErr = creditTx(tx, userID, points, description, expiresAt)
		return txErr
	})
	if err != nil {
		return nil, err
	}
	return entry, nil
}

// creditTx is the in-transaction credit used by Credit and by the
// referral engine, which must append inside its own atomic unit.
func creditTx(tx *gorm.DB, userID string, points int64, description string, expiresAt time.Time) (*models.PointEntry, error) {
	if points <= 0 {
		return nil, validationErrorf("points must be positive, got %d", points)
	}
	if !expiresAt.After(time.Now()) {
		return nil, validationErrorf("expiry must be in the future")
	}
	entry := &models.PointEntry{
		ID:             uuid.NewString(),
		ExternalUserID: userID,
		PointsEarned:   points,
		PointsUsed:     0,
		Balance:        points,
		Description:    description,
		ExpiresAt:      expiresAt,
	}
	if err := tx.Create(entry).Error; err != nil {
		return nil, err
	}
	return entry, nil
}

// Debit appends a spending entry if the user's effective balance covers
// it. Check and append run under one transaction that locks the
// attendee row, so two concurrent debits cannot both pass the check
// against a stale balance.
func (s *PointLedgerService) Debit(ctx context.Context, userID string, points int64, description string) (*models.PointEntry, error) {
	var entry *models.PointEntry
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var txErr error
		entry, txErr = debitTx(tx, userID, points, description)
		return txErr
	})
	if err != nil {
		return nil, err
	}
	return entry, nil
}

func debitTx(tx *gorm.DB, userID string, points int64, description string) (*models.PointEntry, error) {
	if points <= 0 {
		return nil, validationErrorf("points must be positive, got %d", points)
	}

	// Serialize this user's ledger writes on their attendee row.
	var attendee models.AttendeeUser
	if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("external_user_id = ?", userID).
		First(&attendee).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	balance, err := sumBalance(tx, userID, time.Now())
	if err != nil {
		return nil, err
	}
	if balance < points {
		return nil, ErrInsufficientBalance
	}

	entry := &models.PointEntry{
		ID:             uuid.NewString(),
		ExternalUserID: userID,
		PointsEarned:   0,
		PointsUsed:     points,
		Balance:        -points,
		Description:    description,
		ExpiresAt:      farFuture(),
	}
	if err := tx.Create(entry).Error; err != nil {
		return nil, err
	}
	return entry, nil
}

// EffectiveBalance sums the non-expired entries for a user as of the
// given instant. Read-only, safe to retry.
func (s *PointLedgerService) EffectiveBalance(ctx context.Context, userID string, asOf time.Time) (int64, error) {
	return sumBalance(s.DB.WithContext(ctx), userID, asOf)
}

func sumBalance(tx *gorm.DB, userID string, asOf time.Time) (int64, error) {
	var total int64
	err := tx.Model(&models.PointEntry{}).
		Where("external_user_id = ? AND expires_at > ?", userID, asOf).
		Select("COALESCE(SUM(balance), 0)").
		Scan(&total).Error
	if err != nil {
		return 0, err
	}
	return total, nil
}

// farFuture is the expiry stamped on debit entries. A spend never
// "expires back" into the balance, so it must outlive every credit it
// offsets.
func farFuture() time.Time {
	return time.Date(9999, 1, 1, 0, 0, 0, 0, time.UTC)
}

// --- User Handlers ---

// GetPointBalance returns the authenticated user's effective balance.
func (s *PointLedgerService) GetPointBalance(c *fiber.Ctx) error {
	userID := c.Locals("user_id").(string)

	balance, err := s.EffectiveBalance(c.UserContext(), userID, time.Now())
	if err != nil {
		log.Printf("DB Error summing balance for %s: %v", userID, err)
		return domainErrorResponse(c, err)
	}

	return c.JSON(fiber.Map{"user_id": userID, "balance": balance})
}

// GetPointHistory lists the authenticated user's ledger entries, newest
// first. Expired entries are included — the ledger is an audit trail.
func (s *PointLedgerService) GetPointHistory(c *fiber.Ctx) error {
	userID := c.Locals("user_id").(string)

	limit := 50
	if limitStr := c.Query("limit"); limitStr != "" {
		l, err := strconv.Atoi(limitStr)
		if err != nil || l <= 0 || l > 200 {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid limit parameter"})
		}
		limit = l
	}

	var entries []models.PointEntry
	if err := s.DB.WithContext(c.UserContext()).
		Where("external_user_id = ?", userID).
		Order("created_at DESC").
		Limit(limit).
		Find(&entries).Error; err != nil {
		log.Printf("DB Error fetching point history: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to fetch point history"})
	}

	return c.JSON(entries)
}

// --- Admin Handlers ---

// AwardPoints credits an arbitrary user (Admin only).
func (s *PointLedgerService) AwardPoints(c *fiber.Ctx) error {
	var req struct {
		UserID      string     `json:"user_id"`
		Points      int64      `json:"points"`
		Description string     `json:"description"`
		ExpiresAt   *time.Time `json:"expires_at"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}
	if req.UserID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "user_id is required"})
	}

	expiresAt := time.Now().Add(365 * 24 * time.Hour)
	if req.ExpiresAt != nil {
		expiresAt = *req.ExpiresAt
	}
	description := req.Description
	if description == "" {
		description = "manual award"
	}

	entry, err := s.Credit(c.UserContext(), req.UserID, req.Points, description, expiresAt)
	if err != nil {
		log.Printf("DB Error awarding points to %s: %v", req.UserID, err)
		return domainErrorResponse(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(entry)
}
