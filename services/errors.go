// services/errors.go
package services

import (
	"errors"
	"fmt"

	"github.com/gofiber/fiber/v2"
)

// Domain error kinds returned by the rewards/ledger core. Handlers map
// them to client responses with domainErrorResponse; anything outside
// this taxonomy is treated as a storage failure and never exposed.
var (
	ErrNotFound            = errors.New("no matching active code for this scope")
	ErrExpired             = errors.New("code is outside its validity window")
	ErrExhausted           = errors.New("voucher usage limit reached")
	ErrInsufficientBalance = errors.New("insufficient point balance")
	ErrInvalidReferralCode = errors.New("invalid referral code")
)

// ValidationError marks malformed caller input (no retry).
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string { return e.Msg }

func validationErrorf(format string, args ...interface{}) *ValidationError {
	return &ValidationError{Msg: fmt.Sprintf(format, args...)}
}

// domainErrorResponse translates a domain error into the HTTP reply the
// handler should send. Storage errors get a generic retryable 500.
func domainErrorResponse(c *fiber.Ctx, err error) error {
	var ve *ValidationError
	switch {
	case errors.As(err, &ve):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": ve.Msg})
	case errors.Is(err, ErrNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": ErrNotFound.Error()})
	case errors.Is(err, ErrExpired):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": ErrExpired.Error()})
	case errors.Is(err, ErrExhausted):
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": ErrExhausted.Error()})
	case errors.Is(err, ErrInsufficientBalance):
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": ErrInsufficientBalance.Error()})
	case errors.Is(err, ErrInvalidReferralCode):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": ErrInvalidReferralCode.Error()})
	default:
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "temporary failure, please retry"})
	}
}
