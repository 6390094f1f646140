// services/code_generator.go
package services

import (
	"context"
	"crypto/rand"

	"event-ticketing-system/models"

	"gorm.io/gorm"
)

const (
	referralCodeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	referralCodeLength   = 8
)

// randomReferralCode draws one fixed-length candidate from the code
// alphabet. Drawing and persisting are separate steps — a drawn code is
// not reserved until the caller writes it.
//
// Bytes at or above the largest multiple of the alphabet size are
// rejected so every character is equally likely.
func randomReferralCode() (string, error) {
	limit := 256 - 256%len(referralCodeAlphabet)
	out := make([]byte, 0, referralCodeLength)
	buf := make([]byte, referralCodeLength)
	for len(out) < referralCodeLength {
		if _, err := rand.Read(buf); err != nil {
			return "", err
		}
		for _, b := range buf {
			if int(b) >= limit {
				continue
			}
			out = append(out, referralCodeAlphabet[int(b)%len(referralCodeAlphabet)])
			if len(out) == referralCodeLength {
				break
			}
		}
	}
	return string(out), nil
}

// generateReferralCode draws until it finds a code not yet issued.
// Collision is the retry trigger, not an error; only a failing
// existence check propagates. Each attempt costs one indexed lookup,
// which also yields to the scheduler, so the loop cannot spin hot.
// The unique index on referral_codes.code still backs the race where
// two generators return the same draw before either persists it.
func generateReferralCode(ctx context.Context, db *gorm.DB) (string, error) {
	for {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		code, err := randomReferralCode()
		if err != nil {
			return "", err
		}
		var count int64
		if err := db.WithContext(ctx).
			Model(&models.ReferralCode{}).
			Where("code = ?", code).
			Count(&count).Error; err != nil {
			return "", err
		}
		if count == 0 {
			return code, nil
		}
	}
}
