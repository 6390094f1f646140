package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"event-ticketing-system/models"
)

func TestCreditValidation(t *testing.T) {
	db := setupTestDB(t)
	ledger := NewPointLedgerService(db)
	ctx := context.Background()
	createAttendee(t, db, "user-1")

	var ve *ValidationError
	if _, err := ledger.Credit(ctx, "user-1", 0, "zero", time.Now().Add(time.Hour)); !errors.As(err, &ve) {
		t.Fatalf("expected ValidationError for zero points, got %v", err)
	}
	if _, err := ledger.Credit(ctx, "user-1", -5, "negative", time.Now().Add(time.Hour)); !errors.As(err, &ve) {
		t.Fatalf("expected ValidationError for negative points, got %v", err)
	}
	if _, err := ledger.Credit(ctx, "user-1", 100, "past expiry", time.Now().Add(-time.Minute)); !errors.As(err, &ve) {
		t.Fatalf("expected ValidationError for past expiry, got %v", err)
	}

	var count int64
	if err := db.Model(&models.PointEntry{}).Count(&count).Error; err != nil {
		t.Fatalf("count entries: %v", err)
	}
	if count != 0 {
		t.Fatalf("rejected credits must append nothing, found %d entries", count)
	}
}

func TestCreditAppendsEntry(t *testing.T) {
	db := setupTestDB(t)
	ledger := NewPointLedgerService(db)
	ctx := context.Background()
	createAttendee(t, db, "user-1")

	expiry := time.Now().Add(24 * time.Hour)
	entry, err := ledger.Credit(ctx, "user-1", 250, "welcome bonus", expiry)
	if err != nil {
		t.Fatalf("credit: %v", err)
	}
	if entry.PointsEarned != 250 || entry.PointsUsed != 0 || entry.Balance != 250 {
		t.Fatalf("unexpected entry shape: earned=%d used=%d balance=%d", entry.PointsEarned, entry.PointsUsed, entry.Balance)
	}

	balance, err := ledger.EffectiveBalance(ctx, "user-1", time.Now())
	if err != nil {
		t.Fatalf("effective balance: %v", err)
	}
	if balance != 250 {
		t.Fatalf("expected balance 250, got %d", balance)
	}
}

func TestEffectiveBalanceExcludesExpired(t *testing.T) {
	db := setupTestDB(t)
	ledger := NewPointLedgerService(db)
	ctx := context.Background()
	createAttendee(t, db, "user-1")

	if _, err := ledger.Credit(ctx, "user-1", 100, "short-lived", time.Now().Add(time.Hour)); err != nil {
		t.Fatalf("credit short-lived: %v", err)
	}
	if _, err := ledger.Credit(ctx, "user-1", 40, "long-lived", time.Now().Add(24*time.Hour)); err != nil {
		t.Fatalf("credit long-lived: %v", err)
	}

	balance, err := ledger.EffectiveBalance(ctx, "user-1", time.Now())
	if err != nil {
		t.Fatalf("effective balance: %v", err)
	}
	if balance != 140 {
		t.Fatalf("expected balance 140 before expiry, got %d", balance)
	}

	// As-of a point past the short-lived expiry, only the long-lived
	// entry counts; the expired row itself stays for audit.
	balance, err = ledger.EffectiveBalance(ctx, "user-1", time.Now().Add(2*time.Hour))
	if err != nil {
		t.Fatalf("effective balance after expiry: %v", err)
	}
	if balance != 40 {
		t.Fatalf("expected balance 40 after expiry, got %d", balance)
	}

	var count int64
	if err := db.Model(&models.PointEntry{}).Where("external_user_id = ?", "user-1").Count(&count).Error; err != nil {
		t.Fatalf("count entries: %v", err)
	}
	if count != 2 {
		t.Fatalf("expired entries must be retained, found %d rows", count)
	}
}

func TestDebitInsufficientBalance(t *testing.T) {
	db := setupTestDB(t)
	ledger := NewPointLedgerService(db)
	ctx := context.Background()
	createAttendee(t, db, "user-1")

	if _, err := ledger.Credit(ctx, "user-1", 100, "bonus", time.Now().Add(24*time.Hour)); err != nil {
		t.Fatalf("credit: %v", err)
	}

	if _, err := ledger.Debit(ctx, "user-1", 150, "overspend"); !errors.Is(err, ErrInsufficientBalance) {
		t.Fatalf("expected ErrInsufficientBalance, got %v", err)
	}

	balance, err := ledger.EffectiveBalance(ctx, "user-1", time.Now())
	if err != nil {
		t.Fatalf("effective balance: %v", err)
	}
	if balance != 100 {
		t.Fatalf("failed debit must not change balance, got %d", balance)
	}
}

func TestDebitNeverDrivesBalanceNegative(t *testing.T) {
	db := setupTestDB(t)
	ledger := NewPointLedgerService(db)
	ctx := context.Background()
	createAttendee(t, db, "user-1")

	if _, err := ledger.Credit(ctx, "user-1", 100, "bonus", time.Now().Add(24*time.Hour)); err != nil {
		t.Fatalf("credit: %v", err)
	}

	// Balance covers only one of these two debits.
	entry, err := ledger.Debit(ctx, "user-1", 80, "first spend")
	if err != nil {
		t.Fatalf("first debit: %v", err)
	}
	if entry.PointsUsed != 80 || entry.Balance != -80 {
		t.Fatalf("unexpected debit entry: used=%d balance=%d", entry.PointsUsed, entry.Balance)
	}

	if _, err := ledger.Debit(ctx, "user-1", 80, "second spend"); !errors.Is(err, ErrInsufficientBalance) {
		t.Fatalf("expected ErrInsufficientBalance on second debit, got %v", err)
	}

	balance, err := ledger.EffectiveBalance(ctx, "user-1", time.Now())
	if err != nil {
		t.Fatalf("effective balance: %v", err)
	}
	if balance != 20 {
		t.Fatalf("expected balance 20, got %d", balance)
	}
}

func TestConcurrentDebitsRespectBalance(t *testing.T) {
	db := setupTestDB(t)
	ledger := NewPointLedgerService(db)
	ctx := context.Background()
	createAttendee(t, db, "user-1")

	if _, err := ledger.Credit(ctx, "user-1", 100, "bonus", time.Now().Add(24*time.Hour)); err != nil {
		t.Fatalf("credit: %v", err)
	}

	// Balance covers exactly one of these debits.
	const attempts = 5
	errs := make(chan error, attempts)
	var wg sync.WaitGroup
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := ledger.Debit(ctx, "user-1", 80, "spend")
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	var won, rejected int
	for err := range errs {
		switch {
		case err == nil:
			won++
		case errors.Is(err, ErrInsufficientBalance):
			rejected++
		default:
			t.Fatalf("unexpected debit error: %v", err)
		}
	}
	if won != 1 || rejected != attempts-1 {
		t.Fatalf("expected exactly one debit to win, got %d wins and %d rejections", won, rejected)
	}

	balance, err := ledger.EffectiveBalance(ctx, "user-1", time.Now())
	if err != nil {
		t.Fatalf("effective balance: %v", err)
	}
	if balance != 20 {
		t.Fatalf("expected balance 20 after one winning debit, got %d", balance)
	}
}

func TestDebitUnknownUser(t *testing.T) {
	db := setupTestDB(t)
	ledger := NewPointLedgerService(db)

	if _, err := ledger.Debit(context.Background(), "ghost", 10, "spend"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for unknown user, got %v", err)
	}
}

func TestLedgerEntriesNeverMutated(t *testing.T) {
	db := setupTestDB(t)
	ledger := NewPointLedgerService(db)
	ctx := context.Background()
	createAttendee(t, db, "user-1")

	credit, err := ledger.Credit(ctx, "user-1", 60, "bonus", time.Now().Add(24*time.Hour))
	if err != nil {
		t.Fatalf("credit: %v", err)
	}
	if _, err := ledger.Debit(ctx, "user-1", 25, "spend"); err != nil {
		t.Fatalf("debit: %v", err)
	}

	var reloaded models.PointEntry
	if err := db.First(&reloaded, "id = ?", credit.ID).Error; err != nil {
		t.Fatalf("reload credit entry: %v", err)
	}
	if reloaded.PointsEarned != 60 || reloaded.PointsUsed != 0 || reloaded.Balance != 60 {
		t.Fatalf("credit entry was mutated: earned=%d used=%d balance=%d",
			reloaded.PointsEarned, reloaded.PointsUsed, reloaded.Balance)
	}
}
