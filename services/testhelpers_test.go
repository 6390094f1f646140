package services

import (
	"fmt"
	"testing"
	"time"

	"event-ticketing-system/models"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{TranslateError: true})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := models.AutoMigrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	// sqlite has no row locks; a single connection makes concurrent
	// transactions queue the way FOR UPDATE serializes them in postgres.
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("unwrap sql.DB: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	return db
}

func createAttendee(t *testing.T, db *gorm.DB, externalID string) *models.AttendeeUser {
	t.Helper()
	attendee := &models.AttendeeUser{
		ID:             uuid.NewString(),
		ExternalUserID: externalID,
		Username:       externalID,
	}
	if err := db.Create(attendee).Error; err != nil {
		t.Fatalf("create attendee %s: %v", externalID, err)
	}
	return attendee
}

func createEvent(t *testing.T, db *gorm.DB, organizerID string) *models.Event {
	t.Helper()
	now := time.Now()
	event := &models.Event{
		ID:          uuid.NewString(),
		OrganizerID: organizerID,
		Title:       "Test Conference",
		Slug:        "test-conference-" + uuid.NewString()[:8],
		StartsAt:    now.Add(30 * 24 * time.Hour),
		EndsAt:      now.Add(31 * 24 * time.Hour),
		Status:      models.EventStatusPublished,
	}
	if err := db.Create(event).Error; err != nil {
		t.Fatalf("create event: %v", err)
	}
	return event
}

func floatPtr(v float64) *float64 { return &v }
