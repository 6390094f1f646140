// services/event_service.go
package services

import (
	"errors"
	"fmt"
	"log"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"event-ticketing-system/models"
	"event-ticketing-system/utils"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/gosimple/slug"
	"gorm.io/gorm"
)

type EventService struct {
	DB *gorm.DB
}

func NewEventService(db *gorm.DB) *EventService {
	return &EventService{DB: db}
}

// uniqueSlug derives a URL slug from the title and de-duplicates it
// against existing events by appending a short suffix.
func (s *EventService) uniqueSlug(title string) (string, error) {
	base := slug.Make(title)
	if base == "" {
		base = "event"
	}
	candidate := base
	for i := 0; ; i++ {
		var count int64
		if err := s.DB.Model(&models.Event{}).Where("slug = ?", candidate).Count(&count).Error; err != nil {
			return "", err
		}
		if count == 0 {
			return candidate, nil
		}
		candidate = fmt.Sprintf("%s-%s", base, uuid.NewString()[:8])
		if i >= 5 {
			return "", fmt.Errorf("could not derive unique slug for %q", title)
		}
	}
}

// CreateEvent creates a new event owned by the authenticated organizer.
func (s *EventService) CreateEvent(c *fiber.Ctx) error {
	userID := c.Locals("user_id").(string)

	var req struct {
		Title       string     `json:"title"`
		Description string     `json:"description"`
		Venue       string     `json:"venue"`
		City        string     `json:"city"`
		Capacity    int        `json:"capacity"`
		StartsAt    time.Time  `json:"starts_at"`
		EndsAt      time.Time  `json:"ends_at"`
		Status      string     `json:"status"`
		PublishAt   *time.Time `json:"publish_at"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}

	if strings.TrimSpace(req.Title) == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "title is required"})
	}
	if !req.StartsAt.Before(req.EndsAt) {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "starts_at must precede ends_at"})
	}
	status := req.Status
	switch status {
	case "":
		status = models.EventStatusDraft
	case models.EventStatusDraft, models.EventStatusPublished:
		// ok
	case models.EventStatusScheduled:
		if req.PublishAt == nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "publish_at is required for scheduled events"})
		}
	default:
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid status"})
	}

	eventSlug, err := s.uniqueSlug(req.Title)
	if err != nil {
		log.Printf("DB Error deriving slug: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to create event"})
	}

	event := &models.Event{
		ID:          uuid.NewString(),
		OrganizerID: userID,
		Title:       req.Title,
		Slug:        eventSlug,
		Description: req.Description,
		Venue:       req.Venue,
		City:        req.City,
		Capacity:    req.Capacity,
		StartsAt:    req.StartsAt,
		EndsAt:      req.EndsAt,
		Status:      status,
		PublishAt:   req.PublishAt,
	}

	if err := s.DB.Create(event).Error; err != nil {
		log.Printf("DB Error creating event: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to create event"})
	}

	return c.Status(fiber.StatusCreated).JSON(event)
}

// UploadEventBanner stores the banner image in R2 and saves its public URL.
func (s *EventService) UploadEventBanner(c *fiber.Ctx) error {
	userID := c.Locals("user_id").(string)
	id := c.Params("id")
	if _, err := uuid.Parse(id); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid event ID"})
	}

	var event models.Event
	if err := s.DB.First(&event, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Event not found"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "DB error"})
	}
	if event.OrganizerID != userID {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "only the organizer can update this event"})
	}

	bannerFile, err := c.FormFile("banner")
	if err != nil || bannerFile.Size == 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "banner file is required"})
	}

	bannerExt := filepath.Ext(bannerFile.Filename)
	if bannerExt == "" {
		bannerExt = ".jpg"
	}
	bannerKey := "banners/" + uuid.NewString() + bannerExt
	bannerURL, err := utils.UploadFileToR2(bannerFile, bannerKey)
	if err != nil {
		log.Printf("R2 Error uploading banner for event %s: %v", id, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to upload banner"})
	}

	if err := s.DB.Model(&event).Update("banner_url", bannerURL).Error; err != nil {
		log.Printf("DB Error saving banner URL: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to update event"})
	}

	return c.JSON(fiber.Map{"message": "banner uploaded", "banner_url": bannerURL})
}

// GetEvents lists published events with optional text search.
func (s *EventService) GetEvents(c *fiber.Ctx) error {
	query := c.Query("q", "")
	limitStr := c.Query("limit", "50")
	limit, err := strconv.Atoi(limitStr)
	if err != nil || limit <= 0 || limit > 100 {
		limit = 50
	}

	db := s.DB.Model(&models.Event{}).
		Where("status = ?", models.EventStatusPublished).
		Limit(limit).
		Order("starts_at ASC")

	if query != "" {
		searchTerm := "%" + strings.ToLower(strings.TrimSpace(query)) + "%"
		db = db.Where("LOWER(title) LIKE ? OR LOWER(city) LIKE ?", searchTerm, searchTerm)
	}

	var events []models.Event
	if err := db.Find(&events).Error; err != nil {
		return c.Status(500).JSON(fiber.Map{"error": "search failed", "details": err.Error()})
	}
	return c.JSON(events)
}

// GetEventByID fetches one event by UUID or slug, with ticket types.
func (s *EventService) GetEventByID(c *fiber.Ctx) error {
	id := c.Params("id")

	db := s.DB.Preload("TicketTypes")
	var event models.Event
	var err error
	if _, parseErr := uuid.Parse(id); parseErr == nil {
		err = db.First(&event, "id = ?", id).Error
	} else {
		err = db.First(&event, "slug = ?", id).Error
	}
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Event not found"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "DB error"})
	}
	return c.JSON(event)
}

// UpdateEvent applies a partial update (organizer only).
func (s *EventService) UpdateEvent(c *fiber.Ctx) error {
	userID := c.Locals("user_id").(string)
	id := c.Params("id")
	if _, err := uuid.Parse(id); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid event ID"})
	}

	var event models.Event
	if err := s.DB.First(&event, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Event not found"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "DB error"})
	}
	if event.OrganizerID != userID {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "only the organizer can update this event"})
	}

	var req struct {
		Title       *string    `json:"title"`
		Description *string    `json:"description"`
		Venue       *string    `json:"venue"`
		City        *string    `json:"city"`
		Capacity    *int       `json:"capacity"`
		StartsAt    *time.Time `json:"starts_at"`
		EndsAt      *time.Time `json:"ends_at"`
		Status      *string    `json:"status"`
		PublishAt   *time.Time `json:"publish_at"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}

	if req.Title != nil {
		event.Title = *req.Title
	}
	if req.Description != nil {
		event.Description = *req.Description
	}
	if req.Venue != nil {
		event.Venue = *req.Venue
	}
	if req.City != nil {
		event.City = *req.City
	}
	if req.Capacity != nil {
		event.Capacity = *req.Capacity
	}
	if req.StartsAt != nil {
		event.StartsAt = *req.StartsAt
	}
	if req.EndsAt != nil {
		event.EndsAt = *req.EndsAt
	}
	if req.Status != nil {
		switch *req.Status {
		case models.EventStatusDraft, models.EventStatusScheduled, models.EventStatusPublished, models.EventStatusArchived:
			event.Status = *req.Status
		default:
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid status"})
		}
	}
	if req.PublishAt != nil {
		event.PublishAt = req.PublishAt
	}
	if !event.StartsAt.Before(event.EndsAt) {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "starts_at must precede ends_at"})
	}

	if err := s.DB.Save(&event).Error; err != nil {
		log.Printf("DB Error updating event %s: %v", id, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to update event"})
	}
	return c.JSON(event)
}

// DeleteEvent soft-deletes an event (organizer only). Ledger entries
// funded through this event are untouched — they reference users, not
// events, and must outlive the promotion that funded them.
func (s *EventService) DeleteEvent(c *fiber.Ctx) error {
	userID := c.Locals("user_id").(string)
	id := c.Params("id")
	if _, err := uuid.Parse(id); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid event ID"})
	}

	var event models.Event
	if err := s.DB.First(&event, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Event not found"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "DB error"})
	}
	if event.OrganizerID != userID {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "only the organizer can delete this event"})
	}

	if err := s.DB.Delete(&event).Error; err != nil {
		log.Printf("DB Error deleting event %s: %v", id, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to delete event"})
	}
	return c.JSON(fiber.Map{"message": "Event deleted successfully"})
}
