// services/scheduler.go
package services

import (
	"log"
	"time"

	"event-ticketing-system/models"

	"github.com/go-co-op/gocron/v2"
)

func (s *EventService) StartPublishScheduler() {
	sched, _ := gocron.NewScheduler()
	sched.Start()

	// Every minute: publish scheduled events whose time has come
	_, _ = sched.NewJob(
		gocron.DurationJob(1*time.Minute),
		gocron.NewTask(func() {
			var events []models.Event
			now := time.Now()
			err := s.DB.Where("status = ? AND publish_at <= ?", models.EventStatusScheduled, now).
				Find(&events).Error
			if err != nil {
				log.Printf("[Scheduler] DB error: %v", err)
				return
			}

			for _, e := range events {
				e.Status = models.EventStatusPublished
				e.PublishAt = nil
				if err := s.DB.Save(&e).Error; err != nil {
					log.Printf("[Scheduler] Failed to publish event %s: %v", e.ID, err)
				} else {
					log.Printf("✅ Auto-published event: %s", e.Title)
				}
			}
		}),
	)
}
