// handlers/event_routes.go
package handlers

import (
	"event-ticketing-system/middleware"
	"event-ticketing-system/services"

	"github.com/gofiber/fiber/v2"
)

func SetupEventRoutes(app *fiber.App, eventService *services.EventService, ticketService *services.TicketService, voucherService *services.VoucherService) {
	// 🔓 Public routes — no user context, but still behind Gateway auth
	app.Get("/events", eventService.GetEvents)
	app.Get("/events/:id", eventService.GetEventByID)
	app.Get("/events/:id/ticket-types", ticketService.ListTicketTypes)
	app.Get("/events/:id/vouchers", voucherService.ListEventVouchers)

	// 🔐 Secured routes — require user context (userID, roles)
	secured := app.Group("/", middleware.UserContextMiddleware())

	secured.Post("/events", eventService.CreateEvent)
	secured.Put("/events/:id", eventService.UpdateEvent)
	secured.Patch("/events/:id", eventService.UpdateEvent)
	secured.Delete("/events/:id", eventService.DeleteEvent)
	secured.Post("/events/:id/banner", eventService.UploadEventBanner)

	secured.Post("/events/:id/ticket-types", ticketService.CreateTicketType)
	secured.Post("/events/:id/register", ticketService.RegisterForEvent)

	secured.Post("/events/:id/vouchers", voucherService.CreateVoucher)
	secured.Post("/events/:id/vouchers/:code/redeem", voucherService.RedeemVoucher)
}
