// handlers/rewards_routes.go
package handlers

import (
	"event-ticketing-system/middleware"
	"event-ticketing-system/services"

	"github.com/gofiber/fiber/v2"
)

func SetupRewardsRoutes(app *fiber.App, ledgerService *services.PointLedgerService, referralService *services.ReferralService, couponService *services.CouponService, authClient *services.AuthServiceClient) {
	// 📡 SSE — EventSource cannot send headers; authenticated via query token
	app.Get("/user/points/stream", middleware.SSEAuthMiddleware(authClient), ledgerService.StreamUserPointsSSE)

	// 🔐 Secured routes — require user context (userID, roles)
	secured := app.Group("/", middleware.UserContextMiddleware())

	secured.Get("/user/points/balance", ledgerService.GetPointBalance)
	secured.Get("/user/points/history", ledgerService.GetPointHistory)

	secured.Get("/user/referral-code", referralService.GetMyReferralCode)
	secured.Post("/referrals/apply", referralService.ApplyReferralCode)

	secured.Get("/user/coupons", couponService.GetMyCoupons)
	secured.Post("/user/coupons/:code/redeem", couponService.RedeemMyCoupon)

	// 🔐 Admin routes
	admin := app.Group("/admin", middleware.UserContextMiddleware(), middleware.RequireRole("admin"))

	admin.Post("/points/award", ledgerService.AwardPoints)
	admin.Post("/coupons", couponService.CreateCoupon)
}
