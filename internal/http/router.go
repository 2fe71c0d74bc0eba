// README: HTTP router registration; role-gated route groups over gin.
package http

import (
	"net/http"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"unipool/internal/config"
	"unipool/internal/http/handlers"
	"unipool/internal/http/middleware"
	"unipool/internal/modules/admin"
	"unipool/internal/modules/booking"
	"unipool/internal/modules/payment"
	"unipool/internal/modules/trip"
	"unipool/internal/types"
)

type RouterDeps struct {
	Trips    *trip.Service
	Bookings *booking.Service
	Payments *payment.Service
	Admin    *admin.Service
	Redis    *redis.Client
	Config   config.Config
}

func NewRouter(deps RouterDeps) http.Handler {
	r := gin.New()
	r.Use(middleware.Recovery(), middleware.Logging(), cors.Default())

	r.GET("/health", func(c *gin.Context) {
		c.String(http.StatusOK, "OK")
	})

	tripHandler := handlers.NewTripHandler(deps.Trips)
	bookingHandler := handlers.NewBookingHandler(deps.Bookings, deps.Trips)
	paymentHandler := handlers.NewPaymentHandler(deps.Payments)
	adminHandler := handlers.NewAdminHandler(deps.Admin, deps.Payments)

	bookingLimit := middleware.RateLimit(deps.Redis, deps.Config.RateLimit.Booking, "bookings")
	paymentLimit := middleware.RateLimit(deps.Redis, deps.Config.RateLimit.Payment, "payments")

	api := r.Group("/api", middleware.Auth(deps.Config.Auth.JWTSecret))

	// Shared reads: any authenticated party; per-booking access checked in-handler.
	api.GET("/trips/:id", tripHandler.Get)
	api.GET("/bookings/:id", bookingHandler.Get)

	passenger := api.Group("", middleware.RequireRole(types.RolePassenger))
	passenger.POST("/trips/:id/bookings", bookingLimit, bookingHandler.Create)
	passenger.POST("/bookings/:id/cancel", bookingHandler.Cancel)
	passenger.GET("/bookings", bookingHandler.ListMine)
	passenger.POST("/bookings/:id/payment/intent", paymentLimit, paymentHandler.CreateIntent)
	passenger.POST("/bookings/:id/payment/confirm", paymentLimit, paymentHandler.Confirm)
	passenger.POST("/bookings/:id/payment/cash", paymentHandler.SelectCash)

	driver := api.Group("", middleware.RequireRole(types.RoleDriver))
	driver.POST("/trips", tripHandler.Create)
	driver.GET("/trips", tripHandler.ListMine)
	driver.POST("/trips/:id/publish", tripHandler.Publish)
	driver.POST("/trips/:id/start", tripHandler.Start)
	driver.POST("/trips/:id/complete", tripHandler.Complete)
	driver.GET("/trips/:id/bookings", bookingHandler.ListByTrip)
	driver.POST("/bookings/:id/accept", bookingHandler.Accept)
	driver.POST("/bookings/:id/decline", bookingHandler.Decline)
	driver.POST("/bookings/:id/payment/cash/confirm", paymentHandler.ConfirmCash)

	adm := api.Group("/admin", middleware.RequireRole(types.RoleAdmin))
	adm.POST("/trips/:id/cancel", adminHandler.ForceCancelTrip)
	adm.POST("/bookings/:id/correct", adminHandler.CorrectBooking)
	adm.POST("/users/:id/suspend", adminHandler.SuspendUser)
	adm.POST("/users/:id/unsuspend", adminHandler.UnsuspendUser)
	adm.PUT("/drivers/:id/publish-ban", adminHandler.SetPublishBan)
	adm.GET("/audit/:entity/:id", adminHandler.History)
	adm.GET("/bookings/:id/transactions", adminHandler.ListTransactions)

	return r
}
