package routes

import (
	"net/http"
	"time"

	"kidsclub/handlers"
	"kidsclub/middleware"
	"kidsclub/utils"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// HandlerBundle groups the handlers the router serves.
type HandlerBundle struct {
	Booking *handlers.BookingHandler
	Webhook *handlers.WebhookHandler
}

// RegisterBookingRoutes sets up the endpoints for the booking engine.
func RegisterBookingRoutes(r *gin.Engine, hb *HandlerBundle) {
	h := hb.Booking
	api := r.Group("/api/bookings")
	{
		api.Use(middleware.JWTAuthMiddleware())
		api.POST("", h.CreateBooking)
		api.GET("", h.ListBookings)
		api.GET("/reference/:reference", h.GetBookingByReference)

		owned := api.Group("/:id", h.RequireOwner)
		owned.GET("", h.GetBooking)
		owned.PATCH("", h.UpdateBooking)
		owned.DELETE("", h.DeleteBooking)
		owned.POST("/confirm", h.ConfirmBooking)
		owned.POST("/cancel", h.CancelBooking)
		owned.POST("/payments", h.ProcessPayment)
		owned.POST("/topups", h.TopUp)
		owned.POST("/sessions", h.AddSession)
		owned.PUT("/sessions/:scheduleId", h.RescheduleSession)
		owned.POST("/sessions/:scheduleId/cancel", h.CancelSession)

		// Attendance and hour assignment are recorded by staff.
		staff := owned.Group("", middleware.RequireAdmin())
		staff.POST("/sessions/:scheduleId/complete", h.CompleteSession)
		staff.POST("/sessions/:scheduleId/no-show", h.MarkNoShow)
		staff.POST("/hours", h.AssignHours)
	}
}

// RegisterWebhookRoutes registers provider callbacks. They authenticate by
// signature, not by token.
func RegisterWebhookRoutes(r *gin.Engine, hb *HandlerBundle) {
	r.POST("/api/webhooks/stripe", hb.Webhook.StripeWebhook)
}

// RegisterHealthRoute registers a health-check endpoint backed by the monitor.
func RegisterHealthRoute(r *gin.Engine) {
	r.GET("/health", func(c *gin.Context) {
		status := utils.GetHealthStatus()
		code := http.StatusOK
		if !status.Healthy() {
			code = http.StatusServiceUnavailable
		}
		c.JSON(code, gin.H{"status": status, "message": "Hi, I'm KidsClub"})
	})
}

// RegisterMetricsRoute exposes the Prometheus collectors.
func RegisterMetricsRoute(r *gin.Engine) {
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
}

// RegisterRoutes centralizes registration of all endpoints and middleware.
func RegisterRoutes(r *gin.Engine, hb *HandlerBundle) {
	r.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Authorization", "Content-Type", "X-Request-ID"},
		ExposeHeaders:    []string{"Content-Length", "X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	RegisterHealthRoute(r)
	RegisterMetricsRoute(r)
	RegisterWebhookRoutes(r, hb)
	RegisterBookingRoutes(r, hb)
}
