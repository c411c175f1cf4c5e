package handlers

import (
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	"kidsclub/metrics"
	"kidsclub/services/booking"
	"kidsclub/services/booking/entity"
	"kidsclub/services/payment"
	"kidsclub/utils"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

const webhookDedupTTL = 72 * time.Hour

// EventStore remembers processed webhook events. *redis.Client implements it.
type EventStore interface {
	SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.BoolCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

// WebhookHandler receives Stripe events for completed top-up checkouts.
type WebhookHandler struct {
	Service booking.BookingService
	Events  EventStore
	Secret  string
}

func NewWebhookHandler(svc booking.BookingService, events EventStore, secret string) *WebhookHandler {
	return &WebhookHandler{Service: svc, Events: events, Secret: secret}
}

// StripeWebhook credits a paid top-up. Stripe retries anything but a 2xx,
// so failures that a retry could fix answer 5xx and release the event.
func (h *WebhookHandler) StripeWebhook(c *gin.Context) {
	logger := getLogger(c)
	payload, err := io.ReadAll(io.LimitReader(c.Request.Body, 65536))
	if err != nil {
		utils.JSONError(c, http.StatusServiceUnavailable, "failed to read body", err.Error())
		return
	}

	paid, err := payment.ParseTopUpEvent(payload, c.GetHeader("Stripe-Signature"), h.Secret)
	if errors.Is(err, payment.ErrIgnoredEvent) {
		metrics.WebhookEvents.WithLabelValues("ignored").Inc()
		c.JSON(http.StatusOK, gin.H{"received": true})
		return
	}
	if err != nil {
		metrics.WebhookEvents.WithLabelValues("rejected").Inc()
		utils.JSONError(c, http.StatusBadRequest, "invalid webhook", err.Error())
		return
	}

	ctx := c.Request.Context()
	key := "stripe:event:" + paid.EventID
	fresh, err := h.Events.SetNX(ctx, key, paid.BookingID, webhookDedupTTL).Result()
	if err != nil {
		// Crediting is idempotent per payment id; go on without the marker.
		logger.Warn("webhook dedup unavailable", zap.String("eventId", paid.EventID), zap.Error(err))
		fresh = true
	}
	if !fresh {
		logger.Info("duplicate webhook event", zap.String("eventId", paid.EventID))
		metrics.WebhookEvents.WithLabelValues("duplicate").Inc()
		c.JSON(http.StatusOK, gin.H{"received": true, "duplicate": true})
		return
	}

	rec, err := h.Service.ConfirmTopUp(ctx, paid.BookingID, paid.Hours, paid.Amount, paid.PaymentID)
	if errors.Is(err, entity.ErrTopUpRefunded) {
		logger.Warn("top-up refunded", zap.String("eventId", paid.EventID), zap.String("bookingId", paid.BookingID), zap.Error(err))
		metrics.WebhookEvents.WithLabelValues("refunded").Inc()
		c.JSON(http.StatusOK, gin.H{"received": true, "refunded": true})
		return
	}
	if err != nil {
		status := utils.StatusFor(err)
		if status >= http.StatusInternalServerError || status == http.StatusConflict {
			h.Events.Del(ctx, key)
		}
		metrics.WebhookEvents.WithLabelValues("failed").Inc()
		logger.Error("top-up credit failed", zap.String("eventId", paid.EventID), zap.String("bookingId", paid.BookingID), zap.Error(err))
		utils.BookingError(c, err)
		return
	}

	logger.Info("top-up credited",
		zap.String("bookingId", rec.ID),
		zap.Float64("hours", paid.Hours),
		zap.Float64("totalHours", rec.TotalHours),
	)
	metrics.WebhookEvents.WithLabelValues("credited").Inc()
	c.JSON(http.StatusOK, gin.H{"received": true})
}
