package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "kidsclub_http_request_duration_seconds",
			Help:    "Time taken to serve HTTP requests",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route", "status"},
	)

	Payments = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kidsclub_payments_total",
			Help: "Number of booking payments by outcome",
		},
		[]string{"outcome"},
	)

	HoursToppedUp = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "kidsclub_hours_topped_up_total",
			Help: "Hours credited to bookings through paid top-ups",
		},
	)

	Cancellations = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "kidsclub_booking_cancellations_total",
			Help: "Number of cancelled bookings",
		},
	)

	Refunds = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kidsclub_refunds_total",
			Help: "Refund attempts processed by the worker, by outcome",
		},
		[]string{"outcome"},
	)

	WebhookEvents = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kidsclub_webhook_events_total",
			Help: "Stripe webhook events received, by result (credited, duplicate, ignored, rejected, failed, refunded)",
		},
		[]string{"result"},
	)
)

var registerOnce sync.Once

func Register() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			HTTPRequestDuration,
			Payments,
			HoursToppedUp,
			Cancellations,
			Refunds,
			WebhookEvents,
		)
	})
}
