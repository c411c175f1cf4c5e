package payment

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/webhook"
)

// ErrIgnoredEvent marks webhook events that carry nothing for bookings.
var ErrIgnoredEvent = errors.New("event ignored")

// TopUpPaid is a completed top-up checkout.
type TopUpPaid struct {
	EventID   string
	BookingID string
	PaymentID string
	Hours     float64
	Amount    float64
}

// ParseTopUpEvent verifies the Stripe signature and extracts a paid top-up
// from a checkout.session.completed event. Other events return ErrIgnoredEvent.
func ParseTopUpEvent(payload []byte, signature, secret string) (*TopUpPaid, error) {
	event, err := webhook.ConstructEventWithOptions(payload, signature, secret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		return nil, fmt.Errorf("invalid webhook signature: %w", err)
	}
	if event.Type != "checkout.session.completed" {
		return nil, ErrIgnoredEvent
	}

	var session stripe.CheckoutSession
	if err := json.Unmarshal(event.Data.Raw, &session); err != nil {
		return nil, fmt.Errorf("malformed checkout session: %w", err)
	}
	if session.Metadata["kind"] != "topup" || session.PaymentStatus != stripe.CheckoutSessionPaymentStatusPaid {
		return nil, ErrIgnoredEvent
	}

	out := &TopUpPaid{EventID: event.ID, BookingID: session.Metadata["bookingId"]}
	if session.PaymentIntent != nil && session.PaymentIntent.ID != "" {
		out.PaymentID = session.PaymentIntent.ID
	} else {
		out.PaymentID = session.ID
	}
	if out.BookingID == "" {
		return nil, fmt.Errorf("checkout session %s has no booking id", session.ID)
	}
	if out.Hours, err = strconv.ParseFloat(session.Metadata["hours"], 64); err != nil {
		return nil, fmt.Errorf("checkout session %s has invalid hours: %w", session.ID, err)
	}
	out.Amount = fromMinor(session.AmountTotal, string(session.Currency))
	if out.Amount <= 0 {
		if out.Amount, err = strconv.ParseFloat(session.Metadata["amount"], 64); err != nil {
			return nil, fmt.Errorf("checkout session %s has invalid amount: %w", session.ID, err)
		}
	}
	return out, nil
}
