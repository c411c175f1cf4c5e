package booking

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"go.uber.org/zap"

	"kidsclub/metrics"
	"kidsclub/models"
	"kidsclub/services/booking/entity"
	"kidsclub/services/booking/pricing"
)

// TopUp opens a checkout for extra hours on a confirmed, fully paid package.
// Hours are only credited by ConfirmTopUp once the gateway reports success.
func (s *DefaultBookingService) TopUp(ctx context.Context, id string, req models.TopUpRequest) (*models.TopUpCheckout, error) {
	hours := entity.RoundHours(req.Hours)
	if hours <= 0 {
		return nil, &entity.ValidationError{Field: "hours", Message: "top-up hours must be greater than zero"}
	}
	b, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	now := s.now()
	if err := b.CanTopUp(now); err != nil {
		return nil, err
	}

	quote, err := s.Factory.Policy.Quote(pricing.Input{
		Hours:        hours,
		Participants: len(b.Participants()),
		Now:          now,
	})
	if err != nil {
		return nil, err
	}
	if quote.FinalPrice <= 0 {
		return nil, &entity.ValidationError{Field: "hours", Message: "top-up price must be greater than zero"}
	}

	session, err := s.Payments.CreateCheckout(ctx, models.CheckoutRequest{
		Amount:        quote.FinalPrice,
		Currency:      b.Currency(),
		Description:   fmt.Sprintf("%.2f extra hours for booking %s", hours, b.Reference()),
		CustomerEmail: b.Guardian().Email,
		SuccessURL:    s.Config.TopUpSuccessURL,
		CancelURL:     s.Config.TopUpCancelURL,
		Metadata: map[string]string{
			"kind":      "topup",
			"bookingId": b.ID(),
			"reference": b.Reference().String(),
			"hours":     strconv.FormatFloat(hours, 'f', 2, 64),
			"amount":    strconv.FormatFloat(quote.FinalPrice, 'f', 2, 64),
		},
	})
	if err != nil {
		return nil, &entity.PaymentGatewayError{Message: "could not start the top-up checkout", Err: err}
	}

	s.Logger.Info("top-up checkout created",
		zap.String("bookingId", b.ID()),
		zap.String("sessionId", session.SessionID),
		zap.Float64("hours", hours),
		zap.Float64("amount", quote.FinalPrice))
	return &models.TopUpCheckout{
		BookingID: b.ID(),
		SessionID: session.SessionID,
		URL:       session.URL,
		Hours:     hours,
		Amount:    quote.FinalPrice,
		Currency:  b.Currency(),
	}, nil
}

// ConfirmTopUp credits hours after the gateway confirmed the top-up payment.
// Replays of the same payment id are ignored. When the booking can no longer
// take the hours (cancelled, expired, deleted or gone) the payment is queued
// for a refund and the error wraps ErrTopUpRefunded.
func (s *DefaultBookingService) ConfirmTopUp(ctx context.Context, id string, hours, amount float64, paymentID string) (*models.BookingRecord, error) {
	if paymentID == "" {
		return nil, &entity.ValidationError{Field: "paymentId", Message: "a payment id is required to credit a top-up"}
	}
	applied := false
	rec, err := s.applyWithRetry(ctx, id, func(b *entity.Booking, now time.Time) (bool, error) {
		ok, err := b.AddHours(hours, amount, paymentID, now)
		applied = ok
		return ok, err
	})
	if err != nil {
		if uncreditable(err) {
			return s.refundTopUp(ctx, id, amount, paymentID, err)
		}
		return nil, err
	}
	if applied {
		s.Logger.Info("top-up credited",
			zap.String("bookingId", id), zap.String("paymentId", paymentID), zap.Float64("hours", hours))
		metrics.HoursToppedUp.Add(hours)
	} else {
		s.Logger.Info("top-up already credited", zap.String("bookingId", id), zap.String("paymentId", paymentID))
	}
	return rec, nil
}

func uncreditable(err error) bool {
	var stateErr *entity.InvalidStateError
	var validationErr *entity.ValidationError
	return errors.Is(err, entity.ErrBookingNotFound) ||
		errors.As(err, &stateErr) ||
		errors.As(err, &validationErr)
}

// refundTopUp queues a refund for a captured top-up that cannot be credited.
func (s *DefaultBookingService) refundTopUp(ctx context.Context, id string, amount float64, paymentID string, cause error) (*models.BookingRecord, error) {
	currency := s.Factory.Currency
	var rec *models.BookingRecord
	if b, err := s.load(ctx, id); err == nil {
		currency = b.Currency()
		r := ToRecord(b)
		rec = &r
	}

	amount = entity.RoundMoney(amount)
	if amount > 0 {
		if s.Jobs == nil {
			return nil, fmt.Errorf("top-up %s cannot be credited and no job queue is configured: %w", paymentID, cause)
		}
		job := models.RefundJob{
			BookingID: id,
			PaymentID: paymentID,
			Amount:    amount,
			Currency:  currency,
			Reason:    "top-up could not be credited: " + cause.Error(),
		}
		if err := s.Jobs.EnqueueRefund(ctx, job); err != nil {
			return nil, fmt.Errorf("failed to queue refund for top-up %s: %w", paymentID, err)
		}
	}
	s.Logger.Warn("top-up refunded instead of credited",
		zap.String("bookingId", id),
		zap.String("paymentId", paymentID),
		zap.Float64("amount", amount),
		zap.NamedError("cause", cause))
	return rec, fmt.Errorf("%w: %w", entity.ErrTopUpRefunded, cause)
}
