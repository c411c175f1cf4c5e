package booking

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/avast/retry-go"
	"go.uber.org/zap"

	"kidsclub/metrics"
	"kidsclub/models"
	"kidsclub/services/booking/entity"
)

const (
	saveAttempts   = 3
	saveRetryDelay = 20 * time.Millisecond
)

// ProcessPayment charges the guardian and applies the payment. A gateway
// failure comes back as an unsuccessful outcome and leaves the booking as it was.
func (s *DefaultBookingService) ProcessPayment(ctx context.Context, id string, req models.ProcessPaymentRequest) (PaymentOutcome, error) {
	b, err := s.load(ctx, id)
	if err != nil {
		return PaymentOutcome{}, err
	}
	amount := entity.RoundMoney(req.Amount)
	if err := b.CheckPayment(amount); err != nil {
		return PaymentOutcome{}, err
	}
	method := strings.ToLower(strings.TrimSpace(req.Method))
	if method == "" {
		method = "card"
	}

	result, err := s.Payments.ProcessPayment(ctx, models.PaymentRequest{
		Amount:          amount,
		Currency:        b.Currency(),
		Method:          method,
		PaymentMethodID: req.PaymentMethodID,
		Description:     fmt.Sprintf("Booking %s", b.Reference()),
		IdempotencyKey:  fmt.Sprintf("%s:v%d:%.2f", b.ID(), b.Version(), amount),
		Metadata: map[string]string{
			"bookingId": b.ID(),
			"reference": b.Reference().String(),
		},
	})
	if err != nil || result == nil || !result.Success {
		outcome := PaymentOutcome{Success: false, Error: "payment could not be completed"}
		if result != nil {
			outcome.PaymentID = result.PaymentID
			if result.Error != "" {
				outcome.Error = result.Error
			}
		}
		var gwErr *entity.PaymentGatewayError
		if errors.As(err, &gwErr) && gwErr.Message != "" {
			outcome.Error = gwErr.Message
		}
		s.Logger.Warn("payment failed",
			zap.String("bookingId", b.ID()),
			zap.Float64("amount", amount),
			zap.NamedError("gatewayError", err),
			zap.Error(outcome.asGatewayError()))
		metrics.Payments.WithLabelValues("declined").Inc()
		return outcome, nil
	}

	rec, err := s.applyWithRetry(ctx, id, func(b *entity.Booking, now time.Time) (bool, error) {
		if b.HasPayment(result.PaymentID) {
			return false, nil
		}
		return true, b.ApplyPayment(amount, result.PaymentID, now)
	})
	if err != nil {
		// The money moved; the booking must be reconciled by hand.
		s.Logger.Error("payment captured but not recorded",
			zap.String("bookingId", id), zap.String("paymentId", result.PaymentID), zap.Float64("amount", amount), zap.Error(err))
		metrics.Payments.WithLabelValues("unrecorded").Inc()
		return PaymentOutcome{}, err
	}
	s.Logger.Info("payment applied",
		zap.String("bookingId", id),
		zap.String("paymentId", result.PaymentID),
		zap.Float64("amount", amount),
		zap.String("paymentStatus", rec.PaymentStatus))
	metrics.Payments.WithLabelValues("applied").Inc()
	return PaymentOutcome{Success: true, PaymentID: result.PaymentID, Booking: rec}, nil
}

// applyWithRetry reloads and re-applies fn when the optimistic save loses
// a race. fn returns false when there is nothing to change.
func (s *DefaultBookingService) applyWithRetry(ctx context.Context, id string, fn func(b *entity.Booking, now time.Time) (bool, error)) (*models.BookingRecord, error) {
	var rec *models.BookingRecord
	err := s.retryOnConflict(ctx, id, func() error {
		b, err := s.load(ctx, id)
		if err != nil {
			return err
		}
		changed, err := fn(b, s.now())
		if err != nil {
			return err
		}
		if !changed {
			r := ToRecord(b)
			rec = &r
			return nil
		}
		rec, err = s.save(ctx, b)
		return err
	})
	if err != nil {
		return nil, err
	}
	return rec, nil
}

// retryOnConflict reruns fn while it loses optimistic-concurrency races.
func (s *DefaultBookingService) retryOnConflict(ctx context.Context, id string, fn func() error) error {
	return retry.Do(
		fn,
		retry.Context(ctx),
		retry.Attempts(saveAttempts),
		retry.Delay(saveRetryDelay),
		retry.MaxDelay(4*saveRetryDelay),
		retry.LastErrorOnly(true),
		retry.RetryIf(func(err error) bool {
			return errors.Is(err, entity.ErrVersionConflict)
		}),
		retry.OnRetry(func(n uint, err error) {
			s.Logger.Debug("booking changed underneath, reapplying", zap.String("bookingId", id), zap.Uint("attempt", n+1))
		}),
	)
}
