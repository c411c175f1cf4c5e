package cron

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"kidsclub/config"
	"kidsclub/metrics"
	"kidsclub/models"
	"kidsclub/services/booking/entity"
	"kidsclub/services/notification"
	"kidsclub/services/tasks"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"
)

// BookingReader is the part of the booking repository the worker needs.
type BookingReader interface {
	FindByID(ctx context.Context, id string) (*models.BookingRecord, error)
}

// Refunder issues refunds on the payment provider.
type Refunder interface {
	RefundPayment(ctx context.Context, req models.RefundRequest) (*models.RefundResult, error)
}

// Worker handles the background tasks queued by the booking service.
type Worker struct {
	mailer   notification.Mailer
	bookings BookingReader
	refunds  Refunder
	logger   *zap.Logger
}

func NewWorker(mailer notification.Mailer, bookings BookingReader, refunds Refunder, logger *zap.Logger) (*Worker, error) {
	if mailer == nil || bookings == nil || refunds == nil {
		return nil, fmt.Errorf("worker initialization error: mailer, bookings or refunder is nil")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Worker{mailer: mailer, bookings: bookings, refunds: refunds, logger: logger}, nil
}

func (w *Worker) Mux() *asynq.ServeMux {
	mux := asynq.NewServeMux()
	mux.HandleFunc(tasks.TypeSendEmail, w.HandleEmail)
	mux.HandleFunc(tasks.TypeSessionReminder, w.HandleReminder)
	mux.HandleFunc(tasks.TypeRefund, w.HandleRefund)
	return mux
}

// InitWorker runs the async worker in background and returns the server so
// the caller can shut it down.
func InitWorker(w *Worker) *asynq.Server {
	redisOpts := asynq.RedisClientOpt{
		Addr:     config.AppConfig.RedisAddr,
		Password: config.AppConfig.RedisPassword,
		DB:       config.AppConfig.RedisQueueDB,
	}

	srv := asynq.NewServer(
		redisOpts,
		asynq.Config{
			Concurrency: 10,
			Queues: map[string]int{
				tasks.QueuePayments:      6,
				tasks.QueueNotifications: 3,
				"default":                1,
			},
			Logger:   w.logger.Sugar(),
			LogLevel: asynq.InfoLevel,
		},
	)
	mux := w.Mux()

	go func() {
		w.logger.Info("starting task worker")
		const maxAttempts = 5

		for attempts := 1; attempts <= maxAttempts; attempts++ {
			if err := srv.Run(mux); err != nil {
				w.logger.Error("task worker failed to start", zap.Int("attempt", attempts), zap.Error(err))
				if attempts == maxAttempts {
					w.logger.Fatal("task worker: max retry attempts reached")
				}
				time.Sleep(time.Duration(attempts*2) * time.Second)
			} else {
				break
			}
		}
	}()
	return srv
}

func (w *Worker) HandleEmail(ctx context.Context, task *asynq.Task) error {
	var msg models.EmailMessage
	if err := json.Unmarshal(task.Payload(), &msg); err != nil {
		w.logger.Error("invalid email payload", zap.Error(err))
		return fmt.Errorf("invalid email payload: %v: %w", err, asynq.SkipRetry)
	}
	if err := w.mailer.Send(ctx, msg); err != nil {
		w.logger.Warn("email delivery failed", zap.String("to", msg.To), zap.Error(err))
		return err
	}
	return nil
}

// HandleReminder sends a session reminder unless the session has since been
// cancelled, completed or moved.
func (w *Worker) HandleReminder(ctx context.Context, task *asynq.Task) error {
	var p models.SessionReminder
	if err := json.Unmarshal(task.Payload(), &p); err != nil {
		w.logger.Error("invalid reminder payload", zap.Error(err))
		return fmt.Errorf("invalid reminder payload: %v: %w", err, asynq.SkipRetry)
	}
	log := w.logger.With(zap.String("bookingId", p.BookingID), zap.String("scheduleId", p.ScheduleID))

	rec, err := w.bookings.FindByID(ctx, p.BookingID)
	if errors.Is(err, entity.ErrBookingNotFound) {
		log.Info("reminder dropped: booking is gone")
		return nil
	}
	if err != nil {
		return err
	}
	if !reminderStillValid(rec, p) {
		log.Info("reminder dropped: session changed")
		return nil
	}

	msg := notification.ReminderMessage(p)
	if msg.To == "" {
		msg.To = rec.ParentGuardian.Email
	}
	if err := w.mailer.Send(ctx, msg); err != nil {
		log.Warn("reminder delivery failed", zap.Error(err))
		return err
	}
	log.Info("reminder sent")
	return nil
}

func reminderStillValid(rec *models.BookingRecord, p models.SessionReminder) bool {
	if rec.DeletedAt != nil || rec.Status == string(entity.StatusCancelled) {
		return false
	}
	for _, s := range rec.Schedules {
		if s.ID != p.ScheduleID {
			continue
		}
		return entity.ScheduleStatus(s.Status).IsOpen() && s.Date == p.Date && s.StartTime == p.StartTime
	}
	return false
}

// HandleRefund issues one refund. The idempotency key makes retries safe on
// the provider side.
func (w *Worker) HandleRefund(ctx context.Context, task *asynq.Task) error {
	var job models.RefundJob
	if err := json.Unmarshal(task.Payload(), &job); err != nil {
		w.logger.Error("invalid refund payload", zap.Error(err))
		return fmt.Errorf("invalid refund payload: %v: %w", err, asynq.SkipRetry)
	}
	log := w.logger.With(zap.String("bookingId", job.BookingID), zap.String("paymentId", job.PaymentID), zap.Float64("amount", job.Amount))

	res, err := w.refunds.RefundPayment(ctx, models.RefundRequest{
		PaymentID:      job.PaymentID,
		Amount:         job.Amount,
		Currency:       job.Currency,
		Reason:         job.Reason,
		IdempotencyKey: tasks.RefundIdempotencyKey(job),
		Metadata:       map[string]string{"bookingId": job.BookingID},
	})
	if err != nil {
		log.Warn("refund attempt failed", zap.Error(err))
		metrics.Refunds.WithLabelValues("retry").Inc()
		return err
	}
	if !res.Success {
		log.Error("refund rejected by provider", zap.String("status", res.Status))
		metrics.Refunds.WithLabelValues("rejected").Inc()
		return fmt.Errorf("refund %s rejected with status %s: %w", res.RefundID, res.Status, asynq.SkipRetry)
	}
	log.Info("refund issued", zap.String("refundId", res.RefundID), zap.String("status", res.Status))
	metrics.Refunds.WithLabelValues("issued").Inc()
	return nil
}
