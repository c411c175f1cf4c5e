package notification

import (
	"context"
	"fmt"
	"strings"

	"kidsclub/models"

	"go.uber.org/zap"
)

// NotificationService reaches guardians by email. Delivery happens on the
// worker; these calls only queue the message.
type NotificationService interface {
	SendEmail(ctx context.Context, msg models.EmailMessage) error
	SendBookingConfirmation(ctx context.Context, rec models.BookingRecord) error
	SendBookingCancellation(ctx context.Context, rec models.BookingRecord) error
}

// EmailQueue is implemented by tasks.Queue.
type EmailQueue interface {
	EnqueueEmail(ctx context.Context, msg models.EmailMessage) error
}

// DefaultNotificationService is the production implementation.
type DefaultNotificationService struct {
	queue  EmailQueue
	logger *zap.Logger
}

func NewDefaultNotificationService(queue EmailQueue, logger *zap.Logger) (*DefaultNotificationService, error) {
	if queue == nil {
		return nil, fmt.Errorf("notification service initialization error: email queue is nil")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DefaultNotificationService{queue: queue, logger: logger}, nil
}

func (s *DefaultNotificationService) SendEmail(ctx context.Context, msg models.EmailMessage) error {
	if strings.TrimSpace(msg.To) == "" {
		return fmt.Errorf("SendEmail: recipient is empty")
	}
	if err := s.queue.EnqueueEmail(ctx, msg); err != nil {
		return fmt.Errorf("SendEmail: %w", err)
	}
	return nil
}

func (s *DefaultNotificationService) SendBookingConfirmation(ctx context.Context, rec models.BookingRecord) error {
	msg := models.EmailMessage{
		To:      rec.ParentGuardian.Email,
		Subject: fmt.Sprintf("Booking %s confirmed", rec.Reference),
		Body:    renderConfirmation(rec),
	}
	s.logger.Debug("queueing confirmation", zap.String("bookingId", rec.ID))
	return s.SendEmail(ctx, msg)
}

func (s *DefaultNotificationService) SendBookingCancellation(ctx context.Context, rec models.BookingRecord) error {
	msg := models.EmailMessage{
		To:      rec.ParentGuardian.Email,
		Subject: fmt.Sprintf("Booking %s cancelled", rec.Reference),
		Body:    renderCancellation(rec),
	}
	s.logger.Debug("queueing cancellation", zap.String("bookingId", rec.ID))
	return s.SendEmail(ctx, msg)
}

// ReminderMessage renders the email for a session reminder.
func ReminderMessage(r models.SessionReminder) models.EmailMessage {
	var b strings.Builder
	fmt.Fprintf(&b, "Hi,\n\nThis is a reminder that %s has a session on %s from %s to %s", childrenOrDefault(r.ChildNames), r.Date, r.StartTime, r.EndTime)
	if r.Location != "" {
		fmt.Fprintf(&b, " at %s", r.Location)
	}
	b.WriteString(".\n\nSee you there!\n")
	return models.EmailMessage{
		To:      r.Email,
		Subject: fmt.Sprintf("Reminder: session on %s", r.Date),
		Body:    b.String(),
	}
}
