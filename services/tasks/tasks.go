package tasks

import (
	"encoding/json"
	"fmt"
	"time"

	"kidsclub/models"

	"github.com/hibiken/asynq"
)

const (
	TypeSendEmail       = "email:send"
	TypeSessionReminder = "booking:reminder"
	TypeRefund          = "booking:refund"
)

// Queue names served by the worker, with their priorities.
const (
	QueueNotifications = "notifications"
	QueuePayments      = "payments"
)

func NewEmailTask(msg models.EmailMessage) (*asynq.Task, []asynq.Option, error) {
	b, err := json.Marshal(msg)
	if err != nil {
		return nil, nil, err
	}
	task := asynq.NewTask(TypeSendEmail, b)
	opts := []asynq.Option{asynq.Queue(QueueNotifications), asynq.MaxRetry(5)}

	return task, opts, nil
}

// NewReminderTask fires at fireAt. The task id is derived from the session
// slot so re-scheduling the same slot is a no-op.
func NewReminderTask(payload models.SessionReminder, fireAt time.Time) (*asynq.Task, []asynq.Option, error) {
	b, err := json.Marshal(payload)
	if err != nil {
		return nil, nil, err
	}
	task := asynq.NewTask(TypeSessionReminder, b)
	opts := []asynq.Option{
		asynq.ProcessAt(fireAt),
		asynq.Queue(QueueNotifications),
		asynq.MaxRetry(3),
		asynq.TaskID(fmt.Sprintf("reminder:%s:%s:%s:%s", payload.BookingID, payload.ScheduleID, payload.Date, payload.StartTime)),
	}

	return task, opts, nil
}

func NewRefundTask(job models.RefundJob) (*asynq.Task, []asynq.Option, error) {
	b, err := json.Marshal(job)
	if err != nil {
		return nil, nil, err
	}
	task := asynq.NewTask(TypeRefund, b)
	opts := []asynq.Option{
		asynq.Queue(QueuePayments),
		asynq.MaxRetry(10),
		asynq.TaskID(RefundIdempotencyKey(job)),
	}

	return task, opts, nil
}

// RefundIdempotencyKey identifies one refund of one payment of a booking.
func RefundIdempotencyKey(job models.RefundJob) string {
	return "refund:" + job.BookingID + ":" + job.PaymentID
}
