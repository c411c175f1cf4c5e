package tasks

import (
	"context"
	"errors"
	"fmt"
	"time"

	"kidsclub/models"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"
)

// Enqueuer is the part of *asynq.Client the queue needs.
type Enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// Queue enqueues background work on asynq.
type Queue struct {
	client Enqueuer
	logger *zap.Logger
}

func NewQueue(client Enqueuer, logger *zap.Logger) (*Queue, error) {
	if client == nil {
		return nil, fmt.Errorf("task queue initialization error: client is nil")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Queue{client: client, logger: logger}, nil
}

func (q *Queue) EnqueueEmail(ctx context.Context, msg models.EmailMessage) error {
	task, opts, err := NewEmailTask(msg)
	if err != nil {
		return fmt.Errorf("failed to build email task: %w", err)
	}
	return q.enqueue(ctx, task, opts)
}

// ScheduleSessionReminder schedules a reminder at at. Reminders already in
// the past are dropped.
func (q *Queue) ScheduleSessionReminder(ctx context.Context, r models.SessionReminder, at time.Time) error {
	if !at.After(time.Now()) {
		q.logger.Debug("reminder time already passed", zap.String("bookingId", r.BookingID), zap.String("scheduleId", r.ScheduleID))
		return nil
	}
	task, opts, err := NewReminderTask(r, at)
	if err != nil {
		return fmt.Errorf("failed to build reminder task: %w", err)
	}
	return q.enqueue(ctx, task, opts)
}

func (q *Queue) EnqueueRefund(ctx context.Context, job models.RefundJob) error {
	task, opts, err := NewRefundTask(job)
	if err != nil {
		return fmt.Errorf("failed to build refund task: %w", err)
	}
	return q.enqueue(ctx, task, opts)
}

func (q *Queue) enqueue(ctx context.Context, task *asynq.Task, opts []asynq.Option) error {
	info, err := q.client.EnqueueContext(ctx, task, opts...)
	if errors.Is(err, asynq.ErrTaskIDConflict) || errors.Is(err, asynq.ErrDuplicateTask) {
		q.logger.Debug("task already queued", zap.String("type", task.Type()))
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to enqueue %s: %w", task.Type(), err)
	}
	q.logger.Info("task queued", zap.String("type", task.Type()), zap.String("id", info.ID), zap.String("queue", info.Queue))
	return nil
}
