package booking

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"kidsclub/models"
	"kidsclub/services/booking/entity"
	"kidsclub/services/booking/validator"
)

// AddSession books a session against the package's remaining hours after
// checking it against the children's other bookings.
func (s *DefaultBookingService) AddSession(ctx context.Context, bookingID string, req models.SessionRequest) (*models.BookingRecord, error) {
	sc := sessionEntity(req)
	var added entity.Schedule

	rec, b, err := s.withChildLock(ctx, bookingID, func(b *entity.Booking, existing []*entity.Booking, now time.Time) error {
		if err := s.checkSessions(b, existing, now, sc); err != nil {
			return err
		}
		out, err := b.AddSchedule(sc, now)
		added = out
		return err
	})
	if err != nil {
		return nil, err
	}
	s.scheduleReminder(ctx, b, added)
	return rec, nil
}

// RescheduleSession moves a session, keeping its original slot for audit.
func (s *DefaultBookingService) RescheduleSession(ctx context.Context, bookingID, scheduleID string, req models.RescheduleRequest) (*models.BookingRecord, error) {
	var moved entity.Schedule

	rec, b, err := s.withChildLock(ctx, bookingID, func(b *entity.Booking, existing []*entity.Booking, now time.Time) error {
		cur, ok := b.Schedule(scheduleID)
		if !ok {
			return entity.ErrScheduleNotFound
		}
		target := cur
		target.Date, target.StartTime, target.EndTime = strings.TrimSpace(req.Date), strings.TrimSpace(req.StartTime), strings.TrimSpace(req.EndTime)
		if err := s.checkSessions(b, existing, now, target); err != nil {
			return err
		}
		out, err := b.RescheduleSchedule(scheduleID, target.Date, target.StartTime, target.EndTime, req.Reason, now)
		moved = out
		return err
	})
	if err != nil {
		return nil, err
	}
	s.scheduleReminder(ctx, b, moved)
	return rec, nil
}

// CancelSession releases a single session's hours. The booking keeps its status.
func (s *DefaultBookingService) CancelSession(ctx context.Context, bookingID, scheduleID, reason string) (*models.BookingRecord, error) {
	return s.mutate(ctx, bookingID, func(b *entity.Booking, now time.Time) error {
		return b.CancelSchedule(scheduleID, reason, now)
	})
}

func (s *DefaultBookingService) CompleteSession(ctx context.Context, bookingID, scheduleID string) (*models.BookingRecord, error) {
	return s.mutate(ctx, bookingID, func(b *entity.Booking, now time.Time) error {
		return b.CompleteSchedule(scheduleID, now)
	})
}

func (s *DefaultBookingService) MarkNoShow(ctx context.Context, bookingID, scheduleID string) (*models.BookingRecord, error) {
	return s.mutate(ctx, bookingID, func(b *entity.Booking, now time.Time) error {
		return b.MarkNoShow(scheduleID, now)
	})
}

// withChildLock loads the booking, locks its children, reloads it together
// with their other bookings and saves the result of fn.
func (s *DefaultBookingService) withChildLock(
	ctx context.Context,
	bookingID string,
	fn func(b *entity.Booking, existing []*entity.Booking, now time.Time) error,
) (*models.BookingRecord, *entity.Booking, error) {
	first, err := s.load(ctx, bookingID)
	if err != nil {
		return nil, nil, err
	}
	unlock, err := s.lockChildren(ctx, first.ChildKeys())
	if err != nil {
		return nil, nil, err
	}
	defer unlock()

	b, err := s.load(ctx, bookingID)
	if err != nil {
		return nil, nil, err
	}
	existing, err := s.snapshot(ctx, b.ChildKeys())
	if err != nil {
		return nil, nil, err
	}
	if err := fn(b, existing, s.now()); err != nil {
		return nil, nil, err
	}
	rec, err := s.save(ctx, b)
	if err != nil {
		return nil, nil, err
	}
	return rec, b, nil
}

// checkSessions runs the availability check for sessions of b against the
// children's other bookings.
func (s *DefaultBookingService) checkSessions(b *entity.Booking, existing []*entity.Booking, now time.Time, sessions ...entity.Schedule) error {
	res := validator.Validate(validator.Request{
		Candidate:          validator.Candidate{ID: b.ID(), Participants: b.Participants()},
		Schedules:          sessions,
		Existing:           existing,
		Mode:               b.Mode(),
		Now:                now,
		SkipDuplicateCheck: true,
	})
	return res.Err()
}

// scheduleReminder queues the guardian reminder ahead of a session.
// Reminders are best effort.
func (s *DefaultBookingService) scheduleReminder(ctx context.Context, b *entity.Booking, sc entity.Schedule) {
	if s.Jobs == nil || sc.ID == "" || !sc.Status.IsOpen() {
		return
	}
	at, ok := reminderTime(sc, s.Config.ReminderLead)
	if !ok || !at.After(s.now()) {
		return
	}
	names := make([]string, 0, len(b.Participants()))
	for _, p := range b.Participants() {
		names = append(names, p.Name)
	}
	r := models.SessionReminder{
		BookingID:  b.ID(),
		ScheduleID: sc.ID,
		Email:      b.Guardian().Email,
		ChildNames: strings.Join(names, ", "),
		Date:       sc.Date,
		StartTime:  sc.StartTime,
		EndTime:    sc.EndTime,
		Location:   sc.Location,
	}
	if err := s.Jobs.ScheduleSessionReminder(ctx, r, at); err != nil {
		s.Logger.Warn("failed to schedule session reminder",
			zap.String("bookingId", b.ID()), zap.String("scheduleId", sc.ID), zap.Error(err))
	}
}

// reminderTime is the session start in local civil time minus lead.
func reminderTime(sc entity.Schedule, lead time.Duration) (time.Time, bool) {
	day, err := entity.ParseDate(sc.Date)
	if err != nil {
		return time.Time{}, false
	}
	start, err := entity.ParseClock(sc.StartTime)
	if err != nil {
		return time.Time{}, false
	}
	if lead <= 0 {
		lead = 24 * time.Hour
	}
	at := time.Date(day.Year(), day.Month(), day.Day(), start/60, start%60, 0, 0, time.Local)
	return at.Add(-lead), true
}
