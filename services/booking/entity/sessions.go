package entity

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

func prepareSchedule(sc Schedule) (Schedule, error) {
	sc = sc.clone()
	sc.Date = strings.TrimSpace(sc.Date)
	sc.StartTime = strings.TrimSpace(sc.StartTime)
	sc.EndTime = strings.TrimSpace(sc.EndTime)
	if sc.ID == "" {
		sc.ID = uuid.New().String()
	}
	if sc.Status == "" {
		sc.Status = ScheduleScheduled
	}
	if !sc.Status.IsValid() {
		return Schedule{}, &ValidationError{Field: "schedules.status", Message: fmt.Sprintf("invalid session status: %s", sc.Status)}
	}
	if err := sc.Validate(); err != nil {
		return Schedule{}, err
	}
	return sc, nil
}

// collides checks a session against the booking's own sessions. One session
// per child per day: a second session on a booked date is refused even
// when the times do not overlap.
func collides(existing []Schedule, sc Schedule, ignoreID string) (ScheduleConflict, bool) {
	for _, other := range existing {
		if other.ID == ignoreID || !other.OccupiesTime() || other.Date != sc.Date {
			continue
		}
		reason := "a session is already booked on this date"
		if sc.Overlaps(other) {
			reason = fmt.Sprintf("overlaps the session from %s to %s", other.StartTime, other.EndTime)
		}
		return ScheduleConflict{Date: sc.Date, StartTime: sc.StartTime, EndTime: sc.EndTime, Reason: reason}, true
	}
	return ScheduleConflict{}, false
}

func (b *Booking) canSchedule(now time.Time) error {
	switch {
	case !b.s.Status.IsOpen():
		return &InvalidStateError{Operation: "schedule sessions on", Status: b.s.Status}
	case b.IsDeleted():
		return &InvalidStateError{Operation: "schedule sessions on", Status: b.s.Status, Message: "cannot schedule sessions on a deleted booking"}
	case b.s.PaymentStatus == PaymentRefunded:
		return &InvalidStateError{Operation: "schedule sessions on", Status: b.s.Status, Message: "cannot schedule sessions on a refunded package"}
	case b.IsExpired(now):
		return &InvalidStateError{Operation: "schedule sessions on", Status: b.s.Status, Message: fmt.Sprintf("package %s expired on %s", b.s.Reference, b.s.PackageExpiresAt.Format("2 January 2006"))}
	}
	return nil
}

func (b *Booking) checkHours(extra float64) error {
	extra = RoundHours(extra)
	if extra <= 0 {
		return nil
	}
	if remaining := b.s.RemainingHours; extra > remaining {
		return &ValidationError{Field: "schedules", Message: fmt.Sprintf("session needs %.2f hours but only %.2f hours remain on the package", extra, remaining)}
	}
	return nil
}

// AddSchedule books a new session against the remaining hours.
func (b *Booking) AddSchedule(sc Schedule, now time.Time) (Schedule, error) {
	if err := b.canSchedule(now); err != nil {
		return Schedule{}, err
	}
	sc.ID = ""
	sc.Status = ScheduleScheduled
	sc, err := prepareSchedule(sc)
	if err != nil {
		return Schedule{}, err
	}
	if c, ok := collides(b.s.Schedules, sc, ""); ok {
		return Schedule{}, &SchedulingConflictError{Conflicts: []ScheduleConflict{c}}
	}
	if err := b.checkHours(sc.DurationHours()); err != nil {
		return Schedule{}, err
	}
	b.s.Schedules = append(b.s.Schedules, sc)
	if b.s.Status == StatusDraft {
		b.s.Status = StatusPending
	}
	b.touch(now)
	return sc.clone(), nil
}

// RescheduleSchedule moves an open session to a new date and time, keeping
// the first original slot for audit.
func (b *Booking) RescheduleSchedule(id, date, startTime, endTime, reason string, now time.Time) (Schedule, error) {
	if err := b.canSchedule(now); err != nil {
		return Schedule{}, err
	}
	i := b.scheduleIndex(id)
	if i < 0 {
		return Schedule{}, ErrScheduleNotFound
	}
	cur := b.s.Schedules[i]
	if !cur.Status.CanTransitionTo(ScheduleRescheduled) {
		return Schedule{}, &InvalidStateError{Operation: "reschedule", Status: b.s.Status, Message: fmt.Sprintf("a %s session cannot be rescheduled", cur.Status)}
	}

	next := cur.clone()
	next.Date, next.StartTime, next.EndTime = date, startTime, endTime
	next, err := prepareSchedule(next)
	if err != nil {
		return Schedule{}, err
	}
	if c, ok := collides(b.s.Schedules, next, id); ok {
		return Schedule{}, &SchedulingConflictError{Conflicts: []ScheduleConflict{c}}
	}
	if err := b.checkHours(next.DurationHours() - cur.DurationHours()); err != nil {
		return Schedule{}, err
	}

	if next.OriginalDate == "" {
		next.OriginalDate = cur.Date
		next.OriginalStartTime = cur.StartTime
		next.OriginalEndTime = cur.EndTime
	}
	t := now
	next.RescheduledAt = &t
	next.RescheduleReason = strings.TrimSpace(reason)
	next.Status = ScheduleRescheduled
	b.s.Schedules[i] = next
	b.touch(now)
	return next.clone(), nil
}

// CancelSchedule releases a session's hours.
func (b *Booking) CancelSchedule(id, reason string, now time.Time) error {
	if strings.TrimSpace(reason) == "" {
		return &ValidationError{Field: "reason", Message: "a cancellation reason is required"}
	}
	i, err := b.transitionSchedule(id, ScheduleCancelled)
	if err != nil {
		return err
	}
	t := now
	b.s.Schedules[i].CancelledAt = &t
	b.s.Schedules[i].CancellationReason = strings.TrimSpace(reason)
	b.touch(now)
	return nil
}

// CompleteSchedule marks a session as delivered.
func (b *Booking) CompleteSchedule(id string, now time.Time) error {
	if _, err := b.transitionSchedule(id, ScheduleCompleted); err != nil {
		return err
	}
	b.touch(now)
	return nil
}

// MarkNoShow records a missed session; its hours are consumed.
func (b *Booking) MarkNoShow(id string, now time.Time) error {
	if _, err := b.transitionSchedule(id, ScheduleNoShow); err != nil {
		return err
	}
	b.touch(now)
	return nil
}

// TearDownSchedules cancels every open session, as done when the whole
// booking is cancelled. It returns the number of sessions cancelled.
func (b *Booking) TearDownSchedules(reason string, now time.Time) int {
	n := 0
	for i := range b.s.Schedules {
		if !b.s.Schedules[i].Status.IsOpen() {
			continue
		}
		t := now
		b.s.Schedules[i].Status = ScheduleCancelled
		b.s.Schedules[i].CancelledAt = &t
		b.s.Schedules[i].CancellationReason = reason
		n++
	}
	if n > 0 {
		b.touch(now)
	}
	return n
}

func (b *Booking) transitionSchedule(id string, target ScheduleStatus) (int, error) {
	i := b.scheduleIndex(id)
	if i < 0 {
		return -1, ErrScheduleNotFound
	}
	cur := b.s.Schedules[i].Status
	if !cur.CanTransitionTo(target) {
		return -1, &InvalidStateError{Operation: "update session of", Status: b.s.Status, Message: fmt.Sprintf("a %s session cannot become %s", cur, target)}
	}
	b.s.Schedules[i].Status = target
	return i, nil
}
