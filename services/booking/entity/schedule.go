package entity

import (
	"fmt"
	"strings"
	"time"
)

// ScheduleStatus is the lifecycle status of a single session.
type ScheduleStatus string

const (
	ScheduleScheduled   ScheduleStatus = "scheduled"
	ScheduleCompleted   ScheduleStatus = "completed"
	ScheduleCancelled   ScheduleStatus = "cancelled"
	ScheduleNoShow      ScheduleStatus = "no_show"
	ScheduleRescheduled ScheduleStatus = "rescheduled"
)

var scheduleTransitions = map[ScheduleStatus][]ScheduleStatus{
	ScheduleScheduled:   {ScheduleCompleted, ScheduleCancelled, ScheduleNoShow, ScheduleRescheduled},
	ScheduleRescheduled: {ScheduleCompleted, ScheduleCancelled, ScheduleNoShow, ScheduleRescheduled},
	ScheduleCompleted:   {},
	ScheduleCancelled:   {},
	ScheduleNoShow:      {},
}

func (s ScheduleStatus) IsValid() bool {
	_, ok := scheduleTransitions[s]
	return ok
}

func (s ScheduleStatus) CanTransitionTo(target ScheduleStatus) bool {
	for _, t := range scheduleTransitions[s] {
		if t == target {
			return true
		}
	}
	return false
}

// IsOpen reports whether the session still lies ahead.
func (s ScheduleStatus) IsOpen() bool {
	return s == ScheduleScheduled || s == ScheduleRescheduled
}

func ParseScheduleStatus(s string) (ScheduleStatus, error) {
	st := ScheduleStatus(strings.ToLower(strings.TrimSpace(s)))
	if st == "" {
		return ScheduleScheduled, nil
	}
	if !st.IsValid() {
		return "", &ValidationError{Field: "schedules.status", Message: fmt.Sprintf("invalid session status: %s", s)}
	}
	return st, nil
}

// Activity is one activity within a session, optionally with its own duration.
type Activity struct {
	Name          string
	DurationHours float64
}

// Schedule is a session booked against a package. It is owned by its Booking.
type Schedule struct {
	ID        string
	Date      string
	StartTime string
	EndTime   string
	Status    ScheduleStatus

	TrainerID  string
	Activities []Activity
	Itinerary  string
	Location   string

	OriginalDate      string
	OriginalStartTime string
	OriginalEndTime   string
	RescheduledAt     *time.Time
	RescheduleReason  string

	CancellationReason string
	CancelledAt        *time.Time
}

// Interval returns the session window as minutes after midnight.
func (s Schedule) Interval() (start, end int, err error) {
	if start, err = ParseClock(s.StartTime); err != nil {
		return 0, 0, err
	}
	if end, err = ParseClock(s.EndTime); err != nil {
		return 0, 0, err
	}
	return start, end, nil
}

// Validate checks the civil date and that the window is non-empty.
func (s Schedule) Validate() error {
	if _, err := ParseDate(s.Date); err != nil {
		return &ValidationError{Field: "schedules.date", Message: err.Error()}
	}
	start, end, err := s.Interval()
	if err != nil {
		return &ValidationError{Field: "schedules.time", Message: err.Error()}
	}
	if end <= start {
		return &ValidationError{Field: "schedules.time", Message: fmt.Sprintf("session on %s must end after it starts (%s-%s)", s.Date, s.StartTime, s.EndTime)}
	}
	for _, a := range s.Activities {
		if a.DurationHours < 0 {
			return &ValidationError{Field: "schedules.activities", Message: fmt.Sprintf("activity %q has a negative duration", a.Name)}
		}
	}
	return nil
}

// ElapsedHours is the wall-clock length of the session, clamped at zero.
func (s Schedule) ElapsedHours() float64 {
	start, end, err := s.Interval()
	if err != nil || end <= start {
		return 0
	}
	return RoundHours(float64(end-start) / 60)
}

// DurationHours is the number of hours the session draws from the package.
// Activities with declared durations are summed; otherwise the wall-clock
// length is used.
func (s Schedule) DurationHours() float64 {
	var declared float64
	for _, a := range s.Activities {
		if a.DurationHours > 0 {
			declared += a.DurationHours
		}
	}
	if declared > 0 {
		return RoundHours(declared)
	}
	return s.ElapsedHours()
}

// OccupiesTime reports whether the session blocks its calendar slot and hours.
func (s Schedule) OccupiesTime() bool {
	return s.Status != ScheduleCancelled
}

// Consumed reports whether the session's hours are spent.
func (s Schedule) Consumed() bool {
	return s.Status == ScheduleCompleted || s.Status == ScheduleNoShow
}

// Overlaps applies half-open interval overlap on the same date.
func (s Schedule) Overlaps(o Schedule) bool {
	if s.Date != o.Date {
		return false
	}
	as, ae, err := s.Interval()
	if err != nil {
		return false
	}
	bs, be, err := o.Interval()
	if err != nil {
		return false
	}
	return as < be && ae > bs
}

func (s Schedule) clone() Schedule {
	out := s
	if s.Activities != nil {
		out.Activities = append([]Activity(nil), s.Activities...)
	}
	if s.RescheduledAt != nil {
		t := *s.RescheduledAt
		out.RescheduledAt = &t
	}
	if s.CancelledAt != nil {
		t := *s.CancelledAt
		out.CancelledAt = &t
	}
	return out
}
