package entity

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestComputeLedger(t *testing.T) {
	schedules := []Schedule{
		{Date: "2025-06-01", StartTime: "09:00", EndTime: "12:00", Status: ScheduleCompleted},
		{Date: "2025-06-02", StartTime: "09:00", EndTime: "10:30", Status: ScheduleScheduled},
		{Date: "2025-06-03", StartTime: "09:00", EndTime: "11:00", Status: ScheduleCancelled},
		{Date: "2025-06-04", StartTime: "09:00", EndTime: "10:00", Status: ScheduleNoShow},
	}
	l := ComputeLedger(10, schedules)
	assert.Equal(t, 5.5, l.BookedHours)
	assert.Equal(t, 4.0, l.UsedHours)
	assert.Equal(t, 4.5, l.RemainingHours)
}

func TestComputeLedger_RemainingNeverNegative(t *testing.T) {
	l := ComputeLedger(1, []Schedule{{Date: "2025-06-01", StartTime: "09:00", EndTime: "12:00"}})
	assert.Equal(t, 0.0, l.RemainingHours)
}

func TestReconcileTotalHours(t *testing.T) {
	t.Run("keeps positive total", func(t *testing.T) {
		assert.Equal(t, 8.0, ReconcileTotalHours(8, []Schedule{{Date: "2025-06-01", StartTime: "09:00", EndTime: "10:00"}}))
	})
	t.Run("sums sessions when total missing", func(t *testing.T) {
		schedules := []Schedule{
			{Date: "2025-06-01", StartTime: "09:00", EndTime: "11:30"},
			{Date: "2025-06-02", StartTime: "14:00", EndTime: "15:00", Activities: []Activity{{Name: "Music", DurationHours: 0.75}}},
		}
		assert.Equal(t, 3.25, ReconcileTotalHours(0, schedules))
	})
	t.Run("cancelled sessions do not count", func(t *testing.T) {
		schedules := []Schedule{
			{Date: "2025-06-01", StartTime: "09:00", EndTime: "11:00", Status: ScheduleCompleted},
			{Date: "2025-06-02", StartTime: "09:00", EndTime: "12:00", Status: ScheduleCancelled},
		}
		assert.Equal(t, 2.0, ReconcileTotalHours(0, schedules))
		assert.Equal(t, PlaceholderHours, ReconcileTotalHours(0, schedules[1:]), "only cancelled sessions left")
	})
	t.Run("inverted times clamp to zero", func(t *testing.T) {
		schedules := []Schedule{{Date: "2025-06-01", StartTime: "12:00", EndTime: "10:00"}}
		assert.Equal(t, PlaceholderHours, ReconcileTotalHours(-1, schedules))
	})
	t.Run("pay-first draft gets placeholder", func(t *testing.T) {
		assert.Equal(t, PlaceholderHours, ReconcileTotalHours(0, nil))
	})
}

func TestReconcileState_Idempotent(t *testing.T) {
	st := State{
		Status:      StatusPending,
		TotalHours:  0,
		BookedHours: 99,
		Schedules: []Schedule{
			{ID: "a", Date: "2025-06-01", StartTime: "09:00", EndTime: "11:00", Status: ScheduleScheduled},
			{ID: "b", Date: "2025-06-02", StartTime: "09:00", EndTime: "10:00", Status: ScheduleCompleted},
		},
	}
	once := ReconcileState(st)
	twice := ReconcileState(once)

	assert.Equal(t, 3.0, once.TotalHours)
	assert.Equal(t, 3.0, once.BookedHours)
	assert.Equal(t, 1.0, once.UsedHours)
	assert.Equal(t, 0.0, once.RemainingHours)
	assert.Equal(t, once, twice)
}

func TestReconstitute_RebuildsDerivedFields(t *testing.T) {
	st := State{
		ID:             "b-1",
		Status:         StatusConfirmed,
		TotalHours:     10,
		RemainingHours: 10,
		TotalPrice:     100,
		PaidAmount:     100,
		PaymentStatus:  PaymentPending,
		Schedules: []Schedule{
			{ID: "a", Date: "2025-06-01", StartTime: "09:00", EndTime: "13:00"},
		},
	}
	b := Reconstitute(st)
	assert.Equal(t, 6.0, b.RemainingHours())
	assert.Equal(t, PaymentPaid, b.PaymentStatus())
	assert.Equal(t, ScheduleScheduled, b.Schedules()[0].Status)
}
