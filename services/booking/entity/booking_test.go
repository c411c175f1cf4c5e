package entity

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2025, 5, 20, 9, 0, 0, 0, time.UTC)

func validParams() NewBookingParams {
	return NewBookingParams{
		ParentID:     "parent-1",
		Guardian:     Guardian{Name: "Amina Otieno", Email: "amina@example.com", Phone: "+254700000000"},
		Participants: []Participant{{ChildID: "child-1", Name: "Zuri", DateOfBirth: "2018-03-14"}},
		PackageID:    "pkg-10h",
		PackageName:  "10 hour pack",
		Mode:         "flexible",
		TotalHours:   10,
		TotalPrice:   100,
		Currency:     "USD",
		Now:          testNow,
	}
}

func session(date, start, end string) Schedule {
	return Schedule{Date: date, StartTime: start, EndTime: end}
}

func TestNew_RemainingHoursAfterOneSession(t *testing.T) {
	p := validParams()
	p.Schedules = []Schedule{session("2025-06-01", "10:00", "13:00")}

	b, err := New(p)
	require.NoError(t, err)

	assert.Equal(t, StatusPending, b.Status())
	assert.Equal(t, PaymentPending, b.PaymentStatus())
	assert.Equal(t, 10.0, b.TotalHours())
	assert.Equal(t, 3.0, b.BookedHours())
	assert.Equal(t, 7.0, b.RemainingHours())
	assert.Equal(t, "usd", b.Currency())
	assert.NotEmpty(t, b.ID())
	_, err = ParseReference(b.Reference().String())
	assert.NoError(t, err)
}

func TestNew_PayFirstDraftGetsPlaceholderHours(t *testing.T) {
	p := validParams()
	p.TotalHours = 0

	b, err := New(p)
	require.NoError(t, err)
	assert.Equal(t, StatusDraft, b.Status())
	assert.Equal(t, PlaceholderHours, b.TotalHours())
	assert.Equal(t, PlaceholderHours, b.RemainingHours())
}

func TestNew_ValidationFailures(t *testing.T) {
	cases := map[string]func(*NewBookingParams){
		"missing guardian name":  func(p *NewBookingParams) { p.Guardian.Name = "" },
		"missing guardian email": func(p *NewBookingParams) { p.Guardian.Email = " " },
		"bad guardian email":     func(p *NewBookingParams) { p.Guardian.Email = "not-an-email" },
		"no participants":        func(p *NewBookingParams) { p.Participants = nil },
		"zero hours with sessions": func(p *NewBookingParams) {
			p.TotalHours = 0
			p.Schedules = []Schedule{session("2025-06-01", "10:00", "11:00")}
		},
		"zero price":        func(p *NewBookingParams) { p.TotalPrice = 0 },
		"sessions too long": func(p *NewBookingParams) { p.Schedules = []Schedule{session("2025-06-01", "08:00", "19:00")} },
		"inverted session":  func(p *NewBookingParams) { p.Schedules = []Schedule{session("2025-06-01", "12:00", "10:00")} },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			p := validParams()
			mutate(&p)
			_, err := New(p)
			var verr *ValidationError
			require.ErrorAs(t, err, &verr)
			assert.NotEmpty(t, verr.Error())
		})
	}
}

func TestNew_RejectsTwoSessionsOnTheSameDay(t *testing.T) {
	p := validParams()
	p.Schedules = []Schedule{
		session("2025-06-01", "09:00", "10:00"),
		session("2025-06-01", "14:00", "15:00"),
	}
	_, err := New(p)
	var cerr *SchedulingConflictError
	require.ErrorAs(t, err, &cerr)
	assert.Equal(t, "2025-06-01", cerr.Conflicts[0].Date)
}

func TestApplyPayment_DerivesPaymentStatus(t *testing.T) {
	b, err := New(validParams())
	require.NoError(t, err)

	require.NoError(t, b.ApplyPayment(40, "pi_1", testNow))
	assert.Equal(t, PaymentPartial, b.PaymentStatus())
	assert.Equal(t, 40.0, b.PaidAmount())
	assert.Equal(t, 60.0, b.OutstandingAmount())
	assert.Equal(t, StatusPending, b.Status())

	require.NoError(t, b.ApplyPayment(60, "pi_2", testNow))
	assert.Equal(t, PaymentPaid, b.PaymentStatus())
	assert.Equal(t, 0.0, b.OutstandingAmount())
	assert.Len(t, b.Payments(), 2)
}

func TestApplyPayment_RejectsOutOfBoundsAmounts(t *testing.T) {
	b, err := New(validParams())
	require.NoError(t, err)

	for _, amount := range []float64{0, -5, 100.01} {
		err := b.ApplyPayment(amount, "pi", testNow)
		var verr *ValidationError
		assert.ErrorAs(t, err, &verr, "amount %v", amount)
	}
	assert.Equal(t, 0.0, b.PaidAmount())
	assert.Equal(t, PaymentPending, b.PaymentStatus())
}

func TestCancel(t *testing.T) {
	p := validParams()
	p.Schedules = []Schedule{session("2025-06-01", "10:00", "12:00")}
	b, err := New(p)
	require.NoError(t, err)

	err = b.Cancel("", testNow)
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, StatusPending, b.Status())

	require.NoError(t, b.Cancel("parent request", testNow))
	assert.Equal(t, StatusCancelled, b.Status())
	require.NotNil(t, b.CancelledAt())
	assert.Equal(t, "parent request", b.CancellationReason())
	assert.Equal(t, ScheduleScheduled, b.Schedules()[0].Status)
	assert.Equal(t, 2.0, b.BookedHours())

	err = b.Cancel("again", testNow)
	var serr *InvalidStateError
	assert.ErrorAs(t, err, &serr)
}

func TestCancel_RefusedWhenEverySessionCompleted(t *testing.T) {
	p := validParams()
	p.Schedules = []Schedule{session("2025-06-01", "10:00", "12:00")}
	b, err := New(p)
	require.NoError(t, err)
	require.NoError(t, b.CompleteSchedule(b.Schedules()[0].ID, testNow))

	err = b.Cancel("late request", testNow)
	var serr *InvalidStateError
	assert.ErrorAs(t, err, &serr)
}

func TestConfirm(t *testing.T) {
	b, err := New(validParams())
	require.NoError(t, err)

	var serr *InvalidStateError
	require.ErrorAs(t, b.Confirm(testNow), &serr)

	require.NoError(t, b.ApplyPayment(100, "pi_1", testNow))
	require.NoError(t, b.Confirm(testNow))
	assert.Equal(t, StatusConfirmed, b.Status())
	assert.ErrorAs(t, b.Confirm(testNow), &serr)
}

func TestNew_ExpiryMustBeInTheFuture(t *testing.T) {
	var zero time.Time
	past := testNow.Add(-time.Hour)
	for name, exp := range map[string]*time.Time{"zero": &zero, "past": &past, "now": &testNow} {
		p := validParams()
		p.PackageExpiresAt = exp
		_, err := New(p)
		var verr *ValidationError
		require.ErrorAs(t, err, &verr, name)
		assert.Equal(t, "packageExpiresAt", verr.Field, name)
	}

	b, err := New(validParams())
	require.NoError(t, err)
	assert.Nil(t, b.PackageExpiresAt(), "no expiry is allowed")
	err = b.UpdateDetails(UpdateParams{PackageExpiresAt: &past}, testNow)
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Nil(t, b.PackageExpiresAt())
}

func TestConfirm_ExpiredPackage(t *testing.T) {
	p := validParams()
	exp := testNow.Add(24 * time.Hour)
	p.PackageExpiresAt = &exp
	b, err := New(p)
	require.NoError(t, err)
	require.NoError(t, b.ApplyPayment(100, "pi_1", testNow))

	err = b.Confirm(exp.Add(time.Minute))
	var serr *InvalidStateError
	require.ErrorAs(t, err, &serr)
	assert.Contains(t, serr.Error(), "expired")
}

func TestIsActive(t *testing.T) {
	future := time.Date(2099, 1, 1, 0, 0, 0, 0, time.UTC)
	soon := testNow.Add(time.Hour)

	p := validParams()
	p.PackageExpiresAt = &future
	b, err := New(p)
	require.NoError(t, err)
	assert.True(t, b.IsActive(testNow))

	p.PackageExpiresAt = &soon
	expiring, err := New(p)
	require.NoError(t, err)
	assert.True(t, expiring.IsActive(testNow))
	assert.False(t, expiring.IsActive(soon), "expiry is exclusive")

	deleted, err := New(validParams())
	require.NoError(t, err)
	require.NoError(t, deleted.SoftDelete(testNow))
	assert.False(t, deleted.IsActive(testNow))

	refunded, err := New(validParams())
	require.NoError(t, err)
	require.NoError(t, refunded.ApplyPayment(50, "pi", testNow))
	require.NoError(t, refunded.Refund(50, "re", testNow))
	assert.False(t, refunded.IsActive(testNow))
}

func TestRefund_IsStickyAndMonotonic(t *testing.T) {
	b, err := New(validParams())
	require.NoError(t, err)
	require.NoError(t, b.ApplyPayment(100, "pi", testNow))

	require.NoError(t, b.Refund(30, "re_1", testNow))
	assert.Equal(t, PaymentRefunded, b.PaymentStatus())
	assert.Equal(t, 70.0, b.PaidAmount())
	assert.Equal(t, 30.0, b.RefundedAmount())

	err = b.ApplyPayment(10, "pi_again", testNow)
	var serr *InvalidStateError
	assert.ErrorAs(t, err, &serr)

	reloaded := Reconstitute(b.State())
	assert.Equal(t, PaymentRefunded, reloaded.PaymentStatus())
}

func TestAddSchedule_HoursGate(t *testing.T) {
	p := validParams()
	p.TotalHours = 4
	b, err := New(p)
	require.NoError(t, err)

	sc, err := b.AddSchedule(session("2025-06-02", "09:00", "12:00"), testNow)
	require.NoError(t, err)
	assert.NotEmpty(t, sc.ID)
	assert.Equal(t, 1.0, b.RemainingHours())
	assert.Equal(t, StatusPending, b.Status())

	_, err = b.AddSchedule(session("2025-06-03", "09:00", "11:00"), testNow)
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Error(), "remain")

	_, err = b.AddSchedule(session("2025-06-02", "13:00", "14:00"), testNow)
	var cerr *SchedulingConflictError
	assert.ErrorAs(t, err, &cerr)
}

func TestAddSchedule_ActivitiesDeclareDuration(t *testing.T) {
	b, err := New(validParams())
	require.NoError(t, err)

	sc := session("2025-06-02", "09:00", "12:00")
	sc.Activities = []Activity{{Name: "Swimming", DurationHours: 1}, {Name: "Art", DurationHours: 0.5}, {Name: "Snack"}}
	_, err = b.AddSchedule(sc, testNow)
	require.NoError(t, err)
	assert.Equal(t, 1.5, b.BookedHours())
	assert.Equal(t, 8.5, b.RemainingHours())
}

func TestCancelSchedule_ReleasesHours(t *testing.T) {
	p := validParams()
	p.Schedules = []Schedule{session("2025-06-01", "10:00", "13:00")}
	b, err := New(p)
	require.NoError(t, err)
	id := b.Schedules()[0].ID

	require.Error(t, b.CancelSchedule(id, "", testNow))
	require.NoError(t, b.CancelSchedule(id, "sick", testNow))
	assert.Equal(t, 0.0, b.BookedHours())
	assert.Equal(t, 10.0, b.RemainingHours())

	_, err = b.AddSchedule(session("2025-06-01", "10:00", "13:00"), testNow)
	assert.NoError(t, err, "a cancelled session frees its date")
}

func TestRescheduleSchedule_KeepsOriginalSlot(t *testing.T) {
	p := validParams()
	p.Schedules = []Schedule{session("2025-06-01", "10:00", "12:00")}
	b, err := New(p)
	require.NoError(t, err)
	id := b.Schedules()[0].ID

	moved, err := b.RescheduleSchedule(id, "2025-06-05", "14:00", "17:00", "holiday", testNow)
	require.NoError(t, err)
	assert.Equal(t, ScheduleRescheduled, moved.Status)
	assert.Equal(t, "2025-06-01", moved.OriginalDate)
	assert.Equal(t, "10:00", moved.OriginalStartTime)
	assert.Equal(t, 3.0, b.BookedHours())

	moved, err = b.RescheduleSchedule(id, "2025-06-06", "14:00", "15:00", "again", testNow)
	require.NoError(t, err)
	assert.Equal(t, "2025-06-01", moved.OriginalDate)
	assert.Equal(t, 1.0, b.BookedHours())

	_, err = b.RescheduleSchedule("missing", "2025-06-06", "14:00", "15:00", "", testNow)
	assert.True(t, errors.Is(err, ErrScheduleNotFound))
}

func TestUsedHours_CountsCompletedAndNoShow(t *testing.T) {
	p := validParams()
	p.Schedules = []Schedule{
		session("2025-06-01", "10:00", "12:00"),
		session("2025-06-02", "10:00", "11:00"),
		session("2025-06-03", "10:00", "11:30"),
	}
	b, err := New(p)
	require.NoError(t, err)
	s := b.Schedules()
	require.NoError(t, b.CompleteSchedule(s[0].ID, testNow))
	require.NoError(t, b.MarkNoShow(s[1].ID, testNow))

	assert.Equal(t, 3.0, b.UsedHours())
	assert.Equal(t, 4.5, b.BookedHours())
	assert.Equal(t, 5.5, b.RemainingHours())

	var serr *InvalidStateError
	assert.ErrorAs(t, b.CompleteSchedule(s[1].ID, testNow), &serr)
}

func TestTearDownSchedules(t *testing.T) {
	p := validParams()
	p.Schedules = []Schedule{
		session("2025-06-01", "10:00", "12:00"),
		session("2025-06-02", "10:00", "11:00"),
	}
	b, err := New(p)
	require.NoError(t, err)
	require.NoError(t, b.CompleteSchedule(b.Schedules()[0].ID, testNow))

	assert.Equal(t, 1, b.TearDownSchedules("booking cancelled", testNow))
	assert.Equal(t, 2.0, b.BookedHours())
	assert.Equal(t, ScheduleCompleted, b.Schedules()[0].Status)
	assert.Equal(t, ScheduleCancelled, b.Schedules()[1].Status)
}

func TestAddHours_TopUpIsIdempotentPerPayment(t *testing.T) {
	b, err := New(validParams())
	require.NoError(t, err)

	_, err = b.AddHours(5, 50, "cs_1", testNow)
	var serr *InvalidStateError
	require.ErrorAs(t, err, &serr)

	require.NoError(t, b.ApplyPayment(100, "pi", testNow))
	require.NoError(t, b.Confirm(testNow))

	applied, err := b.AddHours(5, 50, "cs_1", testNow)
	require.NoError(t, err)
	assert.True(t, applied)
	assert.Equal(t, 15.0, b.TotalHours())
	assert.Equal(t, 150.0, b.TotalPrice())
	assert.Equal(t, PaymentPaid, b.PaymentStatus())

	applied, err = b.AddHours(5, 50, "cs_1", testNow)
	require.NoError(t, err)
	assert.False(t, applied)
	assert.Equal(t, 15.0, b.TotalHours())
}

func TestAssignHours(t *testing.T) {
	p := validParams()
	p.TotalHours = 0
	b, err := New(p)
	require.NoError(t, err)

	require.Error(t, b.AssignHours(0, testNow))
	require.NoError(t, b.AssignHours(12, testNow))
	assert.Equal(t, 12.0, b.RemainingHours())
}

func TestUpdateDetails_PriceCannotDropBelowPaid(t *testing.T) {
	b, err := New(validParams())
	require.NoError(t, err)
	require.NoError(t, b.ApplyPayment(80, "pi", testNow))

	low := 50.0
	err = b.UpdateDetails(UpdateParams{TotalPrice: &low}, testNow)
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)

	high := 160.0
	require.NoError(t, b.UpdateDetails(UpdateParams{TotalPrice: &high}, testNow))
	assert.Equal(t, PaymentPartial, b.PaymentStatus())
	assert.Equal(t, 80.0, b.OutstandingAmount())
}

func TestRemainingHoursInvariantAcrossMutations(t *testing.T) {
	p := validParams()
	p.TotalHours = 6
	b, err := New(p)
	require.NoError(t, err)

	check := func() {
		t.Helper()
		want := b.TotalHours() - b.BookedHours()
		if want < 0 {
			want = 0
		}
		assert.InDelta(t, want, b.RemainingHours(), 0.001)
	}
	check()
	s1, err := b.AddSchedule(session("2025-06-01", "09:00", "11:00"), testNow)
	require.NoError(t, err)
	check()
	_, err = b.AddSchedule(session("2025-06-02", "09:00", "13:00"), testNow)
	require.NoError(t, err)
	check()
	require.NoError(t, b.CancelSchedule(s1.ID, "ill", testNow))
	check()
	require.NoError(t, b.ApplyPayment(100, "pi", testNow))
	check()
	require.NoError(t, b.Cancel("moving away", testNow))
	check()
}

func TestStateIsACopy(t *testing.T) {
	p := validParams()
	p.Schedules = []Schedule{session("2025-06-01", "10:00", "12:00")}
	b, err := New(p)
	require.NoError(t, err)

	st := b.State()
	st.Schedules[0].Status = ScheduleCancelled
	st.TotalHours = 1

	assert.Equal(t, ScheduleScheduled, b.Schedules()[0].Status)
	assert.Equal(t, 10.0, b.TotalHours())
}
