package validator

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kidsclub/services/booking/entity"
)

var now = time.Date(2025, 5, 20, 9, 0, 0, 0, time.UTC)

var zuri = entity.Participant{ChildID: "child-1", Name: "Zuri", DateOfBirth: "2018-03-14"}

func existingBooking(t *testing.T, status entity.Status, ps entity.PaymentStatus, expires *time.Time, schedules ...entity.Schedule) *entity.Booking {
	t.Helper()
	for i := range schedules {
		if schedules[i].ID == "" {
			schedules[i].ID = schedules[i].Date + schedules[i].StartTime
		}
	}
	return entity.Reconstitute(entity.State{
		ID:               "existing-" + string(status),
		Reference:        entity.Reference("BK-20250101-ABCDEF12"),
		Status:           status,
		PaymentStatus:    ps,
		Participants:     []entity.Participant{zuri},
		Schedules:        schedules,
		TotalHours:       20,
		TotalPrice:       200,
		PaidAmount:       paidFor(ps),
		PackageExpiresAt: expires,
	})
}

func paidFor(ps entity.PaymentStatus) float64 {
	switch ps {
	case entity.PaymentPaid:
		return 200
	case entity.PaymentPartial:
		return 50
	}
	return 0
}

func TestCheckDuplicatePackage_ActivePaidBookingBlocksNewPackage(t *testing.T) {
	expires := time.Date(2099, 1, 1, 0, 0, 0, 0, time.UTC)
	active := existingBooking(t, entity.StatusConfirmed, entity.PaymentPaid, &expires)

	res := CheckDuplicatePackage(Candidate{Participants: []entity.Participant{zuri}}, []*entity.Booking{active}, now)

	require.True(t, res.IsDuplicate)
	require.Len(t, res.ConflictingBookings, 1)
	assert.Equal(t, active.ID(), res.ConflictingBookings[0].BookingID)
	assert.Equal(t, active.Reference(), res.ConflictingBookings[0].Reference)
	assert.Contains(t, res.Message, "1 January 2099")
	assert.Contains(t, res.Message, "Zuri")

	var derr *entity.DuplicatePackageError
	require.ErrorAs(t, res.Err(), &derr)
	assert.Equal(t, []entity.Reference{active.Reference()}, derr.References())
}

func TestCheckDuplicatePackage_InactiveBookingsDoNotCount(t *testing.T) {
	past := now.Add(-time.Hour)
	deleted := existingBooking(t, entity.StatusPending, entity.PaymentPending, nil)
	require.NoError(t, deleted.SoftDelete(now))

	refunded := existingBooking(t, entity.StatusConfirmed, entity.PaymentPaid, nil)
	require.NoError(t, refunded.Refund(200, "re_1", now))

	existing := []*entity.Booking{
		existingBooking(t, entity.StatusCancelled, entity.PaymentPaid, nil),
		existingBooking(t, entity.StatusConfirmed, entity.PaymentPaid, &past),
		deleted,
		refunded,
	}
	res := CheckDuplicatePackage(Candidate{Participants: []entity.Participant{zuri}}, existing, now)
	assert.False(t, res.IsDuplicate)
	assert.NoError(t, res.Err())
}

func TestCheckDuplicatePackage_MatchesByNameAndBirthDate(t *testing.T) {
	active := entity.Reconstitute(entity.State{
		ID:            "b-1",
		Reference:     "BK-20250101-00000001",
		Status:        entity.StatusDraft,
		PaymentStatus: entity.PaymentPending,
		Participants:  []entity.Participant{{Name: "Zuri  Otieno", DateOfBirth: "2018-03-14"}},
		TotalPrice:    100,
	})
	candidate := Candidate{Participants: []entity.Participant{
		{Name: "Kito", DateOfBirth: "2019-01-01"},
		{Name: "zuri otieno", DateOfBirth: "2018-03-14"},
	}}

	res := CheckDuplicatePackage(candidate, []*entity.Booking{active}, now)
	require.True(t, res.IsDuplicate)
	assert.Equal(t, "zuri otieno", res.ConflictingBookings[0].ChildName)
	assert.Contains(t, res.Message, "no expiry date")
}

func TestCheckDuplicatePackage_IgnoresCandidateItself(t *testing.T) {
	active := existingBooking(t, entity.StatusPending, entity.PaymentPending, nil)
	res := CheckDuplicatePackage(Candidate{ID: active.ID(), Participants: []entity.Participant{zuri}}, []*entity.Booking{active}, now)
	assert.False(t, res.IsDuplicate)
}

func TestCheckAvailability_OverlapOnSameDate(t *testing.T) {
	existing := existingBooking(t, entity.StatusConfirmed, entity.PaymentPaid, nil,
		entity.Schedule{Date: "2025-06-01", StartTime: "10:00", EndTime: "12:00"})
	occ := BuildOccupancy([]*entity.Booking{existing}, []string{zuri.Key()}, "")

	res := CheckAvailability([]entity.Schedule{{Date: "2025-06-01", StartTime: "11:00", EndTime: "13:00"}}, occ.BookedDates, occ.BookedTimeSlots)

	require.False(t, res.IsAvailable)
	require.Len(t, res.Conflicts, 1)
	assert.Equal(t, "2025-06-01", res.Conflicts[0].Date)
	assert.Contains(t, res.Conflicts[0].Reason, "10:00")

	var cerr *entity.SchedulingConflictError
	assert.ErrorAs(t, res.Err(), &cerr)
}

func TestCheckAvailability_BookedDateRefusesNonOverlappingSession(t *testing.T) {
	booked := map[string]bool{"2025-06-01": true}
	slots := []TimeSlot{{Date: "2025-06-01", StartTime: "09:00", EndTime: "10:00"}}

	res := CheckAvailability([]entity.Schedule{{Date: "2025-06-01", StartTime: "15:00", EndTime: "16:00"}}, booked, slots)
	require.False(t, res.IsAvailable)
	assert.Contains(t, res.Conflicts[0].Reason, "Sunday 1 June 2025")
}

func TestCheckAvailability_AdjacentSlotsDoNotOverlap(t *testing.T) {
	slots := []TimeSlot{{Date: "2025-06-01", StartTime: "10:00", EndTime: "12:00"}}
	res := CheckAvailability([]entity.Schedule{{Date: "2025-06-01", StartTime: "12:00", EndTime: "13:00"}}, nil, slots)
	assert.True(t, res.IsAvailable)
	assert.NoError(t, res.Err())
}

func TestCheckAvailability_CollisionsInsideTheRequest(t *testing.T) {
	res := CheckAvailability([]entity.Schedule{
		{Date: "2025-06-03", StartTime: "09:00", EndTime: "11:00"},
		{Date: "2025-06-03", StartTime: "10:00", EndTime: "12:00"},
		{Date: "2025-06-04", StartTime: "09:00", EndTime: "10:00"},
	}, nil, nil)
	require.False(t, res.IsAvailable)
	require.Len(t, res.Conflicts, 1)
	assert.Equal(t, "10:00", res.Conflicts[0].StartTime)
}

func TestBuildOccupancy(t *testing.T) {
	active := existingBooking(t, entity.StatusConfirmed, entity.PaymentPaid, nil,
		entity.Schedule{Date: "2025-06-02", StartTime: "10:00", EndTime: "11:00"},
		entity.Schedule{Date: "2025-06-01", StartTime: "10:00", EndTime: "11:00", Status: entity.ScheduleCancelled},
	)
	cancelled := existingBooking(t, entity.StatusCancelled, entity.PaymentPaid, nil,
		entity.Schedule{Date: "2025-06-05", StartTime: "10:00", EndTime: "11:00"})
	other := entity.Reconstitute(entity.State{
		ID:           "sibling",
		Status:       entity.StatusConfirmed,
		Participants: []entity.Participant{{ChildID: "child-2", Name: "Kito"}},
		Schedules:    []entity.Schedule{{ID: "s", Date: "2025-06-07", StartTime: "10:00", EndTime: "11:00"}},
	})

	occ := BuildOccupancy([]*entity.Booking{active, cancelled, other}, []string{zuri.Key()}, "")
	assert.Equal(t, []string{"2025-06-02"}, occ.Dates())
	assert.Len(t, occ.BookedTimeSlots, 1)

	occ = BuildOccupancy([]*entity.Booking{active}, []string{zuri.Key()}, active.ID())
	assert.Empty(t, occ.Dates())
}

func TestCheckModeCompatibility(t *testing.T) {
	res := CheckModeCompatibility("", Package{})
	assert.True(t, res.Compatible)
	assert.Equal(t, ModeFlexible, res.Mode)
	assert.Empty(t, res.Warning)

	res = CheckModeCompatibility("Weekly-Fixed", Package{})
	assert.False(t, res.Compatible)
	assert.Equal(t, ModeFlexible, res.SuggestedMode)
	assert.Contains(t, res.Warning, "Weekly fixed")

	res = CheckModeCompatibility("overnight", Package{})
	assert.False(t, res.Compatible)
	assert.Equal(t, ModeFlexible, res.SuggestedMode)

	res = CheckModeCompatibility("flexible", Package{Name: "Holiday camp", SupportedModes: []string{ModeIntensive}})
	assert.False(t, res.Compatible)
	assert.Contains(t, res.Warning, "Holiday camp")
}

func TestValidate_WarningsNeverBlock(t *testing.T) {
	res := Validate(Request{
		Candidate: Candidate{Participants: []entity.Participant{zuri}},
		Schedules: []entity.Schedule{{Date: "2025-06-01", StartTime: "10:00", EndTime: "12:00"}},
		Mode:      ModeIntensive,
		Now:       now,
	})
	assert.True(t, res.Valid)
	assert.NoError(t, res.Err())
	assert.Len(t, res.Warnings, 1)
}

func TestValidate_CollectsHardErrors(t *testing.T) {
	active := existingBooking(t, entity.StatusConfirmed, entity.PaymentPaid, nil,
		entity.Schedule{Date: "2025-06-01", StartTime: "10:00", EndTime: "12:00"})

	res := Validate(Request{
		Candidate: Candidate{Participants: []entity.Participant{zuri}},
		Schedules: []entity.Schedule{{Date: "2025-06-01", StartTime: "11:00", EndTime: "13:00"}},
		Existing:  []*entity.Booking{active},
		Now:       now,
	})
	assert.False(t, res.Valid)
	require.Len(t, res.Errors, 2)

	var derr *entity.DuplicatePackageError
	assert.ErrorAs(t, res.Err(), &derr)

	res = Validate(Request{
		Candidate:          Candidate{Participants: []entity.Participant{zuri}},
		Schedules:          []entity.Schedule{{Date: "2025-06-09", StartTime: "11:00", EndTime: "13:00"}},
		Existing:           []*entity.Booking{active},
		Now:                now,
		SkipDuplicateCheck: true,
	})
	assert.True(t, res.Valid)
}
