package booking

import (
	"strings"

	"kidsclub/models"
	"kidsclub/services/booking/entity"
)

// ToRecord converts the aggregate to its stored/wire representation.
func ToRecord(b *entity.Booking) models.BookingRecord {
	st := b.State()
	rec := models.BookingRecord{
		ID:                 st.ID,
		Reference:          st.Reference.String(),
		ParentID:           st.ParentID,
		Status:             string(st.Status),
		PaymentStatus:      string(st.PaymentStatus),
		ParentGuardian:     models.GuardianRecord{Name: st.Guardian.Name, Email: st.Guardian.Email, Phone: st.Guardian.Phone},
		ChildKeys:          b.ChildKeys(),
		PackageID:          st.PackageID,
		PackageName:        st.PackageName,
		Mode:               st.Mode,
		TotalHours:         st.TotalHours,
		BookedHours:        st.BookedHours,
		UsedHours:          st.UsedHours,
		RemainingHours:     st.RemainingHours,
		TotalPrice:         st.TotalPrice,
		PaidAmount:         st.PaidAmount,
		RefundedAmount:     st.RefundedAmount,
		OutstandingAmount:  b.OutstandingAmount(),
		Currency:           st.Currency,
		PackageExpiresAt:   st.PackageExpiresAt,
		CreatedAt:          st.CreatedAt,
		UpdatedAt:          st.UpdatedAt,
		CancelledAt:        st.CancelledAt,
		CancellationReason: st.CancellationReason,
		DeletedAt:          st.DeletedAt,
		Version:            st.Version,
	}
	rec.Participants = make([]models.ParticipantRecord, 0, len(st.Participants))
	for _, p := range st.Participants {
		rec.Participants = append(rec.Participants, participantRecord(p))
	}
	rec.Schedules = make([]models.ScheduleRecord, 0, len(st.Schedules))
	for _, sc := range st.Schedules {
		rec.Schedules = append(rec.Schedules, scheduleRecord(sc))
	}
	for _, p := range st.Payments {
		rec.Payments = append(rec.Payments, models.PaymentRecord{
			PaymentID: p.PaymentID, Kind: string(p.Kind), Amount: p.Amount, Hours: p.Hours, At: p.At,
		})
	}
	return rec
}

// FromRecord rehydrates the aggregate. Business rules are not re-run but the
// hours ledger and payment status are rebuilt from the stored facts.
func FromRecord(rec models.BookingRecord) *entity.Booking {
	st := entity.State{
		ID:                 rec.ID,
		Reference:          entity.Reference(strings.ToUpper(strings.TrimSpace(rec.Reference))),
		ParentID:           rec.ParentID,
		Status:             entity.Status(strings.ToLower(strings.TrimSpace(rec.Status))),
		PaymentStatus:      entity.PaymentStatus(strings.ToLower(strings.TrimSpace(rec.PaymentStatus))),
		Guardian:           entity.Guardian{Name: rec.ParentGuardian.Name, Email: rec.ParentGuardian.Email, Phone: rec.ParentGuardian.Phone},
		PackageID:          rec.PackageID,
		PackageName:        rec.PackageName,
		Mode:               rec.Mode,
		TotalHours:         rec.TotalHours,
		BookedHours:        rec.BookedHours,
		UsedHours:          rec.UsedHours,
		RemainingHours:     rec.RemainingHours,
		TotalPrice:         rec.TotalPrice,
		PaidAmount:         rec.PaidAmount,
		RefundedAmount:     rec.RefundedAmount,
		Currency:           rec.Currency,
		PackageExpiresAt:   rec.PackageExpiresAt,
		CreatedAt:          rec.CreatedAt,
		UpdatedAt:          rec.UpdatedAt,
		CancelledAt:        rec.CancelledAt,
		CancellationReason: rec.CancellationReason,
		DeletedAt:          rec.DeletedAt,
		Version:            rec.Version,
	}
	for _, p := range rec.Participants {
		st.Participants = append(st.Participants, participantEntity(p))
	}
	for _, sc := range rec.Schedules {
		st.Schedules = append(st.Schedules, scheduleEntity(sc))
	}
	for _, p := range rec.Payments {
		st.Payments = append(st.Payments, entity.PaymentEntry{
			PaymentID: p.PaymentID, Kind: entity.PaymentKind(p.Kind), Amount: p.Amount, Hours: p.Hours, At: p.At,
		})
	}
	return entity.Reconstitute(st)
}

// FromRecords rehydrates a snapshot.
func FromRecords(recs []models.BookingRecord) []*entity.Booking {
	out := make([]*entity.Booking, 0, len(recs))
	for _, rec := range recs {
		out = append(out, FromRecord(rec))
	}
	return out
}

func participantRecord(p entity.Participant) models.ParticipantRecord {
	return models.ParticipantRecord{
		ChildID: p.ChildID, Name: p.Name, DateOfBirth: p.DateOfBirth,
		MedicalNotes: p.MedicalNotes, SpecialNeeds: p.SpecialNeeds,
	}
}

func participantEntity(p models.ParticipantRecord) entity.Participant {
	return entity.Participant{
		ChildID:      strings.TrimSpace(p.ChildID),
		Name:         strings.TrimSpace(p.Name),
		DateOfBirth:  strings.TrimSpace(p.DateOfBirth),
		MedicalNotes: p.MedicalNotes,
		SpecialNeeds: p.SpecialNeeds,
	}
}

func participantEntities(ps []models.ParticipantRecord) []entity.Participant {
	out := make([]entity.Participant, 0, len(ps))
	for _, p := range ps {
		out = append(out, participantEntity(p))
	}
	return out
}

func scheduleRecord(sc entity.Schedule) models.ScheduleRecord {
	rec := models.ScheduleRecord{
		ID:                 sc.ID,
		Date:               sc.Date,
		StartTime:          sc.StartTime,
		EndTime:            sc.EndTime,
		Status:             string(sc.Status),
		TrainerID:          sc.TrainerID,
		Itinerary:          sc.Itinerary,
		Location:           sc.Location,
		OriginalDate:       sc.OriginalDate,
		OriginalStartTime:  sc.OriginalStartTime,
		OriginalEndTime:    sc.OriginalEndTime,
		RescheduledAt:      sc.RescheduledAt,
		RescheduleReason:   sc.RescheduleReason,
		CancellationReason: sc.CancellationReason,
		CancelledAt:        sc.CancelledAt,
	}
	for _, a := range sc.Activities {
		rec.Activities = append(rec.Activities, models.ActivityRecord{Name: a.Name, DurationHours: a.DurationHours})
	}
	return rec
}

func scheduleEntity(rec models.ScheduleRecord) entity.Schedule {
	sc := entity.Schedule{
		ID:                 rec.ID,
		Date:               strings.TrimSpace(rec.Date),
		StartTime:          strings.TrimSpace(rec.StartTime),
		EndTime:            strings.TrimSpace(rec.EndTime),
		Status:             entity.ScheduleStatus(strings.ToLower(strings.TrimSpace(rec.Status))),
		TrainerID:          rec.TrainerID,
		Itinerary:          rec.Itinerary,
		Location:           rec.Location,
		OriginalDate:       rec.OriginalDate,
		OriginalStartTime:  rec.OriginalStartTime,
		OriginalEndTime:    rec.OriginalEndTime,
		RescheduledAt:      rec.RescheduledAt,
		RescheduleReason:   rec.RescheduleReason,
		CancellationReason: rec.CancellationReason,
		CancelledAt:        rec.CancelledAt,
	}
	for _, a := range rec.Activities {
		sc.Activities = append(sc.Activities, entity.Activity{Name: a.Name, DurationHours: a.DurationHours})
	}
	return sc
}

func scheduleEntities(recs []models.ScheduleRecord) []entity.Schedule {
	out := make([]entity.Schedule, 0, len(recs))
	for _, rec := range recs {
		out = append(out, scheduleEntity(rec))
	}
	return out
}

func sessionEntity(req models.SessionRequest) entity.Schedule {
	return scheduleEntity(models.ScheduleRecord{
		Date: req.Date, StartTime: req.StartTime, EndTime: req.EndTime,
		TrainerID: req.TrainerID, Activities: req.Activities,
		Itinerary: req.Itinerary, Location: req.Location,
	})
}
