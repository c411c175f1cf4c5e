package models

import "time"

// BookingRecord is the stored and wire shape of a booking package.
// Hours and money are floats with the 2-decimal convention.
type BookingRecord struct {
	ID            string `bson:"id" json:"id"`
	Reference     string `bson:"reference" json:"reference"`
	ParentID      string `bson:"parentId" json:"parentId"`
	Status        string `bson:"status" json:"status"`               // draft | pending | confirmed | cancelled
	PaymentStatus string `bson:"paymentStatus" json:"paymentStatus"` // pending | partial | paid | refunded

	ParentGuardian GuardianRecord      `bson:"parentGuardian" json:"parentGuardian"`
	Participants   []ParticipantRecord `bson:"participants" json:"participants"`
	ChildKeys      []string            `bson:"childKeys" json:"-"` // denormalized for the per-child lookup
	Schedules      []ScheduleRecord    `bson:"schedules" json:"schedules"`

	PackageID   string `bson:"packageId,omitempty" json:"packageId,omitempty"`
	PackageName string `bson:"packageName,omitempty" json:"packageName,omitempty"`
	Mode        string `bson:"mode,omitempty" json:"mode,omitempty"`

	TotalHours     float64 `bson:"totalHours" json:"totalHours"`
	BookedHours    float64 `bson:"bookedHours" json:"bookedHours"`
	UsedHours      float64 `bson:"usedHours" json:"usedHours"`
	RemainingHours float64 `bson:"remainingHours" json:"remainingHours"`

	TotalPrice        float64         `bson:"totalPrice" json:"totalPrice"`
	PaidAmount        float64         `bson:"paidAmount" json:"paidAmount"`
	RefundedAmount    float64         `bson:"refundedAmount" json:"refundedAmount"`
	OutstandingAmount float64         `bson:"outstandingAmount" json:"outstandingAmount"`
	Currency          string          `bson:"currency" json:"currency"`
	Payments          []PaymentRecord `bson:"payments,omitempty" json:"payments,omitempty"`

	PackageExpiresAt   *time.Time `bson:"packageExpiresAt,omitempty" json:"packageExpiresAt,omitempty"`
	CreatedAt          time.Time  `bson:"createdAt" json:"createdAt"`
	UpdatedAt          time.Time  `bson:"updatedAt" json:"updatedAt"`
	CancelledAt        *time.Time `bson:"cancelledAt,omitempty" json:"cancelledAt,omitempty"`
	CancellationReason string     `bson:"cancellationReason,omitempty" json:"cancellationReason,omitempty"`
	DeletedAt          *time.Time `bson:"deletedAt,omitempty" json:"deletedAt,omitempty"`

	Version int64 `bson:"version" json:"version"`
}

type GuardianRecord struct {
	Name  string `bson:"name" json:"name"`
	Email string `bson:"email" json:"email"`
	Phone string `bson:"phone,omitempty" json:"phone,omitempty"`
}

type ParticipantRecord struct {
	ChildID      string `bson:"childId,omitempty" json:"childId,omitempty"`
	Name         string `bson:"name" json:"name"`
	DateOfBirth  string `bson:"dateOfBirth,omitempty" json:"dateOfBirth,omitempty"` // YYYY-MM-DD
	MedicalNotes string `bson:"medicalNotes,omitempty" json:"medicalNotes,omitempty"`
	SpecialNeeds string `bson:"specialNeeds,omitempty" json:"specialNeeds,omitempty"`
}

// ScheduleRecord is one session. Date and times are local civil values.
type ScheduleRecord struct {
	ID         string           `bson:"id" json:"id"`
	Date       string           `bson:"date" json:"date"`           // YYYY-MM-DD
	StartTime  string           `bson:"startTime" json:"startTime"` // HH:MM
	EndTime    string           `bson:"endTime" json:"endTime"`     // HH:MM
	Status     string           `bson:"status" json:"status"`
	TrainerID  string           `bson:"trainerId,omitempty" json:"trainerId,omitempty"`
	Activities []ActivityRecord `bson:"activities,omitempty" json:"activities,omitempty"`
	Itinerary  string           `bson:"itinerary,omitempty" json:"itinerary,omitempty"`
	Location   string           `bson:"location,omitempty" json:"location,omitempty"`

	OriginalDate      string     `bson:"originalDate,omitempty" json:"originalDate,omitempty"`
	OriginalStartTime string     `bson:"originalStartTime,omitempty" json:"originalStartTime,omitempty"`
	OriginalEndTime   string     `bson:"originalEndTime,omitempty" json:"originalEndTime,omitempty"`
	RescheduledAt     *time.Time `bson:"rescheduledAt,omitempty" json:"rescheduledAt,omitempty"`
	RescheduleReason  string     `bson:"rescheduleReason,omitempty" json:"rescheduleReason,omitempty"`

	CancellationReason string     `bson:"cancellationReason,omitempty" json:"cancellationReason,omitempty"`
	CancelledAt        *time.Time `bson:"cancelledAt,omitempty" json:"cancelledAt,omitempty"`
}

type ActivityRecord struct {
	Name          string  `bson:"name" json:"name"`
	DurationHours float64 `bson:"durationHours,omitempty" json:"durationHours,omitempty"`
}

// PaymentRecord is an entry of the booking's payment history.
type PaymentRecord struct {
	PaymentID string    `bson:"paymentId" json:"paymentId"`
	Kind      string    `bson:"kind" json:"kind"` // charge | topup | refund
	Amount    float64   `bson:"amount" json:"amount"`
	Hours     float64   `bson:"hours,omitempty" json:"hours,omitempty"`
	At        time.Time `bson:"at" json:"at"`
}
