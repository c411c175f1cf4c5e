package models

import "time"

// CreateBookingRequest is the JSON body for a new package.
type CreateBookingRequest struct {
	ParentGuardian   GuardianRecord      `json:"parentGuardian"`
	Participants     []ParticipantRecord `json:"participants"`
	Schedules        []ScheduleRecord    `json:"schedules"`
	PackageID        string              `json:"packageId"`
	PackageName      string              `json:"packageName"`
	Mode             string              `json:"mode"`
	SupportedModes   []string            `json:"supportedModes,omitempty"`
	TotalHours       float64             `json:"totalHours"`
	PackageBasePrice float64             `json:"packageBasePrice"` // 0 prices ad-hoc hours at the hourly rate
	Currency         string              `json:"currency"`
	PackageExpiresAt *time.Time          `json:"packageExpiresAt,omitempty"`
}

// UpdateBookingRequest edits an existing package. Nil fields are left as they are.
type UpdateBookingRequest struct {
	ParentGuardian   *GuardianRecord     `json:"parentGuardian,omitempty"`
	Participants     []ParticipantRecord `json:"participants,omitempty"`
	Schedules        []ScheduleRecord    `json:"schedules,omitempty"` // new sessions to add
	PackageBasePrice *float64            `json:"packageBasePrice,omitempty"`
	PackageExpiresAt *time.Time          `json:"packageExpiresAt,omitempty"`
	Version          int64               `json:"version"`
}

type SessionRequest struct {
	Date       string           `json:"date" binding:"required"`
	StartTime  string           `json:"startTime" binding:"required"`
	EndTime    string           `json:"endTime" binding:"required"`
	TrainerID  string           `json:"trainerId,omitempty"`
	Activities []ActivityRecord `json:"activities,omitempty"`
	Itinerary  string           `json:"itinerary,omitempty"`
	Location   string           `json:"location,omitempty"`
}

type RescheduleRequest struct {
	Date      string `json:"date" binding:"required"`
	StartTime string `json:"startTime" binding:"required"`
	EndTime   string `json:"endTime" binding:"required"`
	Reason    string `json:"reason"`
}

type CancelRequest struct {
	Reason string `json:"reason"`
}

type ProcessPaymentRequest struct {
	Amount          float64 `json:"amount"`
	Method          string  `json:"method"` // card
	PaymentMethodID string  `json:"paymentMethodId"`
}

type TopUpRequest struct {
	Hours float64 `json:"hours"`
}

type AssignHoursRequest struct {
	Hours float64 `json:"hours"`
}

// TopUpCheckout is returned to the client, which redirects to URL.
type TopUpCheckout struct {
	BookingID string  `json:"bookingId"`
	SessionID string  `json:"sessionId"`
	URL       string  `json:"url"`
	Hours     float64 `json:"hours"`
	Amount    float64 `json:"amount"`
	Currency  string  `json:"currency"`
}
