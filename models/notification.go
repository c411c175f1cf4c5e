package models

// EmailMessage is a queued email to a guardian.
type EmailMessage struct {
	To      string `json:"to"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

// SessionReminder is the payload of a scheduled session reminder.
type SessionReminder struct {
	BookingID  string `json:"bookingId"`
	ScheduleID string `json:"scheduleId"`
	Email      string `json:"email"`
	ChildNames string `json:"childNames"`
	Date       string `json:"date"`
	StartTime  string `json:"startTime"`
	EndTime    string `json:"endTime"`
	Location   string `json:"location,omitempty"`
}

// RefundJob is the payload of a background refund.
type RefundJob struct {
	BookingID string  `json:"bookingId"`
	PaymentID string  `json:"paymentId"`
	Amount    float64 `json:"amount"`
	Currency  string  `json:"currency"`
	Reason    string  `json:"reason"`
}
