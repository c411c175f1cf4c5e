package entity

import (
	"fmt"
	"math"
	"net/mail"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
)

// PlaceholderHours is assigned to pay-first drafts that have neither hours nor
// schedules yet. Stored data relies on it, so it must stay nonzero until the
// backend assigns real hours on confirmation.
const PlaceholderHours = 0.01

const (
	DateLayout = "2006-01-02"
	TimeLayout = "15:04"
)

// Reference is the human-readable, immutable booking reference.
type Reference string

var referencePattern = regexp.MustCompile(`^BK-\d{8}-[0-9A-F]{8}$`)

// NewReference builds a reference of the form BK-YYYYMMDD-XXXXXXXX.
func NewReference(now time.Time) Reference {
	suffix := strings.ToUpper(strings.ReplaceAll(uuid.New().String(), "-", "")[:8])
	return Reference(fmt.Sprintf("BK-%s-%s", now.Format("20060102"), suffix))
}

// ParseReference validates a stored or user supplied reference.
func ParseReference(s string) (Reference, error) {
	s = strings.ToUpper(strings.TrimSpace(s))
	if !referencePattern.MatchString(s) {
		return "", &ValidationError{Field: "reference", Message: fmt.Sprintf("invalid booking reference %q", s)}
	}
	return Reference(s), nil
}

func (r Reference) String() string { return string(r) }

// Status is the booking lifecycle status.
type Status string

const (
	StatusDraft     Status = "draft"
	StatusPending   Status = "pending"
	StatusConfirmed Status = "confirmed"
	StatusCancelled Status = "cancelled"
)

func (s Status) IsValid() bool {
	switch s {
	case StatusDraft, StatusPending, StatusConfirmed, StatusCancelled:
		return true
	}
	return false
}

// IsOpen reports whether the status still counts towards an active package.
func (s Status) IsOpen() bool {
	return s == StatusDraft || s == StatusPending || s == StatusConfirmed
}

func (s Status) IsTerminal() bool { return s == StatusCancelled }

func ParseStatus(s string) (Status, error) {
	st := Status(strings.ToLower(strings.TrimSpace(s)))
	if !st.IsValid() {
		return "", &ValidationError{Field: "status", Message: fmt.Sprintf("invalid booking status: %s", s)}
	}
	return st, nil
}

// PaymentStatus is derived from the paid/total ratio, except refunded which is sticky.
type PaymentStatus string

const (
	PaymentPending  PaymentStatus = "pending"
	PaymentPartial  PaymentStatus = "partial"
	PaymentPaid     PaymentStatus = "paid"
	PaymentRefunded PaymentStatus = "refunded"
)

func (p PaymentStatus) IsValid() bool {
	switch p {
	case PaymentPending, PaymentPartial, PaymentPaid, PaymentRefunded:
		return true
	}
	return false
}

func ParsePaymentStatus(s string) (PaymentStatus, error) {
	ps := PaymentStatus(strings.ToLower(strings.TrimSpace(s)))
	if !ps.IsValid() {
		return "", &ValidationError{Field: "paymentStatus", Message: fmt.Sprintf("invalid payment status: %s", s)}
	}
	return ps, nil
}

// DerivePaymentStatus applies the paid/total rule: pending at zero, partial
// while below the total and paid once the total is covered.
func DerivePaymentStatus(paid, total float64) PaymentStatus {
	paid, total = RoundMoney(paid), RoundMoney(total)
	switch {
	case paid <= 0:
		return PaymentPending
	case paid >= total:
		return PaymentPaid
	default:
		return PaymentPartial
	}
}

// RoundMoney rounds to the 2-decimal currency convention.
func RoundMoney(v float64) float64 {
	return math.Round(v*100) / 100
}

// RoundHours keeps hour values at 2 decimals so sums stay stable.
func RoundHours(v float64) float64 {
	return math.Round(v*100) / 100
}

// Guardian is the parent or guardian contact attached to a booking.
type Guardian struct {
	Name  string
	Email string
	Phone string
}

func (g Guardian) Validate() error {
	if strings.TrimSpace(g.Name) == "" {
		return &ValidationError{Field: "parentGuardian.name", Message: "guardian name is required"}
	}
	if strings.TrimSpace(g.Email) == "" {
		return &ValidationError{Field: "parentGuardian.email", Message: "guardian email is required"}
	}
	if _, err := mail.ParseAddress(g.Email); err != nil {
		return &ValidationError{Field: "parentGuardian.email", Message: fmt.Sprintf("guardian email %q is not a valid address", g.Email)}
	}
	return nil
}

// Participant is a child attending the sessions of a booking.
type Participant struct {
	ChildID      string
	Name         string
	DateOfBirth  string
	MedicalNotes string
	SpecialNeeds string
}

// Key identifies the child across bookings. Participants without a stored
// child id fall back to their normalized name and date of birth.
func (p Participant) Key() string {
	if id := strings.TrimSpace(p.ChildID); id != "" {
		return id
	}
	name := strings.Join(strings.Fields(strings.ToLower(p.Name)), " ")
	return name + "|" + strings.TrimSpace(p.DateOfBirth)
}

func (p Participant) Validate() error {
	if strings.TrimSpace(p.Name) == "" {
		return &ValidationError{Field: "participants.name", Message: "every participant needs a name"}
	}
	if p.DateOfBirth != "" {
		if _, err := time.Parse(DateLayout, p.DateOfBirth); err != nil {
			return &ValidationError{Field: "participants.dateOfBirth", Message: fmt.Sprintf("date of birth %q must be YYYY-MM-DD", p.DateOfBirth)}
		}
	}
	return nil
}

// ParticipantKeys returns the distinct child keys of the given participants.
func ParticipantKeys(ps []Participant) []string {
	seen := make(map[string]bool, len(ps))
	keys := make([]string, 0, len(ps))
	for _, p := range ps {
		k := p.Key()
		if seen[k] {
			continue
		}
		seen[k] = true
		keys = append(keys, k)
	}
	return keys
}

// ParseClock converts an HH:MM wall-clock value to minutes after midnight.
func ParseClock(s string) (int, error) {
	t, err := time.Parse(TimeLayout, strings.TrimSpace(s))
	if err != nil {
		return 0, fmt.Errorf("time %q must be HH:MM", s)
	}
	return t.Hour()*60 + t.Minute(), nil
}

// ParseDate parses a civil YYYY-MM-DD date in UTC.
func ParseDate(s string) (time.Time, error) {
	d, err := time.Parse(DateLayout, strings.TrimSpace(s))
	if err != nil {
		return time.Time{}, fmt.Errorf("date %q must be YYYY-MM-DD", s)
	}
	return d, nil
}

// CivilDay truncates t to its calendar day in its own location, expressed in UTC.
func CivilDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
