package entity

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// PaymentKind tags an entry of the payment history.
type PaymentKind string

const (
	PaymentKindCharge PaymentKind = "charge"
	PaymentKindTopUp  PaymentKind = "topup"
	PaymentKindRefund PaymentKind = "refund"
)

// PaymentEntry records money moving in or out of a booking.
type PaymentEntry struct {
	PaymentID string
	Kind      PaymentKind
	Amount    float64
	Hours     float64
	At        time.Time
}

// State is the full, exported shape of a booking. It is what persistence
// stores and what Reconstitute consumes; mutation goes through Booking.
type State struct {
	ID            string
	Reference     Reference
	ParentID      string
	Status        Status
	PaymentStatus PaymentStatus

	Guardian     Guardian
	Participants []Participant
	Schedules    []Schedule

	PackageID   string
	PackageName string
	Mode        string

	TotalHours     float64
	BookedHours    float64
	UsedHours      float64
	RemainingHours float64

	TotalPrice     float64
	PaidAmount     float64
	RefundedAmount float64
	Currency       string
	Payments       []PaymentEntry

	PackageExpiresAt   *time.Time
	CreatedAt          time.Time
	UpdatedAt          time.Time
	CancelledAt        *time.Time
	CancellationReason string
	DeletedAt          *time.Time

	Version int64
}

func (s State) clone() State {
	out := s
	out.Participants = append([]Participant(nil), s.Participants...)
	out.Schedules = make([]Schedule, len(s.Schedules))
	for i, sc := range s.Schedules {
		out.Schedules[i] = sc.clone()
	}
	out.Payments = append([]PaymentEntry(nil), s.Payments...)
	out.PackageExpiresAt = cloneTime(s.PackageExpiresAt)
	out.CancelledAt = cloneTime(s.CancelledAt)
	out.DeletedAt = cloneTime(s.DeletedAt)
	return out
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

// Booking is the aggregate root for a purchased package and its sessions.
// Hours and money fields only change through its methods.
type Booking struct {
	s State
}

// NewBookingParams carries the creation input after pricing.
type NewBookingParams struct {
	ParentID         string
	Guardian         Guardian
	Participants     []Participant
	Schedules        []Schedule
	PackageID        string
	PackageName      string
	Mode             string
	TotalHours       float64
	TotalPrice       float64
	Currency         string
	PackageExpiresAt *time.Time
	Now              time.Time
}

// New creates a booking, enforcing every creation-time rule.
func New(p NewBookingParams) (*Booking, error) {
	if err := p.Guardian.Validate(); err != nil {
		return nil, err
	}
	if len(p.Participants) == 0 {
		return nil, &ValidationError{Field: "participants", Message: "at least one participant is required"}
	}
	for _, part := range p.Participants {
		if err := part.Validate(); err != nil {
			return nil, err
		}
	}
	if p.TotalHours < 0 {
		return nil, &ValidationError{Field: "totalHours", Message: "total hours cannot be negative"}
	}
	if p.TotalHours <= 0 && len(p.Schedules) > 0 {
		return nil, &ValidationError{Field: "totalHours", Message: "total hours must be positive when sessions are booked"}
	}
	if RoundMoney(p.TotalPrice) <= 0 {
		return nil, &ValidationError{Field: "totalPrice", Message: "total price must be greater than zero"}
	}
	now := p.Now
	if now.IsZero() {
		now = time.Now()
	}
	if err := checkExpiry(p.PackageExpiresAt, now); err != nil {
		return nil, err
	}

	schedules := make([]Schedule, 0, len(p.Schedules))
	for _, sc := range p.Schedules {
		sc, err := prepareSchedule(sc)
		if err != nil {
			return nil, err
		}
		if c, ok := collides(schedules, sc, ""); ok {
			return nil, &SchedulingConflictError{Conflicts: []ScheduleConflict{c}}
		}
		schedules = append(schedules, sc)
	}

	totalHours := RoundHours(p.TotalHours)
	if totalHours <= 0 {
		totalHours = PlaceholderHours
	}
	status := StatusDraft
	if len(schedules) > 0 {
		status = StatusPending
	}

	b := &Booking{s: State{
		ID:               uuid.New().String(),
		Reference:        NewReference(now),
		ParentID:         p.ParentID,
		Status:           status,
		PaymentStatus:    PaymentPending,
		Guardian:         p.Guardian,
		Participants:     append([]Participant(nil), p.Participants...),
		Schedules:        schedules,
		PackageID:        p.PackageID,
		PackageName:      p.PackageName,
		Mode:             p.Mode,
		TotalHours:       totalHours,
		TotalPrice:       RoundMoney(p.TotalPrice),
		Currency:         strings.ToLower(p.Currency),
		PackageExpiresAt: cloneTime(p.PackageExpiresAt),
		CreatedAt:        now,
		UpdatedAt:        now,
	}}
	b.reconcile()
	if b.s.BookedHours > b.s.TotalHours {
		return nil, &ValidationError{Field: "schedules", Message: fmt.Sprintf("sessions need %.2f hours but the package has %.2f", b.s.BookedHours, b.s.TotalHours)}
	}
	return b, nil
}

// Reconstitute rehydrates a stored booking without re-running business rules.
// Derived hours and the payment status are still rebuilt.
func Reconstitute(st State) *Booking {
	b := &Booking{s: st.clone()}
	if !b.s.Status.IsValid() {
		b.s.Status = StatusDraft
	}
	for i := range b.s.Schedules {
		if !b.s.Schedules[i].Status.IsValid() {
			b.s.Schedules[i].Status = ScheduleScheduled
		}
	}
	b.reconcile()
	b.derivePaymentStatus()
	return b
}

// State returns a deep copy of the booking's state.
func (b *Booking) State() State { return b.s.clone() }

func (b *Booking) ID() string { return b.s.ID }
func (b *Booking) Reference() Reference { return b.s.Reference }
func (b *Booking) ParentID() string { return b.s.ParentID }
func (b *Booking) Status() Status { return b.s.Status }
func (b *Booking) PaymentStatus() PaymentStatus { return b.s.PaymentStatus }
func (b *Booking) Guardian() Guardian { return b.s.Guardian }
func (b *Booking) PackageID() string { return b.s.PackageID }
func (b *Booking) PackageName() string { return b.s.PackageName }
func (b *Booking) Mode() string { return b.s.Mode }
func (b *Booking) TotalHours() float64 { return b.s.TotalHours }
func (b *Booking) BookedHours() float64 { return b.s.BookedHours }
func (b *Booking) UsedHours() float64 { return b.s.UsedHours }
func (b *Booking) RemainingHours() float64 { return b.s.RemainingHours }
func (b *Booking) TotalPrice() float64 { return b.s.TotalPrice }
func (b *Booking) PaidAmount() float64 { return b.s.PaidAmount }
func (b *Booking) RefundedAmount() float64 { return b.s.RefundedAmount }
func (b *Booking) Currency() string { return b.s.Currency }
func (b *Booking) CreatedAt() time.Time { return b.s.CreatedAt }
func (b *Booking) UpdatedAt() time.Time { return b.s.UpdatedAt }
func (b *Booking) CancellationReason() string { return b.s.CancellationReason }
func (b *Booking) Version() int64 { return b.s.Version }
func (b *Booking) PackageExpiresAt() *time.Time { return cloneTime(b.s.PackageExpiresAt) }
func (b *Booking) CancelledAt() *time.Time { return cloneTime(b.s.CancelledAt) }
func (b *Booking) DeletedAt() *time.Time { return cloneTime(b.s.DeletedAt) }

// OutstandingAmount is what is still owed on the package.
func (b *Booking) OutstandingAmount() float64 {
	return RoundMoney(b.s.TotalPrice - b.s.PaidAmount)
}

func (b *Booking) Participants() []Participant {
	return append([]Participant(nil), b.s.Participants...)
}

func (b *Booking) Schedules() []Schedule {
	out := make([]Schedule, len(b.s.Schedules))
	for i, sc := range b.s.Schedules {
		out[i] = sc.clone()
	}
	return out
}

// Schedule looks up a session by id.
func (b *Booking) Schedule(id string) (Schedule, bool) {
	if i := b.scheduleIndex(id); i >= 0 {
		return b.s.Schedules[i].clone(), true
	}
	return Schedule{}, false
}

// ChildKeys lists the distinct children on the booking.
func (b *Booking) ChildKeys() []string { return ParticipantKeys(b.s.Participants) }

// HasPayment reports whether a gateway payment id was already applied.
func (b *Booking) HasPayment(paymentID string) bool {
	if paymentID == "" {
		return false
	}
	for _, p := range b.s.Payments {
		if p.PaymentID == paymentID {
			return true
		}
	}
	return false
}

func (b *Booking) Payments() []PaymentEntry {
	return append([]PaymentEntry(nil), b.s.Payments...)
}

func (b *Booking) IsDeleted() bool { return b.s.DeletedAt != nil }

func (b *Booking) IsExpired(now time.Time) bool {
	return b.s.PackageExpiresAt != nil && !now.Before(*b.s.PackageExpiresAt)
}

// IsActive applies the active-package rule: open status, not refunded,
// not soft-deleted and not expired.
func (b *Booking) IsActive(now time.Time) bool {
	return b.s.Status.IsOpen() &&
		b.s.PaymentStatus != PaymentRefunded &&
		!b.IsDeleted() &&
		!b.IsExpired(now)
}

// CanConfirm is the confirmable predicate.
func (b *Booking) CanConfirm(now time.Time) error {
	switch {
	case b.s.Status != StatusDraft && b.s.Status != StatusPending:
		return &InvalidStateError{Operation: "confirm", Status: b.s.Status}
	case b.IsDeleted():
		return &InvalidStateError{Operation: "confirm", Status: b.s.Status, Message: "cannot confirm a deleted booking"}
	case b.IsExpired(now):
		return &InvalidStateError{Operation: "confirm", Status: b.s.Status, Message: fmt.Sprintf("package %s expired on %s", b.s.Reference, b.s.PackageExpiresAt.Format("2 January 2006"))}
	case b.s.PaymentStatus == PaymentRefunded:
		return &InvalidStateError{Operation: "confirm", Status: b.s.Status, Message: "cannot confirm a refunded booking"}
	case b.s.PaidAmount <= 0:
		return &InvalidStateError{Operation: "confirm", Status: b.s.Status, Message: "a booking can only be confirmed once a payment has cleared"}
	}
	return nil
}

// Confirm moves the booking to confirmed.
func (b *Booking) Confirm(now time.Time) error {
	if err := b.CanConfirm(now); err != nil {
		return err
	}
	b.s.Status = StatusConfirmed
	b.touch(now)
	return nil
}

// canCancel rejects terminal bookings and bookings whose every session is done.
func (b *Booking) canCancel() error {
	if b.s.Status == StatusCancelled {
		return &InvalidStateError{Operation: "cancel", Status: b.s.Status, Message: "booking is already cancelled"}
	}
	if len(b.s.Schedules) > 0 {
		allDone := true
		for _, sc := range b.s.Schedules {
			if sc.Status != ScheduleCompleted {
				allDone = false
				break
			}
		}
		if allDone {
			return &InvalidStateError{Operation: "cancel", Status: b.s.Status, Message: "every session of this booking is already completed"}
		}
	}
	return nil
}

// CheckCancellable validates a cancellation request without applying it.
func (b *Booking) CheckCancellable(reason string) error {
	if strings.TrimSpace(reason) == "" {
		return &ValidationError{Field: "reason", Message: "a cancellation reason is required"}
	}
	return b.canCancel()
}

// Cancel marks the booking cancelled. Sessions are left untouched; tearing
// them down is the caller's explicit decision.
func (b *Booking) Cancel(reason string, now time.Time) error {
	if err := b.CheckCancellable(reason); err != nil {
		return err
	}
	b.s.Status = StatusCancelled
	b.s.CancellationReason = strings.TrimSpace(reason)
	t := now
	b.s.CancelledAt = &t
	b.touch(now)
	return nil
}

// ApplyPayment records a cleared payment against the outstanding amount.
func (b *Booking) ApplyPayment(amount float64, paymentID string, now time.Time) error {
	if err := b.CheckPayment(amount); err != nil {
		return err
	}
	b.s.PaidAmount = RoundMoney(b.s.PaidAmount + amount)
	b.s.Payments = append(b.s.Payments, PaymentEntry{PaymentID: paymentID, Kind: PaymentKindCharge, Amount: RoundMoney(amount), At: now})
	b.derivePaymentStatus()
	if b.s.Status == StatusDraft {
		b.s.Status = StatusPending
	}
	b.touch(now)
	return nil
}

// CheckPayment validates a payment amount against the outstanding balance.
func (b *Booking) CheckPayment(amount float64) error {
	amount = RoundMoney(amount)
	if amount <= 0 {
		return &ValidationError{Field: "amount", Message: "payment amount must be greater than zero"}
	}
	if b.s.Status == StatusCancelled {
		return &InvalidStateError{Operation: "pay for", Status: b.s.Status}
	}
	if b.s.PaymentStatus == PaymentRefunded {
		return &InvalidStateError{Operation: "pay for", Status: b.s.Status, Message: "cannot take a payment on a refunded booking"}
	}
	if outstanding := b.OutstandingAmount(); amount > outstanding {
		return &ValidationError{Field: "amount", Message: fmt.Sprintf("payment of %.2f exceeds the outstanding balance of %.2f", amount, outstanding)}
	}
	return nil
}

// Refund returns money to the guardian. The payment status becomes refunded
// and stays there.
func (b *Booking) Refund(amount float64, paymentID string, now time.Time) error {
	amount = RoundMoney(amount)
	if amount <= 0 {
		return &ValidationError{Field: "amount", Message: "refund amount must be greater than zero"}
	}
	if amount > b.s.PaidAmount {
		return &ValidationError{Field: "amount", Message: fmt.Sprintf("refund of %.2f exceeds the paid amount of %.2f", amount, b.s.PaidAmount)}
	}
	b.s.PaidAmount = RoundMoney(b.s.PaidAmount - amount)
	b.s.RefundedAmount = RoundMoney(b.s.RefundedAmount + amount)
	b.s.PaymentStatus = PaymentRefunded
	b.s.Payments = append(b.s.Payments, PaymentEntry{PaymentID: paymentID, Kind: PaymentKindRefund, Amount: amount, At: now})
	b.touch(now)
	return nil
}

// UpdateParams holds the editable details of a booking. Nil fields are kept.
type UpdateParams struct {
	Guardian         *Guardian
	Participants     []Participant
	TotalPrice       *float64
	PackageExpiresAt *time.Time
}

// UpdateDetails edits guardian, participants, price or expiry.
func (b *Booking) UpdateDetails(p UpdateParams, now time.Time) error {
	if b.s.Status == StatusCancelled {
		return &InvalidStateError{Operation: "update", Status: b.s.Status}
	}
	if p.Guardian != nil {
		if err := p.Guardian.Validate(); err != nil {
			return err
		}
	}
	if p.Participants != nil {
		if len(p.Participants) == 0 {
			return &ValidationError{Field: "participants", Message: "at least one participant is required"}
		}
		for _, part := range p.Participants {
			if err := part.Validate(); err != nil {
				return err
			}
		}
	}
	if err := checkExpiry(p.PackageExpiresAt, now); err != nil {
		return err
	}
	if p.TotalPrice != nil {
		price := RoundMoney(*p.TotalPrice)
		if price <= 0 {
			return &ValidationError{Field: "totalPrice", Message: "total price must be greater than zero"}
		}
		if price < b.s.PaidAmount {
			return &ValidationError{Field: "totalPrice", Message: fmt.Sprintf("total price %.2f cannot be below the %.2f already paid", price, b.s.PaidAmount)}
		}
	}

	if p.Guardian != nil {
		b.s.Guardian = *p.Guardian
	}
	if p.Participants != nil {
		b.s.Participants = append([]Participant(nil), p.Participants...)
	}
	if p.TotalPrice != nil {
		b.s.TotalPrice = RoundMoney(*p.TotalPrice)
		b.derivePaymentStatus()
	}
	if p.PackageExpiresAt != nil {
		b.s.PackageExpiresAt = cloneTime(p.PackageExpiresAt)
	}
	b.touch(now)
	return nil
}

// checkExpiry rejects an expiry that is set but not in the future.
func checkExpiry(expiresAt *time.Time, now time.Time) error {
	if expiresAt == nil {
		return nil
	}
	if !expiresAt.After(now) {
		return &ValidationError{Field: "packageExpiresAt", Message: fmt.Sprintf("package expiry %s must be in the future", expiresAt.Format("2 January 2006"))}
	}
	return nil
}

// AssignHours replaces the pay-first placeholder with the real package hours.
func (b *Booking) AssignHours(hours float64, now time.Time) error {
	hours = RoundHours(hours)
	if b.s.Status != StatusDraft && b.s.Status != StatusPending {
		return &InvalidStateError{Operation: "assign hours to", Status: b.s.Status}
	}
	if hours <= 0 {
		return &ValidationError{Field: "totalHours", Message: "assigned hours must be greater than zero"}
	}
	if hours < b.s.BookedHours {
		return &ValidationError{Field: "totalHours", Message: fmt.Sprintf("assigned hours %.2f are below the %.2f hours already booked", hours, b.s.BookedHours)}
	}
	b.s.TotalHours = hours
	b.touch(now)
	return nil
}

// AddHours credits a paid top-up. It returns false when the payment id was
// already applied.
func (b *Booking) AddHours(hours, amount float64, paymentID string, now time.Time) (bool, error) {
	if b.HasPayment(paymentID) {
		return false, nil
	}
	if err := b.CanTopUp(now); err != nil {
		return false, err
	}
	hours, amount = RoundHours(hours), RoundMoney(amount)
	if hours <= 0 {
		return false, &ValidationError{Field: "hours", Message: "top-up hours must be greater than zero"}
	}
	if amount < 0 {
		return false, &ValidationError{Field: "amount", Message: "top-up amount cannot be negative"}
	}
	b.s.TotalHours = RoundHours(b.s.TotalHours + hours)
	b.s.TotalPrice = RoundMoney(b.s.TotalPrice + amount)
	b.s.PaidAmount = RoundMoney(b.s.PaidAmount + amount)
	b.s.Payments = append(b.s.Payments, PaymentEntry{PaymentID: paymentID, Kind: PaymentKindTopUp, Amount: amount, Hours: hours, At: now})
	b.derivePaymentStatus()
	b.touch(now)
	return true, nil
}

// CanTopUp allows top-ups only on confirmed, fully paid, live packages.
func (b *Booking) CanTopUp(now time.Time) error {
	if b.s.Status != StatusConfirmed {
		return &InvalidStateError{Operation: "top up", Status: b.s.Status, Message: "only confirmed bookings can be topped up"}
	}
	if b.s.PaymentStatus != PaymentPaid {
		return &InvalidStateError{Operation: "top up", Status: b.s.Status, Message: "the booking must be fully paid before buying more hours"}
	}
	if b.IsDeleted() || b.IsExpired(now) {
		return &InvalidStateError{Operation: "top up", Status: b.s.Status, Message: "the package is no longer active"}
	}
	return nil
}

// SoftDelete hides the booking; it stops counting as an active package.
func (b *Booking) SoftDelete(now time.Time) error {
	if b.IsDeleted() {
		return nil
	}
	t := now
	b.s.DeletedAt = &t
	b.touch(now)
	return nil
}

func (b *Booking) derivePaymentStatus() {
	if b.s.PaymentStatus == PaymentRefunded {
		return
	}
	b.s.PaymentStatus = DerivePaymentStatus(b.s.PaidAmount, b.s.TotalPrice)
}

func (b *Booking) touch(now time.Time) {
	b.s.UpdatedAt = now
	b.reconcile()
}

func (b *Booking) scheduleIndex(id string) int {
	for i, sc := range b.s.Schedules {
		if sc.ID == id {
			return i
		}
	}
	return -1
}
