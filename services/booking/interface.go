package booking

import (
	"context"
	"time"

	"kidsclub/models"
	"kidsclub/services/booking/entity"
)

// --- Ports ---

// Repository persists booking records. Update is optimistic on Version and
// Cancel is a single atomic write covering status, sessions and refund marking.
type Repository interface {
	FindByID(ctx context.Context, id string) (*models.BookingRecord, error)
	FindByReference(ctx context.Context, reference string) (*models.BookingRecord, error)
	FindByParent(ctx context.Context, parentID string) ([]models.BookingRecord, error)
	// FindByChildren returns every booking holding any of the child keys.
	FindByChildren(ctx context.Context, childKeys []string) ([]models.BookingRecord, error)
	Create(ctx context.Context, rec *models.BookingRecord) error
	Update(ctx context.Context, rec *models.BookingRecord) error
	// Cancel cancels the booking only while it is still at version.
	Cancel(ctx context.Context, id, reason string, version int64) (*models.BookingRecord, error)
	Delete(ctx context.Context, id string, at time.Time) error
}

// PaymentGateway is the external payment provider. Only terminal
// success or failure matters to bookings.
type PaymentGateway interface {
	ProcessPayment(ctx context.Context, req models.PaymentRequest) (*models.PaymentResult, error)
	RefundPayment(ctx context.Context, req models.RefundRequest) (*models.RefundResult, error)
	GetPaymentStatus(ctx context.Context, paymentID string) (string, error)
	CreateCheckout(ctx context.Context, req models.CheckoutRequest) (*models.CheckoutSession, error)
}

// Notifier sends guardian emails. Calls are fire-and-forget from use cases.
type Notifier interface {
	SendEmail(ctx context.Context, msg models.EmailMessage) error
	SendBookingConfirmation(ctx context.Context, rec models.BookingRecord) error
	SendBookingCancellation(ctx context.Context, rec models.BookingRecord) error
}

// JobQueue schedules background work that must survive the request.
type JobQueue interface {
	ScheduleSessionReminder(ctx context.Context, r models.SessionReminder, at time.Time) error
	EnqueueRefund(ctx context.Context, job models.RefundJob) error
}

// Locker serializes writes per child. The returned func releases the lock.
type Locker interface {
	Lock(ctx context.Context, key string) (func(), error)
}

// --- Use cases ---

// BookingService is the application surface used by the HTTP layer.
type BookingService interface {
	CreateBooking(ctx context.Context, parentID string, req models.CreateBookingRequest) (*models.BookingRecord, []string, error)
	UpdateBooking(ctx context.Context, id string, req models.UpdateBookingRequest) (*models.BookingRecord, error)
	GetBooking(ctx context.Context, id string) (*models.BookingRecord, error)
	GetBookingByReference(ctx context.Context, reference string) (*models.BookingRecord, error)
	ListParentBookings(ctx context.Context, parentID string) ([]models.BookingRecord, error)
	DeleteBooking(ctx context.Context, id string) error

	AddSession(ctx context.Context, bookingID string, req models.SessionRequest) (*models.BookingRecord, error)
	RescheduleSession(ctx context.Context, bookingID, scheduleID string, req models.RescheduleRequest) (*models.BookingRecord, error)
	CancelSession(ctx context.Context, bookingID, scheduleID, reason string) (*models.BookingRecord, error)
	CompleteSession(ctx context.Context, bookingID, scheduleID string) (*models.BookingRecord, error)
	MarkNoShow(ctx context.Context, bookingID, scheduleID string) (*models.BookingRecord, error)

	ConfirmBooking(ctx context.Context, id string) (*models.BookingRecord, error)
	CancelBooking(ctx context.Context, id, reason string) (*models.BookingRecord, error)
	ProcessPayment(ctx context.Context, id string, req models.ProcessPaymentRequest) (PaymentOutcome, error)
	TopUp(ctx context.Context, id string, req models.TopUpRequest) (*models.TopUpCheckout, error)
	ConfirmTopUp(ctx context.Context, id string, hours, amount float64, paymentID string) (*models.BookingRecord, error)
	AssignHours(ctx context.Context, id string, hours float64) (*models.BookingRecord, error)
}

// PaymentOutcome is the structured result of a payment attempt. A gateway
// failure is reported here, not as an error, and leaves the booking untouched.
type PaymentOutcome struct {
	Success   bool                  `json:"success"`
	PaymentID string                `json:"paymentId,omitempty"`
	Error     string                `json:"error,omitempty"`
	Booking   *models.BookingRecord `json:"booking,omitempty"`
}

// asGatewayError builds the typed error behind a failed outcome.
func (o PaymentOutcome) asGatewayError() *entity.PaymentGatewayError {
	return &entity.PaymentGatewayError{PaymentID: o.PaymentID, Message: o.Error}
}
