package handlers

import (
	"context"

	"kidsclub/models"
	"kidsclub/services/booking"

	"github.com/stretchr/testify/mock"
)

type mockBookingService struct {
	mock.Mock
}

func (m *mockBookingService) record(args mock.Arguments) (*models.BookingRecord, error) {
	rec, _ := args.Get(0).(*models.BookingRecord)
	return rec, args.Error(1)
}

func (m *mockBookingService) CreateBooking(ctx context.Context, parentID string, req models.CreateBookingRequest) (*models.BookingRecord, []string, error) {
	args := m.Called(ctx, parentID, req)
	rec, _ := args.Get(0).(*models.BookingRecord)
	warnings, _ := args.Get(1).([]string)
	return rec, warnings, args.Error(2)
}

func (m *mockBookingService) UpdateBooking(ctx context.Context, id string, req models.UpdateBookingRequest) (*models.BookingRecord, error) {
	return m.record(m.Called(ctx, id, req))
}

func (m *mockBookingService) GetBooking(ctx context.Context, id string) (*models.BookingRecord, error) {
	return m.record(m.Called(ctx, id))
}

func (m *mockBookingService) GetBookingByReference(ctx context.Context, reference string) (*models.BookingRecord, error) {
	return m.record(m.Called(ctx, reference))
}

func (m *mockBookingService) ListParentBookings(ctx context.Context, parentID string) ([]models.BookingRecord, error) {
	args := m.Called(ctx, parentID)
	recs, _ := args.Get(0).([]models.BookingRecord)
	return recs, args.Error(1)
}

func (m *mockBookingService) DeleteBooking(ctx context.Context, id string) error {
	return m.Called(ctx, id).Error(0)
}

func (m *mockBookingService) AddSession(ctx context.Context, bookingID string, req models.SessionRequest) (*models.BookingRecord, error) {
	return m.record(m.Called(ctx, bookingID, req))
}

func (m *mockBookingService) RescheduleSession(ctx context.Context, bookingID, scheduleID string, req models.RescheduleRequest) (*models.BookingRecord, error) {
	return m.record(m.Called(ctx, bookingID, scheduleID, req))
}

func (m *mockBookingService) CancelSession(ctx context.Context, bookingID, scheduleID, reason string) (*models.BookingRecord, error) {
	return m.record(m.Called(ctx, bookingID, scheduleID, reason))
}

func (m *mockBookingService) CompleteSession(ctx context.Context, bookingID, scheduleID string) (*models.BookingRecord, error) {
	return m.record(m.Called(ctx, bookingID, scheduleID))
}

func (m *mockBookingService) MarkNoShow(ctx context.Context, bookingID, scheduleID string) (*models.BookingRecord, error) {
	return m.record(m.Called(ctx, bookingID, scheduleID))
}

func (m *mockBookingService) ConfirmBooking(ctx context.Context, id string) (*models.BookingRecord, error) {
	return m.record(m.Called(ctx, id))
}

func (m *mockBookingService) CancelBooking(ctx context.Context, id, reason string) (*models.BookingRecord, error) {
	return m.record(m.Called(ctx, id, reason))
}

func (m *mockBookingService) ProcessPayment(ctx context.Context, id string, req models.ProcessPaymentRequest) (booking.PaymentOutcome, error) {
	args := m.Called(ctx, id, req)
	return args.Get(0).(booking.PaymentOutcome), args.Error(1)
}

func (m *mockBookingService) TopUp(ctx context.Context, id string, req models.TopUpRequest) (*models.TopUpCheckout, error) {
	args := m.Called(ctx, id, req)
	out, _ := args.Get(0).(*models.TopUpCheckout)
	return out, args.Error(1)
}

func (m *mockBookingService) ConfirmTopUp(ctx context.Context, id string, hours, amount float64, paymentID string) (*models.BookingRecord, error) {
	return m.record(m.Called(ctx, id, hours, amount, paymentID))
}

func (m *mockBookingService) AssignHours(ctx context.Context, id string, hours float64) (*models.BookingRecord, error) {
	return m.record(m.Called(ctx, id, hours))
}
