package booking

import (
	"context"
	"sync"
	"time"

	"github.com/stretchr/testify/mock"

	"kidsclub/models"
	"kidsclub/services/booking/entity"
)

// memRepo is an in-memory Repository with the same version and cancel
// semantics as the Mongo adapter.
type memRepo struct {
	mu      sync.Mutex
	records map[string]models.BookingRecord
	// conflicts forces the next n updates to fail with a version conflict.
	conflicts int
	// beforeCancel, when set, changes the stored booking once just before
	// the next cancel is applied.
	beforeCancel func(rec *models.BookingRecord)
}

func newMemRepo() *memRepo {
	return &memRepo{records: make(map[string]models.BookingRecord)}
}

func (r *memRepo) put(rec models.BookingRecord) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records[rec.ID] = rec
}

func (r *memRepo) get(id string) models.BookingRecord {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.records[id]
}

func (r *memRepo) FindByID(_ context.Context, id string) (*models.BookingRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.records[id]
	if !ok {
		return nil, entity.ErrBookingNotFound
	}
	return &rec, nil
}

func (r *memRepo) FindByReference(_ context.Context, reference string) (*models.BookingRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, rec := range r.records {
		if rec.Reference == reference {
			return &rec, nil
		}
	}
	return nil, entity.ErrBookingNotFound
}

func (r *memRepo) FindByParent(_ context.Context, parentID string) ([]models.BookingRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.BookingRecord
	for _, rec := range r.records {
		if rec.ParentID == parentID {
			out = append(out, rec)
		}
	}
	return out, nil
}

func (r *memRepo) FindByChildren(_ context.Context, childKeys []string) ([]models.BookingRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	want := map[string]bool{}
	for _, k := range childKeys {
		want[k] = true
	}
	var out []models.BookingRecord
	for _, rec := range r.records {
		for _, k := range rec.ChildKeys {
			if want[k] {
				out = append(out, rec)
				break
			}
		}
	}
	return out, nil
}

func (r *memRepo) Create(_ context.Context, rec *models.BookingRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec.Version = 1
	r.records[rec.ID] = *rec
	return nil
}

func (r *memRepo) Update(_ context.Context, rec *models.BookingRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cur, ok := r.records[rec.ID]
	if !ok {
		return entity.ErrBookingNotFound
	}
	if r.conflicts > 0 {
		r.conflicts--
		cur.Version++
		r.records[rec.ID] = cur
		return entity.ErrVersionConflict
	}
	if cur.Version != rec.Version {
		return entity.ErrVersionConflict
	}
	rec.Version++
	r.records[rec.ID] = *rec
	return nil
}

func (r *memRepo) Cancel(_ context.Context, id, reason string, version int64) (*models.BookingRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.records[id]
	if !ok {
		return nil, entity.ErrBookingNotFound
	}
	if rec.Status == string(entity.StatusCancelled) {
		return nil, &entity.InvalidStateError{Operation: "cancel", Status: entity.StatusCancelled, Message: "booking is already cancelled"}
	}
	if r.beforeCancel != nil {
		hook := r.beforeCancel
		r.beforeCancel = nil
		hook(&rec)
		rec.Version++
		r.records[id] = rec
	}
	if rec.Version != version {
		return nil, entity.ErrVersionConflict
	}
	now := time.Now().UTC()
	rec.Status = string(entity.StatusCancelled)
	rec.CancellationReason = reason
	rec.CancelledAt = &now
	for i, sc := range rec.Schedules {
		if sc.Status == string(entity.ScheduleScheduled) || sc.Status == string(entity.ScheduleRescheduled) {
			rec.Schedules[i].Status = string(entity.ScheduleCancelled)
			rec.Schedules[i].CancellationReason = reason
			rec.Schedules[i].CancelledAt = &now
		}
	}
	if rec.PaidAmount > 0 {
		rec.RefundedAmount += rec.PaidAmount
		rec.PaidAmount = 0
		rec.PaymentStatus = string(entity.PaymentRefunded)
	}
	rec.Version++
	r.records[id] = rec
	return &rec, nil
}

func (r *memRepo) Delete(_ context.Context, id string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.records[id]
	if !ok {
		return entity.ErrBookingNotFound
	}
	rec.DeletedAt = &at
	rec.Version++
	r.records[id] = rec
	return nil
}

type MockPaymentGateway struct {
	mock.Mock
}

func (m *MockPaymentGateway) ProcessPayment(ctx context.Context, req models.PaymentRequest) (*models.PaymentResult, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.PaymentResult), args.Error(1)
}

func (m *MockPaymentGateway) RefundPayment(ctx context.Context, req models.RefundRequest) (*models.RefundResult, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.RefundResult), args.Error(1)
}

func (m *MockPaymentGateway) GetPaymentStatus(ctx context.Context, paymentID string) (string, error) {
	args := m.Called(ctx, paymentID)
	return args.String(0), args.Error(1)
}

func (m *MockPaymentGateway) CreateCheckout(ctx context.Context, req models.CheckoutRequest) (*models.CheckoutSession, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.CheckoutSession), args.Error(1)
}

type MockNotifier struct {
	mock.Mock
}

func (m *MockNotifier) SendEmail(ctx context.Context, msg models.EmailMessage) error {
	return m.Called(ctx, msg).Error(0)
}

func (m *MockNotifier) SendBookingConfirmation(ctx context.Context, rec models.BookingRecord) error {
	return m.Called(ctx, rec).Error(0)
}

func (m *MockNotifier) SendBookingCancellation(ctx context.Context, rec models.BookingRecord) error {
	return m.Called(ctx, rec).Error(0)
}

type fakeJobs struct {
	mu        sync.Mutex
	reminders []models.SessionReminder
	refunds   []models.RefundJob
}

func (f *fakeJobs) ScheduleSessionReminder(_ context.Context, r models.SessionReminder, _ time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reminders = append(f.reminders, r)
	return nil
}

func (f *fakeJobs) EnqueueRefund(_ context.Context, job models.RefundJob) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.refunds = append(f.refunds, job)
	return nil
}

// fakeLocker records lock keys; locks are never contended in tests.
type fakeLocker struct {
	mu       sync.Mutex
	locked   []string
	released int
}

func (l *fakeLocker) Lock(_ context.Context, key string) (func(), error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.locked = append(l.locked, key)
	return func() {
		l.mu.Lock()
		l.released++
		l.mu.Unlock()
	}, nil
}
