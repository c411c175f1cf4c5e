package booking

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"kidsclub/metrics"
	"kidsclub/models"
	"kidsclub/services/booking/entity"
	"kidsclub/services/booking/validator"
)

// ServiceConfig holds the settings the use cases need from config.
type ServiceConfig struct {
	TopUpSuccessURL string
	TopUpCancelURL  string
	ReminderLead    time.Duration
	// NotifyTimeout bounds each fire-and-forget notification.
	NotifyTimeout time.Duration
}

// DefaultBookingService implements BookingService.
type DefaultBookingService struct {
	Repo     Repository
	Payments PaymentGateway
	Notifier Notifier
	Jobs     JobQueue
	Locker   Locker
	Factory  Factory
	Config   ServiceConfig
	Logger   *zap.Logger
	Now      func() time.Time
}

func NewDefaultBookingService(
	repo Repository,
	payments PaymentGateway,
	notifier Notifier,
	jobs JobQueue,
	locker Locker,
	factory Factory,
	cfg ServiceConfig,
	logger *zap.Logger,
) (*DefaultBookingService, error) {
	if repo == nil || payments == nil {
		return nil, fmt.Errorf("booking service initialization error: repository or payment gateway is nil")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.NotifyTimeout <= 0 {
		cfg.NotifyTimeout = 30 * time.Second
	}
	return &DefaultBookingService{
		Repo:     repo,
		Payments: payments,
		Notifier: notifier,
		Jobs:     jobs,
		Locker:   locker,
		Factory:  factory,
		Config:   cfg,
		Logger:   logger,
		Now:      time.Now,
	}, nil
}

func (s *DefaultBookingService) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

// --- Create / update ---

// CreateBooking validates, prices and stores a new package. The returned
// warnings never block creation.
func (s *DefaultBookingService) CreateBooking(ctx context.Context, parentID string, req models.CreateBookingRequest) (*models.BookingRecord, []string, error) {
	now := s.now()
	pkg := validator.Package{ID: req.PackageID, Name: req.PackageName, SupportedModes: req.SupportedModes}

	// 1. Mode and pure input checks, before touching storage.
	mode := validator.CheckModeCompatibility(req.Mode, pkg)
	modeKey := mode.Mode
	if !mode.Compatible {
		modeKey = mode.SuggestedMode
	}
	b, quote, err := s.Factory.Build(parentID, req, modeKey, now)
	if err != nil {
		return nil, nil, err
	}

	// 2. Serialize on the children, then check against a fresh snapshot.
	unlock, err := s.lockChildren(ctx, b.ChildKeys())
	if err != nil {
		return nil, nil, err
	}
	defer unlock()

	existing, err := s.snapshot(ctx, b.ChildKeys())
	if err != nil {
		return nil, nil, err
	}
	res := validator.Validate(validator.Request{
		Candidate: validator.Candidate{Participants: b.Participants()},
		Schedules: b.Schedules(),
		Existing:  existing,
		Mode:      req.Mode,
		Package:   pkg,
		Now:       now,
	})
	if err := res.Err(); err != nil {
		s.Logger.Info("booking rejected by validation",
			zap.String("parentId", parentID), zap.Strings("childKeys", b.ChildKeys()), zap.Error(err))
		return nil, nil, err
	}

	// 3. Persist.
	rec := ToRecord(b)
	if err := s.Repo.Create(ctx, &rec); err != nil {
		return nil, nil, fmt.Errorf("failed to create booking: %w", err)
	}
	s.Logger.Info("booking created",
		zap.String("bookingId", rec.ID),
		zap.String("reference", rec.Reference),
		zap.Float64("totalHours", rec.TotalHours),
		zap.Float64("totalPrice", rec.TotalPrice),
		zap.Float64("discount", quote.Discount),
		zap.Strings("warnings", res.Warnings))

	for _, sc := range b.Schedules() {
		s.scheduleReminder(ctx, b, sc)
	}
	return &rec, res.Warnings, nil
}

// UpdateBooking edits guardian, participants, expiry and adds sessions.
// The price is recomputed when participants or sessions change and kept
// when no package base price is supplied.
func (s *DefaultBookingService) UpdateBooking(ctx context.Context, id string, req models.UpdateBookingRequest) (*models.BookingRecord, error) {
	current, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if req.Version != 0 && req.Version != current.Version() {
		return nil, entity.ErrVersionConflict
	}

	newParticipants := participantEntities(req.Participants)
	keys := append(current.ChildKeys(), entity.ParticipantKeys(newParticipants)...)
	unlock, err := s.lockChildren(ctx, keys)
	if err != nil {
		return nil, err
	}
	defer unlock()

	b, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if req.Version != 0 && req.Version != b.Version() {
		return nil, entity.ErrVersionConflict
	}
	now := s.now()

	participantsChanged := req.Participants != nil
	added := scheduleEntities(req.Schedules)

	if participantsChanged || len(added) > 0 {
		candidate := validator.Candidate{ID: b.ID(), Participants: b.Participants()}
		check := added
		if participantsChanged {
			candidate.Participants = newParticipants
			for _, sc := range b.Schedules() {
				if sc.Status.IsOpen() {
					check = append(check, sc)
				}
			}
		}
		existing, err := s.snapshot(ctx, entity.ParticipantKeys(candidate.Participants))
		if err != nil {
			return nil, err
		}
		res := validator.Validate(validator.Request{
			Candidate:          candidate,
			Schedules:          check,
			Existing:           existing,
			Mode:               b.Mode(),
			Now:                now,
			SkipDuplicateCheck: !participantsChanged,
		})
		if err := res.Err(); err != nil {
			return nil, err
		}
	}

	params := entity.UpdateParams{PackageExpiresAt: req.PackageExpiresAt}
	if req.ParentGuardian != nil {
		params.Guardian = &entity.Guardian{
			Name:  strings.TrimSpace(req.ParentGuardian.Name),
			Email: strings.TrimSpace(req.ParentGuardian.Email),
			Phone: strings.TrimSpace(req.ParentGuardian.Phone),
		}
	}
	if participantsChanged {
		params.Participants = newParticipants
	}
	if err := b.UpdateDetails(params, now); err != nil {
		return nil, err
	}

	var booked []entity.Schedule
	for _, sc := range added {
		out, err := b.AddSchedule(sc, now)
		if err != nil {
			return nil, err
		}
		booked = append(booked, out)
	}

	if participantsChanged || len(added) > 0 || req.PackageBasePrice != nil {
		quote, err := s.Factory.Reprice(b, req.PackageBasePrice, now)
		if err != nil {
			return nil, err
		}
		if !quote.Retained {
			price := quote.FinalPrice
			if err := b.UpdateDetails(entity.UpdateParams{TotalPrice: &price}, now); err != nil {
				return nil, err
			}
		}
	}

	rec, err := s.save(ctx, b)
	if err != nil {
		return nil, err
	}
	for _, sc := range booked {
		s.scheduleReminder(ctx, b, sc)
	}
	return rec, nil
}

// --- Queries ---

func (s *DefaultBookingService) GetBooking(ctx context.Context, id string) (*models.BookingRecord, error) {
	b, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	rec := ToRecord(b)
	return &rec, nil
}

func (s *DefaultBookingService) GetBookingByReference(ctx context.Context, reference string) (*models.BookingRecord, error) {
	ref, err := entity.ParseReference(reference)
	if err != nil {
		return nil, err
	}
	stored, err := s.Repo.FindByReference(ctx, ref.String())
	if err != nil {
		return nil, fmt.Errorf("failed to fetch booking %s: %w", ref, err)
	}
	rec := ToRecord(FromRecord(*stored))
	return &rec, nil
}

// ListParentBookings returns the parent's bookings, soft-deleted ones excluded.
func (s *DefaultBookingService) ListParentBookings(ctx context.Context, parentID string) ([]models.BookingRecord, error) {
	stored, err := s.Repo.FindByParent(ctx, parentID)
	if err != nil {
		return nil, fmt.Errorf("failed to list bookings for parent %s: %w", parentID, err)
	}
	out := make([]models.BookingRecord, 0, len(stored))
	for _, b := range FromRecords(stored) {
		if b.IsDeleted() {
			continue
		}
		out = append(out, ToRecord(b))
	}
	return out, nil
}

// DeleteBooking soft-deletes a booking; it stops counting as active.
func (s *DefaultBookingService) DeleteBooking(ctx context.Context, id string) error {
	b, err := s.load(ctx, id)
	if err != nil {
		return err
	}
	if b.IsDeleted() {
		return nil
	}
	if err := b.SoftDelete(s.now()); err != nil {
		return err
	}
	if err := s.Repo.Delete(ctx, id, *b.DeletedAt()); err != nil {
		return fmt.Errorf("failed to delete booking %s: %w", id, err)
	}
	s.Logger.Info("booking deleted", zap.String("bookingId", id))
	return nil
}

// --- Lifecycle ---

// ConfirmBooking confirms a paid booking and notifies the guardian.
func (s *DefaultBookingService) ConfirmBooking(ctx context.Context, id string) (*models.BookingRecord, error) {
	b, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := b.Confirm(s.now()); err != nil {
		return nil, err
	}
	rec, err := s.save(ctx, b)
	if err != nil {
		return nil, err
	}
	s.Logger.Info("booking confirmed", zap.String("bookingId", rec.ID), zap.String("reference", rec.Reference))

	confirmed := *rec
	s.dispatch("booking confirmation", rec.ID, func(ctx context.Context) error {
		return s.Notifier.SendBookingConfirmation(ctx, confirmed)
	})
	return rec, nil
}

// CancelBooking cancels through the repository's atomic cancel, then
// queues refunds for what was paid and notifies the guardian.
func (s *DefaultBookingService) CancelBooking(ctx context.Context, id, reason string) (*models.BookingRecord, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, &entity.ValidationError{Field: "reason", Message: "a cancellation reason is required"}
	}
	var (
		b      *entity.Booking
		stored *models.BookingRecord
	)
	err := s.retryOnConflict(ctx, id, func() error {
		loaded, err := s.load(ctx, id)
		if err != nil {
			return err
		}
		if err := loaded.CheckCancellable(reason); err != nil {
			return err
		}
		rec, err := s.Repo.Cancel(ctx, id, reason, loaded.Version())
		if err != nil {
			return fmt.Errorf("failed to cancel booking %s: %w", id, err)
		}
		b, stored = loaded, rec
		return nil
	})
	if err != nil {
		return nil, err
	}
	rec := ToRecord(FromRecord(*stored))
	s.Logger.Info("booking cancelled",
		zap.String("bookingId", rec.ID),
		zap.String("reason", reason),
		zap.Float64("refunded", rec.RefundedAmount-b.RefundedAmount()))
	metrics.Cancellations.Inc()

	s.queueRefunds(ctx, b, reason)

	cancelled := rec
	s.dispatch("booking cancellation", rec.ID, func(ctx context.Context) error {
		return s.Notifier.SendBookingCancellation(ctx, cancelled)
	})
	return &rec, nil
}

// queueRefunds spreads the paid amount over the gateway payments, newest first.
func (s *DefaultBookingService) queueRefunds(ctx context.Context, b *entity.Booking, reason string) {
	remaining := b.PaidAmount()
	if remaining <= 0 {
		return
	}
	if s.Jobs == nil {
		s.Logger.Warn("no job queue configured, refund must be issued manually",
			zap.String("bookingId", b.ID()), zap.Float64("amount", remaining))
		return
	}
	payments := b.Payments()
	for i := len(payments) - 1; i >= 0 && remaining > 0; i-- {
		p := payments[i]
		if p.Kind == entity.PaymentKindRefund || p.PaymentID == "" || p.Amount <= 0 {
			continue
		}
		amount := entity.RoundMoney(min(p.Amount, remaining))
		job := models.RefundJob{
			BookingID: b.ID(),
			PaymentID: p.PaymentID,
			Amount:    amount,
			Currency:  b.Currency(),
			Reason:    reason,
		}
		if err := s.Jobs.EnqueueRefund(ctx, job); err != nil {
			s.Logger.Error("failed to enqueue refund",
				zap.String("bookingId", b.ID()), zap.String("paymentId", p.PaymentID), zap.Error(err))
			continue
		}
		remaining = entity.RoundMoney(remaining - amount)
	}
	if remaining > 0 {
		s.Logger.Warn("refund not fully covered by gateway payments",
			zap.String("bookingId", b.ID()), zap.Float64("uncovered", remaining))
	}
}

// AssignHours replaces the pay-first placeholder with the real hours.
func (s *DefaultBookingService) AssignHours(ctx context.Context, id string, hours float64) (*models.BookingRecord, error) {
	return s.mutate(ctx, id, func(b *entity.Booking, now time.Time) error {
		return b.AssignHours(hours, now)
	})
}

// --- Helpers ---

func (s *DefaultBookingService) load(ctx context.Context, id string) (*entity.Booking, error) {
	if strings.TrimSpace(id) == "" {
		return nil, entity.ErrBookingNotFound
	}
	rec, err := s.Repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, entity.ErrBookingNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to fetch booking %s: %w", id, err)
	}
	return FromRecord(*rec), nil
}

func (s *DefaultBookingService) snapshot(ctx context.Context, childKeys []string) ([]*entity.Booking, error) {
	recs, err := s.Repo.FindByChildren(ctx, childKeys)
	if err != nil {
		return nil, fmt.Errorf("failed to load existing bookings: %w", err)
	}
	return FromRecords(recs), nil
}

// save persists with the optimistic version check.
func (s *DefaultBookingService) save(ctx context.Context, b *entity.Booking) (*models.BookingRecord, error) {
	rec := ToRecord(b)
	if err := s.Repo.Update(ctx, &rec); err != nil {
		if errors.Is(err, entity.ErrVersionConflict) || errors.Is(err, entity.ErrBookingNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to save booking %s: %w", rec.ID, err)
	}
	return &rec, nil
}

// mutate loads, applies fn and saves.
func (s *DefaultBookingService) mutate(ctx context.Context, id string, fn func(b *entity.Booking, now time.Time) error) (*models.BookingRecord, error) {
	b, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := fn(b, s.now()); err != nil {
		return nil, err
	}
	return s.save(ctx, b)
}

// lockChildren takes the per-child locks in a stable order.
func (s *DefaultBookingService) lockChildren(ctx context.Context, keys []string) (func(), error) {
	if s.Locker == nil || len(keys) == 0 {
		return func() {}, nil
	}
	sorted := append([]string(nil), keys...)
	sort.Strings(sorted)

	var unlocks []func()
	release := func() {
		for i := len(unlocks) - 1; i >= 0; i-- {
			unlocks[i]()
		}
	}
	prev := ""
	for _, k := range sorted {
		if k == prev {
			continue
		}
		prev = k
		unlock, err := s.Locker.Lock(ctx, "booking:child:"+k)
		if err != nil {
			release()
			return nil, fmt.Errorf("failed to lock child %s: %w", k, err)
		}
		unlocks = append(unlocks, unlock)
	}
	return release, nil
}

// dispatch runs a notification in the background. Failures are logged and
// never reach the caller or the booking.
func (s *DefaultBookingService) dispatch(what, bookingID string, fn func(ctx context.Context) error) {
	if s.Notifier == nil {
		return
	}
	go func() {
		defer func() {
			if r := recover(); r != nil {
				s.Logger.Error("notification panicked",
					zap.String("notification", what),
					zap.String("bookingId", bookingID),
					zap.Any("panic", r),
					zap.ByteString("stack", debug.Stack()))
			}
		}()
		timeout := s.Config.NotifyTimeout
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		if err := fn(ctx); err != nil {
			s.Logger.Warn("notification failed",
				zap.String("notification", what), zap.String("bookingId", bookingID), zap.Error(err))
		}
	}()
}
