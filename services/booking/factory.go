package booking

import (
	"sort"
	"strings"
	"time"

	"kidsclub/models"
	"kidsclub/services/booking/entity"
	"kidsclub/services/booking/pricing"
)

// Factory turns creation input into a priced aggregate.
type Factory struct {
	Policy   pricing.Policy
	Currency string
	// Catalog holds the base price of each pre-priced package by id. A
	// catalog price always wins over one sent by the client.
	Catalog map[string]float64
}

func (f Factory) catalogPrice(packageID string) (float64, bool) {
	price, ok := f.Catalog[strings.TrimSpace(packageID)]
	return price, ok && price > 0
}

// Build prices the request and creates the booking in mode.
func (f Factory) Build(parentID string, req models.CreateBookingRequest, mode string, now time.Time) (*entity.Booking, pricing.Quote, error) {
	participants := participantEntities(req.Participants)
	schedules := scheduleEntities(req.Schedules)

	basePrice := req.PackageBasePrice
	if price, ok := f.catalogPrice(req.PackageID); ok {
		basePrice = price
	}
	quote, err := f.Policy.Quote(pricing.Input{
		PackageBasePrice: basePrice,
		Hours:            req.TotalHours,
		Participants:     len(participants),
		StartDate:        firstDate(schedules),
		Now:              now,
	})
	if err != nil {
		return nil, pricing.Quote{}, err
	}

	currency := strings.TrimSpace(req.Currency)
	if currency == "" {
		currency = f.Currency
	}
	b, err := entity.New(entity.NewBookingParams{
		ParentID: parentID,
		Guardian: entity.Guardian{
			Name:  strings.TrimSpace(req.ParentGuardian.Name),
			Email: strings.TrimSpace(req.ParentGuardian.Email),
			Phone: strings.TrimSpace(req.ParentGuardian.Phone),
		},
		Participants:     participants,
		Schedules:        schedules,
		PackageID:        req.PackageID,
		PackageName:      req.PackageName,
		Mode:             mode,
		TotalHours:       req.TotalHours,
		TotalPrice:       quote.FinalPrice,
		Currency:         currency,
		PackageExpiresAt: req.PackageExpiresAt,
		Now:              now,
	})
	if err != nil {
		return nil, pricing.Quote{}, err
	}
	return b, quote, nil
}

// Reprice recomputes the price after participants or sessions changed.
func (f Factory) Reprice(b *entity.Booking, basePrice *float64, now time.Time) (pricing.Quote, error) {
	in := pricing.Input{
		Hours:        b.TotalHours(),
		Participants: len(b.Participants()),
		StartDate:    firstDate(b.Schedules()),
		Now:          now,
	}
	if price, ok := f.catalogPrice(b.PackageID()); ok {
		in.PackageBasePrice = price
	} else if basePrice != nil {
		in.PackageBasePrice = *basePrice
	}
	return f.Policy.Requote(b.TotalPrice(), in)
}

func firstDate(schedules []entity.Schedule) string {
	var dates []string
	for _, sc := range schedules {
		if sc.Status != entity.ScheduleCancelled && sc.Date != "" {
			dates = append(dates, sc.Date)
		}
	}
	if len(dates) == 0 {
		return ""
	}
	sort.Strings(dates)
	return dates[0]
}
