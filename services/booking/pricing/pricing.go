// Package pricing turns hours, participants and lead time into a package price.
package pricing

import (
	"fmt"
	"math"
	"sort"
	"time"

	"kidsclub/services/booking/entity"
)

// Tier grants Percent once Threshold is reached.
type Tier struct {
	Threshold float64
	Percent   float64
}

// Policy holds the rates and discount rules. Discount percentages are
// additive and capped by MaxDiscountPercent.
type Policy struct {
	HourlyRate         float64
	VolumeTiers        []Tier // threshold in hours
	LeadTimeTiers      []Tier // threshold in days before the first session
	MultiChildPercent  float64
	MaxDiscountPercent float64
}

// DefaultPolicy returns the standard discount tiers around the given rates.
func DefaultPolicy(hourlyRate, multiChildPercent, maxDiscountPercent float64) Policy {
	return Policy{
		HourlyRate: hourlyRate,
		VolumeTiers: []Tier{
			{Threshold: 20, Percent: 5},
			{Threshold: 40, Percent: 10},
		},
		LeadTimeTiers: []Tier{
			{Threshold: 14, Percent: 3},
			{Threshold: 30, Percent: 5},
		},
		MultiChildPercent:  multiChildPercent,
		MaxDiscountPercent: maxDiscountPercent,
	}
}

// Input describes what is being priced. PackageBasePrice > 0 marks a
// pre-priced package; otherwise the price is hours × rate per child.
type Input struct {
	PackageBasePrice float64
	Hours            float64
	Participants     int
	StartDate        string // first session, YYYY-MM-DD; empty when unknown
	Now              time.Time
}

// Adjustment is one applied discount rule.
type Adjustment struct {
	Rule    string
	Percent float64
	Amount  float64
}

type Quote struct {
	BasePrice       float64
	DiscountPercent float64
	Discount        float64
	FinalPrice      float64
	Adjustments     []Adjustment
	// Retained is set when a stored price was kept instead of recomputed.
	Retained bool
}

// Quote prices a package.
func (p Policy) Quote(in Input) (Quote, error) {
	base, err := p.basePrice(in)
	if err != nil {
		return Quote{}, err
	}
	q := Quote{BasePrice: base}
	if base <= 0 {
		return q, nil
	}

	var rules []Adjustment
	if pct := bestTier(p.VolumeTiers, in.Hours); pct > 0 {
		rules = append(rules, Adjustment{Rule: fmt.Sprintf("volume (%.0f hours)", in.Hours), Percent: pct})
	}
	if days, ok := daysUntil(in.StartDate, in.Now); ok {
		if pct := bestTier(p.LeadTimeTiers, float64(days)); pct > 0 {
			rules = append(rules, Adjustment{Rule: fmt.Sprintf("early booking (%d days ahead)", days), Percent: pct})
		}
	}
	if in.Participants > 1 && p.MultiChildPercent > 0 {
		rules = append(rules, Adjustment{Rule: fmt.Sprintf("siblings (%d children)", in.Participants), Percent: p.MultiChildPercent * float64(in.Participants-1)})
	}

	// Percentages add up, then the cap is applied in rule order.
	limit := 100.0
	if p.MaxDiscountPercent > 0 && p.MaxDiscountPercent < limit {
		limit = p.MaxDiscountPercent
	}
	for _, r := range rules {
		room := limit - q.DiscountPercent
		if room <= 0 {
			break
		}
		r.Percent = math.Min(r.Percent, room)
		r.Amount = entity.RoundMoney(base * r.Percent / 100)
		q.DiscountPercent += r.Percent
		q.Discount += r.Amount
		q.Adjustments = append(q.Adjustments, r)
	}

	q.Discount = entity.RoundMoney(math.Min(q.Discount, base))
	q.FinalPrice = entity.RoundMoney(math.Max(0, base-q.Discount))
	return q, nil
}

// Requote reprices on update. Without a package base price the stored
// price is kept rather than zeroed.
func (p Policy) Requote(storedPrice float64, in Input) (Quote, error) {
	if in.PackageBasePrice <= 0 {
		return Quote{BasePrice: storedPrice, FinalPrice: storedPrice, Retained: true}, nil
	}
	return p.Quote(in)
}

func (p Policy) basePrice(in Input) (float64, error) {
	if in.PackageBasePrice < 0 {
		return 0, &entity.ValidationError{Field: "packageBasePrice", Message: "package price cannot be negative"}
	}
	if in.PackageBasePrice > 0 {
		return entity.RoundMoney(in.PackageBasePrice), nil
	}
	if in.Hours < 0 {
		return 0, &entity.ValidationError{Field: "totalHours", Message: "hours cannot be negative"}
	}
	if p.HourlyRate <= 0 {
		return 0, &entity.ValidationError{Field: "totalHours", Message: "no hourly rate is configured for ad-hoc hours"}
	}
	children := in.Participants
	if children < 1 {
		children = 1
	}
	return entity.RoundMoney(in.Hours * p.HourlyRate * float64(children)), nil
}

func bestTier(tiers []Tier, value float64) float64 {
	sorted := append([]Tier(nil), tiers...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Threshold < sorted[j].Threshold })
	pct := 0.0
	for _, t := range sorted {
		if value >= t.Threshold {
			pct = t.Percent
		}
	}
	return pct
}

func daysUntil(date string, now time.Time) (int, bool) {
	if date == "" {
		return 0, false
	}
	start, err := entity.ParseDate(date)
	if err != nil {
		return 0, false
	}
	days := int(start.Sub(entity.CivilDay(now)).Hours() / 24)
	if days < 0 {
		return 0, false
	}
	return days, true
}
