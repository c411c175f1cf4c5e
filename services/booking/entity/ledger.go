package entity

import "math"

// Ledger is the derived hours accounting of a booking.
type Ledger struct {
	TotalHours     float64
	BookedHours    float64
	UsedHours      float64
	RemainingHours float64
}

// ComputeLedger derives booked, used and remaining hours from the schedules.
// Cancelled sessions release their hours; completed and no-show sessions
// count as used.
func ComputeLedger(totalHours float64, schedules []Schedule) Ledger {
	var booked, used float64
	for _, sc := range schedules {
		if !sc.OccupiesTime() {
			continue
		}
		d := sc.DurationHours()
		booked += d
		if sc.Consumed() {
			used += d
		}
	}
	booked, used = RoundHours(booked), RoundHours(used)
	return Ledger{
		TotalHours:     totalHours,
		BookedHours:    booked,
		UsedHours:      used,
		RemainingHours: RoundHours(math.Max(0, totalHours-booked)),
	}
}

// ReconcileTotalHours rebuilds a missing or non-positive total from the
// sessions that still hold time. With none left the pay-first placeholder is
// used.
func ReconcileTotalHours(totalHours float64, schedules []Schedule) float64 {
	if totalHours > 0 {
		return totalHours
	}
	if len(schedules) == 0 {
		return PlaceholderHours
	}
	var sum float64
	for _, sc := range schedules {
		if !sc.OccupiesTime() {
			continue
		}
		sum += math.Max(0, sc.DurationHours())
	}
	sum = RoundHours(sum)
	if sum <= 0 {
		return PlaceholderHours
	}
	return sum
}

// ReconcileState applies hours reconciliation to a stored state. Running it
// on an already consistent state returns the same values.
func ReconcileState(st State) State {
	st.TotalHours = ReconcileTotalHours(st.TotalHours, st.Schedules)
	l := ComputeLedger(st.TotalHours, st.Schedules)
	st.BookedHours = l.BookedHours
	st.UsedHours = l.UsedHours
	st.RemainingHours = l.RemainingHours
	return st
}

func (b *Booking) reconcile() {
	b.s = ReconcileState(b.s)
}

// Ledger returns the current hours accounting.
func (b *Booking) Ledger() Ledger {
	return ComputeLedger(b.s.TotalHours, b.s.Schedules)
}
