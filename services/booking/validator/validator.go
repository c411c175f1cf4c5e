// Package validator holds the pure booking checks: one active package per
// child, session availability against a caller-supplied snapshot and
// scheduling-mode compatibility. Nothing here performs I/O.
package validator

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"kidsclub/services/booking/entity"
)

// Candidate is the booking being created or updated. ID is empty on create.
type Candidate struct {
	ID           string
	Participants []entity.Participant
}

// DuplicateResult is the outcome of the one-active-package rule.
type DuplicateResult struct {
	IsDuplicate         bool
	ConflictingBookings []entity.PackageConflict
	Message             string
}

// Err returns the typed error for a duplicate, or nil.
func (r DuplicateResult) Err() error {
	if !r.IsDuplicate {
		return nil
	}
	return &entity.DuplicatePackageError{Conflicts: r.ConflictingBookings}
}

// CheckDuplicatePackage reports every participant of the candidate that
// already holds an active package, whatever package it is for.
func CheckDuplicatePackage(c Candidate, existing []*entity.Booking, now time.Time) DuplicateResult {
	var conflicts []entity.PackageConflict
	seen := make(map[string]bool)

	for _, p := range c.Participants {
		key := p.Key()
		for _, b := range existing {
			if b == nil || b.ID() == c.ID || !b.IsActive(now) {
				continue
			}
			if !holdsChild(b, key) || seen[key+"/"+b.ID()] {
				continue
			}
			seen[key+"/"+b.ID()] = true
			conflicts = append(conflicts, entity.PackageConflict{
				BookingID: b.ID(),
				Reference: b.Reference(),
				ChildName: p.Name,
				ExpiresAt: b.PackageExpiresAt(),
			})
		}
	}

	if len(conflicts) == 0 {
		return DuplicateResult{}
	}
	res := DuplicateResult{IsDuplicate: true, ConflictingBookings: conflicts}
	res.Message = res.Err().Error()
	return res
}

func holdsChild(b *entity.Booking, key string) bool {
	for _, k := range b.ChildKeys() {
		if k == key {
			return true
		}
	}
	return false
}

// TimeSlot is an occupied session window for a child.
type TimeSlot struct {
	Date      string
	StartTime string
	EndTime   string
}

func (t TimeSlot) schedule() entity.Schedule {
	return entity.Schedule{Date: t.Date, StartTime: t.StartTime, EndTime: t.EndTime}
}

// Occupancy is the calendar of the relevant children derived from a snapshot.
type Occupancy struct {
	BookedDates     map[string]bool
	BookedTimeSlots []TimeSlot
}

// Dates returns the booked dates in ascending order.
func (o Occupancy) Dates() []string {
	out := make([]string, 0, len(o.BookedDates))
	for d := range o.BookedDates {
		out = append(out, d)
	}
	sort.Strings(out)
	return out
}

// BuildOccupancy collects the sessions still holding time for any of the
// given children. Cancelled or deleted bookings and cancelled sessions are
// skipped, as is ignoreBookingID, whose own sessions the aggregate checks.
func BuildOccupancy(existing []*entity.Booking, childKeys []string, ignoreBookingID string) Occupancy {
	want := make(map[string]bool, len(childKeys))
	for _, k := range childKeys {
		want[k] = true
	}
	occ := Occupancy{BookedDates: make(map[string]bool)}

	for _, b := range existing {
		if b == nil || b.ID() == ignoreBookingID || b.Status() == entity.StatusCancelled || b.IsDeleted() {
			continue
		}
		shared := false
		for _, k := range b.ChildKeys() {
			if want[k] {
				shared = true
				break
			}
		}
		if !shared {
			continue
		}
		for _, sc := range b.Schedules() {
			if !sc.OccupiesTime() {
				continue
			}
			occ.BookedDates[sc.Date] = true
			occ.BookedTimeSlots = append(occ.BookedTimeSlots, TimeSlot{Date: sc.Date, StartTime: sc.StartTime, EndTime: sc.EndTime})
		}
	}
	return occ
}

// AvailabilityResult lists the proposed sessions that cannot be booked.
type AvailabilityResult struct {
	IsAvailable bool
	Conflicts   []entity.ScheduleConflict
}

func (r AvailabilityResult) Err() error {
	if r.IsAvailable {
		return nil
	}
	return &entity.SchedulingConflictError{Conflicts: r.Conflicts}
}

// CheckAvailability tests proposed sessions against booked dates and slots.
// A booked date refuses any second session; otherwise half-open overlap on
// the same date is a conflict. Sessions within the proposal are also checked
// against each other.
func CheckAvailability(schedules []entity.Schedule, bookedDates map[string]bool, bookedTimeSlots []TimeSlot) AvailabilityResult {
	var conflicts []entity.ScheduleConflict
	proposed := make(map[string]entity.Schedule)

	for _, sc := range schedules {
		if sc.Status == entity.ScheduleCancelled {
			continue
		}
		conflict := func(reason string) {
			conflicts = append(conflicts, entity.ScheduleConflict{
				Date: sc.Date, StartTime: sc.StartTime, EndTime: sc.EndTime, Reason: reason,
			})
		}

		if bookedDates[sc.Date] {
			if slot, ok := overlapping(sc, bookedTimeSlots); ok {
				conflict(fmt.Sprintf("overlaps an existing session from %s to %s", slot.StartTime, slot.EndTime))
			} else {
				conflict(fmt.Sprintf("%s is already booked for this child", humanDate(sc.Date)))
			}
			continue
		}
		if slot, ok := overlapping(sc, bookedTimeSlots); ok {
			conflict(fmt.Sprintf("overlaps an existing session from %s to %s", slot.StartTime, slot.EndTime))
			continue
		}
		if prev, ok := proposed[sc.Date]; ok {
			if sc.Overlaps(prev) {
				conflict(fmt.Sprintf("overlaps another requested session from %s to %s", prev.StartTime, prev.EndTime))
			} else {
				conflict(fmt.Sprintf("another session is already requested on %s", humanDate(sc.Date)))
			}
			continue
		}
		proposed[sc.Date] = sc
	}

	return AvailabilityResult{IsAvailable: len(conflicts) == 0, Conflicts: conflicts}
}

func overlapping(sc entity.Schedule, slots []TimeSlot) (TimeSlot, bool) {
	for _, slot := range slots {
		if sc.Overlaps(slot.schedule()) {
			return slot, true
		}
	}
	return TimeSlot{}, false
}

func humanDate(d string) string {
	t, err := entity.ParseDate(d)
	if err != nil {
		return d
	}
	return t.Format("Monday 2 January 2006")
}

// Scheduling modes. Only ModeFlexible is live; the others are accepted with
// a warning until they ship.
const (
	ModeFlexible    = "flexible"
	ModeWeeklyFixed = "weekly_fixed"
	ModeIntensive   = "intensive"
)

var enabledModes = map[string]bool{ModeFlexible: true}

var knownModes = map[string]string{
	ModeFlexible:    "Flexible",
	ModeWeeklyFixed: "Weekly fixed",
	ModeIntensive:   "Intensive",
}

// Package is the subset of a purchasable package the mode check needs.
type Package struct {
	ID             string
	Name           string
	SupportedModes []string
}

// ModeResult never blocks; it only carries a warning and a fallback.
type ModeResult struct {
	Mode          string
	Compatible    bool
	Warning       string
	SuggestedMode string
}

// NormalizeMode lower-cases and trims a requested mode, defaulting to flexible.
func NormalizeMode(mode string) string {
	mode = strings.ToLower(strings.TrimSpace(mode))
	mode = strings.ReplaceAll(mode, "-", "_")
	if mode == "" {
		return ModeFlexible
	}
	return mode
}

// CheckModeCompatibility tests a requested scheduling mode against the
// enabled modes and the package's supported modes.
func CheckModeCompatibility(mode string, pkg Package) ModeResult {
	mode = NormalizeMode(mode)
	res := ModeResult{Mode: mode, Compatible: true}

	label, known := knownModes[mode]
	switch {
	case !known:
		res.Compatible = false
		res.Warning = fmt.Sprintf("scheduling mode %q is not recognised; flexible scheduling will be used", mode)
	case !enabledModes[mode]:
		res.Compatible = false
		res.Warning = fmt.Sprintf("%s scheduling is not available yet; flexible scheduling will be used", label)
	case len(pkg.SupportedModes) > 0 && !contains(pkg.SupportedModes, mode):
		res.Compatible = false
		res.Warning = fmt.Sprintf("package %s does not offer %s scheduling; flexible scheduling will be used", packageLabel(pkg), strings.ToLower(label))
	}
	if !res.Compatible {
		res.SuggestedMode = ModeFlexible
	}
	return res
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if NormalizeMode(s) == v {
			return true
		}
	}
	return false
}

func packageLabel(p Package) string {
	if p.Name != "" {
		return p.Name
	}
	return p.ID
}

// Request is everything Validate needs, all supplied by the caller.
type Request struct {
	Candidate Candidate
	Schedules []entity.Schedule
	Existing  []*entity.Booking
	Mode      string
	Package   Package
	Now       time.Time

	// SkipDuplicateCheck is set by flows that act on an existing package,
	// such as adding a session to it.
	SkipDuplicateCheck bool
}

// Result combines the checks. Warnings never make it invalid.
type Result struct {
	Valid     bool
	Errors    []error
	Warnings  []string
	Duplicate DuplicateResult
	Available AvailabilityResult
	Mode      ModeResult
	Occupancy Occupancy
}

// Err returns the first hard error, or nil.
func (r Result) Err() error {
	if len(r.Errors) == 0 {
		return nil
	}
	return r.Errors[0]
}

// Validate runs the duplicate, availability and mode checks together.
func Validate(req Request) Result {
	res := Result{Valid: true}

	if !req.SkipDuplicateCheck {
		res.Duplicate = CheckDuplicatePackage(req.Candidate, req.Existing, req.Now)
		if err := res.Duplicate.Err(); err != nil {
			res.Errors = append(res.Errors, err)
		}
	}

	keys := entity.ParticipantKeys(req.Candidate.Participants)
	res.Occupancy = BuildOccupancy(req.Existing, keys, req.Candidate.ID)
	res.Available = CheckAvailability(req.Schedules, res.Occupancy.BookedDates, res.Occupancy.BookedTimeSlots)
	if err := res.Available.Err(); err != nil {
		res.Errors = append(res.Errors, err)
	}

	res.Mode = CheckModeCompatibility(req.Mode, req.Package)
	if res.Mode.Warning != "" {
		res.Warnings = append(res.Warnings, res.Mode.Warning)
	}

	res.Valid = len(res.Errors) == 0
	return res
}
