package notification

import (
	"fmt"
	"strings"

	"kidsclub/models"
)

func greeting(rec models.BookingRecord) string {
	if rec.ParentGuardian.Name == "" {
		return "Hi,"
	}
	return fmt.Sprintf("Hi %s,", rec.ParentGuardian.Name)
}

// ChildNames joins participant names for display.
func ChildNames(participants []models.ParticipantRecord) string {
	names := make([]string, 0, len(participants))
	for _, p := range participants {
		names = append(names, p.Name)
	}
	switch len(names) {
	case 0:
		return ""
	case 1:
		return names[0]
	default:
		return strings.Join(names[:len(names)-1], ", ") + " and " + names[len(names)-1]
	}
}

func childrenOrDefault(names string) string {
	if names == "" {
		return "your child"
	}
	return names
}

func renderConfirmation(rec models.BookingRecord) string {
	var b strings.Builder
	b.WriteString(greeting(rec))
	fmt.Fprintf(&b, "\n\nYour booking %s for %s is confirmed.\n\n", rec.Reference, childrenOrDefault(ChildNames(rec.Participants)))
	fmt.Fprintf(&b, "Hours: %.2f total, %.2f remaining\n", rec.TotalHours, rec.RemainingHours)
	fmt.Fprintf(&b, "Paid: %.2f %s of %.2f\n", rec.PaidAmount, strings.ToUpper(rec.Currency), rec.TotalPrice)
	if rec.PackageExpiresAt != nil {
		fmt.Fprintf(&b, "Valid until: %s\n", rec.PackageExpiresAt.Format("2006-01-02"))
	}

	var upcoming []string
	for _, s := range rec.Schedules {
		if s.Status == "scheduled" || s.Status == "rescheduled" {
			upcoming = append(upcoming, fmt.Sprintf("  - %s %s-%s", s.Date, s.StartTime, s.EndTime))
		}
	}
	if len(upcoming) > 0 {
		b.WriteString("\nUpcoming sessions:\n")
		b.WriteString(strings.Join(upcoming, "\n"))
		b.WriteString("\n")
	}
	return b.String()
}

func renderCancellation(rec models.BookingRecord) string {
	var b strings.Builder
	b.WriteString(greeting(rec))
	fmt.Fprintf(&b, "\n\nYour booking %s has been cancelled", rec.Reference)
	if rec.CancellationReason != "" {
		fmt.Fprintf(&b, " (%s)", rec.CancellationReason)
	}
	b.WriteString(".\n")
	if rec.RefundedAmount > 0 {
		fmt.Fprintf(&b, "A refund of %.2f %s is on its way.\n", rec.RefundedAmount, strings.ToUpper(rec.Currency))
	}
	return b.String()
}
