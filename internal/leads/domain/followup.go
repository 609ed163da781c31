package domain

import "time"

// Reminder is the follow-up reminder sub-record on a lead.
type Reminder struct {
	Enabled bool   `json:"enabled"`
	Channel string `json:"channel"`
	Sent    bool   `json:"sent"`
}

// FollowUpDueToday reports whether a lead's follow-up falls inside
// [start-of-today, start-of-tomorrow) in now's location, with the reminder
// enabled and not yet sent. Terminal leads are never due.
func FollowUpDueToday(status Status, nextFollowUp *time.Time, reminder Reminder, now time.Time) bool {
	if status.IsTerminal() || nextFollowUp == nil {
		return false
	}
	if !reminder.Enabled || reminder.Sent {
		return false
	}

	startOfToday := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	startOfTomorrow := startOfToday.Add(24 * time.Hour)

	due := nextFollowUp.In(now.Location())
	return !due.Before(startOfToday) && due.Before(startOfTomorrow)
}

// IsStale reports whether a non-terminal lead has gone cold: no contact
// within the threshold (or never contacted) AND no ledger interaction within
// the threshold. Terminal leads are never stale regardless of inactivity.
func IsStale(status Status, lastContact, lastInteraction *time.Time, thresholdDays int, now time.Time) bool {
	if status.IsTerminal() {
		return false
	}

	cutoff := now.AddDate(0, 0, -thresholdDays)

	contactStale := lastContact == nil || lastContact.Before(cutoff)
	interactionStale := lastInteraction == nil || lastInteraction.Before(cutoff)

	return contactStale && interactionStale
}
