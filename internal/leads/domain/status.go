// Package domain holds the pure lead domain logic: the status state machine,
// the bounded score history, and the follow-up predicates. Nothing in this
// package touches storage or the network.
package domain

import "fmt"

// Status is the lead pipeline state.
type Status string

const (
	StatusNew       Status = "new"
	StatusContacted Status = "contacted"
	StatusQualified Status = "qualified"
	StatusProposal  Status = "proposal"
	StatusConverted Status = "converted"
	StatusLost      Status = "lost"
	StatusNurturing Status = "nurturing"
)

// InterestLevel is the ordinal classification accompanying the AI score.
type InterestLevel string

const (
	InterestVeryLow  InterestLevel = "very_low"
	InterestLow      InterestLevel = "low"
	InterestMedium   InterestLevel = "medium"
	InterestHigh     InterestLevel = "high"
	InterestVeryHigh InterestLevel = "very_high"
)

var validStatuses = map[Status]bool{
	StatusNew:       true,
	StatusContacted: true,
	StatusQualified: true,
	StatusProposal:  true,
	StatusConverted: true,
	StatusLost:      true,
	StatusNurturing: true,
}

var validInterestLevels = map[InterestLevel]bool{
	InterestVeryLow:  true,
	InterestLow:      true,
	InterestMedium:   true,
	InterestHigh:     true,
	InterestVeryHigh: true,
}

// IsValidStatus reports whether s is a known pipeline status.
func IsValidStatus(s Status) bool {
	return validStatuses[s]
}

// IsValidInterestLevel reports whether l is a known interest level.
func IsValidInterestLevel(l InterestLevel) bool {
	return validInterestLevels[l]
}

// IsTerminal reports whether a status ends the lead's working lifecycle.
// Terminal leads are excluded from follow-up scheduling and stale detection.
func (s Status) IsTerminal() bool {
	return s == StatusConverted || s == StatusLost
}

// ValidateTransition checks a status transition. Transitions out of a
// terminal status are rejected; everything else between known statuses is
// allowed (lost and nurturing are reachable from any non-terminal state).
func ValidateTransition(from, to Status) error {
	if !IsValidStatus(to) {
		return fmt.Errorf("unknown status %q", to)
	}
	if from == to {
		return fmt.Errorf("lead is already %s", from)
	}
	if from.IsTerminal() {
		return fmt.Errorf("lead is %s; no further transitions allowed", from)
	}
	return nil
}
