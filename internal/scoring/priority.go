// Package scoring computes lead scores: the deterministic priority formula
// over local signals, and the AI scoring flow against the external
// classifier with a mandatory degraded-mode fallback.
package scoring

import (
	"math"
	"time"

	"leadflow_backend/internal/engagement"
)

// Weight of the AI score in the priority formula.
const aiScoreWeight = 0.5

// Engagement term by frequency class.
const (
	engagementTermLow      = 5
	engagementTermMedium   = 10
	engagementTermHigh     = 15
	engagementTermVeryHigh = 20
)

// Recency term by days since the last ledger interaction.
const (
	recencyTermDay  = 15
	recencyTermFew  = 10
	recencyTermWeek = 5
)

// Bonus applied while the visitor has items in the cart.
const cartBonus = 15

// PriorityInput carries the signals the priority formula reads.
type PriorityInput struct {
	AIScore         int
	Frequency       engagement.Frequency
	LastInteraction *time.Time
	CartItems       int
	Now             time.Time
}

// PriorityScore computes the routing priority on a 0..100 scale. The
// function is pure: same inputs, same score.
func PriorityScore(input PriorityInput) int {
	score := aiScoreWeight * float64(Clamp(input.AIScore))
	score += float64(engagementTerm(input.Frequency))
	score += float64(recencyTerm(input.LastInteraction, input.Now))
	if input.CartItems > 0 {
		score += cartBonus
	}
	return Clamp(int(math.Round(score)))
}

// Clamp bounds a score to the 0..100 scale.
func Clamp(score int) int {
	if score < 0 {
		return 0
	}
	if score > 100 {
		return 100
	}
	return score
}

func engagementTerm(frequency engagement.Frequency) int {
	switch frequency {
	case engagement.FrequencyVeryHigh:
		return engagementTermVeryHigh
	case engagement.FrequencyHigh:
		return engagementTermHigh
	case engagement.FrequencyMedium:
		return engagementTermMedium
	default:
		return engagementTermLow
	}
}

func recencyTerm(lastInteraction *time.Time, now time.Time) int {
	if lastInteraction == nil {
		return 0
	}

	days := now.Sub(*lastInteraction).Hours() / 24
	switch {
	case days <= 1:
		return recencyTermDay
	case days <= 3:
		return recencyTermFew
	case days <= 7:
		return recencyTermWeek
	default:
		return 0
	}
}
