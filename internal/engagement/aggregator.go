// Package engagement rolls a visitor's recent Activity Ledger entries into
// summary metrics. Aggregation is fully deterministic and side-effect-free;
// the resulting snapshot is a derived view, never a source of truth.
package engagement

import (
	"context"
	"time"

	"leadflow_backend/internal/activity"

	"github.com/google/uuid"
)

// Frequency classifies how often a visitor interacts, by daily average.
type Frequency string

const (
	FrequencyLow      Frequency = "low"
	FrequencyMedium   Frequency = "medium"
	FrequencyHigh     Frequency = "high"
	FrequencyVeryHigh Frequency = "very_high"
)

// Daily-average thresholds for frequency classification (events per day).
const (
	mediumEventsPerDay   = 1.0
	highEventsPerDay     = 2.0
	veryHighEventsPerDay = 3.0
)

// Two consecutive events further apart than this belong to separate sessions
// and their gap is excluded from the average.
const sessionGapLimit = 3 * time.Hour

// Metrics is the engagement snapshot for one visitor.
type Metrics struct {
	InteractionCount int           `json:"interactionCount"`
	PageViews        int           `json:"pageViews"`
	ProductViews     int           `json:"productViews"`
	CartInteractions int           `json:"cartInteractions"`
	Searches         int           `json:"searches"`
	LastPage         string        `json:"lastPage,omitempty"`
	LastInteraction  *time.Time    `json:"lastInteraction,omitempty"`
	AverageGap       time.Duration `json:"averageGap"`
	Frequency        Frequency     `json:"frequency"`
}

// ActivityReader is the slice of the activity repository the aggregator needs.
type ActivityReader interface {
	ListByVisitor(ctx context.Context, visitorID uuid.UUID, since time.Time) ([]activity.Event, error)
}

// Aggregator computes engagement metrics from the Activity Ledger.
type Aggregator struct {
	activities ActivityReader
	window     time.Duration
}

// New creates an aggregator with the given lookback window.
func New(activities ActivityReader, windowDays int) *Aggregator {
	if windowDays <= 0 {
		windowDays = 30
	}
	return &Aggregator{
		activities: activities,
		window:     time.Duration(windowDays) * 24 * time.Hour,
	}
}

// Aggregate fetches the visitor's ledger entries in the lookback window and
// computes the engagement snapshot.
func (a *Aggregator) Aggregate(ctx context.Context, visitorID uuid.UUID) (Metrics, error) {
	now := time.Now().UTC()
	events, err := a.activities.ListByVisitor(ctx, visitorID, now.Add(-a.window))
	if err != nil {
		return Metrics{}, err
	}
	return Compute(events, a.window), nil
}

// Compute derives metrics from ledger events, assumed sorted oldest first.
// An empty slice yields the zero-value snapshot with frequency "low".
func Compute(events []activity.Event, window time.Duration) Metrics {
	metrics := Metrics{Frequency: FrequencyLow}
	if len(events) == 0 {
		return metrics
	}

	metrics.InteractionCount = len(events)

	for _, event := range events {
		switch event.Type {
		case activity.EventPageView:
			metrics.PageViews++
			if data, ok := event.Payload.(activity.PageViewData); ok {
				metrics.LastPage = data.Path
			}
		case activity.EventProductView:
			metrics.ProductViews++
		case activity.EventCartAdd, activity.EventCartRemove:
			metrics.CartInteractions++
		case activity.EventSearch:
			metrics.Searches++
		}
	}

	last := events[len(events)-1].OccurredAt
	metrics.LastInteraction = &last

	metrics.AverageGap = averageSessionGap(events)
	metrics.Frequency = classifyFrequency(len(events), window)

	return metrics
}

// averageSessionGap averages the gaps between consecutive events, treating
// any gap over sessionGapLimit as a session boundary rather than dwell time.
func averageSessionGap(events []activity.Event) time.Duration {
	var total time.Duration
	var counted int

	for i := 1; i < len(events); i++ {
		gap := events[i].OccurredAt.Sub(events[i-1].OccurredAt)
		if gap < 0 || gap > sessionGapLimit {
			continue
		}
		total += gap
		counted++
	}

	if counted == 0 {
		return 0
	}
	return total / time.Duration(counted)
}

func classifyFrequency(count int, window time.Duration) Frequency {
	days := window.Hours() / 24
	if days <= 0 {
		return FrequencyLow
	}

	perDay := float64(count) / days
	switch {
	case perDay >= veryHighEventsPerDay:
		return FrequencyVeryHigh
	case perDay >= highEventsPerDay:
		return FrequencyHigh
	case perDay >= mediumEventsPerDay:
		return FrequencyMedium
	default:
		return FrequencyLow
	}
}
