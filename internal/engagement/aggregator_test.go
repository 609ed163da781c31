package engagement

import (
	"testing"
	"time"

	"leadflow_backend/internal/activity"

	"github.com/google/uuid"
)

func eventAt(t time.Time, eventType activity.EventType) activity.Event {
	return activity.Event{
		ID:         uuid.New(),
		VisitorID:  uuid.New(),
		Type:       eventType,
		OccurredAt: t,
	}
}

func TestComputeEmptyWindowYieldsZeroValue(t *testing.T) {
	metrics := Compute(nil, 30*24*time.Hour)

	if metrics.InteractionCount != 0 {
		t.Errorf("interaction count = %d, want 0", metrics.InteractionCount)
	}
	if metrics.PageViews != 0 || metrics.ProductViews != 0 || metrics.CartInteractions != 0 || metrics.Searches != 0 {
		t.Errorf("expected all counters zero, got %+v", metrics)
	}
	if metrics.Frequency != FrequencyLow {
		t.Errorf("frequency = %q, want low", metrics.Frequency)
	}
	if metrics.LastInteraction != nil {
		t.Errorf("last interaction = %v, want nil", metrics.LastInteraction)
	}
}

func TestComputeCountsByEventType(t *testing.T) {
	base := time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC)
	events := []activity.Event{
		{Type: activity.EventPageView, Payload: activity.PageViewData{Path: "/home"}, OccurredAt: base},
		{Type: activity.EventProductView, OccurredAt: base.Add(1 * time.Minute)},
		{Type: activity.EventCartAdd, OccurredAt: base.Add(2 * time.Minute)},
		{Type: activity.EventCartRemove, OccurredAt: base.Add(3 * time.Minute)},
		{Type: activity.EventSearch, OccurredAt: base.Add(4 * time.Minute)},
		{Type: activity.EventPageView, Payload: activity.PageViewData{Path: "/gallery"}, OccurredAt: base.Add(5 * time.Minute)},
	}

	metrics := Compute(events, 30*24*time.Hour)

	if metrics.InteractionCount != 6 {
		t.Errorf("interaction count = %d, want 6", metrics.InteractionCount)
	}
	if metrics.PageViews != 2 {
		t.Errorf("page views = %d, want 2", metrics.PageViews)
	}
	if metrics.CartInteractions != 2 {
		t.Errorf("cart interactions = %d, want 2", metrics.CartInteractions)
	}
	if metrics.Searches != 1 {
		t.Errorf("searches = %d, want 1", metrics.Searches)
	}
	if metrics.LastPage != "/gallery" {
		t.Errorf("last page = %q, want /gallery", metrics.LastPage)
	}
	if metrics.LastInteraction == nil || !metrics.LastInteraction.Equal(base.Add(5*time.Minute)) {
		t.Errorf("last interaction = %v, want %v", metrics.LastInteraction, base.Add(5*time.Minute))
	}
}

func TestAverageGapExcludesSessionBoundaries(t *testing.T) {
	base := time.Date(2026, 8, 1, 9, 0, 0, 0, time.UTC)
	// Two sessions: 10-minute gaps inside each, a 5-hour gap between them.
	events := []activity.Event{
		eventAt(base, activity.EventPageView),
		eventAt(base.Add(10*time.Minute), activity.EventPageView),
		eventAt(base.Add(5*time.Hour+10*time.Minute), activity.EventPageView),
		eventAt(base.Add(5*time.Hour+20*time.Minute), activity.EventPageView),
	}

	metrics := Compute(events, 30*24*time.Hour)

	if metrics.AverageGap != 10*time.Minute {
		t.Errorf("average gap = %v, want 10m (cross-session gap must be excluded)", metrics.AverageGap)
	}
}

func TestClassifyFrequencyThresholds(t *testing.T) {
	week := 7 * 24 * time.Hour

	cases := []struct {
		name  string
		count int
		want  Frequency
	}{
		{"below one per day", 6, FrequencyLow},
		{"one per day", 7, FrequencyMedium},
		{"two per day", 14, FrequencyHigh},
		{"three per day", 21, FrequencyVeryHigh},
		{"well above", 50, FrequencyVeryHigh},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := classifyFrequency(tc.count, week); got != tc.want {
				t.Errorf("classifyFrequency(%d, 7d) = %q, want %q", tc.count, got, tc.want)
			}
		})
	}
}

func TestComputeIsDeterministic(t *testing.T) {
	base := time.Date(2026, 8, 1, 9, 0, 0, 0, time.UTC)
	events := []activity.Event{
		eventAt(base, activity.EventPageView),
		eventAt(base.Add(30*time.Minute), activity.EventCartAdd),
		eventAt(base.Add(time.Hour), activity.EventSearch),
	}

	first := Compute(events, 30*24*time.Hour)
	second := Compute(events, 30*24*time.Hour)

	if first.InteractionCount != second.InteractionCount ||
		first.AverageGap != second.AverageGap ||
		first.Frequency != second.Frequency {
		t.Errorf("Compute not deterministic: %+v vs %+v", first, second)
	}
}
