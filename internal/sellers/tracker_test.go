package sellers

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"leadflow_backend/internal/events"
	"leadflow_backend/internal/leads/repository"
	"leadflow_backend/platform/logger"
)

type fakePerformanceStore struct {
	increments []string // "sellerID|period|column"
}

func (f *fakePerformanceStore) IncrementCounter(_ context.Context, sellerID uuid.UUID, period, column string, _ int64) error {
	f.increments = append(f.increments, sellerID.String()+"|"+period+"|"+column)
	return nil
}

type fakeAssignmentReader struct {
	leads map[uuid.UUID]repository.Lead
}

func (f *fakeAssignmentReader) GetByID(_ context.Context, id uuid.UUID) (repository.Lead, error) {
	lead, ok := f.leads[id]
	if !ok {
		return repository.Lead{}, repository.ErrNotFound
	}
	return lead, nil
}

func TestTrackerCountsTransitionsForAssignedSeller(t *testing.T) {
	sellerID := uuid.New()
	leadID := uuid.New()
	now := time.Date(2026, 5, 12, 10, 0, 0, 0, time.UTC)

	store := &fakePerformanceStore{}
	reader := &fakeAssignmentReader{leads: map[uuid.UUID]repository.Lead{
		leadID: {ID: leadID, AssignedSellerID: &sellerID},
	}}
	tracker := NewTracker(store, reader, logger.New("test")).WithClock(func() time.Time { return now })

	cases := []struct {
		newStatus  string
		wantColumn string
	}{
		{"contacted", "leads_contacted"},
		{"qualified", "leads_qualified"},
		{"proposal", "proposals_sent"},
		{"converted", "closes"},
	}
	for _, tc := range cases {
		if err := tracker.onStatusChanged(context.Background(), events.LeadStatusChanged{
			LeadID:    leadID,
			NewStatus: tc.newStatus,
		}); err != nil {
			t.Fatalf("onStatusChanged(%s): %v", tc.newStatus, err)
		}
	}

	if len(store.increments) != len(cases) {
		t.Fatalf("got %d increments, want %d", len(store.increments), len(cases))
	}
	for i, tc := range cases {
		want := sellerID.String() + "|2026-05|" + tc.wantColumn
		if store.increments[i] != want {
			t.Errorf("increment[%d] = %s, want %s", i, store.increments[i], want)
		}
	}
}

func TestTrackerIgnoresUntrackedAndUnassigned(t *testing.T) {
	leadID := uuid.New()
	store := &fakePerformanceStore{}
	reader := &fakeAssignmentReader{leads: map[uuid.UUID]repository.Lead{
		leadID: {ID: leadID}, // no assigned seller
	}}
	tracker := NewTracker(store, reader, logger.New("test"))

	if err := tracker.onStatusChanged(context.Background(), events.LeadStatusChanged{
		LeadID:    leadID,
		NewStatus: "nurturing",
	}); err != nil {
		t.Fatalf("untracked status: %v", err)
	}
	if err := tracker.onStatusChanged(context.Background(), events.LeadStatusChanged{
		LeadID:    leadID,
		NewStatus: "contacted",
	}); err != nil {
		t.Fatalf("unassigned lead: %v", err)
	}

	if len(store.increments) != 0 {
		t.Errorf("expected no increments, got %v", store.increments)
	}
}
