package sellers

import (
	"context"
	"time"

	"github.com/google/uuid"

	"leadflow_backend/internal/events"
	"leadflow_backend/internal/leads/domain"
	"leadflow_backend/internal/leads/repository"
	"leadflow_backend/platform/logger"
)

// counterForStatus maps a pipeline transition to the performance counter it
// advances. Transitions without a counter are ignored.
var counterForStatus = map[domain.Status]string{
	domain.StatusContacted: "leads_contacted",
	domain.StatusQualified: "leads_qualified",
	domain.StatusProposal:  "proposals_sent",
	domain.StatusConverted: "closes",
}

// PerformanceStore is the repository slice the tracker writes through.
type PerformanceStore interface {
	IncrementCounter(ctx context.Context, sellerID uuid.UUID, period, column string, revenueCents int64) error
}

// AssignmentReader resolves which seller owns the lead a status event names.
type AssignmentReader interface {
	GetByID(ctx context.Context, id uuid.UUID) (repository.Lead, error)
}

// Tracker moves seller performance counters in response to lead lifecycle
// events. Unassigned leads leave no trace; counters belong to sellers.
type Tracker struct {
	store PerformanceStore
	leads AssignmentReader
	log   *logger.Logger
	now   func() time.Time
}

func NewTracker(store PerformanceStore, leads AssignmentReader, log *logger.Logger) *Tracker {
	return &Tracker{store: store, leads: leads, log: log, now: time.Now}
}

// WithClock overrides the tracker clock. Tests only.
func (t *Tracker) WithClock(now func() time.Time) *Tracker {
	t.now = now
	return t
}

// Register subscribes the tracker to the lead lifecycle events it cares
// about.
func (t *Tracker) Register(bus events.Bus) {
	bus.Subscribe(events.LeadStatusChanged{}.EventName(), events.HandlerFunc(func(ctx context.Context, event events.Event) error {
		changed, ok := event.(events.LeadStatusChanged)
		if !ok {
			return nil
		}
		return t.onStatusChanged(ctx, changed)
	}))
}

func (t *Tracker) onStatusChanged(ctx context.Context, event events.LeadStatusChanged) error {
	column, tracked := counterForStatus[domain.Status(event.NewStatus)]
	if !tracked {
		return nil
	}

	lead, err := t.leads.GetByID(ctx, event.LeadID)
	if err != nil {
		return err
	}
	if lead.AssignedSellerID == nil {
		return nil
	}

	return t.store.IncrementCounter(ctx, *lead.AssignedSellerID, PeriodOf(t.now()), column, 0)
}
