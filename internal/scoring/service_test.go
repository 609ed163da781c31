package scoring

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"leadflow_backend/internal/activity"
	"leadflow_backend/internal/engagement"
	"leadflow_backend/internal/events"
	"leadflow_backend/internal/leads/domain"
	"leadflow_backend/internal/leads/repository"
	"leadflow_backend/platform/ai/classifier"
	"leadflow_backend/platform/logger"
)

type fakeLeadStore struct {
	leads       map[uuid.UUID]repository.Lead
	lastScores  *repository.UpdateScoresParams
	priorities  map[uuid.UUID]int
	priorityErr error
}

func newFakeLeadStore(leads ...repository.Lead) *fakeLeadStore {
	store := &fakeLeadStore{
		leads:      make(map[uuid.UUID]repository.Lead),
		priorities: make(map[uuid.UUID]int),
	}
	for _, lead := range leads {
		store.leads[lead.ID] = lead
	}
	return store
}

func (f *fakeLeadStore) GetByID(_ context.Context, id uuid.UUID) (repository.Lead, error) {
	lead, ok := f.leads[id]
	if !ok {
		return repository.Lead{}, repository.ErrNotFound
	}
	return lead, nil
}

func (f *fakeLeadStore) UpdateScores(_ context.Context, id uuid.UUID, params repository.UpdateScoresParams) (repository.Lead, error) {
	lead, ok := f.leads[id]
	if !ok {
		return repository.Lead{}, repository.ErrNotFound
	}
	f.lastScores = &params
	lead.AIScore = params.AIScore
	lead.InterestLevel = params.InterestLevel
	lead.ConversionProbability = params.ConversionProbability
	lead.Insights = params.Insights
	lead.RecommendedActions = params.RecommendedActions
	lead.ScoreHistory = params.ScoreHistory
	lead.PriorityScore = params.PriorityScore
	scoredAt := params.ScoredAt
	lead.AIScoredAt = &scoredAt
	f.leads[id] = lead
	return lead, nil
}

func (f *fakeLeadStore) UpdatePriority(_ context.Context, id uuid.UUID, priority int) error {
	if f.priorityErr != nil {
		return f.priorityErr
	}
	lead, ok := f.leads[id]
	if !ok {
		return repository.ErrNotFound
	}
	lead.PriorityScore = priority
	f.leads[id] = lead
	f.priorities[id] = priority
	return nil
}

func (f *fakeLeadStore) ListByVisitor(_ context.Context, visitorID uuid.UUID) ([]repository.Lead, error) {
	out := make([]repository.Lead, 0)
	for _, lead := range f.leads {
		if lead.VisitorID != nil && *lead.VisitorID == visitorID {
			out = append(out, lead)
		}
	}
	return out, nil
}

func (f *fakeLeadStore) ListNonTerminal(_ context.Context) ([]repository.Lead, error) {
	out := make([]repository.Lead, 0, len(f.leads))
	for _, lead := range f.leads {
		if !lead.Status.IsTerminal() {
			out = append(out, lead)
		}
	}
	return out, nil
}

func (f *fakeLeadStore) ListStaleAIScores(_ context.Context, cutoff time.Time) ([]repository.Lead, error) {
	out := make([]repository.Lead, 0)
	for _, lead := range f.leads {
		if lead.Status.IsTerminal() {
			continue
		}
		if lead.AIScoredAt == nil || lead.AIScoredAt.Before(cutoff) {
			out = append(out, lead)
		}
	}
	return out, nil
}

type fakeClassifier struct {
	result  classifier.LeadScoringResult
	err     error
	calls   int
	lastReq classifier.LeadScoringRequest
}

func (f *fakeClassifier) ScoreLead(_ context.Context, req classifier.LeadScoringRequest) (classifier.LeadScoringResult, error) {
	f.calls++
	f.lastReq = req
	return f.result, f.err
}

type fakeEngagement struct {
	metrics engagement.Metrics
}

func (f *fakeEngagement) Aggregate(context.Context, uuid.UUID) (engagement.Metrics, error) {
	return f.metrics, nil
}

type fakeActivity struct {
	history activity.VisitorHistory
	cart    int
}

func (f *fakeActivity) GetVisitorHistory(context.Context, uuid.UUID) (activity.VisitorHistory, error) {
	return f.history, nil
}

func (f *fakeActivity) CurrentCartSize(context.Context, uuid.UUID) (int, error) {
	return f.cart, nil
}

type captureBus struct {
	published []events.Event
}

func (b *captureBus) Publish(_ context.Context, event events.Event)          { b.published = append(b.published, event) }
func (b *captureBus) PublishSync(_ context.Context, event events.Event) error {
	b.published = append(b.published, event)
	return nil
}
func (b *captureBus) Subscribe(string, events.Handler) {}

func testLead(visitorID uuid.UUID) repository.Lead {
	return repository.Lead{
		ID:            uuid.New(),
		VisitorID:     &visitorID,
		Name:          "Dana Velez",
		Source:        "signup",
		Status:        domain.StatusNew,
		InterestLevel: domain.InterestMedium,
		CreatedAt:     time.Now().Add(-48 * time.Hour),
	}
}

func TestScoreLeadPersistsClassifierVerdict(t *testing.T) {
	now := time.Date(2026, 4, 1, 15, 0, 0, 0, time.UTC)
	lastInteraction := now.Add(-time.Hour)

	lead := testLead(uuid.New())
	store := newFakeLeadStore(lead)
	cls := &fakeClassifier{result: classifier.LeadScoringResult{
		Score:                 80,
		InterestLevel:         "high",
		ConversionProbability: 70,
		Insights:              []string{"repeat buyer"},
		RecommendedActions:    []string{"call today"},
	}}
	bus := &captureBus{}

	svc := NewService(store, cls,
		&fakeEngagement{metrics: engagement.Metrics{Frequency: engagement.FrequencyHigh, LastInteraction: &lastInteraction}},
		&fakeActivity{cart: 2},
		bus, logger.New("test"),
	).WithClock(func() time.Time { return now })

	updated, err := svc.ScoreLead(context.Background(), lead.ID, "initial score")
	if err != nil {
		t.Fatalf("ScoreLead: %v", err)
	}

	if updated.AIScore != 80 {
		t.Errorf("AIScore = %d, want 80", updated.AIScore)
	}
	if updated.InterestLevel != domain.InterestHigh {
		t.Errorf("InterestLevel = %s, want high", updated.InterestLevel)
	}
	// 0.5*80 + high(15) + today(15) + cart(15) = 85
	if updated.PriorityScore != 85 {
		t.Errorf("PriorityScore = %d, want 85", updated.PriorityScore)
	}
	if len(updated.ScoreHistory) != 1 || updated.ScoreHistory[0].Reason != "initial score" {
		t.Errorf("unexpected score history %+v", updated.ScoreHistory)
	}
	if updated.ScoreHistory[0].Score != 0 {
		t.Errorf("history entry score = %d, want the superseded value 0", updated.ScoreHistory[0].Score)
	}

	if len(bus.published) != 1 {
		t.Fatalf("published %d events, want 1", len(bus.published))
	}
	scored, ok := bus.published[0].(events.LeadScored)
	if !ok {
		t.Fatalf("published %T, want LeadScored", bus.published[0])
	}
	if scored.Degraded {
		t.Error("LeadScored.Degraded = true on a successful classifier call")
	}
}

func TestScoreLeadFallsBackWhenClassifierFails(t *testing.T) {
	now := time.Date(2026, 4, 1, 15, 0, 0, 0, time.UTC)

	lead := testLead(uuid.New())
	lead.ScoreHistory = []domain.ScoreHistoryEntry{{Score: 30, Reason: "earlier", RecordedAt: now.Add(-72 * time.Hour)}}
	store := newFakeLeadStore(lead)
	cls := &fakeClassifier{err: errors.New("classifier unavailable")}
	bus := &captureBus{}

	svc := NewService(store, cls,
		&fakeEngagement{metrics: engagement.Metrics{Frequency: engagement.FrequencyLow}},
		&fakeActivity{},
		bus, logger.New("test"),
	).WithClock(func() time.Time { return now })

	updated, err := svc.ScoreLead(context.Background(), lead.ID, "scheduled rescore")
	if err != nil {
		t.Fatalf("ScoreLead must not propagate classifier errors, got %v", err)
	}

	if updated.AIScore != 50 {
		t.Errorf("AIScore = %d, want fallback 50", updated.AIScore)
	}
	if updated.InterestLevel != domain.InterestMedium {
		t.Errorf("InterestLevel = %s, want medium", updated.InterestLevel)
	}
	if updated.ConversionProbability != 50 {
		t.Errorf("ConversionProbability = %d, want 50", updated.ConversionProbability)
	}
	if len(updated.Insights) != 1 || updated.Insights[0] != "Error processing lead data" {
		t.Errorf("Insights = %v", updated.Insights)
	}
	if len(updated.RecommendedActions) != 1 || updated.RecommendedActions[0] != "Review lead manually" {
		t.Errorf("RecommendedActions = %v", updated.RecommendedActions)
	}
	if len(updated.ScoreHistory) != 2 {
		t.Errorf("score history len = %d, want 2 (fallback run still recorded)", len(updated.ScoreHistory))
	}

	if len(bus.published) != 1 {
		t.Fatalf("published %d events, want 1", len(bus.published))
	}
	if scored := bus.published[0].(events.LeadScored); !scored.Degraded {
		t.Error("LeadScored.Degraded = false after fallback")
	}
}

func TestScoreLeadNormalizesOutOfRangeVerdict(t *testing.T) {
	now := time.Date(2026, 4, 1, 15, 0, 0, 0, time.UTC)

	lead := testLead(uuid.New())
	store := newFakeLeadStore(lead)
	cls := &fakeClassifier{result: classifier.LeadScoringResult{
		Score:                 140,
		InterestLevel:         "scorching",
		ConversionProbability: -5,
	}}

	svc := NewService(store, cls,
		&fakeEngagement{metrics: engagement.Metrics{Frequency: engagement.FrequencyLow}},
		&fakeActivity{},
		&captureBus{}, logger.New("test"),
	).WithClock(func() time.Time { return now })

	updated, err := svc.ScoreLead(context.Background(), lead.ID, "initial score")
	if err != nil {
		t.Fatalf("ScoreLead: %v", err)
	}

	if updated.AIScore != 100 {
		t.Errorf("AIScore = %d, want clamped 100", updated.AIScore)
	}
	if updated.ConversionProbability != 0 {
		t.Errorf("ConversionProbability = %d, want clamped 0", updated.ConversionProbability)
	}
	if updated.InterestLevel != domain.InterestMedium {
		t.Errorf("InterestLevel = %s, want medium for unknown label", updated.InterestLevel)
	}
}

func TestScoreLeadUnchangedScoreLeavesHistoryAlone(t *testing.T) {
	now := time.Date(2026, 4, 1, 15, 0, 0, 0, time.UTC)

	lead := testLead(uuid.New())
	lead.AIScore = 30
	store := newFakeLeadStore(lead)
	cls := &fakeClassifier{result: classifier.LeadScoringResult{Score: 30, InterestLevel: "medium"}}

	svc := NewService(store, cls,
		&fakeEngagement{metrics: engagement.Metrics{Frequency: engagement.FrequencyLow}},
		&fakeActivity{},
		&captureBus{}, logger.New("test"),
	).WithClock(func() time.Time { return now })

	for i := 0; i < 2; i++ {
		if _, err := svc.ScoreLead(context.Background(), lead.ID, "scheduled rescore"); err != nil {
			t.Fatalf("ScoreLead: %v", err)
		}
	}

	if got := store.leads[lead.ID].ScoreHistory; len(got) != 0 {
		t.Errorf("score history after unchanged rescores = %+v, want empty", got)
	}

	// A changed verdict pushes the value it supersedes.
	cls.result.Score = 80
	if _, err := svc.ScoreLead(context.Background(), lead.ID, "scheduled rescore"); err != nil {
		t.Fatalf("ScoreLead: %v", err)
	}
	history := store.leads[lead.ID].ScoreHistory
	if len(history) != 1 || history[0].Score != 30 {
		t.Errorf("score history after change = %+v, want one entry holding 30", history)
	}
}

func TestScoreLeadSendsReturningVisitorContext(t *testing.T) {
	now := time.Date(2026, 4, 1, 15, 0, 0, 0, time.UTC)
	visitorID := uuid.New()

	converted := testLead(visitorID)
	converted.Status = domain.StatusConverted
	lost := testLead(visitorID)
	lost.Status = domain.StatusLost
	lead := testLead(visitorID)

	store := newFakeLeadStore(converted, lost, lead)
	cls := &fakeClassifier{result: classifier.LeadScoringResult{Score: 60, InterestLevel: "medium"}}

	svc := NewService(store, cls,
		&fakeEngagement{metrics: engagement.Metrics{Frequency: engagement.FrequencyLow}},
		&fakeActivity{history: activity.VisitorHistory{
			ActivityCount:    12,
			LastActivityType: "cart_add",
			LastActivityData: []byte(`{"productId":"p-1","quantity":2}`),
		}},
		&captureBus{}, logger.New("test"),
	).WithClock(func() time.Time { return now })

	if _, err := svc.ScoreLead(context.Background(), lead.ID, "initial score"); err != nil {
		t.Fatalf("ScoreLead: %v", err)
	}

	req := cls.lastReq
	if req.Lead.ActivityType != "cart_add" {
		t.Errorf("ActivityType = %q, want cart_add", req.Lead.ActivityType)
	}
	if len(req.Lead.ActivityData) == 0 {
		t.Error("ActivityData not forwarded")
	}
	if req.History.PreviousLeadCount != 2 {
		t.Errorf("PreviousLeadCount = %d, want 2", req.History.PreviousLeadCount)
	}
	statuses := map[string]bool{}
	for _, s := range req.History.PreviousLeadStatuses {
		statuses[s] = true
	}
	if !statuses["converted"] || !statuses["lost"] {
		t.Errorf("PreviousLeadStatuses = %v, want converted and lost", req.History.PreviousLeadStatuses)
	}
}

func TestRecalculateAllPrioritiesFinishesDespiteFailures(t *testing.T) {
	now := time.Date(2026, 4, 1, 15, 0, 0, 0, time.UTC)

	first := testLead(uuid.New())
	first.AIScore = 80
	second := testLead(uuid.New())
	second.AIScore = 40
	// medium frequency only: 0.5*60 + 10 = 40, already stored
	settled := testLead(uuid.New())
	settled.AIScore = 60
	settled.PriorityScore = 40
	converted := testLead(uuid.New())
	converted.Status = domain.StatusConverted

	store := newFakeLeadStore(first, second, settled, converted)

	svc := NewService(store, &fakeClassifier{},
		&fakeEngagement{metrics: engagement.Metrics{Frequency: engagement.FrequencyMedium}},
		&fakeActivity{},
		&captureBus{}, logger.New("test"),
	).WithClock(func() time.Time { return now })

	updated, err := svc.RecalculateAllPriorities(context.Background())
	if err != nil {
		t.Fatalf("RecalculateAllPriorities: %v", err)
	}
	if updated != 2 {
		t.Errorf("updated = %d, want 2 (terminal excluded, settled lead unchanged)", updated)
	}
	// medium frequency only: 0.5*80 + 10 = 50
	if got := store.leads[first.ID].PriorityScore; got != 50 {
		t.Errorf("first priority = %d, want 50", got)
	}
	if got := store.leads[second.ID].PriorityScore; got != 30 {
		t.Errorf("second priority = %d, want 30", got)
	}
}

func TestRescoreStaleOnlyTouchesStaleLeads(t *testing.T) {
	now := time.Date(2026, 4, 1, 15, 0, 0, 0, time.UTC)
	fresh := now.Add(-time.Hour)
	old := now.Add(-4 * 24 * time.Hour)

	staleLead := testLead(uuid.New())
	staleLead.AIScoredAt = &old
	freshLead := testLead(uuid.New())
	freshLead.AIScoredAt = &fresh
	neverScored := testLead(uuid.New())

	store := newFakeLeadStore(staleLead, freshLead, neverScored)
	cls := &fakeClassifier{result: classifier.LeadScoringResult{Score: 60, InterestLevel: "medium"}}

	svc := NewService(store, cls,
		&fakeEngagement{metrics: engagement.Metrics{Frequency: engagement.FrequencyLow}},
		&fakeActivity{},
		&captureBus{}, logger.New("test"),
	).WithClock(func() time.Time { return now })

	processed, err := svc.RescoreStale(context.Background(), 72*time.Hour)
	if err != nil {
		t.Fatalf("RescoreStale: %v", err)
	}
	if processed != 2 {
		t.Errorf("processed = %d, want 2 (stale + never scored)", processed)
	}
	if cls.calls != 2 {
		t.Errorf("classifier calls = %d, want 2", cls.calls)
	}
	if store.leads[freshLead.ID].AIScore != 0 {
		t.Error("fresh lead was rescored")
	}
}
