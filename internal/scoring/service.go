package scoring

import (
	"context"
	"fmt"
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

// Degraded-mode defaults applied when the classifier fails. Scoring never
// propagates classifier errors; a lead always ends a scoring pass with a
// usable record.
const (
	fallbackScore                 = 50
	fallbackInterestLevel         = "medium"
	fallbackConversionProbability = 50
)

var (
	fallbackInsights           = []string{"Error processing lead data"}
	fallbackRecommendedActions = []string{"Review lead manually"}
)

// LeadStore is the slice of the lead repository the scoring service uses.
type LeadStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (repository.Lead, error)
	UpdateScores(ctx context.Context, id uuid.UUID, params repository.UpdateScoresParams) (repository.Lead, error)
	UpdatePriority(ctx context.Context, id uuid.UUID, priority int) error
	ListByVisitor(ctx context.Context, visitorID uuid.UUID) ([]repository.Lead, error)
	ListNonTerminal(ctx context.Context) ([]repository.Lead, error)
	ListStaleAIScores(ctx context.Context, cutoff time.Time) ([]repository.Lead, error)
}

// Classifier scores a single lead.
type Classifier interface {
	ScoreLead(ctx context.Context, req classifier.LeadScoringRequest) (classifier.LeadScoringResult, error)
}

// EngagementReader computes the engagement snapshot for a visitor.
type EngagementReader interface {
	Aggregate(ctx context.Context, visitorID uuid.UUID) (engagement.Metrics, error)
}

// ActivityReader reads visitor history and cart state from the ledger.
type ActivityReader interface {
	GetVisitorHistory(ctx context.Context, visitorID uuid.UUID) (activity.VisitorHistory, error)
	CurrentCartSize(ctx context.Context, visitorID uuid.UUID) (int, error)
}

type Service struct {
	leads      LeadStore
	classifier Classifier
	engagement EngagementReader
	activity   ActivityReader
	bus        events.Bus
	log        *logger.Logger
	now        func() time.Time
}

func NewService(leads LeadStore, cls Classifier, eng EngagementReader, act ActivityReader, bus events.Bus, log *logger.Logger) *Service {
	return &Service{
		leads:      leads,
		classifier: cls,
		engagement: eng,
		activity:   act,
		bus:        bus,
		log:        log,
		now:        time.Now,
	}
}

// WithClock overrides the service clock. Tests only.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// ScoreLead runs a full scoring pass for one lead: engagement snapshot,
// classifier verdict (or degraded defaults), priority recomputation, history
// push, and a single persisted update.
func (s *Service) ScoreLead(ctx context.Context, leadID uuid.UUID, reason string) (repository.Lead, error) {
	lead, err := s.leads.GetByID(ctx, leadID)
	if err != nil {
		return repository.Lead{}, err
	}

	metrics, history, cartItems := s.visitorSignals(ctx, lead)
	prior := s.priorLeads(ctx, lead)

	result, degraded := s.classify(ctx, lead, history, prior)

	now := s.now()
	interest := domain.InterestLevel(result.InterestLevel)
	if !domain.IsValidInterestLevel(interest) {
		interest = domain.InterestMedium
	}

	aiScore := Clamp(result.Score)
	priority := PriorityScore(PriorityInput{
		AIScore:         aiScore,
		Frequency:       metrics.Frequency,
		LastInteraction: metrics.LastInteraction,
		CartItems:       cartItems,
		Now:             now,
	})

	// The history records superseded values: push the previous score only
	// when this pass actually changes it.
	scoreHistory := lead.ScoreHistory
	if aiScore != lead.AIScore {
		scoreHistory = domain.PushScoreHistory(lead.ScoreHistory, domain.ScoreHistoryEntry{
			Score:      lead.AIScore,
			Reason:     reason,
			RecordedAt: now,
		})
	}

	updated, err := s.leads.UpdateScores(ctx, lead.ID, repository.UpdateScoresParams{
		AIScore:               aiScore,
		InterestLevel:         interest,
		ConversionProbability: Clamp(result.ConversionProbability),
		Insights:              result.Insights,
		RecommendedActions:    result.RecommendedActions,
		ScoreHistory:          scoreHistory,
		PriorityScore:         priority,
		ScoredAt:              now,
	})
	if err != nil {
		return repository.Lead{}, fmt.Errorf("persist scores for lead %s: %w", lead.ID, err)
	}

	s.bus.Publish(ctx, events.LeadScored{
		BaseEvent:     events.NewBaseEvent(),
		LeadID:        updated.ID,
		AIScore:       updated.AIScore,
		PriorityScore: updated.PriorityScore,
		InterestLevel: string(updated.InterestLevel),
		Degraded:      degraded,
	})

	return updated, nil
}

// RecalculatePriority recomputes only the priority formula for one lead,
// reusing the stored AI score.
func (s *Service) RecalculatePriority(ctx context.Context, leadID uuid.UUID) (repository.Lead, error) {
	lead, err := s.leads.GetByID(ctx, leadID)
	if err != nil {
		return repository.Lead{}, err
	}

	priority := s.computePriority(ctx, lead)
	if priority == lead.PriorityScore {
		return lead, nil
	}

	if err := s.leads.UpdatePriority(ctx, lead.ID, priority); err != nil {
		return repository.Lead{}, err
	}
	lead.PriorityScore = priority
	return lead, nil
}

// RecalculateAllPriorities refreshes the priority score of every non-terminal
// lead and returns how many actually changed. Per-lead failures are logged
// and skipped; the pass always finishes.
func (s *Service) RecalculateAllPriorities(ctx context.Context) (int, error) {
	leads, err := s.leads.ListNonTerminal(ctx)
	if err != nil {
		return 0, err
	}

	updated := 0
	for _, lead := range leads {
		priority := s.computePriority(ctx, lead)
		if priority == lead.PriorityScore {
			continue
		}
		if err := s.leads.UpdatePriority(ctx, lead.ID, priority); err != nil {
			s.log.DatabaseError("update lead priority", err)
			continue
		}
		updated++
	}
	return updated, nil
}

// RescoreStale reruns the full scoring pass for every non-terminal lead whose
// AI score is older than staleAfter. Sequential on purpose: the classifier
// client enforces the rate limit and a slow pass is acceptable for a daily
// job.
func (s *Service) RescoreStale(ctx context.Context, staleAfter time.Duration) (int, error) {
	leads, err := s.leads.ListStaleAIScores(ctx, s.now().Add(-staleAfter))
	if err != nil {
		return 0, err
	}

	processed := 0
	for _, lead := range leads {
		if ctx.Err() != nil {
			return processed, ctx.Err()
		}
		if _, err := s.ScoreLead(ctx, lead.ID, "scheduled rescore"); err != nil {
			s.log.DatabaseError("rescore lead", err)
			continue
		}
		processed++
	}
	return processed, nil
}

func (s *Service) computePriority(ctx context.Context, lead repository.Lead) int {
	metrics, _, cartItems := s.visitorSignals(ctx, lead)
	return PriorityScore(PriorityInput{
		AIScore:         lead.AIScore,
		Frequency:       metrics.Frequency,
		LastInteraction: metrics.LastInteraction,
		CartItems:       cartItems,
		Now:             s.now(),
	})
}

// visitorSignals gathers the ledger-derived inputs. A lead without a visitor
// id, or ledger read failures, degrade to zero-value signals.
func (s *Service) visitorSignals(ctx context.Context, lead repository.Lead) (engagement.Metrics, activity.VisitorHistory, int) {
	metrics := engagement.Metrics{Frequency: engagement.FrequencyLow}
	var history activity.VisitorHistory
	var cartItems int

	if lead.VisitorID == nil {
		return metrics, history, 0
	}
	visitorID := *lead.VisitorID

	if m, err := s.engagement.Aggregate(ctx, visitorID); err != nil {
		s.log.DatabaseError("aggregate engagement", err)
	} else {
		metrics = m
	}

	if h, err := s.activity.GetVisitorHistory(ctx, visitorID); err != nil {
		s.log.DatabaseError("visitor history", err)
	} else {
		history = h
	}

	if n, err := s.activity.CurrentCartSize(ctx, visitorID); err != nil {
		s.log.DatabaseError("cart size", err)
	} else {
		cartItems = n
	}

	return metrics, history, cartItems
}

// priorLeads returns the visitor's other leads, the returning-visitor part
// of the classifier context. Lookup failures degrade to no prior history.
func (s *Service) priorLeads(ctx context.Context, lead repository.Lead) []repository.Lead {
	if lead.VisitorID == nil {
		return nil
	}

	all, err := s.leads.ListByVisitor(ctx, *lead.VisitorID)
	if err != nil {
		s.log.DatabaseError("list visitor leads", err)
		return nil
	}

	prior := make([]repository.Lead, 0, len(all))
	for _, p := range all {
		if p.ID != lead.ID {
			prior = append(prior, p)
		}
	}
	return prior
}

// classify calls the external classifier and returns its verdict, or the
// degraded-mode defaults when the call or its payload fails. The second
// return reports whether the fallback was used.
func (s *Service) classify(ctx context.Context, lead repository.Lead, history activity.VisitorHistory, prior []repository.Lead) (classifier.LeadScoringResult, bool) {
	req := classifier.LeadScoringRequest{
		Lead: classifier.LeadContext{
			Source:       lead.Source,
			ActivityType: history.LastActivityType,
			ActivityData: history.LastActivityData,
			CreatedAt:    lead.CreatedAt,
		},
		User: classifier.UserContext{
			Name: lead.Name,
		},
		History: classifier.VisitorHistory{
			TotalOrders:       history.TotalOrders,
			TotalSpent:        float64(history.TotalSpentCents) / 100,
			TestCount:         history.TestCount,
			ActivityCount:     history.ActivityCount,
			PreviousLeadCount: len(prior),
		},
	}
	if lead.Email != nil {
		req.User.Email = *lead.Email
	}
	if history.TotalOrders > 0 {
		req.History.AverageOrderValue = req.History.TotalSpent / float64(history.TotalOrders)
	}
	for _, p := range prior {
		req.History.PreviousLeadStatuses = append(req.History.PreviousLeadStatuses, string(p.Status))
	}

	result, err := s.classifier.ScoreLead(ctx, req)
	if err != nil {
		s.log.ClassifierFallback("score_lead", err)
		return classifier.LeadScoringResult{
			Score:                 fallbackScore,
			InterestLevel:         fallbackInterestLevel,
			ConversionProbability: fallbackConversionProbability,
			Insights:              fallbackInsights,
			RecommendedActions:    fallbackRecommendedActions,
		}, true
	}
	return result, false
}
