// Package assignment routes high-priority unassigned leads to sellers using
// the classifier's recommendation over the active roster.
package assignment

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"leadflow_backend/internal/events"
	"leadflow_backend/internal/leads/repository"
	"leadflow_backend/internal/sellers"
	"leadflow_backend/platform/ai/classifier"
	"leadflow_backend/platform/logger"
)

// DefaultThreshold is the priority score at or above which an unassigned
// lead becomes eligible for automatic assignment.
const DefaultThreshold = 70

// LeadStore is the slice of the lead repository the coordinator uses.
type LeadStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (repository.Lead, error)
	ListUnassignedAbove(ctx context.Context, threshold int) ([]repository.Lead, error)
	UpdateAssignment(ctx context.Context, id uuid.UUID, version int, sellerID *uuid.UUID) (repository.Lead, error)
	CreateNote(ctx context.Context, params repository.CreateLeadNoteParams) (repository.LeadNote, error)
}

// SellerStore is the roster and performance view the coordinator reads.
type SellerStore interface {
	ListActive(ctx context.Context) ([]sellers.Seller, error)
	GetPerformance(ctx context.Context, sellerID uuid.UUID, period string) (sellers.Performance, error)
	IncrementAssigned(ctx context.Context, sellerID uuid.UUID, period string) (sellers.Performance, error)
	ActiveLeadCounts(ctx context.Context) (map[uuid.UUID]int, error)
}

// Recommender ranks sellers for a lead.
type Recommender interface {
	RecommendSeller(ctx context.Context, req classifier.AssignmentRequest) (classifier.AssignmentResult, error)
}

// Result reports one committed assignment.
type Result struct {
	LeadID    uuid.UUID
	SellerID  uuid.UUID
	Reasoning string
}

type Service struct {
	leads     LeadStore
	sellers   SellerStore
	recommend Recommender
	bus       events.Bus
	log       *logger.Logger
	threshold int
	now       func() time.Time
}

func NewService(leads LeadStore, sellerStore SellerStore, recommend Recommender, bus events.Bus, log *logger.Logger, threshold int) *Service {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	return &Service{
		leads:     leads,
		sellers:   sellerStore,
		recommend: recommend,
		bus:       bus,
		log:       log,
		threshold: threshold,
		now:       time.Now,
	}
}

// WithClock overrides the service clock. Tests only.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// AssignEligible runs one assignment pass over every unassigned lead at or
// above the threshold. Leads the classifier cannot place are left alone for
// the next pass; the return value counts committed assignments.
func (s *Service) AssignEligible(ctx context.Context) (int, error) {
	leads, err := s.leads.ListUnassignedAbove(ctx, s.threshold)
	if err != nil {
		return 0, err
	}

	assigned := 0
	for _, lead := range leads {
		if ctx.Err() != nil {
			return assigned, ctx.Err()
		}
		result, err := s.assign(ctx, lead)
		if err != nil {
			s.log.DatabaseError("commit assignment", err)
			continue
		}
		if result != nil {
			assigned++
		}
	}
	return assigned, nil
}

// AssignLead attempts to place one lead. A nil Result with nil error means
// no assignment was made: the roster was empty or the classifier could not
// produce a usable recommendation. The coordinator never guesses a seller.
func (s *Service) AssignLead(ctx context.Context, leadID uuid.UUID) (*Result, error) {
	lead, err := s.leads.GetByID(ctx, leadID)
	if err != nil {
		return nil, err
	}
	if lead.AssignedSellerID != nil {
		return nil, fmt.Errorf("lead %s is already assigned", lead.ID)
	}
	return s.assign(ctx, lead)
}

func (s *Service) assign(ctx context.Context, lead repository.Lead) (*Result, error) {
	roster, err := s.sellers.ListActive(ctx)
	if err != nil {
		return nil, err
	}
	if len(roster) == 0 {
		return nil, nil
	}

	counts, err := s.sellers.ActiveLeadCounts(ctx)
	if err != nil {
		return nil, err
	}

	period := sellers.PeriodOf(s.now())
	candidates := make([]classifier.SellerCandidate, 0, len(roster))
	byID := make(map[uuid.UUID]sellers.Seller, len(roster))
	for _, seller := range roster {
		byID[seller.ID] = seller

		score := sellers.DefaultPerformanceScore
		if perf, err := s.sellers.GetPerformance(ctx, seller.ID, period); err == nil {
			score = perf.PerformanceScore
		}

		candidates = append(candidates, classifier.SellerCandidate{
			SellerID:     seller.ID.String(),
			Name:         seller.Name,
			Performance:  score,
			ActiveLeads:  counts[seller.ID],
			Expertise:    seller.Expertise,
			ResponseTime: fmt.Sprintf("%dm", seller.AvgResponseMinutes),
		})
	}

	recommendation, err := s.recommend.RecommendSeller(ctx, classifier.AssignmentRequest{
		Lead: classifier.AssignmentLead{
			AIScore:       lead.AIScore,
			InterestLevel: string(lead.InterestLevel),
			Source:        lead.Source,
		},
		Sellers: candidates,
	})
	if err != nil {
		s.log.ClassifierFallback("recommend_seller", err)
		return nil, nil
	}

	sellerID, err := uuid.Parse(recommendation.RecommendedSellerID)
	if err != nil {
		s.log.ClassifierFallback("recommend_seller", fmt.Errorf("unparseable seller id %q", recommendation.RecommendedSellerID))
		return nil, nil
	}
	seller, ok := byID[sellerID]
	if !ok {
		s.log.ClassifierFallback("recommend_seller", fmt.Errorf("recommended seller %s not in roster", sellerID))
		return nil, nil
	}

	if _, err := s.leads.UpdateAssignment(ctx, lead.ID, lead.Version, &sellerID); err != nil {
		return nil, err
	}

	body := fmt.Sprintf("Assigned to %s", seller.Name)
	if recommendation.Reasoning != "" {
		body += ": " + recommendation.Reasoning
	}
	if _, err := s.leads.CreateNote(ctx, repository.CreateLeadNoteParams{
		LeadID: lead.ID,
		Type:   repository.NoteTypeAssignment,
		Body:   body,
	}); err != nil {
		s.log.DatabaseError("assignment note", err)
	}

	if _, err := s.sellers.IncrementAssigned(ctx, sellerID, period); err != nil {
		s.log.DatabaseError("increment assigned", err)
	}

	s.bus.Publish(ctx, events.LeadAssigned{
		BaseEvent: events.NewBaseEvent(),
		LeadID:    lead.ID,
		SellerID:  sellerID,
		Reason:    recommendation.Reasoning,
	})

	return &Result{LeadID: lead.ID, SellerID: sellerID, Reasoning: recommendation.Reasoning}, nil
}
