// Package service implements the lead lifecycle: create-on-signal, the
// status state machine, manual assignment, and notes.
package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"leadflow_backend/internal/engagement"
	"leadflow_backend/internal/events"
	"leadflow_backend/internal/leads/domain"
	"leadflow_backend/internal/leads/repository"
	"leadflow_backend/platform/apperr"
	"leadflow_backend/platform/logger"
	"leadflow_backend/platform/phone"
)

// LeadStore is the repository surface the lifecycle service uses.
type LeadStore interface {
	Create(ctx context.Context, params repository.CreateLeadParams) (repository.Lead, error)
	GetByID(ctx context.Context, id uuid.UUID) (repository.Lead, error)
	GetActiveByVisitor(ctx context.Context, visitorID uuid.UUID) (repository.Lead, error)
	List(ctx context.Context, params repository.ListParams) ([]repository.Lead, error)
	ListNonTerminal(ctx context.Context) ([]repository.Lead, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, version int, params repository.UpdateStatusParams) (repository.Lead, error)
	UpdateAssignment(ctx context.Context, id uuid.UUID, version int, sellerID *uuid.UUID) (repository.Lead, error)
	ScheduleFollowUp(ctx context.Context, id uuid.UUID, params repository.ScheduleFollowUpParams) (repository.Lead, error)
	ClearFollowUp(ctx context.Context, id uuid.UUID) error
	MarkReminderSent(ctx context.Context, id uuid.UUID) error
	CreateNote(ctx context.Context, params repository.CreateLeadNoteParams) (repository.LeadNote, error)
	ListNotes(ctx context.Context, leadID uuid.UUID) ([]repository.LeadNote, error)
}

// EngagementReader computes the on-demand engagement snapshot.
type EngagementReader interface {
	Aggregate(ctx context.Context, visitorID uuid.UUID) (engagement.Metrics, error)
}

// Scorer runs the initial scoring pass for a freshly created lead.
type Scorer interface {
	ScoreLead(ctx context.Context, leadID uuid.UUID, reason string) (repository.Lead, error)
}

// ConversionAttributor links a conversion to the campaign that drove it, if
// any. Implemented by the campaigns module.
type ConversionAttributor interface {
	AttributeConversion(ctx context.Context, leadID uuid.UUID, at time.Time) (*uuid.UUID, error)
}

type Service struct {
	leads      LeadStore
	engagement EngagementReader
	scorer     Scorer
	attributor ConversionAttributor
	bus        events.Bus
	log        *logger.Logger
	now        func() time.Time
}

func NewService(leads LeadStore, eng EngagementReader, scorer Scorer, bus events.Bus, log *logger.Logger) *Service {
	return &Service{
		leads:      leads,
		engagement: eng,
		scorer:     scorer,
		bus:        bus,
		log:        log,
		now:        time.Now,
	}
}

// SetAttributor wires the conversion attribution hook. Called once at module
// assembly; the campaigns module is constructed after leads.
func (s *Service) SetAttributor(attributor ConversionAttributor) {
	s.attributor = attributor
}

// WithClock overrides the service clock. Tests only.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

type CreateParams struct {
	VisitorID *uuid.UUID
	Name      string
	Email     *string
	Phone     *string
	Source    string
	Tags      []string
}

// CreateFromSignal creates a lead for an incoming behavioral signal. A
// visitor with an active lead gets that lead back instead of a duplicate;
// the unique index backstops the lookup against concurrent signals.
func (s *Service) CreateFromSignal(ctx context.Context, params CreateParams) (repository.Lead, error) {
	if params.Name == "" {
		return repository.Lead{}, apperr.Validation("lead name is required")
	}
	if params.Source == "" {
		return repository.Lead{}, apperr.Validation("lead source is required")
	}

	if params.VisitorID != nil {
		existing, err := s.leads.GetActiveByVisitor(ctx, *params.VisitorID)
		if err == nil {
			return existing, nil
		}
		if !errors.Is(err, repository.ErrNotFound) {
			return repository.Lead{}, err
		}
	}

	if params.Phone != nil {
		normalized := phone.NormalizeE164(*params.Phone)
		params.Phone = &normalized
	}

	lead, err := s.leads.Create(ctx, repository.CreateLeadParams{
		VisitorID: params.VisitorID,
		Name:      params.Name,
		Email:     params.Email,
		Phone:     params.Phone,
		Source:    params.Source,
		Tags:      params.Tags,
	})
	if errors.Is(err, repository.ErrDuplicateVisitor) {
		// Lost the race to a concurrent signal; the existing lead wins.
		return s.leads.GetActiveByVisitor(ctx, *params.VisitorID)
	}
	if err != nil {
		return repository.Lead{}, err
	}

	event := events.LeadCreated{BaseEvent: events.NewBaseEvent(), LeadID: lead.ID, Source: lead.Source}
	if lead.VisitorID != nil {
		event.VisitorID = *lead.VisitorID
	}
	s.bus.Publish(ctx, event)

	if s.scorer != nil {
		scored, err := s.scorer.ScoreLead(ctx, lead.ID, "initial score")
		if err != nil {
			s.log.DatabaseError("initial score", err)
			return lead, nil
		}
		return scored, nil
	}
	return lead, nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (repository.Lead, error) {
	lead, err := s.leads.GetByID(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return repository.Lead{}, apperr.NotFound("lead not found")
	}
	return lead, err
}

// GetWithEngagement returns the lead plus its freshly computed engagement
// snapshot. Leads without a visitor id get the zero-value snapshot.
func (s *Service) GetWithEngagement(ctx context.Context, id uuid.UUID) (repository.Lead, engagement.Metrics, error) {
	lead, err := s.Get(ctx, id)
	if err != nil {
		return repository.Lead{}, engagement.Metrics{}, err
	}

	metrics := engagement.Metrics{Frequency: engagement.FrequencyLow}
	if lead.VisitorID != nil {
		metrics, err = s.engagement.Aggregate(ctx, *lead.VisitorID)
		if err != nil {
			return repository.Lead{}, engagement.Metrics{}, err
		}
	}
	return lead, metrics, nil
}

func (s *Service) List(ctx context.Context, params repository.ListParams) ([]repository.Lead, error) {
	return s.leads.List(ctx, params)
}

type ChangeStatusParams struct {
	Status  domain.Status
	Version int
	ActorID *uuid.UUID
	Note    string
}

// ChangeStatus moves a lead through the pipeline. The transition is
// validated against the state machine, committed under the version guard,
// and recorded as a status-change note. Entering contacted stamps
// lastContact; reaching converted triggers campaign attribution.
func (s *Service) ChangeStatus(ctx context.Context, id uuid.UUID, params ChangeStatusParams) (repository.Lead, error) {
	lead, err := s.Get(ctx, id)
	if err != nil {
		return repository.Lead{}, err
	}

	if err := domain.ValidateTransition(lead.Status, params.Status); err != nil {
		return repository.Lead{}, apperr.Validation(err.Error())
	}

	now := s.now()
	update := repository.UpdateStatusParams{
		Status:         params.Status,
		PreviousStatus: lead.Status,
		ChangedAt:      now,
	}
	// Every entry into contacted refreshes the contact timestamp, so a
	// re-contact after nurturing resets the staleness clock.
	if params.Status == domain.StatusContacted {
		update.LastContact = &now
	}

	updated, err := s.leads.UpdateStatus(ctx, id, params.Version, update)
	if errors.Is(err, repository.ErrVersionConflict) {
		return repository.Lead{}, apperr.Conflict("lead was modified concurrently; reload and retry")
	}
	if err != nil {
		return repository.Lead{}, err
	}

	body := fmt.Sprintf("Status changed from %s to %s", lead.Status, params.Status)
	if params.Note != "" {
		body += ": " + params.Note
	}
	if _, err := s.leads.CreateNote(ctx, repository.CreateLeadNoteParams{
		LeadID:   id,
		AuthorID: params.ActorID,
		Type:     repository.NoteTypeStatusChange,
		Body:     body,
	}); err != nil {
		s.log.DatabaseError("status change note", err)
	}

	s.bus.Publish(ctx, events.LeadStatusChanged{
		BaseEvent:      events.NewBaseEvent(),
		LeadID:         id,
		PreviousStatus: string(lead.Status),
		NewStatus:      string(params.Status),
	})

	if params.Status == domain.StatusConverted {
		s.recordConversion(ctx, updated, now)
	}

	return updated, nil
}

func (s *Service) recordConversion(ctx context.Context, lead repository.Lead, at time.Time) {
	var campaignID *uuid.UUID
	if s.attributor != nil {
		id, err := s.attributor.AttributeConversion(ctx, lead.ID, at)
		if err != nil {
			s.log.DatabaseError("conversion attribution", err)
		} else {
			campaignID = id
		}
	}

	s.bus.Publish(ctx, events.LeadConverted{
		BaseEvent:  events.NewBaseEvent(),
		LeadID:     lead.ID,
		CampaignID: campaignID,
	})
}

type AssignParams struct {
	SellerID *uuid.UUID // nil unassigns
	Version  int
	ActorID  *uuid.UUID
}

// Assign sets or clears the lead's seller under the version guard.
func (s *Service) Assign(ctx context.Context, id uuid.UUID, params AssignParams) (repository.Lead, error) {
	updated, err := s.leads.UpdateAssignment(ctx, id, params.Version, params.SellerID)
	if errors.Is(err, repository.ErrVersionConflict) {
		return repository.Lead{}, apperr.Conflict("lead was modified concurrently; reload and retry")
	}
	if errors.Is(err, repository.ErrNotFound) {
		return repository.Lead{}, apperr.NotFound("lead not found")
	}
	if err != nil {
		return repository.Lead{}, err
	}

	body := "Seller unassigned"
	if params.SellerID != nil {
		body = fmt.Sprintf("Manually assigned to seller %s", params.SellerID)
	}
	if _, err := s.leads.CreateNote(ctx, repository.CreateLeadNoteParams{
		LeadID:   id,
		AuthorID: params.ActorID,
		Type:     repository.NoteTypeAssignment,
		Body:     body,
	}); err != nil {
		s.log.DatabaseError("assignment note", err)
	}

	if params.SellerID != nil {
		s.bus.Publish(ctx, events.LeadAssigned{
			BaseEvent: events.NewBaseEvent(),
			LeadID:    id,
			SellerID:  *params.SellerID,
			Reason:    "manual assignment",
		})
	}

	return updated, nil
}

func (s *Service) AddNote(ctx context.Context, leadID uuid.UUID, authorID *uuid.UUID, body string) (repository.LeadNote, error) {
	if body == "" {
		return repository.LeadNote{}, apperr.Validation("note body is required")
	}
	if _, err := s.Get(ctx, leadID); err != nil {
		return repository.LeadNote{}, err
	}
	return s.leads.CreateNote(ctx, repository.CreateLeadNoteParams{
		LeadID:   leadID,
		AuthorID: authorID,
		Type:     repository.NoteTypeGeneral,
		Body:     body,
	})
}

func (s *Service) ListNotes(ctx context.Context, leadID uuid.UUID) ([]repository.LeadNote, error) {
	if _, err := s.Get(ctx, leadID); err != nil {
		return nil, err
	}
	return s.leads.ListNotes(ctx, leadID)
}
