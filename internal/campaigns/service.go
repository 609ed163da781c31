package campaigns

import (
	"context"
	"errors"
	"fmt"
	"html/template"
	"time"

	"github.com/google/uuid"

	"leadflow_backend/internal/events"
	"leadflow_backend/platform/apperr"
	"leadflow_backend/platform/logger"
)

// Store is the repository surface the campaign service uses.
type Store interface {
	CreateWithRecipients(ctx context.Context, params CreateCampaignParams, seeds []RecipientSeed) (Campaign, error)
	GetCampaign(ctx context.Context, id uuid.UUID) (Campaign, error)
	ListCampaigns(ctx context.Context) ([]Campaign, error)
	ListDueScheduled(ctx context.Context, now time.Time) ([]Campaign, error)
	TransitionStatus(ctx context.Context, id uuid.UUID, from []Status, to Status, sentAt *time.Time) (Campaign, error)
	ResolveTargeting(ctx context.Context, targeting Targeting) ([]RecipientSeed, error)
	CampaignMetrics(ctx context.Context, campaignID uuid.UUID) (Metrics, error)
	LeadEmailView(ctx context.Context, leadID uuid.UUID) ([]LeadEmailEngagement, error)
	LatestSentRecipient(ctx context.Context, leadID uuid.UUID, before time.Time) (Recipient, error)
	MarkRecipientConverted(ctx context.Context, recipientID uuid.UUID, at time.Time) error
	RecordOpen(ctx context.Context, leadID, campaignID uuid.UUID, at time.Time) error
	RecordClick(ctx context.Context, leadID, campaignID uuid.UUID, at time.Time) error
	InsertEmailEvent(ctx context.Context, event EmailEvent) error
}

// CampaignDispatcher sends one campaign batch.
type CampaignDispatcher interface {
	Dispatch(ctx context.Context, campaign Campaign) (BatchReport, error)
}

type Service struct {
	store      Store
	dispatcher CampaignDispatcher
	bus        events.Bus
	log        *logger.Logger
	now        func() time.Time
}

func NewService(store Store, dispatcher CampaignDispatcher, bus events.Bus, log *logger.Logger) *Service {
	return &Service{
		store:      store,
		dispatcher: dispatcher,
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

type CreateParams struct {
	Name         string
	Subject      string
	BodyTemplate string
	Targeting    Targeting
	ScheduledAt  *time.Time
	CreatedBy    *uuid.UUID
}

// Create resolves the targeting and freezes the matching leads as the
// recipient list. A targeting that matches nobody rejects the creation;
// nothing is persisted in that case.
func (s *Service) Create(ctx context.Context, params CreateParams) (Campaign, error) {
	if params.Name == "" || params.Subject == "" || params.BodyTemplate == "" {
		return Campaign{}, apperr.Validation("campaign name, subject and body are required")
	}
	if _, err := template.New("campaign").Parse(params.BodyTemplate); err != nil {
		return Campaign{}, apperr.Validation(fmt.Sprintf("invalid body template: %v", err))
	}
	if params.ScheduledAt != nil && params.ScheduledAt.Before(s.now()) {
		return Campaign{}, apperr.Validation("scheduled time is in the past")
	}

	seeds, err := s.store.ResolveTargeting(ctx, params.Targeting)
	if err != nil {
		return Campaign{}, err
	}
	if len(seeds) == 0 {
		return Campaign{}, apperr.Validation("no leads match the campaign targeting")
	}

	return s.store.CreateWithRecipients(ctx, CreateCampaignParams{
		Name:         params.Name,
		Subject:      params.Subject,
		BodyTemplate: params.BodyTemplate,
		Targeting:    params.Targeting,
		ScheduledAt:  params.ScheduledAt,
		CreatedBy:    params.CreatedBy,
	}, seeds)
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (Campaign, Metrics, error) {
	campaign, err := s.store.GetCampaign(ctx, id)
	if errors.Is(err, ErrNotFound) {
		return Campaign{}, Metrics{}, apperr.NotFound("campaign not found")
	}
	if err != nil {
		return Campaign{}, Metrics{}, err
	}

	metrics, err := s.store.CampaignMetrics(ctx, id)
	if err != nil {
		return Campaign{}, Metrics{}, err
	}
	return campaign, metrics, nil
}

func (s *Service) List(ctx context.Context) ([]Campaign, error) {
	return s.store.ListCampaigns(ctx)
}

// SendNow dispatches a draft or scheduled campaign immediately.
func (s *Service) SendNow(ctx context.Context, id uuid.UUID) (BatchReport, error) {
	campaign, err := s.store.TransitionStatus(ctx, id, []Status{StatusDraft, StatusScheduled}, StatusSending, nil)
	if errors.Is(err, ErrInvalidState) {
		return BatchReport{}, apperr.Validation("campaign can only be sent from draft or scheduled")
	}
	if errors.Is(err, ErrNotFound) {
		return BatchReport{}, apperr.NotFound("campaign not found")
	}
	if err != nil {
		return BatchReport{}, err
	}

	report, err := s.dispatcher.Dispatch(ctx, campaign)
	if err != nil {
		// Dispatch could not even start; put the campaign back so the
		// operator can retry.
		if _, backErr := s.store.TransitionStatus(ctx, id, []Status{StatusSending}, StatusDraft, nil); backErr != nil {
			s.log.DatabaseError("revert campaign status", backErr)
		}
		return BatchReport{}, err
	}

	sentAt := s.now()
	if _, err := s.store.TransitionStatus(ctx, id, []Status{StatusSending}, StatusSent, &sentAt); err != nil {
		return BatchReport{}, err
	}

	s.bus.Publish(ctx, events.CampaignSent{
		BaseEvent:  events.NewBaseEvent(),
		CampaignID: id,
		Sent:       report.Sent,
		Failed:     report.Failed,
	})

	return report, nil
}

// Cancel stops a draft or scheduled campaign. Sending and sent campaigns
// cannot be cancelled.
func (s *Service) Cancel(ctx context.Context, id uuid.UUID) (Campaign, error) {
	campaign, err := s.store.TransitionStatus(ctx, id, []Status{StatusDraft, StatusScheduled}, StatusCancelled, nil)
	if errors.Is(err, ErrInvalidState) {
		return Campaign{}, apperr.Validation("only draft or scheduled campaigns can be cancelled")
	}
	if errors.Is(err, ErrNotFound) {
		return Campaign{}, apperr.NotFound("campaign not found")
	}
	return campaign, err
}

// DispatchDue sends every scheduled campaign whose time has arrived. Used by
// the scheduler; per-campaign failures are logged and the sweep continues.
func (s *Service) DispatchDue(ctx context.Context) (int, error) {
	due, err := s.store.ListDueScheduled(ctx, s.now())
	if err != nil {
		return 0, err
	}

	dispatched := 0
	for _, campaign := range due {
		if ctx.Err() != nil {
			return dispatched, ctx.Err()
		}
		if _, err := s.SendNow(ctx, campaign.ID); err != nil {
			s.log.DatabaseError("dispatch scheduled campaign", err)
			continue
		}
		dispatched++
	}
	return dispatched, nil
}

// LeadEmailView returns the lead-centric engagement view derived from
// recipient rows.
func (s *Service) LeadEmailView(ctx context.Context, leadID uuid.UUID) ([]LeadEmailEngagement, error) {
	return s.store.LeadEmailView(ctx, leadID)
}

// AttributeConversion links a conversion to the most recent campaign send
// before it. Returns nil when no campaign email preceded the conversion.
func (s *Service) AttributeConversion(ctx context.Context, leadID uuid.UUID, at time.Time) (*uuid.UUID, error) {
	recipient, err := s.store.LatestSentRecipient(ctx, leadID, at)
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	if err := s.store.MarkRecipientConverted(ctx, recipient.ID, at); err != nil {
		return nil, err
	}
	return &recipient.CampaignID, nil
}

// TrackOpen records an open callback. The raw event is always logged;
// recipient counters only move when the pixel carried a campaign id.
func (s *Service) TrackOpen(ctx context.Context, leadID uuid.UUID, campaignID *uuid.UUID, ip, userAgent string) {
	now := s.now()
	if err := s.store.InsertEmailEvent(ctx, EmailEvent{
		LeadID:     leadID,
		CampaignID: campaignID,
		Kind:       "open",
		IP:         ip,
		UserAgent:  userAgent,
		OccurredAt: now,
	}); err != nil {
		s.log.DatabaseError("insert open event", err)
	}

	if campaignID != nil {
		if err := s.store.RecordOpen(ctx, leadID, *campaignID, now); err != nil {
			s.log.DatabaseError("record open", err)
		}
	}

	s.bus.Publish(ctx, events.EmailOpened{
		BaseEvent:  events.NewBaseEvent(),
		LeadID:     leadID,
		CampaignID: campaignID,
	})
}

// TrackClick records a click callback before the redirect.
func (s *Service) TrackClick(ctx context.Context, leadID uuid.UUID, campaignID *uuid.UUID, link, ip, userAgent string) {
	now := s.now()
	if err := s.store.InsertEmailEvent(ctx, EmailEvent{
		LeadID:     leadID,
		CampaignID: campaignID,
		Kind:       "click",
		IP:         ip,
		UserAgent:  userAgent,
		LinkURL:    &link,
		OccurredAt: now,
	}); err != nil {
		s.log.DatabaseError("insert click event", err)
	}

	if campaignID != nil {
		if err := s.store.RecordClick(ctx, leadID, *campaignID, now); err != nil {
			s.log.DatabaseError("record click", err)
		}
	}

	s.bus.Publish(ctx, events.EmailClicked{
		BaseEvent:  events.NewBaseEvent(),
		LeadID:     leadID,
		CampaignID: campaignID,
		LinkURL:    link,
	})
}
