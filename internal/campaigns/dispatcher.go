package campaigns

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"leadflow_backend/internal/email"
	"leadflow_backend/internal/leads/repository"
	"leadflow_backend/platform/logger"
)

// Concurrent sends per campaign. The batch is small enough that a modest
// bound keeps the SMTP server happy without serializing the whole send.
const dispatchConcurrency = 5

// SendResult is the per-recipient outcome of a dispatch.
type SendResult struct {
	RecipientID uuid.UUID `json:"recipientId"`
	LeadID      uuid.UUID `json:"leadId"`
	Email       string    `json:"email"`
	Sent        bool      `json:"sent"`
	Skipped     bool      `json:"skipped"`
	Error       string    `json:"error,omitempty"`
}

// BatchReport aggregates the per-recipient results of one campaign send.
type BatchReport struct {
	CampaignID uuid.UUID    `json:"campaignId"`
	Total      int          `json:"total"`
	Sent       int          `json:"sent"`
	Failed     int          `json:"failed"`
	Skipped    int          `json:"skipped"`
	Results    []SendResult `json:"results"`
}

// RecipientStore is the repository slice the dispatcher writes through.
type RecipientStore interface {
	ListRecipients(ctx context.Context, campaignID uuid.UUID) ([]Recipient, error)
	MarkRecipientSent(ctx context.Context, recipientID uuid.UUID, sendError *string, at time.Time) error
	InsertEmailEvent(ctx context.Context, event EmailEvent) error
}

// LeadReader re-checks the lead at send time for the notification opt-out.
type LeadReader interface {
	GetByID(ctx context.Context, id uuid.UUID) (repository.Lead, error)
}

// Dispatcher sends a campaign to its frozen recipient list with bounded
// concurrency. One failing recipient never aborts the rest of the batch.
type Dispatcher struct {
	store   RecipientStore
	leads   LeadReader
	sender  email.Sender
	tracker *Tracker
	log     *logger.Logger
	now     func() time.Time
}

func NewDispatcher(store RecipientStore, leads LeadReader, sender email.Sender, tracker *Tracker, log *logger.Logger) *Dispatcher {
	return &Dispatcher{
		store:   store,
		leads:   leads,
		sender:  sender,
		tracker: tracker,
		log:     log,
		now:     time.Now,
	}
}

// WithClock overrides the dispatcher clock. Tests only.
func (d *Dispatcher) WithClock(now func() time.Time) *Dispatcher {
	d.now = now
	return d
}

// Dispatch personalizes and sends the campaign to every recipient not yet
// sent. Recipients whose lead has since opted out of email are skipped.
func (d *Dispatcher) Dispatch(ctx context.Context, campaign Campaign) (BatchReport, error) {
	recipients, err := d.store.ListRecipients(ctx, campaign.ID)
	if err != nil {
		return BatchReport{}, err
	}

	bodyTemplate, err := template.New("campaign").Parse(campaign.BodyTemplate)
	if err != nil {
		return BatchReport{}, fmt.Errorf("campaign %s body template: %w", campaign.ID, err)
	}

	report := BatchReport{CampaignID: campaign.ID}
	var mu sync.Mutex

	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(dispatchConcurrency)

	for _, recipient := range recipients {
		if recipient.Sent {
			continue
		}
		recipient := recipient

		group.Go(func() error {
			result := d.sendOne(groupCtx, campaign, bodyTemplate, recipient)
			mu.Lock()
			report.Results = append(report.Results, result)
			mu.Unlock()
			return nil
		})
	}

	if err := group.Wait(); err != nil {
		return BatchReport{}, err
	}

	sort.Slice(report.Results, func(i, j int) bool {
		return report.Results[i].Email < report.Results[j].Email
	})
	for _, result := range report.Results {
		report.Total++
		switch {
		case result.Sent:
			report.Sent++
		case result.Skipped:
			report.Skipped++
		default:
			report.Failed++
		}
	}

	return report, nil
}

type personalization struct {
	Name  string
	Email string
}

func (d *Dispatcher) sendOne(ctx context.Context, campaign Campaign, bodyTemplate *template.Template, recipient Recipient) SendResult {
	result := SendResult{RecipientID: recipient.ID, LeadID: recipient.LeadID, Email: recipient.Email}

	lead, err := d.leads.GetByID(ctx, recipient.LeadID)
	if err != nil {
		return d.fail(ctx, result, fmt.Sprintf("load lead: %v", err))
	}
	if !lead.EmailNotificationsEnabled {
		result.Skipped = true
		return result
	}

	var body bytes.Buffer
	if err := bodyTemplate.Execute(&body, personalization{Name: lead.Name, Email: recipient.Email}); err != nil {
		return d.fail(ctx, result, fmt.Sprintf("render body: %v", err))
	}
	html := d.tracker.Instrument(body.String(), recipient.LeadID, campaign.ID)

	if err := d.sender.SendCampaignEmail(ctx, recipient.Email, campaign.Subject, html); err != nil {
		d.log.EmailError(recipient.Email, "campaign", err)
		return d.fail(ctx, result, err.Error())
	}

	now := d.now()
	if err := d.store.MarkRecipientSent(ctx, recipient.ID, nil, now); err != nil {
		d.log.DatabaseError("mark recipient sent", err)
	}
	campaignID := campaign.ID
	if err := d.store.InsertEmailEvent(ctx, EmailEvent{
		LeadID:     recipient.LeadID,
		CampaignID: &campaignID,
		Kind:       "sent",
		OccurredAt: now,
	}); err != nil {
		d.log.DatabaseError("insert email event", err)
	}

	result.Sent = true
	return result
}

func (d *Dispatcher) fail(ctx context.Context, result SendResult, message string) SendResult {
	result.Error = message
	if err := d.store.MarkRecipientSent(ctx, result.RecipientID, &message, d.now()); err != nil {
		d.log.DatabaseError("mark recipient failed", err)
	}
	return result
}
