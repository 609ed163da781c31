package campaigns

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"leadflow_backend/internal/email"
	"leadflow_backend/internal/leads/repository"
	"leadflow_backend/platform/logger"
)

type fakeRecipientStore struct {
	mu         sync.Mutex
	recipients []Recipient
	sentCalls  map[uuid.UUID]*string
	events     []EmailEvent
}

func newFakeRecipientStore(recipients ...Recipient) *fakeRecipientStore {
	return &fakeRecipientStore{recipients: recipients, sentCalls: make(map[uuid.UUID]*string)}
}

func (f *fakeRecipientStore) ListRecipients(_ context.Context, _ uuid.UUID) ([]Recipient, error) {
	return f.recipients, nil
}

func (f *fakeRecipientStore) MarkRecipientSent(_ context.Context, recipientID uuid.UUID, sendError *string, _ time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sentCalls[recipientID] = sendError
	return nil
}

func (f *fakeRecipientStore) InsertEmailEvent(_ context.Context, event EmailEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, event)
	return nil
}

type fakeLeadReader struct {
	mu    sync.Mutex
	leads map[uuid.UUID]repository.Lead
}

func (f *fakeLeadReader) GetByID(_ context.Context, id uuid.UUID) (repository.Lead, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	lead, ok := f.leads[id]
	if !ok {
		return repository.Lead{}, repository.ErrNotFound
	}
	return lead, nil
}

type fakeSender struct {
	email.Sender

	mu     sync.Mutex
	sent   map[string]string // email -> html body
	failOn string
}

func newFakeSender() *fakeSender {
	return &fakeSender{sent: make(map[string]string)}
}

func (f *fakeSender) SendCampaignEmail(_ context.Context, toEmail, _ string, htmlBody string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if toEmail == f.failOn {
		return errors.New("smtp: connection refused")
	}
	f.sent[toEmail] = htmlBody
	return nil
}

func testCampaign() Campaign {
	return Campaign{
		ID:           uuid.New(),
		Name:         "Spring sale",
		Subject:      "Big spring savings",
		BodyTemplate: `<html><body><p>Hi {{.Name}}!</p><a href="https://shop.example.com/sale">Shop</a></body></html>`,
		Status:       StatusSending,
	}
}

func optedInLead(id uuid.UUID, name string) repository.Lead {
	return repository.Lead{ID: id, Name: name, EmailNotificationsEnabled: true}
}

func TestDispatchSendsAndPersonalizes(t *testing.T) {
	campaign := testCampaign()
	leadA, leadB := uuid.New(), uuid.New()
	recA := Recipient{ID: uuid.New(), CampaignID: campaign.ID, LeadID: leadA, Email: "a@example.com"}
	recB := Recipient{ID: uuid.New(), CampaignID: campaign.ID, LeadID: leadB, Email: "b@example.com"}

	store := newFakeRecipientStore(recA, recB)
	leads := &fakeLeadReader{leads: map[uuid.UUID]repository.Lead{
		leadA: optedInLead(leadA, "Alice"),
		leadB: optedInLead(leadB, "Bob"),
	}}
	sender := newFakeSender()

	d := NewDispatcher(store, leads, sender, NewTracker("https://app.example.com"), logger.New("test"))
	report, err := d.Dispatch(context.Background(), campaign)
	if err != nil {
		t.Fatalf("Dispatch: %v", err)
	}

	if report.Total != 2 || report.Sent != 2 || report.Failed != 0 || report.Skipped != 0 {
		t.Fatalf("report = %+v, want 2 sent", report)
	}
	body := sender.sent["a@example.com"]
	if !strings.Contains(body, "Hi Alice!") {
		t.Errorf("body not personalized: %q", body)
	}
	if !strings.Contains(body, "/track-email/"+leadA.String()+"/open") {
		t.Error("tracking pixel not injected")
	}
	if !strings.Contains(body, "/track-email/"+leadA.String()+"/click") {
		t.Error("links not routed through click tracking")
	}
	if sendErr, ok := store.sentCalls[recA.ID]; !ok || sendErr != nil {
		t.Errorf("recipient A not marked sent cleanly: %v", sendErr)
	}
	if len(store.events) != 2 {
		t.Fatalf("expected 2 sent events, got %d", len(store.events))
	}
	for _, ev := range store.events {
		if ev.Kind != "sent" || ev.CampaignID == nil || *ev.CampaignID != campaign.ID {
			t.Errorf("unexpected event %+v", ev)
		}
	}
}

func TestDispatchOneFailureDoesNotAbortTheBatch(t *testing.T) {
	campaign := testCampaign()
	leadA, leadB, leadC := uuid.New(), uuid.New(), uuid.New()
	recA := Recipient{ID: uuid.New(), CampaignID: campaign.ID, LeadID: leadA, Email: "a@example.com"}
	recB := Recipient{ID: uuid.New(), CampaignID: campaign.ID, LeadID: leadB, Email: "b@example.com"}
	recC := Recipient{ID: uuid.New(), CampaignID: campaign.ID, LeadID: leadC, Email: "c@example.com"}

	store := newFakeRecipientStore(recA, recB, recC)
	leads := &fakeLeadReader{leads: map[uuid.UUID]repository.Lead{
		leadA: optedInLead(leadA, "Alice"),
		leadB: optedInLead(leadB, "Bob"),
		leadC: optedInLead(leadC, "Cleo"),
	}}
	sender := newFakeSender()
	sender.failOn = "b@example.com"

	d := NewDispatcher(store, leads, sender, NewTracker("https://app.example.com"), logger.New("test"))
	report, err := d.Dispatch(context.Background(), campaign)
	if err != nil {
		t.Fatalf("Dispatch: %v", err)
	}

	if report.Sent != 2 || report.Failed != 1 {
		t.Fatalf("report = %+v, want 2 sent 1 failed", report)
	}
	sendErr, ok := store.sentCalls[recB.ID]
	if !ok || sendErr == nil || !strings.Contains(*sendErr, "connection refused") {
		t.Errorf("failed recipient did not record send error: %v", sendErr)
	}
	// Results are sorted by email for a stable report.
	if report.Results[1].Email != "b@example.com" || report.Results[1].Sent {
		t.Errorf("unexpected result ordering: %+v", report.Results)
	}
}

func TestDispatchSkipsOptedOutAndAlreadySent(t *testing.T) {
	campaign := testCampaign()
	leadA, leadB, leadC := uuid.New(), uuid.New(), uuid.New()
	recA := Recipient{ID: uuid.New(), CampaignID: campaign.ID, LeadID: leadA, Email: "a@example.com"}
	recB := Recipient{ID: uuid.New(), CampaignID: campaign.ID, LeadID: leadB, Email: "b@example.com", Sent: true}
	recC := Recipient{ID: uuid.New(), CampaignID: campaign.ID, LeadID: leadC, Email: "c@example.com"}

	optedOut := optedInLead(leadC, "Cleo")
	optedOut.EmailNotificationsEnabled = false

	store := newFakeRecipientStore(recA, recB, recC)
	leads := &fakeLeadReader{leads: map[uuid.UUID]repository.Lead{
		leadA: optedInLead(leadA, "Alice"),
		leadB: optedInLead(leadB, "Bob"),
		leadC: optedOut,
	}}
	sender := newFakeSender()

	d := NewDispatcher(store, leads, sender, NewTracker("https://app.example.com"), logger.New("test"))
	report, err := d.Dispatch(context.Background(), campaign)
	if err != nil {
		t.Fatalf("Dispatch: %v", err)
	}

	if report.Total != 2 || report.Sent != 1 || report.Skipped != 1 {
		t.Fatalf("report = %+v, want 1 sent 1 skipped", report)
	}
	if _, sent := sender.sent["b@example.com"]; sent {
		t.Error("already sent recipient was sent again")
	}
	if _, sent := sender.sent["c@example.com"]; sent {
		t.Error("opted-out lead received email")
	}
	if _, marked := store.sentCalls[recC.ID]; marked {
		t.Error("skipped recipient was marked sent")
	}
}
