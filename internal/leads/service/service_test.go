package service

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"leadflow_backend/internal/engagement"
	"leadflow_backend/internal/events"
	"leadflow_backend/internal/leads/domain"
	"leadflow_backend/internal/leads/repository"
	"leadflow_backend/platform/apperr"
	"leadflow_backend/platform/logger"
)

type fakeStore struct {
	leads map[uuid.UUID]repository.Lead
	notes []repository.CreateLeadNoteParams
}

func newFakeStore(leads ...repository.Lead) *fakeStore {
	store := &fakeStore{leads: make(map[uuid.UUID]repository.Lead)}
	for _, lead := range leads {
		store.leads[lead.ID] = lead
	}
	return store
}

func (f *fakeStore) Create(_ context.Context, params repository.CreateLeadParams) (repository.Lead, error) {
	for _, lead := range f.leads {
		if params.VisitorID != nil && lead.VisitorID != nil && *lead.VisitorID == *params.VisitorID && !lead.Status.IsTerminal() {
			return repository.Lead{}, repository.ErrDuplicateVisitor
		}
	}
	lead := repository.Lead{
		ID:            uuid.New(),
		VisitorID:     params.VisitorID,
		Name:          params.Name,
		Email:         params.Email,
		Phone:         params.Phone,
		Source:        params.Source,
		Status:        domain.StatusNew,
		InterestLevel: domain.InterestMedium,
		CreatedAt:     time.Now(),
	}
	f.leads[lead.ID] = lead
	return lead, nil
}

func (f *fakeStore) GetByID(_ context.Context, id uuid.UUID) (repository.Lead, error) {
	lead, ok := f.leads[id]
	if !ok {
		return repository.Lead{}, repository.ErrNotFound
	}
	return lead, nil
}

func (f *fakeStore) GetActiveByVisitor(_ context.Context, visitorID uuid.UUID) (repository.Lead, error) {
	for _, lead := range f.leads {
		if lead.VisitorID != nil && *lead.VisitorID == visitorID && !lead.Status.IsTerminal() {
			return lead, nil
		}
	}
	return repository.Lead{}, repository.ErrNotFound
}

func (f *fakeStore) List(_ context.Context, _ repository.ListParams) ([]repository.Lead, error) {
	out := make([]repository.Lead, 0, len(f.leads))
	for _, lead := range f.leads {
		out = append(out, lead)
	}
	return out, nil
}

func (f *fakeStore) ListNonTerminal(_ context.Context) ([]repository.Lead, error) {
	out := make([]repository.Lead, 0)
	for _, lead := range f.leads {
		if !lead.Status.IsTerminal() {
			out = append(out, lead)
		}
	}
	return out, nil
}

func (f *fakeStore) UpdateStatus(_ context.Context, id uuid.UUID, version int, params repository.UpdateStatusParams) (repository.Lead, error) {
	lead, ok := f.leads[id]
	if !ok {
		return repository.Lead{}, repository.ErrNotFound
	}
	if lead.Version != version {
		return repository.Lead{}, repository.ErrVersionConflict
	}
	previous := string(params.PreviousStatus)
	lead.Status = params.Status
	lead.PreviousStatus = &previous
	lead.LastStatusChangeAt = &params.ChangedAt
	if params.LastContact != nil {
		lead.LastContact = params.LastContact
	}
	lead.Version++
	f.leads[id] = lead
	return lead, nil
}

func (f *fakeStore) UpdateAssignment(_ context.Context, id uuid.UUID, version int, sellerID *uuid.UUID) (repository.Lead, error) {
	lead, ok := f.leads[id]
	if !ok {
		return repository.Lead{}, repository.ErrNotFound
	}
	if lead.Version != version {
		return repository.Lead{}, repository.ErrVersionConflict
	}
	lead.AssignedSellerID = sellerID
	lead.Version++
	f.leads[id] = lead
	return lead, nil
}

func (f *fakeStore) ScheduleFollowUp(_ context.Context, id uuid.UUID, params repository.ScheduleFollowUpParams) (repository.Lead, error) {
	lead, ok := f.leads[id]
	if !ok {
		return repository.Lead{}, repository.ErrNotFound
	}
	next := params.NextFollowUp
	lead.NextFollowUp = &next
	lead.ReminderEnabled = params.ReminderEnabled
	lead.ReminderChannel = params.ReminderChannel
	lead.ReminderSent = false
	f.leads[id] = lead
	return lead, nil
}

func (f *fakeStore) ClearFollowUp(_ context.Context, id uuid.UUID) error {
	lead, ok := f.leads[id]
	if !ok {
		return repository.ErrNotFound
	}
	lead.NextFollowUp = nil
	lead.ReminderEnabled = false
	lead.ReminderSent = false
	f.leads[id] = lead
	return nil
}

func (f *fakeStore) MarkReminderSent(_ context.Context, id uuid.UUID) error {
	lead, ok := f.leads[id]
	if !ok {
		return repository.ErrNotFound
	}
	if lead.ReminderEnabled {
		lead.ReminderSent = true
		f.leads[id] = lead
	}
	return nil
}

func (f *fakeStore) CreateNote(_ context.Context, params repository.CreateLeadNoteParams) (repository.LeadNote, error) {
	f.notes = append(f.notes, params)
	return repository.LeadNote{ID: uuid.New(), LeadID: params.LeadID, Type: params.Type, Body: params.Body}, nil
}

func (f *fakeStore) ListNotes(_ context.Context, leadID uuid.UUID) ([]repository.LeadNote, error) {
	out := make([]repository.LeadNote, 0)
	for _, params := range f.notes {
		if params.LeadID == leadID {
			out = append(out, repository.LeadNote{LeadID: leadID, Type: params.Type, Body: params.Body})
		}
	}
	return out, nil
}

type fakeEngagement struct {
	metrics engagement.Metrics
}

func (f *fakeEngagement) Aggregate(context.Context, uuid.UUID) (engagement.Metrics, error) {
	return f.metrics, nil
}

type fakeScorer struct {
	store *fakeStore
	calls int
}

func (f *fakeScorer) ScoreLead(_ context.Context, leadID uuid.UUID, _ string) (repository.Lead, error) {
	f.calls++
	lead := f.store.leads[leadID]
	lead.AIScore = 50
	f.store.leads[leadID] = lead
	return lead, nil
}

type fakeAttributor struct {
	campaignID *uuid.UUID
	calls      int
}

func (f *fakeAttributor) AttributeConversion(context.Context, uuid.UUID, time.Time) (*uuid.UUID, error) {
	f.calls++
	return f.campaignID, nil
}

type captureBus struct {
	published []events.Event
}

func (b *captureBus) Publish(_ context.Context, event events.Event) { b.published = append(b.published, event) }
func (b *captureBus) PublishSync(_ context.Context, event events.Event) error {
	b.published = append(b.published, event)
	return nil
}
func (b *captureBus) Subscribe(string, events.Handler) {}

func newService(store *fakeStore) (*Service, *captureBus) {
	bus := &captureBus{}
	scorer := &fakeScorer{store: store}
	svc := NewService(store, &fakeEngagement{metrics: engagement.Metrics{Frequency: engagement.FrequencyLow}}, scorer, bus, logger.New("test"))
	return svc, bus
}

func TestCreateFromSignalCreatesAndScores(t *testing.T) {
	store := newFakeStore()
	svc, bus := newService(store)
	visitorID := uuid.New()

	lead, err := svc.CreateFromSignal(context.Background(), CreateParams{
		VisitorID: &visitorID,
		Name:      "Omar Haddad",
		Source:    "product_interest",
	})
	if err != nil {
		t.Fatalf("CreateFromSignal: %v", err)
	}
	if lead.Status != domain.StatusNew {
		t.Errorf("Status = %s, want new", lead.Status)
	}
	if lead.AIScore != 50 {
		t.Errorf("AIScore = %d, want initial scoring pass to run", lead.AIScore)
	}
	if len(bus.published) != 1 {
		t.Fatalf("published %d events, want 1", len(bus.published))
	}
	if _, ok := bus.published[0].(events.LeadCreated); !ok {
		t.Errorf("published %T, want LeadCreated", bus.published[0])
	}
}

func TestCreateFromSignalReturnsExistingActiveLead(t *testing.T) {
	visitorID := uuid.New()
	existing := repository.Lead{ID: uuid.New(), VisitorID: &visitorID, Name: "Omar Haddad", Source: "signup", Status: domain.StatusContacted}
	store := newFakeStore(existing)
	svc, bus := newService(store)

	lead, err := svc.CreateFromSignal(context.Background(), CreateParams{
		VisitorID: &visitorID,
		Name:      "Omar Haddad",
		Source:    "cart_abandonment",
	})
	if err != nil {
		t.Fatalf("CreateFromSignal: %v", err)
	}
	if lead.ID != existing.ID {
		t.Errorf("created a duplicate lead %s", lead.ID)
	}
	if len(bus.published) != 0 {
		t.Errorf("published %d events for an existing lead", len(bus.published))
	}
}

func TestCreateFromSignalAllowsNewLeadAfterTerminal(t *testing.T) {
	visitorID := uuid.New()
	converted := repository.Lead{ID: uuid.New(), VisitorID: &visitorID, Name: "Omar Haddad", Source: "signup", Status: domain.StatusConverted}
	store := newFakeStore(converted)
	svc, _ := newService(store)

	lead, err := svc.CreateFromSignal(context.Background(), CreateParams{
		VisitorID: &visitorID,
		Name:      "Omar Haddad",
		Source:    "product_interest",
	})
	if err != nil {
		t.Fatalf("CreateFromSignal: %v", err)
	}
	if lead.ID == converted.ID {
		t.Error("terminal lead was resurrected instead of creating a new one")
	}
}

func TestChangeStatusStampsLastContact(t *testing.T) {
	now := time.Date(2026, 5, 2, 10, 0, 0, 0, time.UTC)
	lead := repository.Lead{ID: uuid.New(), Name: "Omar Haddad", Status: domain.StatusNew}
	store := newFakeStore(lead)
	svc, bus := newService(store)
	svc.WithClock(func() time.Time { return now })

	updated, err := svc.ChangeStatus(context.Background(), lead.ID, ChangeStatusParams{Status: domain.StatusContacted})
	if err != nil {
		t.Fatalf("ChangeStatus: %v", err)
	}
	if updated.Status != domain.StatusContacted {
		t.Errorf("Status = %s, want contacted", updated.Status)
	}
	if updated.LastContact == nil || !updated.LastContact.Equal(now) {
		t.Errorf("LastContact = %v, want %v", updated.LastContact, now)
	}
	if len(store.notes) != 1 || store.notes[0].Type != repository.NoteTypeStatusChange {
		t.Errorf("notes = %+v, want one status_change note", store.notes)
	}
	if len(bus.published) != 1 {
		t.Fatalf("published %d events, want 1", len(bus.published))
	}
}

func TestChangeStatusRefreshesLastContactOnRecontact(t *testing.T) {
	now := time.Date(2026, 5, 2, 10, 0, 0, 0, time.UTC)
	earlier := now.Add(-30 * 24 * time.Hour)
	lead := repository.Lead{ID: uuid.New(), Name: "Omar Haddad", Status: domain.StatusNurturing, LastContact: &earlier}
	store := newFakeStore(lead)
	svc, _ := newService(store)
	svc.WithClock(func() time.Time { return now })

	updated, err := svc.ChangeStatus(context.Background(), lead.ID, ChangeStatusParams{Status: domain.StatusContacted})
	if err != nil {
		t.Fatalf("ChangeStatus: %v", err)
	}
	if updated.LastContact == nil || !updated.LastContact.Equal(now) {
		t.Errorf("LastContact = %v, want refreshed to %v", updated.LastContact, now)
	}
}

func TestChangeStatusRejectsInvalidTransition(t *testing.T) {
	lead := repository.Lead{ID: uuid.New(), Name: "Omar Haddad", Status: domain.StatusConverted}
	store := newFakeStore(lead)
	svc, _ := newService(store)

	_, err := svc.ChangeStatus(context.Background(), lead.ID, ChangeStatusParams{Status: domain.StatusContacted})
	if !apperr.Is(err, apperr.KindValidation) {
		t.Errorf("err = %v, want validation error", err)
	}
}

func TestChangeStatusVersionConflict(t *testing.T) {
	lead := repository.Lead{ID: uuid.New(), Name: "Omar Haddad", Status: domain.StatusNew, Version: 4}
	store := newFakeStore(lead)
	svc, _ := newService(store)

	_, err := svc.ChangeStatus(context.Background(), lead.ID, ChangeStatusParams{Status: domain.StatusContacted, Version: 3})
	if !apperr.Is(err, apperr.KindConflict) {
		t.Errorf("err = %v, want conflict error", err)
	}
}

func TestConversionTriggersAttribution(t *testing.T) {
	campaignID := uuid.New()
	lead := repository.Lead{ID: uuid.New(), Name: "Omar Haddad", Status: domain.StatusProposal}
	store := newFakeStore(lead)
	svc, bus := newService(store)
	attributor := &fakeAttributor{campaignID: &campaignID}
	svc.SetAttributor(attributor)

	if _, err := svc.ChangeStatus(context.Background(), lead.ID, ChangeStatusParams{Status: domain.StatusConverted}); err != nil {
		t.Fatalf("ChangeStatus: %v", err)
	}
	if attributor.calls != 1 {
		t.Errorf("attributor calls = %d, want 1", attributor.calls)
	}

	var converted *events.LeadConverted
	for _, event := range bus.published {
		if e, ok := event.(events.LeadConverted); ok {
			converted = &e
		}
	}
	if converted == nil {
		t.Fatal("LeadConverted not published")
	}
	if converted.CampaignID == nil || *converted.CampaignID != campaignID {
		t.Errorf("CampaignID = %v, want %s", converted.CampaignID, campaignID)
	}
}

func TestCompleteFollowUpAutoSchedules(t *testing.T) {
	now := time.Date(2026, 5, 2, 10, 0, 0, 0, time.UTC)
	due := now.Add(-time.Hour)
	lead := repository.Lead{
		ID: uuid.New(), Name: "Omar Haddad", Status: domain.StatusContacted,
		NextFollowUp: &due, ReminderEnabled: true, ReminderChannel: "email",
	}
	store := newFakeStore(lead)
	svc, _ := newService(store)
	svc.WithClock(func() time.Time { return now })

	updated, err := svc.CompleteFollowUp(context.Background(), lead.ID, CompleteFollowUpParams{AutoSchedule: true})
	if err != nil {
		t.Fatalf("CompleteFollowUp: %v", err)
	}

	want := now.AddDate(0, 0, AutoScheduleDays)
	if updated.NextFollowUp == nil || !updated.NextFollowUp.Equal(want) {
		t.Errorf("NextFollowUp = %v, want %v", updated.NextFollowUp, want)
	}
	if updated.ReminderSent {
		t.Error("rescheduled reminder must be re-armed")
	}
}

func TestDueTodayAndStaleFilters(t *testing.T) {
	now := time.Date(2026, 5, 2, 10, 0, 0, 0, time.UTC)
	today := time.Date(2026, 5, 2, 16, 0, 0, 0, time.UTC)
	oldContact := now.AddDate(0, 0, -30)

	dueLead := repository.Lead{
		ID: uuid.New(), Name: "Due", Status: domain.StatusContacted,
		NextFollowUp: &today, ReminderEnabled: true, ReminderChannel: "email",
	}
	staleLead := repository.Lead{ID: uuid.New(), Name: "Stale", Status: domain.StatusNurturing, LastContact: &oldContact}
	convertedLead := repository.Lead{ID: uuid.New(), Name: "Done", Status: domain.StatusConverted, LastContact: &oldContact}

	store := newFakeStore(dueLead, staleLead, convertedLead)
	svc, _ := newService(store)
	svc.WithClock(func() time.Time { return now })

	due, err := svc.DueToday(context.Background())
	if err != nil {
		t.Fatalf("DueToday: %v", err)
	}
	if len(due) != 1 || due[0].ID != dueLead.ID {
		t.Errorf("DueToday = %v", due)
	}

	stale, err := svc.Stale(context.Background(), 14)
	if err != nil {
		t.Fatalf("Stale: %v", err)
	}
	if len(stale) != 1 || stale[0].ID != staleLead.ID {
		t.Errorf("Stale = %v, want only the nurturing lead", stale)
	}
}

func TestMarkReminderSentIsIdempotent(t *testing.T) {
	now := time.Date(2026, 5, 2, 10, 0, 0, 0, time.UTC)
	today := time.Date(2026, 5, 2, 16, 0, 0, 0, time.UTC)
	lead := repository.Lead{
		ID: uuid.New(), Name: "Due", Status: domain.StatusContacted,
		NextFollowUp: &today, ReminderEnabled: true, ReminderChannel: "email",
	}
	store := newFakeStore(lead)
	svc, _ := newService(store)
	svc.WithClock(func() time.Time { return now })

	if err := svc.MarkReminderSent(context.Background(), lead.ID); err != nil {
		t.Fatalf("MarkReminderSent: %v", err)
	}
	if err := svc.MarkReminderSent(context.Background(), lead.ID); err != nil {
		t.Fatalf("second MarkReminderSent: %v", err)
	}

	updated := store.leads[lead.ID]
	if !updated.ReminderSent {
		t.Error("ReminderSent not set")
	}

	// A sent reminder never comes back as due, so the next scheduler pass
	// cannot deliver it a second time.
	due, err := svc.DueToday(context.Background())
	if err != nil {
		t.Fatalf("DueToday: %v", err)
	}
	if len(due) != 0 {
		t.Errorf("DueToday = %v, want empty after the reminder was sent", due)
	}
}
