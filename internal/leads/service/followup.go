package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"leadflow_backend/internal/leads/domain"
	"leadflow_backend/internal/leads/repository"
	"leadflow_backend/platform/apperr"
)

// AutoScheduleDays is how far out a completed follow-up is rescheduled when
// the caller asks for auto-scheduling.
const AutoScheduleDays = 7

// DueToday returns every lead whose follow-up reminder should fire today.
func (s *Service) DueToday(ctx context.Context) ([]repository.Lead, error) {
	leads, err := s.leads.ListNonTerminal(ctx)
	if err != nil {
		return nil, err
	}

	now := s.now()
	due := make([]repository.Lead, 0)
	for _, lead := range leads {
		if domain.FollowUpDueToday(lead.Status, lead.NextFollowUp, lead.Reminder(), now) {
			due = append(due, lead)
		}
	}
	return due, nil
}

// Stale returns non-terminal leads with no contact and no ledger interaction
// within the threshold. A zero or negative threshold falls back to 14 days.
func (s *Service) Stale(ctx context.Context, thresholdDays int) ([]repository.Lead, error) {
	if thresholdDays <= 0 {
		thresholdDays = 14
	}

	leads, err := s.leads.ListNonTerminal(ctx)
	if err != nil {
		return nil, err
	}

	now := s.now()
	stale := make([]repository.Lead, 0)
	for _, lead := range leads {
		var lastInteraction *time.Time
		if lead.VisitorID != nil {
			metrics, err := s.engagement.Aggregate(ctx, *lead.VisitorID)
			if err != nil {
				s.log.DatabaseError("aggregate engagement", err)
			} else {
				lastInteraction = metrics.LastInteraction
			}
		}
		if domain.IsStale(lead.Status, lead.LastContact, lastInteraction, thresholdDays, now) {
			stale = append(stale, lead)
		}
	}
	return stale, nil
}

type ScheduleFollowUpParams struct {
	At      time.Time
	Channel string
	ActorID *uuid.UUID
}

// ScheduleFollowUp sets the next follow-up and arms the reminder.
func (s *Service) ScheduleFollowUp(ctx context.Context, id uuid.UUID, params ScheduleFollowUpParams) (repository.Lead, error) {
	if params.At.IsZero() {
		return repository.Lead{}, apperr.Validation("follow-up time is required")
	}
	if params.Channel == "" {
		params.Channel = "email"
	}

	lead, err := s.Get(ctx, id)
	if err != nil {
		return repository.Lead{}, err
	}
	if lead.Status.IsTerminal() {
		return repository.Lead{}, apperr.Validation(fmt.Sprintf("cannot schedule follow-up for %s lead", lead.Status))
	}

	updated, err := s.leads.ScheduleFollowUp(ctx, id, repository.ScheduleFollowUpParams{
		NextFollowUp:    params.At,
		ReminderEnabled: true,
		ReminderChannel: params.Channel,
	})
	if err != nil {
		return repository.Lead{}, err
	}

	if _, err := s.leads.CreateNote(ctx, repository.CreateLeadNoteParams{
		LeadID:   id,
		AuthorID: params.ActorID,
		Type:     repository.NoteTypeFollowUp,
		Body:     fmt.Sprintf("Follow-up scheduled for %s via %s", params.At.Format(time.RFC3339), params.Channel),
	}); err != nil {
		s.log.DatabaseError("follow-up note", err)
	}

	return updated, nil
}

// ClearFollowUp removes the scheduled follow-up and disarms the reminder.
func (s *Service) ClearFollowUp(ctx context.Context, id uuid.UUID) error {
	err := s.leads.ClearFollowUp(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return apperr.NotFound("lead not found")
	}
	return err
}

// MarkReminderSent flags the reminder as delivered. Safe to call twice for
// the same reminder.
func (s *Service) MarkReminderSent(ctx context.Context, id uuid.UUID) error {
	err := s.leads.MarkReminderSent(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return apperr.NotFound("lead not found")
	}
	return err
}

type CompleteFollowUpParams struct {
	ActorID      *uuid.UUID
	Note         string
	AutoSchedule bool
}

// CompleteFollowUp records the follow-up outcome and clears the schedule,
// optionally rescheduling AutoScheduleDays out.
func (s *Service) CompleteFollowUp(ctx context.Context, id uuid.UUID, params CompleteFollowUpParams) (repository.Lead, error) {
	lead, err := s.Get(ctx, id)
	if err != nil {
		return repository.Lead{}, err
	}
	if lead.NextFollowUp == nil {
		return repository.Lead{}, apperr.Validation("lead has no scheduled follow-up")
	}

	body := "Follow-up completed"
	if params.Note != "" {
		body += ": " + params.Note
	}
	if _, err := s.leads.CreateNote(ctx, repository.CreateLeadNoteParams{
		LeadID:   id,
		AuthorID: params.ActorID,
		Type:     repository.NoteTypeFollowUp,
		Body:     body,
	}); err != nil {
		s.log.DatabaseError("follow-up note", err)
	}

	if params.AutoSchedule {
		next := s.now().AddDate(0, 0, AutoScheduleDays)
		return s.leads.ScheduleFollowUp(ctx, id, repository.ScheduleFollowUpParams{
			NextFollowUp:    next,
			ReminderEnabled: true,
			ReminderChannel: lead.ReminderChannel,
		})
	}

	if err := s.leads.ClearFollowUp(ctx, id); err != nil {
		return repository.Lead{}, err
	}
	return s.Get(ctx, id)
}
