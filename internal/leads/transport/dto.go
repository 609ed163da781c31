// Package transport defines the request and response shapes of the leads
// HTTP surface.
package transport

import (
	"time"

	"github.com/google/uuid"

	"leadflow_backend/internal/engagement"
	"leadflow_backend/internal/leads/domain"
	"leadflow_backend/internal/leads/repository"
)

type CreateLeadRequest struct {
	VisitorID *uuid.UUID `json:"visitorId"`
	Name      string     `json:"name" validate:"required,max=200"`
	Email     *string    `json:"email" validate:"omitempty,email"`
	Phone     *string    `json:"phone" validate:"omitempty,max=32"`
	Source    string     `json:"source" validate:"required,max=100"`
	Tags      []string   `json:"tags" validate:"omitempty,dive,max=50"`
}

type UpdateStatusRequest struct {
	Status  string `json:"status" validate:"required"`
	Version int    `json:"version" validate:"gte=0"`
	Note    string `json:"note" validate:"omitempty,max=2000"`
}

type AssignRequest struct {
	SellerID *uuid.UUID `json:"sellerId"`
	Version  int        `json:"version" validate:"gte=0"`
}

type AddNoteRequest struct {
	Body string `json:"body" validate:"required,max=4000"`
}

type ScheduleFollowUpRequest struct {
	At      time.Time `json:"at" validate:"required"`
	Channel string    `json:"channel" validate:"omitempty,oneof=email phone"`
}

type CompleteFollowUpRequest struct {
	Note         string `json:"note" validate:"omitempty,max=2000"`
	AutoSchedule bool   `json:"autoSchedule"`
}

type ScoreHistoryEntry struct {
	Score      int       `json:"score"`
	Reason     string    `json:"reason"`
	RecordedAt time.Time `json:"recordedAt"`
}

type ReminderResponse struct {
	Enabled bool   `json:"enabled"`
	Channel string `json:"channel,omitempty"`
	Sent    bool   `json:"sent"`
}

type LeadResponse struct {
	ID                    uuid.UUID           `json:"id"`
	VisitorID             *uuid.UUID          `json:"visitorId,omitempty"`
	Name                  string              `json:"name"`
	Email                 *string             `json:"email,omitempty"`
	Phone                 *string             `json:"phone,omitempty"`
	Source                string              `json:"source"`
	Status                string              `json:"status"`
	PreviousStatus        *string             `json:"previousStatus,omitempty"`
	InterestLevel         string              `json:"interestLevel"`
	AIScore               int                 `json:"aiScore"`
	AIScoredAt            *time.Time          `json:"aiScoredAt,omitempty"`
	PriorityScore         int                 `json:"priorityScore"`
	ConversionProbability int                 `json:"conversionProbability"`
	Insights              []string            `json:"insights"`
	RecommendedActions    []string            `json:"recommendedActions"`
	Tags                  []string            `json:"tags"`
	ScoreHistory          []ScoreHistoryEntry `json:"scoreHistory"`
	AssignedSellerID      *uuid.UUID          `json:"assignedSellerId,omitempty"`
	LastContact           *time.Time          `json:"lastContact,omitempty"`
	LastStatusChangeAt    *time.Time          `json:"lastStatusChangeAt,omitempty"`
	NextFollowUp          *time.Time          `json:"nextFollowUp,omitempty"`
	Reminder              ReminderResponse    `json:"reminder"`
	Version               int                 `json:"version"`
	CreatedAt             time.Time           `json:"createdAt"`
	UpdatedAt             time.Time           `json:"updatedAt"`
}

func ToLeadResponse(lead repository.Lead) LeadResponse {
	history := make([]ScoreHistoryEntry, 0, len(lead.ScoreHistory))
	for _, entry := range lead.ScoreHistory {
		history = append(history, ScoreHistoryEntry(entry))
	}

	resp := LeadResponse{
		ID:                    lead.ID,
		VisitorID:             lead.VisitorID,
		Name:                  lead.Name,
		Email:                 lead.Email,
		Phone:                 lead.Phone,
		Source:                lead.Source,
		Status:                string(lead.Status),
		PreviousStatus:        lead.PreviousStatus,
		InterestLevel:         string(lead.InterestLevel),
		AIScore:               lead.AIScore,
		AIScoredAt:            lead.AIScoredAt,
		PriorityScore:         lead.PriorityScore,
		ConversionProbability: lead.ConversionProbability,
		Insights:              emptyIfNil(lead.Insights),
		RecommendedActions:    emptyIfNil(lead.RecommendedActions),
		Tags:                  emptyIfNil(lead.Tags),
		ScoreHistory:          history,
		AssignedSellerID:      lead.AssignedSellerID,
		LastContact:           lead.LastContact,
		LastStatusChangeAt:    lead.LastStatusChangeAt,
		NextFollowUp:          lead.NextFollowUp,
		Reminder: ReminderResponse{
			Enabled: lead.ReminderEnabled,
			Channel: lead.ReminderChannel,
			Sent:    lead.ReminderSent,
		},
		Version:   lead.Version,
		CreatedAt: lead.CreatedAt,
		UpdatedAt: lead.UpdatedAt,
	}
	return resp
}

func ToLeadResponses(leads []repository.Lead) []LeadResponse {
	out := make([]LeadResponse, 0, len(leads))
	for _, lead := range leads {
		out = append(out, ToLeadResponse(lead))
	}
	return out
}

type LeadDetailResponse struct {
	Lead       LeadResponse       `json:"lead"`
	Engagement engagement.Metrics `json:"engagement"`
}

type NoteResponse struct {
	ID        uuid.UUID  `json:"id"`
	LeadID    uuid.UUID  `json:"leadId"`
	AuthorID  *uuid.UUID `json:"authorId,omitempty"`
	Type      string     `json:"type"`
	Body      string     `json:"body"`
	CreatedAt time.Time  `json:"createdAt"`
}

func ToNoteResponse(note repository.LeadNote) NoteResponse {
	return NoteResponse(note)
}

func ToNoteResponses(notes []repository.LeadNote) []NoteResponse {
	out := make([]NoteResponse, 0, len(notes))
	for _, note := range notes {
		out = append(out, ToNoteResponse(note))
	}
	return out
}

// ParseStatus converts the wire value, reporting whether it is known.
func ParseStatus(value string) (domain.Status, bool) {
	status := domain.Status(value)
	return status, domain.IsValidStatus(status)
}

func emptyIfNil(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}
