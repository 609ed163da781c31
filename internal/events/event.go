// Package events defines the domain events exchanged between modules.
package events

import (
	"github.com/google/uuid"
)

// Lead lifecycle events

// LeadCreated is published when a new lead enters the pipeline.
type LeadCreated struct {
	BaseEvent
	LeadID    uuid.UUID
	VisitorID uuid.UUID
	Source    string
}

func (e LeadCreated) EventName() string { return "leads.lead.created" }

// LeadScored is published after a scoring pass commits new scores.
type LeadScored struct {
	BaseEvent
	LeadID        uuid.UUID
	AIScore       int
	PriorityScore int
	InterestLevel string
	Degraded      bool // true when the classifier fallback was used
}

func (e LeadScored) EventName() string { return "leads.lead.scored" }

// LeadStatusChanged is published on every status transition.
type LeadStatusChanged struct {
	BaseEvent
	LeadID         uuid.UUID
	PreviousStatus string
	NewStatus      string
}

func (e LeadStatusChanged) EventName() string { return "leads.lead.status_changed" }

// LeadAssigned is published when the assignment coordinator commits a seller.
type LeadAssigned struct {
	BaseEvent
	LeadID   uuid.UUID
	SellerID uuid.UUID
	Reason   string
}

func (e LeadAssigned) EventName() string { return "leads.lead.assigned" }

// LeadConverted is published when a lead reaches the converted status.
type LeadConverted struct {
	BaseEvent
	LeadID     uuid.UUID
	CampaignID *uuid.UUID // set when the conversion is attributed to a campaign
}

func (e LeadConverted) EventName() string { return "leads.lead.converted" }

// Email engagement events

// EmailOpened is published when an open-tracking callback is recorded.
type EmailOpened struct {
	BaseEvent
	LeadID     uuid.UUID
	CampaignID *uuid.UUID
}

func (e EmailOpened) EventName() string { return "campaigns.email.opened" }

// EmailClicked is published when a click-tracking callback is recorded.
type EmailClicked struct {
	BaseEvent
	LeadID     uuid.UUID
	CampaignID *uuid.UUID
	LinkURL    string
}

func (e EmailClicked) EventName() string { return "campaigns.email.clicked" }

// CampaignSent is published after a campaign batch finishes dispatching.
type CampaignSent struct {
	BaseEvent
	CampaignID uuid.UUID
	Sent       int
	Failed     int
}

func (e CampaignSent) EventName() string { return "campaigns.campaign.sent" }
