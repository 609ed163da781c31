// Package classifier defines the request/response contract of the external
// AI classifier and an HTTP client for it. Any malformed or missing field is
// reported as an error to the caller, which is contractually required to
// degrade to safe defaults instead of failing.
package classifier

import (
	"encoding/json"
	"time"
)

// LeadContext is the lead portion of a scoring request.
type LeadContext struct {
	Source       string          `json:"source"`
	ActivityType string          `json:"activityType"`
	ActivityData json.RawMessage `json:"activityData,omitempty"`
	CreatedAt    time.Time       `json:"createdAt"`
}

// UserContext carries the visitor profile known to the marketplace.
type UserContext struct {
	Name      string    `json:"name,omitempty"`
	Email     string    `json:"email,omitempty"`
	Country   string    `json:"country,omitempty"`
	CreatedAt time.Time `json:"createdAt,omitempty"`
}

// VisitorHistory summarizes the visitor's commercial track record.
type VisitorHistory struct {
	TotalOrders          int      `json:"totalOrders"`
	TotalSpent           float64  `json:"totalSpent"`
	AverageOrderValue    float64  `json:"averageOrderValue"`
	TestCount            int      `json:"testCount"`
	ActivityCount        int      `json:"activityCount"`
	PreviousLeadCount    int      `json:"previousLeadCount"`
	PreviousLeadStatuses []string `json:"previousLeadStatuses"`
}

// LeadScoringRequest is the payload submitted for lead scoring.
type LeadScoringRequest struct {
	Lead    LeadContext    `json:"lead"`
	User    UserContext    `json:"user"`
	History VisitorHistory `json:"history"`
}

// LeadScoringResult is the structured classifier verdict for one lead.
type LeadScoringResult struct {
	Score                 int      `json:"score"`
	InterestLevel         string   `json:"interestLevel"`
	ConversionProbability int      `json:"conversionProbability"`
	Insights              []string `json:"insights"`
	RecommendedActions    []string `json:"recommendedActions"`
	Tags                  []string `json:"tags"`
}

// AssignmentLead is the lead summary included in a seller recommendation
// request.
type AssignmentLead struct {
	AIScore       int    `json:"aiScore"`
	InterestLevel string `json:"interestLevel"`
	Source        string `json:"source"`
}

// SellerCandidate describes one active seller for ranking.
type SellerCandidate struct {
	SellerID     string `json:"sellerId"`
	Name         string `json:"name"`
	Performance  int    `json:"performance"`
	ActiveLeads  int    `json:"activeLeads"`
	Expertise    string `json:"expertise"`
	ResponseTime string `json:"responseTime"`
}

// AssignmentRequest asks the classifier to rank sellers for a lead.
type AssignmentRequest struct {
	Lead    AssignmentLead    `json:"lead"`
	Sellers []SellerCandidate `json:"sellers"`
}

// AssignmentResult is the classifier's seller recommendation.
type AssignmentResult struct {
	RecommendedSellerID string `json:"recommendedSellerId"`
	Reasoning           string `json:"reasoning"`
}

// InsightRequest aggregates recent lead movement for a batch-level summary.
type InsightRequest struct {
	Period       string           `json:"period"`
	TotalLeads   int              `json:"totalLeads"`
	AverageScore float64          `json:"averageScore"`
	StatusCounts map[string]int   `json:"statusCounts"`
	SourceCounts map[string]int   `json:"sourceCounts"`
	TopLeads     []AssignmentLead `json:"topLeads,omitempty"`
}

// InsightResult is the batch-level classifier summary.
type InsightResult struct {
	Summary          string   `json:"summary"`
	KeyFindings      []string `json:"keyFindings"`
	Trends           []string `json:"trends"`
	Recommendations  []string `json:"recommendations"`
	OpportunityScore int      `json:"opportunityScore"`
}
