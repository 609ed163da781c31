package scheduler

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"leadflow_backend/internal/email"
	"leadflow_backend/internal/leads/repository"
	"leadflow_backend/internal/sellers"
	"leadflow_backend/platform/ai/classifier"
	"leadflow_backend/platform/logger"
)

// Rescorer runs the scoring sweeps.
type Rescorer interface {
	RescoreStale(ctx context.Context, staleAfter time.Duration) (int, error)
	RecalculateAllPriorities(ctx context.Context) (int, error)
}

// Assigner places eligible unassigned leads.
type Assigner interface {
	AssignEligible(ctx context.Context) (int, error)
}

// FollowUpSource supplies the follow-up and staleness views of the lead
// population.
type FollowUpSource interface {
	DueToday(ctx context.Context) ([]repository.Lead, error)
	Stale(ctx context.Context, thresholdDays int) ([]repository.Lead, error)
	MarkReminderSent(ctx context.Context, id uuid.UUID) error
}

// SellerDirectory resolves digest recipients.
type SellerDirectory interface {
	GetByID(ctx context.Context, id uuid.UUID) (sellers.Seller, error)
}

// CampaignRunner sends scheduled campaigns whose time has arrived.
type CampaignRunner interface {
	DispatchDue(ctx context.Context) (int, error)
}

// CartCleaner flags abandoned storefront carts.
type CartCleaner interface {
	CleanupAbandoned(ctx context.Context, cutoff time.Time) (int, error)
}

// InsightLeadSource lists the recently moved leads feeding the insights
// digest.
type InsightLeadSource interface {
	ListUpdatedSince(ctx context.Context, since time.Time) ([]repository.Lead, error)
}

// InsightClassifier summarizes a batch of lead movement.
type InsightClassifier interface {
	BatchInsights(ctx context.Context, req classifier.InsightRequest) (classifier.InsightResult, error)
}

// Deps carries everything the jobs need. The composition root fills it from
// the shared services.
type Deps struct {
	Rescorer     Rescorer
	Assigner     Assigner
	FollowUps    FollowUpSource
	Sellers      SellerDirectory
	Campaigns    CampaignRunner
	Carts        CartCleaner
	InsightLeads InsightLeadSource
	Classifier   InsightClassifier
	Sender       email.Sender

	AdminEmail         string
	StaleScoreAfter    time.Duration // AI score age triggering a rescore
	StaleLeadDays      int
	AbandonedCartAfter time.Duration

	Log *logger.Logger
	Now func() time.Time
}

func (d *Deps) clock() func() time.Time {
	if d.Now != nil {
		return d.Now
	}
	return time.Now
}

// RegisterJobs wires every batch job into the registry.
func RegisterJobs(reg *Registry, deps Deps) {
	now := deps.clock()

	reg.Register(TaskRescoreStale, func(ctx context.Context) (int, error) {
		return deps.Rescorer.RescoreStale(ctx, deps.StaleScoreAfter)
	})
	reg.Register(TaskRecalculatePriorities, func(ctx context.Context) (int, error) {
		return deps.Rescorer.RecalculateAllPriorities(ctx)
	})
	reg.Register(TaskAutoAssign, func(ctx context.Context) (int, error) {
		return deps.Assigner.AssignEligible(ctx)
	})
	reg.Register(TaskDispatchCampaigns, func(ctx context.Context) (int, error) {
		return deps.Campaigns.DispatchDue(ctx)
	})
	reg.Register(TaskCleanupAbandonedCarts, func(ctx context.Context) (int, error) {
		return deps.Carts.CleanupAbandoned(ctx, now().Add(-deps.AbandonedCartAfter))
	})
	reg.Register(TaskSendReminders, func(ctx context.Context) (int, error) {
		return sendReminders(ctx, deps, now())
	})
	reg.Register(TaskStaleReport, func(ctx context.Context) (int, error) {
		return sendStaleReport(ctx, deps, now())
	})
	reg.Register(TaskInsightsDigest, func(ctx context.Context) (int, error) {
		return sendInsightsDigest(ctx, deps, now())
	})
}

// sendReminders groups today's due follow-ups per assigned seller, emails
// each a digest, and emails the admin the unassigned bucket. A lead is only
// marked reminded after its digest went out.
func sendReminders(ctx context.Context, deps Deps, now time.Time) (int, error) {
	due, err := deps.FollowUps.DueToday(ctx)
	if err != nil {
		return 0, err
	}
	if len(due) == 0 {
		return 0, nil
	}

	buckets := make(map[uuid.UUID][]repository.Lead)
	var unassigned []repository.Lead
	for _, lead := range due {
		if lead.AssignedSellerID == nil {
			unassigned = append(unassigned, lead)
			continue
		}
		buckets[*lead.AssignedSellerID] = append(buckets[*lead.AssignedSellerID], lead)
	}

	processed := 0
	for sellerID, leads := range buckets {
		seller, err := deps.Sellers.GetByID(ctx, sellerID)
		if err != nil {
			deps.Log.Error("reminder digest: resolve seller", "sellerId", sellerID, "error", err)
			continue
		}
		data := email.FollowUpDigestData{
			RecipientName: seller.Name,
			Date:          email.FormatDate(now),
			Leads:         digestRows(leads),
		}
		if err := deps.Sender.SendFollowUpDigest(ctx, seller.Email, data); err != nil {
			deps.Log.EmailError(seller.Email, "follow-up digest", err)
			continue
		}
		processed += markReminded(ctx, deps, leads)
	}

	if len(unassigned) > 0 && deps.AdminEmail != "" {
		data := email.FollowUpDigestData{
			RecipientName: "Team",
			Date:          email.FormatDate(now),
			Leads:         digestRows(unassigned),
		}
		if err := deps.Sender.SendFollowUpDigest(ctx, deps.AdminEmail, data); err != nil {
			deps.Log.EmailError(deps.AdminEmail, "follow-up digest", err)
		} else {
			processed += markReminded(ctx, deps, unassigned)
		}
	}

	return processed, nil
}

func markReminded(ctx context.Context, deps Deps, leads []repository.Lead) int {
	marked := 0
	for _, lead := range leads {
		if err := deps.FollowUps.MarkReminderSent(ctx, lead.ID); err != nil {
			deps.Log.DatabaseError("mark reminder sent", err)
			continue
		}
		marked++
	}
	return marked
}

// sendStaleReport emails the admin the weekly list of leads gone quiet.
func sendStaleReport(ctx context.Context, deps Deps, now time.Time) (int, error) {
	stale, err := deps.FollowUps.Stale(ctx, deps.StaleLeadDays)
	if err != nil {
		return 0, err
	}
	if len(stale) == 0 || deps.AdminEmail == "" {
		return 0, nil
	}

	data := email.StaleReportData{
		ThresholdDays: deps.StaleLeadDays,
		GeneratedAt:   email.FormatDate(now),
		Leads:         digestRows(stale),
	}
	if err := deps.Sender.SendStaleLeadReport(ctx, deps.AdminEmail, data); err != nil {
		return 0, err
	}
	return len(stale), nil
}

// sendInsightsDigest summarizes the last hour of lead movement per seller
// bucket through the batch-insight classifier and emails each summary. A
// failing bucket is logged and skipped.
func sendInsightsDigest(ctx context.Context, deps Deps, now time.Time) (int, error) {
	moved, err := deps.InsightLeads.ListUpdatedSince(ctx, now.Add(-time.Hour))
	if err != nil {
		return 0, err
	}
	if len(moved) == 0 {
		return 0, nil
	}

	buckets := make(map[uuid.UUID][]repository.Lead)
	var unassigned []repository.Lead
	for _, lead := range moved {
		if lead.AssignedSellerID == nil {
			unassigned = append(unassigned, lead)
			continue
		}
		buckets[*lead.AssignedSellerID] = append(buckets[*lead.AssignedSellerID], lead)
	}

	processed := 0
	for sellerID, leads := range buckets {
		seller, err := deps.Sellers.GetByID(ctx, sellerID)
		if err != nil {
			deps.Log.Error("insights digest: resolve seller", "sellerId", sellerID, "error", err)
			continue
		}
		if err := emailInsights(ctx, deps, seller.Email, seller.Name, leads, now); err != nil {
			deps.Log.EmailError(seller.Email, "insights digest", err)
			continue
		}
		processed += len(leads)
	}

	if len(unassigned) > 0 && deps.AdminEmail != "" {
		if err := emailInsights(ctx, deps, deps.AdminEmail, "Team", unassigned, now); err != nil {
			deps.Log.EmailError(deps.AdminEmail, "insights digest", err)
		} else {
			processed += len(unassigned)
		}
	}

	return processed, nil
}

func emailInsights(ctx context.Context, deps Deps, toEmail, recipientName string, leads []repository.Lead, now time.Time) error {
	result, err := deps.Classifier.BatchInsights(ctx, insightRequest(leads))
	if err != nil {
		return fmt.Errorf("batch insights: %w", err)
	}

	return deps.Sender.SendInsightsDigest(ctx, toEmail, email.InsightsDigestData{
		RecipientName:   recipientName,
		Period:          fmt.Sprintf("%s to %s", now.Add(-time.Hour).Format("15:04"), now.Format("15:04")),
		Summary:         result.Summary,
		KeyFindings:     result.KeyFindings,
		Trends:          result.Trends,
		Recommendations: result.Recommendations,
		Leads:           digestRows(leads),
	})
}

func insightRequest(leads []repository.Lead) classifier.InsightRequest {
	req := classifier.InsightRequest{
		Period:       "last hour",
		TotalLeads:   len(leads),
		StatusCounts: make(map[string]int),
		SourceCounts: make(map[string]int),
	}

	sum := 0
	for _, lead := range leads {
		sum += lead.AIScore
		req.StatusCounts[string(lead.Status)]++
		req.SourceCounts[lead.Source]++
	}
	if len(leads) > 0 {
		req.AverageScore = float64(sum) / float64(len(leads))
	}

	top := make([]repository.Lead, len(leads))
	copy(top, leads)
	sort.Slice(top, func(i, j int) bool { return top[i].PriorityScore > top[j].PriorityScore })
	if len(top) > 5 {
		top = top[:5]
	}
	for _, lead := range top {
		req.TopLeads = append(req.TopLeads, classifier.AssignmentLead{
			AIScore:       lead.AIScore,
			InterestLevel: string(lead.InterestLevel),
			Source:        lead.Source,
		})
	}
	return req
}

func digestRows(leads []repository.Lead) []email.DigestLead {
	rows := make([]email.DigestLead, 0, len(leads))
	for _, lead := range leads {
		row := email.DigestLead{
			Name:          lead.Name,
			Status:        string(lead.Status),
			PriorityScore: lead.PriorityScore,
		}
		if lead.NextFollowUp != nil {
			row.NextFollowUp = email.FormatDate(*lead.NextFollowUp)
		}
		if lead.LastContact != nil {
			row.LastContact = email.FormatDate(*lead.LastContact)
		}
		rows = append(rows, row)
	}
	return rows
}
