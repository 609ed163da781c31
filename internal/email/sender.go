// Package email renders and delivers the engine's outbound mail: campaign
// sends, follow-up reminder digests, stale-lead reports, and the hourly
// insights digest.
package email

import (
	"context"
	"time"

	"leadflow_backend/platform/logger"
)

// Sender delivers rendered emails. Implementations must be safe for
// concurrent use; the campaign dispatcher fans out across goroutines.
type Sender interface {
	// SendCampaignEmail delivers an already personalized campaign body.
	SendCampaignEmail(ctx context.Context, toEmail, subject, htmlBody string) error
	// SendFollowUpDigest delivers the daily reminder digest for one seller
	// or the admin.
	SendFollowUpDigest(ctx context.Context, toEmail string, data FollowUpDigestData) error
	// SendStaleLeadReport delivers the weekly stale-lead report.
	SendStaleLeadReport(ctx context.Context, toEmail string, data StaleReportData) error
	// SendInsightsDigest delivers the hourly insights summary.
	SendInsightsDigest(ctx context.Context, toEmail string, data InsightsDigestData) error
}

// DigestLead is one lead row in a digest or report email.
type DigestLead struct {
	Name          string
	Status        string
	PriorityScore int
	NextFollowUp  string
	LastContact   string
}

// FollowUpDigestData feeds the reminder digest template.
type FollowUpDigestData struct {
	RecipientName string
	Date          string
	Leads         []DigestLead
}

// StaleReportData feeds the weekly stale-lead report template.
type StaleReportData struct {
	ThresholdDays int
	GeneratedAt   string
	Leads         []DigestLead
}

// InsightsDigestData feeds the hourly insights digest template.
type InsightsDigestData struct {
	RecipientName   string
	Period          string
	Summary         string
	KeyFindings     []string
	Trends          []string
	Recommendations []string
	Leads           []DigestLead
}

// FormatDate renders timestamps the way digest templates expect.
func FormatDate(t time.Time) string {
	return t.Format("Jan 2, 2006")
}

// DisabledSender drops all mail. Used when EMAIL_ENABLED is off so local
// environments never need SMTP.
type DisabledSender struct {
	log *logger.Logger
}

func NewDisabledSender(log *logger.Logger) *DisabledSender {
	return &DisabledSender{log: log}
}

func (s *DisabledSender) SendCampaignEmail(_ context.Context, toEmail, subject, _ string) error {
	s.log.Info("email disabled, dropping campaign email", "to", toEmail, "subject", subject)
	return nil
}

func (s *DisabledSender) SendFollowUpDigest(_ context.Context, toEmail string, _ FollowUpDigestData) error {
	s.log.Info("email disabled, dropping follow-up digest", "to", toEmail)
	return nil
}

func (s *DisabledSender) SendStaleLeadReport(_ context.Context, toEmail string, _ StaleReportData) error {
	s.log.Info("email disabled, dropping stale-lead report", "to", toEmail)
	return nil
}

func (s *DisabledSender) SendInsightsDigest(_ context.Context, toEmail string, _ InsightsDigestData) error {
	s.log.Info("email disabled, dropping insights digest", "to", toEmail)
	return nil
}
