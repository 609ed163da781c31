package email

import (
	"context"
	"fmt"
	"net"
	"time"

	gomail "github.com/wneessen/go-mail"

	"leadflow_backend/platform/config"
)

// SMTPSender delivers mail over a direct SMTP connection via go-mail.
type SMTPSender struct {
	host      string
	port      int
	username  string
	password  string
	fromName  string
	fromEmail string
}

func NewSMTPSender(cfg config.EmailConfig) *SMTPSender {
	return &SMTPSender{
		host:      cfg.GetSMTPHost(),
		port:      cfg.GetSMTPPort(),
		username:  cfg.GetSMTPUsername(),
		password:  cfg.GetSMTPPassword(),
		fromName:  cfg.GetEmailFromName(),
		fromEmail: cfg.GetEmailFromAddress(),
	}
}

func (s *SMTPSender) send(ctx context.Context, toEmail, subject, htmlContent string) error {
	msg := gomail.NewMsg()
	if err := msg.FromFormat(s.fromName, s.fromEmail); err != nil {
		return fmt.Errorf("smtp from: %w", err)
	}
	if err := msg.To(toEmail); err != nil {
		return fmt.Errorf("smtp to: %w", err)
	}
	msg.Subject(subject)
	msg.SetBodyString(gomail.TypeTextHTML, htmlContent)

	client, err := gomail.NewClient(s.host,
		gomail.WithPort(s.port),
		gomail.WithSMTPAuth(gomail.SMTPAuthPlain),
		gomail.WithUsername(s.username),
		gomail.WithPassword(s.password),
		gomail.WithTLSPortPolicy(gomail.TLSOpportunistic),
		gomail.WithTimeout(15*time.Second),
		gomail.WithDialContextFunc(func(dctx context.Context, _ string, addr string) (net.Conn, error) {
			return (&net.Dialer{}).DialContext(dctx, "tcp4", addr)
		}),
	)
	if err != nil {
		return fmt.Errorf("smtp client: %w", err)
	}

	if err := client.DialAndSendWithContext(ctx, msg); err != nil {
		return fmt.Errorf("smtp send: %w", err)
	}

	return nil
}

func (s *SMTPSender) SendCampaignEmail(ctx context.Context, toEmail, subject, htmlBody string) error {
	return s.send(ctx, toEmail, subject, htmlBody)
}

func (s *SMTPSender) SendFollowUpDigest(ctx context.Context, toEmail string, data FollowUpDigestData) error {
	content, err := renderEmailTemplate("followup_digest.html", subjectFollowUpDigest, data)
	if err != nil {
		return err
	}
	return s.send(ctx, toEmail, subjectFollowUpDigest, content)
}

func (s *SMTPSender) SendStaleLeadReport(ctx context.Context, toEmail string, data StaleReportData) error {
	subject := fmt.Sprintf(subjectStaleReportFmt, len(data.Leads))
	content, err := renderEmailTemplate("stale_report.html", subject, data)
	if err != nil {
		return err
	}
	return s.send(ctx, toEmail, subject, content)
}

func (s *SMTPSender) SendInsightsDigest(ctx context.Context, toEmail string, data InsightsDigestData) error {
	subject := fmt.Sprintf(subjectInsightsFmt, data.Period)
	content, err := renderEmailTemplate("insights_digest.html", subject, data)
	if err != nil {
		return err
	}
	return s.send(ctx, toEmail, subject, content)
}
