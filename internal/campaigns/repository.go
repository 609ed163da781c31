// Package campaigns implements targeted email campaigns: targeting resolved
// to a recipient snapshot at creation, bounded-concurrency dispatch, and
// open/click tracking with campaign_recipients as the single tracking source
// of truth.
package campaigns

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	ErrNotFound     = errors.New("campaign not found")
	ErrInvalidState = errors.New("campaign is not in a valid state for this operation")
)

// Status is the campaign lifecycle state.
type Status string

const (
	StatusDraft     Status = "draft"
	StatusScheduled Status = "scheduled"
	StatusSending   Status = "sending"
	StatusSent      Status = "sent"
	StatusCancelled Status = "cancelled"
)

// Targeting is the audience snapshot resolved when the campaign is created.
// The recipient list is frozen then; later lead changes never alter it.
type Targeting struct {
	MinPriority    *int     `json:"minPriority,omitempty"`
	MaxPriority    *int     `json:"maxPriority,omitempty"`
	Statuses       []string `json:"statuses,omitempty"`
	InterestLevels []string `json:"interestLevels,omitempty"`
	Segment        string   `json:"segment,omitempty"`
}

// Named targeting segments.
const (
	SegmentCartAbandoners = "cart_abandoners"
	SegmentHighPriority   = "high_priority"
	SegmentStale          = "stale"
)

type Campaign struct {
	ID           uuid.UUID
	Name         string
	Subject      string
	BodyTemplate string
	Targeting    Targeting
	Status       Status
	ScheduledAt  *time.Time
	SentAt       *time.Time
	CreatedBy    *uuid.UUID
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Recipient is one campaign send target and its tracking counters.
type Recipient struct {
	ID          uuid.UUID
	CampaignID  uuid.UUID
	LeadID      uuid.UUID
	Email       string
	Sent        bool
	SentAt      *time.Time
	SendError   *string
	OpenCount   int
	ClickCount  int
	FirstOpenAt *time.Time
	LastOpenAt  *time.Time
	LastClickAt *time.Time
	Converted   bool
	ConvertedAt *time.Time
}

// EmailEvent is one row of the raw ordered tracking log. Opens and clicks
// without a campaign id land only here.
type EmailEvent struct {
	ID         uuid.UUID
	LeadID     uuid.UUID
	CampaignID *uuid.UUID
	Kind       string // sent, open, click
	IP         string
	UserAgent  string
	LinkURL    *string
	OccurredAt time.Time
}

type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const campaignColumns = `id, name, subject, body_template, targeting, status, scheduled_at, sent_at, created_by, created_at, updated_at`

func scanCampaign(row pgx.Row) (Campaign, error) {
	var c Campaign
	err := row.Scan(
		&c.ID, &c.Name, &c.Subject, &c.BodyTemplate, &c.Targeting, &c.Status,
		&c.ScheduledAt, &c.SentAt, &c.CreatedBy, &c.CreatedAt, &c.UpdatedAt,
	)
	return c, err
}

type CreateCampaignParams struct {
	Name         string
	Subject      string
	BodyTemplate string
	Targeting    Targeting
	ScheduledAt  *time.Time
	CreatedBy    *uuid.UUID
}

// RecipientSeed is a resolved targeting match to be frozen as a recipient.
type RecipientSeed struct {
	LeadID uuid.UUID
	Email  string
}

// CreateWithRecipients inserts the campaign and its frozen recipient list in
// one transaction. The caller guarantees the list is non-empty.
func (r *Repository) CreateWithRecipients(ctx context.Context, params CreateCampaignParams, seeds []RecipientSeed) (Campaign, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return Campaign{}, err
	}
	defer tx.Rollback(ctx)

	status := StatusDraft
	if params.ScheduledAt != nil {
		status = StatusScheduled
	}

	campaign, err := scanCampaign(tx.QueryRow(ctx, `
		INSERT INTO email_campaigns (name, subject, body_template, targeting, status, scheduled_at, created_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING `+campaignColumns,
		params.Name, params.Subject, params.BodyTemplate, params.Targeting, status, params.ScheduledAt, params.CreatedBy,
	))
	if err != nil {
		return Campaign{}, err
	}

	for _, seed := range seeds {
		if _, err := tx.Exec(ctx, `
			INSERT INTO campaign_recipients (campaign_id, lead_id, email)
			VALUES ($1, $2, $3)
		`, campaign.ID, seed.LeadID, seed.Email); err != nil {
			return Campaign{}, err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return Campaign{}, err
	}
	return campaign, nil
}

func (r *Repository) GetCampaign(ctx context.Context, id uuid.UUID) (Campaign, error) {
	campaign, err := scanCampaign(r.pool.QueryRow(ctx, `
		SELECT `+campaignColumns+` FROM email_campaigns WHERE id = $1
	`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Campaign{}, ErrNotFound
	}
	return campaign, err
}

func (r *Repository) ListCampaigns(ctx context.Context) ([]Campaign, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+campaignColumns+` FROM email_campaigns ORDER BY created_at DESC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	campaigns := make([]Campaign, 0)
	for rows.Next() {
		campaign, err := scanCampaign(rows)
		if err != nil {
			return nil, err
		}
		campaigns = append(campaigns, campaign)
	}
	return campaigns, rows.Err()
}

// ListDueScheduled returns scheduled campaigns whose send time has arrived.
func (r *Repository) ListDueScheduled(ctx context.Context, now time.Time) ([]Campaign, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+campaignColumns+`
		FROM email_campaigns
		WHERE status = $1 AND scheduled_at <= $2
		ORDER BY scheduled_at ASC
	`, StatusScheduled, now)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	campaigns := make([]Campaign, 0)
	for rows.Next() {
		campaign, err := scanCampaign(rows)
		if err != nil {
			return nil, err
		}
		campaigns = append(campaigns, campaign)
	}
	return campaigns, rows.Err()
}

// TransitionStatus moves the campaign between states, enforcing the allowed
// source states at the storage level so concurrent operators cannot race a
// cancel against a send.
func (r *Repository) TransitionStatus(ctx context.Context, id uuid.UUID, from []Status, to Status, sentAt *time.Time) (Campaign, error) {
	fromStrings := make([]string, len(from))
	for i, s := range from {
		fromStrings[i] = string(s)
	}

	campaign, err := scanCampaign(r.pool.QueryRow(ctx, `
		UPDATE email_campaigns
		SET status = $2, sent_at = COALESCE($3, sent_at), updated_at = NOW()
		WHERE id = $1 AND status = ANY($4)
		RETURNING `+campaignColumns,
		id, to, sentAt, fromStrings,
	))
	if errors.Is(err, pgx.ErrNoRows) {
		if _, getErr := r.GetCampaign(ctx, id); getErr != nil {
			return Campaign{}, getErr
		}
		return Campaign{}, ErrInvalidState
	}
	return campaign, err
}

const recipientColumns = `id, campaign_id, lead_id, email, sent, sent_at, send_error,
	open_count, click_count, first_open_at, last_open_at, last_click_at, converted, converted_at`

func scanRecipient(row pgx.Row) (Recipient, error) {
	var rec Recipient
	err := row.Scan(
		&rec.ID, &rec.CampaignID, &rec.LeadID, &rec.Email, &rec.Sent, &rec.SentAt, &rec.SendError,
		&rec.OpenCount, &rec.ClickCount, &rec.FirstOpenAt, &rec.LastOpenAt, &rec.LastClickAt,
		&rec.Converted, &rec.ConvertedAt,
	)
	return rec, err
}

func (r *Repository) ListRecipients(ctx context.Context, campaignID uuid.UUID) ([]Recipient, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+recipientColumns+`
		FROM campaign_recipients
		WHERE campaign_id = $1
		ORDER BY email ASC
	`, campaignID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	recipients := make([]Recipient, 0)
	for rows.Next() {
		rec, err := scanRecipient(rows)
		if err != nil {
			return nil, err
		}
		recipients = append(recipients, rec)
	}
	return recipients, rows.Err()
}

// MarkRecipientSent records the per-recipient outcome of a dispatch attempt.
func (r *Repository) MarkRecipientSent(ctx context.Context, recipientID uuid.UUID, sendError *string, at time.Time) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE campaign_recipients
		SET sent = $2, sent_at = $3, send_error = $4
		WHERE id = $1
	`, recipientID, sendError == nil, at, sendError)
	return err
}

// RecordOpen bumps the open counters on the recipient row.
func (r *Repository) RecordOpen(ctx context.Context, leadID, campaignID uuid.UUID, at time.Time) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE campaign_recipients
		SET open_count = open_count + 1,
			first_open_at = COALESCE(first_open_at, $3),
			last_open_at = $3
		WHERE campaign_id = $1 AND lead_id = $2
	`, campaignID, leadID, at)
	return err
}

// RecordClick bumps the click counter on the recipient row.
func (r *Repository) RecordClick(ctx context.Context, leadID, campaignID uuid.UUID, at time.Time) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE campaign_recipients
		SET click_count = click_count + 1, last_click_at = $3
		WHERE campaign_id = $1 AND lead_id = $2
	`, campaignID, leadID, at)
	return err
}

// InsertEmailEvent appends one row to the raw tracking log.
func (r *Repository) InsertEmailEvent(ctx context.Context, event EmailEvent) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO email_events (lead_id, campaign_id, kind, ip, user_agent, link_url, occurred_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, event.LeadID, event.CampaignID, event.Kind, event.IP, event.UserAgent, event.LinkURL, event.OccurredAt)
	return err
}

// LatestSentRecipient returns the lead's most recent successfully sent
// recipient row before the given moment. Used for conversion attribution.
func (r *Repository) LatestSentRecipient(ctx context.Context, leadID uuid.UUID, before time.Time) (Recipient, error) {
	rec, err := scanRecipient(r.pool.QueryRow(ctx, `
		SELECT `+recipientColumns+`
		FROM campaign_recipients
		WHERE lead_id = $1 AND sent = true AND sent_at <= $2
		ORDER BY sent_at DESC
		LIMIT 1
	`, leadID, before))
	if errors.Is(err, pgx.ErrNoRows) {
		return Recipient{}, ErrNotFound
	}
	return rec, err
}

// MarkRecipientConverted flags the recipient row as converted.
func (r *Repository) MarkRecipientConverted(ctx context.Context, recipientID uuid.UUID, at time.Time) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE campaign_recipients
		SET converted = true, converted_at = COALESCE(converted_at, $2)
		WHERE id = $1
	`, recipientID, at)
	return err
}

// Metrics is the campaign rollup recomputed from recipient rows on demand.
type Metrics struct {
	Total      int `json:"total"`
	Sent       int `json:"sent"`
	Failed     int `json:"failed"`
	Opened     int `json:"opened"`
	Clicked    int `json:"clicked"`
	Converted  int `json:"converted"`
	OpenCount  int `json:"openCount"`
	ClickCount int `json:"clickCount"`
}

func (r *Repository) CampaignMetrics(ctx context.Context, campaignID uuid.UUID) (Metrics, error) {
	var m Metrics
	err := r.pool.QueryRow(ctx, `
		SELECT
			COUNT(*),
			COUNT(*) FILTER (WHERE sent),
			COUNT(*) FILTER (WHERE send_error IS NOT NULL),
			COUNT(*) FILTER (WHERE open_count > 0),
			COUNT(*) FILTER (WHERE click_count > 0),
			COUNT(*) FILTER (WHERE converted),
			COALESCE(SUM(open_count), 0),
			COALESCE(SUM(click_count), 0)
		FROM campaign_recipients
		WHERE campaign_id = $1
	`, campaignID).Scan(&m.Total, &m.Sent, &m.Failed, &m.Opened, &m.Clicked, &m.Converted, &m.OpenCount, &m.ClickCount)
	return m, err
}

// LeadEmailEngagement is the lead-centric view derived from recipient rows.
type LeadEmailEngagement struct {
	CampaignID   uuid.UUID  `json:"campaignId"`
	CampaignName string     `json:"campaignName"`
	SentAt       *time.Time `json:"sentAt,omitempty"`
	OpenCount    int        `json:"openCount"`
	ClickCount   int        `json:"clickCount"`
	LastOpenAt   *time.Time `json:"lastOpenAt,omitempty"`
	LastClickAt  *time.Time `json:"lastClickAt,omitempty"`
	Converted    bool       `json:"converted"`
}

// LeadEmailView derives the lead's campaign engagement from recipient rows.
func (r *Repository) LeadEmailView(ctx context.Context, leadID uuid.UUID) ([]LeadEmailEngagement, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT cr.campaign_id, c.name, cr.sent_at, cr.open_count, cr.click_count,
			cr.last_open_at, cr.last_click_at, cr.converted
		FROM campaign_recipients cr
		JOIN email_campaigns c ON c.id = cr.campaign_id
		WHERE cr.lead_id = $1
		ORDER BY cr.sent_at DESC NULLS LAST
	`, leadID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	views := make([]LeadEmailEngagement, 0)
	for rows.Next() {
		var v LeadEmailEngagement
		if err := rows.Scan(
			&v.CampaignID, &v.CampaignName, &v.SentAt, &v.OpenCount, &v.ClickCount,
			&v.LastOpenAt, &v.LastClickAt, &v.Converted,
		); err != nil {
			return nil, err
		}
		views = append(views, v)
	}
	return views, rows.Err()
}

// ResolveTargeting finds the leads matching the targeting rules right now.
// Only leads with an email address and notifications enabled qualify.
func (r *Repository) ResolveTargeting(ctx context.Context, targeting Targeting) ([]RecipientSeed, error) {
	query := `
		SELECT l.id, l.email
		FROM leads l
		WHERE l.email IS NOT NULL
		  AND l.email_notifications_enabled = true
		  AND l.status NOT IN ('converted', 'lost')
	`
	args := []interface{}{}
	argIdx := 1

	if targeting.MinPriority != nil {
		query += fmt.Sprintf(" AND l.priority_score >= $%d", argIdx)
		args = append(args, *targeting.MinPriority)
		argIdx++
	}
	if targeting.MaxPriority != nil {
		query += fmt.Sprintf(" AND l.priority_score <= $%d", argIdx)
		args = append(args, *targeting.MaxPriority)
		argIdx++
	}
	if len(targeting.Statuses) > 0 {
		query += fmt.Sprintf(" AND l.status = ANY($%d)", argIdx)
		args = append(args, targeting.Statuses)
		argIdx++
	}
	if len(targeting.InterestLevels) > 0 {
		query += fmt.Sprintf(" AND l.interest_level = ANY($%d)", argIdx)
		args = append(args, targeting.InterestLevels)
		argIdx++
	}

	switch targeting.Segment {
	case SegmentCartAbandoners:
		query += ` AND l.visitor_id IN (
			SELECT visitor_id FROM activity_events
			WHERE event_type = 'cart_add' AND occurred_at >= NOW() - INTERVAL '7 days'
			EXCEPT
			SELECT visitor_id FROM activity_events
			WHERE event_type = 'conversion' AND occurred_at >= NOW() - INTERVAL '7 days'
		)`
	case SegmentHighPriority:
		query += ` AND l.priority_score >= 70`
	case SegmentStale:
		query += ` AND (l.last_contact IS NULL OR l.last_contact < NOW() - INTERVAL '14 days')`
	}

	query += ` ORDER BY l.priority_score DESC`

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	seeds := make([]RecipientSeed, 0)
	for rows.Next() {
		var seed RecipientSeed
		if err := rows.Scan(&seed.LeadID, &seed.Email); err != nil {
			return nil, err
		}
		seeds = append(seeds, seed)
	}
	return seeds, rows.Err()
}
