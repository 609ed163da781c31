package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"leadflow_backend/internal/leads/domain"
)

var (
	ErrNotFound         = errors.New("lead not found")
	ErrVersionConflict  = errors.New("lead version conflict")
	ErrDuplicateVisitor = errors.New("active lead already exists for visitor")
)

type Repository struct {
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

type Lead struct {
	ID                        uuid.UUID
	VisitorID                 *uuid.UUID
	Name                      string
	Email                     *string
	Phone                     *string
	Source                    string
	Status                    domain.Status
	PreviousStatus            *string
	InterestLevel             domain.InterestLevel
	AIScore                   int
	AIScoredAt                *time.Time
	PriorityScore             int
	ConversionProbability     int
	Insights                  []string
	RecommendedActions        []string
	Tags                      []string
	ScoreHistory              []domain.ScoreHistoryEntry
	AssignedSellerID          *uuid.UUID
	LastContact               *time.Time
	LastStatusChangeAt        *time.Time
	NextFollowUp              *time.Time
	ReminderEnabled           bool
	ReminderChannel           string
	ReminderSent              bool
	EmailNotificationsEnabled bool
	Version                   int
	CreatedAt                 time.Time
	UpdatedAt                 time.Time
}

func (l Lead) Reminder() domain.Reminder {
	return domain.Reminder{Enabled: l.ReminderEnabled, Channel: l.ReminderChannel, Sent: l.ReminderSent}
}

const leadColumns = `id, visitor_id, name, email, phone, source, status, previous_status, interest_level,
	ai_score, ai_scored_at, priority_score, conversion_probability, insights, recommended_actions, tags,
	score_history, assigned_seller_id, last_contact, last_status_change_at, next_follow_up,
	reminder_enabled, reminder_channel, reminder_sent, email_notifications_enabled, version,
	created_at, updated_at`

func scanLead(row pgx.Row) (Lead, error) {
	var lead Lead
	err := row.Scan(
		&lead.ID, &lead.VisitorID, &lead.Name, &lead.Email, &lead.Phone, &lead.Source,
		&lead.Status, &lead.PreviousStatus, &lead.InterestLevel,
		&lead.AIScore, &lead.AIScoredAt, &lead.PriorityScore, &lead.ConversionProbability,
		&lead.Insights, &lead.RecommendedActions, &lead.Tags,
		&lead.ScoreHistory, &lead.AssignedSellerID, &lead.LastContact, &lead.LastStatusChangeAt,
		&lead.NextFollowUp, &lead.ReminderEnabled, &lead.ReminderChannel, &lead.ReminderSent,
		&lead.EmailNotificationsEnabled, &lead.Version,
		&lead.CreatedAt, &lead.UpdatedAt,
	)
	return lead, err
}

type CreateLeadParams struct {
	VisitorID     *uuid.UUID
	Name          string
	Email         *string
	Phone         *string
	Source        string
	InterestLevel domain.InterestLevel
	Tags          []string
}

func (r *Repository) Create(ctx context.Context, params CreateLeadParams) (Lead, error) {
	if params.InterestLevel == "" {
		params.InterestLevel = domain.InterestMedium
	}
	if params.Tags == nil {
		params.Tags = []string{}
	}

	lead, err := scanLead(r.pool.QueryRow(ctx, `
		INSERT INTO leads (visitor_id, name, email, phone, source, status, interest_level, insights, recommended_actions, tags, score_history)
		VALUES ($1, $2, $3, $4, $5, $6, $7, '{}', '{}', $8, '[]')
		RETURNING `+leadColumns,
		params.VisitorID, params.Name, params.Email, params.Phone, params.Source,
		domain.StatusNew, params.InterestLevel, params.Tags,
	))
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return Lead{}, ErrDuplicateVisitor
		}
		return Lead{}, err
	}
	return lead, nil
}

func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (Lead, error) {
	lead, err := scanLead(r.pool.QueryRow(ctx, `
		SELECT `+leadColumns+` FROM leads WHERE id = $1
	`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Lead{}, ErrNotFound
	}
	return lead, err
}

// GetActiveByVisitor returns the non-terminal lead for a visitor, if any.
func (r *Repository) GetActiveByVisitor(ctx context.Context, visitorID uuid.UUID) (Lead, error) {
	lead, err := scanLead(r.pool.QueryRow(ctx, `
		SELECT `+leadColumns+`
		FROM leads
		WHERE visitor_id = $1 AND status NOT IN ('converted', 'lost')
		ORDER BY created_at DESC
		LIMIT 1
	`, visitorID))
	if errors.Is(err, pgx.ErrNoRows) {
		return Lead{}, ErrNotFound
	}
	return lead, err
}

type ListParams struct {
	Status           *domain.Status
	InterestLevel    *domain.InterestLevel
	AssignedSellerID *uuid.UUID
	Unassigned       bool
	MinPriority      *int
	Limit            int
	Offset           int
}

// List returns leads sorted by priority score, highest first.
func (r *Repository) List(ctx context.Context, params ListParams) ([]Lead, error) {
	where := []string{"1=1"}
	args := []interface{}{}
	argIdx := 1

	if params.Status != nil {
		where = append(where, fmt.Sprintf("status = $%d", argIdx))
		args = append(args, *params.Status)
		argIdx++
	}
	if params.InterestLevel != nil {
		where = append(where, fmt.Sprintf("interest_level = $%d", argIdx))
		args = append(args, *params.InterestLevel)
		argIdx++
	}
	if params.Unassigned {
		where = append(where, "assigned_seller_id IS NULL")
	} else if params.AssignedSellerID != nil {
		where = append(where, fmt.Sprintf("assigned_seller_id = $%d", argIdx))
		args = append(args, *params.AssignedSellerID)
		argIdx++
	}
	if params.MinPriority != nil {
		where = append(where, fmt.Sprintf("priority_score >= $%d", argIdx))
		args = append(args, *params.MinPriority)
		argIdx++
	}

	limit := params.Limit
	if limit <= 0 || limit > 200 {
		limit = 50
	}

	query := fmt.Sprintf(`
		SELECT %s FROM leads
		WHERE %s
		ORDER BY priority_score DESC, created_at DESC
		LIMIT $%d OFFSET $%d
	`, leadColumns, strings.Join(where, " AND "), argIdx, argIdx+1)
	args = append(args, limit, params.Offset)

	return r.queryLeads(ctx, query, args...)
}

// ListNonTerminal returns every lead that can still move through the pipeline.
func (r *Repository) ListNonTerminal(ctx context.Context) ([]Lead, error) {
	return r.queryLeads(ctx, `
		SELECT `+leadColumns+`
		FROM leads
		WHERE status NOT IN ('converted', 'lost')
		ORDER BY created_at ASC
	`)
}

// ListByVisitor returns every lead ever created for a visitor, oldest first.
func (r *Repository) ListByVisitor(ctx context.Context, visitorID uuid.UUID) ([]Lead, error) {
	return r.queryLeads(ctx, `
		SELECT `+leadColumns+`
		FROM leads
		WHERE visitor_id = $1
		ORDER BY created_at ASC
	`, visitorID)
}

// ListUnassignedAbove returns unassigned non-terminal leads at or above the
// priority threshold, highest priority first.
func (r *Repository) ListUnassignedAbove(ctx context.Context, threshold int) ([]Lead, error) {
	return r.queryLeads(ctx, `
		SELECT `+leadColumns+`
		FROM leads
		WHERE assigned_seller_id IS NULL
		  AND status NOT IN ('converted', 'lost')
		  AND priority_score >= $1
		ORDER BY priority_score DESC, created_at ASC
	`, threshold)
}

// ListStaleAIScores returns non-terminal leads whose AI score was last
// computed before the cutoff, or never computed at all.
func (r *Repository) ListStaleAIScores(ctx context.Context, cutoff time.Time) ([]Lead, error) {
	return r.queryLeads(ctx, `
		SELECT `+leadColumns+`
		FROM leads
		WHERE status NOT IN ('converted', 'lost')
		  AND (ai_scored_at IS NULL OR ai_scored_at < $1)
		ORDER BY ai_scored_at ASC NULLS FIRST
	`, cutoff)
}

// ListUpdatedSince returns leads touched after the given moment.
func (r *Repository) ListUpdatedSince(ctx context.Context, since time.Time) ([]Lead, error) {
	return r.queryLeads(ctx, `
		SELECT `+leadColumns+`
		FROM leads
		WHERE updated_at >= $1
		ORDER BY updated_at ASC
	`, since)
}

func (r *Repository) queryLeads(ctx context.Context, query string, args ...interface{}) ([]Lead, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	leads := make([]Lead, 0)
	for rows.Next() {
		lead, err := scanLead(rows)
		if err != nil {
			return nil, err
		}
		leads = append(leads, lead)
	}
	return leads, rows.Err()
}

type UpdateScoresParams struct {
	AIScore               int
	InterestLevel         domain.InterestLevel
	ConversionProbability int
	Insights              []string
	RecommendedActions    []string
	ScoreHistory          []domain.ScoreHistoryEntry
	PriorityScore         int
	ScoredAt              time.Time
}

// UpdateScores persists a scoring result. Score writes are not versioned:
// the scheduler is the only writer and the formula is idempotent over inputs.
func (r *Repository) UpdateScores(ctx context.Context, id uuid.UUID, params UpdateScoresParams) (Lead, error) {
	lead, err := scanLead(r.pool.QueryRow(ctx, `
		UPDATE leads SET
			ai_score = $2, interest_level = $3, conversion_probability = $4,
			insights = $5, recommended_actions = $6, score_history = $7,
			priority_score = $8, ai_scored_at = $9, updated_at = NOW()
		WHERE id = $1
		RETURNING `+leadColumns,
		id, params.AIScore, params.InterestLevel, params.ConversionProbability,
		params.Insights, params.RecommendedActions, params.ScoreHistory,
		params.PriorityScore, params.ScoredAt,
	))
	if errors.Is(err, pgx.ErrNoRows) {
		return Lead{}, ErrNotFound
	}
	return lead, err
}

// UpdatePriority rewrites only the priority score.
func (r *Repository) UpdatePriority(ctx context.Context, id uuid.UUID, priority int) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE leads SET priority_score = $2, updated_at = NOW() WHERE id = $1
	`, id, priority)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

type UpdateStatusParams struct {
	Status         domain.Status
	PreviousStatus domain.Status
	LastContact    *time.Time
	ChangedAt      time.Time
}

// UpdateStatus commits a status transition guarded by the version column.
func (r *Repository) UpdateStatus(ctx context.Context, id uuid.UUID, version int, params UpdateStatusParams) (Lead, error) {
	lead, err := scanLead(r.pool.QueryRow(ctx, `
		UPDATE leads SET
			status = $3, previous_status = $4, last_status_change_at = $5,
			last_contact = COALESCE($6, last_contact),
			version = version + 1, updated_at = NOW()
		WHERE id = $1 AND version = $2
		RETURNING `+leadColumns,
		id, version, params.Status, string(params.PreviousStatus), params.ChangedAt, params.LastContact,
	))
	if errors.Is(err, pgx.ErrNoRows) {
		return Lead{}, r.versionOrNotFound(ctx, id)
	}
	return lead, err
}

// UpdateAssignment commits a seller assignment guarded by the version column.
func (r *Repository) UpdateAssignment(ctx context.Context, id uuid.UUID, version int, sellerID *uuid.UUID) (Lead, error) {
	lead, err := scanLead(r.pool.QueryRow(ctx, `
		UPDATE leads SET assigned_seller_id = $3, version = version + 1, updated_at = NOW()
		WHERE id = $1 AND version = $2
		RETURNING `+leadColumns,
		id, version, sellerID,
	))
	if errors.Is(err, pgx.ErrNoRows) {
		return Lead{}, r.versionOrNotFound(ctx, id)
	}
	return lead, err
}

func (r *Repository) versionOrNotFound(ctx context.Context, id uuid.UUID) error {
	var exists bool
	if err := r.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM leads WHERE id = $1)`, id).Scan(&exists); err != nil {
		return err
	}
	if exists {
		return ErrVersionConflict
	}
	return ErrNotFound
}

type ScheduleFollowUpParams struct {
	NextFollowUp    time.Time
	ReminderEnabled bool
	ReminderChannel string
}

func (r *Repository) ScheduleFollowUp(ctx context.Context, id uuid.UUID, params ScheduleFollowUpParams) (Lead, error) {
	lead, err := scanLead(r.pool.QueryRow(ctx, `
		UPDATE leads SET
			next_follow_up = $2, reminder_enabled = $3, reminder_channel = $4,
			reminder_sent = false, updated_at = NOW()
		WHERE id = $1
		RETURNING `+leadColumns,
		id, params.NextFollowUp, params.ReminderEnabled, params.ReminderChannel,
	))
	if errors.Is(err, pgx.ErrNoRows) {
		return Lead{}, ErrNotFound
	}
	return lead, err
}

func (r *Repository) ClearFollowUp(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE leads SET
			next_follow_up = NULL, reminder_enabled = false, reminder_sent = false,
			updated_at = NOW()
		WHERE id = $1
	`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// MarkReminderSent flips the sent flag. Repeated calls leave the row
// unchanged, so a retried reminder batch never double counts.
func (r *Repository) MarkReminderSent(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE leads SET reminder_sent = true, updated_at = NOW()
		WHERE id = $1 AND reminder_enabled = true
	`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		var exists bool
		if err := r.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM leads WHERE id = $1)`, id).Scan(&exists); err != nil {
			return err
		}
		if !exists {
			return ErrNotFound
		}
	}
	return nil
}

func (r *Repository) UpdateLastContact(ctx context.Context, id uuid.UUID, at time.Time) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE leads SET last_contact = $2, updated_at = NOW() WHERE id = $1
	`, id, at)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
