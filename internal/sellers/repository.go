// Package sellers manages the seller roster and per-period performance
// records used by the assignment coordinator.
package sellers

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var ErrNotFound = errors.New("seller not found")

// DefaultPerformanceScore is assumed for sellers without a record in the
// current period.
const DefaultPerformanceScore = 50

type Seller struct {
	ID                 uuid.UUID
	Name               string
	Email              string
	Active             bool
	Expertise          string
	AvgResponseMinutes int
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// Performance is one seller's counters for one calendar month.
type Performance struct {
	ID               uuid.UUID
	SellerID         uuid.UUID
	Period           string // YYYY-MM
	LeadsAssigned    int
	LeadsContacted   int
	LeadsQualified   int
	ProposalsSent    int
	Closes           int
	RevenueCents     int64
	PerformanceScore int
	Strengths        []string
	ImprovementAreas []string
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// PeriodOf formats a moment as the performance period key.
func PeriodOf(t time.Time) string {
	return t.UTC().Format("2006-01")
}

type Repository struct {
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const sellerColumns = `id, name, email, active, expertise, avg_response_minutes, created_at, updated_at`

func scanSeller(row pgx.Row) (Seller, error) {
	var s Seller
	err := row.Scan(&s.ID, &s.Name, &s.Email, &s.Active, &s.Expertise, &s.AvgResponseMinutes, &s.CreatedAt, &s.UpdatedAt)
	return s, err
}

func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (Seller, error) {
	seller, err := scanSeller(r.pool.QueryRow(ctx, `
		SELECT `+sellerColumns+` FROM sellers WHERE id = $1
	`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Seller{}, ErrNotFound
	}
	return seller, err
}

func (r *Repository) ListActive(ctx context.Context) ([]Seller, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+sellerColumns+` FROM sellers WHERE active = true ORDER BY name ASC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	sellers := make([]Seller, 0)
	for rows.Next() {
		seller, err := scanSeller(rows)
		if err != nil {
			return nil, err
		}
		sellers = append(sellers, seller)
	}
	return sellers, rows.Err()
}

// ActiveLeadCounts returns, per seller, how many non-terminal leads are
// currently assigned to them.
func (r *Repository) ActiveLeadCounts(ctx context.Context) (map[uuid.UUID]int, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT assigned_seller_id, COUNT(*)
		FROM leads
		WHERE assigned_seller_id IS NOT NULL AND status NOT IN ('converted', 'lost')
		GROUP BY assigned_seller_id
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[uuid.UUID]int)
	for rows.Next() {
		var sellerID uuid.UUID
		var count int
		if err := rows.Scan(&sellerID, &count); err != nil {
			return nil, err
		}
		counts[sellerID] = count
	}
	return counts, rows.Err()
}

const performanceColumns = `id, seller_id, period, leads_assigned, leads_contacted, leads_qualified,
	proposals_sent, closes, revenue_cents, performance_score, strengths, improvement_areas,
	created_at, updated_at`

func scanPerformance(row pgx.Row) (Performance, error) {
	var p Performance
	err := row.Scan(
		&p.ID, &p.SellerID, &p.Period, &p.LeadsAssigned, &p.LeadsContacted, &p.LeadsQualified,
		&p.ProposalsSent, &p.Closes, &p.RevenueCents, &p.PerformanceScore, &p.Strengths, &p.ImprovementAreas,
		&p.CreatedAt, &p.UpdatedAt,
	)
	return p, err
}

func (r *Repository) GetPerformance(ctx context.Context, sellerID uuid.UUID, period string) (Performance, error) {
	perf, err := scanPerformance(r.pool.QueryRow(ctx, `
		SELECT `+performanceColumns+`
		FROM seller_performance
		WHERE seller_id = $1 AND period = $2
	`, sellerID, period))
	if errors.Is(err, pgx.ErrNoRows) {
		return Performance{}, ErrNotFound
	}
	return perf, err
}

// IncrementAssigned bumps the assignment counter for the period, creating
// the record lazily on the first assignment of the month.
func (r *Repository) IncrementAssigned(ctx context.Context, sellerID uuid.UUID, period string) (Performance, error) {
	return scanPerformance(r.pool.QueryRow(ctx, `
		INSERT INTO seller_performance (seller_id, period, leads_assigned, performance_score, strengths, improvement_areas)
		VALUES ($1, $2, 1, $3, '{}', '{}')
		ON CONFLICT (seller_id, period) DO UPDATE
			SET leads_assigned = seller_performance.leads_assigned + 1, updated_at = NOW()
		RETURNING `+performanceColumns,
		sellerID, period, DefaultPerformanceScore,
	))
}

// IncrementCounter bumps one of the pipeline counters for the period. The
// column name must be one of the fixed counter columns; callers pass
// constants, never user input.
func (r *Repository) IncrementCounter(ctx context.Context, sellerID uuid.UUID, period, column string, revenueCents int64) error {
	allowed := map[string]bool{
		"leads_contacted": true,
		"leads_qualified": true,
		"proposals_sent":  true,
		"closes":          true,
	}
	if !allowed[column] {
		return errors.New("unknown performance counter " + column)
	}

	_, err := r.pool.Exec(ctx, `
		INSERT INTO seller_performance (seller_id, period, `+column+`, revenue_cents, performance_score, strengths, improvement_areas)
		VALUES ($1, $2, 1, $3, $4, '{}', '{}')
		ON CONFLICT (seller_id, period) DO UPDATE SET
			`+column+` = seller_performance.`+column+` + 1,
			revenue_cents = seller_performance.revenue_cents + $3,
			updated_at = NOW()
	`, sellerID, period, revenueCents, DefaultPerformanceScore)
	return err
}

// ListPerformance returns the roster with the period's performance record
// joined in, absent records as zero rows with the default score.
func (r *Repository) ListPerformance(ctx context.Context, period string) ([]SellerPerformanceView, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT s.id, s.name, s.email, s.active, s.expertise, s.avg_response_minutes,
			COALESCE(p.leads_assigned, 0), COALESCE(p.leads_contacted, 0), COALESCE(p.leads_qualified, 0),
			COALESCE(p.proposals_sent, 0), COALESCE(p.closes, 0), COALESCE(p.revenue_cents, 0),
			COALESCE(p.performance_score, $2)
		FROM sellers s
		LEFT JOIN seller_performance p ON p.seller_id = s.id AND p.period = $1
		WHERE s.active = true
		ORDER BY COALESCE(p.performance_score, $2) DESC, s.name ASC
	`, period, DefaultPerformanceScore)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	views := make([]SellerPerformanceView, 0)
	for rows.Next() {
		var v SellerPerformanceView
		if err := rows.Scan(
			&v.SellerID, &v.Name, &v.Email, &v.Active, &v.Expertise, &v.AvgResponseMinutes,
			&v.LeadsAssigned, &v.LeadsContacted, &v.LeadsQualified,
			&v.ProposalsSent, &v.Closes, &v.RevenueCents, &v.PerformanceScore,
		); err != nil {
			return nil, err
		}
		views = append(views, v)
	}
	return views, rows.Err()
}

// SellerPerformanceView is the roster row with period counters folded in.
type SellerPerformanceView struct {
	SellerID           uuid.UUID
	Name               string
	Email              string
	Active             bool
	Expertise          string
	AvgResponseMinutes int
	LeadsAssigned      int
	LeadsContacted     int
	LeadsQualified     int
	ProposalsSent      int
	Closes             int
	RevenueCents       int64
	PerformanceScore   int
}
