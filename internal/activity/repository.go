package activity

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository reads the Activity Ledger and the visitor's commercial history.
type Repository struct {
	pool *pgxpool.Pool
}

// New creates a new activity repository.
func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// ListByVisitor returns ledger events for a visitor since the given time,
// oldest first. Events with payloads that no longer decode are skipped; the
// ledger is external and a single bad record must not break aggregation.
func (r *Repository) ListByVisitor(ctx context.Context, visitorID uuid.UUID, since time.Time) ([]Event, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, visitor_id, event_type, payload, occurred_at
		FROM activity_events
		WHERE visitor_id = $1 AND occurred_at >= $2
		ORDER BY occurred_at ASC
	`, visitorID, since)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	events := make([]Event, 0)
	for rows.Next() {
		var event Event
		var eventType string
		var raw json.RawMessage
		if err := rows.Scan(&event.ID, &event.VisitorID, &eventType, &raw, &event.OccurredAt); err != nil {
			return nil, err
		}

		event.Type = EventType(eventType)
		event.RawPayload = raw
		payload, err := DecodePayload(event.Type, raw)
		if err != nil {
			continue
		}
		event.Payload = payload

		events = append(events, event)
	}

	return events, rows.Err()
}

// CurrentCartSize derives the visitor's cart item count from the ledger:
// cart_add quantities minus cart_remove quantities, floored at zero.
func (r *Repository) CurrentCartSize(ctx context.Context, visitorID uuid.UUID) (int, error) {
	var size int
	err := r.pool.QueryRow(ctx, `
		SELECT GREATEST(0, COALESCE(SUM(
			CASE event_type
				WHEN 'cart_add' THEN COALESCE((payload->>'quantity')::int, 1)
				WHEN 'cart_remove' THEN -COALESCE((payload->>'quantity')::int, 1)
				ELSE 0
			END
		), 0))
		FROM activity_events
		WHERE visitor_id = $1
	`, visitorID).Scan(&size)
	return size, err
}

// VisitorHistory summarizes a visitor's commercial track record for the
// classifier context document.
type VisitorHistory struct {
	TotalOrders      int
	TotalSpentCents  int64
	TestCount        int
	ActivityCount    int
	LastActivityType string
	LastActivityData json.RawMessage
}

// GetVisitorHistory reads order and test aggregates plus the most recent
// ledger event for a visitor. The orders and test tables are owned by the
// storefront; this is a read-only view over them.
func (r *Repository) GetVisitorHistory(ctx context.Context, visitorID uuid.UUID) (VisitorHistory, error) {
	var history VisitorHistory
	err := r.pool.QueryRow(ctx, `
		SELECT
			(SELECT COUNT(*) FROM orders WHERE visitor_id = $1),
			(SELECT COALESCE(SUM(total_cents), 0) FROM orders WHERE visitor_id = $1),
			(SELECT COUNT(*) FROM activity_events WHERE visitor_id = $1 AND event_type = 'test_completed'),
			(SELECT COUNT(*) FROM activity_events WHERE visitor_id = $1)
	`, visitorID).Scan(
		&history.TotalOrders,
		&history.TotalSpentCents,
		&history.TestCount,
		&history.ActivityCount,
	)
	if err != nil {
		return VisitorHistory{}, err
	}

	err = r.pool.QueryRow(ctx, `
		SELECT event_type, payload
		FROM activity_events
		WHERE visitor_id = $1
		ORDER BY occurred_at DESC
		LIMIT 1
	`, visitorID).Scan(&history.LastActivityType, &history.LastActivityData)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return VisitorHistory{}, err
	}

	return history, nil
}
