package activity

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// CartStore writes to the storefront's shopping_carts collaborator table.
// The engine only marks carts abandoned; the storefront owns everything
// else about them.
type CartStore struct {
	pool *pgxpool.Pool
}

func NewCartStore(pool *pgxpool.Pool) *CartStore {
	return &CartStore{pool: pool}
}

// CleanupAbandoned marks active carts untouched since the cutoff as
// abandoned and returns how many were flagged.
func (s *CartStore) CleanupAbandoned(ctx context.Context, cutoff time.Time) (int, error) {
	tag, err := s.pool.Exec(ctx, `
		UPDATE shopping_carts
		SET status = 'abandoned', updated_at = NOW()
		WHERE status = 'active' AND updated_at < $1
	`, cutoff)
	if err != nil {
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}
