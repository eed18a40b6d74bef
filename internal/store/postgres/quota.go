package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/gosuda/deepsearch/internal/domain"
)

// QuotaRepo is the Postgres-backed quota ledger over the user_requests table.
type QuotaRepo struct {
	pool *pgxpool.Pool
}

func NewQuotaRepo(pool *pgxpool.Pool) *QuotaRepo {
	return &QuotaRepo{pool: pool}
}

var _ domain.QuotaLedger = (*QuotaRepo)(nil)

func (r *QuotaRepo) CountSince(ctx context.Context, userID domain.UserID, cutoff time.Time) (int, error) {
	var count int

	err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM user_requests WHERE user_id = $1 AND requested_at >= $2`,
		string(userID), cutoff,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("quotaRepo.CountSince: %w: %w", domain.ErrStorage, err)
	}

	return count, nil
}

func (r *QuotaRepo) Insert(ctx context.Context, rec *domain.QuotaRecord) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO user_requests (id, user_id, endpoint, requested_at)
		 VALUES ($1, $2, $3, $4)`,
		rec.ID, string(rec.UserID), rec.Endpoint, rec.RequestedAt,
	)
	if err != nil {
		return fmt.Errorf("quotaRepo.Insert: %w: %w", domain.ErrStorage, err)
	}

	return nil
}
