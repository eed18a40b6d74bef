package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/gosuda/deepsearch/internal/domain"
)

type UserRepo struct {
	pool *pgxpool.Pool
}

func NewUserRepo(pool *pgxpool.Pool) *UserRepo {
	return &UserRepo{pool: pool}
}

var _ domain.UserRepository = (*UserRepo)(nil)

// --- Users ---

// IsAdmin reports false for users the directory does not know.
func (r *UserRepo) IsAdmin(ctx context.Context, id domain.UserID) (bool, error) {
	var isAdmin bool

	err := r.pool.QueryRow(ctx,
		`SELECT is_admin FROM users WHERE id = $1`,
		string(id),
	).Scan(&isAdmin)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("userRepo.IsAdmin: %w: %w", domain.ErrStorage, err)
	}

	return isAdmin, nil
}

func (r *UserRepo) GetByID(ctx context.Context, id domain.UserID) (*domain.User, error) {
	var u domain.User
	var userID string
	var email *string

	err := r.pool.QueryRow(ctx,
		`SELECT id, email, name, is_admin, created_at FROM users WHERE id = $1`,
		string(id),
	).Scan(&userID, &email, &u.Name, &u.IsAdmin, &u.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("userRepo.GetByID: %w", domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("userRepo.GetByID: %w", err)
	}

	u.ID = domain.UserID(userID)
	u.Email = derefStr(email)

	return &u, nil
}

// --- API Keys ---

func (r *UserRepo) GetAPIKeyByPrefix(ctx context.Context, prefix string) (*domain.APIKey, error) {
	var key domain.APIKey
	var id uuid.UUID
	var userID string

	err := r.pool.QueryRow(ctx,
		`SELECT id, user_id, name, key_hash, prefix, last_used_at, expires_at, created_at
		 FROM api_keys WHERE prefix = $1`,
		prefix,
	).Scan(&id, &userID, &key.Name, &key.KeyHash, &key.Prefix,
		&key.LastUsedAt, &key.ExpiresAt, &key.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("userRepo.GetAPIKeyByPrefix: %w", domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("userRepo.GetAPIKeyByPrefix: %w", err)
	}

	key.ID = id.String()
	key.UserID = domain.UserID(userID)

	return &key, nil
}

func (r *UserRepo) UpdateAPIKeyLastUsed(ctx context.Context, id string) error {
	keyID, err := uuid.Parse(id)
	if err != nil {
		return fmt.Errorf("userRepo.UpdateAPIKeyLastUsed: %w", domain.ErrNotFound)
	}

	tag, err := r.pool.Exec(ctx,
		`UPDATE api_keys SET last_used_at = now() WHERE id = $1`,
		keyID,
	)
	if err != nil {
		return fmt.Errorf("userRepo.UpdateAPIKeyLastUsed: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("userRepo.UpdateAPIKeyLastUsed: %w", domain.ErrNotFound)
	}

	return nil
}

// --- Helpers ---

func derefStr(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
