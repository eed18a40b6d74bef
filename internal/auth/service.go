// Package auth resolves request credentials to a user identity.
package auth

import (
	"context"
	"fmt"
	"time"

	"github.com/gosuda/deepsearch/internal/domain"
)

// APIKeyStore is the subset of the user repository needed for API keys.
type APIKeyStore interface {
	GetAPIKeyByPrefix(ctx context.Context, prefix string) (*domain.APIKey, error)
	UpdateAPIKeyLastUsed(ctx context.Context, id string) error
}

// Service authenticates bearer tokens and API keys.
type Service struct {
	users     APIKeyStore
	jwtSecret string
	now       func() time.Time
}

// NewService creates a new auth service.
func NewService(users APIKeyStore, jwtSecret string) *Service {
	return &Service{
		users:     users,
		jwtSecret: jwtSecret,
		now:       time.Now,
	}
}

// AuthenticateToken validates a bearer JWT and returns its user.
func (s *Service) AuthenticateToken(_ context.Context, token string) (domain.UserID, error) {
	claims, err := ValidateToken(s.jwtSecret, token)
	if err != nil {
		return "", fmt.Errorf("auth.AuthenticateToken: %w", err)
	}
	return domain.UserID(claims.UserID), nil
}
