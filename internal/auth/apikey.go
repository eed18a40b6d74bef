package auth

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/gosuda/deepsearch/internal/domain"
)

// ErrInvalidAPIKey is returned when an API key is not found or the hash does not match.
var ErrInvalidAPIKey = fmt.Errorf("auth: invalid API key: %w", domain.ErrUnauthorized)

const (
	apiKeyPrefix    = "dsk_"
	apiKeyRandLen   = 16 // 16 bytes = 32 hex chars
	apiKeyPrefixLen = 8  // first 8 chars of the full key used for lookup
)

// NewAPIKey is a freshly generated key. Raw is shown to the user once; only
// Hash and Prefix are stored.
type NewAPIKey struct {
	Raw    string
	Hash   string
	Prefix string
}

// GenerateAPIKey creates a random key. Key format: "dsk_" + 32 random hex chars.
func GenerateAPIKey() (NewAPIKey, error) {
	raw := make([]byte, apiKeyRandLen)
	if _, err := rand.Read(raw); err != nil {
		return NewAPIKey{}, fmt.Errorf("auth.GenerateAPIKey: %w", err)
	}

	rawKey := apiKeyPrefix + hex.EncodeToString(raw)

	return NewAPIKey{
		Raw:    rawKey,
		Hash:   HashAPIKey(rawKey),
		Prefix: rawKey[:apiKeyPrefixLen],
	}, nil
}

// HashAPIKey returns the hex SHA-256 of a raw key.
func HashAPIKey(rawKey string) string {
	hash := sha256.Sum256([]byte(rawKey))
	return hex.EncodeToString(hash[:])
}

// AuthenticateAPIKey checks an API key by looking up the prefix (first 8
// chars) and comparing the SHA-256 hash.
func (s *Service) AuthenticateAPIKey(ctx context.Context, rawKey string) (domain.UserID, error) {
	if len(rawKey) < apiKeyPrefixLen {
		return "", fmt.Errorf("auth.AuthenticateAPIKey: %w", ErrInvalidAPIKey)
	}

	prefix := rawKey[:apiKeyPrefixLen]

	apiKey, err := s.users.GetAPIKeyByPrefix(ctx, prefix)
	if err != nil {
		return "", fmt.Errorf("auth.AuthenticateAPIKey: %w", ErrInvalidAPIKey)
	}

	if apiKey.KeyHash != HashAPIKey(rawKey) {
		return "", fmt.Errorf("auth.AuthenticateAPIKey: %w", ErrInvalidAPIKey)
	}

	if apiKeyExpired(apiKey.ExpiresAt, s.now()) {
		return "", fmt.Errorf("auth.AuthenticateAPIKey: key expired: %w", ErrInvalidAPIKey)
	}

	// Update last used timestamp (fire and forget).
	if updateErr := s.users.UpdateAPIKeyLastUsed(ctx, apiKey.ID); updateErr != nil {
		log.Warn().Err(updateErr).Str("api_key_id", apiKey.ID).Msg("auth.AuthenticateAPIKey: failed to update last_used_at")
	}

	return apiKey.UserID, nil
}

func apiKeyExpired(expiresAt *time.Time, now time.Time) bool {
	return expiresAt != nil && expiresAt.Before(now)
}
