package domain

import (
	"context"
	"time"
)

// UserID is the opaque identity handle produced by the identity resolver.
// It carries no structure beyond equality.
type UserID string

func (id UserID) String() string { return string(id) }

type User struct {
	ID        UserID
	Email     string
	Name      string
	IsAdmin   bool
	CreatedAt time.Time
}

type APIKey struct {
	ID         string
	UserID     UserID
	Name       string
	KeyHash    string // SHA-256
	Prefix     string // first 8 chars for identification
	LastUsedAt *time.Time
	ExpiresAt  *time.Time
	CreatedAt  time.Time
}

// AdminDirectory answers whether a user is exempt from quota checks.
type AdminDirectory interface {
	IsAdmin(ctx context.Context, userID UserID) (bool, error)
}

type UserRepository interface {
	AdminDirectory

	GetByID(ctx context.Context, id UserID) (*User, error)

	// API keys
	GetAPIKeyByPrefix(ctx context.Context, prefix string) (*APIKey, error)
	UpdateAPIKeyLastUsed(ctx context.Context, id string) error
}
