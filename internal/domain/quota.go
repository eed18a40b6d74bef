package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// QuotaRecord is the append-only fact that a user was admitted to an endpoint.
type QuotaRecord struct {
	ID          uuid.UUID
	UserID      UserID
	Endpoint    string
	RequestedAt time.Time
}

// NewQuotaRecord stamps a fresh record for userID at now.
func NewQuotaRecord(userID UserID, endpoint string, now time.Time) *QuotaRecord {
	return &QuotaRecord{
		ID:          uuid.New(),
		UserID:      userID,
		Endpoint:    endpoint,
		RequestedAt: now,
	}
}

// QuotaLedger stores request records and counts them per user.
//
// The ledger performs no clock logic: callers supply the cutoff. CountSince is
// inclusive of cutoff. Count and Insert are independent operations, so two
// concurrent requests from the same user may both observe the same count.
type QuotaLedger interface {
	CountSince(ctx context.Context, userID UserID, cutoff time.Time) (int, error)
	Insert(ctx context.Context, record *QuotaRecord) error
}
