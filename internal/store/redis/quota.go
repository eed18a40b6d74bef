package redis

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/gosuda/deepsearch/internal/domain"
)

// DefaultQuotaRetention bounds how long records stay in a user's sorted set.
// It must exceed the longest possible calendar day.
const DefaultQuotaRetention = 48 * time.Hour

// QuotaLedger keeps one sorted set per user: member is the record id, score
// the request time in unix milliseconds.
type QuotaLedger struct {
	client    *redis.Client
	retention time.Duration
}

var _ domain.QuotaLedger = (*QuotaLedger)(nil)

func NewQuotaLedger(client *redis.Client, retention time.Duration) *QuotaLedger {
	if retention <= 0 {
		retention = DefaultQuotaRetention
	}
	return &QuotaLedger{client: client, retention: retention}
}

// QuotaKey returns the sorted set key holding userID's request records.
func QuotaKey(userID domain.UserID) string {
	return "quota:" + string(userID)
}

func (l *QuotaLedger) CountSince(ctx context.Context, userID domain.UserID, cutoff time.Time) (int, error) {
	n, err := l.client.ZCount(ctx, QuotaKey(userID), strconv.FormatInt(cutoff.UnixMilli(), 10), "+inf").Result()
	if err != nil {
		return 0, fmt.Errorf("redis.QuotaLedger.CountSince: %w: %w", domain.ErrStorage, err)
	}
	return int(n), nil
}

func (l *QuotaLedger) Insert(ctx context.Context, rec *domain.QuotaRecord) error {
	key := QuotaKey(rec.UserID)
	ms := rec.RequestedAt.UnixMilli()
	horizon := ms - l.retention.Milliseconds()

	pipe := l.client.TxPipeline()
	pipe.ZAdd(ctx, key, redis.Z{Score: float64(ms), Member: rec.ID.String()})
	pipe.ZRemRangeByScore(ctx, key, "-inf", "("+strconv.FormatInt(horizon, 10))
	pipe.Expire(ctx, key, l.retention)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis.QuotaLedger.Insert: %w: %w", domain.ErrStorage, err)
	}
	return nil
}
