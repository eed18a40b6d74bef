// Package quota decides whether a caller may start a chat request and records
// the requests it admits.
package quota

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gosuda/deepsearch/internal/domain"
)

// DefaultDailyLimit is the number of requests a non-admin user may make per
// calendar day.
const DefaultDailyLimit = 50

// ErrInvalidLimit is returned by NewGate for a non-positive limit.
var ErrInvalidLimit = errors.New("quota: daily limit must be positive")

// Decision is the outcome of Evaluate. RequestCount is nil for admins, whose
// usage is never counted.
type Decision struct {
	Allowed      bool
	Reason       string
	RequestCount *int
}

// Usage summarises a user's consumption for the current day.
type Usage struct {
	Limit     int
	Used      int
	Remaining int
	Admin     bool
	ResetsAt  time.Time
}

// Gate admits or rejects requests against a per-user daily limit.
type Gate struct {
	ledger domain.QuotaLedger
	admins domain.AdminDirectory
	limit  int
	now    func() time.Time
	loc    *time.Location
}

// Option configures a Gate.
type Option func(*Gate)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(g *Gate) { g.now = now }
}

// WithLocation sets the time zone whose midnight starts a quota day.
func WithLocation(loc *time.Location) Option {
	return func(g *Gate) {
		if loc != nil {
			g.loc = loc
		}
	}
}

// NewGate returns a Gate allowing limit requests per user per day. It fails
// with ErrInvalidLimit when limit is not positive.
func NewGate(ledger domain.QuotaLedger, admins domain.AdminDirectory, limit int, opts ...Option) (*Gate, error) {
	if limit <= 0 {
		return nil, ErrInvalidLimit
	}

	g := &Gate{
		ledger: ledger,
		admins: admins,
		limit:  limit,
		now:    time.Now,
		loc:    time.Local,
	}
	for _, opt := range opts {
		opt(g)
	}

	return g, nil
}

// Limit returns the configured daily limit.
func (g *Gate) Limit() int { return g.limit }

// Evaluate decides whether userID may proceed. It never writes to the ledger.
func (g *Gate) Evaluate(ctx context.Context, userID domain.UserID) (Decision, error) {
	admin, err := g.admins.IsAdmin(ctx, userID)
	if err != nil {
		return Decision{}, fmt.Errorf("Gate.Evaluate: admin lookup: %w", err)
	}
	if admin {
		return Decision{Allowed: true}, nil
	}

	count, err := g.ledger.CountSince(ctx, userID, StartOfDay(g.now(), g.loc))
	if err != nil {
		return Decision{}, fmt.Errorf("Gate.Evaluate: count: %w", err)
	}

	if count >= g.limit {
		return Decision{
			Allowed:      false,
			Reason:       fmt.Sprintf("Daily request limit of %d exceeded", g.limit),
			RequestCount: &count,
		}, nil
	}

	return Decision{Allowed: true, RequestCount: &count}, nil
}

// Record appends one ledger entry for an admitted request. Callers invoke it
// after an allowing Evaluate and before any orchestration begins.
func (g *Gate) Record(ctx context.Context, userID domain.UserID, endpoint string) error {
	rec := domain.NewQuotaRecord(userID, endpoint, g.now())
	if err := g.ledger.Insert(ctx, rec); err != nil {
		return fmt.Errorf("Gate.Record: %w", err)
	}
	return nil
}

// Status reports the user's usage for the current day. Admin usage is still
// counted here so operators can see it.
func (g *Gate) Status(ctx context.Context, userID domain.UserID) (Usage, error) {
	admin, err := g.admins.IsAdmin(ctx, userID)
	if err != nil {
		return Usage{}, fmt.Errorf("Gate.Status: admin lookup: %w", err)
	}

	now := g.now()
	start := StartOfDay(now, g.loc)

	used, err := g.ledger.CountSince(ctx, userID, start)
	if err != nil {
		return Usage{}, fmt.Errorf("Gate.Status: count: %w", err)
	}

	return Usage{
		Limit:     g.limit,
		Used:      used,
		Remaining: max(g.limit-used, 0),
		Admin:     admin,
		ResetsAt:  start.AddDate(0, 0, 1),
	}, nil
}

// StartOfDay returns local midnight of t's calendar day in loc.
func StartOfDay(t time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.Local
	}
	t = t.In(loc)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
}
