package middleware

import (
	"context"

	"github.com/gosuda/deepsearch/internal/domain"
)

type contextKey string

const ContextKeyUserID contextKey = "user_id"

// WithUserID attaches a verified user identity to ctx.
func WithUserID(ctx context.Context, id domain.UserID) context.Context {
	return context.WithValue(ctx, ContextKeyUserID, id)
}

func UserIDFromContext(ctx context.Context) (domain.UserID, bool) {
	v, ok := ctx.Value(ContextKeyUserID).(domain.UserID)
	return v, ok && v != ""
}
