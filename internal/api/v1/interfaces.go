package v1

import (
	"context"

	"github.com/gosuda/deepsearch/internal/chat"
	"github.com/gosuda/deepsearch/internal/domain"
	"github.com/gosuda/deepsearch/internal/quota"
)

// QuotaGate abstracts admission control for handler testing.
// *quota.Gate satisfies this interface.
type QuotaGate interface {
	Evaluate(ctx context.Context, userID domain.UserID) (quota.Decision, error)
	Record(ctx context.Context, userID domain.UserID, endpoint string) error
	Status(ctx context.Context, userID domain.UserID) (quota.Usage, error)
}

// ChatRunner abstracts the orchestration loop for handler testing.
// *chat.Orchestrator satisfies this interface.
type ChatRunner interface {
	Run(ctx context.Context, msgs []domain.Message, sink chat.Sink) chat.Result
}

// ToolCatalog lists the tools exposed to the model.
// *tool.Registry satisfies this interface.
type ToolCatalog interface {
	Specs() []domain.ToolSpec
}

var (
	_ QuotaGate  = (*quota.Gate)(nil)
	_ ChatRunner = (*chat.Orchestrator)(nil)
)

// UserDirectory looks up user profiles.
// domain.UserRepository satisfies this interface.
type UserDirectory interface {
	GetByID(ctx context.Context, id domain.UserID) (*domain.User, error)
}
