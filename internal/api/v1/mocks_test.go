package v1_test

import (
	"context"
	"sync"

	"github.com/gosuda/deepsearch/internal/chat"
	"github.com/gosuda/deepsearch/internal/domain"
	"github.com/gosuda/deepsearch/internal/quota"
	"github.com/gosuda/deepsearch/internal/server/middleware"
)

// ---------------------------------------------------------------------------
// Context helpers
// ---------------------------------------------------------------------------

func userCtx(id domain.UserID) context.Context {
	return middleware.WithUserID(context.Background(), id)
}

// ---------------------------------------------------------------------------
// Mock QuotaGate
// ---------------------------------------------------------------------------

type mockGate struct {
	evaluateFunc func(ctx context.Context, userID domain.UserID) (quota.Decision, error)
	recordFunc   func(ctx context.Context, userID domain.UserID, endpoint string) error
	statusFunc   func(ctx context.Context, userID domain.UserID) (quota.Usage, error)
}

func (m *mockGate) Evaluate(ctx context.Context, userID domain.UserID) (quota.Decision, error) {
	return m.evaluateFunc(ctx, userID)
}

func (m *mockGate) Record(ctx context.Context, userID domain.UserID, endpoint string) error {
	return m.recordFunc(ctx, userID, endpoint)
}

func (m *mockGate) Status(ctx context.Context, userID domain.UserID) (quota.Usage, error) {
	return m.statusFunc(ctx, userID)
}

// ---------------------------------------------------------------------------
// Mock ChatRunner
// ---------------------------------------------------------------------------

type mockRunner struct {
	runFunc func(ctx context.Context, msgs []domain.Message, sink chat.Sink) chat.Result
}

func (m *mockRunner) Run(ctx context.Context, msgs []domain.Message, sink chat.Sink) chat.Result {
	return m.runFunc(ctx, msgs, sink)
}

// ---------------------------------------------------------------------------
// Mock Publisher
// ---------------------------------------------------------------------------

type mockPublisher struct {
	mu       sync.Mutex
	channels []string
	payloads [][]byte
}

func (m *mockPublisher) Publish(_ context.Context, channel string, payload []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.channels = append(m.channels, channel)
	m.payloads = append(m.payloads, payload)
	return nil
}

func (m *mockPublisher) published() [][]byte {
	_, payloads := m.snapshot()
	return payloads
}

func (m *mockPublisher) snapshot() ([]string, [][]byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.channels...), append([][]byte(nil), m.payloads...)
}

// ---------------------------------------------------------------------------
// Mock ToolCatalog
// ---------------------------------------------------------------------------

type mockCatalog struct {
	specs []domain.ToolSpec
}

func (m *mockCatalog) Specs() []domain.ToolSpec { return m.specs }

// ---------------------------------------------------------------------------
// Mock UserDirectory
// ---------------------------------------------------------------------------

type mockUsers struct {
	getByIDFunc func(ctx context.Context, id domain.UserID) (*domain.User, error)
}

func (m *mockUsers) GetByID(ctx context.Context, id domain.UserID) (*domain.User, error) {
	return m.getByIDFunc(ctx, id)
}
