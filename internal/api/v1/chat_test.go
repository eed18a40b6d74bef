package v1_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	v1 "github.com/gosuda/deepsearch/internal/api/v1"
	"github.com/gosuda/deepsearch/internal/chat"
	"github.com/gosuda/deepsearch/internal/domain"
	"github.com/gosuda/deepsearch/internal/quota"
)

const validBody = `{"messages":[{"role":"user","content":"What changed in Go 1.23?"}]}`

func intPtr(n int) *int { return &n }

func allowGate(calls *[]string) *mockGate {
	return &mockGate{
		evaluateFunc: func(_ context.Context, _ domain.UserID) (quota.Decision, error) {
			*calls = append(*calls, "evaluate")
			return quota.Decision{Allowed: true, RequestCount: intPtr(3)}, nil
		},
		recordFunc: func(_ context.Context, _ domain.UserID, endpoint string) error {
			*calls = append(*calls, "record:"+endpoint)
			return nil
		},
	}
}

func echoRunner(calls *[]string) *mockRunner {
	return &mockRunner{
		runFunc: func(_ context.Context, msgs []domain.Message, sink chat.Sink) chat.Result {
			*calls = append(*calls, "run")
			_ = sink.Push(chat.TextDelta{Text: "Hello"})
			_ = sink.Push(chat.StreamEnd{Outcome: chat.OutcomeDone})
			return chat.Result{Outcome: chat.OutcomeDone, Messages: msgs}
		},
	}
}

func serveChat(h http.Handler, ctx context.Context, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequestWithContext(ctx, http.MethodPost, "/api/chat", strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestChatHandler_Streams(t *testing.T) {
	t.Parallel()

	var calls []string
	pub := &mockPublisher{}
	h := v1.NewChatHandler(allowGate(&calls), echoRunner(&calls), pub)

	rec := serveChat(h, userCtx("user-1"), validBody)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/event-stream", rec.Header().Get("Content-Type"))
	assert.Equal(t, []string{"evaluate", "record:/api/chat", "run"}, calls)

	body := rec.Body.String()
	assert.Contains(t, body, "event: text-delta\ndata: {\"text\":\"Hello\"}\n\n")
	assert.Contains(t, body, "event: end\n")
	assert.Equal(t, 1, strings.Count(body, "event: end"), "stream ends exactly once")

	require.Eventually(t, func() bool { return len(pub.published()) == 2 }, time.Second, 5*time.Millisecond)
	channels, payloads := pub.snapshot()
	assert.Equal(t, "chat:user-1", channels[0])

	var env chat.Envelope
	require.NoError(t, json.Unmarshal(payloads[0], &env))
	assert.Equal(t, chat.EventTextDelta, env.Type)
}

func TestChatHandler_WithoutPublisher(t *testing.T) {
	t.Parallel()

	var calls []string
	h := v1.NewChatHandler(allowGate(&calls), echoRunner(&calls), nil)

	rec := serveChat(h, userCtx("user-1"), validBody)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "event: end")
}

func TestChatHandler_ClosesStreamWhenRunnerDoesNot(t *testing.T) {
	t.Parallel()

	var calls []string
	runner := &mockRunner{
		runFunc: func(_ context.Context, _ []domain.Message, sink chat.Sink) chat.Result {
			_ = sink.Push(chat.TextDelta{Text: "partial"})
			return chat.Result{Outcome: chat.OutcomeFailed}
		},
	}
	h := v1.NewChatHandler(allowGate(&calls), runner, nil)

	rec := serveChat(h, userCtx("user-1"), validBody)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, strings.Count(rec.Body.String(), "event: end"))
}

func TestChatHandler_NoIdentity(t *testing.T) {
	t.Parallel()

	gate := &mockGate{
		evaluateFunc: func(context.Context, domain.UserID) (quota.Decision, error) {
			t.Fatal("gate must not be consulted without identity")
			return quota.Decision{}, nil
		},
	}
	h := v1.NewChatHandler(gate, &mockRunner{}, nil)

	rec := serveChat(h, context.Background(), validBody)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.JSONEq(t, `{"error":"Unauthorized","message":"missing or invalid credentials"}`, rec.Body.String())
}

func TestChatHandler_QuotaExceeded(t *testing.T) {
	t.Parallel()

	gate := &mockGate{
		evaluateFunc: func(context.Context, domain.UserID) (quota.Decision, error) {
			return quota.Decision{
				Allowed:      false,
				Reason:       "Daily request limit of 50 exceeded",
				RequestCount: intPtr(50),
			}, nil
		},
		recordFunc: func(context.Context, domain.UserID, string) error {
			t.Fatal("denied requests are never recorded")
			return nil
		},
	}
	runner := &mockRunner{
		runFunc: func(context.Context, []domain.Message, chat.Sink) chat.Result {
			t.Fatal("denied requests never reach the model")
			return chat.Result{}
		},
	}
	h := v1.NewChatHandler(gate, runner, nil)

	rec := serveChat(h, userCtx("user-1"), validBody)

	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.JSONEq(t,
		`{"error":"Rate limit exceeded","message":"Daily request limit of 50 exceeded","requestCount":50}`,
		rec.Body.String())
}

func TestChatHandler_PreStreamFailures(t *testing.T) {
	t.Parallel()

	storageErr := errors.New("connection refused")

	tests := []struct {
		name       string
		evaluate   error
		record     error
		body       string
		wantStatus int
		wantRecord bool
	}{
		{name: "evaluate fails", evaluate: storageErr, body: validBody, wantStatus: http.StatusInternalServerError},
		{name: "record fails", record: storageErr, body: validBody, wantStatus: http.StatusInternalServerError, wantRecord: true},
		{name: "malformed json", body: `{"messages":`, wantStatus: http.StatusBadRequest},
		{name: "empty messages", body: `{"messages":[]}`, wantStatus: http.StatusBadRequest},
		{name: "blank user message", body: `{"messages":[{"role":"user","content":"  "}]}`, wantStatus: http.StatusBadRequest},
		{name: "no user message", body: `{"messages":[{"role":"assistant","content":"Hi, ask me anything."}]}`, wantStatus: http.StatusBadRequest},
		{name: "unknown role", body: `{"messages":[{"role":"narrator","content":"x"}]}`, wantStatus: http.StatusBadRequest},
		{
			name:       "invalid tool invocation",
			body:       `{"messages":[{"role":"assistant","content":"","parts":[{"type":"tool-invocation","toolInvocation":{"toolCallId":"c","toolName":"searchWeb","state":"result"}}]}]}`,
			wantStatus: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			recorded := false
			gate := &mockGate{
				evaluateFunc: func(context.Context, domain.UserID) (quota.Decision, error) {
					if tt.evaluate != nil {
						return quota.Decision{}, tt.evaluate
					}
					return quota.Decision{Allowed: true, RequestCount: intPtr(0)}, nil
				},
				recordFunc: func(context.Context, domain.UserID, string) error {
					recorded = true
					return tt.record
				},
			}
			runner := &mockRunner{
				runFunc: func(context.Context, []domain.Message, chat.Sink) chat.Result {
					t.Fatal("runner must not start")
					return chat.Result{}
				},
			}
			h := v1.NewChatHandler(gate, runner, nil)

			rec := serveChat(h, userCtx("user-1"), tt.body)

			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
			assert.Equal(t, tt.wantRecord, recorded)
			assert.NotContains(t, rec.Body.String(), "connection refused", "storage details stay server-side")
		})
	}
}

// noFlushWriter hides http.Flusher from the handler.
type noFlushWriter struct {
	rec *httptest.ResponseRecorder
}

func (w noFlushWriter) Header() http.Header         { return w.rec.Header() }
func (w noFlushWriter) Write(b []byte) (int, error) { return w.rec.Write(b) }
func (w noFlushWriter) WriteHeader(code int)        { w.rec.WriteHeader(code) }

func TestChatHandler_StreamingUnsupported(t *testing.T) {
	t.Parallel()

	var calls []string
	h := v1.NewChatHandler(allowGate(&calls), echoRunner(&calls), nil)

	req := httptest.NewRequestWithContext(userCtx("user-1"), http.MethodPost, "/api/chat", strings.NewReader(validBody))
	rec := httptest.NewRecorder()
	h.ServeHTTP(noFlushWriter{rec: rec}, req)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, calls, "run")
}
