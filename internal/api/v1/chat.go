package v1

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/rs/zerolog"

	"github.com/gosuda/deepsearch/internal/chat"
	"github.com/gosuda/deepsearch/internal/domain"
	"github.com/gosuda/deepsearch/internal/server/middleware"
	"github.com/gosuda/deepsearch/internal/store/redis"
)

// ChatEndpoint is the route recorded in the quota ledger for chat requests.
const ChatEndpoint = "/api/chat"

const maxChatBodyBytes = 1 << 20

// ChatRequest is the body of POST /api/chat.
type ChatRequest struct {
	Messages []domain.Message `json:"messages"`
}

// ErrorBody is the JSON error shape for failures before the stream starts.
type ErrorBody struct {
	Error        string `json:"error"`
	Message      string `json:"message"`
	RequestCount *int   `json:"requestCount,omitempty"`
}

// ChatHandler serves the streaming chat endpoint. It is a plain handler
// rather than a huma operation because the response is an unbuffered SSE
// stream.
type ChatHandler struct {
	gate   QuotaGate
	runner ChatRunner
	pub    chat.Publisher
}

// NewChatHandler builds the chat handler. pub may be nil, in which case
// events are not mirrored to live subscribers.
func NewChatHandler(gate QuotaGate, runner ChatRunner, pub chat.Publisher) *ChatHandler {
	return &ChatHandler{gate: gate, runner: runner, pub: pub}
}

func (h *ChatHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := zerolog.Ctx(ctx)

	userID, ok := middleware.UserIDFromContext(ctx)
	if !ok {
		writeJSON(w, http.StatusUnauthorized, ErrorBody{
			Error:   "Unauthorized",
			Message: "missing or invalid credentials",
		})
		return
	}

	decision, err := h.gate.Evaluate(ctx, userID)
	if err != nil {
		logger.Error().Err(err).Msg("v1.ChatHandler: admission check failed")
		writeInternalError(w)
		return
	}
	if !decision.Allowed {
		writeJSON(w, http.StatusTooManyRequests, ErrorBody{
			Error:        "Rate limit exceeded",
			Message:      decision.Reason,
			RequestCount: decision.RequestCount,
		})
		return
	}

	req, err := decodeChatRequest(w, r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorBody{
			Error:   "Bad Request",
			Message: err.Error(),
		})
		return
	}

	if err := h.gate.Record(ctx, userID, ChatEndpoint); err != nil {
		logger.Error().Err(err).Msg("v1.ChatHandler: failed to record request")
		writeInternalError(w)
		return
	}

	writer, err := chat.NewWriter(w, *logger)
	if err != nil {
		logger.Error().Err(err).Msg("v1.ChatHandler: cannot stream")
		writeInternalError(w)
		return
	}
	defer func() {
		if cerr := writer.Close(); cerr != nil {
			logger.Debug().Err(cerr).Msg("v1.ChatHandler: close stream")
		}
	}()

	var sink chat.Sink = writer
	if h.pub != nil {
		// Mirror subscribers keep receiving events after the caller disconnects.
		mirror := chat.NewPublishSink(context.WithoutCancel(ctx), h.pub, redis.ChatChannel(userID))
		defer mirror.Close()
		sink = chat.Tee(*logger, writer, mirror)
	}

	result := h.runner.Run(ctx, req.Messages, sink)

	logger.Info().
		Str("outcome", string(result.Outcome)).
		Int("steps", result.Steps).
		Msg("v1.ChatHandler: chat finished")
}

var (
	errEmptyConversation = errors.New("messages must not be empty")
	errNoUserText        = errors.New("conversation must contain a user message with text")
	errMalformedBody     = errors.New("malformed request body")
)

func decodeChatRequest(w http.ResponseWriter, r *http.Request) (ChatRequest, error) {
	var req ChatRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxChatBodyBytes))
	if err := dec.Decode(&req); err != nil {
		if errors.Is(err, domain.ErrInvalidPart) {
			return ChatRequest{}, err
		}
		return ChatRequest{}, errMalformedBody
	}
	if len(req.Messages) == 0 {
		return ChatRequest{}, errEmptyConversation
	}
	hasUserText := false
	for _, m := range req.Messages {
		if err := m.Validate(); err != nil {
			return ChatRequest{}, err
		}
		if m.Role == domain.RoleUser && strings.TrimSpace(m.Text()) != "" {
			hasUserText = true
		}
	}
	if !hasUserText {
		return ChatRequest{}, errNoUserText
	}
	return req, nil
}

func writeInternalError(w http.ResponseWriter) {
	writeJSON(w, http.StatusInternalServerError, ErrorBody{
		Error:   "Internal Server Error",
		Message: "the request could not be processed",
	})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
