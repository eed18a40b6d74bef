package gemini_test

import (
	"context"
	"errors"
	"io"
	"iter"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"

	"github.com/gosuda/deepsearch/internal/model"
	"github.com/gosuda/deepsearch/internal/model/gemini"
)

func seqOf(items ...any) iter.Seq2[*genai.GenerateContentResponse, error] {
	return func(yield func(*genai.GenerateContentResponse, error) bool) {
		for _, it := range items {
			var ok bool
			switch v := it.(type) {
			case *genai.GenerateContentResponse:
				ok = yield(v, nil)
			case error:
				ok = yield(nil, v)
			}
			if !ok {
				return
			}
		}
	}
}

func chunk(parts ...*genai.Part) *genai.GenerateContentResponse {
	return &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{Content: &genai.Content{Role: "model", Parts: parts}}},
	}
}

func drain(t *testing.T, s model.Stream) ([]model.Event, error) {
	t.Helper()

	var events []model.Event
	for {
		ev, err := s.Next()
		if err != nil {
			return events, err
		}
		events = append(events, ev)
	}
}

func TestStream_TextAndToolCalls(t *testing.T) {
	t.Parallel()

	s := gemini.NewStream(context.Background(), seqOf(
		chunk(&genai.Part{Text: "Let me "}),
		chunk(&genai.Part{Text: "thinking...", Thought: true}, &genai.Part{Text: "search."}),
		chunk(
			&genai.Part{FunctionCall: &genai.FunctionCall{ID: "c1", Name: "searchWeb", Args: map[string]any{"query": "go"}}},
			&genai.Part{FunctionCall: &genai.FunctionCall{Name: "searchWeb"}},
		),
	))
	defer s.Close()

	events, err := drain(t, s)
	require.ErrorIs(t, err, io.EOF)
	require.Len(t, events, 4)

	assert.Equal(t, model.TextDelta{Text: "Let me "}, events[0])
	assert.Equal(t, model.TextDelta{Text: "search."}, events[1], "thought parts are not forwarded")

	call, ok := events[2].(model.ToolCall)
	require.True(t, ok)
	assert.Equal(t, "c1", call.ID)
	assert.JSONEq(t, `{"query":"go"}`, string(call.Arguments))

	generated, ok := events[3].(model.ToolCall)
	require.True(t, ok)
	assert.NotEmpty(t, generated.ID, "missing call ids are generated")
	assert.JSONEq(t, `{}`, string(generated.Arguments))

	_, err = s.Next()
	require.ErrorIs(t, err, io.EOF, "EOF is sticky")
}

func TestStream_UpstreamError(t *testing.T) {
	t.Parallel()

	s := gemini.NewStream(context.Background(), seqOf(
		chunk(&genai.Part{Text: "partial"}),
		errors.New("503 unavailable"),
	))
	defer s.Close()

	events, err := drain(t, s)
	require.ErrorIs(t, err, model.ErrUpstream)
	assert.Len(t, events, 1)
}

func TestStream_BlockedPrompt(t *testing.T) {
	t.Parallel()

	s := gemini.NewStream(context.Background(), seqOf(&genai.GenerateContentResponse{
		PromptFeedback: &genai.GenerateContentResponsePromptFeedback{BlockReason: genai.BlockedReasonSafety},
	}))
	defer s.Close()

	_, err := drain(t, s)
	require.ErrorIs(t, err, model.ErrUpstream)
}

func TestStream_ContextCancelled(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	s := gemini.NewStream(ctx, seqOf(errors.New("transport closed")))
	defer s.Close()

	_, err := s.Next()
	require.ErrorIs(t, err, context.Canceled)
	assert.NotErrorIs(t, err, model.ErrUpstream)
}

func TestStream_CloseBeforeEnd(t *testing.T) {
	t.Parallel()

	s := gemini.NewStream(context.Background(), seqOf(
		chunk(&genai.Part{Text: "a"}),
		chunk(&genai.Part{Text: "b"}),
	))

	_, err := s.Next()
	require.NoError(t, err)
	require.NoError(t, s.Close())

	_, err = s.Next()
	require.Error(t, err)
	assert.NotErrorIs(t, err, io.EOF)
}
