package gemini

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"iter"

	"github.com/google/uuid"
	"google.golang.org/genai"

	"github.com/gosuda/deepsearch/internal/model"
)

type streamState int

const (
	stateStreaming streamState = iota
	stateComplete
	stateError
	stateClosed
)

// stream implements [model.Stream] by wrapping the genai SDK's streaming
// iterator. One response chunk may carry several parts, so decoded events are
// queued and handed out one per Next call.
type stream struct {
	ctx     context.Context
	pull    func() (*genai.GenerateContentResponse, error, bool)
	stop    func()
	pending []model.Event
	state   streamState
	err     error
}

// Interface compliance check.
var _ model.Stream = (*stream)(nil)

func newStream(ctx context.Context, seq iter.Seq2[*genai.GenerateContentResponse, error]) *stream {
	next, stop := iter.Pull2(seq)
	return &stream{
		ctx:  ctx,
		pull: next,
		stop: stop,
	}
}

func (s *stream) Next() (model.Event, error) {
	for {
		if len(s.pending) > 0 {
			ev := s.pending[0]
			s.pending = s.pending[1:]
			return ev, nil
		}

		switch s.state {
		case stateComplete:
			return nil, io.EOF
		case stateError:
			return nil, s.err
		case stateClosed:
			return nil, errors.New("gemini: stream closed")
		}

		resp, err, ok := s.pull()
		if !ok {
			s.state = stateComplete
			continue
		}
		if err != nil {
			s.fail(err)
			continue
		}
		if err := s.decode(resp); err != nil {
			s.fail(err)
		}
	}
}

func (s *stream) fail(err error) {
	s.state = stateError
	if ctxErr := s.ctx.Err(); ctxErr != nil {
		s.err = ctxErr
		return
	}
	s.err = fmt.Errorf("gemini: %w: %w", model.ErrUpstream, err)
}

func (s *stream) decode(resp *genai.GenerateContentResponse) error {
	if resp == nil {
		return nil
	}
	if len(resp.Candidates) == 0 {
		if fb := resp.PromptFeedback; fb != nil && fb.BlockReason != "" {
			return fmt.Errorf("prompt blocked: %s", fb.BlockReason)
		}
		return nil
	}

	cand := resp.Candidates[0]
	if cand.Content != nil {
		for _, part := range cand.Content.Parts {
			if part == nil {
				continue
			}
			switch {
			case part.FunctionCall != nil:
				s.pending = append(s.pending, toolCall(part.FunctionCall))
			case part.Text != "" && !part.Thought:
				s.pending = append(s.pending, model.TextDelta{Text: part.Text})
			}
		}
	}

	switch cand.FinishReason {
	case genai.FinishReasonSafety, genai.FinishReasonRecitation, genai.FinishReasonBlocklist,
		genai.FinishReasonProhibitedContent, genai.FinishReasonSPII, genai.FinishReasonMalformedFunctionCall:
		return fmt.Errorf("finish reason %s", cand.FinishReason)
	}
	return nil
}

func toolCall(fc *genai.FunctionCall) model.ToolCall {
	id := fc.ID
	if id == "" {
		id = "call_" + uuid.NewString()
	}
	args := fc.Args
	if args == nil {
		args = map[string]any{}
	}
	raw, err := json.Marshal(args)
	if err != nil {
		raw = json.RawMessage(`{}`)
	}
	return model.ToolCall{ID: id, Name: fc.Name, Arguments: raw}
}

func (s *stream) Close() error {
	if s.state == stateStreaming {
		s.state = stateClosed
	}
	s.pending = nil
	s.stop()
	return nil
}
