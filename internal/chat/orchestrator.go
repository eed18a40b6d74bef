package chat

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/gosuda/deepsearch/internal/domain"
	"github.com/gosuda/deepsearch/internal/model"
	"github.com/gosuda/deepsearch/internal/tool"
)

const (
	// DefaultMaxSteps bounds model turns per request.
	DefaultMaxSteps = 10
	// DefaultTimeout bounds the wall-clock time of one request.
	DefaultTimeout = 60 * time.Second

	// GenericErrorMessage is the only error text callers see for upstream
	// failures; details go to the log.
	GenericErrorMessage = "An error occurred while generating the response."
)

// ToolExecutor runs tools by name and declares them to the model.
type ToolExecutor interface {
	Execute(ctx context.Context, name string, args json.RawMessage) (any, error)
	Specs() []domain.ToolSpec
}

// Result summarises a finished run.
//
// Messages is the input conversation followed by everything the run
// appended. Reply folds the whole assistant response into one message whose
// tool invocations are resolved to their results.
type Result struct {
	Outcome  Outcome
	Messages []domain.Message
	Reply    domain.Message
	Steps    int
}

// Orchestrator drives the bounded model/tool loop.
type Orchestrator struct {
	backend      model.Backend
	tools        ToolExecutor
	maxSteps     int
	timeout      time.Duration
	model        string
	systemPrompt string
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithMaxSteps caps the number of model turns. Non-positive values keep
// DefaultMaxSteps.
func WithMaxSteps(n int) Option {
	return func(o *Orchestrator) {
		if n > 0 {
			o.maxSteps = n
		}
	}
}

// WithTimeout sets the per-request budget. Zero disables it.
func WithTimeout(d time.Duration) Option {
	return func(o *Orchestrator) { o.timeout = d }
}

// WithModel names the backend model for every turn.
func WithModel(m string) Option {
	return func(o *Orchestrator) { o.model = m }
}

// WithSystemPrompt replaces DefaultSystemPrompt.
func WithSystemPrompt(p string) Option {
	return func(o *Orchestrator) { o.systemPrompt = p }
}

// NewOrchestrator returns an Orchestrator that answers with backend and runs
// tool calls through tools.
func NewOrchestrator(backend model.Backend, tools ToolExecutor, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		backend:      backend,
		tools:        tools,
		maxSteps:     DefaultMaxSteps,
		timeout:      DefaultTimeout,
		systemPrompt: DefaultSystemPrompt,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// pendingCall is a tool call collected during a turn.
type pendingCall struct {
	id   string
	name string
	args json.RawMessage
}

// run holds the state of one Run call.
type run struct {
	o      *Orchestrator
	parent context.Context
	sink   Sink
	log    *zerolog.Logger

	conv  []domain.Message
	reply domain.Message
	steps int
}

// Run drives the conversation to a terminal outcome, pushing events to sink.
// It never returns an error: every path ends with exactly one StreamEnd
// pushed to sink. msgs is not modified.
func (o *Orchestrator) Run(ctx context.Context, msgs []domain.Message, sink Sink) Result {
	r := &run{
		o:      o,
		parent: ctx,
		sink:   sink,
		log:    zerolog.Ctx(ctx),
		conv:   domain.CloneMessages(msgs),
		reply:  domain.Message{Role: domain.RoleAssistant},
	}

	runCtx := ctx
	if o.timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, o.timeout)
		defer cancel()
	}

	outcome := r.loop(runCtx)
	r.push(StreamEnd{Outcome: outcome})

	r.log.Debug().
		Str("outcome", string(outcome)).
		Int("steps", r.steps).
		Msg("chat.Orchestrator.Run: finished")

	return Result{
		Outcome:  outcome,
		Messages: r.conv,
		Reply:    r.reply,
		Steps:    r.steps,
	}
}

func (r *run) loop(ctx context.Context) Outcome {
	for {
		// Thinking
		r.steps++
		text, calls, err := r.turn(ctx)
		if err != nil {
			return r.fail(err, "model turn failed")
		}

		assistant := domain.Message{Role: domain.RoleAssistant}
		if text != "" {
			assistant.Content = text
			assistant.Parts = append(assistant.Parts, domain.TextPart{Text: text})
			r.reply.Parts = append(r.reply.Parts, domain.TextPart{Text: text})
		}

		if len(calls) == 0 {
			if len(assistant.Parts) > 0 {
				r.conv = append(r.conv, assistant)
			}
			return OutcomeDone
		}

		// Calling / ToolRunning
		invocations := make([]domain.ToolInvocationPart, len(calls))
		for i, c := range calls {
			invocations[i] = domain.ToolInvocationPart{
				CallID:   c.id,
				ToolName: c.name,
				Args:     c.args,
				State:    domain.ToolStateCall,
			}
			assistant.Parts = append(assistant.Parts, invocations[i])
		}
		r.conv = append(r.conv, assistant)

		for i, c := range calls {
			result, err := r.runTool(ctx, c)
			if err != nil {
				return r.fail(err, "tool execution interrupted")
			}

			resolved, err := invocations[i].Resolve(result)
			if err != nil {
				return r.fail(err, "resolve tool invocation")
			}
			r.conv = append(r.conv, domain.Message{
				Role:  domain.RoleTool,
				Parts: []domain.Part{resolved},
			})
			r.reply.Parts = append(r.reply.Parts, resolved)
		}

		if r.steps >= r.o.maxSteps {
			return OutcomeStepBudgetExhausted
		}
	}
}

// turn runs one model call, forwarding text as it arrives and collecting
// tool calls.
func (r *run) turn(ctx context.Context) (string, []pendingCall, error) {
	stream, err := r.o.backend.Stream(ctx, model.Request{
		Model:        r.o.model,
		SystemPrompt: r.o.systemPrompt,
		Messages:     r.conv,
		Tools:        r.o.tools.Specs(),
	})
	if err != nil {
		return "", nil, fmt.Errorf("chat.turn: stream: %w", err)
	}
	defer stream.Close()

	var text strings.Builder
	var calls []pendingCall
	for {
		ev, err := stream.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return "", nil, fmt.Errorf("chat.turn: next: %w", err)
		}

		switch e := ev.(type) {
		case model.TextDelta:
			if e.Text == "" {
				continue
			}
			text.WriteString(e.Text)
			r.push(TextDelta{Text: e.Text})
		case model.ToolCall:
			args := e.Arguments
			if len(args) == 0 {
				args = json.RawMessage(`{}`)
			}
			calls = append(calls, pendingCall{id: e.ID, name: e.Name, args: args})
		default:
			r.log.Warn().Str("event", fmt.Sprintf("%T", ev)).Msg("chat.turn: skipping unknown model event")
		}
	}

	return text.String(), calls, nil
}

// runTool executes one call and reports it. Tool failures become error
// results; only cancellation of ctx is returned as an error.
func (r *run) runTool(ctx context.Context, c pendingCall) (json.RawMessage, error) {
	r.push(ToolCallStarted{CallID: c.id, Name: c.name, Arguments: c.args})

	out, err := r.o.tools.Execute(ctx, c.name, c.args)
	if err != nil && ctx.Err() != nil {
		return nil, ctx.Err()
	}

	var result json.RawMessage
	isError := false
	if err == nil {
		result, err = json.Marshal(out)
		if err != nil {
			err = &tool.ExecutionError{Tool: c.name, Err: fmt.Errorf("encode result: %w", err)}
		}
	}
	if err != nil {
		r.log.Warn().Err(err).
			Str("tool", c.name).
			Str("call_id", c.id).
			Msg("chat.runTool: tool call failed")
		isError = true
		result = errorResult(err)
	}

	r.push(ToolCallFinished{CallID: c.id, Name: c.name, Result: result, IsError: isError})
	return result, nil
}

func errorResult(err error) json.RawMessage {
	msg := fmt.Sprintf("%s: %s", tool.Reason(err), err.Error())
	raw, _ := json.Marshal(map[string]string{"error": msg})
	return raw
}

// fail classifies a loop-ending error. Cancellation of the caller's context
// is a disconnect; anything else, including the request deadline, is a
// failure reported in-band with a generic message.
func (r *run) fail(err error, msg string) Outcome {
	if errors.Is(r.parent.Err(), context.Canceled) {
		r.log.Info().Err(err).Int("step", r.steps).Msg("chat.Orchestrator.Run: caller went away")
		return OutcomeCancelled
	}

	r.log.Error().Err(err).Int("step", r.steps).Msg("chat.Orchestrator.Run: " + msg)
	r.push(StreamError{Message: GenericErrorMessage})
	return OutcomeFailed
}

func (r *run) push(ev Event) {
	if err := r.sink.Push(ev); err != nil {
		r.log.Debug().Err(err).Msg("chat.Orchestrator.Run: push event")
	}
}
