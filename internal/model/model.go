// Package model defines the contract between the chat loop and a language
// model backend.
//
// A backend turns a conversation plus a declared tool set into a pull-based
// [Stream] of [Event] values. Cancellation flows through the context passed to
// [Backend.Stream].
package model

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/gosuda/deepsearch/internal/domain"
)

// ErrUpstream marks failures of the model service itself.
var ErrUpstream = errors.New("model: upstream error")

// Event is a closed set of model output events.
type Event interface {
	modelEvent()
}

// TextDelta is an incremental fragment of assistant text.
type TextDelta struct {
	Text string
}

// ToolCall is a complete request from the model to run a tool.
type ToolCall struct {
	ID        string
	Name      string
	Arguments json.RawMessage
}

func (TextDelta) modelEvent() {}
func (ToolCall) modelEvent()  {}

// Interface compliance checks.
var (
	_ Event = TextDelta{}
	_ Event = ToolCall{}
)

// Request carries everything one model turn needs.
type Request struct {
	Model        string // empty = backend default
	SystemPrompt string
	Messages     []domain.Message
	Tools        []domain.ToolSpec
}

// Stream yields events until Next returns io.EOF. Close releases the
// underlying connection and is safe to call at any point.
type Stream interface {
	Next() (Event, error)
	Close() error
}

// Backend starts model turns.
type Backend interface {
	Stream(ctx context.Context, req Request) (Stream, error)
}
