// Package chat runs the model/tool loop for one conversation and streams its
// events to the caller.
package chat

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Outcome is how an orchestration run ended.
type Outcome string

const (
	OutcomeDone                Outcome = "done"
	OutcomeStepBudgetExhausted Outcome = "step_budget_exhausted"
	OutcomeFailed              Outcome = "failed"
	OutcomeCancelled           Outcome = "cancelled"
)

// Event is a closed set of stream events. The unexported marker keeps the
// switch in encodeEvent exhaustive.
type Event interface {
	chatEvent()
}

// TextDelta is a fragment of assistant text, forwarded as soon as the model
// produces it.
type TextDelta struct {
	Text string `json:"text"`
}

// ToolCallStarted announces a tool call before it runs.
type ToolCallStarted struct {
	CallID    string          `json:"toolCallId"`
	Name      string          `json:"toolName"`
	Arguments json.RawMessage `json:"args"`
}

// ToolCallFinished carries a tool result. IsError results are still fed back
// to the model.
type ToolCallFinished struct {
	CallID  string          `json:"toolCallId"`
	Name    string          `json:"toolName"`
	Result  json.RawMessage `json:"result"`
	IsError bool            `json:"isError,omitempty"`
}

// StreamError is an in-band error after the response has been committed.
type StreamError struct {
	Message string `json:"message"`
}

// StreamEnd terminates the stream.
type StreamEnd struct {
	Outcome Outcome `json:"outcome,omitempty"`
}

func (TextDelta) chatEvent()        {}
func (ToolCallStarted) chatEvent()  {}
func (ToolCallFinished) chatEvent() {}
func (StreamError) chatEvent()      {}
func (StreamEnd) chatEvent()        {}

// Interface compliance checks.
var (
	_ Event = TextDelta{}
	_ Event = ToolCallStarted{}
	_ Event = ToolCallFinished{}
	_ Event = StreamError{}
	_ Event = StreamEnd{}
)

// Frame event names.
const (
	EventTextDelta        = "text-delta"
	EventToolCallStarted  = "tool-call-started"
	EventToolCallFinished = "tool-call-finished"
	EventError            = "error"
	EventEnd              = "end"
)

var errUnknownEvent = errors.New("chat: unknown event")

// encodeEvent returns the frame name and JSON payload for ev.
func encodeEvent(ev Event) (string, []byte, error) {
	var name string
	switch ev.(type) {
	case TextDelta:
		name = EventTextDelta
	case ToolCallStarted:
		name = EventToolCallStarted
	case ToolCallFinished:
		name = EventToolCallFinished
	case StreamError:
		name = EventError
	case StreamEnd:
		name = EventEnd
	default:
		return "", nil, fmt.Errorf("%w: %T", errUnknownEvent, ev)
	}

	data, err := json.Marshal(ev)
	if err != nil {
		return name, nil, fmt.Errorf("chat: encode %s: %w", name, err)
	}
	return name, data, nil
}

// Envelope is the JSON form of an event outside SSE framing, used on the
// pub/sub mirror.
type Envelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}
