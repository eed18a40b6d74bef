package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// Role identifies the author of a conversation message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
	RoleTool      Role = "tool"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleUser, RoleAssistant, RoleSystem, RoleTool:
		return true
	default:
		return false
	}
}

// ToolState is the lifecycle stage of a tool invocation part.
type ToolState string

const (
	ToolStateCall        ToolState = "call"
	ToolStatePartialCall ToolState = "partial-call"
	ToolStateResult      ToolState = "result"
)

func (s ToolState) rank() int {
	switch s {
	case ToolStatePartialCall:
		return 1
	case ToolStateCall:
		return 2
	case ToolStateResult:
		return 3
	default:
		return 0
	}
}

// Part is a closed set of message part variants. The unexported marker
// prevents implementations outside this package, so a type switch over
// TextPart, ToolInvocationPart and UnknownPart is exhaustive.
type Part interface {
	part()
	PartType() string
}

// TextPart is a run of markdown text.
type TextPart struct {
	Text string
}

func (TextPart) part()            {}
func (TextPart) PartType() string { return "text" }

// ToolInvocationPart records a tool call made by the assistant and, once it
// has run, its result. Result is set if and only if State is ToolStateResult.
type ToolInvocationPart struct {
	CallID   string
	ToolName string
	Args     json.RawMessage
	State    ToolState
	Result   json.RawMessage
}

func (ToolInvocationPart) part()            {}
func (ToolInvocationPart) PartType() string { return "tool-invocation" }

// Validate checks the state/result pairing.
func (p ToolInvocationPart) Validate() error {
	if p.State.rank() == 0 {
		return fmt.Errorf("%w: unknown tool state %q", ErrInvalidPart, p.State)
	}
	if p.ToolName == "" {
		return fmt.Errorf("%w: tool invocation without tool name", ErrInvalidPart)
	}
	hasResult := len(bytes.TrimSpace(p.Result)) > 0
	if p.State == ToolStateResult && !hasResult {
		return fmt.Errorf("%w: tool invocation %q in result state without result", ErrInvalidPart, p.CallID)
	}
	if p.State != ToolStateResult && hasResult {
		return fmt.Errorf("%w: tool invocation %q carries a result in state %q", ErrInvalidPart, p.CallID, p.State)
	}
	return nil
}

// Resolve moves the invocation forward to the result state. A part that
// already holds a result cannot be resolved again.
func (p ToolInvocationPart) Resolve(result json.RawMessage) (ToolInvocationPart, error) {
	if p.State.rank() >= ToolStateResult.rank() {
		return p, fmt.Errorf("%w: tool invocation %q already in state %q", ErrInvalidPart, p.CallID, p.State)
	}
	if len(bytes.TrimSpace(result)) == 0 {
		return p, fmt.Errorf("%w: empty result for tool invocation %q", ErrInvalidPart, p.CallID)
	}
	p.State = ToolStateResult
	p.Result = result
	return p, nil
}

// UnknownPart preserves a part whose wire type this service does not model.
// Consumers skip it and log the type rather than dropping it silently.
type UnknownPart struct {
	Kind string
	Raw  json.RawMessage
}

func (UnknownPart) part()              {}
func (p UnknownPart) PartType() string { return p.Kind }

// Interface compliance checks.
var (
	_ Part = TextPart{}
	_ Part = ToolInvocationPart{}
	_ Part = UnknownPart{}
)

// Message is one entry of a conversation. Messages are treated as immutable
// once built; the orchestration loop only appends new ones.
type Message struct {
	ID      string
	Role    Role
	Content string
	Parts   []Part
}

// Validate checks the role and every part.
func (m Message) Validate() error {
	if !m.Role.Valid() {
		return fmt.Errorf("%w: unknown role %q", ErrInvalidPart, m.Role)
	}
	for _, p := range m.Parts {
		if ti, ok := p.(ToolInvocationPart); ok {
			if err := ti.Validate(); err != nil {
				return err
			}
		}
	}
	return nil
}

// Text returns the concatenated text parts, or Content when the message has
// no text parts.
func (m Message) Text() string {
	var sb strings.Builder
	for _, p := range m.Parts {
		if tp, ok := p.(TextPart); ok {
			sb.WriteString(tp.Text)
		}
	}
	if sb.Len() == 0 {
		return m.Content
	}
	return sb.String()
}

// CloneMessages returns a copy of msgs whose part slices are not shared with
// the input, so appends on either side never alias.
func CloneMessages(msgs []Message) []Message {
	out := make([]Message, len(msgs))
	for i, m := range msgs {
		out[i] = m
		if m.Parts != nil {
			out[i].Parts = append([]Part(nil), m.Parts...)
		}
	}
	return out
}

// --- JSON wire format ---

type wireMessage struct {
	ID      string            `json:"id,omitempty"`
	Role    Role              `json:"role"`
	Content string            `json:"content"`
	Parts   []json.RawMessage `json:"parts,omitempty"`
}

type wirePart struct {
	Type           string              `json:"type"`
	Text           string              `json:"text,omitempty"`
	ToolInvocation *wireToolInvocation `json:"toolInvocation,omitempty"`
}

type wireToolInvocation struct {
	ToolCallID string          `json:"toolCallId"`
	ToolName   string          `json:"toolName"`
	Args       json.RawMessage `json:"args,omitempty"`
	State      ToolState       `json:"state"`
	Result     json.RawMessage `json:"result,omitempty"`
}

// MarshalJSON encodes the message in the chat client's wire format.
func (m Message) MarshalJSON() ([]byte, error) {
	wm := wireMessage{ID: m.ID, Role: m.Role, Content: m.Content}
	for _, p := range m.Parts {
		raw, err := marshalPart(p)
		if err != nil {
			return nil, err
		}
		wm.Parts = append(wm.Parts, raw)
	}
	return json.Marshal(wm)
}

// UnmarshalJSON decodes the chat client's wire format. Part types that are
// not modelled become UnknownPart.
func (m *Message) UnmarshalJSON(data []byte) error {
	var wm wireMessage
	if err := json.Unmarshal(data, &wm); err != nil {
		return err
	}
	msg := Message{ID: wm.ID, Role: wm.Role, Content: wm.Content}
	for _, raw := range wm.Parts {
		p, err := unmarshalPart(raw)
		if err != nil {
			return err
		}
		msg.Parts = append(msg.Parts, p)
	}
	*m = msg
	return nil
}

func marshalPart(p Part) (json.RawMessage, error) {
	switch v := p.(type) {
	case TextPart:
		return json.Marshal(wirePart{Type: v.PartType(), Text: v.Text})
	case ToolInvocationPart:
		return json.Marshal(wirePart{
			Type: v.PartType(),
			ToolInvocation: &wireToolInvocation{
				ToolCallID: v.CallID,
				ToolName:   v.ToolName,
				Args:       v.Args,
				State:      v.State,
				Result:     v.Result,
			},
		})
	case UnknownPart:
		return v.Raw, nil
	default:
		return nil, fmt.Errorf("%w: unsupported part %T", ErrInvalidPart, p)
	}
}

func unmarshalPart(raw json.RawMessage) (Part, error) {
	var wp wirePart
	if err := json.Unmarshal(raw, &wp); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidPart, err)
	}
	switch wp.Type {
	case "text":
		return TextPart{Text: wp.Text}, nil
	case "tool-invocation":
		if wp.ToolInvocation == nil {
			return nil, fmt.Errorf("%w: tool-invocation part without toolInvocation", ErrInvalidPart)
		}
		ti := ToolInvocationPart{
			CallID:   wp.ToolInvocation.ToolCallID,
			ToolName: wp.ToolInvocation.ToolName,
			Args:     wp.ToolInvocation.Args,
			State:    wp.ToolInvocation.State,
			Result:   wp.ToolInvocation.Result,
		}
		if err := ti.Validate(); err != nil {
			return nil, err
		}
		return ti, nil
	default:
		return UnknownPart{Kind: wp.Type, Raw: append(json.RawMessage(nil), raw...)}, nil
	}
}
