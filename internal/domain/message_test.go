package domain_test

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gosuda/deepsearch/internal/domain"
)

func TestRole_Valid(t *testing.T) {
	t.Parallel()

	tests := []struct {
		role domain.Role
		want bool
	}{
		{domain.RoleUser, true},
		{domain.RoleAssistant, true},
		{domain.RoleSystem, true},
		{domain.RoleTool, true},
		{domain.Role("data"), false},
		{domain.Role(""), false},
	}

	for _, tt := range tests {
		t.Run(string(tt.role), func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, tt.role.Valid())
		})
	}
}

func TestToolInvocationPart_Validate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		part    domain.ToolInvocationPart
		wantErr bool
	}{
		{
			name: "call without result",
			part: domain.ToolInvocationPart{CallID: "c1", ToolName: "searchWeb", State: domain.ToolStateCall},
		},
		{
			name: "partial call without result",
			part: domain.ToolInvocationPart{CallID: "c1", ToolName: "searchWeb", State: domain.ToolStatePartialCall},
		},
		{
			name: "result with result",
			part: domain.ToolInvocationPart{
				CallID: "c1", ToolName: "searchWeb", State: domain.ToolStateResult,
				Result: json.RawMessage(`[]`),
			},
		},
		{
			name:    "result without result",
			part:    domain.ToolInvocationPart{CallID: "c1", ToolName: "searchWeb", State: domain.ToolStateResult},
			wantErr: true,
		},
		{
			name: "call carrying result",
			part: domain.ToolInvocationPart{
				CallID: "c1", ToolName: "searchWeb", State: domain.ToolStateCall,
				Result: json.RawMessage(`{"x":1}`),
			},
			wantErr: true,
		},
		{
			name:    "unknown state",
			part:    domain.ToolInvocationPart{CallID: "c1", ToolName: "searchWeb", State: "done"},
			wantErr: true,
		},
		{
			name:    "missing tool name",
			part:    domain.ToolInvocationPart{CallID: "c1", State: domain.ToolStateCall},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			err := tt.part.Validate()
			if tt.wantErr {
				require.ErrorIs(t, err, domain.ErrInvalidPart)
				return
			}
			require.NoError(t, err)
		})
	}
}

func TestToolInvocationPart_Resolve(t *testing.T) {
	t.Parallel()

	call := domain.ToolInvocationPart{
		CallID:   "c1",
		ToolName: "searchWeb",
		Args:     json.RawMessage(`{"query":"go"}`),
		State:    domain.ToolStateCall,
	}

	resolved, err := call.Resolve(json.RawMessage(`[{"title":"Go"}]`))
	require.NoError(t, err)
	assert.Equal(t, domain.ToolStateResult, resolved.State)
	assert.JSONEq(t, `[{"title":"Go"}]`, string(resolved.Result))
	require.NoError(t, resolved.Validate())

	// The receiver is a value: the original part is untouched.
	assert.Equal(t, domain.ToolStateCall, call.State)
	assert.Nil(t, call.Result)

	_, err = resolved.Resolve(json.RawMessage(`[]`))
	require.ErrorIs(t, err, domain.ErrInvalidPart, "result state never moves again")

	_, err = call.Resolve(nil)
	require.ErrorIs(t, err, domain.ErrInvalidPart)
}

func TestMessage_UnmarshalJSON(t *testing.T) {
	t.Parallel()

	raw := `{
		"id": "m1",
		"role": "assistant",
		"content": "Go 1.23 was released [here](https://go.dev).",
		"parts": [
			{"type": "step-start"},
			{"type": "text", "text": "Go 1.23 was released "},
			{"type": "tool-invocation", "toolInvocation": {
				"toolCallId": "call-1",
				"toolName": "searchWeb",
				"args": {"query": "go release"},
				"state": "result",
				"result": [{"title": "Go", "link": "https://go.dev", "snippet": "Go"}]
			}}
		]
	}`

	var msg domain.Message
	require.NoError(t, json.Unmarshal([]byte(raw), &msg))

	assert.Equal(t, "m1", msg.ID)
	assert.Equal(t, domain.RoleAssistant, msg.Role)
	require.Len(t, msg.Parts, 3)

	unknown, ok := msg.Parts[0].(domain.UnknownPart)
	require.True(t, ok)
	assert.Equal(t, "step-start", unknown.PartType())

	text, ok := msg.Parts[1].(domain.TextPart)
	require.True(t, ok)
	assert.Equal(t, "Go 1.23 was released ", text.Text)

	inv, ok := msg.Parts[2].(domain.ToolInvocationPart)
	require.True(t, ok)
	assert.Equal(t, "call-1", inv.CallID)
	assert.Equal(t, "searchWeb", inv.ToolName)
	assert.Equal(t, domain.ToolStateResult, inv.State)
	assert.JSONEq(t, `{"query":"go release"}`, string(inv.Args))

	assert.Equal(t, "Go 1.23 was released ", msg.Text())
	require.NoError(t, msg.Validate())
}

func TestMessage_UnmarshalJSON_InvalidToolInvocation(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		raw  string
	}{
		{
			name: "result state without result",
			raw: `{"role":"assistant","content":"","parts":[{"type":"tool-invocation",
				"toolInvocation":{"toolCallId":"c","toolName":"searchWeb","state":"result"}}]}`,
		},
		{
			name: "missing toolInvocation body",
			raw:  `{"role":"assistant","content":"","parts":[{"type":"tool-invocation"}]}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			var msg domain.Message
			err := json.Unmarshal([]byte(tt.raw), &msg)
			require.ErrorIs(t, err, domain.ErrInvalidPart)
		})
	}
}

func TestMessage_MarshalJSON_RoundTripsUnknownParts(t *testing.T) {
	t.Parallel()

	in := `{"role":"user","content":"hi","parts":[{"type":"file","mimeType":"image/png","data":"AAA="},{"type":"text","text":"hi"}]}`

	var msg domain.Message
	require.NoError(t, json.Unmarshal([]byte(in), &msg))

	out, err := json.Marshal(msg)
	require.NoError(t, err)
	assert.JSONEq(t, in, string(out))
}

func TestMessage_Text_FallsBackToContent(t *testing.T) {
	t.Parallel()

	msg := domain.Message{Role: domain.RoleUser, Content: "what is new in Go?"}
	assert.Equal(t, "what is new in Go?", msg.Text())
}

func TestMessage_Validate_UnknownRole(t *testing.T) {
	t.Parallel()

	msg := domain.Message{Role: "narrator", Content: "x"}
	require.ErrorIs(t, msg.Validate(), domain.ErrInvalidPart)
}

func TestCloneMessages_DoesNotAlias(t *testing.T) {
	t.Parallel()

	parts := make([]domain.Part, 1, 4)
	parts[0] = domain.TextPart{Text: "a"}
	in := []domain.Message{{Role: domain.RoleUser, Parts: parts}}

	out := domain.CloneMessages(in)
	out[0].Parts = append(out[0].Parts, domain.TextPart{Text: "b"})
	out = append(out, domain.Message{Role: domain.RoleAssistant})

	assert.Len(t, in, 1)
	assert.Len(t, in[0].Parts, 1)
	assert.Equal(t, "a", in[0].Text())
	assert.Len(t, out, 2)
}
