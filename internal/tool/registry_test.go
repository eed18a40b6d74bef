package tool_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gosuda/deepsearch/internal/tool"
)

func echoTool(name string) tool.Definition {
	return tool.Definition{
		Name:        name,
		Description: "echoes its input",
		Parameters: json.RawMessage(`{
			"type": "object",
			"properties": {
				"text":  {"type": "string", "minLength": 2},
				"count": {"type": "integer"},
				"ratio": {"type": "number"},
				"loud":  {"type": "boolean"},
				"tags":  {"type": "array"},
				"meta":  {"type": "object"}
			},
			"required": ["text"],
			"additionalProperties": false
		}`),
		Execute: func(_ context.Context, args json.RawMessage) (any, error) {
			return json.RawMessage(args), nil
		},
	}
}

func TestRegistry_Register(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		def     tool.Definition
		wantErr error
	}{
		{
			name:    "empty name",
			def:     tool.Definition{Execute: echoTool("x").Execute},
			wantErr: tool.ErrInvalidDefinition,
		},
		{
			name:    "missing executor",
			def:     tool.Definition{Name: "x"},
			wantErr: tool.ErrInvalidDefinition,
		},
		{
			name: "parameters not an object",
			def: tool.Definition{
				Name: "x", Parameters: json.RawMessage(`[1,2]`), Execute: echoTool("x").Execute,
			},
			wantErr: tool.ErrInvalidDefinition,
		},
		{
			name: "valid",
			def:  echoTool("x"),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			r, err := tool.NewRegistry()
			require.NoError(t, err)

			err = r.Register(tt.def)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
		})
	}
}

func TestRegistry_RegisterDuplicate(t *testing.T) {
	t.Parallel()

	_, err := tool.NewRegistry(echoTool("echo"), echoTool("echo"))
	require.ErrorIs(t, err, tool.ErrDuplicateTool)
}

func TestRegistry_Lookup(t *testing.T) {
	t.Parallel()

	r, err := tool.NewRegistry(echoTool("echo"))
	require.NoError(t, err)

	def, err := r.Lookup("echo")
	require.NoError(t, err)
	assert.Equal(t, "echo", def.Name)

	_, err = r.Lookup("missing")
	require.ErrorIs(t, err, tool.ErrToolNotFound)
}

func TestRegistry_Specs_SortedByName(t *testing.T) {
	t.Parallel()

	r, err := tool.NewRegistry(echoTool("zeta"), echoTool("alpha"), echoTool("mid"))
	require.NoError(t, err)

	specs := r.Specs()
	require.Len(t, specs, 3)
	assert.Equal(t, "alpha", specs[0].Name)
	assert.Equal(t, "mid", specs[1].Name)
	assert.Equal(t, "zeta", specs[2].Name)
	assert.Equal(t, "echoes its input", specs[0].Description)
	assert.NotEmpty(t, specs[0].Parameters)
}

func TestRegistry_Execute_Validation(t *testing.T) {
	t.Parallel()

	r, err := tool.NewRegistry(echoTool("echo"))
	require.NoError(t, err)

	tests := []struct {
		name    string
		args    string
		wantErr bool
	}{
		{name: "minimal", args: `{"text":"hi"}`},
		{name: "all fields", args: `{"text":"hi","count":3,"ratio":0.5,"loud":true,"tags":["a"],"meta":{"k":1}}`},
		{name: "missing required", args: `{"count":1}`, wantErr: true},
		{name: "wrong string type", args: `{"text":42}`, wantErr: true},
		{name: "too short", args: `{"text":"h"}`, wantErr: true},
		{name: "non-integer", args: `{"text":"hi","count":1.5}`, wantErr: true},
		{name: "wrong boolean", args: `{"text":"hi","loud":"yes"}`, wantErr: true},
		{name: "wrong array", args: `{"text":"hi","tags":"a"}`, wantErr: true},
		{name: "wrong object", args: `{"text":"hi","meta":[]}`, wantErr: true},
		{name: "unknown property", args: `{"text":"hi","extra":1}`, wantErr: true},
		{name: "not an object", args: `["hi"]`, wantErr: true},
		{name: "null", args: `null`, wantErr: true},
		{name: "malformed", args: `{"text":`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, err := r.Execute(context.Background(), "echo", json.RawMessage(tt.args))
			if tt.wantErr {
				require.ErrorIs(t, err, tool.ErrInvalidArguments)
				assert.Contains(t, err.Error(), "echo", "error is attributed to the tool")
				assert.Equal(t, tool.FailureInvalidArguments, tool.Reason(err))
				return
			}
			require.NoError(t, err)
		})
	}
}

func TestRegistry_Execute_UnknownTool(t *testing.T) {
	t.Parallel()

	r, err := tool.NewRegistry()
	require.NoError(t, err)

	_, err = r.Execute(context.Background(), "nope", json.RawMessage(`{}`))
	require.ErrorIs(t, err, tool.ErrToolNotFound)
	assert.Equal(t, tool.FailureUnknownTool, tool.Reason(err))
}

func TestRegistry_Execute_ExecutorFailure(t *testing.T) {
	t.Parallel()

	boom := errors.New("boom")
	r, err := tool.NewRegistry(tool.Definition{
		Name: "fail",
		Execute: func(context.Context, json.RawMessage) (any, error) {
			return nil, boom
		},
	})
	require.NoError(t, err)

	_, err = r.Execute(context.Background(), "fail", nil)

	var execErr *tool.ExecutionError
	require.ErrorAs(t, err, &execErr)
	assert.Equal(t, "fail", execErr.Tool)
	require.ErrorIs(t, err, boom)
	assert.Equal(t, tool.FailureExecutorError, tool.Reason(err))
}

func TestRegistry_Execute_Cancellation(t *testing.T) {
	t.Parallel()

	t.Run("already cancelled", func(t *testing.T) {
		t.Parallel()

		called := false
		r, err := tool.NewRegistry(tool.Definition{
			Name: "slow",
			Execute: func(context.Context, json.RawMessage) (any, error) {
				called = true
				return "ok", nil
			},
		})
		require.NoError(t, err)

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		_, err = r.Execute(ctx, "slow", nil)
		require.ErrorIs(t, err, context.Canceled)
		assert.False(t, called)
	})

	t.Run("cancelled while running", func(t *testing.T) {
		t.Parallel()

		ctx, cancel := context.WithCancel(context.Background())
		r, err := tool.NewRegistry(tool.Definition{
			Name: "slow",
			Execute: func(ctx context.Context, _ json.RawMessage) (any, error) {
				cancel()
				<-ctx.Done()
				return nil, errors.New("request aborted")
			},
		})
		require.NoError(t, err)

		_, err = r.Execute(ctx, "slow", nil)
		require.ErrorIs(t, err, context.Canceled)

		var execErr *tool.ExecutionError
		assert.False(t, errors.As(err, &execErr), "cancellation is not an execution failure")
	})
}
