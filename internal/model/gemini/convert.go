package gemini

import (
	"encoding/json"

	"github.com/rs/zerolog/log"
	"google.golang.org/genai"

	"github.com/gosuda/deepsearch/internal/domain"
)

const (
	roleUser  = "user"
	roleModel = "model"
)

// ConvertMessages converts conversation messages to genai Contents.
//
// Tool results may arrive either as tool-role messages or embedded in the
// assistant message as result-state invocations (the shape chat clients send
// back). Embedded results are only emitted when no tool-role message answers
// the same call.
// Exported for testing.
func ConvertMessages(msgs []domain.Message) []*genai.Content {
	answered := make(map[string]bool)
	for _, m := range msgs {
		if m.Role != domain.RoleTool {
			continue
		}
		for _, p := range m.Parts {
			if ti, ok := p.(domain.ToolInvocationPart); ok {
				answered[ti.CallID] = true
			}
		}
	}

	var result []*genai.Content
	for _, m := range msgs {
		switch m.Role {
		case domain.RoleUser:
			if text := m.Text(); text != "" {
				result = append(result, &genai.Content{
					Role:  roleUser,
					Parts: []*genai.Part{{Text: text}},
				})
			}
		case domain.RoleAssistant:
			calls, responses := convertAssistant(m, answered)
			if len(calls) > 0 {
				result = append(result, &genai.Content{Role: roleModel, Parts: calls})
			}
			if len(responses) > 0 {
				result = append(result, &genai.Content{Role: roleUser, Parts: responses})
			}
		case domain.RoleTool:
			var responses []*genai.Part
			for _, p := range m.Parts {
				if ti, ok := p.(domain.ToolInvocationPart); ok && ti.State == domain.ToolStateResult {
					responses = append(responses, functionResponse(ti))
				}
			}
			if len(responses) == 0 {
				continue
			}
			// Merge consecutive tool results into the same user turn.
			if n := len(result); n > 0 && result[n-1].Role == roleUser && isFunctionResponse(result[n-1]) {
				result[n-1].Parts = append(result[n-1].Parts, responses...)
			} else {
				result = append(result, &genai.Content{Role: roleUser, Parts: responses})
			}
		case domain.RoleSystem:
			// Folded into the system instruction.
		}
	}
	return result
}

func convertAssistant(m domain.Message, answered map[string]bool) (calls, responses []*genai.Part) {
	if len(m.Parts) == 0 {
		if m.Content != "" {
			calls = append(calls, &genai.Part{Text: m.Content})
		}
		return calls, nil
	}

	for _, p := range m.Parts {
		switch v := p.(type) {
		case domain.TextPart:
			if v.Text != "" {
				calls = append(calls, &genai.Part{Text: v.Text})
			}
		case domain.ToolInvocationPart:
			calls = append(calls, &genai.Part{FunctionCall: &genai.FunctionCall{
				ID:   v.CallID,
				Name: v.ToolName,
				Args: decodeObject(v.Args),
			}})
			if v.State == domain.ToolStateResult && !answered[v.CallID] {
				responses = append(responses, functionResponse(v))
			}
		case domain.UnknownPart:
			log.Debug().Str("part_type", v.Kind).Msg("gemini: skipping unsupported message part")
		}
	}
	return calls, responses
}

func functionResponse(ti domain.ToolInvocationPart) *genai.Part {
	var decoded any
	_ = json.Unmarshal(ti.Result, &decoded)

	response, ok := decoded.(map[string]any)
	if !ok || response["error"] == nil {
		response = map[string]any{"output": decoded}
	}

	return &genai.Part{FunctionResponse: &genai.FunctionResponse{
		ID:       ti.CallID,
		Name:     ti.ToolName,
		Response: response,
	}}
}

func isFunctionResponse(c *genai.Content) bool {
	return len(c.Parts) > 0 && c.Parts[0].FunctionResponse != nil
}

func decodeObject(raw json.RawMessage) map[string]any {
	if len(raw) == 0 {
		return map[string]any{}
	}
	var out map[string]any
	if err := json.Unmarshal(raw, &out); err != nil || out == nil {
		return map[string]any{}
	}
	return out
}

// ConvertTools converts tool specs to genai Tools.
// Exported for testing.
func ConvertTools(tools []domain.ToolSpec) []*genai.Tool {
	if len(tools) == 0 {
		return nil
	}
	decls := make([]*genai.FunctionDeclaration, len(tools))
	for i, t := range tools {
		var schema map[string]any
		_ = json.Unmarshal(t.Parameters, &schema)
		decls[i] = &genai.FunctionDeclaration{
			Name:                 t.Name,
			Description:          t.Description,
			ParametersJsonSchema: schema,
		}
	}
	return []*genai.Tool{{FunctionDeclarations: decls}}
}
