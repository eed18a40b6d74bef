package domain

import "encoding/json"

// ToolSpec is what a model backend is told about a callable tool.
// Parameters is a JSON Schema object.
type ToolSpec struct {
	Name        string
	Description string
	Parameters  json.RawMessage
}
