package tool

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sort"
	"unicode/utf8"
)

// validateArguments checks args against the subset of JSON Schema used by
// tool declarations: object type, required, property type, minLength and
// additionalProperties.
func validateArguments(schema map[string]any, args json.RawMessage) error {
	var arguments map[string]any
	if err := json.Unmarshal(args, &arguments); err != nil {
		return errors.New("arguments must be a JSON object")
	}
	if arguments == nil {
		return errors.New("arguments must be a JSON object")
	}
	if len(schema) == 0 {
		return nil
	}

	required, err := parseRequiredFields(schema["required"])
	if err != nil {
		return err
	}
	for _, field := range required {
		if _, ok := arguments[field]; !ok {
			return fmt.Errorf("missing required argument %q", field)
		}
	}

	properties, hasProperties := schema["properties"].(map[string]any)
	additionalAllowed := true
	if v, ok := schema["additionalProperties"].(bool); ok {
		additionalAllowed = v
	}

	keys := make([]string, 0, len(arguments))
	for k := range arguments {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, key := range keys {
		value := arguments[key]
		prop, ok := properties[key].(map[string]any)
		if !ok {
			if hasProperties && !additionalAllowed {
				return fmt.Errorf("unknown argument %q", key)
			}
			continue
		}

		if typeName, ok := prop["type"].(string); ok && !matchesType(typeName, value) {
			return fmt.Errorf("argument %q must be %s", key, typeName)
		}

		if minLen, ok := prop["minLength"].(float64); ok {
			if s, isString := value.(string); isString && utf8.RuneCountInString(s) < int(minLen) {
				return fmt.Errorf("argument %q must be at least %d characters", key, int(minLen))
			}
		}
	}

	return nil
}

func parseRequiredFields(raw any) ([]string, error) {
	switch value := raw.(type) {
	case nil:
		return nil, nil
	case []any:
		out := make([]string, 0, len(value))
		for _, item := range value {
			field, ok := item.(string)
			if !ok {
				return nil, errors.New(`schema "required" entries must be strings`)
			}
			out = append(out, field)
		}
		return out, nil
	default:
		return nil, errors.New(`schema "required" must be an array`)
	}
}

// matchesType checks a decoded JSON value. Numbers decode as float64.
func matchesType(expected string, value any) bool {
	switch expected {
	case "string":
		_, ok := value.(string)
		return ok
	case "boolean":
		_, ok := value.(bool)
		return ok
	case "number":
		_, ok := value.(float64)
		return ok
	case "integer":
		f, ok := value.(float64)
		return ok && f == math.Trunc(f)
	case "object":
		_, ok := value.(map[string]any)
		return ok
	case "array":
		_, ok := value.([]any)
		return ok
	case "null":
		return value == nil
	default:
		return true
	}
}
