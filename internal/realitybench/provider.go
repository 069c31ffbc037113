package realitybench

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"strings"
)

// Provider answers structured decision requests on behalf of an agent.
// Implementations own transport, bounded retries and backoff; a returned
// error is final.
type Provider interface {
	Complete(ctx context.Context, req Request) (string, error)
}

type Request struct {
	Prompt       string `json:"prompt"`
	SystemPrompt string `json:"system_prompt"`
	Model        string `json:"model"`
	Schema       Schema `json:"schema"`
}

// Schema is the subset of JSON Schema used for decision responses: an object
// of string properties, some required, some enum-constrained.
type Schema struct {
	Type       string              `json:"type"`
	Required   []string            `json:"required"`
	Properties map[string]Property `json:"properties"`
}

type Property struct {
	Type        string   `json:"type"`
	Description string   `json:"description,omitempty"`
	Enum        []string `json:"enum,omitempty"`
}

// ObjectSchema builds an object schema requiring every listed property.
func ObjectSchema(props map[string]Property, required ...string) Schema {
	return Schema{Type: "object", Required: required, Properties: props}
}

// Decode extracts the first JSON object in text and checks it against s.
// Required fields must be non-empty strings and enum fields must hold one of
// the allowed values.
func (s Schema) Decode(text string) (map[string]string, error) {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end < start {
		return nil, fmt.Errorf("%w: no JSON object in response", ErrProvider)
	}

	var raw map[string]any
	if err := json.Unmarshal([]byte(text[start:end+1]), &raw); err != nil {
		return nil, fmt.Errorf("%w: decoding response: %v", ErrProvider, err)
	}

	out := make(map[string]string, len(raw))
	for k, v := range raw {
		if str, ok := v.(string); ok {
			out[k] = str
		}
	}

	for _, field := range s.Required {
		if strings.TrimSpace(out[field]) == "" {
			return nil, fmt.Errorf("%w: missing field %q", ErrProvider, field)
		}
	}
	for name, prop := range s.Properties {
		v, ok := out[name]
		if !ok || len(prop.Enum) == 0 {
			continue
		}
		if !slices.Contains(prop.Enum, v) {
			return nil, fmt.Errorf("%w: field %q value %q not in %v", ErrProvider, name, v, prop.Enum)
		}
	}
	return out, nil
}
