package schema

import (
	"sort"

	"google.golang.org/genai"
)

var genaiTypes = map[string]genai.Type{
	"string":  genai.TypeString,
	"integer": genai.TypeInteger,
	"number":  genai.TypeNumber,
	"boolean": genai.TypeBoolean,
	"array":   genai.TypeArray,
	"object":  genai.TypeObject,
}

// GeminiSchema returns the Gemini envelope as a genai response schema.
func GeminiSchema() *genai.Schema {
	return toGenai(Gemini())
}

// toGenai converts a rendered JSON-schema map. Property ordering is made
// explicit because Gemini otherwise sorts properties alphabetically.
func toGenai(m map[string]any) *genai.Schema {
	s := &genai.Schema{}
	if t, ok := m["type"].(string); ok {
		s.Type = genaiTypes[t]
	}
	if d, ok := m["description"].(string); ok {
		s.Description = d
	}
	if e, ok := m["enum"].([]string); ok {
		s.Enum = append([]string(nil), e...)
	}
	if r, ok := m["required"].([]string); ok {
		s.Required = append([]string(nil), r...)
	}
	if items, ok := m["items"].(map[string]any); ok {
		s.Items = toGenai(items)
	}
	if props, ok := m["properties"].(map[string]any); ok {
		s.Properties = make(map[string]*genai.Schema, len(props))
		names := make([]string, 0, len(props))
		for name, p := range props {
			if pm, ok := p.(map[string]any); ok {
				s.Properties[name] = toGenai(pm)
				names = append(names, name)
			}
		}
		sort.Strings(names)
		s.PropertyOrdering = ordered(s.Required, names)
	}
	return s
}

// ordered puts required names first, then the rest in sorted order.
func ordered(required, names []string) []string {
	out := make([]string, 0, len(names))
	seen := make(map[string]bool, len(names))
	for _, r := range required {
		seen[r] = true
		out = append(out, r)
	}
	for _, n := range names {
		if !seen[n] {
			out = append(out, n)
		}
	}
	return out
}
