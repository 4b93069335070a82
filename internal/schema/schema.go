// Package schema renders the tool registry in each provider's dialect.
//
// Three shapes are produced from the same registry:
//
//   - Strict: an OpenAI/xAI response_format json_schema in strict mode. Every
//     object carries additionalProperties: false, and the parameters of all
//     tools are merged into one flat params object.
//   - Native: one {name, description, input_schema} declaration per tool, as
//     accepted by Anthropic's tool-use API.
//   - Gemini: the Strict envelope without additionalProperties, which Gemini
//     rejects. GeminiSchema returns the same tree as a *genai.Schema.
//
// All three are pure functions of tools.Registry, so adding a parameter to the
// registry changes every dialect at once.
package schema

import (
	"github.com/dyluth/auditor/internal/perspective"
	"github.com/dyluth/auditor/internal/tools"
)

// EnvelopeName is the json_schema name used in strict mode.
const EnvelopeName = "orchestrator_action"

// Envelope field names.
const (
	FieldThinking         = "thinking"
	FieldPerspective      = "perspective"
	FieldToolCalls        = "toolCalls"
	FieldContinueAnalysis = "continueAnalysis"
	FieldTool             = "tool"
	FieldParams           = "params"
	FieldRationale        = "rationale"
)

// FlatParams merges the parameters of every tool into one list, in registry
// order. When two tools declare the same name the first declaration wins.
// Required flags are dropped, since no single tool owns the merged object.
func FlatParams() []tools.Param {
	var (
		out  []tools.Param
		seen = make(map[string]bool)
	)
	for _, t := range tools.Registry() {
		for _, p := range t.Params {
			if seen[p.Name] {
				continue
			}
			seen[p.Name] = true
			p.Required = false
			out = append(out, p)
		}
	}
	return out
}

// dialect controls the keyword differences between renderings.
type dialect struct {
	closed bool // emit additionalProperties: false on objects
}

func (d dialect) param(p tools.Param) map[string]any {
	s := map[string]any{"type": p.Type}
	if p.Description != "" {
		s["description"] = p.Description
	}
	if len(p.Enum) > 0 {
		s["enum"] = append([]string(nil), p.Enum...)
	}
	switch p.Type {
	case tools.TypeArray:
		items := tools.Param{Type: tools.TypeString}
		if p.Items != nil {
			items = *p.Items
		}
		s["items"] = d.param(items)
	case tools.TypeObject:
		props := make(map[string]any, len(p.Fields))
		for _, f := range p.Fields {
			props[f.Name] = d.param(f)
		}
		s["properties"] = props
		if req := required(p.Fields); len(req) > 0 {
			s["required"] = req
		}
		if d.closed {
			s["additionalProperties"] = false
		}
	}
	return s
}

func (d dialect) object(params []tools.Param, description string) map[string]any {
	return d.param(tools.Param{Type: tools.TypeObject, Fields: params, Description: description})
}

func required(params []tools.Param) []string {
	var names []string
	for _, p := range params {
		if p.Required {
			names = append(names, p.Name)
		}
	}
	return names
}

// envelopeParams describes the turn response the model must produce.
func envelopeParams() []tools.Param {
	return []tools.Param{
		{Name: FieldThinking, Type: tools.TypeString, Required: true, Description: "Reasoning about what to do next"},
		{Name: FieldPerspective, Type: tools.TypeString, Enum: perspective.IDs(), Description: "Perspective lens being applied"},
		{Name: FieldToolCalls, Type: tools.TypeArray, Required: true, Description: "Tool calls to run, in order", Items: &tools.Param{
			Type: tools.TypeObject,
			Fields: []tools.Param{
				{Name: FieldTool, Type: tools.TypeString, Enum: tools.Names(), Required: true, Description: "Name of the tool to invoke"},
				{Name: FieldParams, Type: tools.TypeObject, Required: true, Description: "Tool parameters", Fields: FlatParams()},
				{Name: FieldRationale, Type: tools.TypeString, Description: "Why this tool is being called"},
			},
		}},
		{Name: FieldContinueAnalysis, Type: tools.TypeBoolean, Required: true, Description: "Whether another turn is needed"},
	}
}

// Strict returns the OpenAI/xAI response_format for the turn envelope.
func Strict() map[string]any {
	return map[string]any{
		"type": "json_schema",
		"json_schema": map[string]any{
			"name":   EnvelopeName,
			"strict": true,
			"schema": dialect{closed: true}.object(envelopeParams(), ""),
		},
	}
}

// Gemini returns the turn envelope schema without additionalProperties.
func Gemini() map[string]any {
	return dialect{}.object(envelopeParams(), "")
}

// NativeTool is one tool declaration in Anthropic's format.
type NativeTool struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	InputSchema map[string]any `json:"input_schema"`
}

// Native returns one declaration per tool, each with its own schema and
// required list.
func Native() []NativeTool {
	reg := tools.Registry()
	out := make([]NativeTool, len(reg))
	for i, t := range reg {
		out[i] = NativeTool{
			Name:        t.Name,
			Description: t.Description,
			InputSchema: dialect{}.object(t.Params, ""),
		}
	}
	return out
}
