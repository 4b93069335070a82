// Package llm sends orchestrator turns to a model and parses the structured
// answer. Concrete providers live in the providers subpackage.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"
)

// TurnRequest is everything the model sees for one turn.
type TurnRequest struct {
	RunID  string
	Turn   int
	System string // Standing instructions plus the active lens
	Prompt string // Turn context: budget, recent blackboard, previous results
}

// ToolCall is one tool invocation requested by the model.
type ToolCall struct {
	Tool      string         `json:"tool"`
	Params    map[string]any `json:"params"`
	Rationale string         `json:"rationale,omitempty"`
}

// TokenUsage reports token consumption for one turn, when the provider says.
type TokenUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
}

// TurnResponse is the parsed turn envelope.
type TurnResponse struct {
	Thinking         string     `json:"thinking"`
	Perspective      string     `json:"perspective,omitempty"`
	ToolCalls        []ToolCall `json:"toolCalls"`
	ContinueAnalysis bool       `json:"continueAnalysis"`

	Model string     `json:"-"`
	Usage TokenUsage `json:"-"`
}

// Model produces one turn response per call.
//
// Implementations classify failures: *TransientError for retryable transport
// problems, *FatalError for permanent ones and *ParseError when the model
// answered with something that is not a turn envelope.
type Model interface {
	Name() string
	Turn(ctx context.Context, req *TurnRequest) (*TurnResponse, error)
}

type rawEnvelope struct {
	Thinking         string            `json:"thinking"`
	Perspective      string            `json:"perspective"`
	ToolCalls        []json.RawMessage `json:"toolCalls"`
	ContinueAnalysis *bool             `json:"continueAnalysis"`
}

// ParseTurn extracts the turn envelope from model output. continueAnalysis is
// mandatory; a missing toolCalls list is read as no calls.
func ParseTurn(content string) (*TurnResponse, error) {
	raw := ExtractJSON(content)
	if raw == "" {
		return nil, &ParseError{Reason: "no JSON object found", Raw: content}
	}

	var env rawEnvelope
	dec := json.NewDecoder(strings.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&env); err != nil {
		return nil, &ParseError{Reason: err.Error(), Raw: content}
	}
	if env.ContinueAnalysis == nil {
		return nil, &ParseError{Reason: "continueAnalysis is missing", Raw: content}
	}

	resp := &TurnResponse{
		Thinking:         env.Thinking,
		Perspective:      strings.TrimSpace(env.Perspective),
		ContinueAnalysis: *env.ContinueAnalysis,
		ToolCalls:        make([]ToolCall, 0, len(env.ToolCalls)),
	}
	for i, rc := range env.ToolCalls {
		call, err := parseToolCall(rc)
		if err != nil {
			return nil, &ParseError{Reason: fmt.Sprintf("toolCalls[%d]: %v", i, err), Raw: content}
		}
		resp.ToolCalls = append(resp.ToolCalls, call)
	}
	return resp, nil
}

func parseToolCall(data json.RawMessage) (ToolCall, error) {
	var call ToolCall
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&call); err != nil {
		return ToolCall{}, err
	}
	call.Tool = strings.TrimSpace(call.Tool)
	if call.Tool == "" {
		return ToolCall{}, fmt.Errorf("tool name is missing")
	}
	if call.Params == nil {
		call.Params = map[string]any{}
	}
	return call, nil
}
