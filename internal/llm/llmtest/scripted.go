// Package llmtest provides a scripted llm.Model for tests.
package llmtest

import (
	"context"
	"sync"

	"github.com/dyluth/auditor/internal/llm"
)

// Step is one scripted model answer. Exactly one of Response, Content, Err
// or Block is normally set.
type Step struct {
	Response *llm.TurnResponse
	Content  string // Raw model text, parsed with llm.ParseTurn
	Err      error
	Block    bool // Wait for the context to end and return its error

	// Before runs first, e.g. to inspect the store mid-run or cancel the run.
	Before func(ctx context.Context, req *llm.TurnRequest)
}

// Model is a thread-safe scripted llm.Model. It answers with Steps in order;
// once they are exhausted every turn returns an empty turn that continues
// the analysis.
//
// Usage:
//
//	model := &llmtest.Model{Steps: []llmtest.Step{
//	    {Response: llmtest.Calls(true, llm.ToolCall{Tool: "request_next_batch", Params: ...})},
//	    {Content: "not json"},
//	    {Err: llm.NewTransientError(errors.New("503"))},
//	}}
type Model struct {
	Steps []Step

	mu       sync.Mutex
	requests []*llm.TurnRequest
	next     int
}

// Name implements llm.Model.
func (m *Model) Name() string {
	return "scripted"
}

// Turn implements llm.Model.
func (m *Model) Turn(ctx context.Context, req *llm.TurnRequest) (*llm.TurnResponse, error) {
	m.mu.Lock()
	m.requests = append(m.requests, req)
	step := Step{Response: &llm.TurnResponse{ToolCalls: []llm.ToolCall{}, ContinueAnalysis: true}}
	if m.next < len(m.Steps) {
		step = m.Steps[m.next]
		m.next++
	}
	m.mu.Unlock()

	if step.Before != nil {
		step.Before(ctx, req)
	}

	switch {
	case step.Block:
		<-ctx.Done()
		return nil, ctx.Err()
	case step.Err != nil:
		return nil, step.Err
	case step.Content != "":
		return llm.ParseTurn(step.Content)
	default:
		resp := *step.Response
		resp.Model = "scripted"
		return &resp, nil
	}
}

// Requests returns every request received so far.
func (m *Model) Requests() []*llm.TurnRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*llm.TurnRequest(nil), m.requests...)
}

// CallCount returns the number of Turn calls.
func (m *Model) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.requests)
}

// Calls builds a turn response with the given tool calls.
func Calls(continueAnalysis bool, calls ...llm.ToolCall) *llm.TurnResponse {
	if calls == nil {
		calls = []llm.ToolCall{}
	}
	return &llm.TurnResponse{
		Thinking:         "scripted turn",
		ToolCalls:        calls,
		ContinueAnalysis: continueAnalysis,
	}
}

// Call builds one tool call.
func Call(tool string, params map[string]any) llm.ToolCall {
	if params == nil {
		params = map[string]any{}
	}
	return llm.ToolCall{Tool: tool, Params: params}
}
