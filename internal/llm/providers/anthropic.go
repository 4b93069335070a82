package providers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/dyluth/auditor/internal/llm"
	"github.com/dyluth/auditor/internal/schema"
)

// anthropicVersion is the API version to use.
const anthropicVersion = "2023-06-01"

// AnthropicProvider implements the Anthropic messages API with native tool
// declarations. Tool calls arrive as tool_use blocks; the turn envelope is
// optional text around them.
type AnthropicProvider struct{}

func init() {
	llm.RegisterProvider(&AnthropicProvider{})
}

// Name returns the provider identifier.
func (a *AnthropicProvider) Name() string {
	return "anthropic"
}

// BuildURL constructs the Anthropic messages endpoint.
func (a *AnthropicProvider) BuildURL(baseURL string) string {
	if baseURL == "" {
		baseURL = "https://api.anthropic.com"
	}
	baseURL = strings.TrimSuffix(baseURL, "/")
	return baseURL + "/v1/messages"
}

// SetHeaders adds Anthropic-specific authentication headers.
func (a *AnthropicProvider) SetHeaders(req *http.Request, apiKey string) {
	if apiKey != "" {
		req.Header.Set("x-api-key", apiKey)
	}
	req.Header.Set("anthropic-version", anthropicVersion)
}

type anthropicRequest struct {
	Model       string              `json:"model"`
	MaxTokens   int                 `json:"max_tokens"`
	System      string              `json:"system,omitempty"`
	Messages    []anthropicMessage  `json:"messages"`
	Tools       []schema.NativeTool `json:"tools"`
	Temperature *float64            `json:"temperature,omitempty"`
}

type anthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// BuildRequestBody creates the Anthropic API request body.
func (a *AnthropicProvider) BuildRequestBody(model string, turn *llm.TurnRequest, temperature *float64, maxTokens int) ([]byte, error) {
	if maxTokens <= 0 {
		maxTokens = 4096
	}
	return json.Marshal(anthropicRequest{
		Model:       model,
		MaxTokens:   maxTokens,
		System:      turn.System,
		Messages:    []anthropicMessage{{Role: "user", Content: turn.Prompt}},
		Tools:       schema.Native(),
		Temperature: temperature,
	})
}

type anthropicResponse struct {
	Model   string `json:"model"`
	Content []struct {
		Type  string         `json:"type"`
		Text  string         `json:"text"`
		Name  string         `json:"name"`
		Input map[string]any `json:"input"`
	} `json:"content"`
	StopReason string `json:"stop_reason"`
	Usage      struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
}

// ParseResponse merges text and tool_use blocks into one turn.
//
// If the text holds a turn envelope its thinking, perspective and
// continueAnalysis are used and its tool calls run before the tool_use blocks.
// Otherwise the text is the thinking and the run continues while the model
// stopped to use tools.
func (a *AnthropicProvider) ParseResponse(body []byte) (*llm.TurnResponse, error) {
	var resp anthropicResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, llm.NewTransientError(fmt.Errorf("parse anthropic response: %w", err))
	}

	var (
		text  strings.Builder
		calls []llm.ToolCall
	)
	for _, block := range resp.Content {
		switch block.Type {
		case "text":
			text.WriteString(block.Text)
		case "tool_use":
			params := block.Input
			if params == nil {
				params = map[string]any{}
			}
			calls = append(calls, llm.ToolCall{Tool: block.Name, Params: params})
		}
	}

	var turn *llm.TurnResponse
	if env, err := llm.ParseTurn(text.String()); err == nil {
		turn = env
	} else if len(calls) == 0 && resp.StopReason != "end_turn" {
		return nil, err
	} else {
		turn = &llm.TurnResponse{
			Thinking:         strings.TrimSpace(text.String()),
			ContinueAnalysis: resp.StopReason == "tool_use",
		}
	}
	turn.ToolCalls = append(turn.ToolCalls, calls...)
	turn.Model = resp.Model
	turn.Usage = llm.TokenUsage{
		PromptTokens:     resp.Usage.InputTokens,
		CompletionTokens: resp.Usage.OutputTokens,
	}
	return turn, nil
}
