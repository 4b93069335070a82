// Package providers implements the model dialects the orchestrator can talk to.
package providers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/dyluth/auditor/internal/llm"
	"github.com/dyluth/auditor/internal/schema"
)

// OpenAICompatible implements the chat completions API shared by OpenAI, xAI
// and Ollama. Strict providers receive the json_schema response format;
// the others get plain JSON mode.
type OpenAICompatible struct {
	name       string
	defaultURL string
	strict     bool
}

// NewOpenAI returns the OpenAI provider.
func NewOpenAI() *OpenAICompatible {
	return &OpenAICompatible{name: "openai", defaultURL: "https://api.openai.com/v1", strict: true}
}

// NewXAI returns the xAI (Grok) provider.
func NewXAI() *OpenAICompatible {
	return &OpenAICompatible{name: "xai", defaultURL: "https://api.x.ai/v1", strict: true}
}

// NewOllama returns a provider for a local Ollama server.
func NewOllama() *OpenAICompatible {
	return &OpenAICompatible{name: "ollama", defaultURL: "http://localhost:11434/v1"}
}

func init() {
	llm.RegisterProvider(NewOpenAI())
	llm.RegisterProvider(NewXAI())
	llm.RegisterProvider(NewOllama())
}

// Name returns the provider identifier.
func (o *OpenAICompatible) Name() string {
	return o.name
}

// BuildURL constructs the chat completions endpoint.
func (o *OpenAICompatible) BuildURL(baseURL string) string {
	if baseURL == "" {
		baseURL = o.defaultURL
	}
	baseURL = strings.TrimSuffix(baseURL, "/")

	if strings.HasSuffix(baseURL, "/chat/completions") {
		return baseURL
	}
	return baseURL + "/chat/completions"
}

// SetHeaders adds bearer authentication when a key is configured.
func (o *OpenAICompatible) SetHeaders(req *http.Request, apiKey string) {
	if apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+apiKey)
	}
}

type openAIRequest struct {
	Model          string          `json:"model"`
	Messages       []openAIMessage `json:"messages"`
	Temperature    *float64        `json:"temperature,omitempty"`
	MaxTokens      *int            `json:"max_tokens,omitempty"`
	ResponseFormat any             `json:"response_format,omitempty"`
}

type openAIMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// BuildRequestBody creates the chat completions request body.
func (o *OpenAICompatible) BuildRequestBody(model string, turn *llm.TurnRequest, temperature *float64, maxTokens int) ([]byte, error) {
	req := openAIRequest{
		Model: model,
		Messages: []openAIMessage{
			{Role: "system", Content: turn.System},
			{Role: "user", Content: turn.Prompt},
		},
		Temperature: temperature,
	}
	if maxTokens > 0 {
		req.MaxTokens = &maxTokens
	}
	if o.strict {
		req.ResponseFormat = schema.Strict()
	} else {
		req.ResponseFormat = map[string]string{"type": "json_object"}
	}
	return json.Marshal(req)
}

type openAIResponse struct {
	Model   string `json:"model"`
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
	} `json:"usage"`
}

// ParseResponse extracts the turn envelope from the first choice.
func (o *OpenAICompatible) ParseResponse(body []byte) (*llm.TurnResponse, error) {
	var resp openAIResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, llm.NewTransientError(fmt.Errorf("parse %s response: %w", o.name, err))
	}
	if len(resp.Choices) == 0 {
		return nil, llm.NewTransientError(fmt.Errorf("no choices in %s response", o.name))
	}

	turn, err := llm.ParseTurn(resp.Choices[0].Message.Content)
	if err != nil {
		return nil, err
	}
	turn.Model = resp.Model
	turn.Usage = llm.TokenUsage{
		PromptTokens:     resp.Usage.PromptTokens,
		CompletionTokens: resp.Usage.CompletionTokens,
	}
	return turn, nil
}
