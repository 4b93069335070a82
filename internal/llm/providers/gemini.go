package providers

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/dyluth/auditor/internal/llm"
	"github.com/dyluth/auditor/internal/schema"
	"go.uber.org/zap"
	"google.golang.org/genai"
)

// contentGenerator is the part of *genai.Models the Gemini model uses.
type contentGenerator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// Gemini is a Model backed by the Gemini SDK. The turn envelope is enforced
// through the response schema rather than tool declarations.
type Gemini struct {
	models      contentGenerator
	model       string
	temperature *float64
	maxTokens   int
	logger      *zap.Logger
}

// NewGemini creates a Gemini model. apiKey is required.
func NewGemini(ctx context.Context, apiKey, model string, opts Options) (*Gemini, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("gemini API key is required")
	}
	if model == "" {
		model = "gemini-2.5-flash"
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create GenAI client: %w", err)
	}
	return newGemini(client.Models, model, opts), nil
}

func newGemini(models contentGenerator, model string, opts Options) *Gemini {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Gemini{
		models:      models,
		model:       model,
		temperature: opts.Temperature,
		maxTokens:   opts.MaxTokens,
		logger:      logger,
	}
}

// Name returns "gemini/model".
func (g *Gemini) Name() string {
	return "gemini/" + g.model
}

// Turn sends one turn through GenerateContent with a JSON response schema.
func (g *Gemini) Turn(ctx context.Context, req *llm.TurnRequest) (*llm.TurnResponse, error) {
	config := &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(req.System, genai.RoleUser),
		ResponseMIMEType:  "application/json",
		ResponseSchema:    schema.GeminiSchema(),
	}
	if g.temperature != nil {
		t := float32(*g.temperature)
		config.Temperature = &t
	}
	if g.maxTokens > 0 {
		config.MaxOutputTokens = int32(g.maxTokens)
	}

	g.logger.Debug("model_request",
		zap.String("provider", "gemini"),
		zap.String("model", g.model),
		zap.String("run_id", req.RunID),
		zap.Int("turn", req.Turn))

	resp, err := g.models.GenerateContent(ctx, g.model, genai.Text(req.Prompt), config)
	if err != nil {
		return nil, classifyGenaiError(err)
	}

	turn, err := llm.ParseTurn(resp.Text())
	if err != nil {
		return nil, err
	}
	turn.Model = g.model
	if resp.ModelVersion != "" {
		turn.Model = resp.ModelVersion
	}
	if u := resp.UsageMetadata; u != nil {
		turn.Usage = llm.TokenUsage{
			PromptTokens:     int(u.PromptTokenCount),
			CompletionTokens: int(u.CandidatesTokenCount),
		}
	}
	return turn, nil
}

func classifyGenaiError(err error) error {
	wrapped := fmt.Errorf("gemini request failed: %w", err)

	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.Code == http.StatusTooManyRequests, apiErr.Code >= 500:
			return llm.NewTransientError(wrapped)
		default:
			return llm.NewFatalError(wrapped)
		}
	}
	if errors.Is(err, context.Canceled) {
		return llm.NewFatalError(wrapped)
	}
	// Network errors and deadline expiry are transient
	return llm.NewTransientError(wrapped)
}
