package providers

import (
	"context"
	"fmt"
	"strings"

	"github.com/dyluth/auditor/internal/llm"
	"go.uber.org/zap"
)

// Options carries the provider-independent model settings.
type Options struct {
	BaseURL     string
	APIKey      string
	Temperature *float64
	MaxTokens   int
	Logger      *zap.Logger
}

// New returns a Model for the named provider. "gemini" uses the SDK; every
// other name must be a registered HTTP provider.
func New(ctx context.Context, provider, model string, opts Options) (llm.Model, error) {
	name := strings.ToLower(strings.TrimSpace(provider))
	if name == "gemini" {
		return NewGemini(ctx, opts.APIKey, model, opts)
	}

	p := llm.GetProvider(name)
	if p == nil {
		return nil, fmt.Errorf("unknown provider %q (available: %s, gemini)", provider, strings.Join(llm.ListProviders(), ", "))
	}
	if model == "" {
		return nil, fmt.Errorf("provider %s requires a model name", name)
	}

	clientOpts := []llm.ClientOption{
		llm.WithBaseURL(opts.BaseURL),
		llm.WithAPIKey(opts.APIKey),
		llm.WithMaxTokens(opts.MaxTokens),
	}
	if opts.Temperature != nil {
		clientOpts = append(clientOpts, llm.WithTemperature(*opts.Temperature))
	}
	if opts.Logger != nil {
		clientOpts = append(clientOpts, llm.WithLogger(opts.Logger))
	}
	return llm.NewClient(p, model, clientOpts...), nil
}
