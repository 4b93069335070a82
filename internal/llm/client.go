package llm

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// maxResponseSize caps the provider response body read into memory.
const maxResponseSize = 10 * 1024 * 1024

// Client is a Model that talks to an HTTP provider. It performs exactly one
// request per Turn; retries are the caller's decision.
type Client struct {
	provider    Provider
	baseURL     string
	model       string
	apiKey      string
	temperature *float64
	maxTokens   int
	httpClient  *http.Client
	logger      *zap.Logger
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(c *http.Client) ClientOption {
	return func(cl *Client) { cl.httpClient = c }
}

// WithBaseURL overrides the provider's default endpoint.
func WithBaseURL(url string) ClientOption {
	return func(cl *Client) { cl.baseURL = url }
}

// WithAPIKey sets the credential passed to the provider.
func WithAPIKey(key string) ClientOption {
	return func(cl *Client) { cl.apiKey = key }
}

// WithTemperature sets an explicit sampling temperature.
func WithTemperature(t float64) ClientOption {
	return func(cl *Client) { cl.temperature = &t }
}

// WithMaxTokens caps the completion length.
func WithMaxTokens(n int) ClientOption {
	return func(cl *Client) { cl.maxTokens = n }
}

// WithLogger sets the client's logger.
func WithLogger(l *zap.Logger) ClientOption {
	return func(cl *Client) { cl.logger = l }
}

// NewClient creates a client for the given provider and model.
func NewClient(provider Provider, model string, opts ...ClientOption) *Client {
	c := &Client{
		provider: provider,
		model:    model,
		httpClient: &http.Client{
			Timeout: 5 * time.Minute,
		},
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Name returns "provider/model".
func (c *Client) Name() string {
	return c.provider.Name() + "/" + c.model
}

// Turn sends one turn request.
func (c *Client) Turn(ctx context.Context, req *TurnRequest) (*TurnResponse, error) {
	url := c.provider.BuildURL(c.baseURL)

	body, err := c.provider.BuildRequestBody(c.model, req, c.temperature, c.maxTokens)
	if err != nil {
		return nil, NewFatalError(fmt.Errorf("build request body: %w", err))
	}

	c.logger.Debug("model_request",
		zap.String("provider", c.provider.Name()),
		zap.String("model", c.model),
		zap.String("run_id", req.RunID),
		zap.Int("turn", req.Turn),
		zap.Int("bytes", len(body)))

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, NewFatalError(fmt.Errorf("create HTTP request: %w", err))
	}
	httpReq.Header.Set("Content-Type", "application/json")
	c.provider.SetHeaders(httpReq, c.apiKey)

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		// Network errors are transient
		return nil, NewTransientError(fmt.Errorf("HTTP request failed: %w", err))
	}
	defer httpResp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(httpResp.Body, maxResponseSize))
	if err != nil {
		return nil, NewTransientError(fmt.Errorf("read response body: %w", err))
	}

	if httpResp.StatusCode != http.StatusOK {
		return nil, classifyHTTPError(httpResp.StatusCode, respBody)
	}

	resp, err := c.provider.ParseResponse(respBody)
	if err != nil {
		return nil, err
	}
	if resp.Model == "" {
		resp.Model = c.model
	}
	return resp, nil
}

// classifyHTTPError determines if an HTTP error is transient or fatal.
func classifyHTTPError(statusCode int, body []byte) error {
	bodyStr := string(body)
	if len(bodyStr) > 200 {
		bodyStr = bodyStr[:200] + "..."
	}

	err := fmt.Errorf("model API error (status %d): %s", statusCode, bodyStr)

	switch {
	case statusCode == http.StatusTooManyRequests:
		return NewTransientError(err)
	case statusCode == http.StatusRequestTimeout:
		return NewTransientError(err)
	case statusCode >= 500:
		return NewTransientError(err)
	default:
		// Auth failures, bad requests and anything unexpected
		return NewFatalError(err)
	}
}
