package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/dyluth/auditor/internal/perspective"
	"gopkg.in/yaml.v3"
)

// Defaults applied by Validate.
const (
	DefaultMaxTurns            = 40
	DefaultTurnTimeout         = 2 * time.Minute
	DefaultBlackboardWindow    = 20
	DefaultBatchSize           = 10
	DefaultMaxTransportRetries = 3
	DefaultRedisURL            = "redis://localhost:6379"

	// MaxTurnsLimit is the ceiling on orchestrator.max_turns.
	MaxTurnsLimit = 200
)

// RedisURLEnv overrides redis.url when set.
const RedisURLEnv = "AUDITOR_REDIS_URL"

// providerKeyEnv is the default api_key_env per provider. Ollama runs
// locally and needs no key.
var providerKeyEnv = map[string]string{
	"xai":       "XAI_API_KEY",
	"openai":    "OPENAI_API_KEY",
	"anthropic": "ANTHROPIC_API_KEY",
	"gemini":    "GEMINI_API_KEY",
	"ollama":    "",
}

// OrchestratorConfig bounds the turn loop
type OrchestratorConfig struct {
	MaxTurns            int      `yaml:"max_turns,omitempty"`
	TurnTimeout         string   `yaml:"turn_timeout,omitempty"`      // Go duration, e.g. "90s"
	BlackboardWindow    int      `yaml:"blackboard_window,omitempty"` // Entries shown to the model each turn
	BatchSize           int      `yaml:"batch_size,omitempty"`
	MaxTransportRetries *int     `yaml:"max_transport_retries,omitempty"` // 0 disables retries
	Lenses              []string `yaml:"lenses,omitempty"`

	turnTimeout time.Duration
}

// TurnTimeoutDuration returns the parsed turn_timeout. Valid after Validate.
func (o *OrchestratorConfig) TurnTimeoutDuration() time.Duration {
	return o.turnTimeout
}

// ProviderConfig selects the model backend
type ProviderConfig struct {
	Name        string   `yaml:"name"`
	Model       string   `yaml:"model"`
	BaseURL     string   `yaml:"base_url,omitempty"`
	APIKeyEnv   string   `yaml:"api_key_env,omitempty"`
	Temperature *float64 `yaml:"temperature,omitempty"`
	MaxTokens   int      `yaml:"max_tokens,omitempty"`
}

// APIKey reads the provider credential from the configured environment variable.
func (p *ProviderConfig) APIKey() string {
	if p.APIKeyEnv == "" {
		return ""
	}
	return os.Getenv(p.APIKeyEnv)
}

// RedisConfig locates the run store
type RedisConfig struct {
	URL string `yaml:"url,omitempty"`
}

// AuditConfig represents the top-level audit.yml configuration
type AuditConfig struct {
	Version      string              `yaml:"version"`
	Orchestrator *OrchestratorConfig `yaml:"orchestrator,omitempty"`
	Provider     ProviderConfig      `yaml:"provider"`
	Redis        *RedisConfig        `yaml:"redis,omitempty"`
}

// Validate performs strict validation on the configuration and fills in
// defaults for omitted optional settings.
func (c *AuditConfig) Validate() error {
	if c.Version == "" {
		c.Version = "1.0"
	}
	if c.Version != "1.0" {
		return fmt.Errorf("unsupported version: %s (expected: 1.0)", c.Version)
	}

	if c.Orchestrator == nil {
		c.Orchestrator = &OrchestratorConfig{}
	}
	if err := c.Orchestrator.validate(); err != nil {
		return err
	}

	if err := c.Provider.validate(); err != nil {
		return err
	}

	if c.Redis == nil {
		c.Redis = &RedisConfig{}
	}
	if c.Redis.URL == "" {
		c.Redis.URL = DefaultRedisURL
	}
	return nil
}

func (o *OrchestratorConfig) validate() error {
	if o.MaxTurns == 0 {
		o.MaxTurns = DefaultMaxTurns
	}
	if o.MaxTurns < 1 || o.MaxTurns > MaxTurnsLimit {
		return fmt.Errorf("orchestrator.max_turns must be between 1 and %d, got %d", MaxTurnsLimit, o.MaxTurns)
	}

	o.turnTimeout = DefaultTurnTimeout
	if o.TurnTimeout != "" {
		d, err := time.ParseDuration(o.TurnTimeout)
		if err != nil {
			return fmt.Errorf("orchestrator.turn_timeout: %w", err)
		}
		if d <= 0 {
			return fmt.Errorf("orchestrator.turn_timeout must be positive, got %s", o.TurnTimeout)
		}
		o.turnTimeout = d
	}

	if o.BlackboardWindow == 0 {
		o.BlackboardWindow = DefaultBlackboardWindow
	}
	if o.BlackboardWindow < 1 || o.BlackboardWindow > 100 {
		return fmt.Errorf("orchestrator.blackboard_window must be between 1 and 100, got %d", o.BlackboardWindow)
	}

	if o.BatchSize == 0 {
		o.BatchSize = DefaultBatchSize
	}
	if o.BatchSize < 1 {
		return fmt.Errorf("orchestrator.batch_size must be >= 1, got %d", o.BatchSize)
	}

	if o.MaxTransportRetries == nil {
		retries := DefaultMaxTransportRetries
		o.MaxTransportRetries = &retries
	}
	if *o.MaxTransportRetries < 0 || *o.MaxTransportRetries > 10 {
		return fmt.Errorf("orchestrator.max_transport_retries must be between 0 and 10, got %d", *o.MaxTransportRetries)
	}

	if len(o.Lenses) == 0 {
		o.Lenses = perspective.IDs()
	}
	for i, id := range o.Lenses {
		o.Lenses[i] = strings.ToLower(strings.TrimSpace(id))
	}
	if err := perspective.Validate(o.Lenses); err != nil {
		return fmt.Errorf("orchestrator.lenses: %w", err)
	}
	return nil
}

func (p *ProviderConfig) validate() error {
	p.Name = strings.ToLower(strings.TrimSpace(p.Name))
	if p.Name == "" {
		return fmt.Errorf("provider.name is required")
	}
	defaultEnv, known := providerKeyEnv[p.Name]
	if !known {
		return fmt.Errorf("invalid provider.name: %s (must be 'xai', 'openai', 'anthropic', 'gemini', or 'ollama')", p.Name)
	}
	if p.Model == "" && p.Name != "gemini" {
		return fmt.Errorf("provider.model is required for %s", p.Name)
	}
	if p.APIKeyEnv == "" {
		p.APIKeyEnv = defaultEnv
	}
	if p.Temperature != nil && (*p.Temperature < 0 || *p.Temperature > 2) {
		return fmt.Errorf("provider.temperature must be between 0 and 2, got %g", *p.Temperature)
	}
	if p.MaxTokens < 0 {
		return fmt.Errorf("provider.max_tokens must be >= 0, got %d", p.MaxTokens)
	}
	return nil
}

// RedisURL returns the store address, preferring AUDITOR_REDIS_URL.
func (c *AuditConfig) RedisURL() string {
	if url := os.Getenv(RedisURLEnv); url != "" {
		return url
	}
	if c.Redis != nil && c.Redis.URL != "" {
		return c.Redis.URL
	}
	return DefaultRedisURL
}

// Parse decodes and validates audit.yml content.
func Parse(data []byte) (*AuditConfig, error) {
	var config AuditConfig
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// Load reads and validates audit.yml from the specified path
func Load(path string) (*AuditConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	return Parse(data)
}
