package llm

import (
	"net/http"
	"sort"
	"sync"
)

// Provider adapts the turn protocol to one HTTP API dialect.
type Provider interface {
	// Name returns the provider identifier (e.g., "xai", "anthropic").
	Name() string

	// BuildURL constructs the full API endpoint URL.
	BuildURL(baseURL string) string

	// SetHeaders adds provider-specific headers, including authentication.
	SetHeaders(req *http.Request, apiKey string)

	// BuildRequestBody creates the JSON request body for one turn.
	// temperature is nil to use the provider default.
	BuildRequestBody(model string, req *TurnRequest, temperature *float64, maxTokens int) ([]byte, error)

	// ParseResponse extracts the turn envelope from the provider's JSON.
	ParseResponse(body []byte) (*TurnResponse, error)
}

var (
	providerRegistry = make(map[string]Provider)
	providerMu       sync.RWMutex
)

// RegisterProvider adds a provider to the registry.
func RegisterProvider(p Provider) {
	providerMu.Lock()
	defer providerMu.Unlock()
	providerRegistry[p.Name()] = p
}

// GetProvider retrieves a provider by name.
func GetProvider(name string) Provider {
	providerMu.RLock()
	defer providerMu.RUnlock()
	return providerRegistry[name]
}

// ListProviders returns all registered provider names, sorted.
func ListProviders() []string {
	providerMu.RLock()
	defer providerMu.RUnlock()

	names := make([]string, 0, len(providerRegistry))
	for name := range providerRegistry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
