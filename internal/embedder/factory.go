package embedder

import (
	"fmt"
	"os"
	"strings"
)

// Config holds embedder configuration
type Config struct {
	Provider string
	Model    string // Empty selects the provider's default
	APIKey   string // Empty falls back to the provider's environment variable

	// Endpoint overrides the remote API URL (self-hosted gateways, tests)
	Endpoint string

	CacheSize int
}

// NewFromEnv creates an embedder based on environment variables
// Priority:
// 1. CODESCOPE_EMBEDDING_PROVIDER (jina, openai, local)
// 2. Check for API keys: JINA_API_KEY, OPENAI_API_KEY
// 3. Default to local if no API keys found
func NewFromEnv() (Embedder, error) {
	return New(Config{
		Provider:  DetectProvider(),
		Model:     os.Getenv(EnvModel),
		CacheSize: 10000,
	})
}

// New creates an embedder with explicit configuration
func New(cfg Config) (Embedder, error) {
	var cache *Cache
	if cfg.CacheSize > 0 {
		cache = NewCache(cfg.CacheSize)
	}

	switch strings.ToLower(cfg.Provider) {
	case ProviderJina:
		return newRemoteProvider(jinaSpec, cfg.APIKey, cfg.Model, cfg.Endpoint, cache)
	case ProviderOpenAI:
		return newRemoteProvider(openAISpec, cfg.APIKey, cfg.Model, cfg.Endpoint, cache)
	case ProviderLocal, "":
		return NewLocalProvider(cache)
	default:
		return nil, fmt.Errorf("%w: unknown provider %s", ErrUnsupportedModel, cfg.Provider)
	}
}

// DetectProvider returns the provider that would be used based on current environment
func DetectProvider() string {
	provider := os.Getenv(EnvProvider)
	if provider != "" {
		return strings.ToLower(provider)
	}

	if os.Getenv(EnvJinaAPIKey) != "" {
		return ProviderJina
	}
	if os.Getenv(EnvOpenAIAPIKey) != "" {
		return ProviderOpenAI
	}

	return ProviderLocal
}

// DefaultModel returns the default model name for a provider
func DefaultModel(provider string) string {
	switch strings.ToLower(provider) {
	case ProviderJina:
		return DefaultJinaModel
	case ProviderOpenAI:
		return DefaultOpenAIModel
	default:
		return DefaultLocalModel
	}
}

// IsRemote reports whether a provider calls a hosted API
func IsRemote(provider string) bool {
	switch strings.ToLower(provider) {
	case ProviderJina, ProviderOpenAI:
		return true
	}
	return false
}
