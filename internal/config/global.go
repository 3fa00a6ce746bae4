package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"gopkg.in/yaml.v3"

	"github.com/dshills/codescope/internal/changes"
	"github.com/dshills/codescope/internal/embedder"
)

// Global config keys
const (
	KeyEmbeddingProvider = "embedding_provider"
	KeyEmbeddingModel    = "embedding_model"
	KeyOpenAIAPIKey      = "openai_api_key"
	KeyJinaAPIKey        = "jina_api_key"
)

// ErrUnknownKey is returned by Set for keys the global file does not hold.
var ErrUnknownKey = errors.New("unknown config key")

// ValidKeys maps each settable global key to its description.
var ValidKeys = map[string]string{
	KeyEmbeddingProvider: "Embedding provider: 'local', 'openai' or 'jina'",
	KeyEmbeddingModel:    "Embedding model name (e.g. 'text-embedding-3-small')",
	KeyOpenAIAPIKey:      "OpenAI API key (required for the openai provider)",
	KeyJinaAPIKey:        "Jina API key (required for the jina provider)",
}

// SensitiveKeys are masked whenever the global config is displayed.
var SensitiveKeys = map[string]bool{
	KeyOpenAIAPIKey: true,
	KeyJinaAPIKey:   true,
}

// Global holds user-wide settings from ~/.codescope/config.yaml.
type Global struct {
	EmbeddingProvider string `yaml:"embedding_provider,omitempty"`
	EmbeddingModel    string `yaml:"embedding_model,omitempty"`
	OpenAIAPIKey      string `yaml:"openai_api_key,omitempty"`
	JinaAPIKey        string `yaml:"jina_api_key,omitempty"`
}

// Validate validates the global configuration.
func (g *Global) Validate() error {
	return validation.ValidateStruct(g,
		validation.Field(&g.EmbeddingProvider,
			validation.In(embedder.ProviderLocal, embedder.ProviderOpenAI, embedder.ProviderJina)),
	)
}

// DefaultGlobalPath returns ~/.codescope/config.yaml.
func DefaultGlobalPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(home, ".codescope", ProjectFileName), nil
}

// LoadGlobal reads the global file. An empty path or a missing file gives
// an empty Global.
func LoadGlobal(path string) (*Global, error) {
	g := &Global{}
	if path == "" {
		return g, nil
	}
	if _, err := LoadIfExists(path, g); err != nil {
		return nil, err
	}
	return g, nil
}

// Save writes the global file.
func (g *Global) Save(path string) error {
	data, err := yaml.Marshal(g)
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	return changes.WriteFileAtomic(path, data)
}

// Set assigns one key. The provider value is validated.
func (g *Global) Set(key, value string) error {
	switch key {
	case KeyEmbeddingProvider:
		g.EmbeddingProvider = strings.ToLower(value)
		return g.Validate()
	case KeyEmbeddingModel:
		g.EmbeddingModel = value
	case KeyOpenAIAPIKey:
		g.OpenAIAPIKey = value
	case KeyJinaAPIKey:
		g.JinaAPIKey = value
	default:
		return fmt.Errorf("%w: %s", ErrUnknownKey, key)
	}
	return nil
}

// Values returns the set keys, sensitive ones masked.
func (g *Global) Values() map[string]string {
	raw := map[string]string{
		KeyEmbeddingProvider: g.EmbeddingProvider,
		KeyEmbeddingModel:    g.EmbeddingModel,
		KeyOpenAIAPIKey:      g.OpenAIAPIKey,
		KeyJinaAPIKey:        g.JinaAPIKey,
	}
	out := make(map[string]string, len(raw))
	for k, v := range raw {
		if v == "" {
			continue
		}
		if SensitiveKeys[k] {
			v = Mask(v)
		}
		out[k] = v
	}
	return out
}

// SortedKeys returns the valid keys in order.
func SortedKeys() []string {
	keys := make([]string, 0, len(ValidKeys))
	for k := range ValidKeys {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func (g *Global) apply(cfg *Config) {
	if g.EmbeddingProvider != "" {
		cfg.Embedding.Provider = g.EmbeddingProvider
	}
	if g.EmbeddingModel != "" {
		cfg.Embedding.Model = g.EmbeddingModel
	}
}

func (g *Global) apiKey(provider string) string {
	switch strings.ToLower(provider) {
	case embedder.ProviderOpenAI:
		return g.OpenAIAPIKey
	case embedder.ProviderJina:
		return g.JinaAPIKey
	}
	return ""
}
