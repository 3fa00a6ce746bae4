package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/dshills/codescope/internal/chunker"
	"github.com/dshills/codescope/internal/discover"
	"github.com/dshills/codescope/internal/embedder"
	"github.com/dshills/codescope/internal/indexer"
	"github.com/dshills/codescope/internal/searcher"
)

const (
	// ProjectFileName is the project config file inside the state directory.
	ProjectFileName = "config.yaml"

	// DBFileName is the chunk database inside the state directory.
	DBFileName = "codescope.db"

	// EnvLogLevel overrides log_level.
	EnvLogLevel = "CODESCOPE_LOG_LEVEL"
)

// ErrInvalidChunking is returned when the chunk line budget and overlap
// cannot produce progressing windows.
var ErrInvalidChunking = errors.New("invalid chunking settings")

// ErrMissingAPIKey is returned when a remote provider has no API key.
var ErrMissingAPIKey = errors.New("missing API key")

// Config is the effective configuration for one project.
type Config struct {
	Root      string          `yaml:"-"`
	LogLevel  slog.Level      `yaml:"log_level"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	Chunking  ChunkingConfig  `yaml:"chunking"`
	Index     IndexConfig     `yaml:"index"`
	Search    SearchConfig    `yaml:"search"`

	// IgnorePatterns come from the project's ignore file, not from YAML.
	IgnorePatterns []string `yaml:"-"`
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := c.Embedding.Validate(); err != nil {
		return err
	}
	if err := c.Chunking.Validate(); err != nil {
		return err
	}
	if err := c.Index.Validate(); err != nil {
		return err
	}
	return c.Search.Validate()
}

// EmbeddingConfig selects the embedding provider.
type EmbeddingConfig struct {
	Provider  string `yaml:"provider"`
	Model     string `yaml:"model"`
	APIKey    string `yaml:"api_key"`
	Endpoint  string `yaml:"endpoint"`
	CacheSize int    `yaml:"cache_size"`
}

// Validate validates the embedding configuration.
func (c *EmbeddingConfig) Validate() error {
	c.Provider = strings.ToLower(c.Provider)
	return validation.ValidateStruct(c,
		validation.Field(&c.Provider, validation.Required,
			validation.In(embedder.ProviderLocal, embedder.ProviderOpenAI, embedder.ProviderJina)),
		validation.Field(&c.CacheSize, validation.Min(0)),
	)
}

// Remote reports whether the provider calls a hosted API.
func (c *EmbeddingConfig) Remote() bool {
	return embedder.IsRemote(c.Provider)
}

// CheckCredentials fails when a remote provider has no API key.
func (c *EmbeddingConfig) CheckCredentials() error {
	if c.Remote() && c.APIKey == "" {
		return fmt.Errorf("%w: provider %s needs %s", ErrMissingAPIKey, c.Provider, apiKeyEnv(c.Provider))
	}
	return nil
}

// ChunkingConfig holds chunk size settings.
type ChunkingConfig struct {
	MaxLines int `yaml:"max_chunk_lines"`
	Overlap  int `yaml:"chunk_overlap"`
}

// Validate validates the chunking configuration.
func (c *ChunkingConfig) Validate() error {
	if err := validation.ValidateStruct(c,
		validation.Field(&c.MaxLines, validation.Required, validation.Min(1)),
		validation.Field(&c.Overlap, validation.Min(0)),
	); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidChunking, err)
	}
	if c.Overlap >= c.MaxLines {
		return fmt.Errorf("%w: chunk_overlap (%d) must be less than max_chunk_lines (%d)",
			ErrInvalidChunking, c.Overlap, c.MaxLines)
	}
	return nil
}

// IndexConfig holds indexing settings.
type IndexConfig struct {
	Workers         int      `yaml:"workers"`
	BatchSize       int      `yaml:"batch_size"`
	CheckpointEvery int      `yaml:"checkpoint_every"`
	Extensions      []string `yaml:"extensions"`
	IgnoreDirs      []string `yaml:"ignore_dirs"`
}

// Validate validates the index configuration.
func (c *IndexConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Workers, validation.Min(1)),
		validation.Field(&c.BatchSize, validation.Min(1)),
		validation.Field(&c.CheckpointEvery, validation.Min(0)),
		validation.Field(&c.Extensions, validation.Each(validation.Required)),
	)
}

// SearchConfig holds search settings.
type SearchConfig struct {
	NResults int `yaml:"n_results"`
}

// Validate validates the search configuration.
func (c *SearchConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.NResults, validation.Min(1), validation.Max(searcher.MaxLimit)),
	)
}

// NewDefaultConfig returns the defaults for a project rooted at root.
func NewDefaultConfig(root string) *Config {
	return &Config{
		Root:     root,
		LogLevel: slog.LevelInfo,
		Embedding: EmbeddingConfig{
			Provider:  embedder.ProviderLocal,
			CacheSize: 10000,
		},
		Chunking: ChunkingConfig{
			MaxLines: chunker.DefaultMaxLines,
			Overlap:  chunker.DefaultOverlap,
		},
		Index: IndexConfig{
			Workers:    runtime.NumCPU(),
			BatchSize:  indexer.DefaultBatchSize,
			Extensions: append([]string(nil), discover.DefaultExtensions...),
			IgnoreDirs: append([]string(nil), discover.DefaultIgnoreDirs...),
		},
		Search: SearchConfig{
			NResults: searcher.DefaultLimit,
		},
	}
}

// StateDir is the project's .codescope directory.
func (c *Config) StateDir() string {
	return filepath.Join(c.Root, indexer.StateDirName)
}

// DBPath is the chunk database location.
func (c *Config) DBPath() string {
	return filepath.Join(c.StateDir(), DBFileName)
}

// ProjectFile is the optional project config location.
func (c *Config) ProjectFile() string {
	return filepath.Join(c.StateDir(), ProjectFileName)
}

// IgnoreFile is the project's ignore pattern file.
func (c *Config) IgnoreFile() string {
	return filepath.Join(c.StateDir(), discover.IgnoreFileName)
}

// Indexed reports whether the project has a database.
func (c *Config) Indexed() bool {
	_, err := os.Stat(c.DBPath())
	return err == nil
}

// DiscoverOptions returns the candidate file rules.
func (c *Config) DiscoverOptions() discover.Options {
	return discover.Options{
		Extensions: c.Index.Extensions,
		IgnoreDirs: c.Index.IgnoreDirs,
		Matcher:    discover.NewMatcher(c.IgnorePatterns),
	}
}

// IndexerConfig returns the indexer settings.
func (c *Config) IndexerConfig() indexer.Config {
	return indexer.Config{
		Root:            c.Root,
		StateDir:        c.StateDir(),
		Workers:         c.Index.Workers,
		BatchSize:       c.Index.BatchSize,
		MaxLines:        c.Chunking.MaxLines,
		Overlap:         c.Chunking.Overlap,
		CheckpointEvery: c.Index.CheckpointEvery,
		Discover:        c.DiscoverOptions(),
	}
}

// EmbedderConfig returns the embedder settings.
func (c *Config) EmbedderConfig() embedder.Config {
	return embedder.Config{
		Provider:  c.Embedding.Provider,
		Model:     c.Embedding.Model,
		APIKey:    c.Embedding.APIKey,
		Endpoint:  c.Embedding.Endpoint,
		CacheSize: c.Embedding.CacheSize,
	}
}

// Overrides are explicit settings, typically command-line flags. Zero
// values are ignored.
type Overrides struct {
	Provider string
	Model    string
	NResults int
	LogLevel *slog.Level
}

// Resolve builds the effective configuration for root. Later sources win:
// defaults, global file, project file, environment, overrides.
func Resolve(root, globalPath string, o Overrides) (*Config, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve project root: %w", err)
	}
	cfg := NewDefaultConfig(abs)

	global, err := LoadGlobal(globalPath)
	if err != nil {
		return nil, err
	}
	global.apply(cfg)

	provider, model := cfg.Embedding.Provider, cfg.Embedding.Model
	if _, err := LoadIfExists(cfg.ProjectFile(), cfg); err != nil {
		return nil, err
	}
	if cfg.Embedding.Provider != provider && cfg.Embedding.Model == model {
		cfg.Embedding.Model = ""
	}

	applyEnv(cfg)
	o.apply(cfg)

	if cfg.Embedding.Model == "" {
		cfg.Embedding.Model = embedder.DefaultModel(cfg.Embedding.Provider)
	}
	if cfg.Embedding.Remote() {
		if v := os.Getenv(apiKeyEnv(cfg.Embedding.Provider)); v != "" {
			cfg.Embedding.APIKey = v
		} else if cfg.Embedding.APIKey == "" {
			cfg.Embedding.APIKey = global.apiKey(cfg.Embedding.Provider)
		}
	}

	lines, err := discover.LoadIgnoreFile(cfg.IgnoreFile())
	if err != nil {
		return nil, err
	}
	cfg.IgnorePatterns = discover.NewMatcher(lines).Patterns()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv(embedder.EnvProvider); v != "" {
		if !strings.EqualFold(v, cfg.Embedding.Provider) {
			cfg.Embedding.Model = ""
			cfg.Embedding.APIKey = ""
		}
		cfg.Embedding.Provider = strings.ToLower(v)
	}
	if v := os.Getenv(embedder.EnvModel); v != "" {
		cfg.Embedding.Model = v
	}
	if v := os.Getenv(EnvLogLevel); v != "" {
		var level slog.Level
		if err := level.UnmarshalText([]byte(v)); err == nil {
			cfg.LogLevel = level
		}
	}
}

func (o Overrides) apply(cfg *Config) {
	if o.Provider != "" {
		if !strings.EqualFold(o.Provider, cfg.Embedding.Provider) {
			cfg.Embedding.Model = ""
			cfg.Embedding.APIKey = ""
		}
		cfg.Embedding.Provider = strings.ToLower(o.Provider)
	}
	if o.Model != "" {
		cfg.Embedding.Model = o.Model
	}
	if o.NResults > 0 {
		cfg.Search.NResults = o.NResults
	}
	if o.LogLevel != nil {
		cfg.LogLevel = *o.LogLevel
	}
}

func apiKeyEnv(provider string) string {
	if strings.EqualFold(provider, embedder.ProviderJina) {
		return embedder.EnvJinaAPIKey
	}
	return embedder.EnvOpenAIAPIKey
}

// Mask hides all but the ends of a sensitive value.
func Mask(value string) string {
	if len(value) <= 8 {
		return value
	}
	return value[:4] + "..." + value[len(value)-4:]
}
