// Package config provides configuration loading and structs for hypogen.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// ErrMissingAPIKey is returned by Validate when the OpenAI provider is selected without a key.
var ErrMissingAPIKey = errors.New("openai api key is required (set OPENAI_API_KEY)")

// Config holds all configuration for the application.
type Config struct {
	Debug     bool            `yaml:"debug"`
	Server    ServerConfig    `yaml:"server"`
	Data      DataConfig      `yaml:"data"`
	Index     IndexConfig     `yaml:"index"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	LLM       LLMConfig       `yaml:"llm"`
	Storage   StorageConfig   `yaml:"storage"`
	Graph     GraphConfig     `yaml:"graph"`
	Watch     WatchConfig     `yaml:"watch"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host           string        `yaml:"host"`
	Port           int           `yaml:"port"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
}

// DataConfig holds the input directories.
type DataConfig struct {
	KEGGDir       string `yaml:"kegg_dir"`
	GODir         string `yaml:"go_dir"`
	LiteratureDir string `yaml:"literature_dir"`
	GAFBatchLines int    `yaml:"gaf_batch_lines"`
}

// IndexConfig holds splitting, worker pool and retrieval settings.
type IndexConfig struct {
	SplitWorkers   int     `yaml:"split_workers"`
	InsertWorkers  int     `yaml:"insert_workers"`
	ChunkSize      int     `yaml:"chunk_size"`
	ChunkOverlap   int     `yaml:"chunk_overlap"`
	EmbedBatchSize int     `yaml:"embed_batch_size"`
	TopK           int     `yaml:"top_k"`
	SemanticWeight float64 `yaml:"semantic_weight"`
	KeywordWeight  float64 `yaml:"keyword_weight"`
}

// EmbeddingConfig selects and configures the embedder.
type EmbeddingConfig struct {
	Provider   string        `yaml:"provider"` // openai, onnx, mock
	Model      string        `yaml:"model"`
	BaseURL    string        `yaml:"base_url"`
	APIKey     string        `yaml:"api_key"`
	Dimensions int           `yaml:"dimensions"`
	ModelPath  string        `yaml:"model_path"`
	MaxTokens  int           `yaml:"max_tokens"`
	CacheSize  int           `yaml:"cache_size"`
	RedisURL   string        `yaml:"redis_url"`
	RedisTTL   time.Duration `yaml:"redis_ttl"`
}

// LLMConfig configures the chat completion provider.
type LLMConfig struct {
	Provider           string        `yaml:"provider"`
	APIKey             string        `yaml:"api_key"`
	BaseURL            string        `yaml:"base_url"`
	Model              string        `yaml:"model"`
	PromptInstructions string        `yaml:"prompt_instructions"`
	Temperature        *float64      `yaml:"temperature"`
	Timeout            time.Duration `yaml:"timeout"`
	MaxRetries         *int          `yaml:"max_retries"` // nil means 2; 0 disables retries
}

// StorageConfig holds optional persistence paths. Empty means in-memory only.
type StorageConfig struct {
	DatabasePath string `yaml:"database_path"`
	VectorPath   string `yaml:"vector_path"`
}

// GraphConfig holds optional Neo4j export settings.
type GraphConfig struct {
	Neo4jURI      string `yaml:"neo4j_uri"`
	Neo4jUser     string `yaml:"neo4j_user"`
	Neo4jPassword string `yaml:"neo4j_password"`
	Neo4jDatabase string `yaml:"neo4j_database"`
}

// WatchConfig controls rebuild-on-change of the data directories.
type WatchConfig struct {
	Enabled  bool          `yaml:"enabled"`
	Debounce time.Duration `yaml:"debounce"`
}

// Load reads and parses the config file at path, applies defaults and expands paths.
// Returns an error if the file cannot be read or parsed.
func Load(path string) (*Config, error) {
	cfg, err := read(path)
	if err != nil {
		return nil, err
	}
	ApplyDefaults(cfg)
	return cfg, nil
}

// read parses the config file at path and expands its paths, leaving unset fields zero.
func read(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	configDir := filepath.Dir(path)
	cfg.Data.KEGGDir = expandPath(cfg.Data.KEGGDir, configDir)
	cfg.Data.GODir = expandPath(cfg.Data.GODir, configDir)
	cfg.Data.LiteratureDir = expandPath(cfg.Data.LiteratureDir, configDir)
	cfg.Storage.DatabasePath = expandPath(cfg.Storage.DatabasePath, configDir)
	cfg.Storage.VectorPath = expandPath(cfg.Storage.VectorPath, configDir)
	cfg.Embedding.ModelPath = expandPath(cfg.Embedding.ModelPath, configDir)

	return &cfg, nil
}

// Default returns a config with every default applied and no file loaded.
func Default() *Config {
	cfg := &Config{}
	ApplyDefaults(cfg)
	return cfg
}

// Resolve builds the process configuration: the YAML file at path (optional, "" skips it),
// then environment overrides (including envFile when it exists), then defaults, then Validate.
// Defaults are applied last so derived values such as the embedding base URL follow the
// environment.
func Resolve(path, envFile string) (*Config, error) {
	cfg := &Config{}
	if path != "" {
		loaded, err := read(path)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}
	if err := ApplyEnv(cfg, envFile); err != nil {
		return nil, err
	}
	ApplyDefaults(cfg)
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate reports configuration errors that must stop the process at startup. Provider
// names are expected in the lower case ApplyDefaults normalizes them to.
func Validate(cfg *Config) error {
	if cfg.LLM.Provider == ProviderOpenAI && strings.TrimSpace(cfg.LLM.APIKey) == "" {
		return ErrMissingAPIKey
	}
	if cfg.Embedding.Provider == ProviderOpenAI && strings.TrimSpace(cfg.Embedding.APIKey) == "" {
		return ErrMissingAPIKey
	}
	switch cfg.LLM.Provider {
	case ProviderOpenAI, ProviderMock:
	default:
		return fmt.Errorf("unknown llm provider %q (supported: openai, mock)", cfg.LLM.Provider)
	}
	switch cfg.Embedding.Provider {
	case ProviderOpenAI, ProviderONNX, ProviderMock:
	default:
		return fmt.Errorf("unknown embedding provider %q (supported: openai, onnx, mock)", cfg.Embedding.Provider)
	}
	if cfg.Index.ChunkSize <= 0 {
		return fmt.Errorf("index.chunk_size must be positive, got %d", cfg.Index.ChunkSize)
	}
	if cfg.Index.ChunkOverlap < 0 || cfg.Index.ChunkOverlap >= cfg.Index.ChunkSize {
		return fmt.Errorf("index.chunk_overlap must be in [0, chunk_size), got %d", cfg.Index.ChunkOverlap)
	}
	if cfg.Index.SplitWorkers <= 0 || cfg.Index.InsertWorkers <= 0 {
		return fmt.Errorf("worker counts must be positive (split=%d insert=%d)", cfg.Index.SplitWorkers, cfg.Index.InsertWorkers)
	}
	if cfg.Data.GAFBatchLines <= 0 {
		return fmt.Errorf("data.gaf_batch_lines must be positive, got %d", cfg.Data.GAFBatchLines)
	}
	if cfg.Embedding.Dimensions <= 0 {
		return fmt.Errorf("embedding.dimensions must be positive, got %d", cfg.Embedding.Dimensions)
	}
	return nil
}

// Save writes the config to path.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// expandPath resolves "./" paths against configDir and "~/" paths against the home directory.
// Other paths are returned unchanged (relative paths stay relative to the working directory).
func expandPath(path string, configDir string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	if strings.HasPrefix(path, "./") || path == "." {
		return filepath.Join(configDir, path)
	}
	if strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, path[2:])
		}
	}
	return path
}
