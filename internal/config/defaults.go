package config

import (
	"runtime"
	"strings"
	"time"
)

// Provider names accepted by llm.provider and embedding.provider.
const (
	ProviderOpenAI = "openai"
	ProviderONNX   = "onnx"
	ProviderMock   = "mock"
)

// DefaultMaxRetries is the number of retries of a transient model error.
const DefaultMaxRetries = 2

// DefaultPromptInstructions is the system prompt used when none is configured.
const DefaultPromptInstructions = "You are an LLM that generates biomedical hypotheses regarding gene involvement " +
	"in diseases based on integrated KEGG and Gene Ontology data. Consider both the aggregated database context " +
	"and downstream gene interactions computed via network analysis in your reasoning. Provide concise, " +
	"evidence-based conclusions."

// ApplyDefaults sets default values for any zero values in cfg. It is idempotent.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.RequestTimeout == 0 {
		cfg.Server.RequestTimeout = 120 * time.Second
	}
	if cfg.Data.KEGGDir == "" {
		cfg.Data.KEGGDir = "data/kegg"
	}
	if cfg.Data.GODir == "" {
		cfg.Data.GODir = "data/go"
	}
	if cfg.Data.GAFBatchLines == 0 {
		cfg.Data.GAFBatchLines = 10000
	}
	if cfg.Index.SplitWorkers == 0 {
		cfg.Index.SplitWorkers = runtime.NumCPU()
	}
	if cfg.Index.InsertWorkers == 0 {
		cfg.Index.InsertWorkers = 4
	}
	if cfg.Index.ChunkSize == 0 {
		cfg.Index.ChunkSize = 512
	}
	if cfg.Index.ChunkOverlap == 0 {
		cfg.Index.ChunkOverlap = 50
	}
	if cfg.Index.EmbedBatchSize == 0 {
		cfg.Index.EmbedBatchSize = 64
	}
	if cfg.Index.TopK == 0 {
		cfg.Index.TopK = 4
	}
	if cfg.Index.SemanticWeight == 0 && cfg.Index.KeywordWeight == 0 {
		cfg.Index.SemanticWeight = 0.7
		cfg.Index.KeywordWeight = 0.3
	}
	cfg.LLM.Provider = strings.ToLower(strings.TrimSpace(cfg.LLM.Provider))
	cfg.Embedding.Provider = strings.ToLower(strings.TrimSpace(cfg.Embedding.Provider))
	if cfg.LLM.Provider == "" {
		cfg.LLM.Provider = ProviderOpenAI
	}
	if cfg.LLM.BaseURL == "" {
		cfg.LLM.BaseURL = "https://api.openai.com/v1"
	}
	if cfg.LLM.Model == "" {
		cfg.LLM.Model = "gpt-4o-mini"
	}
	if cfg.LLM.PromptInstructions == "" {
		cfg.LLM.PromptInstructions = DefaultPromptInstructions
	}
	if cfg.LLM.Timeout == 0 {
		cfg.LLM.Timeout = 60 * time.Second
	}
	if cfg.LLM.MaxRetries == nil {
		n := DefaultMaxRetries
		cfg.LLM.MaxRetries = &n
	}
	if cfg.Embedding.Provider == "" {
		cfg.Embedding.Provider = ProviderOpenAI
	}
	if cfg.Embedding.Model == "" {
		cfg.Embedding.Model = "text-embedding-3-small"
	}
	if cfg.Embedding.BaseURL == "" {
		cfg.Embedding.BaseURL = cfg.LLM.BaseURL
	}
	if cfg.Embedding.APIKey == "" {
		cfg.Embedding.APIKey = cfg.LLM.APIKey
	}
	if cfg.Embedding.Dimensions == 0 {
		cfg.Embedding.Dimensions = 1536
	}
	if cfg.Embedding.MaxTokens == 0 {
		cfg.Embedding.MaxTokens = 256
	}
	if cfg.Embedding.CacheSize == 0 {
		cfg.Embedding.CacheSize = 10000
	}
	if cfg.Embedding.RedisTTL == 0 {
		cfg.Embedding.RedisTTL = 24 * time.Hour
	}
	if cfg.Graph.Neo4jUser == "" {
		cfg.Graph.Neo4jUser = "neo4j"
	}
	if cfg.Watch.Debounce == 0 {
		cfg.Watch.Debounce = 400 * time.Millisecond
	}
}
