package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/hyperjump/hypogen/internal/config"
	"github.com/hyperjump/hypogen/internal/embedding"
	"github.com/hyperjump/hypogen/internal/hypothesis"
	"github.com/hyperjump/hypogen/internal/indexer"
	"github.com/hyperjump/hypogen/internal/llm"
	"github.com/hyperjump/hypogen/internal/network"
	"github.com/hyperjump/hypogen/internal/search"
	"go.uber.org/zap"
)

// Components holds initialized services.
type Components struct {
	Embedder  embedding.Embedder
	Exporter  *network.Neo4jExporter
	Generator *hypothesis.Generator
}

// Close releases every component. The current index keeps its chunk database.
func (c *Components) Close() {
	if c.Generator != nil {
		_ = c.Generator.Close()
	}
	if c.Embedder != nil {
		_ = c.Embedder.Close()
	}
	if c.Exporter != nil {
		_ = c.Exporter.Close(context.Background())
	}
}

func initializeComponents(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Components, error) {
	c := &Components{}
	ok := false
	defer func() {
		if !ok {
			c.Close()
		}
	}()

	inner, err := newEmbedder(cfg.Embedding)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize embedder: %w", err)
	}
	cacheOpts := []embedding.Option{
		embedding.WithNamespace(cfg.Embedding.Provider + ":" + cfg.Embedding.Model),
		embedding.WithLogger(logger),
	}
	if cfg.Embedding.RedisURL != "" {
		client, err := embedding.NewRedisClient(ctx, cfg.Embedding.RedisURL)
		if err != nil {
			_ = inner.Close()
			return nil, fmt.Errorf("failed to connect to redis: %w", err)
		}
		cacheOpts = append(cacheOpts, embedding.WithRedis(client, cfg.Embedding.RedisTTL))
	}
	c.Embedder = embedding.NewCachedEmbedder(inner, cfg.Embedding.CacheSize, cacheOpts...)

	c.Exporter, err = network.NewNeo4jExporter(ctx, network.Neo4jConfig{
		URI:      cfg.Graph.Neo4jURI,
		User:     cfg.Graph.Neo4jUser,
		Password: cfg.Graph.Neo4jPassword,
		Database: cfg.Graph.Neo4jDatabase,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to neo4j: %w", err)
	}

	agent := llm.NewAgent(newChatClient(cfg.LLM, logger), cfg.LLM.PromptInstructions, llm.WithLogger(logger))

	dirs := hypothesis.DataDirs{
		KEGG:          cfg.Data.KEGGDir,
		GO:            cfg.Data.GODir,
		Literature:    cfg.Data.LiteratureDir,
		GAFBatchLines: cfg.Data.GAFBatchLines,
	}
	newStorage := hypothesis.GenerationStorage(cfg.Embedding.Dimensions, cfg.Storage.DatabasePath)
	c.Generator = hypothesis.New(
		hypothesis.IndexBuilder(dirs, c.Embedder, newStorage, logger, indexOptions(cfg.Index)...),
		hypothesis.NetworkBuilder(cfg.Data.KEGGDir, c.Exporter, logger),
		agent,
		hypothesis.WithLogger(logger),
		hypothesis.WithTopK(cfg.Index.TopK),
		hypothesis.WithMaxRetries(maxRetries(cfg.LLM)),
	)
	ok = true
	return c, nil
}

func newEmbedder(cfg config.EmbeddingConfig) (embedding.Embedder, error) {
	switch strings.ToLower(cfg.Provider) {
	case config.ProviderOpenAI:
		return embedding.NewOpenAIEmbedder(embedding.OpenAIConfig{
			APIKey:     cfg.APIKey,
			BaseURL:    cfg.BaseURL,
			Model:      cfg.Model,
			Dimensions: cfg.Dimensions,
		})
	case config.ProviderONNX:
		return embedding.NewONNXEmbedder(cfg.ModelPath, cfg.Dimensions, cfg.MaxTokens)
	case config.ProviderMock:
		return embedding.NewMockEmbedder(cfg.Dimensions), nil
	default:
		return nil, fmt.Errorf("unknown embedding provider %q", cfg.Provider)
	}
}

func newChatClient(cfg config.LLMConfig, logger *zap.Logger) llm.ChatClient {
	if cfg.Provider == config.ProviderMock {
		return llm.EchoClient{}
	}
	return llm.NewOpenAIClient(llm.OpenAIConfig{
		APIKey:      cfg.APIKey,
		BaseURL:     cfg.BaseURL,
		Model:       cfg.Model,
		Temperature: cfg.Temperature,
		Timeout:     cfg.Timeout,
	}, llm.WithLogger(logger))
}

func indexOptions(cfg config.IndexConfig) []indexer.Option {
	return []indexer.Option{
		indexer.WithChunking(cfg.ChunkSize, cfg.ChunkOverlap),
		indexer.WithSplitWorkers(cfg.SplitWorkers),
		indexer.WithInsertWorkers(cfg.InsertWorkers),
		indexer.WithEmbedBatchSize(cfg.EmbedBatchSize),
		indexer.WithWeights(search.Weights{Semantic: cfg.SemanticWeight, Keyword: cfg.KeywordWeight}),
	}
}

func maxRetries(cfg config.LLMConfig) int {
	if cfg.MaxRetries == nil {
		return config.DefaultMaxRetries
	}
	return *cfg.MaxRetries
}
