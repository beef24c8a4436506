package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// DefaultEnvFile is read by ApplyEnv when no other env file is given.
const DefaultEnvFile = ".env"

// ApplyEnv overrides cfg with values from the process environment and, when it exists,
// the dotenv file at envFile. Keys are case-insensitive and the process environment wins
// over the file. Empty values are ignored.
func ApplyEnv(cfg *Config, envFile string) error {
	v := viper.New()
	v.AutomaticEnv()
	if envFile != "" {
		if _, err := os.Stat(envFile); err == nil {
			v.SetConfigFile(envFile)
			v.SetConfigType("env")
			if err := v.ReadInConfig(); err != nil {
				return fmt.Errorf("failed to read env file %s: %w", envFile, err)
			}
		}
	}

	e := envReader{v: v}
	e.str("openai_api_key", &cfg.LLM.APIKey)
	e.str("openai_base_url", &cfg.LLM.BaseURL)
	e.str("llm_provider", &cfg.LLM.Provider)
	e.str("model_name", &cfg.LLM.Model)
	e.str("llm_prompt_instructions", &cfg.LLM.PromptInstructions)
	e.duration("llm_timeout", &cfg.LLM.Timeout)
	e.optionalInteger("llm_max_retries", &cfg.LLM.MaxRetries)

	e.str("kegg_data_dir", &cfg.Data.KEGGDir)
	e.str("go_data_dir", &cfg.Data.GODir)
	e.str("literature_dir", &cfg.Data.LiteratureDir)
	e.integer("gaf_batch_lines", &cfg.Data.GAFBatchLines)

	e.integer("split_workers", &cfg.Index.SplitWorkers)
	e.integer("insert_workers", &cfg.Index.InsertWorkers)
	e.integer("chunk_size", &cfg.Index.ChunkSize)
	e.integer("chunk_overlap", &cfg.Index.ChunkOverlap)
	e.integer("top_k", &cfg.Index.TopK)

	e.str("embedding_provider", &cfg.Embedding.Provider)
	e.str("embedding_model", &cfg.Embedding.Model)
	e.str("embedding_base_url", &cfg.Embedding.BaseURL)
	e.str("embedding_model_path", &cfg.Embedding.ModelPath)
	e.integer("embedding_dimensions", &cfg.Embedding.Dimensions)
	e.str("redis_url", &cfg.Embedding.RedisURL)

	e.str("storage_database_path", &cfg.Storage.DatabasePath)
	e.str("storage_vector_path", &cfg.Storage.VectorPath)

	e.str("neo4j_uri", &cfg.Graph.Neo4jURI)
	e.str("neo4j_user", &cfg.Graph.Neo4jUser)
	e.str("neo4j_password", &cfg.Graph.Neo4jPassword)
	e.str("neo4j_database", &cfg.Graph.Neo4jDatabase)

	e.str("server_host", &cfg.Server.Host)
	e.integer("server_port", &cfg.Server.Port)
	e.boolean("watch", &cfg.Watch.Enabled)
	e.boolean("debug", &cfg.Debug)

	return e.err
}

// envReader copies viper values into config fields and keeps the first conversion error.
type envReader struct {
	v   *viper.Viper
	err error
}

func (e *envReader) lookup(key string) (string, bool) {
	s := strings.TrimSpace(e.v.GetString(key))
	return s, s != ""
}

func (e *envReader) str(key string, dst *string) {
	if s, ok := e.lookup(key); ok {
		*dst = s
	}
}

func (e *envReader) integer(key string, dst *int) {
	s, ok := e.lookup(key)
	if !ok {
		return
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		e.fail(key, s, err)
		return
	}
	*dst = n
}

// optionalInteger sets *dst even to zero, which a plain integer field cannot tell from unset.
func (e *envReader) optionalInteger(key string, dst **int) {
	s, ok := e.lookup(key)
	if !ok {
		return
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		e.fail(key, s, err)
		return
	}
	*dst = &n
}

func (e *envReader) duration(key string, dst *time.Duration) {
	s, ok := e.lookup(key)
	if !ok {
		return
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		e.fail(key, s, err)
		return
	}
	*dst = d
}

func (e *envReader) boolean(key string, dst *bool) {
	s, ok := e.lookup(key)
	if !ok {
		return
	}
	b, err := strconv.ParseBool(s)
	if err != nil {
		e.fail(key, s, err)
		return
	}
	*dst = b
}

func (e *envReader) fail(key, value string, err error) {
	if e.err == nil {
		e.err = fmt.Errorf("invalid %s=%q: %w", strings.ToUpper(key), value, err)
	}
}
