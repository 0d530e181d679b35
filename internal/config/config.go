package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
)

type Config struct {
	Port         int
	Transport    string
	APIKey       string
	LogLevel     string
	TracesStderr bool
	SeedOnStart  bool
	// Full-text search
	SearchBackend         string
	ElasticsearchURL      string
	ElasticsearchUsername string
	ElasticsearchPassword string
	BleveIndexDir         string
	DefaultIndex          string
	DefaultSearchSize     int
	// Vector search
	VectorBackend     string
	ChromaURL         string
	ChromaTenant      string
	ChromaDatabase    string
	DefaultCollection string
	DefaultNResults   int
	// Embeddings
	EmbeddingFunction  string
	OllamaBaseURL      string
	EmbeddingModel     string
	EmbeddingDim       int
	EmbeddingCachePath string
	// Chat model used by the drivers
	AnthropicAPIKey string
	AnthropicModel  string
	MaxTokens       int
}

func Load() (*Config, error) {
	cfg := &Config{
		Port:                  envInt("PORT", 3000),
		Transport:             strings.ToLower(envStr("MCP_TRANSPORT", "stdio")),
		APIKey:                envStr("MCP_API_KEY", ""),
		LogLevel:              strings.ToLower(envStr("LOG_LEVEL", "info")),
		TracesStderr:          envBool("OTEL_TRACES_STDERR", false),
		SeedOnStart:           envBool("SEED_ON_START", false),
		SearchBackend:         strings.ToLower(envStr("SEARCH_BACKEND", "elasticsearch")),
		ElasticsearchURL:      envStr("ELASTICSEARCH_URL", "http://localhost:9200"),
		ElasticsearchUsername: envStr("ELASTICSEARCH_USERNAME", ""),
		ElasticsearchPassword: envStr("ELASTICSEARCH_PASSWORD", ""),
		BleveIndexDir:         envStr("BLEVE_INDEX_DIR", ""),
		DefaultIndex:          envStr("DEFAULT_INDEX", "products"),
		DefaultSearchSize:     envInt("DEFAULT_SEARCH_SIZE", 10),
		VectorBackend:         strings.ToLower(envStr("VECTOR_BACKEND", "chroma")),
		ChromaURL:             envStr("CHROMA_URL", "http://localhost:8000"),
		ChromaTenant:          envStr("CHROMA_TENANT", "default_tenant"),
		ChromaDatabase:        envStr("CHROMA_DATABASE", "default_database"),
		DefaultCollection:     envStr("DEFAULT_COLLECTION", "products"),
		DefaultNResults:       envInt("DEFAULT_N_RESULTS", 5),
		EmbeddingFunction:     strings.ToLower(envStr("EMBEDDING_FUNCTION", "default")),
		OllamaBaseURL:         envStr("OLLAMA_BASE_URL", "http://localhost:11434"),
		EmbeddingModel:        envStr("EMBEDDING_MODEL", "nomic-embed-text"),
		EmbeddingDim:          envInt("EMBEDDING_DIM", 384),
		EmbeddingCachePath:    envStr("EMBEDDING_CACHE_PATH", ""),
		AnthropicAPIKey:       envStr("ANTHROPIC_API_KEY", ""),
		AnthropicModel:        envStr("ANTHROPIC_MODEL", "claude-3-7-sonnet-latest"),
		MaxTokens:             envInt("MAX_TOKENS", 1024),
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("PORT must be between 1 and 65535, got %d", c.Port)
	}
	if err := oneOf("MCP_TRANSPORT", c.Transport, "stdio", "http"); err != nil {
		return err
	}
	if err := oneOf("LOG_LEVEL", c.LogLevel, "debug", "info", "warn", "error"); err != nil {
		return err
	}
	if err := oneOf("SEARCH_BACKEND", c.SearchBackend, "elasticsearch", "bleve"); err != nil {
		return err
	}
	if err := oneOf("VECTOR_BACKEND", c.VectorBackend, "chroma", "memory"); err != nil {
		return err
	}
	if err := oneOf("EMBEDDING_FUNCTION", c.EmbeddingFunction, "default", "ollama"); err != nil {
		return err
	}
	if c.SearchBackend == "elasticsearch" && c.ElasticsearchURL == "" {
		return fmt.Errorf("ELASTICSEARCH_URL must not be empty")
	}
	if c.VectorBackend == "chroma" && c.ChromaURL == "" {
		return fmt.Errorf("CHROMA_URL must not be empty")
	}
	if c.EmbeddingFunction == "ollama" && c.OllamaBaseURL == "" {
		return fmt.Errorf("OLLAMA_BASE_URL must not be empty")
	}
	if c.EmbeddingDim < 1 {
		return fmt.Errorf("EMBEDDING_DIM must be positive, got %d", c.EmbeddingDim)
	}
	if c.DefaultSearchSize < 1 || c.DefaultSearchSize > 100 {
		return fmt.Errorf("DEFAULT_SEARCH_SIZE must be between 1 and 100, got %d", c.DefaultSearchSize)
	}
	if c.DefaultNResults < 1 || c.DefaultNResults > 50 {
		return fmt.Errorf("DEFAULT_N_RESULTS must be between 1 and 50, got %d", c.DefaultNResults)
	}
	if c.MaxTokens < 1 {
		return fmt.Errorf("MAX_TOKENS must be positive, got %d", c.MaxTokens)
	}
	return nil
}

// SlogLevel maps LOG_LEVEL onto a slog level.
func (c *Config) SlogLevel() slog.Level {
	switch c.LogLevel {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func oneOf(key, value string, allowed ...string) error {
	for _, a := range allowed {
		if value == a {
			return nil
		}
	}
	return fmt.Errorf("%s must be one of %s, got %q", key, strings.Join(allowed, "|"), value)
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		b, err := strconv.ParseBool(v)
		if err == nil {
			return b
		}
	}
	return fallback
}
