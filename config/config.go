// Package config holds the application settings. A Config value is built
// once at process start and passed into each component; nothing reads the
// environment after Load returns.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

const (
	ProviderOllama = "ollama"
	ProviderOpenAI = "openai"
)

// ErrConfiguration marks settings that are invalid before any I/O happens.
var ErrConfiguration = errors.New("configuration error")

type EmbeddingConfig struct {
	Provider  string
	Model     string
	Dimension int
}

type LLMConfig struct {
	Provider string
	Model    string
}

type Config struct {
	PostgresDSN string

	OllamaHost    string
	OpenAIAPIKey  string
	OpenAIBaseURL string

	Embeddings EmbeddingConfig
	LLM        LLMConfig

	ChunkSize      int
	ChunkOverlap   int
	TopK           int
	MaxPromptChars int

	DataDir  string
	LogLevel string
}

func Load() Config {
	// Optional .env in the working directory; the real environment wins.
	_ = godotenv.Load()

	return Config{
		PostgresDSN:   getEnv("POSTGRES_DSN", "postgres://localhost:5432/therapy-rag?sslmode=disable"),
		OllamaHost:    getEnv("OLLAMA_HOST", "http://localhost:11434"),
		OpenAIAPIKey:  getEnv("OPENAI_API_KEY", ""),
		OpenAIBaseURL: getEnv("OPENAI_BASE_URL", ""),
		Embeddings: EmbeddingConfig{
			Provider:  getEnv("EMBEDDING_PROVIDER", ProviderOllama),
			Model:     getEnv("EMBEDDING_MODEL", "nomic-embed-text"),
			Dimension: getEnvInt("EMBEDDING_DIMENSION", 768),
		},
		LLM: LLMConfig{
			Provider: getEnv("LLM_PROVIDER", ProviderOllama),
			Model:    getEnv("LLM_MODEL", "llama3.1:8b"),
		},
		ChunkSize:      getEnvInt("CHUNK_SIZE", 1000),
		ChunkOverlap:   getEnvInt("CHUNK_OVERLAP", 200),
		TopK:           getEnvInt("TOP_K", 5),
		MaxPromptChars: getEnvInt("MAX_PROMPT_CHARS", 12000),
		DataDir:        getEnv("DATA_DIR", "./data/raw"),
		LogLevel:       getEnv("LOG_LEVEL", "info"),
	}
}

// Validate rejects settings the pipelines cannot run with. It is called once
// at startup so bad parameters fail before any document or network I/O.
func (c Config) Validate() error {
	if c.ChunkSize <= 0 {
		return fmt.Errorf("%w: chunk size must be positive, got %d", ErrConfiguration, c.ChunkSize)
	}
	if c.ChunkOverlap < 0 || c.ChunkOverlap >= c.ChunkSize {
		return fmt.Errorf("%w: chunk overlap must be in [0, chunk size), got %d", ErrConfiguration, c.ChunkOverlap)
	}
	if c.Embeddings.Dimension <= 0 {
		return fmt.Errorf("%w: embedding dimension must be positive, got %d", ErrConfiguration, c.Embeddings.Dimension)
	}
	if c.TopK <= 0 {
		return fmt.Errorf("%w: top_k must be positive, got %d", ErrConfiguration, c.TopK)
	}
	if c.MaxPromptChars <= 0 {
		return fmt.Errorf("%w: max prompt chars must be positive, got %d", ErrConfiguration, c.MaxPromptChars)
	}
	switch c.Embeddings.Provider {
	case ProviderOllama, ProviderOpenAI:
	default:
		return fmt.Errorf("%w: unknown embedding provider %q", ErrConfiguration, c.Embeddings.Provider)
	}
	switch c.LLM.Provider {
	case ProviderOllama, ProviderOpenAI:
	default:
		return fmt.Errorf("%w: unknown llm provider %q", ErrConfiguration, c.LLM.Provider)
	}
	return nil
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	raw, ok := os.LookupEnv(key)
	if !ok || raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return value
}
