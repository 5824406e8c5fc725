package config_test

import (
	"errors"
	"testing"

	"github.com/fabfab/therapy-rag/config"
)

func validConfig() config.Config {
	return config.Config{
		PostgresDSN: "postgres://localhost:5432/corpus?sslmode=disable",
		OllamaHost:  "http://localhost:11434",
		Embeddings: config.EmbeddingConfig{
			Provider:  config.ProviderOllama,
			Model:     "nomic-embed-text",
			Dimension: 768,
		},
		LLM: config.LLMConfig{
			Provider: config.ProviderOllama,
			Model:    "llama3.1:8b",
		},
		ChunkSize:      1000,
		ChunkOverlap:   200,
		TopK:           5,
		MaxPromptChars: 12000,
	}
}

func TestValidateAcceptsDefaults(t *testing.T) {
	if err := validConfig().Validate(); err != nil {
		t.Fatalf("expected valid config, got %v", err)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*config.Config)
	}{
		{"zero chunk size", func(c *config.Config) { c.ChunkSize = 0 }},
		{"negative chunk overlap", func(c *config.Config) { c.ChunkOverlap = -1 }},
		{"overlap equals chunk size", func(c *config.Config) { c.ChunkOverlap = c.ChunkSize }},
		{"zero dimension", func(c *config.Config) { c.Embeddings.Dimension = 0 }},
		{"zero top_k", func(c *config.Config) { c.TopK = 0 }},
		{"zero prompt budget", func(c *config.Config) { c.MaxPromptChars = 0 }},
		{"unknown embedding provider", func(c *config.Config) { c.Embeddings.Provider = "cohere" }},
		{"unknown llm provider", func(c *config.Config) { c.LLM.Provider = "bard" }},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := validConfig()
			tc.mutate(&cfg)
			if err := cfg.Validate(); !errors.Is(err, config.ErrConfiguration) {
				t.Fatalf("expected configuration error, got %v", err)
			}
		})
	}
}

func TestLoadDefaults(t *testing.T) {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config must validate, got %v", err)
	}
	if cfg.Embeddings.Provider != config.ProviderOllama {
		t.Fatalf("unexpected default embedding provider: %q", cfg.Embeddings.Provider)
	}
}

func TestLoadReadsEnvironment(t *testing.T) {
	t.Setenv("CHUNK_SIZE", "250")
	t.Setenv("TOP_K", "3")
	t.Setenv("EMBEDDING_DIMENSION", "not a number")

	cfg := config.Load()
	if cfg.ChunkSize != 250 {
		t.Fatalf("expected chunk size 250, got %d", cfg.ChunkSize)
	}
	if cfg.TopK != 3 {
		t.Fatalf("expected top_k 3, got %d", cfg.TopK)
	}
	if cfg.Embeddings.Dimension != 768 {
		t.Fatalf("unparsable int should keep the default, got %d", cfg.Embeddings.Dimension)
	}
}
