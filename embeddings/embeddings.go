// Package embeddings maps text to fixed-dimension vectors via a configured
// model backend.
package embeddings

import (
	"context"
	"errors"
	"fmt"

	"github.com/fabfab/therapy-rag/config"
)

// ErrModelUnavailable marks failures reaching the embedding backend. Callers
// treat it as fatal for the ingestion run or query; there is no zero-vector
// fallback.
var ErrModelUnavailable = errors.New("embedding model unavailable")

type Embedder interface {
	// Embed maps one text to a vector of the configured dimension.
	Embed(ctx context.Context, text string) ([]float32, error)
	// EmbedBatch maps texts to vectors in input order. It exists for
	// throughput only and returns the same values Embed would.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

type Options struct {
	Provider  string
	Model     string
	Dimension int

	OllamaHost    string
	OpenAIAPIKey  string
	OpenAIBaseURL string
}

func NewEmbedder(cfg config.Config) (Embedder, error) {
	opts := Options{
		Provider:      cfg.Embeddings.Provider,
		Model:         cfg.Embeddings.Model,
		Dimension:     cfg.Embeddings.Dimension,
		OllamaHost:    cfg.OllamaHost,
		OpenAIAPIKey:  cfg.OpenAIAPIKey,
		OpenAIBaseURL: cfg.OpenAIBaseURL,
	}

	switch opts.Provider {
	case config.ProviderOllama:
		return NewOllamaEmbedder(opts), nil
	case config.ProviderOpenAI:
		if opts.OpenAIAPIKey == "" {
			return nil, fmt.Errorf("%w: openai embedding provider selected but OPENAI_API_KEY not set", config.ErrConfiguration)
		}
		return NewOpenAIEmbedder(opts), nil
	default:
		return nil, fmt.Errorf("%w: unknown embedding provider %q", config.ErrConfiguration, opts.Provider)
	}
}

func checkDimension(want, got int) error {
	if want > 0 && got != want {
		return fmt.Errorf("%w: embedding dimension mismatch: expected %d, got %d", config.ErrConfiguration, want, got)
	}
	return nil
}
