// Package llm wraps the text-generation backends the query pipeline can
// delegate to.
package llm

import (
	"context"
	"errors"
	"fmt"

	"github.com/fabfab/therapy-rag/config"
)

// ErrGeneration marks failures of the text-generation backend. There is no
// retrieved-answer fallback; the error surfaces to the caller.
var ErrGeneration = errors.New("text generation failed")

type Client interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

type Options struct {
	Provider string
	Model    string

	OllamaHost    string
	OpenAIAPIKey  string
	OpenAIBaseURL string
}

func NewClient(cfg config.Config) (Client, error) {
	opts := Options{
		Provider:      cfg.LLM.Provider,
		Model:         cfg.LLM.Model,
		OllamaHost:    cfg.OllamaHost,
		OpenAIAPIKey:  cfg.OpenAIAPIKey,
		OpenAIBaseURL: cfg.OpenAIBaseURL,
	}

	switch opts.Provider {
	case config.ProviderOllama:
		return NewOllamaClient(opts), nil
	case config.ProviderOpenAI:
		if opts.OpenAIAPIKey == "" {
			return nil, fmt.Errorf("%w: openai llm provider selected but OPENAI_API_KEY not set", config.ErrConfiguration)
		}
		return NewOpenAIClient(opts), nil
	default:
		return nil, fmt.Errorf("%w: unknown llm provider %q", config.ErrConfiguration, opts.Provider)
	}
}
