// Package query implements the retrieval-augmented answer pipeline: embed the
// question, retrieve the closest chunks, assemble a bounded prompt and hand
// it to the language model.
package query

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/fabfab/therapy-rag/embeddings"
	"github.com/fabfab/therapy-rag/llm"
	"github.com/fabfab/therapy-rag/vectorstore"
)

const (
	defaultTopK           = 5
	defaultMaxPromptChars = 12000
)

// Answer carries the generated text together with the chunks that grounded it
// and the exact prompt sent to the model.
type Answer struct {
	Text    string
	Sources []vectorstore.Match
	Prompt  string
}

type Options struct {
	TopK           int
	MaxPromptChars int
}

type Service struct {
	embedder embeddings.Embedder
	store    vectorstore.Store
	llm      llm.Client
	logger   *log.Logger

	topK           int
	maxPromptChars int
}

func NewService(embedder embeddings.Embedder, store vectorstore.Store, llmClient llm.Client, opts Options, logger *log.Logger) *Service {
	if logger == nil {
		logger = log.Default()
	}
	topK := opts.TopK
	if topK <= 0 {
		topK = defaultTopK
	}
	budget := opts.MaxPromptChars
	if budget <= 0 {
		budget = defaultMaxPromptChars
	}

	return &Service{
		embedder:       embedder,
		store:          store,
		llm:            llmClient,
		logger:         logger,
		topK:           topK,
		maxPromptChars: budget,
	}
}

// Ask runs the full pipeline for one question. Each query is stateless; no
// conversation history is kept.
func (s *Service) Ask(ctx context.Context, question string) (Answer, error) {
	return s.AskFiltered(ctx, question, nil)
}

// AskFiltered restricts retrieval to chunks whose metadata matches every
// key/value pair in filter.
func (s *Service) AskFiltered(ctx context.Context, question string, filter map[string]string) (Answer, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return Answer{}, fmt.Errorf("question cannot be empty")
	}
	if s.embedder == nil {
		return Answer{}, fmt.Errorf("embedder is not configured")
	}
	if s.store == nil {
		return Answer{}, fmt.Errorf("vector store is not configured")
	}
	if s.llm == nil {
		return Answer{}, fmt.Errorf("llm client is not configured")
	}

	vector, err := s.embedder.Embed(ctx, question)
	if err != nil {
		return Answer{}, fmt.Errorf("embed query: %w", err)
	}

	matches, err := s.store.Query(ctx, vector, s.topK, filter)
	if err != nil {
		return Answer{}, fmt.Errorf("vector search: %w", err)
	}
	if len(matches) == 0 {
		// Deliberate branch: the model is still asked, with an explicit
		// no-context notice in the prompt.
		s.logger.Printf("no relevant chunks retrieved, prompting without context")
	}

	prompt, kept := BuildPrompt(question, matches, s.maxPromptChars)
	if kept < len(matches) {
		s.logger.Printf("prompt budget dropped %d of %d retrieved chunks", len(matches)-kept, len(matches))
	}

	text, err := s.llm.Generate(ctx, prompt)
	if err != nil {
		return Answer{}, fmt.Errorf("generate answer: %w", err)
	}

	return Answer{Text: text, Sources: matches[:kept], Prompt: prompt}, nil
}
