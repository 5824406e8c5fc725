// Package ingestion orchestrates the Load -> Chunk -> Embed -> Store
// pipeline that populates the corpus.
package ingestion

import (
	"context"
	"fmt"
	"log"

	"github.com/fabfab/therapy-rag/config"
	"github.com/fabfab/therapy-rag/corpus"
	"github.com/fabfab/therapy-rag/embeddings"
	"github.com/fabfab/therapy-rag/vectorstore"
)

// Loader abstracts document discovery and reading so the pipeline can be
// driven by any document source.
type Loader interface {
	Discover(root string) ([]string, error)
	LoadFile(root, path string) ([]corpus.Document, error)
}

// Failure records one source file the pipeline could not ingest.
type Failure struct {
	Path string
	Err  error
}

// Report summarises an ingestion run. A failing file never aborts the run; it
// is recorded here and the remaining files are still processed.
type Report struct {
	Succeeded []string
	Failed    []Failure
	Chunks    int
}

type Service struct {
	loader   Loader
	embedder embeddings.Embedder
	store    vectorstore.Store
	logger   *log.Logger

	chunkSize    int
	chunkOverlap int
}

// NewService validates the chunking parameters up front so a bad
// configuration fails before any file is touched.
func NewService(loader Loader, embedder embeddings.Embedder, store vectorstore.Store, cfg config.Config, logger *log.Logger) (*Service, error) {
	if loader == nil {
		return nil, fmt.Errorf("loader not configured")
	}
	if embedder == nil {
		return nil, fmt.Errorf("embedder not configured")
	}
	if store == nil {
		return nil, fmt.Errorf("vector store not configured")
	}
	if cfg.ChunkSize <= 0 {
		return nil, fmt.Errorf("%w: chunk size must be positive, got %d", config.ErrConfiguration, cfg.ChunkSize)
	}
	if cfg.ChunkOverlap < 0 || cfg.ChunkOverlap >= cfg.ChunkSize {
		return nil, fmt.Errorf("%w: chunk overlap must be in [0, chunk size), got %d", config.ErrConfiguration, cfg.ChunkOverlap)
	}
	if logger == nil {
		logger = log.Default()
	}

	return &Service{
		loader:       loader,
		embedder:     embedder,
		store:        store,
		logger:       logger,
		chunkSize:    cfg.ChunkSize,
		chunkOverlap: cfg.ChunkOverlap,
	}, nil
}

// Run ingests every supported file under dir. Per-file errors go into the
// report; only structural failures (unreadable root, cancelled context)
// return an error.
func (s *Service) Run(ctx context.Context, dir string) (Report, error) {
	var report Report

	paths, err := s.loader.Discover(dir)
	if err != nil {
		return report, fmt.Errorf("discover documents: %w", err)
	}
	if len(paths) == 0 {
		s.logger.Printf("no documents found in %s", dir)
		return report, nil
	}

	for _, path := range paths {
		if err := ctx.Err(); err != nil {
			return report, err
		}

		stored, err := s.ingestFile(ctx, dir, path)
		if err != nil {
			s.logger.Printf("ingest failed for %s: %v", path, err)
			report.Failed = append(report.Failed, Failure{Path: path, Err: err})
			continue
		}
		report.Succeeded = append(report.Succeeded, path)
		report.Chunks += stored
	}

	s.logger.Printf("ingestion finished: %d succeeded, %d failed, %d chunks stored",
		len(report.Succeeded), len(report.Failed), report.Chunks)
	return report, nil
}

func (s *Service) ingestFile(ctx context.Context, root, path string) (int, error) {
	docs, err := s.loader.LoadFile(root, path)
	if err != nil {
		return 0, fmt.Errorf("load: %w", err)
	}

	stored := 0
	for _, doc := range docs {
		chunks, err := corpus.Chunk(doc, s.chunkSize, s.chunkOverlap)
		if err != nil {
			return stored, fmt.Errorf("chunk: %w", err)
		}
		if len(chunks) == 0 {
			continue
		}

		texts := make([]string, len(chunks))
		for i := range chunks {
			texts[i] = chunks[i].Content
		}

		vectors, err := s.embedder.EmbedBatch(ctx, texts)
		if err != nil {
			return stored, fmt.Errorf("embed: %w", err)
		}
		if len(vectors) != len(chunks) {
			return stored, fmt.Errorf("embed: have %d chunks, got %d vectors", len(chunks), len(vectors))
		}
		for i := range chunks {
			chunks[i].Embedding = vectors[i]
		}

		if err := s.store.Add(ctx, chunks); err != nil {
			return stored, fmt.Errorf("store: %w", err)
		}
		stored += len(chunks)
	}

	return stored, nil
}
