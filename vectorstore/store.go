// Package vectorstore persists document chunks with their embeddings and
// answers nearest-neighbour queries over them.
package vectorstore

import (
	"context"
	"errors"

	"github.com/fabfab/therapy-rag/corpus"
)

var (
	// ErrDuplicateChunk reports an insert with a chunk ID that already
	// exists. Chunk IDs are generated fresh per ingestion run, so a
	// collision is a logic error rather than something to upsert over.
	ErrDuplicateChunk = errors.New("duplicate chunk id")

	// ErrInvalidTopK reports a non-positive top_k, rejected before any
	// retrieval work begins.
	ErrInvalidTopK = errors.New("top_k must be positive")

	// ErrDimensionMismatch reports a vector whose length differs from the
	// dimension the store was created with.
	ErrDimensionMismatch = errors.New("vector dimension mismatch")
)

// Match pairs a retrieved chunk with its cosine similarity to the query.
type Match struct {
	Chunk corpus.DocumentChunk
	Score float64
}

// Store owns persisted chunks. Add appends across calls; Clear is the only
// way to remove data. Query returns at most topK chunks ranked by cosine
// similarity, highest first, ties broken by insertion order; topK larger than
// the corpus returns everything. A metadata filter is an equality constraint
// applied before ranking.
type Store interface {
	Add(ctx context.Context, chunks []corpus.DocumentChunk) error
	Query(ctx context.Context, embedding []float32, topK int, filter map[string]string) ([]Match, error)
	Clear(ctx context.Context) error
}
