// Package corpus defines the document model shared by the ingestion and
// query pipelines, the deterministic chunker, and the file loader.
package corpus

import "github.com/google/uuid"

// Metadata keys attached by the loader and the chunker.
const (
	MetaSource     = "source"
	MetaCategory   = "category"
	MetaPage       = "page"
	MetaTotalPages = "total_pages"
	MetaChunkIndex = "chunk_index"
	MetaCharStart  = "char_start"
	MetaCharEnd    = "char_end"
)

// Document is a logical source file (or a single PDF page). It is created by
// the loader, immutable afterwards, and never persisted itself; only its
// chunks are stored.
type Document struct {
	ID       uuid.UUID
	Source   string
	Content  string
	Metadata map[string]string
}

// DocumentChunk is the unit of embedding and retrieval: a bounded slice of a
// document's text with the document metadata plus chunk-specific keys.
type DocumentChunk struct {
	ID         uuid.UUID
	DocumentID uuid.UUID
	Index      int
	Content    string
	Metadata   map[string]string
	Embedding  []float32
}
