package database

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/fabfab/therapy-rag/config"
)

// EnsureCorpusSchema creates the vector extension, the document_chunks table
// and its indexes if they do not exist, then verifies that an existing table
// was declared with the configured embedding dimension. A mismatch fails
// here, at startup, rather than at first write.
func EnsureCorpusSchema(ctx context.Context, pool *pgxpool.Pool, dimension int) error {
	if dimension <= 0 {
		return fmt.Errorf("%w: embedding dimension must be positive", config.ErrConfiguration)
	}

	stmts := []string{
		"CREATE EXTENSION IF NOT EXISTS vector",
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS document_chunks (
			id UUID PRIMARY KEY,
			document_id UUID NOT NULL,
			chunk_index INT NOT NULL,
			content TEXT NOT NULL,
			metadata JSONB NOT NULL DEFAULT '{}',
			embedding VECTOR(%d) NOT NULL,
			seq BIGSERIAL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`, dimension),
		"CREATE INDEX IF NOT EXISTS idx_document_chunks_document ON document_chunks(document_id)",
		"CREATE INDEX IF NOT EXISTS idx_document_chunks_embedding ON document_chunks USING hnsw (embedding vector_cosine_ops)",
		"CREATE INDEX IF NOT EXISTS idx_document_chunks_metadata ON document_chunks USING gin (metadata)",
	}

	for _, stmt := range stmts {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("execute schema statement: %w", err)
		}
	}

	return checkStoredDimension(ctx, pool, dimension)
}

// checkStoredDimension reads the embedding column's typmod, which pgvector
// uses to record the declared dimension.
func checkStoredDimension(ctx context.Context, pool *pgxpool.Pool, dimension int) error {
	var stored int
	err := pool.QueryRow(ctx, `
		SELECT atttypmod
		FROM pg_attribute
		WHERE attrelid = 'document_chunks'::regclass AND attname = 'embedding'
	`).Scan(&stored)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("%w: document_chunks table has no embedding column", config.ErrConfiguration)
		}
		return fmt.Errorf("read stored embedding dimension: %w", err)
	}

	if stored != dimension {
		return fmt.Errorf("%w: store was created with embedding dimension %d but %d is configured",
			config.ErrConfiguration, stored, dimension)
	}
	return nil
}
