package vectorstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"github.com/fabfab/therapy-rag/corpus"
)

// Postgres stores chunks in the document_chunks table created by
// database.EnsureCorpusSchema. Cosine distance (<=>) is the single declared
// metric; the HNSW index uses vector_cosine_ops so the write and read paths
// agree.
type Postgres struct {
	pool      *pgxpool.Pool
	dimension int
}

func NewPostgres(pool *pgxpool.Pool, dimension int) *Postgres {
	return &Postgres{pool: pool, dimension: dimension}
}

func (s *Postgres) Add(ctx context.Context, chunks []corpus.DocumentChunk) error {
	if len(chunks) == 0 {
		return nil
	}

	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	for _, chunk := range chunks {
		if len(chunk.Embedding) != s.dimension {
			return fmt.Errorf("%w: chunk %s has dimension %d, store expects %d",
				ErrDimensionMismatch, chunk.ID, len(chunk.Embedding), s.dimension)
		}

		meta, err := json.Marshal(chunk.Metadata)
		if err != nil {
			return fmt.Errorf("marshal chunk metadata: %w", err)
		}

		if _, err := tx.Exec(ctx, `
			INSERT INTO document_chunks (id, document_id, chunk_index, content, metadata, embedding, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, NOW())
		`, chunk.ID, chunk.DocumentID, chunk.Index, chunk.Content, meta, pgvector.NewVector(chunk.Embedding)); err != nil {
			var pgErr *pgconn.PgError
			if errors.As(err, &pgErr) && pgErr.Code == "23505" {
				return fmt.Errorf("%w: %s", ErrDuplicateChunk, chunk.ID)
			}
			return fmt.Errorf("insert chunk %d: %w", chunk.Index, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit chunks: %w", err)
	}
	return nil
}

func (s *Postgres) Query(ctx context.Context, embedding []float32, topK int, filter map[string]string) ([]Match, error) {
	if topK <= 0 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidTopK, topK)
	}
	if len(embedding) != s.dimension {
		return nil, fmt.Errorf("%w: query vector has dimension %d, store expects %d",
			ErrDimensionMismatch, len(embedding), s.dimension)
	}

	query := `
		SELECT id, document_id, chunk_index, content, metadata,
		       1 - (embedding <=> $1) AS score
		FROM document_chunks`
	args := []any{pgvector.NewVector(embedding)}

	// Equality filters narrow the candidate set before ranking.
	clause := " WHERE"
	for key, value := range filter {
		query += fmt.Sprintf("%s metadata->>$%d = $%d", clause, len(args)+1, len(args)+2)
		args = append(args, key, value)
		clause = " AND"
	}

	// seq keeps equal-distance rows in insertion order.
	query += fmt.Sprintf(" ORDER BY embedding <=> $1, seq LIMIT $%d", len(args)+1)
	args = append(args, topK)

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query similar chunks: %w", err)
	}
	defer rows.Close()

	matches := make([]Match, 0, topK)
	for rows.Next() {
		var (
			chunk corpus.DocumentChunk
			meta  []byte
			score float64
		)
		if err := rows.Scan(&chunk.ID, &chunk.DocumentID, &chunk.Index, &chunk.Content, &meta, &score); err != nil {
			return nil, fmt.Errorf("scan chunk row: %w", err)
		}
		if err := json.Unmarshal(meta, &chunk.Metadata); err != nil {
			return nil, fmt.Errorf("unmarshal chunk metadata: %w", err)
		}
		matches = append(matches, Match{Chunk: chunk, Score: score})
	}
	if rows.Err() != nil {
		return nil, fmt.Errorf("iterate chunk rows: %w", rows.Err())
	}

	return matches, nil
}

func (s *Postgres) Clear(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, "TRUNCATE document_chunks"); err != nil {
		return fmt.Errorf("truncate document_chunks: %w", err)
	}
	return nil
}

var _ Store = (*Postgres)(nil)
