package vectorstore

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/fabfab/therapy-rag/corpus"
)

// Memory is an exact-scan Store for tests and small local corpora. It mirrors
// the Postgres semantics: cosine similarity, insertion-order tie-break, and
// rejection of duplicate chunk IDs.
type Memory struct {
	mu     sync.Mutex
	chunks []corpus.DocumentChunk
	seen   map[uuid.UUID]struct{}
}

func NewMemory() *Memory {
	return &Memory{seen: make(map[uuid.UUID]struct{})}
}

func (s *Memory) Add(ctx context.Context, chunks []corpus.DocumentChunk) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, chunk := range chunks {
		if _, ok := s.seen[chunk.ID]; ok {
			return fmt.Errorf("%w: %s", ErrDuplicateChunk, chunk.ID)
		}
	}
	for _, chunk := range chunks {
		s.seen[chunk.ID] = struct{}{}
		s.chunks = append(s.chunks, chunk)
	}
	return nil
}

func (s *Memory) Query(ctx context.Context, embedding []float32, topK int, filter map[string]string) ([]Match, error) {
	if topK <= 0 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidTopK, topK)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	matches := make([]Match, 0, len(s.chunks))
	for _, chunk := range s.chunks {
		if !matchesFilter(chunk.Metadata, filter) {
			continue
		}
		score, err := cosineSimilarity(embedding, chunk.Embedding)
		if err != nil {
			return nil, err
		}
		matches = append(matches, Match{Chunk: chunk, Score: score})
	}

	// SliceStable keeps insertion order among equal scores.
	sort.SliceStable(matches, func(i, j int) bool { return matches[i].Score > matches[j].Score })

	if len(matches) > topK {
		matches = matches[:topK]
	}
	return matches, nil
}

func (s *Memory) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.chunks = nil
	s.seen = make(map[uuid.UUID]struct{})
	return nil
}

func matchesFilter(meta, filter map[string]string) bool {
	for key, want := range filter {
		if meta[key] != want {
			return false
		}
	}
	return true
}

func cosineSimilarity(a, b []float32) (float64, error) {
	if len(a) != len(b) {
		return 0, fmt.Errorf("%w: query vector has dimension %d, stored vector has %d",
			ErrDimensionMismatch, len(a), len(b))
	}

	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0, nil
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB)), nil
}

var _ Store = (*Memory)(nil)
