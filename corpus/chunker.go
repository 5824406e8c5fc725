package corpus

import (
	"fmt"
	"strconv"

	"github.com/google/uuid"

	"github.com/fabfab/therapy-rag/config"
)

// Chunk splits a document into overlapping chunks of at most chunkSize
// characters, advancing chunkSize-overlap characters per step. The final
// chunk may be shorter. Boundaries are character (rune) based, not token or
// sentence aware, so a split may fall mid-word; that is a known limitation
// accepted for determinism.
//
// Parameter violations fail before any chunking is attempted. Chunk is a pure
// function of its inputs apart from the generated chunk IDs.
func Chunk(doc Document, chunkSize, overlap int) ([]DocumentChunk, error) {
	if chunkSize <= 0 {
		return nil, fmt.Errorf("%w: chunk size must be positive, got %d", config.ErrConfiguration, chunkSize)
	}
	if overlap < 0 || overlap >= chunkSize {
		return nil, fmt.Errorf("%w: chunk overlap must be in [0, chunk size), got %d", config.ErrConfiguration, overlap)
	}

	runes := []rune(doc.Content)
	if len(runes) == 0 {
		return nil, nil
	}

	step := chunkSize - overlap
	chunks := make([]DocumentChunk, 0, (len(runes)+step-1)/step)
	for start, idx := 0, 0; start < len(runes); start, idx = start+step, idx+1 {
		end := start + chunkSize
		if end > len(runes) {
			end = len(runes)
		}

		meta := make(map[string]string, len(doc.Metadata)+3)
		for k, v := range doc.Metadata {
			meta[k] = v
		}
		meta[MetaChunkIndex] = strconv.Itoa(idx)
		meta[MetaCharStart] = strconv.Itoa(start)
		meta[MetaCharEnd] = strconv.Itoa(end)

		chunks = append(chunks, DocumentChunk{
			ID:         uuid.New(),
			DocumentID: doc.ID,
			Index:      idx,
			Content:    string(runes[start:end]),
			Metadata:   meta,
		})

		if end == len(runes) {
			break
		}
	}

	return chunks, nil
}
