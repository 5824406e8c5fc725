package ingestion_test

import (
	"bytes"
	"context"
	"errors"
	"log"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/fabfab/therapy-rag/config"
	"github.com/fabfab/therapy-rag/corpus"
	"github.com/fabfab/therapy-rag/embeddings"
	"github.com/fabfab/therapy-rag/ingestion"
	"github.com/fabfab/therapy-rag/vectorstore"
)

// keywordEmbedder maps text to a tiny vector of keyword counts so retrieval
// tests behave deterministically without a model backend.
type keywordEmbedder struct {
	fail error
}

func (e *keywordEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	if e.fail != nil {
		return nil, e.fail
	}
	lower := strings.ToLower(text)
	return []float32{
		float32(strings.Count(lower, "dialectical")),
		float32(strings.Count(lower, "cognitive")),
		1,
	}, nil
}

func (e *keywordEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, 0, len(texts))
	for _, text := range texts {
		vec, err := e.Embed(ctx, text)
		if err != nil {
			return nil, err
		}
		out = append(out, vec)
	}
	return out, nil
}

var _ embeddings.Embedder = (*keywordEmbedder)(nil)

func testConfig() config.Config {
	return config.Config{ChunkSize: 500, ChunkOverlap: 50}
}

func writeCorpus(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	files := map[string]string{
		"CBT/intro.txt":      "Cognitive behavioral therapy focuses on thought patterns. " + strings.Repeat("Cognitive restructuring. ", 30),
		"CBT/techniques.txt": "Cognitive techniques include journaling and behavioral experiments.",
		"DBT/intro.txt":      "Dialectical behavior therapy teaches distress tolerance. " + strings.Repeat("Dialectical skills. ", 30),
		"DBT/skills.txt":     "Dialectical skills cover mindfulness and emotion regulation.",
	}
	for name, content := range files {
		path := filepath.Join(root, filepath.FromSlash(name))
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatalf("mkdir: %v", err)
		}
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			t.Fatalf("write: %v", err)
		}
	}
	return root
}

func TestRunIngestsCorpus(t *testing.T) {
	root := writeCorpus(t)
	// A garbage PDF must fail alone without sinking the rest of the run.
	if err := os.WriteFile(filepath.Join(root, "broken.pdf"), []byte("not a pdf"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	store := vectorstore.NewMemory()
	logger := log.New(&bytes.Buffer{}, "", 0)
	svc, err := ingestion.NewService(corpus.NewFileLoader(), &keywordEmbedder{}, store, testConfig(), logger)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}

	report, err := svc.Run(context.Background(), root)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(report.Succeeded) != 4 {
		t.Fatalf("expected 4 ingested files, got %d: %v", len(report.Succeeded), report.Succeeded)
	}
	if len(report.Failed) != 1 {
		t.Fatalf("expected 1 failed file, got %d", len(report.Failed))
	}
	if filepath.Base(report.Failed[0].Path) != "broken.pdf" {
		t.Fatalf("expected broken.pdf to fail, got %s", report.Failed[0].Path)
	}
	if report.Failed[0].Err == nil {
		t.Fatal("failure must carry its error")
	}
	if report.Chunks == 0 {
		t.Fatal("expected stored chunks")
	}

	matches, err := store.Query(context.Background(), []float32{1, 0, 0}, report.Chunks, nil)
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(matches) != report.Chunks {
		t.Fatalf("store holds %d chunks, report says %d", len(matches), report.Chunks)
	}
}

func TestRunEmptyDirectory(t *testing.T) {
	svc, err := ingestion.NewService(corpus.NewFileLoader(), &keywordEmbedder{}, vectorstore.NewMemory(), testConfig(), log.New(&bytes.Buffer{}, "", 0))
	if err != nil {
		t.Fatalf("new service: %v", err)
	}

	report, err := svc.Run(context.Background(), t.TempDir())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(report.Succeeded) != 0 || len(report.Failed) != 0 || report.Chunks != 0 {
		t.Fatalf("expected empty report, got %+v", report)
	}
}

func TestRunTwiceDoublesChunks(t *testing.T) {
	root := writeCorpus(t)
	store := vectorstore.NewMemory()
	svc, err := ingestion.NewService(corpus.NewFileLoader(), &keywordEmbedder{}, store, testConfig(), log.New(&bytes.Buffer{}, "", 0))
	if err != nil {
		t.Fatalf("new service: %v", err)
	}

	first, err := svc.Run(context.Background(), root)
	if err != nil {
		t.Fatalf("first run: %v", err)
	}
	second, err := svc.Run(context.Background(), root)
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if second.Chunks != first.Chunks {
		t.Fatalf("second run stored %d chunks, first stored %d", second.Chunks, first.Chunks)
	}

	matches, err := store.Query(context.Background(), []float32{1, 0, 0}, 2*first.Chunks+1, nil)
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(matches) != 2*first.Chunks {
		t.Fatalf("expected %d chunks after re-ingestion, got %d", 2*first.Chunks, len(matches))
	}
}

func TestNewServiceRejectsBadChunkParams(t *testing.T) {
	cases := []struct {
		name    string
		size    int
		overlap int
	}{
		{name: "zero size", size: 0, overlap: 0},
		{name: "overlap equals size", size: 100, overlap: 100},
		{name: "negative overlap", size: 100, overlap: -1},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := config.Config{ChunkSize: tc.size, ChunkOverlap: tc.overlap}
			_, err := ingestion.NewService(corpus.NewFileLoader(), &keywordEmbedder{}, vectorstore.NewMemory(), cfg, nil)
			if !errors.Is(err, config.ErrConfiguration) {
				t.Fatalf("expected configuration error, got %v", err)
			}
		})
	}
}

func TestRunRecordsEmbedderFailures(t *testing.T) {
	root := writeCorpus(t)
	svc, err := ingestion.NewService(corpus.NewFileLoader(), &keywordEmbedder{fail: embeddings.ErrModelUnavailable}, vectorstore.NewMemory(), testConfig(), log.New(&bytes.Buffer{}, "", 0))
	if err != nil {
		t.Fatalf("new service: %v", err)
	}

	report, err := svc.Run(context.Background(), root)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(report.Succeeded) != 0 {
		t.Fatalf("expected no successes, got %v", report.Succeeded)
	}
	if len(report.Failed) != 4 {
		t.Fatalf("expected 4 failures, got %d", len(report.Failed))
	}
	for _, failure := range report.Failed {
		if !errors.Is(failure.Err, embeddings.ErrModelUnavailable) {
			t.Fatalf("failure for %s does not wrap ErrModelUnavailable: %v", failure.Path, failure.Err)
		}
	}
}
