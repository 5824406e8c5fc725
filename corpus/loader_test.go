package corpus_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/fabfab/therapy-rag/corpus"
)

func writeFile(t *testing.T, path string, data []byte) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write file: %v", err)
	}
}

func TestDiscoverIgnoresUnsupportedExtensions(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "CBT", "intro.txt"), []byte("cbt text"))
	writeFile(t, filepath.Join(root, "DBT", "intro.txt"), []byte("dbt text"))
	writeFile(t, filepath.Join(root, "notes.md"), []byte("ignored"))
	writeFile(t, filepath.Join(root, "image.png"), []byte{0x89, 0x50})

	loader := corpus.NewFileLoader()
	paths, err := loader.Discover(root)
	if err != nil {
		t.Fatalf("discover: %v", err)
	}
	if len(paths) != 2 {
		t.Fatalf("expected 2 supported files, got %d: %v", len(paths), paths)
	}
}

func TestDiscoverMissingRoot(t *testing.T) {
	loader := corpus.NewFileLoader()
	if _, err := loader.Discover(filepath.Join(t.TempDir(), "nope")); err == nil {
		t.Fatal("expected error for missing root")
	}
}

func TestLoadTextFileMetadata(t *testing.T) {
	root := t.TempDir()
	path := filepath.Join(root, "CBT", "intro.txt")
	writeFile(t, path, []byte("Cognitive behavioral therapy basics."))

	loader := corpus.NewFileLoader()
	docs, err := loader.LoadFile(root, path)
	if err != nil {
		t.Fatalf("load file: %v", err)
	}
	if len(docs) != 1 {
		t.Fatalf("expected 1 document, got %d", len(docs))
	}

	doc := docs[0]
	if doc.Content != "Cognitive behavioral therapy basics." {
		t.Fatalf("unexpected content: %q", doc.Content)
	}
	if doc.Metadata[corpus.MetaSource] != "CBT/intro.txt" {
		t.Fatalf("unexpected source metadata: %q", doc.Metadata[corpus.MetaSource])
	}
	if doc.Metadata[corpus.MetaCategory] != "CBT" {
		t.Fatalf("unexpected category metadata: %q", doc.Metadata[corpus.MetaCategory])
	}
}

func TestLoadTextFileTopLevelHasNoCategory(t *testing.T) {
	root := t.TempDir()
	path := filepath.Join(root, "readme.txt")
	writeFile(t, path, []byte("top level"))

	loader := corpus.NewFileLoader()
	docs, err := loader.LoadFile(root, path)
	if err != nil {
		t.Fatalf("load file: %v", err)
	}
	if _, ok := docs[0].Metadata[corpus.MetaCategory]; ok {
		t.Fatal("top-level file should not carry a category")
	}
}

func TestLoadTextFileLatin1Fallback(t *testing.T) {
	root := t.TempDir()
	path := filepath.Join(root, "legacy.txt")
	// "café" encoded as Latin-1: 0xE9 is not valid UTF-8 on its own.
	writeFile(t, path, []byte{'c', 'a', 'f', 0xE9})

	loader := corpus.NewFileLoader()
	docs, err := loader.LoadFile(root, path)
	if err != nil {
		t.Fatalf("load file: %v", err)
	}
	if docs[0].Content != "café" {
		t.Fatalf("expected latin-1 fallback decoding, got %q", docs[0].Content)
	}
}

func TestLoadCorruptPDFReturnsError(t *testing.T) {
	root := t.TempDir()
	path := filepath.Join(root, "broken.pdf")
	writeFile(t, path, []byte("this is not a pdf"))

	loader := corpus.NewFileLoader()
	if _, err := loader.LoadFile(root, path); err == nil {
		t.Fatal("expected error for corrupt pdf")
	}
}
