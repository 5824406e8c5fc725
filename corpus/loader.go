package corpus

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/ledongthuc/pdf"
)

// FileLoader reads .txt and .pdf files from a source tree. Any other
// extension is ignored, not an error.
type FileLoader struct{}

func NewFileLoader() *FileLoader {
	return &FileLoader{}
}

// Discover walks root recursively and returns the supported files in walk
// order. Root may also be a single file.
func (l *FileLoader) Discover(root string) ([]string, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("stat source path: %w", err)
	}
	if !info.IsDir() {
		if supportedExtension(root) {
			return []string{root}, nil
		}
		return nil, nil
	}

	paths := make([]string, 0)
	if err := filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if d.IsDir() {
			return nil
		}
		if supportedExtension(path) {
			paths = append(paths, path)
		}
		return nil
	}); err != nil {
		return nil, fmt.Errorf("walk source tree: %w", err)
	}
	return paths, nil
}

// LoadFile reads one file into documents. Text files yield a single document;
// PDF files yield one document per page carrying page metadata.
func (l *FileLoader) LoadFile(root, path string) ([]Document, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".txt":
		return l.loadText(root, path)
	case ".pdf":
		return l.loadPDF(root, path)
	default:
		return nil, nil
	}
}

func (l *FileLoader) loadText(root, path string) ([]Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read text file: %w", err)
	}

	content := string(data)
	if !utf8.Valid(data) {
		content = decodeLatin1(data)
	}

	return []Document{{
		ID:       uuid.New(),
		Source:   path,
		Content:  content,
		Metadata: baseMetadata(root, path),
	}}, nil
}

func (l *FileLoader) loadPDF(root, path string) (docs []Document, err error) {
	// The pdf library panics on some malformed files; surface that as a
	// per-document load error instead of taking the whole run down.
	defer func() {
		if r := recover(); r != nil {
			docs = nil
			err = fmt.Errorf("parse pdf: %v", r)
		}
	}()

	f, reader, err := pdf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open pdf: %w", err)
	}
	defer f.Close()

	total := reader.NumPage()
	docs = make([]Document, 0, total)
	for pageNum := 1; pageNum <= total; pageNum++ {
		page := reader.Page(pageNum)
		if page.V.IsNull() {
			continue
		}

		text, pageErr := page.GetPlainText(nil)
		if pageErr != nil {
			return nil, fmt.Errorf("extract text from pdf page %d: %w", pageNum, pageErr)
		}
		if strings.TrimSpace(text) == "" {
			continue
		}

		meta := baseMetadata(root, path)
		meta[MetaPage] = strconv.Itoa(pageNum)
		meta[MetaTotalPages] = strconv.Itoa(total)

		docs = append(docs, Document{
			ID:       uuid.New(),
			Source:   path,
			Content:  text,
			Metadata: meta,
		})
	}
	return docs, nil
}

// baseMetadata tags every document with its root-relative source path and,
// when the file sits in a subdirectory, a category named after the first
// directory component (data/CBT/intro.txt -> category "CBT").
func baseMetadata(root, path string) map[string]string {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		rel = path
	}
	rel = filepath.ToSlash(rel)

	meta := map[string]string{MetaSource: rel}
	if parts := strings.SplitN(rel, "/", 2); len(parts) == 2 {
		meta[MetaCategory] = parts[0]
	}
	return meta
}

// decodeLatin1 recovers text files that are not valid UTF-8 by treating each
// byte as a Latin-1 code point.
func decodeLatin1(data []byte) string {
	runes := make([]rune, len(data))
	for i, b := range data {
		runes[i] = rune(b)
	}
	return string(runes)
}

func supportedExtension(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".txt", ".pdf":
		return true
	}
	return false
}
