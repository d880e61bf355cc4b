// Package extractor turns event documents into plain text.
package extractor

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/ledongthuc/pdf"

	"eventbot/internal/domain"
)

// PDFExtractor extracts the plain text of every page of a PDF, in page order.
type PDFExtractor struct{}

// Extract implements domain.Extractor. A page without text contributes an
// empty string.
func (PDFExtractor) Extract(ctx context.Context, path string) (doc domain.Document, err error) {
	name := filepath.Base(path)
	// the pdf reader panics on some malformed inputs
	defer func() {
		if r := recover(); r != nil {
			err = &domain.ExtractionError{Source: name, Err: fmt.Errorf("malformed pdf: %v", r)}
		}
	}()

	f, r, err := pdf.Open(path)
	if err != nil {
		return domain.Document{}, &domain.ExtractionError{Source: name, Err: err}
	}
	defer f.Close()

	var b strings.Builder
	for i := 1; i <= r.NumPage(); i++ {
		if err := ctx.Err(); err != nil {
			return domain.Document{}, err
		}
		p := r.Page(i)
		if p.V.IsNull() || p.V.Key("Contents").IsNull() {
			continue
		}
		text, err := p.GetPlainText(nil)
		if err != nil {
			return domain.Document{}, &domain.ExtractionError{Source: name, Err: fmt.Errorf("page %d: %w", i, err)}
		}
		b.WriteString(text)
	}
	return domain.Document{Source: name, Path: path, Content: b.String()}, nil
}

// TextExtractor reads plain text and markdown files as-is.
type TextExtractor struct{}

// Extract implements domain.Extractor.
func (TextExtractor) Extract(_ context.Context, path string) (domain.Document, error) {
	name := filepath.Base(path)
	data, err := os.ReadFile(path)
	if err != nil {
		return domain.Document{}, &domain.ExtractionError{Source: name, Err: err}
	}
	return domain.Document{Source: name, Path: path, Content: string(data)}, nil
}

// Skipped records a document that produced no usable text.
type Skipped struct {
	Source string
	Reason string
}

// Registry dispatches extraction by file extension.
type Registry struct {
	byExt map[string]domain.Extractor
	log   *slog.Logger
}

// NewRegistry returns a registry handling the given extensions. Extensions
// without a known extractor are rejected.
func NewRegistry(extensions []string, log *slog.Logger) (*Registry, error) {
	if log == nil {
		log = slog.Default()
	}
	reg := &Registry{byExt: make(map[string]domain.Extractor), log: log}
	for _, ext := range extensions {
		ext = strings.ToLower(ext)
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		switch ext {
		case ".pdf":
			reg.byExt[ext] = PDFExtractor{}
		case ".txt", ".md", ".markdown":
			reg.byExt[ext] = TextExtractor{}
		default:
			return nil, domain.Configf("no extractor for extension %q", ext)
		}
	}
	return reg, nil
}

// Handles reports whether path has a registered extension.
func (r *Registry) Handles(path string) bool {
	_, ok := r.byExt[strings.ToLower(filepath.Ext(path))]
	return ok
}

// Extract implements domain.Extractor by dispatching on the file extension.
func (r *Registry) Extract(ctx context.Context, path string) (domain.Document, error) {
	ex, ok := r.byExt[strings.ToLower(filepath.Ext(path))]
	if !ok {
		return domain.Document{}, &domain.ExtractionError{Source: filepath.Base(path), Err: fmt.Errorf("unsupported extension")}
	}
	return ex.Extract(ctx, path)
}

// Scan extracts every matching file directly inside dir, sorted by name.
// Files that fail to extract or contain no text are logged and returned as
// skipped; the remaining documents are still processed.
func (r *Registry) Scan(ctx context.Context, dir string) ([]domain.Document, []Skipped, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil, domain.Configf("documents directory %q not found", dir)
		}
		return nil, nil, fmt.Errorf("reading documents directory: %w", err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || !r.Handles(e.Name()) {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)

	var docs []domain.Document
	var skipped []Skipped
	for _, name := range names {
		if err := ctx.Err(); err != nil {
			return nil, nil, err
		}
		doc, err := r.Extract(ctx, filepath.Join(dir, name))
		if err != nil {
			if ctx.Err() != nil {
				return nil, nil, ctx.Err()
			}
			r.log.Warn("skipping document", "source", name, "err", err)
			skipped = append(skipped, Skipped{Source: name, Reason: err.Error()})
			continue
		}
		if strings.TrimSpace(doc.Content) == "" {
			r.log.Warn("skipping document", "source", name, "err", "no text")
			skipped = append(skipped, Skipped{Source: name, Reason: "no text"})
			continue
		}
		r.log.Info("extracted document", "source", name, "chars", len([]rune(doc.Content)))
		docs = append(docs, doc)
	}
	return docs, skipped, nil
}
