package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"eventbot/internal/domain"
	"eventbot/internal/extractor"
	"eventbot/internal/vectorstore"
)

// ErrNothingToIndex is returned when a run finds no usable text. The
// existing index is left untouched.
var ErrNothingToIndex = errors.New("no documents with extractable text")

// Scanner lists and extracts the documents of a directory.
type Scanner interface {
	Scan(ctx context.Context, dir string) ([]domain.Document, []extractor.Skipped, error)
}

// IngestReport summarises one rebuild.
type IngestReport struct {
	Documents int
	Skipped   []extractor.Skipped
	Chunks    int
	Digest    string
	Elapsed   time.Duration
}

// IngestService rebuilds the index from a documents directory.
type IngestService struct {
	scanner         Scanner
	chunker         domain.Chunker
	embedder        domain.Embedder
	writer          vectorstore.Writer
	summarizer      domain.Summarizer
	digestSentences int
	log             *slog.Logger
}

func NewIngestService(scanner Scanner, chunker domain.Chunker, embedder domain.Embedder, writer vectorstore.Writer, summarizer domain.Summarizer, digestSentences int, log *slog.Logger) *IngestService {
	if log == nil {
		log = slog.Default()
	}
	return &IngestService{
		scanner:         scanner,
		chunker:         chunker,
		embedder:        embedder,
		writer:          writer,
		summarizer:      summarizer,
		digestSentences: digestSentences,
		log:             log,
	}
}

// Run extracts, chunks and embeds every document in dir, then replaces the
// index. Nothing is written unless every chunk was embedded.
func (s *IngestService) Run(ctx context.Context, dir string) (IngestReport, error) {
	start := time.Now()
	var report IngestReport

	docs, skipped, err := s.scanner.Scan(ctx, dir)
	if err != nil {
		return report, err
	}
	report.Documents = len(docs)
	report.Skipped = skipped
	if len(docs) == 0 {
		return report, fmt.Errorf("%s: %w", dir, ErrNothingToIndex)
	}

	chunks := s.chunker.Split(docs)
	report.Chunks = len(chunks)
	if len(chunks) == 0 {
		return report, fmt.Errorf("%s: %w", dir, ErrNothingToIndex)
	}
	s.log.Info("documents chunked", "documents", len(docs), "chunks", len(chunks))

	texts := make([]string, len(chunks))
	for i, ch := range chunks {
		texts[i] = ch.Text
	}
	vectors, err := s.embedder.Embed(ctx, texts)
	if err != nil {
		return report, fmt.Errorf("embedding chunks: %w", err)
	}
	if len(vectors) != len(chunks) {
		return report, fmt.Errorf("embedding chunks: expected %d vectors, got %d", len(chunks), len(vectors))
	}

	records := make([]domain.IndexRecord, len(chunks))
	for i := range chunks {
		records[i] = domain.IndexRecord{Chunk: chunks[i], Vector: vectors[i]}
	}

	var corpus strings.Builder
	sources := make([]string, len(docs))
	for i, d := range docs {
		sources[i] = d.Source
		corpus.WriteString(d.Content)
		corpus.WriteString("\n")
	}
	digest, err := s.summarizer.Summarize(corpus.String(), s.digestSentences)
	if err != nil {
		s.log.Warn("digest failed", "err", err)
	}
	report.Digest = digest

	meta := domain.IndexMeta{
		EmbeddingModel: s.embedder.Model(),
		Sources:        sources,
		Digest:         digest,
		BuiltAt:        time.Now().UTC(),
	}
	if err := s.writer.BulkLoad(ctx, records, meta); err != nil {
		return report, fmt.Errorf("writing index: %w", err)
	}
	report.Elapsed = time.Since(start)
	s.log.Info("index rebuilt", "documents", report.Documents, "skipped", len(skipped),
		"chunks", report.Chunks, "elapsed", report.Elapsed)
	return report, nil
}
