package vectorstore

import (
	"context"

	"eventbot/internal/domain"
)

// Index is a read-only similarity index over embedded chunks.
type Index interface {
	// Search returns at most k results ordered by descending cosine
	// similarity, ties broken by ascending chunk Seq.
	Search(ctx context.Context, vector []float32, k int) ([]domain.SearchResult, error)
	// Meta describes how the index was built.
	Meta() domain.IndexMeta
	Close() error
}

// Writer rebuilds an index from scratch.
type Writer interface {
	// Exists reports whether an index is already present at the target.
	Exists(ctx context.Context) (bool, error)
	// BulkLoad replaces any existing index with records. It is destructive.
	BulkLoad(ctx context.Context, records []domain.IndexRecord, meta domain.IndexMeta) error
}
