// Package retriever turns a question into the context block for the prompt.
package retriever

import (
	"context"
	"fmt"
	"strings"
	"time"

	"eventbot/internal/domain"
	"eventbot/internal/vectorstore"
)

// DefaultSeparator joins retrieved chunk texts.
const DefaultSeparator = "\n\n --- \n\n"

// Retrieval is the outcome of one retrieval.
type Retrieval struct {
	Results []domain.SearchResult
	Context string
	Elapsed time.Duration
}

// Retriever embeds questions and searches the index.
type Retriever struct {
	embedder  domain.Embedder
	index     vectorstore.Index
	topK      int
	separator string
}

func New(embedder domain.Embedder, index vectorstore.Index, topK int, separator string) *Retriever {
	if topK <= 0 {
		topK = 5
	}
	if separator == "" {
		separator = DefaultSeparator
	}
	return &Retriever{embedder: embedder, index: index, topK: topK, separator: separator}
}

// Retrieve embeds the question, fetches the top-k chunks and joins their
// texts in rank order. No results yields an empty context, not an error.
// Elapsed is set even when an error is returned.
func (r *Retriever) Retrieve(ctx context.Context, question string) (Retrieval, error) {
	start := time.Now()
	var out Retrieval
	vecs, err := r.embedder.Embed(ctx, []string{question})
	if err != nil {
		out.Elapsed = time.Since(start)
		return out, fmt.Errorf("embedding question: %w", err)
	}
	if len(vecs) != 1 {
		out.Elapsed = time.Since(start)
		return out, fmt.Errorf("embedding question: expected 1 vector, got %d", len(vecs))
	}
	results, err := r.index.Search(ctx, vecs[0], r.topK)
	out.Elapsed = time.Since(start)
	if err != nil {
		return out, fmt.Errorf("searching index: %w", err)
	}
	texts := make([]string, len(results))
	for i, res := range results {
		texts[i] = res.Chunk.Text
	}
	out.Results = results
	out.Context = strings.Join(texts, r.separator)
	return out, nil
}
