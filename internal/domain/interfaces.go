package domain

import (
	"context"
	"time"
)

// Document is the extracted plain text of one source file.
type Document struct {
	Source  string // file name, used as the source identifier
	Path    string
	Content string
}

// Chunk is a bounded segment of a document and the unit of retrieval.
type Chunk struct {
	Source string
	Seq    int // insertion order across the whole ingestion run
	Part   int // position within its source document
	Text   string
}

// IndexRecord is a chunk together with its embedding, as persisted by an index.
type IndexRecord struct {
	Chunk  Chunk
	Vector []float32
}

// SearchResult represents a matching chunk with its cosine similarity to the query.
type SearchResult struct {
	Chunk Chunk
	Score float64
}

// IndexMeta describes how an index was built.
type IndexMeta struct {
	EmbeddingModel string    `json:"embedding_model"`
	Dimension      int       `json:"dimension"`
	Records        int       `json:"records"`
	Sources        []string  `json:"sources"`
	Digest         string    `json:"digest"`
	BuiltAt        time.Time `json:"built_at"`
}

// Extractor turns a document file into plain text.
type Extractor interface {
	Extract(ctx context.Context, path string) (Document, error)
}

// Chunker splits documents into chunks suitable for retrieval indexing.
type Chunker interface {
	Split(documents []Document) []Chunk
}

// Embedder converts text into fixed-dimension vectors with a single pinned model.
type Embedder interface {
	Model() string
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// Generator sends a prompt to a generative model and returns its raw text.
type Generator interface {
	Model() string
	Generate(ctx context.Context, prompt string) (string, error)
}

// Summarizer produces a brief summary of the provided text.
type Summarizer interface {
	Summarize(text string, maxSentences int) (string, error)
}
