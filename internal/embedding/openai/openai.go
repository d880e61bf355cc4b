package openai

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	goopenai "github.com/sashabaranov/go-openai"

	"eventbot/internal/provider"
)

// Client is an OpenAI-compatible embeddings client implementing domain.Embedder.
type Client struct {
	provider  *provider.Client
	model     string
	batchSize int
	log       *slog.Logger
}

// Config configures the embeddings client.
type Config struct {
	Model     string
	BatchSize int
}

// NewClient creates an embeddings client on top of a shared provider client.
func NewClient(p *provider.Client, cfg Config, log *slog.Logger) (*Client, error) {
	if cfg.Model == "" {
		return nil, errors.New("embedding model must be set")
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 32
	}
	if log == nil {
		log = slog.Default()
	}
	return &Client{provider: p, model: cfg.Model, batchSize: cfg.BatchSize, log: log}, nil
}

// Model returns the pinned embedding model identifier.
func (c *Client) Model() string { return c.model }

// Embed returns one vector per input text, in input order. Texts are sent in
// batches; the first failing batch aborts the whole call.
func (c *Client) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += c.batchSize {
		end := min(start+c.batchSize, len(texts))
		vecs, err := c.embedBatch(ctx, texts[start:end])
		if err != nil {
			return nil, err
		}
		out = append(out, vecs...)
		if len(texts) > c.batchSize {
			c.log.Debug("embedded batch", "done", end, "total", len(texts))
		}
	}
	return out, nil
}

func (c *Client) embedBatch(ctx context.Context, batch []string) ([][]float32, error) {
	ctx, cancel := c.provider.WithTimeout(ctx)
	defer cancel()
	resp, err := c.provider.API.CreateEmbeddings(ctx, goopenai.EmbeddingRequest{
		Model: goopenai.EmbeddingModel(c.model),
		Input: batch,
	})
	if err != nil {
		return nil, provider.Classify("embedding", err)
	}
	if len(resp.Data) != len(batch) {
		return nil, provider.Classify("embedding", fmt.Errorf("expected %d embeddings, got %d", len(batch), len(resp.Data)))
	}
	vecs := make([][]float32, len(batch))
	for _, d := range resp.Data {
		if d.Index < 0 || d.Index >= len(batch) || vecs[d.Index] != nil {
			return nil, provider.Classify("embedding", fmt.Errorf("unexpected embedding index %d", d.Index))
		}
		if len(d.Embedding) == 0 {
			return nil, provider.Classify("embedding", errors.New("empty embedding"))
		}
		v := make([]float32, len(d.Embedding))
		for i, x := range d.Embedding {
			v[i] = float32(x)
		}
		vecs[d.Index] = v
	}
	return vecs, nil
}
