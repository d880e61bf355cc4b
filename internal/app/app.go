// Package app wires configuration into the ingestion and query services.
// Every configuration problem is detected here, before any remote call.
package app

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"time"

	"github.com/joho/godotenv"

	"eventbot/internal/chunker"
	"eventbot/internal/config"
	"eventbot/internal/domain"
	embopenai "eventbot/internal/embedding/openai"
	"eventbot/internal/extractor"
	genopenai "eventbot/internal/generator/openai"
	"eventbot/internal/postprocess"
	"eventbot/internal/prompt"
	"eventbot/internal/provider"
	"eventbot/internal/retriever"
	"eventbot/internal/service"
	"eventbot/internal/summarizer"
	"eventbot/internal/vectorstore"
	"eventbot/internal/vectorstore/qdrant"
	"eventbot/internal/vectorstore/sqlite"
)

// LoadConfig reads the configuration from path, or from the default
// locations when path is empty, then loads the provider's env file. A missing
// env file is not an error; variables already set in the environment win.
func LoadConfig(path string) (*config.AppConfig, error) {
	var cfg *config.AppConfig
	var err error
	if path == "" {
		cfg, _, err = config.LoadDefault()
	} else {
		cfg, err = config.Load(path)
	}
	if err != nil {
		return nil, err
	}
	if err := godotenv.Load(cfg.Provider.EnvFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, &domain.ConfigError{Msg: "reading " + cfg.Provider.EnvFile, Err: err}
	}
	return cfg, nil
}

// Query bundles the query service with the index it reads.
type Query struct {
	Service *service.QueryService
	Index   vectorstore.Index
}

func (q *Query) Close() error { return q.Index.Close() }

// NewQuery validates the configuration, resolves the credential, opens the
// index and checks that it was built with the configured embedding model.
func NewQuery(ctx context.Context, cfg *config.AppConfig, log *slog.Logger) (*Query, error) {
	if log == nil {
		log = slog.Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	key, err := cfg.APIKey()
	if err != nil {
		return nil, err
	}
	pb, err := prompt.Load(cfg.Prompt.TemplateFile)
	if err != nil {
		return nil, err
	}
	post, err := postprocess.New(cfg.Postprocess.Rules)
	if err != nil {
		return nil, &domain.ConfigError{Msg: "postprocess rules", Err: err}
	}
	idx, err := OpenIndex(ctx, cfg, log)
	if err != nil {
		return nil, err
	}
	if m := idx.Meta(); m.EmbeddingModel != cfg.Embedder.Model {
		idx.Close()
		return nil, domain.Configf("index was built with embedding model %q but %q is configured; rebuild the index or change embedder.model",
			m.EmbeddingModel, cfg.Embedder.Model)
	}

	p := provider.New(cfg.Provider, key)
	emb, err := embopenai.NewClient(p, embopenai.Config{Model: cfg.Embedder.Model, BatchSize: cfg.Embedder.BatchSize}, log)
	if err != nil {
		idx.Close()
		return nil, &domain.ConfigError{Msg: "embedder", Err: err}
	}
	gen, err := genopenai.NewClient(p, genopenai.Config{Model: cfg.Generator.Model, Temperature: cfg.Generator.Temperature})
	if err != nil {
		idx.Close()
		return nil, &domain.ConfigError{Msg: "generator", Err: err}
	}
	r := retriever.New(emb, idx, cfg.Retriever.TopK, cfg.Retriever.Separator)
	log.Info("query service ready", "config", cfg.String(), "records", idx.Meta().Records)
	return &Query{Service: service.NewQueryService(r, pb, gen, post, log), Index: idx}, nil
}

// OpenIndex opens the configured index engine for reading.
func OpenIndex(ctx context.Context, cfg *config.AppConfig, log *slog.Logger) (vectorstore.Index, error) {
	switch cfg.Index.Type {
	case "qdrant":
		return qdrant.Open(ctx, qdrantConfig(cfg), log)
	default:
		return sqlite.Open(ctx, cfg.Index.Dir, log)
	}
}

// NewIngest builds the ingestion service. backup keeps the replaced index
// and is only supported by the sqlite engine.
func NewIngest(cfg *config.AppConfig, backup bool, log *slog.Logger) (*service.IngestService, vectorstore.Writer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}
	if backup && cfg.Index.Type != "sqlite" {
		return nil, nil, domain.Configf("--backup is not supported by the %s index", cfg.Index.Type)
	}
	key, err := cfg.APIKey()
	if err != nil {
		return nil, nil, err
	}
	reg, err := extractor.NewRegistry(cfg.Ingest.Extensions, log)
	if err != nil {
		return nil, nil, err
	}
	ch, err := chunker.NewWindowChunker(cfg.Chunker.ChunkSize, cfg.Chunker.Overlap(), cfg.Chunker.Separators)
	if err != nil {
		return nil, nil, err
	}
	emb, err := embopenai.NewClient(provider.New(cfg.Provider, key),
		embopenai.Config{Model: cfg.Embedder.Model, BatchSize: cfg.Embedder.BatchSize}, log)
	if err != nil {
		return nil, nil, &domain.ConfigError{Msg: "embedder", Err: err}
	}
	var w vectorstore.Writer
	switch cfg.Index.Type {
	case "qdrant":
		w = qdrant.NewStorage(qdrantConfig(cfg), log)
	default:
		w = sqlite.NewWriter(cfg.Index.Dir, backup, log)
	}
	svc := service.NewIngestService(reg, ch, emb, w, summarizer.NewFrequencySummarizer(), cfg.Ingest.DigestSentences, log)
	return svc, w, nil
}

func qdrantConfig(cfg *config.AppConfig) qdrant.Config {
	q := cfg.Index.Qdrant
	return qdrant.Config{
		URL:        q.URL,
		APIKey:     q.APIKey,
		Collection: q.Collection,
		Timeout:    time.Duration(q.TimeoutSecs) * time.Second,
	}
}
