package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"eventbot/internal/domain"
	"eventbot/internal/postprocess"
)

// ProviderConfig holds connection details for the OpenAI-compatible endpoint
// serving both embeddings and generation.
type ProviderConfig struct {
	BaseURL     string `yaml:"base_url"`
	APIKeyEnv   string `yaml:"api_key_env"`
	EnvFile     string `yaml:"env_file"`
	TimeoutSecs int    `yaml:"timeout_secs"`
}

// EmbedderConfig pins the embedding model shared by ingestion and queries.
type EmbedderConfig struct {
	Model     string `yaml:"model"`
	BatchSize int    `yaml:"batch_size"`
}

// GeneratorConfig pins the generative model.
type GeneratorConfig struct {
	Model       string   `yaml:"model"`
	Temperature *float32 `yaml:"temperature,omitempty"`
}

// ChunkerConfig configures how documents are split into chunks.
type ChunkerConfig struct {
	ChunkSize    int      `yaml:"chunk_size"`
	ChunkOverlap *int     `yaml:"chunk_overlap,omitempty"`
	Separators   []string `yaml:"separators,omitempty"`
}

// Overlap returns the configured overlap; an explicit 0 disables it.
func (c ChunkerConfig) Overlap() int {
	if c.ChunkOverlap == nil {
		return 0
	}
	return *c.ChunkOverlap
}

// IngestConfig selects the documents to index.
type IngestConfig struct {
	DocumentsDir    string   `yaml:"documents_dir"`
	Extensions      []string `yaml:"extensions"`
	DigestSentences int      `yaml:"digest_sentences"`
	WatchDebounceMs int      `yaml:"watch_debounce_ms"`
}

// IndexConfig selects and configures the vector index engine.
type IndexConfig struct {
	Type   string        `yaml:"type"`
	Dir    string        `yaml:"dir"`
	Qdrant *QdrantConfig `yaml:"qdrant,omitempty"`
}

// QdrantConfig contains connection details for a Qdrant vector store.
type QdrantConfig struct {
	URL         string `yaml:"url"`
	APIKey      string `yaml:"api_key"`
	Collection  string `yaml:"collection"`
	TimeoutSecs int    `yaml:"timeout_secs"`
}

// RetrieverConfig controls top-k search and context assembly.
type RetrieverConfig struct {
	TopK      int    `yaml:"top_k"`
	Separator string `yaml:"separator"`
}

// PromptConfig optionally overrides the built-in prompt template.
type PromptConfig struct {
	TemplateFile string `yaml:"template_file,omitempty"`
}

// PostprocessConfig holds the answer reformatting rule table.
type PostprocessConfig struct {
	Rules []postprocess.Rule `yaml:"rules,omitempty"`
}

// ChatConfig configures the conversational surface.
type ChatConfig struct {
	Title    string `yaml:"title"`
	Greeting string `yaml:"greeting"`
}

// LogConfig configures structured logging.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	File   string `yaml:"file,omitempty"`
}

// AppConfig is the root application configuration structure.
type AppConfig struct {
	Provider    ProviderConfig    `yaml:"provider"`
	Embedder    EmbedderConfig    `yaml:"embedder"`
	Generator   GeneratorConfig   `yaml:"generator"`
	Chunker     ChunkerConfig     `yaml:"chunker"`
	Ingest      IngestConfig      `yaml:"ingest"`
	Index       IndexConfig       `yaml:"index"`
	Retriever   RetrieverConfig   `yaml:"retriever"`
	Prompt      PromptConfig      `yaml:"prompt"`
	Postprocess PostprocessConfig `yaml:"postprocess"`
	Chat        ChatConfig        `yaml:"chat"`
	Log         LogConfig         `yaml:"log"`
}

// DefaultGreeting is shown as the first assistant turn of every session.
const DefaultGreeting = `Hello! I'm Event bot.
I can help you with the following:
1. Agenda of the "Build with AI" workshop
2. Important Dates of this workshop
3. Details of the AI Hackathon
4. Presentation of Interesting projects in AI, ML
5. Locating the washrooms
6. Details of lunch at the venue

How can I help you with information about this event?`

// Load reads a config from a specified path. If the file does not exist, returns defaults.
func Load(path string) (*AppConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Default(), nil
		}
		return nil, err
	}
	var cfg AppConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, &domain.ConfigError{Msg: "parsing " + path, Err: err}
	}
	applyConfigDefaults(&cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadDefault tries ./config.yaml first, then ~/.config/eventbot/config.yaml.
// If neither exists, built-in defaults are returned without writing anything.
func LoadDefault() (*AppConfig, string, error) {
	cwdPath := "config.yaml"
	if _, err := os.Stat(cwdPath); err == nil {
		cfg, err := Load(cwdPath)
		return cfg, cwdPath, err
	}
	userPath, err := defaultUserConfigPath()
	if err != nil {
		return Default(), "", nil
	}
	if _, err := os.Stat(userPath); err == nil {
		cfg, err := Load(userPath)
		return cfg, userPath, err
	}
	return Default(), "", nil
}

// Save writes the config to the given path, creating directories as needed.
func Save(path string, cfg *AppConfig) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// APIKey returns the credential named by provider.api_key_env. Its absence is
// a configuration error and never falls back to anything else.
func (c *AppConfig) APIKey() (string, error) {
	key := strings.TrimSpace(os.Getenv(c.Provider.APIKeyEnv))
	if key == "" {
		return "", domain.Configf("API key not found: set %s in the environment or in %s", c.Provider.APIKeyEnv, c.Provider.EnvFile)
	}
	return key, nil
}

// Validate rejects settings that cannot produce a working pipeline.
func (c *AppConfig) Validate() error {
	if c.Chunker.ChunkSize <= 0 {
		return domain.Configf("chunker.chunk_size must be positive, got %d", c.Chunker.ChunkSize)
	}
	if o := c.Chunker.Overlap(); o < 0 || o >= c.Chunker.ChunkSize {
		return domain.Configf("chunker.chunk_overlap must be in [0, %d), got %d", c.Chunker.ChunkSize, o)
	}
	if c.Embedder.Model == "" {
		return domain.Configf("embedder.model must be set")
	}
	if c.Generator.Model == "" {
		return domain.Configf("generator.model must be set")
	}
	switch c.Index.Type {
	case "sqlite":
		if c.Index.Dir == "" {
			return domain.Configf("index.dir must be set")
		}
	case "qdrant":
		if c.Index.Qdrant == nil || c.Index.Qdrant.URL == "" {
			return domain.Configf("index.qdrant.url must be set for the qdrant index")
		}
	default:
		return domain.Configf("unknown index type %q", c.Index.Type)
	}
	if c.Retriever.TopK <= 0 {
		return domain.Configf("retriever.top_k must be positive, got %d", c.Retriever.TopK)
	}
	for _, r := range c.Postprocess.Rules {
		if err := r.Validate(); err != nil {
			return &domain.ConfigError{Msg: "postprocess rule", Err: err}
		}
	}
	return nil
}

func defaultUserConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "eventbot", "config.yaml"), nil
}

// Default returns the built-in configuration.
func Default() *AppConfig {
	cfg := &AppConfig{}
	applyConfigDefaults(cfg)
	return cfg
}

func applyConfigDefaults(cfg *AppConfig) {
	if cfg.Provider.BaseURL == "" {
		cfg.Provider.BaseURL = "https://generativelanguage.googleapis.com/v1beta/openai"
	}
	if cfg.Provider.APIKeyEnv == "" {
		cfg.Provider.APIKeyEnv = "GEMINI_API_KEY"
	}
	if cfg.Provider.EnvFile == "" {
		cfg.Provider.EnvFile = ".env"
	}
	if cfg.Provider.TimeoutSecs == 0 {
		cfg.Provider.TimeoutSecs = 60
	}
	if cfg.Embedder.Model == "" {
		cfg.Embedder.Model = "text-embedding-004"
	}
	if cfg.Embedder.BatchSize == 0 {
		cfg.Embedder.BatchSize = 32
	}
	if cfg.Generator.Model == "" {
		cfg.Generator.Model = "gemini-2.0-flash"
	}
	if cfg.Chunker.ChunkSize == 0 {
		cfg.Chunker.ChunkSize = 2000
	}
	if cfg.Chunker.ChunkOverlap == nil {
		overlap := 800
		cfg.Chunker.ChunkOverlap = &overlap
	}
	if cfg.Ingest.DocumentsDir == "" {
		cfg.Ingest.DocumentsDir = "documents"
	}
	if len(cfg.Ingest.Extensions) == 0 {
		cfg.Ingest.Extensions = []string{".pdf"}
	}
	if cfg.Ingest.DigestSentences == 0 {
		cfg.Ingest.DigestSentences = 3
	}
	if cfg.Ingest.WatchDebounceMs == 0 {
		cfg.Ingest.WatchDebounceMs = 2000
	}
	if cfg.Index.Type == "" {
		cfg.Index.Type = "sqlite"
	}
	if cfg.Index.Dir == "" {
		cfg.Index.Dir = "index"
	}
	if cfg.Index.Type == "qdrant" && cfg.Index.Qdrant != nil {
		if cfg.Index.Qdrant.Collection == "" {
			cfg.Index.Qdrant.Collection = "eventbot"
		}
		if cfg.Index.Qdrant.TimeoutSecs == 0 {
			cfg.Index.Qdrant.TimeoutSecs = 15
		}
	}
	if cfg.Retriever.TopK == 0 {
		cfg.Retriever.TopK = 5
	}
	if cfg.Retriever.Separator == "" {
		cfg.Retriever.Separator = "\n\n --- \n\n"
	}
	if cfg.Chat.Title == "" {
		cfg.Chat.Title = "Build with AI - RAG Event Bot"
	}
	if cfg.Chat.Greeting == "" {
		cfg.Chat.Greeting = DefaultGreeting
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "text"
	}
}

// String renders a short description used in startup logs.
func (c *AppConfig) String() string {
	return fmt.Sprintf("index=%s(%s) embedder=%s generator=%s top_k=%d",
		c.Index.Type, c.Index.Dir, c.Embedder.Model, c.Generator.Model, c.Retriever.TopK)
}
