package config

import (
	"os"
	"path/filepath"
	"testing"

	"eventbot/internal/domain"
)

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Chunker.ChunkSize != 2000 || cfg.Chunker.Overlap() != 800 {
		t.Errorf("unexpected chunker defaults: %+v", cfg.Chunker)
	}
	if cfg.Retriever.TopK != 5 {
		t.Errorf("expected top_k 5, got %d", cfg.Retriever.TopK)
	}
	if cfg.Index.Type != "sqlite" || cfg.Index.Dir != "index" {
		t.Errorf("unexpected index defaults: %+v", cfg.Index)
	}
	if cfg.Provider.APIKeyEnv != "GEMINI_API_KEY" {
		t.Errorf("unexpected api key env %q", cfg.Provider.APIKeyEnv)
	}
}

func TestLoadAppliesDefaultsToPartialFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := []byte(`
embedder:
  model: custom-embed
chunker:
  chunk_size: 500
  chunk_overlap: 100
retriever:
  top_k: 3
postprocess:
  rules:
    - name: parking
      triggers: [parking]
      heading: "Regarding parking:"
      bullets:
        - any_of: [{text: garage, fold: true}]
          text: Use the garage on Main Street.
`)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Embedder.Model != "custom-embed" {
		t.Errorf("model not read: %q", cfg.Embedder.Model)
	}
	if cfg.Generator.Model != "gemini-2.0-flash" {
		t.Errorf("generator default missing: %q", cfg.Generator.Model)
	}
	if cfg.Chunker.ChunkSize != 500 || cfg.Chunker.Overlap() != 100 {
		t.Errorf("chunker not read: %+v", cfg.Chunker)
	}
	if len(cfg.Postprocess.Rules) != 1 || cfg.Postprocess.Rules[0].Name != "parking" {
		t.Fatalf("rules not read: %+v", cfg.Postprocess.Rules)
	}
	if !cfg.Postprocess.Rules[0].Bullets[0].AnyOf[0].Fold {
		t.Error("fold flag not read")
	}
}

func TestValidateRejectsOverlapNotSmallerThanSize(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	os.WriteFile(path, []byte("chunker:\n  chunk_size: 100\n  chunk_overlap: 100\n"), 0o644)
	_, err := Load(path)
	if !domain.IsConfig(err) {
		t.Fatalf("expected config error, got %v", err)
	}
}

func TestValidateRejectsUnknownIndexType(t *testing.T) {
	cfg := Default()
	cfg.Index.Type = "chroma"
	if err := cfg.Validate(); !domain.IsConfig(err) {
		t.Fatalf("expected config error, got %v", err)
	}
}

func TestAPIKeyMissingIsConfigError(t *testing.T) {
	cfg := Default()
	cfg.Provider.APIKeyEnv = "EVENTBOT_TEST_KEY_UNSET"
	t.Setenv("EVENTBOT_TEST_KEY_UNSET", "")
	if _, err := cfg.APIKey(); !domain.IsConfig(err) {
		t.Fatalf("expected config error, got %v", err)
	}
	t.Setenv("EVENTBOT_TEST_KEY_UNSET", "secret")
	key, err := cfg.APIKey()
	if err != nil || key != "secret" {
		t.Fatalf("expected key, got %q %v", key, err)
	}
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	cfg := Default()
	cfg.Generator.Model = "pinned-model"
	if err := Save(path, cfg); err != nil {
		t.Fatalf("save: %v", err)
	}
	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if loaded.Generator.Model != "pinned-model" {
		t.Errorf("expected pinned-model, got %q", loaded.Generator.Model)
	}
}

func TestExplicitZeroOverlapIsKept(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("chunker:\n  chunk_size: 300\n  chunk_overlap: 0\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Chunker.ChunkOverlap == nil || cfg.Chunker.Overlap() != 0 {
		t.Fatalf("explicit zero overlap replaced: %+v", cfg.Chunker)
	}

	saved := filepath.Join(t.TempDir(), "saved.yaml")
	if err := Save(saved, cfg); err != nil {
		t.Fatal(err)
	}
	loaded, err := Load(saved)
	if err != nil {
		t.Fatal(err)
	}
	if loaded.Chunker.Overlap() != 0 {
		t.Errorf("zero overlap lost on save, got %d", loaded.Chunker.Overlap())
	}
}
