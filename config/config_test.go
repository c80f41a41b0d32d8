package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Version != 1 {
		t.Errorf("Version = %d, want 1", cfg.Version)
	}
	if cfg.Embedder.Provider != "ollama" || cfg.Embedder.Model != "nomic-embed-text" {
		t.Errorf("unexpected embedder defaults: %+v", cfg.Embedder)
	}
	if cfg.Embedder.Dimensions == nil || *cfg.Embedder.Dimensions != 768 {
		t.Error("default ollama dimensions should be 768")
	}
	if cfg.Store.Backend != "qdrant" || cfg.Store.Qdrant.Port != 6334 {
		t.Errorf("unexpected store defaults: %+v", cfg.Store)
	}
	if cfg.Chunking.SizeWords != 150 || cfg.Chunking.Overlap != 0.15 || cfg.Chunking.PreviewChars != 100 {
		t.Errorf("unexpected chunking defaults: %+v", cfg.Chunking)
	}
	if cfg.Watch.DebounceMs != 500 {
		t.Errorf("DebounceMs = %d, want 500", cfg.Watch.DebounceMs)
	}
	if len(cfg.Watch.ContentTypes) != 1 || cfg.Watch.ContentTypes[0] != "text" {
		t.Errorf("unexpected content types: %v", cfg.Watch.ContentTypes)
	}
	if cfg.Search.ScoreThreshold != 0.15 || cfg.Search.Limit != 10 {
		t.Errorf("unexpected search defaults: %+v", cfg.Search)
	}
	if cfg.Collections.Prefix != "rag" {
		t.Errorf("Prefix = %s, want rag", cfg.Collections.Prefix)
	}
}

func TestEmbedderConfig_GetDimensions(t *testing.T) {
	explicit := 1024
	tests := []struct {
		name string
		cfg  EmbedderConfig
		want int
	}{
		{"explicit", EmbedderConfig{Provider: "ollama", Dimensions: &explicit}, 1024},
		{"ollama default", EmbedderConfig{Provider: "ollama"}, 768},
		{"openai default", EmbedderConfig{Provider: "openai"}, 1536},
		{"unknown falls back", EmbedderConfig{Provider: "other"}, 768},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.cfg.GetDimensions(); got != tt.want {
				t.Errorf("GetDimensions() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestSaveAndLoad(t *testing.T) {
	dir := t.TempDir()

	cfg := DefaultConfig()
	cfg.Embedder.Provider = "openai"
	cfg.Embedder.APIKey = "sk-test"
	cfg.Store.Backend = "postgres"
	cfg.Store.Postgres.DSN = "postgres://localhost/rag"
	cfg.Collections.Prefix = "custom"

	if err := cfg.Save(dir); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if !Exists(dir) {
		t.Fatal("Exists should report true after Save")
	}

	loaded, err := Load(dir)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if loaded.Embedder.Provider != "openai" || loaded.Embedder.APIKey != "sk-test" {
		t.Errorf("embedder did not round-trip: %+v", loaded.Embedder)
	}
	if loaded.Store.Backend != "postgres" || loaded.Store.Postgres.DSN != "postgres://localhost/rag" {
		t.Errorf("store did not round-trip: %+v", loaded.Store)
	}
	if loaded.Collections.Prefix != "custom" {
		t.Errorf("Prefix = %s, want custom", loaded.Collections.Prefix)
	}
}

func TestSave_CreatesDirectory(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", ConfigDirName)

	if err := DefaultConfig().Save(dir); err != nil {
		t.Fatalf("Save into a missing directory failed: %v", err)
	}
	if _, err := os.Stat(GetConfigPath(dir)); err != nil {
		t.Errorf("config file not created: %v", err)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load(t.TempDir()); err == nil {
		t.Error("Load should fail when no config file exists")
	}
}

func TestLoad_AppliesDefaults(t *testing.T) {
	dir := t.TempDir()

	// A minimal old-style config missing most sections.
	minimal := "version: 1\nembedder:\n  provider: ollama\n"
	if err := os.WriteFile(GetConfigPath(dir), []byte(minimal), 0600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(dir)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Embedder.Endpoint != "http://localhost:11434" {
		t.Errorf("missing endpoint should default, got %s", cfg.Embedder.Endpoint)
	}
	if cfg.Embedder.Dimensions == nil || *cfg.Embedder.Dimensions != 768 {
		t.Error("missing ollama dimensions should default to 768")
	}
	if cfg.Store.Backend != "qdrant" || cfg.Store.Qdrant.Port != 6334 {
		t.Errorf("missing store section should default: %+v", cfg.Store)
	}
	if cfg.Chunking.SizeWords != 150 || cfg.Chunking.Overlap != 0.15 {
		t.Errorf("missing chunking should default: %+v", cfg.Chunking)
	}
	if cfg.Watch.DebounceMs != 500 || len(cfg.Watch.Ignore) == 0 {
		t.Errorf("missing watch section should default: %+v", cfg.Watch)
	}
	if cfg.Search.Limit != 10 || cfg.Collections.Prefix != "rag" {
		t.Error("missing search/collections should default")
	}
}

func TestLoad_OpenAIDefaults(t *testing.T) {
	dir := t.TempDir()

	raw := "version: 1\nembedder:\n  provider: openai\n  api_key: sk-x\n"
	if err := os.WriteFile(GetConfigPath(dir), []byte(raw), 0600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(dir)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Embedder.Endpoint != "https://api.openai.com/v1" {
		t.Errorf("openai endpoint default: got %s", cfg.Embedder.Endpoint)
	}
	// OpenAI dimensions stay unset so the API uses the model's native size.
	if cfg.Embedder.Dimensions != nil {
		t.Errorf("openai dimensions should stay nil, got %d", *cfg.Embedder.Dimensions)
	}
	if cfg.Embedder.GetDimensions() != 1536 {
		t.Errorf("GetDimensions = %d, want 1536", cfg.Embedder.GetDimensions())
	}
}

func TestExists(t *testing.T) {
	dir := t.TempDir()
	if Exists(dir) {
		t.Error("Exists should be false before Save")
	}
	if err := DefaultConfig().Save(dir); err != nil {
		t.Fatal(err)
	}
	if !Exists(dir) {
		t.Error("Exists should be true after Save")
	}
}
