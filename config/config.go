package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/yoanbernabeu/ragsync/internal/fileutil"
	"gopkg.in/yaml.v3"
)

const (
	ConfigDirName  = ".ragsync"
	ConfigFileName = "config.yaml"
)

type Config struct {
	Version     int               `yaml:"version"`
	Embedder    EmbedderConfig    `yaml:"embedder"`
	Store       StoreConfig       `yaml:"store"`
	Chunking    ChunkingConfig    `yaml:"chunking"`
	Watch       WatchConfig       `yaml:"watch"`
	Search      SearchConfig      `yaml:"search"`
	Collections CollectionsConfig `yaml:"collections"`
}

type EmbedderConfig struct {
	Provider   string `yaml:"provider"` // ollama | openai
	Model      string `yaml:"model"`
	Endpoint   string `yaml:"endpoint,omitempty"`
	APIKey     string `yaml:"api_key,omitempty"`
	Dimensions *int   `yaml:"dimensions,omitempty"`
}

// GetDimensions returns the configured dimensions or the provider default.
// For OpenAI, defaults to 1536 (text-embedding-3-small).
// For Ollama, defaults to 768 (nomic-embed-text).
func (e *EmbedderConfig) GetDimensions() int {
	if e.Dimensions != nil {
		return *e.Dimensions
	}
	switch e.Provider {
	case "openai":
		return 1536
	default:
		return 768
	}
}

type StoreConfig struct {
	Backend  string         `yaml:"backend"` // qdrant | postgres | memory
	Qdrant   QdrantConfig   `yaml:"qdrant,omitempty"`
	Postgres PostgresConfig `yaml:"postgres,omitempty"`
}

type QdrantConfig struct {
	Endpoint string `yaml:"endpoint"`          // e.g., "localhost"
	Port     int    `yaml:"port,omitempty"`    // gRPC port, e.g., 6334
	APIKey   string `yaml:"api_key,omitempty"` // Optional, for Qdrant Cloud
	UseTLS   bool   `yaml:"use_tls,omitempty"` // Enable TLS (for Qdrant Cloud)
}

type PostgresConfig struct {
	DSN string `yaml:"dsn"`
}

type ChunkingConfig struct {
	SizeWords    int     `yaml:"size_words"`
	Overlap      float64 `yaml:"overlap"`
	PreviewChars int     `yaml:"preview_chars"`
}

type WatchConfig struct {
	DebounceMs   int      `yaml:"debounce_ms"`
	ContentTypes []string `yaml:"content_types"`
	Ignore       []string `yaml:"ignore"`
}

type SearchConfig struct {
	ScoreThreshold float32 `yaml:"score_threshold"`
	Limit          int     `yaml:"limit"`
}

type CollectionsConfig struct {
	Prefix string `yaml:"prefix"`
}

func DefaultConfig() *Config {
	defaultDim := 768
	return &Config{
		Version: 1,
		Embedder: EmbedderConfig{
			Provider:   "ollama",
			Model:      "nomic-embed-text",
			Endpoint:   "http://localhost:11434",
			Dimensions: &defaultDim,
		},
		Store: StoreConfig{
			Backend: "qdrant",
			Qdrant: QdrantConfig{
				Endpoint: "localhost",
				Port:     6334,
			},
		},
		Chunking: ChunkingConfig{
			SizeWords:    150,
			Overlap:      0.15,
			PreviewChars: 100,
		},
		Watch: WatchConfig{
			DebounceMs:   500,
			ContentTypes: []string{"text"},
			Ignore: []string{
				".git",
				".ragsync",
				"node_modules",
				"vendor",
				"dist",
				"__pycache__",
				".venv",
				"venv",
				".idea",
				".vscode",
				"target",
				"qdrant_storage",
			},
		},
		Search: SearchConfig{
			ScoreThreshold: 0.15,
			Limit:          10,
		},
		Collections: CollectionsConfig{
			Prefix: "rag",
		},
	}
}

// DefaultDir returns the per-user configuration directory (~/.ragsync).
// Watched roots live anywhere on the filesystem, so configuration is
// per-user rather than per-project.
func DefaultDir() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to resolve home directory: %w", err)
	}
	return filepath.Join(homeDir, ConfigDirName), nil
}

func GetConfigPath(configDir string) string {
	return filepath.Join(configDir, ConfigFileName)
}

func Load(configDir string) (*Config, error) {
	configPath := GetConfigPath(configDir)

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	// Apply defaults for missing values (backward compatibility)
	cfg.applyDefaults()

	return &cfg, nil
}

// applyDefaults fills in missing configuration values so older config files
// without newer fields keep working.
func (c *Config) applyDefaults() {
	defaults := DefaultConfig()

	if c.Embedder.Provider == "" {
		c.Embedder.Provider = defaults.Embedder.Provider
	}
	if c.Embedder.Endpoint == "" {
		switch c.Embedder.Provider {
		case "openai":
			c.Embedder.Endpoint = "https://api.openai.com/v1"
		default:
			c.Embedder.Endpoint = defaults.Embedder.Endpoint
		}
	}
	if c.Embedder.Model == "" {
		c.Embedder.Model = defaults.Embedder.Model
	}
	// Only default dimensions for ollama; for OpenAI leave nil so the API
	// uses the model's native dimensions.
	if c.Embedder.Dimensions == nil && c.Embedder.Provider == "ollama" {
		dim := 768
		c.Embedder.Dimensions = &dim
	}

	if c.Store.Backend == "" {
		c.Store.Backend = defaults.Store.Backend
	}
	if c.Store.Backend == "qdrant" {
		if c.Store.Qdrant.Endpoint == "" {
			c.Store.Qdrant.Endpoint = defaults.Store.Qdrant.Endpoint
		}
		if c.Store.Qdrant.Port <= 0 {
			c.Store.Qdrant.Port = defaults.Store.Qdrant.Port
		}
	}

	if c.Chunking.SizeWords <= 0 {
		c.Chunking.SizeWords = defaults.Chunking.SizeWords
	}
	if c.Chunking.Overlap <= 0 || c.Chunking.Overlap >= 1 {
		c.Chunking.Overlap = defaults.Chunking.Overlap
	}
	if c.Chunking.PreviewChars <= 0 {
		c.Chunking.PreviewChars = defaults.Chunking.PreviewChars
	}

	if c.Watch.DebounceMs <= 0 {
		c.Watch.DebounceMs = defaults.Watch.DebounceMs
	}
	if len(c.Watch.ContentTypes) == 0 {
		c.Watch.ContentTypes = defaults.Watch.ContentTypes
	}
	if c.Watch.Ignore == nil {
		c.Watch.Ignore = defaults.Watch.Ignore
	}

	if c.Search.ScoreThreshold <= 0 {
		c.Search.ScoreThreshold = defaults.Search.ScoreThreshold
	}
	if c.Search.Limit <= 0 {
		c.Search.Limit = defaults.Search.Limit
	}

	if c.Collections.Prefix == "" {
		c.Collections.Prefix = defaults.Collections.Prefix
	}
}

func (c *Config) Save(configDir string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := fileutil.WriteFileAtomic(GetConfigPath(configDir), data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

func Exists(configDir string) bool {
	_, err := os.Stat(GetConfigPath(configDir))
	return err == nil
}
