package cli

import (
	"context"
	"fmt"

	"github.com/yoanbernabeu/ragsync/config"
	"github.com/yoanbernabeu/ragsync/embedder"
	"github.com/yoanbernabeu/ragsync/store"
)

// loadConfig loads the per-user configuration from ~/.ragsync.
func loadConfig() (*config.Config, string, error) {
	configDir, err := config.DefaultDir()
	if err != nil {
		return nil, "", err
	}
	if !config.Exists(configDir) {
		return nil, "", fmt.Errorf("no configuration found at %s (run 'ragsync init' first)", config.GetConfigPath(configDir))
	}
	cfg, err := config.Load(configDir)
	if err != nil {
		return nil, "", err
	}
	return cfg, configDir, nil
}

func initializeEmbedder(ctx context.Context, cfg *config.Config) (embedder.Embedder, error) {
	emb, err := embedder.NewFromConfig(cfg)
	if err != nil {
		return nil, err
	}

	type pinger interface {
		Ping(ctx context.Context) error
	}

	if cfg.Embedder.Provider == "ollama" {
		if p, ok := emb.(pinger); ok {
			if err := p.Ping(ctx); err != nil {
				return nil, fmt.Errorf("cannot connect to Ollama: %w\nMake sure Ollama is running and has the %s model", err, cfg.Embedder.Model)
			}
		}
	}

	return emb, nil
}

func initializeGateway(ctx context.Context, cfg *config.Config) (store.Gateway, error) {
	switch cfg.Store.Backend {
	case "qdrant":
		return store.NewQdrantGateway(cfg.Store.Qdrant.Endpoint, cfg.Store.Qdrant.Port, cfg.Store.Qdrant.UseTLS, cfg.Store.Qdrant.APIKey)
	case "postgres":
		return store.NewPostgresGateway(ctx, cfg.Store.Postgres.DSN)
	case "memory":
		return store.NewMemoryGateway(), nil
	default:
		return nil, fmt.Errorf("unknown storage backend: %s", cfg.Store.Backend)
	}
}
