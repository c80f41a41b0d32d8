package cli

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/yoanbernabeu/ragsync/config"
)

var (
	initProvider       string
	initBackend        string
	initNonInteractive bool
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize the ragsync configuration",
	Long: `Initialize ragsync by creating ~/.ragsync/config.yaml.

This command will:
- Create ~/.ragsync/config.yaml with default settings
- Prompt for embedding provider (Ollama or OpenAI)
- Prompt for storage backend (Qdrant or PostgreSQL)`,
	RunE: runInit,
}

func init() {
	initCmd.Flags().StringVarP(&initProvider, "provider", "p", "", "Embedding provider (ollama or openai)")
	initCmd.Flags().StringVarP(&initBackend, "backend", "b", "", "Storage backend (qdrant, postgres, or memory)")
	initCmd.Flags().BoolVar(&initNonInteractive, "yes", false, "Use defaults without prompting")
}

func runInit(cmd *cobra.Command, args []string) error {
	configDir, err := config.DefaultDir()
	if err != nil {
		return err
	}

	// Check if already initialized
	if config.Exists(configDir) {
		fmt.Println("ragsync is already initialized.")
		fmt.Printf("Configuration: %s\n", config.GetConfigPath(configDir))
		return nil
	}

	cfg := config.DefaultConfig()

	// Interactive mode
	if !initNonInteractive {
		reader := bufio.NewReader(os.Stdin)

		// Provider selection
		if initProvider == "" {
			fmt.Println("\nSelect embedding provider:")
			fmt.Println("  1) ollama (local, privacy-first, requires Ollama running)")
			fmt.Println("  2) openai (cloud, requires API key)")
			fmt.Print("Choice [1]: ")

			input, _ := reader.ReadString('\n')
			input = strings.TrimSpace(input)

			switch input {
			case "2", "openai":
				cfg.Embedder.Provider = "openai"
				cfg.Embedder.Model = "text-embedding-3-small"
				cfg.Embedder.Endpoint = "https://api.openai.com/v1"
				// OpenAI: leave Dimensions nil to use the model's native dimensions
				cfg.Embedder.Dimensions = nil
			default:
				cfg.Embedder.Provider = "ollama"
				fmt.Print("Ollama endpoint [http://localhost:11434]: ")
				endpoint, _ := reader.ReadString('\n')
				endpoint = strings.TrimSpace(endpoint)
				if endpoint == "" {
					endpoint = "http://localhost:11434"
				}
				cfg.Embedder.Endpoint = endpoint
			}
		} else {
			applyProvider(cfg, initProvider)
		}

		// Backend selection
		if initBackend == "" {
			fmt.Println("\nSelect storage backend:")
			fmt.Println("  1) qdrant (Docker-based vector database, recommended)")
			fmt.Println("  2) postgres (pgvector, for a shared index)")
			fmt.Print("Choice [1]: ")

			input, _ := reader.ReadString('\n')
			input = strings.TrimSpace(input)

			switch input {
			case "2", "postgres":
				cfg.Store.Backend = "postgres"
				fmt.Print("PostgreSQL DSN: ")
				dsn, _ := reader.ReadString('\n')
				cfg.Store.Postgres.DSN = strings.TrimSpace(dsn)
			default:
				cfg.Store.Backend = "qdrant"
				fmt.Print("Qdrant endpoint [localhost]: ")
				endpoint, _ := reader.ReadString('\n')
				endpoint = strings.TrimSpace(endpoint)
				if endpoint == "" {
					endpoint = "localhost"
				}
				cfg.Store.Qdrant.Endpoint = endpoint

				fmt.Print("Qdrant port [6334]: ")
				port, _ := reader.ReadString('\n')
				port = strings.TrimSpace(port)
				if port != "" {
					var portInt int
					if _, err := fmt.Sscanf(port, "%d", &portInt); err != nil {
						return fmt.Errorf("invalid port number: %w", err)
					}
					cfg.Store.Qdrant.Port = portInt
				}

				fmt.Print("API key (optional, for Qdrant Cloud): ")
				apiKey, _ := reader.ReadString('\n')
				cfg.Store.Qdrant.APIKey = strings.TrimSpace(apiKey)
				if cfg.Store.Qdrant.APIKey != "" {
					cfg.Store.Qdrant.UseTLS = true
				}
			}
		} else {
			cfg.Store.Backend = initBackend
		}
	} else {
		// Non-interactive with flags
		if initProvider != "" {
			applyProvider(cfg, initProvider)
		}
		if initBackend != "" {
			cfg.Store.Backend = initBackend
		}
	}

	if err := cfg.Save(configDir); err != nil {
		return fmt.Errorf("failed to save configuration: %w", err)
	}

	fmt.Printf("\nCreated configuration at %s\n", config.GetConfigPath(configDir))

	fmt.Println("\nragsync initialized successfully!")
	fmt.Println("\nNext steps:")
	fmt.Println("  1. Start watching a folder: ragsync watch /path/to/folder")
	fmt.Println("  2. Search its content: ragsync search \"your query\" --folder /path/to/folder")

	switch cfg.Embedder.Provider {
	case "ollama":
		fmt.Println("\nMake sure Ollama is running with the nomic-embed-text model:")
		fmt.Println("  ollama pull nomic-embed-text")
	case "openai":
		fmt.Println("\nMake sure OPENAI_API_KEY is set in your environment.")
	}

	return nil
}

func applyProvider(cfg *config.Config, provider string) {
	cfg.Embedder.Provider = provider
	if provider == "openai" {
		cfg.Embedder.Model = "text-embedding-3-small"
		cfg.Embedder.Endpoint = "https://api.openai.com/v1"
		cfg.Embedder.Dimensions = nil
	}
}
