package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/alpkeskin/gotoon"
	"github.com/spf13/cobra"
	"github.com/yoanbernabeu/ragsync/registry"
	"github.com/yoanbernabeu/ragsync/watcher"
)

var (
	searchFolder string
	searchLimit  int
	searchJSON   bool
	searchTOON   bool
)

// SearchResultJSON is a lightweight struct for machine-readable output.
type SearchResultJSON struct {
	Path           string  `json:"path"`
	ChunkIndex     int64   `json:"chunk_index"`
	Score          float32 `json:"score"`
	ContentPreview string  `json:"content_preview"`
}

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Search a watched folder with natural language",
	Long: `Search the indexed content of a watched folder using natural language.

The search will:
- Vectorize your query using the configured embedding provider
- Calculate cosine similarity against the folder's indexed chunks
- Return the most relevant results with file path, chunk index, and score`,
	Args: cobra.ExactArgs(1),
	RunE: runSearch,
}

func init() {
	searchCmd.Flags().StringVarP(&searchFolder, "folder", "f", "", "Watched folder to search in (required)")
	searchCmd.Flags().IntVarP(&searchLimit, "limit", "n", 0, "Maximum number of results to return")
	searchCmd.Flags().BoolVarP(&searchJSON, "json", "j", false, "Output results in JSON format (for AI agents)")
	searchCmd.Flags().BoolVarP(&searchTOON, "toon", "t", false, "Output results in TOON format (token-efficient for AI agents)")
	searchCmd.MarkFlagRequired("folder")
	searchCmd.MarkFlagsMutuallyExclusive("json", "toon")
}

func runSearch(cmd *cobra.Command, args []string) error {
	query := args[0]
	ctx := context.Background()

	cfg, _, err := loadConfig()
	if err != nil {
		return err
	}

	limit := searchLimit
	if limit <= 0 {
		limit = cfg.Search.Limit
	}

	folder, err := registry.NormalizePath(searchFolder)
	if err != nil {
		return fmt.Errorf("invalid folder: %w", err)
	}
	collection, err := registry.CollectionName(cfg.Collections.Prefix, folder)
	if err != nil {
		return fmt.Errorf("invalid folder: %w", err)
	}

	gw, err := initializeGateway(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize store: %w", err)
	}
	defer gw.Close()

	emb, err := initializeEmbedder(ctx, cfg)
	if err != nil {
		return err
	}
	defer emb.Close()

	vector, err := emb.Embed(ctx, query)
	if err != nil {
		return fmt.Errorf("failed to embed query: %w", err)
	}

	// Fetch one extra so the reserved metadata record never displaces a hit.
	scored, err := gw.Search(ctx, collection, vector, limit+1)
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}

	results := make([]SearchResultJSON, 0, len(scored))
	for _, sp := range scored {
		if sp.Point.ID == watcher.MetadataPointID {
			continue
		}
		if sp.Score < cfg.Search.ScoreThreshold {
			continue
		}
		if len(results) >= limit {
			break
		}

		r := SearchResultJSON{Score: sp.Score}
		if path, ok := sp.Point.Payload["path"].(string); ok {
			r.Path = path
		}
		if idx, ok := sp.Point.Payload["chunk_index"].(int64); ok {
			r.ChunkIndex = idx
		}
		if preview, ok := sp.Point.Payload["content_preview"].(string); ok {
			r.ContentPreview = preview
		}
		results = append(results, r)
	}

	switch {
	case searchTOON:
		output, err := gotoon.Encode(results)
		if err != nil {
			return fmt.Errorf("failed to encode results: %w", err)
		}
		fmt.Println(output)
	case searchJSON:
		output, err := json.MarshalIndent(results, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to encode results: %w", err)
		}
		fmt.Println(string(output))
	default:
		if len(results) == 0 {
			fmt.Println("No results found.")
			return nil
		}
		for i, r := range results {
			fmt.Printf("%d. %s (chunk %d, score %.3f)\n", i+1, r.Path, r.ChunkIndex, r.Score)
			if r.ContentPreview != "" {
				fmt.Printf("   %s\n", strings.TrimSpace(r.ContentPreview))
			}
		}
	}

	return nil
}
