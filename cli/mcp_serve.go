package cli

import (
	"context"
	"fmt"
	"log"

	"github.com/spf13/cobra"
	"github.com/yoanbernabeu/ragsync/mcp"
	"github.com/yoanbernabeu/ragsync/registry"
)

var mcpServeCmd = &cobra.Command{
	Use:   "mcp-serve",
	Short: "Start ragsync as an MCP server",
	Long: `Start ragsync as an MCP (Model Context Protocol) server.

This allows AI agents to use ragsync as a native tool through the MCP
protocol. The server communicates via stdio and exposes the following tools:

  - ragsync_watch_folder: Start watching and indexing a folder
  - ragsync_unwatch_folder: Remove a folder from the watched set
  - ragsync_list_folders: List watched folders with indexing progress
  - ragsync_search: Semantic search over a watched folder

Previously watched folders are restored on startup, so indexing resumes
automatically while the server is running.

Configuration for Claude Code:
  claude mcp add ragsync -- ragsync mcp-serve

Configuration for Cursor (.cursor/mcp.json):
  {
    "mcpServers": {
      "ragsync": {
        "command": "ragsync",
        "args": ["mcp-serve"]
      }
    }
  }`,
	Args: cobra.NoArgs,
	RunE: runMCPServe,
}

func init() {
	rootCmd.AddCommand(mcpServeCmd)
}

func runMCPServe(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	cfg, _, err := loadConfig()
	if err != nil {
		return err
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

	reg := registry.New(gw, emb, cfg)
	defer reg.StopAll()

	restored, err := reg.Restore(ctx)
	if err != nil {
		log.Printf("Warning: restore incomplete: %v", err)
	}
	if restored > 0 {
		log.Printf("Restored %d watched folder(s)", restored)
	}

	srv := mcp.NewServer(reg, gw, emb, cfg)
	return srv.Serve()
}
