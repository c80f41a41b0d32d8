// Package mcp exposes the synchronization engine over the Model Context
// Protocol so AI agents can watch folders and search their indexed content.
package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/alpkeskin/gotoon"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/yoanbernabeu/ragsync/config"
	"github.com/yoanbernabeu/ragsync/embedder"
	"github.com/yoanbernabeu/ragsync/registry"
	"github.com/yoanbernabeu/ragsync/store"
	"github.com/yoanbernabeu/ragsync/watcher"
)

// Server wraps the MCP server around a live registry.
type Server struct {
	mcpServer *server.MCPServer
	registry  *registry.Registry
	gateway   store.Gateway
	embedder  embedder.Embedder
	cfg       *config.Config
}

// FolderStatus is the list_folders output shape.
type FolderStatus struct {
	Path            string `json:"path"`
	Collection      string `json:"collection"`
	Status          string `json:"status"`
	TotalUnits      int    `json:"total_units"`
	ProcessedUnits  int    `json:"processed_units"`
	ProgressPercent int    `json:"progress_percent"`
	UnitKind        string `json:"unit_kind"`
}

// SearchResult is the search output shape.
type SearchResult struct {
	Path           string  `json:"path"`
	ChunkIndex     int64   `json:"chunk_index"`
	Score          float32 `json:"score"`
	ContentPreview string  `json:"content_preview"`
}

func NewServer(reg *registry.Registry, gw store.Gateway, emb embedder.Embedder, cfg *config.Config) *Server {
	s := &Server{
		registry: reg,
		gateway:  gw,
		embedder: emb,
		cfg:      cfg,
	}

	s.mcpServer = server.NewMCPServer(
		"ragsync",
		"1.0.0",
		server.WithToolCapabilities(false),
	)
	s.registerTools()

	return s
}

// encodeOutput encodes data in the specified format (json or toon).
func encodeOutput(data any, format string) (string, error) {
	switch format {
	case "toon":
		return gotoon.Encode(data)
	default: // "json"
		jsonBytes, err := json.MarshalIndent(data, "", "  ")
		if err != nil {
			return "", err
		}
		return string(jsonBytes), nil
	}
}

func (s *Server) registerTools() {
	watchTool := mcp.NewTool("ragsync_watch_folder",
		mcp.WithDescription("Start watching a folder: its files are chunked, embedded, and kept synchronized in the vector store. Fails if the folder overlaps an already watched root."),
		mcp.WithString("path",
			mcp.Required(),
			mcp.Description("Absolute path of the folder to watch"),
		),
		mcp.WithString("content_types",
			mcp.Description("Comma-separated content categories to index: text, pdf (default: text)"),
		),
	)
	s.mcpServer.AddTool(watchTool, s.handleWatchFolder)

	unwatchTool := mcp.NewTool("ragsync_unwatch_folder",
		mcp.WithDescription("Remove a folder from the active watcher set. Indexed data stays in the vector store."),
		mcp.WithString("path",
			mcp.Required(),
			mcp.Description("Path of the watched folder to remove"),
		),
	)
	s.mcpServer.AddTool(unwatchTool, s.handleUnwatchFolder)

	listTool := mcp.NewTool("ragsync_list_folders",
		mcp.WithDescription("List every watched folder with its indexing progress."),
		mcp.WithString("format",
			mcp.Description("Output format: 'json' (default) or 'toon' (token-efficient)"),
		),
	)
	s.mcpServer.AddTool(listTool, s.handleListFolders)

	searchTool := mcp.NewTool("ragsync_search",
		mcp.WithDescription("Semantic search over a watched folder's indexed chunks. Returns the most similar chunks with file paths and scores."),
		mcp.WithString("query",
			mcp.Required(),
			mcp.Description("Natural language search query"),
		),
		mcp.WithString("folder",
			mcp.Required(),
			mcp.Description("Watched folder path to search in"),
		),
		mcp.WithNumber("limit",
			mcp.Description("Maximum number of results to return (default: 10)"),
		),
		mcp.WithString("format",
			mcp.Description("Output format: 'json' (default) or 'toon' (token-efficient)"),
		),
	)
	s.mcpServer.AddTool(searchTool, s.handleSearch)
}

func (s *Server) handleWatchFolder(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := request.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError("path parameter is required"), nil
	}

	var contentTypes []string
	if raw := request.GetString("content_types", ""); raw != "" {
		for _, ct := range strings.Split(raw, ",") {
			ct = strings.TrimSpace(ct)
			if ct != "" {
				contentTypes = append(contentTypes, ct)
			}
		}
	}

	if err := s.registry.AddRoot(ctx, path, contentTypes); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to watch folder: %v", err)), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("Watching %s", path)), nil
}

func (s *Server) handleUnwatchFolder(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := request.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError("path parameter is required"), nil
	}

	if !s.registry.RemoveRoot(path) {
		return mcp.NewToolResultError(fmt.Sprintf("folder is not watched: %s", path)), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("Stopped tracking %s (indexed data retained)", path)), nil
}

func (s *Server) handleListFolders(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	format := request.GetString("format", "json")
	if format != "json" && format != "toon" {
		return mcp.NewToolResultError("format must be 'json' or 'toon'"), nil
	}

	roots := s.registry.ListRoots()
	statuses := make([]FolderStatus, 0, len(roots))
	for _, root := range roots {
		statuses = append(statuses, FolderStatus{
			Path:            root.Path,
			Collection:      root.Collection,
			Status:          string(root.Progress.Status),
			TotalUnits:      root.Progress.TotalUnits,
			ProcessedUnits:  root.Progress.ProcessedUnits,
			ProgressPercent: root.Progress.ProgressPercent,
			UnitKind:        string(root.Progress.UnitKind),
		})
	}

	output, err := encodeOutput(statuses, format)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to encode folders: %v", err)), nil
	}
	return mcp.NewToolResultText(output), nil
}

func (s *Server) handleSearch(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := request.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError("query parameter is required"), nil
	}
	folder, err := request.RequireString("folder")
	if err != nil {
		return mcp.NewToolResultError("folder parameter is required"), nil
	}

	limit := request.GetInt("limit", s.cfg.Search.Limit)
	if limit <= 0 {
		limit = s.cfg.Search.Limit
	}

	format := request.GetString("format", "json")
	if format != "json" && format != "toon" {
		return mcp.NewToolResultError("format must be 'json' or 'toon'"), nil
	}

	normalized, err := registry.NormalizePath(folder)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("invalid folder: %v", err)), nil
	}
	collection, err := registry.CollectionName(s.cfg.Collections.Prefix, normalized)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("invalid folder: %v", err)), nil
	}

	vector, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to embed query: %v", err)), nil
	}

	// Fetch one extra so the reserved metadata record never displaces a hit.
	scored, err := s.gateway.Search(ctx, collection, vector, limit+1)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("search failed: %v", err)), nil
	}

	results := make([]SearchResult, 0, len(scored))
	for _, sp := range scored {
		if sp.Point.ID == "" || sp.Point.ID == watcher.MetadataPointID {
			continue
		}
		if sp.Score < s.cfg.Search.ScoreThreshold {
			continue
		}
		if len(results) >= limit {
			break
		}

		result := SearchResult{Score: sp.Score}
		if path, ok := sp.Point.Payload["path"].(string); ok {
			result.Path = path
		}
		if idx, ok := sp.Point.Payload["chunk_index"].(int64); ok {
			result.ChunkIndex = idx
		}
		if preview, ok := sp.Point.Payload["content_preview"].(string); ok {
			result.ContentPreview = preview
		}
		results = append(results, result)
	}

	output, err := encodeOutput(results, format)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to encode results: %v", err)), nil
	}
	return mcp.NewToolResultText(output), nil
}

// Serve runs the MCP server over stdio until the client disconnects.
func (s *Server) Serve() error {
	return server.ServeStdio(s.mcpServer)
}
