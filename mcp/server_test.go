package mcp

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/yoanbernabeu/ragsync/config"
	"github.com/yoanbernabeu/ragsync/registry"
	"github.com/yoanbernabeu/ragsync/store"
	"github.com/yoanbernabeu/ragsync/watcher"
)

type fakeEmbedder struct{}

func (fakeEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vec := make([]float32, 8)
	for i, r := range text {
		vec[i%8] += float32(r % 13)
	}
	return vec, nil
}

func (e fakeEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		vec, _ := e.Embed(ctx, text)
		out[i] = vec
	}
	return out, nil
}

func (fakeEmbedder) Dimensions() int { return 8 }
func (fakeEmbedder) Close() error    { return nil }

func newTestServer(t *testing.T) (*Server, *store.MemoryGateway) {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.Store.Backend = "memory"
	cfg.Watch.DebounceMs = 20
	cfg.Search.ScoreThreshold = 0 // keep every hit in tests

	gw := store.NewMemoryGateway()
	reg := registry.New(gw, fakeEmbedder{}, cfg)
	t.Cleanup(reg.StopAll)

	return NewServer(reg, gw, fakeEmbedder{}, cfg), gw
}

func callTool(t *testing.T, s *Server, handler func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error), args map[string]any) *mcp.CallToolResult {
	t.Helper()
	req := mcp.CallToolRequest{}
	req.Params.Arguments = args

	result, err := handler(context.Background(), req)
	if err != nil {
		t.Fatalf("handler returned error: %v", err)
	}
	return result
}

func resultText(t *testing.T, result *mcp.CallToolResult) string {
	t.Helper()
	if len(result.Content) == 0 {
		t.Fatal("expected content in result")
	}
	content, ok := result.Content[0].(mcp.TextContent)
	if !ok {
		t.Fatalf("expected TextContent, got %T", result.Content[0])
	}
	return content.Text
}

func TestRegisterTools_Schemas(t *testing.T) {
	s, _ := newTestServer(t)

	tools := s.mcpServer.ListTools()
	for _, name := range []string{
		"ragsync_watch_folder",
		"ragsync_unwatch_folder",
		"ragsync_list_folders",
		"ragsync_search",
	} {
		if _, ok := tools[name]; !ok {
			t.Errorf("%s tool not registered", name)
		}
	}

	search := tools["ragsync_search"].Tool.InputSchema
	if search.Type != "object" {
		t.Fatalf("expected schema type object, got %q", search.Type)
	}
	for _, param := range []string{"query", "folder", "limit", "format"} {
		if _, exists := search.Properties[param]; !exists {
			t.Errorf("expected %s property in search schema", param)
		}
	}
	required := make(map[string]bool)
	for _, r := range search.Required {
		required[r] = true
	}
	if !required["query"] || !required["folder"] {
		t.Error("query and folder should be required")
	}
}

func TestHandleWatchFolder(t *testing.T) {
	s, _ := newTestServer(t)
	dir := t.TempDir()

	result := callTool(t, s, s.handleWatchFolder, map[string]any{"path": dir})
	if result.IsError {
		t.Fatalf("expected success, got: %s", resultText(t, result))
	}

	// Missing path parameter
	result = callTool(t, s, s.handleWatchFolder, map[string]any{})
	if !result.IsError {
		t.Error("expected error result for missing path")
	}

	// Overlapping root
	result = callTool(t, s, s.handleWatchFolder, map[string]any{"path": dir})
	if !result.IsError {
		t.Error("expected error result for duplicate root")
	}
}

func TestHandleUnwatchFolder(t *testing.T) {
	s, _ := newTestServer(t)
	dir := t.TempDir()

	callTool(t, s, s.handleWatchFolder, map[string]any{"path": dir})

	result := callTool(t, s, s.handleUnwatchFolder, map[string]any{"path": dir})
	if result.IsError {
		t.Fatalf("expected success, got: %s", resultText(t, result))
	}
	if !strings.Contains(resultText(t, result), "retained") {
		t.Error("unwatch message should say indexed data is retained")
	}

	result = callTool(t, s, s.handleUnwatchFolder, map[string]any{"path": dir})
	if !result.IsError {
		t.Error("expected error result for an unwatched folder")
	}
}

func TestHandleListFolders(t *testing.T) {
	s, _ := newTestServer(t)
	dir := t.TempDir()

	callTool(t, s, s.handleWatchFolder, map[string]any{"path": dir})

	result := callTool(t, s, s.handleListFolders, map[string]any{})
	if result.IsError {
		t.Fatalf("expected success, got: %s", resultText(t, result))
	}

	var statuses []FolderStatus
	if err := json.Unmarshal([]byte(resultText(t, result)), &statuses); err != nil {
		t.Fatalf("failed to parse result JSON: %v", err)
	}
	if len(statuses) != 1 || statuses[0].Path != dir {
		t.Errorf("unexpected statuses: %+v", statuses)
	}

	// toon format also encodes
	result = callTool(t, s, s.handleListFolders, map[string]any{"format": "toon"})
	if result.IsError {
		t.Fatalf("toon encoding failed: %s", resultText(t, result))
	}

	result = callTool(t, s, s.handleListFolders, map[string]any{"format": "xml"})
	if !result.IsError {
		t.Error("expected error result for unknown format")
	}
}

func TestHandleSearch(t *testing.T) {
	s, _ := newTestServer(t)
	dir := t.TempDir()

	content := make([]string, 40)
	for i := range content {
		content[i] = "database"
	}
	path := filepath.Join(dir, "notes.txt")
	if err := os.WriteFile(path, []byte(strings.Join(content, " ")), 0644); err != nil {
		t.Fatal(err)
	}

	callTool(t, s, s.handleWatchFolder, map[string]any{"path": dir})
	waitForIndexed(t, s, dir)

	result := callTool(t, s, s.handleSearch, map[string]any{
		"query":  "database",
		"folder": dir,
	})
	if result.IsError {
		t.Fatalf("expected success, got: %s", resultText(t, result))
	}

	var results []SearchResult
	if err := json.Unmarshal([]byte(resultText(t, result)), &results); err != nil {
		t.Fatalf("failed to parse result JSON: %v", err)
	}
	if len(results) == 0 {
		t.Fatal("expected at least one search result")
	}
	for _, r := range results {
		if r.Path != path {
			t.Errorf("unexpected result path: %s", r.Path)
		}
	}
}

func TestHandleSearch_Validation(t *testing.T) {
	s, _ := newTestServer(t)

	tests := []struct {
		name string
		args map[string]any
	}{
		{"missing query", map[string]any{"folder": "/tmp"}},
		{"missing folder", map[string]any{"query": "x"}},
		{"bad format", map[string]any{"query": "x", "folder": "/tmp", "format": "xml"}},
		{"unwatched folder", map[string]any{"query": "x", "folder": t.TempDir()}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := callTool(t, s, s.handleSearch, tt.args)
			if !result.IsError {
				t.Error("expected error result")
			}
		})
	}
}

func waitForIndexed(t *testing.T, s *Server, dir string) {
	t.Helper()
	w, ok := s.registry.Watcher(dir)
	if !ok {
		t.Fatalf("no watcher for %s", dir)
	}
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if w.GetStatus().Status == watcher.StatusWatching {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("folder never finished indexing")
}
