package registry

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/yoanbernabeu/ragsync/config"
	"github.com/yoanbernabeu/ragsync/store"
	"github.com/yoanbernabeu/ragsync/watcher"
)

type stubEmbedder struct {
	dims int
}

func (e *stubEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vec := make([]float32, e.dims)
	for i := range vec {
		vec[i] = float32((len(text) + i) % 7)
	}
	return vec, nil
}

func (e *stubEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		vec, err := e.Embed(ctx, text)
		if err != nil {
			return nil, err
		}
		out[i] = vec
	}
	return out, nil
}

func (e *stubEmbedder) Dimensions() int { return e.dims }
func (e *stubEmbedder) Close() error    { return nil }

func testConfig() *config.Config {
	cfg := config.DefaultConfig()
	cfg.Store.Backend = "memory"
	cfg.Watch.DebounceMs = 20
	return cfg
}

func newTestRegistry(gw store.Gateway) *Registry {
	return New(gw, &stubEmbedder{dims: 8}, testConfig())
}

func waitForWatching(t *testing.T, r *Registry, path string) {
	t.Helper()
	w, ok := r.Watcher(path)
	if !ok {
		t.Fatalf("no watcher registered for %s", path)
	}
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if w.GetStatus().Status == watcher.StatusWatching {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("watcher for %s never reached watching state", path)
}

func TestRegistry_AddRoot(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "doc.txt"), []byte("enough words to index here for sure"), 0644); err != nil {
		t.Fatal(err)
	}

	gw := store.NewMemoryGateway()
	r := newTestRegistry(gw)
	defer r.StopAll()
	ctx := context.Background()

	if err := r.AddRoot(ctx, dir, nil); err != nil {
		t.Fatalf("AddRoot failed: %v", err)
	}
	waitForWatching(t, r, dir)

	roots := r.ListRoots()
	if len(roots) != 1 {
		t.Fatalf("expected 1 root, got %d", len(roots))
	}
	if roots[0].Path != dir {
		t.Errorf("unexpected root path: %s", roots[0].Path)
	}

	// The metadata record must have been written into the collection.
	points, err := gw.RetrieveByID(ctx, roots[0].Collection, []string{watcher.MetadataPointID})
	if err != nil || len(points) != 1 {
		t.Fatalf("metadata record missing: %v (%d points)", err, len(points))
	}
	meta, ok := watcher.MetadataFromPayload(points[0].Payload)
	if !ok {
		t.Fatal("metadata record unreadable")
	}
	if meta.FolderPath != dir {
		t.Errorf("metadata folder path: got %q, want %q", meta.FolderPath, dir)
	}
	if meta.CollectionPrefix != "rag" {
		t.Errorf("metadata prefix: got %q", meta.CollectionPrefix)
	}
}

func TestRegistry_AddRootValidation(t *testing.T) {
	gw := store.NewMemoryGateway()
	r := newTestRegistry(gw)
	defer r.StopAll()
	ctx := context.Background()

	if err := r.AddRoot(ctx, "", nil); err == nil {
		t.Error("expected error for empty path")
	}

	if err := r.AddRoot(ctx, filepath.Join(t.TempDir(), "missing"), nil); err == nil {
		t.Error("expected error for non-existent path")
	}

	file := filepath.Join(t.TempDir(), "plain.txt")
	if err := os.WriteFile(file, []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := r.AddRoot(ctx, file, nil); err == nil {
		t.Error("expected error for a file path")
	}
}

func TestRegistry_ConflictMatrix(t *testing.T) {
	base := t.TempDir()
	parent := filepath.Join(base, "parent")
	child := filepath.Join(parent, "child")
	sibling := filepath.Join(base, "sibling")
	// A sibling whose name shares a prefix with parent must not conflict.
	prefixy := filepath.Join(base, "parented")
	for _, d := range []string{child, sibling, prefixy} {
		if err := os.MkdirAll(d, 0755); err != nil {
			t.Fatal(err)
		}
	}

	gw := store.NewMemoryGateway()
	r := newTestRegistry(gw)
	defer r.StopAll()
	ctx := context.Background()

	if err := r.AddRoot(ctx, parent, nil); err != nil {
		t.Fatalf("AddRoot(parent) failed: %v", err)
	}

	if err := r.AddRoot(ctx, parent, nil); err == nil {
		t.Error("re-adding the same root should conflict")
	}
	if err := r.AddRoot(ctx, child, nil); err == nil {
		t.Error("descendant of a watched root should conflict")
	}
	if err := r.AddRoot(ctx, sibling, nil); err != nil {
		t.Errorf("sibling should not conflict: %v", err)
	}
	if err := r.AddRoot(ctx, prefixy, nil); err != nil {
		t.Errorf("name-prefix sibling should not conflict: %v", err)
	}

	// And the ancestor direction: watching a parent of an existing root.
	if err := r.AddRoot(ctx, base, nil); err == nil {
		t.Error("ancestor of watched roots should conflict")
	}
}

func TestRegistry_RemoveRoot(t *testing.T) {
	dir := t.TempDir()

	gw := store.NewMemoryGateway()
	r := newTestRegistry(gw)
	defer r.StopAll()
	ctx := context.Background()

	if err := r.AddRoot(ctx, dir, nil); err != nil {
		t.Fatalf("AddRoot failed: %v", err)
	}
	collection, _ := CollectionName("rag", dir)

	if !r.RemoveRoot(dir) {
		t.Error("RemoveRoot should report success for a watched root")
	}
	if r.RemoveRoot(dir) {
		t.Error("RemoveRoot should report failure for an unwatched root")
	}
	if len(r.ListRoots()) != 0 {
		t.Error("root still listed after removal")
	}

	// Removal keeps the collection and its metadata so a later watch can
	// resume without a full re-scan.
	points, err := gw.RetrieveByID(ctx, collection, []string{watcher.MetadataPointID})
	if err != nil || len(points) != 1 {
		t.Errorf("metadata should survive RemoveRoot: %v (%d points)", err, len(points))
	}
}

func TestRegistry_Restore(t *testing.T) {
	dir := t.TempDir()
	gw := store.NewMemoryGateway()
	ctx := context.Background()

	// Simulate a previous run: collection with 5 chunks and a metadata record.
	collection, err := CollectionName("rag", dir)
	if err != nil {
		t.Fatal(err)
	}
	if err := gw.EnsureCollection(ctx, collection, 8); err != nil {
		t.Fatal(err)
	}
	points := make([]store.Point, 0, 6)
	for i := 0; i < 5; i++ {
		points = append(points, store.Point{
			ID:      watcher.ChunkID(filepath.Join(dir, "old.txt"), i, time.Unix(1700000000, 0)),
			Vector:  make([]float32, 8),
			Payload: map[string]any{"path": filepath.Join(dir, "old.txt")},
		})
	}
	points = append(points, store.Point{
		ID:     watcher.MetadataPointID,
		Vector: make([]float32, 8),
		Payload: watcher.Metadata{
			FolderPath:       dir,
			ContentTypes:     []string{"text"},
			CollectionPrefix: "rag",
		}.ToPayload(),
	})
	if err := gw.Upsert(ctx, collection, points); err != nil {
		t.Fatal(err)
	}

	// A collection without the configured prefix must be left alone.
	if err := gw.EnsureCollection(ctx, "unrelated", 8); err != nil {
		t.Fatal(err)
	}

	r := newTestRegistry(gw)
	defer r.StopAll()

	restored, err := r.Restore(ctx)
	if err != nil {
		t.Fatalf("Restore failed: %v", err)
	}
	if restored != 1 {
		t.Fatalf("expected 1 restored watcher, got %d", restored)
	}

	w, ok := r.Watcher(dir)
	if !ok {
		t.Fatal("restored watcher not registered")
	}
	p := w.GetStatus()
	if p.Status != watcher.StatusWatching {
		t.Errorf("restored watcher should be watching, got %s", p.Status)
	}
	if p.UnitKind != watcher.UnitChunks {
		t.Errorf("restored watcher should count chunks, got %s", p.UnitKind)
	}
	if p.TotalUnits != 5 || p.ProcessedUnits != 5 {
		t.Errorf("expected 5/5 chunks, got %d/%d", p.ProcessedUnits, p.TotalUnits)
	}
}

func TestRegistry_RestoreSkipsMissingFolder(t *testing.T) {
	gw := store.NewMemoryGateway()
	ctx := context.Background()

	gone := filepath.Join(os.TempDir(), "ragsync-gone-root-for-test")
	collection, err := CollectionName("rag", gone)
	if err != nil {
		t.Fatal(err)
	}
	if err := gw.EnsureCollection(ctx, collection, 8); err != nil {
		t.Fatal(err)
	}
	meta := store.Point{
		ID:     watcher.MetadataPointID,
		Vector: make([]float32, 8),
		Payload: watcher.Metadata{
			FolderPath:   gone,
			ContentTypes: []string{"text"},
		}.ToPayload(),
	}
	if err := gw.Upsert(ctx, collection, []store.Point{meta}); err != nil {
		t.Fatal(err)
	}

	r := newTestRegistry(gw)
	defer r.StopAll()

	restored, err := r.Restore(ctx)
	if err != nil {
		t.Fatalf("Restore failed: %v", err)
	}
	if restored != 0 {
		t.Errorf("expected 0 restored watchers for a missing folder, got %d", restored)
	}
}

func TestNormalizePath(t *testing.T) {
	dir := t.TempDir()

	got, err := NormalizePath(dir + string(os.PathSeparator))
	if err != nil {
		t.Fatal(err)
	}
	if got != dir {
		t.Errorf("trailing separator should normalize away: %q vs %q", got, dir)
	}

	nested := filepath.Join(dir, "a", "..", "b")
	got, err = NormalizePath(nested)
	if err != nil {
		t.Fatal(err)
	}
	if got != filepath.Join(dir, "b") {
		t.Errorf("dot segments should resolve: got %q", got)
	}
}
