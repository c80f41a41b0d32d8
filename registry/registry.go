// Package registry owns the set of active watchers: it enforces non-overlap
// between watch roots, derives each root's collection identity, persists the
// root configuration inside its collection, and rebuilds watchers from that
// persisted state after a restart.
package registry

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/yoanbernabeu/ragsync/config"
	"github.com/yoanbernabeu/ragsync/embedder"
	"github.com/yoanbernabeu/ragsync/indexer"
	"github.com/yoanbernabeu/ragsync/store"
	"github.com/yoanbernabeu/ragsync/watcher"
)

// RootInfo describes one active watch root.
type RootInfo struct {
	Path       string
	Collection string
	Progress   watcher.Progress
}

// Registry coordinates all watchers against one gateway and one embedder,
// both injected at construction. Restoration from the store is an explicit
// call, never a construction side effect.
type Registry struct {
	gateway   store.Gateway
	embedder  embedder.Embedder
	extractor indexer.Extractor
	cfg       *config.Config

	mu       sync.Mutex
	watchers map[string]*watcher.Watcher // normalized root -> watcher
}

func New(gw store.Gateway, emb embedder.Embedder, cfg *config.Config) *Registry {
	return &Registry{
		gateway:   gw,
		embedder:  emb,
		extractor: indexer.NewFileExtractor(),
		cfg:       cfg,
		watchers:  make(map[string]*watcher.Watcher),
	}
}

// NormalizePath converts a path to its canonical absolute form.
func NormalizePath(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("failed to resolve path %s: %w", path, err)
	}
	return filepath.Clean(abs), nil
}

// checkConflict returns every active root that is an ancestor or descendant
// of newPath (or equal to it). Callers must hold r.mu.
func (r *Registry) checkConflict(newPath string) []string {
	var conflicts []string
	for watched := range r.watchers {
		if watched == newPath ||
			strings.HasPrefix(newPath, watched+string(os.PathSeparator)) ||
			strings.HasPrefix(watched, newPath+string(os.PathSeparator)) {
			conflicts = append(conflicts, watched)
		}
	}
	sort.Strings(conflicts)
	return conflicts
}

// AddRoot registers a new watch root: it validates the path, rejects
// overlapping roots, creates the backing collection, persists the metadata
// record, and starts a watcher. The whole sequence runs under one lock so
// two concurrent calls cannot both pass the conflict check.
func (r *Registry) AddRoot(ctx context.Context, path string, contentTypes []string) error {
	if path == "" {
		return fmt.Errorf("folder path cannot be empty")
	}

	normalized, err := NormalizePath(path)
	if err != nil {
		return err
	}

	info, err := os.Stat(normalized)
	if err != nil {
		return fmt.Errorf("cannot watch %s: %w", normalized, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("cannot watch %s: not a directory", normalized)
	}

	if len(contentTypes) == 0 {
		contentTypes = r.cfg.Watch.ContentTypes
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if conflicts := r.checkConflict(normalized); len(conflicts) > 0 {
		return fmt.Errorf("path %s conflicts with watched roots: %s",
			normalized, strings.Join(conflicts, ", "))
	}

	collection, err := CollectionName(r.cfg.Collections.Prefix, normalized)
	if err != nil {
		return err
	}

	dim := r.embedder.Dimensions()
	if err := r.gateway.EnsureCollection(ctx, collection, dim); err != nil {
		return fmt.Errorf("failed to ensure collection %s: %w", collection, err)
	}

	meta := watcher.Metadata{
		FolderPath:       normalized,
		ContentTypes:     contentTypes,
		CollectionPrefix: r.cfg.Collections.Prefix,
	}
	metaPoint := store.Point{
		ID:      watcher.MetadataPointID,
		Vector:  make([]float32, dim), // placeholder, never searched for
		Payload: meta.ToPayload(),
	}
	if err := r.gateway.Upsert(ctx, collection, []store.Point{metaPoint}); err != nil {
		return fmt.Errorf("failed to write watcher metadata: %w", err)
	}

	w, err := r.newWatcher(normalized, collection, contentTypes, false)
	if err != nil {
		return err
	}
	if err := w.Start(ctx); err != nil {
		w.Stop()
		return fmt.Errorf("failed to start watcher for %s: %w", normalized, err)
	}

	r.watchers[normalized] = w
	log.Printf("Watching %s -> %s", normalized, collection)
	return nil
}

func (r *Registry) newWatcher(root, collection string, contentTypes []string, restored bool) (*watcher.Watcher, error) {
	return watcher.New(watcher.Options{
		Root:         root,
		Collection:   collection,
		ContentTypes: contentTypes,
		Gateway:      r.gateway,
		Embedder:     r.embedder,
		Extractor:    r.extractor,
		Ignore:       indexer.NewIgnoreMatcher(root, r.cfg.Watch.Ignore),
		SizeWords:    r.cfg.Chunking.SizeWords,
		Overlap:      r.cfg.Chunking.Overlap,
		PreviewChars: r.cfg.Chunking.PreviewChars,
		Debounce:     time.Duration(r.cfg.Watch.DebounceMs) * time.Millisecond,
		Restored:     restored,
	})
}

// RemoveRoot drops the in-memory watcher entry. It deliberately does not
// stop the watcher's background loop or delete its collection; a caller
// wanting full teardown must call Watcher.Stop and Gateway.DeleteCollection
// explicitly.
func (r *Registry) RemoveRoot(path string) bool {
	normalized, err := NormalizePath(path)
	if err != nil {
		return false
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.watchers[normalized]; !ok {
		log.Printf("Folder %s is not watched", normalized)
		return false
	}
	delete(r.watchers, normalized)
	log.Printf("Folder %s removed from watchers", normalized)
	return true
}

// Watcher returns the watcher for a root, when one is registered.
func (r *Registry) Watcher(path string) (*watcher.Watcher, bool) {
	normalized, err := NormalizePath(path)
	if err != nil {
		return nil, false
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	w, ok := r.watchers[normalized]
	return w, ok
}

// Restore rebuilds watchers from the metadata records persisted in the
// store. Restored watchers skip rescanning and report progress as the stored
// chunk count. Best effort per collection: one failure does not abort the
// others.
func (r *Registry) Restore(ctx context.Context) (int, error) {
	collections, err := r.gateway.ListCollections(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to list collections: %w", err)
	}

	prefix := r.cfg.Collections.Prefix + "_"
	restored := 0

	for _, collection := range collections {
		if !strings.HasPrefix(collection, prefix) {
			continue
		}

		points, err := r.gateway.RetrieveByID(ctx, collection, []string{watcher.MetadataPointID})
		if err != nil {
			log.Printf("Failed to read metadata from %s: %v", collection, err)
			continue
		}
		if len(points) == 0 || points[0].Payload == nil {
			log.Printf("No watcher metadata in %s, skipping", collection)
			continue
		}

		meta, ok := watcher.MetadataFromPayload(points[0].Payload)
		if !ok {
			log.Printf("Unreadable watcher metadata in %s, skipping", collection)
			continue
		}

		if info, err := os.Stat(meta.FolderPath); err != nil || !info.IsDir() {
			log.Printf("Folder %s no longer exists, skipping %s", meta.FolderPath, collection)
			continue
		}

		r.mu.Lock()
		if conflicts := r.checkConflict(meta.FolderPath); len(conflicts) > 0 {
			r.mu.Unlock()
			log.Printf("Folder %s conflicts with already restored roots, skipping %s",
				meta.FolderPath, collection)
			continue
		}

		w, err := r.newWatcher(meta.FolderPath, collection, meta.ContentTypes, true)
		if err != nil {
			r.mu.Unlock()
			log.Printf("Failed to restore watcher for %s: %v", collection, err)
			continue
		}
		if err := w.Start(ctx); err != nil {
			r.mu.Unlock()
			w.Stop()
			log.Printf("Failed to start restored watcher for %s: %v", collection, err)
			continue
		}

		r.watchers[meta.FolderPath] = w
		r.mu.Unlock()

		restored++
		log.Printf("Restored watcher for %s -> %s", meta.FolderPath, collection)
	}

	return restored, nil
}

// ListRoots reports every active watcher with a fresh progress snapshot.
func (r *Registry) ListRoots() []RootInfo {
	r.mu.Lock()
	watchers := make(map[string]*watcher.Watcher, len(r.watchers))
	for path, w := range r.watchers {
		watchers[path] = w
	}
	r.mu.Unlock()

	roots := make([]RootInfo, 0, len(watchers))
	for path, w := range watchers {
		roots = append(roots, RootInfo{
			Path:       path,
			Collection: w.Collection(),
			Progress:   w.GetStatus(),
		})
	}
	sort.Slice(roots, func(i, j int) bool { return roots[i].Path < roots[j].Path })
	return roots
}

// StopAll stops every active watcher. Used on process shutdown; entries stay
// registered so a status read still reports them as stopped.
func (r *Registry) StopAll() {
	for _, info := range r.ListRoots() {
		if w, ok := r.Watcher(info.Path); ok {
			w.Stop()
		}
	}
}
