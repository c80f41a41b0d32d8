// Package watcher keeps one filesystem subtree mirrored into its vector
// store collection: an initial full scan followed by incremental
// reprocessing on live change notifications.
package watcher

import (
	"context"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/yoanbernabeu/ragsync/embedder"
	"github.com/yoanbernabeu/ragsync/indexer"
	"github.com/yoanbernabeu/ragsync/store"
)

type Status string

const (
	StatusIdle     Status = "idle"
	StatusScanning Status = "scanning"
	StatusWatching Status = "watching"
	StatusStopped  Status = "stopped"
)

type UnitKind string

const (
	UnitFiles  UnitKind = "files"
	UnitChunks UnitKind = "chunks"
)

// Progress is a snapshot of a watcher's indexing state. Percent is
// recomputed on every read, never stored.
type Progress struct {
	Status          Status
	TotalUnits      int
	ProcessedUnits  int
	UnitKind        UnitKind
	ProgressPercent int
}

// Content below this many non-whitespace characters is not worth indexing.
const minIndexableChars = 10

// Options configures a Watcher. Gateway, Embedder, and Extractor are
// injected; the watcher owns no global state.
type Options struct {
	Root         string
	Collection   string
	ContentTypes []string
	Gateway      store.Gateway
	Embedder     embedder.Embedder
	Extractor    indexer.Extractor
	Ignore       *indexer.IgnoreMatcher
	SizeWords    int
	Overlap      float64
	PreviewChars int
	Debounce     time.Duration

	// Restored watchers skip the initial scan and derive progress from the
	// chunk count already in the store.
	Restored bool
}

type Watcher struct {
	root         string
	collection   string
	contentTypes []string
	gateway      store.Gateway
	embedder     embedder.Embedder
	extractor    indexer.Extractor
	ignore       *indexer.IgnoreMatcher
	sizeWords    int
	overlap      float64
	previewChars int
	debounce     time.Duration
	restored     bool

	fsw  *fsnotify.Watcher
	done chan struct{}
	stop sync.Once
	wg   sync.WaitGroup

	// Progress state, guarded by mu
	mu             sync.Mutex
	status         Status
	totalUnits     int
	processedUnits int
	unitKind       UnitKind
}

func New(opts Options) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	if opts.SizeWords <= 0 {
		opts.SizeWords = indexer.DefaultChunkSizeWords
	}
	if opts.Overlap <= 0 || opts.Overlap >= 1 {
		opts.Overlap = indexer.DefaultChunkOverlap
	}
	if opts.PreviewChars <= 0 {
		opts.PreviewChars = 100
	}
	if opts.Debounce <= 0 {
		opts.Debounce = 500 * time.Millisecond
	}
	if opts.Extractor == nil {
		opts.Extractor = indexer.NewFileExtractor()
	}

	return &Watcher{
		root:         opts.Root,
		collection:   opts.Collection,
		contentTypes: opts.ContentTypes,
		gateway:      opts.Gateway,
		embedder:     opts.Embedder,
		extractor:    opts.Extractor,
		ignore:       opts.Ignore,
		sizeWords:    opts.SizeWords,
		overlap:      opts.Overlap,
		previewChars: opts.PreviewChars,
		debounce:     opts.Debounce,
		restored:     opts.Restored,
		fsw:          fsw,
		done:         make(chan struct{}),
		status:       StatusIdle,
		unitKind:     UnitFiles,
	}, nil
}

// Root returns the watched directory.
func (w *Watcher) Root() string { return w.root }

// Collection returns the vector store collection this watcher writes to.
func (w *Watcher) Collection() string { return w.collection }

// Start registers the filesystem listener and either launches the initial
// scan or, for a restored watcher, derives progress from the stored chunk
// count. Registration happens before any scan work so no event is missed.
func (w *Watcher) Start(ctx context.Context) error {
	if err := w.addRecursive(w.root); err != nil {
		return err
	}

	w.wg.Add(1)
	go w.eventLoop(ctx)

	if w.restored {
		chunkCount := w.countExistingChunks(ctx)
		w.mu.Lock()
		w.status = StatusWatching
		w.unitKind = UnitChunks
		w.totalUnits = chunkCount
		w.processedUnits = chunkCount
		w.mu.Unlock()
		return nil
	}

	w.mu.Lock()
	w.status = StatusScanning
	w.unitKind = UnitFiles
	w.processedUnits = 0
	w.mu.Unlock()

	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		w.initialScan(ctx)
	}()

	return nil
}

// Stop cancels in-flight processing, closes the filesystem listener, and
// blocks until the event loop has exited. Terminal.
func (w *Watcher) Stop() {
	w.stop.Do(func() {
		close(w.done)
		if err := w.fsw.Close(); err != nil {
			log.Printf("Failed to close filesystem watcher for %s: %v", w.root, err)
		}
		w.wg.Wait()

		w.mu.Lock()
		w.status = StatusStopped
		w.mu.Unlock()
	})
}

// GetStatus returns the progress snapshot with the percentage recomputed at
// read time.
func (w *Watcher) GetStatus() Progress {
	w.mu.Lock()
	defer w.mu.Unlock()

	total := w.totalUnits
	if total < 1 {
		total = 1
	}
	return Progress{
		Status:          w.status,
		TotalUnits:      w.totalUnits,
		ProcessedUnits:  w.processedUnits,
		UnitKind:        w.unitKind,
		ProgressPercent: 100 * w.processedUnits / total,
	}
}

func (w *Watcher) stopped() bool {
	select {
	case <-w.done:
		return true
	default:
		return false
	}
}

// countExistingChunks reads the collection size, excluding the metadata
// record.
func (w *Watcher) countExistingChunks(ctx context.Context) int {
	count, err := w.gateway.Count(ctx, w.collection)
	if err != nil {
		log.Printf("Failed to count chunks in %s: %v", w.collection, err)
		return 0
	}
	if count == 0 {
		return 0
	}
	return int(count) - 1
}

func (w *Watcher) addRecursive(root string) error {
	return filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil // Skip inaccessible paths
		}
		if !info.IsDir() {
			return nil
		}

		relPath, err := filepath.Rel(w.root, path)
		if err != nil {
			return nil
		}
		if w.ignore != nil && relPath != "." && w.ignore.ShouldSkipDir(relPath) {
			return filepath.SkipDir
		}

		if err := w.fsw.Add(path); err != nil {
			log.Printf("Failed to watch %s: %v", path, err)
		}
		return nil
	})
}

// initialScan walks the root, collects every eligible path into one batch,
// then processes the batch sequentially. A stop request aborts the remaining
// batch without reverting already-applied changes.
func (w *Watcher) initialScan(ctx context.Context) {
	var files []string
	err := filepath.Walk(w.root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil
		}

		relPath, relErr := filepath.Rel(w.root, path)
		if relErr != nil {
			return nil
		}
		if w.ignore != nil && relPath != "." && w.ignore.ShouldIgnore(relPath) {
			if info.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		if !info.IsDir() && indexer.Eligible(path, w.contentTypes) {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		log.Printf("Error scanning %s: %v", w.root, err)
	}

	w.mu.Lock()
	w.totalUnits = len(files)
	w.processedUnits = 0
	w.mu.Unlock()

	for _, path := range files {
		if w.stopped() {
			break
		}
		w.processFile(ctx, path)
		w.mu.Lock()
		w.processedUnits++
		w.mu.Unlock()
	}

	w.mu.Lock()
	if w.status == StatusScanning {
		w.status = StatusWatching
	}
	w.mu.Unlock()
}

// processFile synchronizes one file into the collection: delete the file's
// existing chunks, re-extract, re-chunk, embed, and upsert. Old chunks are
// never overwritten in place; supersession is delete-then-insert, which makes
// the whole operation idempotent for an unchanged file.
func (w *Watcher) processFile(ctx context.Context, path string) {
	if w.stopped() {
		return
	}
	if !indexer.Eligible(path, w.contentTypes) {
		return
	}

	w.deleteFileChunks(ctx, path)

	content, err := w.extractor.Extract(path, w.contentTypes)
	if err != nil {
		log.Printf("Failed to extract %s: %v", path, err)
		return
	}
	if indexer.NonWhitespaceLen(content) < minIndexableChars {
		return
	}

	info, err := os.Stat(path)
	if err != nil {
		log.Printf("Failed to stat %s: %v", path, err)
		return
	}
	modTime := info.ModTime()

	chunks := indexer.Chunk(content, w.sizeWords, w.overlap, nil)
	for i, chunk := range chunks {
		if w.stopped() {
			return
		}
		if indexer.NonWhitespaceLen(chunk) < minIndexableChars {
			continue
		}

		vector, err := w.embedder.Embed(ctx, chunk)
		if err != nil {
			log.Printf("Failed to embed chunk %d of %s: %v", i, path, err)
			continue
		}

		// Truncate by runes so the preview stays valid UTF-8.
		preview := chunk
		if runes := []rune(chunk); len(runes) > w.previewChars {
			preview = string(runes[:w.previewChars])
		}

		point := store.Point{
			ID:     ChunkID(path, i, modTime),
			Vector: vector,
			Payload: ChunkPayload{
				Path:           path,
				ChunkIndex:     i,
				TotalChunks:    len(chunks),
				ContentPreview: preview,
				ModTime:        modTime.UnixNano(),
			}.ToMap(),
		}

		if err := w.gateway.Upsert(ctx, w.collection, []store.Point{point}); err != nil {
			log.Printf("Failed to upsert chunk %d of %s: %v", i, path, err)
		}
	}
}

// deleteFileChunks removes every chunk whose stored path equals this file.
// Best effort: failures are logged, not retried.
func (w *Watcher) deleteFileChunks(ctx context.Context, path string) {
	if err := w.gateway.DeleteByFilter(ctx, w.collection, "path", path); err != nil {
		log.Printf("Failed to delete chunks of %s: %v", path, err)
	}
}

func (w *Watcher) eventLoop(ctx context.Context) {
	defer w.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.done:
			return
		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			w.handleEvent(ctx, event)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			log.Printf("Watcher error on %s: %v", w.root, err)
		}
	}
}

// handleEvent maps filesystem notifications onto reprocessing:
// create/modify both route to the same debounced path (they can fire
// together for one logical change); remove and rename delete by path — a
// rename is the source half of a move, the destination arrives as its own
// create event.
func (w *Watcher) handleEvent(ctx context.Context, event fsnotify.Event) {
	relPath, err := filepath.Rel(w.root, event.Name)
	if err != nil {
		return
	}
	if w.ignore != nil && w.ignore.ShouldIgnore(relPath) {
		return
	}

	switch {
	case event.Has(fsnotify.Create):
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			// New directory: extend the watch set
			if err := w.addRecursive(event.Name); err != nil {
				log.Printf("Failed to watch new directory %s: %v", event.Name, err)
			}
			return
		}
		w.scheduleReprocess(ctx, event.Name)
	case event.Has(fsnotify.Write):
		w.scheduleReprocess(ctx, event.Name)
	case event.Has(fsnotify.Remove), event.Has(fsnotify.Rename):
		w.deleteFileChunks(ctx, event.Name)
	}
}

// scheduleReprocess delays processing so a file is not read mid-write. Each
// event schedules independently; rapid successive events can overlap, which
// is tolerated because delete-then-insert is idempotent per invocation.
func (w *Watcher) scheduleReprocess(ctx context.Context, path string) {
	if !indexer.Eligible(path, w.contentTypes) {
		return
	}
	time.AfterFunc(w.debounce, func() {
		if w.stopped() {
			return
		}
		w.processFile(ctx, path)
	})
}
