package watcher

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// MetadataPointID is the reserved id of the single per-collection record
// that persists the watch root's configuration. It is fixed across all
// collections and never used for content chunks.
const MetadataPointID = "f0f0f0f0-0000-0000-0000-000000000001"

// chunkNamespace seeds the deterministic chunk ids. Changing it would orphan
// every previously written chunk.
var chunkNamespace = uuid.MustParse("7b9bba73-95b2-4f5a-9f0d-3a8f2a6e1c44")

// ChunkID derives a stable point id from (path, chunk index, modification
// time). Re-indexing an unchanged file reproduces identical ids, so upserts
// are idempotent; a modified file yields a disjoint id set.
func ChunkID(path string, chunkIndex int, modTime time.Time) string {
	key := fmt.Sprintf("%s|%d|%d", path, chunkIndex, modTime.UnixNano())
	return uuid.NewSHA1(chunkNamespace, []byte(key)).String()
}

// ChunkPayload is the payload stored with every content chunk.
type ChunkPayload struct {
	Path           string
	ChunkIndex     int
	TotalChunks    int
	ContentPreview string
	ModTime        int64 // UnixNano
}

func (p ChunkPayload) ToMap() map[string]any {
	return map[string]any{
		"path":            p.Path,
		"chunk_index":     int64(p.ChunkIndex),
		"total_chunks":    int64(p.TotalChunks),
		"content_preview": p.ContentPreview,
		"mtime":           p.ModTime,
	}
}

// Metadata is the typed form of the per-collection watcher configuration
// record, written at registration time and read back on restore.
type Metadata struct {
	FolderPath       string
	ContentTypes     []string
	CollectionPrefix string
}

const metadataPayloadKey = "watcher_config"

func (m Metadata) ToPayload() map[string]any {
	types := make([]any, len(m.ContentTypes))
	for i, ct := range m.ContentTypes {
		types[i] = ct
	}
	return map[string]any{
		metadataPayloadKey: map[string]any{
			"folder_path":       m.FolderPath,
			"content_types":     types,
			"collection_prefix": m.CollectionPrefix,
		},
	}
}

// MetadataFromPayload decodes the watcher configuration out of a point
// payload. Returns false when the payload carries no usable record.
func MetadataFromPayload(payload map[string]any) (*Metadata, bool) {
	raw, ok := payload[metadataPayloadKey]
	if !ok {
		return nil, false
	}
	fields, ok := raw.(map[string]any)
	if !ok {
		return nil, false
	}

	folderPath, ok := fields["folder_path"].(string)
	if !ok || folderPath == "" {
		return nil, false
	}

	m := &Metadata{FolderPath: folderPath}

	if prefix, ok := fields["collection_prefix"].(string); ok {
		m.CollectionPrefix = prefix
	}

	switch types := fields["content_types"].(type) {
	case []any:
		for _, t := range types {
			if s, ok := t.(string); ok {
				m.ContentTypes = append(m.ContentTypes, s)
			}
		}
	case []string:
		m.ContentTypes = append(m.ContentTypes, types...)
	}
	if len(m.ContentTypes) == 0 {
		m.ContentTypes = []string{"text"}
	}

	return m, true
}
