package registry

import (
	"fmt"
	"regexp"
	"strings"
)

// MaxCollectionNameLength bounds derived collection names.
const MaxCollectionNameLength = 64

var (
	invalidCollectionChars = regexp.MustCompile(`[^a-zA-Z0-9_.-]`)
	repeatedUnderscores    = regexp.MustCompile(`_+`)
)

// SanitizeCollectionName converts an arbitrary string into a valid collection
// name: only [A-Za-z0-9_.-], no repeated underscores, no leading or trailing
// separator characters, at most MaxCollectionNameLength characters. Empty or
// whitespace-only input is an error, as is input that sanitizes to nothing.
func SanitizeCollectionName(baseName string) (string, error) {
	if strings.TrimSpace(baseName) == "" {
		return "", fmt.Errorf("collection name cannot be empty")
	}

	sanitized := invalidCollectionChars.ReplaceAllString(baseName, "_")
	sanitized = repeatedUnderscores.ReplaceAllString(sanitized, "_")
	sanitized = strings.Trim(sanitized, "_.-")

	if sanitized == "" {
		return "", fmt.Errorf("collection name %q sanitizes to an empty string", baseName)
	}

	if len(sanitized) > MaxCollectionNameLength {
		sanitized = sanitized[:MaxCollectionNameLength]
	}
	return sanitized, nil
}

// CollectionName derives the deterministic collection identity for a watch
// root: prefix + path with separators and drive markers flattened to
// underscores, then sanitized.
func CollectionName(prefix, folderPath string) (string, error) {
	flattened := strings.NewReplacer(":", "", "\\", "_", "/", "_").Replace(folderPath)
	return SanitizeCollectionName(prefix + "_" + flattened)
}
