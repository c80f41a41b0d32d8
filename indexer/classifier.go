package indexer

import (
	"mime"
	"path/filepath"
	"strings"
)

// ContentTypePDF and ContentTypeText are the content categories a watch root
// can accept.
const (
	ContentTypeText = "text"
	ContentTypePDF  = "pdf"
)

const pdfMediaType = "application/pdf"

// TextFileExtensions lists extensions treated as text even when the platform
// mime database has no entry (or an ambiguous one) for them.
var TextFileExtensions = map[string]bool{
	// Programming languages
	".c": true, ".cpp": true, ".cs": true, ".csproj": true, ".go": true,
	".h": true, ".hpp": true, ".java": true, ".js": true, ".php": true,
	".py": true, ".rb": true, ".rs": true, ".sln": true, ".ts": true,

	// Scripts and configs
	".bat": true, ".cfg": true, ".ini": true, ".sh": true, ".toml": true,
	".yaml": true, ".yml": true,

	// Markup and web
	".txt": true, ".css": true, ".html": true, ".ipynb": true, ".json": true,
	".log": true, ".md": true, ".xml": true,
}

// MediaType resolves a path's media type from its extension. Returns
// "application/octet-stream" when the extension is unknown.
func MediaType(path string) string {
	mediaType := mime.TypeByExtension(strings.ToLower(filepath.Ext(path)))
	if mediaType == "" {
		return "application/octet-stream"
	}
	// Strip parameters like "; charset=utf-8"
	if parsed, _, err := mime.ParseMediaType(mediaType); err == nil {
		return parsed
	}
	return mediaType
}

// IsTextFile reports whether the path looks like a text file, by media type
// or by the extension allow-list.
func IsTextFile(path string) bool {
	if strings.HasPrefix(MediaType(path), "text/") {
		return true
	}
	return TextFileExtensions[strings.ToLower(filepath.Ext(path))]
}

// Eligible decides whether a path should be indexed given the accepted
// content categories. It is a pure function of the path string; the file is
// never opened.
func Eligible(path string, contentTypes []string) bool {
	for _, ct := range contentTypes {
		switch ct {
		case ContentTypeText:
			if IsTextFile(path) {
				return true
			}
		case ContentTypePDF:
			if MediaType(path) == pdfMediaType {
				return true
			}
		}
	}
	return false
}
