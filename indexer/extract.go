package indexer

import (
	"bytes"
	"fmt"
	"log"
	"os"
	"regexp"
	"strings"

	"github.com/ledongthuc/pdf"
)

// Extractor converts a file into plain text. Implementations may try several
// strategies per format; an empty string with a nil error means the file has
// no extractable content.
type Extractor interface {
	Extract(path string, contentTypes []string) (string, error)
}

// FileExtractor is the default Extractor: UTF-8 text files are read directly,
// PDFs go through the pdf reader. Unsupported media types yield no content.
type FileExtractor struct{}

func NewFileExtractor() *FileExtractor {
	return &FileExtractor{}
}

var whitespaceRe = regexp.MustCompile(`\s+`)

// normalizeText collapses runs of whitespace into single spaces.
func normalizeText(text string) string {
	return strings.TrimSpace(whitespaceRe.ReplaceAllString(text, " "))
}

func (e *FileExtractor) Extract(path string, contentTypes []string) (string, error) {
	for _, ct := range contentTypes {
		switch ct {
		case ContentTypeText:
			if !IsTextFile(path) {
				continue
			}
			data, err := os.ReadFile(path)
			if err != nil {
				return "", fmt.Errorf("failed to read %s: %w", path, err)
			}
			return normalizeText(string(data)), nil

		case ContentTypePDF:
			if MediaType(path) != pdfMediaType {
				continue
			}
			text, err := extractPDFText(path)
			if err != nil {
				log.Printf("PDF extraction failed for %s: %v", path, err)
				return "", nil
			}
			return normalizeText(text), nil
		}
	}
	return "", nil
}

func extractPDFText(path string) (string, error) {
	f, reader, err := pdf.Open(path)
	if err != nil {
		return "", fmt.Errorf("failed to open pdf: %w", err)
	}
	defer f.Close()

	var buf bytes.Buffer
	plain, err := reader.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("failed to extract pdf text: %w", err)
	}
	if _, err := buf.ReadFrom(plain); err != nil {
		return "", fmt.Errorf("failed to read pdf text: %w", err)
	}

	return buf.String(), nil
}

// NonWhitespaceLen counts the non-whitespace characters in s. Content below a
// small threshold is treated as unindexable.
func NonWhitespaceLen(s string) int {
	n := 0
	for _, r := range s {
		switch r {
		case ' ', '\t', '\n', '\r', '\v', '\f':
		default:
			n++
		}
	}
	return n
}
