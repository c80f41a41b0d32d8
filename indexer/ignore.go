package indexer

import (
	"log"
	"os"
	"path/filepath"
	"strings"

	ignore "github.com/sabhiram/go-gitignore"
)

// IgnoreMatcher filters paths out of scanning and event handling. It combines
// a fixed list of directory names from config with the watch root's
// .gitignore, when one exists.
type IgnoreMatcher struct {
	root       string
	ignoreDirs []string
	gitignore  *ignore.GitIgnore
}

func NewIgnoreMatcher(root string, ignoreDirs []string) *IgnoreMatcher {
	m := &IgnoreMatcher{
		root:       root,
		ignoreDirs: ignoreDirs,
	}

	gitignorePath := filepath.Join(root, ".gitignore")
	if _, err := os.Stat(gitignorePath); err == nil {
		gi, err := ignore.CompileIgnoreFile(gitignorePath)
		if err != nil {
			log.Printf("Warning: failed to load %s: %v", gitignorePath, err)
		} else {
			m.gitignore = gi
		}
	}

	return m
}

// ShouldIgnore reports whether the path (relative to the watch root) is
// excluded from indexing.
func (m *IgnoreMatcher) ShouldIgnore(relPath string) bool {
	if relPath == "." || relPath == "" {
		return false
	}

	for _, part := range strings.Split(filepath.ToSlash(relPath), "/") {
		for _, dir := range m.ignoreDirs {
			if part == dir {
				return true
			}
		}
		// Hidden files and directories
		if strings.HasPrefix(part, ".") && part != "." {
			return true
		}
	}

	if m.gitignore != nil && m.gitignore.MatchesPath(relPath) {
		return true
	}

	return false
}

// ShouldSkipDir reports whether a directory subtree can be skipped entirely
// during a walk.
func (m *IgnoreMatcher) ShouldSkipDir(relPath string) bool {
	return m.ShouldIgnore(relPath)
}
