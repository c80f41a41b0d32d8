// Package fileutil holds small filesystem helpers shared by the config and
// daemon packages: atomic file replacement and advisory file locking.
package fileutil

import (
	"os"
	"path/filepath"
)

// EnsureParentDir creates the directory chain above path when missing.
func EnsureParentDir(path string) error {
	return os.MkdirAll(filepath.Dir(path), 0755)
}

// WriteFileAtomic writes data to path through a sibling temp file and a
// rename, so readers never observe a half-written file. Parent directories
// are created as needed.
func WriteFileAtomic(path string, data []byte, perm os.FileMode) error {
	if err := EnsureParentDir(path); err != nil {
		return err
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, perm); err != nil {
		return err
	}
	if err := replaceFile(tmp, path); err != nil {
		os.Remove(tmp)
		return err
	}
	return nil
}

// replaceFile renames tmp over target. Some filesystems refuse to rename
// over an existing file, so it retries after removing the target.
func replaceFile(tmp, target string) error {
	if err := os.Rename(tmp, target); err == nil {
		return nil
	}
	if err := os.Remove(target); err != nil && !os.IsNotExist(err) {
		return err
	}
	return os.Rename(tmp, target)
}
