//go:build !windows
// +build !windows

package fileutil

import (
	"fmt"
	"os"
	"syscall"
)

// TryLockExclusive takes a non-blocking exclusive advisory lock on f. It
// fails immediately when another process holds the lock. The lock lasts
// until the file is closed or the process exits.
func TryLockExclusive(f *os.File) error {
	if err := syscall.Flock(int(f.Fd()), syscall.LOCK_EX|syscall.LOCK_NB); err != nil {
		return fmt.Errorf("lock held by another process: %w", err)
	}
	return nil
}
