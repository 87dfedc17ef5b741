// Package xos provides the file operations the pipeline relies on to never
// leave a half-written file or directory at a final path.
package xos

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"syscall"
)

// MoveFile moves src to dst, replacing dst. When a plain rename is not
// possible (different filesystems) the content is copied atomically and src
// is removed.
func MoveFile(src, dst string) error {
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}
	err := os.Rename(src, dst)
	if err == nil {
		return nil
	}
	if !errors.Is(err, syscall.EXDEV) {
		return err
	}

	info, err := os.Stat(src)
	if err != nil {
		return err
	}
	if err := CopyFile(src, dst, info.Mode().Perm()); err != nil {
		return err
	}
	return os.Remove(src)
}

// CopyFile copies src to dst atomically.
func CopyFile(src, dst string, perm os.FileMode) error {
	f, err := os.Open(src)
	if err != nil {
		return err
	}
	defer f.Close()
	return WriteReader(dst, f, perm)
}

// ReplaceDir swaps the fully written directory staged into place at dst.
// Any previous dst is removed first; staged and dst must be on the same
// filesystem.
func ReplaceDir(staged, dst string) error {
	info, err := os.Stat(staged)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return fmt.Errorf("%s is not a directory", staged)
	}
	if err := os.RemoveAll(dst); err != nil {
		return fmt.Errorf("remove previous %s: %w", dst, err)
	}
	return os.Rename(staged, dst)
}
