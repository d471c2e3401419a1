package utils

import (
	"fmt"
	"os"
	"path/filepath"
)

// WriteFileWithOwnership writes a file and fixes ownership when running with sudo.
// This ensures files created by root (when running with sudo) are owned by the actual user.
// On Windows, this is a no-op for ownership (os.Chown does nothing).
func WriteFileWithOwnership(path string, data []byte, perm os.FileMode) error {
	if err := os.WriteFile(path, data, perm); err != nil {
		return err
	}
	return FixFileOwnership(path)
}

// MkdirAllWithOwnership creates a directory (and parents) and fixes ownership when running with sudo.
func MkdirAllWithOwnership(path string, perm os.FileMode) error {
	if err := os.MkdirAll(path, perm); err != nil {
		return err
	}
	return FixFileOwnership(path)
}

// WriteFileAtomic replaces path with data by writing a sibling temp file,
// syncing it and renaming it over the target. Readers see either the old
// or the new content, never a torn write.
func WriteFileAtomic(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()
	cleanup := func() {
		tmp.Close()
		os.Remove(tmpName)
	}

	if _, err := tmp.Write(data); err != nil {
		cleanup()
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		cleanup()
		return fmt.Errorf("failed to sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Chmod(tmpName, perm); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to chmod temp file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to rename temp file: %w", err)
	}

	// Fix ownership if running under sudo (non-critical)
	_ = FixFileOwnership(path)
	return nil
}
