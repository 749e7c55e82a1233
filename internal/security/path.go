package security

import (
	"fmt"
	"path/filepath"
	"strings"
)

// ValidateFilePath validates that a file path is safe to open: non-empty, no
// NUL bytes, and no directory traversal components. Absolute paths are
// allowed since the database and config files are commonly configured with
// them.
func ValidateFilePath(path string) error {
	if path == "" {
		return fmt.Errorf("file path cannot be empty")
	}

	if strings.ContainsRune(path, '\x00') {
		return fmt.Errorf("file path contains NUL byte")
	}

	cleanPath := filepath.Clean(path)
	for _, part := range strings.Split(cleanPath, string(filepath.Separator)) {
		if part == ".." {
			return fmt.Errorf("path contains directory traversal: %s", path)
		}
	}

	return nil
}

// ValidateFilePathWithBase validates a relative file path against a base
// directory, rejecting paths that escape it.
func ValidateFilePathWithBase(path, baseDir string) error {
	if err := ValidateFilePath(path); err != nil {
		return err
	}
	if filepath.IsAbs(path) {
		return fmt.Errorf("absolute paths not allowed under base directory: %s", path)
	}

	fullPath := filepath.Clean(filepath.Join(baseDir, path))
	cleanBase := filepath.Clean(baseDir)

	if fullPath != cleanBase && !strings.HasPrefix(fullPath, cleanBase+string(filepath.Separator)) {
		return fmt.Errorf("path escapes base directory: %s", path)
	}

	return nil
}
