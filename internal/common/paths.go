// Package common holds small filesystem helpers shared by the report,
// config and logging code.
package common

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// CleanPath normalizes path to an absolute form and rejects any path that
// still climbs out through "..".
func CleanPath(path string) (string, error) {
	if path == "" {
		return "", fmt.Errorf("empty path")
	}

	cleaned := filepath.Clean(path)
	if strings.Contains(cleaned, "..") {
		return "", fmt.Errorf("invalid path %q: contains directory traversal", path)
	}

	if filepath.IsAbs(cleaned) {
		return cleaned, nil
	}
	abs, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("failed to resolve absolute path: %w", err)
	}
	return abs, nil
}

// EnsureParentDir creates the directory holding path
func EnsureParentDir(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, DirPermissionNormal); err != nil {
		return fmt.Errorf("failed to create %s: %w", dir, err)
	}
	return nil
}
