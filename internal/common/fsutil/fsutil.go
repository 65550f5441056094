package fsutil

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ExpandHome expands a leading '~' to the user's home directory.
func ExpandHome(path string) (string, error) {
	if path == "" {
		return path, nil
	}
	if path[0] != '~' {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("home dir: %w", err)
	}
	if path == "~" {
		return home, nil
	}
	// handle cases like ~/models/xgboost
	return filepath.Join(home, strings.TrimPrefix(path, "~/")), nil
}

// PathExists checks if the given path exists.
func PathExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil || !errors.Is(err, os.ErrNotExist)
}

// ListDirs lists the regular files of one or more peer directories,
// non-recursively, returning absolute paths. Subdirectories are skipped.
func ListDirs(dirs []string) ([]string, error) {
	var files []string
	for _, dir := range dirs {
		base, err := ExpandHome(dir)
		if err != nil {
			return nil, err
		}
		abs, err := filepath.Abs(base)
		if err != nil {
			return nil, fmt.Errorf("abs path: %w", err)
		}
		entries, err := os.ReadDir(abs)
		if err != nil {
			return nil, fmt.Errorf("read dir: %w", err)
		}
		for _, e := range entries {
			if e.IsDir() {
				continue
			}
			files = append(files, filepath.Join(abs, e.Name()))
		}
	}
	return files, nil
}
