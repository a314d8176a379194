package filex

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/mitchellh/go-homedir"
)

// EnsureDir expands a leading "~", creates dir and its parents if needed and
// returns the absolute path.
func EnsureDir(dir string) (string, error) {
	expanded, err := homedir.Expand(dir)
	if err != nil {
		return "", fmt.Errorf("expand %s: %w", dir, err)
	}

	abs, err := filepath.Abs(expanded)
	if err != nil {
		return "", fmt.Errorf("abs %s: %w", expanded, err)
	}

	if err := os.MkdirAll(abs, 0o770); err != nil {
		return "", fmt.Errorf("mkdir %s: %w", abs, err)
	}

	return abs, nil
}

// EnsureSubDir creates name under root and returns its absolute path.
func EnsureSubDir(root, name string) (string, error) {
	return EnsureDir(filepath.Join(root, name))
}
