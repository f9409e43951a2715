// Package pathmap maps paths in a source tree onto the mirrored location in a
// destination tree.
package pathmap

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
)

var (
	// ErrNotDescendant is returned when a path does not live under the given root.
	ErrNotDescendant = errors.New("path is not under root")

	// ErrSuffixMismatch is returned when a path does not end in the expected suffix.
	ErrSuffixMismatch = errors.New("path does not end in suffix")
)

// Map returns the path of srcPath relative to srcRoot, joined onto dstRoot.
//
//	Map("/a/b", "/a/b/c/d.txt", "/x/y") == "/x/y/c/d.txt"
func Map(srcRoot, srcPath, dstRoot string) (string, error) {
	rel, err := Rel(srcRoot, srcPath)
	if err != nil {
		return "", err
	}
	return filepath.Join(dstRoot, rel), nil
}

// Rel returns srcPath relative to srcRoot. The root itself maps to ".".
func Rel(srcRoot, srcPath string) (string, error) {
	root := filepath.Clean(srcRoot)
	path := filepath.Clean(srcPath)

	rel, err := filepath.Rel(root, path)
	if err != nil {
		return "", fmt.Errorf("%w: %s not under %s: %w", ErrNotDescendant, srcPath, srcRoot, err)
	}
	if rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %s not under %s", ErrNotDescendant, srcPath, srcRoot)
	}
	return rel, nil
}

// ReplaceSuffix swaps the trailing suffix old of path for replacement.
func ReplaceSuffix(path, old, replacement string) (string, error) {
	trimmed, ok := strings.CutSuffix(path, old)
	if !ok {
		return "", fmt.Errorf("%w: %s does not end in %s", ErrSuffixMismatch, path, old)
	}
	return trimmed + replacement, nil
}
