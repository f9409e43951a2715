package filter

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	gitignore "github.com/sabhiram/go-gitignore"
	"github.com/spf13/afero"
)

// IgnoreFileName is the per-tree ignore file read from a source root.
const IgnoreFileName = ".snsyncignore"

// ErrInvalidPattern indicates a malformed glob pattern.
var ErrInvalidPattern = errors.New("invalid glob pattern")

// Globs excludes files whose path relative to root matches any doublestar
// pattern, e.g. "drafts/**" or "**/*-old.pdf".
func Globs(root string, patterns ...string) (Predicate, error) {
	for _, p := range patterns {
		if !doublestar.ValidatePattern(p) {
			return nil, fmt.Errorf("%w: %q", ErrInvalidPattern, p)
		}
	}

	return func(dir, name string) bool {
		rel, ok := relativeTo(root, dir, name)
		if !ok {
			return false
		}
		for _, p := range patterns {
			if matched, _ := doublestar.Match(p, rel); matched {
				return true
			}
		}
		return false
	}, nil
}

// IgnoreLines excludes files matched by gitignore-style lines, evaluated
// against the path relative to root.
func IgnoreLines(root string, lines ...string) Predicate {
	ignore := gitignore.CompileIgnoreLines(lines...)
	return func(dir, name string) bool {
		rel, ok := relativeTo(root, dir, name)
		if !ok {
			return false
		}
		return ignore.MatchesPath(rel)
	}
}

// LoadIgnoreFile reads the ignore file in root, if any, and returns a predicate
// for its lines combined with extra. It returns nil when there is nothing to
// ignore.
func LoadIgnoreFile(fs afero.Fs, root string, extra ...string) (Predicate, error) {
	lines := append([]string(nil), extra...)

	f, err := fs.Open(filepath.Join(root, IgnoreFileName))
	switch {
	case errors.Is(err, os.ErrNotExist):
		// no ignore file
	case err != nil:
		return nil, fmt.Errorf("opening ignore file: %w", err)
	default:
		defer f.Close()
		scanner := bufio.NewScanner(f)
		for scanner.Scan() {
			line := strings.TrimSpace(scanner.Text())
			if line != "" && !strings.HasPrefix(line, "#") {
				lines = append(lines, line)
			}
		}
		if err := scanner.Err(); err != nil {
			return nil, fmt.Errorf("reading ignore file: %w", err)
		}
	}

	if len(lines) == 0 {
		return nil, nil
	}
	return IgnoreLines(root, lines...), nil
}

func relativeTo(root, dir, name string) (string, bool) {
	rel, err := filepath.Rel(root, filepath.Join(dir, name))
	if err != nil || strings.HasPrefix(rel, "..") {
		return "", false
	}
	return filepath.ToSlash(rel), true
}
