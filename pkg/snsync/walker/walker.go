// Package walker enumerates the files of a tree that survive a filter.
package walker

import (
	"fmt"
	"io/fs"
	"iter"
	"path/filepath"

	"github.com/jamesainslie/snsync/pkg/snsync/filter"
	"github.com/spf13/afero"
)

// Walk returns a lazy sequence of absolute file paths under root that are not
// excluded by f. Each directory is read once; its file names are passed to f,
// survivors are yielded, then every subdirectory is walked. Directories are
// never filtered. Symbolic links to regular files are yielded; links to
// directories are skipped, so the walk never leaves the tree.
//
// A read error is yielded once with the directory path and ends the walk.
// Breaking out of the range loop stops the walk. Ranging again walks the tree
// from scratch.
func Walk(fsys afero.Fs, root string, f filter.Filter) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		walkDir(fsys, filepath.Clean(root), f, yield)
	}
}

// walkDir returns false once the walk must stop.
func walkDir(fsys afero.Fs, dir string, f filter.Filter, yield func(string, error) bool) bool {
	entries, err := afero.ReadDir(fsys, dir)
	if err != nil {
		yield(dir, fmt.Errorf("reading directory %s: %w", dir, err))
		return false
	}

	var files, dirs []string
	for _, entry := range entries {
		switch {
		case entry.IsDir():
			dirs = append(dirs, entry.Name())
		case entry.Mode().IsRegular():
			files = append(files, entry.Name())
		case entry.Mode()&fs.ModeSymlink != 0:
			// Links to files are synced as the file they point at. Links to
			// directories and dangling links are neither yielded nor followed.
			target, err := fsys.Stat(filepath.Join(dir, entry.Name()))
			if err == nil && target.Mode().IsRegular() {
				files = append(files, entry.Name())
			}
		}
	}

	excluded := make(map[string]struct{})
	if f != nil && len(files) > 0 {
		for _, name := range f.Exclude(dir, files) {
			excluded[name] = struct{}{}
		}
	}

	for _, name := range files {
		if _, skip := excluded[name]; skip {
			continue
		}
		if !yield(filepath.Join(dir, name), nil) {
			return false
		}
	}

	for _, name := range dirs {
		if !walkDir(fsys, filepath.Join(dir, name), f, yield) {
			return false
		}
	}
	return true
}
