package inventory

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/charlievieth/fastwalk"
)

// Class is how an export would treat a file.
type Class string

// File classes.
const (
	ClassCopy    Class = "copy"
	ClassConvert Class = "convert"
	ClassNative  Class = "native"
	ClassIgnored Class = "ignored"
)

// Bucket aggregates files sharing a class and suffix.
type Bucket struct {
	Class  Class  `json:"class" yaml:"class"`
	Suffix string `json:"suffix" yaml:"suffix"`
	Files  int64  `json:"files" yaml:"files"`
	Bytes  int64  `json:"bytes" yaml:"bytes"`
}

// WalkError pairs a path with the error met while reading it.
type WalkError struct {
	Path  string `json:"path" yaml:"path"`
	Error string `json:"error" yaml:"error"`
}

// Result is the outcome of an inventory walk.
type Result struct {
	Root    string        `json:"root" yaml:"root"`
	Dirs    int64         `json:"dirs" yaml:"dirs"`
	Files   int64         `json:"files" yaml:"files"`
	Bytes   int64         `json:"bytes" yaml:"bytes"`
	Buckets []Bucket      `json:"buckets" yaml:"buckets"`
	Errors  []WalkError   `json:"errors,omitempty" yaml:"errors,omitempty"`
	Elapsed time.Duration `json:"elapsed" yaml:"elapsed"`
}

// Total returns the file count and bytes for class c.
func (r *Result) Total(c Class) (files, bytes int64) {
	for _, b := range r.Buckets {
		if b.Class == c {
			files += b.Files
			bytes += b.Bytes
		}
	}
	return files, bytes
}

type bucketKey struct {
	class  Class
	suffix string
}

// Take walks opts.Root and classifies every regular file.
func Take(ctx context.Context, opts Options) (*Result, error) {
	_ = opts.Validate()
	start := time.Now()

	root, err := filepath.Abs(opts.Root)
	if err != nil {
		return nil, err
	}
	info, err := os.Stat(root)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return nil, &fs.PathError{Op: "inventory", Path: root, Err: errors.New("not a directory")}
	}

	var (
		dirs, files, bytes atomic.Int64

		mu      sync.Mutex
		buckets = make(map[bucketKey]*Bucket)
		walkErr []WalkError
	)

	record := func(key bucketKey, size int64) {
		mu.Lock()
		defer mu.Unlock()
		b, ok := buckets[key]
		if !ok {
			b = &Bucket{Class: key.class, Suffix: key.suffix}
			buckets[key] = b
		}
		b.Files++
		b.Bytes += size
	}

	conf := fastwalk.Config{
		Follow:     false,
		NumWorkers: opts.Workers,
	}

	err = fastwalk.Walk(&conf, root, func(path string, d fs.DirEntry, err error) error {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if err != nil {
			mu.Lock()
			walkErr = append(walkErr, WalkError{Path: path, Error: err.Error()})
			mu.Unlock()
			return nil
		}
		if d.IsDir() {
			dirs.Add(1)
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}

		fi, err := d.Info()
		if err != nil {
			mu.Lock()
			walkErr = append(walkErr, WalkError{Path: path, Error: err.Error()})
			mu.Unlock()
			return nil
		}

		files.Add(1)
		bytes.Add(fi.Size())
		record(bucketKey{class: opts.classify(filepath.Dir(path), d.Name()), suffix: suffixOf(d.Name())}, fi.Size())
		return nil
	})
	if err != nil {
		return nil, err
	}

	result := &Result{
		Root:    root,
		Dirs:    dirs.Load(),
		Files:   files.Load(),
		Bytes:   bytes.Load(),
		Buckets: make([]Bucket, 0, len(buckets)),
		Errors:  walkErr,
		Elapsed: time.Since(start),
	}
	for _, b := range buckets {
		result.Buckets = append(result.Buckets, *b)
	}
	sort.Slice(result.Buckets, func(i, j int) bool {
		a, b := result.Buckets[i], result.Buckets[j]
		if a.Class != b.Class {
			return a.Class < b.Class
		}
		if a.Bytes != b.Bytes {
			return a.Bytes > b.Bytes
		}
		return a.Suffix < b.Suffix
	})
	return result, nil
}

// classify applies the filter to a single name. Filters only look at one
// name at a time, so this matches what a per-directory export walk decides.
func (o *Options) classify(dir, name string) Class {
	if o.Native.Len() > 0 && o.Native.Match(name) {
		return ClassNative
	}
	if o.Filter != nil && len(o.Filter.Exclude(dir, []string{name})) > 0 {
		return ClassIgnored
	}
	if o.Convertible.Len() > 0 && o.Convertible.Match(name) {
		return ClassConvert
	}
	return ClassCopy
}

// suffixOf returns the lower-cased extension, or "(none)".
func suffixOf(name string) string {
	ext := strings.ToLower(filepath.Ext(name))
	if ext == "" || ext == name {
		return "(none)"
	}
	return ext
}
