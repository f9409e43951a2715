// Package inventory tallies a local tree the way an export would see it:
// which files would be copied, converted, or left behind, grouped by suffix.
// It walks in parallel and never modifies anything.
package inventory

import (
	"runtime"

	"github.com/jamesainslie/snsync/pkg/snsync/filter"
)

// Options configures an inventory walk.
type Options struct {
	// Root is the directory to tally.
	Root string

	// Filter decides which files an export would skip. Nil keeps everything.
	Filter filter.Filter

	// Convertible are the suffixes a conversion rule would handle.
	Convertible filter.SuffixSet

	// Native are the device's own suffixes, reported separately from other
	// ignored files.
	Native filter.SuffixSet

	// Workers is the number of concurrent directory readers.
	Workers int
}

// Validate applies defaults for unset values.
func (o *Options) Validate() error {
	if o.Root == "" {
		o.Root = "."
	}
	if o.Workers < 1 {
		o.Workers = max(runtime.NumCPU(), 4)
	}
	return nil
}
