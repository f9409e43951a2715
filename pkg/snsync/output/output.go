// Package output renders run reports and inventories in several formats
// (pretty, plain, json, yaml, paths).
//
// Formatters are looked up by name from a registry so the CLI can select
// one at runtime:
//
//	formatter, err := output.Get("pretty")
//	if err != nil {
//	    return err
//	}
//	var buf bytes.Buffer
//	if err := formatter.Format(&buf, result); err != nil {
//	    return err
//	}
//	fmt.Print(buf.String())
package output

import (
	"bytes"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/jamesainslie/snsync/pkg/snsync/inventory"
	"github.com/jamesainslie/snsync/pkg/snsync/types"
)

// Result is everything a formatter may render. Either Reports or Inventory
// is normally set.
type Result struct {
	// Reports holds one report per sync flow, in execution order.
	Reports []*types.Report

	// Inventory is set by the inventory command.
	Inventory *inventory.Result

	// Verbose includes skipped files in listings.
	Verbose bool

	// Warnings are non-fatal messages shown after the summary.
	Warnings []string

	// Interrupted is true if the run was cancelled.
	Interrupted bool
}

// Totals sums per-state counts across reports.
type Totals struct {
	Copied    int           `json:"copied" yaml:"copied"`
	Converted int           `json:"converted" yaml:"converted"`
	Imported  int           `json:"imported" yaml:"imported"`
	Skipped   int           `json:"skipped" yaml:"skipped"`
	Failed    int           `json:"failed" yaml:"failed"`
	Bytes     int64         `json:"bytes" yaml:"bytes"`
	Elapsed   time.Duration `json:"elapsed" yaml:"elapsed"`
}

// Changed returns the number of files written.
func (t Totals) Changed() int {
	return t.Copied + t.Converted + t.Imported
}

// Totals aggregates all reports.
func (r *Result) Totals() Totals {
	var t Totals
	for _, rep := range r.Reports {
		if rep == nil {
			continue
		}
		t.Copied += rep.Count(types.StateCopied)
		t.Converted += rep.Count(types.StateConverted)
		t.Imported += rep.Count(types.StateImported)
		t.Skipped += rep.Count(types.StateSkipped)
		t.Failed += rep.Count(types.StateFailed)
		t.Bytes += rep.Bytes()
		t.Elapsed += rep.Elapsed
	}
	return t
}

// DryRun reports whether any report was produced in dry-run mode.
func (r *Result) DryRun() bool {
	for _, rep := range r.Reports {
		if rep != nil && rep.DryRun {
			return true
		}
	}
	return false
}

// visible returns the files of rep a listing should show.
func (r *Result) visible(rep *types.Report) []types.FileResult {
	if r.Verbose {
		return rep.Files
	}
	files := make([]types.FileResult, 0, len(rep.Files))
	for _, f := range rep.Files {
		if f.State != types.StateSkipped {
			files = append(files, f)
		}
	}
	return files
}

// Formatter is the interface that all output formatters must implement.
type Formatter interface {
	// Format writes the formatted output to the buffer.
	Format(w *bytes.Buffer, r *Result) error
}

// FormatterFactory is a function that creates a new Formatter instance.
type FormatterFactory func() Formatter

// Registry manages formatter registration and lookup.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]FormatterFactory
}

// NewRegistry creates a new formatter registry.
func NewRegistry() *Registry {
	return &Registry{
		factories: make(map[string]FormatterFactory),
	}
}

// Register adds a formatter factory to the registry, replacing any existing
// formatter with the same name.
func (r *Registry) Register(name string, factory FormatterFactory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[name] = factory
}

// Get returns a new formatter instance by name.
func (r *Registry) Get(name string) (Formatter, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	factory, ok := r.factories[name]
	if !ok {
		return nil, fmt.Errorf("unknown formatter: %s", name)
	}
	return factory(), nil
}

// Available returns a sorted list of all registered formatter names.
func (r *Registry) Available() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// DefaultRegistry is the global formatter registry.
var DefaultRegistry = NewRegistry()

// Register adds a formatter factory to the default registry.
func Register(name string, factory FormatterFactory) {
	DefaultRegistry.Register(name, factory)
}

// Get returns a new formatter instance from the default registry.
func Get(name string) (Formatter, error) {
	return DefaultRegistry.Get(name)
}

// Available returns all formatter names from the default registry.
func Available() []string {
	return DefaultRegistry.Available()
}
