// Package types provides the data types shared by the sync engine, run
// journal and output formatters: per-file outcomes and run reports.
package types

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
)

// State is the outcome of processing one file.
type State int

// File states. A planned (dry-run) result carries the state a live run would
// have reached.
const (
	StateSkipped State = iota
	StateCopied
	StateConverted
	StateImported
	StateFailed
)

var stateNames = [...]string{
	StateSkipped:   "skipped",
	StateCopied:    "copied",
	StateConverted: "converted",
	StateImported:  "imported",
	StateFailed:    "failed",
}

// ErrInvalidState indicates that a state string could not be parsed.
var ErrInvalidState = errors.New("invalid file state")

// String returns the string representation of the state.
func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return "unknown"
	}
	return stateNames[s]
}

// ParseState parses a state name (case-insensitive).
func ParseState(s string) (State, error) {
	for i, name := range stateNames {
		if strings.EqualFold(s, name) {
			return State(i), nil
		}
	}
	return StateSkipped, fmt.Errorf("%w: %q", ErrInvalidState, s)
}

// MarshalText implements encoding.TextMarshaler.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *State) UnmarshalText(text []byte) error {
	parsed, err := ParseState(string(text))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// Operation names a sync flow.
type Operation string

// Sync flows.
const (
	OpExport Operation = "export"
	OpBackup Operation = "backup"
	OpImport Operation = "import"
)

// FileResult records what happened to one source file.
type FileResult struct {
	// Source is the absolute path of the source file.
	Source string `json:"source" yaml:"source"`

	// Dest is the destination path, after any suffix substitution.
	Dest string `json:"dest" yaml:"dest"`

	// State is the outcome.
	State State `json:"state" yaml:"state"`

	// Rule describes the conversion rule applied, if any.
	Rule string `json:"rule,omitempty" yaml:"rule,omitempty"`

	// Bytes is the size written (or that would be written in a dry run).
	Bytes int64 `json:"bytes" yaml:"bytes"`

	// ShadowedBy names the source that owns Dest when this file was skipped
	// to avoid writing the same destination twice.
	ShadowedBy string `json:"shadowed_by,omitempty" yaml:"shadowed_by,omitempty"`

	// Planned is true for dry-run results: nothing was written.
	Planned bool `json:"planned,omitempty" yaml:"planned,omitempty"`

	// Err is the failure for StateFailed results.
	Err error `json:"-" yaml:"-"`

	// Error is Err's message, kept for serialized reports.
	Error string `json:"error,omitempty" yaml:"error,omitempty"`
}

// Report aggregates the results of one Export, Backup or Import call.
type Report struct {
	Operation Operation     `json:"operation" yaml:"operation"`
	Source    string        `json:"source" yaml:"source"`
	Dest      string        `json:"dest" yaml:"dest"`
	DryRun    bool          `json:"dry_run" yaml:"dry_run"`
	Policy    string        `json:"policy,omitempty" yaml:"policy,omitempty"`
	Files     []FileResult  `json:"files" yaml:"files"`
	Started   time.Time     `json:"started" yaml:"started"`
	Elapsed   time.Duration `json:"elapsed" yaml:"elapsed"`
}

// NewReport starts a report for op from source to dest.
func NewReport(op Operation, source, dest string, dryRun bool) *Report {
	return &Report{
		Operation: op,
		Source:    source,
		Dest:      dest,
		DryRun:    dryRun,
		Files:     make([]FileResult, 0),
		Started:   time.Now(),
	}
}

// Add appends a file result. The Error field is filled from Err.
func (r *Report) Add(res FileResult) {
	if res.Err != nil && res.Error == "" {
		res.Error = res.Err.Error()
	}
	r.Files = append(r.Files, res)
}

// Finish records the elapsed time since Started.
func (r *Report) Finish() {
	r.Elapsed = time.Since(r.Started)
}

// Count returns the number of results in state s.
func (r *Report) Count(s State) int {
	n := 0
	for _, f := range r.Files {
		if f.State == s {
			n++
		}
	}
	return n
}

// Changed returns the number of files copied, converted or imported.
func (r *Report) Changed() int {
	return r.Count(StateCopied) + r.Count(StateConverted) + r.Count(StateImported)
}

// Bytes returns the total bytes written (or planned).
func (r *Report) Bytes() int64 {
	var total int64
	for _, f := range r.Files {
		if f.State != StateSkipped && f.State != StateFailed {
			total += f.Bytes
		}
	}
	return total
}

// Failed reports whether any file failed.
func (r *Report) Failed() bool {
	return r.Count(StateFailed) > 0
}

// FormatSize converts a size in bytes to a human-readable string.
// It uses binary (IEC) units (KiB, MiB, GiB, TiB).
//
// Examples:
//   - FormatSize(0) returns "0 B"
//   - FormatSize(1024) returns "1.0 KiB"
//   - FormatSize(1536*1024) returns "1.5 MiB"
func FormatSize(bytes int64) string {
	if bytes < 0 {
		bytes = 0
	}
	return humanize.IBytes(uint64(bytes))
}
