// Package engine implements snsync's one-directional sync flows.
//
// For every file the walker yields, the engine maps the path onto the
// destination tree and either skips it (timestamps already equal), copies it
// verbatim, or converts it through a registered rule. Each completed transfer
// ends with timestamp equalization, which is what makes the next run skip it.
//
// Files are processed sequentially and the first failure aborts the call.
package engine

import (
	"errors"
	"fmt"
	"time"

	"github.com/jamesainslie/snsync/pkg/snsync/convert"
	"github.com/jamesainslie/snsync/pkg/snsync/logging"
	"github.com/jamesainslie/snsync/pkg/snsync/timestamp"
	"github.com/jamesainslie/snsync/pkg/snsync/types"
	"github.com/spf13/afero"
)

// Defaults for copy retries.
const (
	DefaultCopyRetries = 2
	DefaultRetryDelay  = 500 * time.Millisecond
)

// ErrSourceVanished is returned when a source file disappears before it could
// be copied. It is never retried.
var ErrSourceVanished = errors.New("source file vanished")

// CopyError reports a verbatim copy that failed after all retries.
type CopyError struct {
	Source string
	Dest   string
	Err    error
}

func (e *CopyError) Error() string {
	return fmt.Sprintf("copying %s to %s: %v", e.Source, e.Dest, e.Err)
}

func (e *CopyError) Unwrap() error {
	return e.Err
}

// Engine runs export, backup and import flows against a filesystem.
type Engine struct {
	fs       afero.Fs
	oracle   *timestamp.Oracle
	registry *convert.Registry
	dryRun   bool

	copyRetries int
	retryDelay  time.Duration

	observer func(types.FileResult)
	log      *logging.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithRegistry sets the conversion rules used by Export.
func WithRegistry(r *convert.Registry) Option {
	return func(e *Engine) {
		e.registry = r
	}
}

// WithDryRun makes the engine plan without writing anything.
func WithDryRun(dryRun bool) Option {
	return func(e *Engine) {
		e.dryRun = dryRun
	}
}

// WithCopyRetries sets how many times a failed copy is retried and the initial
// delay between attempts. Negative values are treated as zero.
func WithCopyRetries(n int, delay time.Duration) Option {
	return func(e *Engine) {
		e.copyRetries = max(n, 0)
		e.retryDelay = max(delay, 0)
	}
}

// WithLogger replaces the engine's logger.
func WithLogger(l *logging.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.log = l
		}
	}
}

// WithObserver registers fn to receive each file result as it is recorded.
func WithObserver(fn func(types.FileResult)) Option {
	return func(e *Engine) {
		e.observer = fn
	}
}

// New creates an Engine on fs.
func New(fs afero.Fs, opts ...Option) *Engine {
	e := &Engine{
		fs:          fs,
		oracle:      timestamp.New(fs),
		copyRetries: DefaultCopyRetries,
		retryDelay:  DefaultRetryDelay,
		log:         logging.Get("engine"),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// DryRun reports whether the engine only plans.
func (e *Engine) DryRun() bool {
	return e.dryRun
}

func (e *Engine) record(r *types.Report, res types.FileResult) {
	r.Add(res)
	if e.observer != nil {
		e.observer(r.Files[len(r.Files)-1])
	}
}
