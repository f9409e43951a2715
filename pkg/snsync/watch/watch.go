// Package watch triggers re-exports when files under the export sources
// change. Events are coalesced until the tree has been quiet for a debounce
// interval, so saving a file once starts one sync rather than several.
package watch

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/jamesainslie/snsync/pkg/snsync/logging"
)

// Trigger is called with the roots that saw changes since the last call.
type Trigger func(ctx context.Context, roots []string) error

// Watcher watches source trees recursively.
type Watcher struct {
	fsw      *fsnotify.Watcher
	debounce time.Duration
	ignore   func(path string) bool

	mu     sync.Mutex
	roots  []string
	paths  map[string]bool
	closed bool

	log *logging.Logger
}

// Option configures a Watcher.
type Option func(*Watcher)

// WithIgnore drops events for paths where fn returns true. Directory
// creation is still followed so new subtrees are watched.
func WithIgnore(fn func(path string) bool) Option {
	return func(w *Watcher) {
		w.ignore = fn
	}
}

// New creates a Watcher that waits for debounce of quiet before triggering.
func New(debounce time.Duration, opts ...Option) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	w := &Watcher{
		fsw:      fsw,
		debounce: debounce,
		paths:    make(map[string]bool),
		log:      logging.Get("watch"),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w, nil
}

// Watch adds root and all of its subdirectories. Symlinks are not followed.
func (w *Watcher) Watch(root string) error {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return err
	}
	info, err := os.Stat(absRoot)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return &fs.PathError{Op: "watch", Path: absRoot, Err: fs.ErrInvalid}
	}

	w.mu.Lock()
	w.roots = append(w.roots, absRoot)
	w.mu.Unlock()

	return w.addTree(absRoot)
}

func (w *Watcher) addTree(root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return nil //nolint:nilerr // unreadable subtrees are skipped
		}
		if d.Type()&fs.ModeSymlink != 0 {
			return nil
		}
		if d.IsDir() {
			return w.addWatch(path)
		}
		return nil
	})
}

func (w *Watcher) addWatch(path string) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed || w.paths[path] {
		return nil
	}
	if err := w.fsw.Add(path); err != nil {
		w.log.Warn("failed to add watch", "path", path, "error", err)
		return err
	}
	w.paths[path] = true
	return nil
}

// rootOf returns the watched root containing path.
func (w *Watcher) rootOf(path string) (string, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()

	best := ""
	for _, root := range w.roots {
		if path == root || strings.HasPrefix(path, root+string(filepath.Separator)) {
			if len(root) > len(best) {
				best = root
			}
		}
	}
	return best, best != ""
}

// Run processes events until ctx is cancelled, calling trigger once changes
// have settled. Trigger errors are logged and watching continues.
func (w *Watcher) Run(ctx context.Context, trigger Trigger) {
	var (
		timer *time.Timer
		fire  <-chan time.Time
		dirty = make(map[string]bool)
	)
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			root, relevant := w.handleEvent(event)
			if !relevant {
				continue
			}
			dirty[root] = true
			if timer == nil {
				timer = time.NewTimer(w.debounce)
			} else {
				timer.Reset(w.debounce)
			}
			fire = timer.C

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.log.Error("watcher error", "error", err)

		case <-fire:
			fire = nil
			roots := make([]string, 0, len(dirty))
			for root := range dirty {
				roots = append(roots, root)
			}
			sort.Strings(roots)
			clear(dirty)

			w.log.Info("changes settled", "roots", roots)
			if err := trigger(ctx, roots); err != nil {
				w.log.Error("triggered sync failed", "roots", roots, "error", err)
			}
		}
	}
}

// handleEvent follows new directories and reports the root an event belongs
// to, or false when the event should not trigger a sync.
func (w *Watcher) handleEvent(event fsnotify.Event) (string, bool) {
	if event.Op == fsnotify.Chmod {
		return "", false
	}

	if event.Op&fsnotify.Create != 0 {
		if info, err := os.Lstat(event.Name); err == nil && info.IsDir() {
			_ = w.addTree(event.Name)
		}
	}

	if w.ignore != nil && w.ignore(event.Name) {
		w.log.Debug("ignoring event", "path", event.Name, "op", event.Op)
		return "", false
	}

	w.log.Debug("change", "path", event.Name, "op", event.Op)
	return w.rootOf(event.Name)
}

// Close stops watching.
func (w *Watcher) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return nil
	}
	w.closed = true
	return w.fsw.Close()
}
