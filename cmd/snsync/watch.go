package main

import (
	"context"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/jamesainslie/snsync/pkg/snsync/config"
	"github.com/jamesainslie/snsync/pkg/snsync/device"
	"github.com/jamesainslie/snsync/pkg/snsync/filter"
	"github.com/jamesainslie/snsync/pkg/snsync/journal"
	"github.com/jamesainslie/snsync/pkg/snsync/output"
	"github.com/jamesainslie/snsync/pkg/snsync/watch"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Re-export pairs whenever their sources change",
	Long: `Export every pair once, then watch the sources and export a pair again
after its changes have settled for watch.debounce. Stop with Ctrl-C.`,
	Args: cobra.NoArgs,
	RunE: runWatch,
}

func init() {
	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, args []string) error {
	a, err := loadApp()
	if err != nil {
		return err
	}
	pairs := a.cfg.Export.Pairs
	if len(pairs) == 0 {
		return ErrNoPairs
	}

	l, err := a.lock()
	if err != nil {
		return err
	}
	defer func() {
		if err := l.Release(); err != nil {
			a.log.Warn("failed to release lock", "error", err)
		}
	}()

	s, err := a.newSession()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	exportPairs := func(ctx context.Context, pairs []config.Pair) error {
		if err := device.Check(a.fs, s.deviceRoot); err != nil {
			return err
		}
		reports, err := s.run(ctx, journal.NewRunID(), exportFlow(pairs))
		if rerr := render(cmd.OutOrStdout(), &output.Result{Reports: reports}); rerr != nil {
			a.log.Warn("failed to render report", "error", rerr)
		}
		return err
	}

	if err := exportPairs(ctx, pairs); err != nil {
		return err
	}

	ignore, err := s.watchIgnore(pairs)
	if err != nil {
		return err
	}
	w, err := watch.New(a.cfg.Watch.Debounce, watch.WithIgnore(ignore))
	if err != nil {
		return err
	}
	defer w.Close()

	for _, p := range pairs {
		if err := w.Watch(p.Source); err != nil {
			return err
		}
	}

	printInfo("Watching %d source(s); press Ctrl-C to stop", len(pairs))
	w.Run(ctx, func(ctx context.Context, roots []string) error {
		return exportPairs(ctx, pairsFor(pairs, roots))
	})
	return nil
}

// pairsFor returns the pairs whose source is one of roots.
func pairsFor(pairs []config.Pair, roots []string) []config.Pair {
	var out []config.Pair
	for _, p := range pairs {
		for _, root := range roots {
			if filepath.Clean(p.Source) == root {
				out = append(out, p)
				break
			}
		}
	}
	return out
}

// watchIgnore builds a path predicate from each pair's export filter so that
// changes export would skip do not trigger a sync.
func (s *session) watchIgnore(pairs []config.Pair) (func(string) bool, error) {
	filters := make(map[string]*filter.Set, len(pairs))
	for _, p := range pairs {
		f, err := s.app.exportFilter(s.registry, p.Source)
		if err != nil {
			return nil, err
		}
		filters[filepath.Clean(p.Source)] = f
	}

	return func(path string) bool {
		dir, name := filepath.Split(path)
		dir = filepath.Clean(dir)
		if info, err := os.Stat(path); err == nil && info.IsDir() {
			return strings.HasPrefix(name, ".")
		}
		for root, f := range filters {
			if path == root || strings.HasPrefix(path, root+string(filepath.Separator)) {
				return f.Excludes(dir, name)
			}
		}
		return false
	}, nil
}
