package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/jamesainslie/snsync/pkg/snsync/config"
	"github.com/jamesainslie/snsync/pkg/snsync/convert"
	"github.com/jamesainslie/snsync/pkg/snsync/engine"
	"github.com/jamesainslie/snsync/pkg/snsync/journal"
	"github.com/jamesainslie/snsync/pkg/snsync/output"
	"github.com/jamesainslie/snsync/pkg/snsync/types"
)

// ErrNoPairs is returned when an export has nothing to export.
var ErrNoPairs = errors.New("no export pairs configured (see export.pairs in the config file)")

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Back up, import and export in one pass",
	Long: `Run every enabled flow in order:

  1. backup  copy .note and .mark files from the device to backup.dest
  2. import  render device notebooks as PDF into import.dest
  3. export  push each configured pair to the device, converting as needed

The first failure stops the run.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := loadApp()
		if err != nil {
			return err
		}

		var flows []flow
		if a.cfg.Backup.Enabled {
			flows = append(flows, backupFlow)
		}
		if a.cfg.Import.Enabled {
			flows = append(flows, importFlow)
		}
		if a.cfg.Export.Enabled {
			flows = append(flows, exportFlow(a.cfg.Export.Pairs))
		}
		return a.runFlows(cmd, flows...)
	},
}

var exportCmd = &cobra.Command{
	Use:   "export [SRC DST]",
	Short: "Push local documents to the device",
	Long: `Export local trees to the device. Files the device displays natively are
copied, Org files are converted to PDF, everything else is skipped.

Without arguments every pair in export.pairs is exported. With SRC and DST a
single tree is exported; a relative DST is placed under the device's
documents directory.`,
	Args: func(cmd *cobra.Command, args []string) error {
		if len(args) != 0 && len(args) != 2 {
			return fmt.Errorf("accepts 0 or 2 args, received %d", len(args))
		}
		return nil
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := loadApp()
		if err != nil {
			return err
		}

		pairs := a.cfg.Export.Pairs
		if len(args) == 2 {
			p, err := pairFromArgs(args[0], args[1])
			if err != nil {
				return err
			}
			pairs = []config.Pair{p}
		}
		return a.runFlows(cmd, exportFlow(pairs))
	},
}

var backupCmd = &cobra.Command{
	Use:   "backup",
	Short: "Copy native notebooks from the device",
	Long:  `Copy every .note and .mark file from the device to backup.dest.`,
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := loadApp()
		if err != nil {
			return err
		}
		return a.runFlows(cmd, backupFlow)
	},
}

var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Render device notebooks as PDF",
	Long: `Convert every .note file on the device to PDF (with annotations) under
import.dest, using supernote-tool.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := loadApp()
		if err != nil {
			return err
		}
		return a.runFlows(cmd, importFlow)
	},
}

func init() {
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(backupCmd)
	rootCmd.AddCommand(importCmd)
}

// session holds what a flow needs for one run.
type session struct {
	app        *app
	engine     *engine.Engine
	registry   *convert.Registry
	deviceRoot string
}

// flow is one sync step. It returns its reports even on error.
type flow func(ctx context.Context, s *session) ([]*types.Report, error)

func backupFlow(ctx context.Context, s *session) ([]*types.Report, error) {
	rep, err := s.engine.Backup(ctx, s.deviceRoot, s.app.cfg.Backup.Dest)
	return compact(rep), err
}

func importFlow(ctx context.Context, s *session) ([]*types.Report, error) {
	conv := convert.NoteToPDF(s.app.fs, s.app.runner, s.app.cfg.Import.Tool)
	rep, err := s.engine.Import(ctx, s.deviceRoot, s.app.cfg.Import.Dest, conv)
	return compact(rep), err
}

func exportFlow(pairs []config.Pair) flow {
	return func(ctx context.Context, s *session) ([]*types.Report, error) {
		if len(pairs) == 0 {
			return nil, ErrNoPairs
		}

		var reports []*types.Report
		for _, p := range pairs {
			f, err := s.app.exportFilter(s.registry, p.Source)
			if err != nil {
				return reports, err
			}
			rep, err := s.engine.Export(ctx, p.Source, s.app.exportTarget(s.deviceRoot, p), f)
			reports = append(reports, compact(rep)...)
			if err != nil {
				return reports, err
			}
		}
		return reports, nil
	}
}

func compact(rep *types.Report) []*types.Report {
	if rep == nil {
		return nil
	}
	return []*types.Report{rep}
}

// newSession resolves the device and builds the engine.
func (a *app) newSession() (*session, error) {
	deviceRoot, err := a.deviceRoot()
	if err != nil {
		return nil, err
	}
	reg, err := a.registry()
	if err != nil {
		return nil, err
	}
	return &session{
		app:        a,
		engine:     a.engine(reg),
		registry:   reg,
		deviceRoot: deviceRoot,
	}, nil
}

// runFlows runs flows in order under the run lock, stopping at the first
// error, then journals and renders everything that ran.
func (a *app) runFlows(cmd *cobra.Command, flows ...flow) error {
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

	reports, runErr := s.run(ctx, journal.NewRunID(), flows...)

	res := &output.Result{
		Reports:     reports,
		Warnings:    shadowWarnings(reports),
		Interrupted: ctx.Err() != nil,
	}
	if err := render(cmd.OutOrStdout(), res); err != nil {
		return err
	}
	return runErr
}

// shadowWarnings lists the files skipped because another source owns their
// destination.
func shadowWarnings(reports []*types.Report) []string {
	var warnings []string
	for _, rep := range reports {
		if rep == nil {
			continue
		}
		for _, f := range rep.Files {
			if f.ShadowedBy != "" {
				warnings = append(warnings, fmt.Sprintf("%s not exported: %s is written from %s", f.Source, f.Dest, f.ShadowedBy))
			}
		}
	}
	return warnings
}

func (s *session) run(ctx context.Context, runID string, flows ...flow) ([]*types.Report, error) {
	var all []*types.Report
	for _, f := range flows {
		reports, err := f(ctx, s)
		s.app.record(runID, reports, err)
		all = append(all, reports...)
		if err != nil {
			return all, err
		}
	}
	return all, nil
}

// pairFromArgs builds an export pair from command-line arguments.
func pairFromArgs(src, dst string) (config.Pair, error) {
	expanded, err := config.ExpandPath(src)
	if err != nil {
		return config.Pair{}, err
	}
	abs, err := filepath.Abs(expanded)
	if err != nil {
		return config.Pair{}, err
	}
	info, err := os.Stat(abs)
	if err != nil {
		return config.Pair{}, err
	}
	if !info.IsDir() {
		return config.Pair{}, fmt.Errorf("%s is not a directory", abs)
	}
	return config.Pair{Source: abs, Dest: dst}, nil
}
