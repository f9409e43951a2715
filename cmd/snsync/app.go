package main

import (
	"bytes"
	"fmt"
	"io"
	"path/filepath"

	"github.com/spf13/afero"
	"github.com/spf13/viper"

	"github.com/jamesainslie/snsync/pkg/snsync/config"
	"github.com/jamesainslie/snsync/pkg/snsync/convert"
	"github.com/jamesainslie/snsync/pkg/snsync/device"
	"github.com/jamesainslie/snsync/pkg/snsync/engine"
	"github.com/jamesainslie/snsync/pkg/snsync/filter"
	"github.com/jamesainslie/snsync/pkg/snsync/journal"
	"github.com/jamesainslie/snsync/pkg/snsync/lock"
	"github.com/jamesainslie/snsync/pkg/snsync/logging"
	"github.com/jamesainslie/snsync/pkg/snsync/output"
	"github.com/jamesainslie/snsync/pkg/snsync/runner"
	"github.com/jamesainslie/snsync/pkg/snsync/types"
)

// app bundles the loaded configuration with the capabilities every command
// needs.
type app struct {
	cfg      *config.Config
	fs       afero.Fs
	runner   runner.Runner
	lockPath string
	log      *logging.Logger
}

func newApp(cfg *config.Config, fs afero.Fs, r runner.Runner) *app {
	return &app{
		cfg:      cfg,
		fs:       fs,
		runner:   r,
		lockPath: config.DefaultLockPath(),
		log:      logging.Get("cli"),
	}
}

// loadApp reads the configuration and environment, applies the global flags
// and starts logging.
func loadApp() (*app, error) {
	cfg, err := config.LoadFile(cfgFile)
	if err != nil {
		return nil, err
	}

	envFile := cfg.EnvFile
	if envFile == "" {
		envFile = config.DefaultEnvFile()
	}
	if err := config.LoadEnv(envFile); err != nil {
		return nil, err
	}

	if err := applyFlags(cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := initLogging(cfg); err != nil {
		return nil, err
	}

	printVerbose("Config file: %s", cfg.File)
	return newApp(cfg, afero.NewOsFs(), &runner.Exec{}), nil
}

// applyFlags lets global flags override configuration values.
func applyFlags(cfg *config.Config) error {
	if viper.GetBool("dry_run") {
		cfg.Sync.DryRun = true
	}
	if root := viper.GetString("device_root"); root != "" {
		expanded, err := config.ExpandPath(root)
		if err != nil {
			return err
		}
		cfg.Device.Root = expanded
	}
	return nil
}

func initLogging(cfg *config.Config) error {
	logPath := cfg.Logging.Path
	if logPath == "" {
		logPath = logging.DefaultLogPath()
	}

	level := cfg.Logging.Level
	console := "warn"
	switch {
	case getQuiet():
		console = ""
	case getVerbose():
		level = "debug"
		console = "debug"
	}

	return logging.Init(logging.Config{
		Level:        level,
		Path:         logPath,
		Rotation:     cfg.Logging.Rotation.Writer(),
		Components:   cfg.Logging.Components,
		ConsoleLevel: console,
	})
}

// deviceRoot returns the configured mount root, or discovers it from the
// environment.
func (a *app) deviceRoot() (string, error) {
	if root := a.cfg.Device.Root; root != "" {
		if err := device.Check(a.fs, root); err != nil {
			return "", err
		}
		return root, nil
	}
	return device.Discover(a.fs, a.cfg.DeviceOptions())
}

// exportTarget resolves a pair's destination. Relative destinations live
// under the device's documents directory.
func (a *app) exportTarget(deviceRoot string, p config.Pair) string {
	if filepath.IsAbs(p.Dest) {
		return p.Dest
	}
	return filepath.Join(device.DocumentsRoot(deviceRoot, a.cfg.Device.DocumentsDir), p.Dest)
}

// registry builds the enabled conversion rules.
func (a *app) registry() (*convert.Registry, error) {
	var rules []convert.Rule
	if a.cfg.Convert.Org.Enabled {
		rules = append(rules, convert.Rule{
			SourceSuffix: ".org",
			DestSuffix:   device.PDFSuffix,
			Converter:    convert.OrgToPDF(a.fs, a.runner, a.cfg.Convert.Org.Emacs),
		})
	}
	return convert.NewRegistry(rules...)
}

// exportFilter builds the export policy for one source tree, including the
// configured globs and ignore lines.
func (a *app) exportFilter(reg *convert.Registry, srcRoot string) (*filter.Set, error) {
	var extra []filter.Predicate

	if exclude := a.cfg.Export.Exclude; len(exclude) > 0 {
		p, err := filter.Globs(srcRoot, exclude...)
		if err != nil {
			return nil, fmt.Errorf("export.exclude: %w", err)
		}
		extra = append(extra, p)
	}

	switch {
	case a.cfg.Export.IgnoreFile:
		p, err := filter.LoadIgnoreFile(a.fs, srcRoot, a.cfg.Export.Ignore...)
		if err != nil {
			return nil, err
		}
		if p != nil {
			extra = append(extra, p)
		}
	case len(a.cfg.Export.Ignore) > 0:
		extra = append(extra, filter.IgnoreLines(srcRoot, a.cfg.Export.Ignore...))
	}

	return filter.ForExport(
		device.SupportedSuffixes(),
		filter.NewSuffixSet(reg.SourceSuffixes()...),
		device.NativeSuffixes(),
		a.cfg.Export.IgnoreMarkers,
		extra...,
	), nil
}

func (a *app) engine(reg *convert.Registry) *engine.Engine {
	return engine.New(a.fs,
		engine.WithRegistry(reg),
		engine.WithDryRun(a.cfg.Sync.DryRun),
		engine.WithCopyRetries(a.cfg.Sync.CopyRetries, a.cfg.Sync.RetryDelay),
		engine.WithObserver(func(res types.FileResult) {
			if res.State != types.StateSkipped {
				printVerbose("%-9s %s", res.State, res.Dest)
			}
		}),
	)
}

// lock takes the single-writer lock.
func (a *app) lock() (*lock.Lock, error) {
	l := lock.New(a.lockPath)
	if err := l.Acquire(); err != nil {
		return nil, err
	}
	return l, nil
}

// record writes reports to the journal. err belongs to the last report.
// Journal failures are logged, never returned.
func (a *app) record(runID string, reports []*types.Report, err error) {
	if !a.cfg.Journal.Enabled || len(reports) == 0 {
		return
	}

	j, jerr := journal.New(a.fs, a.cfg.JournalDir())
	if jerr != nil {
		a.log.Warn("journal unavailable", "error", jerr)
		return
	}
	for i, rep := range reports {
		var repErr error
		if i == len(reports)-1 {
			repErr = err
		}
		if _, jerr := j.Record(runID, rep, repErr); jerr != nil {
			a.log.Warn("failed to record run", "operation", rep.Operation, "error", jerr)
		}
	}
}

// render writes res in the format chosen with --output. Quiet mode prints
// nothing unless a file failed.
func render(w io.Writer, res *output.Result) error {
	if getQuiet() && res.Totals().Failed == 0 {
		return nil
	}

	name := viper.GetString("output")
	if name == "" {
		name = "pretty"
	}
	formatter, err := output.Get(name)
	if err != nil {
		return fmt.Errorf("unknown output format %q: available formats are %v", name, output.Available())
	}

	res.Verbose = res.Verbose || getVerbose()

	var buf bytes.Buffer
	if err := formatter.Format(&buf, res); err != nil {
		return err
	}
	_, err = w.Write(buf.Bytes())
	return err
}
