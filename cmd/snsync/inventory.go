package main

import (
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/jamesainslie/snsync/pkg/snsync/device"
	"github.com/jamesainslie/snsync/pkg/snsync/filter"
	"github.com/jamesainslie/snsync/pkg/snsync/inventory"
	"github.com/jamesainslie/snsync/pkg/snsync/output"
)

var inventoryWorkers int

var inventoryCmd = &cobra.Command{
	Use:   "inventory [DIR]",
	Short: "Classify a local tree the way export would",
	Long: `Walk a local tree and tally its files by what an export would do with them:
copy, convert, or ignore (device-native files are counted separately).
Nothing is written and the device need not be connected.

Without DIR every export pair's source is inventoried.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runInventory,
}

func init() {
	inventoryCmd.Flags().IntVarP(&inventoryWorkers, "workers", "w", 0, "concurrent directory readers (0=auto)")
	rootCmd.AddCommand(inventoryCmd)
}

func runInventory(cmd *cobra.Command, args []string) error {
	a, err := loadApp()
	if err != nil {
		return err
	}

	roots := make([]string, 0, len(a.cfg.Export.Pairs))
	if len(args) == 1 {
		p, err := pairFromArgs(args[0], "")
		if err != nil {
			return err
		}
		roots = append(roots, p.Source)
	} else {
		for _, p := range a.cfg.Export.Pairs {
			roots = append(roots, p.Source)
		}
	}
	if len(roots) == 0 {
		return ErrNoPairs
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	for _, root := range roots {
		opts, err := a.inventoryOptions(root)
		if err != nil {
			return err
		}
		inv, err := inventory.Take(ctx, opts)
		if err != nil {
			return err
		}
		if err := render(cmd.OutOrStdout(), &output.Result{Inventory: inv, Interrupted: ctx.Err() != nil}); err != nil {
			return err
		}
	}
	return nil
}

func (a *app) inventoryOptions(root string) (inventory.Options, error) {
	reg, err := a.registry()
	if err != nil {
		return inventory.Options{}, err
	}
	f, err := a.exportFilter(reg, root)
	if err != nil {
		return inventory.Options{}, err
	}
	return inventory.Options{
		Root:        filepath.Clean(root),
		Filter:      f,
		Convertible: filter.NewSuffixSet(reg.SourceSuffixes()...),
		Native:      device.NativeSuffixes(),
		Workers:     inventoryWorkers,
	}, nil
}

