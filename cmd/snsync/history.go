package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/jamesainslie/snsync/pkg/snsync/config"
	"github.com/jamesainslie/snsync/pkg/snsync/journal"
	"github.com/jamesainslie/snsync/pkg/snsync/types"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "View run history",
	Long: `View the history of export, backup and import runs.

Every run records what it copied, converted or imported, so you can check
what changed on the device and when.`,
	Args: cobra.NoArgs,
	RunE: runHistory,
}

var historyShowCmd = &cobra.Command{
	Use:   "show [id]",
	Short: "Show details of a specific run",
	Long:  `Display the files acted on by one journal entry. A unique ID prefix is enough.`,
	Args:  cobra.ExactArgs(1),
	RunE:  runHistoryShow,
}

var historyCleanCmd = &cobra.Command{
	Use:   "clean",
	Short: "Clean up old history entries",
	Long:  `Remove history entries older than journal.retention_days.`,
	Args:  cobra.NoArgs,
	RunE:  runHistoryClean,
}

var historyLimit int

func init() {
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "l", 20, "maximum number of entries to show")

	historyCmd.AddCommand(historyShowCmd)
	historyCmd.AddCommand(historyCleanCmd)
	rootCmd.AddCommand(historyCmd)
}

// openJournal returns the journal in the configured directory, falling back
// to the default directory if the configuration cannot be loaded.
func openJournal() (*journal.Journal, *config.Config, error) {
	cfg, err := config.LoadFile(cfgFile)
	if err != nil {
		printVerbose("Failed to load configuration, using default journal: %v", err)
		j, jerr := journal.New(afero.NewOsFs(), config.DefaultJournalDir())
		return j, nil, jerr
	}
	j, err := journal.New(afero.NewOsFs(), cfg.JournalDir())
	return j, cfg, err
}

func runHistory(cmd *cobra.Command, args []string) error {
	j, _, err := openJournal()
	if err != nil {
		return fmt.Errorf("failed to open journal: %w", err)
	}

	entries, err := j.List(historyLimit)
	if err != nil {
		return fmt.Errorf("failed to list history: %w", err)
	}

	if len(entries) == 0 {
		printInfo("No history entries found.")
		printInfo("Run 'snsync run' to sync with the device.")
		return nil
	}

	writeHistory(cmd.OutOrStdout(), entries)
	return nil
}

func writeHistory(w io.Writer, entries []journal.Entry) {
	fmt.Fprintf(w, "\n%-32s  %-16s  %-7s  %-7s  %-10s  %s\n", "ID", "WHEN", "CHANGED", "FAILED", "SIZE", "ROUTE")
	fmt.Fprintln(w, strings.Repeat("-", 100))

	for _, e := range entries {
		changed := e.Summary.Copied + e.Summary.Converted + e.Summary.Imported
		id := truncateString(e.ID, 32)
		if e.DryRun {
			id = truncateString(e.ID, 28) + " (d)"
		}
		fmt.Fprintf(w, "%-32s  %-16s  %-7d  %-7d  %-10s  %s -> %s\n",
			id,
			humanize.Time(e.Timestamp),
			changed,
			e.Summary.Failed,
			types.FormatSize(e.Summary.TotalBytes),
			e.Source, e.Dest,
		)
	}

	fmt.Fprintln(w, strings.Repeat("-", 100))
	fmt.Fprintf(w, "\nShowing %d entries. Use --limit to see more.\n", len(entries))
	fmt.Fprintln(w, "Use 'snsync history show <id>' for details on a specific entry.")
}

func runHistoryShow(cmd *cobra.Command, args []string) error {
	j, _, err := openJournal()
	if err != nil {
		return fmt.Errorf("failed to open journal: %w", err)
	}

	entry, err := j.Get(args[0])
	if err != nil {
		return fmt.Errorf("failed to get entry: %w", err)
	}

	writeEntry(cmd.OutOrStdout(), entry)
	return nil
}

func writeEntry(w io.Writer, entry *journal.Entry) {
	fmt.Fprintln(w, "\nRun Details")
	fmt.Fprintln(w, strings.Repeat("=", 60))
	fmt.Fprintf(w, "ID:         %s\n", entry.ID)
	fmt.Fprintf(w, "Run:        %s\n", entry.RunID)
	fmt.Fprintf(w, "Timestamp:  %s\n", entry.Timestamp.Local().Format("2006-01-02 15:04:05 MST"))
	fmt.Fprintf(w, "Operation:  %s\n", entry.Operation)
	fmt.Fprintf(w, "Source:     %s\n", entry.Source)
	fmt.Fprintf(w, "Dest:       %s\n", entry.Dest)
	fmt.Fprintf(w, "Dry run:    %t\n", entry.DryRun)
	fmt.Fprintf(w, "Elapsed:    %s\n", entry.Elapsed)
	fmt.Fprintf(w, "Summary:    %d copied, %d converted, %d imported, %d skipped, %d failed (%s)\n",
		entry.Summary.Copied, entry.Summary.Converted, entry.Summary.Imported,
		entry.Summary.Skipped, entry.Summary.Failed, types.FormatSize(entry.Summary.TotalBytes))
	if entry.Error != "" {
		fmt.Fprintf(w, "Error:      %s\n", entry.Error)
	}

	if len(entry.Files) == 0 {
		return
	}

	fmt.Fprintln(w, "\nFiles:")
	fmt.Fprintln(w, strings.Repeat("-", 60))
	fmt.Fprintf(w, "%-10s  %-10s  %s\n", "STATE", "SIZE", "DEST")
	fmt.Fprintln(w, strings.Repeat("-", 60))

	limit := min(len(entry.Files), 50)
	for _, f := range entry.Files[:limit] {
		fmt.Fprintf(w, "%-10s  %-10s  %s\n", f.State, types.FormatSize(f.Bytes), f.Dest)
		if f.Error != "" {
			fmt.Fprintf(w, "            %s\n", f.Error)
		}
	}
	if len(entry.Files) > limit {
		fmt.Fprintf(w, "\n... and %d more files\n", len(entry.Files)-limit)
	}
}

func runHistoryClean(cmd *cobra.Command, args []string) error {
	j, cfg, err := openJournal()
	if err != nil {
		return fmt.Errorf("failed to open journal: %w", err)
	}

	retentionDays := config.DefaultRetentionDays
	if cfg != nil {
		retentionDays = cfg.Journal.RetentionDays
	}
	if retentionDays <= 0 {
		printInfo("Retention is disabled (journal.retention_days = %d); nothing to clean.", retentionDays)
		return nil
	}

	printInfo("Cleaning history entries older than %d days...", retentionDays)

	removed, err := j.Cleanup(retentionDays)
	if err != nil {
		return fmt.Errorf("failed to clean history: %w", err)
	}

	printInfo("Removed %d entries.", removed)
	return nil
}

// truncateString truncates a string to maxLen, adding "..." if truncated.
func truncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return s[:maxLen]
	}
	return s[:maxLen-3] + "..."
}
