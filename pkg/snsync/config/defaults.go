// Package config provides configuration management for snsync.
package config

import "time"

// Default configuration values for snsync.
const (
	// DefaultConfigDir is the default configuration directory path.
	DefaultConfigDir = "~/.config/snsync"

	// DefaultBackupDest is where native notebooks are backed up.
	DefaultBackupDest = "~/Documents/sn_backup"

	// DefaultImportDest is where notebooks rendered as PDF are written.
	DefaultImportDest = "~/Documents/sn_pdfs"

	// DefaultCopyRetries is how often a failed copy to the device is retried.
	DefaultCopyRetries = 2

	// DefaultRetryDelay is the initial delay between copy attempts.
	DefaultRetryDelay = 500 * time.Millisecond

	// DefaultRetentionDays is the default number of days to retain journal entries.
	DefaultRetentionDays = 30

	// DefaultDebounce is how long watch waits for changes to settle.
	DefaultDebounce = 2 * time.Second

	// DefaultLogMaxSizeMB is the log file size that triggers rotation.
	DefaultLogMaxSizeMB = 10

	// DefaultLogMaxAgeDays is how long rotated log files are kept.
	DefaultLogMaxAgeDays = 30

	// DefaultLogMaxBackups is how many rotated log files are kept.
	DefaultLogMaxBackups = 5

	// DefaultIgnoreMarker marks generated LaTeX preview artifacts.
	DefaultIgnoreMarker = "ltximg"
)

// DefaultIgnoreMarkers contains name fragments excluded from export by default.
var DefaultIgnoreMarkers = []string{DefaultIgnoreMarker}
