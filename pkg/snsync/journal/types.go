// Package journal keeps a history of sync runs as JSON files, one per
// export, backup or import call.
package journal

import (
	"time"

	"github.com/jamesainslie/snsync/pkg/snsync/types"
)

// Entry represents one recorded sync call.
type Entry struct {
	ID        string          `json:"id"`
	RunID     string          `json:"run_id"`
	Timestamp time.Time       `json:"timestamp"`
	Operation types.Operation `json:"operation"`
	Source    string          `json:"source"`
	Dest      string          `json:"dest"`
	DryRun    bool            `json:"dry_run"`
	Policy    string          `json:"policy,omitempty"`
	Elapsed   time.Duration   `json:"elapsed"`
	Files     []FileRecord    `json:"files"`
	Summary   Summary         `json:"summary"`
	Error     string          `json:"error,omitempty"`
}

// FileRecord represents a file that was acted on.
type FileRecord struct {
	Source string      `json:"source"`
	Dest   string      `json:"dest"`
	State  types.State `json:"state"`
	Rule   string      `json:"rule,omitempty"`
	Bytes  int64       `json:"bytes"`
	Error  string      `json:"error,omitempty"`
}

// Summary counts files by outcome.
type Summary struct {
	Copied     int   `json:"copied"`
	Converted  int   `json:"converted"`
	Imported   int   `json:"imported"`
	Skipped    int   `json:"skipped"`
	Failed     int   `json:"failed"`
	TotalBytes int64 `json:"total_bytes"`
}
