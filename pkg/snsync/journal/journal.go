package journal

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jamesainslie/snsync/pkg/snsync/types"
	"github.com/spf13/afero"
)

// ErrNotFound is returned by Get for an unknown entry ID.
var ErrNotFound = errors.New("journal entry not found")

// Journal persists run entries in a directory.
type Journal struct {
	fs  afero.Fs
	dir string
	mu  sync.Mutex
}

// New creates a Journal in dir on fs.
// The directory is not created until EnsureDir is called.
func New(fs afero.Fs, dir string) (*Journal, error) {
	if dir == "" {
		return nil, errors.New("journal directory cannot be empty")
	}
	return &Journal{fs: fs, dir: dir}, nil
}

// Dir returns the journal directory.
func (j *Journal) Dir() string {
	return j.dir
}

// EnsureDir creates the journal directory if it does not exist.
func (j *Journal) EnsureDir() error {
	return j.fs.MkdirAll(j.dir, 0o755)
}

// NewRunID returns an identifier grouping the entries of one invocation.
func NewRunID() string {
	return uuid.NewString()
}

// Record persists report under runID. Skipped files are counted but not
// listed. runErr, if set, is stored as the entry's error.
func (j *Journal) Record(runID string, report *types.Report, runErr error) (*Entry, error) {
	if report == nil {
		return nil, errors.New("journal: nil report")
	}

	j.mu.Lock()
	defer j.mu.Unlock()

	entry := &Entry{
		ID:        generateID(report.Operation),
		RunID:     runID,
		Timestamp: time.Now().UTC(),
		Operation: report.Operation,
		Source:    report.Source,
		Dest:      report.Dest,
		DryRun:    report.DryRun,
		Policy:    report.Policy,
		Elapsed:   report.Elapsed,
		Files:     []FileRecord{},
	}
	if runErr != nil {
		entry.Error = runErr.Error()
	}

	for _, f := range report.Files {
		entry.Summary.add(f)
		if f.State == types.StateSkipped {
			continue
		}
		entry.Files = append(entry.Files, FileRecord{
			Source: f.Source,
			Dest:   f.Dest,
			State:  f.State,
			Rule:   f.Rule,
			Bytes:  f.Bytes,
			Error:  f.Error,
		})
	}

	if err := j.writeEntry(entry); err != nil {
		return nil, fmt.Errorf("failed to write journal entry: %w", err)
	}
	return entry, nil
}

func (s *Summary) add(f types.FileResult) {
	switch f.State {
	case types.StateCopied:
		s.Copied++
	case types.StateConverted:
		s.Converted++
	case types.StateImported:
		s.Imported++
	case types.StateFailed:
		s.Failed++
	default:
		s.Skipped++
		return
	}
	s.TotalBytes += f.Bytes
}

// writeEntry writes an entry to a JSON file, atomically via a temp file.
func (j *Journal) writeEntry(entry *Entry) error {
	filePath := filepath.Join(j.dir, entry.ID+".json")

	data, err := json.MarshalIndent(entry, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal entry: %w", err)
	}

	tmpPath := filePath + ".tmp"
	if err := afero.WriteFile(j.fs, tmpPath, data, 0o644); err != nil {
		return fmt.Errorf("failed to write temp file: %w", err)
	}

	if err := j.fs.Rename(tmpPath, filePath); err != nil {
		_ = j.fs.Remove(tmpPath)
		return fmt.Errorf("failed to rename temp file: %w", err)
	}
	return nil
}

// List returns entries sorted by timestamp descending (newest first).
// If limit is 0 or negative, all entries are returned.
func (j *Journal) List(limit int) ([]Entry, error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	entries, err := j.readAll()
	if err != nil {
		return nil, err
	}

	sort.Slice(entries, func(a, b int) bool {
		return entries[a].Timestamp.After(entries[b].Timestamp)
	})

	if limit > 0 && len(entries) > limit {
		entries = entries[:limit]
	}
	return entries, nil
}

// Get retrieves an entry by ID. A unique ID prefix is accepted.
func (j *Journal) Get(id string) (*Entry, error) {
	if id == "" {
		return nil, errors.New("entry ID cannot be empty")
	}

	j.mu.Lock()
	defer j.mu.Unlock()

	entries, err := j.readAll()
	if err != nil {
		return nil, err
	}

	var match *Entry
	for i := range entries {
		if entries[i].ID == id {
			return &entries[i], nil
		}
		if strings.HasPrefix(entries[i].ID, id) {
			if match != nil {
				return nil, fmt.Errorf("ambiguous entry ID prefix: %s", id)
			}
			match = &entries[i]
		}
	}
	if match == nil {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return match, nil
}

// readAll parses every entry file, skipping files that cannot be parsed.
func (j *Journal) readAll() ([]Entry, error) {
	files, err := afero.ReadDir(j.fs, j.dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return []Entry{}, nil
		}
		return nil, fmt.Errorf("failed to read journal directory: %w", err)
	}

	entries := []Entry{}
	for _, f := range files {
		if f.IsDir() || !strings.HasSuffix(f.Name(), ".json") {
			continue
		}

		data, err := afero.ReadFile(j.fs, filepath.Join(j.dir, f.Name()))
		if err != nil {
			continue
		}
		var entry Entry
		if err := json.Unmarshal(data, &entry); err != nil {
			continue
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

// Cleanup removes entries older than retentionDays and returns how many were
// removed. A retention of zero keeps everything.
func (j *Journal) Cleanup(retentionDays int) (int, error) {
	if retentionDays <= 0 {
		return 0, nil
	}

	j.mu.Lock()
	defer j.mu.Unlock()

	cutoff := time.Now().AddDate(0, 0, -retentionDays)

	files, err := afero.ReadDir(j.fs, j.dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return 0, nil
		}
		return 0, fmt.Errorf("failed to read journal directory: %w", err)
	}

	removed := 0
	for _, f := range files {
		if f.IsDir() || !strings.HasSuffix(f.Name(), ".json") {
			continue
		}
		if f.ModTime().Before(cutoff) {
			if err := j.fs.Remove(filepath.Join(j.dir, f.Name())); err != nil {
				continue
			}
			removed++
		}
	}
	return removed, nil
}

// generateID creates a unique ID like "export-2026-06-15T10-30-00-1b4e28ba".
func generateID(op types.Operation) string {
	ts := time.Now().UTC().Format("2006-01-02T15-04-05")
	return fmt.Sprintf("%s-%s-%s", op, ts, uuid.NewString()[:8])
}
