package engine

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/jamesainslie/snsync/pkg/snsync/convert"
	"github.com/jamesainslie/snsync/pkg/snsync/device"
	"github.com/jamesainslie/snsync/pkg/snsync/filter"
	"github.com/jamesainslie/snsync/pkg/snsync/types"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var past = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

// writeOld creates a file whose times lie well in the past, so a freshly
// written copy of it will not compare equal until equalized.
func writeOld(t *testing.T, fsys afero.Fs, path, content string) {
	t.Helper()
	require.NoError(t, fsys.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, afero.WriteFile(fsys, path, []byte(content), 0o644))
	require.NoError(t, fsys.Chtimes(path, past, past))
}

// pdfWriter is a converter that writes a stub PDF at dst and counts calls.
type pdfWriter struct {
	fs    afero.Fs
	calls int
}

func (p *pdfWriter) Convert(_ context.Context, _, dst string) error {
	p.calls++
	if err := p.fs.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}
	return afero.WriteFile(p.fs, dst, []byte("%PDF-1.5"), 0o644)
}

func exportFilter() *filter.Set {
	return filter.ForExport(
		device.SupportedSuffixes(),
		filter.NewSuffixSet(".org"),
		device.NativeSuffixes(),
		filter.DefaultArtifactMarkers,
	)
}

func newExportEngine(t *testing.T, fsys afero.Fs, conv convert.Converter, opts ...Option) *Engine {
	t.Helper()
	reg, err := convert.NewRegistry(convert.Rule{SourceSuffix: ".org", DestSuffix: ".pdf", Converter: conv})
	require.NoError(t, err)
	return New(fsys, append([]Option{WithRegistry(reg), WithCopyRetries(2, 0)}, opts...)...)
}

func seedExportTree(t *testing.T, fsys afero.Fs) {
	t.Helper()
	writeOld(t, fsys, "/home/u/Math/a.pdf", "pdf bytes")
	writeOld(t, fsys, "/home/u/Math/b.org", "* Heading")
	writeOld(t, fsys, "/home/u/Math/c.note", "native")
	writeOld(t, fsys, "/home/u/Math/.hidden", "secret")
	writeOld(t, fsys, "/home/u/Math/d.txt", "plain")
	writeOld(t, fsys, "/home/u/Math/eq-ltximg.png", "generated")
	writeOld(t, fsys, "/home/u/Math/sub/e.epub", "epub bytes")
}

func states(r *types.Report) map[string]types.State {
	out := make(map[string]types.State, len(r.Files))
	for _, f := range r.Files {
		out[f.Dest] = f.State
	}
	return out
}

func TestExport_CopiesConvertsAndFilters(t *testing.T) {
	fsys := afero.NewMemMapFs()
	seedExportTree(t, fsys)
	conv := &pdfWriter{fs: fsys}
	e := newExportEngine(t, fsys, conv)

	report, err := e.Export(context.Background(), "/home/u/Math", "/sn/Document/Math", exportFilter())
	require.NoError(t, err)

	assert.Equal(t, map[string]types.State{
		"/sn/Document/Math/a.pdf":      types.StateCopied,
		"/sn/Document/Math/b.pdf":      types.StateConverted,
		"/sn/Document/Math/sub/e.epub": types.StateCopied,
	}, states(report))
	assert.Equal(t, 1, conv.calls)

	data, err := afero.ReadFile(fsys, "/sn/Document/Math/a.pdf")
	require.NoError(t, err)
	assert.Equal(t, "pdf bytes", string(data))

	for _, absent := range []string{
		"/sn/Document/Math/b.org",
		"/sn/Document/Math/b.org.pdf",
		"/sn/Document/Math/c.note",
		"/sn/Document/Math/.hidden",
		"/sn/Document/Math/d.txt",
		"/sn/Document/Math/eq-ltximg.png",
	} {
		exists, err := afero.Exists(fsys, absent)
		require.NoError(t, err)
		assert.False(t, exists, absent)
	}

	assert.Equal(t, types.OpExport, report.Operation)
	assert.Equal(t, 3, report.Changed())
}

func TestExport_Idempotent(t *testing.T) {
	fsys := afero.NewMemMapFs()
	seedExportTree(t, fsys)
	conv := &pdfWriter{fs: fsys}
	e := newExportEngine(t, fsys, conv)

	_, err := e.Export(context.Background(), "/home/u/Math", "/sn/Document/Math", exportFilter())
	require.NoError(t, err)

	report, err := e.Export(context.Background(), "/home/u/Math", "/sn/Document/Math", exportFilter())
	require.NoError(t, err)

	require.Len(t, report.Files, 3)
	for _, f := range report.Files {
		assert.Equal(t, types.StateSkipped, f.State, f.Source)
	}
	assert.Equal(t, 1, conv.calls, "converter must not run again")
}

func TestExport_ModifiedSourceIsRecopied(t *testing.T) {
	fsys := afero.NewMemMapFs()
	writeOld(t, fsys, "/src/a.pdf", "v1")
	e := newExportEngine(t, fsys, &pdfWriter{fs: fsys})

	_, err := e.Export(context.Background(), "/src", "/dst", exportFilter())
	require.NoError(t, err)

	require.NoError(t, afero.WriteFile(fsys, "/src/a.pdf", []byte("v2"), 0o644))

	report, err := e.Export(context.Background(), "/src", "/dst", exportFilter())
	require.NoError(t, err)
	require.Len(t, report.Files, 1)
	assert.Equal(t, types.StateCopied, report.Files[0].State)

	data, err := afero.ReadFile(fsys, "/dst/a.pdf")
	require.NoError(t, err)
	assert.Equal(t, "v2", string(data))
}

func TestExport_ConvertedOutputShadowsVerbatimSibling(t *testing.T) {
	fsys := afero.NewMemMapFs()
	writeOld(t, fsys, "/src/notes.org", "* Notes")
	writeOld(t, fsys, "/src/notes.pdf", "emacs export")
	later := past.Add(time.Hour)
	require.NoError(t, fsys.Chtimes("/src/notes.pdf", later, later))

	conv := &pdfWriter{fs: fsys}
	e := newExportEngine(t, fsys, conv)

	report, err := e.Export(context.Background(), "/src", "/dst", exportFilter())
	require.NoError(t, err)
	require.Len(t, report.Files, 2)

	bySource := make(map[string]types.FileResult, len(report.Files))
	for _, f := range report.Files {
		bySource[f.Source] = f
	}
	assert.Equal(t, types.StateConverted, bySource["/src/notes.org"].State)
	assert.Equal(t, types.StateSkipped, bySource["/src/notes.pdf"].State)
	assert.Equal(t, "/src/notes.org", bySource["/src/notes.pdf"].ShadowedBy)
	assert.Equal(t, "export", report.Policy)

	data, err := afero.ReadFile(fsys, "/dst/notes.pdf")
	require.NoError(t, err)
	assert.Equal(t, "%PDF-1.5", string(data))

	for run := 0; run < 2; run++ {
		report, err = e.Export(context.Background(), "/src", "/dst", exportFilter())
		require.NoError(t, err)
		for _, f := range report.Files {
			assert.Equal(t, types.StateSkipped, f.State, f.Source)
		}
		assert.Zero(t, report.Changed())
	}
	assert.Equal(t, 1, conv.calls, "converter must not run again on an unchanged tree")
}

func TestExport_VerbatimSiblingCopiedWhenSourceExcluded(t *testing.T) {
	fsys := afero.NewMemMapFs()
	writeOld(t, fsys, "/src/notes.org", "* Notes")
	writeOld(t, fsys, "/src/notes.pdf", "emacs export")

	conv := &pdfWriter{fs: fsys}
	e := newExportEngine(t, fsys, conv)
	f := exportFilter().With(func(_, name string) bool { return name == "notes.org" })

	report, err := e.Export(context.Background(), "/src", "/dst", f)
	require.NoError(t, err)
	require.Len(t, report.Files, 1)
	assert.Equal(t, types.StateCopied, report.Files[0].State)
	assert.Empty(t, report.Files[0].ShadowedBy)
	assert.Zero(t, conv.calls)
}

func TestExport_SecondClaimOnDestinationIsSkipped(t *testing.T) {
	fsys := afero.NewMemMapFs()
	writeOld(t, fsys, "/src/a.md", "# A")
	writeOld(t, fsys, "/src/a.org", "* A")

	conv := &pdfWriter{fs: fsys}
	reg, err := convert.NewRegistry(
		convert.Rule{SourceSuffix: ".org", DestSuffix: ".pdf", Converter: conv},
		convert.Rule{SourceSuffix: ".md", DestSuffix: ".pdf", Converter: conv},
	)
	require.NoError(t, err)
	e := New(fsys, WithRegistry(reg))

	report, err := e.Export(context.Background(), "/src", "/dst", filter.New(filter.PolicyCustom))
	require.NoError(t, err)
	require.Len(t, report.Files, 2)

	first, second := report.Files[0], report.Files[1]
	assert.Equal(t, types.StateConverted, first.State)
	assert.Equal(t, types.StateSkipped, second.State)
	assert.Equal(t, first.Source, second.ShadowedBy)
	assert.Equal(t, "/dst/a.pdf", second.Dest)
	assert.Equal(t, 1, conv.calls)
}

func TestExport_ReplacesDestinationWithSourcePermissions(t *testing.T) {
	fsys := afero.NewMemMapFs()
	writeOld(t, fsys, "/src/a.pdf", "fresh")
	require.NoError(t, fsys.Chmod("/src/a.pdf", 0o640))
	require.NoError(t, fsys.MkdirAll("/dst", 0o755))
	require.NoError(t, afero.WriteFile(fsys, "/dst/a.pdf", []byte("stale and longer"), 0o600))

	e := newExportEngine(t, fsys, &pdfWriter{fs: fsys})
	_, err := e.Export(context.Background(), "/src", "/dst", exportFilter())
	require.NoError(t, err)

	data, err := afero.ReadFile(fsys, "/dst/a.pdf")
	require.NoError(t, err)
	assert.Equal(t, "fresh", string(data))

	info, err := fsys.Stat("/dst/a.pdf")
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o640), info.Mode().Perm())
	assert.True(t, info.ModTime().Equal(past), "destination should carry the source mtime")
}

func TestExport_AbortsOnMissingConverterOutput(t *testing.T) {
	fsys := afero.NewMemMapFs()
	writeOld(t, fsys, "/src/b.org", "* Heading")

	silent := convert.Func(func(context.Context, string, string) error { return nil })
	e := newExportEngine(t, fsys, silent)

	report, err := e.Export(context.Background(), "/src", "/dst", exportFilter())
	require.Error(t, err)
	assert.ErrorIs(t, err, convert.ErrConversionFailed)

	require.Len(t, report.Files, 1)
	assert.Equal(t, types.StateFailed, report.Files[0].State)
	assert.NotEmpty(t, report.Files[0].Error)

	exists, _ := afero.Exists(fsys, "/dst/b.pdf")
	assert.False(t, exists)
}

func TestExport_ConverterErrorAborts(t *testing.T) {
	fsys := afero.NewMemMapFs()
	writeOld(t, fsys, "/src/b.org", "* Heading")
	writeOld(t, fsys, "/src/c.org", "* Heading")

	boom := errors.New("emacs crashed")
	calls := 0
	failing := convert.Func(func(context.Context, string, string) error {
		calls++
		return boom
	})
	e := newExportEngine(t, fsys, failing)

	_, err := e.Export(context.Background(), "/src", "/dst", exportFilter())
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, calls, "first failure aborts the run")
}

// snapshot records every path with its size, mode and mtime.
func snapshot(t *testing.T, fsys afero.Fs) []string {
	t.Helper()
	var out []string
	err := afero.Walk(fsys, "/", func(path string, info fs.FileInfo, err error) error {
		if err != nil {
			return err
		}
		out = append(out, fmt.Sprintf("%s %s %d %s",
			path, info.Mode(), info.Size(), info.ModTime().UTC().Format(time.RFC3339Nano)))
		return nil
	})
	require.NoError(t, err)
	sort.Strings(out)
	return out
}

func TestExport_DryRunIsPure(t *testing.T) {
	fsys := afero.NewMemMapFs()
	seedExportTree(t, fsys)
	writeOld(t, fsys, "/sn/Document/Math/a.pdf", "older copy")
	conv := &pdfWriter{fs: fsys}
	e := newExportEngine(t, fsys, conv, WithDryRun(true))

	before := snapshot(t, fsys)
	report, err := e.Export(context.Background(), "/home/u/Math", "/sn/Document/Math", exportFilter())
	require.NoError(t, err)
	after := snapshot(t, fsys)

	assert.Equal(t, before, after, "dry run must not touch the filesystem")
	assert.Zero(t, conv.calls)
	assert.True(t, report.DryRun)

	assert.Equal(t, map[string]types.State{
		"/sn/Document/Math/a.pdf":      types.StateSkipped,
		"/sn/Document/Math/b.pdf":      types.StateConverted,
		"/sn/Document/Math/sub/e.epub": types.StateCopied,
	}, states(report))
	for _, f := range report.Files {
		if f.State != types.StateSkipped {
			assert.True(t, f.Planned, f.Source)
		}
	}
}

// rejectTimesFs refuses timestamp writes under prefix, like an MTP mount.
type rejectTimesFs struct {
	afero.Fs
	prefix string
}

func (r *rejectTimesFs) Chtimes(name string, atime, mtime time.Time) error {
	if strings.HasPrefix(name, r.prefix) {
		return &os.PathError{Op: "chtimes", Path: name, Err: errors.New("operation not supported")}
	}
	return r.Fs.Chtimes(name, atime, mtime)
}

func TestExport_TimestampRejectionStillSkipsOnRerun(t *testing.T) {
	fsys := &rejectTimesFs{Fs: afero.NewMemMapFs(), prefix: "/sn"}
	writeOld(t, fsys.Fs, "/src/a.pdf", "pdf")
	writeOld(t, fsys.Fs, "/src/b.org", "* Heading")
	conv := &pdfWriter{fs: fsys}
	e := newExportEngine(t, fsys, conv)

	_, err := e.Export(context.Background(), "/src", "/sn/Document", exportFilter())
	require.NoError(t, err)

	info, err := fsys.Stat("/src/a.pdf")
	require.NoError(t, err)
	assert.False(t, info.ModTime().Equal(past), "source adopts the device's time")

	report, err := e.Export(context.Background(), "/src", "/sn/Document", exportFilter())
	require.NoError(t, err)
	for _, f := range report.Files {
		assert.Equal(t, types.StateSkipped, f.State, f.Source)
	}
	assert.Equal(t, 1, conv.calls)
}

// flakyFs fails the first n opens for writing.
type flakyFs struct {
	afero.Fs
	failures int
}

func (f *flakyFs) OpenFile(name string, flag int, perm os.FileMode) (afero.File, error) {
	if flag&(os.O_WRONLY|os.O_RDWR) != 0 && f.failures > 0 {
		f.failures--
		return nil, &os.PathError{Op: "open", Path: name, Err: errors.New("input/output error")}
	}
	return f.Fs.OpenFile(name, flag, perm)
}

func TestExport_CopyRetries(t *testing.T) {
	tests := []struct {
		name     string
		failures int
		wantErr  bool
	}{
		{name: "recovers within retries", failures: 2, wantErr: false},
		{name: "exhausts retries", failures: 3, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fsys := &flakyFs{Fs: afero.NewMemMapFs()}
			writeOld(t, fsys.Fs, "/src/a.pdf", "pdf")
			fsys.failures = tt.failures

			e := New(fsys, WithCopyRetries(2, 0))
			report, err := e.Export(context.Background(), "/src", "/dst", exportFilter())

			if !tt.wantErr {
				require.NoError(t, err)
				assert.Equal(t, types.StateCopied, report.Files[0].State)
				return
			}

			var copyErr *CopyError
			require.True(t, errors.As(err, &copyErr), "want CopyError, got %v", err)
			assert.Equal(t, "/src/a.pdf", copyErr.Source)
			assert.Equal(t, "/dst/a.pdf", copyErr.Dest)
			assert.False(t, errors.Is(err, ErrSourceVanished))
			assert.Equal(t, types.StateFailed, report.Files[0].State)
		})
	}
}

func TestCopyWithRetry_SourceVanished(t *testing.T) {
	fsys := &flakyFs{Fs: afero.NewMemMapFs(), failures: 10}
	e := New(fsys, WithCopyRetries(5, 0))

	_, err := e.copyWithRetry(context.Background(), "/src/gone.pdf", "/dst/gone.pdf")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrSourceVanished)
	assert.Equal(t, 10, fsys.failures, "a vanished source is not retried")

	var copyErr *CopyError
	assert.True(t, errors.As(err, &copyErr))
}

func TestExport_CancelledContext(t *testing.T) {
	fsys := afero.NewMemMapFs()
	writeOld(t, fsys, "/src/a.pdf", "pdf")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := New(fsys).Export(ctx, "/src", "/dst", exportFilter())
	assert.ErrorIs(t, err, context.Canceled)

	exists, _ := afero.Exists(fsys, "/dst/a.pdf")
	assert.False(t, exists)
}

func TestExport_Observer(t *testing.T) {
	fsys := afero.NewMemMapFs()
	writeOld(t, fsys, "/src/a.pdf", "pdf")
	writeOld(t, fsys, "/src/b.epub", "epub")

	var seen []types.FileResult
	e := New(fsys, WithObserver(func(r types.FileResult) { seen = append(seen, r) }))

	report, err := e.Export(context.Background(), "/src", "/dst", exportFilter())
	require.NoError(t, err)
	assert.Equal(t, report.Files, seen)
}

func TestBackup_CopiesOnlyNativeFiles(t *testing.T) {
	fsys := afero.NewMemMapFs()
	writeOld(t, fsys, "/sn/Note/Daily/monday.note", "note")
	writeOld(t, fsys, "/sn/Document/book.pdf", "pdf")
	writeOld(t, fsys, "/sn/Document/book.pdf.mark", "mark")
	writeOld(t, fsys, "/sn/Document/cover.png", "png")

	e := New(fsys, WithCopyRetries(0, 0))
	report, err := e.Backup(context.Background(), "/sn", "/backup")
	require.NoError(t, err)

	assert.Equal(t, map[string]types.State{
		"/backup/Note/Daily/monday.note": types.StateCopied,
		"/backup/Document/book.pdf.mark": types.StateCopied,
	}, states(report))
	assert.Equal(t, types.OpBackup, report.Operation)

	exists, _ := afero.Exists(fsys, "/backup/Document/book.pdf")
	assert.False(t, exists)

	report, err = e.Backup(context.Background(), "/sn", "/backup")
	require.NoError(t, err)
	assert.Equal(t, 2, report.Count(types.StateSkipped))
}

func TestImport_ConvertsNotesAndSkipsOnRerun(t *testing.T) {
	fsys := afero.NewMemMapFs()
	writeOld(t, fsys, "/sn/Note/Daily/monday.note", "note")
	writeOld(t, fsys, "/sn/Note/Daily/monday.mark", "mark")
	conv := &pdfWriter{fs: fsys}

	e := New(fsys)
	report, err := e.Import(context.Background(), "/sn", "/notes", conv)
	require.NoError(t, err)

	assert.Equal(t, map[string]types.State{
		"/notes/Note/Daily/monday.pdf": types.StateImported,
	}, states(report))
	assert.Equal(t, ".note -> .pdf", report.Files[0].Rule)
	assert.Equal(t, int64(len("%PDF-1.5")), report.Files[0].Bytes)

	report, err = e.Import(context.Background(), "/sn", "/notes", conv)
	require.NoError(t, err)
	require.Len(t, report.Files, 1)
	assert.Equal(t, types.StateSkipped, report.Files[0].State)
	assert.Equal(t, 1, conv.calls)
}

func TestImport_DryRun(t *testing.T) {
	fsys := afero.NewMemMapFs()
	writeOld(t, fsys, "/sn/Note/a.note", "note")
	conv := &pdfWriter{fs: fsys}

	report, err := New(fsys, WithDryRun(true)).Import(context.Background(), "/sn", "/notes", conv)
	require.NoError(t, err)
	require.Len(t, report.Files, 1)
	assert.Equal(t, types.StateImported, report.Files[0].State)
	assert.True(t, report.Files[0].Planned)
	assert.Zero(t, conv.calls)

	exists, _ := afero.Exists(fsys, "/notes")
	assert.False(t, exists)
}
