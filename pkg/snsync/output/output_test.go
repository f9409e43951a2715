package output

import (
	"bytes"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jamesainslie/snsync/pkg/snsync/inventory"
	"github.com/jamesainslie/snsync/pkg/snsync/types"
)

func sampleResult() *Result {
	export := types.NewReport(types.OpExport, "/home/user/org", "/media/sn/Document/org", false)
	export.Add(types.FileResult{
		Source: "/home/user/org/notes.org",
		Dest:   "/media/sn/Document/org/notes.pdf",
		State:  types.StateConverted,
		Rule:   ".org -> .pdf",
		Bytes:  2048,
	})
	export.Add(types.FileResult{
		Source: "/home/user/org/paper.pdf",
		Dest:   "/media/sn/Document/org/paper.pdf",
		State:  types.StateCopied,
		Bytes:  1024,
	})
	export.Add(types.FileResult{
		Source: "/home/user/org/old.pdf",
		Dest:   "/media/sn/Document/org/old.pdf",
		State:  types.StateSkipped,
		Bytes:  512,
	})
	export.Elapsed = 2 * time.Second

	backup := types.NewReport(types.OpBackup, "/media/sn", "/home/user/sn_backup", false)
	backup.Add(types.FileResult{
		Source: "/media/sn/Note/a.note",
		Dest:   "/home/user/sn_backup/Note/a.note",
		State:  types.StateFailed,
		Err:    errors.New("device busy"),
	})
	backup.Elapsed = time.Second

	return &Result{Reports: []*types.Report{export, backup}}
}

func sampleInventory() *inventory.Result {
	return &inventory.Result{
		Root:  "/home/user/org",
		Dirs:  3,
		Files: 12,
		Bytes: 4096,
		Buckets: []inventory.Bucket{
			{Class: inventory.ClassConvert, Suffix: ".org", Files: 10, Bytes: 3072},
			{Class: inventory.ClassIgnored, Suffix: "", Files: 2, Bytes: 1024},
		},
		Elapsed: 150 * time.Millisecond,
	}
}

func TestResult_Totals(t *testing.T) {
	r := sampleResult()
	totals := r.Totals()

	assert.Equal(t, 1, totals.Copied)
	assert.Equal(t, 1, totals.Converted)
	assert.Equal(t, 0, totals.Imported)
	assert.Equal(t, 1, totals.Skipped)
	assert.Equal(t, 1, totals.Failed)
	assert.Equal(t, int64(3072), totals.Bytes)
	assert.Equal(t, 3*time.Second, totals.Elapsed)
	assert.Equal(t, 2, totals.Changed())
}

func TestResult_TotalsIgnoresNilReports(t *testing.T) {
	r := &Result{Reports: []*types.Report{nil}}
	assert.Equal(t, Totals{}, r.Totals())
	assert.False(t, r.DryRun())
}

func TestResult_DryRun(t *testing.T) {
	r := sampleResult()
	assert.False(t, r.DryRun())

	r.Reports[1].DryRun = true
	assert.True(t, r.DryRun())
}

func TestResult_Visible(t *testing.T) {
	r := sampleResult()
	assert.Len(t, r.visible(r.Reports[0]), 2)

	r.Verbose = true
	assert.Len(t, r.visible(r.Reports[0]), 3)
}

func TestRegistry(t *testing.T) {
	reg := NewRegistry()
	reg.Register("plain", func() Formatter { return &PlainFormatter{} })

	f, err := reg.Get("plain")
	require.NoError(t, err)
	assert.IsType(t, &PlainFormatter{}, f)

	_, err = reg.Get("nope")
	assert.Error(t, err)
	assert.Equal(t, []string{"plain"}, reg.Available())
}

func TestDefaultRegistry(t *testing.T) {
	assert.Equal(t, []string{"json", "null", "paths", "plain", "pretty", "yaml"}, Available())

	for _, name := range Available() {
		f, err := Get(name)
		require.NoError(t, err, name)

		var buf bytes.Buffer
		require.NoError(t, f.Format(&buf, sampleResult()), name)
		require.NoError(t, f.Format(&buf, &Result{}), name)
	}
}
