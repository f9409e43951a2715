package output

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/jamesainslie/snsync/pkg/snsync/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestPrettyFormatter_Reports(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, (&PrettyFormatter{}).Format(&buf, sampleResult()))
	out := buf.String()

	assert.Contains(t, out, "EXPORT")
	assert.Contains(t, out, "BACKUP")
	assert.Contains(t, out, "/media/sn/Document/org/notes.pdf")
	assert.Contains(t, out, "[.org -> .pdf]")
	assert.Contains(t, out, "device busy")
	assert.Contains(t, out, "Failed:")
	assert.Contains(t, out, "Written:")
	assert.NotContains(t, out, "old.pdf", "skipped files are hidden unless verbose")
}

func TestPrettyFormatter_VerboseAndDryRun(t *testing.T) {
	r := sampleResult()
	r.Verbose = true
	r.Reports[0].DryRun = true
	r.Warnings = []string{"timestamps not preserved"}

	var buf bytes.Buffer
	require.NoError(t, (&PrettyFormatter{}).Format(&buf, r))
	out := buf.String()

	assert.Contains(t, out, "old.pdf")
	assert.Contains(t, out, "(dry run)")
	assert.Contains(t, out, "Would write:")
	assert.Contains(t, out, "timestamps not preserved")
}

func TestPrettyFormatter_Inventory(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, (&PrettyFormatter{}).Format(&buf, &Result{Inventory: sampleInventory()}))
	out := buf.String()

	assert.Contains(t, out, "/home/user/org")
	assert.Contains(t, out, "12 files in 3 directories")
	assert.Contains(t, out, ".org")
	assert.Contains(t, out, "(none)")
	assert.NotContains(t, out, "Copied:")
}

func TestPrettyFormatter_Interrupted(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, (&PrettyFormatter{}).Format(&buf, &Result{Interrupted: true}))
	assert.Contains(t, buf.String(), "Run interrupted")
}

func TestPlainFormatter(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, (&PlainFormatter{}).Format(&buf, sampleResult()))
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")

	require.Len(t, lines, 5)
	assert.True(t, strings.HasPrefix(lines[0], "OP"))
	assert.Contains(t, lines[1], "converted")
	assert.Contains(t, lines[3], "failed")
	assert.Equal(t, "copied=1 converted=1 imported=0 skipped=1 failed=1 bytes=3072", lines[4])
}

func TestPlainFormatter_Inventory(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, (&PlainFormatter{}).Format(&buf, &Result{Inventory: sampleInventory()}))
	out := buf.String()

	assert.Contains(t, out, "CLASS")
	assert.Contains(t, out, "convert")
	assert.NotContains(t, out, "copied=")
}

func TestJSONFormatter(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, (&JSONFormatter{}).Format(&buf, sampleResult()))

	var doc struct {
		Reports []struct {
			Operation string `json:"operation"`
			Files     []struct {
				State string `json:"state"`
				Error string `json:"error"`
			} `json:"files"`
		} `json:"reports"`
		Totals struct {
			Converted  int    `json:"converted"`
			Failed     int    `json:"failed"`
			BytesHuman string `json:"bytes_human"`
		} `json:"totals"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &doc))

	require.Len(t, doc.Reports, 2)
	assert.Equal(t, "export", doc.Reports[0].Operation)
	require.Len(t, doc.Reports[0].Files, 2)
	assert.Equal(t, "converted", doc.Reports[0].Files[0].State)
	assert.Equal(t, "device busy", doc.Reports[1].Files[0].Error)
	assert.Equal(t, 1, doc.Totals.Converted)
	assert.Equal(t, 1, doc.Totals.Failed)
	assert.Equal(t, "3.0 KiB", doc.Totals.BytesHuman)
}

func TestFormatters_ShadowedFileAndPolicy(t *testing.T) {
	rep := types.NewReport(types.OpExport, "/home/user/org", "/media/sn/Document/org", false)
	rep.Policy = "export"
	rep.Add(types.FileResult{
		Source:     "/home/user/org/notes.pdf",
		Dest:       "/media/sn/Document/org/notes.pdf",
		State:      types.StateSkipped,
		ShadowedBy: "/home/user/org/notes.org",
	})
	r := &Result{Reports: []*types.Report{rep}, Verbose: true}

	var pretty bytes.Buffer
	require.NoError(t, (&PrettyFormatter{}).Format(&pretty, r))
	assert.Contains(t, pretty.String(), "[shadowed by notes.org]")

	var buf bytes.Buffer
	require.NoError(t, (&JSONFormatter{}).Format(&buf, r))

	var doc struct {
		Reports []struct {
			Policy string `json:"policy"`
			Files  []struct {
				ShadowedBy string `json:"shadowed_by"`
			} `json:"files"`
		} `json:"reports"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &doc))
	require.Len(t, doc.Reports, 1)
	assert.Equal(t, "export", doc.Reports[0].Policy)
	require.Len(t, doc.Reports[0].Files, 1)
	assert.Equal(t, "/home/user/org/notes.org", doc.Reports[0].Files[0].ShadowedBy)
}

func TestJSONFormatter_InventoryOnly(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, (&JSONFormatter{}).Format(&buf, &Result{Inventory: sampleInventory()}))

	var parsed map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &parsed))
	assert.Contains(t, parsed, "inventory")
	assert.NotContains(t, parsed, "reports")
	assert.NotContains(t, parsed, "totals")
}

func TestYAMLFormatter(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, (&YAMLFormatter{}).Format(&buf, sampleResult()))

	var doc map[string]any
	require.NoError(t, yaml.Unmarshal(buf.Bytes(), &doc))
	assert.Contains(t, doc, "reports")
	assert.Contains(t, doc, "totals")
	assert.Contains(t, buf.String(), "state: converted")
}

func TestPathsFormatter(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, (&PathsFormatter{}).Format(&buf, sampleResult()))
	assert.Equal(t,
		"/media/sn/Document/org/notes.pdf\n/media/sn/Document/org/paper.pdf\n",
		buf.String())
}

func TestNullFormatter(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, (&NullFormatter{}).Format(&buf, sampleResult()))
	assert.Equal(t,
		"/media/sn/Document/org/notes.pdf\x00/media/sn/Document/org/paper.pdf\x00",
		buf.String())
}
