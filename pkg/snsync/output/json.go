package output

import (
	"bytes"
	"encoding/json"
	"time"

	"github.com/jamesainslie/snsync/pkg/snsync/inventory"
	"github.com/jamesainslie/snsync/pkg/snsync/types"
)

// document is the structured form shared by the json and yaml formatters.
type document struct {
	Reports     []reportDoc       `json:"reports,omitempty" yaml:"reports,omitempty"`
	Totals      *totalsDoc        `json:"totals,omitempty" yaml:"totals,omitempty"`
	Inventory   *inventory.Result `json:"inventory,omitempty" yaml:"inventory,omitempty"`
	Warnings    []string          `json:"warnings,omitempty" yaml:"warnings,omitempty"`
	Interrupted bool              `json:"interrupted" yaml:"interrupted"`
}

type reportDoc struct {
	Operation types.Operation    `json:"operation" yaml:"operation"`
	Source    string             `json:"source" yaml:"source"`
	Dest      string             `json:"dest" yaml:"dest"`
	DryRun    bool               `json:"dry_run" yaml:"dry_run"`
	Policy    string             `json:"policy,omitempty" yaml:"policy,omitempty"`
	Started   time.Time          `json:"started" yaml:"started"`
	Elapsed   string             `json:"elapsed" yaml:"elapsed"`
	Files     []types.FileResult `json:"files" yaml:"files"`
}

type totalsDoc struct {
	Copied     int    `json:"copied" yaml:"copied"`
	Converted  int    `json:"converted" yaml:"converted"`
	Imported   int    `json:"imported" yaml:"imported"`
	Skipped    int    `json:"skipped" yaml:"skipped"`
	Failed     int    `json:"failed" yaml:"failed"`
	Bytes      int64  `json:"bytes" yaml:"bytes"`
	BytesHuman string `json:"bytes_human" yaml:"bytes_human"`
	Elapsed    string `json:"elapsed" yaml:"elapsed"`
}

func buildDocument(r *Result) document {
	doc := document{
		Inventory:   r.Inventory,
		Warnings:    r.Warnings,
		Interrupted: r.Interrupted,
	}

	for _, rep := range r.Reports {
		if rep == nil {
			continue
		}
		doc.Reports = append(doc.Reports, reportDoc{
			Operation: rep.Operation,
			Source:    rep.Source,
			Dest:      rep.Dest,
			DryRun:    rep.DryRun,
			Policy:    rep.Policy,
			Started:   rep.Started,
			Elapsed:   rep.Elapsed.String(),
			Files:     r.visible(rep),
		})
	}

	if len(doc.Reports) > 0 {
		t := r.Totals()
		doc.Totals = &totalsDoc{
			Copied:     t.Copied,
			Converted:  t.Converted,
			Imported:   t.Imported,
			Skipped:    t.Skipped,
			Failed:     t.Failed,
			Bytes:      t.Bytes,
			BytesHuman: types.FormatSize(t.Bytes),
			Elapsed:    t.Elapsed.String(),
		}
	}
	return doc
}

// JSONFormatter formats output as a single indented JSON object.
type JSONFormatter struct{}

// Format writes the formatted output to the buffer.
func (f *JSONFormatter) Format(w *bytes.Buffer, r *Result) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(buildDocument(r))
}

func init() {
	Register("json", func() Formatter {
		return &JSONFormatter{}
	})
}

var _ Formatter = (*JSONFormatter)(nil)
