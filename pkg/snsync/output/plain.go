package output

import (
	"bytes"
	"fmt"
	"text/tabwriter"

	"github.com/jamesainslie/snsync/pkg/snsync/types"
)

// PlainFormatter writes an unstyled, tab-aligned table suitable for piping.
type PlainFormatter struct{}

// Format writes the formatted output to the buffer.
func (f *PlainFormatter) Format(w *bytes.Buffer, r *Result) error {
	tw := tabwriter.NewWriter(w, 0, 0, 1, ' ', 0)

	if len(r.Reports) > 0 {
		fmt.Fprintln(tw, "OP\tSTATE\tSIZE\tSOURCE\tDEST")
		for _, rep := range r.Reports {
			if rep == nil {
				continue
			}
			for _, file := range r.visible(rep) {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
					rep.Operation, file.State, types.FormatSize(file.Bytes), file.Source, file.Dest)
			}
		}
	}

	if inv := r.Inventory; inv != nil {
		fmt.Fprintln(tw, "CLASS\tSUFFIX\tFILES\tSIZE")
		for _, b := range inv.Buckets {
			fmt.Fprintf(tw, "%s\t%s\t%d\t%s\n", b.Class, b.Suffix, b.Files, types.FormatSize(b.Bytes))
		}
	}

	if err := tw.Flush(); err != nil {
		return err
	}

	if len(r.Reports) > 0 {
		t := r.Totals()
		fmt.Fprintf(w, "copied=%d converted=%d imported=%d skipped=%d failed=%d bytes=%d\n",
			t.Copied, t.Converted, t.Imported, t.Skipped, t.Failed, t.Bytes)
	}
	for _, warning := range r.Warnings {
		fmt.Fprintf(w, "warning: %s\n", warning)
	}
	return nil
}

func init() {
	Register("plain", func() Formatter {
		return &PlainFormatter{}
	})
}

var _ Formatter = (*PlainFormatter)(nil)
