package output

import (
	"bytes"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"

	"github.com/jamesainslie/snsync/pkg/snsync/inventory"
	"github.com/jamesainslie/snsync/pkg/snsync/types"
)

// PrettyFormatter renders styled output for a terminal using lipgloss.
type PrettyFormatter struct{}

// Format writes the formatted output to the buffer.
func (f *PrettyFormatter) Format(w *bytes.Buffer, r *Result) error {
	for _, rep := range r.Reports {
		if rep == nil {
			continue
		}
		w.WriteString(f.formatHeader(rep))
		w.WriteString("\n")
		w.WriteString(f.formatFiles(r, rep))
	}

	if r.Inventory != nil {
		w.WriteString(f.formatInventory(r.Inventory))
	}

	if len(r.Reports) > 0 {
		w.WriteString(f.formatFooter(r))
		w.WriteString("\n")
	}

	if r.Interrupted {
		w.WriteString(WarningStyle.Bold(true).Render("Run interrupted"))
		w.WriteString("\n")
	}

	if len(r.Warnings) > 0 {
		w.WriteString(f.formatWarnings(r.Warnings))
	}

	return nil
}

func (f *PrettyFormatter) formatHeader(rep *types.Report) string {
	title := TitleStyle.Render(strings.ToUpper(string(rep.Operation)))
	route := fmt.Sprintf("%s %s %s",
		PathStyle.Render(rep.Source),
		MutedStyle.Render("->"),
		PathStyle.Render(rep.Dest))

	line := title + "  " + route
	if rep.DryRun {
		line += "  " + WarningStyle.Render("(dry run)")
	}
	return HeaderBox.Render(line)
}

func (f *PrettyFormatter) formatFiles(r *Result, rep *types.Report) string {
	files := r.visible(rep)
	if len(files) == 0 {
		return MutedStyle.Render("  Nothing to do") + "\n"
	}

	var sb strings.Builder
	for _, file := range files {
		state := StateStyle(file.State).Render(padRight(file.State.String(), 9))
		size := SizeStyle.Render(padLeft(types.FormatSize(file.Bytes), 9))
		fmt.Fprintf(&sb, "  %s %s  %s", state, size, PathStyle.Render(file.Dest))
		if file.Rule != "" {
			sb.WriteString("  " + MutedStyle.Render("["+file.Rule+"]"))
		}
		if file.ShadowedBy != "" {
			sb.WriteString("  " + WarningStyle.Render("[shadowed by "+filepath.Base(file.ShadowedBy)+"]"))
		}
		sb.WriteString("\n")
		if file.Error != "" {
			sb.WriteString("    " + ErrorStyle.Render(file.Error) + "\n")
		}
	}
	return sb.String()
}

func (f *PrettyFormatter) formatFooter(r *Result) string {
	t := r.Totals()

	parts := []string{
		counter("Copied:", t.Copied),
		counter("Converted:", t.Converted),
		counter("Imported:", t.Imported),
		counter("Skipped:", t.Skipped),
	}
	if t.Failed > 0 {
		parts = append(parts, LabelStyle.Render("Failed:")+" "+ErrorStyle.Render(fmt.Sprint(t.Failed)))
	}

	verb := "Written:"
	if r.DryRun() {
		verb = "Would write:"
	}
	parts = append(parts,
		LabelStyle.Render(verb)+" "+SizeStyle.Render(types.FormatSize(t.Bytes)),
		MutedStyle.Render("in "+formatDuration(t.Elapsed)))

	return FooterBox.Render(strings.Join(parts, "  "))
}

func (f *PrettyFormatter) formatInventory(inv *inventory.Result) string {
	var sb strings.Builder

	header := fmt.Sprintf("%s %s\n%s %s",
		LabelStyle.Render("Root:"), PathStyle.Render(inv.Root),
		LabelStyle.Render("Scanned:"),
		ValueStyle.Render(fmt.Sprintf("%s files in %s directories (%s) in %s",
			humanize.Comma(inv.Files), humanize.Comma(inv.Dirs),
			types.FormatSize(inv.Bytes), formatDuration(inv.Elapsed))))
	sb.WriteString(HeaderBox.Render(header))
	sb.WriteString("\n")

	if len(inv.Buckets) == 0 {
		sb.WriteString(MutedStyle.Render("  No files found") + "\n")
	} else {
		fmt.Fprintf(&sb, "  %s %s %s %s\n",
			TableHeaderStyle.Render(padRight("CLASS", 8)),
			TableHeaderStyle.Render(padRight("SUFFIX", 10)),
			TableHeaderStyle.Render(padLeft("FILES", 8)),
			TableHeaderStyle.Render(padLeft("SIZE", 10)))
		for _, b := range inv.Buckets {
			suffix := b.Suffix
			if suffix == "" {
				suffix = "(none)"
			}
			fmt.Fprintf(&sb, "  %s %s %s %s\n",
				classStyle(b.Class).Render(padRight(string(b.Class), 8)),
				ValueStyle.Render(padRight(suffix, 10)),
				ValueStyle.Render(padLeft(humanize.Comma(b.Files), 8)),
				SizeStyle.Render(padLeft(types.FormatSize(b.Bytes), 10)))
		}
	}

	for _, e := range inv.Errors {
		sb.WriteString(WarningStyle.Render(fmt.Sprintf("  %s: %s", e.Path, e.Error)) + "\n")
	}
	return sb.String()
}

func (f *PrettyFormatter) formatWarnings(warnings []string) string {
	var sb strings.Builder
	sb.WriteString(WarningStyle.Bold(true).Render("Warnings:"))
	sb.WriteString("\n")
	for _, warning := range warnings {
		sb.WriteString(WarningStyle.Render("  " + warning))
		sb.WriteString("\n")
	}
	return sb.String()
}

func counter(label string, n int) string {
	return LabelStyle.Render(label) + " " + ValueStyle.Render(fmt.Sprint(n))
}

func classStyle(c inventory.Class) lipgloss.Style {
	switch c {
	case inventory.ClassCopy:
		return StateStyle(types.StateCopied)
	case inventory.ClassConvert:
		return StateStyle(types.StateConverted)
	case inventory.ClassNative:
		return TitleStyle
	default:
		return MutedStyle
	}
}

func padLeft(s string, width int) string {
	if len(s) >= width {
		return s
	}
	return strings.Repeat(" ", width-len(s)) + s
}

func padRight(s string, width int) string {
	if len(s) >= width {
		return s
	}
	return s + strings.Repeat(" ", width-len(s))
}

// formatDuration formats a duration in a human-friendly way.
func formatDuration(d time.Duration) string {
	sec := d.Seconds()
	if sec < 1 {
		return fmt.Sprintf("%.0fms", sec*1000)
	}
	if sec < 60 {
		return fmt.Sprintf("%.1fs", sec)
	}
	minutes := int(sec) / 60
	seconds := int(sec) % 60
	if minutes < 60 {
		return fmt.Sprintf("%dm %ds", minutes, seconds)
	}
	return fmt.Sprintf("%dh %dm", minutes/60, minutes%60)
}

func init() {
	Register("pretty", func() Formatter {
		return &PrettyFormatter{}
	})
}

var _ Formatter = (*PrettyFormatter)(nil)
