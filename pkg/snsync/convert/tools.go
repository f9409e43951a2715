package convert

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/jamesainslie/snsync/pkg/snsync/runner"
	"github.com/spf13/afero"
)

// Default external programs.
const (
	DefaultEmacs         = "emacs"
	DefaultSupernoteTool = "supernote-tool"
)

// OrgToPDF exports Org documents to PDF with Emacs' LaTeX exporter. The export
// runs on a scratch copy so LaTeX byproducts never land in the source tree.
func OrgToPDF(fs afero.Fs, r runner.Runner, emacs string) *Scratch {
	if emacs == "" {
		emacs = DefaultEmacs
	}
	return NewScratch(fs, ".pdf", func(ctx context.Context, _, input, _ string) error {
		return r.Run(ctx, emacs, "-Q", "--batch", input, "-f", "org-latex-export-to-pdf")
	})
}

// External converts by running a program that writes dst directly.
type External struct {
	fs     afero.Fs
	runner runner.Runner
	name   string
	args   func(src, dst string) []string
}

// Convert implements Converter.
func (e *External) Convert(ctx context.Context, src, dst string) error {
	if err := e.fs.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return fmt.Errorf("creating %s: %w", filepath.Dir(dst), err)
	}
	if err := e.runner.Run(ctx, e.name, e.args(src, dst)...); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrConversionFailed, src, err)
	}
	if _, err := e.fs.Stat(dst); err != nil {
		return missingOutput(src, dst)
	}
	return nil
}

// NoteToPDF renders Supernote notebooks, annotations included, as PDF using
// supernote-tool.
func NoteToPDF(fs afero.Fs, r runner.Runner, tool string) *External {
	if tool == "" {
		tool = DefaultSupernoteTool
	}
	return &External{
		fs:     fs,
		runner: r,
		name:   tool,
		args: func(src, dst string) []string {
			return []string{"convert", "-t", "pdf", "-a", src, dst}
		},
	}
}

// Ensure implementations satisfy Converter.
var (
	_ Converter = (*Scratch)(nil)
	_ Converter = (*External)(nil)
	_ Converter = Func(nil)
)
