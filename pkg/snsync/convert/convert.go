// Package convert turns a source document into a different format on its way
// to the destination tree.
//
// A Converter produces exactly one output file at the requested destination
// path. Converters may use private scratch storage, but never inside the
// destination tree, and must report a missing output as ErrConversionFailed.
package convert

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/afero"
)

// ErrConversionFailed is returned when a converter did not produce its output.
var ErrConversionFailed = errors.New("conversion failed")

// Converter converts the file at src into a new file at dst.
type Converter interface {
	Convert(ctx context.Context, src, dst string) error
}

// Func adapts a function to the Converter interface.
type Func func(ctx context.Context, src, dst string) error

// Convert calls f.
func (f Func) Convert(ctx context.Context, src, dst string) error {
	return f(ctx, src, dst)
}

// missingOutput wraps ErrConversionFailed for an output that does not exist.
func missingOutput(src, output string) error {
	return fmt.Errorf("%w: converting %s produced no file at %s", ErrConversionFailed, src, output)
}

// copyFile replaces dst with the bytes of src, creating dst's parent
// directories. An existing dst is removed first rather than truncated in
// place; removal is best-effort.
func copyFile(fs afero.Fs, src, dst string) error {
	in, err := fs.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	_ = fs.Remove(dst)

	if err := fs.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return fmt.Errorf("creating %s: %w", filepath.Dir(dst), err)
	}

	out, err := fs.OpenFile(dst, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		return err
	}
	return out.Close()
}
