package convert

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/jamesainslie/snsync/pkg/snsync/logging"
	"github.com/spf13/afero"
)

// Transform produces output from input inside the scratch directory dir.
type Transform func(ctx context.Context, dir, input, output string) error

// Scratch converts a copy of the source inside a private temporary directory.
// The transform must leave <stem><DestSuffix> next to the copied input; that
// file is then copied to the destination. The scratch directory is removed
// whether or not the conversion succeeds.
type Scratch struct {
	fs         afero.Fs
	destSuffix string
	transform  Transform
	log        *logging.Logger
}

// NewScratch creates a scratch-directory converter producing destSuffix files.
func NewScratch(fs afero.Fs, destSuffix string, transform Transform) *Scratch {
	return &Scratch{
		fs:         fs,
		destSuffix: destSuffix,
		transform:  transform,
		log:        logging.Get("convert"),
	}
}

// Convert implements Converter.
func (s *Scratch) Convert(ctx context.Context, src, dst string) error {
	dir, err := afero.TempDir(s.fs, "", "snsync-convert-")
	if err != nil {
		return fmt.Errorf("creating scratch directory: %w", err)
	}
	defer func() {
		if err := s.fs.RemoveAll(dir); err != nil {
			s.log.Warn("failed to remove scratch directory", "dir", dir, "error", err)
		}
	}()

	base := filepath.Base(src)
	input := filepath.Join(dir, base)
	output := filepath.Join(dir, strings.TrimSuffix(base, filepath.Ext(base))+s.destSuffix)

	if err := copyFile(s.fs, src, input); err != nil {
		return fmt.Errorf("staging %s: %w", src, err)
	}

	s.log.Debug("converting in scratch directory", "src", src, "dir", dir)
	if err := s.transform(ctx, dir, input, output); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrConversionFailed, src, err)
	}

	if _, err := s.fs.Stat(output); err != nil {
		return missingOutput(src, output)
	}

	if err := copyFile(s.fs, output, dst); err != nil {
		return fmt.Errorf("writing %s: %w", dst, err)
	}
	return nil
}
