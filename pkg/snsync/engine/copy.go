package engine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/cenkalti/backoff/v5"
	"github.com/jamesainslie/snsync/pkg/snsync/types"
)

// syncFile copies src to dst unless their timestamps already agree.
func (e *Engine) syncFile(ctx context.Context, src, dst string) (types.FileResult, error) {
	res := types.FileResult{Source: src, Dest: dst}

	if e.oracle.Equal(src, dst) {
		res.State = types.StateSkipped
		return res, nil
	}

	if e.dryRun {
		res.State = types.StateCopied
		res.Planned = true
		if info, err := e.fs.Stat(src); err == nil {
			res.Bytes = info.Size()
		}
		e.log.Info("would copy", "src", src, "dst", dst)
		return res, nil
	}

	n, err := e.copyWithRetry(ctx, src, dst)
	if err != nil {
		res.State = types.StateFailed
		res.Err = err
		return res, err
	}

	e.oracle.Equalize(src, dst)
	res.State = types.StateCopied
	res.Bytes = n
	e.log.Info("copied", "src", src, "dst", dst, "bytes", n)
	return res, nil
}

func (e *Engine) copyWithRetry(ctx context.Context, src, dst string) (int64, error) {
	attempt := 0
	op := func() (int64, error) {
		attempt++
		n, err := e.copyOnce(src, dst)
		if err == nil {
			return n, nil
		}
		if _, statErr := e.fs.Stat(src); errors.Is(statErr, fs.ErrNotExist) {
			return 0, backoff.Permanent(fmt.Errorf("%w: %s", ErrSourceVanished, src))
		}
		if attempt <= e.copyRetries {
			e.log.Warn("copy failed, retrying", "src", src, "dst", dst, "attempt", attempt, "error", err)
		}
		return 0, err
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = e.retryDelay

	n, err := backoff.Retry(ctx, op,
		backoff.WithBackOff(policy),
		backoff.WithMaxTries(uint(e.copyRetries+1)),
	)
	if err != nil {
		return 0, &CopyError{Source: src, Dest: dst, Err: err}
	}
	return n, nil
}

// copyOnce replaces dst with the bytes of src and applies src's permission
// bits. Removing an existing dst is best-effort.
func (e *Engine) copyOnce(src, dst string) (int64, error) {
	info, err := e.fs.Stat(src)
	if err != nil {
		return 0, err
	}

	_ = e.fs.Remove(dst)

	if err := e.fs.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return 0, fmt.Errorf("creating %s: %w", filepath.Dir(dst), err)
	}

	in, err := e.fs.Open(src)
	if err != nil {
		return 0, err
	}
	defer in.Close()

	perm := info.Mode().Perm()
	out, err := e.fs.OpenFile(dst, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, perm)
	if err != nil {
		return 0, err
	}

	n, err := io.Copy(out, in)
	if err != nil {
		_ = out.Close()
		return n, err
	}
	if err := out.Close(); err != nil {
		return n, err
	}

	// MTP mounts refuse chmod.
	if err := e.fs.Chmod(dst, perm); err != nil {
		e.log.Debug("permission write rejected", "path", dst, "error", err)
	}
	return n, nil
}
