package engine

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/jamesainslie/snsync/pkg/snsync/convert"
	"github.com/jamesainslie/snsync/pkg/snsync/device"
	"github.com/jamesainslie/snsync/pkg/snsync/filter"
	"github.com/jamesainslie/snsync/pkg/snsync/pathmap"
	"github.com/jamesainslie/snsync/pkg/snsync/types"
	"github.com/jamesainslie/snsync/pkg/snsync/walker"
)

// fileFunc handles one walked file already mapped onto the destination tree.
type fileFunc func(ctx context.Context, src, dst string) (types.FileResult, error)

// run walks srcRoot through f, mapping each file under dstRoot and handing it
// to handle. The first error ends the run; the partial report is returned
// with it.
func (e *Engine) run(ctx context.Context, op types.Operation, srcRoot, dstRoot string, f filter.Filter, handle fileFunc) (*types.Report, error) {
	report := types.NewReport(op, srcRoot, dstRoot, e.dryRun)
	defer report.Finish()

	if p, ok := f.(interface{ Policy() filter.Policy }); ok {
		report.Policy = p.Policy().String()
	}

	e.log.Info("sync started", "operation", op, "src", srcRoot, "dst", dstRoot, "policy", report.Policy, "dry_run", e.dryRun)

	for path, err := range walker.Walk(e.fs, srcRoot, f) {
		if err != nil {
			return report, err
		}
		if err := ctx.Err(); err != nil {
			return report, err
		}

		dst, err := pathmap.Map(srcRoot, path, dstRoot)
		if err != nil {
			return report, err
		}

		res, err := handle(ctx, path, dst)
		e.record(report, res)
		if err != nil {
			e.log.Error("sync aborted", "operation", op, "src", path, "error", err)
			return report, err
		}
	}

	e.log.Info("sync finished", "operation", op, "changed", report.Changed(), "skipped", report.Count(types.StateSkipped))
	return report, nil
}

// Export pushes files under srcRoot that pass f to dstRoot. Files matching a
// registry rule are converted and take the rule's destination suffix; all
// others are copied verbatim.
//
// Each destination is written by at most one source per call. A verbatim file
// that a sibling conversion would overwrite, such as notes.pdf next to
// notes.org, is skipped with ShadowedBy set, whatever the walk order. Any
// other second claim on a destination is skipped the same way.
func (e *Engine) Export(ctx context.Context, srcRoot, dstRoot string, f filter.Filter) (*types.Report, error) {
	claimed := make(map[string]string)

	return e.run(ctx, types.OpExport, srcRoot, dstRoot, f, func(ctx context.Context, src, dst string) (types.FileResult, error) {
		rule, convertible := e.registry.Lookup(src)
		if convertible {
			converted, err := pathmap.ReplaceSuffix(dst, rule.SourceSuffix, rule.DestSuffix)
			if err != nil {
				return types.FileResult{Source: src, Dest: dst, State: types.StateFailed, Err: err}, err
			}
			dst = converted
		} else if origin, ok := e.convertedSibling(src, f); ok {
			return e.shadowed(src, dst, origin), nil
		}

		if owner, ok := claimed[dst]; ok {
			return e.shadowed(src, dst, owner), nil
		}
		claimed[dst] = src

		if convertible {
			return e.convertFile(ctx, src, dst, rule.Converter, types.StateConverted, rule.String())
		}
		return e.syncFile(ctx, src, dst)
	})
}

// convertedSibling returns the source file whose conversion produces the same
// name as src, if it exists and passes f.
func (e *Engine) convertedSibling(src string, f filter.Filter) (string, bool) {
	for _, rule := range e.registry.Rules() {
		if !strings.HasSuffix(src, rule.DestSuffix) {
			continue
		}
		sibling := strings.TrimSuffix(src, rule.DestSuffix) + rule.SourceSuffix
		info, err := e.fs.Stat(sibling)
		if err != nil || info.IsDir() {
			continue
		}
		if f != nil && len(f.Exclude(filepath.Dir(sibling), []string{filepath.Base(sibling)})) > 0 {
			continue
		}
		return sibling, true
	}
	return "", false
}

func (e *Engine) shadowed(src, dst, owner string) types.FileResult {
	e.log.Warn("skipping file whose destination is written by another source", "src", src, "dst", dst, "owner", owner)
	return types.FileResult{Source: src, Dest: dst, State: types.StateSkipped, ShadowedBy: owner}
}

// Backup copies the device's native notebooks and annotation files from
// deviceRoot to localRoot.
func (e *Engine) Backup(ctx context.Context, deviceRoot, localRoot string) (*types.Report, error) {
	f := filter.ForBackup(device.NativeSuffixes())
	return e.run(ctx, types.OpBackup, deviceRoot, localRoot, f, e.syncFile)
}

// Import renders the device's notebooks under deviceRoot as PDFs under
// localRoot using conv.
func (e *Engine) Import(ctx context.Context, deviceRoot, localRoot string, conv convert.Converter) (*types.Report, error) {
	f := filter.ForImport(device.NoteSuffix)
	rule := device.NoteSuffix + " -> " + device.PDFSuffix
	return e.run(ctx, types.OpImport, deviceRoot, localRoot, f, func(ctx context.Context, src, dst string) (types.FileResult, error) {
		pdf, err := pathmap.ReplaceSuffix(dst, device.NoteSuffix, device.PDFSuffix)
		if err != nil {
			return types.FileResult{Source: src, Dest: dst, State: types.StateFailed, Err: err}, err
		}
		return e.convertFile(ctx, src, pdf, conv, types.StateImported, rule)
	})
}

// convertFile converts src to dst with conv unless their timestamps agree.
// done is the state reported on success.
func (e *Engine) convertFile(ctx context.Context, src, dst string, conv convert.Converter, done types.State, rule string) (types.FileResult, error) {
	res := types.FileResult{Source: src, Dest: dst, Rule: rule}

	if e.oracle.Equal(src, dst) {
		res.State = types.StateSkipped
		return res, nil
	}

	if e.dryRun {
		res.State = done
		res.Planned = true
		e.log.Info("would convert", "src", src, "dst", dst, "rule", rule)
		return res, nil
	}

	fail := func(err error) (types.FileResult, error) {
		res.State = types.StateFailed
		res.Err = err
		return res, err
	}

	if err := conv.Convert(ctx, src, dst); err != nil {
		return fail(err)
	}

	info, err := e.fs.Stat(dst)
	if err != nil {
		return fail(fmt.Errorf("%w: %s missing after conversion", convert.ErrConversionFailed, dst))
	}

	e.oracle.Equalize(src, dst)
	res.State = done
	res.Bytes = info.Size()
	e.log.Info("converted", "src", src, "dst", dst, "rule", rule)
	return res, nil
}
