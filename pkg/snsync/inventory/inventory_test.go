package inventory

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/jamesainslie/snsync/pkg/snsync/filter"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, path string, size int) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, make([]byte, size), 0o644))
}

func exportOptions(root string) Options {
	supported := filter.NewSuffixSet(".pdf", ".epub")
	convertible := filter.NewSuffixSet(".org")
	native := filter.NewSuffixSet(".note", ".mark")
	return Options{
		Root:        root,
		Filter:      filter.ForExport(supported, convertible, native, filter.DefaultArtifactMarkers),
		Convertible: convertible,
		Native:      native,
		Workers:     2,
	}
}

func TestTake(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "a.pdf"), 100)
	writeFile(t, filepath.Join(root, "sub", "b.pdf"), 50)
	writeFile(t, filepath.Join(root, "notes.org"), 10)
	writeFile(t, filepath.Join(root, "page.note"), 7)
	writeFile(t, filepath.Join(root, ".hidden.pdf"), 3)
	writeFile(t, filepath.Join(root, "readme.txt"), 5)

	result, err := Take(context.Background(), exportOptions(root))
	require.NoError(t, err)

	assert.Equal(t, int64(6), result.Files)
	assert.Equal(t, int64(175), result.Bytes)
	assert.Equal(t, int64(2), result.Dirs, "root and sub")

	files, bytes := result.Total(ClassCopy)
	assert.Equal(t, int64(2), files)
	assert.Equal(t, int64(150), bytes)

	files, _ = result.Total(ClassConvert)
	assert.Equal(t, int64(1), files)

	files, _ = result.Total(ClassNative)
	assert.Equal(t, int64(1), files)

	files, bytes = result.Total(ClassIgnored)
	assert.Equal(t, int64(2), files)
	assert.Equal(t, int64(8), bytes)

	var pdf *Bucket
	for i := range result.Buckets {
		if result.Buckets[i].Class == ClassCopy && result.Buckets[i].Suffix == ".pdf" {
			pdf = &result.Buckets[i]
		}
	}
	require.NotNil(t, pdf)
	assert.Equal(t, int64(2), pdf.Files)
}

func TestTake_NoFilter(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "Makefile"), 1)
	writeFile(t, filepath.Join(root, "x.txt"), 1)

	result, err := Take(context.Background(), Options{Root: root})
	require.NoError(t, err)

	files, _ := result.Total(ClassCopy)
	assert.Equal(t, int64(2), files)

	suffixes := map[string]bool{}
	for _, b := range result.Buckets {
		suffixes[b.Suffix] = true
	}
	assert.True(t, suffixes["(none)"])
	assert.True(t, suffixes[".txt"])
}

func TestTake_Errors(t *testing.T) {
	root := t.TempDir()
	file := filepath.Join(root, "f.pdf")
	writeFile(t, file, 1)

	_, err := Take(context.Background(), Options{Root: filepath.Join(root, "missing")})
	assert.True(t, errors.Is(err, os.ErrNotExist))

	_, err = Take(context.Background(), Options{Root: file})
	assert.Error(t, err)
}

func TestTake_Cancelled(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "a.pdf"), 1)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Take(ctx, Options{Root: root})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestOptionsValidate(t *testing.T) {
	opts := Options{}
	require.NoError(t, opts.Validate())
	assert.Equal(t, ".", opts.Root)
	assert.GreaterOrEqual(t, opts.Workers, 4)
}
