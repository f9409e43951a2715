package output

import (
	"bytes"

	"github.com/jamesainslie/snsync/pkg/snsync/types"
)

// PathsFormatter writes the destination path of every written file, one
// per line, for piping to other tools.
type PathsFormatter struct{}

// Format writes the formatted output to the buffer.
func (f *PathsFormatter) Format(w *bytes.Buffer, r *Result) error {
	writePaths(w, r, '\n')
	return nil
}

// NullFormatter is PathsFormatter with NUL separators, for xargs -0.
type NullFormatter struct{}

// Format writes the formatted output to the buffer.
func (f *NullFormatter) Format(w *bytes.Buffer, r *Result) error {
	writePaths(w, r, 0)
	return nil
}

func writePaths(w *bytes.Buffer, r *Result, sep byte) {
	for _, rep := range r.Reports {
		if rep == nil {
			continue
		}
		for _, file := range rep.Files {
			if file.State == types.StateSkipped || file.State == types.StateFailed {
				continue
			}
			w.WriteString(file.Dest)
			w.WriteByte(sep)
		}
	}
}

func init() {
	Register("paths", func() Formatter {
		return &PathsFormatter{}
	})
	Register("null", func() Formatter {
		return &NullFormatter{}
	})
}

var (
	_ Formatter = (*PathsFormatter)(nil)
	_ Formatter = (*NullFormatter)(nil)
)
