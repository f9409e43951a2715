// Package timestamp decides whether two files are already in sync by comparing
// modification times, and records a completed transfer by making them equal.
//
// The device filesystem loses timestamp precision and may refuse metadata
// writes entirely, so comparisons use a fixed tolerance and equalization is
// best-effort in both directions.
package timestamp

import (
	"time"

	"github.com/jamesainslie/snsync/pkg/snsync/logging"
	"github.com/spf13/afero"
)

// Tolerance is the maximum modification time difference at which two files
// are still considered equal.
const Tolerance = 10 * time.Second

// Oracle compares and equalizes modification times on a filesystem.
type Oracle struct {
	fs  afero.Fs
	log *logging.Logger
}

// New creates an Oracle backed by fs.
func New(fs afero.Fs) *Oracle {
	return &Oracle{
		fs:  fs,
		log: logging.Get("timestamp"),
	}
}

// Equal reports whether a and b both exist and their modification times differ
// by strictly less than Tolerance.
func (o *Oracle) Equal(a, b string) bool {
	infoA, err := o.fs.Stat(a)
	if err != nil {
		return false
	}
	infoB, err := o.fs.Stat(b)
	if err != nil {
		return false
	}

	o.log.Debug("comparing mtimes", "a", a, "a_mtime", infoA.ModTime(), "b", b, "b_mtime", infoB.ModTime())
	return Within(infoA.ModTime(), infoB.ModTime())
}

// Within reports whether two times differ by strictly less than Tolerance.
func Within(a, b time.Time) bool {
	diff := a.Sub(b)
	if diff < 0 {
		diff = -diff
	}
	return diff < Tolerance
}

// Equalize gives b the access and modification times of a, then gives a the
// times b ended up with. If the write to b is rejected, a adopts b's current
// times instead, so the pair still compares equal on the next run.
// Failures are logged and never returned.
func (o *Oracle) Equalize(a, b string) {
	o.copyTimes(a, b)
	o.copyTimes(b, a)
}

func (o *Oracle) copyTimes(from, to string) {
	info, err := o.fs.Stat(from)
	if err != nil {
		o.log.Debug("cannot stat timestamp reference", "path", from, "error", err)
		return
	}
	if err := o.fs.Chtimes(to, accessTime(info), info.ModTime()); err != nil {
		o.log.Debug("timestamp write rejected", "path", to, "error", err)
	}
}
