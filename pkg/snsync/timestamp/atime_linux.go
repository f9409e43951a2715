//go:build linux

package timestamp

import (
	"os"
	"syscall"
	"time"
)

// accessTime returns the last access time of a file, falling back to the
// modification time when the platform stat structure is unavailable.
func accessTime(info os.FileInfo) time.Time {
	stat, ok := info.Sys().(*syscall.Stat_t)
	if !ok {
		return info.ModTime()
	}
	return time.Unix(int64(stat.Atim.Sec), int64(stat.Atim.Nsec)) //nolint:unconvert // int32 on some arches
}
