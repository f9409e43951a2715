//go:build darwin

package timestamp

import (
	"os"
	"syscall"
	"time"
)

// accessTime returns the last access time of a file.
// On macOS, this uses Atimespec from the stat structure.
func accessTime(info os.FileInfo) time.Time {
	stat, ok := info.Sys().(*syscall.Stat_t)
	if !ok {
		return info.ModTime()
	}
	return time.Unix(stat.Atimespec.Sec, stat.Atimespec.Nsec)
}
