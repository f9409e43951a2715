//go:build !darwin && !linux

package timestamp

import (
	"os"
	"time"
)

// accessTime falls back to the modification time on unsupported platforms.
func accessTime(info os.FileInfo) time.Time {
	return info.ModTime()
}
