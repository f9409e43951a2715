//go:build unix

package device

import "golang.org/x/sys/unix"

// checkReadable asks the kernel whether the directory can be listed.
func checkReadable(path string) error {
	return unix.Access(path, unix.R_OK|unix.X_OK)
}
