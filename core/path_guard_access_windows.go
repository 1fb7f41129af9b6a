//go:build windows

package core

// Windows write access is governed by ACLs that cannot be queried
// through the portable syscall surface; denial shows up when the
// staging directory is created, before any target mutation.
func writable(directory string) error {
	return nil
}
