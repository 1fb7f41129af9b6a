//go:build !windows

package core

import "golang.org/x/sys/unix"

func writable(directory string) error {
	return unix.Access(directory, unix.W_OK)
}
