//go:build linux

package main

import (
	"os"
	"syscall"
)

// elevatePrivileges makes sure the process runs with an effective uid of
// root, which reading another user's mounted image requires.
func elevatePrivileges() error {
	if os.Geteuid() == 0 {
		return nil
	}
	if err := syscall.Seteuid(0); err != nil {
		return &PrivilegeError{Err: err}
	}
	return nil
}
