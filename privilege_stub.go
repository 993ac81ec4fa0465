//go:build !linux

package main

import "errors"

func elevatePrivileges() error {
	return &PrivilegeError{Err: errors.New("privilege elevation is only supported on linux")}
}
