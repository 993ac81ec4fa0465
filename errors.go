package main

import "fmt"

// PrivilegeError is raised when elevation to read a live mount failed. It is
// fatal: no partial graph is ever produced after it.
type PrivilegeError struct {
	Err error
}

func (e *PrivilegeError) Error() string {
	return fmt.Sprintf("must have root privileges to read from a mount point: %v", e.Err)
}

func (e *PrivilegeError) Unwrap() error { return e.Err }
