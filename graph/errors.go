package graph

import "fmt"

// InvalidRootError is raised when the supplied root is not a directory or
// the image description cannot be parsed at all.
type InvalidRootError struct {
	Root string
	Err  error
}

func (e *InvalidRootError) Error() string {
	return fmt.Sprintf("invalid root %q: %v", e.Root, e.Err)
}

func (e *InvalidRootError) Unwrap() error { return e.Err }

// MetadataError is raised when the metadata of a single object could not be
// read mid-walk. It is recoverable: the walker skips the object and keeps
// going.
type MetadataError struct {
	Path string
	Err  error
}

func (e *MetadataError) Error() string {
	return fmt.Sprintf("metadata unavailable for %q: %v", e.Path, e.Err)
}

func (e *MetadataError) Unwrap() error { return e.Err }

// DecompositionError is raised when candidate extraction loses the
// correspondence between a computed component and the working graph. It
// indicates a bug, never a data problem.
type DecompositionError struct {
	Msg string
}

func (e *DecompositionError) Error() string {
	return "decomposition invariant violated: " + e.Msg
}

// InvalidTreeError is raised when a graph expected to be a tree is not one.
type InvalidTreeError struct {
	Msg string
}

func (e *InvalidTreeError) Error() string {
	return e.Msg
}
