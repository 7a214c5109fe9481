package errors

import "errors"

// Configuration errors.
var (
	ErrEmptyPath       = errors.New("path must not be empty")
	ErrInvalidInterval = errors.New("sync interval must be positive")
	ErrNestedPaths     = errors.New("source and replica directories must not overlap")
)

// Replica path errors.
var (
	ErrPathTraversal = errors.New("path resolves outside the replica directory")
)
