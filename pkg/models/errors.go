package models

import "errors"

// Common errors for pipeline and image store operations.
var (
	// Image errors
	ErrImageNotFound      = errors.New("image not found")
	ErrInvalidUUID        = errors.New("invalid image uuid")
	ErrInputImageNotFound = errors.New("input image not found")
	ErrInputImageExists   = errors.New("input image already exists")

	// Block errors
	ErrBlockNotFound     = errors.New("block not found")
	ErrBlockTypeNotFound = errors.New("block type not found")
	ErrBlockTypeExists   = errors.New("block type already exists")
	ErrTerminalNotFound  = errors.New("project has no terminal block")

	// Evaluation errors
	ErrCycleDetected    = errors.New("cycle detected in block connections")
	ErrNoInputs         = errors.New("block has no inputs")
	ErrBadArity         = errors.New("block has unexpected input arity")
	ErrBadTemplate      = errors.New("parameter template has more placeholders than gui fields")
	ErrExecFailed       = errors.New("block command failed")
	ErrMissingInputFile = errors.New("input image file missing")

	// Cache errors
	ErrCacheEntryNotFound = errors.New("cache entry not found")

	// Thumbnail errors
	ErrInvalidWidth = errors.New("invalid thumbnail width")
)
