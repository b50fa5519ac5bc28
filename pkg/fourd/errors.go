package fourd

import "errors"

var (
	// ErrNotFound indicates no object exists for a data ID
	ErrNotFound = errors.New("fourd: object not found")

	// ErrFilterMismatch indicates stored metadata disagrees with a
	// caller-supplied timestamp or coordinate filter
	ErrFilterMismatch = errors.New("fourd: filter mismatch")
)
