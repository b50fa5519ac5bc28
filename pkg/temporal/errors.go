// Package temporal implements the paper/year-partitioned version-event index
package temporal

import "errors"

var (
	// ErrNotFound indicates no event matches the requested timestamp
	ErrNotFound = errors.New("temporal: version not found")

	// ErrCorrupted indicates a partition record failed its checksum
	ErrCorrupted = errors.New("temporal: corrupted record")

	// ErrTruncated indicates a torn record at the partition tail
	ErrTruncated = errors.New("temporal: truncated record")
)
