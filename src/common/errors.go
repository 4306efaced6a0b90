package common

import "github.com/pkg/errors"

// Storage error taxonomy. ErrPageFull is local to the page layer: the heap
// and the index entry log handle it by allocating a fresh page, so it never
// reaches callers of those layers. Everything else propagates.
var (
	// ErrOutOfRange: page id beyond the end of the file.
	ErrOutOfRange = errors.New("page id out of range")

	// ErrPageFull: not enough contiguous space for the record plus one slot.
	ErrPageFull = errors.New("page full")

	// ErrPoolExhausted: every frame pinned, nothing evictable.
	ErrPoolExhausted = errors.New("buffer pool exhausted")

	// ErrPageFormat: header tag or slot directory inconsistent with the
	// expected layout.
	ErrPageFormat = errors.New("bad page format")

	// ErrAllocation: extending the underlying file failed.
	ErrAllocation = errors.New("page allocation failed")
)
