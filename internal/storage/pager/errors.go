package pager

import "fmt"

// Sentinel error kinds returned (wrapped) by this package. Callers should
// use errors.Is against these rather than comparing strings.
var (
	// ErrClosed is returned when an operation is attempted on a resource or
	// transaction that has already been closed.
	ErrClosed = fmt.Errorf("pager: closed")

	// ErrNotFound is returned when a page, record, or revision does not
	// exist at the requested key.
	ErrNotFound = fmt.Errorf("pager: not found")

	// ErrInvalidArgument is returned for malformed page sizes, negative
	// revision numbers, and similar caller errors.
	ErrInvalidArgument = fmt.Errorf("pager: invalid argument")

	// ErrCacheLoad is returned when a page load into a cache tier fails
	// for a reason other than the underlying page being absent (CRC
	// mismatch, truncated read, corrupt log record).
	ErrCacheLoad = fmt.Errorf("pager: cache load failed")
)
