package pager

import (
	"fmt"
	"os"
	"sync"
)

// ───────────────────────────────────────────────────────────────────────────
// Page reader
// ───────────────────────────────────────────────────────────────────────────
//
// PageReader is the resource-wide I/O layer: it owns the open database
// file and holds the BufferManager (the injected shared one, or a private
// one it created), and is the thing every
// PageReadTransaction ultimately asks for a page once its own cache and the
// transaction log overlay have both missed. Allocation, dirty tracking,
// write-ahead logging, and checkpointing — everything the teacher's Pager
// does on the write path — do not apply to a read-only engine and are not
// modeled here.

// PageReaderConfig configures a PageReader.
type PageReaderConfig struct {
	DBPath        string
	PageSize      int
	MaxCachePages int // buffer manager capacity (0 = default 1024), only used if BufferManager is nil

	// BufferManager, when set, is shared across every PageReader (and so
	// every PageReadTransaction) opened against the same resource: per
	// spec §5, concurrent read transactions on one resource share the
	// buffer manager and the underlying file, each with its own Reader
	// handle. The caller owns its lifetime; OpenPageReader never closes
	// it. When nil, OpenPageReader falls back to a private, unshared
	// BufferManager sized by MaxCachePages.
	BufferManager *BufferManager
}

// PageReader manages read-only, cached page-level I/O for one resource.
type PageReader struct {
	mu       sync.RWMutex
	file     *os.File
	bufmgr   *BufferManager
	up       *UberPage
	pageSize int
	path     string
	closed   bool
}

// OpenPageReader opens an existing resource database file read-only.
// Unlike the teacher's OpenPager, it never creates a new file: a
// page-read transaction operates on an already-written resource.
func OpenPageReader(cfg PageReaderConfig) (*PageReader, error) {
	ps := cfg.PageSize
	if ps == 0 {
		ps = DefaultPageSize
	}

	f, err := os.OpenFile(cfg.DBPath, os.O_RDONLY, 0)
	if err != nil {
		return nil, fmt.Errorf("open resource file: %w", err)
	}

	bufmgr := cfg.BufferManager
	if bufmgr == nil {
		bufmgr = NewBufferManager(BufferManagerConfig{MaxPages: cfg.MaxCachePages})
	}

	pr := &PageReader{
		file:     f,
		pageSize: ps,
		path:     cfg.DBPath,
		bufmgr:   bufmgr,
	}

	up, err := pr.readUberPage()
	if err != nil {
		f.Close()
		return nil, err
	}
	pr.up = up
	pr.pageSize = int(up.PageSize) // honour the on-disk page size

	return pr, nil
}

func (pr *PageReader) readUberPage() (*UberPage, error) {
	buf := make([]byte, pr.pageSize)
	if _, err := pr.file.ReadAt(buf, 0); err != nil {
		return nil, fmt.Errorf("read uber page: %w", err)
	}
	return UnmarshalUberPage(buf)
}

// readPageRaw reads a page directly from the database file, bypassing the
// buffer manager, and verifies its CRC.
func (pr *PageReader) readPageRaw(id PageID) ([]byte, error) {
	buf := make([]byte, pr.pageSize)
	off := int64(id) * int64(pr.pageSize)
	if _, err := pr.file.ReadAt(buf, off); err != nil {
		return nil, fmt.Errorf("%w: read page %d: %v", ErrCacheLoad, id, err)
	}
	if err := VerifyPageCRC(buf); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCacheLoad, err)
	}
	return buf, nil
}

// ReadPage returns a page by its persistent ID, consulting the shared
// buffer manager first. The page is pinned; callers must call UnpinPage.
func (pr *PageReader) ReadPage(id PageID) ([]byte, error) {
	pr.mu.RLock()
	defer pr.mu.RUnlock()
	if pr.closed {
		return nil, ErrClosed
	}
	if id == InvalidPageID {
		return nil, fmt.Errorf("%w: page 0 is not readable through ReadPage, use UberPage", ErrInvalidArgument)
	}

	if buf, ok := pr.bufmgr.Get(id); ok {
		return buf, nil
	}
	buf, err := pr.readPageRaw(id)
	if err != nil {
		return nil, err
	}
	pr.bufmgr.Put(id, buf)
	return buf, nil
}

// UnpinPage releases a page previously returned by ReadPage.
func (pr *PageReader) UnpinPage(id PageID) {
	pr.bufmgr.Unpin(id)
}

// UberPage returns a copy of the parsed uber page.
func (pr *PageReader) UberPage() UberPage {
	pr.mu.RLock()
	defer pr.mu.RUnlock()
	return *pr.up
}

// PageSize returns the configured page size.
func (pr *PageReader) PageSize() int { return pr.pageSize }

// Path returns the resource database file path.
func (pr *PageReader) Path() string { return pr.path }

// BufferManager exposes the shared cache, for sweep.go and diagnostics.
func (pr *PageReader) BufferManager() *BufferManager { return pr.bufmgr }

// Close closes the underlying file. It performs no flush: there is nothing
// dirty in a read-only engine.
func (pr *PageReader) Close() error {
	pr.mu.Lock()
	defer pr.mu.Unlock()
	if pr.closed {
		return nil
	}
	pr.closed = true
	return pr.file.Close()
}
