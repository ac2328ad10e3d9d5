package pager

import "sync"

// ───────────────────────────────────────────────────────────────────────────
// Buffer manager
// ───────────────────────────────────────────────────────────────────────────
//
// BufferManager is the resource-wide (shared across all open transactions)
// page cache, the middle tier of the three-tier cache hierarchy described
// in spec §4.2–§4.4: per-transaction caches sit above it, the transaction log
// overlay sits beside it, and this is consulted whenever both of those miss.
// The eviction policy and pin-count bookkeeping are the teacher's
// PageBufferPool, carried over unchanged in spirit; only the trigger for
// eviction changed, since a read-only engine never marks a frame dirty.

// pageFrame is an in-memory cached page.
type pageFrame struct {
	id     PageID
	buf    []byte
	pinned int // pin count (>0 = cannot evict)
	prev   *pageFrame
	next   *pageFrame
}

// BufferManagerConfig configures a BufferManager.
type BufferManagerConfig struct {
	MaxPages      int // maximum number of cached pages (default 1024)
	MaxContainers int // maximum number of cached record-page containers (default 256)
}

// refKey identifies a record-page container by the coordinate it was
// reconstructed for: the leaf PageReference's persistent key plus its
// stamped LogKey (navigator.go), so two distinct trie positions that
// happen to share a persistent page (never in steady state, but possible
// mid-reconstruction-chain) don't collide in the cache.
type refKey struct {
	pageID PageID
	logKey int64
}

func keyForRef(ref *PageReference) refKey {
	return refKey{pageID: ref.Key, logKey: ref.LogKey}
}

// containerFrame is an in-memory cached reconstructed record page.
type containerFrame struct {
	key  refKey
	page *ReconstructedPage
	prev *containerFrame
	next *containerFrame
}

// BufferManager is an LRU page cache shared by every open page-read
// transaction against one resource. Besides the raw page-byte cache, it
// holds a second tier caching already-reconstructed record-page containers
// (spec §4.3's "resource-wide buffer manager" tier), so that repeated
// fragment-chain reconstruction is avoided across transactions, not just
// within one.
type BufferManager struct {
	mu       sync.Mutex
	maxPages int
	pages    map[PageID]*pageFrame
	// LRU doubly-linked list: head = most recent, tail = least recent.
	head *pageFrame
	tail *pageFrame

	maxContainers int
	containers    map[refKey]*containerFrame
	containerHead *containerFrame
	containerTail *containerFrame

	hits   int64
	misses int64
}

// NewBufferManager creates a buffer manager with the given capacity.
func NewBufferManager(cfg BufferManagerConfig) *BufferManager {
	maxPages := cfg.MaxPages
	if maxPages <= 0 {
		maxPages = 1024
	}
	maxContainers := cfg.MaxContainers
	if maxContainers <= 0 {
		maxContainers = 256
	}
	return &BufferManager{
		maxPages:      maxPages,
		pages:         make(map[PageID]*pageFrame, maxPages),
		maxContainers: maxContainers,
		containers:    make(map[refKey]*containerFrame, maxContainers),
	}
}

// Get returns the cached page image for id, pinning it, or (nil, false) on
// a miss.
func (bm *BufferManager) Get(id PageID) ([]byte, bool) {
	bm.mu.Lock()
	defer bm.mu.Unlock()
	f, ok := bm.pages[id]
	if !ok {
		bm.misses++
		return nil, false
	}
	bm.hits++
	f.pinned++
	bm.moveToFront(f)
	return f.buf, true
}

// Put inserts buf into the cache under id, evicting the least-recently-used
// unpinned frame if at capacity. The inserted frame starts pinned once, as
// if just fetched by Get.
func (bm *BufferManager) Put(id PageID, buf []byte) {
	bm.mu.Lock()
	defer bm.mu.Unlock()
	if f, exists := bm.pages[id]; exists {
		f.pinned++
		bm.moveToFront(f)
		return
	}
	for len(bm.pages) >= bm.maxPages {
		if !bm.evictOne() {
			break // all pages pinned — cannot evict
		}
	}
	f := &pageFrame{id: id, buf: buf, pinned: 1}
	bm.pages[id] = f
	bm.pushFront(f)
}

// Unpin decrements the pin count for id. A no-op if id is not cached.
func (bm *BufferManager) Unpin(id PageID) {
	bm.mu.Lock()
	defer bm.mu.Unlock()
	if f, ok := bm.pages[id]; ok && f.pinned > 0 {
		f.pinned--
	}
}

// Evict removes one unpinned frame, chosen by least-recent use. Called
// periodically by sweep.go's background sweep rather than only on insert
// pressure, so that idle capacity is reclaimed even between Gets.
func (bm *BufferManager) Evict() bool {
	bm.mu.Lock()
	defer bm.mu.Unlock()
	return bm.evictOne()
}

// evictOne removes the least-recently-used unpinned page. Caller must hold bm.mu.
func (bm *BufferManager) evictOne() bool {
	for f := bm.tail; f != nil; f = f.prev {
		if f.pinned == 0 {
			bm.unlink(f)
			delete(bm.pages, f.id)
			return true
		}
	}
	return false
}

func (bm *BufferManager) pushFront(f *pageFrame) {
	f.prev = nil
	f.next = bm.head
	if bm.head != nil {
		bm.head.prev = f
	}
	bm.head = f
	if bm.tail == nil {
		bm.tail = f
	}
}

func (bm *BufferManager) unlink(f *pageFrame) {
	if f.prev != nil {
		f.prev.next = f.next
	} else {
		bm.head = f.next
	}
	if f.next != nil {
		f.next.prev = f.prev
	} else {
		bm.tail = f.prev
	}
	f.prev = nil
	f.next = nil
}

func (bm *BufferManager) moveToFront(f *pageFrame) {
	bm.unlink(f)
	bm.pushFront(f)
}

// GetContainer returns the cached reconstructed record page for ref, or
// (nil, false) on a miss. Callers should only consult this tier when no
// writer overlay is in flight on the transaction (spec's testable property
// 6): a transaction log overlay can make the same ref resolve to different
// bytes across revisions, and the resource-wide tier has no way to tell
// those apart from a stale cache entry.
func (bm *BufferManager) GetContainer(ref *PageReference) (*ReconstructedPage, bool) {
	bm.mu.Lock()
	defer bm.mu.Unlock()
	f, ok := bm.containers[keyForRef(ref)]
	if !ok {
		return nil, false
	}
	bm.moveContainerToFront(f)
	return f.page, true
}

// PutContainer inserts a reconstructed record page into the cache under
// ref's coordinate, evicting the least-recently-used entry if at capacity.
func (bm *BufferManager) PutContainer(ref *PageReference, page *ReconstructedPage) {
	bm.mu.Lock()
	defer bm.mu.Unlock()
	key := keyForRef(ref)
	if f, exists := bm.containers[key]; exists {
		f.page = page
		bm.moveContainerToFront(f)
		return
	}
	for len(bm.containers) >= bm.maxContainers {
		bm.evictOneContainer()
	}
	f := &containerFrame{key: key, page: page}
	bm.containers[key] = f
	bm.pushContainerFront(f)
}

func (bm *BufferManager) evictOneContainer() bool {
	f := bm.containerTail
	if f == nil {
		return false
	}
	bm.unlinkContainer(f)
	delete(bm.containers, f.key)
	return true
}

func (bm *BufferManager) pushContainerFront(f *containerFrame) {
	f.prev = nil
	f.next = bm.containerHead
	if bm.containerHead != nil {
		bm.containerHead.prev = f
	}
	bm.containerHead = f
	if bm.containerTail == nil {
		bm.containerTail = f
	}
}

func (bm *BufferManager) unlinkContainer(f *containerFrame) {
	if f.prev != nil {
		f.prev.next = f.next
	} else {
		bm.containerHead = f.next
	}
	if f.next != nil {
		f.next.prev = f.prev
	} else {
		bm.containerTail = f.prev
	}
	f.prev = nil
	f.next = nil
}

func (bm *BufferManager) moveContainerToFront(f *containerFrame) {
	bm.unlinkContainer(f)
	bm.pushContainerFront(f)
}

// Stats reports cache occupancy and hit/miss counters for diagnostics.
type BufferManagerStats struct {
	CachedPages      int
	MaxPages         int
	CachedContainers int
	MaxContainers    int
	Hits             int64
	Misses           int64
}

// Stats returns a snapshot of cache statistics.
func (bm *BufferManager) Stats() BufferManagerStats {
	bm.mu.Lock()
	defer bm.mu.Unlock()
	return BufferManagerStats{
		CachedPages:      len(bm.pages),
		MaxPages:         bm.maxPages,
		CachedContainers: len(bm.containers),
		MaxContainers:    bm.maxContainers,
		Hits:             bm.hits,
		Misses:           bm.misses,
	}
}
