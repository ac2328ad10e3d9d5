package pager

import (
	"fmt"
	"path/filepath"
)

// ───────────────────────────────────────────────────────────────────────────
// Page-read transaction
// ───────────────────────────────────────────────────────────────────────────
//
// PageReadTransaction is the public entry point of this package: it opens a
// resource at a fixed revision and lets a caller resolve document node
// records, walking uber page → revision root → index trie → record-page
// fragment chain on demand. It owns the per-transaction cache tiers
// described in spec §4.4 and implements Navigator's Dereferencer by trying
// them in order, then falling through to the resource-wide BufferManager's
// own two tiers. This mirrors the teacher's PageBackend bootstrap sequence
// in backend.go (open pager, begin tx, resolve root), generalized from a
// mutable catalog-backed B+Tree store to a fixed, versioned, read-only page
// graph.
type PageReadTransaction struct {
	reader     *PageReader
	txlogs     [2]*TxLog // index by LogFileKind; nil if no in-flight writer overlay
	txcache    *TxContainerCache
	nav        *Navigator
	revision   uint64
	root       *RevisionRootPage
	indexDefs  *IndexDefinitions
	policy     VersioningPolicy
	maxFragments int

	closed bool
}

// PageReadTransactionConfig configures how a resource is opened for reading.
type PageReadTransactionConfig struct {
	ResourcePath  string // directory containing the resource's data file and log/ subdir
	Revision      uint64 // 0 means "most recent committed revision"
	PageSize      int
	MaxCachePages int
	TxCache       TxContainerCacheConfig

	// BufferManager, when set, is the resource-wide cache shared across
	// every transaction opened against ResourcePath (spec §5). The caller
	// (e.g. cmd/arbor-gateway's gateway struct) owns one instance per
	// resource and injects it here. When nil, OpenPageReader creates a
	// private BufferManager used by this transaction alone.
	BufferManager *BufferManager

	// ResourceConfig supplies the versioning policy and RevisionsToRestore
	// ceiling used when reconstructing record pages. Defaults to
	// DefaultResourceConfig() if left zero-valued.
	ResourceConfig ResourceConfig
}

// OpenPageReadTransaction opens a resource and binds a transaction to a
// specific (or the latest committed) revision.
func OpenPageReadTransaction(cfg PageReadTransactionConfig) (*PageReadTransaction, error) {
	reader, err := OpenPageReader(PageReaderConfig{
		DBPath:        filepath.Join(cfg.ResourcePath, "resource.db"),
		PageSize:      cfg.PageSize,
		MaxCachePages: cfg.MaxCachePages,
		BufferManager: cfg.BufferManager,
	})
	if err != nil {
		return nil, err
	}

	up := reader.UberPage()
	revision := cfg.Revision
	if revision == 0 {
		revision = up.LastCommittedRev
	}
	if revision > up.LastCommittedRev {
		reader.Close()
		return nil, fmt.Errorf("%w: revision %d has not been committed (latest is %d)", ErrInvalidArgument, revision, up.LastCommittedRev)
	}

	resCfg := cfg.ResourceConfig
	if resCfg.RevisionsToRestore <= 0 {
		resCfg = DefaultResourceConfig()
	}

	indexDefs, err := LoadIndexDefinitions(filepath.Join(cfg.ResourcePath, "INDEXES", fmt.Sprintf("%d.xml", revision)))
	if err != nil {
		reader.Close()
		return nil, fmt.Errorf("open revision %d: %w", revision, err)
	}

	tx := &PageReadTransaction{
		reader:       reader,
		txcache:      NewTxContainerCache(cfg.TxCache),
		revision:     revision,
		indexDefs:    indexDefs,
		policy:       resCfg.ParsedVersioningPolicy(),
		maxFragments: resCfg.RevisionsToRestore,
	}
	tx.nav = NewNavigator(tx, up.ShiftTable)

	// An in-flight writer overlay only ever applies to the *next*,
	// not-yet-committed revision; a transaction bound to an older,
	// already-committed revision never needs to consult it.
	if revision == up.LastCommittedRev {
		for _, kind := range []LogFileKind{LogFileKindPage, LogFileKindNode} {
			path := filepath.Join(cfg.ResourcePath, "log", fmt.Sprintf("%d.%s.log", revision+1, kind.suffix()))
			tl, err := OpenTxLog(path, reader.PageSize())
			if err == nil {
				tx.txlogs[kind] = tl
			}
			// A missing log file means no in-flight writer; any other
			// error is swallowed here too, since a page-read transaction
			// degrades gracefully to "no overlay" rather than failing to
			// open on a corrupt, irrelevant sibling file.
		}
	}

	root, err := tx.nav.ResolveRevisionRoot(&up, revision)
	if err != nil {
		reader.Close()
		return nil, fmt.Errorf("open revision %d: %w", revision, err)
	}
	tx.root = root

	return tx, nil
}

// Revision returns the revision number this transaction is bound to.
func (tx *PageReadTransaction) Revision() uint64 { return tx.revision }

// RevisionRoot returns the bound revision's root page.
func (tx *PageReadTransaction) RevisionRoot() *RevisionRootPage { return tx.root }

// IndexDefinitions returns the secondary-index configuration active for
// this transaction's bound revision.
func (tx *PageReadTransaction) IndexDefinitions() *IndexDefinitions { return tx.indexDefs }

// writerPresent reports whether an in-flight writer overlay applies to this
// transaction. The resource-wide buffer manager's container-cache tier must
// never be consulted while one is present (spec's testable property 6):
// the overlay can make the very same PageReference resolve to different
// bytes than another concurrent reader without an overlay would see, and
// the shared tier has no way to key around that.
func (tx *PageReadTransaction) writerPresent() bool {
	for _, tl := range tx.txlogs {
		if tl != nil {
			return true
		}
	}
	return false
}

// GetRecord resolves a document node by its record key within the primary
// record index.
func (tx *PageReadTransaction) GetRecord(nodeKey uint64) (*Record, error) {
	return tx.getRecord(IndexKindDocument, 0, nodeKey)
}

// GetIndexRecord resolves a record key within one of the revision's
// secondary index tries, for callers (cmd/arbor-gateway) that need access
// to a named index rather than the primary document tree. index selects
// which index of the given kind to use when a resource configures more
// than one (e.g. two CAS indexes over different paths); see
// IndexDefinitions.
func (tx *PageReadTransaction) GetIndexRecord(kind IndexKind, index int, key uint64) (*Record, error) {
	return tx.getRecord(kind, index, key)
}

func (tx *PageReadTransaction) getRecord(kind IndexKind, index int, key uint64) (*Record, error) {
	if tx.closed {
		return nil, ErrClosed
	}
	leafRef, err := tx.nav.ResolveRecordPageRef(tx.root, kind, index, key)
	if err != nil {
		return nil, err
	}

	if cached, ok := tx.txcache.Get(leafRef.LogKey); ok {
		return recordFromContainer(cached, key)
	}

	bufmgr := tx.reader.BufferManager()
	if !tx.writerPresent() {
		if cached, ok := bufmgr.GetContainer(leafRef); ok {
			tx.txcache.Put(leafRef.LogKey, cached)
			return recordFromContainer(cached, key)
		}
	}

	buf, err := tx.Dereference(leafRef)
	if err != nil {
		return nil, err
	}
	reconstructed, err := ReconstructRecordPage(buf, tx.LoadByID, tx.policy, tx.maxFragments)
	if err != nil {
		return nil, err
	}
	tx.txcache.Put(leafRef.LogKey, reconstructed)
	if !tx.writerPresent() {
		bufmgr.PutContainer(leafRef, reconstructed)
	}

	return recordFromContainer(reconstructed, key)
}

func recordFromContainer(page *ReconstructedPage, key uint64) (*Record, error) {
	rec, ok := page.Record(int(key % recordPageCapacity))
	if !ok {
		return nil, fmt.Errorf("%w: node %d", ErrNotFound, key)
	}
	return rec, nil
}

// Dereference resolves page bytes for a PageReference, trying in order:
// bytes already cached on the reference, the transaction log overlay (by
// persistent key, then by stamped LogKey), and finally the shared,
// CRC-verified read path.
func (tx *PageReadTransaction) Dereference(ref *PageReference) ([]byte, error) {
	if ref.Cached() != nil {
		return ref.Cached(), nil
	}
	if ref.Key != InvalidPageID {
		for _, tl := range tx.txlogs {
			if tl == nil {
				continue
			}
			if rec, ok := tl.ByPageID(ref.Key); ok {
				ref.SetCached(rec.Data)
				return rec.Data, nil
			}
		}
	}
	if ref.LogKey >= 0 {
		for _, tl := range tx.txlogs {
			if tl == nil {
				continue
			}
			if rec, ok := tl.ByLogKey(ref.LogKey); ok {
				ref.SetCached(rec.Data)
				return rec.Data, nil
			}
		}
	}
	if ref.Key == InvalidPageID {
		return nil, fmt.Errorf("%w: unresolved page reference", ErrNotFound)
	}
	buf, err := tx.reader.ReadPage(ref.Key)
	if err != nil {
		return nil, err
	}
	tx.reader.UnpinPage(ref.Key)
	ref.SetCached(buf)
	return buf, nil
}

// LoadByID loads a page by its persistent ID only, for fragment-chain walks
// in reconstruct.go that have no surrounding PageReference to consult.
func (tx *PageReadTransaction) LoadByID(id PageID) ([]byte, error) {
	for _, tl := range tx.txlogs {
		if tl == nil {
			continue
		}
		if rec, ok := tl.ByPageID(id); ok {
			return rec.Data, nil
		}
	}
	buf, err := tx.reader.ReadPage(id)
	if err != nil {
		return nil, err
	}
	tx.reader.UnpinPage(id)
	return buf, nil
}

// Close releases the transaction's resources, including the PageReader
// opened on its behalf by OpenPageReadTransaction. It never closes the
// resource-wide BufferManager, which the caller injected and owns.
func (tx *PageReadTransaction) Close() error {
	if tx.closed {
		return nil
	}
	tx.closed = true
	return tx.reader.Close()
}
