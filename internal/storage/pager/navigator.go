package pager

import "fmt"

// ───────────────────────────────────────────────────────────────────────────
// Navigator
// ───────────────────────────────────────────────────────────────────────────
//
// Navigator descends the fixed-height, fixed-fan-out page trie: from the
// uber page, through the revision-roots trie keyed by revision number, to
// one RevisionRootPage, then through one of its five index tries keyed by
// record number, to the record page (or secondary-index leaf page) holding
// the requested slot. Unlike the teacher's btree.go, there is no key
// comparison and no rebalancing: a key's bits select a child index at each
// level, so descent is always exactly len(shifts) steps, shifts coming from
// the uber page's per-kind shift table (uberpage.go) or, absent an entry
// there, a dynamically-sized default (indirectpage.go's defaultShifts).
//
// As it resolves each PageReference, the navigator stamps a LogKey onto it
// (spec §4.2/§5): the first time a reference is dereferenced within a
// transaction, its position in the trie is encoded into LogKey, so a second
// navigation that reaches the same reference (e.g. two record lookups
// sharing an ancestor indirect page) can be served from the transaction's
// own container cache instead of repeating a reconstruction.

// Dereferencer resolves page bytes for a PageReference or a raw PageID,
// applying the precedence order of PageReadTransaction.Dereference
// (transaction.go): bytes already cached on the reference, then the
// transaction log overlay, then the shared buffer manager / database file.
type Dereferencer interface {
	Dereference(ref *PageReference) ([]byte, error)
	LoadByID(id PageID) ([]byte, error)
}

// Navigator performs trie descent for one page-read transaction.
type Navigator struct {
	deref      Dereferencer
	shiftTable map[PageType][]uint8
}

// NewNavigator creates a Navigator bound to the given dereferencer and the
// uber page's shift table (nil or a kind missing from it falls back to a
// dynamically-sized default per shiftsFor).
func NewNavigator(deref Dereferencer, shiftTable map[PageType][]uint8) *Navigator {
	return &Navigator{deref: deref, shiftTable: shiftTable}
}

// shiftsFor returns the per-level shift-exponent array to use when
// descending a trie of the given kind. If the uber page carries no
// configured entry for kind, a default sized from fallbackMaxKey is used
// instead (the format's original, pre-shift-table sizing).
func (nv *Navigator) shiftsFor(kind PageType, fallbackMaxKey uint64) []uint8 {
	if shifts, ok := nv.shiftTable[kind]; ok && len(shifts) > 0 {
		return shifts
	}
	return defaultShifts(fallbackMaxKey)
}

// encodeLogKey packs a trie coordinate into the int64 LogKey tuple
// (page-kind, index, level, position) that stamp assigns (spec §4.2,
// testable property 8). kind occupies the top byte, which keeps the result
// non-negative for every real PageType so the existing "LogKey < 0 means
// unset" sentinel keeps working.
func encodeLogKey(kind PageType, index, level, position int) int64 {
	k := uint64(uint8(kind)) << 56
	idx := uint64(uint16(int16(index))) << 40
	lvl := uint64(uint8(level)) << 32
	pos := uint64(uint32(position))
	return int64(k | idx | lvl | pos)
}

// decodeLogKey is the inverse of encodeLogKey.
func decodeLogKey(logKey int64) (kind PageType, index, level, position int) {
	u := uint64(logKey)
	kind = PageType(u >> 56)
	index = int(int16(uint16(u >> 40)))
	level = int(uint8(u >> 32))
	position = int(uint32(u))
	return
}

// stamp assigns a LogKey to ref if it does not have one yet, encoding the
// reference's coordinate within the kind/index trie it was reached through.
// position is the flattened trie offset: parent-offset × fan-out +
// child-offset, accumulated by descend as it walks down.
func (nv *Navigator) stamp(ref *PageReference, kind PageType, index, level, position int) int64 {
	if ref.LogKey < 0 {
		ref.LogKey = encodeLogKey(kind, index, level, position)
	}
	return ref.LogKey
}

// descend walks len(shifts) IndirectPage levels starting from rootRef,
// using shifts to pick off fan-out digits of key at each level, and returns
// the PageReference found in the final level's slot. If any level is empty
// (IsEmpty), ErrNotFound is returned.
func (nv *Navigator) descend(rootRef *PageReference, kind PageType, index int, key uint64, shifts []uint8) (*PageReference, error) {
	if rootRef.IsEmpty() {
		return nil, fmt.Errorf("%w: empty trie root", ErrNotFound)
	}

	ref := rootRef
	position := 0
	for level, shift := range shifts {
		nv.stamp(ref, kind, index, level, position)
		buf, err := nv.deref.Dereference(ref)
		if err != nil {
			return nil, fmt.Errorf("navigator: level %d: %w", level, err)
		}
		ip, err := WrapIndirectPage(buf)
		if err != nil {
			return nil, fmt.Errorf("navigator: level %d: %w", level, err)
		}
		slot := int((key >> shift) & uint64(PageFanOut-1))
		child := ip.Slot(slot)
		if child.IsEmpty() {
			return nil, fmt.Errorf("%w: no child at level %d slot %d", ErrNotFound, level, slot)
		}
		ref = child
		position = position*PageFanOut + slot
	}
	nv.stamp(ref, kind, index, len(shifts), position)
	return ref, nil
}

// ResolveRevisionRoot descends the uber page's revision trie and returns
// the RevisionRootPage for the given revision number.
func (nv *Navigator) ResolveRevisionRoot(up *UberPage, revision uint64) (*RevisionRootPage, error) {
	rootRef := &PageReference{Key: up.RevisionRootsRef, LogKey: -1}
	shifts := nv.shiftsFor(PageTypeUber, up.LastCommittedRev)
	leafRef, err := nv.descend(rootRef, PageTypeUber, -1, revision, shifts)
	if err != nil {
		return nil, fmt.Errorf("resolve revision %d: %w", revision, err)
	}
	buf, err := nv.deref.Dereference(leafRef)
	if err != nil {
		return nil, fmt.Errorf("resolve revision %d: %w", revision, err)
	}
	return WrapRevisionRootPage(buf)
}

// resolveIndexSubtreeRoot resolves the actual trie root for one index id of
// the given kind. The primary document tree has a single root stored
// directly on the revision root. Every secondary kind (Name, PathSummary,
// CAS, Path) instead stores a "directory" page on the revision root — an
// ordinary IndirectPage whose slots are keyed by index id — so a resource
// with several named indexes of the same kind (e.g. two CAS indexes over
// different paths) can address each one independently (spec §3, §4.5).
func (nv *Navigator) resolveIndexSubtreeRoot(rr *RevisionRootPage, kind IndexKind, index int) (*PageReference, error) {
	dirRef := rr.IndexRef(kind)
	if kind == IndexKindDocument {
		return dirRef, nil
	}
	if dirRef.IsEmpty() {
		return nil, fmt.Errorf("%w: no %v index configured on revision", ErrNotFound, kind)
	}
	if index < 0 || index >= PageFanOut {
		return nil, fmt.Errorf("%w: index id %d out of range", ErrInvalidArgument, index)
	}
	nv.stamp(dirRef, kind.pageType(), -1, 0, 0)
	buf, err := nv.deref.Dereference(dirRef)
	if err != nil {
		return nil, fmt.Errorf("resolve %v index directory: %w", kind, err)
	}
	dir, err := WrapIndirectPage(buf)
	if err != nil {
		return nil, fmt.Errorf("resolve %v index directory: %w", kind, err)
	}
	root := dir.Slot(index)
	if root.IsEmpty() {
		return nil, fmt.Errorf("%w: no %v index with id %d", ErrNotFound, kind, index)
	}
	return root, nil
}

// ResolveRecordPageRef descends one of a revision root's index tries and
// returns the PageReference for the record page holding recordKey. index
// selects which index of the given kind to use (ignored for
// IndexKindDocument, which has exactly one).
func (nv *Navigator) ResolveRecordPageRef(rr *RevisionRootPage, kind IndexKind, index int, recordKey uint64) (*PageReference, error) {
	rootRef, err := nv.resolveIndexSubtreeRoot(rr, kind, index)
	if err != nil {
		return nil, err
	}
	shifts := nv.shiftsFor(kind.pageType(), rr.MaxNodeKey)
	return nv.descend(rootRef, kind.pageType(), index, recordKey/uint64(recordPageCapacity), shifts)
}

// recordPageCapacity is the number of record slots addressed by one leaf
// record page, used to translate a global record key into a trie position
// (the high-order bits select the page, as with PageFanOut elsewhere) plus
// an in-page slot (the low-order bits, applied by the caller against the
// reconstructed page).
const recordPageCapacity = 1 << 9 // 512 slots per record page
