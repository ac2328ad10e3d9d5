package pager

import (
	"encoding/binary"
	"fmt"
)

// ───────────────────────────────────────────────────────────────────────────
// Versioning policies
// ───────────────────────────────────────────────────────────────────────────
//
// Every record page (and secondary-index leaf page) written by the writer
// carries a FragmentKind and, unless it is a full dump, a PreviousKey
// pointing at the on-disk page holding the previous version of the very
// same logical page. Reconstructing the current version means walking that
// chain backwards to a full fragment and then replaying deltas forward —
// the generalization of the teacher's single RowVersion.NextVersion chain
// (mvcc.go) to four distinct chaining strategies, selected per resource via
// config.go's VersioningPolicy field.
//
// The two header bytes this needs are taken from the common PageHeader's
// reserved Pad field (page.go), rather than growing the header: Pad[0] is
// the FragmentKind, Pad[1:5] is the PreviousKey (PageID, little-endian).

// FragmentKind identifies how a record page's bytes relate to its
// predecessor in the version chain.
type FragmentKind uint8

const (
	// FragmentFull holds a complete, self-sufficient copy of the page.
	FragmentFull FragmentKind = iota
	// FragmentDifferential holds every record that changed since the last
	// full dump; reconstruction needs exactly two fragments.
	FragmentDifferential
	// FragmentIncremental holds only the records that changed since the
	// immediately preceding fragment; reconstruction walks the whole chain
	// back to the last full fragment.
	FragmentIncremental
	// FragmentSlidingSnapshot behaves like incremental but the writer
	// periodically folds the oldest fragments in the window into a new
	// full fragment, bounding chain length; from the reader's side it is
	// indistinguishable from incremental traversal.
	FragmentSlidingSnapshot
)

// VersioningPolicy names the versioning strategy configured for a resource
// (config.go). It decides how far reconstruct.go walks a fragment chain
// (revisionRoots); how the loaded fragments are folded together is the same
// for every policy (combineRecordPages).
type VersioningPolicy uint8

const (
	VersioningFull VersioningPolicy = iota
	VersioningDifferential
	VersioningIncremental
	VersioningSlidingSnapshot
)

func (vp VersioningPolicy) String() string {
	switch vp {
	case VersioningDifferential:
		return "differential"
	case VersioningIncremental:
		return "incremental"
	case VersioningSlidingSnapshot:
		return "sliding-snapshot"
	default:
		return "full"
	}
}

// pageFragmentKind reads the fragment tag out of a page's common header.
func pageFragmentKind(h *PageHeader) FragmentKind {
	return FragmentKind(h.Pad[0])
}

// pagePreviousKey reads the previous-fragment page pointer out of a page's
// common header. InvalidPageID means this fragment is self-sufficient
// (FragmentFull) or chain-terminal.
func pagePreviousKey(h *PageHeader) PageID {
	return PageID(binary.LittleEndian.Uint32(h.Pad[1:5]))
}

// setFragmentHeader writes fragment metadata into buf's common header,
// for tests constructing fixture version chains.
func setFragmentHeader(buf []byte, kind FragmentKind, previous PageID) {
	buf[PageHeaderSize-12] = byte(kind) // Pad[0]
	binary.LittleEndian.PutUint32(buf[PageHeaderSize-11:], uint32(previous))
	SetPageCRC(buf)
}

// revisionRoots tells reconstruct.go's chain walk whether to load one more
// fragment, given the FragmentKind tags collected so far (oldest call
// appends to the end) and the maxFragments ceiling from ResourceConfig's
// RevisionsToRestore. This is the policy hook spec §4.6 calls
// "revisionRoots": in this format a version chain is addressed by
// PageID-linked fragments rather than a separate per-revision root list, so
// the hook answers the same question — which prior fragments does this
// policy need — over that representation instead.
func (vp VersioningPolicy) revisionRoots(fragmentsSoFar []FragmentKind, maxFragments int) bool {
	if len(fragmentsSoFar) >= maxFragments {
		return false
	}
	last := fragmentsSoFar[len(fragmentsSoFar)-1]
	switch vp {
	case VersioningFull:
		// A full fragment is always self-sufficient; anything else here
		// would be a writer bug, not a reason to keep walking.
		return false
	case VersioningDifferential:
		// A differential fragment plus the one full fragment behind it is
		// always sufficient: stop as soon as we've loaded that full one.
		return last != FragmentFull
	default: // VersioningIncremental, VersioningSlidingSnapshot
		return last != FragmentFull
	}
}

// combineRecordPages merges a chain of fragments, given oldest-first, into
// one materialized page. Every policy combines the same way — later
// fragments override the slots of earlier ones — so versioning-policy
// semantics differ in which fragments revisionRoots selects, not in how
// they are folded together here.
func (vp VersioningPolicy) combineRecordPages(fragments []*RecordPage, pageType PageType) (*ReconstructedPage, error) {
	out := &ReconstructedPage{PageType: pageType, slots: make(map[int]*Record)}
	for _, rp := range fragments {
		sc := rp.SlotCount()
		for slot := 0; slot < sc; slot++ {
			if rp.IsDeleted(slot) {
				out.slots[slot] = &Record{Kind: NodeKindDeleted}
				continue
			}
			data := rp.GetRecord(slot)
			if data == nil {
				continue
			}
			rec, err := UnmarshalRecord(data)
			if err != nil {
				return nil, fmt.Errorf("combine record pages: slot %d: %w", slot, err)
			}
			rec.Key = uint64(slot)
			out.slots[slot] = rec
		}
	}
	return out, nil
}
