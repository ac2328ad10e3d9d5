package pager

import "fmt"

// ───────────────────────────────────────────────────────────────────────────
// Fragment reconstruction
// ───────────────────────────────────────────────────────────────────────────
//
// ReconstructedPage is the materialized result of walking a record page's
// (or secondary-index leaf's) version chain: every slot holds the most
// recent Record for that position, as of the transaction's bound revision,
// regardless of how many on-disk fragments contributed to it.
type ReconstructedPage struct {
	PageType PageType
	slots    map[int]*Record
}

// Record returns the reconstructed record at slot i, or (nil, false) if the
// slot has never been occupied, or has been deleted, at this point in the
// chain.
func (rp *ReconstructedPage) Record(i int) (*Record, bool) {
	r, ok := rp.slots[i]
	if !ok || r == nil || r.IsDeleted() {
		return nil, false
	}
	return r, true
}

// SlotIndices returns every slot index touched by the chain, in no
// particular order.
func (rp *ReconstructedPage) SlotIndices() []int {
	out := make([]int, 0, len(rp.slots))
	for i := range rp.slots {
		out = append(out, i)
	}
	return out
}

// fragmentLoader fetches one on-disk or in-flight page image by PageID,
// returning its raw bytes. transaction.go supplies this
// (PageReadTransaction.LoadByID), closing over the reader/tx-log
// dereference chain; reconstruct.go stays agnostic of where bytes come from.
type fragmentLoader func(id PageID) (buf []byte, err error)

// ReconstructRecordPage walks the version chain starting at the fragment
// stored in startBuf, applying fragments oldest-to-newest, and returns the
// materialized page. maxChainLength bounds how many fragments are walked
// before giving up (ResourceConfig's RevisionsToRestore), so a corrupt
// cyclic chain cannot hang a reader. Which fragments are worth loading is
// policy's call (revisionRoots); how they are folded together is also
// policy's call (combineRecordPages), so the walk itself stays oblivious to
// which of the four versioning strategies wrote this chain — it only ever
// special-cases full occupancy, which ends the walk under any policy
// (spec's testable property 4): once a fragment alone already fills every
// slot, nothing older it might chain to can still matter.
func ReconstructRecordPage(startBuf []byte, load fragmentLoader, policy VersioningPolicy, maxChainLength int) (*ReconstructedPage, error) {
	if maxChainLength <= 0 {
		maxChainLength = 256
	}

	// Walk backwards from the newest fragment, collecting headers+buffers
	// as we go, stopping once policy says no further fragment is needed.
	type fragment struct {
		header PageHeader
		rp     *RecordPage
	}
	var chain []fragment
	var kinds []FragmentKind

	buf := startBuf
	for len(chain) < maxChainLength {
		h := UnmarshalHeader(buf)
		rp := WrapRecordPage(buf)
		chain = append(chain, fragment{header: h, rp: rp})
		kinds = append(kinds, pageFragmentKind(&h))

		if rp.SlotCount() >= recordPageCapacity {
			break // this fragment alone saturates every slot in the page
		}
		if !policy.revisionRoots(kinds, maxChainLength) {
			break
		}
		prev := pagePreviousKey(&h)
		if prev == InvalidPageID {
			break // chain-terminal without ever finding a full fragment: best effort
		}
		var err error
		buf, err = load(prev)
		if err != nil {
			return nil, fmt.Errorf("reconstruct: load previous fragment %d: %w", prev, err)
		}
	}

	fragments := make([]*RecordPage, len(chain))
	for i, f := range chain {
		fragments[len(chain)-1-i] = f.rp // oldest-first, for combineRecordPages
	}
	return policy.combineRecordPages(fragments, chain[0].header.Type)
}
