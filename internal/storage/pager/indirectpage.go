package pager

import "fmt"

// ───────────────────────────────────────────────────────────────────────────
// Indirect page
// ───────────────────────────────────────────────────────────────────────────
//
// An IndirectPage is one level of the fixed-height, fixed-fan-out trie that
// maps a positional key (a revision number, or a record's sequential number
// within a resource) down to the RecordPage or RevisionRootPage that holds
// it. Unlike the teacher's B+Tree internal page, there is no key comparison
// and no splitting: the position of a child within the page is the
// corresponding slice of bits of the target key, so descent is a fixed
// number of array index operations (see navigator.go).
//
// Layout:
//   [0:32]    Common PageHeader (Type=Indirect)
//   [32:32+N] PageReference slots, N = PageFanOut, PageReferenceSize bytes each
//
// A page size of 8 KiB with PageFanOut=128 and a 16-byte PageReference
// leaves room to grow PageFanOut without a format change.

const indirectRefsOff = PageHeaderSize

// IndirectPage wraps a page buffer holding PageFanOut page references.
type IndirectPage struct {
	buf  []byte
	refs []*PageReference
}

// WrapIndirectPage decodes an existing indirect page buffer.
func WrapIndirectPage(buf []byte) (*IndirectPage, error) {
	need := indirectRefsOff + PageFanOut*PageReferenceSize
	if len(buf) < need {
		return nil, fmt.Errorf("%w: indirect page too small: %d < %d", ErrInvalidArgument, len(buf), need)
	}
	ip := &IndirectPage{buf: buf, refs: make([]*PageReference, PageFanOut)}
	for i := 0; i < PageFanOut; i++ {
		off := indirectRefsOff + i*PageReferenceSize
		ip.refs[i] = unmarshalPageReference(buf[off : off+PageReferenceSize])
	}
	return ip, nil
}

// InitIndirectPage creates a new, all-empty indirect page.
func InitIndirectPage(buf []byte, id PageID) *IndirectPage {
	h := &PageHeader{Type: PageTypeIndirect, ID: id}
	MarshalHeader(h, buf)
	ip := &IndirectPage{buf: buf, refs: make([]*PageReference, PageFanOut)}
	for i := range ip.refs {
		ip.refs[i] = NewPageReference()
	}
	return ip
}

// Slot returns the PageReference at the given fan-out index.
func (ip *IndirectPage) Slot(i int) *PageReference {
	return ip.refs[i]
}

// SetSlot overwrites the PageReference at the given fan-out index and
// mirrors it back into the page buffer.
func (ip *IndirectPage) SetSlot(i int, ref *PageReference) {
	ip.refs[i] = ref
	off := indirectRefsOff + i*PageReferenceSize
	marshalPageReference(ref, ip.buf[off:off+PageReferenceSize])
}

// Bytes returns the underlying page buffer, recomputing the CRC first.
func (ip *IndirectPage) Bytes() []byte {
	SetPageCRC(ip.buf)
	return ip.buf
}

// indirectDepth returns the number of indirect-page levels needed to address
// maxKey positions at PageFanOut children per level. Used only as the
// fallback depth for a page kind whose shift-exponent table (uberpage.go)
// was not configured — see navigator.go's shiftsFor.
func indirectDepth(maxKey uint64) int {
	depth := 1
	capacity := uint64(PageFanOut)
	for capacity <= maxKey {
		capacity *= PageFanOut
		depth++
	}
	return depth
}

// defaultShifts builds a per-level shift-exponent array sized by
// indirectDepth(maxKey), most-significant digit first, reproducing this
// format's original (pre-shift-table) trie sizing for a kind that carries
// no explicit entry in the uber page's shift table.
func defaultShifts(maxKey uint64) []uint8 {
	depth := indirectDepth(maxKey)
	shifts := make([]uint8, depth)
	for l := 0; l < depth; l++ {
		shifts[l] = uint8(pageFanOutShift * (depth - l - 1))
	}
	return shifts
}
