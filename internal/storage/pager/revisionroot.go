package pager

import (
	"encoding/binary"
	"fmt"
	"time"
)

// ───────────────────────────────────────────────────────────────────────────
// Revision root page
// ───────────────────────────────────────────────────────────────────────────
//
// One RevisionRootPage is written per committed revision. It is the fan-out
// point between the uber page's revision trie and the five per-revision
// indirect-page tries (the primary record index plus the four secondary
// indexes named in IndexKind). A page-read transaction bound to revision R
// resolves the uber page's revision trie down to this page and never visits
// another revision's root.
//
// Layout:
//   [0:32]    Common PageHeader (Type=RevisionRoot)
//   [32:40]   Revision          uint64 LE
//   [40:48]   Timestamp         int64 LE (unix nanos)
//   [48:56]   MaxNodeKey        uint64 LE (highest record key ever assigned)
//   [56:72]   RecordIndexRef    PageReference (16 bytes)
//   [72:88]   NameIndexRef      PageReference
//   [88:104]  PathSummaryRef    PageReference
//   [104:120] CASIndexRef       PageReference
//   [120:136] PathIndexRef      PageReference
//   [136:144] RevisionRootSize  uint64 LE (byte size of this committed revision's page graph)

const (
	rrRevisionOff        = PageHeaderSize          // 32
	rrTimestampOff        = rrRevisionOff + 8        // 40
	rrMaxNodeKeyOff        = rrTimestampOff + 8       // 48
	rrRecordIndexRefOff    = rrMaxNodeKeyOff + 8       // 56
	rrNameIndexRefOff      = rrRecordIndexRefOff + PageReferenceSize // 72
	rrPathSummaryRefOff    = rrNameIndexRefOff + PageReferenceSize   // 88
	rrCASIndexRefOff       = rrPathSummaryRefOff + PageReferenceSize // 104
	rrPathIndexRefOff      = rrCASIndexRefOff + PageReferenceSize    // 120
	rrRevisionRootSizeOff  = rrPathIndexRefOff + PageReferenceSize   // 136
)

// RevisionRootPage holds the parsed contents of one revision root.
type RevisionRootPage struct {
	Revision         uint64
	Timestamp        time.Time
	MaxNodeKey       uint64
	RecordIndexRef   *PageReference
	NameIndexRef     *PageReference
	PathSummaryRef   *PageReference
	CASIndexRef      *PageReference
	PathIndexRef     *PageReference
	RevisionRootSize uint64
}

// IndexRef returns the PageReference rooting the given secondary index's
// directory page (or the primary record trie directly for
// IndexKindDocument, which has exactly one). For every secondary kind the
// returned reference does not point at that index's trie itself: it points
// at an ordinary IndirectPage whose slots are keyed by index id, letting a
// resource carry several named indexes of the same kind (e.g. two CAS
// indexes over different paths). navigator.go's resolveIndexSubtreeRoot
// performs that second resolution step before descending the trie proper.
func (rr *RevisionRootPage) IndexRef(kind IndexKind) *PageReference {
	switch kind {
	case IndexKindName:
		return rr.NameIndexRef
	case IndexKindPathSummary:
		return rr.PathSummaryRef
	case IndexKindCAS:
		return rr.CASIndexRef
	case IndexKindPath:
		return rr.PathIndexRef
	default:
		return rr.RecordIndexRef
	}
}

// WrapRevisionRootPage decodes an existing revision root page buffer.
func WrapRevisionRootPage(buf []byte) (*RevisionRootPage, error) {
	if len(buf) < rrRevisionRootSizeOff+8 {
		return nil, fmt.Errorf("%w: revision root page too small: %d bytes", ErrInvalidArgument, len(buf))
	}
	if err := VerifyPageCRC(buf); err != nil {
		return nil, fmt.Errorf("revision root CRC: %w", err)
	}
	rr := &RevisionRootPage{
		Revision:         binary.LittleEndian.Uint64(buf[rrRevisionOff:]),
		Timestamp:        time.Unix(0, int64(binary.LittleEndian.Uint64(buf[rrTimestampOff:]))),
		MaxNodeKey:       binary.LittleEndian.Uint64(buf[rrMaxNodeKeyOff:]),
		RecordIndexRef:   unmarshalPageReference(buf[rrRecordIndexRefOff:]),
		NameIndexRef:     unmarshalPageReference(buf[rrNameIndexRefOff:]),
		PathSummaryRef:   unmarshalPageReference(buf[rrPathSummaryRefOff:]),
		CASIndexRef:      unmarshalPageReference(buf[rrCASIndexRefOff:]),
		PathIndexRef:     unmarshalPageReference(buf[rrPathIndexRefOff:]),
		RevisionRootSize: binary.LittleEndian.Uint64(buf[rrRevisionRootSizeOff:]),
	}
	return rr, nil
}

// InitRevisionRootPage creates a new revision root for the given revision
// number, with all index references empty.
func InitRevisionRootPage(buf []byte, id PageID, revision uint64, ts time.Time) *RevisionRootPage {
	h := &PageHeader{Type: PageTypeRevisionRoot, ID: id}
	MarshalHeader(h, buf)
	binary.LittleEndian.PutUint64(buf[rrRevisionOff:], revision)
	binary.LittleEndian.PutUint64(buf[rrTimestampOff:], uint64(ts.UnixNano()))
	return &RevisionRootPage{
		Revision:       revision,
		Timestamp:      ts,
		RecordIndexRef: NewPageReference(),
		NameIndexRef:   NewPageReference(),
		PathSummaryRef: NewPageReference(),
		CASIndexRef:    NewPageReference(),
		PathIndexRef:   NewPageReference(),
	}
}

// Marshal writes rr back into buf, recomputing the CRC.
func (rr *RevisionRootPage) Marshal(buf []byte) []byte {
	binary.LittleEndian.PutUint64(buf[rrRevisionOff:], rr.Revision)
	binary.LittleEndian.PutUint64(buf[rrTimestampOff:], uint64(rr.Timestamp.UnixNano()))
	binary.LittleEndian.PutUint64(buf[rrMaxNodeKeyOff:], rr.MaxNodeKey)
	marshalPageReference(rr.RecordIndexRef, buf[rrRecordIndexRefOff:])
	marshalPageReference(rr.NameIndexRef, buf[rrNameIndexRefOff:])
	marshalPageReference(rr.PathSummaryRef, buf[rrPathSummaryRefOff:])
	marshalPageReference(rr.CASIndexRef, buf[rrCASIndexRefOff:])
	marshalPageReference(rr.PathIndexRef, buf[rrPathIndexRefOff:])
	binary.LittleEndian.PutUint64(buf[rrRevisionRootSizeOff:], rr.RevisionRootSize)
	SetPageCRC(buf)
	return buf
}
