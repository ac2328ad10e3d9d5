package pager

import "encoding/binary"

// ───────────────────────────────────────────────────────────────────────────
// Path summary page
// ───────────────────────────────────────────────────────────────────────────
//
// The path summary is a small tree, distinct from the document tree, whose
// nodes correspond to distinct element/attribute paths appearing anywhere in
// the resource. Each entry records the interned name/URI of the path step,
// its parent path-node key, and a reference count of how many document
// nodes currently share that exact path — the structure path indexes and
// the path summary API both query.
//
// Wire format per slot (fixed-size, no tombstone payload distinction beyond
// the slotted-page Offset/Length convention):
//   [0:8]   ParentPathKey  uint64 LE
//   [8:12]  NameKey        int32 LE
//   [12:16] URIKey         int32 LE
//   [16:17] NodeKind       uint8 (element vs. attribute path step)
//   [17:25] ReferenceCount uint64 LE

type PathSummaryEntry struct {
	ParentPathKey  uint64
	NameKey        int32
	URIKey         int32
	Kind           NodeKind
	ReferenceCount uint64
}

// PathSummaryPage is a RecordPage specialized to hold path summary entries.
type PathSummaryPage struct {
	*RecordPage
}

// WrapPathSummaryPage wraps an existing path-summary page buffer.
func WrapPathSummaryPage(buf []byte) *PathSummaryPage {
	return &PathSummaryPage{RecordPage: WrapRecordPage(buf)}
}

// InitPathSummaryPage creates a new, empty path-summary page.
func InitPathSummaryPage(buf []byte, id PageID) *PathSummaryPage {
	return &PathSummaryPage{RecordPage: InitRecordPage(buf, PageTypePathSummary, id)}
}

// Entry decodes the path summary entry at slot i, or (nil, false) if the
// slot is a tombstone.
func (pp *PathSummaryPage) Entry(i int) (*PathSummaryEntry, bool) {
	data := pp.GetRecord(i)
	if data == nil || len(data) < 25 {
		return nil, false
	}
	return &PathSummaryEntry{
		ParentPathKey:  binary.LittleEndian.Uint64(data[0:8]),
		NameKey:        int32(binary.LittleEndian.Uint32(data[8:12])),
		URIKey:         int32(binary.LittleEndian.Uint32(data[12:16])),
		Kind:           NodeKind(data[16]),
		ReferenceCount: binary.LittleEndian.Uint64(data[17:25]),
	}, true
}

// MarshalPathSummaryEntry encodes e for insertion via RecordPage.InsertRecord
// (used by tests constructing fixture path-summary pages).
func MarshalPathSummaryEntry(e *PathSummaryEntry) []byte {
	buf := make([]byte, 25)
	binary.LittleEndian.PutUint64(buf[0:8], e.ParentPathKey)
	binary.LittleEndian.PutUint32(buf[8:12], uint32(e.NameKey))
	binary.LittleEndian.PutUint32(buf[12:16], uint32(e.URIKey))
	buf[16] = byte(e.Kind)
	binary.LittleEndian.PutUint64(buf[17:25], e.ReferenceCount)
	return buf
}
