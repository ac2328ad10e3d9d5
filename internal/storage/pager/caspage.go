package pager

import "encoding/binary"

// ───────────────────────────────────────────────────────────────────────────
// Content-and-structure (CAS) index page
// ───────────────────────────────────────────────────────────────────────────
//
// The CAS index maps a (path-node key, typed value) pair to the set of
// document node keys holding that value at that path, supporting value
// lookups ("find every node at /order/amount equal to 42.50") without a
// full document scan.
//
// Wire format per slot:
//   [0:8]  PathNodeKey  uint64 LE
//   [8]    ValueKind    uint8 (reuses NodeKind's numeric tags loosely: here
//                              0x03=string, 0x04=float64, as produced by
//                              record.go's float64Bits helper)
//   [9:17] ValueBits    uint64 LE (float64 bits, or hash of a string value)
//   [17:25] NodeKey     uint64 LE (one matching document node; multiple
//                                  matches occupy multiple slots)

const (
	casValueKindString  = 0x03
	casValueKindFloat64 = 0x04
)

type CASEntry struct {
	PathNodeKey uint64
	IsString    bool
	ValueBits   uint64
	NodeKey     uint64
}

// CASPage is a RecordPage specialized to hold CAS index entries.
type CASPage struct {
	*RecordPage
}

// WrapCASPage wraps an existing CAS-index page buffer.
func WrapCASPage(buf []byte) *CASPage {
	return &CASPage{RecordPage: WrapRecordPage(buf)}
}

// InitCASPage creates a new, empty CAS-index page.
func InitCASPage(buf []byte, id PageID) *CASPage {
	return &CASPage{RecordPage: InitRecordPage(buf, PageTypeCASIndex, id)}
}

// Entry decodes the CAS entry at slot i, or (nil, false) if the slot is a
// tombstone.
func (cp *CASPage) Entry(i int) (*CASEntry, bool) {
	data := cp.GetRecord(i)
	if data == nil || len(data) < 25 {
		return nil, false
	}
	return &CASEntry{
		PathNodeKey: binary.LittleEndian.Uint64(data[0:8]),
		IsString:    data[8] == casValueKindString,
		ValueBits:   binary.LittleEndian.Uint64(data[9:17]),
		NodeKey:     binary.LittleEndian.Uint64(data[17:25]),
	}, true
}

// MarshalCASEntry encodes e for insertion via RecordPage.InsertRecord (used
// by tests constructing fixture CAS-index pages).
func MarshalCASEntry(e *CASEntry) []byte {
	buf := make([]byte, 25)
	binary.LittleEndian.PutUint64(buf[0:8], e.PathNodeKey)
	if e.IsString {
		buf[8] = casValueKindString
	} else {
		buf[8] = casValueKindFloat64
	}
	binary.LittleEndian.PutUint64(buf[9:17], e.ValueBits)
	binary.LittleEndian.PutUint64(buf[17:25], e.NodeKey)
	return buf
}
