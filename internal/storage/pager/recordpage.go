package pager

import (
	"encoding/binary"
	"fmt"
)

// ───────────────────────────────────────────────────────────────────────────
// Record page
// ───────────────────────────────────────────────────────────────────────────
//
// A RecordPage (and, with the same layout, each of the four secondary-index
// leaf pages) stores variable-length records in a slotted layout:
//
//   [0..31]             Common PageHeader
//   [32..35]            SlotCount  (uint16) + FreeSpaceEnd (uint16)
//   [36..36+4*SlotCount] Slot directory (4 bytes per slot)
//   ... free space ...
//   [FreeSpaceEnd..PageSize]  Record data grows downward
//
// Each slot entry is 4 bytes:
//   [0:2]  Offset  (uint16) — offset of record from page start
//   [2:4]  Length  (uint16) — record length in bytes
//
// A slot with Offset==0 and Length==0 is a tombstone: the slot index — which
// doubles as a node's position within this page — is preserved even after
// the node it held is deleted, so that node keys never shift across
// revisions (see record.go's deleted sentinel).
//
// Invariants:
//   - Records grow downward from the end of the page.
//   - Slots grow forward from after the slotted-page header.
//   - FreeSpaceEnd tracks where the next record can be placed.

const (
	// slottedHeaderOff is the offset of SlotCount within the page.
	slottedHeaderOff = PageHeaderSize // 32

	// slottedSlotCountSize is bytes for SlotCount + FreeSpaceEnd.
	slottedSlotCountSize = 4 // uint16 + uint16

	// slottedSlotDirOff is where slot entries start.
	slottedSlotDirOff = slottedHeaderOff + slottedSlotCountSize // 36

	// slotEntrySize is bytes per slot entry (offset + length).
	slotEntrySize = 4
)

// RecordPage wraps a raw page buffer and provides record-level read access.
type RecordPage struct {
	buf      []byte
	pageSize int
}

// SlotEntry describes one slot in the directory.
type SlotEntry struct {
	Offset uint16
	Length uint16
}

// WrapRecordPage wraps an existing page buffer.
func WrapRecordPage(buf []byte) *RecordPage {
	return &RecordPage{buf: buf, pageSize: len(buf)}
}

// InitRecordPage initializes a page buffer as an empty record page. Used by
// tests to build fixture pages; writing a real record page is the writer's
// job.
func InitRecordPage(buf []byte, pt PageType, id PageID) *RecordPage {
	h := &PageHeader{Type: pt, ID: id}
	MarshalHeader(h, buf)
	binary.LittleEndian.PutUint16(buf[slottedHeaderOff:], 0)
	binary.LittleEndian.PutUint16(buf[slottedHeaderOff+2:], uint16(len(buf)))
	return WrapRecordPage(buf)
}

// SlotCount returns the number of slots (including tombstones).
func (rp *RecordPage) SlotCount() int {
	return int(binary.LittleEndian.Uint16(rp.buf[slottedHeaderOff:]))
}

func (rp *RecordPage) setSlotCount(n int) {
	binary.LittleEndian.PutUint16(rp.buf[slottedHeaderOff:], uint16(n))
}

// FreeSpaceEnd is the byte offset where the next record will be written.
func (rp *RecordPage) FreeSpaceEnd() int {
	return int(binary.LittleEndian.Uint16(rp.buf[slottedHeaderOff+2:]))
}

func (rp *RecordPage) setFreeSpaceEnd(off int) {
	binary.LittleEndian.PutUint16(rp.buf[slottedHeaderOff+2:], uint16(off))
}

// slotDirEnd returns the byte offset just past the last slot entry.
func (rp *RecordPage) slotDirEnd() int {
	return slottedSlotDirOff + rp.SlotCount()*slotEntrySize
}

// FreeSpace returns the number of bytes available for new records+slots.
func (rp *RecordPage) FreeSpace() int {
	return rp.FreeSpaceEnd() - rp.slotDirEnd() - slotEntrySize // account for new slot
}

// GetSlot returns the slot entry at index i.
func (rp *RecordPage) GetSlot(i int) SlotEntry {
	off := slottedSlotDirOff + i*slotEntrySize
	return SlotEntry{
		Offset: binary.LittleEndian.Uint16(rp.buf[off:]),
		Length: binary.LittleEndian.Uint16(rp.buf[off+2:]),
	}
}

func (rp *RecordPage) setSlot(i int, e SlotEntry) {
	off := slottedSlotDirOff + i*slotEntrySize
	binary.LittleEndian.PutUint16(rp.buf[off:], e.Offset)
	binary.LittleEndian.PutUint16(rp.buf[off+2:], e.Length)
}

// IsDeleted returns true if slot i is a tombstone.
func (rp *RecordPage) IsDeleted(i int) bool {
	e := rp.GetSlot(i)
	return e.Offset == 0 && e.Length == 0
}

// GetRecord returns the raw bytes of the record at slot i.
// Returns nil if the slot is a tombstone.
func (rp *RecordPage) GetRecord(i int) []byte {
	e := rp.GetSlot(i)
	if e.Offset == 0 && e.Length == 0 {
		return nil
	}
	return rp.buf[e.Offset : e.Offset+e.Length]
}

// InsertRecord adds a new record to the page. Exercised by tests to build
// fixture pages that the navigator/reconstruct read path is then run
// against; a live resource's record pages are written by the (out of scope)
// writer.
func (rp *RecordPage) InsertRecord(data []byte) (int, error) {
	needed := len(data)
	if rp.FreeSpace() < needed {
		return -1, fmt.Errorf("%w: record page full: need %d bytes, have %d", ErrInvalidArgument, needed, rp.FreeSpace())
	}

	newEnd := rp.FreeSpaceEnd() - needed
	copy(rp.buf[newEnd:], data)
	rp.setFreeSpaceEnd(newEnd)

	sc := rp.SlotCount()
	for i := 0; i < sc; i++ {
		if rp.IsDeleted(i) {
			rp.setSlot(i, SlotEntry{Offset: uint16(newEnd), Length: uint16(needed)})
			return i, nil
		}
	}

	rp.setSlot(sc, SlotEntry{Offset: uint16(newEnd), Length: uint16(needed)})
	rp.setSlotCount(sc + 1)
	return sc, nil
}

// DeleteRecord marks slot i as deleted (tombstone). Exercised by tests that
// exercise the navigator's handling of deleted-record sentinels.
func (rp *RecordPage) DeleteRecord(i int) error {
	if i < 0 || i >= rp.SlotCount() {
		return fmt.Errorf("%w: slot %d out of range [0..%d)", ErrInvalidArgument, i, rp.SlotCount())
	}
	rp.setSlot(i, SlotEntry{Offset: 0, Length: 0})
	return nil
}

// LiveRecords returns the count of non-deleted records.
func (rp *RecordPage) LiveRecords() int {
	n := 0
	sc := rp.SlotCount()
	for i := 0; i < sc; i++ {
		if !rp.IsDeleted(i) {
			n++
		}
	}
	return n
}

// Bytes returns the underlying page buffer, recomputing the CRC first.
func (rp *RecordPage) Bytes() []byte {
	SetPageCRC(rp.buf)
	return rp.buf
}
