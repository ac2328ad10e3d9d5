package pager

import "encoding/binary"

// ───────────────────────────────────────────────────────────────────────────
// Path index page
// ───────────────────────────────────────────────────────────────────────────
//
// The path index maps one path-node key (from the path summary) to the set
// of document node keys that currently occupy that path, supporting
// path-only lookups ("every /order/item node") without consulting values.
//
// Wire format per slot:
//   [0:8]  PathNodeKey  uint64 LE
//   [8:16] NodeKey      uint64 LE

type PathIndexEntry struct {
	PathNodeKey uint64
	NodeKey     uint64
}

// PathIndexPage is a RecordPage specialized to hold path index entries.
type PathIndexPage struct {
	*RecordPage
}

// WrapPathIndexPage wraps an existing path-index page buffer.
func WrapPathIndexPage(buf []byte) *PathIndexPage {
	return &PathIndexPage{RecordPage: WrapRecordPage(buf)}
}

// InitPathIndexPage creates a new, empty path-index page.
func InitPathIndexPage(buf []byte, id PageID) *PathIndexPage {
	return &PathIndexPage{RecordPage: InitRecordPage(buf, PageTypePathIndex, id)}
}

// Entry decodes the path-index entry at slot i, or (nil, false) if the slot
// is a tombstone.
func (pp *PathIndexPage) Entry(i int) (*PathIndexEntry, bool) {
	data := pp.GetRecord(i)
	if data == nil || len(data) < 16 {
		return nil, false
	}
	return &PathIndexEntry{
		PathNodeKey: binary.LittleEndian.Uint64(data[0:8]),
		NodeKey:     binary.LittleEndian.Uint64(data[8:16]),
	}, true
}

// MarshalPathIndexEntry encodes e for insertion via RecordPage.InsertRecord
// (used by tests constructing fixture path-index pages).
func MarshalPathIndexEntry(e *PathIndexEntry) []byte {
	buf := make([]byte, 16)
	binary.LittleEndian.PutUint64(buf[0:8], e.PathNodeKey)
	binary.LittleEndian.PutUint64(buf[8:16], e.NodeKey)
	return buf
}
