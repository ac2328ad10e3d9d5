package pager

import (
	"encoding/binary"
	"fmt"
	"math"
)

// ───────────────────────────────────────────────────────────────────────────
// Record codec
// ───────────────────────────────────────────────────────────────────────────
//
// A Record is the value stored in one slot of a RecordPage: one node of the
// hierarchical XML/JSON-shaped document tree (element, attribute, text, or
// object/array entry, depending on the resource's schema), or the tombstone
// written over a deleted node's slot. The format is compact and
// allocation-light on the read path, the same goal the teacher's row codec
// states for table rows.
//
// Wire format:
//   [0]    TypeTag (uint8)
//   [1..]  Payload (variable, depends on tag)
//
// Type tags:
//   0x00 — deleted (tombstone; no payload, slot kept to preserve node keys)
//   0x01 — element   (NameKey int32, URIKey int32, ParentKey/FirstChild/
//                      LeftSibling/RightSibling uint64 each, AttrCount uint16,
//                      ChildCount uint16)
//   0x02 — attribute  (NameKey int32, URIKey int32, ParentKey uint64,
//                      Value: uint16 len + bytes)
//   0x03 — text       (NameKey int32, URIKey int32, ParentKey/LeftSibling/
//                      RightSibling uint64 each, Value: uint32 len + bytes)
//   0x04 — object/array entry (NameKey int32, URIKey int32, ParentKey/
//                      FirstChild/LeftSibling/RightSibling uint64 each)

type NodeKind uint8

const (
	NodeKindDeleted NodeKind = 0x00
	NodeKindElement NodeKind = 0x01
	NodeKindAttribute NodeKind = 0x02
	NodeKindText      NodeKind = 0x03
	NodeKindObject    NodeKind = 0x04
)

// deletedSentinel is the single-byte payload written over a deleted node's
// slot. The slot itself is not removed: node keys must remain stable across
// revisions so that later revisions can still reference the position.
var deletedSentinel = []byte{byte(NodeKindDeleted)}

// Record is the decoded form of one node in the document tree.
type Record struct {
	Kind NodeKind
	Key  uint64 // the node's own key; not stored in the payload, comes from the slot index

	NameKey  int32 // interned name index, -1 if not applicable
	URIKey   int32 // interned namespace-URI index, -1 if not applicable

	ParentKey      uint64
	FirstChildKey  uint64
	LeftSiblingKey uint64
	RightSiblingKey uint64

	AttrCount  uint16
	ChildCount uint16

	Value []byte // text content or attribute value
}

// IsDeleted reports whether this slot has been tombstoned.
func (r *Record) IsDeleted() bool { return r.Kind == NodeKindDeleted }

// MarshalRecord encodes a Record into the compact binary format, reusing buf
// if it is large enough.
func MarshalRecord(r *Record, buf []byte) []byte {
	if r.Kind == NodeKindDeleted {
		return append(buf[:0], deletedSentinel...)
	}

	est := 1 + 4 + 4 + 8*4 + 2 + 2 + 4 + len(r.Value)
	if cap(buf) >= est {
		buf = buf[:0]
	} else {
		buf = make([]byte, 0, est)
	}
	buf = append(buf, byte(r.Kind))

	var b4 [4]byte
	binary.LittleEndian.PutUint32(b4[:], uint32(r.NameKey))
	buf = append(buf, b4[:]...)
	binary.LittleEndian.PutUint32(b4[:], uint32(r.URIKey))
	buf = append(buf, b4[:]...)

	var b8 [8]byte
	binary.LittleEndian.PutUint64(b8[:], r.ParentKey)
	buf = append(buf, b8[:]...)

	switch r.Kind {
	case NodeKindElement, NodeKindObject:
		binary.LittleEndian.PutUint64(b8[:], r.FirstChildKey)
		buf = append(buf, b8[:]...)
		binary.LittleEndian.PutUint64(b8[:], r.LeftSiblingKey)
		buf = append(buf, b8[:]...)
		binary.LittleEndian.PutUint64(b8[:], r.RightSiblingKey)
		buf = append(buf, b8[:]...)
		if r.Kind == NodeKindElement {
			var b2 [2]byte
			binary.LittleEndian.PutUint16(b2[:], r.AttrCount)
			buf = append(buf, b2[:]...)
			binary.LittleEndian.PutUint16(b2[:], r.ChildCount)
			buf = append(buf, b2[:]...)
		}
	case NodeKindText:
		binary.LittleEndian.PutUint64(b8[:], r.LeftSiblingKey)
		buf = append(buf, b8[:]...)
		binary.LittleEndian.PutUint64(b8[:], r.RightSiblingKey)
		buf = append(buf, b8[:]...)
		var b4l [4]byte
		binary.LittleEndian.PutUint32(b4l[:], uint32(len(r.Value)))
		buf = append(buf, b4l[:]...)
		buf = append(buf, r.Value...)
		return buf
	case NodeKindAttribute:
		var b2 [2]byte
		binary.LittleEndian.PutUint16(b2[:], uint16(len(r.Value)))
		buf = append(buf, b2[:]...)
		buf = append(buf, r.Value...)
		return buf
	}
	return buf
}

// UnmarshalRecord decodes a Record from its compact binary representation.
func UnmarshalRecord(data []byte) (*Record, error) {
	if len(data) < 1 {
		return nil, fmt.Errorf("%w: empty record", ErrInvalidArgument)
	}
	kind := NodeKind(data[0])
	if kind == NodeKindDeleted {
		return &Record{Kind: NodeKindDeleted}, nil
	}
	off := 1
	need := func(n int) error {
		if off+n > len(data) {
			return fmt.Errorf("%w: truncated record at offset %d", ErrCacheLoad, off)
		}
		return nil
	}

	if err := need(8); err != nil {
		return nil, err
	}
	r := &Record{Kind: kind}
	r.NameKey = int32(binary.LittleEndian.Uint32(data[off:]))
	off += 4
	r.URIKey = int32(binary.LittleEndian.Uint32(data[off:]))
	off += 4

	if err := need(8); err != nil {
		return nil, err
	}
	r.ParentKey = binary.LittleEndian.Uint64(data[off:])
	off += 8

	switch kind {
	case NodeKindElement, NodeKindObject:
		if err := need(24); err != nil {
			return nil, err
		}
		r.FirstChildKey = binary.LittleEndian.Uint64(data[off:])
		off += 8
		r.LeftSiblingKey = binary.LittleEndian.Uint64(data[off:])
		off += 8
		r.RightSiblingKey = binary.LittleEndian.Uint64(data[off:])
		off += 8
		if kind == NodeKindElement {
			if err := need(4); err != nil {
				return nil, err
			}
			r.AttrCount = binary.LittleEndian.Uint16(data[off:])
			off += 2
			r.ChildCount = binary.LittleEndian.Uint16(data[off:])
			off += 2
		}
	case NodeKindText:
		if err := need(20); err != nil {
			return nil, err
		}
		r.LeftSiblingKey = binary.LittleEndian.Uint64(data[off:])
		off += 8
		r.RightSiblingKey = binary.LittleEndian.Uint64(data[off:])
		off += 8
		vlen := int(binary.LittleEndian.Uint32(data[off:]))
		off += 4
		if err := need(vlen); err != nil {
			return nil, err
		}
		r.Value = append([]byte(nil), data[off:off+vlen]...)
		off += vlen
	case NodeKindAttribute:
		if err := need(2); err != nil {
			return nil, err
		}
		vlen := int(binary.LittleEndian.Uint16(data[off:]))
		off += 2
		if err := need(vlen); err != nil {
			return nil, err
		}
		r.Value = append([]byte(nil), data[off:off+vlen]...)
		off += vlen
	default:
		return nil, fmt.Errorf("%w: unknown node kind 0x%02x", ErrCacheLoad, byte(kind))
	}
	return r, nil
}

// Float64Bits/FromBits are kept for secondary-index key comparisons (CAS
// index orders values by their typed byte-wise representation, per spec).
func float64Bits(f float64) uint64     { return math.Float64bits(f) }
func float64FromBits(b uint64) float64 { return math.Float64frombits(b) }
