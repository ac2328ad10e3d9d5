package pager

import (
	"encoding/binary"
	"fmt"
)

// ───────────────────────────────────────────────────────────────────────────
// Uber page – Page 0
// ───────────────────────────────────────────────────────────────────────────
//
// Layout (fits in one page, default 8 KiB):
//
//  Offset  Size  Field
//  ──────  ────  ───────────────────
//  0       32    Common PageHeader (Type=Uber, ID=0)
//  32      8     Magic              [8]byte "ARBORDB\x00"
//  40      4     FormatVersion      uint32 LE
//  44      4     PageSize           uint32 LE
//  48      8     LastCommittedRev   uint64 LE  (highest fully-committed revision)
//  56      4     RevisionRootsRoot  uint32 LE  (PageID of the indirect-page trie
//                                               whose leaves are RevisionRootPages,
//                                               indexed by revision number)
//  60      8     FeatureFlags       uint64 LE  (bitmask)
//  68      54    ShiftTable         6 × 9 bytes (see below)
//  122     70    Reserved           [70]byte  (future use — zero-filled)
//
// ShiftTable holds, for each of the six closed page kinds, the per-level
// shift-exponent array that sizes that kind's indirect-page trie (its
// length is the tree height, its values the per-level bit-shifts applied to
// a descending key — see navigator.go's descend). Kinds are encoded in a
// fixed order; each entry is 1 byte of level count followed by up to
// maxShiftLevels shift bytes (trailing bytes beyond the count are unused):
//
//  Entry offset  Size  Field
//  ────────────  ────  ─────
//  +0            1     level count (0..maxShiftLevels)
//  +1            8     shift[0..maxShiftLevels)
//
// A page kind with a zero level count carries no configured shifts; the
// navigator falls back to a dynamically-sized default for it (see
// navigator.go's shiftsFor), matching this format's original sizing before
// the table existed.
//
// The CRC in the common header covers the entire page. Allocation, the
// free-space bookkeeping that would accompany a writable superblock, and
// checkpoint/recovery bookkeeping belong to the writer and are not modeled
// here — a page-read transaction only ever consults the fields above.

const (
	// UberPageMagic identifies a valid arbor database file.
	UberPageMagic = "ARBORDB\x00"

	// CurrentFormatVersion is the on-disk format version understood by
	// this build.
	CurrentFormatVersion uint32 = 1

	upMagicOff            = PageHeaderSize         // 32
	upFormatVersionOff    = upMagicOff + 8         // 40
	upPageSizeOff         = upFormatVersionOff + 4 // 44
	upLastCommittedRevOff = upPageSizeOff + 4      // 48
	upRevisionRootsOff    = upLastCommittedRevOff + 8 // 56
	upFeatureFlagsOff     = upRevisionRootsOff + 4    // 60
	upShiftTableOff       = upFeatureFlagsOff + 8     // 68

	// maxShiftLevels bounds how many trie levels a shift-table entry can
	// record. 128^8 keys is far beyond any resource this format addresses.
	maxShiftLevels  = 8
	shiftEntrySize  = 1 + maxShiftLevels // level count + shift bytes
)

// shiftTableKinds lists, in on-disk order, the page kinds that carry a
// shift-exponent entry in the uber page.
var shiftTableKinds = [...]PageType{
	PageTypeUber,
	PageTypeRecord,
	PageTypeNameIndex,
	PageTypePathSummary,
	PageTypeCASIndex,
	PageTypePathIndex,
}

// FeatureFlag is a bitmask of optional format features.
type FeatureFlag uint64

// FeatureFlag bits. Version 1 has no flags set.
const (
	FeatureCompression FeatureFlag = 1 << iota // reserved: page-level compression
	FeatureEncryption                          // reserved: page-level encryption
)

// SupportedFeatures is the set of features understood by this build. Any
// flag outside of this set causes the file to be rejected.
const SupportedFeatures FeatureFlag = 0 // v1: none

// UberPage holds the parsed contents of page 0: the fixed entry point from
// which every revision of a resource is reachable.
type UberPage struct {
	FormatVersion    uint32
	PageSize         uint32
	LastCommittedRev uint64
	RevisionRootsRef PageID // root of the indirect-page trie over revision roots
	FeatureFlags     FeatureFlag

	// ShiftTable maps a page kind to its per-level shift-exponent array
	// (spec's "table mapping each page kind to an array of per-level
	// shift-exponents"). A kind absent from the map, or present with a nil
	// slice, has no configured shifts; navigator.go computes a dynamic
	// default for it instead.
	ShiftTable map[PageType][]uint8
}

// DefaultShiftTable returns a shift table sized by depth for every kind the
// format fixes, with a uniform per-level shift of pageFanOutShift bits —
// the shape this format used before the table existed, with depth
// explicitly recorded per kind rather than recomputed from a revision's
// current key range.
func DefaultShiftTable(depth int) map[PageType][]uint8 {
	shifts := make([]uint8, depth)
	for l := 0; l < depth; l++ {
		shifts[l] = uint8(pageFanOutShift * (depth - l - 1))
	}
	table := make(map[PageType][]uint8, len(shiftTableKinds))
	for _, k := range shiftTableKinds {
		table[k] = append([]uint8(nil), shifts...)
	}
	return table
}

// MarshalUberPage serializes an UberPage into a full page buffer. The
// buffer must be at least PageSize bytes. The common PageHeader is set
// (Type=Uber, ID=0) and the CRC computed.
func MarshalUberPage(up *UberPage, pageSize int) []byte {
	buf := NewPage(pageSize, PageTypeUber, UberPageID)

	copy(buf[upMagicOff:upMagicOff+8], UberPageMagic)
	binary.LittleEndian.PutUint32(buf[upFormatVersionOff:], up.FormatVersion)
	binary.LittleEndian.PutUint32(buf[upPageSizeOff:], up.PageSize)
	binary.LittleEndian.PutUint64(buf[upLastCommittedRevOff:], up.LastCommittedRev)
	binary.LittleEndian.PutUint32(buf[upRevisionRootsOff:], uint32(up.RevisionRootsRef))
	binary.LittleEndian.PutUint64(buf[upFeatureFlagsOff:], uint64(up.FeatureFlags))
	marshalShiftTable(up.ShiftTable, buf[upShiftTableOff:])

	SetPageCRC(buf)
	return buf
}

// marshalShiftTable encodes a kind->shifts map into dst, one shiftEntrySize
// slot per shiftTableKinds entry, in that fixed order.
func marshalShiftTable(table map[PageType][]uint8, dst []byte) {
	for i, kind := range shiftTableKinds {
		entry := dst[i*shiftEntrySize : (i+1)*shiftEntrySize]
		shifts := table[kind]
		n := len(shifts)
		if n > maxShiftLevels {
			n = maxShiftLevels
		}
		entry[0] = byte(n)
		copy(entry[1:1+n], shifts[:n])
	}
}

// unmarshalShiftTable decodes the shift table out of src, skipping any
// kind whose level count is zero.
func unmarshalShiftTable(src []byte) map[PageType][]uint8 {
	table := make(map[PageType][]uint8, len(shiftTableKinds))
	for i, kind := range shiftTableKinds {
		entry := src[i*shiftEntrySize : (i+1)*shiftEntrySize]
		n := int(entry[0])
		if n <= 0 {
			continue
		}
		if n > maxShiftLevels {
			n = maxShiftLevels
		}
		shifts := make([]uint8, n)
		copy(shifts, entry[1:1+n])
		table[kind] = shifts
	}
	return table
}

// UnmarshalUberPage decodes page 0 from buf. It validates magic bytes,
// format version, feature flags, and CRC. Returns an error on any mismatch.
func UnmarshalUberPage(buf []byte) (*UberPage, error) {
	if len(buf) < MinPageSize {
		return nil, fmt.Errorf("%w: uber page too small: %d bytes", ErrInvalidArgument, len(buf))
	}
	if err := VerifyPageCRC(buf); err != nil {
		return nil, fmt.Errorf("uber page CRC: %w", err)
	}
	magic := string(buf[upMagicOff : upMagicOff+8])
	if magic != UberPageMagic {
		return nil, fmt.Errorf("%w: bad magic %q, expected %q", ErrCacheLoad, magic, UberPageMagic)
	}
	up := &UberPage{
		FormatVersion:    binary.LittleEndian.Uint32(buf[upFormatVersionOff:]),
		PageSize:         binary.LittleEndian.Uint32(buf[upPageSizeOff:]),
		LastCommittedRev: binary.LittleEndian.Uint64(buf[upLastCommittedRevOff:]),
		RevisionRootsRef: PageID(binary.LittleEndian.Uint32(buf[upRevisionRootsOff:])),
		FeatureFlags:     FeatureFlag(binary.LittleEndian.Uint64(buf[upFeatureFlagsOff:])),
		ShiftTable:       unmarshalShiftTable(buf[upShiftTableOff : upShiftTableOff+len(shiftTableKinds)*shiftEntrySize]),
	}

	if up.FormatVersion != CurrentFormatVersion {
		return nil, fmt.Errorf("%w: unsupported format version %d (this build supports %d)",
			ErrCacheLoad, up.FormatVersion, CurrentFormatVersion)
	}
	if up.PageSize < MinPageSize || up.PageSize > MaxPageSize {
		return nil, fmt.Errorf("%w: page size %d out of range [%d..%d]",
			ErrInvalidArgument, up.PageSize, MinPageSize, MaxPageSize)
	}
	if up.PageSize&(up.PageSize-1) != 0 {
		return nil, fmt.Errorf("%w: page size %d is not a power of two", ErrInvalidArgument, up.PageSize)
	}
	if up.FeatureFlags & ^SupportedFeatures != 0 {
		return nil, fmt.Errorf("%w: unsupported feature flags: %016x", ErrCacheLoad, up.FeatureFlags)
	}

	return up, nil
}
