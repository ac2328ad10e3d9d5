package pager

import "encoding/binary"

// PageReferenceSize is the on-disk size of one PageReference slot, as
// embedded inside an IndirectPage or a RevisionRootPage.
const PageReferenceSize = 4 + 8 + 4 // PageID + LogKey + Checksum

// PageReference is a pointer from a parent page to a child page. It carries
// both the child's persistent on-disk identity and, once the child has been
// loaded during this read transaction, a transaction-log key stamped in by
// the navigator so a subsequent dereference of the same reference can be
// resolved against the in-flight transaction log before falling back to the
// committed page on disk (see PageReadTransaction.Dereference in
// transaction.go).
type PageReference struct {
	Key      PageID // persistent page key, InvalidPageID if unset
	LogKey   int64  // transaction-log key stamped during descent, -1 if unset
	Checksum uint32 // CRC of the referenced page, for integrity cross-check

	cached []byte // page bytes resolved during this transaction, if any
}

// NewPageReference returns a reference with no persistent key and no log
// key, as found in a freshly-allocated, not-yet-written indirect page slot.
func NewPageReference() *PageReference {
	return &PageReference{Key: InvalidPageID, LogKey: -1}
}

// IsEmpty reports whether the reference points at nothing.
func (r *PageReference) IsEmpty() bool {
	return r.Key == InvalidPageID && r.LogKey < 0
}

// SetCached stores the resolved page bytes on the reference so repeated
// dereferences within the same transaction skip a cache lookup entirely.
func (r *PageReference) SetCached(buf []byte) { r.cached = buf }

// Cached returns the page bytes stored by a previous SetCached call, or
// nil if none.
func (r *PageReference) Cached() []byte { return r.cached }

func marshalPageReference(r *PageReference, buf []byte) {
	binary.LittleEndian.PutUint32(buf[0:4], uint32(r.Key))
	binary.LittleEndian.PutUint64(buf[4:12], uint64(r.LogKey))
	binary.LittleEndian.PutUint32(buf[12:16], r.Checksum)
}

func unmarshalPageReference(buf []byte) *PageReference {
	return &PageReference{
		Key:      PageID(binary.LittleEndian.Uint32(buf[0:4])),
		LogKey:   int64(binary.LittleEndian.Uint64(buf[4:12])),
		Checksum: binary.LittleEndian.Uint32(buf[12:16]),
	}
}
