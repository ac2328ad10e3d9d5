package pager

import (
	"encoding/binary"
	"fmt"
	"hash/crc32"
	"io"
	"os"
)

// ───────────────────────────────────────────────────────────────────────────
// Transaction log overlay
// ───────────────────────────────────────────────────────────────────────────
//
// While a resource has an in-flight (uncommitted) write transaction, the
// writer appends page images it has produced but not yet folded into a
// committed revision to a pair of append-only log files per resource:
// "<resource>/log/<revision>.page.log" for record/indirect pages and
// "<resource>/log/<revision>.node.log" for everything else. A page-read
// transaction bound to the latest committed revision consults the logs of
// the next, in-flight revision before falling back to the last committed
// page on disk (see PageReadTransaction.Dereference in transaction.go).
// This package only ever reads the
// log; appending to it, and compacting/truncating it after commit, are
// writer operations and out of scope here.
//
// File header (first 32 bytes), mirroring the common page header's
// integrity discipline:
//   [0:8]   Magic       "ARBORLOG"
//   [8:12]  Version     uint32 LE (currently 1)
//   [12:16] PageSize    uint32 LE
//   [16:24] Reserved    8 bytes
//   [24:28] HeaderCRC   uint32 LE (CRC of bytes 0:24)
//   [28:32] Padding     4 bytes
//
// Log record (variable-length, follows header):
//   [0:8]   LogKey      uint64 LE — monotonic key stamped on the
//                                   PageReference during descent
//   [8:12]  PageID      uint32 LE — persistent key the record replaces,
//                                   or InvalidPageID if not yet assigned
//   [12:16] DataLen     uint32 LE — payload length (= page size)
//   [16:20] RecordCRC   uint32 LE — CRC of header + data
//   [20:20+DataLen]     Data (full page image)

const (
	txLogMagic     = "ARBORLOG"
	txLogVersion   = uint32(1)
	txLogFileHdrSz = 32
	txLogRecHdrSz  = 20
)

// LogFileKind selects which of a revision's two log files a page belongs
// to, per spec §6.
type LogFileKind uint8

const (
	LogFileKindPage LogFileKind = iota
	LogFileKindNode
)

func (k LogFileKind) suffix() string {
	if k == LogFileKindNode {
		return "node"
	}
	return "page"
}

// TxLogRecord is one decoded entry from a transaction log file.
type TxLogRecord struct {
	LogKey int64
	PageID PageID
	Data   []byte
}

// TxLog is a read-only view over one transaction log file.
type TxLog struct {
	byLogKey map[int64]*TxLogRecord
	byPageID map[PageID]*TxLogRecord
}

// OpenTxLog reads and indexes an entire transaction log file. A missing
// file (no in-flight writer for this revision) is returned as os.Open's
// error, which os.IsNotExist recognises, so a caller can treat it as
// "no overlay".
func OpenTxLog(path string, pageSize int) (*TxLog, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var hdr [txLogFileHdrSz]byte
	if _, err := io.ReadFull(f, hdr[:]); err != nil {
		return nil, fmt.Errorf("%w: read tx log header: %v", ErrCacheLoad, err)
	}
	if string(hdr[0:8]) != txLogMagic {
		return nil, fmt.Errorf("%w: bad tx log magic", ErrCacheLoad)
	}
	if binary.LittleEndian.Uint32(hdr[8:12]) != txLogVersion {
		return nil, fmt.Errorf("%w: unsupported tx log version", ErrCacheLoad)
	}
	if int(binary.LittleEndian.Uint32(hdr[12:16])) != pageSize {
		return nil, fmt.Errorf("%w: tx log page size mismatch", ErrCacheLoad)
	}
	stored := binary.LittleEndian.Uint32(hdr[24:28])
	if crc32.Checksum(hdr[:24], crcTable) != stored {
		return nil, fmt.Errorf("%w: tx log header CRC mismatch", ErrCacheLoad)
	}

	tl := &TxLog{byLogKey: make(map[int64]*TxLogRecord), byPageID: make(map[PageID]*TxLogRecord)}
	for {
		rec, err := readTxLogRecord(f)
		if err != nil {
			break // EOF or a truncated tail record — crash-consistent, stop reading
		}
		tl.byLogKey[rec.LogKey] = rec
		if rec.PageID != InvalidPageID {
			tl.byPageID[rec.PageID] = rec
		}
	}
	return tl, nil
}

func readTxLogRecord(r io.Reader) (*TxLogRecord, error) {
	var hdr [txLogRecHdrSz]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		return nil, err
	}
	logKey := int64(binary.LittleEndian.Uint64(hdr[0:8]))
	pageID := PageID(binary.LittleEndian.Uint32(hdr[8:12]))
	dataLen := int(binary.LittleEndian.Uint32(hdr[12:16]))
	storedCRC := binary.LittleEndian.Uint32(hdr[16:20])

	data := make([]byte, dataLen)
	if _, err := io.ReadFull(r, data); err != nil {
		return nil, fmt.Errorf("tx log record data: %w", err)
	}

	h := crc32.New(crcTable)
	h.Write(hdr[:16])
	h.Write([]byte{0, 0, 0, 0})
	h.Write(data)
	if h.Sum32() != storedCRC {
		return nil, fmt.Errorf("tx log record CRC mismatch at key %d", logKey)
	}

	return &TxLogRecord{LogKey: logKey, PageID: pageID, Data: data}, nil
}

// ByLogKey looks up a record by the transaction-log key stamped onto a
// PageReference during a previous descent in this same transaction.
func (tl *TxLog) ByLogKey(key int64) (*TxLogRecord, bool) {
	r, ok := tl.byLogKey[key]
	return r, ok
}

// ByPageID looks up the most recent in-flight image of a committed page,
// keyed by its persistent page ID.
func (tl *TxLog) ByPageID(id PageID) (*TxLogRecord, bool) {
	r, ok := tl.byPageID[id]
	return r, ok
}
