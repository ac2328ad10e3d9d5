package pager

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"strings"
)

// ───────────────────────────────────────────────────────────────────────────
// Inspection & verification tools
// ───────────────────────────────────────────────────────────────────────────

// PageInfo holds inspection information about a single page.
type PageInfo struct {
	ID       PageID
	Type     PageType
	TypeStr  string
	LSN      LSN
	CRC      uint32
	CRCValid bool
	Flags    uint8

	// Record/index page stats
	SlotCount   int
	LiveRecords int
	FreeSpace   int

	// Indirect page stats
	OccupiedSlots int

	// Fragment chaining
	FragmentKind FragmentKind
	PreviousKey  PageID
}

// InspectPage reads a single page and returns detailed information.
func InspectPage(dbPath string, pageID PageID, pageSize int) (*PageInfo, error) {
	f, err := os.Open(dbPath)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	buf := make([]byte, pageSize)
	off := int64(pageID) * int64(pageSize)
	if _, err := f.ReadAt(buf, off); err != nil {
		return nil, fmt.Errorf("read page %d: %w", pageID, err)
	}

	hdr := UnmarshalHeader(buf)
	crcValid := VerifyPageCRC(buf) == nil

	info := &PageInfo{
		ID:           hdr.ID,
		Type:         hdr.Type,
		TypeStr:      hdr.Type.String(),
		LSN:          hdr.LSN,
		CRC:          hdr.CRC,
		CRCValid:     crcValid,
		Flags:        hdr.Flags,
		FragmentKind: pageFragmentKind(&hdr),
		PreviousKey:  pagePreviousKey(&hdr),
	}

	switch hdr.Type {
	case PageTypeRecord, PageTypeNameIndex, PageTypePathSummary, PageTypeCASIndex, PageTypePathIndex:
		rp := WrapRecordPage(buf)
		info.SlotCount = rp.SlotCount()
		info.LiveRecords = rp.LiveRecords()
		info.FreeSpace = rp.FreeSpace()

	case PageTypeIndirect:
		if ip, err := WrapIndirectPage(buf); err == nil {
			for i := 0; i < PageFanOut; i++ {
				if !ip.Slot(i).IsEmpty() {
					info.OccupiedSlots++
				}
			}
		}
	}

	return info, nil
}

// VerifyDB checks the integrity of an entire database file.
// Returns a list of issues found (empty = healthy).
func VerifyDB(dbPath string) ([]string, error) {
	f, err := os.Open(dbPath)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	fi, err := f.Stat()
	if err != nil {
		return nil, err
	}

	var issues []string

	upBuf := make([]byte, MaxPageSize) // read max possible
	n, err := f.ReadAt(upBuf, 0)
	if err != nil && err != io.EOF {
		return nil, err
	}
	if n < MinPageSize {
		return []string{"file too small to contain an uber page"}, nil
	}

	peekPS := int(binary.LittleEndian.Uint32(upBuf[upPageSizeOff:]))
	if peekPS >= MinPageSize && peekPS <= MaxPageSize && peekPS <= n {
		upBuf = upBuf[:peekPS]
	} else {
		upBuf = upBuf[:n]
	}

	up, err := UnmarshalUberPage(upBuf)
	if err != nil {
		return []string{fmt.Sprintf("uber page: %v", err)}, nil
	}

	pageSize := int(up.PageSize)
	totalPages := fi.Size() / int64(pageSize)
	if fi.Size()%int64(pageSize) != 0 {
		issues = append(issues, fmt.Sprintf("file size %d not a multiple of page size %d",
			fi.Size(), pageSize))
	}

	buf := make([]byte, pageSize)
	for i := int64(0); i < totalPages; i++ {
		if _, err := f.ReadAt(buf, i*int64(pageSize)); err != nil {
			issues = append(issues, fmt.Sprintf("page %d: read error: %v", i, err))
			continue
		}
		if err := VerifyPageCRC(buf); err != nil {
			issues = append(issues, fmt.Sprintf("page %d: %v", i, err))
		}

		hdr := UnmarshalHeader(buf)
		if hdr.ID != PageID(i) && i > 0 { // uber page always has ID 0
			issues = append(issues, fmt.Sprintf("page %d: header ID mismatch (says %d)", i, hdr.ID))
		}
	}

	return issues, nil
}

// DumpIndirectTrie produces a human-readable dump of an indirect-page trie
// starting at root, down to depth levels.
func DumpIndirectTrie(dbPath string, root PageID, depth, pageSize int) (string, error) {
	f, err := os.Open(dbPath)
	if err != nil {
		return "", err
	}
	defer f.Close()

	var sb strings.Builder
	readPage := func(pid PageID) ([]byte, error) {
		buf := make([]byte, pageSize)
		off := int64(pid) * int64(pageSize)
		if _, err := f.ReadAt(buf, off); err != nil {
			return nil, err
		}
		return buf, nil
	}

	var dump func(pid PageID, level, indent int) error
	dump = func(pid PageID, level, indent int) error {
		pad := strings.Repeat("  ", indent)
		if level >= depth {
			fmt.Fprintf(&sb, "%sleaf=%d\n", pad, pid)
			return nil
		}
		buf, err := readPage(pid)
		if err != nil {
			return err
		}
		ip, err := WrapIndirectPage(buf)
		if err != nil {
			return err
		}
		fmt.Fprintf(&sb, "%sindirect[%d]\n", pad, pid)
		for i := 0; i < PageFanOut; i++ {
			ref := ip.Slot(i)
			if ref.IsEmpty() {
				continue
			}
			fmt.Fprintf(&sb, "%s  [%d] -> page %d\n", pad, i, ref.Key)
			if err := dump(ref.Key, level+1, indent+2); err != nil {
				return err
			}
		}
		return nil
	}

	if err := dump(root, 0, 0); err != nil {
		return "", err
	}
	return sb.String(), nil
}

// TxLogInfo holds information about a transaction log file.
type TxLogInfo struct {
	PageSize int
	Records  int
	MinKey   int64
	MaxKey   int64
}

// InspectTxLog reads and summarizes a transaction log file.
func InspectTxLog(path string, pageSize int) (*TxLogInfo, error) {
	tl, err := OpenTxLog(path, pageSize)
	if err != nil {
		return nil, err
	}
	info := &TxLogInfo{PageSize: pageSize, Records: len(tl.byLogKey)}
	first := true
	for k := range tl.byLogKey {
		if first || k < info.MinKey {
			info.MinKey = k
		}
		if first || k > info.MaxKey {
			info.MaxKey = k
		}
		first = false
	}
	return info, nil
}

// UberPageInfo holds display-friendly uber page data.
type UberPageInfo struct {
	FormatVersion    uint32
	PageSize         uint32
	LastCommittedRev uint64
	RevisionRootsRef PageID
	FeatureFlags     uint64
	CRCValid         bool
}

// InspectUberPage reads and returns the uber page metadata.
func InspectUberPage(dbPath string) (*UberPageInfo, error) {
	f, err := os.Open(dbPath)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	buf := make([]byte, MaxPageSize)
	n, err := f.ReadAt(buf, 0)
	if err != nil && err != io.EOF {
		return nil, err
	}
	if n >= upPageSizeOff+4 {
		ps := int(binary.LittleEndian.Uint32(buf[upPageSizeOff:]))
		if ps >= MinPageSize && ps <= MaxPageSize && ps <= n {
			buf = buf[:ps]
		} else {
			buf = buf[:n]
		}
	} else {
		buf = buf[:n]
	}

	crcValid := VerifyPageCRC(buf) == nil
	up, err := UnmarshalUberPage(buf)
	if err != nil {
		return &UberPageInfo{CRCValid: crcValid}, err
	}

	return &UberPageInfo{
		FormatVersion:    up.FormatVersion,
		PageSize:         up.PageSize,
		LastCommittedRev: up.LastCommittedRev,
		RevisionRootsRef: up.RevisionRootsRef,
		FeatureFlags:     uint64(up.FeatureFlags),
		CRCValid:         crcValid,
	}, nil
}
