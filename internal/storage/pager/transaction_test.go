package pager

import (
	"encoding/binary"
	"hash/crc32"
	"os"
	"path/filepath"
	"testing"
	"time"
)

// buildFixtureResource writes a minimal, single-revision resource directory
// to disk: uber page (0) -> revision trie (1) -> revision root (2) ->
// record-index trie (3) -> record leaf page (4), so OpenPageReadTransaction
// and GetRecord can be exercised against a real file the way reader.go and
// transaction.go expect to see one, without going through a writer.
func buildFixtureResource(t *testing.T, nodeKey uint64, value string) string {
	t.Helper()
	dir := t.TempDir()

	leaf := make([]byte, DefaultPageSize)
	rp := InitRecordPage(leaf, PageTypeRecord, PageID(4))
	slot := int(nodeKey % recordPageCapacity)
	for i := 0; i <= slot; i++ {
		rec := &Record{Kind: NodeKindText, NameKey: -1, URIKey: -1, ParentKey: 1}
		if i == slot {
			rec.Value = []byte(value)
		} else {
			rec.Value = []byte("filler")
		}
		if _, err := rp.InsertRecord(MarshalRecord(rec, nil)); err != nil {
			t.Fatalf("insert filler record: %v", err)
		}
	}

	recordTrieBuf := make([]byte, DefaultPageSize)
	recordTrie := InitIndirectPage(recordTrieBuf, PageID(3))
	recordTrie.SetSlot(int(nodeKey/recordPageCapacity), &PageReference{Key: PageID(4), LogKey: -1})

	rrBuf := make([]byte, DefaultPageSize)
	rr := InitRevisionRootPage(rrBuf, PageID(2), 0, time.Unix(1700000000, 0))
	rr.RecordIndexRef = &PageReference{Key: PageID(3), LogKey: -1}
	rr.MaxNodeKey = nodeKey
	rr.Marshal(rrBuf)

	revTrieBuf := make([]byte, DefaultPageSize)
	revTrie := InitIndirectPage(revTrieBuf, PageID(1))
	revTrie.SetSlot(0, &PageReference{Key: PageID(2), LogKey: -1})

	up := &UberPage{
		FormatVersion:    CurrentFormatVersion,
		PageSize:         DefaultPageSize,
		LastCommittedRev: 0,
		RevisionRootsRef: PageID(1),
	}
	uberBuf := MarshalUberPage(up, DefaultPageSize)

	dbPath := filepath.Join(dir, "resource.db")
	f, err := os.Create(dbPath)
	if err != nil {
		t.Fatalf("create resource.db: %v", err)
	}
	defer f.Close()
	for _, page := range [][]byte{uberBuf, revTrie.Bytes(), rrBuf, recordTrie.Bytes(), rp.Bytes()} {
		if _, err := f.Write(page); err != nil {
			t.Fatalf("write page: %v", err)
		}
	}

	return dir
}

func TestOpenPageReadTransaction_GetRecord(t *testing.T) {
	dir := buildFixtureResource(t, 5, "hello-node")

	tx, err := OpenPageReadTransaction(PageReadTransactionConfig{
		ResourcePath: dir,
		PageSize:     DefaultPageSize,
	})
	if err != nil {
		t.Fatalf("open transaction: %v", err)
	}
	defer tx.Close()

	if tx.Revision() != 0 {
		t.Errorf("expected revision 0, got %d", tx.Revision())
	}

	rec, err := tx.GetRecord(5)
	if err != nil {
		t.Fatalf("get record: %v", err)
	}
	if string(rec.Value) != "hello-node" {
		t.Errorf("value mismatch: got %q", rec.Value)
	}

	// A second lookup of the same node should be served from the
	// transaction's own container cache.
	rec2, err := tx.GetRecord(5)
	if err != nil {
		t.Fatalf("second get record: %v", err)
	}
	if string(rec2.Value) != "hello-node" {
		t.Errorf("cached value mismatch: got %q", rec2.Value)
	}
}

func TestOpenPageReadTransaction_GetIndexRecordMatchesGetRecord(t *testing.T) {
	dir := buildFixtureResource(t, 5, "hello-node")

	tx, err := OpenPageReadTransaction(PageReadTransactionConfig{
		ResourcePath: dir,
		PageSize:     DefaultPageSize,
	})
	if err != nil {
		t.Fatalf("open transaction: %v", err)
	}
	defer tx.Close()

	viaDocument, err := tx.GetRecord(5)
	if err != nil {
		t.Fatalf("get record: %v", err)
	}
	viaIndex, err := tx.GetIndexRecord(IndexKindDocument, 0, 5)
	if err != nil {
		t.Fatalf("get index record: %v", err)
	}
	if string(viaIndex.Value) != string(viaDocument.Value) {
		t.Errorf("GetIndexRecord mismatch: got %q, want %q", viaIndex.Value, viaDocument.Value)
	}
}

func TestOpenPageReadTransaction_UnknownNode(t *testing.T) {
	dir := buildFixtureResource(t, 5, "hello-node")

	tx, err := OpenPageReadTransaction(PageReadTransactionConfig{
		ResourcePath: dir,
		PageSize:     DefaultPageSize,
	})
	if err != nil {
		t.Fatalf("open transaction: %v", err)
	}
	defer tx.Close()

	if _, err := tx.GetRecord(1000000); err == nil {
		t.Fatal("expected error resolving an out-of-range node key")
	}
}

func TestOpenPageReadTransaction_RevisionTooNew(t *testing.T) {
	dir := buildFixtureResource(t, 5, "hello-node")

	_, err := OpenPageReadTransaction(PageReadTransactionConfig{
		ResourcePath: dir,
		Revision:     7,
		PageSize:     DefaultPageSize,
	})
	if err == nil {
		t.Fatal("expected error opening an uncommitted revision")
	}
}

func TestOpenPageReadTransaction_SharesInjectedBufferManager(t *testing.T) {
	dir := buildFixtureResource(t, 5, "hello-node")
	shared := NewBufferManager(BufferManagerConfig{MaxPages: 16, MaxContainers: 16})

	tx1, err := OpenPageReadTransaction(PageReadTransactionConfig{
		ResourcePath:  dir,
		PageSize:      DefaultPageSize,
		BufferManager: shared,
	})
	if err != nil {
		t.Fatalf("open tx1: %v", err)
	}
	defer tx1.Close()
	if _, err := tx1.GetRecord(5); err != nil {
		t.Fatalf("tx1 get record: %v", err)
	}

	tx2, err := OpenPageReadTransaction(PageReadTransactionConfig{
		ResourcePath:  dir,
		PageSize:      DefaultPageSize,
		BufferManager: shared,
	})
	if err != nil {
		t.Fatalf("open tx2: %v", err)
	}
	defer tx2.Close()

	if tx2.reader.BufferManager() != shared {
		t.Fatal("expected tx2 to reuse the injected, shared buffer manager")
	}
	if shared.Stats().CachedContainers == 0 {
		t.Error("expected tx1's reconstruction to have populated the shared container cache")
	}
	rec, err := tx2.GetRecord(5)
	if err != nil {
		t.Fatalf("tx2 get record: %v", err)
	}
	if string(rec.Value) != "hello-node" {
		t.Errorf("tx2 value mismatch via shared container cache: got %q", rec.Value)
	}
}

// writeEmptyTxLogFixture writes a syntactically valid, record-free
// transaction log file: just the file header OpenTxLog validates.
func writeEmptyTxLogFixture(t *testing.T, path string, pageSize int) {
	t.Helper()
	hdr := make([]byte, txLogFileHdrSz)
	copy(hdr[0:8], txLogMagic)
	binary.LittleEndian.PutUint32(hdr[8:12], txLogVersion)
	binary.LittleEndian.PutUint32(hdr[12:16], uint32(pageSize))
	binary.LittleEndian.PutUint32(hdr[24:28], crc32.Checksum(hdr[:24], crcTable))
	if err := os.WriteFile(path, hdr, 0644); err != nil {
		t.Fatalf("write tx log fixture: %v", err)
	}
}

func TestOpenPageReadTransaction_ContainerCacheSkippedWhenWriterPresent(t *testing.T) {
	dir := buildFixtureResource(t, 5, "hello-node")
	shared := NewBufferManager(BufferManagerConfig{MaxPages: 16, MaxContainers: 16})

	// Simulate an in-flight writer overlay for the *next* revision by
	// pre-creating an (empty but openable) page log file for revision 1.
	logDir := filepath.Join(dir, "log")
	if err := os.MkdirAll(logDir, 0755); err != nil {
		t.Fatalf("mkdir log dir: %v", err)
	}
	writeEmptyTxLogFixture(t, filepath.Join(logDir, "1.page.log"), DefaultPageSize)

	tx, err := OpenPageReadTransaction(PageReadTransactionConfig{
		ResourcePath:  dir,
		PageSize:      DefaultPageSize,
		BufferManager: shared,
	})
	if err != nil {
		t.Fatalf("open transaction: %v", err)
	}
	defer tx.Close()

	if !tx.writerPresent() {
		t.Fatal("expected writerPresent to be true with an in-flight page log")
	}
	if _, err := tx.GetRecord(5); err != nil {
		t.Fatalf("get record: %v", err)
	}
	if shared.Stats().CachedContainers != 0 {
		t.Error("expected the shared container-cache tier to stay untouched while a writer overlay is present")
	}
}

func TestOpenPageReadTransaction_LoadsIndexDefinitions(t *testing.T) {
	dir := buildFixtureResource(t, 5, "hello-node")
	if err := os.MkdirAll(filepath.Join(dir, "INDEXES"), 0755); err != nil {
		t.Fatalf("mkdir INDEXES: %v", err)
	}
	xmlDoc := `<indexes><cas id="0" type="string"><path>/a</path></cas></indexes>`
	if err := os.WriteFile(filepath.Join(dir, "INDEXES", "0.xml"), []byte(xmlDoc), 0644); err != nil {
		t.Fatalf("write index definitions: %v", err)
	}

	tx, err := OpenPageReadTransaction(PageReadTransactionConfig{
		ResourcePath: dir,
		PageSize:     DefaultPageSize,
	})
	if err != nil {
		t.Fatalf("open transaction: %v", err)
	}
	defer tx.Close()

	if !tx.IndexDefinitions().HasCAS() {
		t.Error("expected transaction to have loaded the CAS index definition from INDEXES/0.xml")
	}
}

func TestOpenPageReadTransaction_MissingIndexDefinitionsIsNotAnError(t *testing.T) {
	dir := buildFixtureResource(t, 5, "hello-node")

	tx, err := OpenPageReadTransaction(PageReadTransactionConfig{
		ResourcePath: dir,
		PageSize:     DefaultPageSize,
	})
	if err != nil {
		t.Fatalf("open transaction: %v", err)
	}
	defer tx.Close()

	if tx.IndexDefinitions().HasCAS() || tx.IndexDefinitions().HasPath() || tx.IndexDefinitions().HasName() {
		t.Error("expected empty index definitions when no sidecar file exists")
	}
}

func TestOpenPageReadTransaction_CloseIsIdempotent(t *testing.T) {
	dir := buildFixtureResource(t, 5, "hello-node")

	tx, err := OpenPageReadTransaction(PageReadTransactionConfig{
		ResourcePath: dir,
		PageSize:     DefaultPageSize,
	})
	if err != nil {
		t.Fatalf("open transaction: %v", err)
	}
	if err := tx.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if err := tx.Close(); err != nil {
		t.Fatalf("second close should be a no-op: %v", err)
	}
	if _, err := tx.GetRecord(5); err == nil {
		t.Fatal("expected error reading from a closed transaction")
	}
}
