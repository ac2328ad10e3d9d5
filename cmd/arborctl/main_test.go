package main

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/arbordb/arbor/internal/storage/pager"
)

// buildFixtureDB writes a minimal single-revision resource.db: uber (0) ->
// revision trie (1) -> revision root (2) -> record-index trie (3) -> record
// leaf (4), the same shape the pager package's own tests build.
func buildFixtureDB(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()

	leaf := make([]byte, pager.DefaultPageSize)
	rp := pager.InitRecordPage(leaf, pager.PageTypeRecord, pager.PageID(4))
	rec := &pager.Record{Kind: pager.NodeKindText, NameKey: -1, URIKey: -1, ParentKey: 1, Value: []byte("hi")}
	if _, err := rp.InsertRecord(pager.MarshalRecord(rec, nil)); err != nil {
		t.Fatalf("insert record: %v", err)
	}

	recordTrieBuf := make([]byte, pager.DefaultPageSize)
	recordTrie := pager.InitIndirectPage(recordTrieBuf, pager.PageID(3))
	recordTrie.SetSlot(0, &pager.PageReference{Key: pager.PageID(4), LogKey: -1})

	rrBuf := make([]byte, pager.DefaultPageSize)
	rr := pager.InitRevisionRootPage(rrBuf, pager.PageID(2), 0, time.Unix(1700000000, 0))
	rr.RecordIndexRef = &pager.PageReference{Key: pager.PageID(3), LogKey: -1}
	rr.MaxNodeKey = 0
	rr.Marshal(rrBuf)

	revTrieBuf := make([]byte, pager.DefaultPageSize)
	revTrie := pager.InitIndirectPage(revTrieBuf, pager.PageID(1))
	revTrie.SetSlot(0, &pager.PageReference{Key: pager.PageID(2), LogKey: -1})

	up := &pager.UberPage{
		FormatVersion:    pager.CurrentFormatVersion,
		PageSize:         pager.DefaultPageSize,
		LastCommittedRev: 0,
		RevisionRootsRef: pager.PageID(1),
	}
	uberBuf := pager.MarshalUberPage(up, pager.DefaultPageSize)

	path := filepath.Join(dir, "resource.db")
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create resource.db: %v", err)
	}
	defer f.Close()
	for _, page := range [][]byte{uberBuf, revTrie.Bytes(), rrBuf, recordTrie.Bytes(), rp.Bytes()} {
		if _, err := f.Write(page); err != nil {
			t.Fatalf("write page: %v", err)
		}
	}
	return path
}

func captureStdout(t *testing.T, fn func()) string {
	t.Helper()
	old := os.Stdout
	r, w, err := os.Pipe()
	if err != nil {
		t.Fatalf("pipe: %v", err)
	}
	os.Stdout = w
	fn()
	w.Close()
	os.Stdout = old

	var buf bytes.Buffer
	if _, err := io.Copy(&buf, r); err != nil {
		t.Fatalf("copy: %v", err)
	}
	return buf.String()
}

func TestRunUber(t *testing.T) {
	path := buildFixtureDB(t)
	out := captureStdout(t, func() { runUber(path) })
	if !bytes.Contains([]byte(out), []byte("last committed revision:  0")) {
		t.Errorf("uber output missing revision line, got:\n%s", out)
	}
}

func TestRunVerify(t *testing.T) {
	path := buildFixtureDB(t)
	out := captureStdout(t, func() { runVerify(path) })
	if out != "OK: no integrity issues found\n" {
		t.Errorf("expected a healthy verify report, got: %q", out)
	}
}

func TestRunPage(t *testing.T) {
	path := buildFixtureDB(t)
	out := captureStdout(t, func() { runPage(path, pager.PageID(4), pager.DefaultPageSize) })
	if !bytes.Contains([]byte(out), []byte("Record")) {
		t.Errorf("expected page type to mention \"Record\", got:\n%s", out)
	}
}

func TestRunTrie(t *testing.T) {
	path := buildFixtureDB(t)
	out := captureStdout(t, func() { runTrie(path, pager.PageID(3), 1, pager.DefaultPageSize) })
	if !bytes.Contains([]byte(out), []byte("leaf=4")) {
		t.Errorf("expected trie dump to reach leaf page 4, got:\n%s", out)
	}
}
