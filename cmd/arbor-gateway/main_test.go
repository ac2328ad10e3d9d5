package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/arbordb/arbor/internal/storage/pager"
)

// buildFixtureTenant writes a minimal single-revision, single-node resource
// under root/tenant, using only pager's exported construction helpers (the
// same page graph shape as the pager package's own transaction tests).
func buildFixtureTenant(t *testing.T, root, tenant string, nodeKey uint64, value string) {
	t.Helper()
	dir := filepath.Join(root, tenant)
	if err := os.MkdirAll(dir, 0755); err != nil {
		t.Fatalf("mkdir tenant dir: %v", err)
	}

	leaf := make([]byte, pager.DefaultPageSize)
	rp := pager.InitRecordPage(leaf, pager.PageTypeRecord, pager.PageID(4))
	for i := uint64(0); i <= nodeKey; i++ {
		val := "filler"
		if i == nodeKey {
			val = value
		}
		rec := &pager.Record{Kind: pager.NodeKindText, NameKey: -1, URIKey: -1, ParentKey: 1, Value: []byte(val)}
		if _, err := rp.InsertRecord(pager.MarshalRecord(rec, nil)); err != nil {
			t.Fatalf("insert record: %v", err)
		}
	}

	recordTrieBuf := make([]byte, pager.DefaultPageSize)
	recordTrie := pager.InitIndirectPage(recordTrieBuf, pager.PageID(3))
	recordTrie.SetSlot(0, &pager.PageReference{Key: pager.PageID(4), LogKey: -1})

	rrBuf := make([]byte, pager.DefaultPageSize)
	rr := pager.InitRevisionRootPage(rrBuf, pager.PageID(2), 0, time.Unix(1700000000, 0))
	rr.RecordIndexRef = &pager.PageReference{Key: pager.PageID(3), LogKey: -1}
	rr.MaxNodeKey = nodeKey
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

	f, err := os.Create(filepath.Join(dir, "resource.db"))
	if err != nil {
		t.Fatalf("create resource.db: %v", err)
	}
	defer f.Close()
	for _, page := range [][]byte{uberBuf, revTrie.Bytes(), rrBuf, recordTrie.Bytes(), rp.Bytes()} {
		if _, err := f.Write(page); err != nil {
			t.Fatalf("write page: %v", err)
		}
	}
}

func TestParseIndexKind(t *testing.T) {
	cases := map[string]pager.IndexKind{
		"":            pager.IndexKindDocument,
		"document":    pager.IndexKindDocument,
		"name":        pager.IndexKindName,
		"pathSummary": pager.IndexKindPathSummary,
		"cas":         pager.IndexKindCAS,
		"path":        pager.IndexKindPath,
	}
	for in, want := range cases {
		got, err := parseIndexKind(in)
		if err != nil {
			t.Errorf("parseIndexKind(%q): %v", in, err)
			continue
		}
		if got != want {
			t.Errorf("parseIndexKind(%q) = %v, want %v", in, got, want)
		}
	}
	if _, err := parseIndexKind("bogus"); err == nil {
		t.Error("expected an error for an unknown index name")
	}
}

func TestGateway_GetRecord(t *testing.T) {
	root := t.TempDir()
	buildFixtureTenant(t, root, "acme", 3, "hello-gateway")

	gw := newGateway(root, pager.DefaultPageSize, "acme")
	resp, err := gw.GetRecord(context.Background(), &getRecordRequest{Tenant: "acme", NodeKey: 3})
	if err != nil {
		t.Fatalf("GetRecord: %v", err)
	}
	if resp.Error != "" {
		t.Fatalf("unexpected error in response: %s", resp.Error)
	}
	if resp.Record["value"] == nil {
		t.Fatalf("expected a value field in the record, got %+v", resp.Record)
	}
}

func TestGateway_GetRecord_DefaultsTenant(t *testing.T) {
	root := t.TempDir()
	buildFixtureTenant(t, root, "acme", 0, "only-node")

	gw := newGateway(root, pager.DefaultPageSize, "acme")
	resp, err := gw.GetRecord(context.Background(), &getRecordRequest{NodeKey: 0})
	if err != nil {
		t.Fatalf("GetRecord: %v", err)
	}
	if resp.Error != "" {
		t.Fatalf("unexpected error using default tenant: %s", resp.Error)
	}
}

func TestGateway_GetRevisionInfo(t *testing.T) {
	root := t.TempDir()
	buildFixtureTenant(t, root, "acme", 1, "v")

	gw := newGateway(root, pager.DefaultPageSize, "acme")
	resp, err := gw.GetRevisionInfo(context.Background(), &getRevisionInfoRequest{Tenant: "acme"})
	if err != nil {
		t.Fatalf("GetRevisionInfo: %v", err)
	}
	if resp.Error != "" {
		t.Fatalf("unexpected error: %s", resp.Error)
	}
	if resp.Revision != 0 {
		t.Errorf("revision = %d, want 0", resp.Revision)
	}
	if resp.MaxNodeKey != 1 {
		t.Errorf("maxNodeKey = %d, want 1", resp.MaxNodeKey)
	}
}

func TestGateway_TransactionIsReusedAcrossCalls(t *testing.T) {
	root := t.TempDir()
	buildFixtureTenant(t, root, "acme", 2, "v")

	gw := newGateway(root, pager.DefaultPageSize, "acme")
	tx1, err := gw.transaction("acme", 0)
	if err != nil {
		t.Fatalf("transaction: %v", err)
	}
	tx2, err := gw.transaction("acme", 0)
	if err != nil {
		t.Fatalf("transaction: %v", err)
	}
	if tx1 != tx2 {
		t.Error("expected the same transaction to be reused for repeated (tenant, revision) lookups")
	}
}

func TestGateway_SharesBufferManagerAcrossTransactions(t *testing.T) {
	root := t.TempDir()
	buildFixtureTenant(t, root, "acme", 2, "v")

	gw := newGateway(root, pager.DefaultPageSize, "acme")
	if _, err := gw.transaction("acme", 0); err != nil {
		t.Fatalf("transaction: %v", err)
	}
	gw.mu.Lock()
	rs1, ok := gw.resources["acme"]
	gw.mu.Unlock()
	if !ok {
		t.Fatal("expected a resourceState to be created for tenant acme")
	}
	if rs1.bufmgr == nil {
		t.Fatal("expected a shared buffer manager")
	}
	if rs1.sweeper == nil {
		t.Fatal("expected a sweeper to be started from the default sweep schedule")
	}

	// A second transaction against the same tenant must reuse the same
	// resourceState rather than creating a second buffer manager. The cached
	// transaction is dropped first so the next lookup opens a new one.
	gw.mu.Lock()
	delete(gw.txns, txKey{tenant: "acme", revision: 0})
	gw.mu.Unlock()
	if _, err := gw.transaction("acme", 0); err != nil {
		t.Fatalf("transaction: %v", err)
	}
	gw.mu.Lock()
	rs2 := gw.resources["acme"]
	gw.mu.Unlock()
	if rs1 != rs2 {
		t.Error("expected the same resourceState to be reused across transactions for one tenant")
	}

	gw.stopSweepers()
}

func TestGateway_UnknownTenant(t *testing.T) {
	root := t.TempDir()
	gw := newGateway(root, pager.DefaultPageSize, "acme")
	resp, err := gw.GetRecord(context.Background(), &getRecordRequest{Tenant: "missing", NodeKey: 0})
	if err != nil {
		t.Fatalf("GetRecord: %v", err)
	}
	if resp.Error == "" {
		t.Error("expected an error for a tenant with no resource directory")
	}
}
