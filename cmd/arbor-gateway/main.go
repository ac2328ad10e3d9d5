package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/arbordb/arbor/internal/storage/pager"

	"google.golang.org/grpc"
	"google.golang.org/grpc/encoding"
)

// Flags
var (
	flagResources = flag.String("resources", "./resources", "base directory holding one subdirectory per tenant resource")
	flagHTTP      = flag.String("http", ":8080", "HTTP listen address (empty to disable)")
	flagGRPC      = flag.String("grpc", ":9090", "gRPC listen address (empty to disable)")
	flagTenant    = flag.String("tenant", "default", "default tenant if none is given in a request")
	flagPageSize  = flag.Int("page-size", pager.DefaultPageSize, "resource page size in bytes")
	flagVerbose   = flag.Bool("v", false, "verbose logging")
)

// HTTP/gRPC request and response shapes. Revision 0 means "latest committed".
type getRecordRequest struct {
	Tenant   string `json:"tenant"`
	Revision uint64 `json:"revision"`
	NodeKey  uint64 `json:"nodeKey"`
	Index    string `json:"index"` // "document" (default), "name", "pathSummary", "cas", "path"
}

type getRecordResponse struct {
	Error  string         `json:"error,omitempty"`
	Record map[string]any `json:"record,omitempty"`
}

type getRevisionInfoRequest struct {
	Tenant   string `json:"tenant"`
	Revision uint64 `json:"revision"`
}

type getRevisionInfoResponse struct {
	Error      string `json:"error,omitempty"`
	Revision   uint64 `json:"revision"`
	Timestamp  string `json:"timestamp"`
	MaxNodeKey uint64 `json:"maxNodeKey"`
}

// gRPC JSON codec, in place of a protobuf wire format: a page-read gateway
// has no stable IDL to generate from yet, so requests/responses are plain
// JSON, same as the teacher's manual service registration does for its SQL
// surface.
type jsonCodec struct{}

func (jsonCodec) Name() string                        { return "json" }
func (jsonCodec) Marshal(v any) ([]byte, error)        { return json.Marshal(v) }
func (jsonCodec) Unmarshal(data []byte, v any) error   { return json.Unmarshal(data, v) }

// ArborGatewayServer is the gRPC-facing contract for the read-only page
// gateway: GetRecord resolves one node (primary or secondary index);
// GetRevisionInfo reports a revision's bookkeeping without touching any
// record.
type ArborGatewayServer interface {
	GetRecord(context.Context, *getRecordRequest) (*getRecordResponse, error)
	GetRevisionInfo(context.Context, *getRevisionInfoRequest) (*getRevisionInfoResponse, error)
}

func registerArborGatewayServer(s *grpc.Server, srv ArborGatewayServer) {
	s.RegisterService(&grpc.ServiceDesc{
		ServiceName: "arbor.Gateway",
		HandlerType: (*ArborGatewayServer)(nil),
		Methods: []grpc.MethodDesc{
			{MethodName: "GetRecord", Handler: _Gateway_GetRecord_Handler},
			{MethodName: "GetRevisionInfo", Handler: _Gateway_GetRevisionInfo_Handler},
		},
		Streams:  []grpc.StreamDesc{},
		Metadata: "arbor-gateway", // informational
	}, srv)
}

func _Gateway_GetRecord_Handler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(getRecordRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(ArborGatewayServer).GetRecord(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/arbor.Gateway/GetRecord"}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(ArborGatewayServer).GetRecord(ctx, req.(*getRecordRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func _Gateway_GetRevisionInfo_Handler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(getRevisionInfoRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(ArborGatewayServer).GetRevisionInfo(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/arbor.Gateway/GetRevisionInfo"}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(ArborGatewayServer).GetRevisionInfo(ctx, req.(*getRevisionInfoRequest))
	}
	return interceptor(ctx, in, info, handler)
}

// txKey identifies one already-open PageReadTransaction, kept alive across
// requests against the same tenant and revision.
type txKey struct {
	tenant   string
	revision uint64
}

// resourceState is the per-tenant shared state that must outlive any single
// transaction: the buffer manager (spec §5 — shared across every
// transaction opened against this resource) and the sweeper keeping it from
// growing unbounded between requests.
type resourceState struct {
	bufmgr  *pager.BufferManager
	sweeper *pager.BufferSweeper
}

// gateway holds every open transaction, one per (tenant, revision) pair
// actually requested so far, plus one resourceState per tenant whose buffer
// manager and sweeper are shared by every transaction against that tenant.
type gateway struct {
	mu            sync.Mutex
	resourcesRoot string
	pageSize      int
	defaultTenant string
	txns          map[txKey]*pager.PageReadTransaction
	resources     map[string]*resourceState
}

func newGateway(resourcesRoot string, pageSize int, defaultTenant string) *gateway {
	return &gateway{
		resourcesRoot: resourcesRoot,
		pageSize:      pageSize,
		defaultTenant: defaultTenant,
		txns:          make(map[txKey]*pager.PageReadTransaction),
		resources:     make(map[string]*resourceState),
	}
}

func (g *gateway) tenantOrDefault(t string) string {
	if strings.TrimSpace(t) == "" {
		return g.defaultTenant
	}
	return t
}

// resourceFor returns the shared buffer manager and sweeper for tenant,
// creating and starting them on first use. Callers must hold g.mu.
func (g *gateway) resourceFor(tenant string, cfg pager.ResourceConfig) (*resourceState, error) {
	if rs, ok := g.resources[tenant]; ok {
		return rs, nil
	}

	bufmgr := pager.NewBufferManager(pager.BufferManagerConfig{MaxPages: cfg.BufferManagerPages})
	rs := &resourceState{bufmgr: bufmgr}

	if cfg.SweepSchedule != "" {
		sweeper, err := pager.NewBufferSweeper(bufmgr, cfg.SweepSchedule)
		if err != nil {
			return nil, fmt.Errorf("tenant %s: sweep schedule: %w", tenant, err)
		}
		sweeper.Start()
		rs.sweeper = sweeper
	}

	g.resources[tenant] = rs
	return rs, nil
}

// stopSweepers halts every tenant's background sweep so the process can
// exit without a cron goroutine racing the final log lines.
func (g *gateway) stopSweepers() {
	g.mu.Lock()
	defer g.mu.Unlock()
	for _, rs := range g.resources {
		if rs.sweeper != nil {
			rs.sweeper.Stop()
		}
	}
}

func (g *gateway) transaction(tenant string, revision uint64) (*pager.PageReadTransaction, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	key := txKey{tenant: tenant, revision: revision}
	if tx, ok := g.txns[key]; ok {
		return tx, nil
	}

	cfg, err := pager.LoadResourceConfig(filepath.Join(g.resourcesRoot, tenant, "config.yaml"))
	if err != nil {
		return nil, err
	}

	rs, err := g.resourceFor(tenant, cfg)
	if err != nil {
		return nil, err
	}

	tx, err := pager.OpenPageReadTransaction(pager.PageReadTransactionConfig{
		ResourcePath:   filepath.Join(g.resourcesRoot, tenant),
		Revision:       revision,
		PageSize:       g.pageSize,
		MaxCachePages:  cfg.BufferManagerPages,
		TxCache:        pager.TxContainerCacheConfig{MaxEntries: cfg.TxCacheEntries, TTL: cfg.TxCacheTTL},
		BufferManager:  rs.bufmgr,
		ResourceConfig: cfg,
	})
	if err != nil {
		return nil, err
	}

	// Index under the caller's requested key, not tx.Revision(): a later
	// request for this tenant with the same revision value (0 for "latest")
	// looks up that same key and finds this transaction.
	g.txns[key] = tx
	return tx, nil
}

func parseIndexKind(s string) (pager.IndexKind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "document":
		return pager.IndexKindDocument, nil
	case "name":
		return pager.IndexKindName, nil
	case "pathsummary", "path-summary":
		return pager.IndexKindPathSummary, nil
	case "cas":
		return pager.IndexKindCAS, nil
	case "path":
		return pager.IndexKindPath, nil
	default:
		return 0, fmt.Errorf("%w: unknown index %q", pager.ErrInvalidArgument, s)
	}
}

// GetRecord implements ArborGatewayServer.
func (g *gateway) GetRecord(ctx context.Context, req *getRecordRequest) (*getRecordResponse, error) {
	tenant := g.tenantOrDefault(req.Tenant)
	kind, err := parseIndexKind(req.Index)
	if err != nil {
		return &getRecordResponse{Error: err.Error()}, nil
	}

	tx, err := g.transaction(tenant, req.Revision)
	if err != nil {
		return &getRecordResponse{Error: err.Error()}, nil
	}

	rec, err := tx.GetIndexRecord(kind, 0, req.NodeKey)
	if err != nil {
		return &getRecordResponse{Error: err.Error()}, nil
	}
	return &getRecordResponse{Record: pager.RecordToJSON(rec)}, nil
}

// GetRevisionInfo implements ArborGatewayServer.
func (g *gateway) GetRevisionInfo(ctx context.Context, req *getRevisionInfoRequest) (*getRevisionInfoResponse, error) {
	tenant := g.tenantOrDefault(req.Tenant)

	tx, err := g.transaction(tenant, req.Revision)
	if err != nil {
		return &getRevisionInfoResponse{Error: err.Error()}, nil
	}

	rr := tx.RevisionRoot()
	return &getRevisionInfoResponse{
		Revision:   rr.Revision,
		Timestamp:  rr.Timestamp.Format(time.RFC3339),
		MaxNodeKey: rr.MaxNodeKey,
	}, nil
}

// HTTP handlers — the same two operations, for callers that would rather
// not pull in a gRPC client.
func (g *gateway) handleGetRecord(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	nodeKey, err := strconv.ParseUint(q.Get("nodeKey"), 10, 64)
	if err != nil {
		http.Error(w, "invalid or missing nodeKey", http.StatusBadRequest)
		return
	}
	revision, _ := strconv.ParseUint(q.Get("revision"), 10, 64)

	resp, _ := g.GetRecord(r.Context(), &getRecordRequest{
		Tenant:   q.Get("tenant"),
		Revision: revision,
		NodeKey:  nodeKey,
		Index:    q.Get("index"),
	})
	writeJSON(w, resp)
}

func (g *gateway) handleGetRevisionInfo(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	revision, _ := strconv.ParseUint(q.Get("revision"), 10, 64)

	resp, _ := g.GetRevisionInfo(r.Context(), &getRevisionInfoRequest{
		Tenant:   q.Get("tenant"),
		Revision: revision,
	})
	writeJSON(w, resp)
}

func (g *gateway) handleStatus(w http.ResponseWriter, r *http.Request) {
	g.mu.Lock()
	open := len(g.txns)
	g.mu.Unlock()
	writeJSON(w, map[string]any{
		"ok":             true,
		"time":           time.Now().Format(time.RFC3339),
		"defaultTenant":  g.defaultTenant,
		"openTransactions": open,
	})
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func main() {
	flag.Parse()

	if err := os.MkdirAll(*flagResources, 0755); err != nil {
		log.Fatalf("resources dir: %v", err)
	}

	gw := newGateway(*flagResources, *flagPageSize, *flagTenant)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigChan
		log.Printf("shutting down, stopping buffer sweepers")
		gw.stopSweepers()
		os.Exit(0)
	}()

	encoding.RegisterCodec(jsonCodec{})

	var grpcErr error
	if *flagGRPC != "" {
		go func() {
			lis, err := net.Listen("tcp", *flagGRPC)
			if err != nil {
				log.Printf("gRPC listen error: %v", err)
				grpcErr = err
				return
			}
			gs := grpc.NewServer()
			registerArborGatewayServer(gs, gw)
			log.Printf("gRPC listening on %s", *flagGRPC)
			if err := gs.Serve(lis); err != nil {
				log.Printf("gRPC serve error: %v", err)
				grpcErr = err
			}
		}()
	}

	if *flagHTTP != "" {
		mux := http.NewServeMux()
		mux.HandleFunc("/api/record", gw.handleGetRecord)
		mux.HandleFunc("/api/revision", gw.handleGetRevisionInfo)
		mux.HandleFunc("/api/status", gw.handleStatus)
		if *flagVerbose {
			log.Printf("serving resources from %s", *flagResources)
		}
		log.Printf("HTTP listening on %s", *flagHTTP)
		if err := http.ListenAndServe(*flagHTTP, mux); err != nil {
			log.Printf("HTTP serve error: %v", err)
			if grpcErr != nil {
				os.Exit(1)
			}
		}
	} else {
		select {}
	}
}
