package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/arbordb/arbor/internal/storage/pager"
)

// Mode flags select one operation per invocation, the same switch-on-a-
// handful-of-bools shape the teacher's cmd/main.go uses to pick between
// -demo, -web and the default REPL.
var (
	flagDB       = flag.String("db", "", "path to a resource.db file")
	flagPageSize = flag.Int("page-size", pager.DefaultPageSize, "page size in bytes")
	flagVerify   = flag.Bool("verify", false, "walk every page and report CRC/header issues")
	flagUber     = flag.Bool("uber", false, "print the uber page")
	flagPage     = flag.Int64("page", -1, "inspect a single page by ID")
	flagTrie     = flag.Int64("trie", -1, "dump the indirect trie rooted at this page ID")
	flagDepth    = flag.Int("depth", 1, "trie depth to dump with -trie")
	flagTxLog    = flag.String("txlog", "", "inspect a transaction log file")
	flagJSON     = flag.Bool("json", false, "emit JSON instead of a table")
)

func main() {
	flag.Parse()

	if *flagTxLog != "" {
		runTxLog(*flagTxLog, *flagPageSize)
		return
	}
	if *flagDB == "" {
		fmt.Fprintln(os.Stderr, "arborctl: -db is required unless -txlog is given")
		flag.Usage()
		os.Exit(2)
	}

	switch {
	case *flagVerify:
		runVerify(*flagDB)
	case *flagUber:
		runUber(*flagDB)
	case *flagPage >= 0:
		runPage(*flagDB, pager.PageID(*flagPage), *flagPageSize)
	case *flagTrie >= 0:
		runTrie(*flagDB, pager.PageID(*flagTrie), *flagDepth, *flagPageSize)
	default:
		runUber(*flagDB)
	}
}

func runVerify(dbPath string) {
	issues, err := pager.VerifyDB(dbPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "verify: %v\n", err)
		os.Exit(1)
	}
	if *flagJSON {
		emitJSON(map[string]any{"issues": issues, "healthy": len(issues) == 0})
		return
	}
	if len(issues) == 0 {
		fmt.Println("OK: no integrity issues found")
		return
	}
	for _, issue := range issues {
		fmt.Println(issue)
	}
	os.Exit(1)
}

func runUber(dbPath string) {
	info, err := pager.InspectUberPage(dbPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "uber page: %v\n", err)
		os.Exit(1)
	}
	if *flagJSON {
		emitJSON(info)
		return
	}
	tw := tabwriter.NewWriter(os.Stdout, 0, 2, 2, ' ', 0)
	fmt.Fprintf(tw, "format version:\t%d\n", info.FormatVersion)
	fmt.Fprintf(tw, "page size:\t%d\n", info.PageSize)
	fmt.Fprintf(tw, "last committed revision:\t%d\n", info.LastCommittedRev)
	fmt.Fprintf(tw, "revision roots ref:\t%d\n", info.RevisionRootsRef)
	fmt.Fprintf(tw, "feature flags:\t%#x\n", info.FeatureFlags)
	fmt.Fprintf(tw, "crc valid:\t%v\n", info.CRCValid)
	tw.Flush()
}

func runPage(dbPath string, id pager.PageID, pageSize int) {
	info, err := pager.InspectPage(dbPath, id, pageSize)
	if err != nil {
		fmt.Fprintf(os.Stderr, "page %d: %v\n", id, err)
		os.Exit(1)
	}
	if *flagJSON {
		emitJSON(info)
		return
	}
	tw := tabwriter.NewWriter(os.Stdout, 0, 2, 2, ' ', 0)
	fmt.Fprintf(tw, "id:\t%d\n", info.ID)
	fmt.Fprintf(tw, "type:\t%s\n", info.TypeStr)
	fmt.Fprintf(tw, "lsn:\t%d\n", info.LSN)
	fmt.Fprintf(tw, "crc valid:\t%v\n", info.CRCValid)
	fmt.Fprintf(tw, "fragment kind:\t%d\n", info.FragmentKind)
	fmt.Fprintf(tw, "previous key:\t%d\n", info.PreviousKey)
	switch info.Type {
	case pager.PageTypeIndirect:
		fmt.Fprintf(tw, "occupied slots:\t%d / %d\n", info.OccupiedSlots, pager.PageFanOut)
	default:
		fmt.Fprintf(tw, "slot count:\t%d\n", info.SlotCount)
		fmt.Fprintf(tw, "live records:\t%d\n", info.LiveRecords)
		fmt.Fprintf(tw, "free space:\t%d\n", info.FreeSpace)
	}
	tw.Flush()
}

func runTrie(dbPath string, root pager.PageID, depth, pageSize int) {
	dump, err := pager.DumpIndirectTrie(dbPath, root, depth, pageSize)
	if err != nil {
		fmt.Fprintf(os.Stderr, "dump trie: %v\n", err)
		os.Exit(1)
	}
	fmt.Print(dump)
}

func runTxLog(path string, pageSize int) {
	info, err := pager.InspectTxLog(path, pageSize)
	if err != nil {
		fmt.Fprintf(os.Stderr, "txlog: %v\n", err)
		os.Exit(1)
	}
	if *flagJSON {
		emitJSON(info)
		return
	}
	tw := tabwriter.NewWriter(os.Stdout, 0, 2, 2, ' ', 0)
	fmt.Fprintf(tw, "records:\t%d\n", info.Records)
	fmt.Fprintf(tw, "min log key:\t%d\n", info.MinKey)
	fmt.Fprintf(tw, "max log key:\t%d\n", info.MaxKey)
	tw.Flush()
}

func emitJSON(v any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		fmt.Fprintf(os.Stderr, "encode json: %v\n", err)
		os.Exit(1)
	}
}
