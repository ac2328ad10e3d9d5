package pager

import (
	"encoding/xml"
	"fmt"
	"os"
)

// ───────────────────────────────────────────────────────────────────────────
// Index definitions
// ───────────────────────────────────────────────────────────────────────────
//
// Each resource revision carries an INDEXES/<revision>.xml sidecar
// recording which name/path/CAS indexes were active when that revision was
// written; a page-read transaction loads it when it opens and exposes it
// through IndexDefinitions(). Record lookups do not consult it before
// descending a trie. This is a small, fixed, read-once-per-open
// schema, so it is decoded with the standard library's encoding/xml rather
// than a third-party parser (see DESIGN.md for why no library from the
// example pack was a fit here).

// IndexDefinitions is the parsed form of one revision's index-definition
// sidecar.
type IndexDefinitions struct {
	XMLName xml.Name          `xml:"indexes"`
	Name    []NameIndexDef    `xml:"name"`
	Path    []PathIndexDef    `xml:"path"`
	CAS     []CASIndexDef     `xml:"cas"`
}

// NameIndexDef declares one active name index.
type NameIndexDef struct {
	ID      int  `xml:"id,attr"`
	Include bool `xml:"include,attr"`
}

// PathIndexDef declares one active path index, scoped to a set of path
// patterns.
type PathIndexDef struct {
	ID      int      `xml:"id,attr"`
	Paths   []string `xml:"path"`
}

// CASIndexDef declares one active content-and-structure index, scoped to a
// value type and a set of path patterns.
type CASIndexDef struct {
	ID    int      `xml:"id,attr"`
	Type  string   `xml:"type,attr"` // "string" or "float64"
	Paths []string `xml:"path"`
}

// LoadIndexDefinitions reads and parses a revision's index-definition
// sidecar. A missing file means no secondary indexes were configured for
// that revision and is not an error: an empty IndexDefinitions is returned.
func LoadIndexDefinitions(path string) (*IndexDefinitions, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &IndexDefinitions{}, nil
		}
		return nil, fmt.Errorf("read index definitions: %w", err)
	}
	var defs IndexDefinitions
	if err := xml.Unmarshal(data, &defs); err != nil {
		return nil, fmt.Errorf("parse index definitions: %w", err)
	}
	return &defs, nil
}

// HasCAS reports whether any CAS index is declared active.
func (d *IndexDefinitions) HasCAS() bool { return len(d.CAS) > 0 }

// HasPath reports whether any path index is declared active.
func (d *IndexDefinitions) HasPath() bool { return len(d.Path) > 0 }

// HasName reports whether any name index is declared active.
func (d *IndexDefinitions) HasName() bool { return len(d.Name) > 0 }
