package pager

import "encoding/json"

// ───────────────────────────────────────────────────────────────────────────
// JSON diagnostics helpers
// ───────────────────────────────────────────────────────────────────────────
//
// RecordToJSON renders a decoded Record as a plain JSON-friendly map, used
// by cmd/arbor-gateway to render GetRecord responses over HTTP and gRPC.
// Binary attribute/text values are base64-encoded by
// encoding/json's default []byte handling.

// RecordToJSON converts a Record into a JSON-marshalable representation.
func RecordToJSON(r *Record) map[string]any {
	out := map[string]any{
		"kind": recordKindName(r.Kind),
	}
	if r.IsDeleted() {
		return out
	}
	out["key"] = r.Key
	if r.NameKey >= 0 {
		out["nameKey"] = r.NameKey
	}
	if r.URIKey >= 0 {
		out["uriKey"] = r.URIKey
	}
	out["parentKey"] = r.ParentKey
	switch r.Kind {
	case NodeKindElement, NodeKindObject:
		out["firstChildKey"] = r.FirstChildKey
		out["leftSiblingKey"] = r.LeftSiblingKey
		out["rightSiblingKey"] = r.RightSiblingKey
		if r.Kind == NodeKindElement {
			out["attrCount"] = r.AttrCount
			out["childCount"] = r.ChildCount
		}
	case NodeKindText:
		out["leftSiblingKey"] = r.LeftSiblingKey
		out["rightSiblingKey"] = r.RightSiblingKey
		out["value"] = r.Value
	case NodeKindAttribute:
		out["value"] = r.Value
	}
	return out
}

func recordKindName(k NodeKind) string {
	switch k {
	case NodeKindElement:
		return "element"
	case NodeKindAttribute:
		return "attribute"
	case NodeKindText:
		return "text"
	case NodeKindObject:
		return "object"
	default:
		return "deleted"
	}
}

// MarshalRecordJSON is a convenience wrapper around RecordToJSON +
// json.Marshal for diagnostic output.
func MarshalRecordJSON(r *Record) ([]byte, error) {
	return json.Marshal(RecordToJSON(r))
}
