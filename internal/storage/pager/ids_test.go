package pager

import "testing"

func TestSessionID_RoundTrip(t *testing.T) {
	id := NewSessionID()
	parsed, err := ParseSessionID(id.String())
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if parsed != id {
		t.Errorf("roundtrip mismatch: %v vs %v", parsed, id)
	}
	if len(SessionIDBytes(id)) != 16 {
		t.Errorf("expected 16 binary bytes, got %d", len(SessionIDBytes(id)))
	}
}

func TestParseSessionID_Invalid(t *testing.T) {
	if _, err := ParseSessionID("not-a-uuid"); err == nil {
		t.Fatal("expected an error for a malformed session id")
	}
}
