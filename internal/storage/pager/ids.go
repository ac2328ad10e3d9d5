package pager

import (
	"fmt"

	"github.com/google/uuid"
)

// ParseSessionID parses a session identifier string into a uuid.UUID,
// wrapping the underlying parse error with package context.
func ParseSessionID(s string) (uuid.UUID, error) {
	id, err := uuid.Parse(s)
	if err != nil {
		return uuid.UUID{}, fmt.Errorf("%w: invalid session id %q: %v", ErrInvalidArgument, s, err)
	}
	return id, nil
}

// NewSessionID generates a fresh random session identifier.
func NewSessionID() uuid.UUID {
	return uuid.New()
}

// SessionIDBytes returns the 16-byte binary encoding of id, the compact
// form embedded in diagnostic payloads.
func SessionIDBytes(id uuid.UUID) []byte {
	b, _ := id.MarshalBinary()
	return b
}
