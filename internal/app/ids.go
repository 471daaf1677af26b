package app

import (
	"encoding/hex"
	"io"
	"strings"

	"github.com/google/uuid"

	"unostake/internal/ports"
)

// MatchID identifies a match. It is a 128-bit UUID.
type MatchID = uuid.UUID

// NewMatchID generates a random match id from r.
func NewMatchID(r io.Reader) (MatchID, error) {
	return uuid.NewRandomFromReader(r)
}

// ParseMatchID accepts a dashed UUID, 32 hex digits with or without 0x, or the
// 64-digit ledger key form whose trailing 16 bytes are zero.
func ParseMatchID(s string) (MatchID, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return uuid.Nil, ErrInvalidMatchID.withf("match id is required")
	}
	if strings.Contains(s, "-") {
		id, err := uuid.Parse(s)
		if err != nil {
			return uuid.Nil, ErrInvalidMatchID.withf("invalid match id %q", s)
		}
		return id, nil
	}

	raw := strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")
	if len(raw) == 64 {
		if strings.Trim(raw[32:], "0") != "" {
			return uuid.Nil, ErrInvalidMatchID.withf("match key %q does not hold a 128-bit id", s)
		}
		raw = raw[:32]
	}
	if len(raw) != 32 {
		return uuid.Nil, ErrInvalidMatchID.withf("invalid match id %q", s)
	}
	var id MatchID
	if _, err := hex.Decode(id[:], []byte(raw)); err != nil {
		return uuid.Nil, ErrInvalidMatchID.withf("invalid match id %q", s)
	}
	return id, nil
}

// LedgerKey right-pads the id to the 32-byte key the ledger stores matches under.
func LedgerKey(id MatchID) ports.MatchKey {
	var k ports.MatchKey
	copy(k[:], id[:])
	return k
}
