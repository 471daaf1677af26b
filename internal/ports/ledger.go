package ports

import (
	"context"
	"encoding/hex"
	"fmt"
	"math/big"
	"regexp"
	"strings"
)

// Address is a 0x-prefixed, 20-byte hex account identifier.
type Address string

var addressPattern = regexp.MustCompile(`^0x[a-fA-F0-9]{40}$`)

// Valid reports whether a is a well-formed account address.
func (a Address) Valid() bool {
	return addressPattern.MatchString(string(a))
}

// Equal compares two addresses ignoring hex case.
func (a Address) Equal(b Address) bool {
	return strings.EqualFold(string(a), string(b))
}

// MatchKey is the 32-byte identifier the ledger stores a match under.
type MatchKey [32]byte

// Hex renders the key as 0x-prefixed lowercase hex.
func (k MatchKey) Hex() string {
	return "0x" + hex.EncodeToString(k[:])
}

// ParseMatchKey decodes a 0x-prefixed 64 hex digit key.
func ParseMatchKey(s string) (MatchKey, error) {
	var k MatchKey
	raw := strings.TrimPrefix(s, "0x")
	if len(raw) != 64 {
		return k, fmt.Errorf("match key %q: want 64 hex digits", s)
	}
	if _, err := hex.Decode(k[:], []byte(raw)); err != nil {
		return k, fmt.Errorf("match key %q: %w", s, err)
	}
	return k, nil
}

// TxReceipt is the confirmation the ledger returns for a submitted transaction.
// A mined transaction that reverted has Success=false and an optional Reason.
type TxReceipt struct {
	TxHash      string `json:"txHash"`
	BlockNumber uint64 `json:"blockNumber"`
	Success     bool   `json:"success"`
	Reason      string `json:"reason,omitempty"`
}

// LedgerGateway moves value on behalf of the match coordinator.
// Stake and Buy act for the caller bound to ctx with WithCaller.
// Implementations own retries and timeouts; callers invoke each operation once per event.
type LedgerGateway interface {
	// CreateMatch registers a match and the stake each player must escrow.
	CreateMatch(ctx context.Context, id MatchKey, p1, p2 Address, stakeWei *big.Int) (TxReceipt, error)

	// Stake escrows the match stake from the calling player.
	Stake(ctx context.Context, id MatchKey) (TxReceipt, error)

	// CommitResult releases both stakes to winner. The ledger accepts it once per match.
	CommitResult(ctx context.Context, id MatchKey, winner Address) (TxReceipt, error)

	// Buy exchanges amount stake-asset smallest units for reward tokens minted to the caller.
	Buy(ctx context.Context, amount *big.Int) (TxReceipt, error)

	// ExchangeRate returns the current reward units granted per stake unit.
	ExchangeRate(ctx context.Context) (*big.Int, error)
}

type callerKey struct{}

// WithCaller binds the account a ledger call is signed for.
func WithCaller(ctx context.Context, caller Address) context.Context {
	return context.WithValue(ctx, callerKey{}, caller)
}

// CallerFromContext returns the account bound by WithCaller.
func CallerFromContext(ctx context.Context) (Address, bool) {
	caller, ok := ctx.Value(callerKey{}).(Address)
	return caller, ok && caller != ""
}
