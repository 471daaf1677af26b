package ports

import (
	"context"
	"errors"
)

// ErrAddressLinked is returned when an account already has a different address linked.
var ErrAddressLinked = errors.New("account already linked to another address")

// AccountPort defines the interface for updating account profiles.
type AccountPort interface {
	// UpdateProfile updates account profile fields for the given user.
	UpdateProfile(ctx context.Context, userID, username, displayName string) error
}

// AddressBook maps game accounts to the ledger address they play with.
// A link is permanent so a player cannot switch identity between stake and payout.
type AddressBook interface {
	// LookupAddress returns the linked address, or "" when none is linked.
	LookupAddress(ctx context.Context, userID string) (Address, error)

	// LinkAddress records addr for userID. Linking the same address again is a no-op.
	LinkAddress(ctx context.Context, userID string, addr Address) error
}
