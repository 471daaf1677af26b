package nakama

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/heroiclabs/nakama-common/api"
	"github.com/heroiclabs/nakama-common/runtime"

	"unostake/internal/ports"
)

// storageModule is the part of runtime.NakamaModule the address book uses.
type storageModule interface {
	StorageRead(ctx context.Context, reads []*runtime.StorageRead) ([]*api.StorageObject, error)
	StorageWrite(ctx context.Context, writes []*runtime.StorageWrite) ([]*api.StorageObjectAck, error)
}

type addressRecord struct {
	Address  ports.Address `json:"address"`
	LinkedAt string        `json:"linked_at"`
}

// NakamaAddressBook implements ports.AddressBook with one storage object per
// user. The object is written create-only and is not client writable, so a
// link cannot be replaced once made.
type NakamaAddressBook struct {
	nk  storageModule
	now func() time.Time
}

// NewNakamaAddressBook creates a storage backed address book.
func NewNakamaAddressBook(nk storageModule) *NakamaAddressBook {
	return &NakamaAddressBook{nk: nk, now: time.Now}
}

// LookupAddress returns the address linked to userID, or "" when none is linked.
func (b *NakamaAddressBook) LookupAddress(ctx context.Context, userID string) (ports.Address, error) {
	objects, err := b.nk.StorageRead(ctx, []*runtime.StorageRead{{
		Collection: addressCollection,
		Key:        addressKey,
		UserID:     userID,
	}})
	if err != nil {
		return "", fmt.Errorf("failed to read linked address: %w", err)
	}
	if len(objects) == 0 {
		return "", nil
	}
	var rec addressRecord
	if err := json.Unmarshal([]byte(objects[0].Value), &rec); err != nil {
		return "", fmt.Errorf("failed to unmarshal linked address: %w", err)
	}
	return rec.Address, nil
}

// LinkAddress stores addr for userID. A second write is rejected by the
// storage version check and reported as ports.ErrAddressLinked.
func (b *NakamaAddressBook) LinkAddress(ctx context.Context, userID string, addr ports.Address) error {
	if userID == "" {
		return fmt.Errorf("userID is required")
	}
	value, err := json.Marshal(addressRecord{
		Address:  addr,
		LinkedAt: b.now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		return fmt.Errorf("failed to marshal address record: %w", err)
	}
	_, err = b.nk.StorageWrite(ctx, []*runtime.StorageWrite{{
		Collection:      addressCollection,
		Key:             addressKey,
		UserID:          userID,
		Value:           string(value),
		Version:         "*",
		PermissionRead:  runtime.STORAGE_PERMISSION_OWNER_READ,
		PermissionWrite: runtime.STORAGE_PERMISSION_NO_WRITE,
	}})
	if err != nil {
		if errors.Is(err, runtime.ErrStorageRejectedVersion) {
			return ports.ErrAddressLinked
		}
		return fmt.Errorf("failed to link address: %w", err)
	}
	return nil
}

var _ ports.AddressBook = (*NakamaAddressBook)(nil)
