// Package onboarding prepares game accounts for staked play: a friendly
// display name for new accounts and a permanent link to a ledger address.
package onboarding

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"unostake/internal/ports"
)

var (
	ErrInvalidAddress = errors.New("invalid ledger address")
	ErrNotLinked      = errors.New("no ledger address linked to account")
)

// Result captures non-fatal onboarding outcomes.
type Result struct {
	DisplayName string
	// ProfileUpdateErr is set when the profile update failed but onboarding continued.
	ProfileUpdateErr error
}

// Service handles post-auth onboarding and address linking.
type Service struct {
	accounts  ports.AccountPort
	addresses ports.AddressBook

	mu  sync.Mutex
	rng *rand.Rand
}

// NewService constructs an onboarding service.
// accounts/addresses must be non-nil; rng may be nil to use a time-seeded default.
func NewService(accounts ports.AccountPort, addresses ports.AddressBook, rng *rand.Rand) *Service {
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &Service{
		accounts:  accounts,
		addresses: addresses,
		rng:       rng,
	}
}

// OnboardNewUser gives a newly created account a friendly display name.
// Profile updates are best effort and reported in Result.
func (s *Service) OnboardNewUser(ctx context.Context, userID string) Result {
	name := s.friendlyName()
	result := Result{DisplayName: name}
	if s.accounts == nil {
		result.ProfileUpdateErr = fmt.Errorf("onboarding service not configured")
		return result
	}
	if err := s.accounts.UpdateProfile(ctx, userID, "", name); err != nil {
		result.ProfileUpdateErr = err
	}
	return result
}

// LinkAddress binds addr to the account. Relinking the same address succeeds;
// a different address fails with ports.ErrAddressLinked.
func (s *Service) LinkAddress(ctx context.Context, userID string, addr ports.Address) error {
	if userID == "" {
		return fmt.Errorf("user id is required")
	}
	if !addr.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidAddress, addr)
	}
	current, err := s.addresses.LookupAddress(ctx, userID)
	if err != nil {
		return fmt.Errorf("lookup linked address: %w", err)
	}
	switch {
	case current == "":
	case current.Equal(addr):
		return nil
	default:
		return ports.ErrAddressLinked
	}
	if err := s.addresses.LinkAddress(ctx, userID, addr); err != nil {
		return fmt.Errorf("link address: %w", err)
	}
	return nil
}

// Resolve returns the address linked to userID.
func (s *Service) Resolve(ctx context.Context, userID string) (ports.Address, error) {
	addr, err := s.addresses.LookupAddress(ctx, userID)
	if err != nil {
		return "", fmt.Errorf("lookup linked address: %w", err)
	}
	if addr == "" {
		return "", ErrNotLinked
	}
	return addr, nil
}

func (s *Service) friendlyName() string {
	adjectives := []string{"Lucky", "Wild", "Swift", "Bold", "Clever", "Calm", "Mighty", "Sly", "Bright", "Quick"}
	nouns := []string{"Joker", "Dealer", "Shuffler", "Skipper", "Drawer", "Ace", "Wildcard", "Stacker", "Runner", "Caller"}

	s.mu.Lock()
	defer s.mu.Unlock()
	adj := adjectives[s.rng.Intn(len(adjectives))]
	noun := nouns[s.rng.Intn(len(nouns))]
	num := s.rng.Intn(9000) + 1000
	return fmt.Sprintf("%s%s%d", adj, noun, num)
}
