package ports

import "context"

// WalletDecimals is the scale of in-game wallet balances: one unit is 10^-6 reward token.
const WalletDecimals = 6

// WalletUpdate represents a single currency change for a user.
type WalletUpdate struct {
	UserID   string
	Amount   int64
	Metadata map[string]interface{}
}

// EconomyPort mirrors ledger balances into the game server's wallets.
type EconomyPort interface {
	// GetBalance retrieves the mirrored reward-token balance for a user.
	GetBalance(ctx context.Context, userID string) (int64, error)

	// UpdateBalances applies multiple wallet changes atomically.
	// Purchases credit the reward they minted on the ledger.
	UpdateBalances(ctx context.Context, updates []WalletUpdate) error
}
