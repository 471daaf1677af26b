package bot

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"unostake/internal/ports"
)

// BotIdentity is a bot player and the ledger address it plays from.
type BotIdentity struct {
	Address     ports.Address `json:"address"`
	Username    string        `json:"username"`
	DisplayName string        `json:"display_name"`
	Difficulty  string        `json:"difficulty"` // "easy", "hard"
}

// Identities is a pool of bots.
type Identities struct {
	list   []BotIdentity
	byAddr map[string]BotIdentity
}

// LoadIdentities loads the bot profiles from the given path.
func LoadIdentities(path string) (*Identities, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read bot identities: %w", err)
	}
	var list []BotIdentity
	if err := json.Unmarshal(data, &list); err != nil {
		return nil, fmt.Errorf("failed to unmarshal bot identities: %w", err)
	}
	return NewIdentities(list)
}

// NewIdentities validates list and indexes it by address.
func NewIdentities(list []BotIdentity) (*Identities, error) {
	ids := &Identities{list: list, byAddr: make(map[string]BotIdentity, len(list))}
	for _, identity := range list {
		if !identity.Address.Valid() {
			return nil, fmt.Errorf("bot %q has invalid address %q", identity.Username, identity.Address)
		}
		key := normalize(identity.Address)
		if _, dup := ids.byAddr[key]; dup {
			return nil, fmt.Errorf("duplicate bot address %s", identity.Address)
		}
		ids.byAddr[key] = identity
	}
	return ids, nil
}

// DefaultIdentities is used when no identity file is available.
func DefaultIdentities() *Identities {
	ids, _ := NewIdentities([]BotIdentity{
		{Address: "0xb0b0000000000000000000000000000000000001", Username: "bot_easy", DisplayName: "AI Player 1", Difficulty: "easy"},
		{Address: "0xb0b0000000000000000000000000000000000002", Username: "bot_hard", DisplayName: "AI Player 2", Difficulty: "hard"},
	})
	return ids
}

// Get returns the identity at index (mod pool size).
func (ids *Identities) Get(index int) BotIdentity {
	if len(ids.list) == 0 {
		return BotIdentity{Username: fmt.Sprintf("bot-%d", index), DisplayName: fmt.Sprintf("AI Player %d", index)}
	}
	return ids.list[index%len(ids.list)]
}

// Len reports the pool size.
func (ids *Identities) Len() int {
	return len(ids.list)
}

// IsBot reports whether addr belongs to the bot pool.
func (ids *Identities) IsBot(addr ports.Address) bool {
	_, ok := ids.byAddr[normalize(addr)]
	return ok
}

// DisplayName returns the display name for a bot address, or "" if not a bot.
func (ids *Identities) DisplayName(addr ports.Address) string {
	identity, ok := ids.byAddr[normalize(addr)]
	if !ok {
		return ""
	}
	if identity.DisplayName == "" {
		return identity.Username
	}
	return identity.DisplayName
}

func normalize(addr ports.Address) string {
	return strings.ToLower(string(addr))
}
