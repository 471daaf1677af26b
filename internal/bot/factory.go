package bot

import (
	"fmt"
)

// BotLevel selects a strategy.
type BotLevel int

const (
	BotLevelGood BotLevel = iota + 1
	BotLevelSmart
)

// ParseLevel maps an identity difficulty to a level.
func ParseLevel(difficulty string) BotLevel {
	switch difficulty {
	case "hard", "smart":
		return BotLevelSmart
	default:
		return BotLevelGood
	}
}

// NewBrain creates a new AI brain based on the specified level.
func NewBrain(level BotLevel) (Brain, error) {
	switch level {
	case BotLevelGood:
		return &GoodBot{}, nil
	case BotLevelSmart:
		return &SmartBot{Tuning: DefaultTuning}, nil
	default:
		return nil, fmt.Errorf("unknown bot level: %d", level)
	}
}

// NewAgent builds an agent for identity.
func NewAgent(identity BotIdentity) (*Agent, error) {
	if !identity.Address.Valid() {
		return nil, fmt.Errorf("bot %s has invalid address %q", identity.Username, identity.Address)
	}
	brain, err := NewBrain(ParseLevel(identity.Difficulty))
	if err != nil {
		return nil, err
	}
	name := identity.DisplayName
	if name == "" {
		name = identity.Username
	}
	return &Agent{Address: identity.Address, Name: name, Strategy: brain}, nil
}
