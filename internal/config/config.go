package config

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v11"

	"unostake/internal/domain"
	"unostake/internal/token"
)

// Ledger modes.
const (
	LedgerMemory  = "memory"
	LedgerRelayer = "relayer"
)

// Env is the process configuration read from UNO_* variables.
type Env struct {
	LedgerMode     string        `env:"UNO_LEDGER_MODE"     envDefault:"memory"`
	RelayerURL     string        `env:"UNO_RELAYER_URL"`
	RelayerSecret  string        `env:"UNO_RELAYER_SECRET"`
	RelayerIssuer  string        `env:"UNO_RELAYER_ISSUER"  envDefault:"unostake"`
	LedgerTimeout  time.Duration `env:"UNO_LEDGER_TIMEOUT"  envDefault:"30s"`
	ExchangeRate   int64         `env:"UNO_EXCHANGE_RATE"   envDefault:"10"`
	StakeDecimals  int           `env:"UNO_STAKE_DECIMALS"  envDefault:"6"`
	RewardDecimals int           `env:"UNO_REWARD_DECIMALS" envDefault:"18"`
	AutoStake      bool          `env:"UNO_AUTO_STAKE"      envDefault:"true"`
	RedisAddr      string        `env:"UNO_REDIS_ADDR"`
	RedisChannel   string        `env:"UNO_REDIS_CHANNEL"   envDefault:"unostake.matches"`
	GameConfigPath string        `env:"UNO_GAME_CONFIG"`
}

// Load parses configuration from environment. A nil map reads the process
// environment; Nakama passes its runtime env map instead.
func Load(environment map[string]string) (Env, error) {
	var cfg Env
	opts := env.Options{}
	if environment != nil {
		opts.Environment = environment
	}
	if err := env.ParseWithOptions(&cfg, opts); err != nil {
		return Env{}, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Env{}, err
	}
	return cfg, nil
}

// Validate checks cross-field constraints.
func (e Env) Validate() error {
	switch e.LedgerMode {
	case LedgerMemory:
	case LedgerRelayer:
		if e.RelayerURL == "" || e.RelayerSecret == "" {
			return fmt.Errorf("relayer ledger requires UNO_RELAYER_URL and UNO_RELAYER_SECRET")
		}
	default:
		return fmt.Errorf("unknown ledger mode %q", e.LedgerMode)
	}
	if e.ExchangeRate <= 0 {
		return fmt.Errorf("exchange rate must be positive, got %d", e.ExchangeRate)
	}
	if e.StakeDecimals < 0 || e.RewardDecimals < 0 {
		return fmt.Errorf("decimals must not be negative")
	}
	if e.LedgerTimeout <= 0 {
		return fmt.Errorf("ledger timeout must be positive")
	}
	return nil
}

// Converter returns the token scales described by the environment.
func (e Env) Converter() token.Converter {
	return token.Converter{StakeDecimals: e.StakeDecimals, RewardDecimals: e.RewardDecimals}
}

// StakeTier is a named stake amount players can pick instead of typing one.
type StakeTier struct {
	ID    string `json:"id"`
	Stake string `json:"stake"`
}

// GameConfig holds the table rules loaded from JSON.
type GameConfig struct {
	HandSize     int         `json:"hand_size"`
	DefaultColor string      `json:"default_color"`
	DefaultTier  string      `json:"default_tier"`
	Tiers        []StakeTier `json:"tiers"`
}

// DefaultGameConfig is used when no config file is given.
func DefaultGameConfig() *GameConfig {
	return &GameConfig{
		HandSize:     7,
		DefaultColor: string(domain.ColorRed),
		DefaultTier:  "casual",
		Tiers: []StakeTier{
			{ID: "casual", Stake: "0.1"},
			{ID: "regular", Stake: "1"},
			{ID: "high", Stake: "10"},
		},
	}
}

// LoadGameConfig reads the game configuration at path. An empty path yields DefaultGameConfig.
func LoadGameConfig(path string, rewardDecimals int) (*GameConfig, error) {
	if path == "" {
		return DefaultGameConfig(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read game config: %w", err)
	}
	return ParseGameConfig(data, rewardDecimals)
}

// ParseGameConfig decodes and validates a JSON game configuration.
func ParseGameConfig(data []byte, rewardDecimals int) (*GameConfig, error) {
	var c GameConfig
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("failed to unmarshal game config: %w", err)
	}
	if c.HandSize == 0 {
		c.HandSize = 7
	}
	if c.DefaultColor == "" {
		c.DefaultColor = string(domain.ColorRed)
	}
	if err := c.Validate(rewardDecimals); err != nil {
		return nil, err
	}
	return &c, nil
}

// Validate checks the hand size fits the deck and every tier stake parses.
func (c *GameConfig) Validate(rewardDecimals int) error {
	maxHand := (domain.DeckSize - 1) / domain.Players
	if c.HandSize < 1 || c.HandSize > maxHand {
		return fmt.Errorf("hand size %d outside 1..%d", c.HandSize, maxHand)
	}
	if color, err := domain.ParseColor(c.DefaultColor); err != nil || color == domain.ColorNone {
		return fmt.Errorf("invalid default color %q", c.DefaultColor)
	}
	seen := make(map[string]bool, len(c.Tiers))
	for _, tier := range c.Tiers {
		if tier.ID == "" {
			return fmt.Errorf("stake tier without id")
		}
		if seen[tier.ID] {
			return fmt.Errorf("duplicate stake tier %q", tier.ID)
		}
		seen[tier.ID] = true
		v, err := token.ParseUnits(tier.Stake, rewardDecimals)
		if err != nil || v.Sign() <= 0 {
			return fmt.Errorf("stake tier %q: invalid stake %q", tier.ID, tier.Stake)
		}
	}
	if c.DefaultTier != "" && !seen[c.DefaultTier] {
		return fmt.Errorf("default tier %q is not defined", c.DefaultTier)
	}
	return nil
}

// TierStakes returns tier stakes keyed by id.
func (c *GameConfig) TierStakes() map[string]string {
	out := make(map[string]string, len(c.Tiers))
	for _, tier := range c.Tiers {
		out[tier.ID] = tier.Stake
	}
	return out
}
