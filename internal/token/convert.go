// Package token converts amounts between the stake asset and the reward asset.
//
// All amounts are integers in the smallest unit of their asset. Decimal
// strings typed by users are parsed with ParseUnits and never go through
// floating point.
package token

import (
	"errors"
	"fmt"
	"math/big"
	"strings"
)

// Decimal scales of the assets the store trades.
const (
	StakeDecimals  = 6
	RewardDecimals = 18
)

var (
	ErrInvalidAmount = errors.New("amount must be a positive integer")
	ErrInvalidRate   = errors.New("exchange rate must be a positive integer")
)

// Converter quotes rewards between two assets with fixed decimal scales.
type Converter struct {
	StakeDecimals  int
	RewardDecimals int
}

// DefaultConverter trades a 6-decimal stake asset for an 18-decimal reward asset.
var DefaultConverter = Converter{StakeDecimals: StakeDecimals, RewardDecimals: RewardDecimals}

// QuoteReward returns the reward, in reward smallest units, bought by amount
// stake smallest units at rate whole reward units per whole stake unit.
// When the reward scale is coarser than the stake scale the result is truncated.
func (c Converter) QuoteReward(amount, rate *big.Int) (*big.Int, error) {
	if amount == nil || amount.Sign() <= 0 {
		return nil, ErrInvalidAmount
	}
	if rate == nil || rate.Sign() <= 0 {
		return nil, ErrInvalidRate
	}

	out := new(big.Int).Mul(amount, rate)
	shift := c.RewardDecimals - c.StakeDecimals
	switch {
	case shift > 0:
		out.Mul(out, pow10(shift))
	case shift < 0:
		out.Quo(out, pow10(-shift))
	}
	return out, nil
}

// ParseUnits converts a decimal string such as "0.1" into smallest units of an
// asset with the given number of decimals. Fractions finer than the scale are rejected.
func ParseUnits(s string, decimals int) (*big.Int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, fmt.Errorf("parse %q: %w", s, ErrInvalidAmount)
	}
	whole, frac, _ := strings.Cut(s, ".")
	if whole == "" {
		whole = "0"
	}
	if len(frac) > decimals {
		return nil, fmt.Errorf("parse %q: more than %d decimals: %w", s, decimals, ErrInvalidAmount)
	}
	digits := whole + frac + strings.Repeat("0", decimals-len(frac))
	for _, r := range digits {
		if r < '0' || r > '9' {
			return nil, fmt.Errorf("parse %q: %w", s, ErrInvalidAmount)
		}
	}
	out, ok := new(big.Int).SetString(digits, 10)
	if !ok {
		return nil, fmt.Errorf("parse %q: %w", s, ErrInvalidAmount)
	}
	return out, nil
}

// FormatUnits renders smallest units as a decimal string without trailing zeros.
func FormatUnits(v *big.Int, decimals int) string {
	if v == nil {
		return "0"
	}
	sign := ""
	abs := new(big.Int).Abs(v)
	if v.Sign() < 0 {
		sign = "-"
	}
	if decimals <= 0 {
		return sign + abs.String()
	}
	q, r := new(big.Int).QuoRem(abs, pow10(decimals), new(big.Int))
	if r.Sign() == 0 {
		return sign + q.String()
	}
	frac := r.String()
	frac = strings.Repeat("0", decimals-len(frac)) + frac
	return sign + q.String() + "." + strings.TrimRight(frac, "0")
}

func pow10(n int) *big.Int {
	return new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(n)), nil)
}
