package domain

import (
	"errors"
	"fmt"
	"math/rand"
)

// DeckSize is the number of cards in a full UNO deck.
const DeckSize = 108

var (
	numberValues = [9]string{"1", "2", "3", "4", "5", "6", "7", "8", "9"}
	actionValues = [3]string{ValueSkip, ValueReverse, ValueDrawTwo}
	wildValues   = [2]string{ValueWild, ValueWildDrawFour}
)

// ErrInsufficientCards is returned by Deal when the deck cannot cover every hand.
var ErrInsufficientCards = errors.New("not enough cards to deal")

// BuildDeck returns the 108 cards of an UNO deck in a fixed order:
// per colour one 0, two of each 1-9 and two of each action, then 4 wild and 4 wild draw four.
func BuildDeck() []Card {
	deck := make([]Card, 0, DeckSize)
	for _, color := range Colors {
		deck = append(deck, Card{Color: color, Value: "0", Kind: KindNumber})
		for _, v := range numberValues {
			deck = append(deck,
				Card{Color: color, Value: v, Kind: KindNumber},
				Card{Color: color, Value: v, Kind: KindNumber},
			)
		}
		for _, v := range actionValues {
			deck = append(deck,
				Card{Color: color, Value: v, Kind: KindAction},
				Card{Color: color, Value: v, Kind: KindAction},
			)
		}
	}
	for _, v := range wildValues {
		for i := 0; i < 4; i++ {
			deck = append(deck, Card{Color: ColorWild, Value: v, Kind: KindWild})
		}
	}
	return deck
}

// Shuffle returns a shuffled copy of deck using Fisher-Yates driven by rng.
// The input slice is left untouched.
func Shuffle(deck []Card, rng *rand.Rand) []Card {
	out := make([]Card, len(deck))
	copy(out, deck)
	for i := len(out) - 1; i > 0; i-- {
		j := rng.Intn(i + 1)
		out[i], out[j] = out[j], out[i]
	}
	return out
}

// Deal hands out handSize cards to each of playerCount players, taking cards
// from the end of deck one player at a time. The returned remainder keeps the
// original order of the cards that were not dealt.
func Deal(deck []Card, playerCount, handSize int) ([][]Card, []Card, error) {
	if playerCount <= 0 || handSize < 0 {
		return nil, nil, fmt.Errorf("deal %d hands of %d: %w", playerCount, handSize, ErrInsufficientCards)
	}
	need := playerCount * handSize
	if need > len(deck) {
		return nil, nil, fmt.Errorf("deal %d cards from %d: %w", need, len(deck), ErrInsufficientCards)
	}

	hands := make([][]Card, playerCount)
	for i := range hands {
		hands[i] = make([]Card, 0, handSize)
	}
	top := len(deck)
	for round := 0; round < handSize; round++ {
		for p := 0; p < playerCount; p++ {
			top--
			hands[p] = append(hands[p], deck[top])
		}
	}

	remaining := make([]Card, top)
	copy(remaining, deck[:top])
	return hands, remaining, nil
}
