package domain

import (
	"errors"
	"fmt"
)

var (
	ErrIllegalMove = errors.New("illegal move")
	ErrEmptyDeck   = errors.New("deck is empty")
	ErrGameOver    = errors.New("game is over")
)

// NoWinner is the WinnerIndex of a session still in play.
const NoWinner = -1

// Session is the turn state of one two-player game.
// The top card is always the last entry of Discard.
type Session struct {
	Deck               []Card
	Discard            []Card
	Hands              [Players][]Card
	CurrentPlayerIndex int
	ActiveColor        Color
	WinnerIndex        int
}

// NewSession deals handSize cards to both players from deck and turns the next
// card face up. A wild starting card leaves defaultColor active.
func NewSession(deck []Card, handSize int, defaultColor Color) (*Session, error) {
	hands, remaining, err := Deal(deck, Players, handSize)
	if err != nil {
		return nil, err
	}
	if len(remaining) == 0 {
		return nil, fmt.Errorf("no card left to start the discard pile: %w", ErrInsufficientCards)
	}

	top := remaining[len(remaining)-1]
	remaining = remaining[:len(remaining)-1]

	s := &Session{
		Deck:               remaining,
		Discard:            []Card{top},
		CurrentPlayerIndex: 0,
		ActiveColor:        top.Color,
		WinnerIndex:        NoWinner,
	}
	if top.IsWild() {
		s.ActiveColor = defaultColor
	}
	copy(s.Hands[:], hands)
	return s, nil
}

// TopCard returns the card currently face up.
func (s *Session) TopCard() Card {
	return s.Discard[len(s.Discard)-1]
}

// Finished reports whether a winner has been recorded.
func (s *Session) Finished() bool {
	return s.WinnerIndex != NoWinner
}

// CardCount returns the number of cards tracked by the session. It is DeckSize
// for any session built from a full deck.
func (s *Session) CardCount() int {
	n := len(s.Deck) + len(s.Discard)
	for _, h := range s.Hands {
		n += len(h)
	}
	return n
}

// PlayCard lays the card at cardIndex of the player's hand on the discard pile.
// A wild keeps the previous active colour unless chosen names one.
// Emptying the hand records the player as winner; otherwise the turn passes.
func (s *Session) PlayCard(playerIndex, cardIndex int, chosen Color) (Card, error) {
	if s.Finished() {
		return Card{}, ErrGameOver
	}
	if playerIndex != s.CurrentPlayerIndex {
		return Card{}, fmt.Errorf("player %d acted on player %d's turn: %w", playerIndex, s.CurrentPlayerIndex, ErrIllegalMove)
	}
	hand := s.Hands[playerIndex]
	if cardIndex < 0 || cardIndex >= len(hand) {
		return Card{}, fmt.Errorf("card index %d outside hand of %d: %w", cardIndex, len(hand), ErrIllegalMove)
	}
	card := hand[cardIndex]
	if !CanPlay(card, s.TopCard(), s.ActiveColor) {
		return Card{}, fmt.Errorf("%s does not follow %s on %s: %w", card, s.TopCard(), s.ActiveColor, ErrIllegalMove)
	}

	updated := make([]Card, 0, len(hand)-1)
	updated = append(updated, hand[:cardIndex]...)
	updated = append(updated, hand[cardIndex+1:]...)
	s.Hands[playerIndex] = updated
	s.Discard = append(s.Discard, card)

	switch {
	case !card.IsWild():
		s.ActiveColor = card.Color
	case chosen != ColorNone && chosen != ColorWild:
		s.ActiveColor = chosen
	}

	if CheckWinner(updated) {
		s.WinnerIndex = playerIndex
		return card, nil
	}
	s.CurrentPlayerIndex = NextPlayer(playerIndex)
	return card, nil
}

// DrawCard moves the last card of the deck into the player's hand.
// The player keeps the turn.
func (s *Session) DrawCard(playerIndex int) (Card, error) {
	if s.Finished() {
		return Card{}, ErrGameOver
	}
	if playerIndex != s.CurrentPlayerIndex {
		return Card{}, fmt.Errorf("player %d drew on player %d's turn: %w", playerIndex, s.CurrentPlayerIndex, ErrIllegalMove)
	}
	if len(s.Deck) == 0 {
		return Card{}, ErrEmptyDeck
	}
	card := s.Deck[len(s.Deck)-1]
	s.Deck = s.Deck[:len(s.Deck)-1]
	s.Hands[playerIndex] = append(s.Hands[playerIndex], card)
	return card, nil
}
