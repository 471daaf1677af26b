package app

import (
	"unostake/internal/domain"
	"unostake/internal/ports"
)

// EventKind identifies emitted match events.
type EventKind string

const (
	EventMatchCreated      EventKind = "created"
	EventStakeConfirmed    EventKind = "stake_confirmed"
	EventAutoStakeFailed   EventKind = "auto_stake_failed"
	EventMovePlayed        EventKind = "move_played"
	EventCardDrawn         EventKind = "card_drawn"
	EventResultPending     EventKind = "result_pending"
	EventMatchCompleted    EventKind = "completed"
	EventMatchFailed       EventKind = "failed"
	EventPurchaseCompleted EventKind = "purchase_completed"
)

// Event is a match lifecycle event. MatchID is empty for store events.
type Event struct {
	Kind    EventKind
	MatchID string
	Status  Status
	Payload any
}

type MatchCreatedPayload struct {
	Player1  ports.Address `json:"player1"`
	Player2  ports.Address `json:"player2"`
	StakeWei string        `json:"stakeWei"`
	TxHash   string        `json:"txHash"`
}

type StakeConfirmedPayload struct {
	Player ports.Address `json:"player"`
	TxHash string        `json:"txHash"`
}

type AutoStakeFailedPayload struct {
	Player ports.Address `json:"player"`
	Error  string        `json:"error"`
}

type MovePlayedPayload struct {
	Player      ports.Address `json:"player"`
	Card        domain.Card   `json:"card"`
	ActiveColor domain.Color  `json:"activeColor"`
	NextPlayer  ports.Address `json:"nextPlayer,omitempty"`
	CardsLeft   int           `json:"cardsLeft"`
}

// CardDrawnPayload omits the card; only the drawing player sees it.
type CardDrawnPayload struct {
	Player   ports.Address `json:"player"`
	HandSize int           `json:"handSize"`
	DeckSize int           `json:"deckSize"`
}

type ResultPendingPayload struct {
	Winner ports.Address `json:"winner"`
}

type MatchCompletedPayload struct {
	Winner     ports.Address `json:"winner"`
	TxHash     string        `json:"txHash"`
	LoserScore int           `json:"loserScore"`
}

type MatchFailedPayload struct {
	Reason string `json:"reason"`
}

type PurchaseCompletedPayload struct {
	Buyer  ports.Address `json:"buyer"`
	Amount string        `json:"amount"`
	Reward string        `json:"reward"`
	TxHash string        `json:"txHash"`
}
