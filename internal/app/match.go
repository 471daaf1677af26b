package app

import (
	"math/big"
	"strings"
	"time"

	"unostake/internal/domain"
	"unostake/internal/ports"
	"unostake/internal/token"
)

// Status is the lifecycle state of a match.
type Status string

const (
	StatusCreated         Status = "created"
	StatusPartiallyStaked Status = "partially_staked"
	StatusFullyStaked     Status = "fully_staked"
	StatusInProgress      Status = "in_progress"
	StatusResultPending   Status = "result_pending"
	StatusCompleted       Status = "completed"
	StatusFailed          Status = "failed"
)

// Terminal reports whether no further transition is possible.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Playable reports whether moves are accepted.
func (s Status) Playable() bool {
	return s == StatusFullyStaked || s == StatusInProgress
}

// Receipt is a ledger receipt tagged with the operation and acting player.
type Receipt struct {
	Op     string        `json:"op"`
	Player ports.Address `json:"player,omitempty"`
	ports.TxReceipt
}

// Match is the coordinator's record of one staked game.
type Match struct {
	ID        MatchID
	Key       ports.MatchKey
	Player1   ports.Address
	Player2   ports.Address
	Stake     *big.Int
	Status    Status
	StakedBy  map[string]bool
	Winner    ports.Address
	Receipts  []Receipt
	Failure   string
	CreatedAt time.Time
	UpdatedAt time.Time

	// Session is dropped once the match is terminal.
	Session *domain.Session
	// LoserScore is the value left in the loser's hand when the game ended.
	LoserScore int

	commitAttempted bool
	claimedWinner   ports.Address
}

func newMatch(id MatchID, p1, p2 ports.Address, stake *big.Int, session *domain.Session, now time.Time) *Match {
	return &Match{
		ID:        id,
		Key:       LedgerKey(id),
		Player1:   p1,
		Player2:   p2,
		Stake:     new(big.Int).Set(stake),
		Status:    StatusCreated,
		StakedBy:  make(map[string]bool, domain.Players),
		Session:   session,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Seat returns the engine index of player, or -1.
func (m *Match) Seat(player ports.Address) int {
	switch {
	case player.Equal(m.Player1):
		return 0
	case player.Equal(m.Player2):
		return 1
	}
	return -1
}

// PlayerAt returns the address seated at index.
func (m *Match) PlayerAt(index int) ports.Address {
	if index == 0 {
		return m.Player1
	}
	return m.Player2
}

// HasStaked reports whether player's stake is confirmed.
func (m *Match) HasStaked(player ports.Address) bool {
	return m.StakedBy[stakeKey(player)]
}

func (m *Match) markStaked(player ports.Address) {
	m.StakedBy[stakeKey(player)] = true
	if len(m.StakedBy) >= domain.Players {
		m.Status = StatusFullyStaked
	} else {
		m.Status = StatusPartiallyStaked
	}
}

func (m *Match) close(status Status, now time.Time) {
	m.Status = status
	m.UpdatedAt = now
	if m.Session != nil && m.Session.Finished() {
		m.LoserScore = domain.Score(m.Session.Hands[domain.NextPlayer(m.Session.WinnerIndex)])
	}
	m.Session = nil
}

func stakeKey(a ports.Address) string {
	return strings.ToLower(string(a))
}

// MatchView is a read-only snapshot of a match.
type MatchView struct {
	MatchID    string          `json:"matchId"`
	LedgerKey  string          `json:"ledgerKey"`
	Player1    ports.Address   `json:"player1"`
	Player2    ports.Address   `json:"player2"`
	StakeWei   string          `json:"stakeWei"`
	Stake      string          `json:"stake"`
	Status     Status          `json:"status"`
	StakedBy   []ports.Address `json:"stakedBy"`
	Winner     ports.Address   `json:"winner,omitempty"`
	Failure    string          `json:"failure,omitempty"`
	Receipts   []Receipt       `json:"receipts"`
	CreatedAt  time.Time       `json:"createdAt"`
	UpdatedAt  time.Time       `json:"updatedAt"`
	LoserScore int             `json:"loserScore,omitempty"`
	Game       *GameView       `json:"game,omitempty"`
}

// GameView is the public part of the game state. Hands are shown by size only.
type GameView struct {
	CurrentPlayer ports.Address `json:"currentPlayer"`
	TopCard       domain.Card   `json:"topCard"`
	ActiveColor   domain.Color  `json:"activeColor"`
	HandSizes     [2]int        `json:"handSizes"`
	DeckSize      int           `json:"deckSize"`
}

func (m *Match) view(decimals int) MatchView {
	v := MatchView{
		MatchID:    m.ID.String(),
		LedgerKey:  m.Key.Hex(),
		Player1:    m.Player1,
		Player2:    m.Player2,
		StakeWei:   m.Stake.String(),
		Stake:      token.FormatUnits(m.Stake, decimals),
		Status:     m.Status,
		Winner:     m.Winner,
		Failure:    m.Failure,
		Receipts:   append([]Receipt(nil), m.Receipts...),
		CreatedAt:  m.CreatedAt,
		UpdatedAt:  m.UpdatedAt,
		LoserScore: m.LoserScore,
	}
	for _, p := range []ports.Address{m.Player1, m.Player2} {
		if m.HasStaked(p) {
			v.StakedBy = append(v.StakedBy, p)
		}
	}
	if s := m.Session; s != nil {
		v.Game = &GameView{
			CurrentPlayer: m.PlayerAt(s.CurrentPlayerIndex),
			TopCard:       s.TopCard(),
			ActiveColor:   s.ActiveColor,
			HandSizes:     [2]int{len(s.Hands[0]), len(s.Hands[1])},
			DeckSize:      len(s.Deck),
		}
	}
	return v
}
