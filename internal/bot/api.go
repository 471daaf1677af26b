package bot

import (
	"unostake/internal/domain"
)

// Move represents the decision made by the AI.
type Move struct {
	Draw      bool
	CardIndex int
	// Color is the colour nominated when CardIndex is a wild.
	Color domain.Color
}

// View is what a player can see on their turn.
type View struct {
	Hand          []domain.Card
	TopCard       domain.Card
	ActiveColor   domain.Color
	OpponentCards int
}

// Brain is the interface that all bot strategies must implement.
type Brain interface {
	CalculateMove(view View) (Move, error)
}
