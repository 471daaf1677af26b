package bot

import (
	"fmt"

	"unostake/internal/domain"
	"unostake/internal/ports"
)

// Agent represents an autonomous bot player.
type Agent struct {
	Address  ports.Address
	Name     string
	Strategy Brain
}

// Play asks the agent to calculate its move for view. The returned move is
// always legal: a card index that can be played, or a draw.
func (a *Agent) Play(view View) (Move, error) {
	if len(view.Hand) == 0 {
		return Move{}, fmt.Errorf("agent %s has no cards", a.Name)
	}
	move, err := a.Strategy.CalculateMove(view)
	if err != nil {
		return Move{Draw: true}, err
	}
	if move.Draw {
		return move, nil
	}
	if move.CardIndex < 0 || move.CardIndex >= len(view.Hand) ||
		!domain.CanPlay(view.Hand[move.CardIndex], view.TopCard, view.ActiveColor) {
		return Move{Draw: true}, fmt.Errorf("strategy chose unplayable card %d", move.CardIndex)
	}
	return move, nil
}
