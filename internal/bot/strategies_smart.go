package bot

import (
	"sort"

	"unostake/internal/domain"
)

// SmartBot scores every legal card. It sheds high-value cards, steers play
// toward its strongest colour and spends wilds only under threat.
type SmartBot struct {
	Tuning Tuning
}

type scoredMove struct {
	index int
	score float64
}

func (b *SmartBot) CalculateMove(view View) (Move, error) {
	playable := domain.PlayableIndexes(view.Hand, view.TopCard, view.ActiveColor)
	if len(playable) == 0 {
		return Move{Draw: true}, nil
	}

	threat := view.OpponentCards > 0 && view.OpponentCards <= b.Tuning.ThreatThreshold
	scored := make([]scoredMove, 0, len(playable))
	for _, i := range playable {
		scored = append(scored, scoredMove{index: i, score: b.score(view, i, threat)})
	}
	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].score > scored[j].score
	})

	best := scored[0].index
	move := Move{CardIndex: best}
	if view.Hand[best].IsWild() {
		move.Color = dominantColor(view.Hand, best)
	}
	return move, nil
}

func (b *SmartBot) score(view View, index int, threat bool) float64 {
	card := view.Hand[index]
	score := b.Tuning.PointWeight * float64(domain.Score([]domain.Card{card}))

	if card.IsWild() {
		if !threat {
			score -= b.Tuning.WildPenalty
		}
		return score
	}

	// Cards left in the colour this play leaves active.
	same := 0
	for i, c := range view.Hand {
		if i != index && c.Color == card.Color {
			same++
		}
	}
	score += b.Tuning.KeepColorWeight * float64(same)
	if len(view.Hand) == 1 {
		score += 1000
	}
	return score
}
