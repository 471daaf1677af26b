package bot

import (
	"unostake/internal/domain"
)

// GoodBot plays the first legal coloured card and holds wilds until nothing
// else fits.
type GoodBot struct{}

func (b *GoodBot) CalculateMove(view View) (Move, error) {
	playable := domain.PlayableIndexes(view.Hand, view.TopCard, view.ActiveColor)
	if len(playable) == 0 {
		return Move{Draw: true}, nil
	}

	for _, i := range playable {
		if !view.Hand[i].IsWild() {
			return Move{CardIndex: i}, nil
		}
	}
	i := playable[0]
	return Move{CardIndex: i, Color: dominantColor(view.Hand, i)}, nil
}

// dominantColor returns the colour most represented in hand, ignoring the
// card at skip. Ties go to the earlier colour in domain.Colors.
func dominantColor(hand []domain.Card, skip int) domain.Color {
	counts := make(map[domain.Color]int)
	for i, c := range hand {
		if i == skip || c.IsWild() {
			continue
		}
		counts[c.Color]++
	}
	best := domain.ColorRed
	for _, color := range domain.Colors {
		if counts[color] > counts[best] {
			best = color
		}
	}
	return best
}
