package domain

// Players is the fixed seat count of a staked match.
const Players = 2

// CanPlay reports whether card may be laid on top given the active colour.
// Wild cards are always legal; anything else must match the colour or the face value.
func CanPlay(card, top Card, activeColor Color) bool {
	if card.IsWild() {
		return true
	}
	if card.Color == activeColor {
		return true
	}
	return card.Value == top.Value
}

// CheckWinner reports whether a hand has been emptied.
func CheckWinner(hand []Card) bool {
	return len(hand) == 0
}

// NextPlayer returns the seat that acts after current.
// Action cards carry no turn effect, so play always alternates.
func NextPlayer(current int) int {
	return (current + 1) % Players
}

// Score totals the penalty points left in a hand:
// number cards count their face value, actions 20 and wilds 50.
func Score(hand []Card) int {
	total := 0
	for _, c := range hand {
		switch c.Kind {
		case KindNumber:
			total += int(c.Value[0] - '0')
		case KindAction:
			total += 20
		case KindWild:
			total += 50
		}
	}
	return total
}

// PlayableIndexes lists the positions in hand that CanPlay accepts.
func PlayableIndexes(hand []Card, top Card, activeColor Color) []int {
	var out []int
	for i, c := range hand {
		if CanPlay(c, top, activeColor) {
			out = append(out, i)
		}
	}
	return out
}
