package domain

import "fmt"

// Color is the colour printed on a card. Wild cards carry ColorWild.
type Color string

const (
	ColorNone   Color = ""
	ColorRed    Color = "red"
	ColorBlue   Color = "blue"
	ColorGreen  Color = "green"
	ColorYellow Color = "yellow"
	ColorWild   Color = "wild"
)

// Colors lists the four playable suits in deck-construction order.
var Colors = [4]Color{ColorRed, ColorBlue, ColorGreen, ColorYellow}

// Kind groups cards by the role they play in the rules.
type Kind string

const (
	KindNumber Kind = "number"
	KindAction Kind = "action"
	KindWild   Kind = "wild"
)

// Card face values that are not digits.
const (
	ValueSkip         = "skip"
	ValueReverse      = "reverse"
	ValueDrawTwo      = "draw2"
	ValueWild         = "wild"
	ValueWildDrawFour = "wild_draw4"
)

// Card is a single UNO card. It is a value type; copies never share state.
type Card struct {
	Color Color  `json:"color"`
	Value string `json:"value"`
	Kind  Kind   `json:"kind"`
}

// IsWild reports whether the card can be played on anything.
func (c Card) IsWild() bool {
	return c.Kind == KindWild
}

// String renders the card the way the table shows it, e.g. "red 7", "blue +2", "WILD+4".
func (c Card) String() string {
	switch c.Kind {
	case KindWild:
		if c.Value == ValueWildDrawFour {
			return "WILD+4"
		}
		return "WILD"
	case KindAction:
		switch c.Value {
		case ValueSkip:
			return fmt.Sprintf("%s SKIP", c.Color)
		case ValueReverse:
			return fmt.Sprintf("%s REV", c.Color)
		case ValueDrawTwo:
			return fmt.Sprintf("%s +2", c.Color)
		}
	}
	return fmt.Sprintf("%s %s", c.Color, c.Value)
}

// ParseColor maps a colour name to a playable Color.
// Only the four suit colours are accepted; the empty string maps to ColorNone.
func ParseColor(s string) (Color, error) {
	switch Color(s) {
	case ColorNone:
		return ColorNone, nil
	case ColorRed, ColorBlue, ColorGreen, ColorYellow:
		return Color(s), nil
	default:
		return ColorNone, fmt.Errorf("unknown color %q", s)
	}
}
