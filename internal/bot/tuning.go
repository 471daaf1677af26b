package bot

// Tuning weighs the factors SmartBot scores moves with.
type Tuning struct {
	// PointWeight rewards shedding cards that would count against us.
	PointWeight float64
	// KeepColorWeight rewards staying in a colour we hold many cards of.
	KeepColorWeight float64
	// WildPenalty discourages spending a wild early.
	WildPenalty float64
	// ThreatThreshold is the opponent hand size at which wilds are released.
	ThreatThreshold int
}

// DefaultTuning dumps points steadily and saves wilds for the end game.
var DefaultTuning = Tuning{
	PointWeight:     0.5,
	KeepColorWeight: 3.0,
	WildPenalty:     30.0,
	ThreatThreshold: 2,
}
