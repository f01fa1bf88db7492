package check

// Winner is the outcome of an opposed roll.
type Winner int

const (
	// WinnerNone means neither side succeeded.
	WinnerNone Winner = iota
	WinnerAttacker
	WinnerDefender
	// WinnerTie means both sides succeeded at the same level. The caller
	// applies the tie-break that fits its context.
	WinnerTie
)

// String returns a human-readable winner label.
func (w Winner) String() string {
	switch w {
	case WinnerAttacker:
		return "attacker"
	case WinnerDefender:
		return "defender"
	case WinnerTie:
		return "tie"
	default:
		return "none"
	}
}

// Resolve compares two success levels. A strictly higher level wins outright
// as long as the winner succeeded; when neither side succeeded there is no
// winner, and equal successes are reported as WinnerTie.
//
// The skill values are not consulted here: combat breaks ties by reaction,
// other contexts may call BreakTieBySkill.
//
// Postcondition: WinnerTie is returned only when both levels are equal successes.
func Resolve(attacker Level, attackerSkill int, defender Level, defenderSkill int) Winner {
	switch {
	case !attacker.IsSuccess() && !defender.IsSuccess():
		return WinnerNone
	case attacker > defender:
		return WinnerAttacker
	case defender > attacker:
		return WinnerDefender
	default:
		return WinnerTie
	}
}

// BreakTieBySkill resolves a tie in favour of the higher skill value. Equal
// skills stay tied.
func BreakTieBySkill(w Winner, attackerSkill, defenderSkill int) Winner {
	if w != WinnerTie {
		return w
	}
	switch {
	case attackerSkill > defenderSkill:
		return WinnerAttacker
	case defenderSkill > attackerSkill:
		return WinnerDefender
	default:
		return WinnerTie
	}
}
