package check

import (
	"fmt"

	"github.com/cory-johannsen/keeper/internal/game/dice"
)

// Difficulty is the tier a check must reach: Regular (1), Hard (2) or Extreme (3).
// The zero value is treated as Regular.
type Difficulty int

const (
	Regular Difficulty = iota + 1
	Hard
	Extreme
)

// DifficultyFromTier converts a stored 1–3 tier to a Difficulty, clamping
// anything out of range into it.
func DifficultyFromTier(tier int) Difficulty {
	switch {
	case tier <= 1:
		return Regular
	case tier == 2:
		return Hard
	default:
		return Extreme
	}
}

// Divisor returns the skill divisor for the tier: 1, 2 or 5.
func (d Difficulty) Divisor() int {
	switch d {
	case Hard:
		return 2
	case Extreme:
		return 5
	default:
		return 1
	}
}

// Required returns the minimum Level that satisfies the tier.
func (d Difficulty) Required() Level {
	switch d {
	case Hard:
		return HardSuccess
	case Extreme:
		return ExtremeSuccess
	default:
		return RegularSuccess
	}
}

// Met reports whether a check result of level l satisfies the tier.
// A Hard check with target 60 passes on a roll of 30 or less, which is exactly
// a HardSuccess or better on the full target: dividing the skill by the
// divisor and comparing levels agree.
func (d Difficulty) Met(l Level) bool { return l >= d.Required() }

// String returns a human-readable tier label.
func (d Difficulty) String() string {
	switch d {
	case Hard:
		return "hard"
	case Extreme:
		return "extreme"
	default:
		return "regular"
	}
}

// Check is the record of one percentile check.
type Check struct {
	Skill      string
	Target     int
	Difficulty Difficulty
	Roll       int
	Level      Level
	Passed     bool
}

// String renders the check for narration, e.g. "Dodge 40 (hard): rolled 12, hard success".
func (c Check) String() string {
	name := c.Skill
	if name == "" {
		name = "check"
	}
	return fmt.Sprintf("%s %d (%s): rolled %d, %s", name, c.Target, c.Difficulty, c.Roll, c.Level)
}

// Roll draws a percentile from src and classifies it against target at the
// given difficulty.
//
// Precondition: src must be non-nil.
// Postcondition: Returned Check has Roll in [1, 100] and Passed == d.Met(Level).
func Roll(src dice.Source, skill string, target int, d Difficulty) Check {
	return Resolved(skill, target, d, dice.Percentile(src))
}

// Resolved builds a Check from an already-known roll, such as one called out
// at the table.
//
// Precondition: roll is in [1, 100].
func Resolved(skill string, target int, d Difficulty, roll int) Check {
	if d == 0 {
		d = Regular
	}
	lvl := Classify(roll, target)
	return Check{
		Skill:      skill,
		Target:     target,
		Difficulty: d,
		Roll:       roll,
		Level:      lvl,
		Passed:     d.Met(lvl),
	}
}
