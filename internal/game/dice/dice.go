// Package dice provides the randomness abstraction, the dice-formula parser and
// the roll-result audit types for the Keeper rules engine.
package dice

import (
	"fmt"
	"strings"
)

// RollResult holds the full audit trail for a single formula evaluation.
//
// Dice holds one signed entry per die drawn: dice from subtracted terms are
// stored negated so that the postcondition below holds for every formula.
//
// Postcondition: Total() == sum(Dice) + Modifier.
type RollResult struct {
	Expression string // canonical formula string, e.g. "1D8+1D4+2"
	Dice       []int  // individual die results, signed
	Modifier   int    // sum of flat terms (may be negative)
	Maximized  bool   // true when the dice were taken at their maximum instead of drawn
}

// Total returns the sum of all die results plus the modifier.
//
// Postcondition: return value == sum(r.Dice) + r.Modifier.
func (r RollResult) Total() int {
	total := r.Modifier
	for _, d := range r.Dice {
		total += d
	}
	return total
}

// String returns a human-readable audit string in the format:
//
//	"2D6+3 → [4 5] +3 = 12"
//
// An empty Expression is rendered as "0".
func (r RollResult) String() string {
	expr := r.Expression
	if expr == "" {
		expr = "0"
	}
	parts := make([]string, len(r.Dice))
	for i, d := range r.Dice {
		parts[i] = fmt.Sprintf("%d", d)
	}
	return fmt.Sprintf("%s → [%s] %+d = %d", expr, strings.Join(parts, " "), r.Modifier, r.Total())
}

// Source is the randomness provider for dice rolls.
//
// Implementations MUST be safe for concurrent use.
type Source interface {
	// Intn returns a non-negative random int in [0, n).
	//
	// Precondition: n > 0.
	Intn(n int) int
}

// Percentile draws a d100 result in [1, 100] from src.
//
// Precondition: src must be non-nil.
func Percentile(src Source) int {
	return src.Intn(100) + 1
}

// D draws a single die of the given number of sides from src.
//
// Precondition: sides >= 1.
// Postcondition: Returns a value in [1, sides].
func D(src Source, sides int) int {
	return src.Intn(sides) + 1
}
