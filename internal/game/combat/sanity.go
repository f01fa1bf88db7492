package combat

import (
	"fmt"

	"github.com/cory-johannsen/keeper/internal/game/character"
	"github.com/cory-johannsen/keeper/internal/game/check"
	"github.com/cory-johannsen/keeper/internal/game/dice"
)

// TemporaryInsanityThreshold is the single loss that triggers temporary insanity.
const TemporaryInsanityThreshold = 5

// SanityResult is the record of one sanity check.
type SanityResult struct {
	CombatantID string
	Name        string
	Check       check.Check
	// Formula is the loss formula that applied: the success or failure half.
	Formula string
	Loss    dice.RollResult
	Before  int
	After   int
	// TemporaryInsanity is set when this loss triggered temporary insanity.
	TemporaryInsanity bool
	Summary           string
}

// Lost returns the sanity points actually removed.
func (r SanityResult) Lost() int { return r.Before - r.After }

// RollSanity makes a sanity check for c against a "success/failure" loss
// notation such as "1/1D8" and applies the loss.
//
// roll, when non-zero, is used instead of drawing a percentile.
//
// Precondition: r and c must be non-nil.
// Postcondition: c.Sanity >= 0; c.TemporaryInsanity is set when the loss was
// at least TemporaryInsanityThreshold.
func RollSanity(r *dice.Roller, c *Combatant, loss string, roll int) SanityResult {
	if roll == 0 {
		roll = r.Percentile()
	}
	onSuccess, onFailure := character.SplitSanityLoss(loss)
	res := SanityResult{
		CombatantID: c.ID,
		Name:        c.Name,
		Before:      c.Sanity,
	}
	// A roll at or under current sanity succeeds; tiers only matter for narration.
	res.Check = check.Resolved("SAN", c.Sanity, check.Regular, roll)
	res.Check.Passed = roll <= c.Sanity
	res.Formula = onFailure
	if res.Check.Passed {
		res.Formula = onSuccess
	}
	res.Loss = r.RollExpr(res.Formula)
	lost := res.Loss.Total()
	if lost < 0 {
		lost = 0
	}
	c.Sanity -= lost
	if c.Sanity < 0 {
		c.Sanity = 0
	}
	res.After = c.Sanity
	if lost >= TemporaryInsanityThreshold {
		c.TemporaryInsanity = true
		res.TemporaryInsanity = true
	}

	outcome := "fails"
	if res.Check.Passed {
		outcome = "passes"
	}
	res.Summary = fmt.Sprintf("%s %s a sanity check (rolled %d vs %d) and loses %d sanity (%s), now %d.",
		c.Name, outcome, roll, res.Before, res.Lost(), res.Loss, res.After)
	if res.TemporaryInsanity {
		res.Summary += fmt.Sprintf(" %s is temporarily insane.", c.Name)
	}
	return res
}

// SanityCheck makes a sanity check for the combatant id.
//
// Postcondition: Returns ErrCombatantNotFound or ErrTargetDead without
// mutation when the combatant cannot be checked.
func (e *Encounter) SanityCheck(id, loss string, roll int) (SanityResult, error) {
	c, ok := e.Combatant(id)
	if !ok {
		return SanityResult{}, fmt.Errorf("combatant %q: %w", id, ErrCombatantNotFound)
	}
	if c.Dead {
		return SanityResult{}, fmt.Errorf("%s: %w", c.Name, ErrTargetDead)
	}
	res := RollSanity(e.roller, c, loss, roll)
	if res.Lost() > 0 {
		e.emit(EventSanityLoss, c, res.Lost())
	}
	if res.TemporaryInsanity {
		e.emit(EventTemporaryInsanity, c, res.Lost())
	}
	return res, nil
}
