package combat

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/cory-johannsen/keeper/internal/game/check"
)

// DeathCheckResult records a dying combatant's constitution roll.
type DeathCheckResult struct {
	CombatantID string
	Name        string
	Check       check.Check
	Died        bool
	Summary     string
}

// DeathCheck rolls CON for a dying combatant. Failure kills them.
//
// roll, when non-zero, is used instead of drawing a percentile.
//
// Precondition: the combatant must be Dying.
// Postcondition: on failure Dead is set and Dying cleared; on success nothing changes.
func (e *Encounter) DeathCheck(id string, roll int) (DeathCheckResult, error) {
	c, ok := e.Combatant(id)
	if !ok {
		return DeathCheckResult{}, fmt.Errorf("combatant %q: %w", id, ErrCombatantNotFound)
	}
	if !c.Dying {
		return DeathCheckResult{}, fmt.Errorf("%s: %w", c.Name, ErrNotDying)
	}
	res := DeathCheckResult{
		CombatantID: c.ID,
		Name:        c.Name,
		Check:       check.Resolved("CON", c.CON, check.Regular, e.rollOr(roll)),
	}
	if res.Check.Passed {
		res.Summary = fmt.Sprintf("%s clings to life (rolled %d vs CON %d).", c.Name, res.Check.Roll, c.CON)
		return res, nil
	}
	c.Dying = false
	c.Dead = true
	res.Died = true
	res.Summary = fmt.Sprintf("%s dies (rolled %d vs CON %d).", c.Name, res.Check.Roll, c.CON)
	e.emit(EventDead, c, 0)
	return res, nil
}

// FirstAidResult records a first aid attempt.
type FirstAidResult struct {
	HealerID   string
	TargetID   string
	Check      check.Check
	Stabilized bool
	Healed     int
	Summary    string
}

// FirstAid has healer treat target using the better of First Aid and Medicine.
// Success stabilizes a dying target and restores 1 HP.
//
// roll, when non-zero, is used instead of drawing a percentile.
//
// Precondition: healer can act; target is not Dead.
// Postcondition: on success target.Dying is false and target.HP >= 1.
func (e *Encounter) FirstAid(healerID, targetID string, roll int) (FirstAidResult, error) {
	healer, ok := e.Combatant(healerID)
	if !ok {
		return FirstAidResult{}, fmt.Errorf("healer %q: %w", healerID, ErrCombatantNotFound)
	}
	target, ok := e.Combatant(targetID)
	if !ok {
		return FirstAidResult{}, fmt.Errorf("target %q: %w", targetID, ErrCombatantNotFound)
	}
	if !healer.CanAct() {
		return FirstAidResult{}, fmt.Errorf("%s: %w", healer.Name, ErrCannotAct)
	}
	if target.Dead {
		return FirstAidResult{}, fmt.Errorf("%s: %w", target.Name, ErrTargetDead)
	}

	skill, value := "First Aid", healer.Skill("First Aid")
	if med := healer.Skill("Medicine"); med > value {
		skill, value = "Medicine", med
	}
	res := FirstAidResult{
		HealerID: healer.ID,
		TargetID: target.ID,
		Check:    check.Resolved(skill, value, check.Regular, e.rollOr(roll)),
	}
	if !res.Check.Passed {
		res.Summary = fmt.Sprintf("%s fails to treat %s (rolled %d vs %d).", healer.Name, target.Name, res.Check.Roll, value)
		return res, nil
	}
	if target.Dying {
		target.Stabilized = true
		res.Stabilized = true
	}
	before := target.HP
	target.Heal(1)
	res.Healed = target.HP - before
	res.Summary = fmt.Sprintf("%s treats %s with %s (rolled %d vs %d), restoring %d HP.",
		healer.Name, target.Name, skill, res.Check.Roll, value, res.Healed)
	if res.Stabilized {
		res.Summary += fmt.Sprintf(" %s is stabilized.", target.Name)
		e.emit(EventStabilized, target, res.Healed)
		e.logger.Info("combatant stabilized", zap.String("encounter", e.ID), zap.String("combatant", target.Name))
	}
	return res, nil
}
