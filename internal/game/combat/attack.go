package combat

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/cory-johannsen/keeper/internal/game/character"
	"github.com/cory-johannsen/keeper/internal/game/check"
	"github.com/cory-johannsen/keeper/internal/game/dice"
)

// Reaction is how a defender responds to a melee attack.
type Reaction int

const (
	ReactionNone Reaction = iota
	ReactionDodge
	ReactionFightBack
)

// String returns a human-readable reaction label.
func (r Reaction) String() string {
	switch r {
	case ReactionDodge:
		return "dodge"
	case ReactionFightBack:
		return "fight back"
	default:
		return "none"
	}
}

// AttackSetup declares one attack.
//
// Zero values are filled in by the encounter: Weapon selects the attacker's
// first weapon (or Unarmed), AttackSkill and DefenseSkill are looked up on the
// combatants, and AttackerRoll/DefenderRoll are drawn from the dice source.
// Non-zero rolls are taken as called out at the table.
type AttackSetup struct {
	AttackerID   string
	DefenderID   string
	Weapon       string
	AttackSkill  int
	Reaction     Reaction
	DefenseSkill int
	AttackerRoll int
	DefenderRoll int
}

var impalingKeywords = []string{
	"knife", "dagger", "sword", "rapier", "spear", "bayonet",
	"faca", "punhal", "adaga", "espada", "florete", "lança", "baioneta",
	"cuchillo", "daga", "estoque", "lanza", "bayoneta",
}

// IsImpaling reports whether w gains the impale bonus on an extreme success.
// Every non-melee weapon impales; melee weapons impale when their name names
// a blade or point.
func IsImpaling(w character.Weapon) bool {
	if !w.Melee || w.Firearm {
		return true
	}
	name := strings.ToLower(w.Name)
	for _, kw := range impalingKeywords {
		if strings.Contains(name, kw) {
			return true
		}
	}
	return false
}

// RollDamage computes the damage for a hit at level lvl with weapon w by an
// attacker whose damage bonus formula is bonus.
//
// The bonus applies to melee weapons only. A critical success maximizes the
// base and bonus instead of rolling them. An extreme or better success with an
// impaling weapon adds the maximized base formula.
//
// Precondition: r must be non-nil; lvl is a success level.
// Postcondition: Total() <= 2*Maximize(base) + Maximize(bonus).
func RollDamage(r *dice.Roller, w character.Weapon, bonus string, lvl check.Level) Damage {
	base := dice.Parse(w.Damage)
	d := Damage{
		Impaling: IsImpaling(w),
		Critical: lvl == check.CriticalSuccess,
	}
	if d.Critical {
		d.Base = r.Maximize(base)
	} else {
		d.Base = r.Roll(base)
	}
	if w.Melee && !w.Firearm {
		if bf := dice.Parse(bonus); !bf.IsZero() {
			if d.Critical {
				d.Bonus = r.Maximize(bf)
			} else {
				d.Bonus = r.Roll(bf)
			}
		}
	}
	if d.Impaling && lvl >= check.ExtremeSuccess && !base.IsZero() {
		d.Impale = r.Maximize(base)
	}
	return d
}

// Attack resolves one attack against the encounter's combatants and applies
// its effects to the defender.
//
// An invalid declaration (unknown combatant, an attacker that cannot act, a
// dead target or self-targeting) yields a Rejected outcome and a non-nil
// error wrapping one of the package sentinels; nothing is rolled or mutated.
//
// Postcondition: the defender's HP stays within [0, MaxHP]; the result is
// appended to History when resolved.
func (e *Encounter) Attack(setup AttackSetup) (ActionResult, error) {
	res := ActionResult{
		ID:          uuid.NewString(),
		EncounterID: e.ID,
		Round:       e.Round,
		AttackerID:  setup.AttackerID,
		DefenderID:  setup.DefenderID,
	}
	atk, def, err := e.validateAttack(setup)
	if err != nil {
		res.Outcome = Rejected{Err: err}
		res.Summary = err.Error()
		return res, err
	}
	res.AttackerName, res.DefenderName = atk.Name, def.Name

	// RollAttacker
	w := atk.Weapon(setup.Weapon)
	res.Weapon = w
	attackValue := setup.AttackSkill
	if attackValue == 0 {
		attackValue = atk.AttackValue(w)
	}
	skillName := w.Skill
	if skillName == "" {
		skillName = w.Name
	}
	res.Attack = check.Resolved(skillName, attackValue, check.Regular, e.rollOr(setup.AttackerRoll))

	// RollDefenderReaction
	reaction := setup.Reaction
	if reaction == ReactionFightBack && (!w.Melee || w.Firearm) {
		reaction = ReactionDodge
		res.Downgraded = true
	}
	if !def.CanAct() {
		reaction = ReactionNone
	}
	res.Reaction = reaction

	// DetermineWinner
	if reaction == ReactionNone {
		res.Winner = check.WinnerNone
		if res.Attack.Level.IsSuccess() {
			res.Winner = check.WinnerAttacker
		}
	} else {
		defValue := setup.DefenseSkill
		if defValue == 0 {
			if reaction == ReactionDodge {
				defValue = def.Dodge
			} else {
				defValue = def.FightBackValue()
			}
		}
		name := "Dodge"
		if reaction == ReactionFightBack {
			name = "Fight Back"
		}
		dc := check.Resolved(name, defValue, check.Regular, e.rollOr(setup.DefenderRoll))
		res.Defense = &dc
		res.Winner = check.Resolve(res.Attack.Level, attackValue, dc.Level, defValue)
		if res.Winner == check.WinnerTie {
			if reaction == ReactionFightBack {
				res.Winner = check.WinnerAttacker
			} else {
				res.Winner = check.WinnerDefender
			}
		}
	}

	if res.Winner != check.WinnerAttacker {
		res.Outcome = Miss{Reason: missReason(res)}
	} else {
		// ComputeDamage, ApplyEffects
		dmg := RollDamage(e.roller, w, atk.DamageBonus, res.Attack.Level)
		res.Outcome = e.applyHit(def, dmg)
	}

	res.narrate()
	e.history = append(e.history, res)
	e.logger.Debug("attack resolved",
		zap.String("encounter", e.ID),
		zap.String("attacker", atk.Name),
		zap.String("defender", def.Name),
		zap.String("weapon", w.Name),
		zap.Int("attack_roll", res.Attack.Roll),
		zap.Stringer("attack_level", res.Attack.Level),
		zap.Stringer("winner", res.Winner),
		zap.String("outcome", res.Outcome.Kind()),
	)
	return res, nil
}

func (e *Encounter) validateAttack(setup AttackSetup) (*Combatant, *Combatant, error) {
	atk, ok := e.Combatant(setup.AttackerID)
	if !ok {
		return nil, nil, fmt.Errorf("attacker %q: %w", setup.AttackerID, ErrCombatantNotFound)
	}
	def, ok := e.Combatant(setup.DefenderID)
	if !ok {
		return nil, nil, fmt.Errorf("defender %q: %w", setup.DefenderID, ErrCombatantNotFound)
	}
	if atk.ID == def.ID {
		return nil, nil, fmt.Errorf("%s: %w", atk.Name, ErrSelfTarget)
	}
	if !atk.CanAct() {
		return nil, nil, fmt.Errorf("%s: %w", atk.Name, ErrCannotAct)
	}
	if def.Dead {
		return nil, nil, fmt.Errorf("%s: %w", def.Name, ErrTargetDead)
	}
	return atk, def, nil
}

// applyHit mutates def for dmg and returns the matching outcome.
func (e *Encounter) applyHit(def *Combatant, dmg Damage) Outcome {
	total := dmg.Total()
	wasUnconscious := def.Unconscious
	raw := def.TakeDamage(total)
	e.emit(EventDamaged, def, total)

	if raw <= -def.MaxHP {
		def.Dead = true
		def.Dying = false
		def.Unconscious = true
		e.emit(EventDead, def, total)
		return HitDead{Damage: dmg}
	}

	major := total > 0 && total*2 >= def.MaxHP
	if major && !def.MajorWound {
		def.MajorWound = true
		e.emit(EventMajorWound, def, total)
	}
	if def.HP == 0 && def.MajorWound {
		def.Dying = true
		def.Stabilized = false
		e.emit(EventDying, def, total)
		return HitDying{Damage: dmg}
	}
	if major {
		con := check.Resolved("CON", def.CON, check.Regular, e.roller.Percentile())
		if !con.Passed {
			def.Unconscious = true
		}
		if def.Unconscious && !wasUnconscious {
			e.emit(EventUnconscious, def, total)
		}
		return HitMajorWound{Damage: dmg, ConCheck: con, Unconscious: def.Unconscious, WasUnconscious: wasUnconscious}
	}
	knockedOut := def.HP == 0
	if knockedOut && !wasUnconscious {
		e.emit(EventUnconscious, def, total)
	}
	return HitNoWound{Damage: dmg, Unconscious: knockedOut, WasUnconscious: wasUnconscious}
}

func missReason(res ActionResult) string {
	switch {
	case res.Defense == nil:
		return res.AttackerName + " misses"
	case res.Winner == check.WinnerNone:
		return "neither side gains the upper hand"
	case res.Reaction == ReactionFightBack:
		return res.DefenderName + " fights off the attack"
	default:
		return res.DefenderName + " dodges the attack"
	}
}
