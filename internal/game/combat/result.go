package combat

import (
	"fmt"
	"strings"

	"github.com/cory-johannsen/keeper/internal/game/character"
	"github.com/cory-johannsen/keeper/internal/game/check"
	"github.com/cory-johannsen/keeper/internal/game/dice"
)

// Damage is the breakdown of one hit.
//
// Bonus is the attacker's damage bonus and is zero for non-melee weapons.
// Impale is the maximized base formula added on an extreme or better success
// with an impaling weapon, zero otherwise.
type Damage struct {
	Base     dice.RollResult
	Bonus    dice.RollResult
	Impale   dice.RollResult
	Impaling bool
	Critical bool
}

// Total returns the damage dealt. A negative damage bonus never makes a hit heal.
//
// Postcondition: Returns a value >= 0.
func (d Damage) Total() int {
	t := d.Base.Total() + d.Bonus.Total() + d.Impale.Total()
	if t < 0 {
		return 0
	}
	return t
}

// String renders the breakdown, e.g. "1D6+1D4 → [4 2] = 6 + bonus 1D4 → [3] = 3 = 9".
func (d Damage) String() string {
	var b strings.Builder
	b.WriteString(d.Base.String())
	if d.Bonus.Expression != "" {
		fmt.Fprintf(&b, " + bonus %s", d.Bonus)
	}
	if d.Impale.Expression != "" {
		fmt.Fprintf(&b, " + impale %s", d.Impale)
	}
	fmt.Fprintf(&b, " = %d", d.Total())
	return b.String()
}

// Outcome is the tagged result of one attack. The concrete type is one of
// Rejected, Miss, HitNoWound, HitMajorWound, HitDying or HitDead.
type Outcome interface {
	// Kind returns a stable lower-case name for the variant.
	Kind() string
	outcome()
}

// Rejected means the attack could not be declared; nothing was rolled or mutated.
type Rejected struct {
	Err error
}

// Miss means the attacker did not win: a failed roll, a dodge or a successful fight back.
type Miss struct {
	Reason string
}

// HitNoWound is a hit below the major-wound threshold.
// Unconscious is set when the hit left the defender at 0 HP; WasUnconscious
// when the defender was already unconscious before it.
type HitNoWound struct {
	Damage         Damage
	Unconscious    bool
	WasUnconscious bool
}

// HitMajorWound is a hit of at least half the defender's max HP that left
// them above 0 HP. ConCheck is the constitution roll made to stay conscious.
// Unconscious reports the defender's state after the hit; WasUnconscious its
// state before.
type HitMajorWound struct {
	Damage         Damage
	ConCheck       check.Check
	Unconscious    bool
	WasUnconscious bool
}

// HitDying is a hit that left the defender at 0 HP with a major wound.
type HitDying struct {
	Damage Damage
}

// HitDead is a hit that dropped the defender to -MaxHP or below.
type HitDead struct {
	Damage Damage
}

func (Rejected) Kind() string      { return "rejected" }
func (Miss) Kind() string          { return "miss" }
func (HitNoWound) Kind() string    { return "hit" }
func (HitMajorWound) Kind() string { return "major_wound" }
func (HitDying) Kind() string      { return "dying" }
func (HitDead) Kind() string       { return "dead" }

func (Rejected) outcome()      {}
func (Miss) outcome()          {}
func (HitNoWound) outcome()    {}
func (HitMajorWound) outcome() {}
func (HitDying) outcome()      {}
func (HitDead) outcome()       {}

// DamageOf returns the damage carried by a hit outcome and whether o is a hit.
func DamageOf(o Outcome) (Damage, bool) {
	switch v := o.(type) {
	case HitNoWound:
		return v.Damage, true
	case HitMajorWound:
		return v.Damage, true
	case HitDying:
		return v.Damage, true
	case HitDead:
		return v.Damage, true
	default:
		return Damage{}, false
	}
}

// ActionResult is the full record of one attack.
//
// Defense is nil when the defender did not react. For a Rejected outcome only
// the IDs, Outcome and Summary are meaningful.
type ActionResult struct {
	ID           string
	EncounterID  string
	Round        int
	AttackerID   string
	AttackerName string
	DefenderID   string
	DefenderName string
	Weapon       character.Weapon
	Reaction     Reaction
	// Downgraded is set when a declared fight back became a dodge.
	Downgraded bool
	Attack     check.Check
	Defense    *check.Check
	Winner     check.Winner
	Outcome    Outcome
	Summary    string
}

// Hit reports whether the attack dealt damage.
func (r ActionResult) Hit() bool {
	_, ok := DamageOf(r.Outcome)
	return ok
}

// Err returns the rejection error, or nil when the attack was resolved.
func (r ActionResult) Err() error {
	if rej, ok := r.Outcome.(Rejected); ok {
		return rej.Err
	}
	return nil
}

func (r *ActionResult) narrate() {
	var b strings.Builder
	fmt.Fprintf(&b, "%s attacks %s with %s (%s, rolled %d).",
		r.AttackerName, r.DefenderName, r.Weapon.Name, r.Attack.Level, r.Attack.Roll)
	if r.Defense != nil {
		verb := "dodges"
		if r.Reaction == ReactionFightBack {
			verb = "fights back"
		}
		fmt.Fprintf(&b, " %s %s (%s, rolled %d).", r.DefenderName, verb, r.Defense.Level, r.Defense.Roll)
	}
	switch o := r.Outcome.(type) {
	case Miss:
		fmt.Fprintf(&b, " %s.", capitalize(o.Reason))
	case HitNoWound:
		fmt.Fprintf(&b, " Hit for %d damage (%s).", o.Damage.Total(), o.Damage)
		switch {
		case o.Unconscious && o.WasUnconscious:
			fmt.Fprintf(&b, " %s remains unconscious.", r.DefenderName)
		case o.Unconscious:
			fmt.Fprintf(&b, " %s falls unconscious.", r.DefenderName)
		}
	case HitMajorWound:
		fmt.Fprintf(&b, " Major wound: %d damage (%s).", o.Damage.Total(), o.Damage)
		switch {
		case !o.ConCheck.Passed && o.WasUnconscious:
			fmt.Fprintf(&b, " %s fails a CON roll (rolled %d vs %d) and remains unconscious.",
				r.DefenderName, o.ConCheck.Roll, o.ConCheck.Target)
		case !o.ConCheck.Passed:
			fmt.Fprintf(&b, " %s fails a CON roll (rolled %d vs %d) and falls unconscious.",
				r.DefenderName, o.ConCheck.Roll, o.ConCheck.Target)
		case o.Unconscious:
			fmt.Fprintf(&b, " %s makes a CON roll (rolled %d vs %d) but remains unconscious.",
				r.DefenderName, o.ConCheck.Roll, o.ConCheck.Target)
		default:
			fmt.Fprintf(&b, " %s stays conscious (rolled %d vs CON %d).",
				r.DefenderName, o.ConCheck.Roll, o.ConCheck.Target)
		}
	case HitDying:
		fmt.Fprintf(&b, " Hit for %d damage (%s). %s is dying.", o.Damage.Total(), o.Damage, r.DefenderName)
	case HitDead:
		fmt.Fprintf(&b, " Hit for %d damage (%s). %s is killed outright.", o.Damage.Total(), o.Damage, r.DefenderName)
	}
	r.Summary = b.String()
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
