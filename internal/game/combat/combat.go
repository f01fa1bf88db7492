// Package combat implements the combat resolution engine: attacks with dodge
// and fight-back reactions, damage, wounds, dying and death, plus sanity checks.
package combat

import (
	"github.com/google/uuid"

	"github.com/cory-johannsen/keeper/internal/game/character"
)

// Side distinguishes player investigators from keeper-run combatants.
type Side int

const (
	SidePlayer Side = iota
	SideNonPlayer
)

// String returns a human-readable side label.
func (s Side) String() string {
	if s == SidePlayer {
		return "player"
	}
	return "non-player"
}

// Combatant is one participant in an encounter, projected from a stat block
// when the encounter starts and discarded when it ends.
//
// Invariant: 0 <= HP <= MaxHP; HP == 0 implies Unconscious; Dying implies
// HP == 0 and MajorWound; Dead implies !Dying.
type Combatant struct {
	ID   string
	Ref  string // stat block key the combatant was projected from
	Name string
	Side Side

	HP     int
	MaxHP  int
	Sanity int
	MP     int
	CON    int
	DEX    int
	// DamageBonus is the attacker's damage-bonus formula, e.g. "+1D4".
	DamageBonus string
	// Dodge is the dodge skill used when reacting to attacks.
	Dodge int

	Skills  []character.SkillGroup
	Weapons []character.Weapon

	Unconscious       bool
	MajorWound        bool
	Dying             bool
	Dead              bool
	Stabilized        bool
	TemporaryInsanity bool
}

// FromInvestigator projects an investigator stat block into a new Combatant.
//
// Precondition: inv must be non-nil.
// Postcondition: The returned Combatant has a fresh unique ID, carries
// inv.Condition and shares no mutable state with inv.
func FromInvestigator(inv *character.Investigator) *Combatant {
	inv.Normalize()
	hp := inv.HP
	if hp > inv.MaxHP {
		hp = inv.MaxHP
	}
	c := &Combatant{
		ID:          uuid.NewString(),
		Ref:         inv.Key,
		Name:        inv.Name,
		Side:        SidePlayer,
		HP:          hp,
		MaxHP:       inv.MaxHP,
		Sanity:      inv.Sanity,
		MP:          inv.MP,
		CON:         inv.Stats.CON,
		DEX:         inv.Stats.DEX,
		DamageBonus: inv.DamageBonus,
		Dodge:       inv.Skill("Dodge"),
		Skills:      append([]character.SkillGroup(nil), inv.Skills...),
		Weapons:     append([]character.Weapon(nil), inv.Weapons...),

		MajorWound:        inv.Condition.MajorWound,
		Dying:             inv.Condition.Dying && !inv.Condition.Dead,
		Dead:              inv.Condition.Dead,
		TemporaryInsanity: inv.Condition.TemporaryInsanity,
	}
	if c.HP < 0 {
		c.HP = 0
	}
	c.Unconscious = c.HP == 0 || c.Dead
	return c
}

// FromCreature projects a creature stat block into a new Combatant.
// Creatures have no sanity.
//
// Precondition: cr must be non-nil.
func FromCreature(cr *character.Creature) *Combatant {
	cr.Normalize()
	return &Combatant{
		ID:          uuid.NewString(),
		Ref:         cr.Key,
		Name:        cr.Name,
		Side:        SideNonPlayer,
		HP:          cr.MaxHP,
		MaxHP:       cr.MaxHP,
		MP:          cr.MP,
		CON:         cr.Stats.CON,
		DEX:         cr.Stats.DEX,
		DamageBonus: cr.DamageBonus,
		Dodge:       cr.Dodge,
		Skills:      append([]character.SkillGroup(nil), cr.Skills...),
		Weapons:     append([]character.Weapon(nil), cr.Attacks...),
	}
}

// IsPlayer reports whether this combatant is a player investigator.
func (c *Combatant) IsPlayer() bool { return c.Side == SidePlayer }

// CanAct reports whether the combatant can take actions or react.
//
// Postcondition: Returns false when Dead, Dying or Unconscious.
func (c *Combatant) CanAct() bool {
	return !c.Dead && !c.Dying && !c.Unconscious
}

// Skill returns the combatant's value for name; missing skills are 0.
func (c *Combatant) Skill(name string) int {
	return character.LookupSkill(c.Skills, name)
}

// Weapon returns the named weapon, the first carried weapon when name is
// empty, or Unarmed.
func (c *Combatant) Weapon(name string) character.Weapon {
	if name == "" {
		if len(c.Weapons) > 0 {
			return c.Weapons[0]
		}
		return character.Unarmed
	}
	w, _ := character.FindWeapon(c.Weapons, name)
	return w
}

// AttackValue returns the attack value for w: its explicit Value, else the
// combatant's skill named by w.Skill.
func (c *Combatant) AttackValue(w character.Weapon) int {
	if w.Value > 0 {
		return w.Value
	}
	return c.Skill(w.Skill)
}

// FightBackValue returns the skill used to fight back: the attack value of
// the first melee weapon carried, or Fighting (Brawl).
func (c *Combatant) FightBackValue() int {
	for _, w := range c.Weapons {
		if w.Melee {
			return c.AttackValue(w)
		}
	}
	return c.Skill(character.Unarmed.Skill)
}

// TakeDamage subtracts amount from HP and returns the unclamped result, which
// callers use to detect instant death (raw <= -MaxHP).
//
// Precondition: amount >= 0; negative amounts are treated as 0.
// Postcondition: 0 <= HP <= MaxHP; HP == 0 implies Unconscious.
func (c *Combatant) TakeDamage(amount int) int {
	if amount < 0 {
		amount = 0
	}
	raw := c.HP - amount
	c.HP = clamp(raw, 0, c.MaxHP)
	if c.HP == 0 {
		c.Unconscious = true
	}
	return raw
}

// Heal restores amount HP, capped at MaxHP. A combatant brought above 0 HP
// stops dying, and regains consciousness unless a major wound keeps them down.
//
// Precondition: c is not Dead.
// Postcondition: 0 <= HP <= MaxHP.
func (c *Combatant) Heal(amount int) {
	if c.Dead || amount <= 0 {
		return
	}
	c.HP = clamp(c.HP+amount, 0, c.MaxHP)
	if c.HP > 0 {
		c.Dying = false
		if !c.MajorWound {
			c.Unconscious = false
		}
	}
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
