// Package character defines the read-only stat blocks the rules engine is fed
// with: investigators, creatures, their skills, weapons, spells and vehicles.
package character

import (
	"fmt"
	"strings"
	"time"
)

// Characteristics holds the eight core characteristic values.
type Characteristics struct {
	STR int `yaml:"str" json:"str"`
	CON int `yaml:"con" json:"con"`
	SIZ int `yaml:"siz" json:"siz"`
	DEX int `yaml:"dex" json:"dex"`
	APP int `yaml:"app" json:"app"`
	INT int `yaml:"int" json:"int"`
	POW int `yaml:"pow" json:"pow"`
	EDU int `yaml:"edu" json:"edu"`
}

// Weapon is a plain value object describing something that can deal damage.
//
// Skill names the skill used to attack with it; Value, when positive, is an
// explicit attack value that takes precedence (creature attacks carry one).
type Weapon struct {
	Name    string `yaml:"name" json:"name"`
	Skill   string `yaml:"skill" json:"skill"`
	Value   int    `yaml:"value" json:"value,omitempty"`
	Damage  string `yaml:"damage" json:"damage"`
	Range   string `yaml:"range" json:"range,omitempty"`
	Melee   bool   `yaml:"melee" json:"melee"`
	Firearm bool   `yaml:"firearm" json:"firearm,omitempty"`
	Uses    int    `yaml:"uses" json:"uses,omitempty"` // attacks per round
}

// Unarmed is the fallback weapon when none is named.
var Unarmed = Weapon{Name: "Unarmed", Skill: "Fighting (Brawl)", Damage: "1D3", Melee: true, Uses: 1}

// Spell is a plain value object describing a spell.
type Spell struct {
	Name        string `yaml:"name" json:"name"`
	Cost        string `yaml:"cost" json:"cost"`               // magic point cost formula
	SanityCost  string `yaml:"sanity_cost" json:"sanity_cost"` // sanity loss formula
	CastingTime string `yaml:"casting_time" json:"casting_time,omitempty"`
	Description string `yaml:"description" json:"description,omitempty"`
}

// Vehicle is what an investigator drives during a chase.
type Vehicle struct {
	Name  string `yaml:"name" json:"name"`
	Speed int    `yaml:"speed" json:"speed"`
	Build int    `yaml:"build" json:"build"`
}

// Condition is the lasting harm an investigator carries between encounters.
type Condition struct {
	MajorWound        bool `yaml:"major_wound" json:"major_wound,omitempty"`
	Dying             bool `yaml:"dying" json:"dying,omitempty"`
	Dead              bool `yaml:"dead" json:"dead,omitempty"`
	TemporaryInsanity bool `yaml:"temporary_insanity" json:"temporary_insanity,omitempty"`
}

// Investigator is a player character's stat block.
//
// ID is set by the persistence layer; zero indicates an unsaved investigator.
// Zero HP/MP/Sanity/Move and an empty DamageBonus are derived from the
// characteristics by Normalize, except for pools set by Restore.
type Investigator struct {
	ID          int64           `yaml:"-" json:"-"`
	Key         string          `yaml:"id" json:"key"`
	Name        string          `yaml:"name" json:"name"`
	Player      string          `yaml:"player" json:"player,omitempty"`
	Occupation  string          `yaml:"occupation" json:"occupation,omitempty"`
	Age         int             `yaml:"age" json:"age,omitempty"`
	Stats       Characteristics `yaml:"characteristics" json:"characteristics"`
	MaxHP       int             `yaml:"max_hp" json:"max_hp"`
	HP          int             `yaml:"hp" json:"hp"`
	MaxMP       int             `yaml:"max_mp" json:"max_mp"`
	MP          int             `yaml:"mp" json:"mp"`
	Sanity      int             `yaml:"sanity" json:"sanity"`
	Luck        int             `yaml:"luck" json:"luck,omitempty"`
	Move        int             `yaml:"move" json:"move"`
	DamageBonus string          `yaml:"damage_bonus" json:"damage_bonus"`
	Skills      []SkillGroup    `yaml:"skills" json:"skills"`
	Weapons     []Weapon        `yaml:"weapons" json:"weapons,omitempty"`
	Spells      []Spell         `yaml:"spells" json:"spells,omitempty"`
	Vehicle     *Vehicle        `yaml:"vehicle" json:"vehicle,omitempty"`
	Condition   Condition       `yaml:"condition" json:"condition"`

	CreatedAt time.Time `yaml:"-" json:"-"`
	UpdatedAt time.Time `yaml:"-" json:"-"`

	// restored marks HP, MP and Sanity as saved values, so zero is kept.
	restored bool
}

// Creature is a monster or non-player stat block.
type Creature struct {
	Key         string          `yaml:"id" json:"key"`
	Name        string          `yaml:"name" json:"name"`
	Description string          `yaml:"description" json:"description,omitempty"`
	Stats       Characteristics `yaml:"characteristics" json:"characteristics"`
	MaxHP       int             `yaml:"max_hp" json:"max_hp"`
	MP          int             `yaml:"mp" json:"mp"`
	Move        int             `yaml:"move" json:"move"`
	DamageBonus string          `yaml:"damage_bonus" json:"damage_bonus"`
	Armor       int             `yaml:"armor" json:"armor,omitempty"`
	Dodge       int             `yaml:"dodge" json:"dodge"`
	SanityLoss  string          `yaml:"sanity_loss" json:"sanity_loss"` // e.g. "1/1D8"
	Attacks     []Weapon        `yaml:"attacks" json:"attacks"`
	Skills      []SkillGroup    `yaml:"skills" json:"skills,omitempty"`
}

// Normalize fills derived attributes left at their zero value.
//
// Postcondition: MaxHP, MaxMP and Move are positive when characteristics are;
// HP/MP/Sanity default to their maxima unless set by Restore; DamageBonus is
// non-empty.
func (inv *Investigator) Normalize() {
	if inv.MaxHP == 0 {
		inv.MaxHP = MaxHitPoints(inv.Stats.CON, inv.Stats.SIZ)
	}
	if inv.MaxMP == 0 {
		inv.MaxMP = MaxMagicPoints(inv.Stats.POW)
	}
	if !inv.restored {
		if inv.HP == 0 {
			inv.HP = inv.MaxHP
		}
		if inv.MP == 0 {
			inv.MP = inv.MaxMP
		}
		if inv.Sanity == 0 {
			inv.Sanity = inv.Stats.POW
		}
	}
	if inv.Move == 0 {
		inv.Move = MoveRate(inv.Stats.STR, inv.Stats.DEX, inv.Stats.SIZ, inv.Age)
	}
	if inv.DamageBonus == "" {
		inv.DamageBonus, _ = DamageBonus(inv.Stats.STR, inv.Stats.SIZ)
	}
}

// Restore sets the pools and condition saved at the end of an earlier
// encounter.
//
// Postcondition: Normalize keeps hp, sanity and mp even when they are zero.
func (inv *Investigator) Restore(hp, sanity, mp int, cond Condition) {
	inv.HP = hp
	inv.Sanity = sanity
	inv.MP = mp
	inv.Condition = cond
	inv.restored = true
}

// Validate checks that the investigator satisfies basic invariants.
//
// Postcondition: Returns nil iff Name is non-empty, characteristics are
// non-negative and HP does not exceed MaxHP.
func (inv *Investigator) Validate() error {
	if inv.Name == "" {
		return fmt.Errorf("investigator %q: name must not be empty", inv.Key)
	}
	if err := inv.Stats.validate(); err != nil {
		return fmt.Errorf("investigator %q: %w", inv.Name, err)
	}
	if inv.MaxHP < 0 || inv.HP > inv.MaxHP {
		return fmt.Errorf("investigator %q: hp %d must be within [0, %d]", inv.Name, inv.HP, inv.MaxHP)
	}
	return nil
}

// Skill returns the investigator's value for name via LookupSkill.
func (inv *Investigator) Skill(name string) int { return LookupSkill(inv.Skills, name) }

// Weapon returns the named weapon using the same exact-then-substring
// matching as skills. An empty name or no match yields Unarmed and false.
func (inv *Investigator) Weapon(name string) (Weapon, bool) {
	return FindWeapon(inv.Weapons, name)
}

// AttackValue returns the attack value for w: its explicit Value, else the
// investigator's skill named by w.Skill.
func (inv *Investigator) AttackValue(w Weapon) int {
	if w.Value > 0 {
		return w.Value
	}
	return inv.Skill(w.Skill)
}

// Normalize fills derived attributes left at their zero value.
func (c *Creature) Normalize() {
	if c.MaxHP == 0 {
		c.MaxHP = MaxHitPoints(c.Stats.CON, c.Stats.SIZ)
	}
	if c.MP == 0 {
		c.MP = MaxMagicPoints(c.Stats.POW)
	}
	if c.Move == 0 {
		c.Move = MoveRate(c.Stats.STR, c.Stats.DEX, c.Stats.SIZ, 0)
	}
	if c.DamageBonus == "" {
		c.DamageBonus, _ = DamageBonus(c.Stats.STR, c.Stats.SIZ)
	}
	if c.Dodge == 0 {
		c.Dodge = c.Stats.DEX / 2
	}
}

// Validate checks that the creature satisfies basic invariants.
func (c *Creature) Validate() error {
	if c.Name == "" {
		return fmt.Errorf("creature %q: name must not be empty", c.Key)
	}
	if err := c.Stats.validate(); err != nil {
		return fmt.Errorf("creature %q: %w", c.Name, err)
	}
	for _, a := range c.Attacks {
		if a.Name == "" {
			return fmt.Errorf("creature %q: attack name must not be empty", c.Name)
		}
	}
	return nil
}

// Skill returns the creature's value for name via LookupSkill.
func (c *Creature) Skill(name string) int { return LookupSkill(c.Skills, name) }

// Attack returns the named attack; an empty name selects the first attack.
func (c *Creature) Attack(name string) (Weapon, bool) {
	if name == "" && len(c.Attacks) > 0 {
		return c.Attacks[0], true
	}
	return FindWeapon(c.Attacks, name)
}

// SanityLossFormulas splits a "success/failure" sanity loss string such as
// "1/1D8" or "0/1D6". A string without a slash is used for both.
func (c *Creature) SanityLossFormulas() (onSuccess, onFailure string) {
	return SplitSanityLoss(c.SanityLoss)
}

// SplitSanityLoss splits "success/failure" loss notation.
func SplitSanityLoss(s string) (onSuccess, onFailure string) {
	parts := strings.SplitN(s, "/", 2)
	if len(parts) == 1 {
		return strings.TrimSpace(parts[0]), strings.TrimSpace(parts[0])
	}
	return strings.TrimSpace(parts[0]), strings.TrimSpace(parts[1])
}

func (s Characteristics) validate() error {
	for name, v := range map[string]int{
		"str": s.STR, "con": s.CON, "siz": s.SIZ, "dex": s.DEX,
		"app": s.APP, "int": s.INT, "pow": s.POW, "edu": s.EDU,
	} {
		if v < 0 {
			return fmt.Errorf("characteristic %s must be >= 0, got %d", name, v)
		}
	}
	return nil
}

// FindWeapon returns the weapon whose name matches name, exact match first and
// then substring, case-insensitively. An empty name or no match yields
// Unarmed and false.
func FindWeapon(weapons []Weapon, name string) (Weapon, bool) {
	if name == "" {
		return Unarmed, false
	}
	needle := strings.ToLower(strings.TrimSpace(name))
	for _, w := range weapons {
		if strings.ToLower(w.Name) == needle {
			return w, true
		}
	}
	for _, w := range weapons {
		if strings.Contains(strings.ToLower(w.Name), needle) {
			return w, true
		}
	}
	return Unarmed, false
}
