package chase

import (
	"github.com/google/uuid"

	"github.com/cory-johannsen/keeper/internal/game/character"
)

// Role is a participant's side in the chase.
type Role int

const (
	Prey Role = iota
	Pursuer
)

// String returns a human-readable role label.
func (r Role) String() string {
	if r == Pursuer {
		return "pursuer"
	}
	return "prey"
}

// DriveSkill is the skill mounted participants use for extra moves.
const DriveSkill = "Drive Auto"

// Participant is one runner or vehicle in a chase.
//
// Invariant: at most one of Eliminated, Escaped and Caught is set; a
// participant with any of them set never moves again.
type Participant struct {
	ID   string
	Ref  string
	Name string
	Role Role

	// Speed is the vehicle speed when Mounted, otherwise the movement rate.
	Speed   int
	Mounted bool
	DEX     int
	CON     int
	HP      int
	MaxHP   int
	Skills  []character.SkillGroup

	Location int

	MovesMade         int
	ExtraMoveAttempts int
	Exhausted         bool
	// HazardChecked is set once the participant has faced a hazard this round.
	HazardChecked bool

	Eliminated bool
	Escaped    bool
	Caught     bool
}

// IsActive reports whether the participant is still in the chase.
func (p *Participant) IsActive() bool {
	return !p.Eliminated && !p.Escaped && !p.Caught
}

// Status returns "active", "eliminated", "escaped" or "caught".
func (p *Participant) Status() string {
	switch {
	case p.Eliminated:
		return "eliminated"
	case p.Escaped:
		return "escaped"
	case p.Caught:
		return "caught"
	default:
		return "active"
	}
}

// FromInvestigator projects an investigator into a participant starting at
// location. An investigator with a vehicle is mounted and moves at its speed.
//
// HP is clamped to [0, MaxHP]. An investigator at 0 HP, dying or dead starts
// eliminated.
//
// Precondition: inv must be non-nil; location >= 1.
func FromInvestigator(inv *character.Investigator, role Role, location int) *Participant {
	inv.Normalize()
	hp := min(max(inv.HP, 0), inv.MaxHP)
	p := &Participant{
		ID:       uuid.NewString(),
		Ref:      inv.Key,
		Name:     inv.Name,
		Role:     role,
		Speed:    inv.Move,
		DEX:      inv.Stats.DEX,
		CON:      inv.Stats.CON,
		HP:       hp,
		MaxHP:    inv.MaxHP,
		Skills:   append([]character.SkillGroup(nil), inv.Skills...),
		Location: location,

		Eliminated: hp == 0 || inv.Condition.Dying || inv.Condition.Dead,
	}
	if inv.Vehicle != nil {
		p.Mounted = true
		p.Speed = inv.Vehicle.Speed
		p.Name = inv.Name + " (" + inv.Vehicle.Name + ")"
	}
	return p
}

// FromCreature projects a creature into a participant starting at location.
//
// Precondition: cr must be non-nil; location >= 1.
func FromCreature(cr *character.Creature, role Role, location int) *Participant {
	cr.Normalize()
	return &Participant{
		ID:       uuid.NewString(),
		Ref:      cr.Key,
		Name:     cr.Name,
		Role:     role,
		Speed:    cr.Move,
		DEX:      cr.Stats.DEX,
		CON:      cr.Stats.CON,
		HP:       cr.MaxHP,
		MaxHP:    cr.MaxHP,
		Skills:   append([]character.SkillGroup(nil), cr.Skills...),
		Location: location,
	}
}

// skill returns the participant's value for name, then fallback when
// positive, then def.
func (p *Participant) skill(name string, fallback, def int) int {
	if v, ok := character.FindSkill(p.Skills, name); ok {
		return v
	}
	if fallback > 0 {
		return fallback
	}
	return def
}

// takeDamage reduces HP, clamped at 0, and eliminates the participant at 0.
func (p *Participant) takeDamage(n int) {
	if n <= 0 {
		return
	}
	p.HP -= n
	if p.HP <= 0 {
		p.HP = 0
		p.Eliminated = true
	}
}

func (p *Participant) resetRound() {
	p.MovesMade = 0
	p.ExtraMoveAttempts = 0
	p.Exhausted = false
	p.HazardChecked = false
}
