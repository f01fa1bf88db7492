package combat

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/cory-johannsen/keeper/internal/game/dice"
)

var (
	// ErrCombatantNotFound is returned when an ID names no combatant in the encounter.
	ErrCombatantNotFound = errors.New("combatant not found")
	// ErrCannotAct is returned when an unconscious, dying or dead combatant declares an action.
	ErrCannotAct = errors.New("combatant cannot act")
	// ErrTargetDead is returned when a dead combatant is targeted.
	ErrTargetDead = errors.New("target is dead")
	// ErrSelfTarget is returned when a combatant attacks itself.
	ErrSelfTarget = errors.New("combatant cannot target itself")
	// ErrNotDying is returned by DeathCheck for a combatant that is not dying.
	ErrNotDying = errors.New("combatant is not dying")
	// ErrDuplicateCombatant is returned when adding a combatant whose ID is already present.
	ErrDuplicateCombatant = errors.New("combatant already in encounter")
	// ErrEncounterNotFound is returned by Engine lookups for unknown encounter IDs.
	ErrEncounterNotFound = errors.New("encounter not found")
)

// EventKind names a combatant state change.
type EventKind int

const (
	EventDamaged EventKind = iota
	EventMajorWound
	EventUnconscious
	EventDying
	EventDead
	EventStabilized
	EventSanityLoss
	EventTemporaryInsanity
)

// String returns a human-readable event label.
func (k EventKind) String() string {
	switch k {
	case EventDamaged:
		return "damaged"
	case EventMajorWound:
		return "major_wound"
	case EventUnconscious:
		return "unconscious"
	case EventDying:
		return "dying"
	case EventDead:
		return "dead"
	case EventStabilized:
		return "stabilized"
	case EventSanityLoss:
		return "sanity_loss"
	case EventTemporaryInsanity:
		return "temporary_insanity"
	default:
		return "unknown"
	}
}

// Event describes one state change of a combatant. Amount is the damage,
// sanity loss or healing that caused it, when there is one.
type Event struct {
	Kind        EventKind
	EncounterID string
	CombatantID string
	Name        string
	Amount      int
}

// Observer receives state-change events synchronously, in the order they occur.
type Observer func(Event)

// Option configures an Encounter.
type Option func(*Encounter)

// WithLogger sets the encounter's logger. The default discards output.
func WithLogger(l *zap.Logger) Option {
	return func(e *Encounter) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithObserver registers fn to receive state-change events.
func WithObserver(fn Observer) Option {
	return func(e *Encounter) { e.observer = fn }
}

// WithID sets the encounter ID instead of generating one.
func WithID(id string) Option {
	return func(e *Encounter) {
		if id != "" {
			e.ID = id
		}
	}
}

// Encounter owns the combatants of one fight, their turn order and the
// results of every resolved attack.
//
// An Encounter is not safe for concurrent use; callers serialize actions per
// encounter.
type Encounter struct {
	ID    string
	Round int

	combatants []*Combatant
	index      map[string]int
	order      []int
	turn       int

	roller   *dice.Roller
	logger   *zap.Logger
	observer Observer
	history  []ActionResult
}

// NewEncounter creates an empty encounter that draws randomness from src.
//
// Precondition: src must be non-nil.
// Postcondition: Returns an encounter with a unique ID and Round 0.
func NewEncounter(src dice.Source, opts ...Option) *Encounter {
	if src == nil {
		panic("combat: NewEncounter requires a non-nil dice.Source")
	}
	e := &Encounter{
		ID:     uuid.NewString(),
		index:  make(map[string]int),
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.roller = dice.NewLoggedRoller(src, e.logger)
	return e
}

// Add places c in the encounter. Combatants added after Start act last.
//
// Precondition: c must be non-nil with a non-empty ID.
// Postcondition: Returns ErrDuplicateCombatant if c.ID is already present.
func (e *Encounter) Add(c *Combatant) error {
	if _, exists := e.index[c.ID]; exists {
		return fmt.Errorf("%s: %w", c.ID, ErrDuplicateCombatant)
	}
	e.index[c.ID] = len(e.combatants)
	e.combatants = append(e.combatants, c)
	if e.Round > 0 {
		e.order = append(e.order, e.index[c.ID])
	}
	return nil
}

// Combatant returns the combatant with the given ID.
func (e *Encounter) Combatant(id string) (*Combatant, bool) {
	i, ok := e.index[id]
	if !ok {
		return nil, false
	}
	return e.combatants[i], true
}

// Combatants returns the combatants in the order they were added.
func (e *Encounter) Combatants() []*Combatant {
	out := make([]*Combatant, len(e.combatants))
	copy(out, e.combatants)
	return out
}

// Start fixes the turn order by DEX descending (ties keep insertion order)
// and begins round 1.
//
// Postcondition: Round == 1; Current returns the highest-DEX living combatant.
func (e *Encounter) Start() {
	e.order = make([]int, len(e.combatants))
	for i := range e.order {
		e.order[i] = i
	}
	sort.SliceStable(e.order, func(a, b int) bool {
		return e.combatants[e.order[a]].DEX > e.combatants[e.order[b]].DEX
	})
	e.Round = 1
	e.turn = 0
	e.skipDead()
	e.logger.Info("encounter started", zap.String("encounter", e.ID), zap.Int("combatants", len(e.combatants)))
}

// TurnOrder returns the combatants in turn order. Empty before Start.
func (e *Encounter) TurnOrder() []*Combatant {
	out := make([]*Combatant, 0, len(e.order))
	for _, i := range e.order {
		out = append(out, e.combatants[i])
	}
	return out
}

// Current returns the combatant whose turn it is, or nil before Start or when
// everyone is dead.
func (e *Encounter) Current() *Combatant {
	if len(e.order) == 0 {
		return nil
	}
	c := e.combatants[e.order[e.turn]]
	if c.Dead {
		return nil
	}
	return c
}

// AdvanceTurn moves to the next living combatant in turn order. Wrapping past
// the end of the order starts a new round.
//
// Postcondition: Returns the new current combatant, or nil if none is alive.
func (e *Encounter) AdvanceTurn() *Combatant {
	if len(e.order) == 0 {
		return nil
	}
	e.advance()
	e.skipDead()
	return e.Current()
}

func (e *Encounter) advance() {
	e.turn++
	if e.turn >= len(e.order) {
		e.turn = 0
		e.Round++
	}
}

func (e *Encounter) skipDead() {
	for range e.order {
		if !e.combatants[e.order[e.turn]].Dead {
			return
		}
		e.advance()
	}
}

// Over reports whether one side has no combatant left able to act.
func (e *Encounter) Over() bool {
	var players, others bool
	for _, c := range e.combatants {
		if !c.CanAct() {
			continue
		}
		if c.IsPlayer() {
			players = true
		} else {
			others = true
		}
	}
	return !players || !others
}

// History returns every resolved attack in order.
func (e *Encounter) History() []ActionResult {
	out := make([]ActionResult, len(e.history))
	copy(out, e.history)
	return out
}

// Roller returns the logged roller the encounter draws from.
func (e *Encounter) Roller() *dice.Roller { return e.roller }

func (e *Encounter) rollOr(roll int) int {
	if roll > 0 {
		return roll
	}
	return e.roller.Percentile()
}

func (e *Encounter) emit(kind EventKind, c *Combatant, amount int) {
	switch kind {
	case EventDying, EventDead, EventUnconscious, EventTemporaryInsanity:
		e.logger.Info("combatant state changed",
			zap.String("encounter", e.ID),
			zap.String("combatant", c.Name),
			zap.Stringer("state", kind),
			zap.Int("hp", c.HP),
		)
	}
	if e.observer != nil {
		e.observer(Event{Kind: kind, EncounterID: e.ID, CombatantID: c.ID, Name: c.Name, Amount: amount})
	}
}

// Engine tracks live encounters by ID. All methods are safe for concurrent
// use; the encounters themselves are not.
type Engine struct {
	mu         sync.RWMutex
	encounters map[string]*Encounter
}

// NewEngine creates an empty Engine.
func NewEngine() *Engine {
	return &Engine{encounters: make(map[string]*Encounter)}
}

// Begin creates, registers and returns a new encounter.
//
// Precondition: src must be non-nil.
func (g *Engine) Begin(src dice.Source, opts ...Option) *Encounter {
	enc := NewEncounter(src, opts...)
	g.mu.Lock()
	defer g.mu.Unlock()
	g.encounters[enc.ID] = enc
	return enc
}

// Get returns the encounter with the given ID.
func (g *Engine) Get(id string) (*Encounter, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	enc, ok := g.encounters[id]
	if !ok {
		return nil, fmt.Errorf("%s: %w", id, ErrEncounterNotFound)
	}
	return enc, nil
}

// End removes the encounter with the given ID and returns it.
func (g *Engine) End(id string) (*Encounter, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	enc, ok := g.encounters[id]
	if !ok {
		return nil, fmt.Errorf("%s: %w", id, ErrEncounterNotFound)
	}
	delete(g.encounters, id)
	return enc, nil
}

// Len returns the number of live encounters.
func (g *Engine) Len() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.encounters)
}
