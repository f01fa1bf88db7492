package chase

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/cory-johannsen/keeper/internal/game/check"
	"github.com/cory-johannsen/keeper/internal/game/dice"
)

var (
	// ErrParticipantNotFound is returned when an ID names no participant in the chase.
	ErrParticipantNotFound = errors.New("participant not found")
	// ErrParticipantInactive is returned when an eliminated, escaped or caught participant acts.
	ErrParticipantInactive = errors.New("participant is no longer in the chase")
	// ErrExhausted is returned when an exhausted participant attempts an extra move.
	ErrExhausted = errors.New("participant is exhausted")
	// ErrNoObstacle is returned when AttemptObstacle is called away from a barrier or hazard.
	ErrNoObstacle = errors.New("no obstacle at location")
	// ErrHazardChecked is returned when AttemptObstacle is called for a hazard the
	// participant already faced this round.
	ErrHazardChecked = errors.New("hazard already checked this round")
	// ErrSpeedPhaseDone is returned when the speed phase is run twice in a round.
	ErrSpeedPhaseDone = errors.New("speed phase already resolved this round")
	// ErrDuplicateParticipant is returned when adding a participant whose ID is already present.
	ErrDuplicateParticipant = errors.New("participant already in chase")
	// ErrOffTrack is returned when a participant is placed outside the track.
	ErrOffTrack = errors.New("location is off the track")
	// ErrChaseNotFound is returned by Engine lookups for unknown chase IDs.
	ErrChaseNotFound = errors.New("chase not found")
)

// Rules holds the tunable chase constants.
type Rules struct {
	// DefaultSkill is used for checks against a skill the participant lacks.
	DefaultSkill int
	// FatigueDamage is taken on foot when an extra move fails.
	FatigueDamage string
	// CollisionDamage is taken in a vehicle when an extra move fails.
	CollisionDamage string
	// MaxRounds ends the chase with every remaining prey escaping once
	// exceeded. Zero means unlimited.
	MaxRounds int
}

// DefaultRules returns the standard chase constants.
func DefaultRules() Rules {
	return Rules{DefaultSkill: 50, FatigueDamage: "1D3", CollisionDamage: "1D10"}
}

// EntryKind names what a log entry records.
type EntryKind string

const (
	EntryMove      EntryKind = "move"
	EntryHazard    EntryKind = "hazard"
	EntryExtraMove EntryKind = "extra_move"
	EntryBarrier   EntryKind = "barrier"
	EntryEscaped   EntryKind = "escaped"
	EntryCaught    EntryKind = "caught"
	EntryRound     EntryKind = "round"
)

// LogEntry is one narrated chase event.
//
// Check and Damage are set only when a check was rolled or damage dealt.
type LogEntry struct {
	ID            string
	Round         int
	Kind          EntryKind
	ParticipantID string
	Name          string
	From          int
	To            int
	Check         *check.Check
	Damage        *dice.RollResult
	Summary       string
}

// Option configures a Chase.
type Option func(*Chase)

// WithLogger sets the chase's logger. The default discards output.
func WithLogger(l *zap.Logger) Option {
	return func(c *Chase) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithRules replaces DefaultRules.
func WithRules(r Rules) Option {
	return func(c *Chase) { c.rules = r }
}

// WithObserver registers fn to receive every log entry as it is recorded.
func WithObserver(fn func(LogEntry)) Option {
	return func(c *Chase) { c.observer = fn }
}

// WithID sets the chase ID instead of generating one.
func WithID(id string) Option {
	return func(c *Chase) {
		if id != "" {
			c.ID = id
		}
	}
}

// Chase owns a track, its participants, the round and turn counters and the
// rolling log.
//
// A Chase is not safe for concurrent use; callers serialize actions per chase.
type Chase struct {
	ID    string
	Track Track
	Round int

	participants []*Participant
	index        map[string]int
	order        []int
	turn         int
	speedRound   int

	rules    Rules
	roller   *dice.Roller
	logger   *zap.Logger
	observer func(LogEntry)
	log      []LogEntry
}

// New creates a chase over track drawing randomness from src.
//
// Precondition: src must be non-nil.
// Postcondition: Returns an error if track is invalid.
func New(track Track, src dice.Source, opts ...Option) (*Chase, error) {
	if src == nil {
		panic("chase: New requires a non-nil dice.Source")
	}
	if err := track.Validate(); err != nil {
		return nil, err
	}
	c := &Chase{
		ID:     uuid.NewString(),
		Track:  track,
		index:  make(map[string]int),
		rules:  DefaultRules(),
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.rules.DefaultSkill <= 0 {
		c.rules.DefaultSkill = DefaultRules().DefaultSkill
	}
	c.roller = dice.NewLoggedRoller(src, c.logger)
	return c, nil
}

// Add places p on the track.
//
// Postcondition: Returns ErrOffTrack or ErrDuplicateParticipant without mutation.
func (c *Chase) Add(p *Participant) error {
	if c.Track.At(p.Location) == nil {
		return fmt.Errorf("%s at %d: %w", p.Name, p.Location, ErrOffTrack)
	}
	if _, exists := c.index[p.ID]; exists {
		return fmt.Errorf("%s: %w", p.ID, ErrDuplicateParticipant)
	}
	c.index[p.ID] = len(c.participants)
	c.participants = append(c.participants, p)
	if c.Round > 0 {
		c.order = append(c.order, c.index[p.ID])
	}
	return nil
}

// Participant returns the participant with the given ID.
func (c *Chase) Participant(id string) (*Participant, bool) {
	i, ok := c.index[id]
	if !ok {
		return nil, false
	}
	return c.participants[i], true
}

// Participants returns all participants in the order they were added.
func (c *Chase) Participants() []*Participant {
	out := make([]*Participant, len(c.participants))
	copy(out, c.participants)
	return out
}

// Start fixes the turn order by DEX descending (ties keep insertion order)
// and begins round 1.
func (c *Chase) Start() {
	c.order = make([]int, len(c.participants))
	for i := range c.order {
		c.order[i] = i
	}
	sort.SliceStable(c.order, func(a, b int) bool {
		return c.participants[c.order[a]].DEX > c.participants[c.order[b]].DEX
	})
	c.Round = 1
	c.turn = 0
	c.skipInactive()
	c.logger.Info("chase started",
		zap.String("chase", c.ID),
		zap.Int("track_length", c.Track.Len()),
		zap.Int("participants", len(c.participants)),
	)
}

// TurnOrder returns the active participants in turn order.
func (c *Chase) TurnOrder() []*Participant {
	var out []*Participant
	for _, i := range c.order {
		if p := c.participants[i]; p.IsActive() {
			out = append(out, p)
		}
	}
	return out
}

// Current returns the active participant whose turn it is, or nil.
func (c *Chase) Current() *Participant {
	if len(c.order) == 0 {
		return nil
	}
	p := c.participants[c.order[c.turn]]
	if !p.IsActive() {
		return nil
	}
	return p
}

// AdvanceTurn moves to the next active participant. Wrapping past the end of
// the order starts a new round and resets every active participant's
// per-round counters.
//
// Postcondition: Returns the new current participant, or nil if none is active.
func (c *Chase) AdvanceTurn() *Participant {
	if len(c.order) == 0 || c.IsOver() {
		return nil
	}
	c.advance()
	c.skipInactive()
	return c.Current()
}

func (c *Chase) advance() {
	c.turn++
	if c.turn < len(c.order) {
		return
	}
	c.turn = 0
	c.Round++
	for _, p := range c.participants {
		if p.IsActive() {
			p.resetRound()
		}
	}
	if c.rules.MaxRounds > 0 && c.Round > c.rules.MaxRounds {
		c.giveUp()
	}
}

func (c *Chase) skipInactive() {
	for range c.order {
		if c.participants[c.order[c.turn]].IsActive() {
			return
		}
		if c.IsOver() {
			return
		}
		c.advance()
	}
}

// giveUp lets every remaining prey escape once the round limit is passed.
func (c *Chase) giveUp() {
	for _, p := range c.participants {
		if p.Role == Prey && p.IsActive() {
			p.Escaped = true
			c.record(LogEntry{
				Kind: EntryEscaped, ParticipantID: p.ID, Name: p.Name, From: p.Location, To: p.Location,
				Summary: fmt.Sprintf("The pursuit gives out after %d rounds; %s gets away.", c.rules.MaxRounds, p.Name),
			})
		}
	}
}

// IsOver reports whether every prey has escaped, been caught or been eliminated.
// A chase with no prey is over.
func (c *Chase) IsOver() bool {
	for _, p := range c.participants {
		if p.Role == Prey && p.IsActive() {
			return false
		}
	}
	return true
}

// Log returns every entry recorded so far.
func (c *Chase) Log() []LogEntry {
	out := make([]LogEntry, len(c.log))
	copy(out, c.log)
	return out
}

// SpeedPhase moves every active participant, in turn order, up to its speed.
// Each entered hazard is checked automatically; an entered barrier halts the
// move there, and a participant standing on a barrier does not move at all.
// Catch and escape are resolved once everyone has moved.
//
// Postcondition: no participant's location decreased or exceeds Track.Len();
// returns ErrSpeedPhaseDone if called twice in one round.
func (c *Chase) SpeedPhase() ([]LogEntry, error) {
	if c.speedRound == c.Round && c.Round > 0 {
		return nil, fmt.Errorf("round %d: %w", c.Round, ErrSpeedPhaseDone)
	}
	if c.Round == 0 {
		c.Start()
	}
	c.speedRound = c.Round
	start := len(c.log)
	for _, i := range c.order {
		p := c.participants[i]
		if !p.IsActive() {
			continue
		}
		c.move(p)
	}
	c.detectTermination()
	return c.Log()[start:], nil
}

func (c *Chase) move(p *Participant) {
	from := p.Location
	target := from + p.Speed
	if target > c.Track.Len() {
		target = c.Track.Len()
	}
	var halt string
	if b := c.Track.At(from).Barrier; b != nil {
		halt = barrierName(b)
		target = from
	}
	for p.Location < target && p.IsActive() {
		p.Location++
		p.MovesMade++
		loc := c.Track.At(p.Location)
		if loc.Hazard != nil {
			c.resolveHazard(p, loc.Hazard)
		}
		if loc.Barrier != nil {
			halt = barrierName(loc.Barrier)
			break
		}
	}

	summary := fmt.Sprintf("%s moves from %d to %d.", p.Name, from, p.Location)
	switch {
	case p.Location == from && halt != "":
		summary = fmt.Sprintf("%s is held up by %s at %d.", p.Name, halt, from)
	case halt != "":
		summary = fmt.Sprintf("%s moves from %d to %d and is stopped by %s.", p.Name, from, p.Location, halt)
	}
	if p.Eliminated {
		summary += fmt.Sprintf(" %s is out of the chase.", p.Name)
	}
	c.record(LogEntry{Kind: EntryMove, ParticipantID: p.ID, Name: p.Name, From: from, To: p.Location, Summary: summary})
}

func (c *Chase) resolveHazard(p *Participant, h *Hazard) {
	p.HazardChecked = true
	ck := check.Roll(c.roller, h.Skill, p.skill(h.Skill, h.Value, c.rules.DefaultSkill), h.Difficulty)
	entry := LogEntry{Kind: EntryHazard, ParticipantID: p.ID, Name: p.Name, From: p.Location, To: p.Location, Check: &ck}
	name := hazardName(h)
	if ck.Passed {
		entry.Summary = fmt.Sprintf("%s gets past %s (%s).", p.Name, name, ck)
		c.record(entry)
		return
	}
	dmg := c.roller.RollExpr(h.Damage)
	entry.Damage = &dmg
	p.takeDamage(dmg.Total())
	entry.Summary = fmt.Sprintf("%s is hurt by %s (%s) for %d damage.", p.Name, name, ck, dmg.Total())
	if p.Eliminated {
		entry.Summary += fmt.Sprintf(" %s is out of the chase.", p.Name)
	}
	c.record(entry)
}

// detectTermination marks prey caught when an active pursuer is level with or
// ahead of them, and otherwise escaped once they reach the track end.
func (c *Chase) detectTermination() {
	for _, p := range c.participants {
		if p.Role != Prey || !p.IsActive() {
			continue
		}
		if by := c.pursuerAtOrBeyond(p.Location); by != nil {
			p.Caught = true
			c.record(LogEntry{
				Kind: EntryCaught, ParticipantID: p.ID, Name: p.Name, From: p.Location, To: p.Location,
				Summary: fmt.Sprintf("%s catches %s at %d.", by.Name, p.Name, p.Location),
			})
			continue
		}
		if p.Location >= c.Track.Len() {
			p.Escaped = true
			c.record(LogEntry{
				Kind: EntryEscaped, ParticipantID: p.ID, Name: p.Name, From: p.Location, To: p.Location,
				Summary: fmt.Sprintf("%s escapes.", p.Name),
			})
		}
	}
}

func (c *Chase) pursuerAtOrBeyond(loc int) *Participant {
	for _, q := range c.participants {
		if q.Role == Pursuer && q.IsActive() && q.Location >= loc {
			return q
		}
	}
	return nil
}

// ExtraMove spends an action to move one location further. The check is CON
// on foot or Drive Auto when mounted, at Regular, Hard then Extreme difficulty
// for the first, second and later attempts in a round.
//
// Success advances one location unless a barrier stands here or ahead; the
// attempt still counts. Failure exhausts the participant and deals fatigue or
// collision damage.
//
// Postcondition: invalid invocations return an error and mutate nothing.
func (c *Chase) ExtraMove(id string) (LogEntry, error) {
	p, err := c.actor(id)
	if err != nil {
		return LogEntry{}, err
	}
	if p.Exhausted {
		return LogEntry{}, fmt.Errorf("%s: %w", p.Name, ErrExhausted)
	}

	p.ExtraMoveAttempts++
	diff := check.DifficultyFromTier(p.ExtraMoveAttempts)
	skill, value := "CON", p.CON
	if p.Mounted {
		skill, value = DriveSkill, p.skill(DriveSkill, 0, c.rules.DefaultSkill)
	}
	ck := check.Roll(c.roller, skill, value, diff)
	from := p.Location
	entry := LogEntry{Kind: EntryExtraMove, ParticipantID: p.ID, Name: p.Name, From: from, Check: &ck}

	if !ck.Passed {
		p.Exhausted = true
		formula := c.rules.FatigueDamage
		if p.Mounted {
			formula = c.rules.CollisionDamage
		}
		dmg := c.roller.RollExpr(formula)
		entry.Damage = &dmg
		p.takeDamage(dmg.Total())
		entry.To = p.Location
		entry.Summary = fmt.Sprintf("%s pushes too hard (%s), is exhausted and takes %d damage.", p.Name, ck, dmg.Total())
		if p.Eliminated {
			entry.Summary += fmt.Sprintf(" %s is out of the chase.", p.Name)
		}
		c.record(entry)
		return entry, nil
	}

	next := c.Track.At(from + 1)
	here := c.Track.At(from)
	switch {
	case next == nil:
		entry.Summary = fmt.Sprintf("%s surges ahead (%s) but is already at the end of the track.", p.Name, ck)
	case here.Barrier != nil:
		entry.Summary = fmt.Sprintf("%s surges ahead (%s) but %s is in the way.", p.Name, ck, barrierName(here.Barrier))
	case next.Barrier != nil:
		entry.Summary = fmt.Sprintf("%s surges ahead (%s) but %s blocks the way.", p.Name, ck, barrierName(next.Barrier))
	default:
		p.Location++
		p.MovesMade++
		entry.Summary = fmt.Sprintf("%s surges ahead (%s) to %d.", p.Name, ck, p.Location)
	}
	entry.To = p.Location
	c.record(entry)
	if p.Location != from && next.Hazard != nil {
		c.resolveHazard(p, next.Hazard)
	}
	return entry, nil
}

// AttemptObstacle tries the skill check of the barrier or hazard at the
// participant's location, at its stored difficulty. A barrier takes precedence
// when both are present. Overcoming a barrier advances one location; passing
// a hazard avoids its damage, failing it deals the damage. A hazard is checked
// at most once per round, including the check made on entering it.
//
// Postcondition: invalid invocations return an error and mutate nothing.
func (c *Chase) AttemptObstacle(id string) (LogEntry, error) {
	p, err := c.actor(id)
	if err != nil {
		return LogEntry{}, err
	}
	loc := c.Track.At(p.Location)
	switch {
	case loc.Barrier != nil:
		return c.attemptBarrier(p, loc.Barrier), nil
	case loc.Hazard != nil:
		if p.HazardChecked {
			return LogEntry{}, fmt.Errorf("%s at %d: %w", p.Name, p.Location, ErrHazardChecked)
		}
		c.resolveHazard(p, loc.Hazard)
		return c.log[len(c.log)-1], nil
	default:
		return LogEntry{}, fmt.Errorf("%s at %d: %w", p.Name, p.Location, ErrNoObstacle)
	}
}

func (c *Chase) attemptBarrier(p *Participant, b *Barrier) LogEntry {
	ck := check.Roll(c.roller, b.Skill, p.skill(b.Skill, b.Value, c.rules.DefaultSkill), b.Difficulty)
	from := p.Location
	entry := LogEntry{Kind: EntryBarrier, ParticipantID: p.ID, Name: p.Name, From: from, Check: &ck}
	name := barrierName(b)
	next := c.Track.At(from + 1)
	switch {
	case !ck.Passed:
		entry.Summary = fmt.Sprintf("%s fails to get past %s (%s).", p.Name, name, ck)
	case next == nil:
		entry.Summary = fmt.Sprintf("%s overcomes %s (%s).", p.Name, name, ck)
	default:
		p.Location++
		p.MovesMade++
		entry.Summary = fmt.Sprintf("%s overcomes %s (%s) and reaches %d.", p.Name, name, ck, p.Location)
	}
	entry.To = p.Location
	c.record(entry)
	if p.Location != from && next.Hazard != nil {
		c.resolveHazard(p, next.Hazard)
	}
	return entry
}

func (c *Chase) actor(id string) (*Participant, error) {
	p, ok := c.Participant(id)
	if !ok {
		return nil, fmt.Errorf("participant %q: %w", id, ErrParticipantNotFound)
	}
	if !p.IsActive() {
		return nil, fmt.Errorf("%s is %s: %w", p.Name, p.Status(), ErrParticipantInactive)
	}
	return p, nil
}

func (c *Chase) record(e LogEntry) {
	e.ID = uuid.NewString()
	e.Round = c.Round
	c.log = append(c.log, e)
	switch e.Kind {
	case EntryEscaped, EntryCaught:
		c.logger.Info("chase participant finished",
			zap.String("chase", c.ID),
			zap.String("participant", e.Name),
			zap.String("result", string(e.Kind)),
			zap.Int("location", e.To),
		)
	default:
		c.logger.Debug("chase event",
			zap.String("chase", c.ID),
			zap.String("kind", string(e.Kind)),
			zap.String("participant", e.Name),
			zap.Int("from", e.From),
			zap.Int("to", e.To),
		)
	}
	if c.observer != nil {
		c.observer(e)
	}
}

func barrierName(b *Barrier) string {
	if b.Name != "" {
		return b.Name
	}
	return "a barrier (" + strings.ToLower(b.Skill) + ")"
}

func hazardName(h *Hazard) string {
	if h.Name != "" {
		return h.Name
	}
	return "a hazard (" + strings.ToLower(h.Skill) + ")"
}

// Engine tracks live chases by ID. All methods are safe for concurrent use;
// the chases themselves are not.
type Engine struct {
	mu     sync.RWMutex
	chases map[string]*Chase
}

// NewEngine creates an empty Engine.
func NewEngine() *Engine {
	return &Engine{chases: make(map[string]*Chase)}
}

// Begin creates, registers and returns a new chase.
func (g *Engine) Begin(track Track, src dice.Source, opts ...Option) (*Chase, error) {
	ch, err := New(track, src, opts...)
	if err != nil {
		return nil, err
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	g.chases[ch.ID] = ch
	return ch, nil
}

// Get returns the chase with the given ID.
func (g *Engine) Get(id string) (*Chase, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	ch, ok := g.chases[id]
	if !ok {
		return nil, fmt.Errorf("%s: %w", id, ErrChaseNotFound)
	}
	return ch, nil
}

// End removes the chase with the given ID and returns it.
func (g *Engine) End(id string) (*Chase, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	ch, ok := g.chases[id]
	if !ok {
		return nil, fmt.Errorf("%s: %w", id, ErrChaseNotFound)
	}
	delete(g.chases, id)
	return ch, nil
}
