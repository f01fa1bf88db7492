package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"

	"github.com/cory-johannsen/keeper/internal/game/chase"
	"github.com/cory-johannsen/keeper/internal/game/check"
	"github.com/cory-johannsen/keeper/internal/game/combat"
	"github.com/cory-johannsen/keeper/internal/game/dice"
	"github.com/cory-johannsen/keeper/internal/observability"
	"github.com/cory-johannsen/keeper/internal/scripting"
)

// chaseRoundCap stops an unlimited chase that nobody can finish.
const chaseRoundCap = 100

func newFlagSet(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	return fs
}

func validRoll(roll int) error {
	if roll < 0 || roll > 100 {
		return fmt.Errorf("roll must be 1-100, got %d", roll)
	}
	return nil
}

func runRoll(a *app, args []string) error {
	fs := newFlagSet("roll")
	maximize := fs.Bool("max", false, "take every die at its highest face")
	if err := fs.Parse(args); err != nil {
		return err
	}
	expr := strings.Join(fs.Args(), "")
	f, err := dice.ParseStrict(expr)
	if err != nil {
		return err
	}
	var res dice.RollResult
	if *maximize {
		res = a.roller.Maximize(f)
	} else {
		res = a.roller.Roll(f)
	}
	a.printf("%s\n", res)
	return nil
}

func runCheck(a *app, args []string) error {
	fs := newFlagSet("check")
	skill := fs.String("skill", "", "skill or characteristic name")
	target := fs.Int("target", 0, "skill value 0-100")
	tier := fs.Int("tier", 1, "difficulty tier: 1 regular, 2 hard, 3 extreme")
	roll := fs.Int("roll", 0, "use this roll instead of rolling")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *target < 0 || *target > 100 {
		return fmt.Errorf("target must be 0-100, got %d", *target)
	}
	if err := validRoll(*roll); err != nil {
		return err
	}
	d := check.DifficultyFromTier(*tier)
	var c check.Check
	if *roll == 0 {
		c = check.Roll(a.roller, *skill, *target, d)
	} else {
		c = check.Resolved(*skill, *target, d, *roll)
	}
	a.printf("%s: %s\n", c, passFail(c.Passed))
	return nil
}

func runOpposed(a *app, args []string) error {
	fs := newFlagSet("opposed")
	attacker := fs.Int("a", 0, "first side's skill value")
	defender := fs.Int("b", 0, "second side's skill value")
	attackerRoll := fs.Int("a-roll", 0, "first side's roll (rolled when 0)")
	defenderRoll := fs.Int("b-roll", 0, "second side's roll (rolled when 0)")
	bySkill := fs.Bool("skill-tiebreak", false, "break ties in favour of the higher skill")
	if err := fs.Parse(args); err != nil {
		return err
	}
	for _, r := range []int{*attackerRoll, *defenderRoll} {
		if err := validRoll(r); err != nil {
			return err
		}
	}
	ca := check.Resolved("A", *attacker, check.Regular, rollOr(a.roller, *attackerRoll))
	cb := check.Resolved("B", *defender, check.Regular, rollOr(a.roller, *defenderRoll))
	w := check.Resolve(ca.Level, ca.Target, cb.Level, cb.Target)
	if *bySkill {
		w = check.BreakTieBySkill(w, ca.Target, cb.Target)
	}
	a.printf("%s\n%s\nwinner: %s\n", ca, cb, w)
	return nil
}

func runSanity(a *app, args []string) error {
	fs := newFlagSet("sanity")
	who := fs.String("who", "", "investigator key")
	loss := fs.String("loss", "", "sanity loss as success/failure, e.g. 1/1D6")
	creature := fs.String("creature", "", "creature whose sanity loss applies")
	roll := fs.Int("roll", 0, "use this roll instead of rolling")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *who == "" {
		return errors.New("-who is required")
	}
	if err := validRoll(*roll); err != nil {
		return err
	}
	ctx := context.Background()

	formula := *loss
	if formula == "" {
		if *creature == "" {
			return errors.New("one of -loss or -creature is required")
		}
		_, cr, err := a.statBlock(ctx, *creature)
		if err != nil {
			return err
		}
		if cr == nil {
			return fmt.Errorf("%q is not a creature", *creature)
		}
		formula = cr.SanityLoss
	}

	inv, _, err := a.statBlock(ctx, *who)
	if err != nil {
		return err
	}
	if inv == nil {
		return fmt.Errorf("%q is not an investigator", *who)
	}

	enc := combat.NewEncounter(a.src, combat.WithLogger(a.logger))
	c := combat.FromInvestigator(inv)
	if err := enc.Add(c); err != nil {
		return err
	}
	res, err := enc.SanityCheck(c.ID, formula, *roll)
	if err != nil {
		return err
	}
	a.printf("%s\n%s\n", res.Check, res.Summary)

	if a.store != nil {
		return a.store.recordSanity(ctx, enc, res, map[string]int64{c.ID: inv.ID})
	}
	return nil
}

func parseReaction(s string) (combat.Reaction, error) {
	switch strings.ToLower(s) {
	case "", "dodge":
		return combat.ReactionDodge, nil
	case "fight", "fightback", "fight-back":
		return combat.ReactionFightBack, nil
	case "none":
		return combat.ReactionNone, nil
	default:
		return 0, fmt.Errorf("unknown reaction %q: must be dodge, fight or none", s)
	}
}

// combatant projects key into enc and records its stored investigator ID.
func (a *app) combatant(ctx context.Context, enc *combat.Encounter, key string, ids map[string]int64) (*combat.Combatant, error) {
	inv, cr, err := a.statBlock(ctx, key)
	if err != nil {
		return nil, err
	}
	var c *combat.Combatant
	if inv != nil {
		c = combat.FromInvestigator(inv)
		if inv.ID != 0 {
			ids[c.ID] = inv.ID
		}
	} else {
		c = combat.FromCreature(cr)
	}
	if err := enc.Add(c); err != nil {
		return nil, err
	}
	return c, nil
}

func runAttack(a *app, args []string) error {
	fs := newFlagSet("attack")
	attacker := fs.String("attacker", "", "attacking investigator or creature key")
	defender := fs.String("defender", "", "defending investigator or creature key")
	weapon := fs.String("weapon", "", "weapon or attack name (first listed when empty)")
	reaction := fs.String("reaction", "dodge", "defender reaction: dodge, fight or none")
	attackRoll := fs.Int("attack-roll", 0, "attacker's roll (rolled when 0)")
	defenseRoll := fs.Int("defense-roll", 0, "defender's roll (rolled when 0)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *attacker == "" || *defender == "" {
		return errors.New("-attacker and -defender are required")
	}
	r, err := parseReaction(*reaction)
	if err != nil {
		return err
	}
	for _, roll := range []int{*attackRoll, *defenseRoll} {
		if err := validRoll(roll); err != nil {
			return err
		}
	}
	ctx := context.Background()

	enc := combat.NewEncounter(a.src,
		combat.WithLogger(a.logger),
		combat.WithObserver(func(e combat.Event) {
			if e.Kind != combat.EventDamaged {
				a.printf("  [%s] %s\n", e.Kind, e.Name)
			}
		}),
	)
	ids := make(map[string]int64)
	atk, err := a.combatant(ctx, enc, *attacker, ids)
	if err != nil {
		return err
	}
	def, err := a.combatant(ctx, enc, *defender, ids)
	if err != nil {
		return err
	}
	enc.Start()
	observability.Session(a.logger, "encounter", enc.ID).Debug("encounter started",
		zap.String("attacker", atk.Name), zap.String("defender", def.Name))

	res, err := enc.Attack(combat.AttackSetup{
		AttackerID:   atk.ID,
		DefenderID:   def.ID,
		Weapon:       *weapon,
		Reaction:     r,
		AttackerRoll: *attackRoll,
		DefenderRoll: *defenseRoll,
	})
	if err != nil {
		return err
	}
	a.printf("%s\n", res.Attack)
	if res.Defense != nil {
		a.printf("%s\n", *res.Defense)
	}
	if dmg, ok := combat.DamageOf(res.Outcome); ok {
		a.printf("damage: %s\n", dmg)
	}
	a.printf("%s\n", res.Summary)
	a.printf("%s: %d/%d HP\n", def.Name, def.HP, def.MaxHP)

	if a.store != nil {
		return a.store.recordAttack(ctx, enc, res, ids)
	}
	return nil
}

// resolveTrack accepts a file path or a track name in the content directory.
func (a *app) resolveTrack(name string) (chase.Track, error) {
	if _, err := os.Stat(name); err == nil {
		return chase.LoadTrack(name)
	}
	return chase.LoadTrack(filepath.Join(a.cfg.Content.Tracks, name+".yaml"))
}

func splitKeys(s string) []string {
	var out []string
	for _, k := range strings.Split(s, ",") {
		if k = strings.TrimSpace(k); k != "" {
			out = append(out, k)
		}
	}
	return out
}

func runChase(a *app, args []string) error {
	fs := newFlagSet("chase")
	trackName := fs.String("track", "", "track file or name under the content tracks directory")
	prey := fs.String("prey", "", "comma-separated prey keys")
	pursuers := fs.String("pursuers", "", "comma-separated pursuer keys")
	preyAt := fs.Int("prey-at", 2, "starting location of the prey")
	pursuersAt := fs.Int("pursuers-at", 1, "starting location of the pursuers")
	rounds := fs.Int("rounds", 0, "round limit after which the prey escape (config when 0)")
	extra := fs.Bool("extra", false, "prey attempt an extra move every round")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *trackName == "" {
		return errors.New("-track is required")
	}
	track, err := a.resolveTrack(*trackName)
	if err != nil {
		return err
	}
	ctx := context.Background()

	rules := chase.Rules{
		DefaultSkill:    a.cfg.Rules.DefaultSkill,
		FatigueDamage:   a.cfg.Rules.FatigueDamage,
		CollisionDamage: a.cfg.Rules.CollisionDamage,
		MaxRounds:       a.cfg.Rules.MaxChaseRounds,
	}
	if *rounds > 0 {
		rules.MaxRounds = *rounds
	}
	ch, err := chase.New(track, a.src,
		chase.WithLogger(a.logger),
		chase.WithRules(rules),
		chase.WithObserver(func(e chase.LogEntry) { a.printf("[round %d] %s\n", e.Round, e.Summary) }),
	)
	if err != nil {
		return err
	}

	add := func(keys []string, role chase.Role, loc int) error {
		for _, key := range keys {
			inv, cr, err := a.statBlock(ctx, key)
			if err != nil {
				return err
			}
			var p *chase.Participant
			if inv != nil {
				p = chase.FromInvestigator(inv, role, loc)
			} else {
				p = chase.FromCreature(cr, role, loc)
			}
			if err := ch.Add(p); err != nil {
				return err
			}
		}
		return nil
	}
	preyKeys, pursuerKeys := splitKeys(*prey), splitKeys(*pursuers)
	if len(preyKeys) == 0 {
		return errors.New("-prey needs at least one key")
	}
	if err := add(preyKeys, chase.Prey, *preyAt); err != nil {
		return err
	}
	if err := add(pursuerKeys, chase.Pursuer, *pursuersAt); err != nil {
		return err
	}

	ch.Start()
	for !ch.IsOver() {
		if rules.MaxRounds == 0 && ch.Round > chaseRoundCap {
			a.printf("The chase is abandoned after %d rounds.\n", chaseRoundCap)
			break
		}
		if _, err := ch.SpeedPhase(); err != nil {
			return err
		}
		if ch.IsOver() {
			break
		}
		a.actionPhase(ch, *extra)
		round := ch.Round
		for ch.Round == round {
			if ch.AdvanceTurn() == nil {
				break
			}
		}
	}

	for _, p := range ch.Participants() {
		a.printf("%s: %s at %d/%d\n", p.Name, p.Status(), p.Location, track.Len())
	}
	if a.store != nil {
		return a.store.recordChase(ctx, ch)
	}
	return nil
}

// actionPhase lets everyone held at a barrier try to cross it and, when
// extra is set, every other prey push for an extra move.
func (a *app) actionPhase(ch *chase.Chase, extra bool) {
	for _, p := range ch.TurnOrder() {
		var err error
		switch loc := ch.Track.At(p.Location); {
		case loc != nil && loc.Barrier != nil:
			_, err = ch.AttemptObstacle(p.ID)
		case extra && p.Role == chase.Prey:
			_, err = ch.ExtraMove(p.ID)
		}
		if err != nil && !errors.Is(err, chase.ErrExhausted) {
			a.logger.Warn("chase action rejected", zap.String("participant", p.Name), zap.Error(err))
		}
	}
}

func runMacro(a *app, args []string) error {
	fs := newFlagSet("macro")
	dir := fs.String("dir", a.cfg.Scripting.Dir, "macro directory")
	if err := fs.Parse(args); err != nil {
		return err
	}
	mgr := scripting.NewManager(a.roller, a.logger, a.cfg.Scripting.InstructionLimit)
	defer mgr.Close()
	if err := mgr.Load(*dir); err != nil {
		return err
	}

	if fs.NArg() == 0 {
		for _, name := range mgr.Macros() {
			a.printf("%s\n", name)
		}
		return nil
	}
	ret, err := mgr.Call(fs.Arg(0), scripting.ArgsFromStrings(fs.Args()[1:])...)
	if err != nil {
		return err
	}
	for _, v := range ret {
		a.printf("%s\n", luaString(v))
	}
	return nil
}

// luaString renders a macro result, flattening a table into key=value pairs.
func luaString(v lua.LValue) string {
	t, ok := v.(*lua.LTable)
	if !ok {
		return v.String()
	}
	var parts []string
	t.ForEach(func(k, val lua.LValue) {
		parts = append(parts, fmt.Sprintf("%s=%s", k.String(), val.String()))
	})
	return strings.Join(parts, " ")
}

func runImport(a *app, args []string) error {
	fs := newFlagSet("import")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if a.store == nil {
		return errors.New("import needs -db")
	}
	if err := a.loadContent(); err != nil {
		return err
	}
	ctx := context.Background()
	for _, key := range sortedKeys(a.investigators) {
		saved, err := a.store.statBlocks.SaveInvestigator(ctx, a.investigators[key])
		if err != nil {
			return err
		}
		a.printf("investigator %s (#%d)\n", saved.Key, saved.ID)
	}
	for _, key := range sortedKeys(a.creatures) {
		if err := a.store.statBlocks.SaveCreature(ctx, a.creatures[key]); err != nil {
			return err
		}
		a.printf("creature %s\n", key)
	}
	return nil
}

func rollOr(r *dice.Roller, roll int) int {
	if roll == 0 {
		return r.Percentile()
	}
	return roll
}

func passFail(passed bool) string {
	if passed {
		return "passed"
	}
	return "failed"
}

// sortedKeys returns the keys of m in order.
func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
