// Package main provides the keeper command-line table assistant: dice rolls,
// skill checks, combat, sanity, chases, and keeper macros.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/cory-johannsen/keeper/internal/config"
	"github.com/cory-johannsen/keeper/internal/game/character"
	"github.com/cory-johannsen/keeper/internal/game/dice"
	"github.com/cory-johannsen/keeper/internal/observability"
	"github.com/cory-johannsen/keeper/internal/storage/postgres"
)

// command is one keeper subcommand.
type command struct {
	name    string
	summary string
	run     func(a *app, args []string) error
}

var commands = []command{
	{"roll", "roll a dice formula: roll [-max] <formula>", runRoll},
	{"check", "make a percentile check: check -target N [-skill name] [-tier 1-3] [-roll R]", runCheck},
	{"opposed", "resolve an opposed roll: opposed -a N -b N [-skill-tiebreak]", runOpposed},
	{"sanity", "sanity check: sanity -who key (-loss X/Y | -creature key) [-roll R]", runSanity},
	{"attack", "resolve one attack: attack -attacker key -defender key [-weapon w] [-reaction r]", runAttack},
	{"chase", "run a chase: chase -track file -prey keys -pursuers keys [-rounds N]", runChase},
	{"macro", "call a keeper macro: macro [name [args...]]", runMacro},
	{"import", "store the YAML content directories in the database", runImport},
}

// app carries what every subcommand shares.
type app struct {
	cfg    config.Config
	logger *zap.Logger
	out    io.Writer
	src    dice.Source
	roller *dice.Roller

	// Set when -db is given.
	pool  *postgres.Pool
	store *store

	investigators map[string]*character.Investigator
	creatures     map[string]*character.Creature
}

func main() {
	start := time.Now()

	configPath := flag.String("config", "", "path to configuration file (defaults and KEEPER_* env when empty)")
	useDB := flag.Bool("db", false, "read stat blocks from and record results to the database")
	flag.Usage = usage
	flag.Parse()

	if flag.NArg() == 0 {
		usage()
		os.Exit(2)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("loading config: %v", err)
	}
	logger, err := observability.NewLogger(cfg.Logging)
	if err != nil {
		log.Fatalf("creating logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	a := newApp(cfg, logger, os.Stdout, cfg.Dice.NewSource())
	if *useDB {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		pool, err := postgres.NewPool(ctx, cfg.Database)
		if err == nil {
			err = pool.Health(ctx, 5*time.Second)
			if errors.Is(err, postgres.ErrSchemaNotMigrated) {
				err = fmt.Errorf("%w (run cmd/migrate first)", err)
			}
			if err != nil {
				pool.Close()
			}
		}
		cancel()
		if err != nil {
			logger.Fatal("connecting to database", zap.Error(err))
		}
		defer pool.Close()
		a.pool = pool
		a.store = newStore(pool.DB())
	}

	name, args := flag.Arg(0), flag.Args()[1:]
	if err := a.dispatch(name, args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(0)
		}
		logger.Error("command failed", zap.String("command", name), zap.Error(err))
		fmt.Fprintf(os.Stderr, "keeper %s: %v\n", name, err)
		os.Exit(1)
	}
	logger.Debug("command complete", zap.String("command", name), zap.Duration("elapsed", time.Since(start)))
}

func newApp(cfg config.Config, logger *zap.Logger, out io.Writer, src dice.Source) *app {
	return &app{
		cfg:    cfg,
		logger: logger,
		out:    out,
		src:    src,
		roller: dice.NewLoggedRoller(src, logger),
	}
}

func (a *app) dispatch(name string, args []string) error {
	for _, c := range commands {
		if c.name == name {
			return c.run(a, args)
		}
	}
	return fmt.Errorf("unknown command %q", name)
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: keeper [-config file] [-db] <command> [flags]")
	fmt.Fprintln(os.Stderr)
	for _, c := range commands {
		fmt.Fprintf(os.Stderr, "  %-8s %s\n", c.name, c.summary)
	}
}

// printf writes narration to the app's output.
func (a *app) printf(format string, args ...any) {
	fmt.Fprintf(a.out, format, args...)
}

// loadContent reads the investigator and creature directories once. A
// missing directory contributes nothing.
func (a *app) loadContent() error {
	if a.investigators != nil {
		return nil
	}
	a.investigators = make(map[string]*character.Investigator)
	a.creatures = make(map[string]*character.Creature)

	if dirExists(a.cfg.Content.Investigators) {
		invs, err := character.LoadInvestigators(a.cfg.Content.Investigators)
		if err != nil {
			return fmt.Errorf("loading investigators: %w", err)
		}
		for _, inv := range invs {
			a.investigators[strings.ToLower(inv.Key)] = inv
		}
	}
	if dirExists(a.cfg.Content.Creatures) {
		crs, err := character.LoadCreatures(a.cfg.Content.Creatures)
		if err != nil {
			return fmt.Errorf("loading creatures: %w", err)
		}
		for _, cr := range crs {
			a.creatures[strings.ToLower(cr.Key)] = cr
		}
	}
	a.logger.Debug("content loaded",
		zap.Int("investigators", len(a.investigators)),
		zap.Int("creatures", len(a.creatures)),
	)
	return nil
}

// statBlock finds key as an investigator or a creature, preferring the
// database when one is connected.
func (a *app) statBlock(ctx context.Context, key string) (*character.Investigator, *character.Creature, error) {
	if a.store != nil {
		inv, cr, err := a.store.statBlock(ctx, key)
		if err == nil {
			return inv, cr, nil
		}
		if !errors.Is(err, postgres.ErrStatBlockNotFound) {
			return nil, nil, err
		}
	}
	if err := a.loadContent(); err != nil {
		return nil, nil, err
	}
	k := strings.ToLower(key)
	if inv, ok := a.investigators[k]; ok {
		return inv, nil, nil
	}
	if cr, ok := a.creatures[k]; ok {
		return nil, cr, nil
	}
	return nil, nil, fmt.Errorf("no investigator or creature %q (known: %s)", key, strings.Join(a.knownKeys(), ", "))
}

func (a *app) knownKeys() []string {
	keys := make([]string, 0, len(a.investigators)+len(a.creatures))
	for k := range a.investigators {
		keys = append(keys, k)
	}
	for k := range a.creatures {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func dirExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}
