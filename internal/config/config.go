// Package config provides Viper-based configuration loading for the keeper tools.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/cory-johannsen/keeper/internal/game/dice"
)

// DatabaseConfig holds PostgreSQL connection settings.
type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	Name            string        `mapstructure:"name"`
	SSLMode         string        `mapstructure:"sslmode"`
	MaxConns        int32         `mapstructure:"max_conns"`
	MinConns        int32         `mapstructure:"min_conns"`
	MaxConnLifetime time.Duration `mapstructure:"max_conn_lifetime"`
}

// DSN returns the PostgreSQL connection string.
//
// Precondition: Host, Port, User, and Name must be non-empty.
// Postcondition: Returns a valid PostgreSQL DSN string.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.Name, d.SSLMode,
	)
}

// LoggingConfig holds structured logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: "debug", "info", "warn", "error".
	Level string `mapstructure:"level"`
	// Format is the log output format: "json" or "console".
	Format string `mapstructure:"format"`
	// Output is where logs are written: "stderr", "stdout" or a file path.
	// Narration goes to stdout, so the default keeps logs on stderr.
	Output string `mapstructure:"output"`
}

// RulesConfig holds the tunable rules constants.
type RulesConfig struct {
	// DefaultSkill is used for chase checks against a skill the participant lacks.
	DefaultSkill int `mapstructure:"default_skill"`
	// FatigueDamage is the damage formula for a failed extra move on foot.
	FatigueDamage string `mapstructure:"fatigue_damage"`
	// CollisionDamage is the damage formula for a failed extra move in a vehicle.
	CollisionDamage string `mapstructure:"collision_damage"`
	// MaxChaseRounds ends a chase with the prey escaping; 0 means unlimited.
	MaxChaseRounds int `mapstructure:"max_chase_rounds"`
}

// DiceConfig selects the randomness source.
type DiceConfig struct {
	// Source is "crypto" or "seeded".
	Source string `mapstructure:"source"`
	// Seed is used when Source is "seeded", for replaying a session.
	Seed uint64 `mapstructure:"seed"`
}

// NewSource builds the configured dice source.
//
// Precondition: d has passed validation.
func (d DiceConfig) NewSource() dice.Source {
	if d.Source == "seeded" {
		return dice.NewSeededSource(d.Seed)
	}
	return dice.NewCryptoSource()
}

// ScriptingConfig holds keeper macro settings.
type ScriptingConfig struct {
	// Dir is the directory of *.lua macro files.
	Dir string `mapstructure:"dir"`
	// InstructionLimit caps the VM instructions one macro call may execute.
	InstructionLimit int `mapstructure:"instruction_limit"`
}

// ContentConfig points at the YAML content directories.
type ContentConfig struct {
	Investigators string `mapstructure:"investigators"`
	Creatures     string `mapstructure:"creatures"`
	Tracks        string `mapstructure:"tracks"`
}

// Config is the top-level application configuration.
type Config struct {
	Database  DatabaseConfig  `mapstructure:"database"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	Rules     RulesConfig     `mapstructure:"rules"`
	Dice      DiceConfig      `mapstructure:"dice"`
	Scripting ScriptingConfig `mapstructure:"scripting"`
	Content   ContentConfig   `mapstructure:"content"`
}

// Validate checks all configuration invariants.
//
// Postcondition: Returns nil if configuration is valid, or an error describing all violations.
func (c Config) Validate() error {
	var errs []string

	if err := validateDatabase(c.Database); err != nil {
		errs = append(errs, err.Error())
	}
	if err := validateLogging(c.Logging); err != nil {
		errs = append(errs, err.Error())
	}
	if err := validateRules(c.Rules); err != nil {
		errs = append(errs, err.Error())
	}
	if err := validateDice(c.Dice); err != nil {
		errs = append(errs, err.Error())
	}
	if c.Scripting.InstructionLimit < 0 {
		errs = append(errs, fmt.Sprintf("scripting.instruction_limit must be >= 0, got %d", c.Scripting.InstructionLimit))
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}

func validateDatabase(d DatabaseConfig) error {
	var errs []string
	if d.Host == "" {
		errs = append(errs, "database.host must not be empty")
	}
	if d.Port < 1 || d.Port > 65535 {
		errs = append(errs, fmt.Sprintf("database.port must be 1-65535, got %d", d.Port))
	}
	if d.User == "" {
		errs = append(errs, "database.user must not be empty")
	}
	if d.Name == "" {
		errs = append(errs, "database.name must not be empty")
	}
	validSSL := map[string]bool{"disable": true, "require": true, "verify-ca": true, "verify-full": true}
	if !validSSL[d.SSLMode] {
		errs = append(errs, fmt.Sprintf("database.sslmode must be one of [disable, require, verify-ca, verify-full], got %q", d.SSLMode))
	}
	if d.MaxConns < 1 {
		errs = append(errs, fmt.Sprintf("database.max_conns must be >= 1, got %d", d.MaxConns))
	}
	if d.MinConns < 0 {
		errs = append(errs, fmt.Sprintf("database.min_conns must be >= 0, got %d", d.MinConns))
	}
	if d.MinConns > d.MaxConns {
		errs = append(errs, "database.min_conns must not exceed database.max_conns")
	}
	if len(errs) > 0 {
		return fmt.Errorf("%s", strings.Join(errs, "; "))
	}
	return nil
}

func validateLogging(l LoggingConfig) error {
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[l.Level] {
		return fmt.Errorf("logging.level must be one of [debug, info, warn, error], got %q", l.Level)
	}
	validFormats := map[string]bool{"json": true, "console": true}
	if !validFormats[l.Format] {
		return fmt.Errorf("logging.format must be one of [json, console], got %q", l.Format)
	}
	return nil
}

func validateRules(r RulesConfig) error {
	var errs []string
	if r.DefaultSkill < 1 || r.DefaultSkill > 100 {
		errs = append(errs, fmt.Sprintf("rules.default_skill must be 1-100, got %d", r.DefaultSkill))
	}
	// Damage formulas are validated strictly here even though the engine
	// evaluates bad formulas as 0 at the table.
	if _, err := dice.ParseStrict(r.FatigueDamage); err != nil {
		errs = append(errs, fmt.Sprintf("rules.fatigue_damage: %v", err))
	}
	if _, err := dice.ParseStrict(r.CollisionDamage); err != nil {
		errs = append(errs, fmt.Sprintf("rules.collision_damage: %v", err))
	}
	if r.MaxChaseRounds < 0 {
		errs = append(errs, fmt.Sprintf("rules.max_chase_rounds must be >= 0, got %d", r.MaxChaseRounds))
	}
	if len(errs) > 0 {
		return fmt.Errorf("%s", strings.Join(errs, "; "))
	}
	return nil
}

func validateDice(d DiceConfig) error {
	if d.Source != "crypto" && d.Source != "seeded" {
		return fmt.Errorf("dice.source must be one of [crypto, seeded], got %q", d.Source)
	}
	return nil
}

// Load reads configuration from the given file path, applies environment variable
// overrides, and validates the result. An empty path uses defaults and the
// environment only.
//
// Postcondition: Returns a valid Config or a non-nil error.
func Load(path string) (Config, error) {
	v := NewViper()
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("reading config file: %w", err)
		}
	}
	return LoadFromViper(v)
}

// LoadFromViper builds a Config from an already-configured Viper instance.
//
// Precondition: v must be non-nil and have configuration values set.
// Postcondition: Returns a valid Config or a non-nil error.
func LoadFromViper(v *viper.Viper) (Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshalling config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// NewViper returns a Viper instance carrying the defaults and environment
// bindings used by Load, for callers that layer their own settings on top.
func NewViper() *viper.Viper {
	v := viper.New()

	// Environment variable overrides with KEEPER_ prefix
	v.SetEnvPrefix("KEEPER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)
	return v
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "keeper")
	v.SetDefault("database.password", "keeper")
	v.SetDefault("database.name", "keeper")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_conns", 10)
	v.SetDefault("database.min_conns", 2)
	v.SetDefault("database.max_conn_lifetime", "1h")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")
	v.SetDefault("logging.output", "stderr")

	v.SetDefault("rules.default_skill", 50)
	v.SetDefault("rules.fatigue_damage", "1D3")
	v.SetDefault("rules.collision_damage", "1D10")
	v.SetDefault("rules.max_chase_rounds", 0)

	v.SetDefault("dice.source", "crypto")
	v.SetDefault("dice.seed", 0)

	v.SetDefault("scripting.dir", "content/macros")
	v.SetDefault("scripting.instruction_limit", 100000)

	v.SetDefault("content.investigators", "content/investigators")
	v.SetDefault("content.creatures", "content/creatures")
	v.SetDefault("content.tracks", "content/tracks")
}
