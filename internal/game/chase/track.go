// Package chase implements the chase resolution engine: a track of locations
// with barriers and hazards, prey and pursuers moving along it round by round,
// and the catch and escape rules that end the chase.
package chase

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/cory-johannsen/keeper/internal/game/check"
	"github.com/cory-johannsen/keeper/internal/game/dice"
)

// Barrier blocks movement past its location until overcome with a skill check.
//
// Value, when positive, is the skill value used by participants who lack the
// named skill; otherwise the rules default applies.
type Barrier struct {
	Name       string           `yaml:"name"`
	Skill      string           `yaml:"skill"`
	Value      int              `yaml:"value"`
	Difficulty check.Difficulty `yaml:"difficulty"`
}

// Hazard damages participants who fail its skill check. It does not block.
type Hazard struct {
	Name       string           `yaml:"name"`
	Skill      string           `yaml:"skill"`
	Value      int              `yaml:"value"`
	Difficulty check.Difficulty `yaml:"difficulty"`
	Damage     string           `yaml:"damage"`
}

// Location is one numbered stop on the track.
type Location struct {
	Position int      `yaml:"position"`
	Name     string   `yaml:"name"`
	Barrier  *Barrier `yaml:"barrier"`
	Hazard   *Hazard  `yaml:"hazard"`
}

// Track is the ordered list of locations a chase runs over. Position i is
// stored at index i-1.
type Track struct {
	Name      string     `yaml:"name"`
	Locations []Location `yaml:"locations"`
}

// NewTrack builds a plain track of n locations with no obstacles.
//
// Precondition: n >= 1.
func NewTrack(name string, n int) Track {
	t := Track{Name: name, Locations: make([]Location, n)}
	for i := range t.Locations {
		t.Locations[i].Position = i + 1
	}
	return t
}

// Len returns the number of locations; the last location is the track end.
func (t Track) Len() int { return len(t.Locations) }

// At returns the location at position pos, or nil when pos is off the track.
func (t *Track) At(pos int) *Location {
	if pos < 1 || pos > len(t.Locations) {
		return nil
	}
	return &t.Locations[pos-1]
}

// Validate checks that positions run 1..N and every obstacle is well formed.
// Damage formulas are checked strictly so that bad content is caught at load
// time rather than silently rolling 0.
func (t Track) Validate() error {
	if len(t.Locations) == 0 {
		return fmt.Errorf("track %q: must have at least one location", t.Name)
	}
	for i, loc := range t.Locations {
		if loc.Position != i+1 {
			return fmt.Errorf("track %q: location %d has position %d", t.Name, i+1, loc.Position)
		}
		if b := loc.Barrier; b != nil {
			if b.Skill == "" {
				return fmt.Errorf("track %q: barrier at %d: skill must not be empty", t.Name, loc.Position)
			}
			if b.Difficulty < 0 || b.Difficulty > check.Extreme {
				return fmt.Errorf("track %q: barrier at %d: difficulty %d must be 1-3", t.Name, loc.Position, b.Difficulty)
			}
		}
		if h := loc.Hazard; h != nil {
			if h.Skill == "" {
				return fmt.Errorf("track %q: hazard at %d: skill must not be empty", t.Name, loc.Position)
			}
			if h.Difficulty < 0 || h.Difficulty > check.Extreme {
				return fmt.Errorf("track %q: hazard at %d: difficulty %d must be 1-3", t.Name, loc.Position, h.Difficulty)
			}
			if _, err := dice.ParseStrict(h.Damage); err != nil {
				return fmt.Errorf("track %q: hazard at %d: %w", t.Name, loc.Position, err)
			}
		}
	}
	return nil
}

// ParseTrack decodes and validates a track from YAML. Locations without an
// explicit position are numbered in order.
func ParseTrack(data []byte) (Track, error) {
	var t Track
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&t); err != nil {
		return Track{}, fmt.Errorf("parsing track YAML: %w", err)
	}
	for i := range t.Locations {
		if t.Locations[i].Position == 0 {
			t.Locations[i].Position = i + 1
		}
	}
	if err := t.Validate(); err != nil {
		return Track{}, err
	}
	return t, nil
}

// LoadTrack reads and validates a track file.
func LoadTrack(path string) (Track, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Track{}, fmt.Errorf("reading track %q: %w", path, err)
	}
	t, err := ParseTrack(data)
	if err != nil {
		return Track{}, fmt.Errorf("loading track %q: %w", path, err)
	}
	return t, nil
}
