package character

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// LoadInvestigatorFromBytes parses, normalizes and validates a single
// investigator stat block from YAML.
//
// Postcondition: Returns a validated *Investigator with derived attributes
// filled in, or an error.
func LoadInvestigatorFromBytes(data []byte) (*Investigator, error) {
	var inv Investigator
	if err := decodeStrict(data, &inv); err != nil {
		return nil, fmt.Errorf("parsing investigator YAML: %w", err)
	}
	inv.Normalize()
	if err := inv.Validate(); err != nil {
		return nil, err
	}
	return &inv, nil
}

// LoadCreatureFromBytes parses, normalizes and validates a single creature
// stat block from YAML.
func LoadCreatureFromBytes(data []byte) (*Creature, error) {
	var c Creature
	if err := decodeStrict(data, &c); err != nil {
		return nil, fmt.Errorf("parsing creature YAML: %w", err)
	}
	c.Normalize()
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// LoadInvestigators reads every *.yaml file in dir as an investigator.
//
// Precondition: dir must be a readable directory.
// Postcondition: Returns all investigators or an error on the first parse or
// validate failure; on error, the partial result is discarded.
func LoadInvestigators(dir string) ([]*Investigator, error) {
	var out []*Investigator
	err := eachYAML(dir, func(path string, data []byte) error {
		inv, err := LoadInvestigatorFromBytes(data)
		if err != nil {
			return err
		}
		out = append(out, inv)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// LoadCreatures reads every *.yaml file in dir as a creature.
func LoadCreatures(dir string) ([]*Creature, error) {
	var out []*Creature
	err := eachYAML(dir, func(path string, data []byte) error {
		c, err := LoadCreatureFromBytes(data)
		if err != nil {
			return err
		}
		out = append(out, c)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func decodeStrict(data []byte, v any) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	return dec.Decode(v)
}

func eachYAML(dir string, fn func(path string, data []byte) error) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("reading stat block dir %q: %w", dir, err)
	}
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".yaml") {
			continue
		}
		path := filepath.Join(dir, e.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("reading %q: %w", path, err)
		}
		if err := fn(path, data); err != nil {
			return fmt.Errorf("loading %q: %w", path, err)
		}
	}
	return nil
}
