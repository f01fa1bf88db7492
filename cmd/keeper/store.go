package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cory-johannsen/keeper/internal/game/character"
	"github.com/cory-johannsen/keeper/internal/game/chase"
	"github.com/cory-johannsen/keeper/internal/game/combat"
	"github.com/cory-johannsen/keeper/internal/storage/postgres"
)

// store records results and investigator condition when -db is given.
type store struct {
	statBlocks *postgres.StatBlockRepository
	actionLog  *postgres.ActionLogRepository
	states     *postgres.CombatantStateRepository
}

func newStore(db *pgxpool.Pool) *store {
	return &store{
		statBlocks: postgres.NewStatBlockRepository(db),
		actionLog:  postgres.NewActionLogRepository(db),
		states:     postgres.NewCombatantStateRepository(db),
	}
}

// statBlock loads key as an investigator, with its saved condition applied,
// or as a creature.
//
// Postcondition: Returns postgres.ErrStatBlockNotFound when neither exists.
func (s *store) statBlock(ctx context.Context, key string) (*character.Investigator, *character.Creature, error) {
	inv, err := s.statBlocks.GetInvestigator(ctx, key)
	switch {
	case err == nil:
		st, err := s.states.Get(ctx, inv.ID)
		switch {
		case err == nil:
			st.ApplyTo(inv)
		case !errors.Is(err, postgres.ErrStateNotFound):
			return nil, nil, err
		}
		return inv, nil, nil
	case !errors.Is(err, postgres.ErrStatBlockNotFound):
		return nil, nil, err
	}

	cr, err := s.statBlocks.GetCreature(ctx, key)
	if err != nil {
		return nil, nil, err
	}
	return nil, cr, nil
}

// saveStates persists the condition of every stored investigator in enc.
// ids maps combatant IDs to investigator IDs.
func (s *store) saveStates(ctx context.Context, enc *combat.Encounter, ids map[string]int64) error {
	for cid, invID := range ids {
		if invID == 0 {
			continue
		}
		c, ok := enc.Combatant(cid)
		if !ok {
			continue
		}
		if _, err := s.states.Save(ctx, postgres.StateOf(invID, c)); err != nil {
			return fmt.Errorf("saving %s: %w", c.Name, err)
		}
	}
	return nil
}

func (s *store) recordAttack(ctx context.Context, enc *combat.Encounter, res combat.ActionResult, ids map[string]int64) error {
	if _, err := s.actionLog.Append(ctx, postgres.EntryFromAttack(res)); err != nil {
		return err
	}
	return s.saveStates(ctx, enc, ids)
}

func (s *store) recordSanity(ctx context.Context, enc *combat.Encounter, res combat.SanityResult, ids map[string]int64) error {
	if _, err := s.actionLog.Append(ctx, postgres.EntryFromSanity(enc.ID, enc.Round, res)); err != nil {
		return err
	}
	return s.saveStates(ctx, enc, ids)
}

func (s *store) recordChase(ctx context.Context, ch *chase.Chase) error {
	for _, e := range ch.Log() {
		if _, err := s.actionLog.Append(ctx, postgres.EntryFromChase(ch.ID, e)); err != nil {
			return err
		}
	}
	return nil
}
