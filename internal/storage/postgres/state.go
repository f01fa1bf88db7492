package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cory-johannsen/keeper/internal/game/character"
	"github.com/cory-johannsen/keeper/internal/game/combat"
)

// ErrStateNotFound is returned when an investigator has no saved state.
var ErrStateNotFound = errors.New("investigator state not found")

// CombatantState is the between-session condition of an investigator.
type CombatantState struct {
	InvestigatorID    int64
	HP                int
	Sanity            int
	MP                int
	MajorWound        bool
	Dying             bool
	Dead              bool
	TemporaryInsanity bool
	UpdatedAt         time.Time
}

// StateOf captures the condition of a combatant at the end of an encounter.
func StateOf(investigatorID int64, c *combat.Combatant) CombatantState {
	return CombatantState{
		InvestigatorID:    investigatorID,
		HP:                c.HP,
		Sanity:            c.Sanity,
		MP:                c.MP,
		MajorWound:        c.MajorWound,
		Dying:             c.Dying,
		Dead:              c.Dead,
		TemporaryInsanity: c.TemporaryInsanity,
	}
}

// ApplyTo restores the saved pools and condition onto inv so the next
// encounter starts from them.
func (s CombatantState) ApplyTo(inv *character.Investigator) {
	inv.Restore(s.HP, s.Sanity, s.MP, character.Condition{
		MajorWound:        s.MajorWound,
		Dying:             s.Dying,
		Dead:              s.Dead,
		TemporaryInsanity: s.TemporaryInsanity,
	})
}

// CombatantStateRepository persists investigator condition between sessions.
type CombatantStateRepository struct {
	db *pgxpool.Pool
}

// NewCombatantStateRepository creates a CombatantStateRepository backed by the given pool.
//
// Precondition: db must be a valid, open connection pool.
func NewCombatantStateRepository(db *pgxpool.Pool) *CombatantStateRepository {
	return &CombatantStateRepository{db: db}
}

// Save upserts the state row for s.InvestigatorID.
//
// Precondition: s.InvestigatorID must reference a saved investigator.
// Postcondition: Returns s with UpdatedAt set, or a non-nil error.
func (r *CombatantStateRepository) Save(ctx context.Context, s CombatantState) (CombatantState, error) {
	err := r.db.QueryRow(ctx, `
		INSERT INTO investigator_state
			(investigator_id, hp, sanity, mp, major_wound, dying, dead, temporary_insanity)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (investigator_id) DO UPDATE SET
			hp = EXCLUDED.hp,
			sanity = EXCLUDED.sanity,
			mp = EXCLUDED.mp,
			major_wound = EXCLUDED.major_wound,
			dying = EXCLUDED.dying,
			dead = EXCLUDED.dead,
			temporary_insanity = EXCLUDED.temporary_insanity,
			updated_at = NOW()
		RETURNING updated_at`,
		s.InvestigatorID, s.HP, s.Sanity, s.MP, s.MajorWound, s.Dying, s.Dead, s.TemporaryInsanity,
	).Scan(&s.UpdatedAt)
	if err != nil {
		return CombatantState{}, fmt.Errorf("saving investigator state: %w", err)
	}
	return s, nil
}

// Get loads the state for an investigator.
//
// Postcondition: Returns the state or ErrStateNotFound.
func (r *CombatantStateRepository) Get(ctx context.Context, investigatorID int64) (CombatantState, error) {
	s := CombatantState{InvestigatorID: investigatorID}
	err := r.db.QueryRow(ctx, `
		SELECT hp, sanity, mp, major_wound, dying, dead, temporary_insanity, updated_at
		FROM investigator_state WHERE investigator_id = $1`,
		investigatorID,
	).Scan(&s.HP, &s.Sanity, &s.MP, &s.MajorWound, &s.Dying, &s.Dead, &s.TemporaryInsanity, &s.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return CombatantState{}, ErrStateNotFound
		}
		return CombatantState{}, fmt.Errorf("querying investigator state: %w", err)
	}
	return s, nil
}
