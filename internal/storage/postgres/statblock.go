package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cory-johannsen/keeper/internal/game/character"
)

// ErrStatBlockNotFound is returned when a stat block lookup yields no results.
var ErrStatBlockNotFound = errors.New("stat block not found")

// StatBlockRepository stores investigator and creature stat blocks as JSONB.
type StatBlockRepository struct {
	db *pgxpool.Pool
}

// NewStatBlockRepository creates a StatBlockRepository backed by the given pool.
//
// Precondition: db must be a valid, open connection pool.
func NewStatBlockRepository(db *pgxpool.Pool) *StatBlockRepository {
	return &StatBlockRepository{db: db}
}

// SaveInvestigator inserts or replaces the investigator keyed by inv.Key.
//
// Precondition: inv.Key and inv.Name must be non-empty.
// Postcondition: Returns the stored investigator with ID and timestamps set.
func (r *StatBlockRepository) SaveInvestigator(ctx context.Context, inv *character.Investigator) (*character.Investigator, error) {
	if inv.Key == "" {
		return nil, fmt.Errorf("saving investigator %q: key must not be empty", inv.Name)
	}
	var out character.Investigator
	err := r.db.QueryRow(ctx, `
		INSERT INTO investigators (key, name, stat_block)
		VALUES ($1, $2, $3)
		ON CONFLICT (key) DO UPDATE
			SET name = EXCLUDED.name, stat_block = EXCLUDED.stat_block, updated_at = NOW()
		RETURNING id, stat_block, created_at, updated_at`,
		inv.Key, inv.Name, inv,
	).Scan(&out.ID, &out, &out.CreatedAt, &out.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("saving investigator: %w", err)
	}
	return &out, nil
}

// GetInvestigator retrieves an investigator by key.
//
// Postcondition: Returns the investigator or ErrStatBlockNotFound.
func (r *StatBlockRepository) GetInvestigator(ctx context.Context, key string) (*character.Investigator, error) {
	var inv character.Investigator
	var id int64
	err := r.db.QueryRow(ctx, `
		SELECT id, stat_block, created_at, updated_at FROM investigators WHERE key = $1`,
		key,
	).Scan(&id, &inv, &inv.CreatedAt, &inv.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrStatBlockNotFound
		}
		return nil, fmt.Errorf("querying investigator: %w", err)
	}
	inv.ID = id
	return &inv, nil
}

// ListInvestigators returns every investigator ordered by name.
//
// Postcondition: Returns a slice (may be empty) or a non-nil error.
func (r *StatBlockRepository) ListInvestigators(ctx context.Context) ([]*character.Investigator, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, stat_block, created_at, updated_at FROM investigators ORDER BY name ASC`)
	if err != nil {
		return nil, fmt.Errorf("listing investigators: %w", err)
	}
	defer rows.Close()

	out := make([]*character.Investigator, 0)
	for rows.Next() {
		var inv character.Investigator
		var id int64
		if err := rows.Scan(&id, &inv, &inv.CreatedAt, &inv.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scanning investigator row: %w", err)
		}
		inv.ID = id
		out = append(out, &inv)
	}
	return out, rows.Err()
}

// SaveCreature inserts or replaces the creature keyed by c.Key.
//
// Precondition: c.Key must be non-empty.
func (r *StatBlockRepository) SaveCreature(ctx context.Context, c *character.Creature) error {
	if c.Key == "" {
		return fmt.Errorf("saving creature %q: key must not be empty", c.Name)
	}
	_, err := r.db.Exec(ctx, `
		INSERT INTO creatures (key, name, stat_block)
		VALUES ($1, $2, $3)
		ON CONFLICT (key) DO UPDATE
			SET name = EXCLUDED.name, stat_block = EXCLUDED.stat_block, updated_at = NOW()`,
		c.Key, c.Name, c,
	)
	if err != nil {
		return fmt.Errorf("saving creature: %w", err)
	}
	return nil
}

// GetCreature retrieves a creature by key.
//
// Postcondition: Returns the creature or ErrStatBlockNotFound.
func (r *StatBlockRepository) GetCreature(ctx context.Context, key string) (*character.Creature, error) {
	var c character.Creature
	err := r.db.QueryRow(ctx, `SELECT stat_block FROM creatures WHERE key = $1`, key).Scan(&c)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrStatBlockNotFound
		}
		return nil, fmt.Errorf("querying creature: %w", err)
	}
	return &c, nil
}
