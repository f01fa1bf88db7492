package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cory-johannsen/keeper/internal/game/chase"
	"github.com/cory-johannsen/keeper/internal/game/combat"
)

// Session kinds recorded in the action log.
const (
	SessionEncounter = "encounter"
	SessionChase     = "chase"
)

// ErrDuplicateEntry is returned when an entry with the same ID is already logged.
var ErrDuplicateEntry = errors.New("action log entry already recorded")

// Entry is one persisted line of an encounter or chase log.
type Entry struct {
	Seq         int64
	ID          string
	SessionID   string
	SessionKind string
	Round       int
	Kind        string
	Actor       string
	Summary     string
	CreatedAt   time.Time
}

// EntryFromAttack converts a resolved attack into a log entry.
func EntryFromAttack(r combat.ActionResult) Entry {
	return Entry{
		ID:          r.ID,
		SessionID:   r.EncounterID,
		SessionKind: SessionEncounter,
		Round:       r.Round,
		Kind:        "attack:" + r.Outcome.Kind(),
		Actor:       r.AttackerName,
		Summary:     r.Summary,
	}
}

// EntryFromSanity converts a sanity check inside an encounter into a log entry.
func EntryFromSanity(encounterID string, round int, r combat.SanityResult) Entry {
	return Entry{
		ID:          uuid.NewString(),
		SessionID:   encounterID,
		SessionKind: SessionEncounter,
		Round:       round,
		Kind:        "sanity",
		Actor:       r.Name,
		Summary:     r.Summary,
	}
}

// EntryFromChase converts a chase log entry.
func EntryFromChase(chaseID string, e chase.LogEntry) Entry {
	return Entry{
		ID:          e.ID,
		SessionID:   chaseID,
		SessionKind: SessionChase,
		Round:       e.Round,
		Kind:        string(e.Kind),
		Actor:       e.Name,
		Summary:     e.Summary,
	}
}

// ActionLogRepository appends and replays session logs.
type ActionLogRepository struct {
	db *pgxpool.Pool
}

// NewActionLogRepository creates an ActionLogRepository backed by the given pool.
//
// Precondition: db must be a valid, open connection pool.
func NewActionLogRepository(db *pgxpool.Pool) *ActionLogRepository {
	return &ActionLogRepository{db: db}
}

// Append records e at the end of its session's log.
//
// Precondition: e.ID and e.SessionID must be UUIDs; e.SessionKind must be
// SessionEncounter or SessionChase.
// Postcondition: Returns the entry with Seq and CreatedAt set, or
// ErrDuplicateEntry if e.ID was already recorded.
func (r *ActionLogRepository) Append(ctx context.Context, e Entry) (Entry, error) {
	err := r.db.QueryRow(ctx, `
		INSERT INTO action_log (id, session_id, session_kind, round, kind, actor, summary)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING seq, created_at`,
		e.ID, e.SessionID, e.SessionKind, e.Round, e.Kind, e.Actor, e.Summary,
	).Scan(&e.Seq, &e.CreatedAt)
	if err != nil {
		if isDuplicateKeyError(err) {
			return Entry{}, ErrDuplicateEntry
		}
		return Entry{}, fmt.Errorf("appending action log entry: %w", err)
	}
	return e, nil
}

// List returns a session's entries in the order they were appended.
//
// Postcondition: Returns a slice (may be empty) or a non-nil error.
func (r *ActionLogRepository) List(ctx context.Context, sessionID string) ([]Entry, error) {
	rows, err := r.db.Query(ctx, `
		SELECT seq, id::text, session_id::text, session_kind, round, kind, actor, summary, created_at
		FROM action_log WHERE session_id = $1 ORDER BY seq ASC`,
		sessionID,
	)
	if err != nil {
		return nil, fmt.Errorf("listing action log: %w", err)
	}
	defer rows.Close()

	out := make([]Entry, 0)
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.Seq, &e.ID, &e.SessionID, &e.SessionKind, &e.Round, &e.Kind, &e.Actor, &e.Summary, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning action log row: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// isDuplicateKeyError checks if a PostgreSQL error is a unique violation (23505).
func isDuplicateKeyError(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
