// Package postgres stores keeper stat blocks, the action log and investigator
// condition in PostgreSQL using pgx v5.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cory-johannsen/keeper/internal/config"
)

// ApplicationName identifies keeper sessions in pg_stat_activity.
const ApplicationName = "keeper"

// ErrSchemaNotMigrated is returned by CheckSchema when a keeper table is missing.
var ErrSchemaNotMigrated = errors.New("keeper schema not migrated")

// Tables lists the relations the repositories read and write, in migration order.
var Tables = []string{"investigators", "creatures", "action_log", "investigator_state"}

// Pool owns the connection pool the keeper repositories share.
type Pool struct {
	pool *pgxpool.Pool
}

// NewPool connects to the keeper database described by cfg.
//
// Precondition: cfg must contain valid database connection parameters.
// Postcondition: Returns a pinged Pool whose sessions report ApplicationName,
// or a non-nil error.
func NewPool(ctx context.Context, cfg config.DatabaseConfig) (*Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("parsing database config: %w", err)
	}
	poolCfg.MaxConns = cfg.MaxConns
	poolCfg.MinConns = cfg.MinConns
	poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	poolCfg.ConnConfig.RuntimeParams["application_name"] = ApplicationName

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("creating connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging %s@%s:%d/%s: %w", cfg.User, cfg.Host, cfg.Port, cfg.Name, err)
	}
	return &Pool{pool: pool}, nil
}

// Health pings the database, then checks the keeper schema, within timeout.
//
// Precondition: The pool must not be closed.
// Postcondition: Returns nil iff the database answered and every table in
// Tables exists; a missing table yields ErrSchemaNotMigrated.
func (p *Pool) Health(ctx context.Context, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := p.pool.Ping(ctx); err != nil {
		return fmt.Errorf("pinging database: %w", err)
	}
	return p.CheckSchema(ctx)
}

// CheckSchema reports which keeper tables are missing.
//
// Postcondition: Returns an error wrapping ErrSchemaNotMigrated that names the
// missing tables, or nil when all exist.
func (p *Pool) CheckSchema(ctx context.Context) error {
	rows, err := p.pool.Query(ctx,
		`SELECT name FROM unnest($1::text[]) WITH ORDINALITY AS t(name, n)
		 WHERE to_regclass(name) IS NULL ORDER BY n`,
		Tables,
	)
	if err != nil {
		return fmt.Errorf("checking schema: %w", err)
	}
	defer rows.Close()

	var missing []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return fmt.Errorf("scanning missing table: %w", err)
		}
		missing = append(missing, name)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("checking schema: %w", err)
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing %s: %w", strings.Join(missing, ", "), ErrSchemaNotMigrated)
	}
	return nil
}

// Close releases all pool resources.
func (p *Pool) Close() {
	p.pool.Close()
}

// DB returns the pgxpool.Pool the repositories are built on.
func (p *Pool) DB() *pgxpool.Pool {
	return p.pool
}
