package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/dtroode/jobboard-client/database"
	"github.com/dtroode/jobboard-client/internal/model"
	"github.com/dtroode/jobboard-client/internal/store/memory"
)

// Ensure Store implements the model.Store interface.
var _ model.Store = (*Store)(nil)

// Store keeps the durable scope in the client_state table, one row per
// profile and key. The ephemeral scope stays in process memory.
type Store struct {
	db        *sql.DB
	profile   string
	ephemeral *memory.Store
}

// Open connects to postgres, applies migrations and returns a Store.
func Open(ctx context.Context, dsn, profile string) (*Store, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open postgres connection: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping postgres: %w", err)
	}
	if err := database.Migrate(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	return New(db, profile), nil
}

// New wraps an open database handle.
func New(db *sql.DB, profile string) *Store {
	return &Store{db: db, profile: profile, ephemeral: memory.New()}
}

func (s *Store) Get(ctx context.Context, scope model.Scope, key string) (string, bool, error) {
	if scope != model.ScopeDurable {
		return s.ephemeral.Get(ctx, scope, key)
	}

	const query = `
        SELECT value
        FROM client_state
        WHERE profile = $1 AND key = $2
    `
	var value string
	if err := s.db.QueryRowContext(ctx, query, s.profile, key).Scan(&value); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("failed to get state %q: %w", key, err)
	}
	return value, true, nil
}

func (s *Store) Set(ctx context.Context, scope model.Scope, key, value string) error {
	if scope != model.ScopeDurable {
		return s.ephemeral.Set(ctx, scope, key, value)
	}

	const query = `
        INSERT INTO client_state (profile, key, value, updated_at)
        VALUES ($1, $2, $3, now())
        ON CONFLICT (profile, key) DO UPDATE
        SET value = EXCLUDED.value, updated_at = now()
    `
	if _, err := s.db.ExecContext(ctx, query, s.profile, key, value); err != nil {
		return fmt.Errorf("failed to set state %q: %w", key, err)
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, scope model.Scope, keys ...string) error {
	if scope != model.ScopeDurable {
		return s.ephemeral.Delete(ctx, scope, keys...)
	}
	if len(keys) == 0 {
		return nil
	}

	const query = `
        DELETE FROM client_state
        WHERE profile = $1 AND key = $2
    `
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin delete: %w", err)
	}
	for _, k := range keys {
		if _, err := tx.ExecContext(ctx, query, s.profile, k); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("failed to delete state %q: %w", k, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit delete: %w", err)
	}
	return nil
}

func (s *Store) Keys(ctx context.Context, scope model.Scope) ([]string, error) {
	if scope != model.ScopeDurable {
		return s.ephemeral.Keys(ctx, scope)
	}

	const query = `
        SELECT key
        FROM client_state
        WHERE profile = $1
        ORDER BY key
    `
	rows, err := s.db.QueryContext(ctx, query, s.profile)
	if err != nil {
		return nil, fmt.Errorf("failed to list state keys: %w", err)
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, fmt.Errorf("failed to scan state key: %w", err)
		}
		keys = append(keys, k)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate state keys: %w", err)
	}
	return keys, nil
}

// Close closes the database handle.
func (s *Store) Close() error {
	return s.db.Close()
}
