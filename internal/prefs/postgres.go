package prefs

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Schema creates the preferences table.
const Schema = `
CREATE TABLE IF NOT EXISTS ui_preferences (
    browser_id  TEXT        NOT NULL,
    key         TEXT        NOT NULL,
    value       TEXT        NOT NULL,
    updated_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
    PRIMARY KEY (browser_id, key)
)`

const (
	selectPref = `SELECT value FROM ui_preferences WHERE browser_id = $1 AND key = $2`
	upsertPref = `
INSERT INTO ui_preferences (browser_id, key, value, updated_at)
VALUES ($1, $2, $3, now())
ON CONFLICT (browser_id, key) DO UPDATE SET value = EXCLUDED.value, updated_at = now()`
	deletePref = `DELETE FROM ui_preferences WHERE browser_id = $1 AND key = $2`
)

// DB is the subset of pgxpool.Pool used by PostgresStore.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

var _ DB = (*pgxpool.Pool)(nil)

// PostgresStore keeps preferences in PostgreSQL.
type PostgresStore struct {
	db DB
}

// NewPostgresStore creates a store on db.
func NewPostgresStore(db DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Migrate creates the preferences table if it does not exist.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("create ui_preferences: %w", err)
	}
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, browserID, key string) (string, error) {
	var v string
	err := s.db.QueryRow(ctx, selectPref, browserID, key).Scan(&v)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("get preference %s: %w", key, err)
	}
	return v, nil
}

func (s *PostgresStore) Set(ctx context.Context, browserID, key, value string) error {
	if _, err := s.db.Exec(ctx, upsertPref, browserID, key, value); err != nil {
		return fmt.Errorf("set preference %s: %w", key, err)
	}
	return nil
}

func (s *PostgresStore) Delete(ctx context.Context, browserID, key string) error {
	if _, err := s.db.Exec(ctx, deletePref, browserID, key); err != nil {
		return fmt.Errorf("delete preference %s: %w", key, err)
	}
	return nil
}
