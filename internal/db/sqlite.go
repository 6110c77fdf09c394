package db

import (
	"context"
	"fmt"
	"log/slog"

	_ "github.com/glebarez/go-sqlite"
	"github.com/jmoiron/sqlx"
)

const scoreSchema = `
CREATE TABLE IF NOT EXISTS score_totals (
	mode       TEXT    NOT NULL,
	difficulty TEXT    NOT NULL,
	size       INTEGER NOT NULL,
	x_wins     INTEGER NOT NULL DEFAULT 0,
	o_wins     INTEGER NOT NULL DEFAULT 0,
	draws      INTEGER NOT NULL DEFAULT 0,
	PRIMARY KEY (mode, difficulty, size)
);`

// OpenSQLite opens the score database at path and makes sure its schema exists.
// Use ":memory:" for a throwaway database.
func OpenSQLite(ctx context.Context, path string) (*sqlx.DB, error) {
	pool, err := sqlx.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}
	// SQLite allows a single writer; a single connection also keeps an
	// in-memory database alive for the pool's lifetime.
	pool.SetMaxOpenConns(1)

	if err := pool.PingContext(ctx); err != nil {
		_ = pool.Close()
		return nil, fmt.Errorf("failed to connect to sqlite database: %w", err)
	}
	if _, err := pool.ExecContext(ctx, scoreSchema); err != nil {
		_ = pool.Close()
		return nil, fmt.Errorf("failed to create score_totals table: %w", err)
	}

	slog.InfoContext(ctx, "SQLite connection initialized and schema verified.", "sqlite.path", path)
	return pool, nil
}
