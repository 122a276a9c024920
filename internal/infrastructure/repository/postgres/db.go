package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	_ "github.com/jackc/pgx/v5/stdlib"
)

// builder is the shared squirrel statement builder with Postgres
// placeholders.
var builder = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

func OpenDB(dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("sql open: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("db ping: %w", err)
	}
	return db, nil
}

// EnsureSchema creates the pipeline tables, serialized across concurrent
// starts with an advisory lock.
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, int64(2026090101)); err != nil {
		return fmt.Errorf("acquire schema lock: %w", err)
	}

	const query = `
CREATE TABLE IF NOT EXISTS sources (
	id BIGSERIAL PRIMARY KEY,
	name TEXT NOT NULL UNIQUE,
	kind TEXT NOT NULL,
	url TEXT NOT NULL,
	config JSONB NOT NULL DEFAULT '{}'::jsonb
);

CREATE TABLE IF NOT EXISTS items (
	id BIGSERIAL PRIMARY KEY,
	source_id BIGINT NOT NULL REFERENCES sources(id),
	url TEXT NOT NULL UNIQUE,
	title TEXT NOT NULL,
	content TEXT,
	summary TEXT,
	published_at TIMESTAMPTZ,
	scraped_at TIMESTAMPTZ NOT NULL,
	processing_state TEXT NOT NULL,
	delivery_state TEXT NOT NULL,
	summarization_failed BOOLEAN NOT NULL DEFAULT FALSE,
	delivery_claimed_at TIMESTAMPTZ,
	updated_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_items_processing_state ON items(processing_state);
CREATE INDEX IF NOT EXISTS idx_items_delivery_state ON items(delivery_state);
CREATE INDEX IF NOT EXISTS idx_items_published_at ON items(published_at DESC);

CREATE TABLE IF NOT EXISTS user_preferences (
	id BIGSERIAL PRIMARY KEY,
	email TEXT NOT NULL UNIQUE,
	name TEXT NOT NULL,
	topics JSONB NOT NULL DEFAULT '[]'::jsonb,
	source_weights JSONB NOT NULL DEFAULT '{}'::jsonb,
	style TEXT NOT NULL DEFAULT '',
	summary_length INT NOT NULL DEFAULT 3,
	updated_at TIMESTAMPTZ NOT NULL
);
`
	if _, err := tx.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("execute schema ddl: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema tx: %w", err)
	}
	return nil
}
