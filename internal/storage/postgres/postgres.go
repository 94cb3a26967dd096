// Package postgres is the pgx/v5-backed RequestLogStore (spec §6). Schema
// management is hand-written SQL rather than ent-generated migrations,
// since this exercise never runs `go generate`.
package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/relaymesh/geminigate/internal/conf"
	"github.com/relaymesh/geminigate/internal/log"
	"github.com/relaymesh/geminigate/internal/storage"
)

const schemaDDL = `
CREATE TABLE IF NOT EXISTS request_logs (
	id             BIGSERIAL PRIMARY KEY,
	key_hash       TEXT NOT NULL,
	model          TEXT NOT NULL,
	dialect        TEXT NOT NULL,
	prompt_tokens  BIGINT NOT NULL DEFAULT 0,
	output_tokens  BIGINT NOT NULL DEFAULT 0,
	status_code    INT NOT NULL,
	streaming      BOOLEAN NOT NULL DEFAULT false,
	created_at     TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_request_logs_key_model_created
	ON request_logs (key_hash, model, created_at DESC);

CREATE INDEX IF NOT EXISTS idx_request_logs_created_at
	ON request_logs (created_at);

CREATE TABLE IF NOT EXISTS api_key_metrics (
	key_hash        TEXT PRIMARY KEY,
	total_requests  BIGINT NOT NULL DEFAULT 0,
	total_tokens    BIGINT NOT NULL DEFAULT 0,
	last_used_at    TIMESTAMPTZ
);
`

// Store is the pgx/v5-backed storage.RequestLogStore implementation.
type Store struct {
	pool *pgxpool.Pool
}

// Open connects to Postgres and ensures the schema exists.
func Open(ctx context.Context, cfg conf.Postgres) (*Store, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}

	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("open postgres pool: %w", err)
	}

	if _, err := pool.Exec(ctx, schemaDDL); err != nil {
		pool.Close()
		return nil, fmt.Errorf("apply postgres schema: %w", err)
	}

	return &Store{pool: pool}, nil
}

// Ping reports whether the pool can still reach Postgres, for the
// readiness probe (spec §6 operator endpoints).
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

func (s *Store) Close() {
	s.pool.Close()
}

// Append inserts one request-log row and upserts the key's running totals.
func (s *Store) Append(ctx context.Context, entry storage.RequestLogEntry) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	_, err = tx.Exec(ctx, `
		INSERT INTO request_logs (key_hash, model, dialect, prompt_tokens, output_tokens, status_code, streaming)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, entry.KeyHash, entry.Model, entry.Dialect, entry.PromptTokens, entry.OutputTokens, entry.StatusCode, entry.Streaming)
	if err != nil {
		return fmt.Errorf("insert request log: %w", err)
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO api_key_metrics (key_hash, total_requests, total_tokens, last_used_at)
		VALUES ($1, 1, $2, now())
		ON CONFLICT (key_hash) DO UPDATE SET
			total_requests = api_key_metrics.total_requests + 1,
			total_tokens = api_key_metrics.total_tokens + $2,
			last_used_at = now()
	`, entry.KeyHash, entry.PromptTokens+entry.OutputTokens)
	if err != nil {
		return fmt.Errorf("upsert key metrics: %w", err)
	}

	return tx.Commit(ctx)
}

// WindowUsage aggregates requests and tokens for (keyHash, model) since the
// given timestamp (spec §4.6 sliding-window quota check).
func (s *Store) WindowUsage(ctx context.Context, keyHash, model string, since time.Time) (storage.UsageWindow, error) {
	var window storage.UsageWindow

	row := s.pool.QueryRow(ctx, `
		SELECT COUNT(*), COALESCE(SUM(prompt_tokens + output_tokens), 0)
		FROM request_logs
		WHERE key_hash = $1 AND model = $2 AND created_at >= $3
	`, keyHash, model, since)

	if err := row.Scan(&window.Requests, &window.Tokens); err != nil {
		return storage.UsageWindow{}, fmt.Errorf("scan window usage: %w", err)
	}

	return window, nil
}

// DeleteOlderThan sweeps rows past the retention cutoff (spec §3/§9
// retention policy).
func (s *Store) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM request_logs WHERE created_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("delete aged request logs: %w", err)
	}

	deleted := tag.RowsAffected()

	log.Info(ctx, "retention sweep completed", log.Any("deleted", deleted), log.Any("cutoff", cutoff))

	return deleted, nil
}

var _ storage.RequestLogStore = (*Store)(nil)
