package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shelfmark/pricescout/internal/history"
)

var _ history.Backend = (*postgresBackend)(nil)

type postgresBackend struct {
	pool *pgxpool.Pool
}

const schema = `
CREATE TABLE IF NOT EXISTS fetch_log (
	id TEXT PRIMARY KEY,
	url TEXT NOT NULL,
	host TEXT NOT NULL,
	status_code INTEGER NOT NULL,
	duration_ms BIGINT NOT NULL,
	bot_gate BOOLEAN NOT NULL,
	gate_marker TEXT,
	error TEXT,
	created_at TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_fetch_log_host_created ON fetch_log (host, created_at);
`

// New creates a Postgres-backed fetch log.
func New(ctx context.Context, dsn string) (history.Backend, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect postgres fetch log: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres fetch log: %w", err)
	}

	if _, err := pool.Exec(ctx, schema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("create fetch log schema: %w", err)
	}

	return &postgresBackend{pool: pool}, nil
}

func (b *postgresBackend) Record(ctx context.Context, rec *history.FetchRecord) error {
	const query = `
	INSERT INTO fetch_log (id, url, host, status_code, duration_ms, bot_gate, gate_marker, error, created_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	_, err := b.pool.Exec(ctx, query,
		rec.ID,
		rec.URL,
		rec.Host,
		rec.StatusCode,
		rec.Duration.Milliseconds(),
		rec.BotGate,
		rec.GateMarker,
		rec.Error,
		rec.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert fetch record: %w", err)
	}
	return nil
}

func (b *postgresBackend) Query(ctx context.Context, filter history.Filter) ([]*history.FetchRecord, error) {
	query := `SELECT id, url, host, status_code, duration_ms, bot_gate, gate_marker, error, created_at FROM fetch_log WHERE 1=1`
	args := []any{}

	if filter.Host != "" {
		args = append(args, filter.Host)
		query += fmt.Sprintf(` AND host = $%d`, len(args))
	}
	if filter.BotGate != nil {
		args = append(args, *filter.BotGate)
		query += fmt.Sprintf(` AND bot_gate = $%d`, len(args))
	}
	if filter.Since != nil {
		args = append(args, *filter.Since)
		query += fmt.Sprintf(` AND created_at >= $%d`, len(args))
	}

	query += ` ORDER BY created_at DESC`

	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf(` LIMIT $%d`, len(args))
	}
	if filter.Offset > 0 {
		args = append(args, filter.Offset)
		query += fmt.Sprintf(` OFFSET $%d`, len(args))
	}

	rows, err := b.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query fetch log: %w", err)
	}
	defer rows.Close()

	var records []*history.FetchRecord
	for rows.Next() {
		var r history.FetchRecord
		var durationMs int64

		err := rows.Scan(&r.ID, &r.URL, &r.Host, &r.StatusCode, &durationMs,
			&r.BotGate, &r.GateMarker, &r.Error, &r.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("scan fetch record: %w", err)
		}

		r.Duration = time.Duration(durationMs) * time.Millisecond
		records = append(records, &r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate fetch log: %w", err)
	}
	return records, nil
}

func (b *postgresBackend) Close() error {
	b.pool.Close()
	return nil
}
