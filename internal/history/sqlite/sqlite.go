package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/shelfmark/pricescout/internal/history"
	_ "modernc.org/sqlite"
)

var _ history.Backend = (*sqliteBackend)(nil)

type sqliteBackend struct {
	db *sql.DB
}

const schema = `
CREATE TABLE IF NOT EXISTS fetch_log (
	id TEXT PRIMARY KEY,
	url TEXT NOT NULL,
	host TEXT NOT NULL,
	status_code INTEGER NOT NULL,
	duration_ms INTEGER NOT NULL,
	bot_gate BOOLEAN NOT NULL,
	gate_marker TEXT,
	error TEXT,
	created_at DATETIME NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_fetch_log_host_created ON fetch_log (host, created_at);
`

// New creates a SQLite-backed fetch log.
func New(dsn string) (history.Backend, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite fetch log: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create fetch log schema: %w", err)
	}

	return &sqliteBackend{db: db}, nil
}

func (b *sqliteBackend) Record(ctx context.Context, rec *history.FetchRecord) error {
	const query = `
	INSERT INTO fetch_log (id, url, host, status_code, duration_ms, bot_gate, gate_marker, error, created_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := b.db.ExecContext(ctx, query,
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

func (b *sqliteBackend) Query(ctx context.Context, filter history.Filter) ([]*history.FetchRecord, error) {
	query := `SELECT id, url, host, status_code, duration_ms, bot_gate, gate_marker, error, created_at FROM fetch_log WHERE 1=1`
	args := []any{}

	if filter.Host != "" {
		query += ` AND host = ?`
		args = append(args, filter.Host)
	}
	if filter.BotGate != nil {
		query += ` AND bot_gate = ?`
		args = append(args, *filter.BotGate)
	}
	if filter.Since != nil {
		query += ` AND created_at >= ?`
		args = append(args, *filter.Since)
	}

	query += ` ORDER BY created_at DESC`

	if filter.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, filter.Limit)
	}
	if filter.Offset > 0 {
		query += ` OFFSET ?`
		args = append(args, filter.Offset)
	}

	rows, err := b.db.QueryContext(ctx, query, args...)
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

func (b *sqliteBackend) Close() error {
	return b.db.Close()
}
