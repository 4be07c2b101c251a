// Package audit persists migration records and executor batch reports.
package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"sdnguard/internal/models"
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS migrations (
		id TEXT PRIMARY KEY,
		host TEXT NOT NULL,
		destination TEXT NOT NULL,
		packet_count INTEGER NOT NULL,
		from_switch TEXT, from_port TEXT,
		to_switch TEXT, to_port TEXT,
		status TEXT NOT NULL,
		plan TEXT,
		triggered_at TIMESTAMP NOT NULL,
		verified_at TIMESTAMP,
		diagnostic TEXT
	)`,
	`CREATE TABLE IF NOT EXISTS batches (
		id TEXT PRIMARY KEY,
		source TEXT NOT NULL,
		started_at TIMESTAMP NOT NULL,
		finished_at TIMESTAMP NOT NULL,
		commands INTEGER NOT NULL,
		failed INTEGER NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS batch_commands (
		batch_id TEXT NOT NULL REFERENCES batches(id),
		idx INTEGER NOT NULL,
		line TEXT NOT NULL,
		op TEXT NOT NULL,
		output TEXT,
		error TEXT,
		duration_ms INTEGER NOT NULL,
		PRIMARY KEY (batch_id, idx)
	)`,
}

// BatchSummary is one row of the batches table.
type BatchSummary struct {
	ID       string
	Source   string
	Started  time.Time
	Finished time.Time
	Commands int
	Failed   int
}

// SQLStore writes audit rows through database/sql.
type SQLStore struct {
	db *sql.DB
}

// Open opens (creating if needed) a sqlite database and its tables.
func Open(ctx context.Context, dsn string) (*SQLStore, error) {
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open audit db: %w", err)
	}
	db.SetMaxOpenConns(1)
	s := NewSQLStore(db)
	if err := s.Migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func NewSQLStore(db *sql.DB) *SQLStore {
	return &SQLStore{db: db}
}

func (s *SQLStore) Migrate(ctx context.Context) error {
	for _, stmt := range schema {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("audit schema: %w", err)
		}
	}
	return nil
}

func (s *SQLStore) Close() error { return s.db.Close() }

func (s *SQLStore) RecordMigration(ctx context.Context, rec models.MigrationRecord) error {
	plan, err := json.Marshal(rec.Plan)
	if err != nil {
		return fmt.Errorf("marshal plan: %w", err)
	}
	var verified any
	if !rec.VerifiedAt.IsZero() {
		verified = rec.VerifiedAt
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO migrations (id, host, destination, packet_count, from_switch, from_port, to_switch, to_port, status, plan, triggered_at, verified_at, diagnostic) VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		rec.ID, rec.Host, rec.Destination, rec.PacketCount,
		rec.From.Switch, rec.From.Port, rec.To.Switch, rec.To.Port,
		string(rec.Status), string(plan), rec.TriggeredAt, verified, rec.Diagnostic,
	)
	if err != nil {
		return fmt.Errorf("insert migration %s: %w", rec.ID, err)
	}
	return nil
}

func (s *SQLStore) RecordBatch(ctx context.Context, report models.BatchReport) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO batches (id, source, started_at, finished_at, commands, failed) VALUES (?,?,?,?,?,?)`,
		report.ID, report.Source, report.Started, report.Finished, len(report.Results), report.Failed(),
	)
	if err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("insert batch %s: %w", report.ID, err)
	}

	for _, r := range report.Results {
		_, err = tx.ExecContext(ctx,
			`INSERT INTO batch_commands (batch_id, idx, line, op, output, error, duration_ms) VALUES (?,?,?,?,?,?,?)`,
			report.ID, r.Index, r.Line, r.Op, r.Output, r.Error, r.Duration.Milliseconds(),
		)
		if err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("insert batch %s command %d: %w", report.ID, r.Index, err)
		}
	}
	return tx.Commit()
}

// RecentBatches returns the newest batches first.
func (s *SQLStore) RecentBatches(ctx context.Context, limit int) ([]BatchSummary, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, source, started_at, finished_at, commands, failed FROM batches ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query batches: %w", err)
	}
	defer rows.Close()

	var out []BatchSummary
	for rows.Next() {
		var b BatchSummary
		if err := rows.Scan(&b.ID, &b.Source, &b.Started, &b.Finished, &b.Commands, &b.Failed); err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

// Migration loads one record by id.
func (s *SQLStore) Migration(ctx context.Context, id string) (models.MigrationRecord, error) {
	var (
		rec      models.MigrationRecord
		status   string
		plan     string
		verified sql.NullTime
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT id, host, destination, packet_count, from_switch, from_port, to_switch, to_port, status, plan, triggered_at, verified_at, diagnostic FROM migrations WHERE id = ?`, id,
	).Scan(&rec.ID, &rec.Host, &rec.Destination, &rec.PacketCount,
		&rec.From.Switch, &rec.From.Port, &rec.To.Switch, &rec.To.Port,
		&status, &plan, &rec.TriggeredAt, &verified, &rec.Diagnostic)
	if err != nil {
		return rec, fmt.Errorf("load migration %s: %w", id, err)
	}
	rec.Status = models.MigrationStatus(status)
	if verified.Valid {
		rec.VerifiedAt = verified.Time
	}
	if plan != "" {
		if err := json.Unmarshal([]byte(plan), &rec.Plan); err != nil {
			return rec, fmt.Errorf("decode plan: %w", err)
		}
	}
	return rec, nil
}
