// Package ledger records every ingested TDDF file in PostgreSQL.
package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/williamokano/tddf_uploader/pkg/tddf"
)

const tableName = "tddf_ingest_ledger"

// ErrDisabled is returned when no DSN is configured
var ErrDisabled = errors.New("ledger disabled")

// Store is what the pipeline and reconciler need from the ledger
type Store interface {
	Record(ctx context.Context, e Entry) error
	Has(ctx context.Context, filename string) (bool, error)
	Count(ctx context.Context) (int, error)
	Filenames(ctx context.Context) ([]string, error)
	Close() error
}

// Entry is one ingested file
type Entry struct {
	ID            uuid.UUID
	RunID         uuid.UUID
	Filename      string
	ObjectKey     string
	SizeBytes     int64
	ParseSuccess  bool
	ScheduledAt   *time.Time
	ActualAt      *time.Time
	SlotRaw       *string
	SlotLabel     *string
	SlotDayOffset int
	DelaySeconds  *int64
	ParseError    *string
	IngestedAt    time.Time
}

// EntryFromParsed builds the ledger row for an ingested file
func EntryFromParsed(runID uuid.UUID, filename, objectKey string, size int64, parsed tddf.ParsedTimestamps) Entry {
	e := Entry{
		ID:            uuid.New(),
		RunID:         runID,
		Filename:      filepath.Base(filename),
		ObjectKey:     objectKey,
		SizeBytes:     size,
		ParseSuccess:  parsed.ParseSuccess,
		ScheduledAt:   parsed.ScheduledDateTime,
		ActualAt:      parsed.ActualDateTime,
		SlotRaw:       parsed.ScheduledSlotRaw,
		SlotLabel:     parsed.ScheduledSlotLabel,
		SlotDayOffset: parsed.SlotDayOffset,
		DelaySeconds:  parsed.ProcessingDelaySeconds,
		IngestedAt:    time.Now().UTC(),
	}
	if parsed.ErrorMessage != nil {
		msg := *parsed.ErrorMessage
		e.ParseError = &msg
	}
	return e
}

// Postgres is the PostgreSQL-backed Store
type Postgres struct {
	db *sql.DB
}

// Open connects to PostgreSQL and verifies the connection
func Open(ctx context.Context, dsn string) (*Postgres, error) {
	if dsn == "" {
		return nil, ErrDisabled
	}

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open ledger database: %w", err)
	}

	db.SetMaxOpenConns(4)
	db.SetConnMaxIdleTime(5 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping ledger database: %w", err)
	}

	return &Postgres{db: db}, nil
}

// Migrate creates the ledger table when missing
func (p *Postgres) Migrate(ctx context.Context) error {
	schema := `
		CREATE TABLE IF NOT EXISTS ` + tableName + ` (
			id              UUID PRIMARY KEY,
			run_id          UUID NOT NULL,
			filename        TEXT NOT NULL UNIQUE,
			object_key      TEXT NOT NULL,
			size_bytes      BIGINT NOT NULL,
			parse_success   BOOLEAN NOT NULL,
			scheduled_at    TIMESTAMPTZ,
			actual_at       TIMESTAMPTZ,
			slot_raw        TEXT,
			slot_label      TEXT,
			slot_day_offset INTEGER NOT NULL DEFAULT 0,
			delay_seconds   BIGINT,
			parse_error     TEXT,
			ingested_at     TIMESTAMPTZ NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_` + tableName + `_scheduled ON ` + tableName + `(scheduled_at);
		CREATE INDEX IF NOT EXISTS idx_` + tableName + `_run ON ` + tableName + `(run_id);
	`

	if _, err := p.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to migrate ledger: %w", err)
	}
	return nil
}

// Record inserts the entry, replacing an earlier row for the same filename
func (p *Postgres) Record(ctx context.Context, e Entry) error {
	query := `
		INSERT INTO ` + tableName + ` (
			id, run_id, filename, object_key, size_bytes, parse_success,
			scheduled_at, actual_at, slot_raw, slot_label, slot_day_offset,
			delay_seconds, parse_error, ingested_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		ON CONFLICT (filename) DO UPDATE SET
			run_id          = EXCLUDED.run_id,
			object_key      = EXCLUDED.object_key,
			size_bytes      = EXCLUDED.size_bytes,
			parse_success   = EXCLUDED.parse_success,
			scheduled_at    = EXCLUDED.scheduled_at,
			actual_at       = EXCLUDED.actual_at,
			slot_raw        = EXCLUDED.slot_raw,
			slot_label      = EXCLUDED.slot_label,
			slot_day_offset = EXCLUDED.slot_day_offset,
			delay_seconds   = EXCLUDED.delay_seconds,
			parse_error     = EXCLUDED.parse_error,
			ingested_at     = EXCLUDED.ingested_at
	`

	_, err := p.db.ExecContext(ctx, query,
		e.ID, e.RunID, e.Filename, e.ObjectKey, e.SizeBytes, e.ParseSuccess,
		e.ScheduledAt, e.ActualAt, e.SlotRaw, e.SlotLabel, e.SlotDayOffset,
		e.DelaySeconds, e.ParseError, e.IngestedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to record %s: %w", e.Filename, describe(err))
	}
	return nil
}

// Has reports whether filename was ingested before
func (p *Postgres) Has(ctx context.Context, filename string) (bool, error) {
	var exists bool
	err := p.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM `+tableName+` WHERE filename = $1)`,
		filepath.Base(filename),
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to look up %s: %w", filename, describe(err))
	}
	return exists, nil
}

// Count returns the number of ingested files
func (p *Postgres) Count(ctx context.Context) (int, error) {
	var n int
	if err := p.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM `+tableName).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count ledger rows: %w", describe(err))
	}
	return n, nil
}

// Filenames returns every ingested filename, sorted
func (p *Postgres) Filenames(ctx context.Context) ([]string, error) {
	rows, err := p.db.QueryContext(ctx, `SELECT filename FROM `+tableName+` ORDER BY filename`)
	if err != nil {
		return nil, fmt.Errorf("failed to list ledger: %w", describe(err))
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

// Close closes the database connection
func (p *Postgres) Close() error {
	return p.db.Close()
}

// describe adds the PostgreSQL error code when the driver supplies one
func describe(err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return fmt.Errorf("%s (%s): %w", pqErr.Code.Name(), pqErr.Code, err)
	}
	return err
}
