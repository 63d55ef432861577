package db

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/udisondev/castcore/internal/journal"
)

// SQLiteJournal stores combat events in a local SQLite file.
type SQLiteJournal struct {
	sqlDB *sql.DB
}

// OpenSQLite opens (or creates) the database at path and applies migrations.
func OpenSQLite(ctx context.Context, path string) (*SQLiteJournal, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("sqlite path is required")
	}
	dsn := filepath.Clean(path) + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if err := RunMigrations(ctx, sqlDB, DialectSQLite); err != nil {
		_ = sqlDB.Close()
		return nil, err
	}
	return &SQLiteJournal{sqlDB: sqlDB}, nil
}

// Close releases the database handle.
func (j *SQLiteJournal) Close() error {
	return j.sqlDB.Close()
}

// InsertEvents writes events in a single transaction.
func (j *SQLiteJournal) InsertEvents(ctx context.Context, events []journal.Event) error {
	if len(events) == 0 {
		return nil
	}

	tx, err := j.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO combat_events
		 (tick, at_unix_nano, kind, actor_id, ability, level, variant, depth, hits, damage, heal, reason, effect, stacks, message)
		 VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, ev := range events {
		if _, err := stmt.ExecContext(ctx,
			int64(ev.Tick), ev.At.UnixNano(), string(ev.Kind), int64(ev.Actor), ev.Ability, ev.Level,
			ev.Variant, ev.Depth, ev.Hits, ev.Damage, ev.Heal, ev.Reason, ev.Effect, ev.Stacks, ev.Message,
		); err != nil {
			return fmt.Errorf("insert event (tick %d, kind %s): %w", ev.Tick, ev.Kind, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit events: %w", err)
	}
	return nil
}

// Events returns up to limit stored events in insertion order.
func (j *SQLiteJournal) Events(ctx context.Context, limit int) ([]journal.Event, error) {
	rows, err := j.sqlDB.QueryContext(ctx,
		`SELECT tick, at_unix_nano, kind, actor_id, ability, level, variant, depth, hits, damage, heal, reason, effect, stacks, message
		 FROM combat_events ORDER BY id LIMIT ?`, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("querying events: %w", err)
	}
	defer rows.Close()

	var out []journal.Event
	for rows.Next() {
		var (
			ev              journal.Event
			tick, at, actor int64
			kind            string
		)
		if err := rows.Scan(&tick, &at, &kind, &actor, &ev.Ability, &ev.Level, &ev.Variant,
			&ev.Depth, &ev.Hits, &ev.Damage, &ev.Heal, &ev.Reason, &ev.Effect, &ev.Stacks, &ev.Message); err != nil {
			return nil, fmt.Errorf("scanning event: %w", err)
		}
		ev.Tick = uint64(tick)
		ev.At = time.Unix(0, at)
		ev.Actor = uint32(actor)
		ev.Kind = journal.Kind(kind)
		out = append(out, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating events: %w", err)
	}
	return out, nil
}
