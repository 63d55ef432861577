package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/udisondev/castcore/internal/journal"
)

// PostgresJournal stores combat events in PostgreSQL.
type PostgresJournal struct {
	pool *pgxpool.Pool
}

// OpenPostgres connects to PostgreSQL, applies migrations and returns the journal.
func OpenPostgres(ctx context.Context, dsn string) (*PostgresJournal, error) {
	if err := migratePostgres(ctx, dsn); err != nil {
		return nil, err
	}

	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connecting to database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}
	return &PostgresJournal{pool: pool}, nil
}

func migratePostgres(ctx context.Context, dsn string) error {
	sqlDB, err := sql.Open("pgx", dsn)
	if err != nil {
		return fmt.Errorf("opening sql connection for migrations: %w", err)
	}
	defer sqlDB.Close()
	return RunMigrations(ctx, sqlDB, DialectPostgres)
}

// Close closes the connection pool.
func (j *PostgresJournal) Close() error {
	j.pool.Close()
	return nil
}

// InsertEvents writes events in a single transaction.
func (j *PostgresJournal) InsertEvents(ctx context.Context, events []journal.Event) error {
	if len(events) == 0 {
		return nil
	}

	tx, err := j.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		if err := tx.Rollback(ctx); err != nil && !errors.Is(err, pgx.ErrTxClosed) {
			slog.Error("rollback failed", "error", err)
		}
	}()

	batch := &pgx.Batch{}
	for _, ev := range events {
		batch.Queue(
			`INSERT INTO combat_events
			 (tick, at, kind, actor_id, ability, level, variant, depth, hits, damage, heal, reason, effect, stacks, message)
			 VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15)`,
			int64(ev.Tick), ev.At, string(ev.Kind), int64(ev.Actor), ev.Ability, ev.Level,
			ev.Variant, ev.Depth, ev.Hits, ev.Damage, ev.Heal, ev.Reason, ev.Effect, ev.Stacks, ev.Message,
		)
	}
	br := tx.SendBatch(ctx, batch)
	for range events {
		if _, err := br.Exec(); err != nil {
			br.Close() //nolint:errcheck
			return fmt.Errorf("insert event batch: %w", err)
		}
	}
	if err := br.Close(); err != nil {
		return fmt.Errorf("close event batch: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit events: %w", err)
	}
	return nil
}

// Events returns up to limit stored events in insertion order.
func (j *PostgresJournal) Events(ctx context.Context, limit int) ([]journal.Event, error) {
	rows, err := j.pool.Query(ctx,
		`SELECT tick, at, kind, actor_id, ability, level, variant, depth, hits, damage, heal, reason, effect, stacks, message
		 FROM combat_events ORDER BY id LIMIT $1`, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("querying events: %w", err)
	}
	defer rows.Close()

	var out []journal.Event
	for rows.Next() {
		var (
			ev          journal.Event
			tick, actor int64
			kind        string
		)
		if err := rows.Scan(&tick, &ev.At, &kind, &actor, &ev.Ability, &ev.Level, &ev.Variant,
			&ev.Depth, &ev.Hits, &ev.Damage, &ev.Heal, &ev.Reason, &ev.Effect, &ev.Stacks, &ev.Message); err != nil {
			return nil, fmt.Errorf("scanning event: %w", err)
		}
		ev.Tick = uint64(tick)
		ev.Actor = uint32(actor)
		ev.Kind = journal.Kind(kind)
		out = append(out, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating events: %w", err)
	}
	return out, nil
}
