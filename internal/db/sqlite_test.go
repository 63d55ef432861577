package db

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/udisondev/castcore/internal/journal"
)

func openTestSQLite(t *testing.T) (*SQLiteJournal, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "journal.db")
	j, err := OpenSQLite(context.Background(), path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = j.Close() })
	return j, path
}

func TestSQLiteJournal_InsertAndRead(t *testing.T) {
	j, _ := openTestSQLite(t)
	ctx := context.Background()
	at := time.Date(2026, 3, 1, 12, 0, 0, 500, time.UTC)

	in := []journal.Event{
		{Tick: 7, At: at, Kind: journal.KindActivation, Actor: 1, Ability: "bolt", Level: 2,
			Variant: "instant", Hits: 1, Damage: 30, Reason: "completed"},
		{Tick: 7, At: at, Kind: journal.KindViolation, Actor: 2, Message: "negative cooldown"},
		{Tick: 8, At: at, Kind: journal.KindEffect, Actor: 2, Effect: "burn", Stacks: 2, Reason: "refreshed"},
		{Tick: 9, At: at, Kind: journal.KindDeath, Actor: 2},
	}
	require.NoError(t, j.InsertEvents(ctx, in))

	out, err := j.Events(ctx, 10)
	require.NoError(t, err)
	require.Len(t, out, 4)

	for i := range in {
		assert.True(t, in[i].At.Equal(out[i].At), "event %d timestamp", i)
		out[i].At = in[i].At
	}
	assert.Equal(t, in, out)
}

func TestSQLiteJournal_EventsLimit(t *testing.T) {
	j, _ := openTestSQLite(t)
	ctx := context.Background()

	var events []journal.Event
	for i := range 5 {
		events = append(events, journal.Event{Tick: uint64(i), At: time.Now(), Kind: journal.KindActivation})
	}
	require.NoError(t, j.InsertEvents(ctx, events))

	out, err := j.Events(ctx, 2)
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, uint64(0), out[0].Tick)
	assert.Equal(t, uint64(1), out[1].Tick)
}

func TestSQLiteJournal_EmptyBatch(t *testing.T) {
	j, _ := openTestSQLite(t)
	require.NoError(t, j.InsertEvents(context.Background(), nil))

	out, err := j.Events(context.Background(), 10)
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestSQLiteJournal_ReopenKeepsData(t *testing.T) {
	j, path := openTestSQLite(t)
	ctx := context.Background()
	require.NoError(t, j.InsertEvents(ctx, []journal.Event{{Tick: 1, At: time.Now(), Kind: journal.KindDeath, Actor: 4}}))
	require.NoError(t, j.Close())

	again, err := OpenSQLite(ctx, path)
	require.NoError(t, err, "migrations are idempotent")
	defer again.Close()

	out, err := again.Events(ctx, 10)
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, uint32(4), out[0].Actor)
}

func TestSQLiteJournal_WithWriter(t *testing.T) {
	j, _ := openTestSQLite(t)
	w := journal.NewWriter(j, journal.WithFlushInterval(time.Hour))

	for i := range 3 {
		require.True(t, w.Record(journal.Event{Tick: uint64(i), Kind: journal.KindActivation, Ability: "nova"}))
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, w.Run(ctx), context.Canceled)

	out, err := j.Events(context.Background(), 10)
	require.NoError(t, err)
	assert.Len(t, out, 3)
	assert.Equal(t, uint64(3), w.Written())
}

func TestOpenSQLite_EmptyPath(t *testing.T) {
	_, err := OpenSQLite(context.Background(), "  ")
	assert.Error(t, err)
}

func TestRunMigrations_UnknownDialect(t *testing.T) {
	err := RunMigrations(context.Background(), nil, "mysql")
	assert.ErrorContains(t, err, "unsupported migration dialect")
}
