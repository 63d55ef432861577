package db

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/udisondev/castcore/internal/journal"
)

// Runs only against a live server: CASTCORE_TEST_POSTGRES_DSN=postgres://...
func TestPostgresJournal_InsertAndRead(t *testing.T) {
	dsn := os.Getenv("CASTCORE_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("CASTCORE_TEST_POSTGRES_DSN not set")
	}
	ctx := context.Background()

	j, err := OpenPostgres(ctx, dsn)
	require.NoError(t, err)
	defer j.Close()

	_, err = j.pool.Exec(ctx, `TRUNCATE combat_events`)
	require.NoError(t, err)

	at := time.Now().UTC().Truncate(time.Microsecond)
	in := []journal.Event{
		{Tick: 1, At: at, Kind: journal.KindActivation, Actor: 3, Ability: "arrow", Level: 1,
			Variant: "projectile", Hits: 1, Damage: 12, Reason: "max_hits"},
		{Tick: 2, At: at, Kind: journal.KindDeath, Actor: 4},
		{Tick: 2, At: at, Kind: journal.KindEffect, Actor: 4, Effect: "burn", Stacks: 1, Reason: "cleared"},
	}
	require.NoError(t, j.InsertEvents(ctx, in))

	out, err := j.Events(ctx, 10)
	require.NoError(t, err)
	require.Len(t, out, 3)
	assert.Equal(t, "arrow", out[0].Ability)
	assert.Equal(t, journal.KindDeath, out[1].Kind)
	assert.Equal(t, "burn", out[2].Effect)
	assert.Equal(t, int32(1), out[2].Stacks)
	assert.True(t, at.Equal(out[0].At))
}
