package sim

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/udisondev/castcore/internal/data"
	"github.com/udisondev/castcore/internal/game/cast"
	"github.com/udisondev/castcore/internal/game/effect"
	"github.com/udisondev/castcore/internal/journal"
	"github.com/udisondev/castcore/internal/model"
	"github.com/udisondev/castcore/internal/replication"
	"github.com/udisondev/castcore/internal/testutil"
	"github.com/udisondev/castcore/internal/world"
)

const dt = 100 * time.Millisecond

type recorder struct {
	events []journal.Event
}

func (r *recorder) Record(ev journal.Event) bool {
	r.events = append(r.events, ev)
	return true
}

func (r *recorder) ofKind(k journal.Kind) []journal.Event {
	var out []journal.Event
	for _, ev := range r.events {
		if ev.Kind == k {
			out = append(out, ev)
		}
	}
	return out
}

func actorCfg(id uint32, team int32, x float64, hp int32, abilities ...string) model.ActorConfig {
	known := make(map[string]int32, len(abilities))
	for _, ab := range abilities {
		known[ab] = 1
	}
	return model.ActorConfig{
		ID:        id,
		Name:      "actor",
		Team:      team,
		Level:     1,
		MaxHP:     hp,
		MaxEnergy: 100,
		Position:  model.Pt(x, 0),
		Radius:    0.5,
		Abilities: known,
	}
}

func newSim(t *testing.T, opts ...Option) (*Simulation, *recorder) {
	t.Helper()
	rec := &recorder{}
	opts = append([]Option{WithJournal(rec)}, opts...)
	return New(testutil.MustCatalog(t), opts...), rec
}

func mustSpawn(t *testing.T, s *Simulation, cfg model.ActorConfig) *model.Actor {
	t.Helper()
	a, err := s.Spawn(cfg)
	require.NoError(t, err)
	return a
}

func steps(t *testing.T, s *Simulation, n int) {
	t.Helper()
	for range n {
		require.NoError(t, s.Step(context.Background(), dt))
	}
}

func TestSimulation_CastCommitsAndPublishes(t *testing.T) {
	s, rec := newSim(t)
	caster := mustSpawn(t, s, actorCfg(1, 1, 0, 100, "bolt"))
	target := mustSpawn(t, s, actorCfg(2, 2, 5, 100))

	require.NoError(t, s.RequestCast(1, "bolt"))
	assert.True(t, s.Busy(1))

	steps(t, s, 4)
	assert.Equal(t, int32(100), target.HP(), "before the commit point")
	assert.Equal(t, int32(100), caster.Energy())

	steps(t, s, 1)
	assert.Equal(t, int32(80), target.HP())
	assert.Equal(t, int32(91), caster.Energy(), "cost 10, gain 1 per hit")

	st, ok := s.Hub().State(2)
	require.True(t, ok)
	assert.Equal(t, int32(80), st.HP.Get())

	casterState, ok := s.Hub().State(1)
	require.True(t, ok)
	assert.Equal(t, 2500*time.Millisecond, casterState.Cooldowns.Get()["bolt"])
	assert.Equal(t, "bolt", casterState.Selected.Get())

	acts := rec.ofKind(journal.KindActivation)
	require.Len(t, acts, 1)
	assert.Equal(t, journal.Event{
		Tick:    5,
		Kind:    journal.KindActivation,
		Actor:   1,
		Ability: "bolt",
		Level:   1,
		Variant: "instant",
		Hits:    1,
		Damage:  20,
		Reason:  "completed",
	}, acts[0])
}

func TestSimulation_DeathCleansUp(t *testing.T) {
	s, rec := newSim(t)
	mustSpawn(t, s, actorCfg(1, 1, 0, 100, "bolt", "field"))
	target := mustSpawn(t, s, actorCfg(2, 2, 5, 15, "field"))

	require.NoError(t, s.RequestCastAt(2, "field", model.Pt(20, 0)))
	require.Equal(t, 1, s.Active())

	require.NoError(t, s.RequestCast(1, "bolt"))
	steps(t, s, 5)

	assert.False(t, target.IsAlive())
	assert.Zero(t, s.Active(), "the dead caster's zone ends")

	deaths := rec.ofKind(journal.KindDeath)
	require.Len(t, deaths, 1)
	assert.Equal(t, uint32(2), deaths[0].Actor)

	err := s.Move(2, model.Pt(1, 1))
	assert.ErrorIs(t, err, ErrActorDead)

	steps(t, s, 1)
	assert.Len(t, rec.ofKind(journal.KindDeath), 1, "death is recorded once")

	snap, ok := s.Snapshot(2)
	require.True(t, ok)
	assert.False(t, snap.Alive)
	assert.Zero(t, snap.HP)
}

func TestSimulation_MovementCancelsBeforeCommit(t *testing.T) {
	s, _ := newSim(t)
	caster := mustSpawn(t, s, actorCfg(1, 1, 0, 100, "bolt"))
	target := mustSpawn(t, s, actorCfg(2, 2, 5, 100))

	require.NoError(t, s.RequestCast(1, "bolt"))
	require.NoError(t, s.Move(1, model.Pt(0, 10)))
	steps(t, s, 1)

	c, ok := s.Caster(1)
	require.True(t, ok)
	assert.Equal(t, cast.StateResolved, c.State())
	assert.Equal(t, cast.ResultCancelled, c.Result())
	assert.Zero(t, c.Cooldown("bolt"))
	assert.Equal(t, int32(100), caster.Energy())
	assert.Equal(t, model.Pt(0, 0.5), caster.Position())

	steps(t, s, 10)
	assert.Equal(t, int32(100), target.HP())
}

func TestSimulation_MovementLockedByCast(t *testing.T) {
	s, _ := newSim(t)
	mustSpawn(t, s, actorCfg(1, 1, 0, 100, "channel"))

	require.NoError(t, s.RequestCast(1, "channel"))
	assert.True(t, s.IsMovementBlocked(1))
	assert.ErrorIs(t, s.Move(1, model.Pt(3, 0)), ErrMovementBlocked)

	steps(t, s, 20)
	assert.False(t, s.IsMovementBlocked(1), "lock released when the cast resolves")
	assert.NoError(t, s.Move(1, model.Pt(3, 0)))
}

func TestSimulation_MoveReachesDestination(t *testing.T) {
	s, _ := newSim(t)
	a := mustSpawn(t, s, actorCfg(1, 1, 0, 100))

	require.NoError(t, s.Move(1, model.Pt(1, 0)))
	steps(t, s, 1)
	assert.InDelta(t, 0.5, a.Position().X, 1e-9)
	_, moving := s.Destination(1)
	assert.True(t, moving)

	steps(t, s, 1)
	assert.InDelta(t, 1.0, a.Position().X, 1e-9)
	_, moving = s.Destination(1)
	assert.False(t, moving)
}

func TestSimulation_MoveSpeedFollowsEffects(t *testing.T) {
	s, _ := newSim(t)
	a := mustSpawn(t, s, actorCfg(1, 1, 0, 100))
	_, err := a.Effects().Apply(data.EffectSpec{EffectID: "haste"}, 1)
	require.NoError(t, err)

	require.NoError(t, s.Move(1, model.Pt(10, 0)))
	steps(t, s, 1)
	assert.InDelta(t, 0.75, a.Position().X, 1e-9, "speed bonus 0.5")
}

func TestSimulation_StunBlocksMovement(t *testing.T) {
	s, _ := newSim(t)
	a := mustSpawn(t, s, actorCfg(1, 1, 0, 100))
	_, err := a.Effects().Apply(data.EffectSpec{EffectID: "stun"}, 1)
	require.NoError(t, err)

	assert.True(t, s.IsCastBlocked(1))
	assert.ErrorIs(t, s.Move(1, model.Pt(1, 0)), ErrMovementBlocked)
}

func TestSimulation_RequestErrors(t *testing.T) {
	s, _ := newSim(t)
	mustSpawn(t, s, actorCfg(1, 1, 0, 100, "bolt", "expensive"))

	tests := []struct {
		name    string
		actor   uint32
		ability string
		want    error
	}{
		{"unknown actor", 9, "bolt", ErrUnknownActor},
		{"unknown ability", 1, "nova", cast.ErrInvalidAbility},
		{"insufficient energy", 1, "expensive", cast.ErrInsufficientResource},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := s.RequestCast(tt.actor, tt.ability)
			assert.ErrorIs(t, err, tt.want)
			assert.False(t, s.Busy(1))
		})
	}
}

func TestSimulation_SelectThenConfirm(t *testing.T) {
	s, _ := newSim(t)
	mustSpawn(t, s, actorCfg(1, 1, 0, 100, "flare"))
	enemy := mustSpawn(t, s, actorCfg(2, 2, 6, 100))

	require.NoError(t, s.Select(1, "flare"))
	c, _ := s.Caster(1)
	assert.Equal(t, cast.StateSelected, c.State())

	require.NoError(t, s.Confirm(1, model.ActorTarget(2)))
	assert.Equal(t, int32(92), enemy.HP(), "instant commit at the target's position")
}

func TestSimulation_SpawnValidation(t *testing.T) {
	s, _ := newSim(t)
	mustSpawn(t, s, actorCfg(1, 1, 0, 100))

	unknown := actorCfg(2, 1, 0, 100, "meteor")
	_, err := s.Spawn(unknown)
	assert.ErrorIs(t, err, data.ErrUnknownIdentifier)

	tooHigh := actorCfg(3, 1, 0, 100)
	tooHigh.Abilities = map[string]int32{"bolt": 4}
	_, err = s.Spawn(tooHigh)
	assert.ErrorContains(t, err, "exceeds max")

	badDefault := actorCfg(4, 1, 0, 100, "bolt")
	badDefault.DefaultAbility = "strike"
	_, err = s.Spawn(badDefault)
	assert.ErrorContains(t, err, "default ability")

	_, err = s.Spawn(actorCfg(1, 1, 0, 100))
	assert.ErrorIs(t, err, world.ErrDuplicateActor)

	_, err = s.Spawn(actorCfg(world.DynamicIDBase, 1, 0, 100))
	assert.ErrorIs(t, err, world.ErrReservedID)

	assert.Len(t, s.Actors(), 1)

	auto := mustSpawn(t, s, actorCfg(0, 1, 3, 100))
	assert.Equal(t, world.DynamicIDBase, auto.ObjectID())
	assert.Len(t, s.Actors(), 2)
}

func TestSimulation_DespawnEndsActivations(t *testing.T) {
	s, rec := newSim(t)
	mustSpawn(t, s, actorCfg(1, 1, 0, 100, "field"))

	require.NoError(t, s.RequestCastAt(1, "field", model.Pt(10, 0)))
	steps(t, s, 1)
	require.Equal(t, 1, s.Active())

	require.NoError(t, s.Despawn(1))
	assert.Zero(t, s.Active())
	_, ok := s.Hub().State(1)
	assert.False(t, ok)

	acts := rec.ofKind(journal.KindActivation)
	require.Len(t, acts, 1)
	assert.Equal(t, "caster_gone", acts[0].Reason)

	assert.ErrorIs(t, s.Despawn(1), ErrUnknownActor)
}

func TestSimulation_ViolationsAreJournaled(t *testing.T) {
	s, rec := newSim(t)
	mustSpawn(t, s, actorCfg(1, 1, 0, 100, "bolt"))

	c, _ := s.Caster(1)
	c.SetCooldown("bolt", -time.Second)

	v := rec.ofKind(journal.KindViolation)
	require.Len(t, v, 1)
	assert.Equal(t, uint32(1), v[0].Actor)
	assert.Contains(t, v[0].Message, "negative cooldown")
}

func TestSimulation_ObserverRejectsMutation(t *testing.T) {
	cat := testutil.MustCatalog(t)
	observer := New(cat, WithAuthority(false))

	_, err := observer.Spawn(actorCfg(1, 1, 0, 100))
	assert.ErrorIs(t, err, ErrNotAuthority)
	assert.ErrorIs(t, observer.Step(context.Background(), dt), ErrNotAuthority)
	assert.ErrorIs(t, observer.RequestCast(1, "bolt"), ErrNotAuthority)
	assert.ErrorIs(t, observer.Move(1, model.Pt(1, 1)), ErrNotAuthority)
	assert.ErrorIs(t, observer.Despawn(1), ErrNotAuthority)
	assert.ErrorIs(t, observer.Run(context.Background(), dt), ErrNotAuthority)
}

func TestSimulation_ObserverMirrorsAuthority(t *testing.T) {
	cat := testutil.MustCatalog(t)
	observer := New(cat, WithAuthority(false))

	var hpChanges []int32
	observer.Hub().OnActor(func(st *replication.ActorState) {
		if st.ID() == 2 {
			st.HP.OnChange(func(_, new int32) { hpChanges = append(hpChanges, new) })
		}
	})

	host := New(cat, WithSnapshotSink(func(snaps []replication.Snapshot) {
		require.NoError(t, observer.ApplySnapshots(snaps))
	}))
	mustSpawn(t, host, actorCfg(1, 1, 0, 100, "nova"))
	mustSpawn(t, host, actorCfg(2, 2, 2, 100))

	require.NoError(t, host.RequestCast(1, "nova"))
	steps(t, host, 1)

	hostSnap, _ := host.Snapshot(2)
	st, ok := observer.Hub().State(2)
	require.True(t, ok)
	assert.Equal(t, hostSnap, st.Snapshot())
	assert.Equal(t, []int32{90}, hpChanges)

	assert.Error(t, host.ApplySnapshots(nil), "authority publishes, never applies")
}

func TestSimulation_BeforeStepHooks(t *testing.T) {
	var ticks []uint64
	s, _ := newSim(t, WithBeforeStep(func(tick uint64) { ticks = append(ticks, tick) }))
	steps(t, s, 3)
	assert.Equal(t, []uint64{1, 2, 3}, ticks)
	assert.Equal(t, uint64(3), s.Tick())
}

func TestSimulation_StepRejectsNegativeDt(t *testing.T) {
	s, _ := newSim(t)
	assert.Error(t, s.Step(context.Background(), -dt))
	assert.Zero(t, s.Tick())
}

func TestSimulation_TracesSteps(t *testing.T) {
	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))
	defer func() { _ = tp.Shutdown(context.Background()) }()

	s, _ := newSim(t, WithTracer(tp.Tracer("test")))
	mustSpawn(t, s, actorCfg(1, 1, 0, 100, "nova"))
	mustSpawn(t, s, actorCfg(2, 2, 1, 100))

	steps(t, s, 1)
	require.NoError(t, s.RequestCast(1, "nova"))
	steps(t, s, 1)

	spans := sr.Ended()
	require.Len(t, spans, 2)
	assert.Equal(t, "sim.Step", spans[0].Name())
	assert.Empty(t, spans[0].Events())

	// nova is instant: it commits in RequestCast, outside any step.
	assert.Empty(t, spans[1].Events())

	var ended int64 = -1
	for _, kv := range spans[1].Attributes() {
		if kv.Key == "sim.activations.ended" {
			ended = kv.Value.AsInt64()
		}
	}
	assert.Zero(t, ended)
}

func TestSimulation_TracesActivationEvents(t *testing.T) {
	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))
	defer func() { _ = tp.Shutdown(context.Background()) }()

	s, _ := newSim(t, WithTracer(tp.Tracer("test")))
	mustSpawn(t, s, actorCfg(1, 1, 0, 100, "bolt"))
	mustSpawn(t, s, actorCfg(2, 2, 1, 100))

	require.NoError(t, s.RequestCast(1, "bolt"))
	steps(t, s, 5)

	spans := sr.Ended()
	require.Len(t, spans, 5)
	events := spans[4].Events()
	require.Len(t, events, 1)
	assert.Equal(t, "activation.ended", events[0].Name)
}

func TestSimulation_RunStopsOnCancel(t *testing.T) {
	s, _ := newSim(t)
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	err := s.Run(ctx, 5*time.Millisecond)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Positive(t, s.Tick())
}

func TestSimulation_EffectChangesJournaledBetweenSnapshots(t *testing.T) {
	var changes []effect.Change
	s, rec := newSim(t, WithEffectListener(func(c effect.Change) { changes = append(changes, c) }))
	mustSpawn(t, s, actorCfg(1, 1, 0, 100, "nova"))
	mustSpawn(t, s, actorCfg(2, 2, 2, 100))

	// nova commits inside the request; despawn clears the burn before any step publishes it
	require.NoError(t, s.RequestCast(1, "nova"))
	require.NoError(t, s.Despawn(2))

	want := []journal.Event{
		{Kind: journal.KindEffect, Actor: 2, Effect: "burn", Stacks: 1, Reason: "added"},
		{Kind: journal.KindEffect, Actor: 2, Effect: "burn", Stacks: 1, Reason: "cleared"},
	}
	assert.Equal(t, want, rec.ofKind(journal.KindEffect))

	require.Len(t, changes, 2)
	assert.Equal(t, effect.ChangeAdded, changes[0].Kind)
	assert.Equal(t, effect.ChangeRemoved, changes[1].Kind)
	assert.Equal(t, effect.ReasonCleared, changes[1].Reason)
	_, published := s.Hub().State(2)
	assert.False(t, published)
}
