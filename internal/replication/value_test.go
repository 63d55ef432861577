package replication

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/udisondev/castcore/internal/game/effect"
)

func TestValue_SetNotifiesOnChangeOnly(t *testing.T) {
	v := NewValue[int32](100)

	type change struct{ old, new int32 }
	var got []change
	v.OnChange(func(old, new int32) { got = append(got, change{old, new}) })

	assert.True(t, v.Set(90))
	assert.False(t, v.Set(90), "equal value is not re-published")
	assert.True(t, v.Set(80))

	assert.Equal(t, []change{{100, 90}, {90, 80}}, got)
	assert.Equal(t, int32(80), v.Get())
}

func TestValueFunc_CopiesSlices(t *testing.T) {
	v := NewActorState(1).Effects

	src := []effect.Status{{ID: "burn", Stacks: 1}}
	require.True(t, v.Set(src))
	src[0].Stacks = 9

	got := v.Get()
	assert.Equal(t, int32(1), got[0].Stacks, "stored value is detached from the writer")
	got[0].Stacks = 7
	assert.Equal(t, int32(1), v.Get()[0].Stacks, "readers get a copy")

	assert.False(t, v.Set([]effect.Status{{ID: "burn", Stacks: 1}}))
}

func TestActorState_ApplyRoundTrip(t *testing.T) {
	st := NewActorState(5)
	snap := Snapshot{
		Tick:      3,
		Actor:     5,
		Alive:     true,
		HP:        70,
		MaxHP:     100,
		Energy:    20,
		MaxEnergy: 50,
		Selected:  "bolt",
		CastState: "committing",
		CastTimer: 400 * time.Millisecond,
		Cooldowns: map[string]time.Duration{"bolt": 2 * time.Second},
		Effects:   []effect.Status{{ID: "guard", Stacks: 1, Remaining: time.Second}},
	}

	var hpChanges int
	st.HP.OnChange(func(_, _ int32) { hpChanges++ })

	st.Apply(snap)
	st.Apply(snap)

	assert.Equal(t, snap, st.Snapshot())
	assert.Equal(t, 1, hpChanges)
}

func TestHub_CreatesMirrorsOnce(t *testing.T) {
	h := NewHub()
	var created []uint32
	h.OnActor(func(s *ActorState) { created = append(created, s.ID()) })

	h.Apply(Snapshot{Actor: 2, HP: 10})
	h.Apply(Snapshot{Actor: 1, HP: 5})
	h.Apply(Snapshot{Actor: 2, HP: 8})

	assert.Equal(t, []uint32{2, 1}, created)
	assert.Equal(t, []uint32{1, 2}, h.IDs())

	st, ok := h.State(2)
	require.True(t, ok)
	assert.Equal(t, int32(8), st.HP.Get())

	h.Remove(2)
	_, ok = h.State(2)
	assert.False(t, ok)
}

func TestValue_ConcurrentReaders(t *testing.T) {
	v := NewValue[int32](0)
	var wg sync.WaitGroup
	for range 4 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 1000 {
				_ = v.Get()
			}
		}()
	}
	for i := range int32(1000) {
		v.Set(i)
	}
	wg.Wait()
	assert.Equal(t, int32(999), v.Get())
}
