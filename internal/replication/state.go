package replication

import (
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/udisondev/castcore/internal/game/effect"
	"github.com/udisondev/castcore/internal/model"
)

// Snapshot is the public state of one actor at the end of a tick.
type Snapshot struct {
	Tick      uint64
	Actor     uint32
	Alive     bool
	HP        int32
	MaxHP     int32
	Energy    int32
	MaxEnergy int32
	Position  model.Point

	Selected  string
	CastState string
	CastTimer time.Duration
	Cooldowns map[string]time.Duration
	Effects   []effect.Status // insertion order
}

// ActorState mirrors one actor. The authority fills it from the live objects,
// observers from received snapshots; readers never see the live objects.
type ActorState struct {
	id uint32

	Alive     *Value[bool]
	HP        *Value[int32]
	Energy    *Value[int32]
	Position  *Value[model.Point]
	Selected  *Value[string]
	CastState *Value[string]
	CastTimer *Value[time.Duration]
	Cooldowns *Value[map[string]time.Duration]
	Effects   *Value[[]effect.Status]

	mu        sync.RWMutex
	maxHP     int32
	maxEnergy int32
	tick      uint64
}

// NewActorState creates an empty mirror for actor id.
func NewActorState(id uint32) *ActorState {
	return &ActorState{
		id:        id,
		Alive:     NewValue(false),
		HP:        NewValue[int32](0),
		Energy:    NewValue[int32](0),
		Position:  NewValue(model.Point{}),
		Selected:  NewValue(""),
		CastState: NewValue(""),
		CastTimer: NewValue[time.Duration](0),
		Cooldowns: NewValueFunc(map[string]time.Duration{}, maps.Equal[map[string]time.Duration, map[string]time.Duration], cloneCooldowns),
		Effects:   NewValueFunc([]effect.Status(nil), slices.Equal[[]effect.Status], slices.Clone[[]effect.Status]),
	}
}

func cloneCooldowns(m map[string]time.Duration) map[string]time.Duration {
	out := make(map[string]time.Duration, len(m))
	maps.Copy(out, m)
	return out
}

// ID returns the mirrored actor id.
func (s *ActorState) ID() uint32 { return s.id }

// Apply writes snap into the mirror. Only changed fields notify subscribers.
func (s *ActorState) Apply(snap Snapshot) {
	s.mu.Lock()
	s.maxHP = snap.MaxHP
	s.maxEnergy = snap.MaxEnergy
	s.tick = snap.Tick
	s.mu.Unlock()

	s.Alive.Set(snap.Alive)
	s.HP.Set(snap.HP)
	s.Energy.Set(snap.Energy)
	s.Position.Set(snap.Position)
	s.Selected.Set(snap.Selected)
	s.CastState.Set(snap.CastState)
	s.CastTimer.Set(snap.CastTimer)
	cd := snap.Cooldowns
	if cd == nil {
		cd = map[string]time.Duration{}
	}
	s.Cooldowns.Set(cd)
	s.Effects.Set(snap.Effects)
}

// Snapshot reads the mirror back into a Snapshot.
func (s *ActorState) Snapshot() Snapshot {
	s.mu.RLock()
	maxHP, maxEnergy, tick := s.maxHP, s.maxEnergy, s.tick
	s.mu.RUnlock()

	return Snapshot{
		Tick:      tick,
		Actor:     s.id,
		Alive:     s.Alive.Get(),
		HP:        s.HP.Get(),
		MaxHP:     maxHP,
		Energy:    s.Energy.Get(),
		MaxEnergy: maxEnergy,
		Position:  s.Position.Get(),
		Selected:  s.Selected.Get(),
		CastState: s.CastState.Get(),
		CastTimer: s.CastTimer.Get(),
		Cooldowns: s.Cooldowns.Get(),
		Effects:   s.Effects.Get(),
	}
}

// Hub holds the mirrors of every known actor. Safe for concurrent use.
type Hub struct {
	mu     sync.RWMutex
	states map[uint32]*ActorState
	onNew  []func(*ActorState)
}

// NewHub creates an empty Hub.
func NewHub() *Hub {
	return &Hub{states: make(map[uint32]*ActorState)}
}

// OnActor registers fn, called once for every mirror the Hub creates.
// Register change callbacks on the state inside fn.
func (h *Hub) OnActor(fn func(*ActorState)) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.onNew = append(h.onNew, fn)
}

// Apply routes snap to its actor mirror, creating it on first sight.
func (h *Hub) Apply(snap Snapshot) {
	h.mu.Lock()
	st, ok := h.states[snap.Actor]
	var hooks []func(*ActorState)
	if !ok {
		st = NewActorState(snap.Actor)
		h.states[snap.Actor] = st
		hooks = slices.Clone(h.onNew)
	}
	h.mu.Unlock()

	for _, fn := range hooks {
		fn(st)
	}
	st.Apply(snap)
}

// State returns the mirror of actor id.
func (h *Hub) State(id uint32) (*ActorState, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	st, ok := h.states[id]
	return st, ok
}

// Remove drops the mirror of actor id.
func (h *Hub) Remove(id uint32) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.states, id)
}

// IDs returns the mirrored actor ids, sorted.
func (h *Hub) IDs() []uint32 {
	h.mu.RLock()
	defer h.mu.RUnlock()
	ids := make([]uint32, 0, len(h.states))
	for id := range h.states {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}
