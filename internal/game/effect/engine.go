package effect

import (
	"log/slog"
	"math"
	"slices"
	"time"

	"github.com/udisondev/castcore/internal/data"
)

// maxFallbackDepth bounds default-on-fail chains (a → b → c ...).
const maxFallbackDepth = 4

// Owner is the actor an Engine belongs to. Tick damage and healing go through it.
type Owner interface {
	ObjectID() uint32
	ReduceHP(amount int32) int32
	RestoreHP(amount int32) int32
}

// Definitions resolves effect ids to level-bound definitions.
type Definitions interface {
	GetEffect(id string, level int32) (*data.EffectDefinition, error)
}

// Outcome reports what Apply did.
type Outcome int8

const (
	OutcomeCreated   Outcome = iota // a new instance was added
	OutcomeRefreshed                // an instance with the same id was refreshed
	OutcomeFallback                 // prerequisite missing, default-on-fail applied instead
	OutcomeRejected                 // prerequisite missing and no fallback
)

func (o Outcome) String() string {
	switch o {
	case OutcomeCreated:
		return "created"
	case OutcomeRefreshed:
		return "refreshed"
	case OutcomeFallback:
		return "fallback"
	default:
		return "rejected"
	}
}

// ChangeKind classifies a change notification.
type ChangeKind int8

const (
	ChangeAdded ChangeKind = iota
	ChangeRefreshed
	ChangeRemoved
)

func (k ChangeKind) String() string {
	switch k {
	case ChangeAdded:
		return "added"
	case ChangeRefreshed:
		return "refreshed"
	case ChangeRemoved:
		return "removed"
	default:
		return "unknown"
	}
}

// RemoveReason says why an instance left the engine.
type RemoveReason int8

const (
	ReasonNone RemoveReason = iota
	ReasonExpired
	ReasonConsumed
	ReasonDepleted
	ReasonRemoved
	ReasonCleared
)

func (r RemoveReason) String() string {
	switch r {
	case ReasonExpired:
		return "expired"
	case ReasonConsumed:
		return "consumed"
	case ReasonDepleted:
		return "depleted"
	case ReasonRemoved:
		return "removed"
	case ReasonCleared:
		return "cleared"
	default:
		return "none"
	}
}

// Change is reported once per successful apply, refresh or removal.
type Change struct {
	Owner    uint32
	Kind     ChangeKind
	Reason   RemoveReason
	Status   Status
	Previous int32 // stack count before a refresh
}

// Option configures an Engine.
type Option func(*Engine)

// WithBonusInt injects the flat bonus hook applied to integer properties.
func WithBonusInt(fn data.BonusIntFunc) Option {
	return func(e *Engine) { e.bonus = fn }
}

// WithObserver registers the change callback.
func WithObserver(fn func(Change)) Option {
	return func(e *Engine) { e.observer = fn }
}

// WithLogger sets the logger (slog.Default otherwise).
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// WithViolationHandler sets the callback for invariant violations.
// The engine always logs them; the handler lets callers forward them to telemetry.
func WithViolationHandler(fn func(msg string, args ...any)) Option {
	return func(e *Engine) { e.violation = fn }
}

// Engine tracks the active effects of one actor: stacking, refresh, expiry,
// periodic ticks, aggregation and the damage pipeline.
//
// Not safe for concurrent use. The authoritative simulation goroutine is the
// only writer; observers read replicated snapshots instead.
type Engine struct {
	owner Owner
	defs  Definitions
	bonus data.BonusIntFunc

	instances []*Instance
	seq       uint64

	castBlocked bool
	moveBlocked bool

	observer  func(Change)
	violation func(msg string, args ...any)
	logger    *slog.Logger
}

// NewEngine creates an empty Engine for owner.
func NewEngine(owner Owner, defs Definitions, opts ...Option) *Engine {
	e := &Engine{
		owner:     owner,
		defs:      defs,
		instances: make([]*Instance, 0, 8),
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// SetObserver replaces the change callback.
func (e *Engine) SetObserver(fn func(Change)) {
	e.observer = fn
}

// Apply applies spec at level (the applying ability's level).
//
// Rules:
//   - prerequisite ("consumes") missing → default-on-fail is applied instead, original is never created
//   - prerequisite present → it is removed and its stacks seed the new instance (capped)
//   - same id present → refresh: stacks += delta (capped, 1 when MaxStacks ≤ 1), duration reset to the definition
//   - otherwise a new instance with overrides applied
//
// The only error is an unknown effect id, which is a data error.
func (e *Engine) Apply(spec data.EffectSpec, level int32) (Outcome, error) {
	return e.apply(spec, level, 0)
}

func (e *Engine) apply(spec data.EffectSpec, level int32, depth int) (Outcome, error) {
	def, err := e.defs.GetEffect(spec.EffectID, level)
	if err != nil {
		return OutcomeRejected, err
	}

	var transfer int32
	if def.Consumes != "" && def.Consumes != def.ID {
		pre := e.find(def.Consumes)
		if pre == nil {
			if def.DefaultOnFail == "" {
				e.logger.Debug("effect prerequisite missing",
					"owner", e.owner.ObjectID(),
					"effect", def.ID,
					"requires", def.Consumes)
				return OutcomeRejected, nil
			}
			if depth >= maxFallbackDepth {
				e.report("effect fallback chain too deep", "effect", def.ID, "depth", depth)
				return OutcomeRejected, nil
			}
			if _, err := e.apply(data.EffectSpec{EffectID: def.DefaultOnFail}, level, depth+1); err != nil {
				return OutcomeRejected, err
			}
			return OutcomeFallback, nil
		}
		transfer = pre.stacks
		e.remove(pre, ReasonConsumed)
	}

	if existing := e.find(def.ID); existing != nil {
		delta := spec.Stacks
		if transfer > 0 {
			delta = transfer
		}
		if delta <= 0 {
			delta = 1
		}
		e.refresh(existing, delta)
		return OutcomeRefreshed, nil
	}

	e.create(def, spec, transfer)
	return OutcomeCreated, nil
}

func (e *Engine) create(def *data.EffectDefinition, spec data.EffectSpec, transfer int32) {
	e.seq++
	inst := &Instance{def: def, seq: e.seq}

	stacks := spec.Stacks
	if transfer > 0 {
		stacks = transfer
	}
	if stacks <= 0 {
		stacks = 1
	}
	inst.stacks = min(stacks, def.MaxStacks())

	dur := def.Duration()
	if spec.Duration > 0 {
		dur = spec.Duration
	}
	inst.infinite = dur <= 0
	inst.remaining = dur
	inst.tickTimer = def.TickInterval()

	if spec.SpeedBonus != 0 {
		inst.speedBonus = spec.SpeedBonus
		inst.speedOverride = true
	}
	inst.shield = int32(def.Scaled(data.PropShield, inst.stacks, e.bonus))

	e.instances = append(e.instances, inst)
	e.recompute()

	e.logger.Debug("effect applied",
		"owner", e.owner.ObjectID(),
		"effect", def.ID,
		"level", def.Level,
		"stacks", inst.stacks,
		"duration", dur)

	e.notify(Change{Kind: ChangeAdded, Status: inst.status()})
}

func (e *Engine) refresh(inst *Instance, delta int32) {
	prev := inst.stacks
	maxStacks := inst.def.MaxStacks()
	if maxStacks <= 1 {
		inst.stacks = 1
	} else {
		e.setStacks(inst, inst.stacks+delta)
	}

	dur := inst.def.Duration()
	inst.infinite = dur <= 0
	inst.remaining = dur

	if pool := int32(inst.def.Scaled(data.PropShield, inst.stacks, e.bonus)); pool > inst.shield {
		inst.shield = pool
	}

	e.recompute()

	e.logger.Debug("effect refreshed",
		"owner", e.owner.ObjectID(),
		"effect", inst.def.ID,
		"stacks", inst.stacks,
		"previous", prev)

	e.notify(Change{Kind: ChangeRefreshed, Status: inst.status(), Previous: prev})
}

// setStacks clamps n into 1..MaxStacks. Values below 1 are upstream bugs.
func (e *Engine) setStacks(inst *Instance, n int32) {
	maxStacks := inst.def.MaxStacks()
	if n < 1 {
		e.report("effect stack count below 1", "effect", inst.def.ID, "stacks", n)
		n = 1
	}
	inst.stacks = min(n, maxStacks)
}

// Remove removes the instance with id. Returns false if absent.
func (e *Engine) Remove(id string) bool {
	inst := e.find(id)
	if inst == nil {
		return false
	}
	e.remove(inst, ReasonRemoved)
	return true
}

// Clear removes every instance (death, despawn).
func (e *Engine) Clear() {
	for len(e.instances) > 0 {
		e.remove(e.instances[0], ReasonCleared)
	}
}

func (e *Engine) remove(inst *Instance, reason RemoveReason) {
	idx := slices.Index(e.instances, inst)
	if idx < 0 {
		return
	}
	e.instances = slices.Delete(e.instances, idx, idx+1)
	e.recompute()

	e.logger.Debug("effect removed",
		"owner", e.owner.ObjectID(),
		"effect", inst.def.ID,
		"reason", reason.String())

	e.notify(Change{Kind: ChangeRemoved, Reason: reason, Status: inst.status()})
}

// Update advances timers by dt: expires finite instances, then runs periodic ticks.
func (e *Engine) Update(dt time.Duration) {
	if dt < 0 {
		e.report("negative effect update delta", "dt", dt)
		return
	}
	if len(e.instances) == 0 {
		return
	}

	var expired []*Instance
	for _, inst := range e.instances {
		if inst.infinite {
			continue
		}
		inst.remaining -= dt
		if inst.remaining <= 0 {
			expired = append(expired, inst)
		}
	}
	for _, inst := range expired {
		e.remove(inst, ReasonExpired)
	}

	for _, inst := range slices.Clone(e.instances) {
		interval := inst.def.TickInterval()
		if interval <= 0 {
			continue
		}
		inst.tickTimer -= dt
		// fires at 0 too, so dt == interval ticks every update
		if inst.tickTimer > 0 {
			continue
		}
		inst.tickTimer = interval
		e.tick(inst)
	}
}

func (e *Engine) tick(inst *Instance) {
	stacks := inst.stacks
	if dmg := int32(inst.def.LevelScaled(data.PropTickDamage)) * stacks; dmg > 0 {
		e.owner.ReduceHP(dmg)
	}
	if heal := int32(inst.def.LevelScaled(data.PropTickHeal)) * stacks; heal > 0 {
		e.owner.RestoreHP(heal)
	}
	if shield := int32(inst.def.LevelScaled(data.PropTickShield)) * stacks; shield > 0 {
		inst.shield += shield
	}
}

// Aggregate sums the scaled value of p over all active instances.
func (e *Engine) Aggregate(p data.Property) float64 {
	var sum float64
	for _, inst := range e.instances {
		sum += inst.scaled(p, e.bonus)
	}
	return sum
}

// multiplier returns Aggregate(p), or 1 when no active instance defines p.
func (e *Engine) multiplier(p data.Property) float64 {
	for _, inst := range e.instances {
		if inst.defines(p) {
			return e.Aggregate(p)
		}
	}
	return 1
}

// SpeedMultiplier returns the locomotion speed factor 1+SpeedBonus, floored at 0.
func (e *Engine) SpeedMultiplier() float64 {
	return math.Max(0, 1+e.Aggregate(data.PropSpeedBonus))
}

// IsCastBlocked reports whether any active effect blocks casting.
func (e *Engine) IsCastBlocked() bool { return e.castBlocked }

// IsMovementBlocked reports whether any active effect blocks movement.
func (e *Engine) IsMovementBlocked() bool { return e.moveBlocked }

// Has reports whether an instance with id is active.
func (e *Engine) Has(id string) bool { return e.find(id) != nil }

// Instance returns the active instance with id.
func (e *Engine) Instance(id string) (*Instance, bool) {
	inst := e.find(id)
	return inst, inst != nil
}

// Stacks returns the stack count of id, 0 when absent.
func (e *Engine) Stacks(id string) int32 {
	if inst := e.find(id); inst != nil {
		return inst.stacks
	}
	return 0
}

// Len returns the number of active instances.
func (e *Engine) Len() int { return len(e.instances) }

// Snapshot returns the active effects in insertion order.
func (e *Engine) Snapshot() []Status {
	out := make([]Status, 0, len(e.instances))
	for _, inst := range e.instances {
		out = append(out, inst.status())
	}
	return out
}

func (e *Engine) find(id string) *Instance {
	for _, inst := range e.instances {
		if inst.def.ID == id {
			return inst
		}
	}
	return nil
}

// recompute rebuilds the blocking flags. Called on every add/remove.
func (e *Engine) recompute() {
	e.castBlocked, e.moveBlocked = false, false
	for _, inst := range e.instances {
		e.castBlocked = e.castBlocked || inst.def.BlocksCast
		e.moveBlocked = e.moveBlocked || inst.def.BlocksMove
	}
}

func (e *Engine) notify(c Change) {
	if e.observer == nil {
		return
	}
	c.Owner = e.owner.ObjectID()
	e.observer(c)
}

func (e *Engine) report(msg string, args ...any) {
	args = append([]any{"owner", e.owner.ObjectID()}, args...)
	e.logger.Error(msg, args...)
	if e.violation != nil {
		e.violation(msg, args...)
	}
}
