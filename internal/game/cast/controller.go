package cast

import (
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"math"
	"time"

	"github.com/udisondev/castcore/internal/data"
	"github.com/udisondev/castcore/internal/model"
)

// Request errors. Returned wrapped; compare with errors.Is.
// A failed request never mutates state.
var (
	ErrNotReady             = errors.New("ability not ready")
	ErrBusy                 = errors.New("cast in progress")
	ErrInvalidAbility       = errors.New("invalid ability")
	ErrInsufficientResource = errors.New("insufficient resource")
	ErrNotSelected          = errors.New("no ability selected")
)

// minSpeedFactor bounds how far CastSpeed/AttackSpeed debuffs can stretch a cast.
const minSpeedFactor = 0.1

// State is the cast lifecycle state.
type State int8

const (
	StateIdle       State = iota
	StateSelected         // ability chosen, waiting for Confirm
	StateCommitting       // cast timer running
	StateResolved         // ended this tick, back to Idle on the next one
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateSelected:
		return "selected"
	case StateCommitting:
		return "committing"
	default:
		return "resolved"
	}
}

// Result is the outcome of a resolved cast.
type Result int8

const (
	ResultNone Result = iota
	ResultSuccess
	ResultCancelled
	ResultFailed
)

func (r Result) String() string {
	switch r {
	case ResultSuccess:
		return "success"
	case ResultCancelled:
		return "cancelled"
	case ResultFailed:
		return "failed"
	default:
		return "none"
	}
}

// Abilities resolves ability definitions.
type Abilities interface {
	GetAbility(id string, level int32) (*data.AbilityDefinition, error)
}

// Activator resolves a committed cast against the world. Called exactly once per commit.
type Activator interface {
	Activate(caster *model.Actor, def *data.AbilityDefinition, target model.Target)
}

// Event describes a cast notification.
type Event struct {
	Actor       uint32
	Ability     string
	Level       int32
	Duration    time.Duration // scaled cast time
	Result      Result
	AfterCommit bool  // cancellation happened after the commit point
	Err         error // set for ResultFailed
}

// Listener receives animation-facing notifications.
type Listener interface {
	CastStarted(Event)
	CastEnded(Event)
}

// Option configures a Controller.
type Option func(*Controller)

// WithListener sets the cast listener.
func WithListener(l Listener) Option {
	return func(c *Controller) { c.listener = l }
}

// WithLogger sets the logger (slog.Default otherwise).
func WithLogger(l *slog.Logger) Option {
	return func(c *Controller) { c.logger = l }
}

// WithViolationHandler sets the callback for invariant violations.
func WithViolationHandler(fn func(msg string, args ...any)) Option {
	return func(c *Controller) { c.violation = fn }
}

// Controller is the cast state machine of one actor:
//
//	Idle → Selected → Committing → Resolved(Success|Cancelled|Failed) → Idle
//
// Cooldowns live in a per-ability table and never block other abilities.
// Energy is spent and the Activator invoked exactly once, at the commit point.
// Movement before the commit point cancels with nothing spent; movement after it
// only ends the animation tail.
//
// Not safe for concurrent use. The simulation goroutine is the only writer.
type Controller struct {
	actor     *model.Actor
	abilities Abilities
	activator Activator
	listener  Listener
	logger    *slog.Logger
	violation func(msg string, args ...any)

	state       State
	result      Result
	afterCommit bool

	selected   *data.AbilityDefinition
	target     model.Target
	lastTarget model.Target
	hasTarget  bool

	duration  time.Duration // scaled cast time
	timer     time.Duration // remaining cast time
	threshold time.Duration // commit when timer ≤ threshold
	committed bool
	moved     bool
	moveLock  bool
	// suppressRepeat holds auto-repeat after the default cast was cancelled,
	// until the next explicit request.
	suppressRepeat bool

	cooldowns map[string]time.Duration
}

// NewController creates an idle Controller for actor.
func NewController(actor *model.Actor, abilities Abilities, activator Activator, opts ...Option) *Controller {
	c := &Controller{
		actor:     actor,
		abilities: abilities,
		activator: activator,
		logger:    slog.Default(),
		cooldowns: make(map[string]time.Duration),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// RequestCast selects abilityID. Checks, in order: the actor knows the ability
// (ErrInvalidAbility), no cast is committing (ErrBusy), cooldown elapsed and not
// cast-blocked (ErrNotReady), enough energy (ErrInsufficientResource).
func (c *Controller) RequestCast(abilityID string) error {
	def, err := c.validate(abilityID)
	if err != nil {
		return err
	}

	if c.state == StateResolved {
		c.finish()
	}
	c.selected = def
	c.state = StateSelected
	c.suppressRepeat = false

	c.logger.Debug("ability selected",
		"actor", c.actor.ObjectID(),
		"ability", def.ID,
		"level", def.Level)
	return nil
}

func (c *Controller) validate(abilityID string) (*data.AbilityDefinition, error) {
	level, known := c.actor.AbilityLevel(abilityID)
	if !known {
		return nil, fmt.Errorf("ability %q not known by actor %d: %w", abilityID, c.actor.ObjectID(), ErrInvalidAbility)
	}
	def, err := c.abilities.GetAbility(abilityID, level)
	if err != nil {
		return nil, fmt.Errorf("ability %q: %w: %w", abilityID, ErrInvalidAbility, err)
	}
	if c.state == StateCommitting {
		return nil, fmt.Errorf("ability %q: %w", abilityID, ErrBusy)
	}
	if !c.actor.IsAlive() || c.cooldowns[abilityID] > 0 || c.actor.Effects().IsCastBlocked() {
		return nil, fmt.Errorf("ability %q: %w", abilityID, ErrNotReady)
	}
	if c.actor.Energy() < def.Cost {
		return nil, fmt.Errorf("ability %q needs %d energy, have %d: %w",
			abilityID, def.Cost, c.actor.Energy(), ErrInsufficientResource)
	}
	return def, nil
}

// Confirm starts the cast timer for the selected ability against target.
// The timer is the animation duration divided by 1 + CastSpeed (AttackSpeed for
// auto attacks). A cast whose commit point is immediate commits here.
func (c *Controller) Confirm(target model.Target) error {
	if c.state != StateSelected || c.selected == nil {
		return ErrNotSelected
	}
	def := c.selected
	if !c.actor.IsAlive() || c.cooldowns[def.ID] > 0 || c.actor.Effects().IsCastBlocked() {
		return fmt.Errorf("ability %q: %w", def.ID, ErrNotReady)
	}

	c.target = target
	c.lastTarget = target
	c.hasTarget = true
	c.duration = c.scaledDuration(def)
	c.timer = c.duration
	c.threshold = time.Duration(float64(c.duration) * (1 - def.CastAt))
	c.committed = false
	c.moved = false
	c.result = ResultNone
	c.afterCommit = false
	c.moveLock = def.LocksMovement
	c.state = StateCommitting

	c.logger.Debug("cast started",
		"actor", c.actor.ObjectID(),
		"ability", def.ID,
		"duration", c.duration)

	if c.listener != nil {
		c.listener.CastStarted(c.event())
	}

	if c.timer <= c.threshold {
		if !c.commit() {
			return fmt.Errorf("ability %q: %w", def.ID, ErrInsufficientResource)
		}
		if c.timer <= 0 {
			c.resolve(ResultSuccess, nil)
		}
	}
	return nil
}

func (c *Controller) scaledDuration(def *data.AbilityDefinition) time.Duration {
	prop := data.PropCastSpeed
	if def.AutoAttack {
		prop = data.PropAttackSpeed
	}
	factor := 1 + c.actor.Effects().Aggregate(prop)
	if factor < minSpeedFactor {
		factor = minSpeedFactor
	}
	return max(time.Duration(math.Round(float64(def.Animation)/factor)), 0)
}

// NotifyMoved marks movement for this tick. Evaluated once by Tick; idempotent.
func (c *Controller) NotifyMoved() {
	c.moved = true
}

// Cancel ends the current cast from outside (death, despawn) under the same
// commit-point rule as movement. Returns false when nothing was active.
func (c *Controller) Cancel() bool {
	c.holdRepeat()
	switch c.state {
	case StateSelected:
		c.selected = nil
		c.state = StateIdle
		return true
	case StateCommitting:
		c.resolve(ResultCancelled, nil)
		return true
	default:
		return false
	}
}

// Tick advances the controller by dt. Cooldowns decrement in every state.
func (c *Controller) Tick(dt time.Duration) {
	c.tickCooldowns(dt)

	switch c.state {
	case StateResolved:
		c.finish()
		c.autoRepeat()
	case StateIdle:
		c.autoRepeat()
	case StateCommitting:
		c.advance(dt)
	case StateSelected:
	}
	c.moved = false
}

func (c *Controller) advance(dt time.Duration) {
	if c.moved || (!c.committed && (c.actor.Effects().IsCastBlocked() || !c.actor.IsAlive())) {
		c.holdRepeat()
		c.resolve(ResultCancelled, nil)
		return
	}

	c.timer = max(c.timer-dt, 0)
	if !c.committed && c.timer <= c.threshold {
		if !c.commit() {
			return
		}
	}
	if c.committed && c.timer <= 0 {
		c.resolve(ResultSuccess, nil)
	}
}

// commit spends energy, invokes the activator once and starts the cooldown.
// Reports false when the cast failed on energy.
func (c *Controller) commit() bool {
	def := c.selected
	if !c.actor.SpendEnergy(def.Cost) {
		c.resolve(ResultFailed, ErrInsufficientResource)
		return false
	}
	c.committed = true
	c.cooldowns[def.ID] = def.Cooldown

	c.logger.Debug("cast committed",
		"actor", c.actor.ObjectID(),
		"ability", def.ID,
		"cost", def.Cost,
		"cooldown", def.Cooldown)

	if c.activator != nil {
		c.activator.Activate(c.actor, def, c.target)
	}
	return true
}

func (c *Controller) resolve(res Result, err error) {
	c.afterCommit = c.committed && res == ResultCancelled
	c.result = res
	c.state = StateResolved
	c.moveLock = false

	ev := c.event()
	ev.Err = err
	c.logger.Debug("cast ended",
		"actor", c.actor.ObjectID(),
		"ability", ev.Ability,
		"result", res.String(),
		"afterCommit", c.afterCommit)

	if c.listener != nil {
		c.listener.CastEnded(ev)
	}
}

func (c *Controller) finish() {
	c.state = StateIdle
	c.selected = nil
	c.timer = 0
	c.duration = 0
	c.committed = false
}

// holdRepeat suppresses auto-repeat when the cast being cancelled is the default.
func (c *Controller) holdRepeat() {
	if c.selected != nil && c.selected.ID == c.actor.DefaultAbility() {
		c.suppressRepeat = true
	}
}

// autoRepeat selects and confirms the default ability whenever the controller
// is idle and CanCast holds. The target is the last confirmed one (the
// activator still resolves Self/FirstAlly/FirstEnemy/None by the ability's
// mode), or the actor's own position before any cast.
func (c *Controller) autoRepeat() {
	id := c.actor.DefaultAbility()
	if c.suppressRepeat || id == "" || !c.actor.IsAlive() || !c.CanCast(id) {
		return
	}
	target := c.lastTarget
	if !c.hasTarget {
		target = model.PointTarget(c.actor.Position())
	}
	if err := c.RequestCast(id); err != nil {
		c.logger.Debug("auto repeat skipped", "actor", c.actor.ObjectID(), "ability", id, "error", err)
		return
	}
	if err := c.Confirm(target); err != nil {
		c.logger.Debug("auto repeat skipped", "actor", c.actor.ObjectID(), "ability", id, "error", err)
	}
}

func (c *Controller) tickCooldowns(dt time.Duration) {
	for id, cd := range c.cooldowns {
		if cd < 0 {
			c.report("negative cooldown", "ability", id, "cooldown", cd)
			cd = 0
		}
		cd -= dt
		if cd <= 0 {
			delete(c.cooldowns, id)
			continue
		}
		c.cooldowns[id] = cd
	}
}

// CanCast reports whether abilityID is known, off cooldown and not cast-blocked.
func (c *Controller) CanCast(abilityID string) bool {
	if _, known := c.actor.AbilityLevel(abilityID); !known {
		return false
	}
	return c.cooldowns[abilityID] <= 0 && !c.actor.Effects().IsCastBlocked()
}

// SetCooldown overrides the remaining cooldown of abilityID (replication, tests).
func (c *Controller) SetCooldown(abilityID string, d time.Duration) {
	if d < 0 {
		c.report("negative cooldown", "ability", abilityID, "cooldown", d)
		d = 0
	}
	if d == 0 {
		delete(c.cooldowns, abilityID)
		return
	}
	c.cooldowns[abilityID] = d
}

// Cooldown returns the remaining cooldown of abilityID.
func (c *Controller) Cooldown(abilityID string) time.Duration {
	return c.cooldowns[abilityID]
}

// Cooldowns returns a copy of the cooldown table (only abilities still cooling down).
func (c *Controller) Cooldowns() map[string]time.Duration {
	return maps.Clone(c.cooldowns)
}

// State returns the lifecycle state.
func (c *Controller) State() State { return c.state }

// Result returns the outcome of the last resolved cast.
func (c *Controller) Result() Result { return c.result }

// Selected returns the selected ability id ("" when idle).
func (c *Controller) Selected() string {
	if c.selected == nil {
		return ""
	}
	return c.selected.ID
}

// Timer returns the remaining cast time.
func (c *Controller) Timer() time.Duration { return c.timer }

// Committed reports whether the current cast passed its commit point.
func (c *Controller) Committed() bool { return c.committed }

// IsMovementLocked reports whether a committing cast holds the movement lock.
func (c *Controller) IsMovementLocked() bool { return c.moveLock }

func (c *Controller) event() Event {
	ev := Event{
		Actor:       c.actor.ObjectID(),
		Duration:    c.duration,
		Result:      c.result,
		AfterCommit: c.afterCommit,
	}
	if c.selected != nil {
		ev.Ability = c.selected.ID
		ev.Level = c.selected.Level
	}
	return ev
}

func (c *Controller) report(msg string, args ...any) {
	args = append([]any{"actor", c.actor.ObjectID()}, args...)
	c.logger.Error(msg, args...)
	if c.violation != nil {
		c.violation(msg, args...)
	}
}
