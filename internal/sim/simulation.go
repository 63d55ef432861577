// Package sim runs the authoritative combat tick: it owns every actor's
// effect engine and cast controller, the spell resolver and the world
// registry, and publishes replicated snapshots after each step.
package sim

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/udisondev/castcore/internal/data"
	"github.com/udisondev/castcore/internal/game/cast"
	"github.com/udisondev/castcore/internal/game/effect"
	"github.com/udisondev/castcore/internal/game/spell"
	"github.com/udisondev/castcore/internal/journal"
	"github.com/udisondev/castcore/internal/model"
	"github.com/udisondev/castcore/internal/replication"
	"github.com/udisondev/castcore/internal/world"
)

var (
	// ErrNotAuthority is returned by mutating calls on an observer simulation.
	ErrNotAuthority = errors.New("simulation is not authoritative")
	// ErrUnknownActor is returned for actor ids not in the simulation.
	ErrUnknownActor = errors.New("unknown actor")
	// ErrActorDead is returned when a dead actor is asked to act.
	ErrActorDead = errors.New("actor is dead")
	// ErrMovementBlocked is returned by Move while effects or a cast hold the actor.
	ErrMovementBlocked = errors.New("movement blocked")
)

// Simulation is the single writer of combat state.
//
// Not safe for concurrent use: every method except Hub must be called from
// the goroutine that runs Step (or Run). Observers read replication.Hub.
type Simulation struct {
	catalog  *data.Catalog
	actors   *world.Registry
	ids      *world.IDAllocator
	resolver *spell.Resolver
	casters  map[uint32]*cast.Controller
	moves    map[uint32]model.Point
	dead     map[uint32]bool

	authority bool
	tick      uint64
	moveSpeed float64
	bonusInt  data.BonusIntFunc

	hub          *replication.Hub
	sink         func([]replication.Snapshot)
	journal      Recorder
	tracer       trace.Tracer
	span         trace.Span
	logger       *slog.Logger
	castListener cast.Listener
	onActivation func(spell.Result)
	onEffect     func(effect.Change)
	beforeStep   []func(tick uint64)

	ended int // activations ended during the current step
}

// New creates an empty simulation over catalog.
func New(catalog *data.Catalog, opts ...Option) *Simulation {
	s := &Simulation{
		catalog:   catalog,
		actors:    world.NewRegistry(),
		ids:       world.NewIDAllocator(),
		casters:   make(map[uint32]*cast.Controller),
		moves:     make(map[uint32]model.Point),
		dead:      make(map[uint32]bool),
		authority: true,
		moveSpeed: DefaultMoveSpeed,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.hub == nil {
		s.hub = replication.NewHub()
	}
	if s.tracer == nil {
		s.tracer = noop.NewTracerProvider().Tracer("")
	}
	s.span = trace.SpanFromContext(context.Background())
	s.resolver = spell.NewResolver(s.actors, catalog,
		spell.WithListener(s.activationEnded),
		spell.WithLogger(s.logger),
		spell.WithViolationHandler(s.violationHandler(0)),
	)
	return s
}

// IsAuthority reports whether the simulation may mutate state.
func (s *Simulation) IsAuthority() bool { return s.authority }

// Tick returns the number of completed steps.
func (s *Simulation) Tick() uint64 { return s.tick }

// Hub returns the replication hub. Safe for concurrent use.
func (s *Simulation) Hub() *replication.Hub { return s.hub }

// Spawn validates cfg against the catalog and adds a live actor with its own
// effect engine and cast controller. A zero cfg.ID gets an allocated id.
func (s *Simulation) Spawn(cfg model.ActorConfig) (*model.Actor, error) {
	if !s.authority {
		return nil, ErrNotAuthority
	}
	if cfg.ID == 0 {
		cfg.ID = s.ids.Next()
	} else if err := world.CheckFixed(cfg.ID); err != nil {
		return nil, fmt.Errorf("spawn actor %d: %w", cfg.ID, err)
	}
	for id, lvl := range cfg.Abilities {
		if !s.catalog.HasAbility(id) {
			return nil, fmt.Errorf("spawn actor %d: ability %q: %w", cfg.ID, id, data.ErrUnknownIdentifier)
		}
		if maxLvl := s.catalog.MaxLevel(id); lvl > maxLvl {
			return nil, fmt.Errorf("spawn actor %d: ability %q level %d exceeds max %d", cfg.ID, id, lvl, maxLvl)
		}
	}
	if cfg.DefaultAbility != "" {
		if _, ok := cfg.Abilities[cfg.DefaultAbility]; !ok {
			return nil, fmt.Errorf("spawn actor %d: default ability %q is not known", cfg.ID, cfg.DefaultAbility)
		}
	}

	effectOpts := []effect.Option{
		effect.WithLogger(s.logger),
		effect.WithViolationHandler(s.violationHandler(cfg.ID)),
		effect.WithObserver(s.effectChanged),
	}
	if s.bonusInt != nil {
		effectOpts = append(effectOpts, effect.WithBonusInt(s.bonusInt))
	}
	a := model.NewActor(cfg, s.catalog, effectOpts...)
	if err := s.actors.Add(a); err != nil {
		return nil, fmt.Errorf("spawn actor %d: %w", cfg.ID, err)
	}

	castOpts := []cast.Option{
		cast.WithLogger(s.logger),
		cast.WithViolationHandler(s.violationHandler(cfg.ID)),
	}
	if s.castListener != nil {
		castOpts = append(castOpts, cast.WithListener(s.castListener))
	}
	s.casters[cfg.ID] = cast.NewController(a, s.catalog, s.resolver, castOpts...)

	s.logger.Info("actor spawned",
		"actor", cfg.ID,
		"name", a.Name(),
		"team", a.Team(),
		"abilities", a.Abilities())
	return a, nil
}

// Despawn removes the actor, cancels its cast and ends its persistent activations.
func (s *Simulation) Despawn(id uint32) error {
	if !s.authority {
		return ErrNotAuthority
	}
	a, ok := s.actors.Remove(id)
	if !ok {
		return fmt.Errorf("despawn %d: %w", id, ErrUnknownActor)
	}
	if c := s.casters[id]; c != nil {
		c.Cancel()
	}
	a.Effects().Clear()
	s.resolver.EndCaster(id)

	delete(s.casters, id)
	delete(s.moves, id)
	delete(s.dead, id)
	s.hub.Remove(id)

	s.logger.Info("actor despawned", "actor", id)
	return nil
}

// Actor returns the live actor. Authority-side callers only.
func (s *Simulation) Actor(id uint32) (*model.Actor, bool) {
	return s.actors.Get(id)
}

// Actors returns the live actors in registration order.
func (s *Simulation) Actors() []*model.Actor {
	return s.actors.All()
}

// Caster returns the cast controller of actor id.
func (s *Simulation) Caster(id uint32) (*cast.Controller, bool) {
	c, ok := s.casters[id]
	return c, ok
}

// Active returns the number of running persistent activations.
func (s *Simulation) Active() int { return s.resolver.Active() }

func (s *Simulation) lookup(id uint32) (*model.Actor, *cast.Controller, error) {
	if !s.authority {
		return nil, nil, ErrNotAuthority
	}
	a, ok := s.actors.Get(id)
	if !ok {
		return nil, nil, fmt.Errorf("actor %d: %w", id, ErrUnknownActor)
	}
	return a, s.casters[id], nil
}

// Select runs the cast-request checks and selects abilityID without confirming.
// Returns cast.ErrInvalidAbility, ErrBusy, ErrNotReady or ErrInsufficientResource.
func (s *Simulation) Select(actorID uint32, abilityID string) error {
	_, c, err := s.lookup(actorID)
	if err != nil {
		return err
	}
	return c.RequestCast(abilityID)
}

// Confirm starts the selected cast against target.
func (s *Simulation) Confirm(actorID uint32, target model.Target) error {
	_, c, err := s.lookup(actorID)
	if err != nil {
		return err
	}
	return c.Confirm(target)
}

// RequestCast selects and confirms abilityID in one call, targeting the
// actor's own position. Targeting modes other than point resolve their
// target at the commit point.
func (s *Simulation) RequestCast(actorID uint32, abilityID string) error {
	a, _, err := s.lookup(actorID)
	if err != nil {
		return err
	}
	return s.requestCast(actorID, abilityID, model.PointTarget(a.Position()))
}

// RequestCastAt is RequestCast for point abilities.
func (s *Simulation) RequestCastAt(actorID uint32, abilityID string, point model.Point) error {
	return s.requestCast(actorID, abilityID, model.PointTarget(point))
}

// RequestCastOn is RequestCast aimed at another actor (its position at commit).
func (s *Simulation) RequestCastOn(actorID uint32, abilityID string, targetID uint32) error {
	return s.requestCast(actorID, abilityID, model.ActorTarget(targetID))
}

func (s *Simulation) requestCast(actorID uint32, abilityID string, target model.Target) error {
	_, c, err := s.lookup(actorID)
	if err != nil {
		return err
	}
	if err := c.RequestCast(abilityID); err != nil {
		return err
	}
	if err := c.Confirm(target); err != nil {
		if c.State() == cast.StateSelected {
			c.Cancel()
		}
		return err
	}
	return nil
}

// CancelCast cancels the actor's cast, respecting the commit point.
func (s *Simulation) CancelCast(actorID uint32) (bool, error) {
	_, c, err := s.lookup(actorID)
	if err != nil {
		return false, err
	}
	return c.Cancel(), nil
}

// CanCast reports whether the actor could start abilityID now.
func (s *Simulation) CanCast(actorID uint32, abilityID string) bool {
	c, ok := s.casters[actorID]
	return ok && c.CanCast(abilityID)
}

// Busy reports whether the actor has a cast in progress or awaiting cleanup.
func (s *Simulation) Busy(actorID uint32) bool {
	c, ok := s.casters[actorID]
	return ok && c.State() != cast.StateIdle
}

// IsCastBlocked reports whether effects prevent the actor from casting.
func (s *Simulation) IsCastBlocked(actorID uint32) bool {
	a, ok := s.actors.Get(actorID)
	return ok && a.Effects().IsCastBlocked()
}

// IsMovementBlocked reports whether effects or a movement-locking cast hold the actor.
func (s *Simulation) IsMovementBlocked(actorID uint32) bool {
	a, ok := s.actors.Get(actorID)
	if !ok {
		return false
	}
	return a.Effects().IsMovementBlocked() || s.casters[actorID].IsMovementLocked()
}

// Move sets the actor's destination. The actor walks toward it during Step at
// the base move speed scaled by its effects; any step taken notifies the cast
// controller of movement.
func (s *Simulation) Move(actorID uint32, dest model.Point) error {
	a, _, err := s.lookup(actorID)
	if err != nil {
		return err
	}
	if !a.IsAlive() {
		return fmt.Errorf("move actor %d: %w", actorID, ErrActorDead)
	}
	if s.IsMovementBlocked(actorID) {
		return fmt.Errorf("move actor %d: %w", actorID, ErrMovementBlocked)
	}
	s.moves[actorID] = dest
	return nil
}

// Stop clears the actor's destination.
func (s *Simulation) Stop(actorID uint32) {
	delete(s.moves, actorID)
}

// Destination returns the actor's pending destination.
func (s *Simulation) Destination(actorID uint32) (model.Point, bool) {
	p, ok := s.moves[actorID]
	return p, ok
}

// NearestEnemy returns the nearest live enemy of actorID.
func (s *Simulation) NearestEnemy(actorID uint32) (*model.Actor, bool) {
	a, ok := s.actors.Get(actorID)
	if !ok {
		return nil, false
	}
	return s.actors.Nearest(a.Position(), math.Inf(1), func(o *model.Actor) bool {
		return o.IsAlive() && a.IsEnemy(o)
	})
}

// Step advances the simulation by dt:
//
//  1. before-step hooks (input, AI)
//  2. effect updates for every live actor
//  3. locomotion
//  4. cast controller ticks
//  5. persistent activations (zones, projectiles, counters)
//  6. deaths
//  7. snapshot publication
func (s *Simulation) Step(ctx context.Context, dt time.Duration) error {
	if !s.authority {
		return ErrNotAuthority
	}
	if dt < 0 {
		return fmt.Errorf("step: negative dt %s", dt)
	}

	s.tick++
	s.ended = 0
	_, span := s.tracer.Start(ctx, "sim.Step", trace.WithAttributes(
		attribute.Int64("sim.tick", int64(s.tick)),
		attribute.Int("sim.actors", s.actors.Len()),
	))
	s.span = span
	defer func() {
		span.SetAttributes(
			attribute.Int("sim.activations.active", s.resolver.Active()),
			attribute.Int("sim.activations.ended", s.ended),
		)
		span.End()
		s.span = trace.SpanFromContext(context.Background())
	}()

	for _, fn := range s.beforeStep {
		fn(s.tick)
	}

	actors := s.actors.All()
	for _, a := range actors {
		if a.IsAlive() {
			a.Effects().Update(dt)
		}
	}

	s.advanceMovement(actors, dt)

	for _, a := range actors {
		if c, ok := s.casters[a.ObjectID()]; ok {
			c.Tick(dt)
		}
	}

	s.resolver.Update(dt)

	s.handleDeaths()
	s.publish()
	return nil
}

func (s *Simulation) advanceMovement(actors []*model.Actor, dt time.Duration) {
	for _, a := range actors {
		id := a.ObjectID()
		dest, ok := s.moves[id]
		if !ok {
			continue
		}
		if !a.IsAlive() {
			delete(s.moves, id)
			continue
		}
		if s.IsMovementBlocked(id) {
			continue
		}

		step := s.moveSpeed * a.Effects().SpeedMultiplier() * dt.Seconds()
		from := a.Position()
		to, arrived := from.MoveToward(dest, step)
		if to != from {
			a.MoveTo(to)
			s.casters[id].NotifyMoved()
		}
		if arrived {
			delete(s.moves, id)
		}
	}
}

func (s *Simulation) handleDeaths() {
	s.actors.ForEach(func(a *model.Actor) bool {
		id := a.ObjectID()
		if a.IsAlive() || s.dead[id] {
			return true
		}
		s.dead[id] = true

		a.Effects().Clear()
		if c := s.casters[id]; c != nil {
			c.Cancel()
		}
		s.resolver.EndCaster(id)
		delete(s.moves, id)

		s.logger.Info("actor died", "actor", id, "tick", s.tick)
		s.span.AddEvent("actor.died", trace.WithAttributes(attribute.Int64("actor", int64(id))))
		s.record(journal.Event{Kind: journal.KindDeath, Actor: id})
		return true
	})
}

// Snapshot builds the public state of actor id from the live objects.
func (s *Simulation) Snapshot(id uint32) (replication.Snapshot, bool) {
	a, ok := s.actors.Get(id)
	if !ok {
		return replication.Snapshot{}, false
	}
	return s.snapshot(a), true
}

func (s *Simulation) snapshot(a *model.Actor) replication.Snapshot {
	snap := replication.Snapshot{
		Tick:      s.tick,
		Actor:     a.ObjectID(),
		Alive:     a.IsAlive(),
		HP:        a.HP(),
		MaxHP:     a.MaxHP(),
		Energy:    a.Energy(),
		MaxEnergy: a.MaxEnergy(),
		Position:  a.Position(),
		Effects:   a.Effects().Snapshot(),
	}
	if c, ok := s.casters[a.ObjectID()]; ok {
		snap.Selected = c.Selected()
		snap.CastState = c.State().String()
		snap.CastTimer = c.Timer()
		snap.Cooldowns = c.Cooldowns()
	}
	return snap
}

func (s *Simulation) publish() {
	snaps := make([]replication.Snapshot, 0, s.actors.Len())
	s.actors.ForEach(func(a *model.Actor) bool {
		snaps = append(snaps, s.snapshot(a))
		return true
	})
	for _, snap := range snaps {
		s.hub.Apply(snap)
	}
	if s.sink != nil {
		s.sink(snaps)
	}
}

// ApplySnapshots feeds snapshots received from the authority into the hub of
// an observer simulation. Observers never recompute combat state.
func (s *Simulation) ApplySnapshots(snaps []replication.Snapshot) error {
	if s.authority {
		return fmt.Errorf("apply snapshots: authoritative simulation publishes its own state")
	}
	for _, snap := range snaps {
		s.hub.Apply(snap)
	}
	return nil
}

func (s *Simulation) activationEnded(res spell.Result) {
	s.ended++
	s.span.AddEvent("activation.ended", trace.WithAttributes(
		attribute.Int64("caster", int64(res.Caster)),
		attribute.String("ability", res.Ability),
		attribute.String("variant", res.Variant.String()),
		attribute.Int("hits", res.Hits),
		attribute.String("reason", res.Reason.String()),
	))
	s.record(journal.Event{
		Kind:    journal.KindActivation,
		Actor:   res.Caster,
		Ability: res.Ability,
		Level:   res.Level,
		Variant: res.Variant.String(),
		Depth:   res.Depth,
		Hits:    res.Hits,
		Damage:  res.Damage,
		Heal:    res.Heal,
		Reason:  res.Reason.String(),
	})
	if s.onActivation != nil {
		s.onActivation(res)
	}
}

// violationHandler records invariant violations; components log them already.
func (s *Simulation) violationHandler(actor uint32) func(msg string, args ...any) {
	return func(msg string, args ...any) {
		if len(args) > 0 {
			msg = msg + " " + fmt.Sprint(args...)
		}
		s.record(journal.Event{Kind: journal.KindViolation, Actor: actor, Message: msg})
	}
}

// effectChanged journals one effect change. Reason is "added", "refreshed"
// or the removal reason.
func (s *Simulation) effectChanged(c effect.Change) {
	reason := c.Kind.String()
	if c.Kind == effect.ChangeRemoved {
		reason = c.Reason.String()
	}
	s.record(journal.Event{
		Kind:   journal.KindEffect,
		Actor:  c.Owner,
		Effect: c.Status.ID,
		Stacks: c.Status.Stacks,
		Reason: reason,
	})
	if s.onEffect != nil {
		s.onEffect(c)
	}
}

func (s *Simulation) record(ev journal.Event) {
	if s.journal == nil {
		return
	}
	ev.Tick = s.tick
	s.journal.Record(ev)
}

// Run steps the simulation every interval until ctx is cancelled.
func (s *Simulation) Run(ctx context.Context, interval time.Duration) error {
	if !s.authority {
		return ErrNotAuthority
	}
	if interval <= 0 {
		return fmt.Errorf("run: interval must be > 0, got %s", interval)
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	s.logger.Info("simulation started", "interval", interval, "actors", s.actors.Len())
	for {
		select {
		case <-ctx.Done():
			s.logger.Info("simulation stopping", "tick", s.tick)
			return ctx.Err()
		case <-ticker.C:
			if err := s.Step(ctx, interval); err != nil {
				return fmt.Errorf("tick %d: %w", s.tick, err)
			}
		}
	}
}
