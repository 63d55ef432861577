package spell

import (
	"log/slog"
	"slices"
	"time"

	"github.com/udisondev/castcore/internal/data"
	"github.com/udisondev/castcore/internal/model"
)

// maxCascadeDepth bounds on-hit chains (a → b → a ...).
const maxCascadeDepth = 8

// Actors is the world view the resolver queries. Implemented by world.Registry.
type Actors interface {
	Get(id uint32) (*model.Actor, bool)
	First(match func(*model.Actor) bool) (*model.Actor, bool)
	InRadius(center model.Point, radius float64) []*model.Actor
	Nearest(center model.Point, maxDist float64, accept func(*model.Actor) bool) (*model.Actor, bool)
	ForEach(fn func(*model.Actor) bool)
}

// Abilities resolves ability definitions for cascades.
type Abilities interface {
	GetAbility(id string, level int32) (*data.AbilityDefinition, error)
	MaxLevel(id string) int32
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithListener sets the callback for ended activations.
func WithListener(fn func(Result)) Option {
	return func(r *Resolver) { r.listener = fn }
}

// WithLogger sets the logger (slog.Default otherwise).
func WithLogger(l *slog.Logger) Option {
	return func(r *Resolver) { r.logger = l }
}

// WithViolationHandler sets the callback for invariant violations.
func WithViolationHandler(fn func(msg string, args ...any)) Option {
	return func(r *Resolver) { r.violation = fn }
}

// Resolver turns committed casts into hits: target resolution, hit-limit
// bookkeeping, ally/enemy branches, counters and cascading sub-abilities.
// Zones, projectiles and counters persist across ticks and advance in Update.
//
// Not safe for concurrent use. Only the authoritative simulation calls it.
type Resolver struct {
	actors    Actors
	abilities Abilities

	active   []*activation
	counters map[uint32]*activation // pending counter per owner
	nextID   uint64

	listener  func(Result)
	logger    *slog.Logger
	violation func(msg string, args ...any)
}

// NewResolver creates a Resolver over actors.
func NewResolver(actors Actors, abilities Abilities, opts ...Option) *Resolver {
	r := &Resolver{
		actors:    actors,
		abilities: abilities,
		counters:  make(map[uint32]*activation),
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Activate resolves def cast by caster against target.
func (r *Resolver) Activate(caster *model.Actor, def *data.AbilityDefinition, target model.Target) {
	primary, point := r.resolveTarget(caster, def, target)
	r.start(caster, def, primary, point, 0)
}

// resolveTarget maps the targeting mode to a primary actor (may be nil) and a point.
func (r *Resolver) resolveTarget(caster *model.Actor, def *data.AbilityDefinition, target model.Target) (*model.Actor, model.Point) {
	switch def.Targeting {
	case data.TargetSelf:
		return caster, caster.Position()
	case data.TargetFirstAlly:
		ally, ok := r.actors.First(func(a *model.Actor) bool {
			return a != caster && a.IsAlive() && caster.IsAlly(a)
		})
		if !ok {
			return caster, caster.Position()
		}
		return ally, ally.Position()
	case data.TargetFirstEnemy:
		enemy, ok := r.actors.First(func(a *model.Actor) bool {
			return a.IsAlive() && caster.IsEnemy(a)
		})
		if !ok {
			return nil, caster.Position()
		}
		return enemy, enemy.Position()
	case data.TargetPointOrArea:
		if target.HasActor {
			if a, ok := r.actors.Get(target.Actor); ok {
				return a, a.Position()
			}
		}
		return nil, target.Point
	default:
		return nil, caster.Position()
	}
}

func (r *Resolver) start(caster *model.Actor, def *data.AbilityDefinition, primary *model.Actor, point model.Point, depth int) {
	if depth > maxCascadeDepth {
		r.report("cascade depth exceeded", "caster", caster.ObjectID(), "ability", def.ID, "depth", depth)
		return
	}

	r.nextID++
	act := &activation{
		id:     r.nextID,
		caster: caster,
		def:    def,
		point:  point,
		depth:  depth,
		hits:   newHitRecord(),
	}

	r.logger.Debug("activation started",
		"activation", act.id,
		"caster", caster.ObjectID(),
		"ability", def.ID,
		"level", def.Level,
		"variant", def.Variant.String(),
		"depth", depth)

	switch def.Variant {
	case data.VariantInstant:
		r.resolveInstant(act, primary)
	case data.VariantArea:
		r.resolveArea(act)
	case data.VariantZone:
		r.startZone(act)
	case data.VariantProjectile:
		r.startProjectile(act)
	case data.VariantCounter:
		r.startCounter(act)
	case data.VariantJump:
		r.resolveJump(act)
	default:
		r.report("unknown ability variant", "ability", def.ID, "variant", int(def.Variant))
		r.end(act, EndCompleted)
	}
}

// Update advances persistent activations by dt. Activations started during
// Update (cascades) advance from the next tick on.
func (r *Resolver) Update(dt time.Duration) {
	if dt < 0 {
		r.report("negative resolver update delta", "dt", dt)
		return
	}
	for _, act := range slices.Clone(r.active) {
		if act.ended {
			continue
		}
		switch act.def.Variant {
		case data.VariantZone:
			r.updateZone(act, dt)
		case data.VariantProjectile:
			r.updateProjectile(act, dt)
		case data.VariantCounter:
			r.updateCounter(act, dt)
		case data.VariantInstant, data.VariantArea, data.VariantJump:
			r.report("single-pass activation left active", "ability", act.def.ID)
			r.end(act, EndCompleted)
		}
	}
	r.compact()
}

// EndCaster ends every persistent activation of caster (death, despawn).
// No cascades fire.
func (r *Resolver) EndCaster(casterID uint32) {
	for _, act := range r.active {
		if !act.ended && act.caster.ObjectID() == casterID {
			r.finish(act, EndCasterGone)
		}
	}
	r.compact()
}

// Active returns the number of persistent activations in flight.
func (r *Resolver) Active() int {
	n := 0
	for _, act := range r.active {
		if !act.ended {
			n++
		}
	}
	return n
}

// HasCounter reports whether actorID has a pending counter.
func (r *Resolver) HasCounter(actorID uint32) bool {
	c, ok := r.counters[actorID]
	return ok && !c.ended
}

func (r *Resolver) compact() {
	r.active = slices.DeleteFunc(r.active, func(a *activation) bool { return a.ended })
}

// end finishes act and fires its on-hit cascade when it hit anything.
func (r *Resolver) end(act *activation, reason EndReason) {
	if act.ended {
		return
	}
	r.finish(act, reason)
	if act.count > 0 {
		r.cascade(act, act.point)
	}
}

func (r *Resolver) finish(act *activation, reason EndReason) {
	if act.ended {
		return
	}
	act.ended = true
	if act.def.Variant == data.VariantCounter {
		if c := r.counters[act.caster.ObjectID()]; c == act {
			delete(r.counters, act.caster.ObjectID())
		}
	}

	res := act.result(reason)
	r.logger.Debug("activation ended",
		"activation", act.id,
		"caster", res.Caster,
		"ability", res.Ability,
		"hits", res.Hits,
		"damage", res.Damage,
		"heal", res.Heal,
		"reason", reason.String())

	if r.listener != nil {
		r.listener(res)
	}
}

// cascade activates every on-hit sub-ability at the caster's current level
// (clamped to the sub-ability's authored levels) at point.
func (r *Resolver) cascade(act *activation, point model.Point) {
	caster := act.caster
	for _, subID := range act.def.OnHit {
		level := min(caster.Level(), max(r.abilities.MaxLevel(subID), 1))
		sub, err := r.abilities.GetAbility(subID, level)
		if err != nil {
			r.report("cascade ability missing", "ability", act.def.ID, "sub", subID, "error", err)
			continue
		}
		primary, subPoint := r.resolveTarget(caster, sub, model.PointTarget(point))
		if sub.Targeting == data.TargetPointOrArea || sub.Targeting == data.TargetNone {
			subPoint = point
		}
		r.start(caster, sub, primary, subPoint, act.depth+1)
	}
}

func (r *Resolver) report(msg string, args ...any) {
	r.logger.Error(msg, args...)
	if r.violation != nil {
		r.violation(msg, args...)
	}
}
