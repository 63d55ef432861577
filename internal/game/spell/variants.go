package spell

import (
	"cmp"
	"math"
	"slices"
	"time"

	"github.com/udisondev/castcore/internal/model"
	"github.com/udisondev/castcore/internal/world"
)

func (r *Resolver) resolveInstant(act *activation, target *model.Actor) {
	if target == nil || !target.IsAlive() {
		r.end(act, EndNoTarget)
		return
	}
	switch r.hit(act, target) {
	case hitCountered:
	case hitCapped:
		r.end(act, EndMaxHits)
	default:
		r.end(act, EndCompleted)
	}
}

func (r *Resolver) resolveArea(act *activation) {
	if reason, done := r.sweep(act, r.actors.InRadius(act.point, act.def.Radius)); done {
		r.end(act, reason)
		return
	}
	r.end(act, EndCompleted)
}

// sweep hits eligible candidates in order. Reports done when the activation
// must end (hit cap or counter).
func (r *Resolver) sweep(act *activation, candidates []*model.Actor) (EndReason, bool) {
	for _, a := range candidates {
		if !r.eligible(act, a) {
			continue
		}
		switch r.hit(act, a) {
		case hitCountered:
			return EndCountered, true
		case hitCapped:
			return EndMaxHits, true
		}
	}
	return EndCompleted, false
}

func (r *Resolver) startZone(act *activation) {
	act.lastHit = make(map[uint32]time.Duration)
	act.refreshTimer = act.def.RefreshInterval
	r.active = append(r.active, act)
	r.pulseZone(act)
}

// updateZone ends the zone once its duration elapsed, otherwise re-queries on
// every refresh interval.
func (r *Resolver) updateZone(act *activation, dt time.Duration) {
	act.elapsed += dt
	if act.elapsed >= act.def.Duration {
		r.end(act, EndExpired)
		return
	}
	act.refreshTimer -= dt
	if act.refreshTimer > 0 {
		return
	}
	act.refreshTimer = act.def.RefreshInterval
	r.pulseZone(act)
}

// pulseZone hits every actor in the zone that is re-eligible: never hit by this
// zone, or last hit at least the re-application interval ago.
func (r *Resolver) pulseZone(act *activation) {
	for _, a := range r.actors.InRadius(act.point, act.def.Radius) {
		if !a.IsAlive() || !r.branchMatches(act, a) {
			continue
		}
		if last, seen := act.lastHit[a.ObjectID()]; seen && act.elapsed-last < act.def.ReapplyInterval {
			continue
		}
		out := r.hit(act, a)
		if out == hitSkipped {
			continue
		}
		act.lastHit[a.ObjectID()] = act.elapsed
		switch out {
		case hitCountered:
			return
		case hitCapped:
			r.end(act, EndMaxHits)
			return
		}
	}
}

func (r *Resolver) startProjectile(act *activation) {
	act.pos = act.caster.Position()
	if d := act.point.Sub(act.pos); d.Len() > 0 {
		act.dir = d.Scale(1 / d.Len())
	}
	r.active = append(r.active, act)
}

// updateProjectile moves the projectile and hits everything its swept circle
// crossed this tick, nearest along the path first.
func (r *Resolver) updateProjectile(act *activation, dt time.Duration) {
	step := math.Min(act.def.Speed*dt.Seconds(), act.def.Range-act.travelled)
	from := act.pos
	to := from.Add(act.dir.Scale(step))
	if act.dir == (model.Point{}) {
		step = act.def.Range - act.travelled
	}

	var crossed []*model.Actor
	r.actors.ForEach(func(a *model.Actor) bool {
		if world.OverlapsSegment(a, from, to, act.def.Radius) && r.eligible(act, a) {
			crossed = append(crossed, a)
		}
		return true
	})
	slices.SortStableFunc(crossed, func(a, b *model.Actor) int {
		return cmp.Compare(along(from, act.dir, a.Position()), along(from, act.dir, b.Position()))
	})

	if reason, done := r.sweep(act, crossed); done {
		r.end(act, reason)
		return
	}

	act.pos = to
	act.travelled += step
	if act.travelled >= act.def.Range {
		r.end(act, EndRange)
	}
}

// along returns the projection of p onto the ray (origin, dir).
func along(origin, dir, p model.Point) float64 {
	d := p.Sub(origin)
	return d.X*dir.X + d.Y*dir.Y
}

func (r *Resolver) startCounter(act *activation) {
	if act.def.Duration <= 0 {
		r.end(act, EndExpired)
		return
	}
	owner := act.caster.ObjectID()
	if prev, ok := r.counters[owner]; ok && !prev.ended {
		r.finish(prev, EndExpired)
	}
	act.remaining = act.def.Duration
	r.counters[owner] = act
	r.active = append(r.active, act)
}

func (r *Resolver) updateCounter(act *activation, dt time.Duration) {
	act.remaining -= dt
	if act.remaining <= 0 {
		r.end(act, EndExpired)
	}
}

// resolveJump hits the enemy nearest the point, then repeatedly jumps to the
// nearest eligible actor within jump range of the last hit.
func (r *Resolver) resolveJump(act *activation) {
	search := act.def.Radius
	if search <= 0 {
		search = math.Inf(1)
	}
	current, ok := r.actors.Nearest(act.point, search, func(a *model.Actor) bool {
		return act.caster.IsEnemy(a) && r.eligible(act, a)
	})
	if !ok {
		r.end(act, EndNoTarget)
		return
	}

	for {
		switch r.hit(act, current) {
		case hitCountered:
			return
		case hitCapped:
			r.end(act, EndMaxHits)
			return
		case hitSkipped:
			r.end(act, EndCompleted)
			return
		}
		next, ok := r.actors.Nearest(current.Position(), act.def.JumpRange, func(a *model.Actor) bool {
			return r.eligible(act, a)
		})
		if !ok {
			r.end(act, EndCompleted)
			return
		}
		current = next
	}
}
