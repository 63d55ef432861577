package spell

import (
	"math"

	"github.com/udisondev/castcore/internal/data"
	"github.com/udisondev/castcore/internal/model"
)

// hitOutcome tells the variant loop how to continue after one hit attempt.
type hitOutcome int8

const (
	hitSkipped   hitOutcome = iota // candidate not eligible, nothing happened
	hitApplied                     // branch applied, keep going
	hitCapped                      // branch applied, max hits reached
	hitCountered                   // activation consumed by the target's counter
)

// eligible reports whether a can be hit by act: alive, not hit yet and
// matching an active branch. The caster only qualifies with AffectsCaster.
func (r *Resolver) eligible(act *activation, a *model.Actor) bool {
	if !a.IsAlive() || act.hits.Has(a.ObjectID()) {
		return false
	}
	return r.branchMatches(act, a)
}

func (r *Resolver) branchMatches(act *activation, a *model.Actor) bool {
	if a == act.caster {
		return act.def.AffectsCaster && act.def.AllyBranch()
	}
	if act.caster.IsEnemy(a) {
		return act.def.EnemyBranch()
	}
	return act.def.AllyBranch()
}

// hit applies the matching branch of act to target. An enemy-branch hit on a
// target holding a pending counter is redirected to the counter instead.
func (r *Resolver) hit(act *activation, target *model.Actor) hitOutcome {
	caster := act.caster
	def := act.def

	if caster.IsEnemy(target) {
		if !def.EnemyBranch() {
			return hitSkipped
		}
		if counter, ok := r.counters[target.ObjectID()]; ok && !counter.ended {
			r.procCounter(counter, caster)
			r.end(act, EndCountered)
			return hitCountered
		}
		act.damage += r.applyEnemyBranch(caster, def, target, act)
	} else {
		if !def.AllyBranch() {
			return hitSkipped
		}
		act.heal += r.applyAllyBranch(def, target)
	}

	act.hits.Add(target.ObjectID())
	act.count++
	if def.Gain > 0 {
		caster.RestoreEnergy(def.Gain)
	}

	if act.capped() {
		return hitCapped
	}
	return hitApplied
}

// applyEnemyBranch deals damage through the target's pipeline, heals the
// caster by life steal, then applies the enemy effects. Returns health removed.
func (r *Resolver) applyEnemyBranch(caster *model.Actor, def *data.AbilityDefinition, target *model.Actor, act *activation) int32 {
	var dealt int32
	if def.Damage > 0 {
		outgoing := def.Damage + int32(caster.Effects().Aggregate(data.PropDamage))
		hpBefore := target.HP()
		res := target.Effects().TakeHit(outgoing)
		dealt = hpBefore - target.HP()

		if steal := caster.Effects().Aggregate(data.PropLifeSteal); steal > 0 && res.Dealt > 0 {
			act.heal += caster.RestoreHP(int32(math.Round(float64(res.Dealt) * steal)))
		}
	}
	r.applyEffects(target, def.EnemyEffects, def)
	return dealt
}

// applyAllyBranch heals (clamped) and applies the ally effects. Returns health restored.
func (r *Resolver) applyAllyBranch(def *data.AbilityDefinition, target *model.Actor) int32 {
	var healed int32
	if def.Heal > 0 {
		healed = target.RestoreHP(def.Heal)
	}
	r.applyEffects(target, def.AllyEffects, def)
	return healed
}

func (r *Resolver) applyEffects(target *model.Actor, specs []data.EffectSpec, def *data.AbilityDefinition) {
	if !target.IsAlive() {
		return
	}
	for _, spec := range specs {
		if _, err := target.Effects().Apply(spec, def.Level); err != nil {
			r.report("effect apply failed",
				"ability", def.ID,
				"effect", spec.EffectID,
				"target", target.ObjectID(),
				"error", err)
		}
	}
}

// procCounter fires counter against attacker: the counter's enemy branch hits
// the attacker, its ally branch the owner, then its cascade fires at the
// attacker's position.
func (r *Resolver) procCounter(counter *activation, attacker *model.Actor) {
	owner := counter.caster
	def := counter.def

	r.logger.Debug("counter triggered",
		"owner", owner.ObjectID(),
		"ability", def.ID,
		"attacker", attacker.ObjectID())

	// The counter is spent before it resolves.
	delete(r.counters, owner.ObjectID())

	if attacker.IsAlive() && def.EnemyBranch() && owner.IsEnemy(attacker) {
		counter.damage += r.applyEnemyBranch(owner, def, attacker, counter)
		counter.hits.Add(attacker.ObjectID())
		counter.count++
	}
	if owner.IsAlive() && def.AllyBranch() {
		counter.heal += r.applyAllyBranch(def, owner)
	}

	at := attacker.Position()
	r.finish(counter, EndIntercepted)
	r.cascade(counter, at)
}
