package effect

import (
	"math"

	"github.com/udisondev/castcore/internal/data"
)

// HitResult describes one pass through the damage pipeline.
type HitResult struct {
	Incoming int32
	Resisted int32 // after ResistanceFix / ResistancePercent
	Absorbed int32 // taken by shield pools
	Dealt    int32 // final damage applied to health
}

// TakeHit runs incoming damage through the fixed pipeline and applies the result
// to the owner's health:
//
//	ApplyResistance → HitShield → ApplyBonusDamage → health
//
// The order is an invariant; modifiers must never be reordered.
func (e *Engine) TakeHit(incoming int32) HitResult {
	res := HitResult{Incoming: max(incoming, 0)}
	res.Resisted = e.ApplyResistance(res.Incoming)
	remainder := e.HitShield(res.Resisted)
	res.Absorbed = res.Resisted - remainder
	res.Dealt = e.ApplyBonusDamage(remainder)
	if res.Dealt > 0 {
		e.owner.ReduceHP(res.Dealt)
	}
	return res
}

// ApplyResistance subtracts the flat ResistanceFix aggregate (floor 0), then
// multiplies by the ResistancePercent aggregate and rounds.
func (e *Engine) ApplyResistance(incoming int32) int32 {
	v := float64(incoming) - e.Aggregate(data.PropResistanceFix)
	if v <= 0 {
		return 0
	}
	v *= e.multiplier(data.PropResistancePercent)
	return clampDamage(v)
}

// HitShield lets shield pools absorb damage in insertion order and returns the
// unabsorbed remainder. Shield-category instances end when their pool reaches 0;
// other instances keep living with an empty pool until their duration expires.
func (e *Engine) HitShield(damage int32) int32 {
	if damage <= 0 {
		return 0
	}
	var depleted []*Instance
	for _, inst := range e.instances {
		if damage == 0 {
			break
		}
		if inst.shield <= 0 {
			continue
		}
		absorb := min(inst.shield, damage)
		inst.shield -= absorb
		damage -= absorb
		if inst.shield == 0 && inst.def.Category == data.CategoryShield {
			depleted = append(depleted, inst)
		}
	}
	for _, inst := range depleted {
		e.remove(inst, ReasonDepleted)
	}
	return damage
}

// ApplyBonusDamage adds the flat BonusDamage aggregate (floor 0), multiplies by
// the BonusDamagePercent aggregate and rounds. A fully absorbed hit stays at 0.
func (e *Engine) ApplyBonusDamage(remainder int32) int32 {
	if remainder <= 0 {
		return 0
	}
	v := float64(remainder) + e.Aggregate(data.PropBonusDamage)
	if v <= 0 {
		return 0
	}
	v *= e.multiplier(data.PropBonusDamagePercent)
	return clampDamage(v)
}

func clampDamage(v float64) int32 {
	v = math.Round(v)
	switch {
	case v <= 0:
		return 0
	case v >= math.MaxInt32:
		return math.MaxInt32
	default:
		return int32(v)
	}
}
