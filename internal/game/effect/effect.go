package effect

import (
	"time"

	"github.com/udisondev/castcore/internal/data"
)

// Instance is one active status effect on one actor.
// Created by Engine.Apply, mutated on refresh, destroyed on expiry, consumption,
// depletion (shield category) or when the owner is cleared.
type Instance struct {
	def       *data.EffectDefinition
	stacks    int32
	shield    int32
	remaining time.Duration
	infinite  bool
	tickTimer time.Duration

	speedBonus    float64
	speedOverride bool

	seq uint64 // insertion order
}

// ID returns the effect identifier.
func (i *Instance) ID() string { return i.def.ID }

// Definition returns the definition bound to the level the effect was applied at.
func (i *Instance) Definition() *data.EffectDefinition { return i.def }

// Stacks returns the current stack count (1..MaxStacks).
func (i *Instance) Stacks() int32 { return i.stacks }

// Shield returns the remaining shield pool.
func (i *Instance) Shield() int32 { return i.shield }

// Remaining returns the remaining duration; meaningless when Infinite.
func (i *Instance) Remaining() time.Duration { return i.remaining }

// Infinite reports whether the instance never expires by time.
func (i *Instance) Infinite() bool { return i.infinite }

// scaled returns the instance contribution for p.
// An explicit speed bonus override replaces the definition value.
func (i *Instance) scaled(p data.Property, bonus data.BonusIntFunc) float64 {
	if p == data.PropSpeedBonus && i.speedOverride {
		return i.speedBonus
	}
	return i.def.Scaled(p, i.stacks, bonus)
}

// defines reports whether the instance contributes to p at all.
func (i *Instance) defines(p data.Property) bool {
	if p == data.PropSpeedBonus && i.speedOverride {
		return true
	}
	return i.def.Has(p)
}

// Status is an immutable view of an instance for observers.
type Status struct {
	ID        string
	Stacks    int32
	Shield    int32
	Remaining time.Duration
	Infinite  bool
}

func (i *Instance) status() Status {
	return Status{
		ID:        i.def.ID,
		Stacks:    i.stacks,
		Shield:    i.shield,
		Remaining: i.remaining,
		Infinite:  i.infinite,
	}
}
