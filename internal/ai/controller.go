// Package ai drives scenario actors. Controllers only call the cast-request
// entry points of the simulation; they never touch combat state directly.
package ai

import "github.com/udisondev/castcore/internal/model"

// Intention is what a controller is currently trying to do.
type Intention int8

const (
	IntentionIdle   Intention = iota // no enemy in sight
	IntentionAttack                  // casting at the nearest enemy
)

func (i Intention) String() string {
	if i == IntentionAttack {
		return "attack"
	}
	return "idle"
}

// Controller represents an AI controller for one actor.
type Controller interface {
	Start()
	Stop()
	CurrentIntention() Intention
	// Tick is called once per simulation step, before combat updates.
	Tick()
}

// Caster is the simulation surface an AI acts through. Implemented by sim.Simulation.
type Caster interface {
	Busy(actorID uint32) bool
	CanCast(actorID uint32, abilityID string) bool
	RequestCastAt(actorID uint32, abilityID string, point model.Point) error
	NearestEnemy(actorID uint32) (*model.Actor, bool)
}
