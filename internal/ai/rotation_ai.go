package ai

import (
	"log/slog"
)

// RotationAI casts a fixed ability rotation at the nearest enemy.
// Each tick it tries the rotation starting after the last successful cast and
// casts the first ability that is ready; a busy actor is left alone.
type RotationAI struct {
	actorID   uint32
	rotation  []string
	caster    Caster
	logger    *slog.Logger
	running   bool
	intention Intention
	next      int
	casts     int
}

// NewRotationAI creates a controller for actorID. The rotation is copied.
func NewRotationAI(actorID uint32, rotation []string, caster Caster, logger *slog.Logger) *RotationAI {
	if logger == nil {
		logger = slog.Default()
	}
	return &RotationAI{
		actorID:  actorID,
		rotation: append([]string(nil), rotation...),
		caster:   caster,
		logger:   logger,
	}
}

// Start starts the AI controller.
func (ai *RotationAI) Start() {
	ai.running = true
	ai.logger.Debug("rotation AI started", "actor", ai.actorID, "rotation", ai.rotation)
}

// Stop stops the AI controller.
func (ai *RotationAI) Stop() {
	ai.running = false
	ai.setIntention(IntentionIdle)
}

// CurrentIntention returns current AI intention.
func (ai *RotationAI) CurrentIntention() Intention { return ai.intention }

// Casts returns the number of casts the controller started.
func (ai *RotationAI) Casts() int { return ai.casts }

func (ai *RotationAI) setIntention(i Intention) {
	if ai.intention != i {
		ai.logger.Debug("AI intention changed", "actor", ai.actorID, "from", ai.intention, "to", i)
	}
	ai.intention = i
}

// Tick performs one AI decision.
func (ai *RotationAI) Tick() {
	if !ai.running || len(ai.rotation) == 0 {
		return
	}
	enemy, ok := ai.caster.NearestEnemy(ai.actorID)
	if !ok {
		ai.setIntention(IntentionIdle)
		return
	}
	ai.setIntention(IntentionAttack)
	if ai.caster.Busy(ai.actorID) {
		return
	}

	for i := range ai.rotation {
		idx := (ai.next + i) % len(ai.rotation)
		ability := ai.rotation[idx]
		if !ai.caster.CanCast(ai.actorID, ability) {
			continue
		}
		if err := ai.caster.RequestCastAt(ai.actorID, ability, enemy.Position()); err != nil {
			ai.logger.Debug("AI cast rejected", "actor", ai.actorID, "ability", ability, "error", err)
			continue
		}
		ai.next = (idx + 1) % len(ai.rotation)
		ai.casts++
		return
	}
}
