package ai

import (
	"fmt"
	"log/slog"
	"slices"
)

// TickManager ticks registered controllers in registration order.
// It has no clock of its own: the simulation calls TickAll from its
// before-step hook, so AI decisions happen on the simulation goroutine.
type TickManager struct {
	order       []uint32
	controllers map[uint32]Controller
	logger      *slog.Logger
}

// NewTickManager creates a new AI tick manager.
func NewTickManager(logger *slog.Logger) *TickManager {
	if logger == nil {
		logger = slog.Default()
	}
	return &TickManager{
		controllers: make(map[uint32]Controller),
		logger:      logger,
	}
}

// Register starts controller and registers it for actorID, replacing any previous one.
func (m *TickManager) Register(actorID uint32, controller Controller) {
	if old, ok := m.controllers[actorID]; ok {
		old.Stop()
	} else {
		m.order = append(m.order, actorID)
	}
	m.controllers[actorID] = controller
	controller.Start()

	m.logger.Debug("AI controller registered", "actor", actorID, "intention", controller.CurrentIntention())
}

// Unregister stops and removes the controller of actorID.
func (m *TickManager) Unregister(actorID uint32) {
	c, ok := m.controllers[actorID]
	if !ok {
		return
	}
	c.Stop()
	delete(m.controllers, actorID)
	m.order = slices.DeleteFunc(m.order, func(id uint32) bool { return id == actorID })

	m.logger.Debug("AI controller unregistered", "actor", actorID)
}

// TickAll ticks every registered controller. The tick argument matches the
// simulation's before-step hook signature.
func (m *TickManager) TickAll(tick uint64) {
	for _, id := range m.order {
		m.controllers[id].Tick()
	}
	if len(m.order) > 0 && tick%100 == 0 {
		m.logger.Debug("AI tick completed", "tick", tick, "controllers", len(m.order))
	}
}

// Count returns the number of registered controllers.
func (m *TickManager) Count() int { return len(m.order) }

// GetController returns the controller of actorID.
func (m *TickManager) GetController(actorID uint32) (Controller, error) {
	c, ok := m.controllers[actorID]
	if !ok {
		return nil, fmt.Errorf("controller not found for actor %d", actorID)
	}
	return c, nil
}
