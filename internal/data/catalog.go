package data

import (
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"slices"
)

// ErrUnknownIdentifier is returned when an ability or effect id is absent from the catalog.
// It indicates broken authored content, not a recoverable runtime condition.
var ErrUnknownIdentifier = errors.New("unknown identifier")

// Catalog — read-only registry способностей и эффектов.
// Строится один раз через LoadCatalog/ParseCatalog и передаётся зависимостям явно.
// Safe for concurrent reads.
type Catalog struct {
	// abilities: id → levels (index = level-1)
	abilities map[string][]*AbilityDefinition
	// effects: id → base definition (Level=1)
	effects map[string]*EffectDefinition

	fingerprint [32]byte
	logger      *slog.Logger
}

// GetAbility возвращает AbilityDefinition по ID и Level.
// Уровень вне таблицы — нарушение инварианта: логируется и прижимается к ближайшему.
func (c *Catalog) GetAbility(id string, level int32) (*AbilityDefinition, error) {
	levels, ok := c.abilities[id]
	if !ok || len(levels) == 0 {
		return nil, fmt.Errorf("ability %q: %w", id, ErrUnknownIdentifier)
	}
	idx := int(level) - 1
	if idx < 0 || idx >= len(levels) {
		clamped := min(max(idx, 0), len(levels)-1)
		c.logger.Error("ability level out of range",
			"ability", id,
			"level", level,
			"clamped", clamped+1)
		idx = clamped
	}
	return levels[idx], nil
}

// GetEffect возвращает EffectDefinition, привязанный к level (level < 1 прижимается к 1).
func (c *Catalog) GetEffect(id string, level int32) (*EffectDefinition, error) {
	base, ok := c.effects[id]
	if !ok {
		return nil, fmt.Errorf("effect %q: %w", id, ErrUnknownIdentifier)
	}
	if level < 1 {
		c.logger.Error("effect level out of range", "effect", id, "level", level, "clamped", 1)
		level = 1
	}
	if level == base.Level {
		return base, nil
	}
	return base.AtLevel(level), nil
}

// HasAbility reports whether id is present.
func (c *Catalog) HasAbility(id string) bool {
	_, ok := c.abilities[id]
	return ok
}

// MaxLevel returns the highest authored level of an ability, 0 if absent.
func (c *Catalog) MaxLevel(id string) int32 {
	return int32(len(c.abilities[id]))
}

// AbilityIDs returns all ability ids, sorted.
func (c *Catalog) AbilityIDs() []string {
	ids := make([]string, 0, len(c.abilities))
	for id := range c.abilities {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// EffectIDs returns all effect ids, sorted.
func (c *Catalog) EffectIDs() []string {
	ids := make([]string, 0, len(c.effects))
	for id := range c.effects {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// Fingerprint returns the hex blake2b-256 digest of the source document.
// Observers compare it with the authority's to make sure both run the same content.
func (c *Catalog) Fingerprint() string {
	return hex.EncodeToString(c.fingerprint[:])
}
