package data

import (
	"math"
	"time"
)

// EffectCategory groups effects whose lifecycle differs from the default modifier.
type EffectCategory int8

const (
	CategoryModifier EffectCategory = iota // buff/debuff/DOT: lives until duration expires
	CategoryShield                         // ends as soon as its shield pool is depleted
)

// ParseEffectCategory converts a catalog string to EffectCategory.
func ParseEffectCategory(s string) (EffectCategory, bool) {
	switch s {
	case "", "modifier":
		return CategoryModifier, true
	case "shield":
		return CategoryShield, true
	default:
		return CategoryModifier, false
	}
}

func (c EffectCategory) String() string {
	if c == CategoryShield {
		return "shield"
	}
	return "modifier"
}

// BonusIntFunc lets the caller add externally-applied flat bonuses to integer
// properties after level scaling (equipment, talents and so on).
type BonusIntFunc func(p Property, value int32) int32

// EffectDefinition — immutable шаблон эффекта на конкретном уровне.
// Базовый экземпляр (Level=1) хранится в Catalog; GetEffect возвращает копию с нужным Level.
// НЕ модифицировать после загрузки.
type EffectDefinition struct {
	ID            string
	Name          string
	Level         int32
	Category      EffectCategory
	Consumes      string // prerequisite effect id, "" = none
	DefaultOnFail string // applied instead when the prerequisite is missing
	BlocksCast    bool
	BlocksMove    bool

	values       PropertyValues
	levelScaling PropertyValues
	stackScaling PropertyValues
}

// Base returns the unscaled value of p (0 when undefined).
func (d *EffectDefinition) Base(p Property) float64 {
	v, _ := d.values.Get(p)
	return v
}

// Has reports whether the definition defines p.
func (d *EffectDefinition) Has(p Property) bool {
	return d.values.Has(p)
}

// LevelScaled returns the value of p scaled by (1+levelFactor)^(Level-1).
// Integer properties are rounded.
func (d *EffectDefinition) LevelScaled(p Property) float64 {
	v, ok := d.values.Get(p)
	if !ok {
		return 0
	}
	if f, ok := d.levelScaling.Get(p); ok && d.Level > 1 {
		v *= math.Pow(1+f, float64(d.Level-1))
	}
	if p.IsInteger() {
		v = math.Round(v)
	}
	return v
}

// Scaled returns the value of p for an instance with the given stack count.
// Order: base, level scaling, bonus-int hook (integer properties only),
// stack scaling stacks×(1+stackFactor) when a stack entry exists.
func (d *EffectDefinition) Scaled(p Property, stacks int32, bonus BonusIntFunc) float64 {
	if !d.values.Has(p) {
		return 0
	}
	v := d.LevelScaled(p)
	if p.IsInteger() && bonus != nil {
		v = float64(bonus(p, int32(v)))
	}
	if f, ok := d.stackScaling.Get(p); ok {
		v *= float64(stacks) * (1 + f)
	}
	if p.IsInteger() {
		v = math.Round(v)
	}
	return v
}

// MaxStacks returns the stack cap (at least 1).
func (d *EffectDefinition) MaxStacks() int32 {
	n := int32(math.Round(d.Base(PropMaxStacks)))
	if n < 1 {
		return 1
	}
	return n
}

// Duration returns the level-scaled duration; 0 means infinite.
func (d *EffectDefinition) Duration() time.Duration {
	s := d.LevelScaled(PropDuration)
	if s <= 0 {
		return 0
	}
	return secondsToDuration(s)
}

// TickInterval returns the periodic tick interval; 0 disables ticking.
func (d *EffectDefinition) TickInterval() time.Duration {
	s := d.LevelScaled(PropTickInterval)
	if s <= 0 {
		return 0
	}
	return secondsToDuration(s)
}

// AtLevel returns a copy of d bound to level. Scaling tables are shared by value.
func (d *EffectDefinition) AtLevel(level int32) *EffectDefinition {
	clone := *d
	clone.Level = level
	return &clone
}

// EffectSpec — ссылка на эффект из способности с опциональными overrides.
// Нулевые значения overrides означают "взять из определения".
type EffectSpec struct {
	EffectID   string
	Duration   time.Duration // <= 0: definition default
	Stacks     int32         // <= 0: definition default (1)
	SpeedBonus float64       // 0: definition default
}
