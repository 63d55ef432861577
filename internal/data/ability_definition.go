package data

import "time"

// Variant определяет способ разрешения способности (закрытый набор).
type Variant int8

const (
	VariantInstant    Variant = iota // applies to the resolved actor and ends
	VariantArea                      // one proximity query around the point
	VariantZone                      // persistent area re-queried on an interval
	VariantProjectile                // travels toward the point, path-continuous overlap
	VariantCounter                   // pending interception of one incoming hit
	VariantJump                      // chains between nearby actors
)

var variantNames = [...]string{
	VariantInstant:    "instant",
	VariantArea:       "area",
	VariantZone:       "zone",
	VariantProjectile: "projectile",
	VariantCounter:    "counter",
	VariantJump:       "jump",
}

// ParseVariant converts a catalog string to Variant.
func ParseVariant(s string) (Variant, bool) {
	if s == "" {
		return VariantInstant, true
	}
	for v, name := range variantNames {
		if name == s {
			return Variant(v), true
		}
	}
	return VariantInstant, false
}

func (v Variant) String() string {
	if v < 0 || int(v) >= len(variantNames) {
		return "unknown"
	}
	return variantNames[v]
}

// TargetMode определяет, как выбирается цель при активации.
type TargetMode int8

const (
	TargetSelf TargetMode = iota
	TargetFirstAlly
	TargetFirstEnemy
	TargetPointOrArea
	TargetNone
)

var targetModeNames = [...]string{
	TargetSelf:        "self",
	TargetFirstAlly:   "first_ally",
	TargetFirstEnemy:  "first_enemy",
	TargetPointOrArea: "point",
	TargetNone:        "none",
}

// ParseTargetMode converts a catalog string to TargetMode.
func ParseTargetMode(s string) (TargetMode, bool) {
	if s == "" {
		return TargetNone, true
	}
	for m, name := range targetModeNames {
		if name == s {
			return TargetMode(m), true
		}
	}
	return TargetNone, false
}

func (m TargetMode) String() string {
	if m < 0 || int(m) >= len(targetModeNames) {
		return "unknown"
	}
	return targetModeNames[m]
}

// AbilityDefinition — immutable шаблон способности.
// Один экземпляр на каждую пару (abilityID, level), строится при загрузке каталога.
// Shared across all actors — НЕ модифицировать после загрузки.
type AbilityDefinition struct {
	ID          string
	Name        string
	Level       int32
	MaxLevel    int32
	Variant     Variant
	Targeting   TargetMode
	CastAt      float64       // fraction of the animation before the commit point (0..1)
	Animation   time.Duration // full cast animation
	Cooldown    time.Duration
	MaxHits     int32 // 0 = unlimited
	Cost        int32 // energy spent at the commit point
	Gain        int32 // energy granted to the caster per successful hit
	Damage      int32 // level-scaled base damage
	Heal        int32 // level-scaled base heal
	LevelFactor float64

	EnemyEffects []EffectSpec
	AllyEffects  []EffectSpec
	OnHit        []string // cascading sub-ability ids

	// Variant payload.
	Radius          float64       // area, zone, projectile, jump first-hit search
	Range           float64       // projectile travel distance
	Speed           float64       // projectile units per second
	JumpRange       float64       // jump: max distance between chained targets
	Duration        time.Duration // zone lifetime, counter window
	RefreshInterval time.Duration // zone re-query interval
	ReapplyInterval time.Duration // zone per-actor re-hit interval

	AffectsCaster bool // ally branch may include the caster in area queries
	LocksMovement bool // movement is locked while committing
	AutoAttack    bool // cast time scales with AttackSpeed instead of CastSpeed
}

// EnemyBranch reports whether hits on enemies do anything.
func (a *AbilityDefinition) EnemyBranch() bool {
	return a.Damage > 0 || len(a.EnemyEffects) > 0
}

// AllyBranch reports whether hits on allies do anything.
func (a *AbilityDefinition) AllyBranch() bool {
	return a.Heal > 0 || len(a.AllyEffects) > 0
}

// IsPersistent reports whether the activation outlives the tick it was started in.
func (a *AbilityDefinition) IsPersistent() bool {
	switch a.Variant {
	case VariantZone, VariantProjectile, VariantCounter:
		return true
	default:
		return false
	}
}
