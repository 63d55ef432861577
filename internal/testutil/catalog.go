package testutil

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/udisondev/castcore/internal/data"
	"github.com/udisondev/castcore/internal/model"
)

// CombatCatalog — общий тестовый каталог для cast/spell/sim тестов.
// Все времена в секундах.
const CombatCatalog = `
effects:
  - id: burn
    values: {tick_interval: 1.0, tick_damage: 2, duration: 3, max_stacks: 3}
  - id: stun
    blocks_cast: true
    blocks_movement: true
    values: {duration: 1}
  - id: haste
    values: {cast_speed: 1.0, speed_bonus: 0.5, duration: 10}
  - id: frenzy
    values: {attack_speed: 1.0, duration: 10}
  - id: might
    values: {damage: 5, duration: 10}
  - id: leech
    values: {life_steal: 0.5, duration: 10}
  - id: mark
    values: {max_stacks: 5, duration: 5}
  - id: guard
    values: {resistance_fix: 3, duration: 5}
  - id: renew
    values: {tick_interval: 1.0, tick_heal: 3, duration: 5}

abilities:
  - id: bolt
    variant: instant
    targeting: first_enemy
    cast_at: 0.5
    animation: 1.0
    cooldown: 2.5
    cost: 10
    gain: 1
    damage: 20
    level_factor: 0.5
    levels: 3
  - id: strike
    targeting: first_enemy
    cast_at: 0.6
    animation: 0.5
    damage: 5
    gain: 2
    auto_attack: true
  - id: mend
    targeting: first_ally
    cost: 5
    heal: 15
    ally_effects: [{id: renew}]
  - id: channel
    targeting: self
    cast_at: 0.5
    animation: 2.0
    cooldown: 5
    locks_movement: true
    ally_effects: [{id: might}]
  - id: nova
    variant: area
    targeting: none
    radius: 3
    cooldown: 4
    damage: 10
    heal: 5
    enemy_effects: [{id: burn}]
    ally_effects: [{id: guard}]
  - id: sanctuary
    variant: area
    targeting: none
    radius: 3
    heal: 5
    affects_caster: true
  - id: flare
    variant: area
    targeting: point
    radius: 2
    damage: 8
    max_hits: 2
  - id: field
    variant: zone
    targeting: point
    radius: 2
    duration: 3
    refresh_interval: 0.1
    reapply_interval: 1.0
    damage: 1
    enemy_effects: [{id: mark}]
  - id: arrow
    variant: projectile
    targeting: point
    speed: 10
    range: 8
    radius: 0.5
    damage: 12
    max_hits: 1
    on_hit: [spark]
  - id: spark
    variant: area
    targeting: none
    radius: 1.5
    damage: 3
  - id: parry
    variant: counter
    targeting: self
    duration: 2
    damage: 7
    enemy_effects: [{id: stun}]
    ally_effects: [{id: guard}]
  - id: feint
    variant: counter
    targeting: self
    damage: 50
  - id: chain
    variant: jump
    targeting: first_enemy
    radius: 3
    jump_range: 4
    max_hits: 3
    damage: 6
  - id: echo
    variant: area
    targeting: none
    radius: 1
    damage: 1
    on_hit: [echo]
  - id: expensive
    targeting: self
    cost: 999
    heal: 1
`

// MustCatalog парсит CombatCatalog.
func MustCatalog(t testing.TB) *data.Catalog {
	t.Helper()
	cat, err := data.ParseCatalog([]byte(CombatCatalog), nil)
	require.NoError(t, err)
	return cat
}

// ActorOpts — тестовые параметры актора поверх значений по умолчанию.
type ActorOpts struct {
	Team      int32
	Level     int32
	HP        int32
	Energy    int32
	Abilities []string
	Default   string
}

// NewActor создаёт актора на позиции (x, y) с HP/энергией по умолчанию 100.
// Все способности из opts известны на уровне actor level.
func NewActor(cat *data.Catalog, id uint32, x, y float64, opts ActorOpts) *model.Actor {
	hp := opts.HP
	if hp == 0 {
		hp = 100
	}
	energy := opts.Energy
	if energy == 0 {
		energy = 100
	}
	level := max(opts.Level, 1)
	abilities := make(map[string]int32, len(opts.Abilities))
	for _, ab := range opts.Abilities {
		abilities[ab] = min(level, max(cat.MaxLevel(ab), 1))
	}
	return model.NewActor(model.ActorConfig{
		ID:             id,
		Name:           "actor",
		Team:           opts.Team,
		Level:          level,
		MaxHP:          hp,
		MaxEnergy:      energy,
		Position:       model.Pt(x, y),
		Radius:         0.5,
		Abilities:      abilities,
		DefaultAbility: opts.Default,
	}, cat)
}
