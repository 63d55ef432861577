package model

import (
	"log/slog"
	"slices"

	"github.com/udisondev/castcore/internal/game/effect"
)

// ActorConfig — параметры создания актора.
type ActorConfig struct {
	ID        uint32
	Name      string
	Team      int32
	Level     int32
	MaxHP     int32
	MaxEnergy int32
	Position  Point
	Radius    float64

	// Abilities — известные способности: abilityID → level.
	Abilities map[string]int32
	// DefaultAbility повторяется автоматически после каждого завершённого каста.
	DefaultAbility string
}

// Actor — участник боя: команда, ресурсы, позиция, известные способности.
// Владеет своим effect.Engine эксклюзивно (1:1, общий lifetime).
//
// Не потокобезопасен: мутирует только авторитетный тик симуляции.
// Наблюдатели читают реплицированное состояние.
type Actor struct {
	id     uint32
	name   string
	team   int32
	level  int32
	alive  bool
	radius float64
	pos    Point

	hp        int32
	maxHP     int32
	energy    int32
	maxEnergy int32

	abilities      map[string]int32
	defaultAbility string

	effects *effect.Engine
}

// NewActor создаёт живого актора с полными HP/энергией и пустым набором эффектов.
func NewActor(cfg ActorConfig, defs effect.Definitions, opts ...effect.Option) *Actor {
	level := max(cfg.Level, 1)
	a := &Actor{
		id:             cfg.ID,
		name:           cfg.Name,
		team:           cfg.Team,
		level:          level,
		alive:          true,
		radius:         max(cfg.Radius, 0),
		pos:            cfg.Position,
		hp:             max(cfg.MaxHP, 1),
		maxHP:          max(cfg.MaxHP, 1),
		energy:         max(cfg.MaxEnergy, 0),
		maxEnergy:      max(cfg.MaxEnergy, 0),
		abilities:      make(map[string]int32, len(cfg.Abilities)),
		defaultAbility: cfg.DefaultAbility,
	}
	for id, lvl := range cfg.Abilities {
		a.abilities[id] = max(lvl, 1)
	}
	a.effects = effect.NewEngine(a, defs, opts...)
	return a
}

// ObjectID возвращает уникальный ID актора.
func (a *Actor) ObjectID() uint32 { return a.id }

// Name возвращает имя.
func (a *Actor) Name() string { return a.name }

// Team возвращает ID команды.
func (a *Actor) Team() int32 { return a.team }

// Level возвращает уровень актора.
func (a *Actor) Level() int32 { return a.level }

// IsAlive reports whether the actor can act and be targeted.
func (a *Actor) IsAlive() bool { return a.alive }

// IsEnemy reports whether o belongs to another team.
func (a *Actor) IsEnemy(o *Actor) bool { return a.team != o.team }

// IsAlly reports whether o belongs to the same team (self included).
func (a *Actor) IsAlly(o *Actor) bool { return a.team == o.team }

// Position возвращает текущие координаты.
func (a *Actor) Position() Point { return a.pos }

// Radius возвращает радиус коллизии.
func (a *Actor) Radius() float64 { return a.radius }

// MoveTo перемещает актора. Проверку блокировки движения делает вызывающий.
func (a *Actor) MoveTo(p Point) { a.pos = p }

// HP возвращает текущее HP.
func (a *Actor) HP() int32 { return a.hp }

// MaxHP возвращает максимальное HP.
func (a *Actor) MaxHP() int32 { return a.maxHP }

// Energy возвращает текущую энергию.
func (a *Actor) Energy() int32 { return a.energy }

// MaxEnergy возвращает максимальную энергию.
func (a *Actor) MaxEnergy() int32 { return a.maxEnergy }

// ReduceHP снижает HP на amount (floor 0) и возвращает фактически снятое значение.
// При HP == 0 актор умирает; очистку эффектов и каста делает симуляция.
func (a *Actor) ReduceHP(amount int32) int32 {
	if !a.alive || amount <= 0 {
		return 0
	}
	amount = min(amount, a.hp)
	a.hp -= amount
	if a.hp == 0 {
		a.alive = false
		slog.Debug("actor died", "actor", a.id, "name", a.name)
	}
	return amount
}

// RestoreHP восстанавливает HP (clamp к maxHP). Мёртвых не лечит.
func (a *Actor) RestoreHP(amount int32) int32 {
	if !a.alive || amount <= 0 {
		return 0
	}
	amount = min(amount, a.maxHP-a.hp)
	a.hp += amount
	return amount
}

// SpendEnergy списывает cost. Returns false without change when energy is short.
func (a *Actor) SpendEnergy(cost int32) bool {
	if cost <= 0 {
		return true
	}
	if a.energy < cost {
		return false
	}
	a.energy -= cost
	return true
}

// RestoreEnergy добавляет энергию (clamp к maxEnergy).
func (a *Actor) RestoreEnergy(amount int32) int32 {
	if amount <= 0 {
		return 0
	}
	amount = min(amount, a.maxEnergy-a.energy)
	a.energy += amount
	return amount
}

// AbilityLevel возвращает уровень известной способности.
func (a *Actor) AbilityLevel(id string) (int32, bool) {
	lvl, ok := a.abilities[id]
	return lvl, ok
}

// Abilities возвращает ID известных способностей (отсортированы).
func (a *Actor) Abilities() []string {
	ids := make([]string, 0, len(a.abilities))
	for id := range a.abilities {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// DefaultAbility возвращает авто-повторяемую способность ("" если нет).
func (a *Actor) DefaultAbility() string { return a.defaultAbility }

// Effects возвращает движок эффектов актора.
func (a *Actor) Effects() *effect.Engine { return a.effects }
