package data

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"os"

	"golang.org/x/crypto/blake2b"
	"gopkg.in/yaml.v3"
)

// catalogFile — формат YAML-документа каталога. Все времена в секундах.
type catalogFile struct {
	Effects   []effectEntry  `yaml:"effects"`
	Abilities []abilityEntry `yaml:"abilities"`
}

type effectEntry struct {
	ID             string             `yaml:"id"`
	Name           string             `yaml:"name"`
	Category       string             `yaml:"category"`
	Values         map[string]float64 `yaml:"values"`
	LevelScaling   map[string]float64 `yaml:"level_scaling"`
	StackScaling   map[string]float64 `yaml:"stack_scaling"`
	Consumes       string             `yaml:"consumes"`
	DefaultOnFail  string             `yaml:"default_on_fail"`
	BlocksCast     bool               `yaml:"blocks_cast"`
	BlocksMovement bool               `yaml:"blocks_movement"`
}

type specEntry struct {
	ID         string  `yaml:"id"`
	Duration   float64 `yaml:"duration"`
	Stacks     int32   `yaml:"stacks"`
	SpeedBonus float64 `yaml:"speed_bonus"`
}

type abilityEntry struct {
	ID          string  `yaml:"id"`
	Name        string  `yaml:"name"`
	Levels      int32   `yaml:"levels"`
	Variant     string  `yaml:"variant"`
	Targeting   string  `yaml:"targeting"`
	CastAt      float64 `yaml:"cast_at"`
	Animation   float64 `yaml:"animation"`
	Cooldown    float64 `yaml:"cooldown"`
	MaxHits     int32   `yaml:"max_hits"`
	Cost        int32   `yaml:"cost"`
	Gain        int32   `yaml:"gain"`
	Damage      int32   `yaml:"damage"`
	Heal        int32   `yaml:"heal"`
	LevelFactor float64 `yaml:"level_factor"`

	EnemyEffects []specEntry `yaml:"enemy_effects"`
	AllyEffects  []specEntry `yaml:"ally_effects"`
	OnHit        []string    `yaml:"on_hit"`

	Radius          float64 `yaml:"radius"`
	Range           float64 `yaml:"range"`
	Speed           float64 `yaml:"speed"`
	JumpRange       float64 `yaml:"jump_range"`
	Duration        float64 `yaml:"duration"`
	RefreshInterval float64 `yaml:"refresh_interval"`
	ReapplyInterval float64 `yaml:"reapply_interval"`

	AffectsCaster bool `yaml:"affects_caster"`
	LocksMovement bool `yaml:"locks_movement"`
	AutoAttack    bool `yaml:"auto_attack"`
}

// LoadCatalog читает YAML-файл каталога и строит Catalog.
// Любая ошибка данных фатальна: вызывающий код должен прекратить запуск.
func LoadCatalog(path string, logger *slog.Logger) (*Catalog, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading catalog %s: %w", path, err)
	}
	c, err := ParseCatalog(raw, logger)
	if err != nil {
		return nil, fmt.Errorf("parsing catalog %s: %w", path, err)
	}
	return c, nil
}

// ParseCatalog строит Catalog из YAML-документа.
// Возвращает все найденные ошибки данных, объединённые через errors.Join.
func ParseCatalog(raw []byte, logger *slog.Logger) (*Catalog, error) {
	if logger == nil {
		logger = slog.Default()
	}

	var doc catalogFile
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("decoding yaml: %w", err)
	}

	c := &Catalog{
		abilities:   make(map[string][]*AbilityDefinition, len(doc.Abilities)),
		effects:     make(map[string]*EffectDefinition, len(doc.Effects)),
		fingerprint: blake2b.Sum256(raw),
		logger:      logger,
	}

	var errs []error
	for i := range doc.Effects {
		def, err := buildEffect(&doc.Effects[i])
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if _, dup := c.effects[def.ID]; dup {
			errs = append(errs, fmt.Errorf("effect %q: duplicate id", def.ID))
			continue
		}
		c.effects[def.ID] = def
	}

	for i := range doc.Abilities {
		levels, err := buildAbilityLevels(&doc.Abilities[i])
		if err != nil {
			errs = append(errs, err)
			continue
		}
		id := levels[0].ID
		if _, dup := c.abilities[id]; dup {
			errs = append(errs, fmt.Errorf("ability %q: duplicate id", id))
			continue
		}
		c.abilities[id] = levels
	}

	errs = append(errs, c.validateReferences()...)
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}

	logger.Info("loaded catalog",
		"abilities", len(c.abilities),
		"effects", len(c.effects),
		"fingerprint", c.Fingerprint())
	return c, nil
}

func buildEffect(e *effectEntry) (*EffectDefinition, error) {
	if e.ID == "" {
		return nil, errors.New("effect: empty id")
	}
	category, ok := ParseEffectCategory(e.Category)
	if !ok {
		return nil, fmt.Errorf("effect %q: unknown category %q", e.ID, e.Category)
	}

	def := &EffectDefinition{
		ID:            e.ID,
		Name:          e.Name,
		Level:         1,
		Category:      category,
		Consumes:      e.Consumes,
		DefaultOnFail: e.DefaultOnFail,
		BlocksCast:    e.BlocksCast,
		BlocksMove:    e.BlocksMovement,
	}
	if def.Name == "" {
		def.Name = def.ID
	}

	if err := fillValues(&def.values, e.Values, false); err != nil {
		return nil, fmt.Errorf("effect %q values: %w", e.ID, err)
	}
	if err := fillValues(&def.levelScaling, e.LevelScaling, true); err != nil {
		return nil, fmt.Errorf("effect %q level_scaling: %w", e.ID, err)
	}
	if err := fillValues(&def.stackScaling, e.StackScaling, true); err != nil {
		return nil, fmt.Errorf("effect %q stack_scaling: %w", e.ID, err)
	}
	if v, ok := def.values.Get(PropMaxStacks); ok && v < 1 {
		return nil, fmt.Errorf("effect %q: max_stacks must be >= 1, got %v", e.ID, v)
	}
	if category == CategoryShield && !def.values.Has(PropShield) && !def.values.Has(PropTickShield) {
		return nil, fmt.Errorf("effect %q: shield category without shield value", e.ID)
	}
	return def, nil
}

// fillValues переносит map из YAML в PropertyValues.
// Для таблиц масштабирования фактор <= -1 обнулил бы или перевернул значение — это ошибка данных.
func fillValues(dst *PropertyValues, src map[string]float64, scaling bool) error {
	for name, v := range src {
		p, err := ParseProperty(name)
		if err != nil {
			return err
		}
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("property %s: non-finite value", name)
		}
		if scaling && v <= -1 {
			return fmt.Errorf("property %s: scaling factor %v must be > -1", name, v)
		}
		dst.Set(p, v)
	}
	return nil
}

// buildAbilityLevels создаёт AbilityDefinition для каждого уровня из одной записи.
func buildAbilityLevels(e *abilityEntry) ([]*AbilityDefinition, error) {
	if e.ID == "" {
		return nil, errors.New("ability: empty id")
	}
	variant, ok := ParseVariant(e.Variant)
	if !ok {
		return nil, fmt.Errorf("ability %q: unknown variant %q", e.ID, e.Variant)
	}
	targeting, ok := ParseTargetMode(e.Targeting)
	if !ok {
		return nil, fmt.Errorf("ability %q: unknown targeting %q", e.ID, e.Targeting)
	}
	if e.CastAt < 0 || e.CastAt > 1 {
		return nil, fmt.Errorf("ability %q: cast_at %v outside [0,1]", e.ID, e.CastAt)
	}
	if e.Animation < 0 || e.Cooldown < 0 || e.Duration < 0 {
		return nil, fmt.Errorf("ability %q: negative timing", e.ID)
	}
	if e.MaxHits < 0 || e.Cost < 0 || e.Gain < 0 || e.Damage < 0 || e.Heal < 0 {
		return nil, fmt.Errorf("ability %q: negative numeric field", e.ID)
	}
	if e.LevelFactor <= -1 {
		return nil, fmt.Errorf("ability %q: level_factor %v must be > -1", e.ID, e.LevelFactor)
	}
	switch variant {
	case VariantZone:
		if e.RefreshInterval <= 0 {
			return nil, fmt.Errorf("ability %q: zone needs refresh_interval > 0", e.ID)
		}
	case VariantProjectile:
		if e.Speed <= 0 || e.Range <= 0 {
			return nil, fmt.Errorf("ability %q: projectile needs speed > 0 and range > 0", e.ID)
		}
	}

	levels := max(e.Levels, 1)
	out := make([]*AbilityDefinition, 0, levels)
	for idx := range levels {
		level := idx + 1
		scale := math.Pow(1+e.LevelFactor, float64(idx))
		name := e.Name
		if name == "" {
			name = e.ID
		}
		out = append(out, &AbilityDefinition{
			ID:              e.ID,
			Name:            name,
			Level:           level,
			MaxLevel:        levels,
			Variant:         variant,
			Targeting:       targeting,
			CastAt:          e.CastAt,
			Animation:       secondsToDuration(e.Animation),
			Cooldown:        secondsToDuration(e.Cooldown),
			MaxHits:         e.MaxHits,
			Cost:            e.Cost,
			Gain:            e.Gain,
			Damage:          int32(math.Round(float64(e.Damage) * scale)),
			Heal:            int32(math.Round(float64(e.Heal) * scale)),
			LevelFactor:     e.LevelFactor,
			EnemyEffects:    buildSpecs(e.EnemyEffects),
			AllyEffects:     buildSpecs(e.AllyEffects),
			OnHit:           e.OnHit,
			Radius:          e.Radius,
			Range:           e.Range,
			Speed:           e.Speed,
			JumpRange:       e.JumpRange,
			Duration:        secondsToDuration(e.Duration),
			RefreshInterval: secondsToDuration(e.RefreshInterval),
			ReapplyInterval: secondsToDuration(e.ReapplyInterval),
			AffectsCaster:   e.AffectsCaster,
			LocksMovement:   e.LocksMovement,
			AutoAttack:      e.AutoAttack,
		})
	}
	return out, nil
}

func buildSpecs(entries []specEntry) []EffectSpec {
	if len(entries) == 0 {
		return nil
	}
	specs := make([]EffectSpec, 0, len(entries))
	for _, s := range entries {
		specs = append(specs, EffectSpec{
			EffectID:   s.ID,
			Duration:   secondsToDuration(s.Duration),
			Stacks:     s.Stacks,
			SpeedBonus: s.SpeedBonus,
		})
	}
	return specs
}

// validateReferences проверяет, что все ссылки на эффекты и под-способности существуют.
func (c *Catalog) validateReferences() []error {
	var errs []error
	for _, id := range c.EffectIDs() {
		def := c.effects[id]
		if def.Consumes != "" {
			if _, ok := c.effects[def.Consumes]; !ok {
				errs = append(errs, fmt.Errorf("effect %q consumes %q: %w", id, def.Consumes, ErrUnknownIdentifier))
			}
		}
		if def.DefaultOnFail != "" {
			if _, ok := c.effects[def.DefaultOnFail]; !ok {
				errs = append(errs, fmt.Errorf("effect %q default_on_fail %q: %w", id, def.DefaultOnFail, ErrUnknownIdentifier))
			}
		}
	}
	for _, id := range c.AbilityIDs() {
		ab := c.abilities[id][0]
		for _, specs := range [][]EffectSpec{ab.EnemyEffects, ab.AllyEffects} {
			for _, s := range specs {
				if _, ok := c.effects[s.EffectID]; !ok {
					errs = append(errs, fmt.Errorf("ability %q effect %q: %w", id, s.EffectID, ErrUnknownIdentifier))
				}
			}
		}
		for _, sub := range ab.OnHit {
			if _, ok := c.abilities[sub]; !ok {
				errs = append(errs, fmt.Errorf("ability %q on_hit %q: %w", id, sub, ErrUnknownIdentifier))
			}
		}
	}
	return errs
}
