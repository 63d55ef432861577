package data

import (
	"fmt"
	"math"
	"time"
)

// Property — перечисление числовых полей EffectDefinition.
// Значения хранятся в массиве, индексированном Property (без reflection).
type Property int8

const (
	PropMaxStacks Property = iota
	PropShield
	PropResistanceFix
	PropResistancePercent
	PropDamage
	PropBonusDamage
	PropBonusDamagePercent
	PropTickInterval
	PropTickDamage
	PropTickHeal
	PropTickShield
	PropSpeedBonus
	PropCastSpeed
	PropAttackSpeed
	PropLifeSteal
	PropDuration

	propertyCount
)

type propertyInfo struct {
	name    string
	integer bool
}

// propertyTable — accessor table, одна запись на Property.
var propertyTable = [propertyCount]propertyInfo{
	PropMaxStacks:          {name: "max_stacks", integer: true},
	PropShield:             {name: "shield", integer: true},
	PropResistanceFix:      {name: "resistance_fix", integer: true},
	PropResistancePercent:  {name: "resistance_percent"},
	PropDamage:             {name: "damage", integer: true},
	PropBonusDamage:        {name: "bonus_damage", integer: true},
	PropBonusDamagePercent: {name: "bonus_damage_percent"},
	PropTickInterval:       {name: "tick_interval"},
	PropTickDamage:         {name: "tick_damage", integer: true},
	PropTickHeal:           {name: "tick_heal", integer: true},
	PropTickShield:         {name: "tick_shield", integer: true},
	PropSpeedBonus:         {name: "speed_bonus"},
	PropCastSpeed:          {name: "cast_speed"},
	PropAttackSpeed:        {name: "attack_speed"},
	PropLifeSteal:          {name: "life_steal"},
	PropDuration:           {name: "duration"},
}

var propertyByName = func() map[string]Property {
	m := make(map[string]Property, propertyCount)
	for p := range propertyCount {
		m[propertyTable[p].name] = p
	}
	return m
}()

// ParseProperty converts a catalog key ("tick_damage") to a Property.
func ParseProperty(name string) (Property, error) {
	p, ok := propertyByName[name]
	if !ok {
		return 0, fmt.Errorf("unknown property %q", name)
	}
	return p, nil
}

// Valid reports whether p is one of the enumerated properties.
func (p Property) Valid() bool {
	return p >= 0 && p < propertyCount
}

// IsInteger reports whether scaled values of p are rounded to whole numbers.
func (p Property) IsInteger() bool {
	return p.Valid() && propertyTable[p].integer
}

func (p Property) String() string {
	if !p.Valid() {
		return fmt.Sprintf("Property(%d)", int8(p))
	}
	return propertyTable[p].name
}

// Properties returns all properties in enum order.
func Properties() []Property {
	out := make([]Property, 0, propertyCount)
	for p := range propertyCount {
		out = append(out, p)
	}
	return out
}

// PropertyValues — фиксированная таблица значений по Property плюс битовая маска заданных.
// Value type: копируется вместе с определением.
type PropertyValues struct {
	vals [propertyCount]float64
	set  uint32
}

// Get returns the value for p and whether it was explicitly defined.
// Unknown or undefined properties yield (0, false).
func (v *PropertyValues) Get(p Property) (float64, bool) {
	if !p.Valid() || v.set&(1<<uint(p)) == 0 {
		return 0, false
	}
	return v.vals[p], true
}

// Has reports whether p was explicitly defined.
func (v *PropertyValues) Has(p Property) bool {
	_, ok := v.Get(p)
	return ok
}

// Set defines p. Invalid properties are ignored.
func (v *PropertyValues) Set(p Property, val float64) {
	if !p.Valid() {
		return
	}
	v.vals[p] = val
	v.set |= 1 << uint(p)
}

// Len returns the number of defined properties.
func (v *PropertyValues) Len() int {
	n := 0
	for p := range propertyCount {
		if v.set&(1<<uint(p)) != 0 {
			n++
		}
	}
	return n
}

// secondsToDuration converts catalog seconds to a Duration rounded to the nanosecond.
func secondsToDuration(s float64) time.Duration {
	return time.Duration(math.Round(s * float64(time.Second)))
}
