package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestActor() *Actor {
	return NewActor(ActorConfig{
		ID:        1,
		Name:      "Mage",
		Team:      1,
		Level:     3,
		MaxHP:     100,
		MaxEnergy: 50,
		Position:  Pt(10, 20),
		Radius:    0.5,
		Abilities: map[string]int32{"fireball": 2, "nova": 0},
	}, nil)
}

func TestNewActor(t *testing.T) {
	a := newTestActor()

	assert.Equal(t, uint32(1), a.ObjectID())
	assert.True(t, a.IsAlive())
	assert.Equal(t, int32(100), a.HP())
	assert.Equal(t, int32(50), a.Energy())
	assert.Equal(t, Pt(10, 20), a.Position())
	assert.Equal(t, []string{"fireball", "nova"}, a.Abilities())

	lvl, ok := a.AbilityLevel("nova")
	require.True(t, ok)
	assert.Equal(t, int32(1), lvl, "level floors at 1")

	_, ok = a.AbilityLevel("unknown")
	assert.False(t, ok)
	require.NotNil(t, a.Effects())
	assert.Equal(t, 0, a.Effects().Len())
}

func TestActor_HP(t *testing.T) {
	a := newTestActor()

	assert.Equal(t, int32(30), a.ReduceHP(30))
	assert.Equal(t, int32(0), a.ReduceHP(-5))
	assert.Equal(t, int32(20), a.RestoreHP(50), "heal clamped to max")

	assert.Equal(t, int32(100), a.ReduceHP(500))
	assert.False(t, a.IsAlive())
	assert.Equal(t, int32(0), a.RestoreHP(10), "dead actors are not healed")
	assert.Equal(t, int32(0), a.ReduceHP(10))
}

func TestActor_Energy(t *testing.T) {
	a := newTestActor()

	assert.True(t, a.SpendEnergy(20))
	assert.False(t, a.SpendEnergy(31))
	assert.Equal(t, int32(30), a.Energy(), "failed spend leaves energy untouched")
	assert.True(t, a.SpendEnergy(0))

	assert.Equal(t, int32(20), a.RestoreEnergy(100))
	assert.Equal(t, int32(50), a.Energy())
}

func TestActor_Teams(t *testing.T) {
	a := newTestActor()
	ally := NewActor(ActorConfig{ID: 2, Team: 1, MaxHP: 10}, nil)
	enemy := NewActor(ActorConfig{ID: 3, Team: 2, MaxHP: 10}, nil)

	assert.True(t, a.IsAlly(ally))
	assert.True(t, a.IsAlly(a))
	assert.True(t, a.IsEnemy(enemy))
	assert.False(t, a.IsEnemy(ally))
}
