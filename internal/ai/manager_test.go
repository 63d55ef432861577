package ai

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const dt = 100 * time.Millisecond

type countingAI struct {
	ticks   *[]uint32
	id      uint32
	running bool
}

func (c *countingAI) Start()                      { c.running = true }
func (c *countingAI) Stop()                       { c.running = false }
func (c *countingAI) CurrentIntention() Intention { return IntentionIdle }
func (c *countingAI) Tick()                       { *c.ticks = append(*c.ticks, c.id) }

func TestTickManager_RegisterUnregister(t *testing.T) {
	mgr := NewTickManager(nil)
	var ticks []uint32
	a := &countingAI{ticks: &ticks, id: 1}

	mgr.Register(1, a)
	assert.True(t, a.running)
	assert.Equal(t, 1, mgr.Count())

	c, err := mgr.GetController(1)
	require.NoError(t, err)
	assert.Same(t, a, c)

	mgr.Unregister(1)
	assert.False(t, a.running)
	assert.Zero(t, mgr.Count())

	_, err = mgr.GetController(1)
	assert.Error(t, err)

	mgr.Unregister(1)
}

func TestTickManager_TicksInRegistrationOrder(t *testing.T) {
	mgr := NewTickManager(nil)
	var ticks []uint32
	for _, id := range []uint32{3, 1, 2} {
		mgr.Register(id, &countingAI{ticks: &ticks, id: id})
	}

	mgr.TickAll(1)
	assert.Equal(t, []uint32{3, 1, 2}, ticks)

	mgr.Unregister(1)
	ticks = ticks[:0]
	mgr.TickAll(2)
	assert.Equal(t, []uint32{3, 2}, ticks)
}

func TestTickManager_RegisterReplaces(t *testing.T) {
	mgr := NewTickManager(nil)
	var ticks []uint32
	first := &countingAI{ticks: &ticks, id: 1}
	second := &countingAI{ticks: &ticks, id: 10}

	mgr.Register(1, first)
	mgr.Register(1, second)

	assert.False(t, first.running)
	assert.True(t, second.running)
	assert.Equal(t, 1, mgr.Count())

	mgr.TickAll(1)
	assert.Equal(t, []uint32{10}, ticks)
}
