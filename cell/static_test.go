package cell

import (
	"testing"

	"github.com/grailbio/testutil/assert"
)

func TestCurrentNextMask(t *testing.T) {
	assert.EQ(t, CurrentMask(0), BitEven)
	assert.EQ(t, NextMask(0), BitOdd)
	assert.EQ(t, CurrentMask(1), BitOdd)
	assert.EQ(t, NextMask(1), BitEven)
}

func TestStaticCellAliveSetAlive(t *testing.T) {
	var c StaticCell
	c.SetAlive(BitEven, true)
	assert.True(t, c.Alive(BitEven))
	assert.False(t, c.Alive(BitOdd))

	c.SetAlive(BitOdd, true)
	assert.True(t, c.Alive(BitOdd))

	c.SetAlive(BitEven, false)
	assert.False(t, c.Alive(BitEven))
	assert.True(t, c.Alive(BitOdd))
}

func TestNextStaticRule(t *testing.T) {
	assert.False(t, NextStatic(false, 2))
	assert.True(t, NextStatic(false, 3))
	assert.True(t, NextStatic(true, 2))
	assert.True(t, NextStatic(true, 3))
	assert.False(t, NextStatic(true, 4))
	assert.False(t, NextStatic(false, 0))
}
