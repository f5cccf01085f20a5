package cell

import (
	"testing"

	"github.com/grailbio/testutil/assert"
)

func TestOrderedCellAccessors(t *testing.T) {
	c := NewOrderedCell(true, false, 5)
	assert.True(t, c.State())
	assert.False(t, c.Left())
	assert.EQ(t, c.Count(), 5)

	c.SetState(false)
	c.SetLeft(true)
	c.SetCount(2)
	assert.False(t, c.State())
	assert.True(t, c.Left())
	assert.EQ(t, c.Count(), 2)
}

func TestOrderedCellBumpCount(t *testing.T) {
	c := NewOrderedCell(false, false, 3)
	c.BumpCount(1)
	assert.EQ(t, c.Count(), 4)
	c.BumpCount(-2)
	assert.EQ(t, c.Count(), 2)
}

func TestNextStateBirthSurvival(t *testing.T) {
	assert.False(t, NextState(false, 2))
	assert.True(t, NextState(false, 3))
	assert.True(t, NextState(true, 2))
	assert.True(t, NextState(true, 3))
	assert.False(t, NextState(true, 1))
	assert.False(t, NextState(true, 4))
}

func TestLineIndependentBoundaries(t *testing.T) {
	assert.True(t, LineIndependent(0))
	assert.True(t, LineIndependent(3))
	assert.True(t, LineIndependent(20))
	assert.True(t, LineIndependent(63))

	for _, v := range []byte{4, 6, 7, 9, 10, 15, 16, 17} {
		assert.True(t, LineIndependent(v))
	}
	for _, v := range []byte{5, 8, 11, 12, 13, 14, 18, 19} {
		assert.False(t, LineIndependent(v))
	}
}

func TestFragmentFirstState(t *testing.T) {
	assert.True(t, FragmentFirstState(9))
	assert.True(t, FragmentFirstState(15))
	assert.False(t, FragmentFirstState(4))
	assert.False(t, FragmentFirstState(16))
}
