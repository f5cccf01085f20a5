package static

import (
	"testing"

	"github.com/grailbio/testutil/assert"

	"github.com/sarnelli/gol/halo"
	"github.com/sarnelli/gol/partition"
)

func newSingleRank(t *testing.T, k int, initial []byte) *Engine {
	band, err := partition.New(k, 1, 0)
	assert.NoError(t, err)
	link := halo.NewRing(1)[0]
	e, err := New(band, link, initial)
	assert.NoError(t, err)
	return e
}

func gridFromLive(k int, live map[[2]int]bool) []byte {
	buf := make([]byte, k*k)
	for pos, v := range live {
		if v {
			buf[pos[0]*k+pos[1]] = 1
		}
	}
	return buf
}

func liveSet(buf []byte, k int) map[[2]int]bool {
	out := map[[2]int]bool{}
	for y := 0; y < k; y++ {
		for x := 0; x < k; x++ {
			if buf[y*k+x] != 0 {
				out[[2]int{y, x}] = true
			}
		}
	}
	return out
}

// TestGliderScenarioA checks that a glider returns to an identical pattern,
// translated by one row and one column, after four generations.
func TestGliderScenarioA(t *testing.T) {
	const k = 8
	glider := map[[2]int]bool{
		{1, 2}: true,
		{2, 3}: true,
		{3, 1}: true, {3, 2}: true, {3, 3}: true,
	}
	buf := gridFromLive(k, glider)
	e := newSingleRank(t, k, buf)

	for i := 0; i < 4; i++ {
		assert.NoError(t, e.Step())
	}

	want := map[[2]int]bool{}
	for pos := range glider {
		want[[2]int{pos[0] + 1, pos[1] + 1}] = true
	}
	got := liveSet(e.Live(), k)
	assert.EQ(t, len(got), len(want))
	for pos := range want {
		assert.True(t, got[pos])
	}
}

// TestAllDeadScenarioD checks that an all-zero band stays all-zero across
// every generation.
func TestAllDeadScenarioD(t *testing.T) {
	const k = 10
	buf := make([]byte, k*k)
	e := newSingleRank(t, k, buf)
	for i := 0; i < 6; i++ {
		assert.NoError(t, e.Step())
		for _, v := range e.Live() {
			assert.EQ(t, v, byte(0))
		}
	}
}

// TestPentadecathlonScenarioC checks that a period-15 oscillator returns to
// its initial configuration at generation 15.
func TestPentadecathlonScenarioC(t *testing.T) {
	const k = 20
	// Pentadecathlon centred on the grid, standard orientation (vertical).
	cells := [][2]int{
		{4, 9}, {5, 9}, {6, 8}, {6, 10}, {7, 9}, {8, 9}, {9, 9}, {10, 9},
		{11, 8}, {11, 10}, {12, 9}, {13, 9},
	}
	live := map[[2]int]bool{}
	for _, c := range cells {
		live[c] = true
	}
	buf := gridFromLive(k, live)
	e := newSingleRank(t, k, buf)

	initial := liveSet(e.Live(), k)
	for i := 0; i < 15; i++ {
		assert.NoError(t, e.Step())
	}
	got := liveSet(e.Live(), k)
	assert.EQ(t, len(got), len(initial))
	for pos := range initial {
		assert.True(t, got[pos])
	}
}
