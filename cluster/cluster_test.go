package cluster

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/grailbio/testutil/assert"

	"github.com/sarnelli/gol/partition"
	"github.com/sarnelli/gol/pgmio"
)

// wholeGridBand returns the single band covering a whole k x k grid, used
// by tests to read/write the grid's full pixel payload regardless of how
// cluster.Run itself partitions it across ranks.
func wholeGridBand(k int) partition.Band {
	b, err := partition.New(k, 1, 0)
	if err != nil {
		panic(err)
	}
	return b
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

func TestRunGliderAcrossRanksStatic(t *testing.T) {
	const k = 16
	dir := t.TempDir()
	path := filepath.Join(dir, "grid.pgm")

	grid, err := pgmio.CreateGrid(path, k)
	assert.NoError(t, err)

	glider := map[[2]int]bool{
		{1, 2}: true,
		{2, 3}: true,
		{3, 1}: true, {3, 2}: true, {3, 3}: true,
	}
	assert.NoError(t, grid.WriteBand(wholeGridBand(k), gridFromLive(k, glider)))

	cfg := Config{K: k, Procs: 4, Evolution: Static, Generations: 4, SnapshotPeriod: 1, SnapshotDir: filepath.Join(dir, "snaps")}
	assert.NoError(t, os.MkdirAll(cfg.SnapshotDir, 0755))

	stats, err := Run(cfg, grid)
	assert.NoError(t, err)
	assert.EQ(t, stats.Generations, 4)
	assert.EQ(t, stats.Procs, 4)
	assert.EQ(t, len(stats.RankElapsed), 4)

	final, err := grid.ReadBand(wholeGridBand(k))
	assert.NoError(t, err)
	assert.NoError(t, grid.Close())

	want := map[[2]int]bool{}
	for pos := range glider {
		want[[2]int{pos[0] + 1, pos[1] + 1}] = true
	}
	got := liveSet(final, k)
	assert.EQ(t, len(got), len(want))
	for pos := range want {
		assert.True(t, got[pos])
	}

	for _, gen := range []int{1, 2, 3, 4} {
		_, err := os.Stat(pgmio.SnapshotName(cfg.SnapshotDir, gen))
		assert.NoError(t, err)
	}
}

func TestRunGliderWithGzipSnapshots(t *testing.T) {
	const k = 16
	dir := t.TempDir()
	path := filepath.Join(dir, "grid.pgm")

	grid, err := pgmio.CreateGrid(path, k)
	assert.NoError(t, err)
	glider := map[[2]int]bool{
		{1, 2}: true,
		{2, 3}: true,
		{3, 1}: true, {3, 2}: true, {3, 3}: true,
	}
	assert.NoError(t, grid.WriteBand(wholeGridBand(k), gridFromLive(k, glider)))

	snapDir := filepath.Join(dir, "snaps")
	assert.NoError(t, os.MkdirAll(snapDir, 0755))
	cfg := Config{K: k, Procs: 2, Evolution: Static, Generations: 2, SnapshotPeriod: 1, SnapshotDir: snapDir, GzipSnapshots: true}

	_, err = Run(cfg, grid)
	assert.NoError(t, err)
	assert.NoError(t, grid.Close())

	for _, gen := range []int{1, 2} {
		info, err := os.Stat(pgmio.SnapshotName(snapDir, gen) + ".gz")
		assert.NoError(t, err)
		assert.True(t, info.Size() > 0)
	}
}

func TestRunOrderedSingleRank(t *testing.T) {
	const k = 12
	dir := t.TempDir()
	path := filepath.Join(dir, "grid.pgm")

	grid, err := pgmio.CreateGrid(path, k)
	assert.NoError(t, err)

	buf := make([]byte, k*k)
	buf[5*k+5] = 1
	assert.NoError(t, grid.WriteBand(wholeGridBand(k), buf))

	cfg := Config{K: k, Procs: 1, Evolution: Ordered, Generations: 1}
	stats, err := Run(cfg, grid)
	assert.NoError(t, err)
	assert.EQ(t, stats.Generations, 1)

	final, err := grid.ReadBand(wholeGridBand(k))
	assert.NoError(t, err)
	assert.NoError(t, grid.Close())
	for _, v := range final {
		assert.EQ(t, v, byte(0))
	}
}

func TestRunRejectsInvalidProcs(t *testing.T) {
	const k = 12
	dir := t.TempDir()
	grid, err := pgmio.CreateGrid(filepath.Join(dir, "grid.pgm"), k)
	assert.NoError(t, err)
	defer grid.Close()

	_, err = Run(Config{K: k, Procs: 0, Generations: 1}, grid)
	assert.True(t, err != nil)
}
