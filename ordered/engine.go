// Package ordered implements the in-place ordered evolution engine: its
// output matches a strict row-major sequential update (each cell sees the
// already-updated state of every cell that precedes it in scan order), but
// the band's interior rows are still computed with thread parallelism via
// a line-independent fragment decomposition.
package ordered

import (
	"fmt"
	"runtime"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/traverse"

	"github.com/sarnelli/gol/cell"
	"github.com/sarnelli/gol/halo"
	"github.com/sarnelli/gol/partition"
)

// Engine is the ordered evolution engine for one rank's band.
type Engine struct {
	band   partition.Band
	cells  []cell.OrderedCell // row-major, len = band.Chunk*band.K
	exch   *halo.Exchanger
	gen    int
	stride int
}

// New builds an ordered Engine for band, seeded from initial (one byte per
// cell, 0 or 1, row-major, len == band.ByteLen()), bootstraps the halo
// handshake over link, and runs the one-time initialization pass that
// computes every cell's left-neighbour bit and neighbour count from
// scratch. stride <= 0 uses DefaultStride.
func New(band partition.Band, link halo.Link, initial []byte, stride int) (*Engine, error) {
	if int64(len(initial)) != band.ByteLen() {
		return nil, errors.E(fmt.Errorf("ordered: initial band has %d bytes, want %d", len(initial), band.ByteLen()))
	}
	if band.Chunk < partition.MinChunk {
		return nil, errors.E(fmt.Errorf("ordered: band has only %d rows, need at least %d", band.Chunk, partition.MinChunk))
	}
	if stride <= 0 {
		stride = DefaultStride
	}

	cells := make([]cell.OrderedCell, len(initial))
	for i, v := range initial {
		cells[i].SetState(v != 0)
	}
	e := &Engine{band: band, cells: cells, exch: halo.NewExchanger(link, band.K), stride: stride}

	cols := band.K
	firstRow := projectState(cells[:cols])
	lastRow := projectState(cells[(band.Chunk-1)*cols : band.Chunk*cols])
	if err := e.exch.Bootstrap(firstRow, lastRow); err != nil {
		return nil, err
	}
	e.initialize()
	return e, nil
}

func projectState(row []cell.OrderedCell) []byte {
	out := make([]byte, len(row))
	for i, c := range row {
		if c.State() {
			out[i] = 1
		}
	}
	return out
}

// Band returns this engine's band geometry.
func (e *Engine) Band() partition.Band { return e.band }

// Generation returns the next generation number to be computed.
func (e *Engine) Generation() int { return e.gen }

// Live projects the current state bits into a plain 0/1 buffer.
func (e *Engine) Live() []byte { return projectState(e.cells) }

// Close releases the engine's halo exchanger.
func (e *Engine) Close() error { return e.exch.Close() }

func (e *Engine) idx(y, x int) int { return y*e.band.K + x }

func (e *Engine) row(y int) []cell.OrderedCell {
	cols := e.band.K
	return e.cells[y*cols : (y+1)*cols]
}

func (e *Engine) wrapCol(x int) int {
	k := e.band.K
	if x < 0 {
		return x + k
	}
	if x >= k {
		return x - k
	}
	return x
}

// aliveLocal reports whether (y, x) is live, reading topGhost/bottomGhost
// for y outside [0, chunk).
func (e *Engine) aliveLocal(y, x int, topGhost, bottomGhost []byte) bool {
	chunk := e.band.Chunk
	x = e.wrapCol(x)
	switch {
	case y < 0:
		return topGhost[x] != 0
	case y >= chunk:
		return bottomGhost[x] != 0
	default:
		return e.cells[e.idx(y, x)].State()
	}
}

// countNeighbors computes the live-neighbour count of (y, x) from scratch,
// reading ghost rows at the band's top/bottom boundary.
func (e *Engine) countNeighbors(y, x int, topGhost, bottomGhost []byte) int {
	n := 0
	for dy := -1; dy <= 1; dy++ {
		for dx := -1; dx <= 1; dx++ {
			if dy == 0 && dx == 0 {
				continue
			}
			if e.aliveLocal(y+dy, x+dx, topGhost, bottomGhost) {
				n++
			}
		}
	}
	return n
}

// rowMajorPrev returns the coordinates of the cell immediately preceding
// (y, x) in row-major scan order, wrapping within the band: the
// predecessor of (0, 0) is (chunk-1, k-1).
func (e *Engine) rowMajorPrev(y, x int) (int, int) {
	if x > 0 {
		return y, x - 1
	}
	if y > 0 {
		return y - 1, e.band.K - 1
	}
	return e.band.Chunk - 1, e.band.K - 1
}

// rowMajorNext is the inverse of rowMajorPrev.
func (e *Engine) rowMajorNext(y, x int) (int, int) {
	if x < e.band.K-1 {
		return y, x + 1
	}
	if y < e.band.Chunk-1 {
		return y + 1, 0
	}
	return 0, 0
}

// initialize computes every cell's left bit and neighbour count from
// scratch, using the ghost rows populated by Bootstrap. It is run once,
// before generation 0; thereafter both fields are maintained incrementally.
func (e *Engine) initialize() {
	top := e.exch.TopGhost()
	bottom := e.exch.BottomGhost()
	for y := 0; y < e.band.Chunk; y++ {
		for x := 0; x < e.band.K; x++ {
			py, px := e.rowMajorPrev(y, x)
			left := e.cells[e.idx(py, px)].State()
			if y == 0 && x == 0 {
				left = e.cells[e.idx(e.band.Chunk-1, e.band.K-1)].State()
			}
			idx := e.idx(y, x)
			e.cells[idx].SetLeft(left)
			e.cells[idx].SetCount(e.countNeighbors(y, x, top, bottom))
		}
	}
}

// bumpNeighborCounts adds diff to the packed neighbour count of every one
// of (y, x)'s eight geometric neighbours that lies within this band.
// skipSameRowLeft, when set, leaves the same-row left neighbour untouched:
// that neighbour is the last cell of the previous parallel fragment, owned
// by another goroutine, and its count must still reflect this cell's old
// state when it is updated; repairFragmentTail recomputes it after the
// parallel pass.
func (e *Engine) bumpNeighborCounts(y, x, diff int, skipSameRowLeft bool) {
	chunk := e.band.Chunk
	left := e.wrapCol(x - 1)
	right := e.wrapCol(x + 1)
	if y > 0 {
		above := e.row(y - 1)
		above[left].BumpCount(diff)
		above[x].BumpCount(diff)
		above[right].BumpCount(diff)
	}
	row := e.row(y)
	if !skipSameRowLeft {
		row[left].BumpCount(diff)
	}
	row[right].BumpCount(diff)
	if y < chunk-1 {
		below := e.row(y + 1)
		below[left].BumpCount(diff)
		below[x].BumpCount(diff)
		below[right].BumpCount(diff)
	}
}

// updateCellGeneral updates (y, x) with the general birth/survival rule,
// applying the full incremental bump protocol on state change.
func (e *Engine) updateCellGeneral(y, x int, skipSameRowLeft bool) {
	idx := e.idx(y, x)
	old := e.cells[idx]
	newState := cell.NextState(old.State(), old.Count())
	e.applyTransition(y, x, old, newState, skipSameRowLeft)
}

// updateFragmentFirst updates the first cell of a non-initial fragment: its
// new state is read directly off the pre-update byte (the line-independent
// guarantee), and the same-row left neighbour is never bumped, since it
// belongs to the previous fragment's thread.
func (e *Engine) updateFragmentFirst(y, x int) {
	idx := e.idx(y, x)
	old := e.cells[idx]
	newState := cell.FragmentFirstState(byte(old))
	e.applyTransition(y, x, old, newState, true)
}

func (e *Engine) applyTransition(y, x int, old cell.OrderedCell, newState bool, skipSameRowLeft bool) {
	diff := 0
	switch {
	case newState && !old.State():
		diff = 1
	case !newState && old.State():
		diff = -1
	}
	if diff != 0 {
		e.bumpNeighborCounts(y, x, diff, skipSameRowLeft)
		ny, nx := e.rowMajorNext(y, x)
		next := &e.cells[e.idx(ny, nx)]
		next.SetLeft(!next.Left())
	}
	e.cells[e.idx(y, x)].SetState(newState)
}

// repairFragmentTail recomputes bits 2..5 of (y, x) -- the last cell of a
// fragment -- from scratch, undoing the effect of the suppressed
// same-row-left bump at the next fragment's first cell.
func (e *Engine) repairFragmentTail(y, x int, topGhost, bottomGhost []byte) {
	idx := e.idx(y, x)
	e.cells[idx].SetCount(e.countNeighbors(y, x, topGhost, bottomGhost))
}

// updateBorderRow serially updates row y (0 or chunk-1), whose count field
// is recomputed from scratch each generation since the ghost row it
// borders is replaced wholesale between generations rather than bumped.
func (e *Engine) updateBorderRow(y int, topGhost, bottomGhost []byte) {
	for x := 0; x < e.band.K; x++ {
		idx := e.idx(y, x)
		e.cells[idx].SetCount(e.countNeighbors(y, x, topGhost, bottomGhost))
	}
	for x := 0; x < e.band.K; x++ {
		e.updateCellGeneral(y, x, false)
	}
}

// updateInteriorRow updates row y (1 <= y <= chunk-2) via the
// line-independent fragment decomposition: the table is built from row y's
// own pre-update bytes, which already carry up-to-date neighbour counts
// from row y-1's completion (row y-1's updates bump the counts of rows
// y-2, y-1 and y). Fragments are then dispatched in parallel to update row
// y, and finally each fragment's last cell has its count field repaired
// from scratch.
func (e *Engine) updateInteriorRow(y int) error {
	frags := buildFragments(e.row(y), e.stride)
	nTasks := len(frags)
	if cpu := runtime.NumCPU(); nTasks > cpu {
		nTasks = cpu
	}
	if nTasks < 1 {
		nTasks = 1
	}
	if err := traverse.Each(nTasks, func(t int) error {
		for fi := t; fi < len(frags); fi += nTasks {
			f := frags[fi]
			for x := f.Start; x < f.Start+f.Len; x++ {
				if x == f.Start && fi != 0 {
					e.updateFragmentFirst(y, x)
				} else {
					e.updateCellGeneral(y, x, false)
				}
			}
		}
		return nil
	}); err != nil {
		return err
	}

	top := e.exch.TopGhost()
	bottom := e.exch.BottomGhost()
	for _, f := range frags {
		last := f.Start + f.Len - 1
		e.repairFragmentTail(y, last, top, bottom)
	}
	return nil
}

// Step computes one generation, following the ordered engine's per-
// generation control flow: compute row 0, release it to the halo exchange,
// update interior rows via fragment parallelism, compute the last row, and
// release it.
func (e *Engine) Step() error {
	if err := e.exch.WaitTopGhost(); err != nil {
		return err
	}
	if err := e.exch.WaitSendFirst(); err != nil {
		return err
	}
	e.updateBorderRow(0, e.exch.TopGhost(), e.exch.BottomGhost())
	if err := e.exch.PostFirstRow(projectState(e.row(0))); err != nil {
		return err
	}

	for y := 1; y <= e.band.Chunk-2; y++ {
		if err := e.updateInteriorRow(y); err != nil {
			return err
		}
	}

	if err := e.exch.WaitBottomGhost(); err != nil {
		return err
	}
	if err := e.exch.WaitSendLast(); err != nil {
		return err
	}
	bottom := e.exch.BottomGhost()
	if e.band.Procs == 1 {
		// A single band is the whole torus: its row 0 precedes the last row
		// in scan order, so the last row reads row 0's updated state rather
		// than the ghost copy taken before this generation.
		bottom = projectState(e.row(0))
	}
	e.updateBorderRow(e.band.Chunk-1, e.exch.TopGhost(), bottom)
	if err := e.exch.PostLastRow(projectState(e.row(e.band.Chunk - 1))); err != nil {
		return err
	}

	e.gen++
	return nil
}
