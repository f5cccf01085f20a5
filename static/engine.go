// Package static implements the synchronous double-buffered evolution
// engine: every cell's next-generation bit is computed from the current
// generation's neighbour counts, so within a generation no cell ever
// observes another cell's update.
package static

import (
	"fmt"
	"runtime"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/traverse"

	"github.com/sarnelli/gol/cell"
	"github.com/sarnelli/gol/halo"
	"github.com/sarnelli/gol/partition"
)

// MinRowsPerTask is the minimum number of interior rows dispatched to a
// single traverse task, chosen so adjacent tasks don't share cache lines.
const MinRowsPerTask = 3

// Engine is the static evolution engine for one rank's band.
type Engine struct {
	band  partition.Band
	cells []cell.StaticCell // row-major, len = band.Chunk*band.K
	exch  *halo.Exchanger
	gen   int
}

// New builds a static Engine for band, seeded from initial (one byte per
// cell, 0 or 1, row-major, len == band.ByteLen()), and performs the
// bootstrap ghost-row handshake over link.
func New(band partition.Band, link halo.Link, initial []byte) (*Engine, error) {
	if int64(len(initial)) != band.ByteLen() {
		return nil, errors.E(fmt.Errorf("static: initial band has %d bytes, want %d", len(initial), band.ByteLen()))
	}
	cells := make([]cell.StaticCell, len(initial))
	for i, v := range initial {
		cells[i].SetAlive(cell.BitEven, v != 0)
	}
	e := &Engine{band: band, cells: cells, exch: halo.NewExchanger(link, band.K)}

	cols := band.K
	firstRow := projectRow(cells[:cols], cell.BitEven)
	lastRow := projectRow(cells[(band.Chunk-1)*cols:band.Chunk*cols], cell.BitEven)
	if err := e.exch.Bootstrap(firstRow, lastRow); err != nil {
		return nil, err
	}
	return e, nil
}

func projectRow(row []cell.StaticCell, mask byte) []byte {
	out := make([]byte, len(row))
	for i, c := range row {
		if c.Alive(mask) {
			out[i] = 1
		}
	}
	return out
}

// Band returns this engine's band geometry.
func (e *Engine) Band() partition.Band { return e.band }

// Generation returns the next generation number to be computed.
func (e *Engine) Generation() int { return e.gen }

// Live projects the current generation's live bits into a plain 0/1
// buffer.
func (e *Engine) Live() []byte {
	return projectRow(e.cells, cell.CurrentMask(e.gen))
}

// Close releases the engine's halo exchanger.
func (e *Engine) Close() error { return e.exch.Close() }

// Step computes one generation, following the canonical per-generation
// control flow: wait top halo, compute first row, post first-row send and
// next-top-ghost receive, compute interior, wait bottom halo, compute last
// row, post last-row send and next-bottom-ghost receive.
func (e *Engine) Step() error {
	current := cell.CurrentMask(e.gen)
	next := cell.NextMask(e.gen)
	chunk := e.band.Chunk

	if err := e.exch.WaitTopGhost(); err != nil {
		return err
	}
	if err := e.exch.WaitSendFirst(); err != nil {
		return err
	}
	e.computeRow(0, current, next, e.exch.TopGhost(), nil)
	if err := e.exch.PostFirstRow(projectRow(e.row(0), next)); err != nil {
		return err
	}

	if err := e.computeInterior(current, next); err != nil {
		return err
	}

	if err := e.exch.WaitBottomGhost(); err != nil {
		return err
	}
	if err := e.exch.WaitSendLast(); err != nil {
		return err
	}
	e.computeRow(chunk-1, current, next, nil, e.exch.BottomGhost())
	if err := e.exch.PostLastRow(projectRow(e.row(chunk-1), next)); err != nil {
		return err
	}

	e.gen++
	return nil
}

func (e *Engine) row(y int) []cell.StaticCell {
	cols := e.band.K
	return e.cells[y*cols : (y+1)*cols]
}

// computeInterior dispatches rows 1..chunk-2 across traverse tasks sized to
// at least MinRowsPerTask rows each. Go's runtime scheduler already
// load-balances goroutines across OS threads dynamically, so a handful of
// evenly-sized static blocks (each >= MinRowsPerTask rows) is enough to
// avoid both false sharing and head-of-line idling (see DESIGN.md).
func (e *Engine) computeInterior(current, next byte) error {
	chunk := e.band.Chunk
	interior := chunk - 2
	if interior <= 0 {
		return nil
	}
	nTasks := interior / MinRowsPerTask
	if nTasks < 1 {
		nTasks = 1
	}
	if cpu := runtime.NumCPU(); nTasks > cpu {
		nTasks = cpu
	}
	return traverse.Each(nTasks, func(t int) error {
		startY := 1 + (t*interior)/nTasks
		endY := 1 + ((t+1)*interior)/nTasks
		for y := startY; y < endY; y++ {
			e.computeRow(y, current, next, nil, nil)
		}
		return nil
	})
}

// computeRow applies the birth/survival rule to row y: a cell survives with
// 2 or 3 live current-bit neighbours, is born with exactly 3, dies
// otherwise. Column wrap is a torus; row 0 and the band's last row read
// their vertical neighbours from the supplied ghost rows instead of the
// band.
func (e *Engine) computeRow(y int, current, next byte, topGhost, bottomGhost []byte) {
	cols := e.band.K
	row := e.row(y)

	var aboveAlive func(x int) bool
	if y == 0 {
		aboveAlive = func(x int) bool { return topGhost[x] != 0 }
	} else {
		above := e.row(y - 1)
		aboveAlive = func(x int) bool { return above[x].Alive(current) }
	}
	var belowAlive func(x int) bool
	if y == e.band.Chunk-1 {
		belowAlive = func(x int) bool { return bottomGhost[x] != 0 }
	} else {
		below := e.row(y + 1)
		belowAlive = func(x int) bool { return below[x].Alive(current) }
	}

	for x := 0; x < cols; x++ {
		left := x - 1
		if left < 0 {
			left = cols - 1
		}
		right := x + 1
		if right >= cols {
			right = 0
		}
		nei := 0
		if aboveAlive(left) {
			nei++
		}
		if aboveAlive(x) {
			nei++
		}
		if aboveAlive(right) {
			nei++
		}
		if row[left].Alive(current) {
			nei++
		}
		if row[right].Alive(current) {
			nei++
		}
		if belowAlive(left) {
			nei++
		}
		if belowAlive(x) {
			nei++
		}
		if belowAlive(right) {
			nei++
		}
		alive := row[x].Alive(current)
		row[x].SetAlive(next, cell.NextStatic(alive, nei))
	}
}
