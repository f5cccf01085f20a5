package ordered

import (
	"bytes"
	"fmt"
	"io"

	"github.com/golang/snappy"
)

// Mismatch describes one cell whose packed byte disagrees with a from-
// scratch recomputation.
type Mismatch struct {
	Y, X       int
	CountOnly  bool // true if only bits 2..5 differ
	GotCount   int
	WantCount  int
	GotLeft    bool
	WantLeft   bool
}

// SelfCheck recomputes every cell's left bit and neighbour count from
// scratch and compares them against the live band, using the current ghost
// rows for the vertical neighbours at the band's boundary. It is meant for
// debug runs; production runs skip it.
func (e *Engine) SelfCheck() []Mismatch {
	top := e.exch.TopGhost()
	bottom := e.exch.BottomGhost()
	var mismatches []Mismatch
	for y := 0; y < e.band.Chunk; y++ {
		for x := 0; x < e.band.K; x++ {
			idx := e.idx(y, x)
			got := e.cells[idx]

			py, px := e.rowMajorPrev(y, x)
			wantLeft := e.cells[e.idx(py, px)].State()
			wantCount := e.countNeighbors(y, x, top, bottom)

			leftOK := got.Left() == wantLeft
			countOK := got.Count() == wantCount
			if leftOK && countOK {
				continue
			}
			mismatches = append(mismatches, Mismatch{
				Y: y, X: x,
				CountOnly: !countOK && leftOK,
				GotCount:  got.Count(), WantCount: wantCount,
				GotLeft: got.Left(), WantLeft: wantLeft,
			})
		}
	}
	return mismatches
}

// formatReport renders mismatches as one line per entry, in the same order
// SelfCheck returns them.
func formatReport(mismatches []Mismatch) []byte {
	var buf bytes.Buffer
	for _, m := range mismatches {
		kind := "mixed"
		if m.CountOnly {
			kind = "count-only"
		}
		fmt.Fprintf(&buf, "(%d,%d) %s count got=%d want=%d left got=%v want=%v\n",
			m.Y, m.X, kind, m.GotCount, m.WantCount, m.GotLeft, m.WantLeft)
	}
	return buf.Bytes()
}

// WriteReport snappy-compresses a textual rendering of mismatches and writes
// it to w, for debug runs that persist a self-check report to disk.
func WriteReport(w io.Writer, mismatches []Mismatch) error {
	_, err := w.Write(snappy.Encode(nil, formatReport(mismatches)))
	return err
}
