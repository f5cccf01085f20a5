package ordered

import (
	"github.com/sarnelli/gol/cell"
	"github.com/sarnelli/gol/golutil"
)

// DefaultStride is the minimum fragment width in columns, chosen wide
// enough that two adjacent fragments never share a cache line.
const DefaultStride = 128

// fragment is a contiguous run of columns [Start, Start+Len) dispatched to
// one goroutine.
type fragment struct {
	Start int
	Len   int
}

// buildFragments scans row (its pre-update byte values) and splits it into
// fragments at line-independent columns. Column 0 always starts the first
// fragment; the scan begins at column stride-1, so the first fragment is at
// least stride-1 columns wide and every later one at least stride.
func buildFragments(row []cell.OrderedCell, stride int) []fragment {
	k := len(row)
	if stride < 1 {
		stride = 1
	}
	positions := make([]int, 1, golutil.RoundUpPow2(k/stride+1))
	positions[0] = 0
	for i := stride - 1; i < k; i++ {
		if cell.LineIndependent(byte(row[i])) {
			positions = append(positions, i)
			i += stride - 1
		}
	}
	frags := make([]fragment, len(positions))
	for i, start := range positions {
		end := k
		if i+1 < len(positions) {
			end = positions[i+1]
		}
		frags[i] = fragment{Start: start, Len: end - start}
	}
	return frags
}
