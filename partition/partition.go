// Package partition splits a k x k torus grid into one contiguous
// horizontal band per process, plus that process's ring neighbours.
package partition

import (
	"fmt"

	"github.com/grailbio/base/errors"
)

// HeaderSize is the fixed PGM header length used to compute a band's file
// offset for parallel I/O.
const HeaderSize = 23

// MinChunk is the fewest rows a band may own; see DESIGN.md "Open
// Questions" for why New rejects a partition that would leave any rank
// with fewer.
const MinChunk = 3

// Band describes the rows of the global grid owned by one rank, and that
// rank's ring neighbours.
type Band struct {
	K     int // global grid dimension (k x k)
	Procs int // number of ranks (processes) in the ring
	Rank  int // this rank, 0..Procs-1

	Chunk    int // my_chunk: rows owned by this rank
	FirstRow int // global row index of this band's local row 0

	Top    int // rank owning the band immediately above (ring predecessor)
	Bottom int // rank owning the band immediately below (ring successor)
}

// New computes the band owned by rank out of procs ranks partitioning a k x
// k grid:
//
//	chunk    = floor(k/procs)
//	mod      = k mod procs
//	my_chunk = chunk + (rank < mod ? 1 : 0)
//	firstRow = rank*chunk + min(rank, mod)
//	top      = (rank - 1 + procs) mod procs
//	bottom   = (rank + 1) mod procs
func New(k, procs, rank int) (Band, error) {
	if k <= 0 {
		return Band{}, errors.E(fmt.Errorf("partition: grid dimension k=%d must be positive", k))
	}
	if procs <= 0 {
		return Band{}, errors.E(fmt.Errorf("partition: process count %d must be positive", procs))
	}
	if rank < 0 || rank >= procs {
		return Band{}, errors.E(fmt.Errorf("partition: rank %d out of range [0,%d)", rank, procs))
	}

	chunk := k / procs
	mod := k % procs
	myChunk := chunk
	if rank < mod {
		myChunk++
	}
	minVal := rank
	if mod < minVal {
		minVal = mod
	}
	firstRow := rank*chunk + minVal

	if myChunk < MinChunk {
		return Band{}, errors.E(fmt.Errorf(
			"partition: rank %d owns only %d rows (< MinChunk=%d); refusing a partition where the ordered engine's interior loop collapses",
			rank, myChunk, MinChunk))
	}

	return Band{
		K:        k,
		Procs:    procs,
		Rank:     rank,
		Chunk:    myChunk,
		FirstRow: firstRow,
		Top:      (rank - 1 + procs) % procs,
		Bottom:   (rank + 1) % procs,
	}, nil
}

// FileOffset returns this band's byte offset into a PGM pixel payload.
func (b Band) FileOffset() int64 {
	return int64(HeaderSize) + int64(b.FirstRow)*int64(b.K)
}

// ByteLen returns the number of pixel bytes this band owns.
func (b Band) ByteLen() int64 {
	return int64(b.Chunk) * int64(b.K)
}

// Complete reports whether bands []Band{New(k,procs,0)..New(k,procs,procs-1)}
// tile the k x k grid without gaps or overlap. It is exported for use by
// tests and by cluster's startup validation.
func Complete(k int, bands []Band) bool {
	sum := 0
	next := 0
	for _, b := range bands {
		if b.FirstRow != next {
			return false
		}
		sum += b.Chunk
		next += b.Chunk
	}
	return sum == k
}
