// Package snapshot decides which generations produce a snapshot and
// gathers every rank's projected 0/1 live-cell buffer (from the engine's
// Live) into one rank-ordered stream for PGM output.
package snapshot

import (
	"io"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/syncqueue"
)

// Gatherer reassembles procs concurrently-produced band buffers into one
// rank-ordered byte stream written to out, regardless of arrival order.
type Gatherer struct {
	queue *syncqueue.OrderedQueue
	out   io.Writer
	done  chan struct{}
	err   errors.Once
}

// NewGatherer starts a background goroutine that drains procs band buffers,
// in rank order, onto out.
func NewGatherer(procs int, out io.Writer) *Gatherer {
	g := &Gatherer{
		queue: syncqueue.NewOrderedQueue(procs),
		out:   out,
		done:  make(chan struct{}),
	}
	go g.drain()
	return g
}

func (g *Gatherer) drain() {
	defer close(g.done)
	for {
		entry, ok, err := g.queue.Next()
		if err != nil {
			g.err.Set(err)
			return
		}
		if !ok {
			return
		}
		buf := entry.([]byte)
		if _, err := g.out.Write(buf); err != nil {
			werr := errors.E(err, "snapshot: writing band")
			g.err.Set(werr)
			g.queue.Close(werr)
			return
		}
	}
}

// PutBand submits rank's projected live-cell buffer (one byte per cell,
// value 0 or 1). Bands may be submitted in any order.
func (g *Gatherer) PutBand(rank int, buf []byte) error {
	return g.queue.Insert(rank, buf)
}

// Close signals that no further bands will be submitted, waits for the
// writer to drain, and returns the first error encountered, if any.
func (g *Gatherer) Close() error {
	if err := g.queue.Close(nil); err != nil {
		g.err.Set(err)
	}
	<-g.done
	return g.err.Err()
}
