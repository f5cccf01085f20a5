// Package halo implements the halo-exchange protocol: a ring of ranks
// refreshes two ghost rows per generation via paired non-blocking sends and
// receives, overlapping boundary communication with interior computation.
//
// The protocol is expressed as a small message-passing abstraction (Link)
// rather than raw channel operations, since every caller needs the same
// outstanding-operation bookkeeping regardless of transport. cluster wires
// concrete Links between goroutines playing the role of ranks; no
// ready-made point-to-point messaging library in the example corpus fits a
// same-process ring topology, so Link's production implementation
// (ChanLink) is built on buffered channels, the idiomatic Go substitute for
// non-blocking point-to-point calls between processes (see DESIGN.md).
package halo

import (
	"fmt"
	"sync"

	"github.com/grailbio/base/errors"
)

// Tag fixes the two-tag discipline uniformly: every message is tagged by
// the direction the row content is travelling, independent of which rank
// happens to be sending or receiving it.
type Tag int

const (
	// TagDown labels a row moving downward through the ring -- the row a
	// rank sends to its bottom neighbour, and the ghost a rank receives
	// from its top neighbour.
	TagDown Tag = 0
	// TagUp labels a row moving upward through the ring -- the row a rank
	// sends to its top neighbour, and the ghost a rank receives from its
	// bottom neighbour.
	TagUp Tag = 1
)

func (t Tag) String() string {
	if t == TagDown {
		return "down"
	}
	return "up"
}

// Message is one halo payload in flight.
type Message struct {
	Tag  Tag
	Data []byte
}

// Handle is a posted non-blocking send or receive; Wait blocks until it
// completes and returns its error, if any.
type Handle interface {
	Wait() error
}

// Link is one rank's view of the ring: it can have at most one send and one
// receive in flight per direction at a time; posting in a direction whose
// previous operation has not completed yet is a protocol error. ChanLink
// marks an operation done when it completes, not when it is awaited, so a
// repost after completion but before Wait is accepted.
type Link interface {
	// PostSendUp sends row to the top neighbour, tagged TagUp.
	PostSendUp(row []byte) (Handle, error)
	// PostSendDown sends row to the bottom neighbour, tagged TagDown.
	PostSendDown(row []byte) (Handle, error)
	// PostRecvUp receives into `into` from the top neighbour; the message
	// must be tagged TagDown.
	PostRecvUp(into []byte) (Handle, error)
	// PostRecvDown receives into `into` from the bottom neighbour; the
	// message must be tagged TagUp.
	PostRecvDown(into []byte) (Handle, error)
	// Close releases the link. It is an error to Close a link with an
	// operation still in flight.
	Close() error
}

type handle struct {
	done chan error
}

func (h *handle) Wait() error { return <-h.done }

// ChanLink is a Link implemented with buffered Go channels connecting a
// rank to its two ring neighbours -- the in-process stand-in for an MPI
// rank's non-blocking point-to-point calls. NewRing wires a ring of
// ChanLinks, one per simulated rank.
type ChanLink struct {
	toTop    chan<- Message
	toBottom chan<- Message
	fromTop  <-chan Message
	fromBottom <-chan Message

	mu                                                             sync.Mutex
	sendUpPending, sendDownPending, recvUpPending, recvDownPending bool
}

// NewChanLink builds a ChanLink from the four channel endpoints connecting
// this rank to its ring neighbours. NewRing constructs these so that one
// rank's toTop/fromTop pair matches its top neighbour's toBottom/fromBottom
// pair, and vice versa.
func NewChanLink(toTop, toBottom chan<- Message, fromTop, fromBottom <-chan Message) *ChanLink {
	return &ChanLink{toTop: toTop, toBottom: toBottom, fromTop: fromTop, fromBottom: fromBottom}
}

func (l *ChanLink) post(pending *bool, tag Tag, data []byte, out chan<- Message) (Handle, error) {
	l.mu.Lock()
	if *pending {
		l.mu.Unlock()
		return nil, errors.E(fmt.Errorf("halo: operation already pending in this direction; must Wait before reposting"))
	}
	*pending = true
	l.mu.Unlock()

	buf := append([]byte(nil), data...)
	h := &handle{done: make(chan error, 1)}
	go func() {
		out <- Message{Tag: tag, Data: buf}
		l.mu.Lock()
		*pending = false
		l.mu.Unlock()
		h.done <- nil
	}()
	return h, nil
}

func (l *ChanLink) recv(pending *bool, want Tag, into []byte, in <-chan Message) (Handle, error) {
	l.mu.Lock()
	if *pending {
		l.mu.Unlock()
		return nil, errors.E(fmt.Errorf("halo: operation already pending in this direction; must Wait before reposting"))
	}
	*pending = true
	l.mu.Unlock()

	h := &handle{done: make(chan error, 1)}
	go func() {
		m := <-in
		l.mu.Lock()
		*pending = false
		l.mu.Unlock()
		if m.Tag != want {
			h.done <- errors.E(fmt.Errorf("halo: protocol error: expected tag %v, got %v", want, m.Tag))
			return
		}
		if len(m.Data) != len(into) {
			h.done <- errors.E(fmt.Errorf("halo: protocol error: expected %d bytes, got %d", len(into), len(m.Data)))
			return
		}
		copy(into, m.Data)
		h.done <- nil
	}()
	return h, nil
}

// PostSendUp implements Link.
func (l *ChanLink) PostSendUp(row []byte) (Handle, error) {
	return l.post(&l.sendUpPending, TagUp, row, l.toTop)
}

// PostSendDown implements Link.
func (l *ChanLink) PostSendDown(row []byte) (Handle, error) {
	return l.post(&l.sendDownPending, TagDown, row, l.toBottom)
}

// PostRecvUp implements Link.
func (l *ChanLink) PostRecvUp(into []byte) (Handle, error) {
	return l.recv(&l.recvUpPending, TagDown, into, l.fromTop)
}

// PostRecvDown implements Link.
func (l *ChanLink) PostRecvDown(into []byte) (Handle, error) {
	return l.recv(&l.recvDownPending, TagUp, into, l.fromBottom)
}

// Close implements Link. ChanLink does not own its channels (NewRing
// creates them), so Close only checks that nothing is left in flight.
func (l *ChanLink) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.sendUpPending || l.sendDownPending || l.recvUpPending || l.recvDownPending {
		return errors.E(fmt.Errorf("halo: Close called with an outstanding operation"))
	}
	return nil
}

// NewRing builds procs ChanLinks wired into a ring: rank r's top neighbour
// is (r-1+procs)%procs and its bottom neighbour is (r+1)%procs, matching
// partition.New's neighbour assignment. For procs == 1 the single rank's
// links loop back to itself, which correctly realises the torus wrap of a
// single band (its own top ghost is its own last row, its own bottom ghost
// is its own first row).
func NewRing(procs int) []*ChanLink {
	down := make([]chan Message, procs) // down[r]: rank r -> rank r's bottom neighbour
	up := make([]chan Message, procs)   // up[r]: rank r -> rank r's top neighbour
	for i := range down {
		down[i] = make(chan Message, 1)
		up[i] = make(chan Message, 1)
	}
	links := make([]*ChanLink, procs)
	for r := 0; r < procs; r++ {
		top := (r - 1 + procs) % procs
		bottom := (r + 1) % procs
		links[r] = NewChanLink(up[r], down[r], down[top], up[bottom])
	}
	return links
}
