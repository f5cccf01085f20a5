package halo

import "v.io/x/lib/vlog"

// Exchanger drives the per-generation steady-state halo protocol on top of
// a Link: it carries the previous generation's outstanding send/receive
// handles across the generation boundary, waiting on them before a new row
// may be posted.
type Exchanger struct {
	link Link

	topGhost    []byte
	bottomGhost []byte

	sendFirst  Handle
	sendLast   Handle
	recvTop    Handle
	recvBottom Handle
}

// NewExchanger allocates an Exchanger with ghost-row buffers of the given
// width (the grid's column count, k).
func NewExchanger(link Link, cols int) *Exchanger {
	return &Exchanger{
		link:        link,
		topGhost:    make([]byte, cols),
		bottomGhost: make([]byte, cols),
	}
}

// Bootstrap performs the pre-generation-0 handshake: both sends and
// receives are issued non-blocking, then all four are awaited before
// returning.
func (e *Exchanger) Bootstrap(firstRow, lastRow []byte) error {
	sUp, err := e.link.PostSendUp(firstRow)
	if err != nil {
		return err
	}
	sDown, err := e.link.PostSendDown(lastRow)
	if err != nil {
		return err
	}
	rUp, err := e.link.PostRecvUp(e.topGhost)
	if err != nil {
		return err
	}
	rDown, err := e.link.PostRecvDown(e.bottomGhost)
	if err != nil {
		return err
	}
	var firstErr error
	for _, h := range []Handle{sUp, sDown, rUp, rDown} {
		if err := h.Wait(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// TopGhost returns the current top ghost row (read-only during a step).
func (e *Exchanger) TopGhost() []byte { return e.topGhost }

// BottomGhost returns the current bottom ghost row (read-only during a
// step).
func (e *Exchanger) BottomGhost() []byte { return e.bottomGhost }

// WaitTopGhost waits for the receive posted last generation to refresh
// TopGhost(). It is a no-op if nothing is outstanding (e.g. right after
// Bootstrap on generation 0... Bootstrap already waited).
func (e *Exchanger) WaitTopGhost() error {
	if e.recvTop == nil {
		return nil
	}
	h := e.recvTop
	e.recvTop = nil
	return h.Wait()
}

// WaitBottomGhost is the bottom-ghost counterpart of WaitTopGhost.
func (e *Exchanger) WaitBottomGhost() error {
	if e.recvBottom == nil {
		return nil
	}
	h := e.recvBottom
	e.recvBottom = nil
	return h.Wait()
}

// WaitSendFirst waits for the previous generation's first-row send.
func (e *Exchanger) WaitSendFirst() error {
	if e.sendFirst == nil {
		return nil
	}
	h := e.sendFirst
	e.sendFirst = nil
	return h.Wait()
}

// WaitSendLast waits for the previous generation's last-row send.
func (e *Exchanger) WaitSendLast() error {
	if e.sendLast == nil {
		return nil
	}
	h := e.sendLast
	e.sendLast = nil
	return h.Wait()
}

// PostFirstRow posts the newly-computed first row for send to the top
// neighbour, and posts the next top-ghost receive. WaitSendFirst must have
// been called (and returned) since the last PostFirstRow, or this call is
// fatal -- silently overwriting a still-live send handle is a caller bug in
// Step's control flow, not a recoverable runtime condition.
func (e *Exchanger) PostFirstRow(row []byte) error {
	if e.sendFirst != nil {
		vlog.Fatalf("halo: PostFirstRow called with a send still outstanding")
	}
	h, err := e.link.PostSendUp(row)
	if err != nil {
		return err
	}
	e.sendFirst = h
	rh, err := e.link.PostRecvUp(e.topGhost)
	if err != nil {
		return err
	}
	e.recvTop = rh
	return nil
}

// PostLastRow is the last-row counterpart of PostFirstRow.
func (e *Exchanger) PostLastRow(row []byte) error {
	if e.sendLast != nil {
		vlog.Fatalf("halo: PostLastRow called with a send still outstanding")
	}
	h, err := e.link.PostSendDown(row)
	if err != nil {
		return err
	}
	e.sendLast = h
	rh, err := e.link.PostRecvDown(e.bottomGhost)
	if err != nil {
		return err
	}
	e.recvBottom = rh
	return nil
}

// Close drains any outstanding operations and closes the underlying link.
func (e *Exchanger) Close() error {
	var firstErr error
	for _, h := range []Handle{e.sendFirst, e.sendLast, e.recvTop, e.recvBottom} {
		if h == nil {
			continue
		}
		if err := h.Wait(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if err := e.link.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}
