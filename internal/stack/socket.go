package stack

import (
	"icc.tech/wpan-agent/internal/conn"
	"icc.tech/wpan-agent/internal/core"
	"icc.tech/wpan-agent/internal/metrics"
)

// Socket is the user-facing handle over one registry connection. It owns
// the slot's opaque payload: the bounded receive queue and drop accounting.
// All methods serialize on the registry network lock.
type Socket struct {
	stk *Stack
	c   *conn.Conn

	queue   []*InboundFrame
	dropped uint64
	closed  bool
}

// Open allocates a connection and wraps it in an unbound socket holding one
// reference. Returns core.ErrConnExhausted when the pool is full.
func (s *Stack) Open() (*Socket, error) {
	g := s.reg.LockNet()
	defer g.Unlock()

	c, err := s.reg.Alloc()
	if err != nil {
		metrics.ConnExhaustedTotal.Inc()
		return nil, err
	}

	// Alloc hands back stale fields; reset them before the connection can
	// be seen by the demultiplexer.
	c.LocalAddr = core.Address{}
	c.RemoteAddr = core.Address{}

	sk := &Socket{stk: s, c: c}
	c.SetPayload(sk)
	c.Retain()

	metrics.ConnAllocTotal.Inc()
	metrics.ConnActive.Set(float64(s.reg.Active()))
	return sk, nil
}

// Bind assigns the local address the socket receives on. Only Short and
// Extended addresses are bindable.
func (sk *Socket) Bind(addr core.Address) error {
	g := sk.stk.reg.LockNet()
	defer g.Unlock()

	if sk.closed {
		return core.ErrSocketClosed
	}
	if addr.Mode != core.AddrModeShort && addr.Mode != core.AddrModeExtended {
		return core.ErrAddrInvalid
	}
	sk.c.LocalAddr = addr
	return nil
}

// Connect fixes the peer the socket accepts frames from. A None address
// disconnects, reverting to accept-any-source.
func (sk *Socket) Connect(addr core.Address) error {
	g := sk.stk.reg.LockNet()
	defer g.Unlock()

	if sk.closed {
		return core.ErrSocketClosed
	}
	if !addr.Mode.Valid() {
		return core.ErrAddrInvalid
	}
	sk.c.RemoteAddr = addr
	return nil
}

// Dup adds a reference, as the socket layer does for duplicated file
// descriptors. Each Dup requires a matching Close.
func (sk *Socket) Dup() (*Socket, error) {
	g := sk.stk.reg.LockNet()
	defer g.Unlock()

	if sk.closed {
		return nil, core.ErrSocketClosed
	}
	sk.c.Retain()
	return sk, nil
}

// Close drops one reference. When the last reference goes, the queue is
// drained and the connection returns to the free pool.
func (sk *Socket) Close() error {
	g := sk.stk.reg.LockNet()
	defer g.Unlock()

	if sk.closed {
		return core.ErrSocketClosed
	}
	if sk.c.Release() > 0 {
		return nil
	}

	sk.closed = true
	sk.queue = nil
	sk.stk.reg.Free(sk.c)

	metrics.ConnFreeTotal.Inc()
	metrics.ConnActive.Set(float64(sk.stk.reg.Active()))
	return nil
}

// Recv dequeues the oldest received frame without blocking. Returns
// core.ErrQueueEmpty when nothing is queued.
func (sk *Socket) Recv() (*InboundFrame, error) {
	g := sk.stk.reg.LockNet()
	defer g.Unlock()

	if sk.closed {
		return nil, core.ErrSocketClosed
	}
	if len(sk.queue) == 0 {
		return nil, core.ErrQueueEmpty
	}
	f := sk.queue[0]
	sk.queue = sk.queue[1:]
	return f, nil
}

// QueueLen returns the number of frames waiting to be received.
func (sk *Socket) QueueLen() int {
	g := sk.stk.reg.LockNet()
	defer g.Unlock()
	return len(sk.queue)
}

// LocalAddr returns the bound local address.
func (sk *Socket) LocalAddr() core.Address {
	g := sk.stk.reg.LockNet()
	defer g.Unlock()
	return sk.c.LocalAddr
}

// RemoteAddr returns the connected peer address.
func (sk *Socket) RemoteAddr() core.Address {
	g := sk.stk.reg.LockNet()
	defer g.Unlock()
	return sk.c.RemoteAddr
}

// enqueue appends a frame under the backlog limit. Caller holds the net
// lock (Input path).
func (sk *Socket) enqueue(f *InboundFrame) bool {
	if sk.closed {
		metrics.FramesDroppedTotal.WithLabelValues(metrics.DropNoMatch).Inc()
		return false
	}

	if len(sk.queue) >= sk.stk.backlog {
		sk.dropped++
		metrics.FramesDroppedTotal.WithLabelValues(metrics.DropBacklog).Inc()
		if sk.stk.dropPolicy == DropTail {
			return false
		}
		// DropHead: evict the oldest to keep the newest.
		sk.queue = sk.queue[1:]
	}

	sk.queue = append(sk.queue, f)
	metrics.FramesDeliveredTotal.Inc()
	return true
}
