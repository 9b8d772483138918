package conn

import (
	"log/slog"

	"icc.tech/wpan-agent/internal/core"
	"icc.tech/wpan-agent/internal/metrics"
)

// Guard is the capability for demultiplexing and active-list traversal.
// Both walk the active list without locking, so they are only valid while
// the caller holds the network serialization that LockNet hands out, the
// same serialization under which the socket layer mutates connections.
type Guard struct {
	r *Registry
}

// LockNet acquires the system-wide network lock and returns the traversal
// guard. Callers must Unlock it; no blocking work may happen in between.
func (r *Registry) LockNet() *Guard {
	r.netMu.Lock()
	return &Guard{r: r}
}

// Unlock releases the network lock. The guard must not be used afterwards.
func (g *Guard) Unlock() {
	r := g.r
	g.r = nil
	r.netMu.Unlock()
}

func (g *Guard) registry() *Registry {
	if g.r == nil {
		panic("conn: guard used after Unlock")
	}
	return g.r
}

// FindActive returns the first active connection, in allocation order, that
// should receive a frame addressed to dst from src, or nil when none
// matches.
//
// A connection matches when its local address equals the frame destination
// under the same addressing mode, and its remote address either is None
// (unconnected, any source accepted) or equals the frame source. A remote
// address with an unrecognized mode is treated as slot corruption: the scan
// is aborted and nil returned for this lookup, rather than risking routing
// through damaged state.
func (g *Guard) FindActive(dst, src core.Address) *Conn {
	r := g.registry()

	for idx := r.activeHead; idx != nilIdx; idx = r.slots[idx].next {
		c := &r.slots[idx]

		// A connection that was allocated but never bound has a None
		// local address and cannot receive frames.
		if c.LocalAddr.IsNone() || !c.LocalAddr.Equal(dst) {
			continue
		}

		// Connected sockets only accept frames from their peer.
		switch c.RemoteAddr.Mode {
		case core.AddrModeNone:
			return c

		case core.AddrModeShort:
			if src.Mode == core.AddrModeShort && src.Short == c.RemoteAddr.Short {
				return c
			}

		case core.AddrModeExtended:
			if src.Mode == core.AddrModeExtended && src.Extended == c.RemoteAddr.Extended {
				return c
			}

		default:
			metrics.DemuxFaultsTotal.Inc()
			slog.Error("corrupt remote address mode, aborting demux scan",
				"slot", c.index,
				"mode", uint8(c.RemoteAddr.Mode),
			)
			return nil
		}
	}

	return nil
}

// Next traverses the active list in allocation order: Next(nil) yields the
// head (or nil when the list is empty), Next(c) yields c's successor or nil
// past the tail. Passing a connection that is not active is a contract
// fault.
func (g *Guard) Next(prev *Conn) *Conn {
	r := g.registry()

	if prev == nil {
		if r.activeHead == nilIdx {
			return nil
		}
		return &r.slots[r.activeHead]
	}

	if prev.reg != r || prev.state != stateActive {
		panic("conn: Next of non-active connection")
	}
	if prev.next == nilIdx {
		return nil
	}
	return &r.slots[prev.next]
}
