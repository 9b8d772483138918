// Package stack implements the thin network stack around the connection
// registry: the socket layer that drives Alloc/Free and reference counts,
// and the driver-side receive path that demultiplexes inbound frames into
// per-socket receive queues.
//
// Every operation serializes on the registry's network lock; no stack call
// may be made while already holding it.
package stack

import (
	"fmt"
	"log/slog"
	"time"

	"icc.tech/wpan-agent/internal/conn"
	"icc.tech/wpan-agent/internal/core"
	"icc.tech/wpan-agent/internal/metrics"
)

// DropPolicy selects which frame is discarded when a socket's receive queue
// is at its backlog limit.
type DropPolicy string

const (
	// DropTail rejects the newly arrived frame.
	DropTail DropPolicy = "tail"
	// DropHead evicts the oldest queued frame to make room.
	DropHead DropPolicy = "head"
)

// ParseDropPolicy validates a configured drop policy string.
func ParseDropPolicy(s string) (DropPolicy, error) {
	switch DropPolicy(s) {
	case DropTail:
		return DropTail, nil
	case DropHead:
		return DropHead, nil
	default:
		return "", fmt.Errorf("%w: drop_policy %q (must be head or tail)", core.ErrConfigInvalid, s)
	}
}

// Config carries the stack sizing knobs.
type Config struct {
	Capacity   int        // registry slot count N
	Backlog    int        // per-socket receive queue limit
	DropPolicy DropPolicy // behavior at the backlog limit
}

// Stack owns the connection registry and the per-socket receive queues.
type Stack struct {
	reg        *conn.Registry
	backlog    int
	dropPolicy DropPolicy
}

// New constructs a stack with a freshly initialized registry.
func New(cfg Config) *Stack {
	backlog := cfg.Backlog
	if backlog <= 0 {
		backlog = 8
	}
	policy := cfg.DropPolicy
	if policy == "" {
		policy = DropTail
	}
	return &Stack{
		reg:        conn.NewRegistry(cfg.Capacity),
		backlog:    backlog,
		dropPolicy: policy,
	}
}

// Registry exposes the underlying registry for diagnostics.
func (s *Stack) Registry() *conn.Registry { return s.reg }

// InboundFrame is one received frame queued on a socket.
type InboundFrame struct {
	Meta     core.FrameMeta
	Payload  []byte
	Received time.Time
}

// Input is the driver receive path: route one parsed frame to the matching
// socket and enqueue it. Returns true when the frame was delivered.
func (s *Stack) Input(meta core.FrameMeta, payload []byte) bool {
	g := s.reg.LockNet()
	defer g.Unlock()

	c := g.FindActive(meta.Destination, meta.Source)
	if c == nil {
		metrics.DemuxLookupsTotal.WithLabelValues("miss").Inc()
		metrics.FramesDroppedTotal.WithLabelValues(metrics.DropNoMatch).Inc()
		slog.Debug("no socket for inbound frame",
			"dest", meta.Destination.String(),
			"source", meta.Source.String(),
		)
		return false
	}
	metrics.DemuxLookupsTotal.WithLabelValues("match").Inc()

	sk, ok := c.Payload().(*Socket)
	if !ok {
		// The socket layer attaches itself on Open; a matched slot
		// without one means the invariant broke upstream.
		slog.Error("matched connection has no socket payload", "slot", c.Index())
		metrics.FramesDroppedTotal.WithLabelValues(metrics.DropNoMatch).Inc()
		return false
	}

	return sk.enqueue(&InboundFrame{
		Meta:     meta,
		Payload:  payload,
		Received: time.Now(),
	})
}

// SocketInfo is one row of the diagnostics socket listing.
type SocketInfo struct {
	Slot    int    `json:"slot"`
	Local   string `json:"local"`
	Remote  string `json:"remote"`
	Refs    uint32 `json:"refs"`
	Queued  int    `json:"queued"`
	Dropped uint64 `json:"dropped"`
}

// Sockets enumerates all active connections in allocation order.
func (s *Stack) Sockets() []SocketInfo {
	g := s.reg.LockNet()
	defer g.Unlock()

	var infos []SocketInfo
	for c := g.Next(nil); c != nil; c = g.Next(c) {
		info := SocketInfo{
			Slot:   c.Index(),
			Local:  c.LocalAddr.String(),
			Remote: c.RemoteAddr.String(),
			Refs:   c.Refs(),
		}
		if sk, ok := c.Payload().(*Socket); ok {
			info.Queued = len(sk.queue)
			info.Dropped = sk.dropped
		}
		infos = append(infos, info)
	}
	return infos
}

// RegistryStats is the pool occupancy snapshot for diagnostics.
type RegistryStats struct {
	Capacity int `json:"capacity"`
	Active   int `json:"active"`
	Free     int `json:"free"`
}

// Stats returns the current pool occupancy.
func (s *Stack) Stats() RegistryStats {
	return RegistryStats{
		Capacity: s.reg.Capacity(),
		Active:   s.reg.Active(),
		Free:     s.reg.FreeCount(),
	}
}
