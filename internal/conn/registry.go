// Package conn implements the fixed-capacity connection registry for IEEE
// 802.15.4 packet sockets: a preallocated arena of connection slots
// partitioned into a free list and an insertion-ordered active list, plus
// the demultiplexer that routes an inbound frame to the matching connection.
//
// The registry never allocates slots individually; NewRegistry builds the
// whole arena once and Alloc/Free only move slots between the two lists.
// Alloc and Free serialize on a dedicated pool mutex. Demultiplexing and
// iteration do not lock by themselves; they are methods on the Guard
// returned by LockNet, the broader serialization shared with all other
// stack mutations.
package conn

import (
	"fmt"
	"sync"

	"icc.tech/wpan-agent/internal/core"
)

// nilIdx terminates the index-based lists.
const nilIdx = -1

type slotState uint8

const (
	stateFree slotState = iota
	stateActive
)

// Conn is one registry slot. LocalAddr and RemoteAddr are exported because
// the socket layer owns their initialization: Alloc does not zero a slot,
// and a freshly allocated connection must have both addresses and the ref
// count set before it can participate in matching.
type Conn struct {
	// LocalAddr is the address the connection is bound to. Must be Short
	// or Extended for the connection to be matched; None means not yet
	// bound.
	LocalAddr core.Address

	// RemoteAddr is the connected peer address, or None for an
	// unconnected socket that accepts frames from any source.
	RemoteAddr core.Address

	refs    uint32
	payload any

	reg   *Registry
	index int
	state slotState

	// Active-list links (indices into Registry.slots).
	prev, next int
	// Free-list link.
	nextFree int
}

// Index returns the slot's fixed position in the arena. Stable for the
// lifetime of the registry; useful as a diagnostic identifier.
func (c *Conn) Index() int { return c.index }

// Refs returns the number of outstanding external references.
func (c *Conn) Refs() uint32 { return c.refs }

// Retain adds an external reference. Caller must hold the net lock.
func (c *Conn) Retain() { c.refs++ }

// Release drops one external reference and returns the remaining count.
// Caller must hold the net lock. Releasing a connection with no references
// is a contract fault.
func (c *Conn) Release() uint32 {
	if c.refs == 0 {
		panic("conn: Release without outstanding reference")
	}
	c.refs--
	return c.refs
}

// Payload returns the opaque socket-layer state attached to the slot.
func (c *Conn) Payload() any { return c.payload }

// SetPayload attaches opaque socket-layer state to the slot. The registry
// never inspects it; Free clears it.
func (c *Conn) SetPayload(p any) { c.payload = p }

// Registry is the connection pool. Construct with NewRegistry; the zero
// value is not usable.
type Registry struct {
	// poolMu guards the free list, the active-list links and the slot
	// membership state. Held only for the duration of a list mutation.
	poolMu sync.Mutex

	// netMu is the system-wide serialization for matching, iteration and
	// every other stack mutation. See LockNet.
	netMu sync.Mutex

	slots []Conn

	freeHead   int
	activeHead int
	activeTail int
	active     int
}

// NewRegistry builds a registry with the given fixed capacity. All slots
// start on the free list.
func NewRegistry(capacity int) *Registry {
	if capacity <= 0 {
		panic(fmt.Sprintf("conn: registry capacity must be positive, got %d", capacity))
	}

	r := &Registry{
		slots:      make([]Conn, capacity),
		freeHead:   nilIdx,
		activeHead: nilIdx,
		activeTail: nilIdx,
	}
	for i := capacity - 1; i >= 0; i-- {
		c := &r.slots[i]
		c.reg = r
		c.index = i
		c.prev = nilIdx
		c.next = nilIdx
		c.nextFree = r.freeHead
		r.freeHead = i
	}
	return r
}

// Alloc draws a slot from the free list and appends it to the tail of the
// active list. Returns core.ErrConnExhausted when no slot is free. The
// returned slot's addresses and ref count are NOT reset; the caller must
// initialize them before the connection is visible to the demultiplexer.
func (r *Registry) Alloc() (*Conn, error) {
	r.poolMu.Lock()
	defer r.poolMu.Unlock()

	if r.freeHead == nilIdx {
		return nil, core.ErrConnExhausted
	}

	c := &r.slots[r.freeHead]
	r.freeHead = c.nextFree
	c.nextFree = nilIdx
	c.state = stateActive

	// Append at the tail: the active list stays in allocation order.
	c.prev = r.activeTail
	c.next = nilIdx
	if r.activeTail == nilIdx {
		r.activeHead = c.index
	} else {
		r.slots[r.activeTail].next = c.index
	}
	r.activeTail = c.index
	r.active++

	return c, nil
}

// Free returns an active slot to the free list. The connection must belong
// to this registry, be active, and have a zero ref count; violations are
// programming faults and panic rather than corrupt the lists.
func (r *Registry) Free(c *Conn) {
	if c == nil || c.reg != r {
		panic("conn: Free of connection not owned by this registry")
	}

	r.poolMu.Lock()
	defer r.poolMu.Unlock()

	if c.state != stateActive {
		panic(fmt.Sprintf("conn: Free of non-active slot %d", c.index))
	}
	if c.refs != 0 {
		panic(fmt.Sprintf("conn: Free of slot %d with %d outstanding references", c.index, c.refs))
	}

	// Unlink from the active list.
	if c.prev == nilIdx {
		r.activeHead = c.next
	} else {
		r.slots[c.prev].next = c.next
	}
	if c.next == nilIdx {
		r.activeTail = c.prev
	} else {
		r.slots[c.next].prev = c.prev
	}
	c.prev = nilIdx
	c.next = nilIdx
	c.payload = nil

	c.state = stateFree
	c.nextFree = r.freeHead
	r.freeHead = c.index
	r.active--
}

// Capacity returns the fixed slot count N.
func (r *Registry) Capacity() int { return len(r.slots) }

// Active returns the number of allocated connections.
func (r *Registry) Active() int {
	r.poolMu.Lock()
	defer r.poolMu.Unlock()
	return r.active
}

// FreeCount returns the number of slots available for allocation.
func (r *Registry) FreeCount() int {
	r.poolMu.Lock()
	defer r.poolMu.Unlock()
	return len(r.slots) - r.active
}
