package conn

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"icc.tech/wpan-agent/internal/core"
)

func TestNewRegistry(t *testing.T) {
	r := NewRegistry(4)

	assert.Equal(t, 4, r.Capacity())
	assert.Equal(t, 0, r.Active())
	assert.Equal(t, 4, r.FreeCount())

	assert.Panics(t, func() { NewRegistry(0) })
	assert.Panics(t, func() { NewRegistry(-1) })
}

func TestAllocUntilExhausted(t *testing.T) {
	const n = 8
	r := NewRegistry(n)

	seen := make(map[*Conn]bool)
	for i := 0; i < n; i++ {
		c, err := r.Alloc()
		require.NoError(t, err)
		require.NotNil(t, c)

		// No handle is handed out twice while live.
		assert.False(t, seen[c], "slot %d returned twice", c.Index())
		seen[c] = true

		// Free + active always partitions the whole arena.
		assert.Equal(t, n, r.Active()+r.FreeCount())
	}

	c, err := r.Alloc()
	assert.Nil(t, c)
	assert.True(t, errors.Is(err, core.ErrConnExhausted))

	assert.Equal(t, n, r.Active())
	assert.Equal(t, 0, r.FreeCount())
}

func TestFreeReturnsSlotToPool(t *testing.T) {
	r := NewRegistry(2)

	a, err := r.Alloc()
	require.NoError(t, err)
	b, err := r.Alloc()
	require.NoError(t, err)

	_, err = r.Alloc()
	require.ErrorIs(t, err, core.ErrConnExhausted)

	r.Free(a)
	assert.Equal(t, 1, r.Active())
	assert.Equal(t, 1, r.FreeCount())

	// The pool may (LIFO) or may not hand the same slot back; either way
	// the arena stays fully partitioned.
	c, err := r.Alloc()
	require.NoError(t, err)
	assert.NotNil(t, c)
	assert.Equal(t, 2, r.Active()+r.FreeCount())

	c.Retain()
	assert.Equal(t, uint32(1), c.Refs())
	c.Release()
	r.Free(c)
	r.Free(b)
	assert.Equal(t, 0, r.Active())
}

func TestFreeContractViolations(t *testing.T) {
	t.Run("nonzero refs", func(t *testing.T) {
		r := NewRegistry(1)
		c, err := r.Alloc()
		require.NoError(t, err)
		c.Retain()

		assert.Panics(t, func() { r.Free(c) })
	})

	t.Run("double free", func(t *testing.T) {
		r := NewRegistry(1)
		c, err := r.Alloc()
		require.NoError(t, err)
		r.Free(c)

		assert.Panics(t, func() { r.Free(c) })
	})

	t.Run("foreign connection", func(t *testing.T) {
		r1 := NewRegistry(1)
		r2 := NewRegistry(1)
		c, err := r1.Alloc()
		require.NoError(t, err)

		assert.Panics(t, func() { r2.Free(c) })
		assert.Panics(t, func() { r1.Free(nil) })
	})

	t.Run("release without reference", func(t *testing.T) {
		r := NewRegistry(1)
		c, err := r.Alloc()
		require.NoError(t, err)

		assert.Panics(t, func() { c.Release() })
	})
}

func TestAllocDoesNotResetFields(t *testing.T) {
	r := NewRegistry(1)

	c, err := r.Alloc()
	require.NoError(t, err)
	c.LocalAddr = core.ShortAddress(0x1234)
	c.RemoteAddr = core.ExtendedAddress(0xAABBCCDD)
	r.Free(c)

	// Stale addressing survives reallocation; the socket layer owns the
	// reinitialization.
	c2, err := r.Alloc()
	require.NoError(t, err)
	assert.Equal(t, core.ShortAddress(0x1234), c2.LocalAddr)
	assert.Equal(t, core.ExtendedAddress(0xAABBCCDD), c2.RemoteAddr)
}

func TestPayloadClearedOnFree(t *testing.T) {
	r := NewRegistry(1)

	c, err := r.Alloc()
	require.NoError(t, err)
	c.SetPayload("socket state")
	assert.Equal(t, "socket state", c.Payload())

	r.Free(c)

	c2, err := r.Alloc()
	require.NoError(t, err)
	assert.Nil(t, c2.Payload())
}

func TestArenaPartitionUnderChurn(t *testing.T) {
	const n = 5
	r := NewRegistry(n)

	live := make([]*Conn, 0, n)
	for round := 0; round < 50; round++ {
		if round%3 == 2 && len(live) > 0 {
			r.Free(live[0])
			live = live[1:]
		} else {
			c, err := r.Alloc()
			if errors.Is(err, core.ErrConnExhausted) {
				require.Len(t, live, n)
				r.Free(live[len(live)-1])
				live = live[:len(live)-1]
				continue
			}
			require.NoError(t, err)
			live = append(live, c)
		}
		require.Equal(t, n, r.Active()+r.FreeCount())
		require.Equal(t, len(live), r.Active())
	}
}
