package core

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAddressEqual(t *testing.T) {
	t.Run("same mode", func(t *testing.T) {
		assert.True(t, ShortAddress(0x1234).Equal(ShortAddress(0x1234)))
		assert.False(t, ShortAddress(0x1234).Equal(ShortAddress(0x5678)))
		assert.True(t, ExtendedAddress(0xAABB).Equal(ExtendedAddress(0xAABB)))
		assert.False(t, ExtendedAddress(0xAABB).Equal(ExtendedAddress(0xAACC)))
		assert.True(t, Address{}.Equal(Address{}))
	})

	t.Run("cross mode never equal", func(t *testing.T) {
		// Same numeric value, different modes.
		assert.False(t, ShortAddress(0x1234).Equal(ExtendedAddress(0x1234)))
		assert.False(t, ShortAddress(0).Equal(Address{}))
		assert.False(t, ExtendedAddress(0).Equal(Address{}))
	})

	t.Run("invalid mode", func(t *testing.T) {
		bad := Address{Mode: AddrMode(9)}
		assert.False(t, bad.Equal(bad))
	})
}

func TestAddressString(t *testing.T) {
	assert.Equal(t, "none", Address{}.String())
	assert.Equal(t, "0x1234", ShortAddress(0x1234).String())
	assert.Equal(t, "0x00124b0001020304", ExtendedAddress(0x00124B0001020304).String())
	assert.Equal(t, "invalid(mode=9)", Address{Mode: AddrMode(9)}.String())
}

func TestAddrMode(t *testing.T) {
	assert.True(t, AddrModeNone.Valid())
	assert.True(t, AddrModeShort.Valid())
	assert.True(t, AddrModeExtended.Valid())
	assert.False(t, AddrMode(3).Valid())

	assert.Equal(t, "short", AddrModeShort.String())
	assert.Equal(t, "invalid(250)", AddrMode(250).String())
}

func TestIsNone(t *testing.T) {
	assert.True(t, Address{}.IsNone())
	assert.False(t, ShortAddress(0).IsNone())
	assert.False(t, ExtendedAddress(0).IsNone())
}

func TestSentinelErrors(t *testing.T) {
	tests := []struct {
		err     error
		message string
	}{
		{ErrConnExhausted, "wpan: connection pool exhausted"},
		{ErrAddrInvalid, "wpan: invalid bind address"},
		{ErrQueueEmpty, "wpan: receive queue empty"},
		{ErrFrameTruncated, "wpan: frame too short"},
		{ErrAddrModeReserved, "wpan: reserved addressing mode"},
		{ErrConfigInvalid, "wpan: invalid configuration"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.message, tt.err.Error())
		assert.True(t, errors.Is(tt.err, tt.err))
	}
}
