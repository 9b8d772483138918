// Package core defines the IEEE 802.15.4 address model and frame metadata
// shared by the registry, the receive path and the frame decoder. It has
// zero external dependencies.
package core

import "fmt"

// AddrMode is the addressing mode tag of an Address.
type AddrMode uint8

const (
	// AddrModeNone marks an absent address: an unbound local address or an
	// unconnected ("match any source") remote address.
	AddrModeNone AddrMode = iota
	// AddrModeShort is a 16-bit PAN-local address.
	AddrModeShort
	// AddrModeExtended is a 64-bit globally unique EUI-64 address.
	AddrModeExtended
)

// String returns the mode name for logs and diagnostics.
func (m AddrMode) String() string {
	switch m {
	case AddrModeNone:
		return "none"
	case AddrModeShort:
		return "short"
	case AddrModeExtended:
		return "extended"
	default:
		return fmt.Sprintf("invalid(%d)", uint8(m))
	}
}

// Valid reports whether m is one of the three defined modes.
func (m AddrMode) Valid() bool {
	return m <= AddrModeExtended
}

// Address is a tagged IEEE 802.15.4 link-layer address. Only the value field
// selected by Mode is meaningful; the other is ignored.
type Address struct {
	Mode     AddrMode
	Short    uint16 // valid when Mode == AddrModeShort
	Extended uint64 // valid when Mode == AddrModeExtended
}

// ShortAddress returns a PAN-local 16-bit address.
func ShortAddress(v uint16) Address {
	return Address{Mode: AddrModeShort, Short: v}
}

// ExtendedAddress returns a 64-bit EUI-64 address.
func ExtendedAddress(v uint64) Address {
	return Address{Mode: AddrModeExtended, Extended: v}
}

// Equal reports whether a and b carry the same address. Addresses of
// different modes never compare equal; two AddrModeNone addresses do.
func (a Address) Equal(b Address) bool {
	if a.Mode != b.Mode {
		return false
	}
	switch a.Mode {
	case AddrModeNone:
		return true
	case AddrModeShort:
		return a.Short == b.Short
	case AddrModeExtended:
		return a.Extended == b.Extended
	default:
		return false
	}
}

// IsNone reports whether the address is absent.
func (a Address) IsNone() bool {
	return a.Mode == AddrModeNone
}

// String renders the address for logs and socket listings.
func (a Address) String() string {
	switch a.Mode {
	case AddrModeNone:
		return "none"
	case AddrModeShort:
		return fmt.Sprintf("0x%04x", a.Short)
	case AddrModeExtended:
		return fmt.Sprintf("0x%016x", a.Extended)
	default:
		return fmt.Sprintf("invalid(mode=%d)", uint8(a.Mode))
	}
}

// FrameMeta is the parsed addressing of one inbound frame, produced by the
// frame decoder (or a MAC driver) and consumed by the demultiplexer.
type FrameMeta struct {
	Destination Address
	Source      Address
	DestPANID   uint16 // 0 when the destination PAN ID field is absent
	SourcePANID uint16 // 0 when absent or elided by PAN ID compression
	Seq         uint8
}
