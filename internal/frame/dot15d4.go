// Package frame decodes the IEEE 802.15.4 MAC header (MHR) into the
// addressing metadata the demultiplexer consumes. The decoder is exposed
// both as a gopacket layer, so captured WPAN traffic can be inspected with
// the usual gopacket tooling, and as a plain Decode helper for the receive
// path.
//
// PAN ID compression follows the 2003/2006 frame versions: when the bit is
// set and both addresses are present, the source PAN ID field is elided and
// equals the destination PAN ID.
package frame

import (
	"encoding/binary"
	"fmt"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"

	"icc.tech/wpan-agent/internal/core"
)

// LayerTypeDot15d4 identifies the IEEE 802.15.4 MHR layer within gopacket.
var LayerTypeDot15d4 = gopacket.RegisterLayerType(2154, gopacket.LayerTypeMetadata{
	Name:    "Dot15d4",
	Decoder: gopacket.DecodeFunc(decodeDot15d4),
})

// FrameType is the MHR frame type field.
type FrameType uint8

const (
	FrameTypeBeacon FrameType = iota
	FrameTypeData
	FrameTypeAck
	FrameTypeMACCommand
)

// String returns the frame type name.
func (ft FrameType) String() string {
	switch ft {
	case FrameTypeBeacon:
		return "beacon"
	case FrameTypeData:
		return "data"
	case FrameTypeAck:
		return "ack"
	case FrameTypeMACCommand:
		return "mac-command"
	default:
		return fmt.Sprintf("reserved(%d)", uint8(ft))
	}
}

// Frame control field bit layout (little-endian uint16).
const (
	fcfFrameTypeMask  = 0x0007
	fcfSecurity       = 0x0008
	fcfFramePending   = 0x0010
	fcfAckRequest     = 0x0020
	fcfPANIDComp      = 0x0040
	fcfDestModeShift  = 10
	fcfVersionShift   = 12
	fcfSrcModeShift   = 14
	fcfAddrModeMask   = 0x3
	addrModeReserved  = 1 // wire value 1 is reserved
	wireAddrModeShort = 2
	wireAddrModeExt   = 3
)

// Dot15d4 is a decoded IEEE 802.15.4 MAC header.
type Dot15d4 struct {
	layers.BaseLayer

	FrameType        FrameType
	SecurityEnabled  bool
	FramePending     bool
	AckRequest       bool
	PANIDCompression bool
	FrameVersion     uint8
	Seq              uint8

	DestPANID   uint16
	SourcePANID uint16
	DestAddr    core.Address
	SourceAddr  core.Address
}

// LayerType returns LayerTypeDot15d4.
func (d *Dot15d4) LayerType() gopacket.LayerType { return LayerTypeDot15d4 }

// CanDecode returns the layer type this decoder handles.
func (d *Dot15d4) CanDecode() gopacket.LayerClass { return LayerTypeDot15d4 }

// NextLayerType returns the type of the MAC payload.
func (d *Dot15d4) NextLayerType() gopacket.LayerType { return gopacket.LayerTypePayload }

// DecodeFromBytes parses the MHR at the start of data.
func (d *Dot15d4) DecodeFromBytes(data []byte, df gopacket.DecodeFeedback) error {
	if len(data) < 3 {
		df.SetTruncated()
		return fmt.Errorf("%w: %d bytes, need at least 3 for FCF and sequence", core.ErrFrameTruncated, len(data))
	}

	fcf := binary.LittleEndian.Uint16(data[0:2])
	d.FrameType = FrameType(fcf & fcfFrameTypeMask)
	d.SecurityEnabled = fcf&fcfSecurity != 0
	d.FramePending = fcf&fcfFramePending != 0
	d.AckRequest = fcf&fcfAckRequest != 0
	d.PANIDCompression = fcf&fcfPANIDComp != 0
	d.FrameVersion = uint8(fcf>>fcfVersionShift) & 0x3
	d.Seq = data[2]

	destMode := uint8(fcf>>fcfDestModeShift) & fcfAddrModeMask
	srcMode := uint8(fcf>>fcfSrcModeShift) & fcfAddrModeMask
	if destMode == addrModeReserved || srcMode == addrModeReserved {
		return fmt.Errorf("%w: fcf=0x%04x", core.ErrAddrModeReserved, fcf)
	}

	off := 3

	if destMode != 0 {
		panID, ok := readUint16(data, &off)
		if !ok {
			df.SetTruncated()
			return fmt.Errorf("%w: destination PAN ID", core.ErrFrameTruncated)
		}
		d.DestPANID = panID
		addr, err := readAddr(data, &off, destMode, df)
		if err != nil {
			return fmt.Errorf("destination address: %w", err)
		}
		d.DestAddr = addr
	} else {
		d.DestPANID = 0
		d.DestAddr = core.Address{}
	}

	if srcMode != 0 {
		if d.PANIDCompression && destMode != 0 {
			// Source PAN ID field elided; shares the destination's.
			d.SourcePANID = d.DestPANID
		} else {
			panID, ok := readUint16(data, &off)
			if !ok {
				df.SetTruncated()
				return fmt.Errorf("%w: source PAN ID", core.ErrFrameTruncated)
			}
			d.SourcePANID = panID
		}
		addr, err := readAddr(data, &off, srcMode, df)
		if err != nil {
			return fmt.Errorf("source address: %w", err)
		}
		d.SourceAddr = addr
	} else {
		d.SourcePANID = 0
		d.SourceAddr = core.Address{}
	}

	d.BaseLayer = layers.BaseLayer{
		Contents: data[:off],
		Payload:  data[off:],
	}
	return nil
}

// Meta returns the addressing metadata the demultiplexer consumes.
func (d *Dot15d4) Meta() core.FrameMeta {
	return core.FrameMeta{
		Destination: d.DestAddr,
		Source:      d.SourceAddr,
		DestPANID:   d.DestPANID,
		SourcePANID: d.SourcePANID,
		Seq:         d.Seq,
	}
}

// Decode parses the MHR of a raw frame and returns the addressing metadata
// plus the MAC payload. Convenience entry point for the receive path.
func Decode(data []byte) (core.FrameMeta, []byte, error) {
	var d Dot15d4
	if err := d.DecodeFromBytes(data, gopacket.NilDecodeFeedback); err != nil {
		return core.FrameMeta{}, nil, err
	}
	return d.Meta(), d.Payload, nil
}

func decodeDot15d4(data []byte, p gopacket.PacketBuilder) error {
	d := &Dot15d4{}
	if err := d.DecodeFromBytes(data, p); err != nil {
		return err
	}
	p.AddLayer(d)
	return p.NextDecoder(gopacket.LayerTypePayload)
}

func readUint16(data []byte, off *int) (uint16, bool) {
	if len(data) < *off+2 {
		return 0, false
	}
	v := binary.LittleEndian.Uint16(data[*off : *off+2])
	*off += 2
	return v, true
}

func readAddr(data []byte, off *int, wireMode uint8, df gopacket.DecodeFeedback) (core.Address, error) {
	switch wireMode {
	case wireAddrModeShort:
		v, ok := readUint16(data, off)
		if !ok {
			df.SetTruncated()
			return core.Address{}, core.ErrFrameTruncated
		}
		return core.ShortAddress(v), nil

	case wireAddrModeExt:
		if len(data) < *off+8 {
			df.SetTruncated()
			return core.Address{}, core.ErrFrameTruncated
		}
		v := binary.LittleEndian.Uint64(data[*off : *off+8])
		*off += 8
		return core.ExtendedAddress(v), nil

	default:
		return core.Address{}, core.ErrAddrModeReserved
	}
}
