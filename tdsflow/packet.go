package tdsflow

import (
	"encoding/binary"
	"fmt"
)

// HeaderSize is the size of a TDS packet header in bytes (spec section 6).
const HeaderSize = 8

// MaxPacketSize bounds a single TDS packet's declared length, per MS-TDS.
const MaxPacketSize = 32767

// MinPacketSize is the smallest negotiable TDS packet size. ParseHeader
// does not check against it: any declared length from HeaderSize up to
// MaxPacketSize is accepted.
const MinPacketSize = 512

// PacketStatus is the one-byte status field of a packet header.
type PacketStatus uint8

const (
	StatusNormal                  PacketStatus = 0x00
	StatusEOM                     PacketStatus = 0x01
	StatusIgnore                  PacketStatus = 0x02
	StatusResetConnection         PacketStatus = 0x08
	StatusResetConnectionSkipTran PacketStatus = 0x10
)

// Header is a parsed TDS packet header (spec section 6). Unlike the
// teacher's server-side Header, this decoder never writes one back to the
// wire — captured traffic is read-only input.
type Header struct {
	Type     PktType
	Status   PacketStatus
	Length   uint16 // total packet length, header included
	SPID     uint16
	PacketID uint8
	Window   uint8
}

// ParseHeader decodes a TDS packet header from the first HeaderSize bytes
// of buf. Returns TooShort if fewer bytes were captured, ParseErr if the
// declared length is outside [HeaderSize, MaxPacketSize].
func ParseHeader(buf []byte) (Header, Status) {
	if len(buf) < HeaderSize {
		return Header{}, TooShort
	}
	h := Header{
		Type:     PktType(buf[0]),
		Status:   PacketStatus(buf[1]),
		Length:   binary.BigEndian.Uint16(buf[2:4]),
		SPID:     binary.BigEndian.Uint16(buf[4:6]),
		PacketID: buf[6],
		Window:   buf[7],
	}
	if h.Length < HeaderSize || h.Length > MaxPacketSize {
		return Header{}, ParseErr
	}
	return h, Ok
}

// PayloadLength returns the declared payload length (total length minus
// header), clamped to zero for a malformed header that understates it.
func (h Header) PayloadLength() int {
	if h.Length <= HeaderSize {
		return 0
	}
	return int(h.Length) - HeaderSize
}

// IsLastPacket reports whether the EOM status bit is set — this packet
// ends the logical message it belongs to (spec section 6).
func (h Header) IsLastPacket() bool {
	return h.Status&StatusEOM != 0
}

func (h Header) String() string {
	return fmt.Sprintf("%s len=%d spid=%d pktid=%d eom=%v", h.Type, h.Length, h.SPID, h.PacketID, h.IsLastPacket())
}
