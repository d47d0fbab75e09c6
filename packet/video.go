/*
NAME
  video.go

DESCRIPTION
  video.go parses the C64 Ultimate video UDP packet header described in
  spec.md §6.1.

LICENSE
  Copyright (C) 2026 the c64stream authors. All Rights Reserved.
*/

// Package packet parses and validates the fixed-size C64 Ultimate video
// and audio UDP packet headers.
package packet

import (
	"encoding/binary"

	"github.com/pkg/errors"
)

// Video packet layout, per spec.md §6.1.
const (
	VideoSize        = 780
	videoHeaderSize  = 12
	VideoPayloadSize = VideoSize - videoHeaderSize

	// ExpectedPixelsPerLine and friends are the only values the device is
	// ever expected to send; any packet that disagrees is malformed.
	ExpectedPixelsPerLine  = 384
	ExpectedLinesPerPacket = 4
	ExpectedBitsPerPixel   = 4

	lastPacketFlag = 0x8000
	lineIndexMask  = 0x7FFF
)

// Errors returned by Video.
var (
	ErrShortVideoPacket = errors.New("packet: video payload is not 780 bytes")
	ErrBadVideoFields   = errors.New("packet: video header fields out of spec")
)

// Video is the parsed header of one video UDP packet. Payload aliases the
// caller's buffer; it is not copied.
type Video struct {
	Sequence      uint16
	FrameIndex    uint16
	LineIndex     uint16 // raw wire field, last-packet flag in the MSB; use Line() for the masked value
	PixelsPerLine uint16
	LinesPerPacket uint8
	BitsPerPixel  uint8
	Encoding      uint16
	Payload       []byte
}

// Last reports whether this is the last packet of the frame (MSB of the
// wire line-index field).
func (v Video) Last() bool { return v.LineIndex&lastPacketFlag != 0 }

// Line returns the line-index with the last-packet flag masked off.
func (v Video) Line() uint16 { return v.LineIndex & lineIndexMask }

// PacketIndex returns line_index / lines_per_packet, the slot this packet
// fills within a frame assembly (spec.md GLOSSARY).
func (v Video) PacketIndex() int {
	if v.LinesPerPacket == 0 {
		return -1
	}
	return int(v.Line()) / int(v.LinesPerPacket)
}

// ParseVideo parses a raw video UDP datagram. It returns ErrShortVideoPacket
// if len(d) != VideoSize (779/771-byte packets are rejected outright). Field-level validation (pixels/lines/bpp) is left to
// ValidateFields so that callers can choose to count, rather than drop,
// field-invalid-but-size-valid packets.
func ParseVideo(d []byte) (Video, error) {
	if len(d) != VideoSize {
		return Video{}, ErrShortVideoPacket
	}
	v := Video{
		Sequence:       binary.LittleEndian.Uint16(d[0:2]),
		FrameIndex:     binary.LittleEndian.Uint16(d[2:4]),
		LineIndex:      binary.LittleEndian.Uint16(d[4:6]),
		PixelsPerLine:  binary.LittleEndian.Uint16(d[6:8]),
		LinesPerPacket: d[8],
		BitsPerPixel:   d[9],
		Encoding:       binary.LittleEndian.Uint16(d[10:12]),
		Payload:        d[videoHeaderSize:],
	}
	return v, nil
}

// ValidateFields checks the fixed-format fields the device must always
// send (spec.md §4.4 step 6). Packets failing this are skipped, not
// treated as a short-packet error.
func (v Video) ValidateFields() error {
	if v.PixelsPerLine != ExpectedPixelsPerLine ||
		v.LinesPerPacket != ExpectedLinesPerPacket ||
		v.BitsPerPixel != ExpectedBitsPerPixel {
		return ErrBadVideoFields
	}
	return nil
}
