/*
NAME
  audio.go

DESCRIPTION
  audio.go parses the C64 Ultimate audio UDP packet header described in
  spec.md §6.2.

LICENSE
  Copyright (C) 2026 the c64stream authors. All Rights Reserved.
*/

package packet

import (
	"encoding/binary"

	"github.com/pkg/errors"
)

// Audio packet layout, per spec.md §6.2.
const (
	AudioSize        = 770
	audioHeaderSize  = 2
	AudioPayloadSize = AudioSize - audioHeaderSize

	AudioFramesPerPacket = 192
	AudioSampleRateHz    = 48000
	AudioChannels        = 2
)

// ErrShortAudioPacket is returned when the datagram isn't exactly AudioSize.
var ErrShortAudioPacket = errors.New("packet: audio payload is not 770 bytes")

// Audio is the parsed header of one audio UDP packet.
type Audio struct {
	Sequence uint16
	Payload  []byte // 192 stereo 16-bit LE frames.
}

// ParseAudio parses a raw audio UDP datagram.
func ParseAudio(d []byte) (Audio, error) {
	if len(d) != AudioSize {
		return Audio{}, ErrShortAudioPacket
	}
	return Audio{
		Sequence: binary.LittleEndian.Uint16(d[0:2]),
		Payload:  d[audioHeaderSize:],
	}, nil
}
