package packet

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func makeVideoPacket(seq, frame, line, ppl uint16, lpp, bpp byte, last bool) []byte {
	d := make([]byte, VideoSize)
	li := line
	if last {
		li |= lastPacketFlag
	}
	binary.LittleEndian.PutUint16(d[0:2], seq)
	binary.LittleEndian.PutUint16(d[2:4], frame)
	binary.LittleEndian.PutUint16(d[4:6], li)
	binary.LittleEndian.PutUint16(d[6:8], ppl)
	d[8] = lpp
	d[9] = bpp
	return d
}

func TestParseVideoBoundary(t *testing.T) {
	ok := makeVideoPacket(1, 2, 3, ExpectedPixelsPerLine, ExpectedLinesPerPacket, ExpectedBitsPerPixel, false)
	require.Len(t, ok, VideoSize)
	_, err := ParseVideo(ok)
	assert.NoError(t, err)

	short := ok[:VideoSize-1]
	_, err = ParseVideo(short)
	assert.ErrorIs(t, err, ErrShortVideoPacket)

	long := append(ok, 0)
	_, err = ParseVideo(long)
	assert.ErrorIs(t, err, ErrShortVideoPacket)
}

func TestVideoLastFlagAndLine(t *testing.T) {
	d := makeVideoPacket(1, 2, 64, ExpectedPixelsPerLine, ExpectedLinesPerPacket, ExpectedBitsPerPixel, true)
	v, err := ParseVideo(d)
	require.NoError(t, err)
	assert.True(t, v.Last())
	assert.Equal(t, uint16(64), v.Line())
	assert.Equal(t, 16, v.PacketIndex())
}

func TestVideoValidateFields(t *testing.T) {
	bad := makeVideoPacket(1, 2, 0, 320, 4, 4, false)
	v, err := ParseVideo(bad)
	require.NoError(t, err)
	assert.ErrorIs(t, v.ValidateFields(), ErrBadVideoFields)
}

func TestParseAudioBoundary(t *testing.T) {
	d := make([]byte, AudioSize)
	binary.LittleEndian.PutUint16(d[0:2], 42)
	a, err := ParseAudio(d)
	require.NoError(t, err)
	assert.Equal(t, uint16(42), a.Sequence)
	assert.Len(t, a.Payload, AudioPayloadSize)

	_, err = ParseAudio(d[:AudioSize-1])
	assert.ErrorIs(t, err, ErrShortAudioPacket)
}

func TestSeqDiffWraparound(t *testing.T) {
	assert.Equal(t, int16(1), SeqDiff(65535, 0))
	assert.Equal(t, int16(-1), SeqDiff(0, 65535))
	assert.Equal(t, int16(2), SeqDiff(3, 5))
	assert.Equal(t, int16(-2), SeqDiff(4, 2))
}
