package ring

import (
	"encoding/binary"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/waltermfi/c64stream/packet"
)

func audioPacket(seq uint16) []byte {
	d := make([]byte, packet.AudioSize)
	binary.LittleEndian.PutUint16(d[0:2], seq)
	return d
}

func videoPacket(frame, line uint16) []byte {
	d := make([]byte, packet.VideoSize)
	binary.LittleEndian.PutUint16(d[2:4], frame)
	binary.LittleEndian.PutUint16(d[4:6], line)
	binary.LittleEndian.PutUint16(d[6:8], packet.ExpectedPixelsPerLine)
	d[8] = packet.ExpectedLinesPerPacket
	d[9] = packet.ExpectedBitsPerPixel
	return d
}

func TestPushPopOrderWithZeroDelay(t *testing.T) {
	r := NewAudio(64, 0) // zero delay, ordered arrival => FIFO pop order.
	base := time.Now()
	for i := uint16(0); i < 10; i++ {
		_, err := r.Push(audioPacket(i), base.Add(time.Duration(i)*time.Millisecond))
		require.NoError(t, err)
	}

	out := make([]byte, packet.AudioSize)
	for i := uint16(0); i < 10; i++ {
		n, _, ok := r.Pop(out, base.Add(20*time.Millisecond))
		require.True(t, ok)
		seq := binary.LittleEndian.Uint16(out[:n])
		assert.Equal(t, i, seq)
	}
}

func TestPopRespectsDelay(t *testing.T) {
	r := NewAudio(64, 50*time.Millisecond)
	base := time.Now()
	_, err := r.Push(audioPacket(1), base)
	require.NoError(t, err)

	out := make([]byte, packet.AudioSize)
	_, _, ok := r.Pop(out, base.Add(10*time.Millisecond))
	assert.False(t, ok, "packet younger than delay must not be popped")

	_, _, ok = r.Pop(out, base.Add(60*time.Millisecond))
	assert.True(t, ok)
}

func TestSequenceAnomalyDoesNotCrashOrdering(t *testing.T) {
	// push 1,2,3,5,6 (a gap), then drain; ring just needs to not choke,
	// sequence-error counting itself lives in the receiver/stats layer.
	r := NewAudio(64, 0)
	base := time.Now()
	for i, seq := range []uint16{1, 2, 3, 5, 6} {
		_, err := r.Push(audioPacket(seq), base.Add(time.Duration(i)*time.Millisecond))
		require.NoError(t, err)
	}
	out := make([]byte, packet.AudioSize)
	var got []uint16
	for {
		n, _, ok := r.Pop(out, base.Add(time.Second))
		if !ok {
			break
		}
		got = append(got, binary.LittleEndian.Uint16(out[:n]))
	}
	assert.Equal(t, []uint16{1, 2, 3, 5, 6}, got)
}

func TestShuffledVideoFrameReorderedWithinSearchDepth(t *testing.T) {
	r := NewVideo(64, 0)
	base := time.Now()
	lines := []uint16{12, 0, 8, 4}
	for i, l := range lines {
		_, err := r.Push(videoPacket(100, l), base.Add(time.Duration(i)*time.Millisecond))
		require.NoError(t, err)
	}
	out := make([]byte, packet.VideoSize)
	var got []uint16
	for {
		n, _, ok := r.Pop(out, base.Add(time.Second))
		if !ok {
			break
		}
		got = append(got, binary.LittleEndian.Uint16(out[4:6]))
	}
	assert.Equal(t, []uint16{0, 4, 8, 12}, got, "bounded insertion sort should restore line order within search depth")
}

func TestRingFullDropsTailBatch(t *testing.T) {
	const cap = 20
	r := NewAudio(cap, time.Hour) // huge delay so nothing pops out on its own
	base := time.Now()
	for i := 0; i < cap; i++ {
		_, err := r.Push(audioPacket(uint16(i)), base)
		require.NoError(t, err)
	}
	assert.Equal(t, cap, r.Len())

	dropped, err := r.Push(audioPacket(uint16(cap)), base)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, dropped, 2)
	assert.LessOrEqual(t, r.Len(), cap)
}

func TestSetDelayReductionRewritesTimestamps(t *testing.T) {
	r := NewAudio(64, 200*time.Millisecond)
	base := time.Now()
	for i := uint16(0); i < 20; i++ {
		_, err := r.Push(audioPacket(i), base)
		require.NoError(t, err)
	}

	r.SetDelay(50*time.Millisecond, MaxAudioRateHz)

	out := make([]byte, packet.AudioSize)
	n, _, ok := r.Pop(out, time.Now())
	require.True(t, ok, "reducing delay must make buffered packets poppable within one poll")
	// 250 pps * 50ms = 12 slots, so the 8 oldest of the 20 are trimmed.
	assert.Equal(t, uint16(8), binary.LittleEndian.Uint16(out[:n]))
}

func TestSetDelayToZeroFromAboveThresholdFlushes(t *testing.T) {
	r := NewAudio(64, 200*time.Millisecond)
	base := time.Now()
	_, err := r.Push(audioPacket(1), base)
	require.NoError(t, err)

	r.SetDelay(0, MaxAudioRateHz)

	assert.Equal(t, 0, r.Len())
}

func TestFlushThenPushPopActsFresh(t *testing.T) {
	r := NewAudio(64, 0)
	base := time.Now()
	_, err := r.Push(audioPacket(1), base)
	require.NoError(t, err)

	r.Flush()
	assert.Equal(t, 0, r.Len())

	_, err = r.Push(audioPacket(2), base)
	require.NoError(t, err)
	out := make([]byte, packet.AudioSize)
	n, _, ok := r.Pop(out, base.Add(time.Second))
	require.True(t, ok)
	assert.Equal(t, uint16(2), binary.LittleEndian.Uint16(out[:n]))
}

func TestOccupancyNeverExceedsCapacityAfterSetDelay(t *testing.T) {
	r := NewAudio(100, 500*time.Millisecond)
	base := time.Now()
	for i := uint16(0); i < 100; i++ {
		_, err := r.Push(audioPacket(i), base)
		require.NoError(t, err)
	}
	r.SetDelay(50*time.Millisecond, MaxAudioRateHz)
	// capacity derived from the new delay: 250 pps * 50ms = 12 slots.
	assert.LessOrEqual(t, r.Len(), 12)
}
