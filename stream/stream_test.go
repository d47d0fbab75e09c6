package stream

import (
	"bytes"
	"encoding/binary"
	"net"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"github.com/waltermfi/c64stream/packet"
	"github.com/waltermfi/c64stream/stream/config"
)

func buildVideoPacket(seq, frameIndex, lineIndex uint16, last bool, fill byte) []byte {
	d := make([]byte, packet.VideoSize)
	li := lineIndex
	if last {
		li |= 0x8000
	}
	binary.LittleEndian.PutUint16(d[0:2], seq)
	binary.LittleEndian.PutUint16(d[2:4], frameIndex)
	binary.LittleEndian.PutUint16(d[4:6], li)
	binary.LittleEndian.PutUint16(d[6:8], packet.ExpectedPixelsPerLine)
	d[8] = packet.ExpectedLinesPerPacket
	d[9] = packet.ExpectedBitsPerPixel
	binary.LittleEndian.PutUint16(d[10:12], 0)
	for i := 12; i < len(d); i++ {
		d[i] = fill
	}
	return d
}

func buildAudioPacket(seq uint16, fill byte) []byte {
	d := make([]byte, packet.AudioSize)
	binary.LittleEndian.PutUint16(d[0:2], seq)
	for i := 2; i < len(d); i++ {
		d[i] = fill
	}
	return d
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	c := &config.Config{
		DeviceHost:       config.NoControlHost,
		LocalBindAddress: "127.0.0.1",
		VideoPort:        0,
		AudioPort:        0,
		StaleThreshold:   time.Hour,
		Logger:           config.NopLogger(),
	}
	return c
}

func TestStreamDeliversCompleteVideoFrame(t *testing.T) {
	cfg := testConfig(t)

	frames := make(chan struct {
		rgba   []byte
		w, h   int
		stamp  time.Time
	}, 1)

	s := New(cfg, func(rgba []byte, w, h int, ts time.Time) {
		select {
		case frames <- struct {
			rgba  []byte
			w, h  int
			stamp time.Time
		}{rgba, w, h, ts}:
		default:
		}
	}, nil, prometheus.NewRegistry())

	require.NoError(t, s.Start())
	defer s.Destroy()

	conn, err := net.DialUDP("udp", nil, s.VideoAddr())
	require.NoError(t, err)
	defer conn.Close()

	const linesPerFrame = 272
	const packetsPerFrame = linesPerFrame / packet.ExpectedLinesPerPacket // 68

	for i := 0; i < packetsPerFrame; i++ {
		last := i == packetsPerFrame-1
		line := uint16(i * packet.ExpectedLinesPerPacket)
		pkt := buildVideoPacket(uint16(i), 1, line, last, 0x11)
		_, err := conn.Write(pkt)
		require.NoError(t, err)
	}

	select {
	case f := <-frames:
		require.Equal(t, packet.ExpectedPixelsPerLine, f.w)
		require.Equal(t, linesPerFrame, f.h)
		require.Len(t, f.rgba, f.w*f.h*4)
		// fill byte 0x11 packs to palette index 1 in both nibbles, in
		// every line of every packet, so the whole buffer is uniform.
		want := bytes.Repeat([]byte{0xEF, 0xEF, 0xEF, 0xFF}, f.w*f.h)
		if diff := cmp.Diff(want, f.rgba); diff != "" {
			t.Fatalf("assembled frame mismatch (-want +got):\n%s", diff)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for assembled video frame")
	}
}

func TestStreamDeliversAudioSamples(t *testing.T) {
	cfg := testConfig(t)

	samples := make(chan []byte, 1)
	s := New(cfg, nil, func(payload []byte, ts time.Time) {
		select {
		case samples <- payload:
		default:
		}
	}, prometheus.NewRegistry())

	require.NoError(t, s.Start())
	defer s.Destroy()

	conn, err := net.DialUDP("udp", nil, s.AudioAddr())
	require.NoError(t, err)
	defer conn.Close()

	pkt := buildAudioPacket(1, 0x42)
	_, err = conn.Write(pkt)
	require.NoError(t, err)

	select {
	case got := <-samples:
		require.Len(t, got, packet.AudioPayloadSize)
		require.Equal(t, byte(0x42), got[0])
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for audio samples")
	}
}

func TestIdealVideoTimestampsAreEvenlySpaced(t *testing.T) {
	cfg := testConfig(t)

	frames := make(chan time.Time, 8)

	s := New(cfg, func(rgba []byte, w, h int, ts time.Time) {
		frames <- ts
	}, nil, prometheus.NewRegistry())

	require.NoError(t, s.Start())
	defer s.Destroy()

	conn, err := net.DialUDP("udp", nil, s.VideoAddr())
	require.NoError(t, err)
	defer conn.Close()

	const linesPerFrame = 272
	const packetsPerFrame = linesPerFrame / packet.ExpectedLinesPerPacket // 68

	sendFrame := func(frameIndex uint16) {
		for i := 0; i < packetsPerFrame; i++ {
			last := i == packetsPerFrame-1
			line := uint16(i * packet.ExpectedLinesPerPacket)
			pkt := buildVideoPacket(uint16(i), frameIndex, line, last, 0x11)
			_, err := conn.Write(pkt)
			require.NoError(t, err)
		}
	}

	var stamps []time.Time
	for f := uint16(1); f <= 3; f++ {
		sendFrame(f)
		select {
		case ts := <-frames:
			stamps = append(stamps, ts)
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out waiting for frame %d", f)
		}
	}

	_, fps := s.Format()
	wantInterval := time.Duration(int64(1e9 / fps))
	for i := 1; i < len(stamps); i++ {
		got := stamps[i].Sub(stamps[i-1])
		require.InDelta(t, float64(wantInterval), float64(got), 1, "ideal timestamps must be evenly spaced")
	}
}

func TestUpdateBufferDelayWithoutRestart(t *testing.T) {
	cfg := testConfig(t)
	s := New(cfg, nil, nil, prometheus.NewRegistry())
	require.NoError(t, s.Start())
	defer s.Destroy()

	err := s.Update(map[string]string{config.KeyBufferDelayMs: "20"})
	require.NoError(t, err)
	require.Equal(t, uint16(20), s.cfg.BufferDelayMs)
}
