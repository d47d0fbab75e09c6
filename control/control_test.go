package control

import (
	"net"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeDecodeStartRoundTrip(t *testing.T) {
	for _, s := range []Stream{VideoStream, AudioStream} {
		d := encodeStart(s)
		assert.Equal(t, []byte{0x20, 0xFF, 0x02 + byte(s), 0x00, 0x00, 0x00}, d)
		got, ok := DecodeStart(d)
		require.True(t, ok)
		assert.Equal(t, s, got)
	}
}

func TestEncodeDecodeStopRoundTrip(t *testing.T) {
	for _, s := range []Stream{VideoStream, AudioStream} {
		d := encodeStop(s)
		assert.Equal(t, []byte{0x30, 0xFF, 0x03 + byte(s), 0x00}, d)
		got, ok := DecodeStop(d)
		require.True(t, ok)
		assert.Equal(t, s, got)
	}
}

func TestDisabledHostSkipsCommands(t *testing.T) {
	c := NewClient(NoControlHost)
	assert.True(t, c.Disabled())
	assert.ErrorIs(t, c.Start(VideoStream), ErrControlDisabled)
	assert.ErrorIs(t, c.Stop(AudioStream), ErrControlDisabled)
}

// TestHandshakeWireBytes checks that Client.Start/Stop put exactly the
// four documented byte sequences on the wire, in order, through the
// production send path (not a reimplementation of it).
func TestHandshakeWireBytes(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	host, portStr, err := net.SplitHostPort(ln.Addr().String())
	require.NoError(t, err)
	port, err := strconv.Atoi(portStr)
	require.NoError(t, err)

	received := make(chan []byte, 4)
	go func() {
		for i := 0; i < 4; i++ {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			buf := make([]byte, 16)
			n, _ := conn.Read(buf)
			received <- buf[:n]
			conn.Close()
		}
	}()

	c := newClientPort(host, port)
	require.NoError(t, c.Start(VideoStream))
	require.NoError(t, c.Start(AudioStream))
	require.NoError(t, c.Stop(VideoStream))
	require.NoError(t, c.Stop(AudioStream))

	want := [][]byte{
		{0x20, 0xFF, 0x02, 0x00, 0x00, 0x00},
		{0x20, 0xFF, 0x03, 0x00, 0x00, 0x00},
		{0x30, 0xFF, 0x03, 0x00},
		{0x30, 0xFF, 0x04, 0x00},
	}
	for _, w := range want {
		select {
		case got := <-received:
			assert.Equal(t, w, got)
		case <-time.After(2 * time.Second):
			t.Fatal("timed out waiting for control command")
		}
	}
}

func TestRetryBackoffGrowsAndResetsOnSuccess(t *testing.T) {
	c := NewClient("127.0.0.1") // no dial is made; failures and success are recorded directly.
	c.recordFailure()
	first := c.nextRetryWait
	c.recordFailure()
	assert.Greater(t, c.nextRetryWait, first)

	c.recordSuccess(encodeStart(VideoStream))
	assert.Equal(t, 0, c.ConsecutiveFailures())
	assert.Equal(t, initialBackoff, c.nextRetryWait)
}

func TestHistoryCappedAndDiagnostic(t *testing.T) {
	c := NewClient("127.0.0.1")
	for i := 0; i < 10; i++ {
		c.recordSuccess(encodeStart(VideoStream))
	}
	assert.LessOrEqual(t, len(c.History()), historyCap)
}
