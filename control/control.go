/*
NAME
  control.go

DESCRIPTION
  control.go implements the byte-exact TCP control protocol used to start
  and stop the C64 Ultimate's video and audio streams (spec.md §4.6, §6.3).

LICENSE
  Copyright (C) 2026 the c64stream authors. All Rights Reserved.
*/

// Package control implements the short-lived TCP control channel used to
// start and stop the C64 Ultimate device's UDP streams.
package control

import (
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/pkg/errors"
)

// Stream identifies which of the device's two streams a command targets.
type Stream uint8

const (
	VideoStream Stream = 0
	AudioStream Stream = 1
)

// ControlPort is the TCP port the device listens on for control commands.
const ControlPort = 64

// NoControlHost is the sentinel device_host value that disables control
// commands entirely (spec.md §4.6, §6.6): used when the device is
// pre-configured out-of-band.
const NoControlHost = "0.0.0.0"

// dialTimeout bounds how long a single connect attempt may take.
const dialTimeout = 2 * time.Second

// ErrControlDisabled is returned by Client methods when the device host is
// the NoControlHost sentinel; callers should treat this as success-by-
// skip, not failure.
var ErrControlDisabled = errors.New("control: device host is 0.0.0.0, commands skipped")

// encodeStart and encodeStop build the wire bytes for a start or stop
// command, per spec.md §6.3.
func encodeStart(s Stream) []byte {
	return []byte{0x20, 0xFF, 0x02 + byte(s), 0x00, 0x00, 0x00}
}

func encodeStop(s Stream) []byte {
	return []byte{0x30, 0xFF, 0x03 + byte(s), 0x00}
}

// DecodeStart returns the Stream encoded in a start command, and whether d
// was a validly-shaped start command (encode/decode round-trip).
func DecodeStart(d []byte) (Stream, bool) {
	if len(d) != 6 || d[0] != 0x20 || d[1] != 0xFF || d[3] != 0x00 || d[4] != 0x00 || d[5] != 0x00 {
		return 0, false
	}
	return Stream(d[2] - 0x02), true
}

// DecodeStop returns the Stream encoded in a stop command, and whether d
// was a validly-shaped stop command.
func DecodeStop(d []byte) (Stream, bool) {
	if len(d) != 4 || d[0] != 0x30 || d[1] != 0xFF || d[3] != 0x00 {
		return 0, false
	}
	return Stream(d[2] - 0x03), true
}

// Client sends start/stop commands to a device's control port, and tracks
// consecutive failures for the exponential backoff described in
// spec.md §4.6 and §4.7.
type Client struct {
	host string
	port int

	mu            sync.Mutex
	consecutive   int
	lastAttempt   time.Time
	nextRetryWait time.Duration
	history       []byte // raw bytes of the last commands sent, at most historyCap bytes, diagnostic only.
}

// backoff bounds, per spec.md §4.6: "bounded retry with exponential
// backoff".
const (
	initialBackoff = 250 * time.Millisecond
	maxBackoff     = 30 * time.Second
	MaxAttempts    = 8
)

const historyCap = 16 * 6

// NewClient returns a Client that will send control commands to host:64.
// If host is the NoControlHost sentinel, every send method becomes a
// no-op returning ErrControlDisabled.
func NewClient(host string) *Client {
	return newClientPort(host, ControlPort)
}

// newClientPort is NewClient with the control port overridable, so tests
// can exercise Start/Stop's actual send path against a local listener
// instead of reimplementing it.
func newClientPort(host string, port int) *Client {
	return &Client{host: host, port: port, nextRetryWait: initialBackoff}
}

func (c *Client) lock()   { c.mu.Lock() }
func (c *Client) unlock() { c.mu.Unlock() }

// Disabled reports whether this client's device host is the NoControlHost
// sentinel.
func (c *Client) Disabled() bool { return c.host == NoControlHost }

// Start sends the start command for the given stream.
func (c *Client) Start(s Stream) error { return c.send(encodeStart(s)) }

// Stop sends the stop command for the given stream.
func (c *Client) Stop(s Stream) error { return c.send(encodeStop(s)) }

func (c *Client) send(cmd []byte) error {
	if c.Disabled() {
		return ErrControlDisabled
	}

	addr := net.JoinHostPort(c.host, strconv.Itoa(c.port))
	conn, err := net.DialTimeout("tcp", addr, dialTimeout)
	if err != nil {
		c.recordFailure()
		return errors.Wrap(err, "control: dial failed")
	}
	defer conn.Close()

	_, err = conn.Write(cmd)
	if err != nil {
		c.recordFailure()
		return errors.Wrap(err, "control: write failed")
	}

	c.recordSuccess(cmd)
	return nil
}

func (c *Client) recordFailure() {
	c.lock()
	defer c.unlock()
	c.consecutive++
	c.lastAttempt = time.Now()
	c.nextRetryWait *= 2
	if c.nextRetryWait > maxBackoff {
		c.nextRetryWait = maxBackoff
	}
}

func (c *Client) recordSuccess(cmd []byte) {
	c.lock()
	defer c.unlock()
	c.consecutive = 0
	c.nextRetryWait = initialBackoff
	c.lastAttempt = time.Now()
	for len(c.history) > 0 && len(c.history)+len(cmd) > historyCap {
		// Drop the oldest whole command: start commands are 6 bytes, stop 4.
		n := 4
		if c.history[0] == 0x20 {
			n = 6
		}
		c.history = c.history[n:]
	}
	c.history = append(c.history, cmd...)
}

// ConsecutiveFailures returns the number of consecutive send failures
// since the last success.
func (c *Client) ConsecutiveFailures() int {
	c.lock()
	defer c.unlock()
	return c.consecutive
}

// ShouldRetry reports whether enough time has elapsed since the last
// attempt to try again, and whether the bounded attempt count has not yet
// been exceeded.
func (c *Client) ShouldRetry(now time.Time) bool {
	c.lock()
	defer c.unlock()
	if c.consecutive == 0 || c.consecutive > MaxAttempts {
		return false
	}
	return now.Sub(c.lastAttempt) >= c.nextRetryWait
}

// History returns a copy of the raw bytes of the most recently
// successfully sent commands, for diagnostics.
func (c *Client) History() []byte {
	c.lock()
	defer c.unlock()
	out := make([]byte, len(c.history))
	copy(out, c.history)
	return out
}
