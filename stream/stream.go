/*
NAME
  stream.go

DESCRIPTION
  stream.go implements the Stream lifecycle coordinator described in
  spec.md §4.7: it owns the UDP sockets, jitter rings, control channel
  and statistics batcher for one C64 Ultimate device, and exposes
  New/Start/Stop/Update/Tick/Destroy.

LICENSE
  Copyright (C) 2026 the c64stream authors. All Rights Reserved.
*/

// Package stream ties the packet, assembly, palette, ring, control and
// stats packages together into one running video+audio pipeline for a
// single C64 Ultimate device.
package stream

import (
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/waltermfi/c64stream/control"
	"github.com/waltermfi/c64stream/packet"
	"github.com/waltermfi/c64stream/palette"
	"github.com/waltermfi/c64stream/ring"
	"github.com/waltermfi/c64stream/stats"
	"github.com/waltermfi/c64stream/stream/config"
)

// Ring capacities: the worst-case packet count over the maximum jitter
// delay, for each stream (spec.md §3, §9 "higher-rate/lower-delay
// profile").
const (
	videoRingCapacity = ring.MaxVideoRateHz * int(ring.MaxDelay/time.Millisecond) / 1000
	audioRingCapacity = ring.MaxAudioRateHz * int(ring.MaxDelay/time.Millisecond) / 1000
)

// ErrAlreadyRunning is returned by Start when the Stream is already
// started.
var ErrAlreadyRunning = errors.New("stream: already running")

// Stream coordinates one device's UDP receivers, jitter buffers, frame
// processor, control channel and statistics. The zero value is not
// usable; construct with New.
type Stream struct {
	cfg *config.Config

	videoConn *net.UDPConn
	audioConn *net.UDPConn

	videoRing *ring.Ring
	audioRing *ring.Ring

	control *control.Client
	batcher *stats.Batcher

	onVideoFrame   VideoFrameFunc
	onAudioSamples AudioSamplesFunc

	lastVideoPacket atomic.Int64
	lastAudioPacket atomic.Int64

	format atomic.Int32
	fps    atomic.Value
	frameW atomic.Int32
	frameH atomic.Int32

	// Ideal-timestamp generation state (spec.md §4.5): stream_start_time_ns
	// is set once, by the first completed video frame, and anchors both
	// streams' evenly spaced presentation timestamps. Audio packets
	// delivered before it is set fall back to their raw arrival time.
	streamStart      atomic.Int64
	streamStartSet   atomic.Bool
	firstFrameNum    atomic.Int32
	audioPacketCount atomic.Int64

	quit    chan struct{}
	wg      sync.WaitGroup
	running atomic.Bool
}

// audioIntervalNs is the fixed spacing between audio packet presentation
// timestamps: 1e9 * 192 samples / 48000 Hz (spec.md §4.5).
const audioIntervalNs = 4_000_000

// New constructs a Stream for cfg, which must have already been
// Validate()d. reg receives the Prometheus collectors for this stream's
// statistics; pass nil to skip registration.
func New(cfg *config.Config, onVideoFrame VideoFrameFunc, onAudioSamples AudioSamplesFunc, reg prometheus.Registerer) *Stream {
	s := &Stream{
		cfg:            cfg,
		onVideoFrame:   onVideoFrame,
		onAudioSamples: onAudioSamples,
		quit:           make(chan struct{}),
	}
	delay := time.Duration(cfg.BufferDelayMs) * time.Millisecond
	s.videoRing = ring.NewVideo(videoRingCapacity, delay)
	s.audioRing = ring.NewAudio(audioRingCapacity, delay)
	s.control = control.NewClient(cfg.DeviceHost)
	s.batcher = stats.NewBatcher(reg, videoRingCapacity, audioRingCapacity, s.videoRing.Len, s.audioRing.Len)
	s.fps.Store(NTSCFPS)
	return s
}

func (s *Stream) videoCounters() *stats.Counters { return &s.batcher.Video }
func (s *Stream) audioCounters() *stats.Counters { return &s.batcher.Audio }

func (s *Stream) setFormat(f Format, fps float64) {
	s.format.Store(int32(f))
	s.fps.Store(fps)
	s.batcher.SetExpectedFPS(fps)
}

func (s *Stream) setDims(w, h int) {
	s.frameW.Store(int32(w))
	s.frameH.Store(int32(h))
}

// Format reports the most recently detected video format and its
// expected frame rate.
func (s *Stream) Format() (Format, float64) {
	fps, _ := s.fps.Load().(float64)
	return Format(s.format.Load()), fps
}

// idealVideoTimestamp derives the evenly spaced presentation timestamp for
// frameIndex, per spec.md §4.5's ideal-timestamp rule. The first call
// anchors stream_start_time_ns and first_frame_num to now/frameIndex.
func (s *Stream) idealVideoTimestamp(frameIndex uint16, fps float64, now time.Time) time.Time {
	if s.streamStartSet.CompareAndSwap(false, true) {
		s.streamStart.Store(now.UnixNano())
		s.firstFrameNum.Store(int32(frameIndex))
	}
	diff := packet.SeqDiff(uint16(s.firstFrameNum.Load()), frameIndex)
	interval := int64(1e9 / fps)
	return time.Unix(0, s.streamStart.Load()+int64(diff)*interval)
}

// idealAudioTimestamp derives the monotonic presentation timestamp for the
// next audio packet (spec.md §4.5). Falls back to the raw arrival time
// until stream_start_time_ns has been anchored by a completed video frame.
func (s *Stream) idealAudioTimestamp(now time.Time) time.Time {
	n := s.audioPacketCount.Add(1) - 1
	if !s.streamStartSet.Load() {
		return now
	}
	return time.Unix(0, s.streamStart.Load()+n*audioIntervalNs)
}

// VideoAddr returns the bound video socket's local address, or nil if
// the stream is not running. Useful for tests that bind to port 0 and
// need the OS-assigned ephemeral port.
func (s *Stream) VideoAddr() *net.UDPAddr {
	if s.videoConn == nil {
		return nil
	}
	return s.videoConn.LocalAddr().(*net.UDPAddr)
}

// AudioAddr returns the bound audio socket's local address, or nil if
// the stream is not running.
func (s *Stream) AudioAddr() *net.UDPAddr {
	if s.audioConn == nil {
		return nil
	}
	return s.audioConn.LocalAddr().(*net.UDPAddr)
}

// Start binds the video and audio UDP sockets, launches the receiver and
// processor goroutines, and sends the device start commands over the
// control channel (spec.md §4.7 start()).
func (s *Stream) Start() error {
	if s.running.Load() {
		return ErrAlreadyRunning
	}

	videoAddr := &net.UDPAddr{IP: net.ParseIP(s.cfg.LocalBindAddress), Port: int(s.cfg.VideoPort)}
	audioAddr := &net.UDPAddr{IP: net.ParseIP(s.cfg.LocalBindAddress), Port: int(s.cfg.AudioPort)}

	vConn, err := net.ListenUDP("udp", videoAddr)
	if err != nil {
		return errors.Wrap(err, "stream: video socket bind failed")
	}
	aConn, err := net.ListenUDP("udp", audioAddr)
	if err != nil {
		vConn.Close()
		return errors.Wrap(err, "stream: audio socket bind failed")
	}

	s.videoConn = vConn
	s.audioConn = aConn
	s.quit = make(chan struct{})

	now := time.Now().UnixNano()
	s.lastVideoPacket.Store(now)
	s.lastAudioPacket.Store(now)

	s.wg.Add(4)
	go s.receiveVideo()
	go s.receiveAudio()
	go s.processVideo()
	go s.processAudio()

	s.running.Store(true)

	if !s.control.Disabled() {
		if err := s.control.Start(control.VideoStream); err != nil {
			s.cfg.Logger.Warn("control start (video) failed", zap.Error(err))
		}
		if err := s.control.Start(control.AudioStream); err != nil {
			s.cfg.Logger.Warn("control start (audio) failed", zap.Error(err))
		}
	}
	return nil
}

// Stop sends the device stop commands, closes the sockets, waits for
// every goroutine to exit and flushes both jitter rings (spec.md §4.7
// stop()). Calling Stop when not running is a no-op. The control-channel
// and socket-close errors are independent failures of unrelated
// subsystems, so they are combined with multierr rather than only the
// first one surfacing.
func (s *Stream) Stop() error {
	if !s.running.Load() {
		return nil
	}

	var stopErr error
	if !s.control.Disabled() {
		if err := s.control.Stop(control.VideoStream); err != nil {
			stopErr = multierr.Append(stopErr, errors.Wrap(err, "control stop (video)"))
		}
		if err := s.control.Stop(control.AudioStream); err != nil {
			stopErr = multierr.Append(stopErr, errors.Wrap(err, "control stop (audio)"))
		}
	}

	close(s.quit)
	if err := s.videoConn.Close(); err != nil {
		stopErr = multierr.Append(stopErr, errors.Wrap(err, "video socket close"))
	}
	if err := s.audioConn.Close(); err != nil {
		stopErr = multierr.Append(stopErr, errors.Wrap(err, "audio socket close"))
	}
	s.wg.Wait()

	s.videoRing.Flush()
	s.audioRing.Flush()

	s.running.Store(false)
	return stopErr
}

// Update applies a map of configuration variable updates (spec.md §4.7
// update()). Changes to networking fields (host, ports, bind address)
// force a stop/start cycle; a buffer-delay-only change is applied to the
// live rings without interrupting reception.
func (s *Stream) Update(vars map[string]string) error {
	old := *s.cfg
	s.cfg.Update(vars)
	s.cfg.Validate()

	restart := config.NetworkingChanged(vars) &&
		(s.cfg.DeviceHost != old.DeviceHost || s.cfg.LocalBindAddress != old.LocalBindAddress ||
			s.cfg.VideoPort != old.VideoPort || s.cfg.AudioPort != old.AudioPort)

	if restart {
		wasRunning := s.running.Load()
		if wasRunning {
			if err := s.Stop(); err != nil {
				return err
			}
		}
		s.control = control.NewClient(s.cfg.DeviceHost)
		if wasRunning {
			return s.Start()
		}
		return nil
	}

	delay := time.Duration(s.cfg.BufferDelayMs) * time.Millisecond
	s.videoRing.SetDelay(delay, ring.MaxVideoRateHz)
	s.audioRing.SetDelay(delay, ring.MaxAudioRateHz)
	return nil
}

// Tick drives the periodic, non-packet-triggered work: statistics batch
// emission, stale-stream detection with no-signal frame emission, and
// control-channel retry (spec.md §4.7 tick(), §5). Callers should invoke
// Tick on a short fixed period (e.g. every 20-50ms) from outside the hot
// receive/process path.
func (s *Stream) Tick(now time.Time) {
	if vr, ar, emitted := s.batcher.Batch(now); emitted {
		s.cfg.Logger.Info("stream statistics",
			zap.Float64("video_pps", vr.PacketsPerSecond),
			zap.Float64("video_fps", vr.FramesPerSecond),
			zap.Float64("video_loss_pct", vr.LossPercent),
			zap.Float64("video_delivery_drop_pct", vr.DeliveryDropPct),
			zap.Float64("audio_pps", ar.PacketsPerSecond),
			zap.Float64("audio_loss_pct", ar.LossPercent),
		)
	}

	lastVideo := time.Unix(0, s.lastVideoPacket.Load())
	if s.running.Load() && now.Sub(lastVideo) > s.cfg.StaleThreshold {
		s.emitNoSignal(now)
	}

	if !s.control.Disabled() && s.control.ShouldRetry(now) {
		if err := s.control.Start(control.VideoStream); err != nil {
			s.cfg.Logger.Debug("control retry (video) failed", zap.Error(err))
		}
		if err := s.control.Start(control.AudioStream); err != nil {
			s.cfg.Logger.Debug("control retry (audio) failed", zap.Error(err))
		}
	}
}

// emitNoSignal synthesises a single solid-colour-0 frame at the last
// known (or a PAL default) resolution, so a consumer's display doesn't
// simply freeze on the last good frame when the device goes quiet
// (spec.md §5 staleness).
func (s *Stream) emitNoSignal(now time.Time) {
	if s.onVideoFrame == nil {
		return
	}
	width := int(s.frameW.Load())
	height := int(s.frameH.Load())
	if width == 0 || height == 0 {
		width, height = packet.ExpectedPixelsPerLine, 272
	}

	black := palette.Colour(0)
	out := make([]byte, width*height*palette.BytesPerPixel)
	for i := 0; i < width*height; i++ {
		copy(out[i*palette.BytesPerPixel:(i+1)*palette.BytesPerPixel], black[:])
	}
	s.onVideoFrame(out, width, height, now)
}

// Destroy stops the stream (if running) and releases its resources.
// After Destroy, the Stream must not be reused.
func (s *Stream) Destroy() {
	if err := s.Stop(); err != nil {
		s.cfg.Logger.Warn("stream destroy: stop failed", zap.Error(err))
	}
}
