/*
NAME
  stats.go

DESCRIPTION
  stats.go maintains the atomic packet/frame counters described in
  spec.md §4.8 and periodically computes and emits the derived rates
  (pps, Mbps, fps, loss%, latency, buffer utilisation).

LICENSE
  Copyright (C) 2026 the c64stream authors. All Rights Reserved.
*/

// Package stats maintains lock-free counters for the video and audio
// pipelines and periodically reduces them into a human- and
// Prometheus-readable snapshot.
package stats

import (
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Interval between statistics batch emissions, per spec.md §4.8.
const Interval = 5 * time.Second

// Counters holds the atomic long counters for one of the two streams.
type Counters struct {
	PacketsReceived atomic.Int64
	BytesReceived   atomic.Int64
	SequenceErrors  atomic.Int64

	// Frame-delivery counters (spec.md §4.8). The Frames*, FrameDrops and
	// TotalPipelineLatency counters are video-only and stay zero for the
	// audio stream; PacketDrops and BufferSwaps are used by both streams.
	// FramesExpected counts assemblies for which the last-packet flag has
	// established an expected packet count (distinct from FramesCaptured,
	// which counts new frame-index sightings).
	FramesExpected       atomic.Int64
	FramesCaptured       atomic.Int64
	FramesCompleted      atomic.Int64
	FramesDelivered      atomic.Int64
	FrameDrops           atomic.Int64
	PacketDrops          atomic.Int64
	BufferSwaps          atomic.Int64 // ring batch-drop events, not individual packet drops
	TotalPipelineLatency atomic.Int64 // ns, accumulated since last reset
}

func (c *Counters) reset() {
	c.PacketsReceived.Store(0)
	c.BytesReceived.Store(0)
	c.SequenceErrors.Store(0)
	c.FramesExpected.Store(0)
	c.FramesCaptured.Store(0)
	c.FramesCompleted.Store(0)
	c.FramesDelivered.Store(0)
	c.FrameDrops.Store(0)
	c.PacketDrops.Store(0)
	c.BufferSwaps.Store(0)
	c.TotalPipelineLatency.Store(0)
}

// Report is one 5-second statistics emission (spec.md §4.8).
type Report struct {
	Kind              string
	PacketsPerSecond  float64
	Mbps              float64
	FramesPerSecond   float64
	LossPercent       float64
	ExpectedFPS       float64
	CaptureDropPct    float64
	DeliveryDropPct   float64
	AverageLatencyMs  float64
	BufferUtilisation float64
}

// Batcher accumulates Counters for video and audio and, every Interval,
// produces a Report for each and resets the underlying counters.
type Batcher struct {
	Video, Audio Counters

	expectedFPS   atomic.Value // float64, set by the format detector
	videoRingCap  int
	audioRingCap  int
	videoRingUsed func() int
	audioRingUsed func() int

	lastEmit time.Time

	metrics metricSet
}

// NewBatcher returns a Batcher that reports ring occupancy using the
// given accessor functions and capacities, and registers its Prometheus
// collectors against reg (pass prometheus.NewRegistry() or
// prometheus.DefaultRegisterer).
func NewBatcher(reg prometheus.Registerer, videoRingCap, audioRingCap int, videoRingUsed, audioRingUsed func() int) *Batcher {
	b := &Batcher{
		videoRingCap:  videoRingCap,
		audioRingCap:  audioRingCap,
		videoRingUsed: videoRingUsed,
		audioRingUsed: audioRingUsed,
		lastEmit:      time.Now(),
		metrics:       newMetricSet(),
	}
	b.expectedFPS.Store(float64(59.826))
	if reg != nil {
		b.metrics.mustRegister(reg)
	}
	return b
}

// SetExpectedFPS updates the fps used for expected/actual frame-rate
// reporting once the stream format has been detected.
func (b *Batcher) SetExpectedFPS(fps float64) { b.expectedFPS.Store(fps) }

// Batch emits a pair of Reports (video, audio) once Interval has passed
// since the last emission and is otherwise a cheap no-op check. It is not
// safe for concurrent use; Stream.Tick is its only caller.
func (b *Batcher) Batch(now time.Time) (video, audio *Report, emitted bool) {
	if now.Sub(b.lastEmit) < Interval {
		return nil, nil, false
	}
	elapsed := now.Sub(b.lastEmit).Seconds()
	b.lastEmit = now

	fps, _ := b.expectedFPS.Load().(float64)

	vr := reduce("video", &b.Video, elapsed, fps, b.videoRingCap, ringUsedOrZero(b.videoRingUsed))
	ar := reduce("audio", &b.Audio, elapsed, fps, b.audioRingCap, ringUsedOrZero(b.audioRingUsed))

	b.metrics.observe(&b.Video, &b.Audio, vr, ar)

	b.Video.reset()
	b.Audio.reset()

	return vr, ar, true
}

func ringUsedOrZero(f func() int) int {
	if f == nil {
		return 0
	}
	return f()
}

func reduce(kind string, c *Counters, elapsedSeconds, expectedFPS float64, ringCap, ringUsed int) *Report {
	pkts := float64(c.PacketsReceived.Load())
	bytes := float64(c.BytesReceived.Load())
	seqErrs := float64(c.SequenceErrors.Load())

	r := &Report{Kind: kind, ExpectedFPS: expectedFPS}
	if elapsedSeconds > 0 {
		r.PacketsPerSecond = pkts / elapsedSeconds
		r.Mbps = bytes * 8 / elapsedSeconds / 1e6
	}
	if pkts+seqErrs > 0 {
		r.LossPercent = 100 * seqErrs / (pkts + seqErrs)
	}

	if kind == "video" {
		completed := float64(c.FramesCompleted.Load())
		captured := float64(c.FramesCaptured.Load())
		delivered := float64(c.FramesDelivered.Load())
		drops := float64(c.FrameDrops.Load())

		if elapsedSeconds > 0 {
			r.FramesPerSecond = delivered / elapsedSeconds
		}
		if captured > 0 {
			r.CaptureDropPct = 100 * drops / captured
		}
		if completed > 0 {
			r.DeliveryDropPct = 100 * (completed - delivered) / completed
		}
		if delivered > 0 {
			r.AverageLatencyMs = float64(c.TotalPipelineLatency.Load()) / delivered / 1e6
		}
	}

	if ringCap > 0 {
		r.BufferUtilisation = 100 * float64(ringUsed) / float64(ringCap)
	}

	return r
}

// Add is a convenience for the hot path: increments packets/bytes and,
// when seq gap/reorder is detected by the caller, sequence errors.
func Add(c *Counters, n int, sequenceError bool) {
	c.PacketsReceived.Add(1)
	c.BytesReceived.Add(int64(n))
	if sequenceError {
		c.SequenceErrors.Add(1)
	}
}
