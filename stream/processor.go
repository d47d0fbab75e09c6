/*
NAME
  processor.go

DESCRIPTION
  processor.go drains the jitter ring buffers, assembles video frames
  from their constituent packets, converts completed frames to RGBA and
  hands audio packets straight through to the consumer (spec.md §4.5).

LICENSE
  Copyright (C) 2026 the c64stream authors. All Rights Reserved.
*/

package stream

import (
	"time"

	"github.com/waltermfi/c64stream/assembly"
	"github.com/waltermfi/c64stream/packet"
	"github.com/waltermfi/c64stream/palette"
)

// popIdleSleep is how long the processor goroutines back off when a ring
// Pop finds nothing ready, to avoid a busy-spin while still polling at a
// fine enough grain for the jitter delay to matter.
const popIdleSleep = time.Millisecond

func (s *Stream) processVideo() {
	defer s.wg.Done()

	buf := make([]byte, packet.VideoSize)
	var asm assembly.Assembly
	active := false

	for {
		select {
		case <-s.quit:
			return
		default:
		}

		n, ts, ok := s.videoRing.Pop(buf, time.Now())
		if !ok {
			time.Sleep(popIdleSleep)
			continue
		}

		v, err := packet.ParseVideo(buf[:n])
		if err != nil {
			continue
		}

		if !active || packet.SeqDiff(asm.FrameIndex, v.FrameIndex) != 0 {
			if active && !asm.IsComplete() {
				s.videoCounters().FrameDrops.Add(1)
			}
			asm.Begin(v.FrameIndex, ts)
			active = true
			s.videoCounters().FramesCaptured.Add(1)
		}

		idx := v.PacketIndex()
		if idx < 0 {
			continue
		}

		payload := make([]byte, len(v.Payload))
		copy(payload, v.Payload)
		hadExpected := asm.Expected() > 0
		if !asm.TryAdd(idx, v.Last(), v.Line(), v.LinesPerPacket, payload) {
			s.videoCounters().PacketDrops.Add(1)
		}
		if !hadExpected && asm.Expected() > 0 {
			s.videoCounters().FramesExpected.Add(1)
		}

		switch {
		case asm.IsComplete():
			s.videoCounters().FramesCompleted.Add(1)
			s.deliverVideoFrame(&asm, ts)
			active = false
		case asm.IsTimedOut(ts):
			s.videoCounters().FrameDrops.Add(1)
			active = false
		}
	}
}

// deliverVideoFrame converts every received packet's payload to RGBA in
// place into a freshly allocated frame buffer and invokes the consumer
// callback. Lines belonging to packets that never arrived are left at
// zero (black), matching the "best-effort" partial-frame delivery
// described in spec.md §4.2/§4.5 for frames that complete only via the
// last-packet flag with earlier packets missing.
func (s *Stream) deliverVideoFrame(asm *assembly.Assembly, now time.Time) {
	expected := asm.Expected()
	if expected == 0 {
		return
	}

	slots := asm.Slots()
	linesPerPacket := 0
	for i := 0; i < expected; i++ {
		if slots[i].Valid {
			linesPerPacket = int(slots[i].LinesPerPacket)
			break
		}
	}
	if linesPerPacket == 0 {
		return
	}

	width := packet.ExpectedPixelsPerLine
	height := expected * linesPerPacket
	bytesPerLine := width / 2 // two 4-bit pixels packed per payload byte
	rowStride := width * palette.BytesPerPixel

	format, fps := DetectFormat(height)
	s.setFormat(format, fps)
	s.setDims(width, height)

	out := make([]byte, rowStride*height)

	for i := 0; i < expected; i++ {
		sl := &slots[i]
		if !sl.Valid || len(sl.Payload) < int(sl.LinesPerPacket)*bytesPerLine {
			continue
		}
		for l := 0; l < int(sl.LinesPerPacket); l++ {
			line := int(sl.LineIndex) + l
			if line >= height {
				break
			}
			src := sl.Payload[l*bytesPerLine : (l+1)*bytesPerLine]
			dst := out[line*rowStride : (line+1)*rowStride]
			palette.ConvertRow(src, dst, bytesPerLine)
		}
	}

	latency := now.Sub(asm.Start)
	s.batcher.Video.TotalPipelineLatency.Add(int64(latency))
	s.batcher.Video.FramesDelivered.Add(1)

	if s.onVideoFrame != nil {
		presented := s.idealVideoTimestamp(asm.FrameIndex, fps, now)
		s.onVideoFrame(out, width, height, presented)
	}
}

func (s *Stream) processAudio() {
	defer s.wg.Done()

	buf := make([]byte, packet.AudioSize)

	for {
		select {
		case <-s.quit:
			return
		default:
		}

		n, ts, ok := s.audioRing.Pop(buf, time.Now())
		if !ok {
			time.Sleep(popIdleSleep)
			continue
		}

		a, err := packet.ParseAudio(buf[:n])
		if err != nil {
			continue
		}
		if s.onAudioSamples == nil {
			continue
		}

		payload := make([]byte, len(a.Payload))
		copy(payload, a.Payload)
		s.onAudioSamples(payload, s.idealAudioTimestamp(ts))
	}
}
