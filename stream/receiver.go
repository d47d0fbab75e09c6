/*
NAME
  receiver.go

DESCRIPTION
  receiver.go runs the two UDP receive loops (video, audio) described in
  spec.md §4.4: read a datagram, validate it, push it into the
  corresponding jitter ring, and update the packet-level statistics.

LICENSE
  Copyright (C) 2026 the c64stream authors. All Rights Reserved.
*/

package stream

import (
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/waltermfi/c64stream/packet"
	"github.com/waltermfi/c64stream/stats"
)

// datagramHeadroom lets Read catch an oversized or malformed datagram
// instead of silently truncating it to the expected size.
const datagramHeadroom = 256

// seqTracker maintains wraparound-aware last-sequence state for one
// stream's sequence-error accounting.
type seqTracker struct {
	init atomic.Bool
	last uint16
}

func (t *seqTracker) observe(seq uint16) (sequenceError bool) {
	if !t.init.Load() {
		t.last = seq
		t.init.Store(true)
		return false
	}
	sequenceError = packet.SeqDiff(t.last, seq) != 1
	t.last = seq
	return sequenceError
}

func (s *Stream) receiveVideo() {
	defer s.wg.Done()

	buf := make([]byte, packet.VideoSize+datagramHeadroom)
	var seq seqTracker

	for {
		n, err := s.videoConn.Read(buf)
		if err != nil {
			select {
			case <-s.quit:
				return
			default:
				s.cfg.Logger.Debug("video socket read error", zap.Error(err))
				continue
			}
		}
		s.lastVideoPacket.Store(time.Now().UnixNano())

		d := buf[:n]
		v, err := packet.ParseVideo(d)
		if err != nil {
			s.videoCounters().PacketDrops.Add(1)
			continue
		}
		if err := v.ValidateFields(); err != nil {
			s.videoCounters().PacketDrops.Add(1)
			continue
		}

		sequenceError := seq.observe(v.Sequence)
		stats.Add(s.videoCounters(), n, sequenceError)

		dropped, err := s.videoRing.Push(d, time.Now())
		if err != nil {
			s.cfg.Logger.Debug("video ring push rejected packet", zap.Error(err))
			continue
		}
		if dropped > 0 {
			s.videoCounters().PacketDrops.Add(int64(dropped))
			s.videoCounters().BufferSwaps.Add(1)
		}
	}
}

func (s *Stream) receiveAudio() {
	defer s.wg.Done()

	buf := make([]byte, packet.AudioSize+datagramHeadroom)
	var seq seqTracker

	for {
		n, err := s.audioConn.Read(buf)
		if err != nil {
			select {
			case <-s.quit:
				return
			default:
				s.cfg.Logger.Debug("audio socket read error", zap.Error(err))
				continue
			}
		}
		s.lastAudioPacket.Store(time.Now().UnixNano())

		d := buf[:n]
		a, err := packet.ParseAudio(d)
		if err != nil {
			s.audioCounters().PacketDrops.Add(1)
			continue
		}

		sequenceError := seq.observe(a.Sequence)
		stats.Add(s.audioCounters(), n, sequenceError)

		dropped, err := s.audioRing.Push(d, time.Now())
		if err != nil {
			s.cfg.Logger.Debug("audio ring push rejected packet", zap.Error(err))
			continue
		}
		if dropped > 0 {
			s.audioCounters().PacketDrops.Add(int64(dropped))
			s.audioCounters().BufferSwaps.Add(1)
		}
	}
}
