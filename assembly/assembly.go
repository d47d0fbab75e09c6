/*
NAME
  assembly.go

DESCRIPTION
  assembly.go implements the per-frame packet bookkeeping described in
  spec.md §4.2: a bitmask-keyed state machine that tracks which of a
  frame's (up to MaxPackets) packets have arrived, independent of
  arrival order.

LICENSE
  Copyright (C) 2026 the c64stream authors. All Rights Reserved.
*/

// Package assembly tracks the in-flight state of a single C64 Ultimate
// video frame as its packets arrive, and reports completion, timeout and
// duplicate/out-of-range conditions.
package assembly

import (
	"math/bits"
	"time"
)

// MaxPackets is the largest number of packets a single frame assembly can
// hold; packet_index >= MaxPackets is rejected. A PAL frame is 272 lines
// at 4 lines/packet, i.e. 68 packets (indices 0-67), so this must clear
// 68; it's sized to two uint64 words (128) for headroom.
const MaxPackets = 128

// maskWords is the number of uint64 words backing the received bitmask.
const maskWords = MaxPackets / 64

// FrameTimeout is the duration after which an incomplete assembly is
// considered abandoned (spec.md §4.2, §5).
const FrameTimeout = 100 * time.Millisecond

// Slot holds the per-packet metadata and payload retained for final
// image assembly.
type Slot struct {
	Valid          bool
	LineIndex      uint16
	LinesPerPacket uint8
	Payload        []byte
}

// State is INIT, RECEIVING, COMPLETE or TIMED_OUT (spec.md §4.2).
type State int

const (
	Init State = iota
	Receiving
	Complete
	TimedOut
)

// Assembly is the mutable state for one in-flight frame. It is owned by a
// single goroutine (the frame processor) in steady state; spec.md's
// "assembly mutex" is therefore a no-op in this implementation and is
// omitted, as only one goroutine ever touches an Assembly instance here
// (see stream.Processor).
type Assembly struct {
	FrameIndex uint16
	Start      time.Time

	received [maskWords]uint64 // bitmask, one bit per packet_index
	count    int
	expected int // 0 until the last-packet flag has been seen

	slots [MaxPackets]Slot
}

// Begin resets the assembly for a new frame-index and records the start
// time (spec.md §4.2 begin()).
func (a *Assembly) Begin(frameIndex uint16, now time.Time) {
	*a = Assembly{FrameIndex: frameIndex, Start: now}
}

// State reports the current lifecycle state.
func (a *Assembly) State(now time.Time) State {
	switch {
	case a.expected > 0 && a.count >= a.expected:
		return Complete
	case now.Sub(a.Start) > FrameTimeout:
		return TimedOut
	case a.count > 0:
		return Receiving
	default:
		return Init
	}
}

// TryAdd records one packet's arrival. It returns false if packetIndex is
// out of range or already recorded (spec.md §4.2 try_add()); otherwise it
// stores the slot, sets the bit, and returns true. If last is set and
// expected hasn't been established yet, expected is set to packetIndex+1.
func (a *Assembly) TryAdd(packetIndex int, last bool, lineIndex uint16, linesPerPacket uint8, payload []byte) bool {
	if packetIndex < 0 || packetIndex >= MaxPackets {
		return false
	}
	word, bit := packetIndex/64, uint64(1)<<uint(packetIndex%64)
	if a.received[word]&bit != 0 {
		return false
	}
	a.received[word] |= bit
	a.count++
	a.slots[packetIndex] = Slot{
		Valid:          true,
		LineIndex:      lineIndex,
		LinesPerPacket: linesPerPacket,
		Payload:        payload,
	}
	if last && a.expected == 0 {
		a.expected = packetIndex + 1
	}
	return true
}

// Count returns the number of packets recorded so far. Invariant: always
// equal to the population count of the internal bitmask.
func (a *Assembly) Count() int { return a.count }

// popcount exposes bits.OnesCount64 over the internal mask, used only by
// tests to check the count-equals-popcount invariant without a second
// counting mechanism.
func (a *Assembly) popcount() int {
	n := 0
	for _, word := range a.received {
		n += bits.OnesCount64(word)
	}
	return n
}

// Expected returns the established expected packet count, or 0 if the
// last-packet flag hasn't been seen yet.
func (a *Assembly) Expected() int { return a.expected }

// IsComplete reports bitmask-complete (spec.md GLOSSARY: "Assembly
// completion").
func (a *Assembly) IsComplete() bool { return a.expected > 0 && a.count >= a.expected }

// IsTimedOut reports whether FrameTimeout has elapsed since Start.
func (a *Assembly) IsTimedOut(now time.Time) bool { return now.Sub(a.Start) > FrameTimeout }

// Slots returns the received packet slots, indexed by packet_index. Only
// entries with Valid set contain data.
func (a *Assembly) Slots() *[MaxPackets]Slot { return &a.slots }
