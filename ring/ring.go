/*
NAME
  ring.go

DESCRIPTION
  ring.go implements the jitter ring buffer described in spec.md §4.3: a
  fixed-capacity, single-producer/single-consumer circular buffer with a
  bounded insertion sort on push and a configurable release delay on pop.

LICENSE
  Copyright (C) 2026 the c64stream authors. All Rights Reserved.
*/

// Package ring implements the delayed-release jitter buffers used to
// absorb UDP reordering and jitter for the video and audio streams before
// handing packets to the frame processor.
package ring

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/waltermfi/c64stream/packet"
)

// Kind selects the per-variant key extraction and search depth described
// in spec.md §4.3 and the "closed variant" guidance of spec.md §9.
type Kind int

const (
	Video Kind = iota
	Audio
)

// Bounded insertion-sort search/shift depths, per spec.md §4.3.
const (
	videoSearchDepth = 8
	audioSearchDepth = 6
)

// Rate ceilings used to dimension ring capacity (spec.md §3, §9: this
// spec adopts the higher-rate/lower-delay profile).
const (
	MaxVideoRateHz = 3590
	MaxAudioRateHz = 250
	MaxDelay       = 500 * time.Millisecond
)

// key is the comparable ordering key for a buffered packet: (Primary,
// Secondary) = (frame index, line index) for video, (0, sequence) for
// audio. Comparisons use 16-bit wraparound-aware signed differences
// throughout.
type key struct {
	primary, secondary uint16
}

// newer reports whether a is strictly newer than b.
func newer(a, b key) bool {
	d := packet.SeqDiff(b.primary, a.primary)
	if d != 0 {
		return d > 0
	}
	return packet.SeqDiff(b.secondary, a.secondary) > 0
}

// slot mirrors spec.md §3's ring buffer slot entity.
type slot struct {
	valid   int32 // atomic
	payload []byte
	length  int
	tsUS    int64
	key     key
}

// Ring is one jitter buffer (either Video or Audio). One goroutine may
// call Push, and a (possibly different) single goroutine may call Pop;
// concurrent pushes or concurrent pops are not supported, matching
// spec.md §5's single-producer/single-consumer contract.
type Ring struct {
	kind        Kind
	capacity    int64
	searchDepth int64
	slotSize    int

	slots []slot

	head atomic.Int64 // producer-owned
	tail atomic.Int64 // consumer-owned

	delayUS atomic.Int64

	seqInit  atomic.Bool
	firstSeq uint16

	mu sync.Mutex // guards Flush and SetDelay's trim/rewrite only
}

// NewVideo returns a Ring sized for the video stream at the given initial
// delay and capacity (in packets).
func NewVideo(capacity int, delay time.Duration) *Ring {
	return newRing(Video, capacity, packet.VideoSize, videoSearchDepth, delay)
}

// NewAudio returns a Ring sized for the audio stream.
func NewAudio(capacity int, delay time.Duration) *Ring {
	return newRing(Audio, capacity, packet.AudioSize, audioSearchDepth, delay)
}

func newRing(kind Kind, capacity, slotSize, searchDepth int, delay time.Duration) *Ring {
	r := &Ring{
		kind:        kind,
		capacity:    int64(capacity),
		searchDepth: int64(searchDepth),
		slotSize:    slotSize,
		slots:       make([]slot, capacity),
	}
	for i := range r.slots {
		r.slots[i].payload = make([]byte, slotSize)
	}
	r.delayUS.Store(delay.Microseconds())
	return r
}

// Cap returns the ring's fixed capacity in packets.
func (r *Ring) Cap() int { return int(r.capacity) }

// Len returns the number of currently occupied slots (producer head minus
// consumer tail). This is a snapshot and may be stale by the time the
// caller reads it; used for buffer-utilisation statistics, not control
// flow.
func (r *Ring) Len() int {
	n := r.head.Load() - r.tail.Load()
	if n < 0 {
		return 0
	}
	return int(n)
}

func extractKey(kind Kind, d []byte) (key, error) {
	if kind == Video {
		v, err := packet.ParseVideo(d)
		if err != nil {
			return key{}, err
		}
		return key{primary: v.FrameIndex, secondary: v.Line()}, nil
	}
	a, err := packet.ParseAudio(d)
	if err != nil {
		return key{}, err
	}
	return key{secondary: a.Sequence}, nil
}

// Push copies payload into the ring with the given producer timestamp,
// after a bounded insertion sort toward the tail (spec.md §4.3). It
// returns the number of packets dropped from the tail to make room, which
// is non-zero only when the ring was full.
func (r *Ring) Push(payload []byte, now time.Time) (dropped int, err error) {
	k, err := extractKey(r.kind, payload)
	if err != nil {
		return 0, err
	}

	if !r.seqInit.Load() {
		r.firstSeq = k.secondary
		r.seqInit.Store(true)
	}

	head := r.head.Load()
	tail := r.tail.Load()
	occupied := head - tail

	if occupied >= r.capacity {
		dropped = r.dropBatch(&tail, occupied)
		occupied = head - tail
	}

	n := r.searchDepth
	if n > occupied {
		n = occupied
	}

	insertAt := head
	shifted := int64(0)
	for i := int64(0); i < n; i++ {
		cmpPos := head - 1 - i
		cmpSlot := &r.slots[cmpPos%r.capacity]
		if !newer(cmpSlot.key, k) {
			insertAt = cmpPos + 1
			break
		}
		shifted++
		insertAt = cmpPos
	}
	if shifted == n && n == r.searchDepth {
		// Shift cap reached without finding a stopping point: insert at
		// head and accept minor reordering (spec.md §9 open question).
		insertAt = head
		shifted = 0
	}

	for p := head; p > insertAt; p-- {
		r.slots[p%r.capacity].copyFrom(&r.slots[(p-1)%r.capacity])
	}

	s := &r.slots[insertAt%r.capacity]
	s.length = copy(s.payload, payload)
	for i := s.length; i < len(s.payload); i++ {
		s.payload[i] = 0
	}
	s.tsUS = now.UnixMicro()
	s.key = k
	atomic.StoreInt32(&s.valid, 1)

	r.head.Store(head + 1)
	return dropped, nil
}

func (s *slot) copyFrom(o *slot) {
	s.length = copy(s.payload, o.payload[:o.length])
	s.tsUS = o.tsUS
	s.key = o.key
	atomic.StoreInt32(&s.valid, atomic.LoadInt32(&o.valid))
}

// dropBatch drops packets from the tail when the ring is full: at least
// 2, roughly current_count/10, but never more than half the buffer
// (spec.md §4.3), creating room while preserving the majority of buffered
// data. It returns the number of packets dropped and advances *tail.
func (r *Ring) dropBatch(tail *int64, occupied int64) int {
	n := occupied / 10
	if n < 2 {
		n = 2
	}
	max := occupied / 2
	if max < 2 {
		max = 2
	}
	if n > max {
		n = max
	}
	if n > occupied {
		n = occupied
	}
	for i := int64(0); i < n; i++ {
		atomic.StoreInt32(&r.slots[(*tail+i)%r.capacity].valid, 0)
	}
	*tail += n
	r.tail.Store(*tail)
	return int(n)
}

// Pop removes and returns the oldest packet, if any is both present and
// old enough to satisfy the configured delay. ok is false if the ring is
// empty or the oldest packet hasn't aged past the delay yet (spec.md §4.3
// pop()).
func (r *Ring) Pop(out []byte, now time.Time) (n int, ts time.Time, ok bool) {
	tail := r.tail.Load()
	head := r.head.Load()
	if head == tail {
		return 0, time.Time{}, false
	}

	s := &r.slots[tail%r.capacity]
	if atomic.LoadInt32(&s.valid) == 0 {
		r.tail.Store(tail + 1)
		return 0, time.Time{}, false
	}

	delayUS := r.delayUS.Load()
	nowUS := now.UnixMicro()
	if nowUS-s.tsUS < delayUS {
		return 0, time.Time{}, false
	}

	n = copy(out, s.payload[:s.length])
	ts = time.UnixMicro(s.tsUS)
	atomic.StoreInt32(&s.valid, 0)
	r.tail.Store(tail + 1)
	return n, ts, true
}

// SetDelay changes the release delay, clamped to the capacity-derived
// maximum. Reductions are handled per spec.md §4.3: a drop to zero from
// more than 50ms flushes the ring outright; any other reduction trims
// occupancy to the new capacity and rewrites timestamps so buffered
// packets become immediately poppable.
func (r *Ring) SetDelay(d time.Duration, maxRate int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	maxCapDelay := time.Duration(r.capacity) * time.Second / time.Duration(maxRate)
	if d > maxCapDelay {
		d = maxCapDelay
	}
	if d > MaxDelay {
		d = MaxDelay
	}

	oldUS := r.delayUS.Load()
	newUS := d.Microseconds()

	const flushThresholdUS = 50 * int64(time.Millisecond/time.Microsecond)
	if newUS == 0 && oldUS > flushThresholdUS {
		r.flushLocked()
		r.delayUS.Store(newUS)
		return
	}

	newCapacity := int64(maxRate) * d.Microseconds() / int64(time.Second/time.Microsecond)
	if newCapacity < 1 {
		newCapacity = 1
	}
	if newCapacity > r.capacity {
		newCapacity = r.capacity
	}

	tail := r.tail.Load()
	head := r.head.Load()
	for head-tail > newCapacity {
		atomic.StoreInt32(&r.slots[tail%r.capacity].valid, 0)
		tail++
	}
	r.tail.Store(tail)

	rewriteTS := time.Now().Add(-d - time.Millisecond).UnixMicro()
	for p := tail; p < head; p++ {
		s := &r.slots[p%r.capacity]
		if atomic.LoadInt32(&s.valid) == 1 {
			s.tsUS = rewriteTS
		}
	}

	r.delayUS.Store(newUS)
}

// Flush resets the ring to its just-created state: head, tail and the
// sequence tracker are cleared, and every slot's validity is cleared.
func (r *Ring) Flush() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.flushLocked()
}

func (r *Ring) flushLocked() {
	r.head.Store(0)
	r.tail.Store(0)
	r.seqInit.Store(false)
	for i := range r.slots {
		atomic.StoreInt32(&r.slots[i].valid, 0)
	}
}
