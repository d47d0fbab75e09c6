/*
NAME
  sinks.go

DESCRIPTION
  sinks.go defines the callback shapes a consumer supplies to receive
  completed video frames and audio sample batches (spec.md §6.5).

LICENSE
  Copyright (C) 2026 the c64stream authors. All Rights Reserved.
*/

package stream

import "time"

// VideoFrameFunc receives one fully assembled, palette-converted video
// frame. rgba is a fresh buffer for each call and is owned by the callee.
// width and height are the detected frame dimensions in pixels; timestamp
// is the evenly spaced presentation time derived from the frame index and
// the detected frame rate, anchored at the first completed frame.
type VideoFrameFunc func(rgba []byte, width, height int, timestamp time.Time)

// AudioSamplesFunc receives one audio packet's worth of interleaved
// stereo 16-bit LE samples. payload is owned by the callee. timestamp is
// the stream start plus 4ms per audio packet delivered so far; until the
// first video frame has completed it is the packet's arrival time.
type AudioSamplesFunc func(payload []byte, timestamp time.Time)
