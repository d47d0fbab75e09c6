/*
NAME
  palette.go

DESCRIPTION
  palette.go provides the VIC-II palette and the 4-bit-per-pixel to RGBA
  conversion used on the hot packet path.

LICENSE
  Copyright (C) 2026 the c64stream authors. All Rights Reserved.
*/

// Package palette converts 4-bit-per-pixel indexed C64 Ultimate video
// payloads into 32-bit RGBA pixels using a precomputed pair lookup table.
package palette

import (
	"encoding/binary"
	"sync"
)

// NumColours is the number of VIC-II colour indices.
const NumColours = 16

// BytesPerPixel is the width of a converted RGBA pixel.
const BytesPerPixel = 4

// rgba holds the bit-exact VIC-II palette (colour index 0..15) in the
// device's native BGRA byte order, alpha forced to 0xFF. ConvertRow emits
// pixels in this same byte order; callers that need a specific channel
// order should treat the sink's "RGBA buffer" as this fixed 4-byte layout
// rather than assume R comes first, matching the source table in
// spec.md §6.4.
var rgba = [NumColours][4]byte{
	{0x00, 0x00, 0x00, 0xFF}, // 0
	{0xEF, 0xEF, 0xEF, 0xFF}, // 1
	{0x2F, 0x8D, 0x34, 0xFF}, // 2
	{0xCD, 0xD4, 0x6A, 0xFF}, // 3
	{0xA4, 0x35, 0x98, 0xFF}, // 4
	{0x42, 0xB4, 0x4C, 0xFF}, // 5
	{0xB1, 0x29, 0x2C, 0xFF}, // 6
	{0x5D, 0xEF, 0xEF, 0xFF}, // 7
	{0x20, 0x4E, 0x98, 0xFF}, // 8
	{0x00, 0x38, 0x5B, 0xFF}, // 9
	{0x6D, 0x67, 0xD1, 0xFF}, // 10
	{0x4A, 0x4A, 0x4A, 0xFF}, // 11
	{0x7B, 0x7B, 0x7B, 0xFF}, // 12
	{0x93, 0xEF, 0x9F, 0xFF}, // 13
	{0xEF, 0x6A, 0x6D, 0xFF}, // 14
	{0xB2, 0xB2, 0xB2, 0xFF}, // 15
}

// pairLUT maps a byte (two packed 4-bit pixel indices, low nibble first)
// to the two RGBA pixels it represents, packed into 8 bytes in memory
// order (pixel 2i at offset 0, pixel 2i+1 at offset 4).
var pairLUT [256][8]byte

var once sync.Once

// initLUT fills the 256-entry pair table. It is idempotent and safe to
// call from any number of goroutines; only the first call does work.
func initLUT() {
	once.Do(func() {
		for b := 0; b < 256; b++ {
			lo := b & 0x0F
			hi := b >> 4
			copy(pairLUT[b][0:4], rgba[lo][:])
			copy(pairLUT[b][4:8], rgba[hi][:])
		}
	})
}

// Init fills the pair lookup table. Repeated calls are no-ops. Callers do
// not strictly need to call this, since ConvertRow does so lazily, but
// doing it up-front at process start avoids the one-time cost landing on
// the first packet of the hot path.
func Init() { initLUT() }

// ConvertRow decodes pairCount bytes of 4-bit-per-pixel packed pixel data
// from src into 2*pairCount RGBA pixels written to dst. dst must have
// capacity for 2*pairCount*BytesPerPixel bytes. ConvertRow performs no
// allocation and has no failure mode; src/dst sizing is the caller's
// responsibility.
func ConvertRow(src []byte, dst []byte, pairCount int) {
	initLUT()
	for i := 0; i < pairCount; i++ {
		pair := &pairLUT[src[i]]
		copy(dst[i*8:i*8+8], pair[:])
	}
}

// Colour returns the RGBA bytes for a single VIC-II colour index (0..15).
func Colour(index byte) [4]byte {
	initLUT()
	return rgba[index&0x0F]
}

// packUint64 reinterprets an 8-byte RGBA pair as a little-endian uint64,
// which is what a single 64-bit store on the hot path would write. It is
// exposed for tests that want to verify the "single 64-bit store" framing
// described in spec.md §4.1 without depending on unsafe pointer casts.
func packUint64(pair [8]byte) uint64 {
	return binary.LittleEndian.Uint64(pair[:])
}
