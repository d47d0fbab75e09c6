package palette

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConvertRowPurity(t *testing.T) {
	src := []byte{0x12, 0xFE, 0x00, 0xAB}
	dst1 := make([]byte, len(src)*2*BytesPerPixel)
	dst2 := make([]byte, len(src)*2*BytesPerPixel)

	ConvertRow(src, dst1, len(src))
	ConvertRow(src, dst2, len(src))

	assert.Equal(t, dst1, dst2, "ConvertRow must be a pure function")
}

func TestConvertRowPixelOrder(t *testing.T) {
	src := []byte{0x21} // low nibble 1, high nibble 2
	dst := make([]byte, 8)

	ConvertRow(src, dst, 1)

	p0 := Colour(0x1)
	p1 := Colour(0x2)
	require.Equal(t, p0[:], dst[0:4], "pixel 2i must equal palette[S[i]&0x0F]")
	require.Equal(t, p1[:], dst[4:8], "pixel 2i+1 must equal palette[S[i]>>4]")
}

func TestInitIdempotent(t *testing.T) {
	Init()
	before := pairLUT
	Init()
	Init()
	assert.Equal(t, before, pairLUT)
}

func TestColourAlphaAlwaysOpaque(t *testing.T) {
	for i := byte(0); i < NumColours; i++ {
		c := Colour(i)
		assert.Equal(t, byte(0xFF), c[3])
	}
}

func TestPackUint64RoundTrip(t *testing.T) {
	c := Colour(5)
	var pair [8]byte
	copy(pair[0:4], c[:])
	copy(pair[4:8], c[:])
	v := packUint64(pair)
	assert.NotZero(t, v)

	var back [8]byte
	binary.LittleEndian.PutUint64(back[:], v)
	assert.Equal(t, pair, back)
}
