// This file implements packing of bitmap pixel data into the row-major,
// MSB-first layout accepted by the GS v 0 raster command

package bitmap

import "fmt"

// a bitmap packed in memory, 8 pixels per byte
type PackedBitmap struct {
	data                  []byte
	width, height, stride int
}

const bitsPerWord = 8

// weight of each pixel within its byte, leftmost pixel first
var pixelWeights = [bitsPerWord]byte{128, 64, 32, 16, 8, 4, 2, 1}

func (b *PackedBitmap) Width() int {
	return b.width
}

func (b *PackedBitmap) Height() int {
	return b.height
}

// Number of bytes per row
func (b *PackedBitmap) Stride() int {
	return b.stride
}

func (b *PackedBitmap) Data() []byte {
	return b.data
}

// Gets a single bit from the bitmap at the (x, y) coordinate, returns either 0 or 1
func (b *PackedBitmap) GetBit(x int, y int) byte {
	index := (y * b.stride) + (x / bitsPerWord)
	if b.data[index]&pixelWeights[x%bitsPerWord] != 0 {
		return 1
	}
	return 0
}

// Row returns the packed bytes of row y without copying
func (b *PackedBitmap) Row(y int) []byte {
	return b.data[y*b.stride : (y+1)*b.stride]
}

func (b *PackedBitmap) String() string {
	return fmt.Sprintf("PackedBitmap(%d,%d)", b.width, b.height)
}

// Packs any bitmap row by row. When the width isn't a multiple of 8 the
// final byte of each row is padded with blank pixels on the right.
func PackBitmap(b Bitmap) *PackedBitmap {
	width, height, stride := b.Width(), b.Height(), (b.Width()+bitsPerWord-1)/bitsPerWord
	data := make([]byte, stride*height)

	for y := range height {
		row := data[y*stride : (y+1)*stride]
		for x := range width {
			if b.GetBit(x, y)&1 == 1 {
				row[x/bitsPerWord] += pixelWeights[x%bitsPerWord]
			}
		}
	}

	return &PackedBitmap{data, width, height, stride}
}
