package bitmap

import (
	"errors"
	"fmt"
)

var ErrInvalidDimensions = errors.New("invalid dimensions")

// A 1-bit plane. GetBit returns 1 for a dot the printer should burn (black)
// and 0 for paper left blank.
type Bitmap interface {
	Width() int
	Height() int
	GetBit(x int, y int) byte
}

// Unpacked bitmap, one byte per pixel
type PixelBitmap struct {
	pixels        [][]byte
	width, height int
}

func NewPixelBitmap(width, height int) (*PixelBitmap, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("%w: %dx%d", ErrInvalidDimensions, width, height)
	}
	pixels := make([][]byte, height)
	for y := range height {
		pixels[y] = make([]byte, width)
	}
	return &PixelBitmap{pixels, width, height}, nil
}

func (b *PixelBitmap) Width() int {
	return b.width
}

func (b *PixelBitmap) Height() int {
	return b.height
}

func (b *PixelBitmap) GetBit(x int, y int) byte {
	return b.pixels[y][x]
}

func (b *PixelBitmap) SetBit(x int, y int, v byte) {
	b.pixels[y][x] = v & 1
}

func (b *PixelBitmap) String() string {
	return fmt.Sprintf("PixelBitmap(%d,%d)", b.width, b.height)
}
