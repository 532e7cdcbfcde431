package bitmap

import (
	"fmt"
	"image"
	"image/color"

	"github.com/makeworld-the-better-one/dither/v2"
)

// Bitmap view over a two colour paletted image
type ImageBitmap struct {
	image *image.Paletted
	// colorMap[i] represents the bit value of the palette colour at index i.
	// If the first colour in the palette is black then colorMap[0] == 1.
	colorMap [2]byte
}

func (b *ImageBitmap) Width() int {
	return b.image.Rect.Dx()
}

func (b *ImageBitmap) Height() int {
	return b.image.Rect.Dy()
}

func (b *ImageBitmap) GetBit(x int, y int) byte {
	r := b.image.Rect
	return b.colorMap[b.image.ColorIndexAt(r.Min.X+x, r.Min.Y+y)]
}

func FromPaletted(i *image.Paletted) (*ImageBitmap, error) {
	if len(i.Palette) != 2 {
		return nil, fmt.Errorf("Image passed to FromPaletted must have only 2 colours in palette")
	}

	var colorMap [2]byte

	// whichever palette entry is closest to white prints as blank paper
	if i.Palette.Index(color.White) == 0 {
		colorMap = [2]byte{0, 1}
	} else {
		colorMap = [2]byte{1, 0}
	}

	return &ImageBitmap{
		image:    i,
		colorMap: colorMap,
	}, nil
}

// Dither binarizes a grayscale image with serpentine Floyd-Steinberg error
// diffusion
func Dither(g *image.Gray) (*ImageBitmap, error) {
	palette := []color.Color{color.Black, color.White}
	ditherer := dither.NewDitherer(palette)
	ditherer.Matrix = dither.FloydSteinberg
	ditherer.Serpentine = true

	return FromPaletted(ditherer.DitherPaletted(g))
}
