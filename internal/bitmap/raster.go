package bitmap

import (
	"fmt"
	"image"
	"image/color"

	"golang.org/x/image/draw"

	"menuca.ca/restotool/internal/escpos"
)

// Binarization strategy used when turning a grayscale image into dots
type Threshold int

const (
	// Dots darker than the mean of the whole image are printed
	MeanThreshold Threshold = iota
	// Floyd-Steinberg error diffusion
	FloydSteinberg
)

func (t Threshold) String() string {
	switch t {
	case MeanThreshold:
		return "mean"
	case FloydSteinberg:
		return "floyd-steinberg"
	default:
		return fmt.Sprintf("Threshold(%d)", int(t))
	}
}

// Rounds n up to the next multiple of 8
const (
	// widest raster a GS v 0 header can describe
	MaxRasterWidth = 0xffff * bitsPerWord
	// largest canvas Rasterize will allocate
	MaxRasterPixels = 1 << 25
)

func ceil8(n int) int {
	return (n + bitsPerWord - 1) / bitsPerWord * bitsPerWord
}

// Rasterize converts src into a packed 1-bit image targetWidth dots wide.
// When leftPadding is positive src is first placed leftPadding dots from the
// left edge of a white canvas and the whole canvas is scaled. Width and height
// of the result are both rounded up to a multiple of 8, height being scaled by
// the same factor as width.
func Rasterize(src image.Image, targetWidth, leftPadding int, t Threshold) (*PackedBitmap, error) {
	if src == nil {
		return nil, fmt.Errorf("%w: no image", ErrInvalidDimensions)
	}
	b := src.Bounds()
	if b.Dx() <= 0 || b.Dy() <= 0 {
		return nil, fmt.Errorf("%w: source is %dx%d", ErrInvalidDimensions, b.Dx(), b.Dy())
	}
	if targetWidth <= 0 {
		return nil, fmt.Errorf("%w: target width %d", ErrInvalidDimensions, targetWidth)
	}
	if targetWidth > MaxRasterWidth {
		return nil, fmt.Errorf("%w: target width %d exceeds %d", ErrInvalidDimensions, targetWidth, MaxRasterWidth)
	}
	if leftPadding < 0 || leftPadding > MaxRasterWidth {
		return nil, fmt.Errorf("%w: left padding %d", ErrInvalidDimensions, leftPadding)
	}
	if !fits(b.Dx()+leftPadding, b.Dy()) {
		return nil, fmt.Errorf("%w: padded source %dx%d is too large", ErrInvalidDimensions, b.Dx()+leftPadding, b.Dy())
	}

	if leftPadding > 0 {
		src = padLeft(src, leftPadding)
		b = src.Bounds()
	}

	width := ceil8(targetWidth)
	scaled := int64(b.Dy()) * int64(width) / int64(b.Dx())
	if scaled > MaxRasterPixels {
		return nil, fmt.Errorf("%w: %dx%d scales too tall at width %d", ErrInvalidDimensions, b.Dx(), b.Dy(), width)
	}
	height := ceil8(int(scaled))
	if height <= 0 {
		return nil, fmt.Errorf("%w: %dx%d scales to zero height at width %d", ErrInvalidDimensions, b.Dx(), b.Dy(), width)
	}
	if !fits(width, height) {
		return nil, fmt.Errorf("%w: raster %dx%d is too large", ErrInvalidDimensions, width, height)
	}

	gray := Grayscale(scale(src, width, height))

	var plane Bitmap
	switch t {
	case FloydSteinberg:
		d, err := Dither(gray)
		if err != nil {
			return nil, err
		}
		plane = d
	default:
		p, err := ThresholdMean(gray)
		if err != nil {
			return nil, err
		}
		plane = p
	}

	return PackBitmap(plane), nil
}

// Reports whether a width x height canvas stays within MaxRasterPixels
func fits(width, height int) bool {
	return width > 0 && height > 0 && int64(width)*int64(height) <= MaxRasterPixels
}

// Places src on a white canvas, padding dots from the left edge
func padLeft(src image.Image, padding int) image.Image {
	b := src.Bounds()
	canvas := image.NewRGBA(image.Rect(0, 0, b.Dx()+padding, b.Dy()))
	draw.Draw(canvas, canvas.Bounds(), image.White, image.Point{}, draw.Src)
	draw.Draw(canvas, image.Rect(padding, 0, padding+b.Dx(), b.Dy()), src, b.Min, draw.Over)
	return canvas
}

// Scales src onto an opaque white width x height canvas. Transparent source
// pixels end up white.
func scale(src image.Image, width, height int) *image.RGBA {
	bounds := image.Rect(0, 0, width, height)
	dst := image.NewRGBA(bounds)
	draw.Draw(dst, bounds, image.White, image.Point{}, draw.Src)
	if src.Bounds().Dx() == width && src.Bounds().Dy() == height {
		draw.Draw(dst, bounds, src, src.Bounds().Min, draw.Over)
	} else {
		draw.BiLinear.Scale(dst, bounds, src, src.Bounds(), draw.Over, nil)
	}
	return dst
}

// Grayscale desaturates an image using luminance weights, keeping perceived
// brightness
func Grayscale(src image.Image) *image.Gray {
	b := src.Bounds()
	gray := image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))

	for y := 0; y < b.Dy(); y++ {
		for x := 0; x < b.Dx(); x++ {
			c := color.NRGBAModel.Convert(src.At(b.Min.X+x, b.Min.Y+y)).(color.NRGBA)
			gray.Pix[y*gray.Stride+x] = luminance(c.R, c.G, c.B)
		}
	}
	return gray
}

func luminance(r, g, b uint8) uint8 {
	v := (213*int(r) + 715*int(g) + 72*int(b) + 500) / 1000
	if v > 255 {
		v = 255
	}
	return uint8(v)
}

// ThresholdMean prints every pixel no lighter than the image's integer mean
// value. An image with a single grey level has nothing to separate, so it
// prints nothing.
func ThresholdMean(g *image.Gray) (*PixelBitmap, error) {
	w, h := g.Rect.Dx(), g.Rect.Dy()
	plane, err := NewPixelBitmap(w, h)
	if err != nil {
		return nil, err
	}

	var sum int64
	uniform := true
	first := g.Pix[0]
	for y := range h {
		for _, v := range g.Pix[y*g.Stride : y*g.Stride+w] {
			sum += int64(v)
			if v != first {
				uniform = false
			}
		}
	}
	if uniform {
		return plane, nil
	}
	mean := sum / int64(h) / int64(w)

	for y := range h {
		for x, v := range g.Pix[y*g.Stride : y*g.Stride+w] {
			if int64(v) <= mean {
				plane.SetBit(x, y, 1)
			}
		}
	}
	return plane, nil
}

// Returns the raster command stream for b: for every pixel row a GS v 0
// header of height one followed by that row's packed bytes. Bit 0 of mode
// selects double density.
func RasterCommands(b *PackedBitmap, mode int) ([]byte, error) {
	if b.Width() <= 0 || b.Height() <= 0 {
		return nil, fmt.Errorf("%w: %s", ErrInvalidDimensions, b)
	}
	header, err := escpos.RasterLineHeader(mode, b.Stride())
	if err != nil {
		return nil, err
	}

	out := make([]byte, 0, b.Height()*(len(header)+b.Stride()))
	for y := range b.Height() {
		out = append(out, header...)
		out = append(out, b.Row(y)...)
	}
	return out, nil
}
