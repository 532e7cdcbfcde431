package bitmap

import (
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/image/draw"
)

func solid(w, h int, c color.Color) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(img, img.Bounds(), image.NewUniform(c), image.Point{}, draw.Src)
	return img
}

func TestRasterizeWhiteImageIsBlank(t *testing.T) {
	for _, th := range []Threshold{MeanThreshold, FloydSteinberg} {
		t.Run(th.String(), func(t *testing.T) {
			r, err := Rasterize(solid(100, 50, color.White), 384, 0, th)
			require.NoError(t, err)

			assert.Equal(t, 384, r.Width())
			assert.Equal(t, 0, r.Height()%8)
			assert.Len(t, r.Data(), 384/8*r.Height())
			for _, b := range r.Data() {
				require.Equal(t, byte(0), b)
			}
		})
	}
}

func TestRasterizeUniformImageIsBlank(t *testing.T) {
	r, err := Rasterize(solid(64, 64, color.RGBA{90, 90, 90, 255}), 64, 0, MeanThreshold)
	require.NoError(t, err)
	for _, b := range r.Data() {
		require.Equal(t, byte(0), b)
	}
}

func TestRasterizeHalfBlack(t *testing.T) {
	img := solid(16, 8, color.White)
	draw.Draw(img, image.Rect(0, 0, 8, 8), image.Black, image.Point{}, draw.Src)

	r, err := Rasterize(img, 16, 0, MeanThreshold)
	require.NoError(t, err)
	require.Equal(t, 2, r.Stride())
	require.Equal(t, 8, r.Height())
	for y := range 8 {
		assert.Equal(t, []byte{0xFF, 0x00}, r.Row(y), "row %d", y)
	}
}

func TestRasterizeDimensions(t *testing.T) {
	tests := []struct {
		name                  string
		srcW, srcH            int
		target, padding       int
		wantWidth, wantHeight int
	}{
		{"300x1 to 384", 300, 1, 384, 0, 384, 8},
		{"width rounded up", 100, 100, 130, 0, 136, 136},
		{"half height", 768, 200, 384, 0, 384, 104},
		{"padded canvas", 200, 100, 384, 184, 384, 104},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, err := Rasterize(solid(tt.srcW, tt.srcH, color.White), tt.target, tt.padding, MeanThreshold)
			require.NoError(t, err)
			assert.Equal(t, tt.wantWidth, r.Width())
			assert.Equal(t, tt.wantHeight, r.Height())
			assert.Equal(t, tt.wantWidth/8, r.Stride())
			assert.Len(t, r.Data(), r.Stride()*r.Height())
		})
	}
}

func TestRasterizePaddingIsWhite(t *testing.T) {
	// black image padded by its own width: left half blank, right half printed
	r, err := Rasterize(solid(64, 8, color.Black), 128, 64, MeanThreshold)
	require.NoError(t, err)
	require.Equal(t, 16, r.Stride())
	for y := range r.Height() {
		row := r.Row(y)
		for i := 0; i < 8; i++ {
			assert.Equal(t, byte(0x00), row[i])
		}
		for i := 8; i < 16; i++ {
			assert.Equal(t, byte(0xFF), row[i])
		}
	}
}

func TestRasterizeInvalid(t *testing.T) {
	tests := []struct {
		name    string
		img     image.Image
		target  int
		padding int
	}{
		{"nil image", nil, 384, 0},
		{"empty image", image.NewRGBA(image.Rect(0, 0, 0, 0)), 384, 0},
		{"zero target", solid(10, 10, color.White), 0, 0},
		{"negative padding", solid(10, 10, color.White), 384, -1},
		{"collapses to zero height", solid(10000, 1, color.White), 8, 0},
		{"huge padding", solid(16, 16, color.Black), 8, 1 << 62},
		{"wider than a raster header allows", solid(16, 16, color.Black), MaxRasterWidth + 1, 0},
		{"scales too tall", solid(1, 100000, color.Black), 384, 0},
		{"padded canvas too large", solid(16, 100000, color.Black), 384, 400},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var err error
			require.NotPanics(t, func() {
				_, err = Rasterize(tt.img, tt.target, tt.padding, MeanThreshold)
			})
			assert.ErrorIs(t, err, ErrInvalidDimensions)
		})
	}
}

func TestRasterCommands(t *testing.T) {
	r, err := Rasterize(solid(300, 1, color.White), 384, 0, MeanThreshold)
	require.NoError(t, err)

	out, err := RasterCommands(r, 0)
	require.NoError(t, err)
	require.Len(t, out, 8*(8+48))

	header := []byte{0x1D, 'v', '0', 0, 48, 0, 1, 0}
	for row := range 8 {
		seg := out[row*56 : (row+1)*56]
		assert.Equal(t, header, seg[:8])
		assert.Len(t, seg[8:], 48)
	}

	out, err = RasterCommands(r, 1)
	require.NoError(t, err)
	assert.Equal(t, byte(1), out[3])
}

func checkerboard(size int) *image.RGBA {
	img := solid(size, size, color.White)
	for y := range size {
		for x := range size {
			if (x+y)%2 == 0 {
				img.Set(x, y, color.Black)
			}
		}
	}
	return img
}

func TestCheckerboardRows(t *testing.T) {
	r, err := Rasterize(checkerboard(8), 8, 0, MeanThreshold)
	require.NoError(t, err)
	require.Equal(t, 8, r.Width())
	require.Equal(t, 8, r.Height())

	out, err := RasterCommands(r, 0)
	require.NoError(t, err)
	require.Len(t, out, 8*(8+1))

	header := []byte{0x1D, 'v', '0', 0, 1, 0, 1, 0}
	for y := range 8 {
		// 128+32+8+2 on even rows, 64+16+4+1 on odd ones
		want := byte(0xAA)
		if y%2 == 1 {
			want = 0x55
		}
		seg := out[y*9 : (y+1)*9]
		assert.Equal(t, header, seg[:8], "row %d", y)
		assert.Equal(t, want, seg[8], "row %d", y)
	}
}

func TestThresholdTieIsPrinted(t *testing.T) {
	// three equal bands at 0, 100 and 200 average to exactly 100
	img := solid(24, 8, color.White)
	draw.Draw(img, image.Rect(0, 0, 8, 8), image.Black, image.Point{}, draw.Src)
	draw.Draw(img, image.Rect(8, 0, 16, 8), image.NewUniform(color.Gray{100}), image.Point{}, draw.Src)
	draw.Draw(img, image.Rect(16, 0, 24, 8), image.NewUniform(color.Gray{200}), image.Point{}, draw.Src)

	r, err := Rasterize(img, 24, 0, MeanThreshold)
	require.NoError(t, err)
	for y := range 8 {
		assert.Equal(t, []byte{0xFF, 0xFF, 0x00}, r.Row(y), "row %d", y)
	}
}

func TestThresholdMeanUniform(t *testing.T) {
	g := image.NewGray(image.Rect(0, 0, 3, 2))
	for i := range g.Pix {
		g.Pix[i] = 40
	}
	plane, err := ThresholdMean(g)
	require.NoError(t, err)
	for y := range 2 {
		for x := range 3 {
			assert.Equal(t, byte(0), plane.GetBit(x, y))
		}
	}
}

func TestLuminance(t *testing.T) {
	assert.Equal(t, uint8(255), luminance(255, 255, 255))
	assert.Equal(t, uint8(0), luminance(0, 0, 0))
	assert.Greater(t, luminance(0, 255, 0), luminance(255, 0, 0))
	assert.Greater(t, luminance(255, 0, 0), luminance(0, 0, 255))
}
