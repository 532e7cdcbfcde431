package printer

import (
	"bytes"
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/image/draw"

	"menuca.ca/restotool/internal/bitmap"
	"menuca.ca/restotool/internal/escpos"
)

func solid(w, h int, c color.Color) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(img, img.Bounds(), image.NewUniform(c), image.Point{}, draw.Src)
	return img
}

func TestTextDefaults(t *testing.T) {
	out, err := NewBuilder(0).Text("HELLO", TextOptions{})
	require.NoError(t, err)

	want := []byte{
		0x1d, '!', 0x00,
		0x1b, 't', 0x00,
		0x1c, '&',
		0x1b, 'M', 0x00,
		'H', 'E', 'L', 'L', 'O',
	}
	assert.Equal(t, want, out)
}

func TestTextStyled(t *testing.T) {
	out, err := NewBuilder(0).Text("Hi", TextOptions{
		Codepage:  16,
		Width:     1,
		Height:    2,
		Font:      1,
		Bold:      true,
		Underline: true,
	})
	require.NoError(t, err)

	want := []byte{
		0x1d, '!', 0x12,
		0x1b, 't', 16,
		0x1c, '.',
		0x1b, 'M', 0x01,
		0x1b, 'E', 1, 0x1b, 'G', 1,
		0x1b, '-', 1, 0x1c, '-', 1,
		'H', 'i',
		0x1b, 'E', 0, 0x1b, 'G', 0,
		0x1b, '-', 0, 0x1c, '-', 0,
	}
	assert.Equal(t, want, out)
}

func TestTextInvalid(t *testing.T) {
	b := NewBuilder(0)
	cases := map[string]struct {
		text string
		opts TextOptions
		err  error
	}{
		"empty text":       {"", TextOptions{}, escpos.ErrInvalidParameter},
		"width too large":  {"x", TextOptions{Width: 8}, escpos.ErrInvalidParameter},
		"negative height":  {"x", TextOptions{Height: -1}, escpos.ErrInvalidParameter},
		"codepage too big": {"x", TextOptions{Codepage: 256}, escpos.ErrInvalidParameter},
		"bad font":         {"x", TextOptions{Font: 2}, escpos.ErrInvalidParameter},
		"unknown charset":  {"x", TextOptions{Charset: "no-such-charset"}, ErrEncoding},
	}
	for name, c := range cases {
		t.Run(name, func(t *testing.T) {
			out, err := b.Text(c.text, c.opts)
			assert.ErrorIs(t, err, c.err)
			assert.Nil(t, out)
		})
	}
}

func TestTextCharset(t *testing.T) {
	out, err := NewBuilder(0).Text("café", TextOptions{Charset: "ISO-8859-1"})
	require.NoError(t, err)
	assert.True(t, bytes.HasSuffix(out, []byte{'c', 'a', 'f', 0xe9}))
}

func TestImageFullWidthLayout(t *testing.T) {
	out, err := NewBuilder(0).Image(solid(384, 8, color.White), ImageOptions{})
	require.NoError(t, err)

	const row = 8 + 48
	require.Len(t, out, 2+8*row+1)
	assert.Equal(t, []byte{0x1b, 0x40}, out[:2])
	assert.Equal(t, byte(0x0a), out[len(out)-1])

	for y := range 8 {
		seg := out[2+y*row : 2+(y+1)*row]
		assert.Equal(t, []byte{0x1d, 0x76, 0x30, 0x00, 48, 0x00, 0x01, 0x00}, seg[:8])
		assert.Equal(t, make([]byte, 48), seg[8:])
	}
}

func TestImageCentered(t *testing.T) {
	b := NewBuilder(384)
	out, err := b.Image(solid(208, 16, color.Black), ImageOptions{Width: 208, Centered: true})
	require.NoError(t, err)

	// padding 88, printed area 296 dots
	const widthBytes = 37
	const row = 8 + widthBytes
	require.Len(t, out, 2+16*row+1)

	seg := out[2 : 2+row]
	assert.Equal(t, []byte{0x1d, 0x76, 0x30, 0x00, widthBytes, 0x00, 0x01, 0x00}, seg[:8])
	assert.Equal(t, make([]byte, 11), seg[8:19])
	assert.Equal(t, bytes.Repeat([]byte{0xff}, 26), seg[19:])
}

func TestImagePaddingNeedsWidth(t *testing.T) {
	b := NewBuilder(0)
	withPadding, err := b.Image(solid(384, 8, color.White), ImageOptions{Padding: 40})
	require.NoError(t, err)
	without, err := b.Image(solid(384, 8, color.White), ImageOptions{})
	require.NoError(t, err)
	assert.Equal(t, without, withPadding)
}

func TestImageDoubleDensity(t *testing.T) {
	out, err := NewBuilder(0).Image(solid(384, 8, color.White), ImageOptions{Double: true})
	require.NoError(t, err)
	assert.Equal(t, byte(1), out[2+3])
}

func TestImageInvalid(t *testing.T) {
	b := NewBuilder(0)

	_, err := b.Image(solid(10, 10, color.Black), ImageOptions{Width: -5})
	assert.ErrorIs(t, err, escpos.ErrInvalidParameter)

	_, err = b.Image(image.NewRGBA(image.Rect(0, 0, 0, 0)), ImageOptions{})
	assert.ErrorIs(t, err, bitmap.ErrInvalidDimensions)
}

func TestImageOutOfBounds(t *testing.T) {
	b := NewBuilder(384)

	for _, o := range []ImageOptions{
		{Width: 8, Padding: 1 << 62},
		{Width: 4000},
		{Width: 385},
		{Width: 300, Padding: 100},
	} {
		var err error
		require.NotPanics(t, func() {
			_, err = b.Image(solid(16, 16, color.Black), o)
		}, "%+v", o)
		assert.ErrorIs(t, err, escpos.ErrInvalidParameter, "%+v", o)
	}

	out, err := b.Image(solid(16, 16, color.Black), ImageOptions{Width: 284, Padding: 100})
	require.NoError(t, err)
	assert.NotEmpty(t, out)
}

func TestEndPrint(t *testing.T) {
	assert.Equal(t, []byte{0x1d, 'V', 'B', 1, 0x1b, '@'}, NewBuilder(0).EndPrint())
}

func TestSelfTest(t *testing.T) {
	assert.Equal(t, []byte{0x1f, 0x11, 0x04}, NewBuilder(0).SelfTest())
}

func TestBarcode(t *testing.T) {
	out, err := NewBuilder(0).Barcode("12345", defaultJob(KindBarcode, "").Barcode)
	require.NoError(t, err)
	assert.Equal(t, []byte{
		0x1d, 'w', 3,
		0x1d, 'h', 162,
		0x1d, 'f', 0,
		0x1d, 'H', 2,
		0x1d, 'k', 73, 5, '1', '2', '3', '4', '5',
	}, out)

	_, err = NewBuilder(0).Barcode("1", BarcodeOptions{System: 256 + 73, Width: 3, Height: 10})
	assert.ErrorIs(t, err, escpos.ErrInvalidParameter)
}

func TestSmallCommands(t *testing.T) {
	b := NewBuilder(0)

	feed, err := b.Feed(FeedOptions{Dots: 24})
	require.NoError(t, err)
	assert.Equal(t, []byte{0x1b, 'J', 24}, feed)

	beep, err := b.Beep(BeepOptions{Times: 2, Duration: 3})
	require.NoError(t, err)
	assert.Equal(t, []byte{0x1b, 'B', 2, 3}, beep)

	drawer, err := b.CashDrawer(CashDrawerOptions{Pin: 1, On: 25, Off: 250})
	require.NoError(t, err)
	assert.Equal(t, []byte{0x1b, 'p', 1, 25, 250}, drawer)

	_, err = b.Beep(BeepOptions{Times: 0, Duration: 1})
	assert.ErrorIs(t, err, escpos.ErrInvalidParameter)
}

func TestQRCode(t *testing.T) {
	out, err := NewBuilder(0).QRCode("hi", QRCodeOptions{Level: 1, Size: 4})
	require.NoError(t, err)
	assert.Equal(t, []byte{0x1b, 'Z', 0, 1, 4, 2, 0, 'h', 'i'}, out)
}
