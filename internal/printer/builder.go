// This file assembles the byte sequence of a single print job from the
// command catalog and the rasterizer
package printer

import (
	"fmt"
	"image"

	"menuca.ca/restotool/internal/bitmap"
	"menuca.ca/restotool/internal/escpos"
)

// 58mm paper, 8 dots per mm
const DefaultPaperWidth = 384

type Builder struct {
	PaperWidth int
}

func NewBuilder(paperWidth int) *Builder {
	if paperWidth <= 0 {
		paperWidth = DefaultPaperWidth
	}
	return &Builder{PaperWidth: paperWidth}
}

// Joins parts into one slice allocated at its final size
func concat(parts ...[]byte) []byte {
	size := 0
	for _, p := range parts {
		size += len(p)
	}
	out := make([]byte, 0, size)
	for _, p := range parts {
		out = append(out, p...)
	}
	return out
}

// Text produces font size, codepage, character mode, font select, the
// optional bold/underline toggles, the encoded text and finally the toggle
// resets. Nothing is returned unless every option is valid and the text
// could be encoded.
func (b *Builder) Text(text string, o TextOptions) ([]byte, error) {
	if text == "" {
		return nil, fmt.Errorf("%w: empty text", escpos.ErrInvalidParameter)
	}

	size, err := escpos.Build(escpos.FontSize, o.Width, o.Height)
	if err != nil {
		return nil, err
	}
	codepage, err := escpos.Build(escpos.Codepage, o.Codepage)
	if err != nil {
		return nil, err
	}
	// codepage 0 leaves the printer in its double byte character mode
	modeName := escpos.ChineseOn
	if o.Codepage != 0 {
		modeName = escpos.ChineseOff
	}
	mode, err := escpos.Build(modeName)
	if err != nil {
		return nil, err
	}
	font, err := escpos.Build(escpos.FontSelect, o.Font)
	if err != nil {
		return nil, err
	}

	var toggles, resets [][]byte
	if o.Bold {
		toggles = append(toggles, escpos.MustBuild(escpos.Bold, 1))
		resets = append(resets, escpos.MustBuild(escpos.Bold, 0))
	}
	if o.Underline {
		toggles = append(toggles, escpos.MustBuild(escpos.Underline, 1))
		resets = append(resets, escpos.MustBuild(escpos.Underline, 0))
	}

	encoded, err := Encode(text, o.Charset)
	if err != nil {
		return nil, err
	}

	parts := make([][]byte, 0, 5+len(toggles)+len(resets))
	parts = append(parts, size, codepage, mode, font)
	parts = append(parts, toggles...)
	parts = append(parts, encoded)
	parts = append(parts, resets...)
	return concat(parts...), nil
}

// CenterPadding is the left padding that centres an image width dots wide
func (b *Builder) CenterPadding(width int) int {
	return (b.PaperWidth - width) / 2
}

// Image produces init, one raster command per pixel row and a line feed.
// Width 0 prints across the whole paper. Padding is only honoured together
// with a non-zero width, in which case the printed area is width+padding.
func (b *Builder) Image(img image.Image, o ImageOptions) ([]byte, error) {
	if o.Width < 0 || o.Width > b.PaperWidth {
		return nil, fmt.Errorf("%w: image width %d on %d dot paper", escpos.ErrInvalidParameter, o.Width, b.PaperWidth)
	}

	padding := o.Padding
	if o.Width > 0 && o.Centered {
		padding = b.CenterPadding(o.Width)
	}
	if padding < 0 || o.Width == 0 {
		padding = 0
	}

	if padding > b.PaperWidth-o.Width {
		return nil, fmt.Errorf("%w: padding %d leaves no room for width %d on %d dot paper", escpos.ErrInvalidParameter, padding, o.Width, b.PaperWidth)
	}

	target := b.PaperWidth
	if o.Width != 0 {
		target = o.Width + padding
	}

	threshold := bitmap.MeanThreshold
	if o.Dither {
		threshold = bitmap.FloydSteinberg
	}
	raster, err := bitmap.Rasterize(img, target, padding, threshold)
	if err != nil {
		return nil, err
	}

	mode := 0
	if o.Double {
		mode = 1
	}
	segments, err := bitmap.RasterCommands(raster, mode)
	if err != nil {
		return nil, err
	}

	return concat(escpos.InitPrinter(), segments, escpos.NewLine()), nil
}

// EndPrint cuts the paper and resets the printer for the next job
func (b *Builder) EndPrint() []byte {
	return concat(escpos.MustBuild(escpos.Cut, 1), escpos.InitPrinter())
}

func (b *Builder) SelfTest() []byte {
	return escpos.MustBuild(escpos.SelfTest)
}

func (b *Builder) Barcode(data string, o BarcodeOptions) ([]byte, error) {
	if o.System < 0 || o.System > 0xFF {
		return nil, fmt.Errorf("%w: barcode system %d", escpos.ErrInvalidParameter, o.System)
	}
	encoded, err := Encode(data, DefaultCharset)
	if err != nil {
		return nil, err
	}
	return escpos.BarcodeCommand(escpos.Barcode{
		System:      escpos.BarcodeSystem(o.System),
		Width:       o.Width,
		Height:      o.Height,
		Font:        o.Font,
		HRIPosition: o.HRI,
	}, encoded)
}

func (b *Builder) QRCode(data string, o QRCodeOptions) ([]byte, error) {
	return escpos.QRCodeCommand(escpos.QRCode{
		Version:       o.Version,
		Correction:    o.Level,
		Magnification: o.Size,
	}, []byte(data))
}

func (b *Builder) Feed(o FeedOptions) ([]byte, error) {
	return escpos.Build(escpos.Feed, o.Dots)
}

func (b *Builder) Beep(o BeepOptions) ([]byte, error) {
	return escpos.Build(escpos.Beep, o.Times, o.Duration)
}

func (b *Builder) CashDrawer(o CashDrawerOptions) ([]byte, error) {
	return escpos.Build(escpos.CashDrawer, o.Pin, o.On, o.Off)
}
