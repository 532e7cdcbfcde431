package escpos

import (
	"fmt"
)

// Type alias for the horizontal alignment of printed text and images
type Justify byte

const (
	Left   Justify = 0x00
	Centre Justify = 0x01
	Right  Justify = 0x02
)

// BarcodeSystem selects the symbology for GS k (function B form)
type BarcodeSystem byte

const (
	UPCA    BarcodeSystem = 65
	UPCE    BarcodeSystem = 66
	EAN13   BarcodeSystem = 67
	EAN8    BarcodeSystem = 68
	CODE39  BarcodeSystem = 69
	ITF     BarcodeSystem = 70
	CODABAR BarcodeSystem = 71
	CODE93  BarcodeSystem = 72
	CODE128 BarcodeSystem = 73
)

// Initialises the printer & clears any modes set by previous jobs
func InitPrinter() []byte {
	return mustLookup(Init).MustBuild()
}

// Prints the buffer and advances one line
func NewLine() []byte {
	return mustLookup(LineFeed).MustBuild()
}

// Feeds the paper n and performs a partial cut
func CutPaper(n int) ([]byte, error) {
	return Build(Cut, n)
}

func SetJustify(j Justify) ([]byte, error) {
	return Build(Align, int(j))
}

// Barcode is the parameter set of a 1D barcode
type Barcode struct {
	System BarcodeSystem
	// module width 2..6
	Width int
	// height in dots 1..255
	Height int
	// HRI font 0..1
	Font int
	// HRI position: 0 none, 1 above, 2 below, 3 both
	HRIPosition int
}

// Builds the setup commands followed by GS k m n d1..dn for data.
// The data length travels in a single byte so at most 255 bytes fit.
func BarcodeCommand(b Barcode, data []byte) ([]byte, error) {
	if b.System < UPCA || b.System > CODE128 {
		return nil, fmt.Errorf("%w: barcode system %d", ErrInvalidParameter, b.System)
	}
	if len(data) == 0 || len(data) > 255 {
		return nil, fmt.Errorf("%w: barcode data length %d", ErrInvalidParameter, len(data))
	}

	parts := make([][]byte, 0, 4)
	for _, p := range []struct {
		name  Name
		value int
	}{
		{BarcodeWidth, b.Width},
		{BarcodeHeight, b.Height},
		{BarcodeFont, b.Font},
		{BarcodeHRI, b.HRIPosition},
	} {
		cmd, err := Build(p.name, p.value)
		if err != nil {
			return nil, err
		}
		parts = append(parts, cmd)
	}

	size := 4 + len(data)
	for _, p := range parts {
		size += len(p)
	}
	out := make([]byte, 0, size)
	for _, p := range parts {
		out = append(out, p...)
	}
	out = append(out, GS, 'k', byte(b.System), byte(len(data)))
	return append(out, data...), nil
}

// QRCode is the parameter set of an ESC Z two dimensional code
type QRCode struct {
	// symbol version 0..19, 0 picks automatically
	Version int
	// error correction level 0..3
	Correction int
	// module size 1..8
	Magnification int
}

// Builds ESC Z v r k nL nH d1..dn
func QRCodeCommand(q QRCode, data []byte) ([]byte, error) {
	switch {
	case q.Version < 0 || q.Version > 19:
		return nil, fmt.Errorf("%w: qr version %d", ErrInvalidParameter, q.Version)
	case q.Correction < 0 || q.Correction > 3:
		return nil, fmt.Errorf("%w: qr correction level %d", ErrInvalidParameter, q.Correction)
	case q.Magnification < 1 || q.Magnification > 8:
		return nil, fmt.Errorf("%w: qr magnification %d", ErrInvalidParameter, q.Magnification)
	case len(data) == 0 || len(data) > 0xFFFF:
		return nil, fmt.Errorf("%w: qr data length %d", ErrInvalidParameter, len(data))
	}

	out := make([]byte, 0, 7+len(data))
	out = append(out, Esc, 'Z', byte(q.Version), byte(q.Correction), byte(q.Magnification),
		byte(len(data)&0xFF), byte(len(data)>>8))
	return append(out, data...), nil
}

// Prepares the printer to print one row of raster data.
// After this command exactly widthBytes bytes of packed pixels must follow.
// Bit 0 of mode selects double density.
func RasterLineHeader(mode int, widthBytes int) ([]byte, error) {
	return Build(RasterLine, mode, widthBytes)
}
