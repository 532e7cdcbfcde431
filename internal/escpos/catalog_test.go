package escpos

import (
	"bytes"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildFillsSlots(t *testing.T) {
	tests := []struct {
		name   Name
		params []int
		want   []byte
	}{
		{Init, nil, []byte{0x1B, 0x40}},
		{LineFeed, nil, []byte{0x0A}},
		{Feed, []int{24}, []byte{0x1B, 'J', 24}},
		{SelfTest, nil, []byte{0x1F, 0x11, 0x04}},
		{Beep, []int{3, 2}, []byte{0x1B, 'B', 3, 2}},
		{Cut, []int{1}, []byte{0x1D, 'V', 'B', 1}},
		{CashDrawer, []int{1, 25, 250}, []byte{0x1B, 'p', 1, 25, 250}},
		{AbsolutePosition, []int{300}, []byte{0x1B, '$', 0x2C, 0x01}},
		{PrintWidth, []int{384}, []byte{0x1D, 'W', 0x80, 0x01}},
		{Align, []int{2}, []byte{0x1B, 'a', 2}},
		{Codepage, []int{255}, []byte{0x1B, 't', 255}},
		{Bold, []int{1}, []byte{0x1B, 'E', 1, 0x1B, 'G', 1}},
		{Underline, []int{2}, []byte{0x1B, '-', 2, 0x1C, '-', 2}},
		{FontSize, []int{0, 0}, []byte{0x1D, '!', 0x00}},
		{FontSize, []int{1, 1}, []byte{0x1D, '!', 0x11}},
		{FontSize, []int{7, 3}, []byte{0x1D, '!', 0x73}},
		{RasterLine, []int{0, 48}, []byte{0x1D, 'v', '0', 0, 48, 0, 1, 0}},
		{RasterLine, []int{1, 300}, []byte{0x1D, 'v', '0', 1, 0x2C, 0x01, 1, 0}},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("%s%v", tt.name, tt.params), func(t *testing.T) {
			got, err := Build(tt.name, tt.params...)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestBuildRejectsOutOfRange(t *testing.T) {
	tests := []struct {
		name   Name
		params []int
	}{
		{Beep, []int{0, 1}},
		{Beep, []int{1, 10}},
		{Align, []int{3}},
		{Align, []int{-1}},
		{FontSize, []int{8, 0}},
		{FontSize, []int{0, 8}},
		{Codepage, []int{256}},
		{CashDrawer, []int{2, 0, 0}},
		{BarcodeWidth, []int{1}},
		{BarcodeHeight, []int{0}},
		{RasterLine, []int{0, 0}},
		{Feed, []int{}},
		{Init, []int{1}},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("%s%v", tt.name, tt.params), func(t *testing.T) {
			got, err := Build(tt.name, tt.params...)
			assert.ErrorIs(t, err, ErrInvalidParameter)
			assert.Nil(t, got)
		})
	}
}

func TestBuildUnknownCommand(t *testing.T) {
	_, err := Build("nope")
	assert.ErrorIs(t, err, ErrInvalidParameter)
}

func TestTemplatesAreNeverModified(t *testing.T) {
	before := map[Name][]byte{}
	for _, n := range Names() {
		c, _ := Lookup(n)
		before[n] = c.Template()
	}

	// Build every command with its maximum values, then mutate the output.
	for _, n := range Names() {
		c, _ := Lookup(n)
		params := make([]int, c.Params())
		for _, s := range c.Slots() {
			params[s.Param] = s.Max
		}
		out, err := c.Build(params...)
		require.NoError(t, err, n)
		for i := range out {
			out[i] = 0xEE
		}
	}

	for _, n := range Names() {
		c, _ := Lookup(n)
		assert.True(t, bytes.Equal(before[n], c.Template()), "template of %s changed", n)
	}

	// The copy handed out must not alias the catalog either.
	c, _ := Lookup(Align)
	tpl := c.Template()
	tpl[0] = 0
	assert.Equal(t, byte(Esc), c.Template()[0])
}

func TestBuiltLengthMatchesTemplate(t *testing.T) {
	for _, n := range Names() {
		c, _ := Lookup(n)
		params := make([]int, c.Params())
		for _, s := range c.Slots() {
			params[s.Param] = s.Min
		}
		out, err := c.Build(params...)
		require.NoError(t, err, n)
		assert.Len(t, out, c.Len(), n)
	}
}

func TestBarcodeCommand(t *testing.T) {
	got, err := BarcodeCommand(Barcode{System: CODE128, Width: 3, Height: 162, Font: 0, HRIPosition: 2}, []byte("{B1234"))
	require.NoError(t, err)

	want := []byte{
		GS, 'w', 3,
		GS, 'h', 162,
		GS, 'f', 0,
		GS, 'H', 2,
		GS, 'k', 73, 6, '{', 'B', '1', '2', '3', '4',
	}
	assert.Equal(t, want, got)

	_, err = BarcodeCommand(Barcode{System: 64, Width: 3, Height: 1}, []byte("1"))
	assert.ErrorIs(t, err, ErrInvalidParameter)
	_, err = BarcodeCommand(Barcode{System: EAN13, Width: 7, Height: 1}, []byte("1"))
	assert.ErrorIs(t, err, ErrInvalidParameter)
	_, err = BarcodeCommand(Barcode{System: EAN13, Width: 3, Height: 1}, nil)
	assert.ErrorIs(t, err, ErrInvalidParameter)
}

func TestQRCodeCommand(t *testing.T) {
	data := bytes.Repeat([]byte{'x'}, 300)
	got, err := QRCodeCommand(QRCode{Version: 0, Correction: 1, Magnification: 4}, data)
	require.NoError(t, err)
	assert.Equal(t, []byte{Esc, 'Z', 0, 1, 4, 0x2C, 0x01}, got[:7])
	assert.Len(t, got, 7+300)

	_, err = QRCodeCommand(QRCode{Version: 20, Correction: 0, Magnification: 1}, data)
	assert.ErrorIs(t, err, ErrInvalidParameter)
	_, err = QRCodeCommand(QRCode{Version: 1, Correction: 0, Magnification: 9}, data)
	assert.ErrorIs(t, err, ErrInvalidParameter)
}

func TestHelpers(t *testing.T) {
	assert.Equal(t, []byte{Esc, '@'}, InitPrinter())
	assert.Equal(t, []byte{LF}, NewLine())

	cut, err := CutPaper(1)
	require.NoError(t, err)
	assert.Equal(t, []byte{GS, 'V', 'B', 1}, cut)

	j, err := SetJustify(Centre)
	require.NoError(t, err)
	assert.Equal(t, []byte{Esc, 'a', 1}, j)
}
