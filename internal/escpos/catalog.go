// This file holds the catalog of ESC/POS command templates understood by
// 58mm/80mm thermal receipt printers. Templates are never modified; building
// a command always copies the template and fills its parameter slots.
package escpos

import (
	"errors"
	"fmt"
	"sort"
)

// Control characters
const (
	LF  = 0x0A
	Esc = 0x1B
	FS  = 0x1C
	GS  = 0x1D
	US  = 0x1F
	DC1 = 0x11
	EOT = 0x04
)

var ErrInvalidParameter = errors.New("invalid parameter")

// Name identifies a command in the catalog
type Name string

const (
	Init               Name = "init"
	LineFeed           Name = "line_feed"
	Feed               Name = "feed"
	SelfTest           Name = "self_test"
	Beep               Name = "beep"
	Cut                Name = "cut"
	CashDrawer         Name = "cash_drawer"
	AbsolutePosition   Name = "absolute_position"
	RelativePosition   Name = "relative_position"
	LeftMargin         Name = "left_margin"
	PrintWidth         Name = "print_width"
	DefaultLineSpacing Name = "default_line_spacing"
	LineSpacing        Name = "line_spacing"
	Align              Name = "align"
	Codepage           Name = "codepage"
	FontSelect         Name = "font_select"
	Bold               Name = "bold"
	Underline          Name = "underline"
	FontSize           Name = "font_size"
	Inverse            Name = "inverse"
	Rotate             Name = "rotate"
	UpsideDown         Name = "upside_down"
	ChineseOn          Name = "chinese_on"
	ChineseOff         Name = "chinese_off"
	PrintMode          Name = "print_mode"
	RasterLine         Name = "raster_line"
	BarcodeWidth       Name = "barcode_width"
	BarcodeHeight      Name = "barcode_height"
	BarcodeFont        Name = "barcode_font"
	BarcodeHRI         Name = "barcode_hri"
)

// Slot is a position in a template that is filled from a build parameter.
// Param is the index of the build parameter feeding the slot, several slots
// may share the same parameter. A Wide slot occupies two bytes, low byte
// first. Shift moves the value left before it is OR'd into the template byte.
type Slot struct {
	Offset int
	Param  int
	Min    int
	Max    int
	Wide   bool
	Shift  uint
}

// Command is an immutable ESC/POS byte template with parameter slots
type Command struct {
	name     Name
	template []byte
	slots    []Slot
	params   int
}

func newCommand(name Name, template []byte, slots ...Slot) Command {
	params := 0
	for _, s := range slots {
		if s.Param+1 > params {
			params = s.Param + 1
		}
	}
	return Command{name: name, template: template, slots: slots, params: params}
}

func (c Command) Name() Name {
	return c.name
}

// Params returns the number of parameters Build expects
func (c Command) Params() int {
	return c.params
}

// Template returns a copy of the unfilled template
func (c Command) Template() []byte {
	return append([]byte(nil), c.template...)
}

func (c Command) Slots() []Slot {
	return append([]Slot(nil), c.slots...)
}

// Len is the length in bytes of every command built from this template
func (c Command) Len() int {
	return len(c.template)
}

// Build copies the template and writes each parameter into its slots after
// checking it against the slot's range
func (c Command) Build(params ...int) ([]byte, error) {
	if len(params) != c.params {
		return nil, fmt.Errorf("%w: %s takes %d parameters, got %d", ErrInvalidParameter, c.name, c.params, len(params))
	}

	out := c.Template()
	for _, s := range c.slots {
		v := params[s.Param]
		if v < s.Min || v > s.Max {
			return nil, fmt.Errorf("%w: %s parameter %d is %d, must be in %d..%d", ErrInvalidParameter, c.name, s.Param, v, s.Min, s.Max)
		}
		if s.Wide {
			out[s.Offset] = byte(v & 0xFF)
			out[s.Offset+1] = byte(v >> 8)
		} else {
			out[s.Offset] |= byte(v << s.Shift)
		}
	}
	return out, nil
}

// MustBuild is Build for parameters known to be in range at compile time
func (c Command) MustBuild(params ...int) []byte {
	b, err := c.Build(params...)
	if err != nil {
		panic(err)
	}
	return b
}

func byteSlot(offset, param, min, max int) Slot {
	return Slot{Offset: offset, Param: param, Min: min, Max: max}
}

func wideSlot(offset, param, min, max int) Slot {
	return Slot{Offset: offset, Param: param, Min: min, Max: max, Wide: true}
}

var catalog = map[Name]Command{}

func register(c Command) {
	catalog[c.name] = c
}

func init() {
	register(newCommand(Init, []byte{Esc, '@'}))
	register(newCommand(LineFeed, []byte{LF}))
	register(newCommand(Feed, []byte{Esc, 'J', 0}, byteSlot(2, 0, 0, 255)))
	register(newCommand(SelfTest, []byte{US, DC1, EOT}))
	register(newCommand(Beep, []byte{Esc, 'B', 0, 0}, byteSlot(2, 0, 1, 9), byteSlot(3, 1, 1, 9)))
	register(newCommand(Cut, []byte{GS, 'V', 'B', 0}, byteSlot(3, 0, 0, 255)))
	register(newCommand(CashDrawer, []byte{Esc, 'p', 0, 0, 0},
		byteSlot(2, 0, 0, 1), byteSlot(3, 1, 0, 255), byteSlot(4, 2, 0, 255)))
	register(newCommand(AbsolutePosition, []byte{Esc, '$', 0, 0}, wideSlot(2, 0, 0, 0xFFFF)))
	register(newCommand(RelativePosition, []byte{Esc, '\\', 0, 0}, wideSlot(2, 0, 0, 0xFFFF)))
	register(newCommand(LeftMargin, []byte{GS, 'L', 0, 0}, wideSlot(2, 0, 0, 0xFFFF)))
	register(newCommand(PrintWidth, []byte{GS, 'W', 0, 0}, wideSlot(2, 0, 0, 0xFFFF)))
	register(newCommand(DefaultLineSpacing, []byte{Esc, '2'}))
	register(newCommand(LineSpacing, []byte{Esc, '3', 0}, byteSlot(2, 0, 0, 255)))
	register(newCommand(Align, []byte{Esc, 'a', 0}, byteSlot(2, 0, 0, 2)))
	register(newCommand(Codepage, []byte{Esc, 't', 0}, byteSlot(2, 0, 0, 255)))
	register(newCommand(FontSelect, []byte{Esc, 'M', 0}, byteSlot(2, 0, 0, 1)))
	register(newCommand(Bold, []byte{Esc, 'E', 0, Esc, 'G', 0}, byteSlot(2, 0, 0, 1), byteSlot(5, 0, 0, 1)))
	register(newCommand(Underline, []byte{Esc, '-', 0, FS, '-', 0}, byteSlot(2, 0, 0, 2), byteSlot(5, 0, 0, 2)))
	register(newCommand(FontSize, []byte{GS, '!', 0},
		Slot{Offset: 2, Param: 0, Min: 0, Max: 7, Shift: 4},
		Slot{Offset: 2, Param: 1, Min: 0, Max: 7}))
	register(newCommand(Inverse, []byte{GS, 'B', 0}, byteSlot(2, 0, 0, 1)))
	register(newCommand(Rotate, []byte{Esc, 'V', 0}, byteSlot(2, 0, 0, 1)))
	register(newCommand(UpsideDown, []byte{Esc, '{', 0}, byteSlot(2, 0, 0, 1)))
	register(newCommand(ChineseOn, []byte{FS, '&'}))
	register(newCommand(ChineseOff, []byte{FS, '.'}))
	register(newCommand(PrintMode, []byte{Esc, '!', 0}, byteSlot(2, 0, 0, 255)))
	register(newCommand(RasterLine, []byte{GS, 'v', '0', 0, 0, 0, 1, 0},
		byteSlot(3, 0, 0, 3), wideSlot(4, 1, 1, 0xFFFF)))
	register(newCommand(BarcodeWidth, []byte{GS, 'w', 0}, byteSlot(2, 0, 2, 6)))
	register(newCommand(BarcodeHeight, []byte{GS, 'h', 0}, byteSlot(2, 0, 1, 255)))
	register(newCommand(BarcodeFont, []byte{GS, 'f', 0}, byteSlot(2, 0, 0, 1)))
	register(newCommand(BarcodeHRI, []byte{GS, 'H', 0}, byteSlot(2, 0, 0, 3)))
}

// Lookup returns the catalog entry for name
func Lookup(name Name) (Command, bool) {
	c, ok := catalog[name]
	return c, ok
}

// Names lists every command in the catalog in lexical order
func Names() []Name {
	names := make([]Name, 0, len(catalog))
	for n := range catalog {
		names = append(names, n)
	}
	sort.Slice(names, func(i, j int) bool { return names[i] < names[j] })
	return names
}

// Build builds the named command from the catalog
func Build(name Name, params ...int) ([]byte, error) {
	c, ok := catalog[name]
	if !ok {
		return nil, fmt.Errorf("%w: unknown command %q", ErrInvalidParameter, name)
	}
	return c.Build(params...)
}

func mustLookup(name Name) Command {
	c, ok := catalog[name]
	if !ok {
		panic(fmt.Sprintf("escpos: %s missing from catalog", name))
	}
	return c
}

// MustBuild builds a catalog command whose parameters are known to be valid
func MustBuild(name Name, params ...int) []byte {
	return mustLookup(name).MustBuild(params...)
}
