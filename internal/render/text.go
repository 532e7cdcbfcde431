// Package render draws text and HTML into images that the rasterizer can
// print
package render

import (
	"fmt"
	"image"
	"image/color"
	"os"
	"strings"
	"sync"

	"golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/gomono"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/math/fixed"
)

const DefaultFontSize = 24

// TextRenderer draws word wrapped text in black on white
type TextRenderer struct {
	// used when a call doesn't give a size
	Size float64

	font *opentype.Font

	mu    sync.Mutex
	faces map[float64]font.Face
}

func getFontData(name string) ([]byte, error) {
	switch name {
	case "", "gomono":
		return gomono.TTF, nil
	case "goregular":
		return goregular.TTF, nil
	default:
		data, err := os.ReadFile(name)
		if err != nil {
			return nil, fmt.Errorf("Unrecognised font %q:\n%w", name, err)
		}
		return data, nil
	}
}

// NewTextRenderer loads one of the builtin fonts ("gomono", "goregular") or
// a TrueType/OpenType file
func NewTextRenderer(fontName string) (*TextRenderer, error) {
	data, err := getFontData(fontName)
	if err != nil {
		return nil, fmt.Errorf("Couldn't get font data:\n%w", err)
	}
	parsed, err := opentype.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("Couldn't parse font %s:\n%w", fontName, err)
	}
	return &TextRenderer{Size: DefaultFontSize, font: parsed, faces: map[float64]font.Face{}}, nil
}

func (r *TextRenderer) face(size float64) (font.Face, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if f, ok := r.faces[size]; ok {
		return f, nil
	}
	f, err := opentype.NewFace(r.font, &opentype.FaceOptions{
		Size:    size,
		DPI:     72,
		Hinting: font.HintingFull,
	})
	if err != nil {
		return nil, fmt.Errorf("Couldn't create font face:\n%w", err)
	}
	r.faces[size] = f
	return f, nil
}

func wrapText(text string, maxWidth int, face font.Face) []string {
	var lines []string
	words := strings.Fields(text)
	if len(words) == 0 {
		return []string{""}
	}

	var line string
	for _, word := range words {
		testLine := line
		if len(line) > 0 {
			testLine += " "
		}
		testLine += word

		width := font.MeasureString(face, testLine).Ceil()
		if width > maxWidth && len(line) > 0 && maxWidth > 0 {
			lines = append(lines, line)
			line = word
		} else {
			line = testLine
		}
	}

	if len(line) > 0 {
		lines = append(lines, line)
	}
	return lines
}

// RenderText draws text into an image width dots wide. Newlines start a new
// paragraph and long lines wrap at word boundaries.
func (r *TextRenderer) RenderText(text string, width int, fontSize float64) (image.Image, error) {
	if width <= 0 {
		return nil, fmt.Errorf("Invalid width %d", width)
	}
	if fontSize <= 0 {
		fontSize = r.Size
	}
	if fontSize <= 0 {
		fontSize = DefaultFontSize
	}
	face, err := r.face(fontSize)
	if err != nil {
		return nil, err
	}

	var lines []string
	for _, paragraph := range strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n") {
		lines = append(lines, wrapText(paragraph, width, face)...)
	}

	metrics := face.Metrics()
	lineHeight := metrics.Height.Ceil()
	height := max(lineHeight*len(lines), 1)

	img := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.Draw(img, img.Bounds(), image.White, image.Point{}, draw.Src)

	r.mu.Lock()
	defer r.mu.Unlock()
	d := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(color.Black),
		Face: face,
	}
	for i, line := range lines {
		d.Dot = fixed.Point26_6{
			X: 0,
			Y: fixed.I(i*lineHeight) + metrics.Ascent,
		}
		d.DrawString(line)
	}
	return img, nil
}
