package printer

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"menuca.ca/restotool/internal/escpos"
)

// Kind selects what a print job produces
type Kind string

const (
	KindText       Kind = "text"
	KindImage      Kind = "image"
	KindBarcode    Kind = "barcode"
	KindQRCode     Kind = "qrcode"
	KindFeed       Kind = "feed"
	KindBeep       Kind = "beep"
	KindCashDrawer Kind = "cashbox"
	KindTextImage  Kind = "textimage"
	KindHTML       Kind = "html"
)

type TextOptions struct {
	Charset  string `json:"charset"`
	Codepage int    `json:"codepage"`
	// character width and height multipliers, 0..7
	Width     int  `json:"width"`
	Height    int  `json:"height"`
	Font      int  `json:"font"`
	Bold      bool `json:"bold"`
	Underline bool `json:"underline"`
}

type ImageOptions struct {
	// printed width in dots, 0 for the full paper width
	Width int `json:"width"`
	// blank dots left of the image, only used with a non-zero Width
	Padding int `json:"padding"`
	// overrides Padding to centre the image on the paper
	Centered bool `json:"centered"`
	Dither   bool `json:"dither"`
	Double   bool `json:"double"`
}

type BarcodeOptions struct {
	System int `json:"system"`
	Width  int `json:"width"`
	Height int `json:"height"`
	Font   int `json:"font"`
	HRI    int `json:"hri"`
}

type QRCodeOptions struct {
	Version int `json:"version"`
	Level   int `json:"level"`
	Size    int `json:"size"`
}

type FeedOptions struct {
	Dots int `json:"dots"`
}

type BeepOptions struct {
	Times    int `json:"times"`
	Duration int `json:"duration"`
}

type CashDrawerOptions struct {
	Pin int `json:"pin"`
	On  int `json:"on"`
	Off int `json:"off"`
}

// Options for jobs that render their target to an image before printing
type RenderOptions struct {
	ImageOptions
	FontSize float64 `json:"fontSize"`
}

// Job is one print request from the page
type Job struct {
	ID     uuid.UUID
	Kind   Kind
	Target string

	Text    TextOptions
	Image   ImageOptions
	Barcode BarcodeOptions
	QRCode  QRCodeOptions
	Feed    FeedOptions
	Beep    BeepOptions
	Drawer  CashDrawerOptions
	Render  RenderOptions
}

func defaultJob(kind Kind, target string) *Job {
	return &Job{
		ID:      uuid.New(),
		Kind:    kind,
		Target:  target,
		Text:    TextOptions{Charset: DefaultCharset},
		Barcode: BarcodeOptions{System: int(escpos.CODE128), Width: 3, Height: 162, HRI: 2},
		QRCode:  QRCodeOptions{Level: 1, Size: 4},
		Feed:    FeedOptions{Dots: 24},
		Beep:    BeepOptions{Times: 1, Duration: 2},
		Drawer:  CashDrawerOptions{Pin: 0, On: 25, Off: 250},
	}
}

// ParseJob builds a job from the page's print call. Options missing from
// the JSON object keep their defaults; an empty string means no options.
func ParseJob(kind string, target string, options string) (*Job, error) {
	job := defaultJob(Kind(strings.ToLower(strings.TrimSpace(kind))), target)

	var dst any
	switch job.Kind {
	case KindText:
		dst = &job.Text
	case KindImage:
		dst = &job.Image
	case KindBarcode:
		dst = &job.Barcode
	case KindQRCode:
		dst = &job.QRCode
	case KindFeed:
		dst = &job.Feed
	case KindBeep:
		dst = &job.Beep
	case KindCashDrawer:
		dst = &job.Drawer
	case KindTextImage, KindHTML:
		dst = &job.Render
	default:
		return nil, fmt.Errorf("%w: unknown print kind %q", escpos.ErrInvalidParameter, kind)
	}

	if strings.TrimSpace(options) != "" {
		d := json.NewDecoder(bytes.NewReader([]byte(options)))
		if err := d.Decode(dst); err != nil {
			return nil, fmt.Errorf("%w: options for %s: %v", escpos.ErrInvalidParameter, job.Kind, err)
		}
	}

	if job.Kind == KindText && job.Text.Charset == "" {
		job.Text.Charset = DefaultCharset
	}

	switch job.Kind {
	case KindText, KindImage, KindBarcode, KindQRCode, KindTextImage, KindHTML:
		if job.Target == "" {
			return nil, fmt.Errorf("%w: %s job without a target", escpos.ErrInvalidParameter, job.Kind)
		}
	}

	return job, nil
}
