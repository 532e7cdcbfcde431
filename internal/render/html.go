package render

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/png"
	"math"
	"net/url"
	"strings"
	"time"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"
)

const defaultHTMLTimeout = 30 * time.Second

type HTMLConfig struct {
	// Chrome binary, found on the PATH when empty
	ExecPath string
	// connect to an already running browser instead of starting one
	RemoteURL string
	Timeout   time.Duration
	// time given to the page to lay out after loading
	Settle    time.Duration
	NoSandbox bool
	Logger    *zap.Logger
}

// HTMLRenderer renders HTML documents to images in headless Chrome
type HTMLRenderer struct {
	cfg         HTMLConfig
	log         *zap.Logger
	allocCtx    context.Context
	allocCancel context.CancelFunc
}

func NewHTMLRenderer(cfg HTMLConfig) *HTMLRenderer {
	if cfg.Timeout == 0 {
		cfg.Timeout = defaultHTMLTimeout
	}
	if cfg.Settle == 0 {
		cfg.Settle = 300 * time.Millisecond
	}
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}

	r := &HTMLRenderer{cfg: cfg, log: log}
	if cfg.RemoteURL != "" {
		r.allocCtx, r.allocCancel = chromedp.NewRemoteAllocator(context.Background(), cfg.RemoteURL)
		return r
	}

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-first-run", true),
		chromedp.Flag("disable-extensions", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("hide-scrollbars", true),
		chromedp.Flag("font-render-hinting", "none"),
	)
	if cfg.NoSandbox {
		opts = append(opts, chromedp.Flag("no-sandbox", true))
	}
	if cfg.ExecPath != "" {
		opts = append(opts, chromedp.ExecPath(cfg.ExecPath))
	}
	r.allocCtx, r.allocCancel = chromedp.NewExecAllocator(context.Background(), opts...)
	return r
}

// Helper for encoding HTML into a data URL
func urlEncode(s string) string {
	return strings.ReplaceAll(url.QueryEscape(s), "+", "%20")
}

// RenderHTML lays the document out in a viewport width pixels wide and
// captures the full page height
func (r *HTMLRenderer) RenderHTML(ctx context.Context, html string, width int) (image.Image, error) {
	if strings.TrimSpace(html) == "" {
		return nil, fmt.Errorf("HTML content is empty")
	}
	if width <= 0 {
		return nil, fmt.Errorf("Invalid width %d", width)
	}

	cdpCtx, cancel := chromedp.NewContext(r.allocCtx)
	defer cancel()
	cdpCtx, cancelTimeout := context.WithTimeout(cdpCtx, r.cfg.Timeout)
	defer cancelTimeout()

	// stop the render if the caller gives up
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	start := time.Now()
	var pngBytes []byte
	err := chromedp.Run(cdpCtx,
		chromedp.EmulateViewport(int64(width), 1),
		chromedp.Navigate("data:text/html,"+urlEncode(html)),
		chromedp.Sleep(r.cfg.Settle),
		chromedp.ActionFunc(func(ctx context.Context) error {
			// the viewport is one pixel tall, clip to the laid out content
			_, _, _, _, _, content, err := page.GetLayoutMetrics().Do(ctx)
			if err != nil {
				return err
			}
			height := math.Ceil(content.Height)
			if height < 1 {
				height = 1
			}
			buf, err := page.CaptureScreenshot().
				WithFormat(page.CaptureScreenshotFormatPng).
				WithCaptureBeyondViewport(true).
				WithClip(&page.Viewport{
					Width:  float64(width),
					Height: height,
					Scale:  1,
				}).
				Do(ctx)
			if err != nil {
				return err
			}
			pngBytes = buf
			return nil
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("Failed generating image:\n%w", err)
	}

	img, err := png.Decode(bytes.NewReader(pngBytes))
	if err != nil {
		return nil, fmt.Errorf("Couldn't decode screenshot:\n%w", err)
	}
	r.log.Debug("Rendered HTML",
		zap.Int("width", img.Bounds().Dx()),
		zap.Int("height", img.Bounds().Dy()),
		zap.Duration("took", time.Since(start)),
	)
	return img, nil
}

func (r *HTMLRenderer) Close() error {
	if r.allocCancel != nil {
		r.allocCancel()
	}
	return nil
}
