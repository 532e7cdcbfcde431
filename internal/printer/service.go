package printer

import (
	"context"
	"errors"
	"fmt"
	"image"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"menuca.ca/restotool/internal/escpos"
)

var ErrClosed = errors.New("print service closed")

// Link is the physical connection jobs are written to
type Link interface {
	EnsureConnection(ctx context.Context) error
	// Send writes every frame in order without other writes in between
	Send(ctx context.Context, frames ...[]byte) error
}

// ImageSource resolves the target of an image job
type ImageSource interface {
	Load(ctx context.Context, ref string) (image.Image, error)
}

// TextRenderer draws text into an image width dots wide
type TextRenderer interface {
	RenderText(text string, width int, fontSize float64) (image.Image, error)
}

// HTMLRenderer renders an HTML document into an image width dots wide
type HTMLRenderer interface {
	RenderHTML(ctx context.Context, html string, width int) (image.Image, error)
}

type spoolItem struct {
	ctx    context.Context
	id     uuid.UUID
	frames [][]byte
	result chan error
}

// Service turns jobs into bytes and hands them to a single spool goroutine,
// the only writer to the link
type Service struct {
	link    Link
	builder *Builder
	images  ImageSource
	text    TextRenderer
	html    HTMLRenderer
	log     *zap.Logger

	queue     chan *spoolItem
	stop      chan struct{}
	done      chan struct{}
	closeOnce sync.Once
}

type Option func(*Service)

func WithImageSource(src ImageSource) Option {
	return func(s *Service) { s.images = src }
}

func WithTextRenderer(r TextRenderer) Option {
	return func(s *Service) { s.text = r }
}

func WithHTMLRenderer(r HTMLRenderer) Option {
	return func(s *Service) { s.html = r }
}

func WithLogger(l *zap.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.log = l
		}
	}
}

func NewService(link Link, builder *Builder, opts ...Option) *Service {
	s := &Service{
		link:    link,
		builder: builder,
		log:     zap.NewNop(),
		queue:   make(chan *spoolItem),
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
	}
	for _, o := range opts {
		o(s)
	}
	go s.spool()
	return s
}

func (s *Service) spool() {
	defer close(s.done)
	for {
		select {
		case item := <-s.queue:
			err := s.link.Send(item.ctx, item.frames...)
			if err != nil {
				s.log.Warn("Couldn't send job", zap.Stringer("job", item.id), zap.Error(err))
			} else {
				s.log.Debug("Sent job", zap.Stringer("job", item.id), zap.Int("frames", len(item.frames)))
			}
			item.result <- err
		case <-s.stop:
			return
		}
	}
}

// submit queues frames as one job and waits until they have been written
func (s *Service) submit(ctx context.Context, id uuid.UUID, frames ...[]byte) error {
	item := &spoolItem{ctx: ctx, id: id, frames: frames, result: make(chan error, 1)}

	select {
	case s.queue <- item:
	case <-s.stop:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case err := <-item.result:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Service) EnsureConnection(ctx context.Context) error {
	return s.link.EnsureConnection(ctx)
}

// BeginPrint marks the start of a job; nothing is sent
func (s *Service) BeginPrint(ctx context.Context) error {
	return nil
}

func (s *Service) EndPrint(ctx context.Context) error {
	return s.submit(ctx, uuid.New(), s.builder.EndPrint())
}

func (s *Service) SelfTest(ctx context.Context) error {
	return s.submit(ctx, uuid.New(), s.builder.SelfTest())
}

// Print builds the bytes for job and sends them. Build failures are reported
// before anything reaches the link.
func (s *Service) Print(ctx context.Context, job *Job) error {
	log := s.log.With(zap.Stringer("job", job.ID), zap.String("kind", string(job.Kind)))

	data, err := s.build(ctx, job)
	if err != nil {
		log.Info("Couldn't build job", zap.Error(err))
		return err
	}
	log.Debug("Built job", zap.Int("bytes", len(data)))

	return s.submit(ctx, job.ID, data)
}

func (s *Service) build(ctx context.Context, job *Job) ([]byte, error) {
	b := s.builder
	switch job.Kind {
	case KindText:
		return b.Text(job.Target, job.Text)
	case KindImage:
		if s.images == nil {
			return nil, fmt.Errorf("%w: no image source configured", escpos.ErrInvalidParameter)
		}
		img, err := s.images.Load(ctx, job.Target)
		if err != nil {
			return nil, fmt.Errorf("%w: couldn't load image %q: %v", escpos.ErrInvalidParameter, job.Target, err)
		}
		return b.Image(img, job.Image)
	case KindTextImage:
		if s.text == nil {
			return nil, fmt.Errorf("%w: no text renderer configured", escpos.ErrInvalidParameter)
		}
		img, err := s.text.RenderText(job.Target, s.renderWidth(job.Render), job.Render.FontSize)
		if err != nil {
			return nil, err
		}
		return b.Image(img, job.Render.ImageOptions)
	case KindHTML:
		if s.html == nil {
			return nil, fmt.Errorf("%w: no html renderer configured", escpos.ErrInvalidParameter)
		}
		img, err := s.html.RenderHTML(ctx, job.Target, s.renderWidth(job.Render))
		if err != nil {
			return nil, err
		}
		return b.Image(img, job.Render.ImageOptions)
	case KindBarcode:
		return b.Barcode(job.Target, job.Barcode)
	case KindQRCode:
		return b.QRCode(job.Target, job.QRCode)
	case KindFeed:
		return b.Feed(job.Feed)
	case KindBeep:
		return b.Beep(job.Beep)
	case KindCashDrawer:
		return b.CashDrawer(job.Drawer)
	default:
		return nil, fmt.Errorf("%w: unknown print kind %q", escpos.ErrInvalidParameter, job.Kind)
	}
}

func (s *Service) renderWidth(o RenderOptions) int {
	if o.Width > 0 {
		return o.Width
	}
	return s.builder.PaperWidth
}

// Close stops the spool. Jobs submitted afterwards fail with ErrClosed.
func (s *Service) Close() error {
	s.closeOnce.Do(func() {
		close(s.stop)
	})
	<-s.done
	return nil
}
